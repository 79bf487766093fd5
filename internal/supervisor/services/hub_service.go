// Streamcast - Resilient Event Stream Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamcast

package services

import (
	"context"
)

// DeliveryHub interface matches *hub.Hub's Run method.
//
// This interface allows the HubService to work with the hub without
// importing the hub package, avoiding circular dependencies.
type DeliveryHub interface {
	Run(ctx context.Context) error
}

// HubService wraps the consumer hub as a supervised service.
//
// The hub's Run method already implements the suture.Service pattern, so
// this wrapper simply delegates to it and provides a name for logging.
//
// Example usage:
//
//	hb := hub.New(cfg, buf)
//	svc := services.NewHubService(hb)
//	tree.AddDeliveryService(svc)
type HubService struct {
	hub  DeliveryHub
	name string
}

// NewHubService creates a new hub service wrapper.
func NewHubService(hub DeliveryHub) *HubService {
	return &HubService{
		hub:  hub,
		name: "delivery-hub",
	}
}

// Serve implements suture.Service.
//
// This method delegates to hub.Run which:
//  1. Admits consumers and drives heartbeat scheduling
//  2. Returns when the context is canceled
//  3. Broadcasts stream-end to every attached consumer on shutdown
func (h *HubService) Serve(ctx context.Context) error {
	return h.hub.Run(ctx)
}

// String implements fmt.Stringer for logging.
// Suture uses this to identify the service in log messages.
func (h *HubService) String() string {
	return h.name
}
