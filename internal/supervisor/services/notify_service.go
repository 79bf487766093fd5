// Streamcast - Resilient Event Stream Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamcast

package services

import (
	"context"
)

// Notifier interface matches *notify.Service's Run method.
//
// This interface allows the NotifyService to work with the eviction
// notifier without importing the notify package.
type Notifier interface {
	Run(ctx context.Context) error
}

// NotifyService wraps the eviction notifier as a supervised service.
//
// The notifier is stateless between runs: each Run resubscribes to the
// advisory topic and starts a fresh delivery worker, so suture's restart
// is the recovery path when delivery crashes. Advisories are best-effort;
// whatever was queued during the outage is gone, and the authoritative
// loss counters live in the buffer metrics.
type NotifyService struct {
	notifier Notifier
	name     string
}

// NewNotifyService creates a new notifier service wrapper.
func NewNotifyService(notifier Notifier) *NotifyService {
	return &NotifyService{
		notifier: notifier,
		name:     "eviction-notifier",
	}
}

// Serve implements suture.Service.
func (s *NotifyService) Serve(ctx context.Context) error {
	return s.notifier.Run(ctx)
}

// String implements fmt.Stringer for logging.
// Suture uses this to identify the service in log messages.
func (s *NotifyService) String() string {
	return s.name
}
