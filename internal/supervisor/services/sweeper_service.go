// Streamcast - Resilient Event Stream Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamcast

package services

import (
	"context"
	"time"

	"github.com/tomtom215/streamcast/internal/logging"
)

// Sweeper interface matches *eventbuffer.Buffer's EvictExpired method.
type Sweeper interface {
	EvictExpired() int
}

// SweeperService drives age-based buffer retention during quiet periods.
//
// The buffer evicts aged entries opportunistically on every append and
// read, which covers a busy stream. On an idle stream nothing touches the
// buffer, so without this ticker expired events would sit in memory
// indefinitely, stats would overstate retention, and consumers that
// resume late would see a buffer that should already have rolled past
// their cursor.
//
// Example usage:
//
//	svc := services.NewSweeperService(buf, cfg.Buffer.SweepInterval)
//	tree.AddPipelineService(svc)
type SweeperService struct {
	sweeper  Sweeper
	interval time.Duration
	name     string
}

// NewSweeperService creates a new sweeper service wrapper.
// A non-positive interval falls back to one minute.
func NewSweeperService(sweeper Sweeper, interval time.Duration) *SweeperService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &SweeperService{
		sweeper:  sweeper,
		interval: interval,
		name:     "buffer-sweeper",
	}
}

// Serve implements suture.Service.
func (s *SweeperService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n := s.sweeper.EvictExpired(); n > 0 {
				logging.Debug().
					Str("component", "sweeper").
					Int("evicted", n).
					Msg("swept aged events from buffer")
			}
		}
	}
}

// String implements fmt.Stringer for logging.
// Suture uses this to identify the service in log messages.
func (s *SweeperService) String() string {
	return s.name
}
