// Streamcast - Resilient Event Stream Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamcast

package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/thejerf/suture/v4"
)

// Pipeline interface matches *ingest.Service's lifecycle methods.
//
// This interface allows the IngestService to work with the ingest
// pipeline without importing the ingest package, enabling testing with
// mocks.
type Pipeline interface {
	Run(ctx context.Context) error
	Close() error
}

// IngestService wraps the ingest pipeline as a supervised service.
//
// The pipeline owns the message bus that the publish path, the buffer
// append handler, and the eviction notifier all share. That bus cannot be
// rebuilt in place after a failure: handlers hold subscriptions into it
// and the API handler holds the pipeline pointer. A restart of just this
// service would come back with a dead bus, so an unexpected pipeline
// error terminates the whole supervisor tree and lets the process restart
// with a clean slate.
//
// On graceful shutdown the wrapper closes the pipeline after Run returns,
// draining in-flight messages up to the pipeline's close timeout.
type IngestService struct {
	pipeline Pipeline
	name     string
}

// NewIngestService creates a new ingest pipeline service wrapper.
func NewIngestService(pipeline Pipeline) *IngestService {
	return &IngestService{
		pipeline: pipeline,
		name:     "ingest-pipeline",
	}
}

// Serve implements suture.Service.
func (s *IngestService) Serve(ctx context.Context) error {
	runErr := s.pipeline.Run(ctx)
	closeErr := s.pipeline.Close()

	if runErr != nil {
		return fmt.Errorf("ingest pipeline failed: %w",
			errors.Join(runErr, suture.ErrTerminateSupervisorTree))
	}
	if closeErr != nil {
		// The run ended cleanly; a close failure at shutdown is logged by
		// the supervisor but must not look like a crash to restart.
		return errors.Join(closeErr, suture.ErrDoNotRestart)
	}
	return ctx.Err()
}

// String implements fmt.Stringer for logging.
// Suture uses this to identify the service in log messages.
func (s *IngestService) String() string {
	return s.name
}
