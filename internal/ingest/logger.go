// Streamcast - Resilient Event Stream Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamcast

package ingest

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"

	"github.com/tomtom215/streamcast/internal/logging"
)

// watermillLogger adapts the zerolog-based application logger to
// Watermill's LoggerAdapter interface so router and Pub/Sub internals log
// through the same pipeline as everything else.
type watermillLogger struct {
	logger zerolog.Logger
}

// newWatermillLogger returns a LoggerAdapter scoped to the ingest component.
func newWatermillLogger() watermill.LoggerAdapter {
	return &watermillLogger{logger: logging.WithComponent("ingest")}
}

// Error logs an error-level message.
func (l *watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	l.withFields(l.logger.Error().Err(err), fields).Msg(msg)
}

// Info logs an info-level message.
func (l *watermillLogger) Info(msg string, fields watermill.LogFields) {
	l.withFields(l.logger.Info(), fields).Msg(msg)
}

// Debug logs a debug-level message.
func (l *watermillLogger) Debug(msg string, fields watermill.LogFields) {
	l.withFields(l.logger.Debug(), fields).Msg(msg)
}

// Trace logs a trace-level message.
func (l *watermillLogger) Trace(msg string, fields watermill.LogFields) {
	l.withFields(l.logger.Trace(), fields).Msg(msg)
}

// With returns a logger carrying the given fields on every message.
func (l *watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	ctx := l.logger.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &watermillLogger{logger: ctx.Logger()}
}

func (l *watermillLogger) withFields(e *zerolog.Event, fields watermill.LogFields) *zerolog.Event {
	for k, v := range fields {
		e = e.Interface(k, v)
	}
	return e
}
