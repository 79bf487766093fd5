// Streamcast - Resilient Event Stream Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamcast

/*
Package services provides suture.Service wrappers for Streamcast components.

Each wrapper adapts one component's lifecycle to suture's Serve(ctx) pattern
so the supervisor tree can start, stop, and restart it uniformly. The
wrappers depend on small local interfaces rather than the concrete
component types, which keeps them mockable and free of import cycles.

# Available Services

HTTPServerService wraps an *http.Server:
  - Runs ListenAndServe in a goroutine
  - On context cancellation calls Shutdown with a bounded timeout
  - Translates http.ErrServerClosed to a clean stop

HubService wraps the consumer hub:
  - Delegates to Run(ctx), which already matches the Serve pattern
  - On cancellation the hub broadcasts stream-end to every consumer

IngestService wraps the ingest pipeline:
  - Runs the pipeline and closes it once the run ends
  - A pipeline failure terminates the supervisor tree, because the
    message bus it owns cannot be rebuilt in place (see type docs)

NotifyService wraps the eviction notifier:
  - Delegates to Run(ctx); safe to restart, delivery is best-effort

SweeperService drives buffer retention during quiet periods:
  - Ticks at the configured interval and evicts aged entries
  - Without it, age-based eviction only happens on reads and appends

# Design Notes

Wrappers hold a name for suture's logging (the String method) and keep
Serve as the only lifecycle entry point. Any component whose natural API
is already Run(ctx context.Context) error gets a thin delegation; Start/
Stop and ListenAndServe/Shutdown shaped components get the translation
done here, once, instead of in main.
*/
package services
