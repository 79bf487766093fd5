// Streamcast - Resilient Event Stream Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamcast

/*
Package supervisor provides process supervision for Streamcast using suture v4.

This package implements a hierarchical supervisor tree that manages the lifecycle
of all long-running services in the application. It provides Erlang/OTP-style
supervision with automatic restart, failure isolation, and graceful shutdown.

# Overview

The supervisor tree organizes services into three layers for failure isolation:

	RootSupervisor ("streamcast")
	├── PipelineSupervisor ("pipeline-layer")
	│   ├── IngestService
	│   ├── SweeperService
	│   └── NotifyService (if webhook notification is enabled)
	├── DeliverySupervisor ("delivery-layer")
	│   └── HubService
	└── EdgeSupervisor ("edge-layer")
	    └── HTTPServerService

This hierarchy ensures that:
  - A notifier crash never interrupts event intake or delivery
  - Delivery restarts don't take the publish endpoint down with them
  - The edge keeps answering health probes while either side recovers

# Key Features

Automatic Restart:
  - Crashed services are automatically restarted
  - Exponential backoff prevents restart storms
  - Configurable failure thresholds and decay rates

Failure Isolation:
  - Services are organized into logical groups
  - Child supervisor failures don't propagate upward
  - Each layer has independent failure counting

Graceful Shutdown:
  - Context cancellation triggers orderly shutdown
  - Attached consumers receive a stream-end record while the HTTP server
    waits out its in-flight requests, so the two drains complete together
  - UnstoppedServiceReport for debugging hangs

Structured Logging:
  - Integration with slog for structured events
  - Logs service starts, stops, failures, and restarts
  - Event hooks via sutureslog adapter

# Usage Example

Basic setup in main.go:

	import (
	    "github.com/tomtom215/streamcast/internal/logging"
	    "github.com/tomtom215/streamcast/internal/supervisor"
	    "github.com/tomtom215/streamcast/internal/supervisor/services"
	)

	func main() {
	    tree, err := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	    if err != nil {
	        log.Fatal(err)
	    }

	    tree.AddPipelineService(services.NewIngestService(ingestSvc))
	    tree.AddPipelineService(services.NewSweeperService(buf, sweepInterval))
	    tree.AddDeliveryService(services.NewHubService(hub))
	    tree.AddEdgeService(services.NewHTTPServerService(server, 10*time.Second))

	    // Start the tree (blocks until context canceled)
	    if err := tree.Serve(ctx); err != nil {
	        log.Fatal(err)
	    }
	}

# Restart Semantics

Not every service is safely restartable. The hub, sweeper, and notifier
hold no exclusive resources and restart cleanly. The ingest pipeline owns
the message bus, which cannot be rebuilt in place: a pipeline failure
terminates the whole tree so the process restarts with a clean bus rather
than limping along with a dead publish path. See services.IngestService.

# Configuration

TreeConfig controls failure handling at every node:

	config := supervisor.TreeConfig{
	    FailureThreshold: 5,                // failures before backoff
	    FailureDecay:     30,               // failure count halves every 30s
	    FailureBackoff:   15 * time.Second, // pause when threshold exceeded
	    ShutdownTimeout:  10 * time.Second, // per-service stop deadline
	}

Zero values take the suture defaults, which match DefaultTreeConfig.
*/
package supervisor
