// CBD Importer - Bulk data loader for the CBD events platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cbd-importer

/*
Package supervisor runs the importer's long-lived services under a suture v4
tree.

	RootSupervisor ("cbd-importer")
	├── EventsSupervisor ("events-layer")
	│   ├── HubService           (WebSocket progress hub)
	│   └── PublisherService     (NATS event bus, if events.nats_enabled)
	├── ImportSupervisor ("import-layer")
	│   └── ImportService        (owns the lifetime of background runs)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

A crashing service is restarted with suture's backoff without touching the
other layers. Supervisor events are logged through sutureslog using the
slog bridge from internal/logging.

Cancelling the context passed to Serve stops every layer. Each service is
given TreeConfig.ShutdownTimeout to return before it is reported by
UnstoppedServiceReport.
*/
package supervisor
