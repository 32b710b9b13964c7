// CBD Importer - Bulk data loader for the CBD events platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cbd-importer

/*
Package main is the CBD importer server.

The server exposes one trigger that reloads the CBD events database from
the compressed JSON dumps in a data directory, and a WebSocket channel
that streams the run's progress.

# Application Architecture

	RootSupervisor ("cbd-importer")
	├── EventsSupervisor ("events-layer")
	│   ├── WebSocket Hub (progress channel)
	│   └── Event Publisher (NATS, optional)
	├── ImportSupervisor ("import-layer")
	│   └── Import Service (background runs)
	└── APISupervisor ("api-layer")
	    └── HTTP Server

Initialization order:

 1. Configuration: koanf v2 (defaults, config.yaml, environment)
 2. Logging: zerolog, JSON or console
 3. Store connector: MongoDB or embedded Badger
 4. Job history: in memory, or Badger when IMPORT_HISTORY is set
 5. Event fan-out: WebSocket hub plus NATS when NATS_ENABLED=true
 6. Authentication: JWT or none
 7. Supervisor tree and HTTP server

# Configuration

	# Server
	PORT=3000
	PUBLIC_URL=https://cbd.example.com   # used in the trigger's websocket.url
	LOG_LEVEL=info
	LOG_FORMAT=json

	# Import
	DATA_DIR=./data
	IMPORT_SUFFIX=.json.gz
	BATCH_SIZE=500
	IMPORT_AUTO_START=false

	# Store
	STORE_DRIVER=mongo                   # mongo or badger
	MONGO_URI=mongodb://localhost:27017
	DB_NAME=cbd

	# Auth
	AUTH_MODE=jwt                        # jwt or none
	JWT_SECRET=<32+ chars>

# Endpoints

	POST /api/populate          start a run (202, 409 while running)
	GET  /api/populate/status   current or last run
	GET  /ws                    progress events
	GET  /api/health/live
	GET  /api/health/ready
	GET  /metrics

# Signal Handling

SIGINT and SIGTERM cancel the tree. The HTTP server drains, the active run
is canceled and awaited, WebSocket clients receive a close frame, and the
NATS connection is flushed and closed.
*/
package main
