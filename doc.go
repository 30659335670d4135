// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the ticket-vote API server.

ticket-vote runs a donation-funded voting economy. Users convert donation
balance into voting tickets at quadratic price (t tickets cost t²), then
commit tickets to options on time-boxed proposals. The money spent on tickets
accumulates in a shared pot.

# Starting the Server

The server requires environment variables or CLI flags for configuration:

	DATABASE_URL=ticket-vote.db ADMIN_KEY_SALT=... go run .

Or with flags:

	go run . -p 3318 -t postgres -d "postgres://..." -admin-salt ...

Print the admin key for the configured salt:

	go run . -print-admin-key

# Configuration

Required settings:

  - DATABASE_URL (-d): sqlite file path or PostgreSQL connection string
  - ADMIN_KEY_SALT (-admin-salt): Secret for admin key HMAC

Optional settings:

  - PORT (-p): Server port (default: 3318)
  - DATABASE_TYPE (-t): sqlite (default) or postgres
  - ENV_FILE (-env-file): .env file loaded before the lookups above
  - ECONOMY_FILE (-c): YAML file with ticket_cap, max_purchase, sweep_interval

# Architecture

  - ledger: Accounts, proposals, votes and the pot, held in memory
  - db: Migrations and the SQL-backed ledger store
  - handlers: HTTP request handlers (accounts, proposals, voting)
  - router: Route definitions using Go 1.22+ routing
  - middleware: CORS, logging, admin checks, JSON helpers
  - metrics: Prometheus counters fed by the ledger
  - qv: Quadratic ticket pricing
  - models: Request/response and domain types
  - auth: Admin keys and IP hashing
  - cliparse: Configuration parsing

A background sweep closes proposals whose close_time has passed and writes
the transition to the database.
*/
package main
