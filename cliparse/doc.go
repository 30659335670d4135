// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

# Config Fields

  - Port: Server listen port (default: 3318)
  - DatabaseURL: sqlite path or PostgreSQL connection string (required)
  - DatabaseType: "sqlite" (default) or "postgres"
  - AdminKeySalt: Secret for admin key HMAC (required)
  - Economy: Ledger tunables (ticket cap, purchase limit, sweep interval)

# CLI Flags

	-p                Server port
	-d                Database URL
	-t                Database type
	-admin-salt       Admin key salt
	-env-file         .env file to load first
	-c                Economy config file
	-print-admin-key  Print the admin key and exit

# Environment Variables

Flags fall back to environment variables:

	PORT           → -p
	DATABASE_URL   → -d
	DATABASE_TYPE  → -t
	ADMIN_KEY_SALT → -admin-salt
	ENV_FILE       → -env-file
	ECONOMY_FILE   → -c

CLI flags take precedence over environment variables, and variables already
set take precedence over the .env file.

# Economy

Economy settings are read with viper: defaults, then the economy file, then
TV_TICKET_CAP, TV_MAX_PURCHASE and TV_SWEEP_INTERVAL:

	ticket_cap: 15
	max_purchase: 100
	sweep_interval: 30s

# Validation

ParseFlags returns an error if required values are missing, the database
type is unknown, or an economy value is not positive.
*/
package cliparse
