// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"embed"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Supported database types.
const (
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
)

// Connect opens a database of the given type and applies all pending
// migrations. For sqlite the url is a file path (or ":memory:").
func Connect(dbType, url string) (*sqlx.DB, error) {
	var (
		conn    *sqlx.DB
		dialect goose.Dialect
		err     error
	)

	switch dbType {
	case TypeSQLite:
		conn, err = sqlx.Connect("sqlite", sqliteDSN(url))
		if err != nil {
			return nil, fmt.Errorf("connecting to sqlite: %w", err)
		}
		// One writer keeps sqlite transactions from tripping over each other.
		conn.SetMaxOpenConns(1)
		dialect = goose.DialectSQLite3
	case TypePostgres:
		conn, err = sqlx.Connect("postgres", url)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		dialect = goose.DialectPostgres
	default:
		return nil, fmt.Errorf("unsupported database type %q (use %s or %s)", dbType, TypeSQLite, TypePostgres)
	}

	if err := migrate(conn, dialect); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func migrate(conn *sqlx.DB, dialect goose.Dialect) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect(string(dialect)); err != nil {
		return fmt.Errorf("setting dialect for migrations: %w", err)
	}
	if err := goose.Up(conn.DB, "migrations"); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}
