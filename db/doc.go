// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db persists the ledger in SQLite or PostgreSQL.

# Connecting

Connect opens the database and applies the embedded goose migrations:

	conn, err := db.Connect(db.TypeSQLite, "ticket-vote.db")
	if err != nil {
		log.Fatal(err)
	}
	store := db.NewStore(conn)
	defer store.Close()

Safe to call on every start - goose only applies migrations it has not seen.

# Tables

  - account: Donation balance, held tickets and row version
  - proposal: Lifecycle state and voting window
  - proposal_option: Option labels in declaration order, with running tallies
  - vote_allocation: One allocation per user per proposal
  - ledger_event: Append-only journal of purchases, adjustments and votes

# Relationships

	proposal 1──* proposal_option
	proposal 1──* vote_allocation
	account  1──* vote_allocation

# Atomic Groups

Store implements ledger.Store. Every Save method runs in one transaction, so
an account update, its allocation and tally rows, and its journal entry are
written together or not at all.

Account updates are guarded by the row version: the UPDATE only matches a
row at the version just below the new one. If another process got there
first the write fails with ledger.ErrConcurrentUpdateConflict.

# Amounts

Donation balances and purchase amounts are stored as decimal text. The pot is
the sum of purchase amounts in ledger_event, computed in Go on Load.
*/
package db
