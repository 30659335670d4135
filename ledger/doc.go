// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package ledger implements the ticket economy and voting ledger.

# Components

  - Account ledger (accounts.go): donation balances, held tickets, the
    donation pot. PurchaseTickets is the only mutator of a donation balance.
  - Proposal lifecycle (proposals.go): pending → active → closed, driven by
    open/close times or an administrative close.
  - Vote allocation ledger (votes.go): one allocation per (user, proposal),
    the global ticket cap, per-option tallies.

A proposal is one record. Lifecycle code writes its status fields and vote
code writes its tally; neither keeps a copy of the other's fields.

# Usage

	l, err := ledger.Open(ctx,
		ledger.WithStore(store),
		ledger.WithRecorder(m),
	)

	l.OpenAccount(ctx, "alice", decimal.NewFromInt(100))
	l.PurchaseTickets(ctx, "alice", 3)               // costs 9
	l.CastVote(ctx, "alice", proposalID, "Yes", 3)   // tally {"Yes": 3, "No": 0}

# Concurrency

Every operation on one user is serialized by that user's account lock,
including the cap check in CastVote, which reads the user's allocations across
all proposals. Different users proceed in parallel. Tally updates on one
proposal are serialized by the proposal's lock. The account lock is always
taken before a proposal lock. Locks stay held while the Store writes, so
store latency is felt by every caller queued on the same account or proposal.

# Errors

Expected failures are the sentinel errors in errors.go, wrapped with detail.
Match them with errors.Is or map them to codes with Kind. A failed operation
changes nothing.

# Persistence

A Store receives each atomic group (purchase, adjustment, vote, status
change) as one call and must commit it as one transaction. Without a store
the ledger lives in memory only.

The database store chains its journal: every event records the hash of the
event before it, and VerifyJournal walks the chain to detect rows that were
edited or removed outside the ledger.
*/
package ledger
