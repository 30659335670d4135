// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the ticket-vote API.

# Handler Types

Each handler is a struct wrapping the shared *ledger.Ledger:

  - AccountHandler: Accounts, ticket purchases, quotes and the pot
  - ProposalHandler: Proposal lifecycle and results
  - VotingHandler: Casting and withdrawing ticket allocations
  - JournalHandler: Verifying the hash-chained event journal

Handlers are created via constructor functions:

	accountHandler := handlers.NewAccountHandler(l)

# Economy

Tickets cost their count squared, paid from the donation balance:

	POST /accounts                → OpenAccount (admin)
	GET  /accounts/{id}           → GetBalance
	POST /accounts/{id}/tickets   → PurchaseTickets
	GET  /accounts/{id}/quote     → Quote (?tickets=N)
	GET  /accounts/{id}/votes     → Allocations
	GET  /pot                     → Pot

# Proposal Lifecycle

Proposals progress through three states: pending → active → closed.
Transitions follow open_time and close_time; admins may close early.

	POST /proposals              → CreateProposal (admin)
	GET  /proposals              → ListProposals (?status=)
	GET  /proposals/{id}         → GetProposal
	POST /proposals/{id}/close   → CloseProposal (admin)
	GET  /proposals/{id}/results → Results

# Voting

	POST   /proposals/{id}/votes        → CastVote (create or replace)
	DELETE /proposals/{id}/votes/{user} → WithdrawVote

# Journal

	GET /journal/verify → Verify (admin)

# Errors

Ledger errors are written as {error, code, message} where code is the
ledger's snake_case kind. Anything outside that taxonomy is logged and
reported as a 500 with code "internal".
*/
package handlers
