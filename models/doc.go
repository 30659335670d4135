// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines the request, response, and domain types shared by the
ledger, the SQL store, and the HTTP handlers.

# Proposal Status

Proposals move pending → active → closed, and may skip straight from pending
to closed when canceled:

	models.StatusPending
	models.StatusActive
	models.StatusClosed

# Money

Donation balances, costs, and the donation pot are decimal.Decimal values and
serialize as JSON strings ("91"). Ticket counts are int64.

# Ticket Counts On The Wire

PurchaseRequest and VoteRequest carry ticket counts as json.Number so the HTTP
layer can reject non-integral counts (2.5) as invalid_ticket_count instead of a
generic decoding error.

# Ledger Events

Every persisted mutation is journaled with one of:

	EventPurchase, EventDebit, EventCredit, EventVote, EventWithdraw
*/
package models
