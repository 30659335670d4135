// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the ticket-vote API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	mux := router.NewRouter(l, cfg, m.Handler())

# Endpoints

Health and metrics:

	GET /health
	GET /metrics

Accounts:

	POST /accounts              - Open account (admin)
	GET  /accounts/{id}         - Balance and held tickets
	POST /accounts/{id}/tickets - Buy tickets
	GET  /accounts/{id}/quote   - Price a purchase
	GET  /accounts/{id}/votes   - Allocations and committed tickets
	GET  /pot                   - Total donations collected

Proposals:

	POST /proposals              - Create proposal (admin)
	GET  /proposals              - List, optionally by status
	GET  /proposals/{id}         - Proposal with tally
	POST /proposals/{id}/close   - Close early (admin)
	GET  /proposals/{id}/results - Rankings and winner

Voting:

	POST   /proposals/{id}/votes        - Cast or replace a vote
	DELETE /proposals/{id}/votes/{user} - Withdraw a vote

Journal:

	GET /journal/verify - Re-hash the event chain (admin)

Admin routes require an X-Admin-Key derived from the server's admin salt.
Every route except /health and /metrics is wrapped in request logging.
*/
package router
