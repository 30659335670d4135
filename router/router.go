// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"

	"github.com/danielhkuo/ticket-vote/cliparse"
	"github.com/danielhkuo/ticket-vote/handlers"
	"github.com/danielhkuo/ticket-vote/ledger"
	"github.com/danielhkuo/ticket-vote/middleware"
)

// NewRouter wires every endpoint onto a ServeMux.
// metricsHandler may be nil, in which case /metrics is not served.
func NewRouter(l *ledger.Ledger, cfg cliparse.Config, metricsHandler http.Handler) *http.ServeMux {
	mux := http.NewServeMux()

	// Initialize handlers
	accountHandler := handlers.NewAccountHandler(l)
	proposalHandler := handlers.NewProposalHandler(l)
	votingHandler := handlers.NewVotingHandler(l)
	journalHandler := handlers.NewJournalHandler(l)

	logged := func(h http.HandlerFunc) http.HandlerFunc {
		return middleware.WithLogging(cfg.AdminKeySalt, h)
	}
	admin := func(h http.HandlerFunc) http.HandlerFunc {
		return logged(middleware.RequireAdmin(cfg.AdminKeySalt, h))
	}

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}

	// Accounts and the ticket economy
	mux.HandleFunc("POST /accounts", admin(accountHandler.OpenAccount))
	mux.HandleFunc("GET /accounts/{id}", logged(accountHandler.GetBalance))
	mux.HandleFunc("POST /accounts/{id}/tickets", logged(accountHandler.PurchaseTickets))
	mux.HandleFunc("GET /accounts/{id}/quote", logged(accountHandler.Quote))
	mux.HandleFunc("GET /accounts/{id}/votes", logged(accountHandler.Allocations))
	mux.HandleFunc("GET /pot", logged(accountHandler.Pot))

	// Proposal lifecycle
	mux.HandleFunc("POST /proposals", admin(proposalHandler.CreateProposal))
	mux.HandleFunc("GET /proposals", logged(proposalHandler.ListProposals))
	mux.HandleFunc("GET /proposals/{id}", logged(proposalHandler.GetProposal))
	mux.HandleFunc("POST /proposals/{id}/close", admin(proposalHandler.CloseProposal))
	mux.HandleFunc("GET /proposals/{id}/results", logged(proposalHandler.Results))

	// Voting
	mux.HandleFunc("POST /proposals/{id}/votes", logged(votingHandler.CastVote))
	mux.HandleFunc("DELETE /proposals/{id}/votes/{user}", logged(votingHandler.WithdrawVote))

	// Journal integrity
	mux.HandleFunc("GET /journal/verify", admin(journalHandler.Verify))

	// Root endpoint
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ticket-vote API v1"))
	})

	return mux
}
