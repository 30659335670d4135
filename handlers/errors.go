// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielhkuo/ticket-vote/ledger"
	"github.com/danielhkuo/ticket-vote/middleware"
)

// statusFor maps a ledger error kind to an HTTP status
func statusFor(kind string) int {
	switch kind {
	case "account_not_found", "proposal_not_found", "allocation_not_found":
		return http.StatusNotFound
	case "invalid_option", "invalid_ticket_count", "invalid_proposal", "invalid_account":
		return http.StatusBadRequest
	case "insufficient_funds", "insufficient_tickets", "ticket_cap_exceeded":
		return http.StatusUnprocessableEntity
	case "proposal_not_active", "account_exists", "proposal_exists", "concurrent_update_conflict":
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError turns a ledger error into a JSON error response.
// Errors outside the ledger taxonomy are logged and reported as internal.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := ledger.Kind(err)
	if kind == "" {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "internal", "Internal error")
		return
	}
	middleware.ErrorResponse(w, statusFor(kind), kind, err.Error())
}

// parseTickets reads a ticket count that must be a whole JSON number
func parseTickets(n json.Number) (int64, error) {
	if n == "" {
		return 0, fmt.Errorf("%w: ticket count is required", ledger.ErrInvalidTicketCount)
	}
	v, err := n.Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %s is not a whole number", ledger.ErrInvalidTicketCount, n)
	}
	return v, nil
}

func invalidJSON(w http.ResponseWriter) {
	middleware.ErrorResponse(w, http.StatusBadRequest, "invalid_json", "Invalid JSON")
}
