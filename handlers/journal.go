// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/danielhkuo/ticket-vote/ledger"
	"github.com/danielhkuo/ticket-vote/middleware"
)

type JournalHandler struct {
	ledger *ledger.Ledger
}

func NewJournalHandler(l *ledger.Ledger) *JournalHandler {
	return &JournalHandler{ledger: l}
}

// Verify handles GET /journal/verify (admin).
// A broken chain is still a 200; the report says where it breaks.
func (h *JournalHandler) Verify(w http.ResponseWriter, r *http.Request) {
	report, err := h.ledger.VerifyJournal(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, report)
}
