// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"fmt"
	"net/http"

	"github.com/danielhkuo/ticket-vote/ledger"
	"github.com/danielhkuo/ticket-vote/middleware"
	"github.com/danielhkuo/ticket-vote/models"
)

type VotingHandler struct {
	ledger *ledger.Ledger
}

func NewVotingHandler(l *ledger.Ledger) *VotingHandler {
	return &VotingHandler{ledger: l}
}

// CastVote handles POST /proposals/{id}/votes
// A second vote by the same user replaces the first.
func (h *VotingHandler) CastVote(w http.ResponseWriter, r *http.Request) {
	proposalID := r.PathValue("id")

	var req models.VoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		invalidJSON(w)
		return
	}
	if req.ProposalID != "" && req.ProposalID != proposalID {
		writeError(w, r, fmt.Errorf("%w: proposal_id does not match the path", ledger.ErrInvalidProposal))
		return
	}

	tickets, err := parseTickets(req.Tickets)
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.ledger.CastVote(r.Context(), req.UserID, proposalID, req.Option, tickets)
	if err != nil {
		writeError(w, r, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, res)
}

// WithdrawVote handles DELETE /proposals/{id}/votes/{user}
func (h *VotingHandler) WithdrawVote(w http.ResponseWriter, r *http.Request) {
	res, err := h.ledger.WithdrawVote(r.Context(), r.PathValue("user"), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, res)
}
