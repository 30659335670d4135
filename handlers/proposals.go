// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/danielhkuo/ticket-vote/ledger"
	"github.com/danielhkuo/ticket-vote/middleware"
	"github.com/danielhkuo/ticket-vote/models"
)

type ProposalHandler struct {
	ledger *ledger.Ledger
}

func NewProposalHandler(l *ledger.Ledger) *ProposalHandler {
	return &ProposalHandler{ledger: l}
}

// CreateProposal handles POST /proposals (admin)
func (h *ProposalHandler) CreateProposal(w http.ResponseWriter, r *http.Request) {
	var req models.CreateProposalRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		invalidJSON(w)
		return
	}

	p, err := h.ledger.CreateProposal(r.Context(), models.NewProposal{
		ID:        req.ID,
		Options:   req.Options,
		OpenTime:  req.OpenTime,
		CloseTime: req.CloseTime,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, p)
}

// ListProposals handles GET /proposals?status=
func (h *ProposalHandler) ListProposals(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	switch status {
	case "", models.StatusPending, models.StatusActive, models.StatusClosed:
	default:
		middleware.ErrorResponse(w, http.StatusBadRequest, "invalid_status", "status must be pending, active or closed")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, h.ledger.ListProposals(status))
}

// GetProposal handles GET /proposals/{id}
func (h *ProposalHandler) GetProposal(w http.ResponseWriter, r *http.Request) {
	p, err := h.ledger.GetProposal(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, p)
}

// CloseProposal handles POST /proposals/{id}/close (admin)
func (h *ProposalHandler) CloseProposal(w http.ResponseWriter, r *http.Request) {
	p, err := h.ledger.CloseProposal(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, p)
}

// Results handles GET /proposals/{id}/results
func (h *ProposalHandler) Results(w http.ResponseWriter, r *http.Request) {
	res, err := h.ledger.Results(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, res)
}
