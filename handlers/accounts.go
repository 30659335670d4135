// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/danielhkuo/ticket-vote/ledger"
	"github.com/danielhkuo/ticket-vote/middleware"
	"github.com/danielhkuo/ticket-vote/models"
)

type AccountHandler struct {
	ledger *ledger.Ledger
}

func NewAccountHandler(l *ledger.Ledger) *AccountHandler {
	return &AccountHandler{ledger: l}
}

// OpenAccount handles POST /accounts (admin)
func (h *AccountHandler) OpenAccount(w http.ResponseWriter, r *http.Request) {
	var req models.OpenAccountRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		invalidJSON(w)
		return
	}

	acct, err := h.ledger.OpenAccount(r.Context(), req.UserID, req.DonationBalance)
	if err != nil {
		writeError(w, r, err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, acct)
}

// GetBalance handles GET /accounts/{id}
func (h *AccountHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	bal, err := h.ledger.GetBalance(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, bal)
}

// PurchaseTickets handles POST /accounts/{id}/tickets
func (h *AccountHandler) PurchaseTickets(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")

	var req models.PurchaseRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		invalidJSON(w)
		return
	}
	if req.UserID != "" && req.UserID != userID {
		writeError(w, r, fmt.Errorf("%w: user_id does not match the path", ledger.ErrInvalidAccount))
		return
	}

	n, err := parseTickets(req.TicketCount)
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.ledger.PurchaseTickets(r.Context(), userID, n)
	if err != nil {
		writeError(w, r, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, res)
}

// Quote handles GET /accounts/{id}/quote?tickets=N
func (h *AccountHandler) Quote(w http.ResponseWriter, r *http.Request) {
	n, err := parseTickets(json.Number(r.URL.Query().Get("tickets")))
	if err != nil {
		writeError(w, r, err)
		return
	}

	quote, err := h.ledger.Quote(r.PathValue("id"), n)
	if err != nil {
		writeError(w, r, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, quote)
}

// Allocations handles GET /accounts/{id}/votes
func (h *AccountHandler) Allocations(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")

	allocs, err := h.ledger.Allocations(userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	committed, err := h.ledger.CommittedTickets(userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.AllocationsResponse{
		UserID:      userID,
		Committed:   committed,
		TicketCap:   h.ledger.TicketCap(),
		Allocations: allocs,
	})
}

// Pot handles GET /pot
func (h *AccountHandler) Pot(w http.ResponseWriter, r *http.Request) {
	middleware.JSONResponse(w, http.StatusOK, models.PotResponse{Pot: h.ledger.Pot()})
}
