// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ledger

import "errors"

var (
	ErrAccountNotFound          = errors.New("account not found")
	ErrAccountExists            = errors.New("account already exists")
	ErrInvalidAccount           = errors.New("invalid account")
	ErrProposalNotFound         = errors.New("proposal not found")
	ErrProposalExists           = errors.New("proposal already exists")
	ErrInvalidProposal          = errors.New("invalid proposal")
	ErrAllocationNotFound       = errors.New("no vote allocation for proposal")
	ErrInsufficientFunds        = errors.New("insufficient donation balance")
	ErrInsufficientTickets      = errors.New("insufficient voting tickets")
	ErrProposalNotActive        = errors.New("proposal is not accepting votes")
	ErrInvalidOption            = errors.New("invalid option")
	ErrInvalidTicketCount       = errors.New("invalid ticket count")
	ErrTicketCapExceeded        = errors.New("ticket cap exceeded")
	ErrConcurrentUpdateConflict = errors.New("concurrent update conflict")
)

var kinds = []struct {
	err  error
	kind string
}{
	{ErrAccountNotFound, "account_not_found"},
	{ErrAccountExists, "account_exists"},
	{ErrInvalidAccount, "invalid_account"},
	{ErrProposalNotFound, "proposal_not_found"},
	{ErrProposalExists, "proposal_exists"},
	{ErrInvalidProposal, "invalid_proposal"},
	{ErrAllocationNotFound, "allocation_not_found"},
	{ErrInsufficientFunds, "insufficient_funds"},
	{ErrInsufficientTickets, "insufficient_tickets"},
	{ErrProposalNotActive, "proposal_not_active"},
	{ErrInvalidOption, "invalid_option"},
	{ErrInvalidTicketCount, "invalid_ticket_count"},
	{ErrTicketCapExceeded, "ticket_cap_exceeded"},
	{ErrConcurrentUpdateConflict, "concurrent_update_conflict"},
}

// Kind returns the stable snake_case code for an error in the ledger's
// taxonomy, or "" for anything else (storage failures included).
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return ""
}
