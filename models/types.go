package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Proposal status constants
const (
	StatusPending = "pending"
	StatusActive  = "active"
	StatusClosed  = "closed"
)

// Ledger event kinds
const (
	EventPurchase = "purchase"
	EventDebit    = "debit"
	EventCredit   = "credit"
	EventVote     = "vote"
	EventWithdraw = "withdraw"
)

// Request types

type OpenAccountRequest struct {
	UserID          string          `json:"user_id"`
	DonationBalance decimal.Decimal `json:"donation_balance"`
}

// Ticket counts stay json.Number so the transport can tell 2.5 from "not a number"
type PurchaseRequest struct {
	UserID      string      `json:"user_id"`
	TicketCount json.Number `json:"ticket_count"`
}

type VoteRequest struct {
	UserID     string      `json:"user_id"`
	ProposalID string      `json:"proposal_id"`
	Option     string      `json:"option"`
	Tickets    json.Number `json:"tickets"`
}

type CreateProposalRequest struct {
	ID        string    `json:"id,omitempty"`
	Options   []string  `json:"options"`
	OpenTime  time.Time `json:"open_time"`
	CloseTime time.Time `json:"close_time"`
}

// Response types

type Balance struct {
	UserID          string          `json:"user_id"`
	DonationBalance decimal.Decimal `json:"donation_balance"`
	VotingTickets   int64           `json:"voting_tickets"`
}

type PurchaseResult struct {
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
	TotalTickets     int64           `json:"total_tickets"`
	Cost             decimal.Decimal `json:"cost"`
}

type VoteResult struct {
	Tally            map[string]int64 `json:"tally_snapshot"`
	RemainingTickets int64            `json:"remaining_tickets"`
}

type Quote struct {
	TicketCount   int64           `json:"ticket_count"`
	Cost          decimal.Decimal `json:"cost"`
	Affordable    bool            `json:"affordable"`
	MaxAffordable int64           `json:"max_affordable"`
}

type PotResponse struct {
	Pot decimal.Decimal `json:"pot"`
}

type AllocationsResponse struct {
	UserID      string           `json:"user_id"`
	Committed   int64            `json:"committed"`
	TicketCap   int64            `json:"ticket_cap"`
	Allocations []VoteAllocation `json:"allocations"`
}

// Domain types

type Account struct {
	UserID          string          `json:"user_id"`
	DonationBalance decimal.Decimal `json:"donation_balance"`
	VotingTickets   int64           `json:"voting_tickets"`
	Version         int64           `json:"-"` // optimistic concurrency, storage only
	CreatedAt       time.Time       `json:"created_at"`
}

type NewProposal struct {
	ID        string
	Options   []string
	OpenTime  time.Time
	CloseTime time.Time
}

type Proposal struct {
	ID        string           `json:"id"`
	Options   []string         `json:"options"`
	Status    string           `json:"status"`
	OpenTime  time.Time        `json:"open_time"`
	CloseTime time.Time        `json:"close_time"`
	ClosedAt  *time.Time       `json:"closed_at,omitempty"`
	Tally     map[string]int64 `json:"tally"`
}

type VoteAllocation struct {
	UserID     string    `json:"user_id"`
	ProposalID string    `json:"proposal_id"`
	Option     string    `json:"option"`
	Tickets    int64     `json:"tickets"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Result types

type OptionResult struct {
	Option  string `json:"option"`
	Tickets int64  `json:"tickets"`
	Rank    int    `json:"rank"` // 1-indexed ranking
}

type ProposalResults struct {
	ProposalID string         `json:"proposal_id"`
	Status     string         `json:"status"`
	Final      bool           `json:"final"`
	Total      int64          `json:"total"`
	Rankings   []OptionResult `json:"rankings"`
	Winner     *string        `json:"winner,omitempty"`
}

// JournalReport is the outcome of re-hashing the event journal.
// BrokenAt is the sequence number of the first event that fails to link.
type JournalReport struct {
	Events   int64  `json:"events"`
	Head     string `json:"head"`
	Valid    bool   `json:"valid"`
	BrokenAt int64  `json:"broken_at,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}
