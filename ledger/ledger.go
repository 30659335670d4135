// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/danielhkuo/ticket-vote/models"
	"github.com/danielhkuo/ticket-vote/qv"
	"github.com/shopspring/decimal"
)

const (
	// DefaultTicketCap is the most tickets one account may have committed
	// across all proposals that are not closed.
	DefaultTicketCap = 15

	// DefaultMaxPurchase is the largest ticket count accepted per purchase.
	DefaultMaxPurchase = 100
)

// Operation names passed to Recorder.Rejected.
const (
	OpPurchase = "purchase"
	OpDebit    = "debit"
	OpCredit   = "credit"
	OpVote     = "vote"
	OpWithdraw = "withdraw"
)

// Recorder observes ledger activity. metrics.Metrics implements it.
type Recorder interface {
	Purchased(tickets int64, cost decimal.Decimal)
	Voted(tickets int64)
	Rejected(op string, err error)
	ProposalClosed()
}

type nopRecorder struct{}

func (nopRecorder) Purchased(int64, decimal.Decimal) {}
func (nopRecorder) Voted(int64)                      {}
func (nopRecorder) Rejected(string, error)           {}
func (nopRecorder) ProposalClosed()                  {}

// Ledger is the ticket economy: account balances, proposal lifecycles, vote
// allocations and tallies.
//
// Locking: each account has its own mutex, which serializes every balance,
// ticket, and cap check for that user. Each proposal has its own RWMutex
// guarding status and tally. When both are needed the account lock is taken
// first. Writes reach the Store while the locks are held and before memory
// changes, so a failed write leaves the ledger untouched. Callers therefore
// wait on store latency while holding those locks, and a slow database slows
// every other operation on the same account or proposal.
type Ledger struct {
	store       Store
	clock       *Clock
	log         *slog.Logger
	recorder    Recorder
	ticketCap   int64
	maxPurchase int64

	accountsMu sync.RWMutex
	accounts   map[string]*account

	proposalsMu sync.RWMutex
	proposals   map[string]*proposal

	potMu sync.Mutex
	pot   decimal.Decimal
}

type account struct {
	mu          sync.Mutex
	state       models.Account
	allocations map[string]models.VoteAllocation // by proposal ID
}

// Option configures a Ledger.
type Option func(*Ledger) error

// WithStore persists every mutation through s.
func WithStore(s Store) Option {
	return func(l *Ledger) error {
		if s == nil {
			return fmt.Errorf("nil store")
		}
		l.store = s
		return nil
	}
}

// WithClock replaces wall time, mostly for tests.
func WithClock(c *Clock) Option {
	return func(l *Ledger) error {
		if c == nil {
			return fmt.Errorf("nil clock")
		}
		l.clock = c
		return nil
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) error {
		if logger == nil {
			return fmt.Errorf("nil logger")
		}
		l.log = logger
		return nil
	}
}

func WithRecorder(r Recorder) Option {
	return func(l *Ledger) error {
		if r == nil {
			return fmt.Errorf("nil recorder")
		}
		l.recorder = r
		return nil
	}
}

func WithTicketCap(n int64) Option {
	return func(l *Ledger) error {
		if n <= 0 {
			return fmt.Errorf("ticket cap must be positive, got %d", n)
		}
		l.ticketCap = n
		return nil
	}
}

func WithMaxPurchase(n int64) Option {
	return func(l *Ledger) error {
		if n <= 0 || n > qv.MaxSafeTickets {
			return fmt.Errorf("max purchase must be in 1..%d, got %d", qv.MaxSafeTickets, n)
		}
		l.maxPurchase = n
		return nil
	}
}

// New returns an empty Ledger. Without WithStore it lives only in memory.
func New(options ...Option) (*Ledger, error) {
	l := &Ledger{
		store:       nopStore{},
		clock:       &Clock{},
		log:         slog.Default(),
		recorder:    nopRecorder{},
		ticketCap:   DefaultTicketCap,
		maxPurchase: DefaultMaxPurchase,
		accounts:    make(map[string]*account),
		proposals:   make(map[string]*proposal),
	}

	for _, option := range options {
		if err := option(l); err != nil {
			return nil, fmt.Errorf("applying ledger option: %w", err)
		}
	}
	return l, nil
}

// Open returns a Ledger rebuilt from its store's snapshot.
func Open(ctx context.Context, options ...Option) (*Ledger, error) {
	l, err := New(options...)
	if err != nil {
		return nil, err
	}

	snap, err := l.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading ledger snapshot: %w", err)
	}
	l.restore(snap)

	l.log.Info("ledger restored",
		"accounts", len(snap.Accounts),
		"proposals", len(snap.Proposals),
		"allocations", len(snap.Allocations),
	)
	return l, nil
}

// TicketCap returns the configured per-user commitment cap.
func (l *Ledger) TicketCap() int64 { return l.ticketCap }

// MaxPurchase returns the configured per-purchase ticket limit.
func (l *Ledger) MaxPurchase() int64 { return l.maxPurchase }

func (l *Ledger) restore(snap *Snapshot) {
	now := l.clock.Time()

	for _, acct := range snap.Accounts {
		l.accounts[acct.UserID] = &account{
			state:       acct,
			allocations: make(map[string]models.VoteAllocation),
		}
	}

	for _, rec := range snap.Proposals {
		p := newProposal(rec.ID, rec.Options, rec.OpenTime, rec.CloseTime, rec.Status)
		p.closedAt = rec.ClosedAt
		p.storedStatus = rec.Status
		for option, tickets := range rec.Tally {
			if _, ok := p.tally[option]; ok {
				p.tally[option] = tickets
			}
		}
		p.advance(now)
		l.proposals[p.id] = p
	}

	for _, alloc := range snap.Allocations {
		a, ok := l.accounts[alloc.UserID]
		if !ok {
			l.log.Warn("dropping allocation for unknown account",
				"user_id", alloc.UserID, "proposal_id", alloc.ProposalID)
			continue
		}
		a.allocations[alloc.ProposalID] = alloc
	}

	l.pot = snap.Pot
}

// reject reports a refused operation to the recorder and passes err through.
func (l *Ledger) reject(op string, err error) error {
	l.recorder.Rejected(op, err)
	return err
}
