// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ledger

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/danielhkuo/ticket-vote/models"
)

// proposal is the single in-memory record for a proposal. Lifecycle code
// owns status, closedAt and storedStatus; vote code owns tally. Both are
// guarded by mu.
type proposal struct {
	mu sync.RWMutex

	id        string
	options   []string
	optionSet map[string]struct{}
	openTime  time.Time
	closeTime time.Time

	status       string
	closedAt     *time.Time
	storedStatus string // last status the store acknowledged

	tally map[string]int64
}

func newProposal(id string, options []string, openTime, closeTime time.Time, status string) *proposal {
	p := &proposal{
		id:        id,
		options:   slices.Clone(options),
		optionSet: make(map[string]struct{}, len(options)),
		openTime:  openTime,
		closeTime: closeTime,
		status:    status,
		tally:     make(map[string]int64, len(options)),
	}
	for _, option := range options {
		p.optionSet[option] = struct{}{}
		p.tally[option] = 0
	}
	return p
}

// statusAt evaluates the lifecycle at now without mutating the record.
func (p *proposal) statusAt(now time.Time) string {
	switch {
	case p.status == models.StatusClosed:
		return models.StatusClosed
	case !now.Before(p.closeTime):
		return models.StatusClosed
	case !now.Before(p.openTime):
		return models.StatusActive
	default:
		return models.StatusPending
	}
}

// advance materializes time-driven transitions. Callers hold mu for writing.
// It reports whether the proposal closed during this call.
func (p *proposal) advance(now time.Time) bool {
	next := p.statusAt(now)
	if next == p.status {
		return false
	}
	p.status = next
	if next == models.StatusClosed && p.closedAt == nil {
		closedAt := p.closeTime
		p.closedAt = &closedAt
		return true
	}
	return next == models.StatusClosed
}

func (p *proposal) acceptingAt(now time.Time) bool {
	return p.statusAt(now) == models.StatusActive &&
		!now.Before(p.openTime) && now.Before(p.closeTime)
}

func (p *proposal) hasOption(option string) bool {
	_, ok := p.optionSet[option]
	return ok
}

func (p *proposal) snapshot(now time.Time) models.Proposal {
	rec := models.Proposal{
		ID:        p.id,
		Options:   slices.Clone(p.options),
		Status:    p.statusAt(now),
		OpenTime:  p.openTime,
		CloseTime: p.closeTime,
		Tally:     maps.Clone(p.tally),
	}
	switch {
	case p.closedAt != nil:
		closedAt := *p.closedAt
		rec.ClosedAt = &closedAt
	case rec.Status == models.StatusClosed:
		closedAt := p.closeTime
		rec.ClosedAt = &closedAt
	}
	return rec
}

func (l *Ledger) proposal(id string) (*proposal, error) {
	l.proposalsMu.RLock()
	p, ok := l.proposals[id]
	l.proposalsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProposalNotFound, id)
	}
	return p, nil
}

// advanceLocked moves p forward to now and reports a close.
func (l *Ledger) advanceLocked(p *proposal, now time.Time) {
	if p.advance(now) {
		l.recorder.ProposalClosed()
		l.log.Info("proposal closed", "proposal_id", p.id, "reason", "close_time reached")
	}
}

func validateOptions(options []string) error {
	if len(options) == 0 {
		return fmt.Errorf("%w: at least one option is required", ErrInvalidProposal)
	}
	seen := make(map[string]struct{}, len(options))
	for _, option := range options {
		if strings.TrimSpace(option) == "" {
			return fmt.Errorf("%w: option labels cannot be blank", ErrInvalidProposal)
		}
		if _, dup := seen[option]; dup {
			return fmt.Errorf("%w: duplicate option %q", ErrInvalidProposal, option)
		}
		seen[option] = struct{}{}
	}
	return nil
}

// CreateProposal registers a proposal. It starts pending when OpenTime is in
// the future and active otherwise. A blank ID is replaced by a UUIDv7.
func (l *Ledger) CreateProposal(ctx context.Context, np models.NewProposal) (models.Proposal, error) {
	if err := validateOptions(np.Options); err != nil {
		return models.Proposal{}, err
	}
	if np.OpenTime.IsZero() || np.CloseTime.IsZero() {
		return models.Proposal{}, fmt.Errorf("%w: open_time and close_time are required", ErrInvalidProposal)
	}
	if !np.OpenTime.Before(np.CloseTime) {
		return models.Proposal{}, fmt.Errorf("%w: open_time must be before close_time", ErrInvalidProposal)
	}

	now := l.clock.Time()
	if !now.Before(np.CloseTime) {
		return models.Proposal{}, fmt.Errorf("%w: close_time has already passed", ErrInvalidProposal)
	}

	id := np.ID
	if id == "" {
		id = newEventID().String()
	}

	status := models.StatusActive
	if now.Before(np.OpenTime) {
		status = models.StatusPending
	}
	p := newProposal(id, np.Options, np.OpenTime, np.CloseTime, status)
	rec := p.snapshot(now)

	l.proposalsMu.Lock()
	defer l.proposalsMu.Unlock()

	if _, exists := l.proposals[id]; exists {
		return models.Proposal{}, fmt.Errorf("%w: %s", ErrProposalExists, id)
	}
	if err := l.store.InsertProposal(ctx, rec); err != nil {
		return models.Proposal{}, fmt.Errorf("storing proposal %s: %w", id, err)
	}
	p.storedStatus = status
	l.proposals[id] = p

	l.log.Info("proposal created", "proposal_id", id, "status", status, "options", len(np.Options))
	return rec, nil
}

// GetProposal returns a snapshot of the proposal, tally included.
func (l *Ledger) GetProposal(id string) (models.Proposal, error) {
	p, err := l.proposal(id)
	if err != nil {
		return models.Proposal{}, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshot(l.clock.Time()), nil
}

// ListProposals returns proposals in the given status, or all of them when
// status is empty, ordered by open time then ID.
func (l *Ledger) ListProposals(status string) []models.Proposal {
	l.proposalsMu.RLock()
	all := slices.Collect(maps.Values(l.proposals))
	l.proposalsMu.RUnlock()

	now := l.clock.Time()
	out := make([]models.Proposal, 0, len(all))
	for _, p := range all {
		p.mu.RLock()
		rec := p.snapshot(now)
		p.mu.RUnlock()
		if status == "" || rec.Status == status {
			out = append(out, rec)
		}
	}

	slices.SortFunc(out, func(a, b models.Proposal) int {
		if c := a.OpenTime.Compare(b.OpenTime); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// IsAcceptingVotes reports whether the proposal is active and now falls in
// [OpenTime, CloseTime).
func (l *Ledger) IsAcceptingVotes(id string) (bool, error) {
	p, err := l.proposal(id)
	if err != nil {
		return false, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.acceptingAt(l.clock.Time()), nil
}

// CloseProposal force-closes a pending or active proposal. Closing a closed
// proposal changes nothing and returns its record.
func (l *Ledger) CloseProposal(ctx context.Context, id string) (models.Proposal, error) {
	p, err := l.proposal(id)
	if err != nil {
		return models.Proposal{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := l.clock.Time()
	l.advanceLocked(p, now)

	if p.status == models.StatusClosed {
		if err := l.persistStatusLocked(ctx, p); err != nil {
			return models.Proposal{}, err
		}
		return p.snapshot(now), nil
	}

	closedAt := now
	change := StatusChange{ProposalID: p.id, Status: models.StatusClosed, ClosedAt: &closedAt}
	if err := l.store.SaveProposalStatus(ctx, change); err != nil {
		return models.Proposal{}, fmt.Errorf("closing proposal %s: %w", p.id, err)
	}
	p.status = models.StatusClosed
	p.closedAt = &closedAt
	p.storedStatus = models.StatusClosed

	l.recorder.ProposalClosed()
	l.log.Info("proposal closed", "proposal_id", p.id, "reason", "administrative close")
	return p.snapshot(now), nil
}

// persistStatusLocked writes p's status if the store has not seen it yet.
func (l *Ledger) persistStatusLocked(ctx context.Context, p *proposal) error {
	if p.status == p.storedStatus {
		return nil
	}
	change := StatusChange{ProposalID: p.id, Status: p.status, ClosedAt: p.closedAt}
	if err := l.store.SaveProposalStatus(ctx, change); err != nil {
		return fmt.Errorf("saving status of proposal %s: %w", p.id, err)
	}
	p.storedStatus = p.status
	return nil
}

// Sweep applies time-driven transitions to every proposal and persists the
// ones the store has not recorded. It returns how many were persisted.
// A failed write is reported and retried on the next sweep.
func (l *Ledger) Sweep(ctx context.Context) (int, error) {
	l.proposalsMu.RLock()
	all := slices.Collect(maps.Values(l.proposals))
	l.proposalsMu.RUnlock()

	now := l.clock.Time()
	var (
		persisted int
		errs      []error
	)
	for _, p := range all {
		if err := ctx.Err(); err != nil {
			return persisted, err
		}

		p.mu.Lock()
		l.advanceLocked(p, now)
		pending := p.status != p.storedStatus
		err := l.persistStatusLocked(ctx, p)
		p.mu.Unlock()

		if err != nil {
			errs = append(errs, err)
			continue
		}
		if pending {
			persisted++
		}
	}
	return persisted, errors.Join(errs...)
}
