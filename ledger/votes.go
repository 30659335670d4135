// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ledger

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/danielhkuo/ticket-vote/models"
)

// committedLocked sums a's allocations on proposals that are not closed at
// now. Callers hold a.mu and no proposal lock; each proposal is read-locked
// on its own so no two proposal locks are ever held together.
func (l *Ledger) committedLocked(a *account, now time.Time) int64 {
	var total int64
	for proposalID, alloc := range a.allocations {
		p, err := l.proposal(proposalID)
		if err != nil {
			continue
		}
		p.mu.RLock()
		live := p.statusAt(now) != models.StatusClosed
		p.mu.RUnlock()
		if live {
			total += alloc.Tickets
		}
	}
	return total
}

// CastVote commits tickets of the user's voting power to option on a
// proposal, replacing any earlier allocation on the same proposal. Only the
// difference from the earlier allocation moves between the account and the
// allocation. Checks run in this order: proposal exists, proposal accepting
// votes, option valid, ticket count positive, account exists, cap, held
// tickets.
func (l *Ledger) CastVote(ctx context.Context, userID, proposalID, option string, tickets int64) (models.VoteResult, error) {
	p, err := l.proposal(proposalID)
	if err != nil {
		return models.VoteResult{}, l.reject(OpVote, err)
	}

	p.mu.RLock()
	accepting := p.acceptingAt(l.clock.Time())
	validOption := p.hasOption(option)
	p.mu.RUnlock()

	switch {
	case !accepting:
		return models.VoteResult{}, l.reject(OpVote, fmt.Errorf("%w: %s", ErrProposalNotActive, proposalID))
	case !validOption:
		return models.VoteResult{}, l.reject(OpVote, fmt.Errorf("%w: %q is not an option of %s", ErrInvalidOption, option, proposalID))
	case tickets <= 0:
		return models.VoteResult{}, l.reject(OpVote, fmt.Errorf("%w: %d", ErrInvalidTicketCount, tickets))
	}

	a, err := l.account(userID)
	if err != nil {
		return models.VoteResult{}, l.reject(OpVote, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	// The cap is checked against a total read before p is locked. Anything
	// that changes in between can only close proposals, which shrinks the
	// real total.
	committed := l.committedLocked(a, l.clock.Time())

	p.mu.Lock()
	defer p.mu.Unlock()

	now := l.clock.Time()
	l.advanceLocked(p, now)
	if !p.acceptingAt(now) {
		return models.VoteResult{}, l.reject(OpVote, fmt.Errorf("%w: %s", ErrProposalNotActive, proposalID))
	}

	prior, hadPrior := a.allocations[p.id]
	delta := tickets - prior.Tickets
	// Compared against the headroom so a huge ticket count cannot wrap.
	if delta > l.ticketCap-committed {
		return models.VoteResult{}, l.reject(OpVote, fmt.Errorf("%w: %d committed, change of %d, cap is %d",
			ErrTicketCapExceeded, committed, delta, l.ticketCap))
	}

	next := a.state
	switch {
	case delta > 0:
		if err := debit(&next, delta); err != nil {
			return models.VoteResult{}, l.reject(OpVote, err)
		}
	case delta < 0:
		if err := credit(&next, -delta); err != nil {
			return models.VoteResult{}, l.reject(OpVote, err)
		}
	}
	next.Version++

	alloc := models.VoteAllocation{
		UserID:     userID,
		ProposalID: p.id,
		Option:     option,
		Tickets:    tickets,
		UpdatedAt:  now,
	}
	change := VoteChange{
		EventID: newEventID(),
		Kind:    models.EventVote,
		Account: next,
		Next:    &alloc,
		At:      now,
	}
	if hadPrior {
		change.Previous = &prior
	}
	if err := l.store.SaveVote(ctx, change); err != nil {
		return models.VoteResult{}, fmt.Errorf("storing vote of %s on %s: %w", userID, p.id, err)
	}

	a.state = next
	a.allocations[p.id] = alloc
	if hadPrior {
		p.tally[prior.Option] -= prior.Tickets
	}
	p.tally[option] += tickets

	l.recorder.Voted(tickets)
	l.log.Info("vote cast",
		"user_id", userID,
		"proposal_id", p.id,
		"option", option,
		"tickets", tickets,
		"is_update", hadPrior,
	)

	return models.VoteResult{
		Tally:            maps.Clone(p.tally),
		RemainingTickets: next.VotingTickets,
	}, nil
}

// WithdrawVote removes the user's allocation on an accepting proposal and
// returns its tickets to the account.
func (l *Ledger) WithdrawVote(ctx context.Context, userID, proposalID string) (models.VoteResult, error) {
	p, err := l.proposal(proposalID)
	if err != nil {
		return models.VoteResult{}, l.reject(OpWithdraw, err)
	}
	a, err := l.account(userID)
	if err != nil {
		return models.VoteResult{}, l.reject(OpWithdraw, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	p.mu.Lock()
	defer p.mu.Unlock()

	now := l.clock.Time()
	l.advanceLocked(p, now)
	if !p.acceptingAt(now) {
		return models.VoteResult{}, l.reject(OpWithdraw, fmt.Errorf("%w: %s", ErrProposalNotActive, proposalID))
	}

	prior, ok := a.allocations[p.id]
	if !ok {
		return models.VoteResult{}, l.reject(OpWithdraw, fmt.Errorf("%w: %s on %s", ErrAllocationNotFound, userID, proposalID))
	}

	next := a.state
	if err := credit(&next, prior.Tickets); err != nil {
		return models.VoteResult{}, l.reject(OpWithdraw, err)
	}
	next.Version++

	err = l.store.SaveVote(ctx, VoteChange{
		EventID:  newEventID(),
		Kind:     models.EventWithdraw,
		Account:  next,
		Previous: &prior,
		At:       now,
	})
	if err != nil {
		return models.VoteResult{}, fmt.Errorf("storing withdrawal of %s on %s: %w", userID, p.id, err)
	}

	a.state = next
	delete(a.allocations, p.id)
	p.tally[prior.Option] -= prior.Tickets

	l.log.Info("vote withdrawn", "user_id", userID, "proposal_id", p.id, "tickets", prior.Tickets)
	return models.VoteResult{
		Tally:            maps.Clone(p.tally),
		RemainingTickets: next.VotingTickets,
	}, nil
}

// Allocations lists every allocation the user holds, closed proposals
// included, ordered by proposal ID.
func (l *Ledger) Allocations(userID string) ([]models.VoteAllocation, error) {
	a, err := l.account(userID)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	out := slices.Collect(maps.Values(a.allocations))
	a.mu.Unlock()

	slices.SortFunc(out, func(x, y models.VoteAllocation) int {
		return cmp.Compare(x.ProposalID, y.ProposalID)
	})
	return out, nil
}

// CommittedTickets returns the user's tickets allocated to proposals that
// are not closed.
func (l *Ledger) CommittedTickets(userID string) (int64, error) {
	a, err := l.account(userID)
	if err != nil {
		return 0, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return l.committedLocked(a, l.clock.Time()), nil
}

// Results ranks a proposal's options by tickets, most first, ties in
// declaration order sharing a rank. Winner is set once the proposal is
// closed and a single option leads with at least one ticket.
func (l *Ledger) Results(proposalID string) (models.ProposalResults, error) {
	p, err := l.proposal(proposalID)
	if err != nil {
		return models.ProposalResults{}, err
	}

	p.mu.RLock()
	status := p.statusAt(l.clock.Time())
	rankings := make([]models.OptionResult, len(p.options))
	var total int64
	for i, option := range p.options {
		rankings[i] = models.OptionResult{Option: option, Tickets: p.tally[option]}
		total += p.tally[option]
	}
	p.mu.RUnlock()

	slices.SortStableFunc(rankings, func(a, b models.OptionResult) int {
		return cmp.Compare(b.Tickets, a.Tickets)
	})
	for i := range rankings {
		if i > 0 && rankings[i].Tickets == rankings[i-1].Tickets {
			rankings[i].Rank = rankings[i-1].Rank
		} else {
			rankings[i].Rank = i + 1
		}
	}

	res := models.ProposalResults{
		ProposalID: proposalID,
		Status:     status,
		Final:      status == models.StatusClosed,
		Total:      total,
		Rankings:   rankings,
	}
	if res.Final && total > 0 && (len(rankings) == 1 || rankings[0].Tickets > rankings[1].Tickets) {
		winner := rankings[0].Option
		res.Winner = &winner
	}
	return res, nil
}
