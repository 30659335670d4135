// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ledger

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/danielhkuo/ticket-vote/models"
	"github.com/danielhkuo/ticket-vote/qv"
	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

func (l *Ledger) account(userID string) (*account, error) {
	l.accountsMu.RLock()
	a, ok := l.accounts[userID]
	l.accountsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, userID)
	}
	return a, nil
}

// OpenAccount creates an account holding balance and no tickets. Identity
// registration calls it once per user.
func (l *Ledger) OpenAccount(ctx context.Context, userID string, balance decimal.Decimal) (models.Account, error) {
	if strings.TrimSpace(userID) == "" {
		return models.Account{}, fmt.Errorf("%w: user_id is required", ErrInvalidAccount)
	}
	if balance.IsNegative() {
		return models.Account{}, fmt.Errorf("%w: donation balance cannot be negative", ErrInvalidAccount)
	}

	acct := models.Account{
		UserID:          userID,
		DonationBalance: balance,
		Version:         1,
		CreatedAt:       l.clock.Time(),
	}

	l.accountsMu.Lock()
	defer l.accountsMu.Unlock()

	if _, exists := l.accounts[userID]; exists {
		return models.Account{}, fmt.Errorf("%w: %s", ErrAccountExists, userID)
	}
	if err := l.store.InsertAccount(ctx, acct); err != nil {
		return models.Account{}, fmt.Errorf("storing account %s: %w", userID, err)
	}
	l.accounts[userID] = &account{
		state:       acct,
		allocations: make(map[string]models.VoteAllocation),
	}

	l.log.Info("account opened", "user_id", userID, "donation_balance", balance.String())
	return acct, nil
}

// GetBalance returns the account's donation balance and held tickets.
func (l *Ledger) GetBalance(userID string) (models.Balance, error) {
	a, err := l.account(userID)
	if err != nil {
		return models.Balance{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return balanceOf(a.state), nil
}

func balanceOf(acct models.Account) models.Balance {
	return models.Balance{
		UserID:          acct.UserID,
		DonationBalance: acct.DonationBalance,
		VotingTickets:   acct.VotingTickets,
	}
}

func (l *Ledger) checkPurchaseCount(n int64) error {
	if n <= 0 || n > l.maxPurchase {
		return fmt.Errorf("%w: %d is outside 1..%d", ErrInvalidTicketCount, n, l.maxPurchase)
	}
	return nil
}

// PurchaseTickets converts donation balance into ticketCount tickets at
// quadratic price. Nothing changes unless the whole purchase is affordable.
func (l *Ledger) PurchaseTickets(ctx context.Context, userID string, ticketCount int64) (models.PurchaseResult, error) {
	if err := l.checkPurchaseCount(ticketCount); err != nil {
		return models.PurchaseResult{}, l.reject(OpPurchase, err)
	}
	a, err := l.account(userID)
	if err != nil {
		return models.PurchaseResult{}, l.reject(OpPurchase, err)
	}

	cost := qv.Price(ticketCount)

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state.DonationBalance.LessThan(cost) {
		return models.PurchaseResult{}, l.reject(OpPurchase, fmt.Errorf("%w: %d tickets cost %s, balance is %s",
			ErrInsufficientFunds, ticketCount, cost, a.state.DonationBalance))
	}
	if a.state.VotingTickets > math.MaxInt64-ticketCount {
		return models.PurchaseResult{}, l.reject(OpPurchase, fmt.Errorf("%w: ticket balance would overflow", ErrInvalidTicketCount))
	}

	next := a.state
	next.DonationBalance = next.DonationBalance.Sub(cost)
	next.VotingTickets += ticketCount
	next.Version++

	now := l.clock.Time()
	err = l.store.SavePurchase(ctx, Purchase{
		EventID: newEventID(),
		Account: next,
		Tickets: ticketCount,
		Cost:    cost,
		At:      now,
	})
	if err != nil {
		return models.PurchaseResult{}, fmt.Errorf("storing purchase for %s: %w", userID, err)
	}
	a.state = next
	pot := l.addToPot(cost)

	l.recorder.Purchased(ticketCount, cost)
	potF, _ := pot.Float64()
	l.log.Info("tickets purchased",
		"user_id", userID,
		"tickets", ticketCount,
		"cost", cost.String(),
		"pot", humanize.CommafWithDigits(potF, 2),
	)

	return models.PurchaseResult{
		RemainingBalance: next.DonationBalance,
		TotalTickets:     next.VotingTickets,
		Cost:             cost,
	}, nil
}

// Quote prices a purchase without making it.
func (l *Ledger) Quote(userID string, ticketCount int64) (models.Quote, error) {
	if err := l.checkPurchaseCount(ticketCount); err != nil {
		return models.Quote{}, err
	}
	bal, err := l.GetBalance(userID)
	if err != nil {
		return models.Quote{}, err
	}

	cost := qv.Price(ticketCount)
	return models.Quote{
		TicketCount:   ticketCount,
		Cost:          cost,
		Affordable:    bal.DonationBalance.GreaterThanOrEqual(cost),
		MaxAffordable: min(qv.MaxTickets(bal.DonationBalance), l.maxPurchase),
	}, nil
}

// debit and credit change a held account's tickets. Callers hold a.mu and
// persist the result.
func debit(acct *models.Account, n int64) error {
	if acct.VotingTickets < n {
		return fmt.Errorf("%w: need %d, holding %d", ErrInsufficientTickets, n, acct.VotingTickets)
	}
	acct.VotingTickets -= n
	return nil
}

func credit(acct *models.Account, n int64) error {
	if acct.VotingTickets > math.MaxInt64-n {
		return fmt.Errorf("%w: ticket balance would overflow", ErrInvalidTicketCount)
	}
	acct.VotingTickets += n
	return nil
}

// DebitTickets removes n held tickets from the account.
func (l *Ledger) DebitTickets(ctx context.Context, userID string, n int64) (models.Balance, error) {
	return l.adjust(ctx, OpDebit, models.EventDebit, userID, n, debit)
}

// CreditTickets returns n tickets to the account.
func (l *Ledger) CreditTickets(ctx context.Context, userID string, n int64) (models.Balance, error) {
	return l.adjust(ctx, OpCredit, models.EventCredit, userID, n, credit)
}

func (l *Ledger) adjust(ctx context.Context, op, kind, userID string, n int64, apply func(*models.Account, int64) error) (models.Balance, error) {
	if n <= 0 {
		return models.Balance{}, l.reject(op, fmt.Errorf("%w: %d", ErrInvalidTicketCount, n))
	}
	a, err := l.account(userID)
	if err != nil {
		return models.Balance{}, l.reject(op, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	next := a.state
	if err := apply(&next, n); err != nil {
		return models.Balance{}, l.reject(op, err)
	}
	next.Version++

	err = l.store.SaveAdjustment(ctx, Adjustment{
		EventID: newEventID(),
		Kind:    kind,
		Account: next,
		Tickets: n,
		At:      l.clock.Time(),
	})
	if err != nil {
		return models.Balance{}, fmt.Errorf("storing %s for %s: %w", kind, userID, err)
	}
	a.state = next

	l.log.Info("tickets adjusted", "user_id", userID, "kind", kind, "tickets", n)
	return balanceOf(next), nil
}

func (l *Ledger) addToPot(amount decimal.Decimal) decimal.Decimal {
	l.potMu.Lock()
	defer l.potMu.Unlock()
	l.pot = l.pot.Add(amount)
	return l.pot
}

// Pot returns the total donations collected through ticket purchases.
func (l *Ledger) Pot() decimal.Decimal {
	l.potMu.Lock()
	defer l.potMu.Unlock()
	return l.pot
}
