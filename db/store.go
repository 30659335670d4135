// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/danielhkuo/ticket-vote/ledger"
	"github.com/danielhkuo/ticket-vote/models"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

var _ ledger.Store = (*Store)(nil)

// Store is the SQL implementation of ledger.Store. Each method runs in one
// transaction.
type Store struct {
	conn *sqlx.DB
}

// NewStore wraps an open, migrated connection.
func NewStore(conn *sqlx.DB) *Store {
	return &Store{conn: conn}
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("closing store: %w", err)
	}
	return nil
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

type dbAccount struct {
	UserID          string          `db:"user_id"`
	DonationBalance decimal.Decimal `db:"donation_balance"`
	VotingTickets   int64           `db:"voting_tickets"`
	Version         int64           `db:"version"`
	CreatedAt       time.Time       `db:"created_at"`
}

type dbProposal struct {
	ID        string     `db:"id"`
	Status    string     `db:"status"`
	OpenTime  time.Time  `db:"open_time"`
	CloseTime time.Time  `db:"close_time"`
	ClosedAt  *time.Time `db:"closed_at"`
}

type dbOption struct {
	ProposalID string `db:"proposal_id"`
	Label      string `db:"label"`
	Position   int    `db:"position"`
	Tickets    int64  `db:"tickets"`
}

type dbAllocation struct {
	UserID     string    `db:"user_id"`
	ProposalID string    `db:"proposal_id"`
	Option     string    `db:"option_label"`
	Tickets    int64     `db:"tickets"`
	UpdatedAt  time.Time `db:"updated_at"`
}

type dbEvent struct {
	ID         string         `db:"id"`
	Kind       string         `db:"kind"`
	UserID     string         `db:"user_id"`
	ProposalID sql.NullString `db:"proposal_id"`
	Option     sql.NullString `db:"option_label"`
	Tickets    int64          `db:"tickets"`
	Amount     sql.NullString `db:"amount"`
	CreatedAt  time.Time      `db:"created_at"`
	Seq        int64          `db:"seq"`
	PrevHash   string         `db:"prev_hash"`
	Hash       string         `db:"hash"`
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: true}
}

// withTx runs fn inside a transaction and commits when it returns nil.
func (s *Store) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Load reads the whole ledger.
func (s *Store) Load(ctx context.Context) (*ledger.Snapshot, error) {
	snap := &ledger.Snapshot{}

	var accounts []dbAccount
	if err := s.conn.SelectContext(ctx, &accounts, `SELECT user_id, donation_balance, voting_tickets, version, created_at FROM account ORDER BY user_id`); err != nil {
		return nil, fmt.Errorf("loading accounts: %w", err)
	}
	for _, a := range accounts {
		snap.Accounts = append(snap.Accounts, models.Account{
			UserID:          a.UserID,
			DonationBalance: a.DonationBalance,
			VotingTickets:   a.VotingTickets,
			Version:         a.Version,
			CreatedAt:       a.CreatedAt.UTC(),
		})
	}

	var proposals []dbProposal
	if err := s.conn.SelectContext(ctx, &proposals, `SELECT id, status, open_time, close_time, closed_at FROM proposal ORDER BY open_time, id`); err != nil {
		return nil, fmt.Errorf("loading proposals: %w", err)
	}
	var options []dbOption
	if err := s.conn.SelectContext(ctx, &options, `SELECT proposal_id, label, position, tickets FROM proposal_option ORDER BY proposal_id, position`); err != nil {
		return nil, fmt.Errorf("loading proposal options: %w", err)
	}
	byProposal := make(map[string][]dbOption, len(proposals))
	for _, o := range options {
		byProposal[o.ProposalID] = append(byProposal[o.ProposalID], o)
	}
	for _, p := range proposals {
		rec := models.Proposal{
			ID:        p.ID,
			Status:    p.Status,
			OpenTime:  p.OpenTime.UTC(),
			CloseTime: p.CloseTime.UTC(),
			ClosedAt:  utc(p.ClosedAt),
			Tally:     make(map[string]int64),
		}
		for _, o := range byProposal[p.ID] {
			rec.Options = append(rec.Options, o.Label)
			rec.Tally[o.Label] = o.Tickets
		}
		snap.Proposals = append(snap.Proposals, rec)
	}

	var allocations []dbAllocation
	if err := s.conn.SelectContext(ctx, &allocations, `SELECT user_id, proposal_id, option_label, tickets, updated_at FROM vote_allocation ORDER BY user_id, proposal_id`); err != nil {
		return nil, fmt.Errorf("loading vote allocations: %w", err)
	}
	for _, a := range allocations {
		snap.Allocations = append(snap.Allocations, models.VoteAllocation{
			UserID:     a.UserID,
			ProposalID: a.ProposalID,
			Option:     a.Option,
			Tickets:    a.Tickets,
			UpdatedAt:  a.UpdatedAt.UTC(),
		})
	}

	// Amounts are exact decimals stored as text, so the pot is summed here
	// rather than with SUM().
	var amounts []decimal.Decimal
	query := s.conn.Rebind(`SELECT amount FROM ledger_event WHERE kind = ? AND amount IS NOT NULL`)
	if err := s.conn.SelectContext(ctx, &amounts, query, models.EventPurchase); err != nil {
		return nil, fmt.Errorf("loading purchase amounts: %w", err)
	}
	snap.Pot = decimal.Sum(decimal.Zero, amounts...)

	return snap, nil
}

// InsertAccount stores a new account.
func (s *Store) InsertAccount(ctx context.Context, acct models.Account) error {
	query := s.conn.Rebind(`INSERT INTO account (user_id, donation_balance, voting_tickets, version, created_at) VALUES (?, ?, ?, ?, ?)`)
	_, err := s.conn.ExecContext(ctx, query,
		acct.UserID, acct.DonationBalance.String(), acct.VotingTickets, acct.Version, acct.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("inserting account %s: %w", acct.UserID, err)
	}
	return nil
}

// InsertProposal stores a proposal and its options with zero tallies.
func (s *Store) InsertProposal(ctx context.Context, p models.Proposal) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		query := tx.Rebind(`INSERT INTO proposal (id, status, open_time, close_time, closed_at) VALUES (?, ?, ?, ?, ?)`)
		if _, err := tx.ExecContext(ctx, query, p.ID, p.Status, p.OpenTime.UTC(), p.CloseTime.UTC(), nullTime(p.ClosedAt)); err != nil {
			return fmt.Errorf("inserting proposal %s: %w", p.ID, err)
		}

		query = tx.Rebind(`INSERT INTO proposal_option (proposal_id, label, position, tickets) VALUES (?, ?, ?, ?)`)
		for i, label := range p.Options {
			if _, err := tx.ExecContext(ctx, query, p.ID, label, i, p.Tally[label]); err != nil {
				return fmt.Errorf("inserting option %q of proposal %s: %w", label, p.ID, err)
			}
		}
		return nil
	})
}

// updateAccount writes acct if the stored row is at the version just below
// it.
func updateAccount(ctx context.Context, tx *sqlx.Tx, acct models.Account) error {
	query := tx.Rebind(`UPDATE account SET donation_balance = ?, voting_tickets = ?, version = ? WHERE user_id = ? AND version = ?`)
	result, err := tx.ExecContext(ctx, query,
		acct.DonationBalance.String(), acct.VotingTickets, acct.Version, acct.UserID, acct.Version-1)
	if err != nil {
		return fmt.Errorf("updating account %s: %w", acct.UserID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("fetching rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: account %s is not at version %d", ledger.ErrConcurrentUpdateConflict, acct.UserID, acct.Version-1)
	}
	return nil
}

// insertEvent appends e to the journal, chained to the current head.
func insertEvent(ctx context.Context, tx *sqlx.Tx, e dbEvent) error {
	if err := chainEvent(ctx, tx, &e); err != nil {
		return err
	}

	query := `INSERT INTO ledger_event (id, kind, user_id, proposal_id, option_label, tickets, amount, created_at, seq, prev_hash, hash)
		VALUES (:id, :kind, :user_id, :proposal_id, :option_label, :tickets, :amount, :created_at, :seq, :prev_hash, :hash)`
	if _, err := tx.NamedExecContext(ctx, query, e); err != nil {
		return fmt.Errorf("recording %s event: %w", e.Kind, err)
	}
	return nil
}

// SavePurchase stores the account's new balances and the purchase event.
func (s *Store) SavePurchase(ctx context.Context, p ledger.Purchase) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := updateAccount(ctx, tx, p.Account); err != nil {
			return err
		}
		return insertEvent(ctx, tx, dbEvent{
			ID:        p.EventID.String(),
			Kind:      models.EventPurchase,
			UserID:    p.Account.UserID,
			Tickets:   p.Tickets,
			Amount:    nullString(p.Cost.String()),
			CreatedAt: p.At.UTC(),
		})
	})
}

// SaveAdjustment stores a debit or credit.
func (s *Store) SaveAdjustment(ctx context.Context, a ledger.Adjustment) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := updateAccount(ctx, tx, a.Account); err != nil {
			return err
		}
		return insertEvent(ctx, tx, dbEvent{
			ID:        a.EventID.String(),
			Kind:      a.Kind,
			UserID:    a.Account.UserID,
			Tickets:   a.Tickets,
			CreatedAt: a.At.UTC(),
		})
	})
}

func addToTally(ctx context.Context, tx *sqlx.Tx, proposalID, option string, delta int64) error {
	query := tx.Rebind(`UPDATE proposal_option SET tickets = tickets + ? WHERE proposal_id = ? AND label = ?`)
	result, err := tx.ExecContext(ctx, query, delta, proposalID, option)
	if err != nil {
		return fmt.Errorf("updating tally of %s/%s: %w", proposalID, option, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("fetching rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("no option %q on proposal %s", option, proposalID)
	}
	return nil
}

// SaveVote stores a cast, re-cast or withdrawn vote: the account's tickets,
// the allocation row, both tally rows and the event.
func (s *Store) SaveVote(ctx context.Context, v ledger.VoteChange) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := updateAccount(ctx, tx, v.Account); err != nil {
			return err
		}

		event := dbEvent{
			ID:        v.EventID.String(),
			Kind:      v.Kind,
			UserID:    v.Account.UserID,
			CreatedAt: v.At.UTC(),
		}

		if prev := v.Previous; prev != nil {
			if err := addToTally(ctx, tx, prev.ProposalID, prev.Option, -prev.Tickets); err != nil {
				return err
			}
			event.ProposalID, event.Option, event.Tickets = nullString(prev.ProposalID), nullString(prev.Option), prev.Tickets
		}

		if next := v.Next; next != nil {
			query := tx.Rebind(`INSERT INTO vote_allocation (user_id, proposal_id, option_label, tickets, updated_at) VALUES (?, ?, ?, ?, ?)
				ON CONFLICT (user_id, proposal_id) DO UPDATE SET option_label = excluded.option_label, tickets = excluded.tickets, updated_at = excluded.updated_at`)
			if _, err := tx.ExecContext(ctx, query, next.UserID, next.ProposalID, next.Option, next.Tickets, next.UpdatedAt.UTC()); err != nil {
				return fmt.Errorf("saving allocation of %s on %s: %w", next.UserID, next.ProposalID, err)
			}
			if err := addToTally(ctx, tx, next.ProposalID, next.Option, next.Tickets); err != nil {
				return err
			}
			event.ProposalID, event.Option, event.Tickets = nullString(next.ProposalID), nullString(next.Option), next.Tickets
		} else if prev := v.Previous; prev != nil {
			query := tx.Rebind(`DELETE FROM vote_allocation WHERE user_id = ? AND proposal_id = ?`)
			if _, err := tx.ExecContext(ctx, query, prev.UserID, prev.ProposalID); err != nil {
				return fmt.Errorf("removing allocation of %s on %s: %w", prev.UserID, prev.ProposalID, err)
			}
		}

		return insertEvent(ctx, tx, event)
	})
}

// SaveProposalStatus records a lifecycle transition.
func (s *Store) SaveProposalStatus(ctx context.Context, c ledger.StatusChange) error {
	query := s.conn.Rebind(`UPDATE proposal SET status = ?, closed_at = ? WHERE id = ?`)
	result, err := s.conn.ExecContext(ctx, query, c.Status, nullTime(c.ClosedAt), c.ProposalID)
	if err != nil {
		return fmt.Errorf("updating status of proposal %s: %w", c.ProposalID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("fetching rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("no proposal found with ID %s", c.ProposalID)
	}
	return nil
}
