// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/danielhkuo/ticket-vote/models"
	"github.com/jmoiron/sqlx"
)

// genesisHash is the previous hash of the first event.
var genesisHash = strings.Repeat("0", 64)

type journalHead struct {
	Seq  int64  `db:"seq"`
	Hash string `db:"hash"`
}

// chainEntry is the canonical form an event is hashed in. Field order is
// fixed by the struct, so the encoding is stable.
type chainEntry struct {
	Seq        int64  `json:"seq"`
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	UserID     string `json:"user_id"`
	ProposalID string `json:"proposal_id"`
	Option     string `json:"option"`
	Tickets    int64  `json:"tickets"`
	Amount     string `json:"amount"`
	CreatedAt  string `json:"created_at"`
	PrevHash   string `json:"prev_hash"`
}

func eventHash(e dbEvent) string {
	entry := chainEntry{
		Seq:        e.Seq,
		ID:         e.ID,
		Kind:       e.Kind,
		UserID:     e.UserID,
		ProposalID: e.ProposalID.String,
		Option:     e.Option.String,
		Tickets:    e.Tickets,
		Amount:     e.Amount.String,
		CreatedAt:  e.CreatedAt.UTC().Format(time.RFC3339Nano),
		PrevHash:   e.PrevHash,
	}
	// A struct of strings and ints always marshals.
	data, _ := json.Marshal(entry)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// chainEvent claims the next sequence number and links e to the head. The
// head row update holds a write lock until the transaction ends, so appends
// from concurrent transactions cannot fork the chain.
func chainEvent(ctx context.Context, tx *sqlx.Tx, e *dbEvent) error {
	// Postgres keeps microseconds; hash what will be read back.
	e.CreatedAt = e.CreatedAt.UTC().Truncate(time.Microsecond)

	var head journalHead
	if err := tx.GetContext(ctx, &head, `UPDATE journal_head SET seq = seq + 1 WHERE id = 1 RETURNING seq, hash`); err != nil {
		return fmt.Errorf("advancing journal head: %w", err)
	}

	e.Seq = head.Seq
	e.PrevHash = head.Hash
	e.Hash = eventHash(*e)

	query := tx.Rebind(`UPDATE journal_head SET hash = ? WHERE id = 1`)
	if _, err := tx.ExecContext(ctx, query, e.Hash); err != nil {
		return fmt.Errorf("updating journal head: %w", err)
	}
	return nil
}

// VerifyJournal walks the event chain from the first event and checks every
// link and hash, then that the chain ends at the recorded head.
func (s *Store) VerifyJournal(ctx context.Context) (models.JournalReport, error) {
	var head journalHead
	if err := s.conn.GetContext(ctx, &head, `SELECT seq, hash FROM journal_head WHERE id = 1`); err != nil {
		return models.JournalReport{}, fmt.Errorf("loading journal head: %w", err)
	}

	var events []dbEvent
	query := `SELECT id, kind, user_id, proposal_id, option_label, tickets, amount, created_at, seq, prev_hash, hash
		FROM ledger_event WHERE seq IS NOT NULL ORDER BY seq`
	if err := s.conn.SelectContext(ctx, &events, query); err != nil {
		return models.JournalReport{}, fmt.Errorf("loading journal: %w", err)
	}

	report := models.JournalReport{
		Events: int64(len(events)),
		Head:   head.Hash,
		Valid:  true,
	}
	broken := func(seq int64, reason string) (models.JournalReport, error) {
		report.Valid = false
		report.BrokenAt = seq
		report.Reason = reason
		return report, nil
	}

	prev := genesisHash
	next := int64(1)
	for _, e := range events {
		switch {
		case e.Seq != next:
			return broken(next, "event missing")
		case e.PrevHash != prev:
			return broken(e.Seq, "previous hash does not match")
		case eventHash(e) != e.Hash:
			return broken(e.Seq, "event does not match its hash")
		}
		prev = e.Hash
		next++
	}

	if head.Seq != next-1 || head.Hash != prev {
		return broken(next, "chain ends before its head")
	}
	return report, nil
}
