// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielhkuo/ticket-vote/ledger"
	"github.com/danielhkuo/ticket-vote/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) (*Store, func()) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ledger_test.db")
	conn, err := Connect(TypeSQLite, path)
	if err != nil {
		t.Fatalf("Connect() failed: %v", err)
	}

	store := NewStore(conn)
	teardown := func() {
		store.Close()
		os.Remove(path)
	}
	return store, teardown
}

func openLedger(t *testing.T, store *Store, clk *ledger.Clock) *ledger.Ledger {
	t.Helper()
	l, err := ledger.Open(context.Background(),
		ledger.WithStore(store),
		ledger.WithClock(clk),
		ledger.WithLogger(slog.New(slog.DiscardHandler)),
	)
	if err != nil {
		t.Fatalf("ledger.Open() failed: %v", err)
	}
	return l
}

func newClock() *ledger.Clock {
	clk := &ledger.Clock{}
	clk.Set(epoch)
	return clk
}

func TestConnect(t *testing.T) {
	t.Run("should reject unknown database types", func(t *testing.T) {
		if _, err := Connect("mysql", "whatever"); err == nil {
			t.Fatal("expected error for unsupported type")
		}
	})

	t.Run("should apply migrations", func(t *testing.T) {
		store, teardown := setupTestDB(t)
		defer teardown()

		for _, table := range []string{"account", "proposal", "proposal_option", "vote_allocation", "ledger_event"} {
			var n int
			if err := store.conn.Get(&n, "SELECT COUNT(*) FROM "+table); err != nil {
				t.Fatalf("table %s: %v", table, err)
			}
			if n != 0 {
				t.Fatalf("\nwanted:\n0 rows in %s\ngot:\n%d", table, n)
			}
		}

		var head journalHead
		if err := store.conn.Get(&head, "SELECT seq, hash FROM journal_head WHERE id = 1"); err != nil {
			t.Fatalf("journal_head: %v", err)
		}
		if head.Seq != 0 || head.Hash != genesisHash {
			t.Fatalf("\nwanted:\nempty journal head\ngot:\n%+v", head)
		}
	})

	t.Run("should be safe to connect twice", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "twice.db")
		for range 2 {
			conn, err := Connect(TypeSQLite, path)
			if err != nil {
				t.Fatalf("Connect() failed: %v", err)
			}
			conn.Close()
		}
	})
}

func TestStore_EmptyLoad(t *testing.T) {
	store, teardown := setupTestDB(t)
	defer teardown()

	snap, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(snap.Accounts) != 0 || len(snap.Proposals) != 0 || len(snap.Allocations) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}
	if !snap.Pot.IsZero() {
		t.Fatalf("\nwanted:\n0\ngot:\n%s", snap.Pot)
	}
}

func TestStore_SurvivesRestart(t *testing.T) {
	ctx := context.Background()
	store, teardown := setupTestDB(t)
	defer teardown()

	clk := newClock()
	l := openLedger(t, store, clk)

	for _, u := range []string{"alice", "bob"} {
		if _, err := l.OpenAccount(ctx, u, decimal.RequireFromString("100.50")); err != nil {
			t.Fatalf("OpenAccount(%s): %v", u, err)
		}
	}
	if _, err := l.PurchaseTickets(ctx, "alice", 5); err != nil {
		t.Fatalf("PurchaseTickets: %v", err)
	}
	if _, err := l.PurchaseTickets(ctx, "bob", 3); err != nil {
		t.Fatalf("PurchaseTickets: %v", err)
	}
	if _, err := l.DebitTickets(ctx, "bob", 1); err != nil {
		t.Fatalf("DebitTickets: %v", err)
	}

	for _, id := range []string{"p1", "p2"} {
		_, err := l.CreateProposal(ctx, models.NewProposal{
			ID:        id,
			Options:   []string{"Yes", "No", "Abstain"},
			OpenTime:  epoch.Add(-time.Hour),
			CloseTime: epoch.Add(time.Hour),
		})
		if err != nil {
			t.Fatalf("CreateProposal(%s): %v", id, err)
		}
	}
	_, err := l.CreateProposal(ctx, models.NewProposal{
		ID:        "later",
		Options:   []string{"A", "B"},
		OpenTime:  epoch.Add(30 * time.Minute),
		CloseTime: epoch.Add(2 * time.Hour),
	})
	if err != nil {
		t.Fatalf("CreateProposal(later): %v", err)
	}

	steps := []struct {
		user, proposal, option string
		tickets                int64
	}{
		{"alice", "p1", "Yes", 2},
		{"alice", "p1", "No", 3}, // re-vote
		{"alice", "p2", "Abstain", 1},
		{"bob", "p1", "Yes", 2},
	}
	for _, s := range steps {
		if _, err := l.CastVote(ctx, s.user, s.proposal, s.option, s.tickets); err != nil {
			t.Fatalf("CastVote(%+v): %v", s, err)
		}
	}
	if _, err := l.WithdrawVote(ctx, "alice", "p2"); err != nil {
		t.Fatalf("WithdrawVote: %v", err)
	}
	if _, err := l.CloseProposal(ctx, "p2"); err != nil {
		t.Fatalf("CloseProposal: %v", err)
	}

	clk.Set(epoch.Add(45 * time.Minute))
	if n, err := l.Sweep(ctx); err != nil || n != 1 {
		t.Fatalf("\nwanted:\n1 transition, nil\ngot:\n%d, %v", n, err)
	}

	restarted := openLedger(t, store, clk)

	tests := []struct {
		user    string
		balance string
		tickets int64
	}{
		{"alice", "75.5", 2},
		{"bob", "91.5", 0},
	}
	for _, tt := range tests {
		bal, err := restarted.GetBalance(tt.user)
		if err != nil {
			t.Fatalf("GetBalance(%s): %v", tt.user, err)
		}
		if bal.DonationBalance.String() != tt.balance || bal.VotingTickets != tt.tickets {
			t.Fatalf("\nwanted:\n%s %s/%d\ngot:\n%s/%d", tt.user, tt.balance, tt.tickets, bal.DonationBalance, bal.VotingTickets)
		}
	}

	p1, err := restarted.GetProposal("p1")
	if err != nil {
		t.Fatalf("GetProposal(p1): %v", err)
	}
	wantTally := map[string]int64{"Yes": 2, "No": 3, "Abstain": 0}
	for option, want := range wantTally {
		if p1.Tally[option] != want {
			t.Fatalf("\nwanted:\n%v\ngot:\n%v", wantTally, p1.Tally)
		}
	}
	if got := p1.Options; len(got) != 3 || got[0] != "Yes" || got[1] != "No" || got[2] != "Abstain" {
		t.Fatalf("option order not preserved: %v", got)
	}

	p2, err := restarted.GetProposal("p2")
	if err != nil {
		t.Fatalf("GetProposal(p2): %v", err)
	}
	if p2.Status != models.StatusClosed || p2.ClosedAt == nil || !p2.ClosedAt.Equal(epoch) {
		t.Fatalf("p2 should be closed at %v, got %s %v", epoch, p2.Status, p2.ClosedAt)
	}

	later, err := restarted.GetProposal("later")
	if err != nil {
		t.Fatalf("GetProposal(later): %v", err)
	}
	if later.Status != models.StatusActive {
		t.Fatalf("\nwanted:\n%s\ngot:\n%s", models.StatusActive, later.Status)
	}

	allocs, err := restarted.Allocations("alice")
	if err != nil {
		t.Fatalf("Allocations: %v", err)
	}
	if len(allocs) != 1 || allocs[0].Option != "No" || allocs[0].Tickets != 3 {
		t.Fatalf("unexpected allocations after restart: %+v", allocs)
	}

	if got := restarted.Pot().String(); got != "34" {
		t.Fatalf("\nwanted:\n34\ngot:\n%s", got)
	}

	// The restarted ledger keeps writing on top of the stored versions.
	if _, err := restarted.CastVote(ctx, "alice", "p1", "Abstain", 4); err != nil {
		t.Fatalf("CastVote after restart: %v", err)
	}

	var events int
	if err := store.conn.Get(&events, "SELECT COUNT(*) FROM ledger_event"); err != nil {
		t.Fatalf("counting events: %v", err)
	}
	if events != 9 {
		t.Fatalf("\nwanted:\n9 events\ngot:\n%d", events)
	}
}

func TestStore_VersionConflict(t *testing.T) {
	ctx := context.Background()
	store, teardown := setupTestDB(t)
	defer teardown()

	acct := models.Account{UserID: "alice", DonationBalance: decimal.NewFromInt(100), Version: 1, CreatedAt: epoch}
	if err := store.InsertAccount(ctx, acct); err != nil {
		t.Fatalf("InsertAccount: %v", err)
	}

	stale := acct
	stale.DonationBalance = decimal.NewFromInt(91)
	stale.VotingTickets = 3
	stale.Version = 3

	err := store.SavePurchase(ctx, ledger.Purchase{
		EventID: uuid.New(),
		Account: stale,
		Tickets: 3,
		Cost:    decimal.NewFromInt(9),
		At:      epoch,
	})
	if !errors.Is(err, ledger.ErrConcurrentUpdateConflict) {
		t.Fatalf("\nwanted:\n%v\ngot:\n%v", ledger.ErrConcurrentUpdateConflict, err)
	}

	var events int
	if err := store.conn.Get(&events, "SELECT COUNT(*) FROM ledger_event"); err != nil {
		t.Fatalf("counting events: %v", err)
	}
	if events != 0 {
		t.Fatalf("conflicting purchase left %d events behind", events)
	}
}

func TestStore_TwoLedgersOneDatabase(t *testing.T) {
	ctx := context.Background()
	store, teardown := setupTestDB(t)
	defer teardown()

	first := openLedger(t, store, newClock())
	if _, err := first.OpenAccount(ctx, "alice", decimal.NewFromInt(100)); err != nil {
		t.Fatalf("OpenAccount: %v", err)
	}

	second := openLedger(t, store, newClock())

	if _, err := first.PurchaseTickets(ctx, "alice", 2); err != nil {
		t.Fatalf("PurchaseTickets on first: %v", err)
	}
	_, err := second.PurchaseTickets(ctx, "alice", 2)
	if ledger.Kind(err) != "concurrent_update_conflict" {
		t.Fatalf("\nwanted:\nconcurrent_update_conflict\ngot:\n%v", err)
	}

	bal, err := second.GetBalance("alice")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if bal.VotingTickets != 0 {
		t.Fatalf("stale ledger changed memory after a conflict: %+v", bal)
	}
}

func TestStore_SaveVoteRollsBack(t *testing.T) {
	ctx := context.Background()
	store, teardown := setupTestDB(t)
	defer teardown()

	acct := models.Account{UserID: "alice", DonationBalance: decimal.Zero, VotingTickets: 5, Version: 1, CreatedAt: epoch}
	if err := store.InsertAccount(ctx, acct); err != nil {
		t.Fatalf("InsertAccount: %v", err)
	}
	err := store.InsertProposal(ctx, models.Proposal{
		ID:        "p1",
		Options:   []string{"Yes"},
		Status:    models.StatusActive,
		OpenTime:  epoch,
		CloseTime: epoch.Add(time.Hour),
		Tally:     map[string]int64{"Yes": 0},
	})
	if err != nil {
		t.Fatalf("InsertProposal: %v", err)
	}

	next := acct
	next.VotingTickets = 3
	next.Version = 2
	err = store.SaveVote(ctx, ledger.VoteChange{
		EventID: uuid.New(),
		Kind:    models.EventVote,
		Account: next,
		Next:    &models.VoteAllocation{UserID: "alice", ProposalID: "p1", Option: "Maybe", Tickets: 2, UpdatedAt: epoch},
		At:      epoch,
	})
	if err == nil {
		t.Fatal("expected an error for an unknown option")
	}

	snap, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := snap.Accounts[0]; got.Version != 1 || got.VotingTickets != 5 {
		t.Fatalf("account changed despite rollback: %+v", got)
	}
	if len(snap.Allocations) != 0 {
		t.Fatalf("allocation written despite rollback: %+v", snap.Allocations)
	}
}

func TestStore_SaveProposalStatusUnknown(t *testing.T) {
	store, teardown := setupTestDB(t)
	defer teardown()

	closedAt := epoch
	err := store.SaveProposalStatus(context.Background(), ledger.StatusChange{
		ProposalID: "missing",
		Status:     models.StatusClosed,
		ClosedAt:   &closedAt,
	})
	if err == nil {
		t.Fatal("expected error for unknown proposal")
	}
}

// seedJournal writes five chained events: two accounts, two purchases and a vote.
func seedJournal(t *testing.T, store *Store) {
	t.Helper()
	ctx := context.Background()
	l := openLedger(t, store, newClock())

	for _, u := range []string{"alice", "bob"} {
		if _, err := l.OpenAccount(ctx, u, decimal.NewFromInt(50)); err != nil {
			t.Fatalf("OpenAccount(%s): %v", u, err)
		}
	}
	if _, err := l.PurchaseTickets(ctx, "alice", 3); err != nil {
		t.Fatalf("PurchaseTickets: %v", err)
	}
	if _, err := l.PurchaseTickets(ctx, "bob", 2); err != nil {
		t.Fatalf("PurchaseTickets: %v", err)
	}
	if _, err := l.CreateProposal(ctx, models.NewProposal{
		ID:        "p1",
		Options:   []string{"Yes", "No"},
		OpenTime:  epoch.Add(-time.Minute),
		CloseTime: epoch.Add(time.Hour),
	}); err != nil {
		t.Fatalf("CreateProposal: %v", err)
	}
	if _, err := l.CastVote(ctx, "alice", "p1", "Yes", 2); err != nil {
		t.Fatalf("CastVote: %v", err)
	}
}

func TestStore_VerifyJournal(t *testing.T) {
	ctx := context.Background()

	t.Run("should verify an empty journal", func(t *testing.T) {
		store, teardown := setupTestDB(t)
		defer teardown()

		report, err := store.VerifyJournal(ctx)
		if err != nil {
			t.Fatalf("VerifyJournal: %v", err)
		}
		if !report.Valid || report.Events != 0 || report.Head != genesisHash {
			t.Fatalf("unexpected report for empty journal: %+v", report)
		}
	})

	t.Run("should chain every event to the one before it", func(t *testing.T) {
		store, teardown := setupTestDB(t)
		defer teardown()
		seedJournal(t, store)

		var events []dbEvent
		if err := store.conn.Select(&events, "SELECT id, kind, user_id, proposal_id, option_label, tickets, amount, created_at, seq, prev_hash, hash FROM ledger_event ORDER BY seq"); err != nil {
			t.Fatalf("loading events: %v", err)
		}
		if len(events) != 3 {
			t.Fatalf("\nwanted:\n3 events\ngot:\n%d", len(events))
		}
		prev := genesisHash
		for i, e := range events {
			if e.Seq != int64(i+1) {
				t.Fatalf("\nwanted:\nseq %d\ngot:\n%d", i+1, e.Seq)
			}
			if e.PrevHash != prev {
				t.Fatalf("event %d links to %s, wanted %s", e.Seq, e.PrevHash, prev)
			}
			prev = e.Hash
		}

		report, err := store.VerifyJournal(ctx)
		if err != nil {
			t.Fatalf("VerifyJournal: %v", err)
		}
		if !report.Valid || report.Events != 3 || report.Head != prev {
			t.Fatalf("unexpected report: %+v", report)
		}
	})

	t.Run("should not advance the head when a write rolls back", func(t *testing.T) {
		store, teardown := setupTestDB(t)
		defer teardown()

		acct := models.Account{UserID: "alice", DonationBalance: decimal.NewFromInt(100), Version: 1, CreatedAt: epoch}
		if err := store.InsertAccount(ctx, acct); err != nil {
			t.Fatalf("InsertAccount: %v", err)
		}
		stale := acct
		stale.Version = 5
		if err := store.SavePurchase(ctx, ledger.Purchase{EventID: uuid.New(), Account: stale, Tickets: 1, Cost: decimal.NewFromInt(1), At: epoch}); err == nil {
			t.Fatal("expected a version conflict")
		}

		var head journalHead
		if err := store.conn.Get(&head, "SELECT seq, hash FROM journal_head WHERE id = 1"); err != nil {
			t.Fatalf("journal_head: %v", err)
		}
		if head.Seq != 0 {
			t.Fatalf("\nwanted:\nseq 0\ngot:\n%d", head.Seq)
		}
	})

	t.Run("should catch an edited event", func(t *testing.T) {
		store, teardown := setupTestDB(t)
		defer teardown()
		seedJournal(t, store)

		if _, err := store.conn.Exec("UPDATE ledger_event SET tickets = 30 WHERE seq = 2"); err != nil {
			t.Fatalf("editing event: %v", err)
		}

		report, err := store.VerifyJournal(ctx)
		if err != nil {
			t.Fatalf("VerifyJournal: %v", err)
		}
		if report.Valid || report.BrokenAt != 2 {
			t.Fatalf("\nwanted:\nbroken at 2\ngot:\n%+v", report)
		}
	})

	t.Run("should catch an edited event whose hash was recomputed", func(t *testing.T) {
		store, teardown := setupTestDB(t)
		defer teardown()
		seedJournal(t, store)

		var e dbEvent
		if err := store.conn.Get(&e, "SELECT id, kind, user_id, proposal_id, option_label, tickets, amount, created_at, seq, prev_hash, hash FROM ledger_event WHERE seq = 1"); err != nil {
			t.Fatalf("loading event: %v", err)
		}
		e.Tickets = 300
		if _, err := store.conn.Exec("UPDATE ledger_event SET tickets = ?, hash = ? WHERE seq = 1", e.Tickets, eventHash(e)); err != nil {
			t.Fatalf("rewriting event: %v", err)
		}

		report, err := store.VerifyJournal(ctx)
		if err != nil {
			t.Fatalf("VerifyJournal: %v", err)
		}
		if report.Valid || report.BrokenAt != 2 {
			t.Fatalf("\nwanted:\nbroken at 2\ngot:\n%+v", report)
		}
	})

	t.Run("should catch a removed event", func(t *testing.T) {
		store, teardown := setupTestDB(t)
		defer teardown()
		seedJournal(t, store)

		if _, err := store.conn.Exec("DELETE FROM ledger_event WHERE seq = 2"); err != nil {
			t.Fatalf("deleting event: %v", err)
		}

		report, err := store.VerifyJournal(ctx)
		if err != nil {
			t.Fatalf("VerifyJournal: %v", err)
		}
		if report.Valid || report.BrokenAt != 2 || report.Reason != "event missing" {
			t.Fatalf("\nwanted:\nevent 2 missing\ngot:\n%+v", report)
		}
	})

	t.Run("should catch a truncated tail", func(t *testing.T) {
		store, teardown := setupTestDB(t)
		defer teardown()
		seedJournal(t, store)

		if _, err := store.conn.Exec("DELETE FROM ledger_event WHERE seq = 3"); err != nil {
			t.Fatalf("deleting event: %v", err)
		}

		report, err := store.VerifyJournal(ctx)
		if err != nil {
			t.Fatalf("VerifyJournal: %v", err)
		}
		if report.Valid || report.BrokenAt != 3 {
			t.Fatalf("\nwanted:\nbroken at 3\ngot:\n%+v", report)
		}
	})
}
