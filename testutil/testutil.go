// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielhkuo/ticket-vote/auth"
	"github.com/danielhkuo/ticket-vote/cliparse"
	"github.com/danielhkuo/ticket-vote/db"
	"github.com/danielhkuo/ticket-vote/ledger"
	"github.com/danielhkuo/ticket-vote/middleware"
	"github.com/danielhkuo/ticket-vote/models"
	"github.com/shopspring/decimal"
)

// Epoch is the time test clocks start at
var Epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// SetupTestLedger creates an in-memory ledger with a fake clock set to Epoch
func SetupTestLedger(t *testing.T, options ...ledger.Option) (*ledger.Ledger, *ledger.Clock) {
	t.Helper()

	clk := &ledger.Clock{}
	clk.Set(Epoch)

	base := []ledger.Option{
		ledger.WithClock(clk),
		ledger.WithLogger(slog.New(slog.DiscardHandler)),
	}
	l, err := ledger.New(append(base, options...)...)
	if err != nil {
		t.Fatalf("Failed to create test ledger: %v", err)
	}
	return l, clk
}

// SetupTestStore creates a migrated sqlite store in a temp dir
func SetupTestStore(t *testing.T) *db.Store {
	t.Helper()

	conn, err := db.Connect(db.TypeSQLite, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	store := db.NewStore(conn)
	t.Cleanup(func() { store.Close() })
	return store
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:         3318,
		DatabaseURL:  ":memory:",
		DatabaseType: db.TypeSQLite,
		AdminKeySalt: "test-admin-salt",
		Economy: cliparse.Economy{
			TicketCap:     ledger.DefaultTicketCap,
			MaxPurchase:   ledger.DefaultMaxPurchase,
			SweepInterval: 30 * time.Second,
		},
	}
}

// AdminHeaders returns headers carrying a valid admin key for cfg
func AdminHeaders(cfg cliparse.Config) map[string]string {
	return map[string]string{
		middleware.AdminKeyHeader: auth.GenerateAdminKey(auth.AdminScope, cfg.AdminKeySalt),
	}
}

// CreateTestAccount opens an account holding balance and no tickets
func CreateTestAccount(t *testing.T, l *ledger.Ledger, userID string, balance int64) {
	t.Helper()

	if _, err := l.OpenAccount(context.Background(), userID, decimal.NewFromInt(balance)); err != nil {
		t.Fatalf("Failed to create test account: %v", err)
	}
}

// FundTestAccount opens an account and buys tickets with exactly enough balance
func FundTestAccount(t *testing.T, l *ledger.Ledger, userID string, tickets int64) {
	t.Helper()

	CreateTestAccount(t, l, userID, tickets*tickets)
	if _, err := l.PurchaseTickets(context.Background(), userID, tickets); err != nil {
		t.Fatalf("Failed to buy test tickets: %v", err)
	}
}

// CreateTestProposal creates a proposal relative to the ledger clock
// status should be "pending", "active", or "closed"
func CreateTestProposal(t *testing.T, l *ledger.Ledger, clk *ledger.Clock, id, status string, options ...string) {
	t.Helper()

	if len(options) == 0 {
		options = []string{"Yes", "No"}
	}
	now := clk.Time()
	np := models.NewProposal{
		ID:        id,
		Options:   options,
		OpenTime:  now.Add(-time.Hour),
		CloseTime: now.Add(time.Hour),
	}
	if status == models.StatusPending {
		np.OpenTime = now.Add(time.Hour)
		np.CloseTime = now.Add(2 * time.Hour)
	}

	ctx := context.Background()
	if _, err := l.CreateProposal(ctx, np); err != nil {
		t.Fatalf("Failed to create test proposal: %v", err)
	}
	if status == models.StatusClosed {
		if _, err := l.CloseProposal(ctx, id); err != nil {
			t.Fatalf("Failed to close test proposal: %v", err)
		}
	}
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body any, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		var payload []byte
		if raw, ok := body.(string); ok {
			payload = []byte(raw)
		} else {
			payload, _ = json.Marshal(body)
		}
		req = httptest.NewRequest(method, path, bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}

// AssertErrorCode checks status and the code field of an error response
func AssertErrorCode(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	AssertStatus(t, w, status)

	var resp models.ErrorResponse
	AssertJSON(t, w, &resp)
	if resp.Code != code {
		t.Errorf("Expected code %q, got %q (message: %s)", code, resp.Code, resp.Message)
	}
}
