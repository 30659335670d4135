// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ledger

import (
	"context"
	"fmt"

	"github.com/danielhkuo/ticket-vote/models"
)

// VerifyJournal checks that the store's event chain is intact: every event
// links to the hash of the one before it and still hashes to its stored
// value. An in-memory ledger has no journal and always verifies.
func (l *Ledger) VerifyJournal(ctx context.Context) (models.JournalReport, error) {
	report, err := l.store.VerifyJournal(ctx)
	if err != nil {
		return models.JournalReport{}, fmt.Errorf("verifying journal: %w", err)
	}

	if !report.Valid {
		l.log.Warn("journal verification failed",
			"events", report.Events,
			"broken_at", report.BrokenAt,
			"reason", report.Reason,
		)
	}
	return report, nil
}
