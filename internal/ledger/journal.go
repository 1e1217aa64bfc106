package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// PostEntryTx validates and persists a posted journal entry inside tx. Callers
// that also mutate business documents pass their own transaction so the entry
// commits or rolls back together with them.
func (s *Service) PostEntryTx(ctx context.Context, tx TxRepository, input PostingInput) (JournalEntry, error) {
	input.Lines = roundLines(input.Lines)
	if err := input.Validate(); err != nil {
		return JournalEntry{}, err
	}
	seen := make(map[int64]struct{}, len(input.Lines))
	for idx, line := range input.Lines {
		if _, ok := seen[line.AccountID]; ok {
			continue
		}
		acc, err := tx.GetAccount(ctx, line.AccountID)
		if err != nil {
			return JournalEntry{}, fmt.Errorf("line %d: %w", idx, err)
		}
		if !acc.Postable() {
			return JournalEntry{}, shared.Validationf("line %d account %s is not postable", idx, acc.Code)
		}
		seen[line.AccountID] = struct{}{}
	}

	now := s.now()
	last, err := tx.LastEntryNumber(ctx, MonthPrefix(PrefixJournal, now))
	if err != nil {
		return JournalEntry{}, err
	}
	entry, err := tx.InsertJournalEntry(ctx, JournalEntry{
		EntryNumber:   NextNumber(PrefixJournal, now, last),
		EntryDate:     input.EntryDate,
		ReferenceType: input.ReferenceType,
		ReferenceID:   input.ReferenceID,
		Narration:     input.Narration,
		IsPosted:      true,
		CreatedBy:     input.CreatedBy,
		CreatedAt:     now,
	})
	if err != nil {
		return JournalEntry{}, err
	}
	lines, err := tx.InsertJournalLines(ctx, entry.ID, input.Lines)
	if err != nil {
		return JournalEntry{}, err
	}
	entry.Lines = lines
	return entry, nil
}

// PostEntry posts a standalone journal entry in its own transaction.
func (s *Service) PostEntry(ctx context.Context, input PostingInput) (JournalEntry, error) {
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, err = s.PostEntryTx(ctx, tx, input)
		return err
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.logger().Info("journal posted",
		slog.String("number", entry.EntryNumber),
		slog.String("reference_type", string(entry.ReferenceType)),
		slog.Int64("reference_id", entry.ReferenceID),
	)
	return entry, nil
}

// ReverseEntryTx removes an entry and its lines inside tx and returns what was
// removed so the caller can record it once the transaction commits.
func (s *Service) ReverseEntryTx(ctx context.Context, tx TxRepository, entryID int64) (JournalEntry, error) {
	entry, err := tx.GetJournalWithLines(ctx, entryID)
	if err != nil {
		return JournalEntry{}, err
	}
	if err := tx.DeleteJournalLines(ctx, entryID); err != nil {
		return JournalEntry{}, err
	}
	if err := tx.DeleteJournalEntry(ctx, entryID); err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

// ReverseReferenceTx removes every entry produced by one business event.
func (s *Service) ReverseReferenceTx(ctx context.Context, tx TxRepository, refType ReferenceType, refID int64) ([]JournalEntry, error) {
	entries, err := tx.ListEntriesByReference(ctx, refType, refID)
	if err != nil {
		return nil, err
	}
	removed := make([]JournalEntry, 0, len(entries))
	for _, entry := range entries {
		rev, err := s.ReverseEntryTx(ctx, tx, entry.ID)
		if err != nil {
			return nil, err
		}
		removed = append(removed, rev)
	}
	return removed, nil
}

// ReverseEntry removes one journal entry in its own transaction.
func (s *Service) ReverseEntry(ctx context.Context, actorID, entryID int64) error {
	var removed JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		removed, err = s.ReverseEntryTx(ctx, tx, entryID)
		return err
	})
	if err != nil {
		return err
	}
	s.RecordReversals(ctx, actorID, removed)
	return nil
}

// RecordReversals writes removed entries to the audit trail. Failures are
// logged; the reversal itself already committed.
func (s *Service) RecordReversals(ctx context.Context, actorID int64, entries ...JournalEntry) {
	for _, entry := range entries {
		lines := make([]map[string]any, 0, len(entry.Lines))
		for _, line := range entry.Lines {
			lines = append(lines, map[string]any{
				"account_id": line.AccountID,
				"debit":      line.Debit,
				"credit":     line.Credit,
				"memo":       line.Description,
			})
		}
		s.record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "journal.reverse",
			Entity:   "journal_entry",
			EntityID: entry.EntryNumber,
			Meta: map[string]any{
				"reference_type": entry.ReferenceType,
				"reference_id":   entry.ReferenceID,
				"entry_date":     entry.EntryDate.Format("2006-01-02"),
				"lines":          lines,
			},
			At: s.now(),
		})
		s.logger().Info("journal reversed",
			slog.String("number", entry.EntryNumber),
			slog.String("reference_type", string(entry.ReferenceType)),
			slog.Int64("reference_id", entry.ReferenceID),
		)
	}
}

// GetEntry loads an entry with its lines.
func (s *Service) GetEntry(ctx context.Context, entryID int64) (JournalEntry, error) {
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, err = tx.GetJournalWithLines(ctx, entryID)
		return err
	})
	return entry, err
}

// EntriesByReference lists the entries produced by one business event.
func (s *Service) EntriesByReference(ctx context.Context, refType ReferenceType, refID int64) ([]JournalEntry, error) {
	var entries []JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entries, err = tx.ListEntriesByReference(ctx, refType, refID)
		return err
	})
	return entries, err
}

func roundLines(lines []PostingLine) []PostingLine {
	out := make([]PostingLine, len(lines))
	for i, line := range lines {
		line.Debit = shared.Round2(line.Debit)
		line.Credit = shared.Round2(line.Credit)
		out[i] = line
	}
	return out
}
