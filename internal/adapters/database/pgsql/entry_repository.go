package pgsql

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/transitcore/finance_backend/internal/apperrors"
	"github.com/transitcore/finance_backend/internal/core/domain"
	portsrepo "github.com/transitcore/finance_backend/internal/core/ports/repositories"
	"github.com/transitcore/finance_backend/internal/utils/pagination"
)

const entryColumns = `entry_id, code, transaction_date, posting_date, reference, description,
		       entry_type, status, reversed_by_id, original_entry_id,
		       created_at, created_by, last_updated_at, last_updated_by,
		       posted_at, posted_by`

type PgxEntryRepository struct {
	pool *pgxpool.Pool
}

// NewPgxEntryRepository creates a new repository for journal entry and line data.
func NewPgxEntryRepository(pool *pgxpool.Pool) portsrepo.EntryRepositoryFacade {
	return &PgxEntryRepository{pool: pool}
}

var _ portsrepo.EntryRepositoryFacade = (*PgxEntryRepository)(nil)

func scanEntry(row pgx.Row) (*domain.JournalEntry, error) {
	var entry domain.JournalEntry
	err := row.Scan(
		&entry.EntryID,
		&entry.Code,
		&entry.TransactionDate,
		&entry.PostingDate,
		&entry.Reference,
		&entry.Description,
		&entry.EntryType,
		&entry.Status,
		&entry.ReversedByID,
		&entry.OriginalEntryID,
		&entry.CreatedAt,
		&entry.CreatedBy,
		&entry.LastUpdatedAt,
		&entry.LastUpdatedBy,
		&entry.PostedAt,
		&entry.PostedBy,
	)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// NextEntryCode allocates the next code for the year through an upsert on the
// per-year counter table, so every caller gets a distinct sequence number.
func (r *PgxEntryRepository) NextEntryCode(ctx context.Context, year int) (string, error) {
	query := `
		INSERT INTO entry_code_counters (year, counter)
		VALUES ($1, 1)
		ON CONFLICT (year) DO UPDATE SET counter = entry_code_counters.counter + 1
		RETURNING counter;
	`
	var counter int64
	if err := r.pool.QueryRow(ctx, query, year).Scan(&counter); err != nil {
		return "", fmt.Errorf("failed to allocate entry code for year %d: %w", year, err)
	}
	return fmt.Sprintf("JV-%d-%03d", year, counter), nil
}

// SaveEntry saves an entry and its lines within a DB transaction.
func (r *PgxEntryRepository) SaveEntry(ctx context.Context, entry domain.JournalEntry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	entryQuery := `
		INSERT INTO journal_entries (entry_id, code, transaction_date, posting_date, reference, description,
		                             entry_type, status, reversed_by_id, original_entry_id,
		                             created_at, created_by, last_updated_at, last_updated_by, posted_at, posted_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16);
	`
	_, err = tx.Exec(ctx, entryQuery,
		entry.EntryID,
		entry.Code,
		entry.TransactionDate,
		entry.PostingDate,
		entry.Reference,
		entry.Description,
		entry.EntryType,
		entry.Status,
		entry.ReversedByID,
		entry.OriginalEntryID,
		entry.CreatedAt,
		entry.CreatedBy,
		entry.LastUpdatedAt,
		entry.LastUpdatedBy,
		entry.PostedAt,
		entry.PostedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to insert entry %s: %w", entry.EntryID, err)
	}

	if err := queueLineInserts(ctx, tx, entry); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction for entry %s: %w", entry.EntryID, err)
	}
	return nil
}

func queueLineInserts(ctx context.Context, tx pgx.Tx, entry domain.JournalEntry) error {
	batch := &pgx.Batch{}
	lineQuery := `
		INSERT INTO journal_lines (line_id, entry_id, account_id, line_number, description, debit_amount, credit_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7);
	`
	for _, line := range entry.Lines {
		batch.Queue(lineQuery,
			line.LineID,
			entry.EntryID,
			line.AccountID,
			line.LineNumber,
			line.Description,
			line.DebitAmount,
			line.CreditAmount,
		)
	}
	br := tx.SendBatch(ctx, batch)
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to execute line batch for entry %s: %w", entry.EntryID, err)
	}
	return nil
}

// FindEntryByID retrieves an entry header by its ID. Soft-deleted drafts are
// treated as gone.
func (r *PgxEntryRepository) FindEntryByID(ctx context.Context, entryID string) (*domain.JournalEntry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM journal_entries
		WHERE entry_id = $1 AND deleted_at IS NULL;
	`
	entry, err := scanEntry(r.pool.QueryRow(ctx, query, entryID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find entry by ID %s: %w", entryID, err)
	}
	return entry, nil
}

// FindLinesByEntryID retrieves the lines of one entry ordered by line number.
func (r *PgxEntryRepository) FindLinesByEntryID(ctx context.Context, entryID string) ([]domain.JournalLine, error) {
	query := `
		SELECT line_id, entry_id, account_id, line_number, description, debit_amount, credit_amount
		FROM journal_lines
		WHERE entry_id = $1
		ORDER BY line_number;
	`
	rows, err := r.pool.Query(ctx, query, entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to query lines for entry %s: %w", entryID, err)
	}
	defer rows.Close()

	lines := []domain.JournalLine{}
	for rows.Next() {
		var line domain.JournalLine
		if err := rows.Scan(
			&line.LineID,
			&line.EntryID,
			&line.AccountID,
			&line.LineNumber,
			&line.Description,
			&line.DebitAmount,
			&line.CreditAmount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan line row for entry %s: %w", entryID, err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating line rows for entry %s: %w", entryID, err)
	}
	return lines, nil
}

// ListEntries retrieves a filtered page of entry headers using token-based
// pagination. Ordering is transaction_date DESC with created_at DESC as the
// tie-breaker, which the cursor token mirrors.
func (r *PgxEntryRepository) ListEntries(ctx context.Context, filter portsrepo.ListEntriesFilter) ([]domain.JournalEntry, *string, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	// Fetch one extra row to know whether a next page exists.
	fetchLimit := limit + 1

	baseQuery := `
		SELECT ` + entryColumns + `
		FROM journal_entries
	`
	filterClause := `WHERE deleted_at IS NULL`
	args := []interface{}{}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		filterClause += ` AND status = $` + strconv.Itoa(len(args))
	}
	if filter.EntryType != nil {
		args = append(args, *filter.EntryType)
		filterClause += ` AND entry_type = $` + strconv.Itoa(len(args))
	}
	if !filter.IncludeReversals {
		filterClause += ` AND original_entry_id IS NULL`
	}

	orderByClause := `ORDER BY transaction_date DESC, created_at DESC`

	if filter.NextToken != nil && *filter.NextToken != "" {
		lastDate, lastCreatedAt, decodeErr := pagination.DecodeToken(*filter.NextToken)
		if decodeErr != nil {
			return nil, nil, fmt.Errorf("%w: invalid nextToken", apperrors.ErrValidation)
		}
		args = append(args, lastDate, lastCreatedAt)
		filterClause += fmt.Sprintf(` AND (transaction_date, created_at) < ($%d, $%d)`, len(args)-1, len(args))
	}

	args = append(args, fetchLimit)
	query := baseQuery + " " + filterClause + " " + orderByClause + " LIMIT $" + strconv.Itoa(len(args)) + ";"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	entries := []domain.JournalEntry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scan entry row: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating entry rows: %w", err)
	}

	var nextToken *string
	if len(entries) > limit {
		entries = entries[:limit]
		last := entries[len(entries)-1]
		token := pagination.EncodeToken(last.TransactionDate, last.CreatedAt)
		nextToken = &token
	}
	return entries, nextToken, nil
}

// UpdateDraft replaces the header fields and lines of a draft entry. The
// status predicate in the UPDATE is the concurrency guard: zero affected rows
// means the entry stopped being an editable draft underneath us.
func (r *PgxEntryRepository) UpdateDraft(ctx context.Context, entry domain.JournalEntry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	updateQuery := `
		UPDATE journal_entries
		SET transaction_date = $2, reference = $3, description = $4, entry_type = $5,
		    last_updated_at = $6, last_updated_by = $7
		WHERE entry_id = $1 AND status = 'DRAFT' AND deleted_at IS NULL;
	`
	tag, err := tx.Exec(ctx, updateQuery,
		entry.EntryID,
		entry.TransactionDate,
		entry.Reference,
		entry.Description,
		entry.EntryType,
		entry.LastUpdatedAt,
		entry.LastUpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to update entry %s: %w", entry.EntryID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrConcurrency
	}

	if _, err := tx.Exec(ctx, `DELETE FROM journal_lines WHERE entry_id = $1;`, entry.EntryID); err != nil {
		return fmt.Errorf("failed to clear lines for entry %s: %w", entry.EntryID, err)
	}
	if err := queueLineInserts(ctx, tx, entry); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit update for entry %s: %w", entry.EntryID, err)
	}
	return nil
}

// MarkPosted transitions a draft entry to Posted, stamping the posting fields.
func (r *PgxEntryRepository) MarkPosted(ctx context.Context, entryID string, postingDate time.Time, userID string, now time.Time) error {
	query := `
		UPDATE journal_entries
		SET status = 'POSTED', posting_date = $2, posted_at = $3, posted_by = $4,
		    last_updated_at = $3, last_updated_by = $4
		WHERE entry_id = $1 AND status = 'DRAFT' AND deleted_at IS NULL;
	`
	tag, err := r.pool.Exec(ctx, query, entryID, postingDate, now, userID)
	if err != nil {
		return fmt.Errorf("failed to mark entry %s posted: %w", entryID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrConcurrency
	}
	return nil
}

// SoftDeleteDraft marks a draft entry deleted with the given reason.
func (r *PgxEntryRepository) SoftDeleteDraft(ctx context.Context, entryID string, reason string, userID string, now time.Time) error {
	query := `
		UPDATE journal_entries
		SET deleted_at = $2, deleted_by = $3, delete_reason = $4,
		    last_updated_at = $2, last_updated_by = $3
		WHERE entry_id = $1 AND status = 'DRAFT' AND deleted_at IS NULL;
	`
	tag, err := r.pool.Exec(ctx, query, entryID, now, userID, reason)
	if err != nil {
		return fmt.Errorf("failed to soft delete entry %s: %w", entryID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrConcurrency
	}
	return nil
}

// SaveReversal persists the reversal entry with its lines and flips the
// original to Reversed in one transaction. The status predicate on the
// original's UPDATE makes the whole operation first-writer-wins.
func (r *PgxEntryRepository) SaveReversal(ctx context.Context, reversal domain.JournalEntry, originalEntryID string, userID string, now time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	linkQuery := `
		UPDATE journal_entries
		SET status = 'REVERSED', reversed_by_id = $2, last_updated_at = $3, last_updated_by = $4
		WHERE entry_id = $1 AND status = 'POSTED';
	`
	tag, err := tx.Exec(ctx, linkQuery, originalEntryID, reversal.EntryID, now, userID)
	if err != nil {
		return fmt.Errorf("failed to mark entry %s reversed: %w", originalEntryID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrConcurrency
	}

	entryQuery := `
		INSERT INTO journal_entries (entry_id, code, transaction_date, posting_date, reference, description,
		                             entry_type, status, reversed_by_id, original_entry_id,
		                             created_at, created_by, last_updated_at, last_updated_by, posted_at, posted_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16);
	`
	_, err = tx.Exec(ctx, entryQuery,
		reversal.EntryID,
		reversal.Code,
		reversal.TransactionDate,
		reversal.PostingDate,
		reversal.Reference,
		reversal.Description,
		reversal.EntryType,
		reversal.Status,
		reversal.ReversedByID,
		reversal.OriginalEntryID,
		reversal.CreatedAt,
		reversal.CreatedBy,
		reversal.LastUpdatedAt,
		reversal.LastUpdatedBy,
		reversal.PostedAt,
		reversal.PostedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to insert reversal %s: %w", reversal.EntryID, err)
	}

	if err := queueLineInserts(ctx, tx, reversal); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit reversal for entry %s: %w", originalEntryID, err)
	}
	return nil
}
