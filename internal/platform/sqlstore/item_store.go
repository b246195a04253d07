package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dimaystinov/bot-hnushka/internal/domain"
	"github.com/dimaystinov/bot-hnushka/internal/platform/logger"
	"github.com/dimaystinov/bot-hnushka/internal/store"
)

const entityName = "work item"

const itemColumns = `id, owner_ref, source_locator, media_kind, language_hint, status,
	queued_at, started_at, completed_at, transcript, category, confidence,
	extracted_record, failure_reason, raw_model_output, updated_at`

const (
	insertItemQuery = `INSERT INTO work_items (` + itemColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	updateItemQuery = `UPDATE work_items
	SET status = ?, started_at = ?, completed_at = ?, transcript = ?, category = ?,
		confidence = ?, extracted_record = ?, failure_reason = ?, raw_model_output = ?,
		updated_at = ?
	WHERE id = ?`

	selectItemQuery = `SELECT ` + itemColumns + ` FROM work_items WHERE id = ?`

	// id only breaks ties between equal queued_at values. It is a random
	// UUID, so such items dequeue in no particular order.
	selectNextQueuedQuery = `SELECT ` + itemColumns + ` FROM work_items
	WHERE status = ?
	ORDER BY queued_at ASC, id ASC
	LIMIT 1`

	listByOwnerQuery = `SELECT ` + itemColumns + ` FROM work_items
	WHERE owner_ref = ?
	ORDER BY queued_at DESC`

	countActiveQuery = `SELECT COUNT(*) FROM work_items
	WHERE owner_ref = ? AND status NOT IN (?, ?)`

	failInFlightQuery = `UPDATE work_items
	SET status = ?, failure_reason = ?, completed_at = ?, updated_at = ?
	WHERE status IN (?, ?, ?)`
)

// ItemStore implements the runner's item store on a SQL database.
type ItemStore struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
}

// NewItemStore creates an ItemStore. The schema must already be migrated.
func NewItemStore(db *sql.DB, dialect Dialect, logger *slog.Logger) *ItemStore {
	return &ItemStore{
		db:      db,
		dialect: dialect,
		logger:  logger.With("component", "item_store", "dialect", dialect.Name),
	}
}

// Create inserts a new item.
func (s *ItemStore) Create(ctx context.Context, item *domain.WorkItem) error {
	if err := item.Validate(); err != nil {
		return store.NewStoreError(entityName, "create", fmt.Errorf("%w: %w", store.ErrInvalidEntity, err))
	}

	_, err := s.db.ExecContext(ctx, s.dialect.Rebind(insertItemQuery), insertArgs(item)...)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to insert work item",
			"item_id", item.ID,
			"error", err)
		return store.NewStoreError(entityName, "create", MapError(err))
	}
	return nil
}

// Claim moves the oldest queued item to transcribing inside a transaction
// and returns it. On postgres the row is locked with SKIP LOCKED so
// concurrent claimers never take the same item.
func (s *ItemStore) Claim(ctx context.Context) (*domain.WorkItem, error) {
	var claimed *domain.WorkItem

	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		query := s.dialect.Rebind(selectNextQueuedQuery + s.dialect.LockClause)
		item, err := scanItem(tx.QueryRowContext(ctx, query, string(domain.StatusQueued)))
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNothingQueued
		}
		if err != nil {
			return MapError(err)
		}

		if err := item.Advance(domain.StatusTranscribing); err != nil {
			return err
		}
		if err := s.update(ctx, tx, item, domain.StatusQueued); err != nil {
			if errors.Is(err, store.ErrItemNotFound) {
				return store.ErrNothingQueued
			}
			return err
		}

		claimed = item
		return nil
	})
	if errors.Is(err, store.ErrNothingQueued) {
		return nil, store.ErrNothingQueued
	}
	if err != nil {
		return nil, store.NewStoreError(entityName, "claim", err)
	}
	return claimed, nil
}

// Update writes the item's mutable fields.
func (s *ItemStore) Update(ctx context.Context, item *domain.WorkItem) error {
	if err := item.Validate(); err != nil {
		return store.NewStoreError(entityName, "update", fmt.Errorf("%w: %w", store.ErrInvalidEntity, err))
	}

	err := s.update(ctx, s.db, item, "")
	if errors.Is(err, store.ErrItemNotFound) {
		return err
	}
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to update work item",
			"item_id", item.ID,
			"status", item.Status,
			"error", err)
		return store.NewStoreError(entityName, "update", err)
	}
	return nil
}

// update writes item's mutable fields on q, a connection or a transaction.
// A non-empty expected status also requires the stored row to still have it.
func (s *ItemStore) update(ctx context.Context, q store.DBTX, item *domain.WorkItem, expected domain.Status) error {
	query := updateItemQuery
	args := updateArgs(item)
	if expected != "" {
		query += " AND status = ?"
		args = append(args, string(expected))
	}

	result, err := q.ExecContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return MapError(err)
	}
	return checkRowsAffected(result, store.ErrItemNotFound)
}

// Get returns one item or store.ErrItemNotFound.
func (s *ItemStore) Get(ctx context.Context, id uuid.UUID) (*domain.WorkItem, error) {
	item, err := scanItem(s.db.QueryRowContext(ctx, s.dialect.Rebind(selectItemQuery), id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrItemNotFound
	}
	if err != nil {
		return nil, store.NewStoreError(entityName, "get", MapError(err))
	}
	return item, nil
}

// ListByOwner returns up to limit of the owner's items, newest first.
func (s *ItemStore) ListByOwner(ctx context.Context, owner string, limit int) ([]*domain.WorkItem, error) {
	query := listByOwnerQuery
	args := []any{owner}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return nil, store.NewStoreError(entityName, "list", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var items []*domain.WorkItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, store.NewStoreError(entityName, "list", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError(entityName, "list", err)
	}
	return items, nil
}

// CountActiveByOwner counts the owner's items that are not terminal.
func (s *ItemStore) CountActiveByOwner(ctx context.Context, owner string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.dialect.Rebind(countActiveQuery),
		owner,
		string(domain.StatusDone),
		string(domain.StatusFailed),
	).Scan(&n)
	if err != nil {
		return 0, store.NewStoreError(entityName, "count", MapError(err))
	}
	return n, nil
}

// FailInFlight fails every transcribing, classifying or extracting item with
// reason and returns how many rows changed.
func (s *ItemStore) FailInFlight(ctx context.Context, reason string) (int, error) {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, s.dialect.Rebind(failInFlightQuery),
		string(domain.StatusFailed),
		reason,
		now,
		now,
		string(domain.StatusTranscribing),
		string(domain.StatusClassifying),
		string(domain.StatusExtracting),
	)
	if err != nil {
		return 0, store.NewStoreError(entityName, "recover", MapError(err))
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, store.NewStoreError(entityName, "recover", err)
	}
	return int(n), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*domain.WorkItem, error) {
	var (
		item        domain.WorkItem
		id          string
		status      string
		mediaKind   string
		startedAt   sql.NullTime
		completedAt sql.NullTime
		transcript  sql.NullString
		category    sql.NullString
		record      sql.NullString
		failure     sql.NullString
		raw         sql.NullString
	)

	err := row.Scan(
		&id,
		&item.OwnerRef,
		&item.SourceLocator,
		&mediaKind,
		&item.LanguageHint,
		&status,
		&item.QueuedAt,
		&startedAt,
		&completedAt,
		&transcript,
		&category,
		&item.Confidence,
		&record,
		&failure,
		&raw,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if item.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid work item id %q: %w", id, err)
	}
	item.Status = domain.Status(status)
	item.MediaKind = domain.MediaKind(mediaKind)
	item.StartedAt = timePtr(startedAt)
	item.CompletedAt = timePtr(completedAt)
	item.Transcript = stringPtr(transcript)
	item.FailureReason = stringPtr(failure)
	item.RawModelOutput = stringPtr(raw)
	if category.Valid {
		c := domain.Category(category.String)
		item.Category = &c
	}
	if record.Valid && record.String != "" {
		item.ExtractedRecord = json.RawMessage(record.String)
	}
	return &item, nil
}

func insertArgs(item *domain.WorkItem) []any {
	return []any{
		item.ID.String(),
		item.OwnerRef,
		item.SourceLocator,
		string(item.MediaKind),
		item.LanguageHint,
		string(item.Status),
		item.QueuedAt.UTC(),
		nullTime(item.StartedAt),
		nullTime(item.CompletedAt),
		nullString(item.Transcript),
		nullString(item.Category),
		item.Confidence,
		nullRecord(item.ExtractedRecord),
		nullString(item.FailureReason),
		nullString(item.RawModelOutput),
		item.UpdatedAt.UTC(),
	}
}

func updateArgs(item *domain.WorkItem) []any {
	return []any{
		string(item.Status),
		nullTime(item.StartedAt),
		nullTime(item.CompletedAt),
		nullString(item.Transcript),
		nullString(item.Category),
		item.Confidence,
		nullRecord(item.ExtractedRecord),
		nullString(item.FailureReason),
		nullString(item.RawModelOutput),
		item.UpdatedAt.UTC(),
		item.ID.String(),
	}
}

func nullString[T ~string](p *T) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*p), Valid: true}
}

func nullTime(p *time.Time) sql.NullTime {
	if p == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: p.UTC(), Valid: true}
}

func nullRecord(r json.RawMessage) sql.NullString {
	if len(r) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(r), Valid: true}
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
