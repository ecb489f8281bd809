package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"release_notification_bot/internal/domain/tracking"

	"github.com/lib/pq"
)

// Custom errors
var ErrEntryNotFound = fmt.Errorf("tracked entry not found")
var ErrDuplicateEntry = fmt.Errorf("title is already tracked by this subscriber")

const uniqueViolation = pq.ErrorCode("23505")

const entryColumns = `id, subscriber_id, title_key, author, last_isbn, last_sales_date, last_notified_day,
       last_purchased_volume, is_reserved, created_at, updated_at`

type PostgresEntryRepository struct {
	db *sql.DB
}

func NewPostgresEntryRepository(db *sql.DB) *PostgresEntryRepository {
	return &PostgresEntryRepository{db: db}
}

func (r *PostgresEntryRepository) Create(ctx context.Context, e *tracking.Entry) error {
	query := `INSERT INTO tracked_entries (subscriber_id, title_key, author, last_isbn, last_purchased_volume, is_reserved)
               VALUES ($1, $2, $3, $4, $5, $6)
               RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query, e.SubscriberID, e.TitleKey, e.Author, e.LastISBN, e.LastPurchasedVolume, e.IsReserved).
		Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicateEntry
		}
		return fmt.Errorf("error creating tracked entry: %w", err)
	}
	return nil
}

func (r *PostgresEntryRepository) GetByID(ctx context.Context, id int64) (*tracking.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM tracked_entries WHERE id = $1`
	e, err := scanEntry(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("error getting tracked entry by ID: %w", err)
	}
	return e, nil
}

// LoadAll returns every entry in a stable order so passes are reproducible.
func (r *PostgresEntryRepository) LoadAll(ctx context.Context) ([]*tracking.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM tracked_entries ORDER BY subscriber_id, id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error loading tracked entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (r *PostgresEntryRepository) ListBySubscriber(ctx context.Context, subscriberID int64) ([]*tracking.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM tracked_entries WHERE subscriber_id = $1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, subscriberID)
	if err != nil {
		return nil, fmt.Errorf("error listing tracked entries by subscriber: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// Save applies a partial update. last_purchased_volume only ever grows.
func (r *PostgresEntryRepository) Save(ctx context.Context, id int64, p tracking.Patch) error {
	if p.IsEmpty() {
		return nil
	}

	var sets []string
	var args []interface{}
	add := func(clause string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf(clause, len(args)))
	}
	if p.LastISBN != nil {
		add("last_isbn = $%d", *p.LastISBN)
	}
	if p.LastSalesDate != nil {
		add("last_sales_date = $%d", *p.LastSalesDate)
	}
	if p.LastNotifiedDay != nil {
		add("last_notified_day = $%d", *p.LastNotifiedDay)
	}
	if p.LastPurchasedVolume != nil {
		add("last_purchased_volume = GREATEST(last_purchased_volume, $%d)", *p.LastPurchasedVolume)
	}
	if p.IsReserved != nil {
		add("is_reserved = $%d", *p.IsReserved)
	}
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE tracked_entries SET %s, updated_at = NOW() WHERE id = $%d`, strings.Join(sets, ", "), len(args))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("error updating tracked entry %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading affected rows for tracked entry %d: %w", id, err)
	}
	if affected == 0 {
		return ErrEntryNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row rowScanner) (*tracking.Entry, error) {
	e := &tracking.Entry{}
	err := row.Scan(
		&e.ID, &e.SubscriberID, &e.TitleKey, &e.Author, &e.LastISBN, &e.LastSalesDate,
		&e.LastNotifiedDay, &e.LastPurchasedVolume, &e.IsReserved, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Helper to scan multiple rows
func scanEntries(rows *sql.Rows) ([]*tracking.Entry, error) {
	entries := make([]*tracking.Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning tracked entry row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tracked entry rows: %w", err)
	}
	return entries, nil
}
