package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/mbenali/mailbox/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite
// database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// An in-memory database exists per connection; pin the pool to one
	// so every statement sees the same database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// normalizeTime reduces a timestamp to the store's resolution: UTC,
// whole seconds. Both inserts and existence checks go through this so
// the dedup triple compares exactly.
func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// ListEmails retrieves all emails in a folder ordered by sent time
// descending. SQLite sorts NULL as the smallest value, so rows with no
// sent time come last under DESC.
func (s *SQLiteStore) ListEmails(
	ctx context.Context,
	folder string,
) ([]model.Email, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT id, sender, recipient, subject, body, sent_at, folder
		FROM emails WHERE folder = ? ORDER BY sent_at DESC`,
		folder,
	)
	if err != nil {
		return nil, fmt.Errorf("querying emails in %s: %w", folder, err)
	}
	defer rows.Close()

	return scanEmails(rows)
}

// SearchEmails retrieves emails whose subject or sender contains the
// query substring, newest first.
func (s *SQLiteStore) SearchEmails(
	ctx context.Context,
	opts SearchOptions,
) ([]model.Email, error) {
	var conditions []string
	var args []interface{}

	if opts.Query != "" {
		conditions = append(conditions, "(subject LIKE ? OR sender LIKE ?)")
		q := "%" + opts.Query + "%"
		args = append(args, q, q)
	}
	if opts.Folder != "" {
		conditions = append(conditions, "folder = ?")
		args = append(args, opts.Folder)
	}

	query := "SELECT id, sender, recipient, subject, body, sent_at, folder FROM emails"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY sent_at DESC"
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("searching emails: %w", err)
	}
	defer rows.Close()

	return scanEmails(rows)
}

// SaveEmail inserts a new email row and returns the email with its
// assigned ID. A nil SentAt is stamped with the current time, which is
// the outbound-compose path.
func (s *SQLiteStore) SaveEmail(
	ctx context.Context,
	e model.Email,
) (model.Email, error) {
	sentAt := time.Now()
	if e.SentAt != nil {
		sentAt = *e.SentAt
	}
	sentAt = normalizeTime(sentAt)

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO emails (sender, recipient, subject, body, sent_at, folder)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.Sender, e.Recipient, e.Subject, e.Body, sentAt, e.Folder,
	)
	if err != nil {
		return model.Email{}, fmt.Errorf("inserting email: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return model.Email{}, fmt.Errorf("reading inserted email id: %w", err)
	}

	e.ID = id
	e.SentAt = &sentAt
	return e, nil
}

// DeleteEmail removes the email with the given ID. A missing ID is a
// no-op.
func (s *SQLiteStore) DeleteEmail(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM emails WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting email %d: %w", id, err)
	}
	return nil
}

// EmailExists reports whether a stored email matches the
// (sender, subject, sentAt) triple exactly.
func (s *SQLiteStore) EmailExists(
	ctx context.Context,
	sender, subject string,
	sentAt *time.Time,
) (bool, error) {
	var count int
	var err error

	if sentAt == nil {
		err = s.db.GetContext(ctx, &count, `
			SELECT COUNT(*) FROM emails
			WHERE sender = ? AND subject = ? AND sent_at IS NULL`,
			sender, subject,
		)
	} else {
		err = s.db.GetContext(ctx, &count, `
			SELECT COUNT(*) FROM emails
			WHERE sender = ? AND subject = ? AND sent_at = ?`,
			sender, subject, normalizeTime(*sentAt),
		)
	}
	if err != nil {
		return false, fmt.Errorf("checking email existence: %w", err)
	}

	return count > 0, nil
}

// CountEmails returns the number of emails stored in a folder.
func (s *SQLiteStore) CountEmails(
	ctx context.Context,
	folder string,
) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM emails WHERE folder = ?", folder,
	)
	if err != nil {
		return 0, fmt.Errorf("counting emails in %s: %w", folder, err)
	}
	return count, nil
}

// scanEmails drains a result set into email values.
func scanEmails(rows *sqlx.Rows) ([]model.Email, error) {
	var emails []model.Email
	for rows.Next() {
		e, err := scanEmail(rows)
		if err != nil {
			return nil, err
		}
		emails = append(emails, e)
	}
	return emails, rows.Err()
}

// scanEmail scans one email row from a sqlx.Rows result set.
func scanEmail(rows *sqlx.Rows) (model.Email, error) {
	var (
		e      model.Email
		sentAt *time.Time
	)

	err := rows.Scan(
		&e.ID, &e.Sender, &e.Recipient, &e.Subject, &e.Body,
		&sentAt, &e.Folder,
	)
	if err != nil {
		return model.Email{}, fmt.Errorf("scanning email row: %w", err)
	}

	if sentAt != nil {
		t := normalizeTime(*sentAt)
		e.SentAt = &t
	}

	return e, nil
}
