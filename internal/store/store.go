package store

import (
	"context"
	"time"

	"github.com/mbenali/mailbox/internal/model"
)

// SearchOptions controls filtering for email search queries.
type SearchOptions struct {
	// Folder restricts the search to one folder; empty searches all.
	Folder string

	// Query is matched as a substring against subject and sender.
	Query string

	// Limit caps the number of results; zero means no limit.
	Limit int
}

// Store defines the persistence interface for emails, partitioned by
// folder.
//
// Every operation is a single statement against the database; no
// transaction spans multiple calls. In particular the
// EmailExists/SaveEmail pair issued by the sync engine is not atomic at
// the store level — the engine serializes its runs instead.
type Store interface {
	// ListEmails returns all emails in folder ordered by sent time
	// descending. Rows with no sent time sort last.
	ListEmails(ctx context.Context, folder string) ([]model.Email, error)

	// SearchEmails returns emails whose subject or sender contains the
	// query substring, newest first.
	SearchEmails(ctx context.Context, opts SearchOptions) ([]model.Email, error)

	// SaveEmail inserts a new row and returns the email with its
	// assigned ID. A nil SentAt is stamped with the current time.
	SaveEmail(ctx context.Context, e model.Email) (model.Email, error)

	// DeleteEmail removes the row with the given ID. Deleting an ID
	// that does not exist is a no-op, not an error.
	DeleteEmail(ctx context.Context, id int64) error

	// EmailExists reports whether a stored email matches the
	// (sender, subject, sentAt) triple exactly, at the store's
	// timestamp resolution. This is the sync dedup oracle.
	EmailExists(ctx context.Context, sender, subject string, sentAt *time.Time) (bool, error)

	// CountEmails returns the number of emails in folder.
	CountEmails(ctx context.Context, folder string) (int, error)

	Close() error
}
