package model

import (
	"fmt"
	"time"
)

// Well-known folder names. The folder set is open: any other string is
// accepted and treated as its own partition (e.g. a user label such as
// "ENSA").
const (
	FolderInbox  = "INBOX"
	FolderOutbox = "OUTBOX"
)

// Email is a single mail item. Once persisted it is immutable: a folder
// move or edit is modeled as delete + reinsert, never as an update.
type Email struct {
	// ID is the surrogate key assigned by the local store on insert.
	// Zero means the email has not been persisted yet.
	ID int64

	// Sender and Recipient are address strings. They are not validated
	// beyond being non-empty where an operation requires them.
	Sender    string
	Recipient string

	// Subject may be empty; it is never NULL in a persisted row.
	Subject string

	// Body is the extracted plain-text content.
	Body string

	// SentAt is nil for outbound drafts the relay has not acknowledged.
	// The store stamps the current time on insert when it is nil.
	SentAt *time.Time

	Folder string
}

// Persisted reports whether the email has been assigned a store ID.
func (e Email) Persisted() bool {
	return e.ID != 0
}

// Summary renders the one-line label used in list views, e.g.
// "2023-12-25 10:30 | alice@example.com : Hello".
func (e Email) Summary() string {
	if e.SentAt == nil {
		return fmt.Sprintf("Date unknown | %s : %s", e.Sender, e.Subject)
	}
	return fmt.Sprintf(
		"%s | %s : %s",
		e.SentAt.Format("2006-01-02 15:04"), e.Sender, e.Subject,
	)
}
