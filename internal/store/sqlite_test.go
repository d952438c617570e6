package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/mbenali/mailbox/internal/model"
	"github.com/mbenali/mailbox/internal/store"
	"github.com/mbenali/mailbox/tests/testutil"
)

func ts(t *testing.T, value string) *time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("parsing timestamp %q: %v", value, err)
	}
	return &parsed
}

func TestSaveAndListRoundTrip(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	in := model.Email{
		Sender:    "alice@example.com",
		Recipient: "me@example.com",
		Subject:   "Lunch?",
		Body:      "Noon at the usual place.",
		SentAt:    ts(t, "2024-03-01T10:30:00Z"),
		Folder:    model.FolderInbox,
	}

	saved, err := s.SaveEmail(ctx, in)
	if err != nil {
		t.Fatalf("SaveEmail: %v", err)
	}
	if !saved.Persisted() {
		t.Fatal("SaveEmail did not assign an ID")
	}

	emails, err := s.ListEmails(ctx, model.FolderInbox)
	if err != nil {
		t.Fatalf("ListEmails: %v", err)
	}
	if len(emails) != 1 {
		t.Fatalf("got %d emails, want 1", len(emails))
	}

	got := emails[0]
	if got.Sender != in.Sender || got.Recipient != in.Recipient ||
		got.Subject != in.Subject || got.Body != in.Body ||
		got.Folder != in.Folder {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, in)
	}
	if got.SentAt == nil || !got.SentAt.Equal(*in.SentAt) {
		t.Errorf("SentAt = %v, want %v", got.SentAt, in.SentAt)
	}
	if got.ID != saved.ID {
		t.Errorf("ID = %d, want %d", got.ID, saved.ID)
	}
}

func TestListOrdersBySentAtDescending(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	// Inserted out of order on purpose.
	stamps := []string{
		"2024-03-02T08:00:00Z",
		"2024-03-04T08:00:00Z",
		"2024-03-01T08:00:00Z",
		"2024-03-03T08:00:00Z",
	}
	for i, stamp := range stamps {
		_, err := s.SaveEmail(ctx, model.Email{
			Sender:    "a@example.com",
			Recipient: "me@example.com",
			Subject:   string(rune('a' + i)),
			SentAt:    ts(t, stamp),
			Folder:    model.FolderInbox,
		})
		if err != nil {
			t.Fatalf("SaveEmail: %v", err)
		}
	}

	emails, err := s.ListEmails(ctx, model.FolderInbox)
	if err != nil {
		t.Fatalf("ListEmails: %v", err)
	}
	if len(emails) != len(stamps) {
		t.Fatalf("got %d emails, want %d", len(emails), len(stamps))
	}

	for i := 1; i < len(emails); i++ {
		prev, cur := emails[i-1].SentAt, emails[i].SentAt
		if prev.Before(*cur) {
			t.Errorf("emails[%d] (%v) is newer than emails[%d] (%v)",
				i, cur, i-1, prev)
		}
	}
}

func TestListIsolatesFolders(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	folders := []string{model.FolderInbox, model.FolderOutbox, "ENSA"}
	for _, folder := range folders {
		_, err := s.SaveEmail(ctx, model.Email{
			Sender:    "a@example.com",
			Recipient: "me@example.com",
			Subject:   "in " + folder,
			SentAt:    ts(t, "2024-03-01T08:00:00Z"),
			Folder:    folder,
		})
		if err != nil {
			t.Fatalf("SaveEmail: %v", err)
		}
	}

	for _, folder := range folders {
		emails, err := s.ListEmails(ctx, folder)
		if err != nil {
			t.Fatalf("ListEmails(%s): %v", folder, err)
		}
		if len(emails) != 1 {
			t.Fatalf("ListEmails(%s) returned %d emails, want 1", folder, len(emails))
		}
		if emails[0].Folder != folder {
			t.Errorf("email in %s has folder %s", folder, emails[0].Folder)
		}
	}

	count, err := s.CountEmails(ctx, "ENSA")
	if err != nil {
		t.Fatalf("CountEmails: %v", err)
	}
	if count != 1 {
		t.Errorf("CountEmails(ENSA) = %d, want 1", count)
	}
}

func TestSaveStampsMissingSentAt(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	before := time.Now().Add(-time.Second)
	saved, err := s.SaveEmail(ctx, model.Email{
		Sender:    "me@example.com",
		Recipient: "bob@example.com",
		Subject:   "Draft",
		Folder:    model.FolderOutbox,
	})
	if err != nil {
		t.Fatalf("SaveEmail: %v", err)
	}
	after := time.Now().Add(time.Second)

	if saved.SentAt == nil {
		t.Fatal("SaveEmail left SentAt nil")
	}
	if saved.SentAt.Before(before) || saved.SentAt.After(after) {
		t.Errorf("stamped SentAt %v outside [%v, %v]", saved.SentAt, before, after)
	}
}

func TestEmailExistsMatchesTripleExactly(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	sentAt := ts(t, "2024-03-01T10:30:00Z")
	_, err := s.SaveEmail(ctx, model.Email{
		Sender:    "alice@example.com",
		Recipient: "me@example.com",
		Subject:   "Lunch?",
		Body:      "original body",
		SentAt:    sentAt,
		Folder:    model.FolderInbox,
	})
	if err != nil {
		t.Fatalf("SaveEmail: %v", err)
	}

	cases := []struct {
		name    string
		sender  string
		subject string
		sentAt  *time.Time
		want    bool
	}{
		{"exact triple", "alice@example.com", "Lunch?", sentAt, true},
		{"different sender", "mallory@example.com", "Lunch?", sentAt, false},
		{"different subject", "alice@example.com", "Dinner?", sentAt, false},
		{"different time", "alice@example.com", "Lunch?", ts(t, "2024-03-01T10:30:01Z"), false},
	}

	for _, tc := range cases {
		got, err := s.EmailExists(ctx, tc.sender, tc.subject, tc.sentAt)
		if err != nil {
			t.Fatalf("%s: EmailExists: %v", tc.name, err)
		}
		if got != tc.want {
			t.Errorf("%s: EmailExists = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestEmailExistsIgnoresBody(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	sentAt := ts(t, "2024-03-01T10:30:00Z")
	_, err := s.SaveEmail(ctx, model.Email{
		Sender:  "alice@example.com",
		Subject: "Lunch?",
		Body:    "first body",
		SentAt:  sentAt,
		Folder:  model.FolderInbox,
	})
	if err != nil {
		t.Fatalf("SaveEmail: %v", err)
	}

	// Same triple, different body: still a duplicate.
	exists, err := s.EmailExists(ctx, "alice@example.com", "Lunch?", sentAt)
	if err != nil {
		t.Fatalf("EmailExists: %v", err)
	}
	if !exists {
		t.Error("EmailExists = false for a stored triple with a different body")
	}
}

func TestDeleteIsFinalAndIdempotent(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	saved, err := s.SaveEmail(ctx, model.Email{
		Sender: "a@example.com",
		Subject: "bye",
		SentAt: ts(t, "2024-03-01T08:00:00Z"),
		Folder: model.FolderInbox,
	})
	if err != nil {
		t.Fatalf("SaveEmail: %v", err)
	}

	if err := s.DeleteEmail(ctx, saved.ID); err != nil {
		t.Fatalf("DeleteEmail: %v", err)
	}

	emails, err := s.ListEmails(ctx, model.FolderInbox)
	if err != nil {
		t.Fatalf("ListEmails: %v", err)
	}
	for _, e := range emails {
		if e.ID == saved.ID {
			t.Errorf("deleted email %d still listed", saved.ID)
		}
	}

	// Repeated delete of a missing ID is a no-op.
	if err := s.DeleteEmail(ctx, saved.ID); err != nil {
		t.Errorf("repeated DeleteEmail: %v", err)
	}
	if err := s.DeleteEmail(ctx, 9999); err != nil {
		t.Errorf("DeleteEmail of unknown ID: %v", err)
	}
}

func TestSearchMatchesSubjectAndSender(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	seed := []model.Email{
		{Sender: "alice@example.com", Subject: "Quarterly report", Folder: model.FolderInbox},
		{Sender: "bob@example.com", Subject: "Holiday plans", Folder: model.FolderInbox},
		{Sender: "reports@corp.com", Subject: "Invoice", Folder: "ENSA"},
	}
	for i := range seed {
		seed[i].SentAt = ts(t, "2024-03-01T08:00:00Z")
		if _, err := s.SaveEmail(ctx, seed[i]); err != nil {
			t.Fatalf("SaveEmail: %v", err)
		}
	}

	// Matches "Quarterly report" by subject and "reports@corp.com" by
	// sender, across folders.
	emails, err := s.SearchEmails(ctx, store.SearchOptions{Query: "report"})
	if err != nil {
		t.Fatalf("SearchEmails: %v", err)
	}
	if len(emails) != 2 {
		t.Fatalf("search %q returned %d emails, want 2", "report", len(emails))
	}

	// Folder-scoped search.
	emails, err = s.SearchEmails(ctx, store.SearchOptions{
		Query:  "report",
		Folder: model.FolderInbox,
	})
	if err != nil {
		t.Fatalf("SearchEmails: %v", err)
	}
	if len(emails) != 1 {
		t.Fatalf("scoped search returned %d emails, want 1", len(emails))
	}
	if emails[0].Subject != "Quarterly report" {
		t.Errorf("scoped search returned %q", emails[0].Subject)
	}
}
