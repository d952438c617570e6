package mail

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/mbenali/mailbox/internal/model"
)

// AuthError indicates that the remote mailbox rejected the account
// credentials.
type AuthError struct {
	Account string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.Account, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an
// AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// DefaultWindowSize is the number of most recent messages fetched per
// sync run when no explicit window is configured.
const DefaultWindowSize = 20

// Client wraps go-imap v2 for connecting to and querying the remote
// mailbox. A fresh session is opened per call and released on every
// exit path.
type Client struct {
	host     string
	port     string
	username string
	password string
	tls      bool
}

// NewClient creates a new IMAP client configuration for one account.
func NewClient(cfg model.IMAPConfig, username, password string) *Client {
	return &Client{
		host:     cfg.Host,
		port:     cfg.Port,
		username: username,
		password: password,
		tls:      cfg.TLS,
	}
}

// connect establishes a connection to the IMAP server, authenticates,
// and returns the connected client. The caller is responsible for
// calling Logout on the returned client.
func (c *Client) connect(_ context.Context) (*imapclient.Client, error) {
	addr := c.host + ":" + c.port

	var client *imapclient.Client
	var err error

	if c.tls {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(c.username, c.password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, &AuthError{
			Account: c.username,
			Message: fmt.Sprintf("authentication failed: %v", err),
		}
	}

	return client, nil
}

// ValidateConnection verifies the account credentials with a throwaway
// connect and read-only INBOX select. The login flow calls this before
// any other service is constructed.
func (c *Client) ValidateConnection(ctx context.Context) error {
	client, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout().Wait() }()

	selectOpts := &imap.SelectOptions{ReadOnly: true}
	if _, err := client.Select(model.FolderInbox, selectOpts).Wait(); err != nil {
		return fmt.Errorf("selecting INBOX: %w", err)
	}

	return nil
}

// FetchRecent retrieves the last maxCount messages from INBOX (all of
// them when the mailbox holds fewer) and returns them oldest-first so
// callers can persist in chronological order. The second return value
// counts messages skipped because their content could not be
// extracted; a skipped message never aborts the rest of the window.
func (c *Client) FetchRecent(
	ctx context.Context,
	maxCount int,
) ([]model.Email, int, error) {
	if maxCount <= 0 {
		maxCount = DefaultWindowSize
	}

	client, err := c.connect(ctx)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = client.Logout().Wait() }()

	selectOpts := &imap.SelectOptions{ReadOnly: true}
	selectData, err := client.Select(model.FolderInbox, selectOpts).Wait()
	if err != nil {
		return nil, 0, fmt.Errorf("selecting INBOX: %w", err)
	}

	total := selectData.NumMessages
	if total == 0 {
		return nil, 0, nil
	}

	start := uint32(1)
	if total > uint32(maxCount) {
		start = total - uint32(maxCount) + 1
	}

	var seqSet imap.SeqSet
	seqSet.AddRange(start, total)

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		Envelope:    true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := client.Fetch(seqSet, fetchOpts)
	defer fetchCmd.Close()

	type fetched struct {
		seqNum uint32
		email  model.Email
	}

	var results []fetched
	skipped := 0

	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			skipped++
			continue
		}

		body := ""
		if raw := buf.FindBodySection(bodySection); raw != nil {
			body, err = ExtractText(raw)
			if err != nil {
				skipped++
				continue
			}
		}

		results = append(results, fetched{
			seqNum: buf.SeqNum,
			email:  c.emailFromBuffer(buf, body),
		})
	}

	if err := fetchCmd.Close(); err != nil {
		return nil, skipped, fmt.Errorf("fetching messages: %w", err)
	}

	// Oldest-first, regardless of the order responses arrived in.
	sort.Slice(results, func(i, j int) bool {
		return results[i].seqNum < results[j].seqNum
	})

	emails := make([]model.Email, 0, len(results))
	for _, r := range results {
		emails = append(emails, r.email)
	}

	return emails, skipped, nil
}

// emailFromBuffer builds an unpersisted inbox email from a fetched
// message buffer.
func (c *Client) emailFromBuffer(
	buf *imapclient.FetchMessageBuffer,
	body string,
) model.Email {
	e := model.Email{
		Recipient: c.username,
		Body:      body,
		Folder:    model.FolderInbox,
	}

	if buf.Envelope != nil {
		e.Subject = buf.Envelope.Subject
		if len(buf.Envelope.From) > 0 {
			e.Sender = buf.Envelope.From[0].Addr()
		}
		if !buf.Envelope.Date.IsZero() {
			date := buf.Envelope.Date
			e.SentAt = &date
		}
	}

	return e
}
