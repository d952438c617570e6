package mail

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mbenali/mailbox/internal/model"
)

// Validation errors returned by Send before any network activity.
var (
	ErrMissingRecipient = errors.New("recipient is required")
	ErrMissingSubject   = errors.New("subject is required")
)

// dialTimeout bounds the TCP connect to the relay.
const dialTimeout = 30 * time.Second

// Sender delivers outbound messages through an SMTP relay.
type Sender struct {
	host     string
	port     string
	username string
	password string
	tls      bool
}

// NewSender creates a new SMTP sender for one account.
func NewSender(cfg model.SMTPConfig, username, password string) *Sender {
	return &Sender{
		host:     cfg.Host,
		port:     cfg.Port,
		username: username,
		password: password,
		tls:      cfg.TLS,
	}
}

// Send composes and delivers a plain-text message. An empty recipient
// or subject is rejected synchronously, before any connection is made.
// Persisting the sent copy to the OUTBOX folder is the caller's
// responsibility.
func (s *Sender) Send(to, subject, body string) error {
	if strings.TrimSpace(to) == "" {
		return ErrMissingRecipient
	}
	if strings.TrimSpace(subject) == "" {
		return ErrMissingSubject
	}

	msg := s.composeMessage(to, subject, body)
	addr := s.host + ":" + s.port

	if s.tls {
		return s.sendWithTLS(addr, to, msg)
	}
	return s.sendWithStartTLS(addr, to, msg)
}

// composeMessage builds the RFC 822 text for a plain-text message.
func (s *Sender) composeMessage(to, subject, body string) string {
	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s\r\n", s.username))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", to))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString(fmt.Sprintf(
		"Date: %s\r\n", time.Now().Format(time.RFC1123Z),
	))
	msg.WriteString(fmt.Sprintf(
		"Message-ID: <%s@%s>\r\n", uuid.New().String(), s.host,
	))
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)
	return msg.String()
}

// sendWithTLS delivers a message over an implicit TLS connection.
func (s *Sender) sendWithTLS(addr, to, body string) error {
	tlsConfig := &tls.Config{ServerName: s.host}

	conn, err := tls.Dial("tcp", addr, tlsConfig)
	if err != nil {
		return fmt.Errorf("TLS dial to %s: %w", addr, err)
	}

	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	defer client.Close()

	auth := smtp.PlainAuth("", s.username, s.password, s.host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP auth: %w", err)
	}

	return sendViaClient(client, s.username, to, body)
}

// sendWithStartTLS delivers a message using STARTTLS.
func (s *Sender) sendWithStartTLS(addr, to, body string) error {
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return fmt.Errorf("dial to %s: %w", addr, err)
	}

	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	defer client.Close()

	tlsConfig := &tls.Config{ServerName: s.host}
	if err := client.StartTLS(tlsConfig); err != nil {
		return fmt.Errorf("SMTP STARTTLS: %w", err)
	}

	auth := smtp.PlainAuth("", s.username, s.password, s.host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP auth: %w", err)
	}

	return sendViaClient(client, s.username, to, body)
}

// sendViaClient runs the MAIL/RCPT/DATA exchange on an authenticated
// SMTP client.
func sendViaClient(client *smtp.Client, from, to, body string) error {
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("SMTP MAIL FROM: %w", err)
	}

	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("SMTP RCPT TO: %w", err)
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA: %w", err)
	}

	if _, err := writer.Write([]byte(body)); err != nil {
		return fmt.Errorf("writing email body: %w", err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing email body: %w", err)
	}

	return client.Quit()
}
