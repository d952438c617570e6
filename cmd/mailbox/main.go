package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/mbenali/mailbox/internal/credential"
	"github.com/mbenali/mailbox/internal/mail"
	"github.com/mbenali/mailbox/internal/model"
	"github.com/mbenali/mailbox/internal/store"
	"github.com/mbenali/mailbox/internal/sync"
)

func main() {
	log.SetFlags(0)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := model.LoadConfig(model.DefaultConfigPath())
	if err != nil {
		log.Fatalf("mailbox: %v", err)
	}

	var cmdErr error
	switch os.Args[1] {
	case "login":
		cmdErr = runLogin(cfg, os.Args[2:])
	case "sync":
		cmdErr = runSync(cfg)
	case "list":
		cmdErr = runList(cfg, os.Args[2:])
	case "search":
		cmdErr = runSearch(cfg, os.Args[2:])
	case "send":
		cmdErr = runSend(cfg, os.Args[2:])
	case "delete":
		cmdErr = runDelete(cfg, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}

	if cmdErr != nil {
		log.Fatalf("mailbox: %v", cmdErr)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: mailbox <command> [flags]

commands:
  login   -address <addr>              validate and store credentials
  sync                                 refresh INBOX from the remote mailbox
  list    [-folder INBOX]              list mirrored messages in a folder
  search  [-folder ""] -query <text>   search subject/sender
  send    -to <addr> -subject <s> [-body <text>]
  delete  -id <n>                      delete a mirrored message`)
}

// runLogin validates an address/app-password pair against the IMAP
// server and stores both in the config file and the system keyring.
func runLogin(cfg *model.AppConfig, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	address := fs.String("address", cfg.Account.Address, "account address")
	fs.Parse(args)

	if strings.TrimSpace(*address) == "" {
		return fmt.Errorf("login: -address is required")
	}

	fmt.Fprint(os.Stderr, "App password: ")
	reader := bufio.NewReader(os.Stdin)
	password, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}
	password = strings.TrimSpace(password)

	client := mail.NewClient(cfg.Account.IMAP, *address, password)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := client.ValidateConnection(ctx); err != nil {
		if mail.IsAuthError(err) {
			return fmt.Errorf("login failed: check the address and app password")
		}
		return err
	}

	if err := credential.Set(*address, password); err != nil {
		return err
	}

	cfg.Account.Address = *address
	if err := model.SaveConfig(model.DefaultConfigPath(), cfg); err != nil {
		return err
	}

	fmt.Printf("Logged in as %s\n", *address)
	return nil
}

// runSync performs one synchronous fetch-and-persist run and prints the
// outcome.
func runSync(cfg *model.AppConfig) error {
	st, client, err := openServices(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	syncer := sync.New(st, client,
		sync.WithWindow(cfg.Sync.WindowSize),
		sync.WithTimeout(time.Duration(cfg.Sync.TimeoutSec)*time.Second),
	)

	res := syncer.Sync(context.Background())
	if res.Err != nil {
		return res.Err
	}

	fmt.Printf("%d new message(s)", res.NewCount)
	if res.Skipped > 0 {
		fmt.Printf(", %d skipped", res.Skipped)
	}
	fmt.Println()
	return nil
}

func runList(cfg *model.AppConfig, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	folder := fs.String("folder", model.FolderInbox, "folder to list")
	fs.Parse(args)

	st, err := store.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	emails, err := st.ListEmails(context.Background(), *folder)
	if err != nil {
		return err
	}

	for _, e := range emails {
		fmt.Printf("%6d  %s\n", e.ID, e.Summary())
	}
	return nil
}

func runSearch(cfg *model.AppConfig, args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	folder := fs.String("folder", "", "restrict to one folder")
	query := fs.String("query", "", "substring to match")
	fs.Parse(args)

	st, err := store.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	emails, err := st.SearchEmails(context.Background(), store.SearchOptions{
		Folder: *folder,
		Query:  *query,
	})
	if err != nil {
		return err
	}

	for _, e := range emails {
		fmt.Printf("%6d  %s\n", e.ID, e.Summary())
	}
	return nil
}

// runSend delivers a message through the SMTP relay and mirrors it into
// the OUTBOX folder.
func runSend(cfg *model.AppConfig, args []string) error {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	to := fs.String("to", "", "recipient address")
	subject := fs.String("subject", "", "subject line")
	body := fs.String("body", "", "message body")
	fs.Parse(args)

	password, err := credential.Get(cfg.Account.Address)
	if err != nil {
		return fmt.Errorf("no stored credentials; run `mailbox login` first: %w", err)
	}

	sender := mail.NewSender(cfg.Account.SMTP, cfg.Account.Address, password)
	if err := sender.Send(*to, *subject, *body); err != nil {
		return err
	}

	st, err := store.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	_, err = st.SaveEmail(context.Background(), model.Email{
		Sender:    cfg.Account.Address,
		Recipient: *to,
		Subject:   *subject,
		Body:      *body,
		Folder:    model.FolderOutbox,
	})
	if err != nil {
		return fmt.Errorf("message sent but not mirrored to OUTBOX: %w", err)
	}

	fmt.Printf("Sent to %s\n", *to)
	return nil
}

func runDelete(cfg *model.AppConfig, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	id := fs.Int64("id", 0, "message id")
	fs.Parse(args)

	if *id == 0 {
		return fmt.Errorf("delete: -id is required")
	}

	st, err := store.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	return st.DeleteEmail(context.Background(), *id)
}

// openServices builds the store and IMAP client from config plus the
// keyring-held app password.
func openServices(cfg *model.AppConfig) (*store.SQLiteStore, *mail.Client, error) {
	if cfg.Account.Address == "" {
		return nil, nil, fmt.Errorf("no account configured; run `mailbox login` first")
	}

	password, err := credential.Get(cfg.Account.Address)
	if err != nil {
		return nil, nil, fmt.Errorf("no stored credentials; run `mailbox login` first: %w", err)
	}

	st, err := store.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		return nil, nil, err
	}

	client := mail.NewClient(cfg.Account.IMAP, cfg.Account.Address, password)
	return st, client, nil
}
