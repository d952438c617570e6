package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/mbenali/mailbox/internal/model"
	"github.com/mbenali/mailbox/internal/store"
)

// Fetcher retrieves the most recent window of remote messages,
// oldest-first, along with a count of messages skipped over extraction
// failures.
type Fetcher interface {
	FetchRecent(ctx context.Context, maxCount int) ([]model.Email, int, error)
}

// Result is delivered on the result channel when a sync run completes.
type Result struct {
	// New holds the persisted copies of messages that were not already
	// mirrored, in the order they were saved (oldest first).
	New []model.Email

	// NewCount is len(New); kept explicit for callers that only render
	// the count.
	NewCount int

	// Skipped counts remote messages dropped because their content
	// could not be extracted.
	Skipped int

	// Err reports a failed fetch, or joined per-message store errors.
	// A run with Err != nil may still have persisted some messages.
	Err error
}

// defaultTimeout bounds one full fetch-and-persist run.
const defaultTimeout = 30 * time.Second

// Syncer reconciles freshly fetched inbox windows against the local
// store. At most one run is in flight at a time: overlapping refresh
// requests coalesce instead of racing each other's dedup checks.
type Syncer struct {
	store    store.Store
	fetcher  Fetcher
	window   int
	timeout  time.Duration
	inFlight atomic.Bool
	resultCh chan Result
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithWindow sets the number of most recent messages fetched per run.
func WithWindow(n int) Option {
	return func(s *Syncer) {
		if n > 0 {
			s.window = n
		}
	}
}

// WithTimeout bounds a single run.
func WithTimeout(d time.Duration) Option {
	return func(s *Syncer) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New creates a Syncer over the given store and fetcher.
func New(st store.Store, f Fetcher, opts ...Option) *Syncer {
	s := &Syncer{
		store:    st,
		fetcher:  f,
		window:   20,
		timeout:  defaultTimeout,
		resultCh: make(chan Result, 16),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Results returns the channel on which completed runs are delivered.
// The owning context receives from it; the sync goroutine never calls
// back into the caller.
func (s *Syncer) Results() <-chan Result {
	return s.resultCh
}

// Run dispatches one sync run on a background goroutine and returns
// immediately. It reports false, and does nothing, when a run is
// already in flight.
func (s *Syncer) Run() bool {
	if !s.inFlight.CompareAndSwap(false, true) {
		return false
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		res := s.syncOnce(ctx)

		// Release the guard before delivering, so a caller reacting to
		// the result can start the next run immediately.
		s.inFlight.Store(false)
		s.sendResult(res)
	}()

	return true
}

// Sync performs one run synchronously. It acquires the same in-flight
// guard as Run; a concurrent run yields an immediate error result.
func (s *Syncer) Sync(ctx context.Context) Result {
	if !s.inFlight.CompareAndSwap(false, true) {
		return Result{Err: errors.New("sync already in progress")}
	}
	defer s.inFlight.Store(false)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.syncOnce(ctx)
}

// syncOnce runs the fetch → dedup → persist pipeline once. Messages are
// persisted in the fetcher's oldest-first order. A store failure on one
// message is recorded and the remaining messages are still processed.
func (s *Syncer) syncOnce(ctx context.Context) Result {
	batch, skipped, err := s.fetcher.FetchRecent(ctx, s.window)
	if err != nil {
		return Result{Skipped: skipped, Err: fmt.Errorf("fetching inbox: %w", err)}
	}

	var (
		saved     []model.Email
		storeErrs []error
	)

	for _, m := range batch {
		exists, err := s.store.EmailExists(ctx, m.Sender, m.Subject, m.SentAt)
		if err != nil {
			storeErrs = append(storeErrs, fmt.Errorf(
				"checking %q from %s: %w", m.Subject, m.Sender, err,
			))
			continue
		}
		if exists {
			continue
		}

		persisted, err := s.store.SaveEmail(ctx, m)
		if err != nil {
			storeErrs = append(storeErrs, fmt.Errorf(
				"saving %q from %s: %w", m.Subject, m.Sender, err,
			))
			continue
		}
		saved = append(saved, persisted)
	}

	return Result{
		New:      saved,
		NewCount: len(saved),
		Skipped:  skipped,
		Err:      errors.Join(storeErrs...),
	}
}

// sendResult delivers a result without blocking the sync goroutine.
func (s *Syncer) sendResult(res Result) {
	select {
	case s.resultCh <- res:
	default:
		// Nobody is draining the channel and it is full.
		log.Printf("sync: dropping result (new=%d err=%v)", res.NewCount, res.Err)
	}
}
