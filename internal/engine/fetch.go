package engine

import (
	"context"
	"errors"
)

// ErrFetchInFlight is returned when a fetch is requested while another is
// still running. Only one remote sync runs at a time.
var ErrFetchInFlight = errors.New("a fetch is already in progress")

// FetchResult summarizes one remote sync pass.
type FetchResult struct {
	// Fetched is how many messages were downloaded from the server.
	Fetched int

	// New is how many of them were actually inserted; the rest were
	// duplicates skipped by id.
	New int
}

// Fetch runs one synchronous remote sync pass: resolve the configured
// window, download, normalize, classify, and persist. Progress is
// reported after each downloaded message. Callers drive it off the UI's
// execution context; a second concurrent call fails fast with
// ErrFetchInFlight.
func (e *Engine) Fetch(ctx context.Context, progress func(current, total int)) (FetchResult, error) {
	e.mu.Lock()
	if e.fetching {
		e.mu.Unlock()
		return FetchResult{}, ErrFetchInFlight
	}
	e.fetching = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.fetching = false
		e.mu.Unlock()
	}()

	messages, err := e.fetcher.Fetch(ctx, e.cfg.Fetch, progress)
	if err != nil {
		e.log.Error("fetch failed", "error", err)
		return FetchResult{}, err
	}
	if len(messages) == 0 {
		e.log.Info("fetch complete", "fetched", 0, "new", 0)
		return FetchResult{}, nil
	}

	inserted, err := e.store.SaveMessages(ctx, messages, e.classifier)
	if err != nil {
		return FetchResult{Fetched: len(messages)}, err
	}

	e.log.Info("fetch complete", "fetched", len(messages), "new", inserted)
	return FetchResult{Fetched: len(messages), New: inserted}, nil
}

// FetchAsync runs Fetch on its own goroutine and delivers the outcome to
// done. The in-flight guard still applies: a concurrent call reports
// ErrFetchInFlight through done without starting a second sync.
func (e *Engine) FetchAsync(
	ctx context.Context,
	progress func(current, total int),
	done func(FetchResult, error),
) {
	go func() {
		result, err := e.Fetch(ctx, progress)
		if done != nil {
			done(result, err)
		}
	}()
}
