package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tarkah/mirror-caddy/destination"
	"github.com/tarkah/mirror-caddy/logger"
	"github.com/tarkah/mirror-caddy/metadata"
	"github.com/tarkah/mirror-caddy/model"
	"github.com/tarkah/mirror-caddy/source"
)

const maxAttempts = 3

// retryDelays holds the pause before retry attempt n. Attempts past the table
// reuse the last entry.
var retryDelays = []time.Duration{
	500 * time.Millisecond,
	2 * time.Second,
	5 * time.Second,
}

func delayFor(attempt int) time.Duration {
	if attempt < len(retryDelays) {
		return retryDelays[attempt]
	}
	return retryDelays[len(retryDelays)-1]
}

// Fetcher downloads one file at a time: conditional GET against cached
// validators, write through the destination, then persist the fresh
// validators. It is safe for concurrent use by multiple workers.
type Fetcher struct {
	client *source.Client
	store  metadata.Store
	dest   destination.Provider
	logger logger.Logger
}

// NewFetcher creates a fetcher wiring the source client, metadata store and
// destination together.
func NewFetcher(client *source.Client, store metadata.Store, dest destination.Provider, log logger.Logger) *Fetcher {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Fetcher{
		client: client,
		store:  store,
		dest:   dest,
		logger: log,
	}
}

// Fetch processes one file task to a final outcome. Transport errors and bad
// statuses are retried up to maxAttempts with fixed delays; a 304 or a stored
// file ends the task immediately. The returned error describes the last
// attempt and accompanies OutcomeFailed only.
func (f *Fetcher) Fetch(ctx context.Context, task model.FileTask) (model.Outcome, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			f.logger.Debug("Retrying %s (attempt %d/%d): %v", task.RelPath, attempt+1, maxAttempts, lastErr)
			select {
			case <-time.After(delayFor(attempt - 1)):
			case <-ctx.Done():
				return model.OutcomeFailed, ctx.Err()
			}
		}

		outcome, err := f.fetchOnce(ctx, task)
		if err == nil {
			return outcome, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return model.OutcomeFailed, err
		}
		lastErr = err
	}
	return model.OutcomeFailed, fmt.Errorf("giving up after %d attempts: %w", maxAttempts, lastErr)
}

// fetchOnce performs a single conditional GET. Validators are re-read from
// the store on every attempt, so a concurrent or earlier partial run is
// always observed.
func (f *Fetcher) fetchOnce(ctx context.Context, task model.FileTask) (model.Outcome, error) {
	cond, err := f.store.Get(task.RelPath)
	if err != nil && !errors.Is(err, metadata.ErrNotFound) {
		f.logger.Warn("Failed to read validators for %s: %v", task.RelPath, err)
		cond = model.Validator{}
	}

	f.logger.Verbose("GET %s (etag=%q, last_modified=%q)", task.URL, cond.ETag, cond.LastModified)

	resp, err := f.client.FetchFile(ctx, task.URL, cond)
	if err != nil {
		return model.OutcomeFailed, err
	}
	if resp.NotModified {
		return model.OutcomeSkipped, nil
	}

	if err := f.dest.Store(ctx, task.RelPath, bytes.NewReader(resp.Body)); err != nil {
		return model.OutcomeFailed, err
	}

	// The fresh validator replaces any previous one even when the response
	// carried no validator headers: a kept stale pair could later produce a
	// spurious 304 against changed content. The file is already on disk;
	// losing the write only costs one unconditional fetch next run.
	v := resp.Validator.Normalize()
	f.logger.Verbose("Stored %s (etag=%q, last_modified=%q)", task.RelPath, v.ETag, v.LastModified)
	if err := f.store.Put(task.RelPath, v); err != nil {
		f.logger.Warn("Failed to persist validators for %s: %v", task.RelPath, err)
	}

	return model.OutcomeDownloaded, nil
}
