package processor

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/tarkah/mirror-caddy/fetcher"
	"github.com/tarkah/mirror-caddy/logger"
	"github.com/tarkah/mirror-caddy/model"
	"github.com/tarkah/mirror-caddy/source"
)

// Runner drives one mirror run: enumerate the remote tree, then download
// every discovered file through a worker pool.
type Runner struct {
	crawler     *source.Crawler
	fetcher     *fetcher.Fetcher
	logger      logger.Logger
	workerCount int

	discovered int64
	completed  int64
}

// NewRunner creates a new Runner with the provided dependencies
func NewRunner(crawler *source.Crawler, f *fetcher.Fetcher, workerCount int, log logger.Logger) *Runner {
	// Use NoOpLogger if none provided
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if workerCount <= 0 {
		workerCount = 50
	}
	return &Runner{
		crawler:     crawler,
		fetcher:     f,
		logger:      log,
		workerCount: workerCount,
	}
}

// MirrorStats contains statistics from one mirror run
type MirrorStats struct {
	Discovered    int64 // Files found during enumeration
	Downloaded    int64 // Files fetched and stored
	Skipped       int64 // Files the server reported unchanged (304)
	Failed        int64 // Files that exhausted their retry budget
	ListingErrors int64 // Directory listings that failed (subtrees dropped)
}

func (s *MirrorStats) String() string {
	return fmt.Sprintf("Mirror complete: %d downloaded, %d unchanged, %d failed",
		s.Downloaded, s.Skipped, s.Failed)
}

// DiscoveredCount returns the number of files found so far. Safe to call
// concurrently with Run.
func (r *Runner) DiscoveredCount() int64 {
	return atomic.LoadInt64(&r.discovered)
}

// CompletedCount returns the number of files that reached a final outcome so
// far. Safe to call concurrently with Run.
func (r *Runner) CompletedCount() int64 {
	return atomic.LoadInt64(&r.completed)
}

// Run performs one full mirror pass. Enumeration completes before any
// download starts, so progress can be reported against a known total. The
// returned stats are valid even when err is non-nil.
func (r *Runner) Run(ctx context.Context) (*MirrorStats, error) {
	stats := &MirrorStats{}

	r.logger.Info("Starting mirror run")

	// 1. Enumerate the remote tree
	r.logger.Debug("Step 1: Enumerating remote tree")
	tasks, err := r.enumerate(ctx, stats)
	if err != nil {
		r.logger.Error("Enumeration failed: %v", err)
		return stats, err
	}
	stats.Discovered = int64(len(tasks))
	if stats.ListingErrors > 0 {
		r.logger.Warn("Enumeration finished with %d listing errors; affected subtrees were skipped", stats.ListingErrors)
	}
	r.logger.Info("Found %d files to check", len(tasks))

	// 2. Download through the worker pool
	r.logger.Debug("Step 2: Downloading files")
	if err := r.download(ctx, tasks, stats); err != nil {
		r.logger.Error("Download phase failed: %v", err)
		return stats, err
	}

	r.logger.Info(stats.String())
	return stats, nil
}

// enumerate drains the crawler's streams into a task list. Listing errors are
// counted but do not abort the run; only context cancellation does.
func (r *Runner) enumerate(ctx context.Context, stats *MirrorStats) ([]model.FileTask, error) {
	filesCh, errCh := r.crawler.EnumerateStream(ctx)

	// Periodic discovery progress
	progressTicker := time.NewTicker(1 * time.Second)
	defer progressTicker.Stop()

	progressCtx, progressCancel := context.WithCancel(ctx)
	defer progressCancel()

	go func() {
		for {
			select {
			case <-progressCtx.Done():
				return
			case <-progressTicker.C:
				found := atomic.LoadInt64(&r.discovered)
				if found > 0 {
					r.logger.Info("Enumeration progress: %d files found", found)
				}
			}
		}
	}()

	var tasks []model.FileTask
	for filesCh != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return tasks, ctx.Err()
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			stats.ListingErrors++
			r.logger.Warn("%v", err)
		case task, ok := <-filesCh:
			if !ok {
				filesCh = nil
				continue
			}
			tasks = append(tasks, task)
			atomic.AddInt64(&r.discovered, 1)
			r.logger.Verbose("Discovered %s", task.RelPath)
		}
	}
	return tasks, nil
}

// download fans the task list out to the worker pool and folds the per-file
// outcomes into stats.
func (r *Runner) download(ctx context.Context, tasks []model.FileTask, stats *MirrorStats) error {
	if len(tasks) == 0 {
		r.logger.Info("No files to download")
		return nil
	}

	type downloadResult struct {
		task    model.FileTask
		outcome model.Outcome
		err     error
	}

	jobs := make(chan model.FileTask, len(tasks))
	results := make(chan downloadResult, len(tasks))

	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.logger.Debug("Starting %d download workers...", r.workerCount)

	for w := 0; w < r.workerCount; w++ {
		go func() {
			for task := range jobs {
				select {
				case <-workerCtx.Done():
					results <- downloadResult{task: task, outcome: model.OutcomeFailed, err: workerCtx.Err()}
				default:
					outcome, err := r.fetcher.Fetch(workerCtx, task)
					results <- downloadResult{task: task, outcome: outcome, err: err}
				}
			}
		}()
	}

	for _, task := range tasks {
		jobs <- task
	}
	close(jobs)

	// Periodic download progress
	total := int64(len(tasks))
	progressTicker := time.NewTicker(1 * time.Second)
	defer progressTicker.Stop()

	progressCtx, progressCancel := context.WithCancel(ctx)
	defer progressCancel()

	go func() {
		for {
			select {
			case <-progressCtx.Done():
				return
			case <-progressTicker.C:
				done := atomic.LoadInt64(&r.completed)
				if done > 0 && done < total {
					percentage := float64(done) / float64(total) * 100
					r.logger.Info("Download progress: %d/%d files (%.1f%%)", done, total, percentage)
				}
			}
		}
	}()

	for i := 0; i < len(tasks); i++ {
		select {
		case <-ctx.Done():
			cancel()
			return ctx.Err()
		case result := <-results:
			n := atomic.AddInt64(&r.completed, 1)

			switch result.outcome {
			case model.OutcomeDownloaded:
				stats.Downloaded++
				r.logger.Info("[%d/%d] Downloaded %s", n, total, result.task.RelPath)
			case model.OutcomeSkipped:
				stats.Skipped++
				r.logger.Debug("[%d/%d] Unmodified %s", n, total, result.task.RelPath)
			case model.OutcomeFailed:
				stats.Failed++
				r.logger.Error("[%d/%d] Failed %s: %v", n, total, result.task.RelPath, result.err)
			}
		}
	}

	return nil
}
