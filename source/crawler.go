package source

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/tarkah/mirror-caddy/config"
	"github.com/tarkah/mirror-caddy/logger"
	"github.com/tarkah/mirror-caddy/model"
)

// workItem is one queued unit of crawl work: a directory to list and the
// relative path prefix accumulated on the way down to it.
type workItem struct {
	dirURL string
	prefix string
}

// Crawler walks the remote directory tree with a fixed pool of workers that
// both consume and produce work. Enqueues past the queue buffer spill to
// goroutines, so a worker never blocks producing while its peers do the
// same; termination is decided by a shared in-flight counter rather than
// timing heuristics.
type Crawler struct {
	client  *Client
	baseURL string
	cfg     *config.CommonSourceConfig
	logger  logger.Logger

	inFlight int64
}

// NewCrawler creates a crawler rooted at the source base URL.
func NewCrawler(client *Client, cfg *config.SourceConfig, log logger.Logger) *Crawler {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	cfg.ApplyDefaults()

	return &Crawler{
		client:  client,
		baseURL: cfg.BaseURL,
		cfg:     &cfg.Common,
		logger:  log,
	}
}

// EnumerateStream walks the tree and streams every discovered file. Ordering
// depends on worker interleaving and must not be relied on. Listing failures
// are sent on the error channel and drop only the affected subtree; they
// never abort the crawl. Both channels are closed once the tree is drained.
func (c *Crawler) EnumerateStream(ctx context.Context) (<-chan model.FileTask, <-chan error) {
	filesCh := make(chan model.FileTask, c.cfg.MaxQueueSize)
	errCh := make(chan error, 10)
	queue := make(chan workItem, c.cfg.MaxQueueSize)

	// The seed item accounts for the initial 1.
	atomic.StoreInt64(&c.inFlight, 1)
	queue <- workItem{dirURL: c.baseURL + "/", prefix: ""}

	var wg sync.WaitGroup
	for i := 0; i < c.cfg.WorkerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.worker(ctx, queue, filesCh, errCh)
		}()
	}

	go func() {
		wg.Wait()
		close(filesCh)
		close(errCh)
	}()

	return filesCh, errCh
}

func (c *Crawler) worker(ctx context.Context, queue chan workItem, filesCh chan<- model.FileTask, errCh chan<- error) {
	for {
		select {
		case <-ctx.Done():
			return
		case item, ok := <-queue:
			if !ok {
				return
			}
			if done := c.processItem(ctx, item, queue, filesCh, errCh); done {
				return
			}
		}
	}
}

// processItem lists one directory, emits its files, and enqueues its
// subdirectories. It returns true when the worker should stop (context
// cancelled). The in-flight counter is raised by the number of children
// BEFORE any child is enqueued, so a peer finishing a child early can never
// drive the counter to zero while work remains; the worker whose final
// decrement reaches zero closes the queue, exactly once.
func (c *Crawler) processItem(ctx context.Context, item workItem, queue chan workItem, filesCh chan<- model.FileTask, errCh chan<- error) bool {
	dirURL := item.dirURL
	if !strings.HasSuffix(dirURL, "/") {
		dirURL += "/"
	}

	c.logger.Debug("Fetching directory listing: %s", dirURL)

	entries, err := c.client.ListDirectory(ctx, dirURL)
	if err != nil {
		// The subtree is dropped; for termination purposes the item counts
		// as already exhausted.
		select {
		case errCh <- fmt.Errorf("failed to list %s: %w", dirURL, err):
		case <-ctx.Done():
			return true
		}
	} else {
		var subdirs []workItem
		for _, entry := range entries {
			name := strings.TrimRight(entry.Name, "/")
			if name == "" || name == "." || name == ".." {
				continue
			}
			urlPath := strings.TrimPrefix(entry.URL, "./")
			fullPath := item.prefix + name
			fullURL := dirURL + urlPath

			if entry.IsDir {
				subdirs = append(subdirs, workItem{dirURL: fullURL, prefix: fullPath + "/"})
			} else {
				c.logger.Debug("Found file: %s -> %s", fullPath, fullURL)
				select {
				case filesCh <- model.FileTask{RelPath: fullPath, URL: fullURL}:
				case <-ctx.Done():
					return true
				}
			}
		}

		if len(subdirs) > 0 {
			atomic.AddInt64(&c.inFlight, int64(len(subdirs)))
			for _, wi := range subdirs {
				select {
				case queue <- wi:
				case <-ctx.Done():
					return true
				default:
					// Queue full. Spill to a goroutine so a frontier wider
					// than the buffer can never block every worker on its
					// own enqueues. The item is already counted, so the
					// queue cannot close underneath the pending send.
					go func(wi workItem) {
						select {
						case queue <- wi:
						case <-ctx.Done():
						}
					}(wi)
				}
			}
		}
	}

	if atomic.AddInt64(&c.inFlight, -1) == 0 {
		close(queue)
	}
	return false
}
