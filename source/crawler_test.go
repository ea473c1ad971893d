package source

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tarkah/mirror-caddy/config"
	"github.com/tarkah/mirror-caddy/model"
	"github.com/tarkah/mirror-caddy/testutils"
)

func testTree() testutils.Tree {
	return testutils.Tree{
		"readme.txt": "root readme",
		"docs": testutils.Tree{
			"guide.md": "guide",
			"api": testutils.Tree{
				"v1.json": "{}",
				"v2.json": "{}",
			},
		},
		"empty": testutils.Tree{},
		"bin": testutils.Tree{
			"tool": "ELF",
		},
	}
}

// consume drains both crawler streams and returns everything received.
func consume(t *testing.T, filesCh <-chan model.FileTask, errCh <-chan error) ([]model.FileTask, []error) {
	t.Helper()

	var tasks []model.FileTask
	var errs []error
	timeout := time.After(10 * time.Second)

	for filesCh != nil || errCh != nil {
		select {
		case <-timeout:
			t.Fatal("crawl did not terminate")
		case task, ok := <-filesCh:
			if !ok {
				filesCh = nil
				continue
			}
			tasks = append(tasks, task)
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			errs = append(errs, err)
		}
	}
	return tasks, errs
}

func crawl(t *testing.T, srv *testutils.CaddyServer, workers int) ([]model.FileTask, []error) {
	t.Helper()

	cfg := &config.SourceConfig{
		BaseURL: srv.URL(),
		Common:  config.CommonSourceConfig{WorkerCount: workers},
	}
	client := NewClient(cfg)
	crawler := NewCrawler(client, cfg, nil)

	filesCh, errCh := crawler.EnumerateStream(context.Background())
	return consume(t, filesCh, errCh)
}

func relPaths(tasks []model.FileTask) []string {
	paths := make([]string, 0, len(tasks))
	for _, task := range tasks {
		paths = append(paths, task.RelPath)
	}
	sort.Strings(paths)
	return paths
}

func TestCrawl_FindsAllFiles(t *testing.T) {
	for _, workers := range []int{1, 5, 50} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			srv := testutils.NewCaddyServer(testTree())
			defer srv.Close()

			tasks, errs := crawl(t, srv, workers)
			require.Empty(t, errs)
			require.Equal(t, []string{
				"bin/tool",
				"docs/api/v1.json",
				"docs/api/v2.json",
				"docs/guide.md",
				"readme.txt",
			}, relPaths(tasks))
		})
	}
}

func TestCrawl_TaskURLsResolve(t *testing.T) {
	srv := testutils.NewCaddyServer(testTree())
	defer srv.Close()

	tasks, errs := crawl(t, srv, 5)
	require.Empty(t, errs)

	for _, task := range tasks {
		require.Equal(t, srv.URL()+"/"+task.RelPath, task.URL)
	}
}

func TestCrawl_EmptyRoot(t *testing.T) {
	srv := testutils.NewCaddyServer(testutils.Tree{})
	defer srv.Close()

	tasks, errs := crawl(t, srv, 5)
	require.Empty(t, errs)
	require.Empty(t, tasks)
}

func TestCrawl_BrokenBranchStillTerminates(t *testing.T) {
	srv := testutils.NewCaddyServer(testTree())
	defer srv.Close()

	// Every listing of docs/ fails; its subtree is dropped but the crawl
	// still finishes and reports the rest of the tree.
	srv.FailTimes("docs", 1000)

	tasks, errs := crawl(t, srv, 5)
	require.Len(t, errs, 1)
	require.Contains(t, errs[0].Error(), "failed to list")
	require.Equal(t, []string{
		"bin/tool",
		"readme.txt",
	}, relPaths(tasks))
}

func TestCrawl_SkipsDotEntries(t *testing.T) {
	srv := testutils.NewCaddyServer(testutils.Tree{
		".":      "self",
		"..":     "parent",
		"":       "nameless",
		"ok.txt": "fine",
	})
	defer srv.Close()

	tasks, errs := crawl(t, srv, 3)
	require.Empty(t, errs)
	require.Equal(t, []string{"ok.txt"}, relPaths(tasks))
}

func TestCrawl_FrontierWiderThanQueue(t *testing.T) {
	// Many sibling directories discovered from a single listing, against a
	// queue buffer of 1: the crawl must still terminate with every file
	// found even though the frontier never fits in the buffer.
	tree := testutils.Tree{}
	var want []string
	for i := 0; i < 30; i++ {
		name := fmt.Sprintf("dir%02d", i)
		tree[name] = testutils.Tree{"f.txt": "x"}
		want = append(want, name+"/f.txt")
	}
	sort.Strings(want)

	srv := testutils.NewCaddyServer(tree)
	defer srv.Close()

	cfg := &config.SourceConfig{
		BaseURL: srv.URL(),
		Common:  config.CommonSourceConfig{WorkerCount: 2, MaxQueueSize: 1},
	}
	client := NewClient(cfg)
	crawler := NewCrawler(client, cfg, nil)

	filesCh, errCh := crawler.EnumerateStream(context.Background())
	tasks, errs := consume(t, filesCh, errCh)
	require.Empty(t, errs)
	require.Equal(t, want, relPaths(tasks))
}

func TestCrawl_ContextCancel(t *testing.T) {
	srv := testutils.NewCaddyServer(testTree())
	defer srv.Close()

	cfg := &config.SourceConfig{
		BaseURL: srv.URL(),
		Common:  config.CommonSourceConfig{WorkerCount: 2},
	}
	client := NewClient(cfg)
	crawler := NewCrawler(client, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	filesCh, errCh := crawler.EnumerateStream(ctx)
	tasks, _ := consume(t, filesCh, errCh)

	// A cancelled crawl closes its channels without emitting the whole tree.
	require.Less(t, len(tasks), 5)
}
