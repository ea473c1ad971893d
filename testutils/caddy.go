package testutils

import (
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"time"
)

// Tree describes a fake remote file tree. A string value is file content, a
// nested Tree is a subdirectory.
type Tree map[string]interface{}

type listingEntry struct {
	Name  string `json:"name"`
	URL   string `json:"url"`
	IsDir bool   `json:"is_dir"`
}

// CaddyServer is an in-process HTTP file server that mimics a file server
// with JSON directory listings: directories answer with a JSON array of
// entries, files answer with their content plus ETag and Last-Modified
// headers and honor If-None-Match / If-Modified-Since with 304.
type CaddyServer struct {
	srv *httptest.Server

	mu       sync.Mutex
	tree     Tree
	modTime  time.Time
	failures map[string]int // path -> remaining forced 500s
	requests map[string]int // path -> GET count
}

// NewCaddyServer starts a server over the given tree. Call Close when done.
func NewCaddyServer(tree Tree) *CaddyServer {
	s := &CaddyServer{
		tree:     tree,
		modTime:  time.Now().UTC().Truncate(time.Second),
		failures: make(map[string]int),
		requests: make(map[string]int),
	}
	s.srv = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

func (s *CaddyServer) URL() string { return s.srv.URL }

func (s *CaddyServer) Close() { s.srv.Close() }

// FailTimes makes the next n requests for path answer 500. The path is the
// URL path without a leading slash, e.g. "dir/file.txt" or "" for the root
// listing.
func (s *CaddyServer) FailTimes(path string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = n
}

// Requests returns how many times path has been requested.
func (s *CaddyServer) Requests(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[path]
}

// SetContent replaces the content of an existing file and advances the
// server's Last-Modified time, so conditional requests see a change.
func (s *CaddyServer) SetContent(path string, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	parts := strings.Split(path, "/")
	node := s.tree
	for _, part := range parts[:len(parts)-1] {
		child, ok := node[part].(Tree)
		if !ok {
			panic(fmt.Sprintf("testutils: no such directory %q in %q", part, path))
		}
		node = child
	}
	node[parts[len(parts)-1]] = content
	s.modTime = s.modTime.Add(time.Second)
}

// resolve walks the tree; the second return is true for a directory.
func (s *CaddyServer) resolve(path string) (interface{}, bool) {
	var node interface{} = s.tree
	if path != "" {
		for _, part := range strings.Split(path, "/") {
			dir, ok := node.(Tree)
			if !ok {
				return nil, false
			}
			node, ok = dir[part]
			if !ok {
				return nil, false
			}
		}
	}
	_, isDir := node.(Tree)
	return node, isDir
}

func etagFor(content string) string {
	return fmt.Sprintf("%q", fmt.Sprintf("%x", sha1.Sum([]byte(content))))
}

func (s *CaddyServer) handle(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(r.URL.Path, "/")

	s.mu.Lock()
	s.requests[path]++
	if s.failures[path] > 0 {
		s.failures[path]--
		s.mu.Unlock()
		http.Error(w, "injected failure", http.StatusInternalServerError)
		return
	}
	node, isDir := s.resolve(path)
	modTime := s.modTime
	s.mu.Unlock()

	if node == nil && path != "" {
		http.NotFound(w, r)
		return
	}

	if isDir {
		dir := node.(Tree)
		entries := make([]listingEntry, 0, len(dir))
		for name, child := range dir {
			if _, sub := child.(Tree); sub {
				entries = append(entries, listingEntry{Name: name + "/", URL: name + "/", IsDir: true})
			} else {
				entries = append(entries, listingEntry{Name: name, URL: "./" + name, IsDir: false})
			}
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(entries)
		return
	}

	content := node.(string)
	etag := etagFor(content)
	lastModified := modTime.Format(http.TimeFormat)

	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	if ims := r.Header.Get("If-Modified-Since"); ims != "" {
		if t, err := http.ParseTime(ims); err == nil && !modTime.After(t) {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Last-Modified", lastModified)
	w.Write([]byte(content))
}
