package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tarkah/mirror-caddy/config"
	"github.com/tarkah/mirror-caddy/model"
)

func newTestClient(baseURL string) *Client {
	cfg := &config.SourceConfig{BaseURL: baseURL}
	return NewClient(cfg)
}

func TestListDirectory(t *testing.T) {
	var gotAccept, gotUserAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept")
		gotUserAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"name":"a.txt","url":"./a.txt","is_dir":false},{"name":"sub/","url":"sub/","is_dir":true}]`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	entries, err := c.ListDirectory(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	require.Equal(t, "application/json", gotAccept)
	require.Equal(t, "mirror-caddy/0.1", gotUserAgent)

	require.Len(t, entries, 2)
	require.Equal(t, model.ListingEntry{Name: "a.txt", URL: "./a.txt", IsDir: false}, entries[0])
	require.Equal(t, model.ListingEntry{Name: "sub/", URL: "sub/", IsDir: true}, entries[1])
}

func TestListDirectory_MissingFieldsDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"name":"bare"}]`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	entries, err := c.ListDirectory(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.False(t, entries[0].IsDir)
	require.Empty(t, entries[0].URL)
}

func TestListDirectory_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.ListDirectory(context.Background(), srv.URL+"/")
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusInternalServerError, statusErr.Code)
}

func TestListDirectory_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>not json</html>`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.ListDirectory(context.Background(), srv.URL+"/")
	require.Error(t, err)
	require.Contains(t, err.Error(), "malformed listing")
}

func TestFetchFile_Unconditional(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Empty(t, r.Header.Get("If-None-Match"))
		require.Empty(t, r.Header.Get("If-Modified-Since"))
		w.Header().Set("ETag", `"e1"`)
		w.Header().Set("Last-Modified", "Wed, 21 Oct 2015 07:28:00 GMT")
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	resp, err := c.FetchFile(context.Background(), srv.URL+"/f.txt", model.Validator{})
	require.NoError(t, err)
	require.False(t, resp.NotModified)
	require.Equal(t, []byte("hello"), resp.Body)
	require.Equal(t, `"e1"`, resp.Validator.ETag)
	require.Equal(t, "Wed, 21 Oct 2015 07:28:00 GMT", resp.Validator.LastModified)
}

func TestFetchFile_ConditionalHeaders(t *testing.T) {
	var gotINM, gotIMS string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotINM = r.Header.Get("If-None-Match")
		gotIMS = r.Header.Get("If-Modified-Since")
		w.WriteHeader(http.StatusNotModified)
	}))
	defer srv.Close()

	cond := model.Validator{ETag: `"e1"`, LastModified: "Wed, 21 Oct 2015 07:28:00 GMT"}

	c := newTestClient(srv.URL)
	resp, err := c.FetchFile(context.Background(), srv.URL+"/f.txt", cond)
	require.NoError(t, err)
	require.True(t, resp.NotModified)
	require.Nil(t, resp.Body)
	require.Equal(t, `"e1"`, gotINM)
	require.Equal(t, "Wed, 21 Oct 2015 07:28:00 GMT", gotIMS)
}

func TestFetchFile_PartialValidator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, `"only-etag"`, r.Header.Get("If-None-Match"))
		require.Empty(t, r.Header.Get("If-Modified-Since"))
		w.Write([]byte("data"))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	resp, err := c.FetchFile(context.Background(), srv.URL+"/f.txt", model.Validator{ETag: `"only-etag"`})
	require.NoError(t, err)
	require.False(t, resp.NotModified)
	// Response without validators yields empty fields, not an error
	require.True(t, resp.Validator.IsZero())
}

func TestFetchFile_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.FetchFile(context.Background(), srv.URL+"/gone.txt", model.Validator{})

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusNotFound, statusErr.Code)
}
