package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetcher_HTTPDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "product-match/1.0", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("article_number,name\nA1,Billy\n"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	path, err := NewFetcher(FetcherOptions{DownloadRate: 100}).Fetch(context.Background(), srv.URL+"/feed.csv", dir)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "A1,Billy")
}

func TestFetcher_HTTPStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewFetcher(FetcherOptions{DownloadRate: 100}).Fetch(context.Background(), srv.URL+"/feed.csv", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestFetcher_UnsupportedScheme(t *testing.T) {
	_, err := NewFetcher(FetcherOptions{DownloadRate: 100}).Fetch(context.Background(), "gopher://example.com/feed", t.TempDir())
	assert.Error(t, err)
}

func TestFetcher_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The limiter wait observes the canceled context before any dial.
	_, err := NewFetcher(FetcherOptions{}).Fetch(ctx, "http://example.invalid/feed.csv", t.TempDir())
	assert.Error(t, err)
}

func TestNewFetcher_Defaults(t *testing.T) {
	f := NewFetcher(FetcherOptions{})
	assert.Equal(t, "product-match/1.0", f.opts.UserAgent)
	assert.Equal(t, float64(2), f.opts.DownloadRate)
	assert.NotNil(t, f.client)
	assert.NotNil(t, f.limiter)
}
