package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogCSV = "id,ident,type,name\n1,KI16,small_airport,Kee Field\n"

func TestFetchCatalog(t *testing.T) {
	var full atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"c1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		full.Add(1)
		w.Header().Set("ETag", `"c1"`)
		_, _ = w.Write([]byte(catalogCSV))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "airports.csv")
	f := newTestFetcher()

	changed, err := FetchCatalog(context.Background(), f, srv.URL, path)
	require.NoError(t, err)
	assert.True(t, changed)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, catalogCSV, string(data))

	etag, err := os.ReadFile(path + ".etag")
	require.NoError(t, err)
	assert.Equal(t, "\"c1\"\n", string(etag))

	changed, err = FetchCatalog(context.Background(), f, srv.URL, path)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, int32(1), full.Load())
}

func TestFetchCatalog_MissingFileIgnoresETag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("If-None-Match"))
		_, _ = w.Write([]byte(catalogCSV))
	}))
	defer srv.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "airports.csv")
	require.NoError(t, os.WriteFile(path+".etag", []byte(`"stale"`), 0o644))

	changed, err := FetchCatalog(context.Background(), newTestFetcher(), srv.URL, path)
	require.NoError(t, err)
	assert.True(t, changed)

	// No ETag in the response drops the stale sidecar.
	_, err = os.Stat(path + ".etag")
	assert.True(t, os.IsNotExist(err))
}

func TestFetchCatalog_Error(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "airports.csv")
	_, err := FetchCatalog(context.Background(), newTestFetcher(), srv.URL, path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog")

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
