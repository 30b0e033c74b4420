package update

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/sqlstride/internal/version"
)

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want int
	}{
		{name: "1.0.0 < 1.0.1", a: "1.0.0", b: "1.0.1", want: -1},
		{name: "1.0.1 > 1.0.0", a: "1.0.1", b: "1.0.0", want: 1},
		{name: "1.0.0 == 1.0.0", a: "1.0.0", b: "1.0.0", want: 0},
		{name: "v1.0.0 < 1.0.1", a: "v1.0.0", b: "1.0.1", want: -1},
		{name: "v1.0.0 == v1.0.0", a: "v1.0.0", b: "v1.0.0", want: 0},
		{name: "2.0.0 > 1.9.9", a: "2.0.0", b: "1.9.9", want: 1},
		{name: "dev > 1.0.0", a: "dev", b: "1.0.0", want: 1},
		{name: "1.0.0 < dev", a: "1.0.0", b: "dev", want: -1},
		{name: "1.0.0-beta == 1.0.0", a: "1.0.0-beta", b: "1.0.0", want: 0},
		{name: "0.10.0 > 0.9.0", a: "0.10.0", b: "0.9.0", want: 1},
		{name: "1.2 == 1.2.0", a: "1.2", b: "1.2.0", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, compareVersions(tt.a, tt.b))
		})
	}
}

func TestCacheDir(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg")
	dir, err := cacheDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/tmp/xdg", "sqlstride"), dir)
}

func TestChecker_FetchesAndCaches(t *testing.T) {
	old := version.Version
	version.Version = "0.1.0"
	t.Cleanup(func() { version.Version = old })

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "sqlstride/0.1.0", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`{"tag_name":"v0.2.0","html_url":"https://example.com/r/v0.2.0"}`))
	}))
	defer srv.Close()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c := &Checker{URL: srv.URL, CacheDir: t.TempDir(), Client: srv.Client(), Now: func() time.Time { return now }}

	info, err := c.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0.2.0", info.LatestVersion)
	assert.Equal(t, "0.1.0", info.CurrentVersion)
	assert.Equal(t, "https://example.com/r/v0.2.0", info.ReleaseURL)
	assert.True(t, info.UpdateAvailable)

	// Served from cache within a day.
	now = now.Add(time.Hour)
	_, err = c.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())

	// Refreshed once the cache is stale.
	now = now.Add(cacheTTL)
	_, err = c.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestChecker_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := &Checker{URL: srv.URL, Client: srv.Client(), Now: time.Now}
	_, err := c.Check(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
}
