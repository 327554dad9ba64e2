package police

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ldn-newbuild/inventory-cli/internal/fetcher"
)

func TestStreetCrimes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/crimes-street/all-crime", r.URL.Path)
		assert.Equal(t, "51.459000", r.URL.Query().Get("lat"))
		assert.Equal(t, "2026-07", r.URL.Query().Get("date"))
		w.Write([]byte(`[
			{"category":"burglary","month":"2026-07"},
			{"category":"vehicle-crime","month":"2026-07"}
		]`))
	}))
	defer srv.Close()

	c := NewClient(fetcher.NewHTTPFetcher(fetcher.HTTPOptions{Timeout: 5 * time.Second}), WithBaseURL(srv.URL))
	crimes, err := c.StreetCrimes(context.Background(), 51.459, -0.196, "2026-07")
	require.NoError(t, err)
	require.Len(t, crimes, 2)
	assert.Equal(t, "burglary", crimes[0].Category)
}

func TestStreetCrimes_EmptyArea(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(fetcher.NewHTTPFetcher(fetcher.HTTPOptions{Timeout: 5 * time.Second}), WithBaseURL(srv.URL))
	crimes, err := c.StreetCrimes(context.Background(), 51.5, -0.1, "")
	require.NoError(t, err)
	assert.Empty(t, crimes)
}

func TestLastFullMonth(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-08", LastFullMonth(now))
}
