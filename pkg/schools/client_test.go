package schools

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

func TestNearby(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/schools", r.URL.Path)
		assert.Equal(t, "1000", r.URL.Query().Get("radius"))
		w.Write([]byte(`[
			{"name":"Riverside Primary","phase":"primary","rating":"Outstanding","distance_m":320},
			{"name":"Wandle Academy","phase":"secondary","rating":"Good","distance_m":780},
			{"name":"Old Mill School","phase":"primary","rating":"Requires improvement","distance_m":950}
		]`))
	}))
	defer srv.Close()

	c := NewClient(fetcher.NewHTTPFetcher(fetcher.HTTPOptions{Timeout: 5 * time.Second}), WithBaseURL(srv.URL))
	got, err := c.Nearby(context.Background(), 51.459, -0.196, 1000)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "Riverside Primary", got[0].Name)
}

func TestCountByRating(t *testing.T) {
	schools := []School{
		{Rating: RatingOutstanding},
		{Rating: RatingGood},
		{Rating: RatingGood},
		{Rating: "Requires improvement"},
	}
	outstanding, good := CountByRating(schools)
	assert.Equal(t, 1, outstanding)
	assert.Equal(t, 2, good)
}
