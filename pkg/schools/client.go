// Package schools wraps the schools information API for Ofsted ratings near
// a point.
package schools

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rotisserie/eris"

	"github.com/ldn-newbuild/inventory-cli/internal/fetcher"
)

const defaultBaseURL = "https://api.schools.gov.uk"

// School is one school near the queried point.
type School struct {
	Name     string  `json:"name"`
	Phase    string  `json:"phase"`
	Rating   string  `json:"rating"`
	Distance float64 `json:"distance_m"`
}

// Ofsted rating labels as returned by the API.
const (
	RatingOutstanding = "Outstanding"
	RatingGood        = "Good"
)

// Client lists schools near a coordinate.
type Client interface {
	Nearby(ctx context.Context, lat, lon float64, radiusMeters int) ([]School, error)
}

// Downloader is the subset of the HTTP fetcher the client needs.
type Downloader interface {
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}

// Option configures the client.
type Option func(*client)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *client) { c.baseURL = url }
}

type client struct {
	baseURL string
	dl      Downloader
}

// NewClient creates a schools API client. A nil downloader gets a default
// fetcher.
func NewClient(dl Downloader, opts ...Option) Client {
	if dl == nil {
		dl = fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			Timeout:      30 * time.Second,
			RateLimiters: fetcher.DefaultRateLimiters(),
		})
	}
	c := &client{baseURL: defaultBaseURL, dl: dl}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *client) Nearby(ctx context.Context, lat, lon float64, radiusMeters int) ([]School, error) {
	url := fmt.Sprintf("%s/schools?lat=%.6f&lon=%.6f&radius=%d", c.baseURL, lat, lon, radiusMeters)

	body, err := c.dl.Download(ctx, url)
	if err != nil {
		return nil, eris.Wrap(err, "schools: fetch nearby")
	}
	defer body.Close() //nolint:errcheck

	outCh, errCh := fetcher.DecodeJSONArray[School](ctx, body)
	var out []School
	for s := range outCh {
		out = append(out, s)
	}
	if err := <-errCh; err != nil {
		return nil, eris.Wrap(err, "schools: decode nearby")
	}
	return out, nil
}

// CountByRating tallies outstanding and good schools in one pass.
func CountByRating(schools []School) (outstanding, good int) {
	for _, s := range schools {
		switch s.Rating {
		case RatingOutstanding:
			outstanding++
		case RatingGood:
			good++
		}
	}
	return outstanding, good
}
