// Package police wraps the data.police.uk street-crime API.
package police

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rotisserie/eris"

	"github.com/ldn-newbuild/inventory-cli/internal/fetcher"
)

const defaultBaseURL = "https://data.police.uk/api"

// Crime is one recorded street-level crime.
type Crime struct {
	Category string `json:"category"`
	Month    string `json:"month"`
	Location struct {
		Latitude  string `json:"latitude"`
		Longitude string `json:"longitude"`
	} `json:"location"`
}

// Client queries street-level crime near a point.
type Client interface {
	// StreetCrimes returns crimes within roughly a mile of (lat, lon) for the
	// given month (YYYY-MM). An empty month uses the latest available.
	StreetCrimes(ctx context.Context, lat, lon float64, month string) ([]Crime, error)
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

// NewClient creates a police API client over the shared rate-limited fetcher.
// A nil downloader gets a default HTTP fetcher.
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

func (c *client) StreetCrimes(ctx context.Context, lat, lon float64, month string) ([]Crime, error) {
	url := fmt.Sprintf("%s/crimes-street/all-crime?lat=%.6f&lng=%.6f", c.baseURL, lat, lon)
	if month != "" {
		url += "&date=" + month
	}

	body, err := c.dl.Download(ctx, url)
	if err != nil {
		return nil, eris.Wrap(err, "police: fetch street crimes")
	}
	defer body.Close() //nolint:errcheck

	outCh, errCh := fetcher.DecodeJSONArray[Crime](ctx, body)
	var crimes []Crime
	for crime := range outCh {
		crimes = append(crimes, crime)
	}
	if err := <-errCh; err != nil {
		return nil, eris.Wrap(err, "police: decode street crimes")
	}
	return crimes, nil
}

// LastFullMonth returns the most recent complete month in YYYY-MM form; the
// police API lags by at least one month.
func LastFullMonth(now time.Time) string {
	prev := now.AddDate(0, -1, 0)
	return prev.Format("2006-01")
}
