// Package airquality wraps the World Air Quality Index (WAQI) feed API.
package airquality

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rotisserie/eris"

	"github.com/ldn-newbuild/inventory-cli/internal/fetcher"
)

const defaultBaseURL = "https://api.waqi.info"

// Feed is the air-quality reading nearest a point.
type Feed struct {
	AQI     int    `json:"aqi"`
	Station string `json:"station"`
}

type feedResponse struct {
	Status string `json:"status"`
	Data   struct {
		AQI  int `json:"aqi"`
		City struct {
			Name string `json:"name"`
		} `json:"city"`
	} `json:"data"`
}

// Client reads the air-quality index for a coordinate.
type Client interface {
	Feed(ctx context.Context, lat, lon float64) (*Feed, error)
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
	token   string
	dl      Downloader
}

// NewClient creates a WAQI client. A nil downloader gets a default fetcher.
func NewClient(token string, dl Downloader, opts ...Option) Client {
	if dl == nil {
		dl = fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			Timeout:      30 * time.Second,
			RateLimiters: fetcher.DefaultRateLimiters(),
		})
	}
	c := &client{baseURL: defaultBaseURL, token: token, dl: dl}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *client) Feed(ctx context.Context, lat, lon float64) (*Feed, error) {
	url := fmt.Sprintf("%s/feed/geo:%.6f;%.6f/?token=%s", c.baseURL, lat, lon, c.token)

	body, err := c.dl.Download(ctx, url)
	if err != nil {
		return nil, eris.Wrap(err, "airquality: fetch feed")
	}
	defer body.Close() //nolint:errcheck

	resp, err := fetcher.DecodeJSONObject[feedResponse](body)
	if err != nil {
		return nil, eris.Wrap(err, "airquality: decode feed")
	}
	if resp.Status != "ok" {
		return nil, eris.Errorf("airquality: upstream status %q", resp.Status)
	}

	return &Feed{AQI: resp.Data.AQI, Station: resp.Data.City.Name}, nil
}
