// Package overpass queries OpenStreetMap's Overpass API for green space
// around a point and measures it with go-geom.
package overpass

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/ldn-newbuild/inventory-cli/internal/fetcher"
)

const defaultBaseURL = "https://overpass-api.de/api"

// Park is a named green space with its measured area.
type Park struct {
	Name         string
	AreaHectares float64
}

type overpassResponse struct {
	Elements []struct {
		Type     string            `json:"type"`
		Tags     map[string]string `json:"tags"`
		Geometry []struct {
			Lat float64 `json:"lat"`
			Lon float64 `json:"lon"`
		} `json:"geometry"`
	} `json:"elements"`
}

// Client finds parks near a coordinate.
type Client interface {
	Parks(ctx context.Context, lat, lon float64, radiusMeters int) ([]Park, error)
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

// NewClient creates an Overpass client. A nil downloader gets a default
// fetcher, whose limiter keeps Overpass to one request per second.
func NewClient(dl Downloader, opts ...Option) Client {
	if dl == nil {
		dl = fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			Timeout:      60 * time.Second,
			RateLimiters: fetcher.DefaultRateLimiters(),
		})
	}
	c := &client{baseURL: defaultBaseURL, dl: dl}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *client) Parks(ctx context.Context, lat, lon float64, radiusMeters int) ([]Park, error) {
	query := fmt.Sprintf(`[out:json];way["leisure"="park"](around:%d,%.6f,%.6f);out geom;`,
		radiusMeters, lat, lon)
	reqURL := c.baseURL + "/interpreter?data=" + url.QueryEscape(query)

	body, err := c.dl.Download(ctx, reqURL)
	if err != nil {
		return nil, eris.Wrap(err, "overpass: fetch parks")
	}
	defer body.Close() //nolint:errcheck

	resp, err := fetcher.DecodeJSONObject[overpassResponse](body)
	if err != nil {
		return nil, eris.Wrap(err, "overpass: decode parks")
	}

	var parks []Park
	for _, el := range resp.Elements {
		if el.Type != "way" || len(el.Geometry) < 3 {
			continue
		}
		ring := make([]geom.Coord, 0, len(el.Geometry)+1)
		for _, pt := range el.Geometry {
			x, y := projectMeters(pt.Lat, pt.Lon, lat)
			ring = append(ring, geom.Coord{x, y})
		}
		if !ring[0].Equal(geom.XY, ring[len(ring)-1]) {
			ring = append(ring, ring[0])
		}

		poly := geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{ring})
		area := math.Abs(poly.Area())

		name := el.Tags["name"]
		if name == "" {
			name = "Unnamed green space"
		}
		parks = append(parks, Park{Name: name, AreaHectares: area / 10000})
	}
	return parks, nil
}

// TotalHectares sums park areas.
func TotalHectares(parks []Park) float64 {
	var total float64
	for _, p := range parks {
		total += p.AreaHectares
	}
	return total
}

// projectMeters converts lat/lon to a local planar frame in meters, using an
// equirectangular projection centered on refLat. Good enough at park scale.
func projectMeters(lat, lon, refLat float64) (x, y float64) {
	const metersPerDegree = 111320.0
	x = lon * metersPerDegree * math.Cos(refLat*math.Pi/180)
	y = lat * metersPerDegree
	return x, y
}
