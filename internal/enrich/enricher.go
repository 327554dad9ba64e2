// Package enrich runs the location-enrichment batch: for each development it
// pulls crime, air quality, schools, and green-space data from public APIs
// and stores banded area insights. Upstream failures never abort the batch;
// the affected development falls back to postcode-prefix estimates.
package enrich

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ldn-newbuild/inventory-cli/internal/config"
	"github.com/ldn-newbuild/inventory-cli/internal/fetcher"
	"github.com/ldn-newbuild/inventory-cli/internal/model"
	"github.com/ldn-newbuild/inventory-cli/internal/resilience"
	"github.com/ldn-newbuild/inventory-cli/internal/store"
	"github.com/ldn-newbuild/inventory-cli/pkg/airquality"
	"github.com/ldn-newbuild/inventory-cli/pkg/overpass"
	"github.com/ldn-newbuild/inventory-cli/pkg/police"
	"github.com/ldn-newbuild/inventory-cli/pkg/schools"
)

// Summary reports what the batch did.
type Summary struct {
	Total     int `json:"total"`
	Enriched  int `json:"enriched"`
	Estimated int `json:"estimated"`
	Failed    int `json:"failed"`
}

// Enricher fans enrichment lookups out over the development catalogue.
// The client fields are exported so tests can substitute fakes.
type Enricher struct {
	Police  police.Client
	Air     airquality.Client
	Schools schools.Client
	Parks   overpass.Client

	store    store.Store
	cfg      config.EnrichConfig
	now      func() time.Time
	breakers *resilience.ServiceBreakers
}

// NewEnricher wires the four public-data clients over a shared rate-limited
// HTTP fetcher.
func NewEnricher(s store.Store, cfg config.EnrichConfig) *Enricher {
	dl := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		Timeout:      60 * time.Second,
		RateLimiters: fetcher.DefaultRateLimiters(),
	})
	return &Enricher{
		Police:   police.NewClient(dl, police.WithBaseURL(cfg.PoliceBaseURL)),
		Air:      airquality.NewClient(cfg.AirQualityToken, dl, airquality.WithBaseURL(cfg.AirQualityBaseURL)),
		Schools:  schools.NewClient(dl, schools.WithBaseURL(cfg.SchoolsBaseURL)),
		Parks:    overpass.NewClient(dl, overpass.WithBaseURL(cfg.OverpassBaseURL)),
		store:    s,
		cfg:      cfg,
		now:      time.Now,
		// One breaker per upstream: when a source is down, the whole batch
		// shifts to postcode estimates without waiting out per-dev timeouts.
		breakers: resilience.NewServiceBreakers(resilience.DefaultCircuitBreakerConfig()),
	}
}

// Run enriches every development, bounded by the configured concurrency.
func (e *Enricher) Run(ctx context.Context) (Summary, error) {
	devs, err := e.store.ListDevelopments(ctx)
	if err != nil {
		return Summary{}, eris.Wrap(err, "enrich: list developments")
	}

	concurrency := e.cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	results := make([]enrichResult, len(devs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, dev := range devs {
		g.Go(func() error {
			results[i] = e.enrichOne(gctx, dev)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Summary{}, eris.Wrap(err, "enrich: batch")
	}

	summary := Summary{Total: len(devs)}
	for _, r := range results {
		switch {
		case r.failed:
			summary.Failed++
		case r.estimated:
			summary.Estimated++
		default:
			summary.Enriched++
		}
	}
	zap.L().Info("enrichment batch finished",
		zap.Int("total", summary.Total),
		zap.Int("enriched", summary.Enriched),
		zap.Int("estimated", summary.Estimated),
		zap.Int("failed", summary.Failed))
	return summary, nil
}

type enrichResult struct {
	estimated bool
	failed    bool
}

func (e *Enricher) enrichOne(ctx context.Context, dev model.Development) enrichResult {
	insights, estimated := e.lookup(ctx, dev)
	insights.Estimated = estimated
	insights.UpdatedAt = e.now().UTC()

	if err := e.store.UpdateInsights(ctx, dev.ID, insights); err != nil {
		zap.L().Error("store insights",
			zap.String("dev_id", dev.ID),
			zap.Error(err))
		return enrichResult{failed: true}
	}
	zap.L().Info("development enriched",
		zap.String("dev_id", dev.ID),
		zap.String("crime_band", insights.CrimeBand),
		zap.String("air_band", insights.AirQualityBand),
		zap.String("green_band", insights.GreenSpaceBand),
		zap.Bool("estimated", estimated))
	return enrichResult{estimated: estimated}
}

// lookup gathers insights from the four upstreams. A development with no
// coordinates gets the postcode estimate straight away; otherwise each
// failed lookup is individually backfilled from the estimate.
func (e *Enricher) lookup(ctx context.Context, dev model.Development) (model.AreaInsights, bool) {
	fallback := EstimateByPostcode(dev.Postcode)
	if dev.Lat == 0 && dev.Lon == 0 {
		zap.L().Warn("development has no coordinates, using postcode estimate",
			zap.String("dev_id", dev.ID),
			zap.String("postcode", dev.Postcode))
		return fallback, true
	}

	radius := e.cfg.RadiusMeters
	if radius <= 0 {
		radius = 1000
	}

	insights := model.AreaInsights{}
	estimated := false

	var crimes []police.Crime
	err := e.breakers.Get("police").Execute(ctx, func(ctx context.Context) error {
		var err error
		crimes, err = e.Police.StreetCrimes(ctx, dev.Lat, dev.Lon, police.LastFullMonth(e.now()))
		return err
	})
	if err != nil {
		zap.L().Warn("crime lookup failed", zap.String("dev_id", dev.ID), zap.Error(err))
		insights.CrimePerMonth = fallback.CrimePerMonth
		insights.CrimeBand = fallback.CrimeBand
		estimated = true
	} else {
		insights.CrimePerMonth = float64(len(crimes))
		insights.CrimeBand = CrimeBand(insights.CrimePerMonth)
	}

	var feed *airquality.Feed
	err = e.breakers.Get("airquality").Execute(ctx, func(ctx context.Context) error {
		var err error
		feed, err = e.Air.Feed(ctx, dev.Lat, dev.Lon)
		return err
	})
	if err != nil {
		zap.L().Warn("air quality lookup failed", zap.String("dev_id", dev.ID), zap.Error(err))
		insights.AirQualityIndex = fallback.AirQualityIndex
		insights.AirQualityBand = fallback.AirQualityBand
		estimated = true
	} else {
		insights.AirQualityIndex = feed.AQI
		insights.AirQualityBand = AirQualityBand(feed.AQI)
	}

	var nearby []schools.School
	err = e.breakers.Get("schools").Execute(ctx, func(ctx context.Context) error {
		var err error
		nearby, err = e.Schools.Nearby(ctx, dev.Lat, dev.Lon, radius)
		return err
	})
	if err != nil {
		zap.L().Warn("schools lookup failed", zap.String("dev_id", dev.ID), zap.Error(err))
		insights.SchoolsOutstanding = fallback.SchoolsOutstanding
		insights.SchoolsGood = fallback.SchoolsGood
		estimated = true
	} else {
		insights.SchoolsOutstanding, insights.SchoolsGood = schools.CountByRating(nearby)
	}

	var parks []overpass.Park
	err = e.breakers.Get("overpass").Execute(ctx, func(ctx context.Context) error {
		var err error
		parks, err = e.Parks.Parks(ctx, dev.Lat, dev.Lon, radius)
		return err
	})
	if err != nil {
		zap.L().Warn("green space lookup failed", zap.String("dev_id", dev.ID), zap.Error(err))
		insights.GreenSpaceHectares = fallback.GreenSpaceHectares
		insights.GreenSpaceBand = fallback.GreenSpaceBand
		estimated = true
	} else {
		insights.GreenSpaceHectares = overpass.TotalHectares(parks)
		insights.GreenSpaceBand = GreenSpaceBand(insights.GreenSpaceHectares)
	}

	return insights, estimated
}
