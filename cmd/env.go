package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ldn-newbuild/inventory-cli/internal/anomaly"
	"github.com/ldn-newbuild/inventory-cli/internal/describe"
	"github.com/ldn-newbuild/inventory-cli/internal/events"
	"github.com/ldn-newbuild/inventory-cli/internal/hottest"
	"github.com/ldn-newbuild/inventory-cli/internal/ingest"
	"github.com/ldn-newbuild/inventory-cli/internal/publish"
	"github.com/ldn-newbuild/inventory-cli/internal/store"
	anthropicpkg "github.com/ldn-newbuild/inventory-cli/pkg/anthropic"
)

// appEnv holds the initialized store and pipeline services shared by the
// ingest/publish/serve commands.
type appEnv struct {
	Store      store.Store
	Ingest     *ingest.Service
	Merger     *publish.Merger
	Scorer     *hottest.Scorer
	Validator  *anomaly.Validator
	Describer  *describe.Describer
	Dispatcher *events.Dispatcher
}

// Close drains in-flight events before releasing the store.
func (e *appEnv) Close() {
	if e.Dispatcher != nil {
		e.Dispatcher.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv sets up the store, runs migrations, and wires the pipeline: a
// publish fans out through the dispatcher to the hottest-unit scorer and the
// anomaly validator. Callers should defer env.Close().
func initEnv(ctx context.Context) (*appEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	ingestSvc, err := ingest.NewService(st, cfg.Policy, cfg.Ingest)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	scorer := hottest.NewScorer(st)
	validator := anomaly.NewValidator(st, cfg.Policy)

	dispatcher := events.NewDispatcher(0)
	dispatcher.Subscribe(events.TopicHottestRefresh, func(ctx context.Context, ev events.Event) error {
		_, err := scorer.Refresh(ctx, ev.DevID)
		if eris.Is(err, hottest.ErrNoEligibleUnits) {
			return nil
		}
		return err
	})
	dispatcher.Subscribe(events.TopicValidateUnits, func(ctx context.Context, ev events.Event) error {
		_, err := validator.Run(ctx, ev.DevID, ev.Snapshot)
		return err
	})

	var describer *describe.Describer
	if cfg.Anthropic.Key != "" {
		describer = describe.NewDescriber(anthropicpkg.NewClient(cfg.Anthropic.Key), st, cfg.Anthropic.Model)
	} else {
		describer = describe.NewDescriber(nil, st, cfg.Anthropic.Model)
		zap.L().Debug("INVENTORY_ANTHROPIC_KEY not set, describe disabled")
	}

	return &appEnv{
		Store:      st,
		Ingest:     ingestSvc,
		Merger:     publish.NewMerger(st, dispatcher),
		Scorer:     scorer,
		Validator:  validator,
		Describer:  describer,
		Dispatcher: dispatcher,
	}, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "inventory.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}
