package ingest

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ldn-newbuild/inventory-cli/internal/config"
	"github.com/ldn-newbuild/inventory-cli/internal/fetcher"
	"github.com/ldn-newbuild/inventory-cli/internal/model"
	"github.com/ldn-newbuild/inventory-cli/internal/store"
)

// Request describes one price-list ingestion. Exactly one of FilePath or URL
// must be set; URL may be http(s) or ftp.
type Request struct {
	DevID     string
	FilePath  string
	URL       string
	Developer string // mapping-table key; empty falls back to keyword matching
	Source    string // "upload", "ftp", "email"
	Uploader  string
}

// Result is what the uploader gets back: the stored list, the computed diff,
// and the gate's verdict.
type Result struct {
	PriceList *model.PriceList `json:"price_list"`
	Diff      model.Diff       `json:"diff"`
	Gate      GateResult       `json:"gate"`
	RowCount  int              `json:"row_count"`
}

// Service runs the ingest pipeline: fetch, parse, diff, gate, store.
// Publishing is a separate step so a blocked diff can still be reviewed.
type Service struct {
	store    store.Store
	mappings *MappingTable
	policy   config.PolicyConfig
	cfg      config.IngestConfig
	httpF    *fetcher.HTTPFetcher
	ftpF     *fetcher.FTPFetcher
	now      func() time.Time
}

// NewService loads the developer mapping table and wires the fetchers.
func NewService(s store.Store, policy config.PolicyConfig, cfg config.IngestConfig) (*Service, error) {
	mappings, err := LoadMappingTable(cfg.MappingPath)
	if err != nil {
		return nil, err
	}
	return &Service{
		store:    s,
		mappings: mappings,
		policy:   policy,
		cfg:      cfg,
		httpF:    fetcher.NewHTTPFetcher(fetcher.HTTPOptions{Timeout: 2 * time.Minute}),
		ftpF:     fetcher.NewFTPFetcher(fetcher.FTPOptions{}),
		now:      time.Now,
	}, nil
}

// Ingest runs one price list through the pipeline and stores it unpublished.
func (s *Service) Ingest(ctx context.Context, req Request) (*Result, error) {
	if req.DevID == "" {
		return nil, eris.New("ingest: dev_id is required")
	}
	dev, err := s.store.GetDevelopment(ctx, req.DevID)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: load development %s", req.DevID)
	}

	filePath, records, err := s.readSource(ctx, req)
	if err != nil {
		return nil, err
	}

	rows := Parse(records, s.mappings.For(req.Developer))
	if len(rows) == 0 {
		return nil, eris.Errorf("ingest: no parseable rows in %s", filePath)
	}

	current, err := s.store.ListUnits(ctx, req.DevID)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: list units for %s", req.DevID)
	}

	diff := Diff(current, rows)
	gate := EvaluateGate(diff, s.policy)
	diff.AutoPublish = gate.AutoPublish

	source := req.Source
	if source == "" {
		source = s.cfg.DefaultSource
	}
	list := model.PriceList{
		ID:         uuid.NewString(),
		DevID:      req.DevID,
		Source:     source,
		FilePath:   filePath,
		ReceivedAt: s.now().UTC(),
		ParsedOK:   gate.AutoPublish,
	}
	stored, err := s.store.CreatePriceList(ctx, list, rows)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: store price list for %s", req.DevID)
	}

	entry := model.ChangeLogEntry{
		DevID:      req.DevID,
		ChangeType: model.ChangePriceListUpload,
		ChangedAt:  s.now().UTC(),
		Details: map[string]any{
			"price_list_id": stored.ID,
			"source":        source,
			"rows":          len(rows),
			"new_units":     diff.NewUnits,
			"updated_units": diff.UpdatedUnits,
			"removed_units": diff.RemovedUnits,
			"auto_publish":  gate.AutoPublish,
		},
		Notes: req.Uploader,
	}
	if err := s.store.AppendChangeLog(ctx, entry); err != nil {
		zap.L().Warn("append upload change log",
			zap.String("dev_id", req.DevID), zap.Error(err))
	}

	zap.L().Info("price list ingested",
		zap.String("dev_id", dev.ID),
		zap.String("price_list_id", stored.ID),
		zap.Int("rows", len(rows)),
		zap.Float64("error_rate", diff.ErrorRate),
		zap.Bool("auto_publish", gate.AutoPublish))

	return &Result{PriceList: stored, Diff: diff, Gate: gate, RowCount: len(rows)}, nil
}

func (s *Service) readSource(ctx context.Context, req Request) (string, [][]string, error) {
	switch {
	case req.FilePath != "":
		records, err := fetcher.ReadPriceListFile(ctx, req.FilePath)
		if err != nil {
			return "", nil, eris.Wrapf(err, "ingest: read %s", req.FilePath)
		}
		return req.FilePath, records, nil
	case req.URL != "":
		dir, err := os.MkdirTemp("", "pricelist-*")
		if err != nil {
			return "", nil, eris.Wrap(err, "ingest: temp dir")
		}
		path, records, err := fetcher.FetchPriceList(ctx, s.httpF, s.ftpF, req.URL, dir)
		if err != nil {
			return "", nil, eris.Wrapf(err, "ingest: fetch %s", req.URL)
		}
		return path, records, nil
	default:
		return "", nil, eris.New("ingest: file_path or url is required")
	}
}
