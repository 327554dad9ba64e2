// Package describe generates marketing copy for developments from their
// live inventory and area insights.
package describe

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ldn-newbuild/inventory-cli/internal/model"
	"github.com/ldn-newbuild/inventory-cli/internal/resilience"
	"github.com/ldn-newbuild/inventory-cli/internal/store"
	"github.com/ldn-newbuild/inventory-cli/pkg/anthropic"
)

// ErrNotConfigured is returned when no API key was supplied.
var ErrNotConfigured = eris.New("describe: anthropic key not configured")

const (
	systemPrompt = "You are a copywriter for a London new-build property portal. " +
		"Write a single engaging paragraph of 80-120 words describing the " +
		"development for buyers. Use only the facts provided. Never invent " +
		"amenities, transport links, or prices. British English."

	maxTokens   = 1024
	temperature = 0.7
)

// Describer writes AI-generated descriptions back to the store.
type Describer struct {
	client anthropic.Client
	store  store.Store
	model  string
	now    func() time.Time

	// Message batches can sit in a queue for a while; poll gently.
	pollInterval time.Duration
}

// NewDescriber builds a describer. A nil client means no API key was
// configured; calls will return ErrNotConfigured.
func NewDescriber(client anthropic.Client, s store.Store, model string) *Describer {
	return &Describer{
		client:       client,
		store:        s,
		model:        model,
		now:          time.Now,
		pollInterval: 15 * time.Second,
	}
}

// Describe generates and stores a description for one development.
func (d *Describer) Describe(ctx context.Context, devID string) (string, error) {
	if d.client == nil {
		return "", ErrNotConfigured
	}

	req, err := d.messageRequest(ctx, devID)
	if err != nil {
		return "", err
	}

	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.OnRetry = resilience.RetryLogger("anthropic", "create_message")
	resp, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return d.client.CreateMessage(ctx, *req)
	})
	if err != nil {
		return "", eris.Wrapf(err, "describe: generate for %s", devID)
	}
	resp.Usage.LogCost(d.model, "describe")

	text := firstText(resp.Content)
	if text == "" {
		return "", eris.Errorf("describe: empty response for %s", devID)
	}

	if err := d.saveDescription(ctx, devID, text); err != nil {
		return "", err
	}
	return text, nil
}

// DescribeAll generates descriptions for every development through the
// message batch API and waits for the batch to finish. Returns the number
// of descriptions stored.
func (d *Describer) DescribeAll(ctx context.Context) (int, error) {
	if d.client == nil {
		return 0, ErrNotConfigured
	}

	devs, err := d.store.ListDevelopments(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "describe: list developments")
	}
	if len(devs) == 0 {
		return 0, nil
	}

	batchReq := anthropic.BatchRequest{}
	for _, dev := range devs {
		req, err := d.messageRequest(ctx, dev.ID)
		if err != nil {
			zap.L().Warn("skipping development in describe batch",
				zap.String("dev_id", dev.ID), zap.Error(err))
			continue
		}
		batchReq.Requests = append(batchReq.Requests, anthropic.BatchRequestItem{
			CustomID: dev.ID,
			Params:   *req,
		})
	}
	if len(batchReq.Requests) == 0 {
		return 0, nil
	}

	// Warm the prompt cache with one sequential request so the batch items
	// all hit the cached system prompt.
	if _, err := anthropic.PrimerRequest(ctx, d.client, batchReq.Requests[0].Params); err != nil {
		zap.L().Warn("describe primer request failed", zap.Error(err))
	}

	batch, err := d.client.CreateBatch(ctx, batchReq)
	if err != nil {
		return 0, eris.Wrap(err, "describe: create batch")
	}
	zap.L().Info("describe batch submitted",
		zap.String("batch_id", batch.ID),
		zap.Int("requests", len(batchReq.Requests)))

	if _, err := anthropic.PollBatch(ctx, d.client, batch.ID,
		anthropic.WithPollInterval(d.pollInterval)); err != nil {
		return 0, eris.Wrap(err, "describe: wait for batch")
	}

	iter, err := d.client.GetBatchResults(ctx, batch.ID)
	if err != nil {
		return 0, eris.Wrap(err, "describe: fetch batch results")
	}
	collected, err := anthropic.CollectBatchResultsDetailed(iter)
	if err != nil {
		return 0, eris.Wrap(err, "describe: read batch results")
	}

	stored := 0
	for devID, msg := range collected.Succeeded {
		msg.Usage.LogCost(d.model, "describe_batch")
		text := firstText(msg.Content)
		if text == "" {
			continue
		}
		if err := d.saveDescription(ctx, devID, text); err != nil {
			zap.L().Error("store batch description",
				zap.String("dev_id", devID), zap.Error(err))
			continue
		}
		stored++
	}
	return stored, nil
}

func (d *Describer) messageRequest(ctx context.Context, devID string) (*anthropic.MessageRequest, error) {
	dev, err := d.store.GetDevelopment(ctx, devID)
	if err != nil {
		return nil, eris.Wrapf(err, "describe: load development %s", devID)
	}
	units, err := d.store.ListUnits(ctx, devID)
	if err != nil {
		return nil, eris.Wrapf(err, "describe: load units for %s", devID)
	}

	temp := temperature
	return &anthropic.MessageRequest{
		Model:       d.model,
		MaxTokens:   maxTokens,
		Temperature: &temp,
		System:      anthropic.BuildCachedSystemBlocks(systemPrompt),
		Messages: []anthropic.Message{
			{Role: "user", Content: buildPrompt(dev, units)},
		},
	}, nil
}

func (d *Describer) saveDescription(ctx context.Context, devID, text string) error {
	if err := d.store.UpdateDescription(ctx, devID, text); err != nil {
		return eris.Wrapf(err, "describe: store description for %s", devID)
	}
	entry := model.ChangeLogEntry{
		DevID:      devID,
		ChangeType: model.ChangeDescription,
		ChangedAt:  d.now().UTC(),
		Details:    map[string]any{"length": len(text)},
	}
	if err := d.store.AppendChangeLog(ctx, entry); err != nil {
		zap.L().Warn("append description change log",
			zap.String("dev_id", devID), zap.Error(err))
	}
	return nil
}

func firstText(blocks []anthropic.ContentBlock) string {
	for _, b := range blocks {
		if b.Type == "text" && strings.TrimSpace(b.Text) != "" {
			return strings.TrimSpace(b.Text)
		}
	}
	return ""
}
