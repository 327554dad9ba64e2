package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ldn-newbuild/inventory-cli/internal/ingest"
)

var (
	ingestDevID     string
	ingestFile      string
	ingestURL       string
	ingestDeveloper string
	ingestSource    string
	ingestUploader  string
	ingestPublish   bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest a price list and report the diff",
	Long:  "Parses a CSV or XLSX price list, diffs it against live inventory, and stores it unpublished. With --publish, an auto-publishable diff is merged immediately.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Ingest.Ingest(ctx, ingest.Request{
			DevID:     ingestDevID,
			FilePath:  ingestFile,
			URL:       ingestURL,
			Developer: ingestDeveloper,
			Source:    ingestSource,
			Uploader:  ingestUploader,
		})
		if err != nil {
			return eris.Wrap(err, "ingest")
		}

		if ingestPublish && result.Gate.AutoPublish {
			if _, err := env.Merger.Publish(ctx, result.PriceList.ID, "auto"); err != nil {
				return eris.Wrap(err, "auto publish")
			}
			zap.L().Info("auto-published",
				zap.String("price_list_id", result.PriceList.ID))
		} else if ingestPublish {
			zap.L().Warn("diff blocked by safety gate, not publishing",
				zap.Float64("error_rate", result.Diff.ErrorRate),
				zap.Int("large_price_changes", len(result.Gate.LargePriceChanges)))
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestDevID, "dev", "", "development ID (required)")
	ingestCmd.Flags().StringVar(&ingestFile, "file", "", "local price-list file (csv or xlsx)")
	ingestCmd.Flags().StringVar(&ingestURL, "url", "", "remote price-list URL (http, https, or ftp)")
	ingestCmd.Flags().StringVar(&ingestDeveloper, "developer", "", "developer key for header mapping")
	ingestCmd.Flags().StringVar(&ingestSource, "source", "", "source tag (default from config)")
	ingestCmd.Flags().StringVar(&ingestUploader, "uploaded-by", "", "who supplied the file")
	ingestCmd.Flags().BoolVar(&ingestPublish, "publish", false, "publish immediately when the gate allows")
	_ = ingestCmd.MarkFlagRequired("dev")
	rootCmd.AddCommand(ingestCmd)
}
