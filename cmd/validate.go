package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/ldn-newbuild/inventory-cli/internal/model"
)

var validateDevID string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Run anomaly detection over a development's live units",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		// No pre-publish snapshot here, so price-drop detection is skipped;
		// it runs automatically on every publish.
		found, err := env.Validator.Run(ctx, validateDevID, nil)
		if err != nil {
			return eris.Wrap(err, "validate units")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(anomalySummary(found))
	},
}

func anomalySummary(found []model.UnitAnomaly) map[string]any {
	var critical, warnings int
	for _, a := range found {
		if a.Severity == model.SeverityError {
			critical++
		} else {
			warnings++
		}
	}
	return map[string]any{
		"anomalies_detected": len(found),
		"critical":           critical,
		"warnings":           warnings,
	}
}

func init() {
	validateCmd.Flags().StringVar(&validateDevID, "dev", "", "development ID (required)")
	_ = validateCmd.MarkFlagRequired("dev")
	rootCmd.AddCommand(validateCmd)
}
