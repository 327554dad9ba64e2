package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/ldn-newbuild/inventory-cli/internal/enrich"
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Refresh area insights for every development",
	Long:  "Pulls crime, air quality, schools, and green-space data from public APIs for each development and stores banded area insights. Unreachable sources fall back to postcode estimates.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		summary, err := enrich.NewEnricher(st, cfg.Enrich).Run(ctx)
		if err != nil {
			return eris.Wrap(err, "enrich")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}

func init() {
	rootCmd.AddCommand(enrichCmd)
}
