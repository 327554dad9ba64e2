package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	hotDevID  string
	hotUnitID string
	hotNote   string
)

var hotCmd = &cobra.Command{
	Use:   "hot",
	Short: "Manage the hottest unit per development",
}

var hotAutoCmd = &cobra.Command{
	Use:   "auto",
	Short: "Rescore and elect the hottest unit automatically",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		h, err := env.Scorer.Refresh(ctx, hotDevID)
		if err != nil {
			return eris.Wrap(err, "refresh hottest unit")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(h)
	},
}

var hotOverrideCmd = &cobra.Command{
	Use:   "override",
	Short: "Pin a unit as hottest, blocking automatic rescoring",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		h, err := env.Scorer.Override(ctx, hotDevID, hotUnitID, hotNote)
		if err != nil {
			return eris.Wrap(err, "override hottest unit")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(h)
	},
}

var hotClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove a manual override and rescore",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		h, err := env.Scorer.ClearOverride(ctx, hotDevID)
		if err != nil {
			return eris.Wrap(err, "clear hottest override")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(h)
	},
}

func init() {
	for _, c := range []*cobra.Command{hotAutoCmd, hotOverrideCmd, hotClearCmd} {
		c.Flags().StringVar(&hotDevID, "dev", "", "development ID (required)")
		_ = c.MarkFlagRequired("dev")
	}
	hotOverrideCmd.Flags().StringVar(&hotUnitID, "unit", "", "unit ID to pin (required)")
	hotOverrideCmd.Flags().StringVar(&hotNote, "note", "", "reason for the override")
	_ = hotOverrideCmd.MarkFlagRequired("unit")

	hotCmd.AddCommand(hotAutoCmd, hotOverrideCmd, hotClearCmd)
	rootCmd.AddCommand(hotCmd)
}
