package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	publishListID string
	publishBy     string
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Merge a stored price list into live inventory",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Merger.Publish(ctx, publishListID, publishBy)
		if err != nil {
			return eris.Wrap(err, "publish")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Re-apply an older price list, reverting the current one",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Merger.Rollback(ctx, publishListID, publishBy)
		if err != nil {
			return eris.Wrap(err, "rollback")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	for _, c := range []*cobra.Command{publishCmd, rollbackCmd} {
		c.Flags().StringVar(&publishListID, "list", "", "price list ID (required)")
		c.Flags().StringVar(&publishBy, "by", "cli", "who authorized the action")
		_ = c.MarkFlagRequired("list")
		rootCmd.AddCommand(c)
	}
}
