package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ldn-newbuild/inventory-cli/internal/describe"
)

var (
	describeDevID string
	describeAll   bool
)

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Generate marketing copy for developments",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if describeAll {
			stored, err := env.Describer.DescribeAll(ctx)
			if eris.Is(err, describe.ErrNotConfigured) {
				zap.L().Warn("anthropic key not configured, skipping describe")
				return nil
			}
			if err != nil {
				return eris.Wrap(err, "describe all")
			}
			zap.L().Info("descriptions generated", zap.Int("stored", stored))
			return nil
		}

		if describeDevID == "" {
			return eris.New("either --dev or --all is required")
		}
		text, err := env.Describer.Describe(ctx, describeDevID)
		if eris.Is(err, describe.ErrNotConfigured) {
			zap.L().Warn("anthropic key not configured, skipping describe")
			return nil
		}
		if err != nil {
			return eris.Wrap(err, "describe")
		}
		fmt.Println(text)
		return nil
	},
}

func init() {
	describeCmd.Flags().StringVar(&describeDevID, "dev", "", "development ID")
	describeCmd.Flags().BoolVar(&describeAll, "all", false, "describe every development via the batch API")
	rootCmd.AddCommand(describeCmd)
}
