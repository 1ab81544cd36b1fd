package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/flipscout/appraisal-cli/internal/model"
)

var (
	appraiseHint    string
	appraiseContext string
	appraiseImage   string
	appraiseTimeout time.Duration
)

var appraiseCmd = &cobra.Command{
	Use:   "run <item name>",
	Short: "Appraise a single item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Engine.Analyze(ctx, model.AnalysisRequest{
			ItemName:         args[0],
			CategoryHint:     appraiseHint,
			Context:          appraiseContext,
			ImageDescription: appraiseImage,
			Timeout:          appraiseTimeout,
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	appraiseCmd.Flags().StringVar(&appraiseHint, "hint", "", "category hint")
	appraiseCmd.Flags().StringVar(&appraiseContext, "context", "", "additional context for the appraisal")
	appraiseCmd.Flags().StringVar(&appraiseImage, "image-desc", "", "description of the item's observed condition")
	appraiseCmd.Flags().DurationVar(&appraiseTimeout, "timeout", 0, "overall request timeout (default: no limit)")
	rootCmd.AddCommand(appraiseCmd)
}
