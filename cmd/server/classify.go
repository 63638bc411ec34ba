package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yuki5321/AIsindan/internal/config"
	"github.com/yuki5321/AIsindan/internal/observability"
	"github.com/yuki5321/AIsindan/internal/refine"
)

func newClassifyCmd() *cobra.Command {
	var symptoms []string

	cmd := &cobra.Command{
		Use:   "classify <image>",
		Short: "Classify an image file and optionally refine with symptoms",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			observability.InitLoggerTo(cmd.ErrOrStderr(), cfg.OTelServiceName, cfg.Env, cfg.LogLevel)

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.close()

			candidates, err := a.svc.Classify(ctx, base64.StdEncoding.EncodeToString(data))
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if len(symptoms) == 0 {
				return enc.Encode(map[string]any{"results": candidates})
			}

			refined, err := a.svc.Refine(ctx, refine.Request{Candidates: candidates, Symptoms: symptoms})
			if err != nil {
				return err
			}
			return enc.Encode(refined)
		},
	}

	cmd.Flags().StringSliceVarP(&symptoms, "symptoms", "s", nil, "Observed symptoms used to refine the ranking")
	return cmd
}
