package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yuki5321/AIsindan/internal/config"
	"github.com/yuki5321/AIsindan/internal/observability"
)

func newIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Load the disease-symptom index and print what it contains",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			observability.InitLoggerTo(cmd.ErrOrStderr(), cfg.OTelServiceName, cfg.Env, cfg.LogLevel)

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.close()

			status, err := a.svc.ReloadIndex(ctx)
			if err != nil {
				return err
			}
			conditions, err := a.svc.Conditions(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "conditions: %d  associations: %d\n\n", status.Conditions, status.Associations)

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME_EN\tNAME")
			for _, c := range conditions {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", c.ID, c.NameEN, c.Name)
			}
			return tw.Flush()
		},
	}
}
