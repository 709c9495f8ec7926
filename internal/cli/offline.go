package cli

import (
	"github.com/spf13/cobra"
)

func newRecomputeCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "recompute",
		Short: "Recompute stored points and badges for every learner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := e.openStore(ctx)
			if err != nil {
				return err
			}
			svc, err := e.newService(ctx, store)
			if err != nil {
				_ = store.Close()
				return err
			}
			defer svc.Stop()

			res, err := svc.Recompute(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
}

func newSnapshotCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Rank every period and category and persist the snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := e.openStore(ctx)
			if err != nil {
				return err
			}
			svc, err := e.newService(ctx, store)
			if err != nil {
				_ = store.Close()
				return err
			}
			defer svc.Stop()

			sum, err := svc.RefreshSnapshots(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), sum)
		},
	}
}
