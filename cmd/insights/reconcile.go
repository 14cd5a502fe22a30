package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"convo-insights-go/internal/logger"
	"convo-insights-go/internal/metrics"
	"convo-insights-go/internal/reconcile"
)

type ReconcileFlags struct {
	*DatabaseFlags
	DryRun bool
}

func (f *ReconcileFlags) BindFlags(fs *pflag.FlagSet) {
	f.DatabaseFlags.BindFlags(fs)
	fs.BoolVar(&f.DryRun, "dry-run", f.DryRun, "List the records that would be corrected without writing")
	fs.StringVar(&f.Config.PushGateway, "push-gateway", f.Config.PushGateway, "Prometheus push gateway for run metrics")
}

func NewReconcileCommand() *cobra.Command {
	f := &ReconcileFlags{DatabaseFlags: NewDatabaseFlags()}

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Mark conversations with fewer than three messages as incomplete",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := f.Validate(); err != nil {
				return errors.WithMessage(err, "error validating options")
			}
			ctx := context.Background()
			st, err := openStore(ctx, f.Config, false)
			if err != nil {
				return errors.WithMessage(err, "could not open store")
			}
			defer st.Close()

			r := reconcile.New(st).WithLogger(logger.New().WithRun("reconcile"))
			var res reconcile.Result
			if f.DryRun {
				res, err = r.Plan(ctx)
			} else {
				res, err = r.Reconcile(ctx)
				metrics.Push(f.Config.PushGateway, "reconcile")
			}
			if err != nil {
				return errors.WithMessage(err, "reconciliation failed")
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	f.BindFlags(cmd.Flags())
	return cmd
}
