package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"convo-insights-go/internal/actionable"
	"convo-insights-go/internal/aggregator"
	"convo-insights-go/internal/dataset"
)

type ReportFlags struct {
	*DatabaseFlags
	Days int
}

func (f *ReportFlags) BindFlags(fs *pflag.FlagSet) {
	f.DatabaseFlags.BindFlags(fs)
	fs.IntVar(&f.Days, "days", f.Days, "Only report on the last N days of conversations and messages; 0 reports on everything")
}

func (f *ReportFlags) Validate() error {
	if err := validateDays(f.Days); err != nil {
		return err
	}
	return f.DatabaseFlags.Validate()
}

func NewReportCommand() *cobra.Command {
	f := &ReportFlags{DatabaseFlags: NewDatabaseFlags()}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print completion, service, coverage and message volume figures with suggested actions",
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

			records, err := listRecords(ctx, st, f.Days)
			if err != nil {
				return errors.WithMessage(err, "could not load analyses")
			}
			msgs, err := st.Messages(ctx, since(f.Days))
			if err != nil {
				return errors.WithMessage(err, "could not load messages")
			}
			ins := aggregator.Aggregate(records)
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"insight": ins,
				"volume":  dataset.Summarize(msgs),
				"actions": actionable.Generate(ins),
			})
		},
	}
	f.BindFlags(cmd.Flags())
	return cmd
}
