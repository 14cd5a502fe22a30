package main

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"convo-insights-go/internal/aggregator"
	"convo-insights-go/internal/export"
	"convo-insights-go/internal/logger"
)

type ExportFlags struct {
	*DatabaseFlags
	Out  string
	Days int
}

func (f *ExportFlags) BindFlags(fs *pflag.FlagSet) {
	f.DatabaseFlags.BindFlags(fs)
	fs.StringVar(&f.Out, "out", "analyses.xlsx", "Path of the spreadsheet to write")
	fs.IntVar(&f.Days, "days", f.Days, "Only export conversations ended in the last N days; 0 exports everything")
}

func (f *ExportFlags) Validate() error {
	if f.Out == "" {
		return errors.New("--out is required")
	}
	if err := validateDays(f.Days); err != nil {
		return err
	}
	return f.DatabaseFlags.Validate()
}

func NewExportCommand() *cobra.Command {
	f := &ExportFlags{DatabaseFlags: NewDatabaseFlags()}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write analysis records and a summary sheet to an XLSX file",
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
			out, err := os.Create(f.Out)
			if err != nil {
				return errors.WithMessage(err, "could not create output file")
			}
			if err := export.WriteXLSX(out, records, aggregator.Aggregate(records)); err != nil {
				_ = out.Close()
				return errors.WithMessage(err, "could not write spreadsheet")
			}
			if err := out.Close(); err != nil {
				return errors.WithMessage(err, "could not write spreadsheet")
			}
			logger.New().WithField("path", f.Out).WithField("records", len(records)).Info("export written")
			return nil
		},
	}
	f.BindFlags(cmd.Flags())
	return cmd
}
