package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"convo-insights-go/internal/dataset"
	"convo-insights-go/internal/logger"
)

type SeedFlags struct {
	*DatabaseFlags
	File string
}

func (f *SeedFlags) BindFlags(fs *pflag.FlagSet) {
	f.DatabaseFlags.BindFlags(fs)
	fs.StringVar(&f.File, "file", "", "XLSX chat export to load into the message table")
}

func (f *SeedFlags) Validate() error {
	if f.File == "" {
		return errors.New("--file is required")
	}
	return f.DatabaseFlags.Validate()
}

func NewSeedCommand() *cobra.Command {
	f := &SeedFlags{DatabaseFlags: NewDatabaseFlags()}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load a chat export into a local database and print its message volumes",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := f.Validate(); err != nil {
				return errors.WithMessage(err, "error validating options")
			}
			msgs, err := dataset.LoadMessages(f.File)
			if err != nil {
				return errors.WithMessage(err, "could not load chat export")
			}
			ctx := context.Background()
			st, err := openStore(ctx, f.Config, true)
			if err != nil {
				return errors.WithMessage(err, "could not open store")
			}
			defer st.Close()

			if err := st.InsertMessages(ctx, msgs); err != nil {
				return errors.WithMessage(err, "could not insert messages")
			}
			logger.New().WithRun("seed").WithField("messages", len(msgs)).Info("messages seeded")
			return printJSON(cmd.OutOrStdout(), dataset.Summarize(msgs))
		},
	}
	f.BindFlags(cmd.Flags())
	return cmd
}
