package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"convo-insights-go/internal/config"
	"convo-insights-go/internal/logger"
	"convo-insights-go/internal/metrics"
	"convo-insights-go/internal/pipeline"
	"convo-insights-go/internal/processor"
	"convo-insights-go/internal/selector"
)

type AnalyzeFlags struct {
	Config         *config.Config
	Limit          int
	Days           int
	Force          bool
	DryRun         bool
	Workers        int
	ParallelFields bool
}

func NewAnalyzeFlags() *AnalyzeFlags {
	return &AnalyzeFlags{
		Config:  config.Load(),
		Limit:   50,
		Days:    7,
		Workers: 1,
	}
}

func (f *AnalyzeFlags) BindFlags(fs *pflag.FlagSet) {
	f.Config.BindFlags(fs)
	fs.IntVar(&f.Limit, "limit", f.Limit, "Maximum number of conversations to analyze")
	fs.IntVar(&f.Days, "days", f.Days, "Only consider messages from the last N days. Unlike report and export, 0 is an empty window and selects nothing")
	fs.BoolVar(&f.Force, "force", f.Force, "Re-analyze conversations that already have a complete record")
	fs.BoolVar(&f.DryRun, "dry-run", f.DryRun, "Log the assembled records instead of saving them")
	fs.IntVar(&f.Workers, "workers", f.Workers, "Conversations analyzed concurrently")
	fs.DurationVar(&f.Config.Delay, "delay", f.Config.Delay, "Pause between two conversations handed to the oracle")
	fs.BoolVar(&f.ParallelFields, "parallel-fields", f.ParallelFields, "Run the five extractions of a conversation concurrently")
	fs.StringVar(&f.Config.PushGateway, "push-gateway", f.Config.PushGateway, "Prometheus push gateway for run metrics")
}

func (f *AnalyzeFlags) Validate() error {
	if err := validateDays(f.Days); err != nil {
		return err
	}
	if f.Limit < 1 {
		return errors.New("--limit must be >= 1")
	}
	if f.Workers < 1 {
		return errors.New("--workers must be >= 1")
	}
	if f.Config.Delay < 0 {
		return errors.New("--delay must not be negative")
	}
	if err := f.Config.ValidateOracle(); err != nil {
		return err
	}
	return f.Config.ValidateDatabase()
}

func NewAnalyzeCommand() *cobra.Command {
	f := NewAnalyzeFlags()

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Extract names, companies, summaries, services and completion for recent conversations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := f.Validate(); err != nil {
				return errors.WithMessage(err, "error validating options")
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log := logger.New().WithRun("analyze")
			st, err := openStore(ctx, f.Config, false)
			if err != nil {
				return errors.WithMessage(err, "could not open store")
			}
			defer st.Close()

			candidates := selector.New(st).Select(ctx, f.Days, f.Limit, f.Force)
			analyzer := processor.NewAnalyzer(newOracle(f.Config), processor.WithParallelFields(f.ParallelFields))
			stats := pipeline.New(st, analyzer, pipeline.Options{
				Workers: f.Workers,
				Delay:   f.Config.Delay,
				DryRun:  f.DryRun,
			}).WithLogger(log).Run(ctx, candidates)

			metrics.Push(f.Config.PushGateway, "analyze")
			if stats.Errors > 0 {
				return errors.Errorf("%d of %d conversations could not be analyzed", stats.Errors, stats.Selected)
			}
			return nil
		},
	}
	f.BindFlags(cmd.Flags())
	return cmd
}
