package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"convo-insights-go/internal/server"
)

type ServeFlags struct {
	*DatabaseFlags
	Listen string
}

func (f *ServeFlags) BindFlags(fs *pflag.FlagSet) {
	f.DatabaseFlags.BindFlags(fs)
	fs.StringVar(&f.Listen, "listen", ":"+envOr("PORT", "8080"), "The address to serve the API on")
}

func NewServeCommand() *cobra.Command {
	f := &ServeFlags{DatabaseFlags: NewDatabaseFlags()}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve analysis records and reports as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := f.Validate(); err != nil {
				return errors.WithMessage(err, "error validating options")
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			st, err := openStore(ctx, f.Config, false)
			if err != nil {
				return errors.WithMessage(err, "could not open store")
			}
			defer st.Close()

			return server.New(st, f.Listen).Serve(ctx)
		},
	}
	f.BindFlags(cmd.Flags())
	return cmd
}
