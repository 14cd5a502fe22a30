package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"convo-insights-go/internal/logger"
)

var logLevel = "info"

var rootCmd = &cobra.Command{
	Use:   "insights",
	Short: "Analyze MarIA conversations and report on them",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// components build their own loggers from LOG_LEVEL
		_ = os.Setenv("LOG_LEVEL", logLevel)
		log.SetLevel(logger.ParseLevel(logLevel))
	},
	SilenceUsage: true,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", envOr("LOG_LEVEL", logLevel), "Log level (trace,debug,info,warn,error)")

	rootCmd.AddCommand(
		NewAnalyzeCommand(),
		NewReconcileCommand(),
		NewReportCommand(),
		NewExportCommand(),
		NewServeCommand(),
		NewSeedCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
