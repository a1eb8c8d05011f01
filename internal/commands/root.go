package commands

import (
	"github.com/spf13/cobra"

	"github.com/ppiankov/billspectre/internal/logging"
)

var (
	verbose   bool
	logLevel  string
	logFormat string
	version   string
	commit    string
	date      string
)

var rootCmd = &cobra.Command{
	Use:   "billspectre",
	Short: "billspectre - AWS bill-driven cost optimizer",
	Long: `billspectre starts from what you actually paid. It reads last month's AWS
bill, inventories the resources behind each billed service, attributes cost
to individual resources and checks their utilization.

Each recommendation includes an estimated monthly impact in USD, and every
run produces a multi-sheet Excel report.`,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return logging.Init(logging.Options{Verbose: verbose, Level: logLevel, Format: logFormat})
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command with injected build info.
func Execute(v, c, d string) error {
	version = v
	commit = c
	date = d
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")
	rootCmd.AddCommand(awsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}
