package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/me/taskmatch/internal/logging"
)

var (
	flagServer    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
	client *Client
)

// defaultServer returns the default server URL, checking TASKMATCH_SERVER first.
func defaultServer() string {
	if s := os.Getenv("TASKMATCH_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

// NewRootCmd creates the root cobra command for the taskmatch CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "taskmatch",
		Short: "taskmatch — task auto-assignment engine",
		Long:  "taskmatch scores workers against open tasks and assigns (or proposes) the best match per tenant.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagDebug {
				flagLogLevel = "debug"
			}
			logger = logging.New(flagLogLevel, flagLogFormat)
			client = NewClient(flagServer, logger)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagServer, "server", defaultServer(), "taskmatch server URL (or TASKMATCH_SERVER env)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newTriggerCmd(),
		newTasksCmd(),
		newApproveCmd(),
		newRejectCmd(),
		newRunsCmd(),
		newConfigCmd(),
	)

	return root
}
