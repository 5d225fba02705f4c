package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"sensorsched/internal/logging"
	"sensorsched/internal/sched"
)

var (
	flagConfig    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
	cfg    sched.Config
)

// NewRootCmd creates the root cobra command for the sensorsched CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sensorsched",
		Short: "Simulate dispatch of safety-classified tasks onto shared sensors",
		Long: "sensorsched replays a task arrival plan against a pool of exclusive, preemptible sensors " +
			"under a mixed-critical, fair or energy-aware policy chosen per arrival.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = sched.Load(flagConfig)
			if err != nil {
				return err
			}

			level, format := cfg.Log.Level, cfg.Log.Format
			if cmd.Flags().Changed("log-level") {
				level = flagLogLevel
			}
			if cmd.Flags().Changed("log-format") {
				format = flagLogFormat
			}
			if flagDebug {
				level = "debug"
			}
			logger = logging.NewLogger(logging.ParseLevel(level), format)
			return nil
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Run configuration (YAML); empty uses built-in defaults")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newRunCmd(),
		newTasksCmd(),
	)

	return root
}
