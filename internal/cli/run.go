package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"sensorsched/internal/report"
	"sensorsched/internal/sched"
	"sensorsched/internal/source"
)

func newRunCmd() *cobra.Command {
	var (
		horizon    float64
		strategy   string
		tracePath  string
		csvPath    string
		realtimeMS int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the simulation to its horizon",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("horizon") {
				cfg.Horizon = horizon
			}
			if cmd.Flags().Changed("strategy") {
				cfg.Strategy.Fixed = strategy
			}
			if cmd.Flags().Changed("trace") {
				cfg.TracePath = tracePath
			}
			if cmd.Flags().Changed("csv") {
				cfg.Sink.CSVPath = csvPath
			}
			if cmd.Flags().Changed("realtime-ms") {
				cfg.RealtimeMS = realtimeMS
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runSimulation(ctx, cfg, logger, cmd.OutOrStdout())
		},
	}

	cmd.Flags().Float64Var(&horizon, "horizon", 0, "Simulation horizon (overrides config)")
	cmd.Flags().StringVar(&strategy, "strategy", "", "Use this strategy for every arrival instead of the strategy source")
	cmd.Flags().StringVar(&tracePath, "trace", "", "Write the per-event status trace to this CSV file")
	cmd.Flags().StringVar(&csvPath, "csv", "", "Write completion records to this CSV file")
	cmd.Flags().IntVar(&realtimeMS, "realtime-ms", 0, "Wall milliseconds per simulated time unit (0 = as fast as possible)")
	return cmd
}

// runSimulation wires the sources and sinks described by cfg, runs one
// simulation and prints its summary to out.
func runSimulation(ctx context.Context, cfg sched.Config, logger *slog.Logger, out io.Writer) error {
	sinks := []report.Sink{report.LogSink{Logger: logger.With("component", "completion")}}

	if cfg.Sink.MQTTBroker != "" {
		mq, err := report.DialMQTT(cfg.Sink.MQTTBroker, cfg.Sink.MQTTClientID, cfg.Sink.MQTTTopic, cfg.Sink.MQTTTimeout, logger)
		if err != nil {
			// an unreachable broker only loses the MQTT copy of the records
			logger.Error("mqtt sink disabled", "broker", cfg.Sink.MQTTBroker, "error", err)
		} else {
			defer mq.Close()
			sinks = append(sinks, mq)
		}
	}
	if cfg.Sink.CSVPath != "" {
		cs, err := report.CreateCSVSink(cfg.Sink.CSVPath)
		if err != nil {
			return fmt.Errorf("open completion csv: %w", err)
		}
		defer cs.Close()
		sinks = append(sinks, cs)
	}
	reporter := report.New(logger, sinks...)

	s, err := sched.New(cfg, metadataSource(cfg, logger), strategySource(cfg, logger), reporter, logger)
	if err != nil {
		return err
	}
	if cfg.TracePath != "" {
		if err := s.EnableCSVLogging(cfg.TracePath); err != nil {
			return fmt.Errorf("open trace: %w", err)
		}
	}

	logger.Info("simulation starting",
		"run_id", reporter.RunID(),
		"sensors", cfg.Sensors,
		"horizon", cfg.Horizon,
		"arrivals", len(cfg.Arrivals),
	)
	sum, err := s.Run(ctx)
	printSummary(out, reporter.RunID(), sum)
	return err
}

func metadataSource(cfg sched.Config, logger *slog.Logger) sched.MetadataSource {
	if cfg.Metadata.URL != "" {
		return source.NewBaSyx(cfg.Metadata.URL, cfg.Strategy.URL, cfg.Metadata.Timeout, logger)
	}
	return source.NewCatalog(cfg.Tasks)
}

func strategySource(cfg sched.Config, logger *slog.Logger) sched.StrategySource {
	switch {
	case cfg.Strategy.Fixed != "":
		return source.Fixed(cfg.Strategy.Fixed)
	case cfg.Strategy.URL != "":
		return source.NewBaSyx(cfg.Metadata.URL, cfg.Strategy.URL, cfg.Strategy.Timeout, logger)
	default:
		logger.Warn("no strategy source configured, every arrival uses fair")
		return source.Fixed(sched.PolicyFair)
	}
}

func printSummary(out io.Writer, runID string, sum sched.Summary) {
	fmt.Fprintf(out, "run %s\n", runID)
	fmt.Fprintf(out, "  arrived:     %d\n", sum.Arrived)
	fmt.Fprintf(out, "  completed:   %d\n", sum.Completed)
	fmt.Fprintf(out, "  preempted:   %d\n", sum.Preempted)
	fmt.Fprintf(out, "  resubmitted: %d\n", sum.Resubmitted)
	fmt.Fprintf(out, "  abandoned:   %d\n", sum.Abandoned)
	fmt.Fprintf(out, "  skipped:     %d\n", sum.Skipped)

	names := make([]string, 0, len(sum.Policies))
	for name := range sum.Policies {
		names = append(names, string(name))
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  policy %-14s %d\n", name+":", sum.Policies[sched.PolicyName(name)])
	}
}
