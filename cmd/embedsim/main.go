// embedsim runs the button/LED/tone firmware on a simulated board.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lulu2002/async-embed/internal/board"
	"github.com/lulu2002/async-embed/internal/config"
	"github.com/lulu2002/async-embed/internal/logging"
	"github.com/lulu2002/async-embed/internal/sched"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
	logFormat  string
	duration   time.Duration
	traceCSV   string
	overflow   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "embedsim",
		Short: "Cooperative executor firmware on a simulated board",
		Long: `embedsim boots the executor, clock, wakeup manager and edge bridge on a
simulated RTC and GPIO port and runs the button, LED and tone tasks.

Examples:
  # Run for five seconds with the scripted presses from a config file
  embedsim run --config embedsim.yml --duration 5s

  # Start next to the first counter wrap and trace every dispatch
  embedsim run --trigger-overflow --trace-csv trace.csv

  # Print the effective configuration
  embedsim config --config embedsim.yml
`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "embedsim.yml", "Config file (missing file means defaults)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override (trace|debug|info|warn|error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format override (text|json)")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}
	return cfg, nil
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Boot the simulated board and run the firmware",
		Args:  cobra.NoArgs,
		RunE:  runFirmware,
	}
	cmd.Flags().DurationVarP(&duration, "duration", "d", 0, "Stop after this much wall time (0 runs until interrupted)")
	cmd.Flags().StringVar(&traceCSV, "trace-csv", "", "Write executor status events to this CSV file")
	cmd.Flags().BoolVar(&overflow, "trigger-overflow", false, "Start the RTC next to its wrap point")
	return cmd
}

func runFirmware(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if overflow {
		cfg.TriggerOverflow = true
	}
	logger := logging.NewLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)

	observers := []sched.Observer{sched.LogObserver(logger)}
	if traceCSV != "" {
		trace, err := sched.NewCSVTrace(traceCSV)
		if err != nil {
			return err
		}
		defer func() {
			if err := trace.Close(); err != nil {
				logger.Error().Err(err).Str("path", traceCSV).Msg("closing trace")
			}
		}()
		observers = append(observers, trace.Observe)
	}

	sim, err := board.NewSim(cfg, logger, sched.WithObserver(sched.Observers(observers...)))
	if err != nil {
		return err
	}
	defer sim.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	err = sim.Run(ctx)
	logStats(logger, sim.Stats())
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func logStats(logger zerolog.Logger, st board.Stats) {
	logger.Info().
		Uint64("ticks", uint64(st.Now)).
		Uint64("ms", st.Now.Millis()).
		Uint32("overflows", st.Overflows).
		Int("presses_a", st.PressesA).
		Int("presses_b", st.PressesB).
		Int("active_col", st.ActiveCol).
		Int("tones", st.Tones).
		Msg("stopped")
}

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			out, err := config.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}
