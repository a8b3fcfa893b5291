// Command enginectl drives a latchdb engine from the command line: it
// benchmarks the index shapes, demonstrates the epoch ring under load, and
// inspects a running configuration. Styling follows cmd/bd-examples'
// lipgloss-adaptive-color convention.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/latchdb/latchdb/internal/telemetry"
)

var (
	jsonOutput    bool
	configPath    string
	telemetryFlag bool
)

var (
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#86b300", Dark: "#c2d94c"})
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#f2ae49", Dark: "#ffb454"})
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#f07171", Dark: "#f07178"})
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#828c99", Dark: "#6c7680"})
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#399ee6", Dark: "#59c2ff"})
	boldStyle   = lipgloss.NewStyle().Bold(true)
)

var telemetryShutdown telemetry.Shutdown

var rootCmd = &cobra.Command{
	Use:   "enginectl",
	Short: "Drive and inspect a latchdb storage engine",
	Long: `enginectl exercises the index core and epoch manager directly,
without a SQL layer in front of them.

Commands:
  bench   Run insert/scan microbenchmarks against an index shape
  demo    Demonstrate epoch-ring and index-build behavior interactively
  inspect Print the epoch tunables, a fresh epoch manager's tails, and index defaults`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !telemetryFlag {
			return nil
		}
		shutdown, err := telemetry.Init()
		if err != nil {
			return err
		}
		telemetryShutdown = shutdown
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if telemetryShutdown == nil {
			return nil
		}
		return telemetryShutdown(context.Background())
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "accepted but read by no command; output is always styled text")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to engine config.yaml (defaults to built-in config)")
	rootCmd.PersistentFlags().BoolVar(&telemetryFlag, "telemetry", false, "install stdout-exporting otel tracer/meter providers for this run")

	rootCmd.AddCommand(benchCmd)
	rootCmd.AddCommand(demoCmd)
	rootCmd.AddCommand(inspectCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, failStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}
