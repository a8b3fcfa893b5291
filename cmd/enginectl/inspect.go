package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/latchdb/latchdb/internal/engineconfig"
	"github.com/latchdb/latchdb/internal/epoch"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print engine configuration and a fresh epoch manager's starting state",
}

var inspectEpochCmd = &cobra.Command{
	Use:   "epoch",
	Short: "Print the epoch tunables that --config (or the built-in defaults) would apply",
	RunE:  runInspectEpoch,
}

func init() {
	inspectCmd.AddCommand(inspectEpochCmd)
}

func runInspectEpoch(cmd *cobra.Command, args []string) error {
	cfg := engineconfig.Default()
	if configPath != "" {
		loaded, err := engineconfig.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	mgr, err := epoch.NewManager(cfg.ToEpochConfig(), slog.New(slog.DiscardHandler), nil)
	if err != nil {
		return err
	}
	defer mgr.Shutdown()

	fmt.Printf("%s\n", boldStyle.Render("epoch configuration"))
	fmt.Printf("  ring_size       = %s\n", accentStyle.Render(fmt.Sprint(cfg.Epoch.RingSize)))
	fmt.Printf("  tick_interval   = %s\n", accentStyle.Render(cfg.Epoch.TickInterval.String()))
	fmt.Printf("  safety_interval = %s\n", accentStyle.Render(fmt.Sprint(cfg.Epoch.SafetyInterval)))
	fmt.Printf("%s\n", boldStyle.Render("fresh manager state"))
	fmt.Printf("  current_epoch = %d, queue_tail = %d, reclaim_tail = %d\n",
		mgr.CurrentEpoch(), mgr.QueueTail(), mgr.ReclaimTail())
	fmt.Printf("%s\n", boldStyle.Render("index defaults"))
	fmt.Printf("  default_shape      = %s\n", accentStyle.Render(cfg.Indexes.DefaultShape))
	fmt.Printf("  default_constraint = %s\n", accentStyle.Render(cfg.Indexes.DefaultConstraint))
	return nil
}
