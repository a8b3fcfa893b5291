package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/latchdb/latchdb/internal/engineconfig"
	"github.com/latchdb/latchdb/internal/epoch"
	"github.com/latchdb/latchdb/internal/index"
	"github.com/latchdb/latchdb/internal/tuple"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Interactive demonstrations of engine internals",
}

var demoRingOverflowCmd = &cobra.Command{
	Use:   "ringoverflow",
	Short: "Enter and exit 20 epochs on an 8-slot ring without ticking",
	RunE:  runDemoRingOverflow,
}

var demoBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Pick an index shape interactively and build an empty index against it",
	RunE:  runDemoBuild,
}

func init() {
	demoCmd.AddCommand(demoRingOverflowCmd)
	demoCmd.AddCommand(demoBuildCmd)
}

// runDemoRingOverflow constructs a manager with a deliberately tiny ring
// (8 slots) and enters and exits 20 epochs back to back without a tick.
// current_epoch only moves on a tick, so every enter joins epoch 0: the
// ring never wraps and no tail is force-advanced. Forced advancement
// happens only inside a tick, when the next epoch would lap reclaim_tail.
func runDemoRingOverflow(cmd *cobra.Command, args []string) error {
	cfg := epoch.Config{RingSize: 8, TickInterval: time.Hour, SafetyInterval: 2}
	mgr, err := epoch.NewManager(cfg, slog.New(slog.DiscardHandler), nil)
	if err != nil {
		return err
	}

	fmt.Println(boldStyle.Render("ring size 8, entering 20 epochs back to back with no ticks"))
	var ids []uint64
	for i := 0; i < 20; i++ {
		id, err := mgr.EnterEpoch(uint64(i))
		if err != nil {
			return err
		}
		ids = append(ids, id)
		fmt.Printf("  enter %2d -> epoch %s (queue_tail=%s)\n", i,
			accentStyle.Render(fmt.Sprint(id)), mutedStyle.Render(fmt.Sprint(mgr.QueueTail())))
		mgr.ExitEpoch(id)
	}

	fmt.Println(passStyle.Render(fmt.Sprintf("survived %d enters on an 8-slot ring; current_epoch=%d queue_tail=%d",
		len(ids), mgr.CurrentEpoch(), mgr.QueueTail())))
	mgr.Shutdown()
	return nil
}

// runDemoBuild prompts (via huh) for an index shape and a uniqueness
// constraint, then builds and reports on an empty index of that shape.
func runDemoBuild(cmd *cobra.Command, args []string) error {
	shapeStr := "ordered_bwtree"
	unique := false

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Index shape").
				Description("Which concurrent structure should back this index?").
				Options(
					huh.NewOption("ordered_bwtree  (lock-free delta-chain B+ tree)", "ordered_bwtree"),
					huh.NewOption("ordered_skiplist (lock-free skip list)", "ordered_skiplist"),
					huh.NewOption("ordered_btree   (RWMutex-guarded B-tree)", "ordered_btree"),
					huh.NewOption("unordered_hash  (sharded hash map)", "unordered_hash"),
					huh.NewOption("radix_art       (path-compressed radix trie)", "radix_art"),
				).
				Value(&shapeStr),
			huh.NewConfirm().
				Title("Enforce uniqueness?").
				Value(&unique),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	shape, err := engineconfig.ParseShape(shapeStr)
	if err != nil {
		return err
	}
	constraint := index.ConstraintDefault
	if unique {
		constraint = index.ConstraintUnique
	}

	schema := tuple.KeySchema{{Type: tuple.BigInt}}
	meta := index.Metadata{
		IndexID:         1,
		Shape:           shape,
		Constraint:      constraint,
		KeySchema:       schema,
		KeyAttrs:        []int{0},
		TupleToIndexMap: map[int]int{0: 0},
	}
	idx, err := index.Build(meta, nil, tuple.NewCodec(schema), tuple.NewMemoryRowSource())
	if err != nil {
		return err
	}

	fmt.Println(passStyle.Render(fmt.Sprintf("built %s index (unique=%v), stats=%+v", shapeStr, unique, idx.Stats())))
	return nil
}
