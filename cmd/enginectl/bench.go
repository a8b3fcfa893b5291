package main

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/latchdb/latchdb/internal/engineconfig"
	"github.com/latchdb/latchdb/internal/index"
	"github.com/latchdb/latchdb/internal/tuple"
)

var (
	benchShape  string
	benchN      int
	benchFanout int
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Microbenchmark an index shape",
}

var benchInsertCmd = &cobra.Command{
	Use:   "insert",
	Short: "Time N sequential inserts against the chosen shape",
	RunE:  runBenchInsert,
}

var benchScanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Time a full scan_all after N inserts",
	RunE:  runBenchScan,
}

func init() {
	benchCmd.PersistentFlags().StringVar(&benchShape, "shape", "ordered_bwtree",
		"index shape: ordered_bwtree|ordered_skiplist|ordered_btree|unordered_hash|radix_art")
	benchCmd.PersistentFlags().IntVar(&benchN, "n", 100000, "number of keys to insert")
	benchScanCmd.Flags().IntVar(&benchFanout, "fanout", 0,
		"partition the scan into this many concurrent scan_range calls, bounded by GOMAXPROCS workers (0: single scan_all)")
	benchCmd.AddCommand(benchInsertCmd)
	benchCmd.AddCommand(benchScanCmd)
}

func benchSchema() tuple.KeySchema {
	return tuple.KeySchema{{Type: tuple.BigInt}}
}

func buildBenchIndex() (index.Index, *tuple.Codec, error) {
	shape, err := engineconfig.ParseShape(benchShape)
	if err != nil {
		return nil, nil, err
	}
	schema := benchSchema()
	codec := tuple.NewCodec(schema)
	meta := index.Metadata{
		IndexID:         1,
		Shape:           shape,
		Constraint:      index.ConstraintDefault,
		KeySchema:       schema,
		KeyAttrs:        []int{0},
		TupleToIndexMap: map[int]int{0: 0},
	}
	idx, err := index.Build(meta, nil, codec, tuple.NewMemoryRowSource())
	if err != nil {
		return nil, nil, err
	}
	return idx, codec, nil
}

func runBenchInsert(cmd *cobra.Command, args []string) error {
	idx, codec, err := buildBenchIndex()
	if err != nil {
		return err
	}

	keys := make([]tuple.Key, benchN)
	perm := rand.Perm(benchN)
	for i, v := range perm {
		k, err := codec.EncodeTuple([]tuple.Value{int64(v)})
		if err != nil {
			return err
		}
		keys[i] = k
	}

	start := time.Now()
	for i, k := range keys {
		if _, err := idx.Insert(k, tuple.Locator{BlockID: uint32(i), SlotOffset: 0}); err != nil {
			return err
		}
	}
	elapsed := time.Since(start)

	fmt.Printf("%s: %s inserts of shape %s in %s (%.0f ops/sec)\n",
		boldStyle.Render("bench insert"), accentStyle.Render(fmt.Sprint(benchN)),
		benchShape, elapsed, float64(benchN)/elapsed.Seconds())
	return nil
}

func runBenchScan(cmd *cobra.Command, args []string) error {
	idx, codec, err := buildBenchIndex()
	if err != nil {
		return err
	}
	if !idx.Shape().Ordered() {
		fmt.Println(warnStyle.Render(fmt.Sprintf("shape %s has no scan_all; skipping", benchShape)))
		return nil
	}

	for i := 0; i < benchN; i++ {
		k, err := codec.EncodeTuple([]tuple.Value{int64(i)})
		if err != nil {
			return err
		}
		if _, err := idx.Insert(k, tuple.Locator{BlockID: uint32(i), SlotOffset: 0}); err != nil {
			return err
		}
	}

	var out []tuple.Locator
	start := time.Now()
	if benchFanout > 0 {
		out, err = fanoutScan(idx, codec, benchN, benchFanout)
	} else {
		out, err = idx.ScanAll(index.Forward)
	}
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	fmt.Printf("%s: scanned %s locators from shape %s in %s\n",
		boldStyle.Render("bench scan"), accentStyle.Render(fmt.Sprint(len(out))), benchShape, elapsed)
	return nil
}

// fanoutScan partitions [0, n) into chunks scan_range calls, running up to
// GOMAXPROCS of them concurrently. The semaphore bounds in-flight goroutines
// regardless of how many chunks there are, the way a scan_range fan-out
// against a large key range would need to in order to avoid spawning one
// goroutine per chunk.
func fanoutScan(idx index.Index, codec *tuple.Codec, n, chunks int) ([]tuple.Locator, error) {
	if chunks > n {
		chunks = n
	}
	if chunks <= 0 {
		chunks = 1
	}
	chunkSize := (n + chunks - 1) / chunks

	sem := semaphore.NewWeighted(int64(runtime.GOMAXPROCS(0)))
	g, ctx := errgroup.WithContext(context.Background())

	results := make([][]tuple.Locator, chunks)
	for c := 0; c < chunks; c++ {
		c := c
		lo := c * chunkSize
		hi := lo + chunkSize - 1
		if hi >= n {
			hi = n - 1
		}
		if lo > hi {
			continue
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		g.Go(func() error {
			defer sem.Release(1)

			low, err := codec.EncodeTuple([]tuple.Value{int64(lo)})
			if err != nil {
				return err
			}
			high, err := codec.EncodeTuple([]tuple.Value{int64(hi)})
			if err != nil {
				return err
			}
			locs, err := idx.ScanRange(low, high, index.Forward, nil)
			if err != nil {
				return err
			}
			results[c] = locs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var total int
	for _, r := range results {
		total += len(r)
	}
	out := make([]tuple.Locator, 0, total)
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}
