package engineconfig_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latchdb/latchdb/internal/engineconfig"
	"github.com/latchdb/latchdb/internal/index"
)

func TestDefault(t *testing.T) {
	cfg := engineconfig.Default()
	assert.Equal(t, "ordered_bwtree", cfg.Indexes.DefaultShape)
	shape, err := cfg.DefaultShape()
	require.NoError(t, err)
	assert.Equal(t, index.OrderedBwTree, shape)
}

func TestParseShape(t *testing.T) {
	cases := map[string]index.Shape{
		"ordered_bwtree":   index.OrderedBwTree,
		"":                 index.OrderedBwTree,
		"ordered_skiplist": index.OrderedSkipList,
		"ordered_btree":    index.OrderedBTree,
		"unordered_hash":   index.UnorderedHash,
		"radix_art":        index.RadixART,
	}
	for s, want := range cases {
		got, err := engineconfig.ParseShape(s)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := engineconfig.ParseShape("nonsense")
	assert.Error(t, err)
}

func TestLoad_MissingFileReturnsDefault(t *testing.T) {
	cfg, err := engineconfig.Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, engineconfig.Default(), cfg)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "epoch:\n  ring_size: 256\n  tick_interval: 5ms\n  safety_interval: 3\nindexes:\n  default_shape: radix_art\n  default_constraint: unique\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := engineconfig.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 256, cfg.Epoch.RingSize)
	assert.Equal(t, 5*time.Millisecond, cfg.Epoch.TickInterval)
	assert.Equal(t, uint64(3), cfg.Epoch.SafetyInterval)
	assert.Equal(t, "radix_art", cfg.Indexes.DefaultShape)
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := "[epoch]\nring_size = 512\ntick_interval = 20000000\nsafety_interval = 4\n\n[indexes]\ndefault_shape = \"ordered_btree\"\ndefault_constraint = \"default\"\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := engineconfig.LoadTOML(path)
	require.NoError(t, err)
	assert.Equal(t, 512, cfg.Epoch.RingSize)
	assert.Equal(t, "ordered_btree", cfg.Indexes.DefaultShape)
}

func TestMarshal_IncludesDefaultShape(t *testing.T) {
	cfg := engineconfig.Default()
	out, err := engineconfig.Marshal(cfg)
	require.NoError(t, err)
	assert.Contains(t, string(out), "ordered_bwtree")
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	initial := "epoch:\n  ring_size: 64\n  tick_interval: 50ms\n  safety_interval: 2\nindexes:\n  default_shape: ordered_bwtree\n  default_constraint: default\n"
	require.NoError(t, os.WriteFile(path, []byte(initial), 0o644))

	reloaded := make(chan engineconfig.Config, 1)
	w := engineconfig.NewWatcher(path, 10*time.Millisecond, nil, func(cfg engineconfig.Config) {
		reloaded <- cfg
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher a moment to register the fsnotify watch before the
	// write that should trigger a reload.
	time.Sleep(20 * time.Millisecond)
	updated := "epoch:\n  ring_size: 64\n  tick_interval: 5ms\n  safety_interval: 2\nindexes:\n  default_shape: ordered_bwtree\n  default_constraint: default\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, 5*time.Millisecond, cfg.Epoch.TickInterval)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher never reloaded after config write")
	}

	cancel()
	<-done
}
