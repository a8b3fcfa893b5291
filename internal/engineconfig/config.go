// Package engineconfig loads the tunables for the epoch manager and index
// defaults, the way beads' cmd/bd/config.go
// loads project settings: viper for layered read (file, env, defaults),
// gopkg.in/yaml.v3 for the on-disk format, BurntSushi/toml as an alternate
// format for callers that prefer it, and fsnotify for hot-reload of the
// epoch tunables while the engine is running.
package engineconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/latchdb/latchdb/internal/epoch"
	"github.com/latchdb/latchdb/internal/index"
)

// Config is the on-disk shape of an engine's configuration file.
type Config struct {
	Epoch   EpochConfig   `yaml:"epoch" toml:"epoch" mapstructure:"epoch"`
	Indexes IndexDefaults `yaml:"indexes" toml:"indexes" mapstructure:"indexes"`
}

// EpochConfig mirrors epoch.Config with (un)marshalable field tags; epoch.Config
// itself carries no struct tags since internal/epoch has no serialization
// concern of its own.
type EpochConfig struct {
	RingSize       int           `yaml:"ring_size" toml:"ring_size" mapstructure:"ring_size"`
	TickInterval   time.Duration `yaml:"tick_interval" toml:"tick_interval" mapstructure:"tick_interval"`
	SafetyInterval uint64        `yaml:"safety_interval" toml:"safety_interval" mapstructure:"safety_interval"`
}

// IndexDefaults names the shape new indexes get when a caller doesn't pick
// one explicitly, plus the uniqueness default for primary-key-less tables.
type IndexDefaults struct {
	DefaultShape      string `yaml:"default_shape" toml:"default_shape" mapstructure:"default_shape"`
	DefaultConstraint string `yaml:"default_constraint" toml:"default_constraint" mapstructure:"default_constraint"`
}

// Default returns the built-in defaults: epoch.DefaultConfig() plus an
// ordered_bwtree/default-constraint index baseline.
func Default() Config {
	ec := epoch.DefaultConfig()
	return Config{
		Epoch: EpochConfig{
			RingSize:       ec.RingSize,
			TickInterval:   ec.TickInterval,
			SafetyInterval: ec.SafetyInterval,
		},
		Indexes: IndexDefaults{
			DefaultShape:      "ordered_bwtree",
			DefaultConstraint: "default",
		},
	}
}

// ToEpochConfig converts the loaded configuration to the epoch package's
// own Config type.
func (c Config) ToEpochConfig() epoch.Config {
	return epoch.Config{
		RingSize:       c.Epoch.RingSize,
		TickInterval:   c.Epoch.TickInterval,
		SafetyInterval: c.Epoch.SafetyInterval,
	}
}

// DefaultShape parses Indexes.DefaultShape into an index.Shape.
func (c Config) DefaultShape() (index.Shape, error) {
	return ParseShape(c.Indexes.DefaultShape)
}

// ParseShape maps a config string onto an index.Shape, the reverse of
// Shape.String.
func ParseShape(s string) (index.Shape, error) {
	switch s {
	case "ordered_bwtree", "":
		return index.OrderedBwTree, nil
	case "ordered_skiplist":
		return index.OrderedSkipList, nil
	case "ordered_btree":
		return index.OrderedBTree, nil
	case "unordered_hash":
		return index.UnorderedHash, nil
	case "radix_art":
		return index.RadixART, nil
	default:
		return 0, fmt.Errorf("engineconfig: unknown index shape %q", s)
	}
}

// Load reads a YAML config file at path, through viper so environment
// variables prefixed LATCHDB_ can override individual fields the file sets
// (e.g. LATCHDB_EPOCH_RING_SIZE), mirroring cmd/bd/config.go's viper.New /
// SetConfigFile / ReadInConfig pattern. A missing file is not an error;
// Default() is returned instead.
func Load(path string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(path)
	v.SetEnvPrefix("LATCHDB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok || errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("engineconfig: read %s: %w", path, err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("engineconfig: unmarshal %s: %w", path, err)
	}
	return cfg, nil
}

// LoadTOML reads a TOML config file, for callers that prefer it over YAML
// (both are accepted; the engine itself is agnostic about which produced
// the Config it receives).
func LoadTOML(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("engineconfig: decode toml %s: %w", path, err)
	}
	return cfg, nil
}

// Marshal renders cfg back to YAML, for writing out a config file.
func Marshal(cfg Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}
