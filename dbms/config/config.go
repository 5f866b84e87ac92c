// Package config holds the settings of a page tree and of the tools built
// around it. A Config starts from Default, is optionally overlaid with a YAML
// file and is validated before any file is touched.
package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/btree-query-bench/pagetree/dbms/dberr"
	"github.com/btree-query-bench/pagetree/dbms/pager"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Meta store backends.
const (
	MetaPebble  = "pebble"
	MetaLevelDB = "leveldb"
	MetaNone    = "none"
)

// Config describes one tree.
type Config struct {
	// Dir is the base directory holding the node file and the meta store.
	Dir string `yaml:"dir"`
	// Name is the logical tree name; the node file is <Dir>/<Name>.bpt.
	Name string `yaml:"name"`
	// Degree is the maximum number of children of an internal node. Odd, >= 3.
	Degree int `yaml:"degree"`
	// PageSize is the unit node images are rounded up to.
	PageSize int `yaml:"page_size"`
	// CachePages is the number of node images kept in the LRU cache.
	CachePages int `yaml:"cache_pages"`
	// SyncWrites fsyncs the node file after every node write.
	SyncWrites bool `yaml:"sync_writes"`
	// MetaBackend selects the superblock store: pebble, leveldb or none.
	// With none the layout cannot be verified, so only an empty or new node
	// file can be opened.
	MetaBackend string `yaml:"meta_backend"`
	// ValueSize is the fixed value width used by the CLI and the benchmark.
	ValueSize int `yaml:"value_size"`

	Log Log `yaml:"log"`
}

// Log configures the zap logger built by Logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

// Default returns the baseline configuration. With int64 keys and 32-byte
// values a degree-63 node fits a single 4 KB page.
func Default() Config {
	return Config{
		Dir:         "data",
		Name:        "tree",
		Degree:      63,
		PageSize:    pager.PageSize,
		CachePages:  256,
		SyncWrites:  true,
		MetaBackend: MetaPebble,
		ValueSize:   32,
		Log: Log{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads a YAML file on top of Default and validates the result. Unknown
// keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, dberr.IO(err, "config: read %s", path)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, errors.Mark(errors.Wrapf(err, "config: parse %s", path), dberr.ErrConfig)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks every field.
func (c Config) Validate() error {
	if err := c.ValidateTree(); err != nil {
		return err
	}
	if c.ValueSize <= 0 {
		return dberr.Configf("config: value_size %d must be positive", c.ValueSize)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return dberr.Configf("config: log level %q: %v", c.Log.Level, err)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return dberr.Configf("config: log format %q must be console or json", c.Log.Format)
	}
	return nil
}

// ValidateTree checks only the fields a tree needs to open.
func (c Config) ValidateTree() error {
	if c.Dir == "" {
		return dberr.Configf("config: dir is empty")
	}
	if c.Name == "" {
		return dberr.Configf("config: name is empty")
	}
	if strings.ContainsAny(c.Name, `/\`) || c.Name == "." || c.Name == ".." {
		return dberr.Configf("config: name %q must be a plain file name", c.Name)
	}
	if c.Degree < 3 || c.Degree%2 == 0 {
		return dberr.Configf("config: degree %d must be odd and >= 3", c.Degree)
	}
	if c.PageSize <= 0 || c.PageSize%512 != 0 {
		return dberr.Configf("config: page_size %d must be a positive multiple of 512", c.PageSize)
	}
	if c.CachePages < 0 {
		return dberr.Configf("config: cache_pages %d must not be negative", c.CachePages)
	}
	switch c.MetaBackend {
	case MetaPebble, MetaLevelDB, MetaNone:
	default:
		return dberr.Configf("config: meta_backend %q must be pebble, leveldb or none", c.MetaBackend)
	}
	return nil
}

// TreePath is the node file path.
func (c Config) TreePath() string { return filepath.Join(c.Dir, c.Name+".bpt") }

// MetaPath is the meta store directory.
func (c Config) MetaPath() string { return filepath.Join(c.Dir, c.Name+".meta") }

// Logger builds a zap logger from the Log section: JSON production output or
// a development console logger.
func (c Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, dberr.Configf("config: log level %q: %v", c.Log.Level, err)
	}
	var zc zap.Config
	if c.Log.Format == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
