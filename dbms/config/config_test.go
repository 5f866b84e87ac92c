package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/btree-query-bench/pagetree/dbms/dberr"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(c *Config){
		"even degree":     func(c *Config) { c.Degree = 4 },
		"small degree":    func(c *Config) { c.Degree = 1 },
		"empty name":      func(c *Config) { c.Name = "" },
		"name with slash": func(c *Config) { c.Name = "a/b" },
		"empty dir":       func(c *Config) { c.Dir = "" },
		"odd page size":   func(c *Config) { c.PageSize = 1000 },
		"negative cache":  func(c *Config) { c.CachePages = -1 },
		"meta backend":    func(c *Config) { c.MetaBackend = "bolt" },
		"value size":      func(c *Config) { c.ValueSize = 0 },
		"log level":       func(c *Config) { c.Log.Level = "loud" },
		"log format":      func(c *Config) { c.Log.Format = "xml" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := Default()
			mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, dberr.ErrConfig))
		})
	}
}

func TestValidateTreeIgnoresToolFields(t *testing.T) {
	c := Default()
	c.ValueSize = 0
	c.Log.Format = ""
	assert.NoError(t, c.ValidateTree())
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
dir: /var/lib/trees
name: orders
degree: 5
meta_backend: leveldb
log:
  level: debug
`), 0644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/trees", c.Dir)
	assert.Equal(t, "orders", c.Name)
	assert.Equal(t, 5, c.Degree)
	assert.Equal(t, MetaLevelDB, c.MetaBackend)
	assert.Equal(t, "debug", c.Log.Level)
	// untouched fields keep their defaults
	assert.Equal(t, 4096, c.PageSize)
	assert.Equal(t, "console", c.Log.Format)
	assert.Equal(t, filepath.Join("/var/lib/trees", "orders.bpt"), c.TreePath())
	assert.Equal(t, filepath.Join("/var/lib/trees", "orders.meta"), c.MetaPath())
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.yaml")
	require.NoError(t, os.WriteFile(path, []byte("degre: 5\n"), 0644))

	_, err := Load(path)
	assert.True(t, errors.Is(err, dberr.ErrConfig))
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.yaml")
	require.NoError(t, os.WriteFile(path, []byte("degree: 8\n"), 0644))

	_, err := Load(path)
	assert.True(t, errors.Is(err, dberr.ErrConfig))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.True(t, errors.Is(err, dberr.ErrIO))
}

func TestLogger(t *testing.T) {
	c := Default()
	c.Log.Format = "json"
	l, err := c.Logger()
	require.NoError(t, err)
	assert.NotNil(t, l)
}
