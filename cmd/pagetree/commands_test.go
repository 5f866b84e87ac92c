package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/btree-query-bench/pagetree/dbms/dberr"
	"github.com/cockroachdb/errors"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true
	var out bytes.Buffer
	base := []string{"--dir", dir, "--name", "cli", "--degree", "3", "--value-size", "8", "--sync=false"}
	err := execute(append(args[:1:1], append(base, args[1:]...)...), &out)
	return out.String(), err
}

func TestCLIRoundTrip(t *testing.T) {
	dir := t.TempDir()

	for _, k := range []string{"3", "1", "2", "5", "4"} {
		_, err := run(t, dir, "insert", k, "v"+k)
		require.NoError(t, err)
	}

	out, err := run(t, dir, "get", "4")
	require.NoError(t, err)
	assert.Equal(t, "v4\n", out)

	_, err = run(t, dir, "insert", "4", "dup")
	assert.True(t, errors.Is(err, dberr.ErrDuplicateKey))

	_, err = run(t, dir, "update", "4", "four")
	require.NoError(t, err)
	_, err = run(t, dir, "put", "6", "six")
	require.NoError(t, err)

	out, err = run(t, dir, "scan", "2", "4")
	require.NoError(t, err)
	assert.Equal(t, "2\tv2\n3\tv3\n4\tfour\n", out)

	_, err = run(t, dir, "delete", "2")
	require.NoError(t, err)
	out, err = run(t, dir, "get", "2")
	assert.True(t, errors.Is(err, dberr.ErrKeyNotFound))
	assert.Contains(t, out, "not found")

	out, err = run(t, dir, "scan")
	require.NoError(t, err)
	assert.Equal(t, 5, strings.Count(out, "\n"))

	out, err = run(t, dir, "check")
	require.NoError(t, err)
	assert.Equal(t, "ok\n", out)

	out, err = run(t, dir, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "keys")
	assert.FileExists(t, filepath.Join(dir, "cli.bpt"))
	assert.DirExists(t, filepath.Join(dir, "cli.meta"))

	out, err = run(t, dir, "dot")
	require.NoError(t, err)
	assert.Contains(t, out, "digraph BPlusTree")

	dotPath := filepath.Join(dir, "tree.dot")
	_, err = run(t, dir, "dot", dotPath)
	require.NoError(t, err)
	assert.FileExists(t, dotPath)
}

func TestCLIConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tree.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dir: "+dir+"\nname: fromfile\ndegree: 5\nmeta_backend: leveldb\nsync_writes: false\nlog:\n  level: error\n"), 0644))

	var out bytes.Buffer
	require.NoError(t, execute([]string{"put", "--config", path, "1", "one"}, &out))
	out.Reset()
	require.NoError(t, execute([]string{"get", "--config", path, "1"}, &out))
	assert.Equal(t, "one\n", out.String())
	assert.FileExists(t, filepath.Join(dir, "fromfile.bpt"))
}

func TestCLIRejectsBadInput(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, dir, "get", "abc")
	assert.Error(t, err)

	_, err = run(t, dir, "scan", "1")
	assert.Error(t, err)

	var out bytes.Buffer
	err = execute([]string{"get", "--dir", dir, "--degree", "4", "1"}, &out)
	assert.True(t, errors.Is(err, dberr.ErrConfig))
}
