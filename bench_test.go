package main

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/btree-query-bench/pagetree/dbms/config"
	"github.com/btree-query-bench/pagetree/dbms/index/bptree"
	"github.com/btree-query-bench/pagetree/dbms/index/lsm"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValuePoolSizes(t *testing.T) {
	p := NewValuePool(4, 32)
	for i := 0; i < 8; i++ {
		assert.Len(t, p.Next(), 32)
	}
}

func TestWorkloadsAgainstBothIndexes(t *testing.T) {
	cfg := config.Default()
	cfg.Dir = t.TempDir()
	cfg.Name = "bench"
	cfg.Degree = 7
	cfg.SyncWrites = false
	cfg.MetaBackend = config.MetaNone

	tree, err := bptree.OpenIndex(cfg)
	require.NoError(t, err)
	defer tree.Close()
	pebbleIdx, err := lsm.Open("bench", vfs.NewMem(), false)
	require.NoError(t, err)
	defer pebbleIdx.Close()

	values := NewValuePool(16, cfg.ValueSize)
	const keys = 500
	for k := int64(0); k < keys; k++ {
		require.NoError(t, tree.Insert(k, values.Next()))
		require.NoError(t, pebbleIdx.Insert(k, values.Next()))
	}
	for _, wt := range []WorkloadType{OLTP, OLAP, Reporting, Churn} {
		require.NoError(t, ExecuteWorkload(tree, wt, 200, keys, values), wt)
		require.NoError(t, ExecuteWorkload(pebbleIdx, wt, 200, keys, values), wt)
	}
	require.NoError(t, tree.Tree().Check())

	for k := int64(0); k < keys; k++ {
		v, err := tree.Get(k)
		require.NoError(t, err)
		require.NotNil(t, v, "key %d", k)
	}
}

func TestPlotLatency(t *testing.T) {
	out := filepath.Join(t.TempDir(), "latency.png")
	err := PlotLatency([]BenchResult{
		{Name: "PageTree", Config: "63", Operation: "Insert", LatencyNs: 1200},
		{Name: "PageTree", Config: "63", Operation: "Workload_OLTP", LatencyNs: 800},
		{Name: "Pebble", Config: "default", Operation: "Insert", LatencyNs: 900},
		{Name: "Pebble", Config: "default", Operation: "Workload_OLTP", LatencyNs: 700},
	}, out)
	require.NoError(t, err)
	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	assert.Error(t, PlotLatency(nil, out))
}

func TestRecordCarriesTreeShape(t *testing.T) {
	cfg := config.Default()
	cfg.Dir = t.TempDir()
	cfg.Name = "shape"
	cfg.Degree = 5
	cfg.SyncWrites = false
	cfg.MetaBackend = config.MetaNone

	tree, err := bptree.OpenIndex(cfg)
	require.NoError(t, err)
	defer tree.Close()
	values := NewValuePool(4, cfg.ValueSize)
	for k := int64(0); k < 50; k++ {
		require.NoError(t, tree.Insert(k, values.Next()))
	}

	shape, err := shapeOf(tree)
	require.NoError(t, err)
	s, err := tree.Tree().Stats()
	require.NoError(t, err)
	assert.Equal(t, s.Height, shape.Height)
	assert.GreaterOrEqual(t, shape.Height, 3)
	assert.Equal(t, tree.Tree().NodeSize(), shape.NodeSize)
	assert.Equal(t, shape.FileNodes*int64(shape.NodeSize), shape.FileBytes)

	pebbleIdx, err := lsm.Open("shape", vfs.NewMem(), false)
	require.NoError(t, err)
	defer pebbleIdx.Close()
	none, err := shapeOf(pebbleIdx)
	require.NoError(t, err)
	assert.Zero(t, none)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	require.NoError(t, w.Write(csvHeader))
	require.NoError(t, Record(w, BenchResult{Name: "PageTree", Config: "5", Operation: "Insert", LatencyNs: 42, Shape: shape}))
	w.Flush()
	require.NoError(t, w.Error())

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Len(t, rows[1], len(csvHeader))
	assert.Equal(t, "42", rows[1][3])
	assert.Equal(t, strconv.Itoa(shape.Height), rows[1][7])
	assert.Equal(t, strconv.Itoa(shape.NodeSize), rows[1][9])
}
