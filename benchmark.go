package main

import (
	"encoding/csv"
	"runtime"
	"strconv"

	"github.com/btree-query-bench/pagetree/dbms/index"
	"github.com/btree-query-bench/pagetree/dbms/index/bptree"
)

// csvHeader names the columns Record writes.
var csvHeader = []string{
	"Structure", "Config", "TestType", "LatencyNs",
	"AllocMB", "HeapObjects", "NumGC",
	"Height", "FileNodes", "NodeSize", "FileBytes",
}

// BenchResult is one row of the results table. Shape stays zero for
// structures that do not expose their layout.
type BenchResult struct {
	Name      string
	Config    string
	Operation string
	LatencyNs int64
	Mem       MemoryStats
	Shape     TreeShape
}

type MemoryStats struct {
	AllocMB     uint64
	HeapObjects uint64
	NumGC       uint32
}

// TreeShape is the on-disk footprint of a page tree at the time of a
// measurement.
type TreeShape struct {
	Height    int
	FileNodes int64
	NodeSize  int
	FileBytes int64
}

// GetDetailedMem samples the heap after a forced GC.
func GetDetailedMem() MemoryStats {
	var m runtime.MemStats
	// Force GC to ensure we measure actual live data, not garbage
	runtime.GC()
	runtime.ReadMemStats(&m)
	return MemoryStats{
		AllocMB:     m.Alloc / 1024 / 1024,
		HeapObjects: m.HeapObjects,
		NumGC:       m.NumGC,
	}
}

// shapeOf reports the layout of idx when it is a page tree.
func shapeOf(idx index.Index) (TreeShape, error) {
	x, ok := idx.(*bptree.Index)
	if !ok {
		return TreeShape{}, nil
	}
	s, err := x.Tree().Stats()
	if err != nil {
		return TreeShape{}, err
	}
	return TreeShape{
		Height:    s.Height,
		FileNodes: s.FileNodes,
		NodeSize:  s.NodeSize,
		FileBytes: s.FileSize,
	}, nil
}

// Record writes one row in csvHeader order.
func Record(w *csv.Writer, res BenchResult) error {
	return w.Write([]string{
		res.Name,
		res.Config,
		res.Operation,
		strconv.FormatInt(res.LatencyNs, 10),
		strconv.FormatUint(res.Mem.AllocMB, 10),
		strconv.FormatUint(res.Mem.HeapObjects, 10),
		strconv.FormatUint(uint64(res.Mem.NumGC), 10),
		strconv.Itoa(res.Shape.Height),
		strconv.FormatInt(res.Shape.FileNodes, 10),
		strconv.Itoa(res.Shape.NodeSize),
		strconv.FormatInt(res.Shape.FileBytes, 10),
	})
}
