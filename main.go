package main

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/btree-query-bench/pagetree/dbms/config"
	"github.com/btree-query-bench/pagetree/dbms/index"
	"github.com/btree-query-bench/pagetree/dbms/index/bptree"
	"github.com/btree-query-bench/pagetree/dbms/index/lsm"
	"go.uber.org/zap"
)

const (
	resultsDir = "results"
	scale      = 100000
	valueSize  = 32
)

func main() {
	log, _ := zap.NewDevelopment()
	defer log.Sync()

	if err := os.MkdirAll(resultsDir, 0755); err != nil {
		log.Fatal("create results dir", zap.Error(err))
	}
	work, err := os.MkdirTemp("", "pagetree-bench-")
	if err != nil {
		log.Fatal("create work dir", zap.Error(err))
	}
	defer os.RemoveAll(work)

	f, err := os.Create(filepath.Join(resultsDir, "results.csv"))
	if err != nil {
		log.Fatal("create csv", zap.Error(err))
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		log.Fatal("write csv header", zap.Error(err))
	}

	values := NewValuePool(1024, valueSize)
	var results []BenchResult

	// --- 1. Sweep the page tree over degrees ---
	for _, d := range []int{15, 63, 127} {
		cfg := config.Default()
		cfg.Dir = work
		cfg.Name = "degree-" + strconv.Itoa(d)
		cfg.Degree = d
		cfg.ValueSize = valueSize
		cfg.SyncWrites = false
		cfg.MetaBackend = config.MetaNone

		idx, err := bptree.OpenIndex(cfg, bptree.WithLogger(log))
		if err != nil {
			log.Fatal("open page tree", zap.Int("degree", d), zap.Error(err))
		}
		results = append(results, runSuite(w, log, "PageTree", strconv.Itoa(d), idx, values, scale)...)
		if err := idx.Tree().Check(); err != nil {
			log.Error("page tree check failed", zap.Int("degree", d), zap.Error(err))
		}
		if err := idx.Close(); err != nil {
			log.Error("close page tree", zap.Int("degree", d), zap.Error(err))
		}
	}

	// --- 2. Pebble baseline ---
	l, err := lsm.Open(filepath.Join(work, "pebble"), nil, false)
	if err != nil {
		log.Fatal("open pebble", zap.Error(err))
	}
	results = append(results, runSuite(w, log, "Pebble", "default", l, values, scale)...)
	if err := l.Close(); err != nil {
		log.Error("close pebble", zap.Error(err))
	}

	w.Flush()
	if err := w.Error(); err != nil {
		log.Fatal("write csv", zap.Error(err))
	}
	chart := filepath.Join(resultsDir, "latency.png")
	if err := PlotLatency(results, chart); err != nil {
		log.Fatal("render chart", zap.Error(err))
	}
	log.Info("benchmark complete", zap.String("csv", f.Name()), zap.String("chart", chart))
}

func runSuite(w *csv.Writer, log *zap.Logger, name, conf string, i index.Index, values *ValuePool, n int) []BenchResult {
	log.Info("testing", zap.String("structure", name), zap.String("config", conf))
	var out []BenchResult
	record := func(op string, latencyNs int64) {
		res := BenchResult{Name: name, Config: conf, Operation: op, LatencyNs: latencyNs, Mem: GetDetailedMem()}
		shape, err := shapeOf(i)
		if err != nil {
			log.Error("tree stats", zap.String("structure", name), zap.Error(err))
		}
		res.Shape = shape
		if err := Record(w, res); err != nil {
			log.Error("write csv row", zap.String("structure", name), zap.Error(err))
		}
		out = append(out, res)
	}

	// 1. Pure Insert (Initial Load)
	start := time.Now()
	for k := 0; k < n; k++ {
		if err := i.Insert(int64(k), values.Next()); err != nil {
			log.Fatal("insert", zap.String("structure", name), zap.Int("key", k), zap.Error(err))
		}
	}
	// Memory and shape are sampled right after the load, before any workload.
	record("Insert", time.Since(start).Nanoseconds()/int64(n))

	for _, wl := range []struct {
		op    string
		wType WorkloadType
		ops   int
	}{
		{"Workload_OLTP", OLTP, n / 2},
		{"Workload_OLAP", OLAP, n / 2},
		{"Workload_Range", Reporting, 100},
		{"Workload_Churn", Churn, n / 4},
	} {
		start = time.Now()
		if err := ExecuteWorkload(i, wl.wType, wl.ops, n, values); err != nil {
			log.Error("workload failed", zap.String("structure", name), zap.String("workload", wl.op), zap.Error(err))
			continue
		}
		record(wl.op, time.Since(start).Nanoseconds()/int64(wl.ops))
	}
	return out
}
