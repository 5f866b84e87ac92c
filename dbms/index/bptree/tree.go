// Package bptree implements a disk-backed B+Tree whose nodes are fixed-size,
// page-aligned records in a single file.
//
// The root always lives at offset 0. Every other node is appended to the
// file when it is created and never moves, so a node's offset is its
// identity. Nodes do not hold references to each other: an operation loads
// what it needs by offset, mutates it, persists it and drops it. Only the
// root is kept in memory.
//
// One mutex serializes all operations on a tree.
package bptree

import (
	"os"
	"sync"

	"github.com/btree-query-bench/pagetree/dbms/codec"
	"github.com/btree-query-bench/pagetree/dbms/config"
	"github.com/btree-query-bench/pagetree/dbms/dberr"
	"github.com/btree-query-bench/pagetree/dbms/index/btpage"
	"github.com/btree-query-bench/pagetree/dbms/meta"
	"github.com/btree-query-bench/pagetree/dbms/pager"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Re-exported error categories, for callers that only import bptree.
var (
	ErrConfig         = dberr.ErrConfig
	ErrEncoding       = dberr.ErrEncoding
	ErrIO             = dberr.ErrIO
	ErrKeyNotFound    = dberr.ErrKeyNotFound
	ErrNotInitialized = dberr.ErrNotInitialized
	ErrDuplicateKey   = dberr.ErrDuplicateKey
)

// Option customizes a Tree.
type Option func(*options)

type options struct {
	logger *zap.Logger
	store  meta.Store
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetaStore makes the tree use s for its superblock instead of opening
// the store named by the configuration. The caller keeps ownership of s.
func WithMetaStore(s meta.Store) Option {
	return func(o *options) { o.store = s }
}

// Tree is a B+Tree mapping keys of type K to values of type V.
type Tree[K, V any] struct {
	mu     sync.Mutex
	cfg    config.Config
	layout *btpage.Layout[K, V]
	log    *zap.Logger

	store     meta.Store
	ownsStore bool
	pg        *pager.Pager
	open      bool

	// root is the committed root. Mutations work on a clone held in work and
	// install it only once every write has succeeded.
	root *btpage.Node[K, V]
	work *btpage.Node[K, V]

	// leaves is the leaf inventory read from the superblock at open.
	leaves []uint64
}

// New validates cfg and the codecs and returns a closed tree. No file is
// touched.
func New[K, V any](cfg config.Config, keys codec.KeyCodec[K], values codec.Codec[V], opts ...Option) (*Tree[K, V], error) {
	if err := cfg.ValidateTree(); err != nil {
		return nil, err
	}
	layout, err := btpage.NewLayout(cfg.Degree, cfg.PageSize, keys, values)
	if err != nil {
		return nil, err
	}

	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	t := &Tree[K, V]{
		cfg:    cfg,
		layout: layout,
		log:    o.logger.With(zap.String("tree", cfg.Name)),
	}
	if o.store != nil {
		t.store = o.store
	}
	return t, nil
}

// Open is New followed by (*Tree).Open.
func Open[K, V any](cfg config.Config, keys codec.KeyCodec[K], values codec.Codec[V], opts ...Option) (*Tree[K, V], error) {
	t, err := New(cfg, keys, values, opts...)
	if err != nil {
		return nil, err
	}
	if err := t.Open(); err != nil {
		return nil, err
	}
	return t, nil
}

// Open creates the node file with an empty root leaf if it does not exist,
// or reads the root of an existing one. Opening an open tree is a no-op.
func (t *Tree[K, V]) Open() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.open {
		return nil
	}

	if info, err := os.Stat(t.cfg.Dir); err == nil && !info.IsDir() {
		return dberr.Configf("bptree: %s is not a directory", t.cfg.Dir)
	}
	if err := os.MkdirAll(t.cfg.Dir, 0755); err != nil {
		return dberr.IO(err, "bptree: create %s", t.cfg.Dir)
	}

	ownsStore := false
	store := t.store
	if store == nil {
		s, err := meta.Open(t.cfg.MetaBackend, t.cfg.MetaPath())
		if err != nil {
			return err
		}
		store, ownsStore = s, true
	}

	pg, err := pager.Open(t.cfg.TreePath(), t.layout.NodeSize(), t.cfg.CachePages, t.cfg.SyncWrites)
	if err != nil {
		if ownsStore {
			store.Close()
		}
		return err
	}

	t.pg = pg
	root, leaves, err := t.bootstrap(store)
	if err != nil {
		pg.Close()
		if ownsStore {
			store.Close()
		}
		t.pg = nil
		return err
	}

	t.store, t.ownsStore = store, ownsStore
	t.root, t.leaves = root, leaves
	t.open = true
	t.log.Info("tree opened",
		zap.String("path", pg.Path()),
		zap.Int("degree", t.layout.Degree()),
		zap.Int("node_size", t.layout.NodeSize()),
		zap.Int64("nodes", pg.Records()),
	)
	return nil
}

// bootstrap checks the superblock against the layout and returns the root,
// creating it in an empty file. A file that already holds nodes is only
// accepted with a matching superblock.
func (t *Tree[K, V]) bootstrap(store meta.Store) (*btpage.Node[K, V], []uint64, error) {
	sb, err := store.Load(t.cfg.Name)
	switch {
	case errors.Is(err, meta.ErrNoSuperblock):
		sb = nil
	case err != nil:
		return nil, nil, err
	default:
		if err := t.checkSuperblock(sb); err != nil {
			return nil, nil, err
		}
	}
	var leaves []uint64
	if sb != nil {
		leaves = sb.Leaves
	}

	if t.pg.Size() == 0 {
		// The superblock goes first so a file that is never closed still
		// records its layout.
		if err := store.Save(t.superblock(nil)); err != nil {
			return nil, nil, err
		}
		if _, err := t.pg.Allocate(); err != nil {
			return nil, nil, err
		}
		root := t.layout.NewLeaf(btpage.RootOffset, btpage.RootOffset, btpage.NoOffset)
		if _, err := t.layout.Persist(t.pg, root); err != nil {
			return nil, nil, err
		}
		t.log.Debug("created empty root leaf")
		return root, nil, nil
	}

	if sb == nil {
		if _, ok := store.(meta.Nop); ok {
			return nil, nil, dberr.Configf("bptree: meta backend %q cannot verify the layout of existing file %s",
				config.MetaNone, t.pg.Path())
		}
		return nil, nil, dberr.Encodingf("bptree: %s holds nodes but has no superblock", t.pg.Path())
	}
	if t.pg.Size()%int64(t.pg.RecordSize()) != 0 {
		return nil, nil, dberr.Encodingf("bptree: file size %d is not a multiple of node size %d",
			t.pg.Size(), t.pg.RecordSize())
	}
	root, err := t.layout.Load(t.pg, btpage.RootOffset)
	if err != nil {
		return nil, nil, err
	}
	if !root.IsRoot {
		return nil, nil, dberr.Encodingf("bptree: node at offset 0 is not flagged as root")
	}
	return root, leaves, nil
}

func (t *Tree[K, V]) checkSuperblock(sb *meta.Superblock) error {
	l := t.layout
	mismatch := func(field string, got, want int) error {
		return dberr.Encodingf("bptree: superblock of %q declares %s %d, configured %d", sb.Name, field, got, want)
	}
	switch {
	case int(sb.Degree) != l.Degree():
		return mismatch("degree", int(sb.Degree), l.Degree())
	case int(sb.KeyWidth) != l.KeyWidth():
		return mismatch("key width", int(sb.KeyWidth), l.KeyWidth())
	case int(sb.ValueWidth) != l.ValueWidth():
		return mismatch("value width", int(sb.ValueWidth), l.ValueWidth())
	case int(sb.PageSize) != l.PageSize():
		return mismatch("page size", int(sb.PageSize), l.PageSize())
	case int(sb.NodeSize) != l.NodeSize():
		return mismatch("node size", int(sb.NodeSize), l.NodeSize())
	}
	return nil
}

// Close flushes the root, saves the superblock with the current leaf
// inventory and releases the file and the meta store. Closing a closed tree
// is a no-op.
func (t *Tree[K, V]) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open {
		return nil
	}

	var errs error
	if _, err := t.layout.Persist(t.pg, t.root); err != nil {
		errs = errors.CombineErrors(errs, err)
	}
	leaves, err := t.leafOffsets()
	if err != nil {
		errs = errors.CombineErrors(errs, err)
	} else if err := t.store.Save(t.superblock(leaves)); err != nil {
		errs = errors.CombineErrors(errs, err)
	}
	if err := t.pg.Close(); err != nil {
		errs = errors.CombineErrors(errs, err)
	}
	if t.ownsStore {
		if err := t.store.Close(); err != nil {
			errs = errors.CombineErrors(errs, err)
		}
		t.store = nil
	}

	t.open = false
	t.pg, t.root = nil, nil
	t.log.Info("tree closed", zap.Int("leaves", len(leaves)), zap.Error(errs))
	return errs
}

func (t *Tree[K, V]) superblock(leaves []uint64) *meta.Superblock {
	l := t.layout
	return &meta.Superblock{
		Version:    meta.Version,
		Name:       t.cfg.Name,
		Degree:     uint32(l.Degree()),
		PageSize:   uint32(l.PageSize()),
		KeyWidth:   uint32(l.KeyWidth()),
		ValueWidth: uint32(l.ValueWidth()),
		NodeSize:   uint32(l.NodeSize()),
		Leaves:     leaves,
	}
}

// Path returns the node file path.
func (t *Tree[K, V]) Path() string { return t.cfg.TreePath() }

// Degree returns the configured degree.
func (t *Tree[K, V]) Degree() int { return t.layout.Degree() }

// NodeSize returns the size of one node record in bytes.
func (t *Tree[K, V]) NodeSize() int { return t.layout.NodeSize() }

// ─── Node access ──────────────────────────────────────────────────────────────

// load returns the node at off. Offset 0 resolves to the in-memory root: the
// working clone while a mutation is running, the committed root otherwise.
func (t *Tree[K, V]) load(off btpage.Offset) (*btpage.Node[K, V], error) {
	if off == btpage.RootOffset {
		if t.work != nil {
			return t.work, nil
		}
		return t.root, nil
	}
	return t.layout.Load(t.pg, off)
}

// child loads the child at off, which must not be the root.
func (t *Tree[K, V]) child(parent *btpage.Node[K, V], off btpage.Offset) (*btpage.Node[K, V], error) {
	if off == btpage.RootOffset {
		return nil, dberr.Encodingf("bptree: node %d lists the root as a child", parent.Offset)
	}
	return t.layout.Load(t.pg, off)
}

func (t *Tree[K, V]) persist(n *btpage.Node[K, V]) error {
	_, err := t.layout.Persist(t.pg, n)
	return err
}

func (t *Tree[K, V]) allocate() (btpage.Offset, error) {
	off, err := t.pg.Allocate()
	return btpage.Offset(off), err
}

// mutate runs fn against a clone of the root and installs the clone once fn
// and the final root write succeeded. On error the committed root is left as
// it was.
func (t *Tree[K, V]) mutate(fn func() error) error {
	if !t.open {
		return dberr.ErrNotInitialized
	}
	t.work = t.root.Clone()
	defer func() { t.work = nil }()

	if err := fn(); err != nil {
		return err
	}
	if err := t.persist(t.work); err != nil {
		return err
	}
	t.root = t.work
	return nil
}
