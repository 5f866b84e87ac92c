package main

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/btree-query-bench/pagetree/dbms/codec"
	"github.com/btree-query-bench/pagetree/dbms/config"
	"github.com/btree-query-bench/pagetree/dbms/dberr"
	"github.com/btree-query-bench/pagetree/dbms/index/bptree"
	"github.com/cockroachdb/errors"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	okColor   = color.New(color.FgGreen)
	keyColor  = color.New(color.FgCyan)
	warnColor = color.New(color.FgYellow)
)

// app carries the state shared by all subcommands of one invocation.
type app struct {
	configPath string
	overrides  config.Config

	cfg  config.Config
	log  *zap.Logger
	tree *bptree.Tree[int64, string]
}

// execute runs one invocation and always closes the tree it opened, also when
// the subcommand fails.
func execute(args []string, stdout io.Writer) error {
	a := &app{}
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	err := root.Execute()
	return errors.CombineErrors(err, a.close())
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "pagetree",
		Short:         "Inspect and modify a disk-backed B+Tree",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			return a.open(cmd)
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true

	def := config.Default()
	f := root.PersistentFlags()
	f.StringVarP(&a.configPath, "config", "c", "", "YAML config file")
	f.StringVar(&a.overrides.Dir, "dir", def.Dir, "Base directory of the tree")
	f.StringVar(&a.overrides.Name, "name", def.Name, "Tree name")
	f.IntVar(&a.overrides.Degree, "degree", def.Degree, "Odd node degree, fixed at creation")
	f.IntVar(&a.overrides.ValueSize, "value-size", def.ValueSize, "Fixed value width in bytes")
	f.StringVar(&a.overrides.MetaBackend, "meta", def.MetaBackend, "Superblock store: pebble, leveldb or none")
	f.BoolVar(&a.overrides.SyncWrites, "sync", def.SyncWrites, "fsync after every node write")
	f.StringVar(&a.overrides.Log.Level, "log-level", "warn", "Log level")

	root.AddCommand(
		a.writeCmd("insert", "Insert a new key", func(k int64, v string) error { return a.tree.Insert(k, v) }),
		a.writeCmd("put", "Insert or overwrite a key", func(k int64, v string) error { return a.tree.Put(k, v) }),
		a.writeCmd("update", "Overwrite an existing key", func(k int64, v string) error { return a.tree.Update(k, v) }),
		a.getCmd(),
		a.deleteCmd(),
		a.scanCmd(),
		a.statsCmd(),
		a.checkCmd(),
		a.dotCmd(),
	)
	return root
}

// open resolves the configuration (defaults, then file, then explicit
// flags) and opens the tree.
func (a *app) open(cmd *cobra.Command) error {
	cfg := config.Default()
	if a.configPath != "" {
		loaded, err := config.Load(a.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	} else {
		cfg.Log.Level = a.overrides.Log.Level
	}

	flags := cmd.Flags()
	if flags.Changed("dir") {
		cfg.Dir = a.overrides.Dir
	}
	if flags.Changed("name") {
		cfg.Name = a.overrides.Name
	}
	if flags.Changed("degree") {
		cfg.Degree = a.overrides.Degree
	}
	if flags.Changed("value-size") {
		cfg.ValueSize = a.overrides.ValueSize
	}
	if flags.Changed("meta") {
		cfg.MetaBackend = a.overrides.MetaBackend
	}
	if flags.Changed("sync") {
		cfg.SyncWrites = a.overrides.SyncWrites
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = a.overrides.Log.Level
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := cfg.Logger()
	if err != nil {
		return err
	}
	tree, err := bptree.Open[int64, string](cfg, codec.Int64{}, codec.FixedString{N: cfg.ValueSize}, bptree.WithLogger(log))
	if err != nil {
		log.Sync()
		return err
	}
	a.cfg, a.log, a.tree = cfg, log, tree
	return nil
}

func (a *app) close() error {
	if a.tree == nil {
		return nil
	}
	err := a.tree.Close()
	a.log.Sync()
	a.tree = nil
	return err
}

func parseKey(s string) (int64, error) {
	k, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "key %q", s)
	}
	return k, nil
}

func (a *app) writeCmd(use, short string, op func(k int64, v string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " KEY VALUE",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := parseKey(args[0])
			if err != nil {
				return err
			}
			if err := op(k, args[1]); err != nil {
				return err
			}
			okColor.Fprintf(cmd.OutOrStdout(), "%s %d\n", use, k)
			return nil
		},
	}
}

func (a *app) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get KEY",
		Short: "Print the value of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := parseKey(args[0])
			if err != nil {
				return err
			}
			v, err := a.tree.Get(k)
			if errors.Is(err, dberr.ErrKeyNotFound) {
				warnColor.Fprintf(cmd.OutOrStdout(), "key %d not found\n", k)
				return err
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	}
}

func (a *app) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete KEY",
		Short: "Remove a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := parseKey(args[0])
			if err != nil {
				return err
			}
			if err := a.tree.Delete(k); err != nil {
				return err
			}
			okColor.Fprintf(cmd.OutOrStdout(), "delete %d\n", k)
			return nil
		},
	}
}

func (a *app) scanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan [START END]",
		Short: "Print keys in ascending order, optionally within [START, END]",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return errors.Newf("scan takes no arguments or START END, got %d", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			start, end := int64(math.MinInt64), int64(math.MaxInt64)
			if len(args) == 2 {
				var err error
				if start, err = parseKey(args[0]); err != nil {
					return err
				}
				if end, err = parseKey(args[1]); err != nil {
					return err
				}
			}
			it, err := a.tree.Range(start, end)
			if err != nil {
				return err
			}
			defer it.Close()
			return printPairs(cmd.OutOrStdout(), it)
		},
	}
}

func printPairs(w io.Writer, it *bptree.Iterator[int64, string]) error {
	for it.Next() {
		keyColor.Fprintf(w, "%d", it.Key())
		fmt.Fprintf(w, "\t%s\n", it.Value())
	}
	return it.Error()
}

func (a *app) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print the shape of the tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.tree.Stats()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			row := func(name string, v any) {
				keyColor.Fprintf(out, "%-16s", name)
				fmt.Fprintf(out, "%v\n", v)
			}
			row("path", a.tree.Path())
			row("degree", s.Degree)
			row("node size", s.NodeSize)
			row("height", s.Height)
			row("keys", s.Keys)
			row("leaves", s.Leaves)
			row("internal nodes", s.InternalNodes)
			row("file nodes", s.FileNodes)
			row("cached nodes", s.CachedNodes)
			row("file size", s.FileSize)
			row("saved leaves", len(s.LeafInventory))
			return nil
		},
	}
}

func (a *app) checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the tree invariants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.tree.Check(); err != nil {
				return err
			}
			okColor.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}

func (a *app) dotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dot [FILE]",
		Short: "Export the tree as a Graphviz digraph",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return a.tree.WriteDOT(cmd.OutOrStdout())
			}
			f, err := os.Create(args[0])
			if err != nil {
				return dberr.IO(err, "create %s", args[0])
			}
			if err := a.tree.WriteDOT(f); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return dberr.IO(err, "close %s", args[0])
			}
			okColor.Fprintf(cmd.OutOrStdout(), "wrote %s\n", args[0])
			return nil
		},
	}
}
