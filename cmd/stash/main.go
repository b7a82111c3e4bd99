// stash is a command-line front end for stash stores.
//
// # Installation
//
//	go install github.com/acksell/stash/cmd/stash@latest
//
// # Commands
//
//	stash list|get|add|update|delete|reset   Manage the snippet collection
//	stash kv get|set|rm|keys                 Work with raw keys
//	stash fetch <url>                        Fetch JSON with a local fallback cache
//	stash recent                             Show recently used snippets or URLs
//	stash serve                              Start the inspection API
//	stash version                            Print the version
//
// Configuration is read from stash.yaml (searched from the working directory
// upwards), STASH_* environment variables and flags, in that order.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/acksell/stash/kv"
)

const version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if name, err := execute(ctx, os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "stash %s: %v\n", name, err)
		stop()
		os.Exit(1)
	}
}

// execute runs one command line and returns the name of the command that
// ran. The store is closed before it returns, also on failure.
func execute(ctx context.Context, out io.Writer, args []string) (name string, err error) {
	root, a := newRootCmd(out)
	defer func() {
		if cerr := a.close(); err == nil {
			err = cerr
		}
	}()

	root.SetArgs(args)
	cmd, err := root.ExecuteContextC(ctx)
	if cmd != nil {
		name = cmd.Name()
	}
	return name, err
}

// app is the state shared by all commands of one invocation.
type app struct {
	out io.Writer
	cfg Config
	log *zap.Logger

	store      kv.Store
	closeStore func() error

	// flag values
	backend   string
	dataDir   string
	namespace string
	verbose   bool
}

func newRootCmd(out io.Writer) (*cobra.Command, *app) {
	a := &app{out: out}

	root := &cobra.Command{
		Use:   "stash",
		Short: "Local-first entity store and fetch cache",
		Long: `stash keeps small JSON collections and cached API responses in a local
key-value store (BadgerDB, SQLite) or in DynamoDB.

It ships with a snippet collection to try things out:

  stash add greeting "Hello there" --tag chat
  stash list`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	root.SetOut(out)

	pf := root.PersistentFlags()
	pf.StringVar(&a.backend, "backend", "", "storage backend: badger, sqlite, dynamodb or memory")
	pf.StringVar(&a.dataDir, "data-dir", "", "directory for badger and sqlite data")
	pf.StringVar(&a.namespace, "namespace", "", "key prefix isolating this tool's data")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		a.listCmd(),
		a.getCmd(),
		a.addCmd(),
		a.updateCmd(),
		a.deleteCmd(),
		a.resetCmd(),
		a.kvCmd(),
		a.fetchCmd(),
		a.recentCmd(),
		a.serveCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(a.out, "stash version %s\n", version)
			},
		},
	)
	return root, a
}

func (a *app) setup(cmd *cobra.Command) error {
	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	cfg, path, err := LoadConfig(wd)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.Backend = a.backend
	}
	if flags.Changed("data-dir") {
		cfg.DataDir = a.dataDir
	}
	if flags.Changed("namespace") {
		cfg.Namespace = a.namespace
	}
	a.cfg = cfg

	logCfg := zap.NewProductionConfig()
	logCfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if a.verbose {
		logCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	a.log, err = logCfg.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if path != "" {
		a.log.Debug("loaded config", zap.String("path", path))
	}
	return nil
}

// openStore opens the configured store once per invocation.
func (a *app) openStore(ctx context.Context) (kv.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	store, closeFn, err := openStore(ctx, a.cfg, a.log)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", a.cfg.Backend, err)
	}
	a.store, a.closeStore = store, closeFn
	return store, nil
}

func (a *app) close() error {
	var err error
	if a.closeStore != nil {
		err = a.closeStore()
		a.store, a.closeStore = nil, nil
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
	return err
}
