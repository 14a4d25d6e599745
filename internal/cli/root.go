// Package cli implements the bibl command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/samber/do/v2"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/bibliothecula/internal/paths"
	"github.com/mesh-intelligence/bibliothecula/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	output    string
	logLevel  string
}

// app is the state of one invocation. Subcommands reach the library through
// the injector, which is built after configuration has been loaded.
type app struct {
	flags     rootFlags
	configDir string
	settings  *viper.Viper
	log       *logrus.Logger
	stderr    io.Writer
	injector  *do.RootScope
}

// NewRootCmd creates the top-level "bibl" command with global flags and all
// subcommands registered.
func NewRootCmd() *cobra.Command {
	root, _ := newRootCmd(os.Stderr)
	return root
}

func newRootCmd(stderr io.Writer) (*cobra.Command, *app) {
	a := &app{stderr: stderr}
	root := &cobra.Command{
		Use:   "bibl",
		Short: "Manage a bibliothecula document library",
		Long: `bibl manages a document library kept in a single SQLite file.

Documents carry reusable text and binary metadata attached under roles such
as tag, author or storage. The library keeps a full-text index, an undo log
and a backlink index of identifiers embedded in stored files.`,
		Version: Version,
		// Do not print usage on errors returned by subcommands.
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.shutdown()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: $XDG_CONFIG_HOME/bibliothecula)")
	pf.StringVar(&a.flags.dataDir, "data-dir", "", "data directory (default: $XDG_DATA_HOME/bibliothecula)")
	pf.StringVarP(&a.flags.output, "output", "o", formatText, "output format: text, json or yaml")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "log level (overrides log_level in config.yaml)")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(a),
		newStatsCmd(a),
		newDocCmd(a),
		newTagCmd(a),
		newMetaCmd(a),
		newFileCmd(a),
		newDetachCmd(a),
		newSearchCmd(a),
		newIndexCmd(a),
		newScanCmd(a),
		newBackrefsCmd(a),
		newUndoCmd(a),
		newSchemaCmd(a),
		newMaintainCmd(a),
	)
	return root, a
}

// Execute runs the root command with the process arguments and exits with
// the appropriate code.
func Execute() {
	os.Exit(Run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// Run executes one command line and returns its exit code. Errors are
// printed to stderr.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root, a := newRootCmd(stderr)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	// PersistentPostRunE is skipped when a command fails.
	if serr := a.shutdown(); err == nil {
		err = serr
	}
	if err != nil {
		fmt.Fprintln(stderr, "bibl:", err)
		return exitCode(err)
	}
	return exitSuccess
}

// setup loads configuration, configures logging and builds the container.
func (a *app) setup() error {
	if err := validFormat(a.flags.output); err != nil {
		return err
	}

	configDir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return err
	}
	a.configDir = configDir

	a.settings, err = loadSettings(configDir)
	if err != nil {
		return err
	}

	level := a.settings.GetString(cfgKeyLogLevel)
	if a.flags.logLevel != "" {
		level = a.flags.logLevel
	}
	a.log, err = newLogger(a.stderr, level, a.settings.GetString(cfgKeyLogFormat))
	if err != nil {
		return err
	}

	cfg, err := a.libraryConfig()
	if err != nil {
		return err
	}
	a.injector = newContainer(a.log, cfg)
	return nil
}

// shutdown releases everything the container built. It is safe to call
// more than once.
func (a *app) shutdown() error {
	if a.injector == nil {
		return nil
	}
	injector := a.injector
	a.injector = nil

	err := do.MustInvoke[*lifecycle](injector).shutdown()
	// Every service is already closed; the scope only drops its references.
	_ = injector.Shutdown()
	if err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

// exitCode maps an error onto an exit code. Failures of the environment
// rather than of the request are system errors.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitSuccess
	case errors.Is(err, types.ErrLockContention),
		errors.Is(err, types.ErrDependencyCycle),
		errors.Is(err, types.ErrLibraryDetached),
		errors.Is(err, types.ErrAlreadyAttached),
		errors.Is(err, context.Canceled):
		return exitSysError
	}
	return exitUserError
}
