// Command awari builds and queries retrograde analysis tables of awari.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/yourusername/awari/internal/config"
	"github.com/yourusername/awari/pkg/awari"
	"github.com/yourusername/awari/pkg/storage"
)

const version = "0.3.0"

// app carries what every subcommand needs once the root has parsed its flags.
type app struct {
	cfgPath string
	cfg     config.Config
	log     zerolog.Logger
	out     io.Writer
	errOut  io.Writer

	// Flag overrides, applied only when set on the command line.
	pits       int
	startSeeds int
	backend    string
	path       string
	codec      string
	logLevel   string
	logFormat  string
	noColor    bool
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut}

	root := &cobra.Command{
		Use:           "awari",
		Short:         "Retrograde analysis of awari endgames",
		Long:          "awari computes, for every board of a small awari variant, the best score the player to move can force, and answers queries on the finished table.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	f := root.PersistentFlags()
	f.StringVarP(&a.cfgPath, "config", "c", "", "YAML configuration file")
	f.IntVar(&a.pits, "pits", 0, "pits per side")
	f.IntVar(&a.startSeeds, "seeds", 0, "seeds per pit at the start")
	f.StringVar(&a.backend, "backend", "", fmt.Sprintf("storage backend %v", storage.Kinds))
	f.StringVar(&a.path, "path", "", "table file or database directory")
	f.StringVar(&a.codec, "codec", "", "record codec (compact or wide)")
	f.StringVar(&a.logLevel, "log-level", "", "log level")
	f.StringVar(&a.logFormat, "log-format", "", "log format (console or json)")
	f.BoolVar(&a.noColor, "no-color", false, "disable colored console logs")

	root.AddCommand(
		newSolveCmd(a),
		newValueCmd(a),
		newVerifyCmd(a),
		newStatsCmd(a),
		newExploreCmd(a),
		newDotCmd(a),
		newServeCmd(a),
	)
	return root
}

// setup loads the configuration and applies the flags given explicitly.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("pits") {
		cfg.Game.Pits = a.pits
	}
	if flags.Changed("seeds") {
		cfg.Game.StartSeeds = a.startSeeds
	}
	if flags.Changed("backend") {
		cfg.Storage.Backend = a.backend
	}
	if flags.Changed("path") {
		cfg.Storage.Path = a.path
	}
	if flags.Changed("codec") {
		cfg.Storage.Codec = a.codec
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = a.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	a.cfg = cfg
	a.log = a.logger()
	return nil
}

// logger colors console output only when stderr is a terminal.
func (a *app) logger() zerolog.Logger {
	if a.noColor {
		a.cfg.Log.Color = false
	}
	if f, ok := a.errOut.(*os.File); !ok || !(isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		a.cfg.Log.Color = false
	}
	return a.cfg.Logger(a.errOut)
}

func (a *app) geometry() (*awari.Geometry, error) {
	return a.cfg.Geometry()
}

// run executes the command line and turns invariant violations into a
// logged failure instead of a crash.
func run(ctx context.Context, args []string, out, errOut io.Writer) (err error) {
	root := newRootCmd(out, errOut)
	root.SetArgs(args)

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		var ie *awari.InvariantError
		if e, ok := r.(error); ok && errors.As(e, &ie) {
			logViolation(errOut, ie)
			err = ie
			return
		}
		panic(r)
	}()

	err = root.ExecuteContext(ctx)
	// Worker goroutines hand violations back through guard.
	var ie *awari.InvariantError
	if errors.As(err, &ie) {
		logViolation(errOut, ie)
	}
	return err
}

func logViolation(w io.Writer, ie *awari.InvariantError) {
	l := zerolog.New(w)
	l.Error().
		Str("op", ie.Op).
		Stringer("board", ie.Board).
		Uint64("code", ie.Code).
		Str("detail", ie.Detail).
		Msg("invariant violated")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "awari:", err)
		os.Exit(1)
	}
}
