package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/yourusername/awari/internal/metrics"
	"github.com/yourusername/awari/pkg/api"
	"github.com/yourusername/awari/pkg/retro"
	"github.com/yourusername/awari/pkg/storage"
)

// summaryRecorder keeps the final summary of a run.
type summaryRecorder struct {
	retro.NopReporter
	summary retro.Summary
}

func (r *summaryRecorder) Finished(s retro.Summary) { r.summary = s }

func newSolveCmd(a *app) *cobra.Command {
	var (
		out      string
		maxSeeds int
		runID    string
		serve    bool
	)
	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Analyse every board of the configured geometry",
		Long: `solve runs the retrograde analysis class by class and leaves the table in
the configured storage backend. With --out the finished table is also
copied to a flat file that value, stats and serve can open.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := retro.Options{Logger: a.log, MaxSeeds: maxSeeds}
			if runID != "" {
				id, err := uuid.Parse(runID)
				if err != nil {
					return fmt.Errorf("invalid run id: %w", err)
				}
				opts.RunID = id
			}
			return a.solve(cmd.Context(), opts, out, serve)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&out, "out", "o", "", "copy the finished table to this flat file")
	f.IntVar(&maxSeeds, "max-seeds", 0, "stop after this seed class (default all)")
	f.StringVar(&runID, "run-id", "", "run identifier (default random)")
	f.BoolVar(&serve, "serve", false, "serve progress and the finished table over HTTP")
	return cmd
}

func (a *app) solve(ctx context.Context, opts retro.Options, out string, serve bool) error {
	g, err := a.geometry()
	if err != nil {
		return err
	}
	codec, err := retro.CodecByName(a.cfg.Storage.Codec)
	if err != nil {
		return err
	}

	backend, err := storage.Create(a.cfg.StorageOptions(a.log, metrics.Storage{}), g.NBoards, codec)
	if err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	defer backend.Close()
	counting := storage.NewCounting(backend, metrics.Storage{})

	rec := &summaryRecorder{}
	reporters := retro.Reporters{metrics.Progress{}, rec}
	if opts.Reporter != nil {
		reporters = append(reporters, opts.Reporter)
	}
	var srv *api.Server
	if serve {
		srv = api.NewServer(g, a.serverConfig(), version, a.log)
		reporters = append(reporters, srv.Hub())
	}
	opts.Reporter = reporters

	solver, err := retro.NewSolver(g, counting, opts)
	if err != nil {
		return err
	}

	grp, gctx := errgroup.WithContext(ctx)
	var table *retro.Table
	grp.Go(guard(func() error {
		var err error
		if table, err = solver.Run(gctx); err != nil {
			return err
		}
		// The server keeps answering queries until interrupted.
		if srv != nil {
			srv.SetTable(table)
		}
		return nil
	}))
	if srv != nil {
		grp.Go(func() error { return srv.Run(gctx) })
	}
	if err := grp.Wait(); err != nil {
		return err
	}

	a.log.Info().
		Str("run", solver.RunID().String()).
		Uint64("loads", counting.Loads()).
		Uint64("stores", counting.Stores()).
		Msg("table accesses")

	if out != "" {
		if err := copyTable(out, counting, codec); err != nil {
			return err
		}
		a.log.Info().Str("path", out).Msg("table written")
	}

	s := rec.summary
	fmt.Fprintf(a.out, "solved %v: %d boards in %d classes, %d forced draws", g, s.Boards, s.Classes, s.Forced)
	if s.ParityBroken {
		fmt.Fprint(a.out, ", parity broken")
	}
	fmt.Fprintf(a.out, " (%s)\n", s.Duration.Round(time.Millisecond))

	if table.Finished(g.Seeds) {
		ev, err := table.Evaluate(g.Start())
		if err != nil {
			return fmt.Errorf("evaluate start: %w", err)
		}
		fmt.Fprintf(a.out, "start %v: value %+d, best pits %v\n", g.Start(), ev.Value, ev.BestMoves())
	}
	return nil
}

// copyTable writes src to a new flat file at path, block by block.
func copyTable(path string, src storage.Backend[retro.State], codec storage.Codec[retro.State]) error {
	dst, err := storage.CreateHybrid(path, src.Len(), codec, storage.DefaultCacheConfig())
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := storage.Copy[retro.State](dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("copy table: %w", err)
	}
	return dst.Close()
}
