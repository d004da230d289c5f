package main

import (
	"fmt"
	"math/rand"
	"os"

	"github.com/spf13/cobra"

	"github.com/yourusername/awari/internal/explore"
	"github.com/yourusername/awari/internal/stats"
	"github.com/yourusername/awari/internal/viz"
)

func newStatsCmd(a *app) *cobra.Command {
	var (
		samples   int
		seed      int64
		file      string
		useTable  bool
		reachable bool
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Move statistics of random boards and the value distribution of a table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.geometry()
			if err != nil {
				return err
			}

			ms, err := stats.Sample(g, rand.New(rand.NewSource(seed)), samples)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%d random boards of %d seeds: %.3f moves, %.3f captures, %.3f seeds per move\n",
				ms.Samples, g.Seeds, ms.MeanMoves, ms.MeanCaptures, ms.MeanGain)

			if !useTable && file == "" {
				return nil
			}
			t, err := a.openTable(file)
			if err != nil {
				return err
			}
			defer t.Close()

			var reach *explore.Set
			if reachable {
				reach = explore.Reachable(g, g.Start()).Seen
			}
			scores, err := stats.Scores(t, reach)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, "seeds  boards     mean   stddev  wins  draws  losses")
			for _, cs := range scores {
				var wins, losses float64
				for v := 1; v <= cs.Seeds; v++ {
					wins += cs.Count(v)
					losses += cs.Count(-v)
				}
				fmt.Fprintf(a.out, "%5d  %6d  %7.3f  %7.3f  %4.0f  %5.0f  %6.0f\n",
					cs.Seeds, cs.Boards, cs.Mean, cs.StdDev, wins, cs.Count(0), losses)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVarP(&samples, "samples", "n", 10000, "random boards to sample")
	f.Int64Var(&seed, "rand-seed", 1, "random seed")
	f.StringVarP(&file, "table", "t", "", "flat table file to summarise")
	f.BoolVar(&useTable, "scores", false, "summarise the table of the configured backend")
	f.BoolVar(&reachable, "reachable", false, "count only boards reachable from the start")
	return cmd
}

func newExploreCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "explore",
		Short: "Count the boards reachable from the starting position",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.geometry()
			if err != nil {
				return err
			}
			res := explore.Reachable(g, g.Start())
			fmt.Fprintln(a.out, "seeds  reachable      boards")
			for n, count := range res.PerClass {
				if g.Skipped(n) {
					continue
				}
				fmt.Fprintf(a.out, "%5d  %9d  %10d\n", n, count, g.ClassSize(n))
			}
			fmt.Fprintf(a.out, "%d of %d boards reachable from %v\n", res.Seen.Len(), g.NBoards, g.Start())
			return nil
		},
	}
}

func newDotCmd(a *app) *cobra.Command {
	var (
		maxSeeds int
		out      string
	)
	cmd := &cobra.Command{
		Use:   "dot",
		Short: "Write the move graph of the small classes in graphviz format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.geometry()
			if err != nil {
				return err
			}
			if out == "" || out == "-" {
				return viz.WriteDot(a.out, g, maxSeeds)
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := viz.WriteDot(f, g, maxSeeds); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	}
	cmd.Flags().IntVar(&maxSeeds, "max-seeds", 3, "largest seed class drawn")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}
