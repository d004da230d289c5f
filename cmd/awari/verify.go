package main

import (
	"context"
	"fmt"
	"runtime"
	"slices"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/yourusername/awari/pkg/awari"
	"github.com/yourusername/awari/pkg/retro"
)

// classCheck is the outcome of verifying one seed class.
type classCheck struct {
	seeds     int
	codes     uint64
	analysed  uint64
	evaluated uint64
}

func newVerifyCmd(a *app) *cobra.Command {
	var (
		file     string
		useTable bool
		workers  int
	)
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check the encoding and move generator, and optionally a table",
		Long: `verify checks, for every seed class in parallel, that codes and boards
are in bijection, that boards enumerate in code order, and that the
predecessor generator inverts capture-free moves. With --check-table every
stored value is also compared with a one move lookahead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.geometry()
			if err != nil {
				return err
			}
			var t *retro.Table
			if useTable || file != "" {
				if t, err = a.openTable(file); err != nil {
					return err
				}
				defer t.Close()
			}
			if workers <= 0 {
				workers = runtime.GOMAXPROCS(0)
			}

			checks, err := verify(cmd.Context(), g, t, workers)
			if err != nil {
				return err
			}
			for _, c := range checks {
				fmt.Fprintf(a.out, "class %2d: %d codes, %d analysed boards", c.seeds, c.codes, c.analysed)
				if t != nil {
					fmt.Fprintf(a.out, ", %d values consistent", c.evaluated)
				}
				fmt.Fprintln(a.out)
			}
			fmt.Fprintf(a.out, "%v verified\n", g)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&file, "table", "t", "", "flat table file to check")
	f.BoolVar(&useTable, "check-table", false, "check the table of the configured backend")
	f.IntVarP(&workers, "workers", "j", 0, "classes checked at once (default GOMAXPROCS)")
	return cmd
}

// verify checks every class and returns the results in class order. A
// broken invariant in any class fails the whole run.
func verify(ctx context.Context, g *awari.Geometry, t *retro.Table, workers int) ([]classCheck, error) {
	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(workers)

	results := make([]*classCheck, g.Seeds+1)
	for n := 0; n <= g.Seeds; n++ {
		if g.Skipped(n) {
			continue
		}
		grp.Go(guard(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c, err := checkClass(g, t, n)
			if err != nil {
				return fmt.Errorf("class %d: %w", n, err)
			}
			results[n] = &c
			return nil
		}))
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}

	var out []classCheck
	for _, c := range results {
		if c != nil {
			out = append(out, *c)
		}
	}
	return out, nil
}

// guard turns an invariant violation raised by fn into its error, so one
// bad class does not take the process down from a worker goroutine.
func guard(fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				ie, ok := r.(*awari.InvariantError)
				if !ok {
					panic(r)
				}
				err = ie
			}
		}()
		return fn()
	}
}

func checkClass(g *awari.Geometry, t *retro.Table, n int) (classCheck, error) {
	c := classCheck{seeds: n}
	lo := g.EncMin(n)
	hi := lo + g.ClassSize(n)

	for code := lo; code < hi; code++ {
		b, err := g.Decode(code)
		if err != nil {
			return c, err
		}
		if b.Total() != n {
			return c, fmt.Errorf("code %d decodes to %v with %d seeds", code, b, b.Total())
		}
		if back := g.Encode(b); back != code {
			return c, fmt.Errorf("code %d decodes to %v which encodes to %d", code, b, back)
		}
		c.codes++
	}

	next := lo
	for b := range g.IterAll(n) {
		if code := g.Encode(b); code != next {
			return c, fmt.Errorf("enumeration yields %v with code %d, expected %d", b, code, next)
		}
		next++
	}
	if next != hi {
		return c, fmt.Errorf("enumeration ends at code %d, expected %d", next, hi)
	}

	for u := range g.IterConfig(n) {
		c.analysed++
		if err := checkDuality(u); err != nil {
			return c, err
		}
		if t != nil && t.Finished(n) {
			if _, err := t.Evaluate(u); err != nil {
				return c, err
			}
			c.evaluated++
		}
	}
	return c, nil
}

// checkDuality checks that u reaches each of its quiet successors v exactly
// when u is among the predecessors of v.
func checkDuality(u awari.Board) error {
	for _, m := range u.Successors() {
		if m.Reward != 0 {
			continue
		}
		if !slices.Contains(m.Board.Predecessors(), u) {
			return fmt.Errorf("%v is missing from the predecessors of its successor %v", u, m.Board)
		}
	}
	for _, p := range u.Predecessors() {
		if !p.Reachable() {
			return fmt.Errorf("predecessor %v of %v lies outside the analysis", p, u)
		}
		found := false
		for _, m := range p.Successors() {
			if m.Reward == 0 && m.Board == u {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("predecessor %v has no quiet move onto %v", p, u)
		}
	}
	return nil
}
