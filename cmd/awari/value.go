package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yourusername/awari/pkg/api"
	"github.com/yourusername/awari/pkg/awari"
	"github.com/yourusername/awari/pkg/retro"
)

func newValueCmd(a *app) *cobra.Command {
	var (
		file   string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "value <board|code>...",
		Short: "Print the value and best moves of boards",
		Long: `value looks boards up in a finished table. A board is given as its pit
counts, own side first ("2,0,1|0,3,0"); a bare number is a board code.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.openTable(file)
			if err != nil {
				return err
			}
			defer t.Close()

			for _, arg := range args {
				b, err := parseBoardArg(t.Geometry(), arg)
				if err != nil {
					return err
				}
				ev, err := t.Evaluate(b)
				if err != nil {
					return err
				}
				if asJSON {
					if err := json.NewEncoder(a.out).Encode(api.EvaluationToResponse(ev)); err != nil {
						return err
					}
					continue
				}
				printEvaluation(a, ev)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "table", "t", "", "flat table file (default: the configured backend)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func parseBoardArg(g *awari.Geometry, arg string) (awari.Board, error) {
	if !strings.ContainsAny(arg, ",|") {
		code, err := strconv.ParseUint(arg, 10, 64)
		if err != nil {
			return awari.Board{}, fmt.Errorf("%q is neither a board nor a code", arg)
		}
		return g.Decode(code)
	}
	return g.ParseBoard(arg)
}

func printEvaluation(a *app, ev retro.Evaluation) {
	fmt.Fprintf(a.out, "%v", ev.Board)
	if ev.InTable {
		fmt.Fprintf(a.out, "  code %d", ev.Code)
	}
	fmt.Fprintf(a.out, "  value %+d\n", ev.Value)
	if len(ev.Moves) == 0 {
		fmt.Fprintln(a.out, "  no moves")
	}
	for _, m := range ev.Moves {
		best := ""
		if m.Best {
			best = "  best"
		}
		fmt.Fprintf(a.out, "  pit %d  takes %d  -> %v  %+d%s\n", m.Pit, m.Reward, m.Successor, m.Value, best)
	}
}
