// Package viz renders the move graph in graphviz dot format.
package viz

import (
	"bufio"
	"fmt"
	"io"

	"github.com/yourusername/awari/pkg/awari"
)

// palette is the graphviz color scheme nodes are colored from, by class.
const palette = "spectral11"

// WriteDot writes every analysed board of fewer than maxSeeds seeds as a
// node, colored by seed class, and every move as an edge. Capturing moves
// are red and labelled with the seeds taken.
func WriteDot(w io.Writer, g *awari.Geometry, maxSeeds int) error {
	maxSeeds = min(maxSeeds, g.Seeds+1)
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "digraph awari {")
	fmt.Fprintln(bw, `rankdir="LR";`)

	for n := maxSeeds - 1; n >= 0; n-- {
		for b := range g.IterConfig(n) {
			fmt.Fprintf(bw, "%d [style=filled,label=\"%v\",color=\"/%s/%d\"];\n",
				g.Encode(b), b, palette, n%11+1)
		}
	}
	for n := 0; n < maxSeeds; n++ {
		for b := range g.IterConfig(n) {
			from := g.Encode(b)
			for _, m := range b.Successors() {
				if m.Reward > 0 {
					fmt.Fprintf(bw, "%d -> %d [color=red,label=%d];\n", from, g.Encode(m.Board), m.Reward)
				} else {
					fmt.Fprintf(bw, "%d -> %d;\n", from, g.Encode(m.Board))
				}
			}
		}
	}
	fmt.Fprintln(bw, "}")
	return bw.Flush()
}
