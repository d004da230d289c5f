package awari

import (
	"fmt"
	"strconv"
	"strings"
)

// Board is the seed count of every pit, seen from the player to move.
// Pits 0..Half()-1 are the mover's own side, Half()..Len()-1 the opponent's.
// Sowing runs in increasing pit order and wraps around.
//
// Board is a plain comparable value; copies are independent.
type Board struct {
	pits  [MaxFPits]uint8
	width uint8
}

// Empty returns the board of this geometry with no seeds.
func (g *Geometry) Empty() Board {
	return Board{width: uint8(g.FPits)}
}

// Start returns the initial position: StartSeeds seeds in every pit.
func (g *Geometry) Start() Board {
	b := g.Empty()
	for i := 0; i < g.FPits; i++ {
		b.pits[i] = uint8(g.StartSeeds)
	}
	return b
}

// BoardOf builds a board from explicit pit counts, own side first.
func (g *Geometry) BoardOf(pits ...uint8) (Board, error) {
	if len(pits) != g.FPits {
		return Board{}, fmt.Errorf("board needs %d pits, got %d", g.FPits, len(pits))
	}
	b := g.Empty()
	total := 0
	for i, p := range pits {
		b.pits[i] = p
		total += int(p)
	}
	if total > g.Seeds {
		return Board{}, fmt.Errorf("board holds %d seeds, geometry allows %d", total, g.Seeds)
	}
	return b, nil
}

// ParseBoard parses the String form "a,b,c,d|e,f,g,h". The bar is optional.
func (g *Geometry) ParseBoard(s string) (Board, error) {
	s = strings.NewReplacer("|", ",", " ", "").Replace(strings.TrimSpace(s))
	fields := strings.Split(s, ",")
	pits := make([]uint8, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseUint(f, 10, 8)
		if err != nil {
			return Board{}, fmt.Errorf("invalid pit count %q: %w", f, err)
		}
		pits = append(pits, uint8(v))
	}
	return g.BoardOf(pits...)
}

// Len returns the number of pits on the whole board.
func (b Board) Len() int { return int(b.width) }

// Half returns the number of pits per side.
func (b Board) Half() int { return int(b.width) / 2 }

// Pit returns the seed count of pit i.
func (b Board) Pit(i int) uint8 { return b.pits[i] }

// Pits returns a copy of the pit counts.
func (b Board) Pits() []uint8 {
	out := make([]uint8, b.width)
	copy(out, b.pits[:b.width])
	return out
}

// Total returns the seed class of the board.
func (b Board) Total() int {
	n := 0
	for i := 0; i < int(b.width); i++ {
		n += int(b.pits[i])
	}
	return n
}

// OwnTotal returns the seeds on the mover's side.
func (b Board) OwnTotal() int {
	n := 0
	for i := 0; i < b.Half(); i++ {
		n += int(b.pits[i])
	}
	return n
}

// Rotate swaps the two sides, handing the move to the other player.
func (b *Board) Rotate() {
	h := b.Half()
	for i := 0; i < h; i++ {
		b.pits[i], b.pits[i+h] = b.pits[i+h], b.pits[i]
	}
}

// Reachable reports whether the board can arise after a move.
// A move always leaves its source pit empty, and after the turn change that
// pit is on the opponent's side, so boards whose opponent pits are all
// occupied only exist as a starting position.
func (b Board) Reachable() bool {
	for i := b.Half(); i < b.Len(); i++ {
		if b.pits[i] == 0 {
			return true
		}
	}
	return false
}

// String renders the board as "own|opponent", e.g. "0,2,1,4|3,0,0,1".
func (b Board) String() string {
	var sb strings.Builder
	for i := 0; i < b.Len(); i++ {
		switch {
		case i == b.Half():
			sb.WriteByte('|')
		case i > 0:
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(int(b.pits[i])))
	}
	return sb.String()
}
