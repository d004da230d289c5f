package awari

// Successor is the outcome of one legal move.
type Successor struct {
	Pit    int   // Own-side pit that was played
	Board  Board // Resulting board, seen from the next mover
	Reward int   // Seeds captured by the move
}

// landing returns the offset from the source pit of the last sown seed,
// in 1..Len()-1. The source pit itself is skipped on every lap.
func (b Board) landing(seeds int) int {
	return (seeds-1)%(b.Len()-1) + 1
}

// ValidSow reports whether own-side pit i may be played: it must hold seeds
// and the move must not capture every seed on the opponent's side.
func (b Board) ValidSow(i int) bool {
	h, f := b.Half(), b.Len()
	if i < 0 || i >= h || b.pits[i] == 0 {
		return false
	}

	s := int(b.pits[i])
	laps, extra := s/(f-1), s%(f-1)
	last := (i + b.landing(s)) % f

	// Landing on the own side, this lap or after wrapping past i, captures nothing.
	if last < h {
		return true
	}

	// From the far end inward: pits past the landing pit must end empty and
	// the rest must end on 2 or 3 for the capture to take the whole row.
	for j := f - 1; j >= h; j-- {
		v := int(b.pits[j]) + laps
		if (j-i+f)%f <= extra {
			v++
		}
		if j > last {
			if v != 0 {
				return true
			}
		} else if v != 2 && v != 3 {
			return true
		}
	}
	return false
}

// Sow empties pit i and drops its seeds one by one into the following pits,
// skipping pit i on every lap. It returns the landing pit and the lap count.
func (b *Board) Sow(i int) (last, laps int) {
	f := b.Len()
	if i < 0 || i >= b.Half() || b.pits[i] == 0 {
		Violation("sow", *b, 0, "pit %d cannot be sown", i)
	}

	s := int(b.pits[i])
	b.pits[i] = 0
	laps, extra := s/(f-1), s%(f-1)
	for d := 1; d < f; d++ {
		add := laps
		if d <= extra {
			add++
		}
		b.pits[(i+d)%f] += uint8(add)
	}
	return (i + b.landing(s)) % f, laps
}

// Unsow is the exact inverse of sowing s seeds from the empty pit i.
func (b *Board) Unsow(i, s int) {
	f := b.Len()
	if i < 0 || i >= b.Half() || b.pits[i] != 0 || s <= 0 {
		Violation("unsow", *b, 0, "cannot unsow %d seeds into pit %d", s, i)
	}

	laps, extra := s/(f-1), s%(f-1)
	for d := 1; d < f; d++ {
		sub := laps
		if d <= extra {
			sub++
		}
		j := (i + d) % f
		if int(b.pits[j]) < sub {
			Violation("unsow", *b, 0, "pit %d holds %d seeds, %d to remove", j, b.pits[j], sub)
		}
		b.pits[j] -= uint8(sub)
	}
	b.pits[i] = uint8(s)
}

// Collect captures backward from the landing pit while it is on the
// opponent's side and holds 2 or 3 seeds. It returns the seeds taken.
func (b *Board) Collect(last int) int {
	taken := 0
	for j := last; j >= b.Half(); j-- {
		v := b.pits[j]
		if v != 2 && v != 3 {
			break
		}
		taken += int(v)
		b.pits[j] = 0
	}
	return taken
}

// Play sows pit i, collects the captures and hands the turn over.
// It returns the number of seeds captured.
func (b *Board) Play(i int) int {
	last, _ := b.Sow(i)
	taken := b.Collect(last)
	b.Rotate()
	return taken
}

// Successors returns the outcome of every valid move, in pit order.
func (b Board) Successors() []Successor {
	out := make([]Successor, 0, b.Half())
	for i := 0; i < b.Half(); i++ {
		if !b.ValidSow(i) {
			continue
		}
		next := b
		reward := next.Play(i)
		out = append(out, Successor{Pit: i, Board: next, Reward: reward})
	}
	return out
}

// Predecessors returns every reachable board with a capture-free move onto b.
// Each board is reported once: a move empties its source pit, so distinct
// source pits or seed counts yield distinct boards.
func (b Board) Predecessors() []Board {
	prev := b
	prev.Rotate()
	h, f := prev.Len()/2, prev.Len()

	var out []Board
	for i := 0; i < h; i++ {
		if prev.pits[i] != 0 {
			continue
		}

		// Every other pit received at least one seed per lap.
		low := int(^uint8(0))
		for d := 1; d < f; d++ {
			low = min(low, int(prev.pits[(i+d)%f]))
		}

		for laps := 0; laps <= low; laps++ {
			for extra := 0; extra < f-1; extra++ {
				// Pits 1..extra after i received one more seed.
				if extra > 0 && int(prev.pits[(i+extra)%f]) < laps+1 {
					break
				}
				s := laps*(f-1) + extra
				if s == 0 {
					continue
				}

				// The move would have captured.
				last := (i + prev.landing(s)) % f
				if v := prev.pits[last]; last >= h && (v == 2 || v == 3) {
					continue
				}

				u := prev
				u.Unsow(i, s)
				if u.Reachable() {
					out = append(out, u)
				}
			}
		}
	}
	return out
}
