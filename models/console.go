package models

import (
	"fmt"
	"io"

	"github.com/logrusorgru/aurora"
	"gonum.org/v1/gonum/floats"
)

// Console cell glyphs.
const (
	AGENT  = 'A'
	WALL   = 'W'
	BOX    = 'B'
	GOAL   = 'G'
	FINAL  = 'F'
	EMPTY  = '-'
	BROKEN = 'X'
)

// Glyph returns the console glyph for cell c in the passed frame. The agent is drawn over
// everything else, then walls, the box, the goal, and the box's initial cell.
func (snap *Snapshot) Glyph(c Coordinate) rune {
	switch {
	case snap.Agent == c:
		return AGENT
	case snap.Layout.IsWall(c):
		return WALL
	case snap.Box.At(c):
		return BOX
	case snap.Layout.Goal == c:
		return GOAL
	case snap.FinalGoal == c && snap.Box.IsBroken():
		return BROKEN
	case snap.FinalGoal == c:
		return FINAL
	}
	return EMPTY
}

// FprintGrid draws the frame row by row, top row first.
func FprintGrid(w io.Writer, snap *Snapshot, colored bool) {
	au := aurora.NewAurora(colored)
	size := snap.Layout.Size
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			glyph := snap.Glyph(Coordinate{x, y})
			var cell aurora.Value
			switch glyph {
			case AGENT:
				cell = au.Bold(au.Blue(string(glyph)))
			case WALL:
				cell = au.Gray(12, string(glyph))
			case BOX:
				cell = au.Yellow(string(glyph))
			case GOAL:
				cell = au.Green(string(glyph))
			case BROKEN:
				cell = au.Red(string(glyph))
			default:
				cell = au.White(string(glyph))
			}
			fmt.Fprintf(w, "%v ", cell)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "phase=%v box=%v moves=%d breaks=%d\n",
		snap.Phase, snap.Box, snap.BoxMoveCount, snap.BoxBreakCount)
}

// FprintPolicy writes the greedy action of each open cell as an arrow. Walls print as '-'.
// Values are indexed [x][y][action].
func FprintPolicy(w io.Writer, layout *Layout, values [][][NUM_ACTIONS]float64) {
	for y := 0; y < layout.Size; y++ {
		fmt.Fprint(w, " ")
		for x := 0; x < layout.Size; x++ {
			if layout.IsWall(Coordinate{x, y}) {
				fmt.Fprint(w, "- ")
				continue
			}
			fmt.Fprintf(w, "%c ", GreedyAction(values[x][y]).Arrow())
		}
		fmt.Fprintln(w)
	}
}

// FprintMaxValues writes the maximum action value at each cell and their total.
func FprintMaxValues(w io.Writer, layout *Layout, values [][][NUM_ACTIONS]float64) {
	fmt.Fprintln(w, "Max vals:")
	total := 0.0
	for y := 0; y < layout.Size; y++ {
		fmt.Fprint(w, " ")
		for x := 0; x < layout.Size; x++ {
			val := floats.Max(values[x][y][:])
			fmt.Fprintf(w, "%8.2f ", val)
			total += val
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "Pi total: %.2f\n", total)
}

// GreedyAction returns the first action with the maximum value.
func GreedyAction(row [NUM_ACTIONS]float64) Action {
	return Action(floats.MaxIdx(row[:]))
}
