// cell_views contains views derived from the Board view-model.
package cell_views

import (
	"fmt"

	"boxworld/models"
)

// Cell is one grid square reduced to the fields the views draw, already in svg orientation:
// (0,0) is the top left, the same cell printed first in the console.
type Cell struct {
	X, Y                int
	Max                 float64
	PolicyArrowRotation int
	Fill                string
	Glyph               string
}

// Status is the episode caption drawn above the grid.
type Status struct {
	Episode   int
	Step      int
	Phase     string
	Box       string
	BoxMoves  int
	BoxBreaks int
}

func (st Status) String() string {
	return fmt.Sprintf("episode %d step %d: %s, box %s, moves %d, breaks %d",
		st.Episode, st.Step, st.Phase, st.Box, st.BoxMoves, st.BoxBreaks)
}

// Board is the view-model of one frame. Cells are indexed [x][y].
type Board struct {
	Cells  [][]Cell
	Status Status
}

// Convert combines a frame with the current action values, indexed [x][y][action], into a Board.
func Convert(snap models.Snapshot, values [][][models.NUM_ACTIONS]float64) Board {
	size := snap.Layout.Size
	cells := make([][]Cell, size)
	for x := 0; x < size; x++ {
		cells[x] = make([]Cell, size)
		for y := 0; y < size; y++ {
			c := models.Coordinate{X: x, Y: y}
			greedy := models.GreedyAction(values[x][y])
			glyph := snap.Glyph(c)
			cells[x][y] = Cell{
				X:                   x,
				Y:                   y,
				Max:                 values[x][y][greedy],
				PolicyArrowRotation: getDegrees(greedy),
				Fill:                getFill(glyph),
				Glyph:               getGlyph(glyph),
			}
		}
	}

	return Board{
		Cells: cells,
		Status: Status{
			Episode:   snap.Episode,
			Step:      snap.Step,
			Phase:     snap.Phase.String(),
			Box:       snap.Box.String(),
			BoxMoves:  snap.BoxMoveCount,
			BoxBreaks: snap.BoxBreakCount,
		},
	}
}

// getDegrees returns the svg rotation of an upward arrow so that it points along the action.
// Svg rotation is clockwise, and y grows downward as in the grid.
func getDegrees(action models.Action) int {
	switch action {
	case models.Right:
		return 90
	case models.Down:
		return 180
	case models.Left:
		return 270
	}
	return 0
}

func getFill(glyph rune) (fill string) {
	switch glyph {
	case models.WALL:
		fill = "darkslategray"
	case models.AGENT:
		fill = "lightblue"
	case models.BOX:
		fill = "burlywood"
	case models.GOAL:
		fill = "lightgreen"
	case models.FINAL:
		fill = "lightyellow"
	case models.BROKEN:
		fill = "salmon"
	default:
		fill = "white"
	}
	return
}

// getGlyph returns the cell's label; empty cells have none.
func getGlyph(glyph rune) string {
	if glyph == models.EMPTY {
		return ""
	}
	return string(glyph)
}
