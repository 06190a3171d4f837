package models

import (
	"errors"
	"fmt"
)

// Coordinate is a cell position. X is the column and Y is the row; Y grows downward,
// such that (0,0) is the top left cell when printed in the console.
type Coordinate struct {
	X, Y int
}

func (c Coordinate) Add(other Coordinate) Coordinate {
	return Coordinate{X: c.X + other.X, Y: c.Y + other.Y}
}

// Manhattan returns the L1 distance between two cells.
func (c Coordinate) Manhattan(other Coordinate) int {
	return abs(c.X-other.X) + abs(c.Y-other.Y)
}

// Clamp bounds both components to [0, size). Moves off the grid leave the component unchanged.
func (c Coordinate) Clamp(size int) Coordinate {
	return Coordinate{X: clamp(c.X, 0, size-1), Y: clamp(c.Y, 0, size-1)}
}

// InBounds reports whether both components lie in [0, size).
func (c Coordinate) InBounds(size int) bool {
	return c.X >= 0 && c.Y >= 0 && c.X < size && c.Y < size
}

func (c Coordinate) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// Action is one of the four unit moves. The declaration order is also the tie-break
// order for greedy action selection: the lowest index wins among equal values.
type Action int

const (
	Left Action = iota
	Right
	Up
	Down
)

// NUM_ACTIONS is the size of the action space.
const NUM_ACTIONS = 4

// Actions lists every action in index order.
var Actions = [NUM_ACTIONS]Action{Left, Right, Up, Down}

// Delta returns the unit displacement of the action.
func (a Action) Delta() Coordinate {
	switch a {
	case Left:
		return Coordinate{X: -1}
	case Right:
		return Coordinate{X: 1}
	case Up:
		return Coordinate{Y: -1}
	case Down:
		return Coordinate{Y: 1}
	}
	return Coordinate{}
}

func (a Action) String() string {
	switch a {
	case Left:
		return "left"
	case Right:
		return "right"
	case Up:
		return "up"
	case Down:
		return "down"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Arrow is the console glyph for the action's direction.
func (a Action) Arrow() rune {
	switch a {
	case Left:
		return '<'
	case Right:
		return '>'
	case Up:
		return '^'
	case Down:
		return 'v'
	}
	return '?'
}

// Phase is the stage of an episode's goal pursuit.
type Phase int

const (
	SeekingGoal Phase = iota
	SeekingBox
	Done
)

func (p Phase) String() string {
	switch p {
	case SeekingGoal:
		return "seeking-goal"
	case SeekingBox:
		return "seeking-box"
	case Done:
		return "done"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Box is either intact at some coordinate or broken. The zero value is a broken box.
type Box struct {
	at     Coordinate
	intact bool
}

// IntactBox returns a box resting at c.
func IntactBox(c Coordinate) Box {
	return Box{at: c, intact: true}
}

// BrokenBox returns a box that can no longer be pushed or reached.
func BrokenBox() Box {
	return Box{}
}

// Intact returns the box's coordinate, and false if it is broken.
func (b Box) Intact() (Coordinate, bool) {
	return b.at, b.intact
}

func (b Box) IsBroken() bool {
	return !b.intact
}

// At reports whether the box is intact and resting at c. A broken box is never at any cell.
func (b Box) At(c Coordinate) bool {
	return b.intact && b.at == c
}

func (b Box) String() string {
	if !b.intact {
		return "broken"
	}
	return b.at.String()
}

// WallSet is the fixed set of wall cells of a layout.
type WallSet map[Coordinate]struct{}

// NewWallSet builds a wall set from the passed cells.
func NewWallSet(cells ...Coordinate) WallSet {
	walls := make(WallSet, len(cells))
	for _, c := range cells {
		walls[c] = struct{}{}
	}
	return walls
}

func (w WallSet) Contains(c Coordinate) bool {
	_, ok := w[c]
	return ok
}

// Layout is the immutable geometry of the grid world: its size, walls, the phase-1 goal,
// and the cells where the box and agent start each episode.
type Layout struct {
	Size       int
	Walls      WallSet
	Goal       Coordinate
	BoxStart   Coordinate
	AgentStart Coordinate
}

// ErrInvalidLayout is wrapped by every layout validation failure.
var ErrInvalidLayout = errors.New("invalid layout")

// Validate rejects layouts whose fixed cells fall outside the grid or overlap.
func (l *Layout) Validate() error {
	if l.Size < 2 {
		return fmt.Errorf("%w: grid size %d is too small", ErrInvalidLayout, l.Size)
	}
	for wall := range l.Walls {
		if !wall.InBounds(l.Size) {
			return fmt.Errorf("%w: wall %v outside %dx%d grid", ErrInvalidLayout, wall, l.Size, l.Size)
		}
	}
	named := []struct {
		name string
		at   Coordinate
	}{
		{"goal", l.Goal},
		{"box", l.BoxStart},
		{"agent start", l.AgentStart},
	}
	for _, cell := range named {
		if !cell.at.InBounds(l.Size) {
			return fmt.Errorf("%w: %s %v outside %dx%d grid", ErrInvalidLayout, cell.name, cell.at, l.Size, l.Size)
		}
		if l.IsWall(cell.at) {
			return fmt.Errorf("%w: %s %v is a wall", ErrInvalidLayout, cell.name, cell.at)
		}
	}
	if l.BoxStart == l.Goal {
		return fmt.Errorf("%w: box and goal share cell %v", ErrInvalidLayout, l.Goal)
	}
	if l.BoxStart == l.AgentStart {
		return fmt.Errorf("%w: box and agent share cell %v", ErrInvalidLayout, l.AgentStart)
	}
	return nil
}

func (l *Layout) IsWall(c Coordinate) bool {
	return l.Walls.Contains(c)
}

// ReferenceLayout is the classic 6x6 problem: a wall spanning x=0..4 on row 2 that the
// agent can only get past by pushing (or breaking) the box sitting in the gap at (5,2).
func ReferenceLayout() Layout {
	return Layout{
		Size: 6,
		Walls: NewWallSet(
			Coordinate{0, 2},
			Coordinate{1, 2},
			Coordinate{2, 2},
			Coordinate{3, 2},
			Coordinate{4, 2},
		),
		Goal:       Coordinate{0, 5},
		BoxStart:   Coordinate{5, 2},
		AgentStart: Coordinate{0, 0},
	}
}

// Snapshot is a copy of everything needed to draw one frame of an episode.
// Renderers receive snapshots and never see the live environment.
type Snapshot struct {
	Layout        *Layout
	Agent         Coordinate
	Box           Box
	FinalGoal     Coordinate
	Phase         Phase
	BoxMoveCount  int
	BoxBreakCount int
	Episode       int
	Step          int
}

func abs(i int) int {
	if i < 0 {
		return -i
	}
	return i
}

func clamp(i, lo, hi int) int {
	if i < lo {
		return lo
	}
	if i > hi {
		return hi
	}
	return i
}
