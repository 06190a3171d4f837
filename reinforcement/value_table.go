package reinforcement

import (
	"errors"
	"fmt"
	"io"

	"boxworld/atomic_float"
	"boxworld/models"

	"gonum.org/v1/gonum/floats"
	"gopkg.in/yaml.v3"
)

// ValueTable maps every (cell, action) pair of a square grid to a value estimate.
// Entries start at zero and are only ever overwritten. Training is the single writer;
// views may read concurrently.
type ValueTable struct {
	size  int
	cells []atomic_float.AtomicFloat64
}

func NewValueTable(size int) *ValueTable {
	return &ValueTable{
		size:  size,
		cells: make([]atomic_float.AtomicFloat64, size*size*models.NUM_ACTIONS),
	}
}

func (vt *ValueTable) Size() int {
	return vt.size
}

func (vt *ValueTable) index(c models.Coordinate, a models.Action) int {
	return (c.X*vt.size+c.Y)*models.NUM_ACTIONS + int(a)
}

func (vt *ValueTable) Get(c models.Coordinate, a models.Action) float64 {
	return vt.cells[vt.index(c, a)].AtomicRead()
}

func (vt *ValueTable) Set(c models.Coordinate, a models.Action, val float64) {
	vt.cells[vt.index(c, a)].AtomicSet(val)
}

// Row returns a copy of the action values at cell c, in action index order.
func (vt *ValueTable) Row(c models.Coordinate) []float64 {
	row := make([]float64, models.NUM_ACTIONS)
	for _, a := range models.Actions {
		row[a] = vt.Get(c, a)
	}
	return row
}

// Max returns the largest action value at cell c.
func (vt *ValueTable) Max(c models.Coordinate) float64 {
	return floats.Max(vt.Row(c))
}

// ArgMax returns the greedy action at cell c. Ties go to the lowest action index, so an
// untrained cell always yields models.Left.
func (vt *ValueTable) ArgMax(c models.Coordinate) models.Action {
	var row [models.NUM_ACTIONS]float64
	copy(row[:], vt.Row(c))
	return models.GreedyAction(row)
}

// Update applies the shaped blend to the entry for (@prev, @action):
//
//	Q(s,a) = shaped + (1-alpha)*Q(s,a) + alpha*(reward + gamma*max_a' Q(s',a'))
//
// The shaping term sits outside the blend and is added on every update. Returns the new value.
func (vt *ValueTable) Update(
	prev models.Coordinate,
	action models.Action,
	next models.Coordinate,
	reward, shaped, alpha, gamma float64,
) float64 {
	old := vt.Get(prev, action)
	nextMax := vt.Max(next)
	newVal := shaped + (1-alpha)*old + alpha*(reward+gamma*nextMax)
	vt.Set(prev, action, newVal)
	return newVal
}

// Values copies the table, indexed [x][y][action].
func (vt *ValueTable) Values() [][][models.NUM_ACTIONS]float64 {
	values := make([][][models.NUM_ACTIONS]float64, vt.size)
	for x := 0; x < vt.size; x++ {
		values[x] = make([][models.NUM_ACTIONS]float64, vt.size)
		for y := 0; y < vt.size; y++ {
			for _, a := range models.Actions {
				values[x][y][a] = vt.Get(models.Coordinate{X: x, Y: y}, a)
			}
		}
	}
	return values
}

type checkpointCell struct {
	X int       `yaml:"x"`
	Y int       `yaml:"y"`
	Q []float64 `yaml:"q,flow"`
}

type checkpoint struct {
	RunID string           `yaml:"runId"`
	Size  int              `yaml:"size"`
	Cells []checkpointCell `yaml:"cells"`
}

// ErrCheckpoint is wrapped when a checkpoint does not describe a valid table.
var ErrCheckpoint = errors.New("invalid value table checkpoint")

// Save writes the table as YAML, tagged with the id of the run that produced it.
func (vt *ValueTable) Save(w io.Writer, runID string) error {
	cp := checkpoint{RunID: runID, Size: vt.size}
	for x := 0; x < vt.size; x++ {
		for y := 0; y < vt.size; y++ {
			c := models.Coordinate{X: x, Y: y}
			cp.Cells = append(cp.Cells, checkpointCell{X: x, Y: y, Q: vt.Row(c)})
		}
	}
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(&cp)
}

// LoadValueTable reads a table written by Save and returns it with its run id.
// Cells missing from the checkpoint are zero.
func LoadValueTable(r io.Reader) (*ValueTable, string, error) {
	cp := checkpoint{}
	if err := yaml.NewDecoder(r).Decode(&cp); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrCheckpoint, err)
	}
	if cp.Size <= 0 {
		return nil, "", fmt.Errorf("%w: size %d", ErrCheckpoint, cp.Size)
	}
	vt := NewValueTable(cp.Size)
	for _, cell := range cp.Cells {
		c := models.Coordinate{X: cell.X, Y: cell.Y}
		if !c.InBounds(cp.Size) || len(cell.Q) != models.NUM_ACTIONS {
			return nil, "", fmt.Errorf("%w: bad cell %v with %d values", ErrCheckpoint, c, len(cell.Q))
		}
		for _, a := range models.Actions {
			vt.Set(c, a, cell.Q[a])
		}
	}
	return vt, cp.RunID, nil
}
