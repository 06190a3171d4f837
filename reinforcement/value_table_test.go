package reinforcement

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"boxworld/models"

	. "github.com/smartystreets/goconvey/convey"
)

func TestValueTable(t *testing.T) {
	Convey("Given a new table", t, func() {
		table := NewValueTable(6)

		Convey("Every entry starts at zero", func() {
			for _, column := range table.Values() {
				for _, row := range column {
					So(row, ShouldResemble, [models.NUM_ACTIONS]float64{})
				}
			}
		})

		Convey("Entries are independent per cell and action", func() {
			table.Set(c(2, 3), models.Up, 1.25)
			So(table.Get(c(2, 3), models.Up), ShouldEqual, 1.25)
			So(table.Get(c(3, 2), models.Up), ShouldEqual, 0)
			So(table.Get(c(2, 3), models.Down), ShouldEqual, 0)
			So(table.Values()[2][3][models.Up], ShouldEqual, 1.25)
		})

		Convey("Max and ArgMax read the best action of a cell", func() {
			table.Set(c(1, 1), models.Left, -2)
			table.Set(c(1, 1), models.Right, -1)
			table.Set(c(1, 1), models.Up, -1)
			table.Set(c(1, 1), models.Down, -4)
			So(table.Max(c(1, 1)), ShouldEqual, -1)
			So(table.ArgMax(c(1, 1)), ShouldEqual, models.Right)
			So(table.ArgMax(c(4, 4)), ShouldEqual, models.Left)
		})

		Convey("A saved table loads back with its run id", func() {
			table.Set(c(0, 5), models.Down, 3.5)
			table.Set(c(5, 0), models.Left, -999.75)
			buf := &bytes.Buffer{}
			So(table.Save(buf, "run-42"), ShouldBeNil)

			loaded, runID, err := LoadValueTable(buf)
			So(err, ShouldBeNil)
			So(runID, ShouldEqual, "run-42")
			So(loaded.Size(), ShouldEqual, 6)
			So(loaded.Values(), ShouldResemble, table.Values())
		})
	})

	Convey("Malformed checkpoints are rejected", t, func() {
		inputs := []string{
			"size: 0\n",
			"size: 2\ncells:\n  - {x: 3, y: 0, q: [0, 0, 0, 0]}\n",
			"size: 2\ncells:\n  - {x: 0, y: 0, q: [0, 0]}\n",
			"size: [",
		}
		for _, input := range inputs {
			_, _, err := LoadValueTable(strings.NewReader(input))
			So(errors.Is(err, ErrCheckpoint), ShouldBeTrue)
		}
	})
}
