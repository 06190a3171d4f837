package models

import (
	"bytes"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func zeroValues(size int) [][][NUM_ACTIONS]float64 {
	values := make([][][NUM_ACTIONS]float64, size)
	for x := range values {
		values[x] = make([][NUM_ACTIONS]float64, size)
	}
	return values
}

func TestConsolePrinters(t *testing.T) {
	Convey("Given the reference layout and its values", t, func() {
		layout := ReferenceLayout()
		values := zeroValues(layout.Size)
		values[0][0][Down] = 2.5
		var out bytes.Buffer

		Convey("The policy is written to the given writer, one row per line", func() {
			FprintPolicy(&out, &layout, values)
			lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
			So(len(lines), ShouldEqual, layout.Size)
			So(lines[0], ShouldStartWith, " v < ")
			So(strings.Count(out.String(), "-"), ShouldEqual, len(layout.Walls))
		})

		Convey("Max values and their total are written to the given writer", func() {
			FprintMaxValues(&out, &layout, values)
			So(out.String(), ShouldStartWith, "Max vals:\n")
			So(out.String(), ShouldContainSubstring, "    2.50")
			So(out.String(), ShouldEndWith, "Pi total: 2.50\n")
		})
	})
}
