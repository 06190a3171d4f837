package cell_views

import (
	"fmt"
	"html/template"

	"boxworld/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

const cellDim = 100 // Cell height/width in pixels

// ValuesGrid draws the grid: each cell's fill, its label, its max action value, and an arrow
// for its greedy action.
type ValuesGrid struct {
	id      string
	updates <-chan []fastview.EleUpdate
}

func NewValuesGrid(
	done <-chan struct{},
	boards <-chan Board,
) (vg *ValuesGrid) {
	vg = &ValuesGrid{id: "valuesgrid"}
	vg.updates = channerics.Convert(done, boards, vg.onUpdate)
	return
}

func (vg *ValuesGrid) Updates() <-chan []fastview.EleUpdate {
	return vg.updates
}

// onUpdate returns the set of ele-updates that bring the grid up to date with the board.
func (vg *ValuesGrid) onUpdate(board Board) (ops []fastview.EleUpdate) {
	for _, row := range board.Cells {
		for _, cell := range row {
			ops = append(ops,
				fastview.EleUpdate{
					EleId: fmt.Sprintf("%d-%d-cell-rect", cell.X, cell.Y),
					Ops:   []fastview.Op{{Key: "fill", Value: cell.Fill}},
				},
				fastview.EleUpdate{
					EleId: fmt.Sprintf("%d-%d-cell-glyph", cell.X, cell.Y),
					Ops:   []fastview.Op{{Key: "textContent", Value: cell.Glyph}},
				},
				fastview.EleUpdate{
					EleId: fmt.Sprintf("%d-%d-value-text", cell.X, cell.Y),
					Ops:   []fastview.Op{{Key: "textContent", Value: fmt.Sprintf("%.2f", cell.Max)}},
				},
				fastview.EleUpdate{
					EleId: fmt.Sprintf("%d-%d-policy-arrow", cell.X, cell.Y),
					Ops:   []fastview.Op{{Key: "transform", Value: fmt.Sprintf("rotate(%d)", cell.PolicyArrowRotation)}},
				},
			)
		}
	}
	return
}

// Parse defines the grid's svg template. It expects a Board as its data.
func (vg *ValuesGrid) Parse(t *template.Template) (name string, err error) {
	name = vg.id
	_, err = t.Parse(
		`{{ define "` + name + `" }}
		<div id="` + vg.id + `-container">
			{{ $num_cells := len .Cells }}
			{{ $cell_dim := ` + fmt.Sprintf("%d", cellDim) + ` }}
			{{ $dim := mult $cell_dim $num_cells }}
			{{ $half := div $cell_dim 2 }}
			<svg id="` + vg.id + `"
				width="{{ add $dim 1 }}px"
				height="{{ add $dim 1 }}px"
				style="shape-rendering: crispEdges;">
				{{ range $col := .Cells }}
					{{ range $cell := $col }}
					<g>
						<rect id="{{$cell.X}}-{{$cell.Y}}-cell-rect"
							x="{{ mult $cell.X $cell_dim }}"
							y="{{ mult $cell.Y $cell_dim }}"
							width="{{ $cell_dim }}"
							height="{{ $cell_dim }}"
							fill="{{ $cell.Fill }}"
							stroke="black"
							stroke-width="1"/>
						<text id="{{$cell.X}}-{{$cell.Y}}-cell-glyph"
							x="{{ add (mult $cell.X $cell_dim) 12 }}"
							y="{{ add (mult $cell.Y $cell_dim) 20 }}"
							font-weight="bold"
							>{{ $cell.Glyph }}</text>
						<text id="{{$cell.X}}-{{$cell.Y}}-value-text"
							x="{{ add (mult $cell.X $cell_dim) $half }}"
							y="{{ add (mult $cell.Y $cell_dim) (sub $half 10) }}"
							stroke="blue"
							dominant-baseline="text-top" text-anchor="middle"
							>{{ printf "%.2f" $cell.Max }}</text>
						<g transform="translate({{ add (mult $cell.X $cell_dim) $half }}, {{ add (mult $cell.Y $cell_dim) (add $half 20) }})">
							<text id="{{$cell.X}}-{{$cell.Y}}-policy-arrow"
								stroke="blue" stroke-width="1"
								dominant-baseline="central" text-anchor="middle"
								transform="rotate({{ $cell.PolicyArrowRotation }})"
								>&uarr;</text>
						</g>
					</g>
					{{ end }}
				{{ end }}
			</svg>
		</div>
		{{ end }}`)
	return
}
