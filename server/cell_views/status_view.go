package cell_views

import (
	"html/template"

	"boxworld/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// StatusLine shows the episode, step, phase and box counters of the latest frame.
type StatusLine struct {
	id      string
	updates <-chan []fastview.EleUpdate
}

func NewStatusLine(
	done <-chan struct{},
	boards <-chan Board,
) (sl *StatusLine) {
	sl = &StatusLine{id: "statusline"}
	sl.updates = channerics.Convert(done, boards, sl.onUpdate)
	return
}

func (sl *StatusLine) Updates() <-chan []fastview.EleUpdate {
	return sl.updates
}

func (sl *StatusLine) onUpdate(board Board) []fastview.EleUpdate {
	return []fastview.EleUpdate{
		{
			EleId: sl.id,
			Ops:   []fastview.Op{{Key: "textContent", Value: board.Status.String()}},
		},
	}
}

func (sl *StatusLine) Parse(t *template.Template) (name string, err error) {
	name = sl.id
	_, err = t.Parse(
		`{{ define "` + name + `" }}
		<p id="` + sl.id + `" style="font-family: monospace;">{{ .Status }}</p>
		{{ end }}`)
	return
}
