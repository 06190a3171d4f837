package root_view

import (
	"context"
	"html/template"
	"sync/atomic"
	"time"

	"boxworld/models"
	"boxworld/server/cell_views"
	"boxworld/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// batchRate is the window over which ele-updates for the same element are coalesced.
const batchRate = 20 * time.Millisecond

// ValueSource provides a copy of the current action values, indexed [x][y][action].
type ValueSource interface {
	Values() [][][models.NUM_ACTIONS]float64
}

// RootView is the index page: the container for all view components and the wiring
// of their update channels into one.
type RootView struct {
	views   []fastview.ViewComponent
	updates <-chan []fastview.EleUpdate
	values  ValueSource
	latest  atomic.Pointer[models.Snapshot]
}

// NewRootView builds the views over the stream of frames, reading values at each frame.
// The initial frame stands in as the latest until the first one arrives.
func NewRootView(
	ctx context.Context,
	initial models.Snapshot,
	frames <-chan models.Snapshot,
	values ValueSource,
) (*RootView, error) {
	rv := &RootView{values: values}
	rv.latest.Store(&initial)
	toBoard := func(snap models.Snapshot) cell_views.Board {
		rv.latest.Store(&snap)
		return cell_views.Convert(snap, values.Values())
	}

	views, err := fastview.NewViewBuilder[models.Snapshot, cell_views.Board]().
		WithContext(ctx).
		WithModel(frames, toBoard).
		WithView(func(done <-chan struct{}, boards <-chan cell_views.Board) fastview.ViewComponent {
			return cell_views.NewStatusLine(done, boards)
		}).
		WithView(func(done <-chan struct{}, boards <-chan cell_views.Board) fastview.ViewComponent {
			return cell_views.NewValuesGrid(done, boards)
		}).
		Build()
	if err != nil {
		return nil, err
	}

	rv.views = views
	rv.updates = fanIn(ctx.Done(), views)
	return rv, nil
}

// Board returns the latest frame drawn with the current values, so a page loaded after
// frames stop arriving still shows what was learned.
func (rv *RootView) Board() cell_views.Board {
	return cell_views.Convert(*rv.latest.Load(), rv.values.Values())
}

// Updates returns the merged ele-update channel of all the views.
func (rv *RootView) Updates() <-chan []fastview.EleUpdate {
	return rv.updates
}

// Parse defines the index page, with the websocket bootstrap script, and returns its name.
// It installs the func-map the child views' templates rely on.
func (rv *RootView) Parse(parent *template.Template) (name string, err error) {
	rt := parent.Funcs(template.FuncMap{
		"add":  func(i, j int) int { return i + j },
		"sub":  func(i, j int) int { return i - j },
		"mult": func(i, j int) int { return i * j },
		"div":  func(i, j int) int { return i / j },
	})

	var body string
	for _, vc := range rv.views {
		tname, parseErr := vc.Parse(rt)
		if parseErr != nil {
			return "", parseErr
		}
		body += `{{ template "` + tname + `" . }}`
	}

	name = "mainpage"
	_, err = rt.Parse(`
	{{ define "` + name + `" }}
	<!DOCTYPE html>
	<html>
		<head>
			<title>boxworld</title>
			<link rel="icon" href="data:,">
			<script>
				const ws = new WebSocket("ws://" + location.host + "/ws");
				ws.onopen = function (event) {
					console.log("Web socket opened")
				};
				ws.onerror = function (event) {
					console.log('WebSocket error: ', event);
				};
				// Apply each pushed ele-update to the element with its id.
				ws.onmessage = function (event) {
					const items = JSON.parse(event.data)
					for (const update of items) {
						const ele = document.getElementById(update.EleId)
						if (ele === null) {
							continue
						}
						for (const op of update.Ops) {
							if (op.Key === "textContent") {
								ele.textContent = op.Value;
							} else {
								ele.setAttribute(op.Key, op.Value)
							}
						}
					}
				}
			</script>
		</head>
		<body>
		` + body + `
		</body>
	</html>
	{{ end }}
	`)
	return
}

// fanIn merges the views' ele-update channels into one batched channel.
func fanIn(
	done <-chan struct{},
	views []fastview.ViewComponent,
) <-chan []fastview.EleUpdate {
	inputs := make([]<-chan []fastview.EleUpdate, len(views))
	for i, view := range views {
		inputs[i] = view.Updates()
	}
	return batchify(done, channerics.Merge(done, inputs...), batchRate)
}

// batchify coalesces updates and sends them once per rate, keeping only the latest update
// per ele-id. A pending batch is flushed when the source closes.
func batchify(
	done <-chan struct{},
	source <-chan []fastview.EleUpdate,
	rate time.Duration,
) <-chan []fastview.EleUpdate {
	output := make(chan []fastview.EleUpdate)

	go func() {
		defer close(output)

		pending := map[string]fastview.EleUpdate{}
		var order []string
		flush := func() bool {
			if len(pending) == 0 {
				return true
			}
			select {
			case output <- ordered(pending, order):
				pending = map[string]fastview.EleUpdate{}
				order = nil
				return true
			case <-done:
				return false
			}
		}

		ticker := channerics.NewTicker(done, rate)
		updatesChan := channerics.OrDone(done, source)
		for {
			select {
			case updates, ok := <-updatesChan:
				if !ok {
					flush()
					return
				}
				for _, update := range updates {
					if _, seen := pending[update.EleId]; !seen {
						order = append(order, update.EleId)
					}
					pending[update.EleId] = update
				}
			case <-ticker:
				if !flush() {
					return
				}
			}
		}
	}()

	return output
}

// ordered returns the pending updates in first-seen order.
func ordered(pending map[string]fastview.EleUpdate, order []string) []fastview.EleUpdate {
	batch := make([]fastview.EleUpdate, 0, len(order))
	for _, id := range order {
		batch = append(batch, pending[id])
	}
	return batch
}
