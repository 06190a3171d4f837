package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"boxworld/models"
	"boxworld/server/fastview"
	"boxworld/server/root_view"

	"github.com/gorilla/mux"
)

// shutdownGracePeriod bounds how long Serve waits for open connections once cancelled.
const shutdownGracePeriod = 2 * time.Second

// ErrClientConnected is returned to a second page while one is already being served.
var ErrClientConnected = errors.New("a client is already connected")

// Server serves the live training view: one page at "/" and its websocket at "/ws".
// The view's update channel has a single reader, so only one websocket is served at a time.
type Server struct {
	addr     string
	rootView *root_view.RootView
	busy     sync.Mutex
	handler  http.Handler
}

// NewServer builds the views over the stream of frames. The page is drawn from the latest
// frame received, or the initial one, with the values current at request time.
func NewServer(
	ctx context.Context,
	addr string,
	initial models.Snapshot,
	frames <-chan models.Snapshot,
	values root_view.ValueSource,
) (*Server, error) {
	rootView, err := root_view.NewRootView(ctx, initial, frames, values)
	if err != nil {
		return nil, fmt.Errorf("build views: %w", err)
	}

	server := &Server{
		addr:     addr,
		rootView: rootView,
	}

	router := mux.NewRouter()
	router.HandleFunc("/", server.serveIndex).Methods(http.MethodGet)
	router.HandleFunc("/ws", server.serveWebsocket)
	server.handler = router
	return server, nil
}

// Handler returns the server's routes, for mounting elsewhere or testing.
func (server *Server) Handler() http.Handler {
	return server.handler
}

// Serve listens until ctx is cancelled, then shuts down gracefully. It returns nil after a
// cancellation-triggered shutdown.
func (server *Server) Serve(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    server.addr,
		Handler: server.handler,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	errs := make(chan error, 1)
	go func() {
		errs <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (server *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	if !server.busy.TryLock() {
		http.Error(w, ErrClientConnected.Error(), http.StatusConflict)
		return
	}
	defer server.busy.Unlock()

	cli, err := fastview.NewClient(server.rootView.Updates(), w, r)
	if err != nil {
		log.Println(err)
		return
	}
	if err := cli.Sync(); err != nil {
		log.Println("websocket:", err)
	}
}

func (server *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if err := renderTemplate(w, server.rootView, server.rootView.Board()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func renderTemplate(
	w io.Writer,
	vc fastview.ViewComponent,
	data interface{},
) (err error) {
	t := template.New("index.html")
	var tname string
	if tname, err = vc.Parse(t); err != nil {
		return
	}
	if _, err = t.Parse(`{{ template "` + tname + `" . }}`); err != nil {
		return
	}
	return t.Execute(w, data)
}
