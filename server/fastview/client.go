package fastview

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	channerics "github.com/niceyeti/channerics/channels"
	"golang.org/x/sync/errgroup"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = time.Second
	// Maximum message size allowed from the peer. The page never sends anything but control frames.
	maxMessageSize = 512
	// Updates arriving faster than this are dropped; every update carries full element state.
	pubResolution  = 100 * time.Millisecond
	pingResolution = 200 * time.Millisecond
	// The number of lost pings tolerated before the peer is considered gone.
	pongWait = pingResolution * 4
	// How long a sock op may wait for its turn before giving up.
	sockWait = time.Second
)

var upgrader = websocket.Upgrader{}

// ErrPongDeadlineExceeded is returned by Sync when the page stops answering pings.
var ErrPongDeadlineExceeded = errors.New("client disconnect, pong deadline exceeded")

// ErrSockCongestion indicates there are too many waiters on the socket for a given op.
var ErrSockCongestion = errors.New("sock op failed due to congestion")

var errUpdatesClosed = errors.New("update channel closed")

// Client pushes idempotent updates to a single browser page over a websocket.
type Client[T any] struct {
	updates <-chan T
	sock    *sock
	rootCtx context.Context
}

// NewClient upgrades the request to a websocket. On failure the error has already been
// written to w.
func NewClient[T any](
	updates <-chan T,
	w http.ResponseWriter,
	r *http.Request,
) (*Client[T], error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil, fmt.Errorf("upgrade: %w", err)
	}
	conn.SetReadLimit(maxMessageSize)

	return &Client[T]{
		updates: updates,
		sock:    newSock(conn),
		rootCtx: r.Context(),
	}, nil
}

// Sync publishes updates until the page disconnects, the update channel closes, or the request
// context is cancelled. A normal closure by the page returns nil.
func (cli *Client[T]) Sync() error {
	group, ctx := errgroup.WithContext(cli.rootCtx)
	// Closing the connection is the only way to unblock a pending read.
	group.Go(func() error {
		<-ctx.Done()
		cli.sock.close()
		return nil
	})
	group.Go(func() error {
		return cli.readMessages(ctx)
	})
	group.Go(func() error {
		return cli.pingPong(ctx)
	})
	group.Go(func() error {
		return cli.publish(ctx)
	})

	err := group.Wait()
	if err == nil || errors.Is(err, errUpdatesClosed) || isClosure(err) || cli.rootCtx.Err() != nil {
		return nil
	}
	return err
}

// pingPong requires readMessages to be running, since pong handlers fire from within reads.
func (cli *Client[T]) pingPong(ctx context.Context) error {
	pong := make(chan struct{}, 1)
	cli.sock.conn.SetPongHandler(func(string) error {
		select {
		case pong <- struct{}{}:
		default:
		}
		return nil
	})

	pinger := channerics.NewTicker(ctx.Done(), pingResolution)
	lastPong := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pong:
			lastPong = time.Now()
		case <-pinger:
			if time.Since(lastPong) > pongWait {
				return ErrPongDeadlineExceeded
			}
			err := cli.sock.write(ctx, func(conn *websocket.Conn) error {
				return conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			})
			if err != nil {
				return fmt.Errorf("ping: %w", err)
			}
		}
	}
}

// readMessages discards page messages. Read errors on a websocket are permanent, so any
// error tears the client down.
func (cli *Client[T]) readMessages(ctx context.Context) error {
	for {
		err := cli.sock.read(ctx, func(conn *websocket.Conn) error {
			_, _, readErr := conn.ReadMessage()
			return readErr
		})
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (cli *Client[T]) publish(ctx context.Context) error {
	var lastSync time.Time
	for update := range channerics.OrDone(ctx.Done(), cli.updates) {
		if time.Since(lastSync) < pubResolution {
			continue
		}
		lastSync = time.Now()

		err := cli.sock.write(ctx, func(conn *websocket.Conn) error {
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return fmt.Errorf("set write deadline: %w", err)
			}
			return conn.WriteJSON(update)
		})
		if err != nil {
			return fmt.Errorf("publish: %w", err)
		}
	}
	if ctx.Err() != nil {
		return nil
	}
	return errUpdatesClosed
}

func isClosure(err error) bool {
	return websocket.IsCloseError(
		err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway)
}

// sock serializes access to a websocket, which allows one concurrent reader and one writer.
type sock struct {
	readSem  chan struct{}
	writeSem chan struct{}
	conn     *websocket.Conn
	once     sync.Once
}

func newSock(conn *websocket.Conn) *sock {
	return &sock{
		readSem:  make(chan struct{}, 1),
		writeSem: make(chan struct{}, 1),
		conn:     conn,
	}
}

func (s *sock) read(ctx context.Context, fn func(*websocket.Conn) error) error {
	return acquire(ctx, s.readSem, func() error { return fn(s.conn) })
}

func (s *sock) write(ctx context.Context, fn func(*websocket.Conn) error) error {
	return acquire(ctx, s.writeSem, func() error { return fn(s.conn) })
}

func acquire(ctx context.Context, sem chan struct{}, fn func() error) error {
	select {
	case <-ctx.Done():
		return nil
	case sem <- struct{}{}:
		defer func() { <-sem }()
		return fn()
	case <-time.After(sockWait):
		return ErrSockCongestion
	}
}

// close sends a close frame and releases the connection. Safe to call concurrently with
// pending reads and writes, which then fail.
func (s *sock) close() {
	s.once.Do(func() {
		_ = s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		_ = s.conn.Close()
	})
}
