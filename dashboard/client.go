package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	channerics "github.com/niceyeti/channerics/channels"
	"golang.org/x/sync/errgroup"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 1 * time.Second
	// maxMessageSize is the largest message accepted from a peer (peers
	// only ever send pings/pongs, but the limit still bounds the read).
	maxMessageSize = 8192

	// pubResolution throttles how often a connected client receives a
	// fresh Snapshot, so a burst of ticks doesn't flood slow browsers.
	pubResolution = throttleInterval
	pingResolution = 200 * time.Millisecond
	// pongWait is the longest silence tolerated before a client is
	// considered gone; four missed pings is the teacher's margin.
	pongWait = pingResolution * 4
)

var upgrader = websocket.Upgrader{}

var errPongDeadlineExceeded = errors.New("dashboard: client disconnect, pong deadline exceeded")

// client publishes Snapshots to one connected browser over a websocket. It
// never reads application data from the peer; readMessages only exists to
// keep the pong handler live, per gorilla/websocket's requirement that a
// connection be read from continuously.
type client struct {
	updates <-chan Snapshot
	ws      *websock
	rootCtx context.Context
}

// newClient upgrades r to a websocket and returns a publisher fed by
// updates. updates should be a Hub subscription channel.
func newClient(updates <-chan Snapshot, w http.ResponseWriter, r *http.Request) (*client, error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil, err
	}
	return &client{
		updates: updates,
		ws:      newWebSocket(ws),
		rootCtx: r.Context(),
	}, nil
}

// sync runs the client's read/ping/publish loops until the peer disconnects
// or an unrecoverable error occurs.
func (c *client) sync() error {
	group, groupCtx := errgroup.WithContext(c.rootCtx)

	group.Go(func() error { return c.readMessages(groupCtx) })
	group.Go(func() error { return c.pingPong(groupCtx) })
	group.Go(func() error { return c.publish(groupCtx) })

	return group.Wait()
}

// pingPong requires readMessages to be running concurrently, since gorilla
// only invokes the pong handler while a Read is in flight.
func (c *client) pingPong(ctx context.Context) error {
	pong := make(chan struct{})
	defer close(pong)
	c.ws.Conn().SetPongHandler(func(_ string) error {
		pong <- struct{}{}
		return nil
	})

	ticker := channerics.NewTicker(ctx.Done(), pingResolution)
	lastPong := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker:
			if time.Since(lastPong) > pongWait {
				return errPongDeadlineExceeded
			}
			if err := c.ping(ctx); err != nil {
				return err
			}
		case <-pong:
			lastPong = time.Now()
		}
	}
}

func (c *client) ping(ctx context.Context) error {
	return c.ws.Write(ctx, func(ws *websocket.Conn) error {
		if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil && isUnexpected(err) {
			return fmt.Errorf("dashboard: ping failed: %w", err)
		}
		return nil
	})
}

func (c *client) readMessages(ctx context.Context) error {
	for {
		err := c.ws.Read(ctx, func(ws *websocket.Conn) (readErr error) {
			_, _, readErr = ws.ReadMessage()
			return
		})
		if err != nil {
			return err
		}
	}
}

func (c *client) publish(ctx context.Context) error {
	lastSync := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-c.updates:
			if !ok {
				return nil
			}
			if time.Since(lastSync) < pubResolution {
				continue
			}
			lastSync = time.Now()

			err := c.ws.Write(ctx, func(ws *websocket.Conn) error {
				if err := ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
					return fmt.Errorf("dashboard: set write deadline: %w", err)
				}
				if err := ws.WriteJSON(snap); err != nil && isUnexpected(err) {
					return fmt.Errorf("dashboard: publish failed: %w", err)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
	}
}

func isUnexpected(err error) bool {
	return err != nil && websocket.IsUnexpectedCloseError(
		err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway)
}

var errSockCongestion = errors.New("dashboard: socket operation failed due to congestion")

const (
	readDeadline     = time.Second
	writeDeadline    = time.Second
	closeGracePeriod = 10 * time.Second
)

// websock serializes reads and writes against a single websocket.Conn,
// which only tolerates one concurrent reader and one concurrent writer.
type websock struct {
	readSem  chan struct{}
	writeSem chan struct{}
	ws       *websocket.Conn
}

func newWebSocket(ws *websocket.Conn) *websock {
	return &websock{
		readSem:  make(chan struct{}, 1),
		writeSem: make(chan struct{}, 1),
		ws:       ws,
	}
}

// Conn returns the underlying connection for non-concurrent setup only.
func (s *websock) Conn() *websocket.Conn { return s.ws }

func (s *websock) Close() {
	s.readSem <- struct{}{}
	s.writeSem <- struct{}{}

	_ = s.ws.SetWriteDeadline(time.Now().Add(writeWait))
	_ = s.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	time.Sleep(closeGracePeriod)
	s.ws.Close()
}

func (s *websock) Read(ctx context.Context, readFn func(*websocket.Conn) error) error {
	select {
	case <-ctx.Done():
		return nil
	case s.readSem <- struct{}{}:
		defer func() { <-s.readSem }()
		return readFn(s.ws)
	case <-time.After(readDeadline):
		return errSockCongestion
	}
}

func (s *websock) Write(ctx context.Context, writeFn func(*websocket.Conn) error) error {
	select {
	case <-ctx.Done():
		return nil
	case s.writeSem <- struct{}{}:
		defer func() { <-s.writeSem }()
		return writeFn(s.ws)
	case <-time.After(writeDeadline):
		return errSockCongestion
	}
}
