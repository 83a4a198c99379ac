// Package wsrelay adapts a WebSocket connection to the actor model: an
// Endpoint is an ordinary actor that owns a *websocket.Conn, translating
// inbound frames into messages sent to a downstream target and outbound
// Put calls into frames written back to the peer.
package wsrelay

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/loomwire/actorcore/internal/actor"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// pingPeriod is how often pings are sent; must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is the largest frame accepted from the peer.
	maxMessageSize = 4096
)

// Endpoint owns a single WebSocket connection and exposes it as an actor
// body: the body's Proc.Get loop is the write side (anything Put to the
// endpoint's cell is marshaled and written to the socket), while a
// dedicated reader goroutine is the read side (inbound frames are decoded
// and forwarded to Downstream). Closing the connection on cancellation
// and unblocking the reader are the only coordination the two sides need.
type Endpoint struct {
	conn       *websocket.Conn
	downstream actor.TellTarget

	writeMu sync.Mutex

	cell *actor.Cell
}

// Config configures a new Endpoint.
type Config struct {
	// ID names the endpoint's cell. Defaults to a generated UUID.
	ID string

	// Conn is the accepted WebSocket connection this endpoint owns.
	Conn *websocket.Conn

	// Downstream receives every decoded inbound frame, one Send call per
	// frame. May be nil, in which case inbound frames are discarded.
	Downstream actor.TellTarget

	// HWM overrides the mailbox high-water-mark threshold, see
	// actor.WithHWM. Zero uses the package default.
	HWM int
}

// New builds and starts an Endpoint actor over conn. The returned
// Endpoint's Cell is the target to Send messages to for outbound
// delivery; decoded inbound frames are forwarded to cfg.Downstream.
func New(cfg Config) *Endpoint {
	ep := &Endpoint{
		conn:       cfg.Conn,
		downstream: cfg.Downstream,
	}

	opts := []actor.CellOption{actor.WithBody(ep.runBody)}
	if cfg.ID != "" {
		opts = append(opts, actor.WithID(cfg.ID))
	}
	if cfg.HWM > 0 {
		opts = append(opts, actor.WithHWM(cfg.HWM))
	}

	ep.cell = actor.NewCell(opts...)
	_ = ep.cell.Start()

	go ep.readPump()

	return ep
}

// Cell returns the underlying actor cell. Send to it to deliver an
// outbound frame; Stop it (or call Endpoint.Stop) to close the
// connection and tear down both pumps.
func (e *Endpoint) Cell() *actor.Cell {
	return e.cell
}

// Stop tears down the endpoint, closing the connection. It is equivalent
// to e.Cell().Stop() and exists for call-site symmetry with New.
func (e *Endpoint) Stop() error {
	return e.cell.Stop()
}

// runBody is the write side: it blocks on Proc.Get for every message sent
// to the endpoint's cell and writes each one to the socket as a JSON text
// frame. Cancellation (Stop) unblocks Get with actor.ErrCancelled, at
// which point the connection is closed, which in turn unblocks the
// concurrently running readPump.
func (e *Endpoint) runBody(p *actor.Proc) error {
	defer e.conn.Close()

	go e.pingLoop(p.Context().Done())

	for {
		msg, err := p.Get(actor.Any())
		if err != nil {
			return err
		}

		if err := e.writeFrame(msg); err != nil {
			return err
		}
	}
}

func (e *Endpoint) writeFrame(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("wsrelay: marshal error on endpoint %s: %v", e.cell.ID(), err)
		return nil
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	e.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return e.conn.WriteMessage(websocket.TextMessage, data)
}

// readPump is the read side, run in its own goroutine for the lifetime of
// the connection. It decodes each inbound text frame and forwards it to
// Downstream, exiting (and triggering cell teardown) on any read error.
func (e *Endpoint) readPump() {
	defer func() { _ = e.cell.Stop() }()

	e.conn.SetReadLimit(maxMessageSize)
	e.conn.SetReadDeadline(time.Now().Add(pongWait))
	e.conn.SetPongHandler(func(string) error {
		e.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := e.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("wsrelay: read error on endpoint %s: %v", e.cell.ID(), err)
			}
			return
		}

		var decoded any
		if err := json.Unmarshal(data, &decoded); err != nil {
			log.Printf("wsrelay: unmarshal error on endpoint %s: %v", e.cell.ID(), err)
			continue
		}

		if e.downstream != nil {
			_ = e.downstream.Send(context.Background(), decoded)
		}
	}
}

// pingLoop runs alongside runBody's Get loop for the lifetime of the
// body's context, writing keep-alive pings directly (guarded by
// writeMu so they interleave safely with writeFrame) rather than routing
// through Proc.Get, which only has one suspension point per step.
func (e *Endpoint) pingLoop(done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.writeMu.Lock()
			e.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := e.conn.WriteMessage(websocket.PingMessage, nil)
			e.writeMu.Unlock()

			if err != nil {
				return
			}

		case <-done:
			return
		}
	}
}
