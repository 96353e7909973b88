package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"shieldgate/cmd/internal/metrics"
)

const (
	eventsSubprotocol = "shieldgate.session.v1"

	eventsSendQueueSize = 32
	eventsWriteTimeout  = 5 * time.Second
	eventsReadLimit     = 1 << 10 // subscribers only listen
)

// eventEnvelope is the single frame type on the stream: a full state
// snapshot after every transition. Views recompute from snapshots, so a
// dropped frame is repaired by the next one.
type eventEnvelope struct {
	Type     string        `json:"type"`
	Snapshot stateResponse `json:"snapshot"`
}

// Broadcaster fans session-state snapshots out to connected presentation
// clients over WebSocket.
//
// Send queues are bounded and never closed by the broadcaster; a slow client
// is disconnected instead of stalling the others.
type Broadcaster struct {
	log            *slog.Logger
	originPatterns []string

	mu      sync.Mutex
	clients map[*eventClient]struct{}
}

type eventClient struct {
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func (c *eventClient) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// NewBroadcaster constructs a Broadcaster. originPatterns are host patterns
// authorized for cross-origin upgrades (websocket.AcceptOptions semantics).
func NewBroadcaster(log *slog.Logger, originPatterns []string) *Broadcaster {
	if log == nil {
		log = slog.Default()
	}
	return &Broadcaster{
		log:            log,
		originPatterns: originPatterns,
		clients:        make(map[*eventClient]struct{}),
	}
}

// Publish pushes a snapshot to every connected client. Non-blocking: clients
// whose queue is full are dropped.
func (b *Broadcaster) Publish(snapshot stateResponse) {
	frame, err := json.Marshal(eventEnvelope{Type: "session_state", Snapshot: snapshot})
	if err != nil {
		b.log.Error("events.encode.fail", "err", err)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.clients {
		select {
		case c.send <- frame:
		default:
			b.log.Warn("events.client.slow_drop")
			delete(b.clients, c)
			c.close()
		}
	}
}

// HandleWS upgrades the request and streams snapshots until the client goes
// away. The current snapshot is not replayed here; clients fetch it from
// GET /session and then subscribe.
func (b *Broadcaster) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{eventsSubprotocol},
		OriginPatterns: b.originPatterns,
	})
	if err != nil {
		b.log.Error("events.accept.fail", "err", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	if sp := conn.Subprotocol(); sp != eventsSubprotocol {
		b.log.Info("events.reject.subprotocol", "got", sp, "want", eventsSubprotocol)
		_ = conn.Close(websocket.StatusProtocolError, "subprotocol required")
		return
	}

	conn.SetReadLimit(eventsReadLimit)

	client := &eventClient{
		send: make(chan []byte, eventsSendQueueSize),
		done: make(chan struct{}),
	}

	b.mu.Lock()
	b.clients[client] = struct{}{}
	b.mu.Unlock()
	metrics.EventClients.Inc()

	defer func() {
		b.mu.Lock()
		delete(b.clients, client)
		b.mu.Unlock()
		client.close()
		metrics.EventClients.Dec()
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Read loop exists only to notice the peer closing; subscribers are not
	// expected to send frames.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-client.done:
			return
		case frame := <-client.send:
			writeCtx, writeCancel := context.WithTimeout(ctx, eventsWriteTimeout)
			err := conn.Write(writeCtx, websocket.MessageText, frame)
			writeCancel()
			if err != nil {
				b.log.Debug("events.write.fail", "err", err)
				return
			}
		}
	}
}
