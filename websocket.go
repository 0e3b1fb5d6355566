package aurelia

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// connState represents the connectivity state of the shared transport.
type connState int

const (
	connConnecting connState = iota
	connOpen
	connClosing
	connClosed
)

var errNotOpen = errors.New("connection is not open")

// TTSWebsocket is a persistent bidirectional synthesis connection. Many
// independent contexts are multiplexed over it: every context's requests
// share the single transport, and a single reader goroutine routes inbound
// frames back to the owning context's delivery queue in arrival order.
//
// A TTSWebsocket is safe for concurrent use. Writes from different contexts
// are serialized; their relative order is undefined, but frames for a single
// context are always delivered in the order the server emits them.
type TTSWebsocket struct {
	client *Client
	logger *slog.Logger

	reg     *registry
	stats   *sessionStats
	backoff backoffPolicy

	connectMu sync.Mutex // serializes acquire cycles
	writeMu   sync.Mutex // serializes transport writes

	mu     sync.Mutex
	conn   *websocket.Conn
	state  connState
	dialed bool

	closeCh   chan struct{}
	closeOnce sync.Once
}

// Websocket opens a persistent synthesis connection. The connection is
// established before returning; on repeated connectivity failures the dial
// is retried with exponential backoff up to the configured attempt bound,
// then fails with a ConnectionError.
func (s *TTSService) Websocket(ctx context.Context) (*TTSWebsocket, error) {
	cfg := s.client.config
	ws := &TTSWebsocket{
		client: s.client,
		logger: cfg.logger,
		reg:    newRegistry(cfg.tombstoneWindow, cfg.queueSize),
		stats:  &sessionStats{},
		backoff: backoffPolicy{
			Base:        cfg.retryBase,
			MaxAttempts: cfg.connectAttempts,
			Jitter:      defaultRetryJitter,
		},
		state:   connClosed,
		closeCh: make(chan struct{}),
	}
	if err := ws.acquire(ctx); err != nil {
		return nil, err
	}
	return ws, nil
}

// Context registers a new generation context on the connection. An empty id
// generates one. Registering an id that is still live, or still inside its
// tombstone window after retirement, fails with DuplicateContextError.
func (ws *TTSWebsocket) Context(id string) (*TTSContext, error) {
	if id == "" {
		id = uuid.NewString()
	}
	cs, err := ws.reg.register(id)
	if err != nil {
		return nil, err
	}
	return &TTSContext{id: id, ws: ws, cs: cs}, nil
}

// Stats returns a snapshot of aggregate session statistics.
func (ws *TTSWebsocket) Stats() Stats {
	return ws.stats.snapshot()
}

// Close tears down the connection. Every live context is errored out so that
// blocked Receive calls unblock.
func (ws *TTSWebsocket) Close() error {
	ws.closeOnce.Do(func() {
		close(ws.closeCh)
		ws.mu.Lock()
		ws.state = connClosing
		conn := ws.conn
		ws.conn = nil
		ws.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		ws.mu.Lock()
		ws.state = connClosed
		ws.mu.Unlock()
		ws.reg.invalidateAll(&TransportError{Op: "close", Err: ErrClosed})
	})
	return nil
}

// acquire guarantees the transport is open before returning, dialing with
// exponential backoff and jitter up to the configured attempt bound.
func (ws *TTSWebsocket) acquire(ctx context.Context) error {
	ws.connectMu.Lock()
	defer ws.connectMu.Unlock()

	ws.mu.Lock()
	switch ws.state {
	case connOpen:
		ws.mu.Unlock()
		return nil
	case connClosing:
		ws.mu.Unlock()
		return &TransportError{Op: "acquire", Err: ErrClosed}
	}
	ws.state = connConnecting
	ws.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt < ws.backoff.MaxAttempts; attempt++ {
		if attempt > 0 {
			ws.logger.Warn("aurelia: retrying connection",
				"attempt", attempt+1,
				"max_attempts", ws.backoff.MaxAttempts,
				"error", lastErr)
			if err := ws.backoff.wait(ctx, attempt-1); err != nil {
				ws.setState(connClosed)
				return &TimeoutError{Op: "connection acquire", Err: err}
			}
		}

		ws.stats.attempts.Add(1)
		conn, err := ws.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				ws.setState(connClosed)
				return &TimeoutError{Op: "connection acquire", Err: ctx.Err()}
			}
			lastErr = err
			continue
		}

		ws.mu.Lock()
		ws.conn = conn
		ws.state = connOpen
		if ws.dialed {
			ws.stats.reconnects.Add(1)
		}
		ws.dialed = true
		ws.mu.Unlock()

		go ws.readLoop(conn)
		return nil
	}

	ws.setState(connClosed)
	return &ConnectionError{Attempts: ws.backoff.MaxAttempts, Err: lastErr}
}

// Reconnect drops the current transport, if any, and establishes a fresh
// one with the same backoff policy as the initial connection. Contexts
// registered on the old connection are invalidated: their server-side state
// is lost with the connection and they are not recreated. Register new
// contexts after a successful Reconnect.
func (ws *TTSWebsocket) Reconnect(ctx context.Context) error {
	ws.mu.Lock()
	conn := ws.conn
	ws.conn = nil
	if ws.state == connClosing {
		ws.mu.Unlock()
		return &TransportError{Op: "reconnect", Err: ErrClosed}
	}
	ws.state = connClosed
	ws.mu.Unlock()

	if conn != nil {
		conn.Close()
		ws.reg.invalidateAll(&TransportError{Op: "reconnect", Err: errNotOpen})
	}
	return ws.acquire(ctx)
}

func (ws *TTSWebsocket) setState(s connState) {
	ws.mu.Lock()
	ws.state = s
	ws.mu.Unlock()
}

func (ws *TTSWebsocket) dial(ctx context.Context) (*websocket.Conn, error) {
	cfg := ws.client.config
	url := cfg.wsURL + "/tts/websocket"

	headers := http.Header{}
	headers.Set("X-Api-Key", cfg.apiKey)
	headers.Set("Aurelia-Version", cfg.version)

	dialer := websocket.Dialer{
		HandshakeTimeout: cfg.httpClient.Timeout,
	}
	conn, resp, err := dialer.DialContext(ctx, url, headers)
	if err != nil {
		if resp != nil {
			return nil, &TransportError{
				Op:  "dial",
				Err: wrapError(err, "status "+resp.Status),
			}
		}
		return nil, &TransportError{Op: "dial", Err: err}
	}
	return conn, nil
}

// send serializes a request and writes it to the shared transport. Writes
// are serialized through a single writer lock; the caller decides whether a
// TransportError warrants a retry. A ctx deadline becomes the write
// deadline on the transport.
func (ws *TTSWebsocket) send(ctx context.Context, v any) error {
	if err := ctx.Err(); err != nil {
		return &TimeoutError{Op: "send", Err: err}
	}

	ws.mu.Lock()
	conn := ws.conn
	open := ws.state == connOpen
	ws.mu.Unlock()
	if !open || conn == nil {
		return &TransportError{Op: "send", Err: errNotOpen}
	}

	data, err := json.Marshal(v)
	if err != nil {
		return wrapError(err, "marshal request")
	}

	ws.writeMu.Lock()
	defer ws.writeMu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetWriteDeadline(deadline)
		defer conn.SetWriteDeadline(time.Time{})
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return &TransportError{Op: "send", Err: err}
	}
	return nil
}

// readLoop is the dispatch loop: the single reader of the transport. It
// routes each inbound frame to the owning context's delivery queue in
// arrival order and is the only writer of terminal-state transitions, so a
// caller cancelling and the server finishing cannot race on the same
// context.
func (ws *TTSWebsocket) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			ws.handleDisconnect(conn, err)
			return
		}
		ws.route(data)
	}
}

// handleDisconnect reacts to an unexpected connection loss: the transport is
// marked closed, every registered context is errored out at once so blocked
// Receive calls unblock, and the registry is cleared.
func (ws *TTSWebsocket) handleDisconnect(conn *websocket.Conn, err error) {
	ws.mu.Lock()
	if ws.conn != conn {
		// A newer connection replaced this one; stale reader exits quietly.
		ws.mu.Unlock()
		return
	}
	closing := ws.state == connClosing
	ws.conn = nil
	ws.state = connClosed
	ws.mu.Unlock()

	if closing {
		return
	}

	ws.logger.Warn("aurelia: connection lost", "error", err, "live_contexts", ws.reg.live())
	ws.reg.invalidateAll(&TransportError{Op: "read", Err: err})
}

// route demultiplexes one inbound message. Frames for unknown or retired
// contexts are dropped and counted, never surfaced to any caller.
func (ws *TTSWebsocket) route(data []byte) {
	frame, err := decodeFrame(data)
	if err != nil {
		var pe *ProtocolError
		if errors.As(err, &pe) && pe.ContextID != "" {
			if cs := ws.reg.lookup(pe.ContextID); cs != nil {
				cs.terminate(ContextErrored, pe)
				ws.reg.retire(cs)
				return
			}
		}
		ws.stats.framesDropped.Add(1)
		ws.logger.Debug("aurelia: dropping undecodable frame", "error", err)
		return
	}

	cs := ws.reg.lookup(frame.ContextID)
	if cs == nil {
		ws.stats.framesDropped.Add(1)
		ws.logger.Debug("aurelia: dropping frame for unknown context",
			"context_id", frame.ContextID, "type", frame.Type)
		return
	}

	// The server keeps emitting frames for the in-flight generation after a
	// cancel. Those must not surface as leftover audio: drop everything for
	// a cancelling context except the terminal frame that finalizes it.
	if cs.State() == ContextCancelling {
		switch frame.Type {
		case FrameDone, FrameError:
			cs.terminate(ContextDone, nil)
			ws.reg.retire(cs)
		default:
			ws.stats.framesDropped.Add(1)
		}
		return
	}

	switch frame.Type {
	case FrameChunk:
		cs.mu.Lock()
		if !cs.sentAt.IsZero() {
			ws.stats.recordLatency(time.Since(cs.sentAt))
			cs.sentAt = time.Time{}
		}
		cs.mu.Unlock()
		ws.deliver(cs, frame)

	case FrameFlushDone:
		cs.mu.Lock()
		regressed := frame.FlushID <= cs.lastFlushID
		if !regressed {
			cs.lastFlushID = frame.FlushID
		}
		cs.mu.Unlock()
		if regressed {
			cs.terminate(ContextErrored, &ProtocolError{
				ContextID: frame.ContextID,
				Reason:    "flush counter regressed",
			})
			ws.reg.retire(cs)
			return
		}
		ws.deliver(cs, frame)

	case FrameDone:
		ws.deliver(cs, frame)
		cs.terminate(ContextDone, nil)
		ws.reg.retire(cs)

	case FrameError:
		cs.terminate(ContextErrored, &ServerError{
			ContextID:  frame.ContextID,
			StatusCode: frame.StatusCode,
			Message:    frame.Message,
		})
		ws.reg.retire(cs)

	default:
		ws.deliver(cs, frame)
	}
}

// deliver enqueues a frame on a context's bounded delivery queue. A full
// queue applies backpressure to the dispatch loop until the context consumes
// or terminates. The frame is stamped with the delivery epoch observed
// atomically with the cancelling check, so a cancel that interleaves with
// the enqueue cannot let a pre-cancel frame surface.
func (ws *TTSWebsocket) deliver(cs *contextState, frame *Frame) {
	epoch, ok := cs.admit()
	if !ok {
		ws.stats.framesDropped.Add(1)
		return
	}
	select {
	case cs.queue <- queuedFrame{frame: frame, epoch: epoch}:
		ws.stats.framesDelivered.Add(1)
	case <-cs.done:
		ws.stats.framesDropped.Add(1)
	case <-ws.closeCh:
	}
}

// forceRetire finalizes a cancelled context whose terminal frame never
// arrived within the cancel timeout.
func (ws *TTSWebsocket) forceRetire(id string) {
	cs := ws.reg.lookup(id)
	if cs == nil || cs.State() != ContextCancelling {
		return
	}
	ws.logger.Debug("aurelia: cancel timeout, forcing context retirement", "context_id", id)
	cs.terminate(ContextDone, nil)
	ws.reg.retire(cs)
}
