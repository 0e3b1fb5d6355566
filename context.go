package aurelia

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"time"
)

// TTSContext is the handle for one generation context: a logical,
// independently cancelable synthesis session that may span multiple text
// segments under continuation semantics, multiplexed with other contexts
// over the same TTSWebsocket.
//
// A TTSContext may be fed from one goroutine while another consumes Receive,
// but at most one receiver should drain it at a time: concurrent receivers
// split the frame stream between them.
type TTSContext struct {
	id string
	ws *TTSWebsocket
	cs *contextState

	mu      sync.Mutex
	lastReq *GenerationRequest
}

// ID returns the context identifier.
func (c *TTSContext) ID() string { return c.id }

// State returns the current lifecycle state.
func (c *TTSContext) State() ContextState { return c.cs.State() }

// IsClosed reports whether the context reached a terminal state.
func (c *TTSContext) IsClosed() bool {
	s := c.cs.State()
	return s == ContextDone || s == ContextErrored
}

// Send enqueues a generation request for this context on the shared
// connection. With req.Continue set, more text may follow in the same
// context and the server preserves prosodic continuity across segments.
//
// An empty transcript is only valid as an end-of-input signal with
// Continue=false; prefer NoMoreInputs for that.
func (c *TTSContext) Send(ctx context.Context, req *GenerationRequest) error {
	if req.ContextID != "" && req.ContextID != c.id {
		return fmt.Errorf("aurelia: request context ID %q does not match context %q", req.ContextID, c.id)
	}
	if req.Transcript == "" && req.Continue {
		return fmt.Errorf("aurelia: empty transcript is only valid as end-of-input with Continue=false")
	}
	if c.IsClosed() {
		return fmt.Errorf("aurelia: context %s is %s", c.id, c.cs.State())
	}

	r := *req
	r.ContextID = c.id

	c.mu.Lock()
	base := r
	c.lastReq = &base
	c.mu.Unlock()

	c.cs.mu.Lock()
	if c.cs.sentAt.IsZero() {
		c.cs.sentAt = time.Now()
	}
	c.cs.mu.Unlock()

	return c.ws.send(ctx, &r)
}

// NoMoreInputs signals that no further text will arrive for this context:
// an empty transcript with Continue=false. The server finishes synthesis
// and ends the context with a done frame.
func (c *TTSContext) NoMoreInputs(ctx context.Context) error {
	base, err := c.baseRequest()
	if err != nil {
		return err
	}
	base.Transcript = ""
	base.Continue = false
	base.Flush = false
	return c.ws.send(ctx, base)
}

// Flush halts queued-but-not-started generation for this context while
// letting in-flight generation finish. It returns a receiver that yields
// frames up to and including the flush acknowledgment; afterwards the
// context is Open again and accepts further sends with Continue=true.
func (c *TTSContext) Flush(ctx context.Context) (iter.Seq2[*Frame, error], error) {
	base, err := c.baseRequest()
	if err != nil {
		return nil, err
	}
	base.Transcript = ""
	base.Continue = true
	base.Flush = true

	c.cs.setState(ContextFlushing)
	if err := c.ws.send(ctx, base); err != nil {
		c.cs.setState(ContextOpen)
		return nil, err
	}
	return c.receive(ctx, true), nil
}

// Cancel stops the context: it sends the cancel control message, moves the
// local state to Cancelling, and purges every already-buffered frame from
// the delivery queue. Cancellation is immediate from the caller's view; the
// server still finishes the in-flight generation, and those trailing frames
// are dropped by the dispatch loop rather than delivered. A later done frame
// finalizes retirement; if none arrives within the cancel timeout the
// context is forcibly retired.
func (c *TTSContext) Cancel(ctx context.Context) error {
	if c.IsClosed() {
		return nil
	}

	sendErr := c.ws.send(ctx, &cancelContextRequest{ContextID: c.id, Cancel: true})

	c.cs.setState(ContextCancelling)
	c.cs.purge()

	timeout := c.ws.client.config.cancelTimeout
	time.AfterFunc(timeout, func() { c.ws.forceRetire(c.id) })

	return sendErr
}

// Receive yields delivered frames in server emission order. It blocks while
// the queue is empty and the context is not yet terminal, and ends once a
// done frame has been yielded or, after an error, with the context's
// terminal error. An expired or cancelled ctx yields a TimeoutError wrapping
// ctx.Err() and leaves the context state unchanged.
func (c *TTSContext) Receive(ctx context.Context) iter.Seq2[*Frame, error] {
	return c.receive(ctx, false)
}

func (c *TTSContext) baseRequest() (*GenerationRequest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastReq == nil {
		return nil, fmt.Errorf("aurelia: context %s has no prior request", c.id)
	}
	base := *c.lastReq
	return &base, nil
}

func (c *TTSContext) receive(ctx context.Context, untilFlush bool) iter.Seq2[*Frame, error] {
	cs := c.cs
	return func(yield func(*Frame, error) bool) {
		emit := func(qf queuedFrame) (more bool) {
			if cs.stale(qf.epoch) {
				// Admitted before a cancel purge, enqueued after it.
				return true
			}
			f := qf.frame
			if !yield(f, nil) {
				return false
			}
			if f.Terminal() {
				return false
			}
			if untilFlush && f.Type == FrameFlushDone {
				cs.setState(ContextOpen)
				return false
			}
			return true
		}

		for {
			// Drain buffered frames before considering termination, so a
			// terminal transition never hides frames queued ahead of it.
			select {
			case f := <-cs.queue:
				if !emit(f) {
					return
				}
				continue
			default:
			}

			select {
			case f := <-cs.queue:
				if !emit(f) {
					return
				}
			case <-cs.done:
				for {
					select {
					case f := <-cs.queue:
						if !emit(f) {
							return
						}
					default:
						if err := cs.terminalErr(); err != nil {
							yield(nil, err)
						}
						return
					}
				}
			case <-ctx.Done():
				yield(nil, &TimeoutError{Op: "receive on context " + c.id, Err: ctx.Err()})
				return
			}
		}
	}
}
