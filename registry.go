package aurelia

import (
	"sync"
	"time"
)

// ContextState represents the lifecycle state of a generation context.
type ContextState string

const (
	ContextOpen       ContextState = "open"
	ContextFlushing   ContextState = "flushing"
	ContextCancelling ContextState = "cancelling"
	ContextDone       ContextState = "done"
	ContextErrored    ContextState = "errored"
)

// queuedFrame carries a frame through the delivery queue together with the
// delivery epoch it was admitted under. A cancel purge advances the epoch,
// so a frame admitted before the purge but enqueued after it is recognizably
// stale and dropped by the receiver instead of surfacing as leftover audio.
type queuedFrame struct {
	frame *Frame
	epoch uint64
}

// contextState is the registry-side record of one live context: its state
// machine and its delivery queue. The dispatch loop is the producer of the
// queue and the sole writer of terminal transitions; context handles consume.
type contextState struct {
	id    string
	queue chan queuedFrame
	done  chan struct{}

	mu          sync.Mutex
	state       ContextState
	epoch       uint64
	termErr     error
	lastFlushID int
	sentAt      time.Time
}

func newContextState(id string, queueSize int) *contextState {
	return &contextState{
		id:    id,
		queue: make(chan queuedFrame, queueSize),
		done:  make(chan struct{}),
		state: ContextOpen,
	}
}

// admit returns the delivery epoch for a new frame, or false while the
// context is cancelling. State check and epoch read are one critical
// section, so a cancel cannot slip between them.
func (cs *contextState) admit() (uint64, bool) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.state == ContextCancelling {
		return 0, false
	}
	return cs.epoch, true
}

// stale reports whether a dequeued frame predates the latest purge.
func (cs *contextState) stale(epoch uint64) bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return epoch < cs.epoch
}

// State returns the current lifecycle state.
func (cs *contextState) State() ContextState {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.state
}

func (cs *contextState) setState(s ContextState) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.state == ContextDone || cs.state == ContextErrored {
		return
	}
	cs.state = s
}

// terminate moves the context to a terminal state and unblocks all pending
// receives. Idempotent: the first terminal transition wins.
func (cs *contextState) terminate(s ContextState, err error) {
	cs.mu.Lock()
	if cs.state == ContextDone || cs.state == ContextErrored {
		cs.mu.Unlock()
		return
	}
	cs.state = s
	cs.termErr = err
	cs.mu.Unlock()
	close(cs.done)
}

func (cs *contextState) terminalErr() error {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.termErr
}

// purge advances the delivery epoch and discards every frame already
// buffered in the delivery queue. Frames admitted under an earlier epoch
// that land after the drain are dropped by the receiver.
func (cs *contextState) purge() {
	cs.mu.Lock()
	cs.epoch++
	cs.mu.Unlock()
	for {
		select {
		case <-cs.queue:
		default:
			return
		}
	}
}

// registry is the authoritative map from context ID to local state. Retired
// IDs leave a tombstone for a grace window so that a straggling in-flight
// frame cannot be routed to an accidental reuse of the same ID.
type registry struct {
	mu         sync.Mutex
	contexts   map[string]*contextState
	tombstones map[string]time.Time
	window     time.Duration
	queueSize  int
}

func newRegistry(window time.Duration, queueSize int) *registry {
	return &registry{
		contexts:   make(map[string]*contextState),
		tombstones: make(map[string]time.Time),
		window:     window,
		queueSize:  queueSize,
	}
}

// register creates state for a new context ID. It fails with
// DuplicateContextError while the ID is live or inside its tombstone window.
func (r *registry) register(id string) (*contextState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expireTombstonesLocked()

	if _, ok := r.contexts[id]; ok {
		return nil, &DuplicateContextError{ContextID: id}
	}
	if _, ok := r.tombstones[id]; ok {
		return nil, &DuplicateContextError{ContextID: id}
	}

	cs := newContextState(id, r.queueSize)
	r.contexts[id] = cs
	return cs, nil
}

// lookup returns the live state for an ID, or nil.
func (r *registry) lookup(id string) *contextState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.contexts[id]
}

// retire removes a context after its terminal transition, leaving a
// tombstone. The state pointer is compared so that retiring a finished
// context can never evict a fresh registration that already reused the ID.
func (r *registry) retire(cs *contextState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.contexts[cs.id] != cs {
		return
	}
	delete(r.contexts, cs.id)
	r.tombstones[cs.id] = time.Now().Add(r.window)
	r.expireTombstonesLocked()
}

// invalidateAll errors out every live context at once and clears the
// registry. Used on connection loss: server-side context state is gone, so
// no tombstones are kept.
func (r *registry) invalidateAll(err error) {
	r.mu.Lock()
	contexts := r.contexts
	r.contexts = make(map[string]*contextState)
	r.tombstones = make(map[string]time.Time)
	r.mu.Unlock()

	for _, cs := range contexts {
		cs.terminate(ContextErrored, err)
	}
}

// live returns the number of registered contexts.
func (r *registry) live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.contexts)
}

func (r *registry) expireTombstonesLocked() {
	now := time.Now()
	for id, deadline := range r.tombstones {
		if now.After(deadline) {
			delete(r.tombstones, id)
		}
	}
}
