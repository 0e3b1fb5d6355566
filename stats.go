package aurelia

import (
	"sync"
	"sync/atomic"
	"time"
)

// Stats is a snapshot of aggregate session statistics.
type Stats struct {
	// Attempts counts connection attempts, successful or not.
	Attempts int64

	// Reconnects counts connections established after the first.
	Reconnects int64

	// FramesDelivered counts frames routed to a live context's queue.
	FramesDelivered int64

	// FramesDropped counts frames discarded by the dispatch loop: unknown
	// or retired context IDs, and late frames for cancelled contexts.
	FramesDropped int64

	// FirstChunkLatencies holds one sample per context: the time from the
	// first send to the first audio chunk.
	FirstChunkLatencies []time.Duration
}

type sessionStats struct {
	attempts        atomic.Int64
	reconnects      atomic.Int64
	framesDelivered atomic.Int64
	framesDropped   atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
}

func (s *sessionStats) recordLatency(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latencies = append(s.latencies, d)
}

func (s *sessionStats) snapshot() Stats {
	s.mu.Lock()
	latencies := make([]time.Duration, len(s.latencies))
	copy(latencies, s.latencies)
	s.mu.Unlock()

	return Stats{
		Attempts:            s.attempts.Load(),
		Reconnects:          s.reconnects.Load(),
		FramesDelivered:     s.framesDelivered.Load(),
		FramesDropped:       s.framesDropped.Load(),
		FirstChunkLatencies: latencies,
	}
}
