package aurelia

import (
	"context"
	"iter"
)

// TTSService provides speech synthesis.
type TTSService struct {
	client *Client
}

func newTTSService(c *Client) *TTSService {
	return &TTSService{client: c}
}

// SpeakOutput is the accumulated result of a non-streaming synthesis call.
type SpeakOutput struct {
	// Audio is the concatenated audio of every chunk frame.
	Audio []byte

	// ContextID is the context the audio was generated under.
	ContextID string

	// WordTimestamps merges the word timing of every timestamps frame.
	// Only set when the request asked for timestamps.
	WordTimestamps *WordTimestamps

	// PhonemeTimestamps merges the phoneme timing of every
	// phoneme_timestamps frame.
	PhonemeTimestamps *PhonemeTimestamps
}

// Speak synthesizes a transcript over a dedicated connection and streams
// response frames until the terminal done frame. The sequence is finite and
// not restartable.
//
// Example:
//
//	for frame, err := range client.TTS.Speak(ctx, req) {
//	    if err != nil {
//	        return err
//	    }
//	    if frame.Type == aurelia.FrameChunk {
//	        player.Write(frame.Audio)
//	    }
//	}
//
// For multiplexing several utterances over one connection, or for
// incremental text input, use Websocket and Context instead.
func (s *TTSService) Speak(ctx context.Context, req *GenerationRequest) iter.Seq2[*Frame, error] {
	return func(yield func(*Frame, error) bool) {
		ws, err := s.Websocket(ctx)
		if err != nil {
			yield(nil, err)
			return
		}
		defer ws.Close()

		tctx, err := ws.Context(req.ContextID)
		if err != nil {
			yield(nil, err)
			return
		}
		if err := tctx.Send(ctx, req); err != nil {
			yield(nil, err)
			return
		}

		for frame, err := range tctx.Receive(ctx) {
			if !yield(frame, err) {
				return
			}
			if err != nil {
				return
			}
		}
	}
}

// SpeakCollect synthesizes a transcript and accumulates the streamed frames
// into a single output.
func (s *TTSService) SpeakCollect(ctx context.Context, req *GenerationRequest) (*SpeakOutput, error) {
	out := &SpeakOutput{ContextID: req.ContextID}
	for frame, err := range s.Speak(ctx, req) {
		if err != nil {
			return nil, err
		}
		out.accumulate(frame)
	}
	return out, nil
}

// SpeakWithRetry runs the full send/receive cycle, retrying transport-level
// failures with exponential backoff up to maxAttempts (the client default if
// maxAttempts <= 0). Every attempt dials a fresh connection, so a retry
// never reuses a transport that already failed. Application-level server
// errors are terminal for the request and surface immediately: the server
// has rejected it deterministically and a replay would fail the same way.
func (s *TTSService) SpeakWithRetry(ctx context.Context, req *GenerationRequest, maxAttempts int) (*SpeakOutput, error) {
	if maxAttempts <= 0 {
		maxAttempts = s.client.config.maxRetries
	}
	policy := backoffPolicy{
		Base:        s.client.config.retryBase,
		MaxAttempts: maxAttempts,
		Jitter:      defaultRetryJitter,
	}

	var lastErr error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			s.client.config.logger.Warn("aurelia: retrying synthesis",
				"attempt", attempt+1,
				"max_attempts", policy.MaxAttempts,
				"error", lastErr)
			if err := policy.wait(ctx, attempt-1); err != nil {
				return nil, err
			}
		}

		out, err := s.SpeakCollect(ctx, req)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !retryable(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

func (o *SpeakOutput) accumulate(frame *Frame) {
	switch frame.Type {
	case FrameChunk:
		o.Audio = append(o.Audio, frame.Audio...)
		if o.ContextID == "" {
			o.ContextID = frame.ContextID
		}
	case FrameTimestamps:
		if o.WordTimestamps == nil {
			o.WordTimestamps = &WordTimestamps{}
		}
		o.WordTimestamps.Words = append(o.WordTimestamps.Words, frame.WordTimestamps.Words...)
		o.WordTimestamps.Start = append(o.WordTimestamps.Start, frame.WordTimestamps.Start...)
		o.WordTimestamps.End = append(o.WordTimestamps.End, frame.WordTimestamps.End...)
	case FramePhonemeTimestamps:
		if o.PhonemeTimestamps == nil {
			o.PhonemeTimestamps = &PhonemeTimestamps{}
		}
		o.PhonemeTimestamps.Phonemes = append(o.PhonemeTimestamps.Phonemes, frame.PhonemeTimestamps.Phonemes...)
		o.PhonemeTimestamps.Start = append(o.PhonemeTimestamps.Start, frame.PhonemeTimestamps.Start...)
		o.PhonemeTimestamps.End = append(o.PhonemeTimestamps.End, frame.PhonemeTimestamps.End...)
	}
}
