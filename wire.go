package aurelia

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/goccy/go-yaml"
)

// ================== Requests ==================

// GenerationRequest is a speech generation instruction for one context.
type GenerationRequest struct {
	// ModelID is the ID of the synthesis model to use (required).
	ModelID string `json:"model_id" yaml:"model_id"`

	// Transcript is the text to synthesize. May be empty only as an
	// end-of-input signal with Continue=false.
	Transcript string `json:"transcript" yaml:"transcript"`

	// Voice specifies the voice (required).
	Voice Voice `json:"voice" yaml:"voice"`

	// OutputFormat describes the requested audio output (required).
	OutputFormat OutputFormat `json:"output_format" yaml:"output_format"`

	// Language is an optional language tag, e.g. "en".
	Language Language `json:"language,omitempty" yaml:"language,omitempty"`

	// Duration is the maximum duration of the audio in seconds. Usually
	// left zero.
	Duration float64 `json:"duration,omitempty" yaml:"duration,omitempty"`

	// ContextID targets an existing context. Left empty, the session
	// generates one.
	ContextID string `json:"context_id,omitempty" yaml:"context_id,omitempty"`

	// Continue indicates more text will follow in the same context,
	// preserving prosodic continuity across segments.
	Continue bool `json:"continue,omitempty" yaml:"continue,omitempty"`

	// Flush halts queued-but-not-started generation for the context while
	// letting in-flight generation finish. Answered by a flush_done frame.
	Flush bool `json:"flush,omitempty" yaml:"flush,omitempty"`

	// AddTimestamps requests word-level timestamps.
	AddTimestamps bool `json:"add_timestamps,omitempty" yaml:"add_timestamps,omitempty"`

	// AddPhonemeTimestamps requests phoneme-level timestamps.
	AddPhonemeTimestamps bool `json:"add_phoneme_timestamps,omitempty" yaml:"add_phoneme_timestamps,omitempty"`

	// Extra carries forward-compatible fields, inlined at the top level of
	// the wire message.
	Extra map[string]any `json:"-" yaml:"extra,omitempty"`
}

// MarshalJSON inlines Extra at the top level of the request object. Named
// fields win over Extra entries with the same key.
func (r *GenerationRequest) MarshalJSON() ([]byte, error) {
	type plain GenerationRequest
	data, err := json.Marshal((*plain)(r))
	if err != nil {
		return nil, err
	}
	if len(r.Extra) == 0 {
		return data, nil
	}
	merged := make(map[string]json.RawMessage, len(r.Extra)+8)
	for k, v := range r.Extra {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal extra field %q: %w", k, err)
		}
		merged[k] = raw
	}
	var named map[string]json.RawMessage
	if err := json.Unmarshal(data, &named); err != nil {
		return nil, err
	}
	for k, v := range named {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// ParseGenerationRequest parses a GenerationRequest from YAML data.
//
// Example request file:
//
//	model_id: aria-2
//	transcript: Hello, world!
//	voice:
//	  mode: id
//	  id: 694f9389-aac1-45b6-b726-9d9369183238
//	output_format:
//	  container: raw
//	  encoding: pcm_f32le
//	  sample_rate: 44100
func ParseGenerationRequest(data []byte) (*GenerationRequest, error) {
	var req GenerationRequest
	if err := yaml.Unmarshal(data, &req); err != nil {
		return nil, wrapError(err, "parse generation request")
	}
	return &req, nil
}

// cancelContextRequest is the control message that stops a context. It never
// carries a transcript.
type cancelContextRequest struct {
	ContextID string `json:"context_id"`
	Cancel    bool   `json:"cancel"`
}

// ================== Response Frames ==================

// FrameType tags a response frame variant.
type FrameType string

const (
	FrameChunk             FrameType = "chunk"
	FrameDone              FrameType = "done"
	FrameFlushDone         FrameType = "flush_done"
	FrameTimestamps        FrameType = "timestamps"
	FramePhonemeTimestamps FrameType = "phoneme_timestamps"
	FrameError             FrameType = "error"
)

// Frame is a single decoded response message from the server.
type Frame struct {
	Type      FrameType
	ContextID string

	// Audio is the decoded audio payload of a chunk frame.
	Audio []byte

	// StepTime is the server processing-time metric of a chunk frame, in
	// milliseconds.
	StepTime float64

	// FlushID is the per-context flush counter of a flush_done frame.
	FlushID int

	// WordTimestamps is set on timestamps frames.
	WordTimestamps *WordTimestamps

	// PhonemeTimestamps is set on phoneme_timestamps frames.
	PhonemeTimestamps *PhonemeTimestamps

	// StatusCode and Message describe an error frame.
	StatusCode int
	Message    string
}

// Terminal reports whether the frame ends its context's lifecycle.
func (f *Frame) Terminal() bool {
	return f.Type == FrameDone || f.Type == FrameError
}

// wireFrame is the on-the-wire shape of a response message.
type wireFrame struct {
	Type              FrameType          `json:"type"`
	ContextID         string             `json:"context_id"`
	Data              string             `json:"data"`
	StepTime          float64            `json:"step_time"`
	FlushDone         bool               `json:"flush_done"`
	FlushID           int                `json:"flush_id"`
	WordTimestamps    *WordTimestamps    `json:"word_timestamps"`
	PhonemeTimestamps *PhonemeTimestamps `json:"phoneme_timestamps"`
	Error             string             `json:"error"`
	StatusCode        int                `json:"status_code"`
	Done              bool               `json:"done"`
}

// decodeFrame parses a raw WebSocket text message into a Frame.
func decodeFrame(data []byte) (*Frame, error) {
	var wf wireFrame
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, &ProtocolError{Reason: fmt.Sprintf("malformed frame: %v", err)}
	}

	frame := &Frame{
		Type:      wf.Type,
		ContextID: wf.ContextID,
	}

	switch wf.Type {
	case FrameChunk:
		audio, err := base64.StdEncoding.DecodeString(wf.Data)
		if err != nil {
			return nil, &ProtocolError{
				ContextID: wf.ContextID,
				Reason:    fmt.Sprintf("invalid chunk payload: %v", err),
			}
		}
		frame.Audio = audio
		frame.StepTime = wf.StepTime

	case FrameDone:

	case FrameFlushDone:
		frame.FlushID = wf.FlushID

	case FrameTimestamps:
		if wf.WordTimestamps == nil {
			return nil, &ProtocolError{ContextID: wf.ContextID, Reason: "timestamps frame without payload"}
		}
		if err := validateTimestamps(len(wf.WordTimestamps.Words), wf.WordTimestamps.Start, wf.WordTimestamps.End); err != nil {
			return nil, &ProtocolError{ContextID: wf.ContextID, Reason: err.Error()}
		}
		frame.WordTimestamps = wf.WordTimestamps

	case FramePhonemeTimestamps:
		if wf.PhonemeTimestamps == nil {
			return nil, &ProtocolError{ContextID: wf.ContextID, Reason: "phoneme_timestamps frame without payload"}
		}
		if err := validateTimestamps(len(wf.PhonemeTimestamps.Phonemes), wf.PhonemeTimestamps.Start, wf.PhonemeTimestamps.End); err != nil {
			return nil, &ProtocolError{ContextID: wf.ContextID, Reason: err.Error()}
		}
		frame.PhonemeTimestamps = wf.PhonemeTimestamps

	case FrameError:
		frame.StatusCode = wf.StatusCode
		frame.Message = wf.Error

	default:
		return nil, &ProtocolError{
			ContextID: wf.ContextID,
			Reason:    fmt.Sprintf("unknown frame type %q", wf.Type),
		}
	}

	return frame, nil
}

// validateTimestamps checks the parallel-array invariants of a timestamps
// payload: equal lengths, start[i] <= end[i], and end[i] <= start[i+1].
func validateTimestamps(tokens int, start, end []float64) error {
	if len(start) != tokens || len(end) != tokens {
		return fmt.Errorf("timestamp arrays not parallel: %d tokens, %d start, %d end",
			tokens, len(start), len(end))
	}
	for i := 0; i < tokens; i++ {
		if start[i] > end[i] {
			return fmt.Errorf("timestamp %d: start %.3f after end %.3f", i, start[i], end[i])
		}
		if i+1 < tokens && end[i] > start[i+1] {
			return fmt.Errorf("timestamp %d: end %.3f after next start %.3f", i, end[i], start[i+1])
		}
	}
	return nil
}
