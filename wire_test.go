package aurelia

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeFrame_Chunk(t *testing.T) {
	audio := []byte{0x01, 0x02, 0x03, 0x04}
	msg, _ := json.Marshal(map[string]any{
		"type":       "chunk",
		"context_id": "c1",
		"data":       base64.StdEncoding.EncodeToString(audio),
		"step_time":  12.5,
	})

	frame, err := decodeFrame(msg)
	if err != nil {
		t.Fatalf("decodeFrame: %v", err)
	}
	if frame.Type != FrameChunk {
		t.Errorf("Type = %q, want %q", frame.Type, FrameChunk)
	}
	if frame.ContextID != "c1" {
		t.Errorf("ContextID = %q, want %q", frame.ContextID, "c1")
	}
	if string(frame.Audio) != string(audio) {
		t.Errorf("Audio = %v, want %v", frame.Audio, audio)
	}
	if frame.StepTime != 12.5 {
		t.Errorf("StepTime = %v, want 12.5", frame.StepTime)
	}
	if frame.Terminal() {
		t.Error("chunk frame should not be terminal")
	}
}

func TestDecodeFrame_Done(t *testing.T) {
	frame, err := decodeFrame([]byte(`{"type":"done","context_id":"c1","done":true}`))
	if err != nil {
		t.Fatalf("decodeFrame: %v", err)
	}
	if frame.Type != FrameDone {
		t.Errorf("Type = %q, want %q", frame.Type, FrameDone)
	}
	if !frame.Terminal() {
		t.Error("done frame should be terminal")
	}
}

func TestDecodeFrame_FlushDone(t *testing.T) {
	frame, err := decodeFrame([]byte(`{"type":"flush_done","context_id":"c1","flush_done":true,"flush_id":2}`))
	if err != nil {
		t.Fatalf("decodeFrame: %v", err)
	}
	if frame.Type != FrameFlushDone {
		t.Errorf("Type = %q, want %q", frame.Type, FrameFlushDone)
	}
	if frame.FlushID != 2 {
		t.Errorf("FlushID = %d, want 2", frame.FlushID)
	}
	if frame.Terminal() {
		t.Error("flush_done frame must not be terminal")
	}
}

func TestDecodeFrame_Timestamps(t *testing.T) {
	msg := []byte(`{
		"type": "timestamps",
		"context_id": "c1",
		"word_timestamps": {
			"words": ["hello", "world"],
			"start": [0.0, 0.5],
			"end": [0.4, 0.9]
		}
	}`)
	frame, err := decodeFrame(msg)
	if err != nil {
		t.Fatalf("decodeFrame: %v", err)
	}
	if frame.WordTimestamps == nil {
		t.Fatal("WordTimestamps not set")
	}
	if got := frame.WordTimestamps.Words; len(got) != 2 || got[0] != "hello" {
		t.Errorf("Words = %v", got)
	}
}

func TestDecodeFrame_TimestampViolations(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"unequal lengths", `{"words":["a","b"],"start":[0.0],"end":[0.1,0.2]}`},
		{"start after end", `{"words":["a"],"start":[0.5],"end":[0.1]}`},
		{"overlapping tokens", `{"words":["a","b"],"start":[0.0,0.2],"end":[0.4,0.6]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg := []byte(`{"type":"timestamps","context_id":"c1","word_timestamps":` + tc.body + `}`)
			_, err := decodeFrame(msg)
			var pe *ProtocolError
			if !errors.As(err, &pe) {
				t.Fatalf("err = %v, want ProtocolError", err)
			}
			if pe.ContextID != "c1" {
				t.Errorf("ContextID = %q, want %q", pe.ContextID, "c1")
			}
		})
	}
}

func TestDecodeFrame_Error(t *testing.T) {
	frame, err := decodeFrame([]byte(`{"type":"error","context_id":"c1","error":"bad voice","status_code":400}`))
	if err != nil {
		t.Fatalf("decodeFrame: %v", err)
	}
	if frame.Message != "bad voice" || frame.StatusCode != 400 {
		t.Errorf("Message = %q, StatusCode = %d", frame.Message, frame.StatusCode)
	}
	if !frame.Terminal() {
		t.Error("error frame should be terminal")
	}
}

func TestDecodeFrame_UnknownType(t *testing.T) {
	_, err := decodeFrame([]byte(`{"type":"telemetry","context_id":"c1"}`))
	var pe *ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want ProtocolError", err)
	}
}

func TestGenerationRequest_MarshalInlinesExtra(t *testing.T) {
	req := &GenerationRequest{
		ModelID:    "aria-2",
		Transcript: "hi",
		Voice:      Voice{Mode: VoiceModeID, ID: "v1"},
		OutputFormat: OutputFormat{
			Container:  ContainerRaw,
			Encoding:   EncodingPCMF32LE,
			SampleRate: 44100,
		},
		ContextID: "c1",
		Continue:  true,
		Extra: map[string]any{
			"speed":      "fast",
			"transcript": "should lose to the named field",
		},
	}

	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["speed"] != "fast" {
		t.Errorf("extra field speed = %v, want %q", got["speed"], "fast")
	}
	if got["transcript"] != "hi" {
		t.Errorf("transcript = %v, named field must win over extra", got["transcript"])
	}
	if got["continue"] != true {
		t.Errorf("continue = %v, want true", got["continue"])
	}
	if _, ok := got["flush"]; ok {
		t.Error("unset flush flag should be omitted")
	}
}

func TestCancelContextRequest_Marshal(t *testing.T) {
	data, err := json.Marshal(&cancelContextRequest{ContextID: "c1", Cancel: true})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["context_id"] != "c1" || got["cancel"] != true {
		t.Errorf("cancel request = %v", got)
	}
	if _, ok := got["transcript"]; ok {
		t.Error("cancel request must not carry a transcript")
	}
}

func TestParseGenerationRequest_YAML(t *testing.T) {
	src := []byte(`
model_id: aria-2
transcript: Hello, world!
voice:
  mode: id
  id: v42
output_format:
  container: raw
  encoding: pcm_f32le
  sample_rate: 44100
language: en
`)
	req, err := ParseGenerationRequest(src)
	if err != nil {
		t.Fatalf("ParseGenerationRequest: %v", err)
	}
	if req.ModelID != "aria-2" {
		t.Errorf("ModelID = %q, want %q", req.ModelID, "aria-2")
	}
	if req.Voice.ID != "v42" || req.Voice.Mode != VoiceModeID {
		t.Errorf("Voice = %+v", req.Voice)
	}
	if req.OutputFormat.SampleRate != 44100 {
		t.Errorf("SampleRate = %d, want 44100", req.OutputFormat.SampleRate)
	}
	if req.Language != LanguageEN {
		t.Errorf("Language = %q, want %q", req.Language, LanguageEN)
	}
}
