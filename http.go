package aurelia

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Bytes synthesizes a transcript over plain HTTP and returns the complete
// audio. Simpler than the WebSocket path when latency does not matter and
// the transcript is known up front. Continuation, flush, and cancellation
// are WebSocket-only; the continuation flags on req are ignored here.
func (s *TTSService) Bytes(ctx context.Context, req *GenerationRequest) ([]byte, error) {
	cfg := s.client.config
	endpoint := cfg.baseURL + "/tts/bytes"

	body, err := json.Marshal(req)
	if err != nil {
		return nil, wrapError(err, "marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, wrapError(err, "create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Api-Key", cfg.apiKey)
	httpReq.Header.Set("Aurelia-Version", cfg.version)

	resp, err := cfg.httpClient.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Op: "post", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return nil, &ServerError{StatusCode: resp.StatusCode, Message: apiErr.Error}
		}
		return nil, &ServerError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("unexpected status %s", resp.Status),
		}
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: "read response", Err: err}
	}
	return audio, nil
}
