package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// ---------------------------------------------------------------------------
// Model Server Engine
// HTTP client for the local neural model server that hosts the Lezgian
// TTS checkpoint. The server takes raw text and returns float samples
// plus the sampling rate.
// ---------------------------------------------------------------------------

// ModelServerEngine handles text-to-speech via the local model server.
type ModelServerEngine struct {
	baseURL string
	client  *http.Client
}

// Ensure ModelServerEngine implements Engine at compile time.
var _ Engine = (*ModelServerEngine)(nil)

// NewModelServerEngine creates an engine pointed at the given server URL.
func NewModelServerEngine(baseURL string) *ModelServerEngine {
	return &ModelServerEngine{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Minute},
	}
}

type modelServerRequest struct {
	Text string `json:"text"`
}

type modelServerResponse struct {
	Audio        []float64 `json:"audio"`
	SamplingRate int       `json:"sampling_rate"`
}

// Synthesize converts text to speech via the model server.
// Implements the Engine interface.
func (e *ModelServerEngine) Synthesize(ctx context.Context, text string) (*Speech, error) {
	jsonData, err := json.Marshal(modelServerRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal model server request: %w", err)
	}

	url := e.baseURL + "/synthesize"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create model server request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	log.Printf("[ModelServer] Synthesizing (textLen=%d)", len(text))

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("model server request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("model server returned status %d: %s", resp.StatusCode, string(body))
	}

	var out modelServerResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode model server response: %w", err)
	}

	speech := &Speech{Samples: out.Audio, SampleRate: out.SamplingRate}
	if err := speech.Validate(); err != nil {
		return nil, err
	}

	return speech, nil
}
