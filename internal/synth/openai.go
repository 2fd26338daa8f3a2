package synth

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/sashabaranov/go-openai"
)

// ---------------------------------------------------------------------------
// OpenAI Speech Engine
// Fallback backend used when no local model server is configured. OpenAI
// returns encoded WAV, which is decoded back to samples so the rest of
// the pipeline sees the same Speech shape as the model server produces.
// Note: OpenAI voices are not trained on Lezgian; this backend exists
// for development and demos without the local checkpoint.
// ---------------------------------------------------------------------------

// OpenAIEngine handles text-to-speech via the OpenAI speech API.
type OpenAIEngine struct {
	client *openai.Client
	voice  openai.SpeechVoice
}

// Ensure OpenAIEngine implements Engine at compile time.
var _ Engine = (*OpenAIEngine)(nil)

// NewOpenAIEngine creates an OpenAI speech engine.
func NewOpenAIEngine(apiKey, voice string) *OpenAIEngine {
	if voice == "" {
		voice = string(openai.VoiceAlloy)
	}
	return &OpenAIEngine{
		client: openai.NewClient(apiKey),
		voice:  openai.SpeechVoice(voice),
	}
}

// Synthesize converts text to speech via OpenAI.
// Implements the Engine interface.
func (e *OpenAIEngine) Synthesize(ctx context.Context, text string) (*Speech, error) {
	log.Printf("[OpenAI] Synthesizing (voice=%s, textLen=%d)", e.voice, len(text))

	resp, err := e.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.TTSModel1,
		Input:          text,
		Voice:          e.voice,
		ResponseFormat: openai.SpeechResponseFormatWav,
	})
	if err != nil {
		return nil, fmt.Errorf("openai speech request failed: %w", err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read openai speech response: %w", err)
	}

	samples, sampleRate, err := DecodeWAV(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode openai speech audio: %w", err)
	}

	speech := &Speech{Samples: samples, SampleRate: sampleRate}
	if err := speech.Validate(); err != nil {
		return nil, err
	}

	return speech, nil
}
