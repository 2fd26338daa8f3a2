package synth

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// ---------------------------------------------------------------------------
// Engine — common interface for text-to-speech backends
// The model-server engine and the OpenAI engine both implement it so the
// coordinator can use whichever is configured without knowing the backend.
// ---------------------------------------------------------------------------

// ErrEmptyAudio is returned when a backend produces no usable samples.
var ErrEmptyAudio = errors.New("engine returned no usable audio")

// Speech is raw synthesized audio: mono PCM samples in [-1, 1] plus the
// sample rate they were generated at.
type Speech struct {
	Samples    []float64
	SampleRate int
}

// Engine is the boundary to the underlying neural TTS model. A nil
// result never accompanies a nil error.
type Engine interface {
	Synthesize(ctx context.Context, text string) (*Speech, error)
}

// Validate checks the engine output for the conditions every caller
// depends on: samples present and a positive sample rate. Any violation
// is treated as an engine failure.
func (s *Speech) Validate() error {
	if s == nil || len(s.Samples) == 0 {
		return ErrEmptyAudio
	}
	if s.SampleRate <= 0 {
		return fmt.Errorf("%w: invalid sample rate %d", ErrEmptyAudio, s.SampleRate)
	}
	return nil
}

// SaveToFile runs synthesis, WAV encoding, and the file write as one
// fallible unit. On error the caller must not assume any file was
// written; a partial file may exist and should be deleted.
func SaveToFile(ctx context.Context, engine Engine, text, path string) error {
	speech, err := engine.Synthesize(ctx, text)
	if err != nil {
		return fmt.Errorf("synthesis failed: %w", err)
	}

	if err := speech.Validate(); err != nil {
		return err
	}

	data := EncodeWAV(speech.Samples, speech.SampleRate)

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write audio file: %w", err)
	}

	return nil
}
