package synth

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errMockSynthesis = errors.New("mock synthesis error")

// mockEngine returns a canned Speech or a canned error.
type mockEngine struct {
	speech *Speech
	err    error
}

func (m *mockEngine) Synthesize(_ context.Context, _ string) (*Speech, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.speech, nil
}

func TestSpeechValidate(t *testing.T) {
	assert.ErrorIs(t, (*Speech)(nil).Validate(), ErrEmptyAudio)
	assert.ErrorIs(t, (&Speech{SampleRate: 16000}).Validate(), ErrEmptyAudio)
	assert.ErrorIs(t, (&Speech{Samples: []float64{0.1}}).Validate(), ErrEmptyAudio)
	assert.NoError(t, (&Speech{Samples: []float64{0.1}, SampleRate: 16000}).Validate())
}

func TestSaveToFileWritesPlayableWAV(t *testing.T) {
	engine := &mockEngine{speech: &Speech{Samples: []float64{0.1, -0.1, 0.2}, SampleRate: 16000}}
	path := filepath.Join(t.TempDir(), "out.wav")

	require.NoError(t, SaveToFile(context.Background(), engine, "салам", path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	samples, rate, err := DecodeWAV(data)
	require.NoError(t, err)
	assert.Equal(t, 16000, rate)
	assert.Len(t, samples, 3)
}

func TestSaveToFileEngineFailureWritesNothing(t *testing.T) {
	engine := &mockEngine{err: errMockSynthesis}
	path := filepath.Join(t.TempDir(), "out.wav")

	err := SaveToFile(context.Background(), engine, "салам", path)
	require.ErrorIs(t, err, errMockSynthesis)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestSaveToFileRejectsEmptyEngineOutput(t *testing.T) {
	engine := &mockEngine{speech: &Speech{Samples: nil, SampleRate: 16000}}
	path := filepath.Join(t.TempDir(), "out.wav")

	err := SaveToFile(context.Background(), engine, "салам", path)
	assert.ErrorIs(t, err, ErrEmptyAudio)
}
