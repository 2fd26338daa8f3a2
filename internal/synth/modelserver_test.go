package synth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelServerEngineSynthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "POST", r.Method)
		require.Equal(t, "/synthesize", r.URL.Path)

		var req modelServerRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "чан диде", req.Text)

		json.NewEncoder(w).Encode(modelServerResponse{
			Audio:        []float64{0.1, 0.2, -0.1},
			SamplingRate: 16000,
		})
	}))
	defer srv.Close()

	engine := NewModelServerEngine(srv.URL)
	speech, err := engine.Synthesize(context.Background(), "чан диде")
	require.NoError(t, err)
	assert.Equal(t, 16000, speech.SampleRate)
	assert.Len(t, speech.Samples, 3)
}

func TestModelServerEngineServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model crashed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	engine := NewModelServerEngine(srv.URL)
	_, err := engine.Synthesize(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestModelServerEngineEmptyAudioIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(modelServerResponse{Audio: nil, SamplingRate: 16000})
	}))
	defer srv.Close()

	engine := NewModelServerEngine(srv.URL)
	_, err := engine.Synthesize(context.Background(), "text")
	assert.ErrorIs(t, err, ErrEmptyAudio)
}
