package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vazhid/lezgian-tts/internal/audiostore"
	"github.com/Vazhid/lezgian-tts/internal/models"
	"github.com/Vazhid/lezgian-tts/internal/synth"
)

var errMockDB = errors.New("mock db error")

// mockGateway records every bookkeeping call the coordinator makes.
type mockGateway struct {
	mu sync.Mutex

	nextRequestID int64
	failCreate    bool

	statuses map[int64][]models.RequestStatus
	results  []*models.SynthesisResult
}

func newMockGateway() *mockGateway {
	return &mockGateway{nextRequestID: 100, statuses: make(map[int64][]models.RequestStatus)}
}

func (m *mockGateway) CreateSynthesisRequest(_ context.Context, _ int64, _, _ string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate {
		return 0, errMockDB
	}
	m.nextRequestID++
	return m.nextRequestID, nil
}

func (m *mockGateway) MarkRequestProcessing(_ context.Context, id int64, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[id] = append(m.statuses[id], models.RequestStatusProcessing)
	return nil
}

func (m *mockGateway) MarkRequestFinished(_ context.Context, id int64, status models.RequestStatus, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[id] = append(m.statuses[id], status)
	return nil
}

func (m *mockGateway) CreateSynthesisResult(_ context.Context, result *models.SynthesisResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, result)
	return nil
}

func (m *mockGateway) lastStatus(id int64) models.RequestStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.statuses[id]
	if len(s) == 0 {
		return ""
	}
	return s[len(s)-1]
}

func (m *mockGateway) resultCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.results)
}

// mockEngine produces a short fixed sample buffer, or fails, or panics.
type mockEngine struct {
	fail    bool
	panics  bool
	started chan struct{} // closed once, when the first job reaches the engine
	release chan struct{} // when non-nil, Synthesize blocks until closed
	once    sync.Once
}

func (e *mockEngine) Synthesize(ctx context.Context, _ string) (*synth.Speech, error) {
	if e.started != nil {
		e.once.Do(func() { close(e.started) })
	}
	if e.release != nil {
		select {
		case <-e.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if e.panics {
		panic("model blew up")
	}
	if e.fail {
		return nil, synth.ErrEmptyAudio
	}
	return &synth.Speech{Samples: []float64{0.1, -0.1, 0.2, -0.2}, SampleRate: 16000}, nil
}

func startCoordinator(t *testing.T, gateway Gateway, engine synth.Engine, opts Options) (*Coordinator, *audiostore.Store) {
	t.Helper()

	store, err := audiostore.New(t.TempDir())
	require.NoError(t, err)

	c := New(gateway, store, engine, opts)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return c, store
}

// waitTerminal polls until the task leaves the processing state and
// returns the terminal state it observed.
func waitTerminal(t *testing.T, c *Coordinator, taskID string) TaskState {
	t.Helper()

	var state TaskState
	require.Eventually(t, func() bool {
		state = c.Poll(taskID)
		return state.Status != TaskStatusProcessing
	}, 5*time.Second, 5*time.Millisecond)
	return state
}

func TestSubmitReturnsImmediatelyAndPollStartsProcessing(t *testing.T) {
	gateway := newMockGateway()
	engine := &mockEngine{release: make(chan struct{})}
	c, _ := startCoordinator(t, gateway, engine, Options{Workers: 1, QueueSize: 4})

	begin := time.Now()
	taskID, err := c.Submit(context.Background(), "салам", "lez", 1)
	require.NoError(t, err)
	require.NotEmpty(t, taskID)
	assert.Less(t, time.Since(begin), time.Second, "Submit must not wait for synthesis")

	// Synthesis is still blocked, so the task reads as processing.
	assert.Equal(t, TaskStatusProcessing, c.Poll(taskID).Status)

	// Unknown ids read as processing too.
	assert.Equal(t, TaskStatusProcessing, c.Poll("no-such-task").Status)

	close(engine.release)
}

func TestSuccessfulJobLifecycle(t *testing.T) {
	gateway := newMockGateway()
	c, store := startCoordinator(t, gateway, &mockEngine{}, Options{Workers: 2, QueueSize: 4})

	taskID, err := c.Submit(context.Background(), "салам", "lez", 1)
	require.NoError(t, err)

	state := waitTerminal(t, c, taskID)
	require.Equal(t, TaskStatusSuccess, state.Status)
	assert.NotEmpty(t, state.AudioData)
	assert.Greater(t, state.DurationSeconds, 0.0)
	assert.Equal(t, taskID+".wav", state.AudioPath)

	// The artifact on disk is byte-identical to the delivered payload.
	onDisk, err := store.Read(state.AudioPath)
	require.NoError(t, err)
	assert.Equal(t, onDisk, state.AudioData)

	// Exactly one result row, with character count in runes.
	require.Equal(t, 1, gateway.resultCount())
	result := gateway.results[0]
	assert.Equal(t, taskID+".wav", result.AudioFilePath)
	assert.Equal(t, 5, result.CharactersProcessed)
	assert.Greater(t, result.DurationSeconds, 0.0)
	assert.Equal(t, models.RequestStatusSuccess, gateway.lastStatus(result.RequestID))

	// The success payload is delivered at most once.
	assert.Equal(t, TaskStatusProcessing, c.Poll(taskID).Status)
}

func TestFailedJobLifecycle(t *testing.T) {
	gateway := newMockGateway()
	c, store := startCoordinator(t, gateway, &mockEngine{fail: true}, Options{Workers: 1, QueueSize: 4})

	taskID, err := c.Submit(context.Background(), "салам", "lez", 1)
	require.NoError(t, err)

	state := waitTerminal(t, c, taskID)
	require.Equal(t, TaskStatusError, state.Status)
	assert.Equal(t, "synthesis failed", state.Error)

	// No result row, no partial artifact, durable status is error.
	assert.Equal(t, 0, gateway.resultCount())
	assert.False(t, store.Exists(taskID+".wav"))
	assert.Equal(t, models.RequestStatusError, gateway.lastStatus(101))

	// Error states stay pollable until reaped.
	assert.Equal(t, TaskStatusError, c.Poll(taskID).Status)
	assert.Equal(t, TaskStatusError, c.Poll(taskID).Status)
}

func TestPanicInJobIsContainedAndWorkerSurvives(t *testing.T) {
	gateway := newMockGateway()
	engine := &mockEngine{panics: true}
	c, _ := startCoordinator(t, gateway, engine, Options{Workers: 1, QueueSize: 4})

	taskID, err := c.Submit(context.Background(), "салам", "lez", 1)
	require.NoError(t, err)

	state := waitTerminal(t, c, taskID)
	require.Equal(t, TaskStatusError, state.Status)
	assert.Contains(t, state.Error, "panic")

	// The single worker must still be alive to run the next job.
	engine.panics = false
	taskID2, err := c.Submit(context.Background(), "салам", "lez", 1)
	require.NoError(t, err)
	assert.Equal(t, TaskStatusSuccess, waitTerminal(t, c, taskID2).Status)
}

func TestDurableInsertFailureDoesNotBlockSynthesis(t *testing.T) {
	gateway := newMockGateway()
	gateway.failCreate = true
	c, _ := startCoordinator(t, gateway, &mockEngine{}, Options{Workers: 1, QueueSize: 4})

	taskID, err := c.Submit(context.Background(), "салам", "lez", 1)
	require.NoError(t, err, "a bookkeeping outage must not refuse the job")

	state := waitTerminal(t, c, taskID)
	assert.Equal(t, TaskStatusSuccess, state.Status)

	// With no durable id there is nothing to bookkeep.
	assert.Equal(t, 0, gateway.resultCount())
}

func TestSubmitFailsFastWhenQueueFull(t *testing.T) {
	gateway := newMockGateway()
	engine := &mockEngine{started: make(chan struct{}), release: make(chan struct{})}
	c, _ := startCoordinator(t, gateway, engine, Options{Workers: 1, QueueSize: 1})

	// First job occupies the only worker...
	_, err := c.Submit(context.Background(), "a", "lez", 1)
	require.NoError(t, err)
	select {
	case <-engine.started:
	case <-time.After(5 * time.Second):
		t.Fatal("worker never picked up the first job")
	}

	// ...second fills the backlog...
	_, err = c.Submit(context.Background(), "b", "lez", 1)
	require.NoError(t, err)

	// ...third must be rejected, not queued or blocked.
	_, err = c.Submit(context.Background(), "c", "lez", 1)
	assert.ErrorIs(t, err, ErrQueueFull)

	close(engine.release)
}

func TestSynthesisTimeoutFeedsErrorPath(t *testing.T) {
	gateway := newMockGateway()
	engine := &mockEngine{release: make(chan struct{})} // never released: hangs until ctx
	c, _ := startCoordinator(t, gateway, engine, Options{
		Workers: 1, QueueSize: 4, SynthesisTimeout: 50 * time.Millisecond,
	})

	taskID, err := c.Submit(context.Background(), "салам", "lez", 1)
	require.NoError(t, err)

	state := waitTerminal(t, c, taskID)
	assert.Equal(t, TaskStatusError, state.Status)
	assert.Equal(t, models.RequestStatusError, gateway.lastStatus(101))
}

func TestReaperExpiresTerminalStates(t *testing.T) {
	gateway := newMockGateway()
	c, _ := startCoordinator(t, gateway, &mockEngine{fail: true}, Options{
		Workers: 1, QueueSize: 4, ResultRetention: time.Minute,
	})

	taskID, err := c.Submit(context.Background(), "салам", "lez", 1)
	require.NoError(t, err)
	require.Equal(t, TaskStatusError, waitTerminal(t, c, taskID).Status)

	// Within the window the state survives a sweep.
	c.reapExpired(time.Now())
	assert.Equal(t, TaskStatusError, c.Poll(taskID).Status)

	// Past the window it is gone.
	c.reapExpired(time.Now().Add(2 * time.Minute))
	assert.Equal(t, TaskStatusProcessing, c.Poll(taskID).Status)
}
