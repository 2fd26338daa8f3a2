package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Vazhid/lezgian-tts/internal/audiostore"
	"github.com/Vazhid/lezgian-tts/internal/models"
	"github.com/Vazhid/lezgian-tts/internal/synth"
)

// ErrQueueFull is returned by Submit when the job backlog is exhausted.
// Callers should surface it as a retryable condition, not enqueue-and-block.
var ErrQueueFull = errors.New("synthesis queue is full")

// TaskStatus is the volatile lifecycle of one synthesis task. Absence
// from the task table reads as TaskStatusProcessing.
type TaskStatus string

const (
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusSuccess    TaskStatus = "success"
	TaskStatusError      TaskStatus = "error"
)

// TaskState is what Poll returns. On success the audio payload is
// delivered at most once; on error the message stays pollable until the
// retention window expires.
type TaskState struct {
	Status          TaskStatus
	AudioData       []byte
	DurationSeconds float64
	AudioPath       string // relative to the audio root
	Error           string

	finishedAt time.Time
}

// Gateway is the slice of the persistence layer the coordinator needs.
// *db.DB satisfies it; tests substitute a mock. Every call through it
// is best-effort: failures are logged and the job proceeds.
type Gateway interface {
	CreateSynthesisRequest(ctx context.Context, userID int64, text, language string) (int64, error)
	MarkRequestProcessing(ctx context.Context, id int64, startedAt time.Time) error
	MarkRequestFinished(ctx context.Context, id int64, status models.RequestStatus, endedAt time.Time) error
	CreateSynthesisResult(ctx context.Context, result *models.SynthesisResult) error
}

type job struct {
	taskID    string
	requestID int64 // 0 = durable insert failed, no bookkeeping
	text      string
	language  string
}

type Options struct {
	Workers          int           // fixed pool size
	QueueSize        int           // backlog capacity
	SynthesisTimeout time.Duration // per-job engine timeout, 0 = unbounded
	ResultRetention  time.Duration // how long terminal states stay pollable
}

// Coordinator owns the worker pool and the in-memory task-state table,
// and orchestrates engine, store, and gateway for each submitted job.
type Coordinator struct {
	gateway Gateway
	store   *audiostore.Store
	engine  synth.Engine
	opts    Options

	jobs chan job

	mu    sync.Mutex
	tasks map[string]TaskState
}

func New(gateway Gateway, store *audiostore.Store, engine synth.Engine, opts Options) *Coordinator {
	if opts.Workers < 1 {
		opts.Workers = 4
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = 256
	}
	if opts.ResultRetention <= 0 {
		opts.ResultRetention = 10 * time.Minute
	}

	return &Coordinator{
		gateway: gateway,
		store:   store,
		engine:  engine,
		opts:    opts,
		jobs:    make(chan job, opts.QueueSize),
		tasks:   make(map[string]TaskState),
	}
}

// Start runs the fixed worker set plus the retention reaper until ctx
// is cancelled. Jobs already picked up run to completion; cancellation
// of in-flight synthesis is not supported.
func (c *Coordinator) Start(ctx context.Context) error {
	log.Printf("[Coordinator] Started with %d workers (queue=%d, timeout=%v)",
		c.opts.Workers, c.opts.QueueSize, c.opts.SynthesisTimeout)

	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < c.opts.Workers; i++ {
		g.Go(func() error {
			c.workerLoop(ctx)
			return nil
		})
	}

	g.Go(func() error {
		c.reaperLoop(ctx)
		return nil
	})

	err := g.Wait()
	log.Println("[Coordinator] Shut down")
	return err
}

// Submit creates the durable request row (best-effort), assigns a fresh
// task id, and enqueues the job. It returns immediately and never waits
// for synthesis. The ctx only covers the durable insert.
func (c *Coordinator) Submit(ctx context.Context, text, language string, userID int64) (string, error) {
	taskID := uuid.New().String()

	requestID, err := c.gateway.CreateSynthesisRequest(ctx, userID, text, language)
	if err != nil {
		// Degraded bookkeeping, not a refused job.
		log.Printf("[Coordinator] Failed to create durable request for task %s: %v", taskID, err)
		requestID = 0
	}

	j := job{taskID: taskID, requestID: requestID, text: text, language: language}

	select {
	case c.jobs <- j:
	default:
		if requestID != 0 {
			c.logIfErr("mark overflow request failed", c.gateway.MarkRequestFinished(
				ctx, requestID, models.RequestStatusError, time.Now()))
		}
		return "", ErrQueueFull
	}

	log.Printf("[Coordinator] Queued task %s (request=%d, lang=%s, textLen=%d)",
		taskID, requestID, language, len(text))
	return taskID, nil
}

// Poll is a non-blocking, lock-protected read of the task table.
// Unknown ids read as processing. A success state is returned exactly
// once and removed; error states stay until the reaper expires them.
func (c *Coordinator) Poll(taskID string) TaskState {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, ok := c.tasks[taskID]
	if !ok {
		return TaskState{Status: TaskStatusProcessing}
	}

	if state.Status == TaskStatusSuccess {
		delete(c.tasks, taskID)
	}

	return state
}

func (c *Coordinator) workerLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-c.jobs:
			c.runJob(ctx, j)
		}
	}
}

// runJob executes the synthesis protocol for one job. Panics are caught
// at this boundary and mapped to the terminal error path so the worker
// stays reusable.
func (c *Coordinator) runJob(ctx context.Context, j job) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic in synthesis job: %v", r)
			log.Printf("[Coordinator] Task %s panicked: %v", j.taskID, r)
			c.failJob(ctx, j, err.Error(), err)
		}
	}()

	start := time.Now()
	log.Printf("[Coordinator] Processing task %s (request=%d)", j.taskID, j.requestID)

	if j.requestID != 0 {
		c.logIfErr("mark processing failed", c.gateway.MarkRequestProcessing(ctx, j.requestID, start))
	}

	synthCtx := ctx
	if c.opts.SynthesisTimeout > 0 {
		var cancel context.CancelFunc
		synthCtx, cancel = context.WithTimeout(ctx, c.opts.SynthesisTimeout)
		defer cancel()
	}

	filename := j.taskID + ".wav"

	if err := synth.SaveToFile(synthCtx, c.engine, j.text, c.store.Path(filename)); err != nil {
		log.Printf("[Coordinator] Task %s synthesis failed: %v", j.taskID, err)
		c.store.Delete(filename)
		c.failJob(ctx, j, "synthesis failed", err)
		return
	}

	audioData, err := c.store.Read(filename)
	if err != nil {
		log.Printf("[Coordinator] Task %s audio readback failed: %v", j.taskID, err)
		c.store.Delete(filename)
		c.failJob(ctx, j, "synthesis failed", err)
		return
	}

	duration := time.Since(start).Seconds()

	if j.requestID != 0 {
		now := time.Now()
		c.logIfErr("mark success failed", c.gateway.MarkRequestFinished(
			ctx, j.requestID, models.RequestStatusSuccess, now))
		c.logIfErr("save result failed", c.gateway.CreateSynthesisResult(ctx, &models.SynthesisResult{
			RequestID:           j.requestID,
			AudioFilePath:       filename,
			DurationSeconds:     duration,
			CharactersProcessed: len([]rune(j.text)),
		}))
	}

	c.setState(j.taskID, TaskState{
		Status:          TaskStatusSuccess,
		AudioData:       audioData,
		DurationSeconds: duration,
		AudioPath:       filename,
		finishedAt:      time.Now(),
	})

	log.Printf("[Coordinator] Task %s completed in %.2fs", j.taskID, duration)
}

// failJob records the terminal error state, durable and volatile.
func (c *Coordinator) failJob(ctx context.Context, j job, message string, cause error) {
	if j.requestID != 0 {
		c.logIfErr("mark error failed", c.gateway.MarkRequestFinished(
			ctx, j.requestID, models.RequestStatusError, time.Now()))
	}

	c.setState(j.taskID, TaskState{
		Status:     TaskStatusError,
		Error:      message,
		finishedAt: time.Now(),
	})

	// No-op unless Sentry was initialized in main.
	sentry.CaptureException(cause)
}

func (c *Coordinator) setState(taskID string, state TaskState) {
	c.mu.Lock()
	c.tasks[taskID] = state
	c.mu.Unlock()
}

// reaperLoop expires terminal task states after the retention window.
// Both success and error states expire the same way, so uncollected
// results do not accumulate.
func (c *Coordinator) reaperLoop(ctx context.Context) {
	interval := c.opts.ResultRetention / 4
	if interval > time.Minute {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.reapExpired(time.Now())
		}
	}
}

func (c *Coordinator) reapExpired(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, state := range c.tasks {
		if now.Sub(state.finishedAt) > c.opts.ResultRetention {
			delete(c.tasks, id)
		}
	}
}

func (c *Coordinator) logIfErr(what string, err error) {
	if err != nil {
		log.Printf("[Coordinator] %s: %v", what, err)
	}
}
