// Package queue runs the background persistence path: prompt records are
// enqueued fire-and-forget after the response is prepared and drained by a
// worker that writes through the circuit breaker. Saves are never cancelled
// by client disconnects — they complete or fail independently.
package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/promptforge-dev/promptforge/pkg/breaker"
	"github.com/promptforge-dev/promptforge/pkg/models"
	"github.com/promptforge-dev/promptforge/pkg/services"
)

const defaultQueueSize = 256

// saveTimeout bounds a single background write.
const saveTimeout = 10 * time.Second

// PersistExecutor drains queued records into the history service.
type PersistExecutor struct {
	history *services.PromptHistoryService
	breaker *breaker.Breaker
	tasks   chan *models.PromptRecord

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewPersistExecutor creates the executor. queueSize <= 0 uses the default.
func NewPersistExecutor(history *services.PromptHistoryService, b *breaker.Breaker, queueSize int) *PersistExecutor {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &PersistExecutor{
		history: history,
		breaker: b,
		tasks:   make(chan *models.PromptRecord, queueSize),
	}
}

// Start launches the worker goroutine.
func (e *PersistExecutor) Start() {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		for rec := range e.tasks {
			e.persist(rec)
		}
	}()
}

// Enqueue schedules a record for persistence without blocking. Returns false
// when the executor is closed or the queue is full; the caller treats that as
// a silent degradation, never an error.
func (e *PersistExecutor) Enqueue(rec *models.PromptRecord) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}

	select {
	case e.tasks <- rec:
		return true
	default:
		slog.Warn("Persistence queue full, dropping record", "idea_len", len(rec.OriginalIdea))
		return false
	}
}

// persist writes one record through the circuit breaker. Storage errors stay
// inside this path: they feed the breaker and a log line, nothing else.
func (e *PersistExecutor) persist(rec *models.PromptRecord) {
	if !e.breaker.ShouldAttempt() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	_, err := e.history.Save(ctx, rec)
	if err != nil {
		e.breaker.RecordFailure()
		slog.Error("Background save failed", "error", err)
		return
	}
	e.breaker.RecordSuccess()
}

// Close stops accepting records and drains the queue, bounded by ctx.
func (e *PersistExecutor) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	close(e.tasks)
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
