package orchestrator

import (
	"sync"

	"github.com/promptforge-dev/promptforge/pkg/models"
)

// baselineWindowSize bounds the rolling window of composites kept per intent.
const baselineWindowSize = 20

// baselineWindow tracks recent quality composites per intent so the
// improvement dimension can compare against a rolling baseline. In-memory
// only: the baseline resets on restart, which matches its advisory role.
type baselineWindow struct {
	mu      sync.Mutex
	windows map[models.Intent][]float64
}

func newBaselineWindow() *baselineWindow {
	return &baselineWindow{windows: make(map[models.Intent][]float64)}
}

// baseline returns the rolling mean for the intent, nil when no history exists.
func (w *baselineWindow) baseline(intent models.Intent) *float64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	window := w.windows[intent]
	if len(window) == 0 {
		return nil
	}
	sum := 0.0
	for _, v := range window {
		sum += v
	}
	mean := sum / float64(len(window))
	return &mean
}

// observe appends a composite to the intent's window.
func (w *baselineWindow) observe(intent models.Intent, composite float64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	window := append(w.windows[intent], composite)
	if len(window) > baselineWindowSize {
		window = window[len(window)-baselineWindowSize:]
	}
	w.windows[intent] = window
}
