package screener

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Dependencies holds the engine's collaborators.
type Dependencies struct {
	Properties PropertyReader
	Geocoder   Geocoder
	Locator    Locator
	Resolver   GeometryResolver
	Parcels    ParcelStore
	Ledger     MissingLedger
	Reporter   Reporter
	Logger     *slog.Logger
}

// Engine owns the screener run lifecycle. At most one run is in progress
// process-wide; Start fails fast instead of queuing, and callers poll
// Status until a terminal state. Terminated runs are retained so a poll
// after completion still observes the outcome.
type Engine struct {
	deps Dependencies

	mu          sync.Mutex
	runs        map[string]*Run
	order       []string // run ids, oldest first
	activeRunID string
}

// NewEngine creates an idle engine.
func NewEngine(deps Dependencies) *Engine {
	return &Engine{
		deps: deps,
		runs: make(map[string]*Run),
	}
}

// Start admits a new run for a property and begins asynchronous execution.
// Returns the run id immediately, or ErrAlreadyRunning while another run
// holds the engine.
func (e *Engine) Start(propertyID int64) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.activeRunID != "" {
		e.deps.Logger.Warn("Screener start rejected - run in progress",
			slog.Int64("property_id", propertyID),
			slog.String("active_run_id", e.activeRunID),
		)
		return "", ErrAlreadyRunning
	}

	run := &Run{
		ID:              uuid.New().String(),
		PropertyID:      propertyID,
		Status:          RunStatusRunning,
		CurrentStep:     "Initializing",
		ProgressPercent: 0,
		StartedAt:       time.Now(),
	}

	e.runs[run.ID] = run
	e.order = append(e.order, run.ID)
	e.activeRunID = run.ID

	e.deps.Logger.Info("Screener run started",
		slog.String("run_id", run.ID),
		slog.Int64("property_id", propertyID),
	)

	go e.execute(run.ID, propertyID)

	return run.ID, nil
}

// Status returns a snapshot of a run.
func (e *Engine) Status(runID string) (Run, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	run, ok := e.runs[runID]
	if !ok {
		return Run{}, ErrRunNotFound
	}
	return *run, nil
}

// Runs returns snapshots of a property's runs, most recent first.
func (e *Engine) Runs(propertyID int64, limit int) []Run {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []Run
	for i := len(e.order) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		run := e.runs[e.order[i]]
		if run.PropertyID == propertyID {
			out = append(out, *run)
		}
	}
	return out
}

// Idle reports whether the engine can admit a run.
func (e *Engine) Idle() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activeRunID == ""
}

// setProgress advances the run's step label and progress. Progress is
// monotonically non-decreasing within a run.
func (e *Engine) setProgress(runID, step string, percent int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	run, ok := e.runs[runID]
	if !ok || run.Terminal() {
		return
	}
	run.CurrentStep = step
	if percent > run.ProgressPercent {
		run.ProgressPercent = percent
	}

	e.deps.Logger.Debug("Screener progress",
		slog.String("run_id", runID),
		slog.String("step", step),
		slog.Int("percent", run.ProgressPercent),
	)
}

// complete transitions the run to its successful terminal state and frees
// the admission gate.
func (e *Engine) complete(runID, reportPath string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	run, ok := e.runs[runID]
	if !ok || run.Terminal() {
		return
	}
	run.Status = RunStatusCompleted
	run.CurrentStep = "Complete"
	run.ProgressPercent = 100
	run.ReportPath = reportPath
	run.CompletedAt = time.Now()
	e.activeRunID = ""

	e.deps.Logger.Info("Screener run completed",
		slog.String("run_id", runID),
		slog.Int64("property_id", run.PropertyID),
		slog.String("report_path", reportPath),
		slog.Duration("elapsed", run.CompletedAt.Sub(run.StartedAt)),
	)
}

// fail transitions the run to its failed terminal state and frees the gate.
func (e *Engine) fail(runID, message string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	run, ok := e.runs[runID]
	if !ok || run.Terminal() {
		return
	}
	run.Status = RunStatusFailed
	run.ErrorMessage = message
	run.CompletedAt = time.Now()
	e.activeRunID = ""

	e.deps.Logger.Error("Screener run failed",
		slog.String("run_id", runID),
		slog.Int64("property_id", run.PropertyID),
		slog.String("error", message),
	)
}

// recoverPanic converts a pipeline panic into a failed terminal state. The
// engine must never stay gated by a crashed run.
func (e *Engine) recoverPanic(runID string) {
	if r := recover(); r != nil {
		e.fail(runID, fmt.Sprintf("screener pipeline panic: %v", r))
	}
}
