// Package agent wraps background tasks with a status lifecycle, audit trail and cron scheduling.
package agent

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ppiankov/veritas/internal/logger"
	"github.com/ppiankov/veritas/internal/model"
)

var (
	// ErrNotRunning is returned by RunOnce when the agent is idle, paused or stopped
	ErrNotRunning = errors.New("agent is not running")

	// ErrBusy is returned by RunOnce while a previous run is still in progress
	ErrBusy = errors.New("agent is busy")
)

// State is the lifecycle state of an agent
type State string

const (
	StateIdle       State = "idle"
	StateRunning    State = "running"
	StateProcessing State = "processing"
	StatePaused     State = "paused"
	StateStopped    State = "stopped"
)

// Audit actions written by agents
const (
	ActionStart  = "start"
	ActionStop   = "stop"
	ActionPause  = "pause"
	ActionResume = "resume"
	ActionRun    = "run"
	ActionError  = "error"
)

// Task is one unit of background work. Run returns the number of items it processed.
type Task interface {
	Name() string
	Run(ctx context.Context) (int, error)
}

// AuditLogger records agent actions
type AuditLogger interface {
	LogAction(ctx context.Context, e model.AuditEntry) error
}

// LastAction is the most recent audited action
type LastAction struct {
	Action string    `json:"action"`
	At     time.Time `json:"at"`
}

// Status is a point-in-time report of an agent
type Status struct {
	Name           string        `json:"name"`
	State          State         `json:"status"`
	LastAction     *LastAction   `json:"last_action,omitempty"`
	ProcessedCount int           `json:"processed_count"`
	ErrorCount     int           `json:"error_count"`
	Uptime         time.Duration `json:"uptime"`
}

// Agent runs a Task while in the running state
type Agent struct {
	name  string
	task  Task
	audit AuditLogger
	log   logger.Logger
	now   func() time.Time

	mu        sync.Mutex
	state     State
	last      *LastAction
	processed int
	errCount  int
	started   time.Time
}

// New creates an idle agent. audit may be nil.
func New(name string, task Task, audit AuditLogger, log logger.Logger) *Agent {
	if name == "" {
		name = task.Name()
	}
	return &Agent{
		name:  name,
		task:  task,
		audit: audit,
		log:   logger.OrNop(log).With(logger.Component("agent"), logger.String("agent", name)),
		now:   time.Now,
		state: StateIdle,
	}
}

// Name returns the agent name
func (a *Agent) Name() string {
	return a.name
}

// Start moves the agent to running and resets its uptime
func (a *Agent) Start(ctx context.Context) {
	a.mu.Lock()
	a.state = StateRunning
	a.started = a.now()
	a.mu.Unlock()

	a.log.Info("Agent started")
	a.record(ctx, ActionStart, nil)
}

// Stop moves the agent to stopped. A run in progress finishes.
func (a *Agent) Stop(ctx context.Context) {
	a.setState(StateStopped)
	a.log.Info("Agent stopped")
	a.record(ctx, ActionStop, nil)
}

// Pause suspends scheduled runs until Resume
func (a *Agent) Pause(ctx context.Context) {
	a.setState(StatePaused)
	a.record(ctx, ActionPause, nil)
}

// Resume moves a paused agent back to running
func (a *Agent) Resume(ctx context.Context) {
	a.setState(StateRunning)
	a.record(ctx, ActionResume, nil)
}

// Status reports the agent's current state and counters
func (a *Agent) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()

	st := Status{
		Name:           a.name,
		State:          a.state,
		ProcessedCount: a.processed,
		ErrorCount:     a.errCount,
	}
	if a.last != nil {
		last := *a.last
		st.LastAction = &last
	}
	if !a.started.IsZero() && a.state != StateStopped {
		st.Uptime = a.now().Sub(a.started)
	}
	return st
}

// RunOnce runs the task if the agent is running. Processed items and errors are
// counted, and the outcome is audited.
func (a *Agent) RunOnce(ctx context.Context) (int, error) {
	a.mu.Lock()
	switch a.state {
	case StateRunning:
		a.state = StateProcessing
	case StateProcessing:
		a.mu.Unlock()
		return 0, ErrBusy
	default:
		a.mu.Unlock()
		return 0, ErrNotRunning
	}
	a.mu.Unlock()

	start := a.now()
	n, err := a.task.Run(ctx)
	elapsed := a.now().Sub(start)

	a.mu.Lock()
	a.processed += n
	if err != nil {
		a.errCount++
	}
	// Stop or Pause during the run wins
	if a.state == StateProcessing {
		a.state = StateRunning
	}
	a.mu.Unlock()

	if err != nil {
		a.log.Error("Agent run failed", logger.Int("processed", n), logger.Error(err))
		a.record(ctx, ActionError, map[string]any{"task": a.task.Name(), "processed": n, "error": err.Error()})
		return n, err
	}

	a.log.Debug("Agent run finished", logger.Int("processed", n), logger.Duration("elapsed", elapsed))
	a.record(ctx, ActionRun, map[string]any{"task": a.task.Name(), "processed": n, "elapsed_ms": elapsed.Milliseconds()})
	return n, nil
}

func (a *Agent) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

// record remembers the last action and writes it to the audit log. Audit
// failures are logged only.
func (a *Agent) record(ctx context.Context, action string, details map[string]any) {
	at := a.now()
	a.mu.Lock()
	a.last = &LastAction{Action: action, At: at}
	a.mu.Unlock()

	if a.audit == nil {
		return
	}
	err := a.audit.LogAction(context.WithoutCancel(ctx), model.AuditEntry{
		Actor:     "agent",
		Action:    action,
		Target:    a.name,
		Details:   details,
		CreatedAt: at,
	})
	if err != nil {
		a.log.Warn("Failed to write audit entry", logger.String("action", action), logger.Error(err))
	}
}
