package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ppiankov/veritas/internal/logger"
)

// Scheduler triggers registered agents on standard 5-field cron specs
type Scheduler struct {
	cron   *cron.Cron
	parser cron.Parser
	log    logger.Logger

	mu      sync.RWMutex
	agents  map[string]*Agent
	entries map[string]cron.EntryID
	specs   map[string]string

	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a stopped scheduler
func NewScheduler(log logger.Logger) *Scheduler {
	log = logger.OrNop(log).With(logger.Component("scheduler"))
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cronLogger{log})))
	return &Scheduler{
		cron:    c,
		parser:  parser,
		log:     log,
		agents:  make(map[string]*Agent),
		entries: make(map[string]cron.EntryID),
		specs:   make(map[string]string),
	}
}

// Register schedules a on spec. Registering a name twice replaces the old entry.
func (s *Scheduler) Register(a *Agent, spec string) error {
	if _, err := s.parser.Parse(spec); err != nil {
		return fmt.Errorf("invalid schedule %q for agent %s: %w", spec, a.Name(), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.entries[a.Name()]; ok {
		s.cron.Remove(id)
	}

	name := a.Name()
	id, err := s.cron.AddFunc(spec, func() { s.trigger(name) })
	if err != nil {
		return fmt.Errorf("schedule agent %s: %w", name, err)
	}

	s.agents[name] = a
	s.entries[name] = id
	s.specs[name] = spec
	s.log.Info("Agent scheduled", logger.String("agent", name), logger.String("schedule", spec))
	return nil
}

// Start starts every registered agent and the cron loop
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	agents := s.sortedAgents()
	s.mu.Unlock()

	for _, a := range agents {
		a.Start(ctx)
	}
	s.cron.Start()
	s.log.Info("Scheduler started", logger.Int("agents", len(agents)))
}

// Stop halts the cron loop, waits for running jobs and stops every agent
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	agents := s.sortedAgents()
	s.mu.Unlock()

	select {
	case <-done.Done():
	case <-ctx.Done():
		s.log.Warn("Scheduler stop timed out waiting for running jobs")
	}

	for _, a := range agents {
		a.Stop(ctx)
	}
	s.log.Info("Scheduler stopped")
}

// Agents returns the registered agents ordered by name
func (s *Scheduler) Agents() []*Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedAgents()
}

// Agent looks up a registered agent by name
func (s *Scheduler) Agent(name string) (*Agent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.agents[name]
	return a, ok
}

// Next returns the next scheduled run of the named agent, or zero if unknown
func (s *Scheduler) Next(name string) time.Time {
	s.mu.RLock()
	spec, ok := s.specs[name]
	s.mu.RUnlock()
	if !ok {
		return time.Time{}
	}
	sched, err := s.parser.Parse(spec)
	if err != nil {
		return time.Time{}
	}
	return sched.Next(time.Now())
}

// RunNow triggers the named agent outside its schedule
func (s *Scheduler) RunNow(ctx context.Context, name string) (int, error) {
	a, ok := s.Agent(name)
	if !ok {
		return 0, fmt.Errorf("unknown agent %q", name)
	}
	return a.RunOnce(ctx)
}

func (s *Scheduler) trigger(name string) {
	s.mu.RLock()
	a, ok := s.agents[name]
	ctx := s.ctx
	s.mu.RUnlock()
	if !ok || ctx == nil {
		return
	}

	s.log.Debug("Cron triggered agent", logger.String("agent", name))
	n, err := a.RunOnce(ctx)
	switch {
	case errors.Is(err, ErrNotRunning), errors.Is(err, ErrBusy):
		s.log.Debug("Agent skipped", logger.String("agent", name), logger.Error(err))
	case err != nil:
		s.log.Warn("Scheduled run failed", logger.String("agent", name), logger.Int("processed", n), logger.Error(err))
	}
}

// sortedAgents must be called with mu held
func (s *Scheduler) sortedAgents() []*Agent {
	out := make([]*Agent, 0, len(s.agents))
	for _, a := range s.agents {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// cronLogger routes cron's own messages, including recovered panics, to the structured logger
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(kvFields(keysAndValues), logger.Error(err))...)
}

func kvFields(kv []any) []logger.Field {
	fields := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		fields = append(fields, logger.Any(key, kv[i+1]))
	}
	return fields
}
