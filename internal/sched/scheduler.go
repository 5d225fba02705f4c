// internal/sched/scheduler.go

package sched

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"time"

	"sensorsched/internal/sim"
)

// MetadataSource loads the data of a task by id.
type MetadataSource interface {
	FetchTask(ctx context.Context, id TaskID) (*Task, error)
}

// StrategySource reports the name of the currently active policy.
type StrategySource interface {
	CurrentPolicy(ctx context.Context) (string, error)
}

// Summary counts what happened during a run.
type Summary struct {
	Arrived     int
	Completed   int
	Preempted   int
	Resubmitted int
	Abandoned   int
	Skipped     int
	Policies    map[PolicyName]int // arrivals dispatched per policy
}

// Scheduler replays an arrival plan against a set of sensors, choosing the
// dispatch policy anew for every arrival.
type Scheduler struct {
	cfg      Config
	env      *Env
	policies map[PolicyName]Policy
	metadata MetadataSource
	strategy StrategySource
	logger   *slog.Logger

	tasks    map[TaskID]*Task
	loadErrs map[TaskID]error
	loaded   bool

	trace   []StatusEvent
	summary Summary

	// logging-related
	csvFile   *os.File
	csvWriter *csv.Writer
}

// New creates a scheduler for one simulation run.
func New(cfg Config, metadata MetadataSource, strategy StrategySource, reporter Reporter, logger *slog.Logger) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "scheduler")

	s := &Scheduler{
		cfg:      cfg,
		metadata: metadata,
		strategy: strategy,
		logger:   logger,
		tasks:    make(map[TaskID]*Task),
		loadErrs: make(map[TaskID]error),
		summary:  Summary{Policies: make(map[PolicyName]int)},
	}

	s.env = NewEnv(cfg.Sensors, reporter, cfg.MaxResubmissions, logger)
	s.env.observe = s.handleEvent
	if cfg.RealtimeMS > 0 {
		s.env.Engine.SetPacer(sim.NewPacer(time.Duration(cfg.RealtimeMS) * time.Millisecond))
	}

	fair := NewFair(cfg.FairMode, cfg.PollInterval)
	fair.attach(s.env)
	s.policies = map[PolicyName]Policy{
		PolicyMixedCritical: NewMixedCritical(cfg.MaxWait),
		PolicyFair:          fair,
		PolicyEnergyAware:   EnergyAware{},
	}
	return s, nil
}

// Env exposes the run's clock and sensors.
func (s *Scheduler) Env() *Env { return s.env }

// Trace returns every status event recorded so far.
func (s *Scheduler) Trace() []StatusEvent {
	out := make([]StatusEvent, len(s.trace))
	copy(out, s.trace)
	return out
}

// EnableCSVLogging opens the given file path for CSV logging of events.
// Must be called before Run().
func (s *Scheduler) EnableCSVLogging(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)

	// write header
	w.Write([]string{"time", "event", "task_id", "policy", "sensor", "attempt", "error"})
	w.Flush()
	s.csvFile = f
	s.csvWriter = w
	return nil
}

// Load resolves every task named in the arrival plan. Failures are logged
// and remembered; the affected arrivals are skipped during Run.
func (s *Scheduler) Load(ctx context.Context) {
	s.loaded = true
	for _, a := range s.cfg.Arrivals {
		if _, done := s.tasks[a.Task]; done {
			continue
		}
		if _, failed := s.loadErrs[a.Task]; failed {
			continue
		}

		t, err := s.metadata.FetchTask(ctx, a.Task)
		if err != nil {
			ferr := &MetadataFetchError{TaskID: a.Task, Err: err}
			s.loadErrs[a.Task] = ferr
			s.logger.Error("task load failed", "task_id", a.Task, "phase", "load", "error", ferr)
			continue
		}
		s.tasks[a.Task] = t
		s.logger.Info("task loaded",
			"task_id", t.ID,
			"safety", t.SafetyLabel,
			"realtime", t.Criticality,
			"duration", t.Duration,
			"description", t.Description,
		)
	}
}

// Run replays the arrival plan and simulates up to the horizon. It returns
// early only when ctx is done.
func (s *Scheduler) Run(ctx context.Context) (Summary, error) {
	if !s.loaded {
		s.Load(ctx)
	}
	defer s.closeCSV()

	eng := s.env.Engine
	plan := make([]Arrival, len(s.cfg.Arrivals))
	copy(plan, s.cfg.Arrivals)
	sort.SliceStable(plan, func(i, j int) bool { return plan[i].At < plan[j].At })

	for _, a := range plan {
		if a.At >= s.cfg.Horizon {
			s.logger.Warn("arrival beyond horizon ignored", "task_id", a.Task, "at", a.At, "horizon", s.cfg.Horizon)
			continue
		}
		if a.At > eng.Now() {
			if err := eng.RunUntil(ctx, a.At); err != nil {
				return s.summary, err
			}
		}
		s.arrive(ctx, a)
	}

	if err := eng.RunUntil(ctx, s.cfg.Horizon); err != nil {
		return s.summary, err
	}

	for _, job := range s.env.InFlight() {
		s.env.Abandon(job, fmt.Errorf("simulation horizon %v reached", s.cfg.Horizon))
	}
	s.logger.Info("simulation finished",
		"time", eng.Now(),
		"completed", s.summary.Completed,
		"preempted", s.summary.Preempted,
		"abandoned", s.summary.Abandoned,
		"skipped", s.summary.Skipped,
	)
	return s.summary, nil
}

// arrive dispatches one arrival through the currently active policy.
func (s *Scheduler) arrive(ctx context.Context, a Arrival) {
	s.summary.Arrived++

	t, ok := s.tasks[a.Task]
	if !ok {
		err := s.loadErrs[a.Task]
		if err == nil {
			err = &MetadataFetchError{TaskID: a.Task, Err: errors.New("task was never loaded")}
		}
		s.skip(a.Task, err)
		return
	}
	if err := t.Validate(); err != nil {
		s.skip(a.Task, err)
		return
	}

	name := s.resolvePolicy(ctx)
	s.logger.Info("strategy resolved", "time", s.env.Now(), "task_id", t.ID, "policy", name)

	policy := s.policies[name]
	job := s.env.newJob(t, name)
	s.summary.Policies[name]++
	s.env.Observe(StatusArrive, job, "", nil)
	policy.Dispatch(s.env, job)
}

func (s *Scheduler) resolvePolicy(ctx context.Context) PolicyName {
	raw, err := s.strategy.CurrentPolicy(ctx)
	if err != nil {
		s.logger.Warn("strategy unavailable, defaulting to fair",
			"time", s.env.Now(), "phase", "strategy", "error", &StrategyFetchError{Err: err})
		return PolicyFair
	}
	name, ok := ParsePolicyName(raw)
	if !ok {
		s.logger.Warn("unknown strategy, defaulting to fair", "time", s.env.Now(), "strategy", raw)
	}
	return name
}

func (s *Scheduler) skip(id TaskID, err error) {
	s.handleEvent(StatusEvent{Time: s.env.Now(), Kind: StatusSkip, TaskID: id, Err: err})
}

func (s *Scheduler) handleEvent(ev StatusEvent) {
	s.trace = append(s.trace, ev)

	switch ev.Kind {
	case StatusFinish:
		s.summary.Completed++
	case StatusPreempt:
		s.summary.Preempted++
	case StatusResubmit:
		s.summary.Resubmitted++
	case StatusAbandon:
		s.summary.Abandoned++
	case StatusSkip:
		s.summary.Skipped++
	}

	attrs := []any{
		"time", ev.Time,
		"event", ev.Kind.String(),
		"task_id", ev.TaskID,
	}
	if ev.Policy != "" {
		attrs = append(attrs, "policy", ev.Policy, "attempt", ev.Attempt)
	}
	if ev.Sensor != "" {
		attrs = append(attrs, "sensor", ev.Sensor)
	}

	switch ev.Kind {
	case StatusSkip, StatusAbandon:
		s.logger.Error("task dropped", append(attrs, "error", ev.Err)...)
	case StatusPreempt:
		s.logger.Info("task preempted", append(attrs, "error", ev.Err)...)
	default:
		s.logger.Debug("task status", attrs...)
	}

	// CSV output
	if s.csvWriter != nil {
		errText := ""
		if ev.Err != nil {
			errText = ev.Err.Error()
		}
		rec := []string{
			strconv.FormatFloat(ev.Time, 'f', 4, 64),
			ev.Kind.String(),
			string(ev.TaskID),
			string(ev.Policy),
			ev.Sensor,
			strconv.Itoa(ev.Attempt),
			errText,
		}
		s.csvWriter.Write(rec)
		s.csvWriter.Flush()
	}
}

func (s *Scheduler) closeCSV() {
	if s.csvFile == nil {
		return
	}
	s.csvWriter.Flush()
	if err := s.csvWriter.Error(); err != nil {
		s.logger.Error("trace write failed", "path", s.csvFile.Name(), "error", err)
	}
	s.csvFile.Close()
	s.csvFile, s.csvWriter = nil, nil
}
