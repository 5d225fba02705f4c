package report

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Record is the completion event published for every finished task.
type Record struct {
	RunID       string  `json:"run_id"`
	TaskID      string  `json:"task_id"`
	Sensor      string  `json:"sensor,omitempty"` // empty when the task held every sensor
	FinishTime  float64 `json:"finish_time"`
	Description string  `json:"description"`
	Safety      string  `json:"safety"`
	Realtime    int     `json:"realtime"`
	Duration    float64 `json:"duration"`
	Attempts    int     `json:"attempts"`
}

// Sink delivers completion records somewhere.
type Sink interface {
	Name() string
	Publish(rec Record) error
}

// Reporter stamps records with the run id and fans them out to its sinks.
// A failing sink is logged and skipped; publishing is never retried.
type Reporter struct {
	runID  string
	sinks  []Sink
	logger *slog.Logger
}

// New creates a reporter for a fresh run id.
func New(logger *slog.Logger, sinks ...Sink) *Reporter {
	return &Reporter{
		runID:  uuid.NewString(),
		sinks:  sinks,
		logger: logger.With("component", "reporter"),
	}
}

// RunID identifies the simulation run on every record.
func (r *Reporter) RunID() string { return r.runID }

func (r *Reporter) Report(rec Record) {
	rec.RunID = r.runID
	for _, s := range r.sinks {
		if err := s.Publish(rec); err != nil {
			r.logger.Error("publish completion failed",
				"sink", s.Name(),
				"task_id", rec.TaskID,
				"phase", "report",
				"error", err,
			)
		}
	}
}

// LogSink writes records to a structured logger.
type LogSink struct {
	Logger *slog.Logger
}

func (LogSink) Name() string { return "log" }

func (s LogSink) Publish(rec Record) error {
	s.Logger.Info("task finished",
		"task_id", rec.TaskID,
		"sensor", rec.Sensor,
		"finish_time", rec.FinishTime,
		"safety", rec.Safety,
		"realtime", rec.Realtime,
		"duration", rec.Duration,
		"attempts", rec.Attempts,
	)
	return nil
}

// MemorySink keeps records in memory.
type MemorySink struct {
	mu      sync.Mutex
	records []Record
}

func (*MemorySink) Name() string { return "memory" }

func (s *MemorySink) Publish(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

// Records returns a copy of everything published so far.
func (s *MemorySink) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}
