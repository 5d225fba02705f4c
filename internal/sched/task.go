package sched

import "strings"

// TaskID uniquely identifies a task in the arrival plan.
type TaskID string

// SafetyLevel is the ASIL class of a task, A (1) through D (4). The zero
// value means the level was never loaded.
type SafetyLevel int

const (
	SafetyA SafetyLevel = iota + 1
	SafetyB
	SafetyC
	SafetyD
)

func (l SafetyLevel) String() string {
	switch l {
	case SafetyA:
		return "A"
	case SafetyB:
		return "B"
	case SafetyC:
		return "C"
	case SafetyD:
		return "D"
	default:
		return "?"
	}
}

// ParseSafetyLevel maps a label such as "d" or "C" to its level. Unknown
// labels map to A.
func ParseSafetyLevel(label string) SafetyLevel {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "B":
		return SafetyB
	case "C":
		return SafetyC
	case "D":
		return SafetyD
	default:
		return SafetyA
	}
}

// Field names a mandatory task attribute.
type Field uint8

const (
	FieldSafety Field = 1 << iota
	FieldCriticality
	FieldDuration
)

func (f Field) String() string {
	switch f {
	case FieldSafety:
		return "safety_level"
	case FieldCriticality:
		return "realtime_criticality"
	case FieldDuration:
		return "duration"
	default:
		return "unknown"
	}
}

// Task is one schedulable unit of sensor work. It is never mutated after it
// has been loaded; resubmission reuses the same value.
type Task struct {
	ID          TaskID
	Safety      SafetyLevel
	SafetyLabel string // label as published by the metadata source
	Criticality int
	Duration    float64
	Description string

	known Field
}

// NewTask builds a fully populated task.
func NewTask(id TaskID, safety string, criticality int, duration float64, description string) *Task {
	t := &Task{ID: id, Description: description}
	t.SetSafety(safety)
	t.SetCriticality(criticality)
	t.SetDuration(duration)
	return t
}

// SetSafety records the safety label and its parsed level.
func (t *Task) SetSafety(label string) {
	t.SafetyLabel = label
	t.Safety = ParseSafetyLevel(label)
	t.known |= FieldSafety
}

func (t *Task) SetCriticality(c int) {
	t.Criticality = c
	t.known |= FieldCriticality
}

func (t *Task) SetDuration(d float64) {
	t.Duration = d
	t.known |= FieldDuration
}

// Has reports whether f was populated.
func (t *Task) Has(f Field) bool { return t.known&f != 0 }

// Score is the task's urgency: 0.5*safety + 0.5*criticality - 0.1*duration.
// Higher is more urgent.
func (t *Task) Score() (float64, error) {
	for _, f := range []Field{FieldSafety, FieldCriticality} {
		if !t.Has(f) {
			return 0, &MissingFieldError{TaskID: t.ID, Field: f}
		}
	}
	return 0.5*float64(t.Safety) + 0.5*float64(t.Criticality) - 0.1*t.Duration, nil
}

// QueueKey is the resource queue key for the task, lower is served first.
func (t *Task) QueueKey() (float64, error) {
	s, err := t.Score()
	if err != nil {
		return 0, err
	}
	return -s, nil
}

// Validate checks that the task can be dispatched.
func (t *Task) Validate() error {
	for _, f := range []Field{FieldSafety, FieldCriticality, FieldDuration} {
		if !t.Has(f) {
			return &MissingFieldError{TaskID: t.ID, Field: f}
		}
	}
	if t.Duration <= 0 {
		return &MissingFieldError{TaskID: t.ID, Field: FieldDuration}
	}
	return nil
}
