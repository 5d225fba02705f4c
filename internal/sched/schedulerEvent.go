// internal/sched/schedulerEvent.go

package sched

// StatusKind represents the type of scheduler event
type StatusKind int

const (
	StatusArrive StatusKind = iota
	StatusSkip
	StatusWait
	StatusFallback
	StatusStart
	StatusPreempt
	StatusResubmit
	StatusFinish
	StatusAbandon
)

// StatusEvent is emitted on every state change of a task.
type StatusEvent struct {
	Time    float64
	Kind    StatusKind
	TaskID  TaskID
	Policy  PolicyName
	Sensor  string
	Attempt int
	Err     error
}

func (sk StatusKind) String() string {
	switch sk {
	case StatusArrive:
		return "Arrive"
	case StatusSkip:
		return "Skip"
	case StatusWait:
		return "Wait"
	case StatusFallback:
		return "Fallback"
	case StatusStart:
		return "Start"
	case StatusPreempt:
		return "Preempt"
	case StatusResubmit:
		return "Resubmit"
	case StatusFinish:
		return "Finish"
	case StatusAbandon:
		return "Abandon"
	default:
		return "Unknown"
	}
}
