package sched

import (
	"log/slog"
	"sort"
	"strings"

	"sensorsched/internal/report"
	"sensorsched/internal/sim"
)

// PolicyName identifies a dispatch strategy.
type PolicyName string

const (
	PolicyMixedCritical PolicyName = "mixed-critical"
	PolicyFair          PolicyName = "fair"
	PolicyEnergyAware   PolicyName = "energy-aware"
)

// ParsePolicyName normalises a strategy value. It reports false for values
// that name no known policy.
func ParsePolicyName(s string) (PolicyName, bool) {
	switch name := PolicyName(strings.ToLower(strings.TrimSpace(s))); name {
	case PolicyMixedCritical, PolicyFair, PolicyEnergyAware:
		return name, true
	default:
		return PolicyFair, false
	}
}

// Policy assigns a job to one or more sensors and drives it to completion.
type Policy interface {
	Name() PolicyName
	Dispatch(env *Env, job *Job)
}

// Reporter receives one record per finished task.
type Reporter interface {
	Report(rec report.Record)
}

// Job carries one task through a policy. It survives resubmission, so the
// task keeps its identity across attempts.
type Job struct {
	Task      *Task
	Policy    PolicyName
	Attempt   int // 1 for the first attempt
	ArrivedAt float64

	seq uint64
}

// Env is the state shared by the policies of one simulation run: the clock,
// the sensors and the completion path. Policies receive it explicitly.
type Env struct {
	Engine  *sim.Engine
	Sensors []*sim.Resource
	Logger  *slog.Logger

	reporter         Reporter
	maxResubmissions int
	observe          func(StatusEvent)
	active           map[*Job]struct{}
	seq              uint64
}

// NewEnv creates sensors with the given names on a fresh engine.
func NewEnv(sensors []string, reporter Reporter, maxResubmissions int, logger *slog.Logger) *Env {
	if logger == nil {
		logger = slog.Default()
	}
	eng := sim.NewEngine()
	env := &Env{
		Engine:           eng,
		Logger:           logger,
		reporter:         reporter,
		maxResubmissions: maxResubmissions,
		observe:          func(StatusEvent) {},
		active:           make(map[*Job]struct{}),
	}
	for _, name := range sensors {
		env.Sensors = append(env.Sensors, sim.NewResource(eng, name))
	}
	return env
}

// Now is the current simulated time.
func (env *Env) Now() float64 { return env.Engine.Now() }

// Sensor returns the sensor at index i, clamped to the configured set.
func (env *Env) Sensor(i int) *sim.Resource {
	if i >= len(env.Sensors) {
		i = len(env.Sensors) - 1
	}
	if i < 0 {
		i = 0
	}
	return env.Sensors[i]
}

func (env *Env) newJob(t *Task, policy PolicyName) *Job {
	env.seq++
	job := &Job{Task: t, Policy: policy, Attempt: 1, ArrivedAt: env.Now(), seq: env.seq}
	env.active[job] = struct{}{}
	return job
}

// Observe records a state change of job.
func (env *Env) Observe(kind StatusKind, job *Job, sensor string, err error) {
	env.observe(StatusEvent{
		Time:    env.Now(),
		Kind:    kind,
		TaskID:  job.Task.ID,
		Policy:  job.Policy,
		Sensor:  sensor,
		Attempt: job.Attempt,
		Err:     err,
	})
}

// Finish emits the completion record of job. An empty sensor means the job
// ran on every sensor at once.
func (env *Env) Finish(job *Job, sensor string) {
	delete(env.active, job)
	env.Observe(StatusFinish, job, sensor, nil)

	if env.reporter == nil {
		return
	}
	t := job.Task
	env.reporter.Report(report.Record{
		TaskID:      string(t.ID),
		Sensor:      sensor,
		FinishTime:  env.Now(),
		Description: t.Description,
		Safety:      t.SafetyLabel,
		Realtime:    t.Criticality,
		Duration:    t.Duration,
		Attempts:    job.Attempt,
	})
}

// Abandon drops job without a completion record.
func (env *Env) Abandon(job *Job, err error) {
	delete(env.active, job)
	env.Observe(StatusAbandon, job, "", err)
}

// Resubmit hands a preempted job back to policy as a fresh arrival at the
// current time. Jobs past the resubmission bound are abandoned.
func (env *Env) Resubmit(job *Job, policy Policy) {
	if env.maxResubmissions > 0 && job.Attempt > env.maxResubmissions {
		env.Abandon(job, &ResubmitLimitError{TaskID: job.Task.ID, Limit: env.maxResubmissions})
		return
	}
	job.Attempt++
	env.Observe(StatusResubmit, job, "", nil)
	env.Engine.Schedule(0, func() { policy.Dispatch(env, job) })
}

// InFlight returns the jobs that have neither finished nor been abandoned,
// in arrival order.
func (env *Env) InFlight() []*Job {
	jobs := make([]*Job, 0, len(env.active))
	for job := range env.active {
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].seq < jobs[j].seq })
	return jobs
}

// run occupies the granted sensors for the task's duration, then releases
// them and calls done. The returned event can be cancelled on preemption.
func (env *Env) run(job *Job, sensor string, reqs []*sim.Request, done func()) *sim.Event {
	env.Observe(StatusStart, job, sensor, nil)
	return env.Engine.Schedule(job.Task.Duration, func() {
		for _, r := range reqs {
			r.Release()
		}
		done()
	})
}
