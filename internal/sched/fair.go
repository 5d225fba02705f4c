package sched

import (
	"github.com/golang-collections/collections/queue"

	"sensorsched/internal/sim"
)

// DefaultPollInterval is the fair policy's idle-sensor poll period.
const DefaultPollInterval = 0.1

// FairMode selects how waiting fair tasks learn that a sensor is free.
type FairMode string

const (
	// FairPoll re-checks the sensors every poll interval. Two tasks racing
	// for a freed sensor are ordered by their next poll tick, not by their
	// original arrival, so FIFO is approximate.
	FairPoll FairMode = "poll"
	// FairNotify keeps waiters in arrival order and hands each freed sensor
	// to the oldest waiter.
	FairNotify FairMode = "notify"
)

// Fair dispatches without priority or preemption. A task takes the first
// idle sensor and holds it for its full duration.
type Fair struct {
	Mode         FairMode
	PollInterval float64

	waiting  *queue.Queue
	attached *Env
}

// NewFair returns a fair policy in the given mode.
func NewFair(mode FairMode, pollInterval float64) *Fair {
	return &Fair{Mode: mode, PollInterval: pollInterval, waiting: queue.New()}
}

func (p *Fair) Name() PolicyName { return PolicyFair }

// attach hooks the notify wait list onto the sensors of env.
func (p *Fair) attach(env *Env) {
	if p.Mode != FairNotify || p.attached == env {
		return
	}
	p.attached = env
	for _, s := range env.Sensors {
		s.OnIdle(func(res *sim.Resource) {
			if p.waiting.Len() == 0 {
				return
			}
			job := p.waiting.Dequeue().(*Job)
			p.claim(env, job, res)
		})
	}
}

func (p *Fair) Dispatch(env *Env, job *Job) {
	if p.Mode == FairNotify {
		p.attach(env)
		if p.waiting.Len() == 0 {
			if s := firstIdle(env); s != nil {
				p.claim(env, job, s)
				return
			}
		}
		env.Observe(StatusWait, job, "", nil)
		p.waiting.Enqueue(job)
		return
	}
	p.poll(env, job, true)
}

func (p *Fair) poll(env *Env, job *Job, first bool) {
	if s := firstIdle(env); s != nil {
		p.claim(env, job, s)
		return
	}
	if first {
		env.Observe(StatusWait, job, "", nil)
	}
	env.Engine.Schedule(p.PollInterval, func() { p.poll(env, job, false) })
}

// claim takes an idle sensor. The request is granted at once and cannot be
// preempted.
func (p *Fair) claim(env *Env, job *Job, s *sim.Resource) {
	s.Request(sim.Claim{
		Owner: string(job.Task.ID),
		OnGrant: func(r *sim.Request) {
			env.run(job, s.Name(), []*sim.Request{r}, func() { env.Finish(job, s.Name()) })
		},
	})
}

func firstIdle(env *Env) *sim.Resource {
	for _, s := range env.Sensors {
		if !s.Busy() {
			return s
		}
	}
	return nil
}
