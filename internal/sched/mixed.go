package sched

import (
	"sensorsched/internal/sim"
)

// DefaultMaxWait is how long a task waits for its primary sensor before
// failing over to the secondary one.
const DefaultMaxWait = 2.0

// MixedCritical is preemptive priority dispatch. ASIL-D tasks take every
// sensor at once; other tasks queue on the primary sensor by score and fail
// over to the secondary sensor when the primary stays busy too long.
type MixedCritical struct {
	MaxWait   float64
	Primary   int // index into the sensor set
	Secondary int
}

// NewMixedCritical returns the policy with the first sensor as primary and
// the second as backup.
func NewMixedCritical(maxWait float64) *MixedCritical {
	return &MixedCritical{MaxWait: maxWait, Primary: 0, Secondary: 1}
}

func (p *MixedCritical) Name() PolicyName { return PolicyMixedCritical }

// attempt is one pass of a job through the policy. A preempted attempt is
// dropped and the job is resubmitted with a fresh one.
type attempt struct {
	job     *Job
	sensor  *sim.Resource
	req     *sim.Request
	timeout *sim.Event
	finish  *sim.Event
	settled bool // the primary grant/timeout race is decided
	aborted bool
}

func (p *MixedCritical) Dispatch(env *Env, job *Job) {
	if job.Task.Safety == SafetyD {
		p.dispatchAll(env, job)
		return
	}

	key, err := job.Task.QueueKey()
	if err != nil {
		env.Abandon(job, err)
		return
	}

	primary := env.Sensor(p.Primary)
	a := &attempt{job: job, sensor: primary}
	a.req = primary.Request(sim.Claim{
		Key:         key,
		Preempt:     true,
		Preemptible: true,
		Owner:       string(job.Task.ID),
		OnGrant: func(r *sim.Request) {
			if a.settled || r.State() != sim.Granted {
				return
			}
			a.settled = true
			env.Engine.Cancel(a.timeout)
			p.execute(env, a)
		},
		OnPreempt: func(*sim.Request) { p.preempted(env, a) },
	})
	if a.req.State() == sim.Pending {
		env.Observe(StatusWait, job, primary.Name(), nil)
	}

	a.timeout = env.Engine.Schedule(p.MaxWait, func() {
		if a.settled {
			return
		}
		a.settled = true
		a.req.Cancel()
		env.Observe(StatusFallback, job, primary.Name(), nil)
		p.fallback(env, job, key)
	})
}

// fallback queues on the secondary sensor with no further timeout.
func (p *MixedCritical) fallback(env *Env, job *Job, key float64) {
	secondary := env.Sensor(p.Secondary)
	if secondary == env.Sensor(p.Primary) {
		env.Logger.Debug("secondary sensor is the primary", "task", job.Task.ID, "sensor", secondary.Name())
	}
	a := &attempt{job: job, sensor: secondary, settled: true}
	a.req = secondary.Request(sim.Claim{
		Key:         key,
		Preempt:     true,
		Preemptible: true,
		Owner:       string(job.Task.ID),
		OnGrant: func(r *sim.Request) {
			if r.State() != sim.Granted {
				return
			}
			p.execute(env, a)
		},
		OnPreempt: func(*sim.Request) { p.preempted(env, a) },
	})
	if a.req.State() == sim.Pending {
		env.Observe(StatusWait, job, secondary.Name(), nil)
	}
}

func (p *MixedCritical) execute(env *Env, a *attempt) {
	if a.aborted {
		return
	}
	name := a.sensor.Name()
	a.finish = env.run(a.job, name, []*sim.Request{a.req}, func() {
		env.Finish(a.job, name)
	})
}

// preempted drops the interrupted attempt without a record and starts the
// job over from the primary sensor.
func (p *MixedCritical) preempted(env *Env, a *attempt) {
	if a.aborted {
		return
	}
	a.aborted = true
	env.Engine.Cancel(a.finish)
	env.Engine.Cancel(a.timeout)

	intr := &PreemptionInterrupt{TaskID: a.job.Task.ID, Sensor: a.sensor.Name(), Attempt: a.job.Attempt}
	env.Observe(StatusPreempt, a.job, a.sensor.Name(), intr)
	env.Resubmit(a.job, p)
}

// dispatchAll requests every sensor at unconditional priority and starts
// only once all of them are held.
func (p *MixedCritical) dispatchAll(env *Env, job *Job) {
	reqs := make([]*sim.Request, 0, len(env.Sensors))
	remaining := len(env.Sensors)

	for _, s := range env.Sensors {
		r := s.Request(sim.Claim{
			Key:         sim.Unconditional,
			Preempt:     true,
			Preemptible: false,
			Owner:       string(job.Task.ID),
			OnGrant: func(*sim.Request) {
				remaining--
				if remaining > 0 {
					return
				}
				env.run(job, "", reqs, func() { env.Finish(job, "") })
			},
		})
		reqs = append(reqs, r)
	}

	for _, r := range reqs {
		if r.State() == sim.Pending {
			env.Observe(StatusWait, job, r.Resource().Name(), nil)
		}
	}
}
