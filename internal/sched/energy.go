package sched

import (
	"sensorsched/internal/sim"
)

// EnergyAware places each task on the least loaded sensor, preferring the
// earliest sensor on ties, and never preempts. Under light load every task
// lands on the first sensor.
type EnergyAware struct{}

func (EnergyAware) Name() PolicyName { return PolicyEnergyAware }

// Place returns the sensor with the lowest load estimate.
func (EnergyAware) Place(sensors []*sim.Resource) *sim.Resource {
	var best *sim.Resource
	for _, s := range sensors {
		if best == nil || s.Load() < best.Load() {
			best = s
		}
	}
	return best
}

func (p EnergyAware) Dispatch(env *Env, job *Job) {
	key, err := job.Task.QueueKey()
	if err != nil {
		env.Abandon(job, err)
		return
	}

	s := p.Place(env.Sensors)
	r := s.Request(sim.Claim{
		Key:   key,
		Owner: string(job.Task.ID),
		OnGrant: func(r *sim.Request) {
			env.run(job, s.Name(), []*sim.Request{r}, func() { env.Finish(job, s.Name()) })
		},
	})
	if r.State() == sim.Pending {
		env.Observe(StatusWait, job, s.Name(), nil)
	}
}
