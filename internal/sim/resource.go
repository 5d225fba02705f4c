// internal/sim/resource.go

package sim

import (
	"math"

	"github.com/emirpasic/gods/trees/redblacktree"
)

// Unconditional is a queue key more urgent than any finite key. A holder
// granted at this key can never be evicted by another request.
var Unconditional = math.Inf(-1)

// RequestState tracks a request through its life on a resource.
type RequestState int

const (
	Pending RequestState = iota
	Granted
	Released
	Cancelled
	Preempted
)

func (st RequestState) String() string {
	switch st {
	case Pending:
		return "Pending"
	case Granted:
		return "Granted"
	case Released:
		return "Released"
	case Cancelled:
		return "Cancelled"
	case Preempted:
		return "Preempted"
	default:
		return "Unknown"
	}
}

// Claim describes a request for a resource.
type Claim struct {
	Key         float64 // lower is more urgent
	Preempt     bool    // may evict a less urgent preemptible holder
	Preemptible bool    // may itself be evicted once granted
	Owner       string

	// OnGrant and OnPreempt are delivered as engine events, never inline.
	OnGrant   func(*Request)
	OnPreempt func(*Request)
}

// Request is one claim queued on, or holding, a resource.
type Request struct {
	res       *Resource
	claim     Claim
	key       queueKey
	state     RequestState
	grantedAt float64
}

// Owner returns the label the request was made with.
func (r *Request) Owner() string { return r.claim.Owner }

// Key returns the urgency key of the request.
func (r *Request) Key() float64 { return r.claim.Key }

// State returns the current state of the request.
func (r *Request) State() RequestState { return r.state }

// Resource returns the resource the request was made on.
func (r *Request) Resource() *Resource { return r.res }

// GrantedAt returns the simulated time the request was granted.
func (r *Request) GrantedAt() float64 { return r.grantedAt }

// Release gives the resource back. It reports false if the request was not
// holding it (already released, cancelled or preempted).
func (r *Request) Release() bool {
	if r.state != Granted {
		return false
	}
	r.state = Released
	r.res.holder = nil
	r.res.grantNext()
	r.res.notifyIdle()
	return true
}

// Cancel withdraws a pending request or releases a granted one.
func (r *Request) Cancel() bool {
	switch r.state {
	case Pending:
		r.state = Cancelled
		r.res.queue.Remove(r.key)
		return true
	case Granted:
		return r.Release()
	default:
		return false
	}
}

// Resource is an exclusive, capacity-one, preemptible unit with a wait queue
// ordered by key and then by enqueue order.
type Resource struct {
	name      string
	eng       *Engine
	holder    *Request
	queue     *redblacktree.Tree // ordered by (key, seq)
	seq       uint64
	listeners []func(*Resource)
}

// NewResource creates an idle resource driven by eng.
func NewResource(eng *Engine, name string) *Resource {
	return &Resource{
		name:  name,
		eng:   eng,
		queue: redblacktree.NewWith(cmpQueue),
	}
}

func (res *Resource) Name() string { return res.name }

// Busy reports whether the resource currently has a holder.
func (res *Resource) Busy() bool { return res.holder != nil }

// Holder returns the granted request, or nil when idle.
func (res *Resource) Holder() *Request { return res.holder }

// QueueLen returns the number of requests waiting.
func (res *Resource) QueueLen() int { return res.queue.Size() }

// Load is the wait queue length plus one if the resource is held.
func (res *Resource) Load() int {
	n := res.queue.Size()
	if res.holder != nil {
		n++
	}
	return n
}

// OnIdle registers fn to run, inline, whenever a release leaves the
// resource without a holder.
func (res *Resource) OnIdle(fn func(*Resource)) {
	res.listeners = append(res.listeners, fn)
}

// Request queues a claim. A free resource is granted at once; a preempting
// claim strictly more urgent than a preemptible holder evicts it.
func (res *Resource) Request(c Claim) *Request {
	res.seq++
	r := &Request{
		res:   res,
		claim: c,
		key:   queueKey{key: c.Key, seq: res.seq},
		state: Pending,
	}
	res.queue.Put(r.key, r)

	// a preemptor behind a more urgent waiter leaves the holder alone
	if h := res.holder; h != nil && c.Preempt && h.claim.Preemptible && c.Key < h.claim.Key &&
		res.queue.Left().Value.(*Request) == r {
		res.evict()
	}
	res.grantNext()
	return r
}

func (res *Resource) evict() {
	h := res.holder
	h.state = Preempted
	res.holder = nil
	if h.claim.OnPreempt != nil {
		res.eng.Schedule(0, func() { h.claim.OnPreempt(h) })
	}
}

func (res *Resource) grantNext() {
	if res.holder != nil {
		return
	}
	node := res.queue.Left()
	if node == nil {
		return
	}
	r := node.Value.(*Request)
	res.queue.Remove(node.Key)

	r.state = Granted
	r.grantedAt = res.eng.Now()
	res.holder = r
	if r.claim.OnGrant != nil {
		res.eng.Schedule(0, func() { r.claim.OnGrant(r) })
	}
}

func (res *Resource) notifyIdle() {
	for _, fn := range res.listeners {
		if res.holder != nil {
			return
		}
		fn(res)
	}
}

// queueKey orders waiting requests by urgency, then by enqueue order.
type queueKey struct {
	key float64
	seq uint64
}

func cmpQueue(a, b any) int {
	ka, kb := a.(queueKey), b.(queueKey)
	switch {
	case ka.key < kb.key:
		return -1
	case ka.key > kb.key:
		return 1
	case ka.seq < kb.seq:
		return -1
	case ka.seq > kb.seq:
		return 1
	default:
		return 0
	}
}
