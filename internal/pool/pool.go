// Package pool runs recurring jobs in deadline order on a fixed number of
// goroutines. Each job returns the deadline of its next run; returning the
// zero time removes the job from the pool. A job added or triggered while
// workers are waiting wakes them up so earlier deadlines are honored
// immediately.
package pool

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

type Pool struct {
	mu    sync.Mutex
	queue []*job
	reg   map[string]*job
	wait  chan struct{}
}

type job struct {
	name     string
	fn       func(context.Context) time.Time
	deadline time.Time
	rerun    bool
}

func New(workers int) *Pool {
	p := Pool{reg: make(map[string]*job)}

	for range workers {
		go p.work()
	}

	return &p
}

// Add registers a job under a unique name and schedules its first run
// immediately.
func (p *Pool) Add(name string, fn func(context.Context) time.Time) {
	p.enqueue(&job{name: name, fn: fn, deadline: time.Now()})
}

func (p *Pool) work() {
	for {
		j := p.dequeue()
		j.deadline = j.fn(context.Background())
		if j.rerun {
			j.rerun = false
			j.deadline = time.Now()
		}
		p.enqueue(j)
	}
}

// Trigger runs the named job NOW. If it is queued, it is pulled to the
// front regardless of its deadline. If it is not queued it must be running;
// its next deadline is overridden to NOW, causing an immediate re-run after
// the current one completes.
func (p *Pool) Trigger(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if i := slices.IndexFunc(p.queue, func(j *job) bool { return j.name == name }); i != -1 {
		p.queue[i].deadline = time.Now()
		p.sortAndWake()
		return nil
	}

	if j, ok := p.reg[name]; ok {
		j.rerun = true
		return nil
	}

	return fmt.Errorf("no job with name %s", name)
}

// sortAndWake must be called with p.mu held.
func (p *Pool) sortAndWake() {
	slices.SortFunc(p.queue, func(a, b *job) int {
		return a.deadline.Compare(b.deadline)
	})

	if p.wait != nil {
		close(p.wait)
		p.wait = nil
	}
}

func (p *Pool) enqueue(j *job) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if j.deadline.IsZero() {
		// Job requested removal from the pool.
		delete(p.reg, j.name)
		return
	}

	p.reg[j.name] = j
	p.queue = append(p.queue, j)
	p.sortAndWake()
}

func (p *Pool) dequeue() *job {
	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		var next *job
		if len(p.queue) == 0 {
			// Nothing queued; park on a far-future deadline until woken.
			next = &job{deadline: time.Now().Add(time.Hour * 24 * 365)}
		} else {
			next = p.queue[0]
		}

		if !next.deadline.After(time.Now()) {
			break
		}

		// Not ready yet. Wait for the deadline or for an earlier job to
		// arrive.
		if p.wait == nil {
			p.wait = make(chan struct{})
		}
		wait := p.wait

		p.mu.Unlock()
		select {
		case <-time.After(time.Until(next.deadline)):
		case <-wait:
		}
		p.mu.Lock()
	}

	var j *job
	j, p.queue = p.queue[0], p.queue[1:]
	return j
}
