// Package workerpool runs a session's dispatched envelope handlers on a
// bounded number of goroutines, so a burst of inbound messages can't
// spawn one goroutine per envelope and a single slow handler can't stall
// the read loop that feeds it.
package workerpool

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/screencontrol/core/internal/logging"
)

var log = logging.L("workerpool")

// Task is a unit of dispatch work, typically a closure over one decoded
// envelope.
type Task func()

// Pool is a bounded goroutine pool with a fixed-size task queue. name
// identifies the pool in logs, since a process can run more than one
// (an agent's session dispatch pool and a server's per-agent dispatch
// pool, for instance).
type Pool struct {
	name       string
	maxWorkers int
	queue      chan queuedTask
	wg         sync.WaitGroup
	accepting  atomic.Bool
	stopOnce   sync.Once
	closeOnce  sync.Once
	stopChan   chan struct{}
}

type queuedTask struct {
	label string
	run   Task
}

// New creates a pool with maxWorkers goroutines and a task queue of queueSize.
func New(name string, maxWorkers, queueSize int) *Pool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}

	p := &Pool{
		name:       name,
		maxWorkers: maxWorkers,
		queue:      make(chan queuedTask, queueSize),
		stopChan:   make(chan struct{}),
	}
	p.accepting.Store(true)

	for i := 0; i < maxWorkers; i++ {
		go p.worker()
	}

	log.Info("worker pool started", "pool", name, "workers", maxWorkers, "queueSize", queueSize)
	return p
}

// Submit enqueues a task tagged with label, used only for logging (the
// session dispatch pool passes the envelope's Kind()). Returns false if
// the pool is stopped or the queue is full.
func (p *Pool) Submit(label string, task Task) bool {
	if !p.accepting.Load() {
		return false
	}

	p.wg.Add(1)
	select {
	case p.queue <- queuedTask{label: label, run: task}:
		return true
	default:
		p.wg.Done()
		log.Warn("worker pool queue full, task rejected", "pool", p.name, "task", label)
		return false
	}
}

// StopAccepting prevents new tasks from being submitted.
func (p *Pool) StopAccepting() {
	p.accepting.Store(false)
}

// Drain waits for all in-flight and queued tasks to complete, respecting
// the context deadline. Call StopAccepting first to prevent new submissions.
func (p *Pool) Drain(ctx context.Context) {
	p.stopOnce.Do(func() {
		close(p.stopChan)
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("worker pool drained", "pool", p.name)
	case <-ctx.Done():
		log.Warn("worker pool drain timed out", "pool", p.name)
	}

	p.closeOnce.Do(func() {
		close(p.queue)
	})
}

func (p *Pool) worker() {
	for {
		select {
		case task, ok := <-p.queue:
			if !ok {
				return
			}
			p.runTask(task)
		case <-p.stopChan:
			for {
				select {
				case task, ok := <-p.queue:
					if !ok {
						return
					}
					p.runTask(task)
				default:
					return
				}
			}
		}
	}
}

func (p *Pool) runTask(task queuedTask) {
	defer p.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Error("task panicked", "pool", p.name, "task", task.label, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	task.run()
}
