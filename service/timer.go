package service

import (
	"container/heap"
	"sync"
	"time"

	"github.com/joinguard/joinguard/model"
)

// Scheduler arms one pending deadline per record key. Cancellation is
// best-effort; consumers must re-validate state when a deadline fires.
type Scheduler interface {
	Schedule(key model.RecordKey, at time.Time)
	Cancel(key model.RecordKey)
}

type deadlineEntry struct {
	key model.RecordKey
	at  time.Time
	seq uint64
}

type deadlineHeap []*deadlineEntry

func (h deadlineHeap) Len() int            { return len(h) }
func (h deadlineHeap) Less(i, j int) bool  { return h[i].at.Before(h[j].at) }
func (h deadlineHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *deadlineHeap) Push(x interface{}) { *h = append(*h, x.(*deadlineEntry)) }
func (h *deadlineHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// DeadlineTimer indexes record deadlines in a min-heap and invokes fire once
// per armed key when its deadline passes. Records own the deadline value; the
// timer only indexes it.
type DeadlineTimer struct {
	mu   sync.Mutex
	h    deadlineHeap
	live map[model.RecordKey]uint64
	seq  uint64

	kick     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	fire     func(key model.RecordKey)
}

func NewDeadlineTimer(fire func(key model.RecordKey)) *DeadlineTimer {
	return &DeadlineTimer{
		live: make(map[model.RecordKey]uint64),
		kick: make(chan struct{}, 1),
		stop: make(chan struct{}),
		fire: fire,
	}
}

func (t *DeadlineTimer) Start() {
	go t.run()
}

func (t *DeadlineTimer) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
}

// Schedule arms (or re-arms) the deadline for key. A later call replaces the
// earlier one; the superseded heap entry is dropped when popped.
func (t *DeadlineTimer) Schedule(key model.RecordKey, at time.Time) {
	t.mu.Lock()
	t.seq++
	t.live[key] = t.seq
	heap.Push(&t.h, &deadlineEntry{key: key, at: at, seq: t.seq})
	t.mu.Unlock()
	select {
	case t.kick <- struct{}{}:
	default:
	}
}

func (t *DeadlineTimer) Cancel(key model.RecordKey) {
	t.mu.Lock()
	delete(t.live, key)
	t.mu.Unlock()
}

func (t *DeadlineTimer) run() {
	for {
		t.mu.Lock()
		var due []model.RecordKey
		wait := time.Duration(-1)
		now := time.Now()
		for t.h.Len() > 0 {
			next := t.h[0]
			if seq, ok := t.live[next.key]; !ok || seq != next.seq {
				heap.Pop(&t.h)
				continue
			}
			if d := next.at.Sub(now); d > 0 {
				wait = d
				break
			}
			heap.Pop(&t.h)
			delete(t.live, next.key)
			due = append(due, next.key)
		}
		t.mu.Unlock()

		for _, key := range due {
			go t.fire(key)
		}

		if wait < 0 {
			select {
			case <-t.kick:
			case <-t.stop:
				return
			}
		} else {
			timer := time.NewTimer(wait)
			select {
			case <-t.kick:
				timer.Stop()
			case <-timer.C:
			case <-t.stop:
				timer.Stop()
				return
			}
		}
	}
}
