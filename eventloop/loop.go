// Copyright 2018-present the CoreDHCP Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

// Package eventloop implements the single-goroutine dispatcher this
// daemon runs everything on: a min-heap of armed timers standing in
// for the original's uloop_timeout, and a drain-to-exhaustion read
// loop per socket standing in for its epoll edge-triggered mode.
// Nothing outside this package ever mutates PA/routing state directly
// from a network callback; every reaction goes back through RunSoon,
// so ordering stays the same whether the trigger was a timer or a
// socket read.
package eventloop

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// Loop is a single-goroutine scheduler satisfying pa.Scheduler
// (RunSoon/RunAfter) plus socket registration. It is not safe to call
// Run concurrently with itself, but RunSoon/RunAfter/Register may be
// called from any goroutine.
type Loop struct {
	mu       sync.Mutex
	timers   timerHeap
	wake     chan struct{}
	seq      uint64
	cancelCh chan uint64
}

// New builds an idle Loop. Call Run to start dispatching.
func New() *Loop {
	return &Loop{
		wake:     make(chan struct{}, 1),
		cancelCh: make(chan uint64, 16),
	}
}

type timerEntry struct {
	id    uint64
	at    time.Time
	fn    func()
	index int
}

type timerHeap []*timerEntry

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].at.Before(h[j].at) }
func (h timerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *timerHeap) Push(x interface{}) {
	e := x.(*timerEntry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// TimerHandle cancels a timer armed with RunAfter, if it has not
// already fired.
type TimerHandle struct {
	loop *Loop
	id   uint64
}

// Cancel prevents a not-yet-fired timer from running. A no-op if the
// timer already fired or was already canceled.
func (h TimerHandle) Cancel() {
	if h.loop == nil {
		return
	}
	select {
	case h.loop.cancelCh <- h.id:
		h.loop.poke()
	default:
	}
}

// RunSoon schedules fn to run on the loop goroutine as soon as
// possible, never synchronously from the calling goroutine. Satisfies
// pa.Scheduler.
func (l *Loop) RunSoon(fn func()) {
	l.RunAfter(0, fn)
}

// RunAfter schedules fn to run on the loop goroutine no earlier than
// d from now. Satisfies pa.Scheduler; use RunAfterCancelable for a
// handle that can cancel the timer before it fires.
func (l *Loop) RunAfter(d time.Duration, fn func()) {
	l.RunAfterCancelable(d, fn)
}

// RunAfterCancelable is RunAfter but returns a handle the caller can
// use to cancel the timer before it fires.
func (l *Loop) RunAfterCancelable(d time.Duration, fn func()) TimerHandle {
	l.mu.Lock()
	l.seq++
	id := l.seq
	heap.Push(&l.timers, &timerEntry{id: id, at: time.Now().Add(d), fn: fn})
	l.mu.Unlock()
	l.poke()
	return TimerHandle{loop: l, id: id}
}

func (l *Loop) poke() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run dispatches armed timers until ctx is canceled. Timer callbacks
// run synchronously on this goroutine, one at a time, in deadline
// order, which is the ordering guarantee the rest of the daemon
// depends on.
func (l *Loop) Run(ctx context.Context) {
	for {
		l.mu.Lock()
		var wait time.Duration
		var due *timerEntry
		if l.timers.Len() > 0 {
			wait = time.Until(l.timers[0].at)
			if wait <= 0 {
				due = heap.Pop(&l.timers).(*timerEntry)
			}
		} else {
			wait = time.Hour
		}
		l.mu.Unlock()

		if due != nil {
			due.fn()
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		case <-l.wake:
			timer.Stop()
		case id := <-l.cancelCh:
			timer.Stop()
			l.removeTimer(id)
		}
	}
}

func (l *Loop) removeTimer(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, e := range l.timers {
		if e.id == id {
			heap.Remove(&l.timers, i)
			return
		}
	}
}
