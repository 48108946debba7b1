package clock

import (
	"sync"
	"time"
)

// Fake is a virtual clock.
// It keeps elapsed (monotonic) time apart from wall time: timers and tickers wait on elapsed time
// like the runtime timers do, while Jump moves only the wall clock the way an NTP step, a DST
// change or a manual clock change does.
type Fake struct {
	mu      sync.Mutex
	cond    *sync.Cond
	wall    time.Time
	elapsed time.Duration
	waiters []*fakeWaiter
}

type fakeWaiter struct {
	fake     *Fake
	deadline time.Duration
	period   time.Duration
	fn       func()
	ch       chan time.Time
	active   bool
}

// NewFake returns a fake clock whose wall time starts at start
func NewFake(start time.Time) *Fake {
	f := &Fake{wall: start}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Now returns the current wall time
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.wall
}

// AfterFunc registers f to run after d of elapsed time.
// Callbacks run synchronously inside Advance.
func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	return fakeTimer{f.add(d, 0, fn, nil)}
}

// NewTicker returns a ticker driven by Advance
func (f *Fake) NewTicker(d time.Duration) Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}
	return fakeTicker{f.add(d, d, nil, make(chan time.Time, 1))}
}

func (f *Fake) add(d, period time.Duration, fn func(), ch chan time.Time) *fakeWaiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d < 0 {
		d = 0
	}
	w := &fakeWaiter{
		fake:     f,
		deadline: f.elapsed + d,
		period:   period,
		fn:       fn,
		ch:       ch,
		active:   true,
	}
	f.waiters = append(f.waiters, w)
	f.cond.Broadcast()
	return w
}

// Advance moves elapsed and wall time forward by d, firing every timer and ticker that falls due.
// Timers fire in deadline order with the clock set to their deadline.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.elapsed + d
	f.mu.Unlock()

	for {
		f.mu.Lock()
		var next *fakeWaiter
		for _, w := range f.waiters {
			if w.active && w.deadline <= target && (next == nil || w.deadline < next.deadline) {
				next = w
			}
		}
		if next == nil {
			f.wall = f.wall.Add(target - f.elapsed)
			f.elapsed = target
			f.mu.Unlock()
			return
		}

		if next.deadline > f.elapsed {
			f.wall = f.wall.Add(next.deadline - f.elapsed)
			f.elapsed = next.deadline
		}
		now := f.wall
		if next.period > 0 {
			next.deadline += next.period
		} else {
			f.removeLocked(next)
		}
		fn, ch := next.fn, next.ch
		f.mu.Unlock()

		if fn != nil {
			fn()
		} else {
			select {
			case ch <- now:
			default:
			}
		}
	}
}

// Jump moves only the wall clock; pending timers keep their elapsed-time deadlines
func (f *Fake) Jump(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wall = f.wall.Add(d)
}

// Set moves the wall clock to t without touching elapsed time
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wall = t
}

// Pending returns the number of active timers and tickers
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.waiters)
}

// BlockUntil waits until at least n timers or tickers are active
func (f *Fake) BlockUntil(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for len(f.waiters) < n {
		f.cond.Wait()
	}
}

func (f *Fake) removeLocked(w *fakeWaiter) bool {
	if !w.active {
		return false
	}
	w.active = false
	for i, other := range f.waiters {
		if other == w {
			f.waiters = append(f.waiters[:i], f.waiters[i+1:]...)
			break
		}
	}
	f.cond.Broadcast()
	return true
}

func (w *fakeWaiter) stop() bool {
	w.fake.mu.Lock()
	defer w.fake.mu.Unlock()
	return w.fake.removeLocked(w)
}

type fakeTimer struct{ w *fakeWaiter }

func (t fakeTimer) Stop() bool {
	return t.w.stop()
}

type fakeTicker struct{ w *fakeWaiter }

func (t fakeTicker) C() <-chan time.Time {
	return t.w.ch
}

func (t fakeTicker) Stop() {
	t.w.stop()
}
