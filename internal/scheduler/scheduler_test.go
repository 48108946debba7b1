package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/belphemur/athan-scheduler/internal/clock"
	"github.com/belphemur/athan-scheduler/internal/gate"
	"github.com/belphemur/athan-scheduler/internal/prayer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCalendar struct {
	mu     sync.Mutex
	events []prayer.Event
	err    error
}

func (f *fakeCalendar) CurrentAndNextDayEvents(ctx context.Context, now time.Time) ([]prayer.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]prayer.Event(nil), f.events...), nil
}

func (f *fakeCalendar) set(events []prayer.Event, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = events
	f.err = err
}

type fakeGate struct {
	mu      sync.Mutex
	calls   map[prayer.Key]int
	fired   chan prayer.Event
	panicOn prayer.Name
}

func newFakeGate() *fakeGate {
	return &fakeGate{calls: make(map[prayer.Key]int), fired: make(chan prayer.Event, 16)}
}

func (g *fakeGate) Trigger(ctx context.Context, event prayer.Event) (gate.Decision, error) {
	g.mu.Lock()
	g.calls[event.Key()]++
	g.mu.Unlock()
	g.fired <- event
	if event.Name == g.panicOn {
		panic("player exploded")
	}
	return gate.Decision{Allowed: true, Reason: gate.ReasonAuthorized, Event: event}, nil
}

func (g *fakeGate) count(key prayer.Key) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[key]
}

func (g *fakeGate) total() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		n += c
	}
	return n
}

func expectFiring(t *testing.T, g *fakeGate, name prayer.Name) prayer.Event {
	t.Helper()
	select {
	case e := <-g.fired:
		require.Equal(t, name, e.Name)
		return e
	case <-time.After(2 * time.Second):
		t.Fatalf("%s did not fire", name)
		return prayer.Event{}
	}
}

func expectNoFiring(t *testing.T, g *fakeGate) {
	t.Helper()
	select {
	case e := <-g.fired:
		t.Fatalf("unexpected firing of %s", e.Key())
	case <-time.After(100 * time.Millisecond):
	}
}

var (
	fajrToday    = prayer.Event{Date: "2026-10-18", Name: prayer.Fajr, Time: "06:30"}
	sunrise      = prayer.Event{Date: "2026-10-18", Name: prayer.Sunrise, Time: "07:52"}
	dhuhrToday   = prayer.Event{Date: "2026-10-18", Name: prayer.Dhuhr, Time: "12:45"}
	asrToday     = prayer.Event{Date: "2026-10-18", Name: prayer.Asr, Time: "15:10"}
	fajrTomorrow = prayer.Event{Date: "2026-10-19", Name: prayer.Fajr, Time: "06:31"}
)

func testEvents() []prayer.Event {
	return []prayer.Event{fajrToday, sunrise, dhuhrToday, asrToday, fajrTomorrow}
}

type harness struct {
	sched    *Scheduler
	fake     *clock.Fake
	calendar *fakeCalendar
	gate     *fakeGate
	loc      *time.Location
}

func setup(t *testing.T, rearmInterval time.Duration) *harness {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)

	h := &harness{
		fake:     clock.NewFake(time.Date(2026, 10, 18, 10, 0, 0, 0, loc)),
		calendar: &fakeCalendar{events: testEvents()},
		gate:     newFakeGate(),
		loc:      loc,
	}
	h.sched = New(h.calendar, h.gate, h.fake, loc, rearmInterval, time.Minute)
	return h
}

func (h *harness) run(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.sched.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestRearm_ArmsOnlyFutureCanonicalEvents(t *testing.T) {
	h := setup(t, 6*time.Hour)

	summary := h.sched.Rearm(testEvents())
	assert.Equal(t, RearmSummary{Armed: 3, Skipped: 2}, summary)
	assert.Equal(t, 3, h.fake.Pending())

	armed := h.sched.Armed()
	require.Len(t, armed, 3)
	assert.Equal(t, dhuhrToday, armed[0].Event)
	assert.Equal(t, time.Date(2026, 10, 18, 12, 45, 0, 0, h.loc), armed[0].FireAt)
	assert.Equal(t, asrToday, armed[1].Event)
	assert.Equal(t, fajrTomorrow, armed[2].Event)
}

func TestRearm_IsIdempotent(t *testing.T) {
	h := setup(t, 6*time.Hour)

	first := h.sched.Rearm(testEvents())
	armedOnce := h.sched.Armed()
	second := h.sched.Rearm(testEvents())

	assert.Equal(t, first, second)
	assert.Equal(t, armedOnce, h.sched.Armed())
	assert.Equal(t, 3, h.fake.Pending(), "the first timers were cancelled")
}

func TestRearm_SkipsDuplicatesAndInvalidTimes(t *testing.T) {
	h := setup(t, 6*time.Hour)

	summary := h.sched.Rearm([]prayer.Event{
		dhuhrToday,
		{Date: "2026-10-18", Name: prayer.Dhuhr, Time: "12:50"},
		{Date: "2026-10-18", Name: prayer.Isha, Time: "late"},
	})
	assert.Equal(t, RearmSummary{Armed: 1, Skipped: 2}, summary)
}

func TestRun_FiresEachPrayerExactlyOnce(t *testing.T) {
	h := setup(t, 6*time.Hour)
	h.run(t)
	h.fake.BlockUntil(4)

	h.fake.Advance(2*time.Hour + 45*time.Minute)
	expectFiring(t, h.gate, prayer.Dhuhr)
	require.Eventually(t, func() bool { return h.sched.HasFired(dhuhrToday.Key()) }, time.Second, 5*time.Millisecond)

	// Re-arming with the same calendar never re-arms a fired prayer
	summary := h.sched.Rearm(testEvents())
	assert.Equal(t, RearmSummary{Armed: 2, Skipped: 3}, summary)

	h.fake.Advance(2*time.Hour + 25*time.Minute)
	expectFiring(t, h.gate, prayer.Asr)
	expectNoFiring(t, h.gate)

	assert.Equal(t, 1, h.gate.count(dhuhrToday.Key()))
	assert.Equal(t, 1, h.gate.count(asrToday.Key()))
	assert.Equal(t, []ArmedTrigger{{Event: fajrTomorrow, FireAt: time.Date(2026, 10, 19, 6, 31, 0, 0, h.loc)}}, h.sched.Armed())
}

func TestRun_TriggerWokenEarlySleepsAgain(t *testing.T) {
	h := setup(t, 6*time.Hour)
	h.run(t)
	h.fake.BlockUntil(4)

	// Wall clock set back 30 minutes after arming
	h.fake.Jump(-30 * time.Minute)
	h.fake.Advance(2*time.Hour + 45*time.Minute)

	// Dhuhr's timer woke at 12:15 wall time and was armed again for the remainder
	h.fake.BlockUntil(4)
	assert.Equal(t, 0, h.gate.total())

	h.fake.Advance(30 * time.Minute)
	expectFiring(t, h.gate, prayer.Dhuhr)
	assert.Equal(t, 1, h.gate.count(dhuhrToday.Key()))
}

func TestRearm_DueTriggerReplacedBeforeDispatchStillFires(t *testing.T) {
	h := setup(t, 6*time.Hour)
	h.sched.Rearm(testEvents())

	// Dhuhr comes due while nothing dispatches yet
	h.fake.Advance(2*time.Hour + 45*time.Minute)
	summary := h.sched.Rearm(testEvents())
	assert.Equal(t, 3, summary.Armed, "the due dhuhr is carried over")

	h.run(t)
	expectFiring(t, h.gate, prayer.Dhuhr)
	expectNoFiring(t, h.gate)
	assert.Equal(t, 1, h.gate.count(dhuhrToday.Key()))
}

func TestRearm_LongOverdueTriggerIsDropped(t *testing.T) {
	h := setup(t, 6*time.Hour)
	h.sched.Rearm(testEvents())

	// The wall clock leaps past Dhuhr by more than the grace period
	h.fake.Jump(3 * time.Hour)
	summary := h.sched.Rearm(testEvents())
	assert.Equal(t, RearmSummary{Armed: 2, Skipped: 3}, summary)
	assert.Equal(t, asrToday, h.sched.Armed()[0].Event)
}

func TestRun_PanicInOneFiringDoesNotAffectOthers(t *testing.T) {
	h := setup(t, 6*time.Hour)
	h.gate.panicOn = prayer.Dhuhr
	h.run(t)
	h.fake.BlockUntil(4)

	h.fake.Advance(2*time.Hour + 45*time.Minute)
	expectFiring(t, h.gate, prayer.Dhuhr)

	h.fake.Advance(2*time.Hour + 25*time.Minute)
	expectFiring(t, h.gate, prayer.Asr)
	assert.True(t, h.sched.HasFired(dhuhrToday.Key()))
}

func TestResync_KeepsTriggersWhenCalendarFails(t *testing.T) {
	h := setup(t, 6*time.Hour)
	_, err := h.sched.Resync(context.Background())
	require.NoError(t, err)

	h.calendar.set(nil, errors.New("database is locked"))
	_, err = h.sched.Resync(context.Background())
	assert.Error(t, err)
	assert.Len(t, h.sched.Armed(), 3)
}

func TestRun_PeriodicRearmPicksUpNewEvents(t *testing.T) {
	h := setup(t, time.Hour)
	h.calendar.set([]prayer.Event{asrToday}, nil)
	h.run(t)
	h.fake.BlockUntil(2)
	require.Len(t, h.sched.Armed(), 1)

	maghrib := prayer.Event{Date: "2026-10-18", Name: prayer.Maghrib, Time: "18:38"}
	h.calendar.set([]prayer.Event{asrToday, maghrib}, nil)
	h.fake.Advance(time.Hour)

	assert.Eventually(t, func() bool { return len(h.sched.Armed()) == 2 }, time.Second, 5*time.Millisecond)
}

func TestResync_AfterForwardJumpFiresOnNewWallTime(t *testing.T) {
	h := setup(t, 6*time.Hour)
	h.run(t)
	h.fake.BlockUntil(4)

	// 10:00 becomes 12:00; under the old schedule Dhuhr would still be 2h45m away
	h.fake.Jump(2 * time.Hour)
	_, err := h.sched.Resync(context.Background())
	require.NoError(t, err)

	h.fake.Advance(45 * time.Minute)
	expectFiring(t, h.gate, prayer.Dhuhr)
}
