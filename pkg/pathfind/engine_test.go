package pathfind

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mesh-planner/pkg/source"
)

// manual collects continuations so tests decide when they run.
type manual struct {
	queue []func()
}

func (m *manual) schedule(fn func()) { m.queue = append(m.queue, fn) }

func (m *manual) drain() int {
	n := 0
	for len(m.queue) > 0 {
		fn := m.queue[0]
		m.queue = m.queue[1:]
		fn()
		n++
	}
	return n
}

// recorder keeps every event the engine fires.
type recorder struct {
	events []Event
}

func (r *recorder) attach(e *Engine) {
	for _, t := range []EventType{EventStart, EventCalculating, EventPause, EventFinish} {
		e.On(t, func(ev Event) { r.events = append(r.events, ev) })
	}
}

func (r *recorder) of(t EventType) []Event {
	var out []Event
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func line(a, b orb.Point) *geojson.Feature {
	return geojson.NewFeature(orb.LineString{a, b})
}

// grid builds the unit segments of an n x n lattice: horizontal rows first,
// then vertical columns.
func grid(n int) (*source.Collection, map[string]*geojson.Feature) {
	src := source.New()
	named := make(map[string]*geojson.Feature)
	for y := 0; y < n; y++ {
		for x := 0; x < n-1; x++ {
			f := line(orb.Point{float64(x), float64(y)}, orb.Point{float64(x + 1), float64(y)})
			named[name('h', x, y)] = f
			src.Add(f)
		}
	}
	for x := 0; x < n; x++ {
		for y := 0; y < n-1; y++ {
			f := line(orb.Point{float64(x), float64(y)}, orb.Point{float64(x), float64(y + 1)})
			named[name('v', x, y)] = f
			src.Add(f)
		}
	}
	return src, named
}

func name(kind byte, x, y int) string {
	return string([]byte{kind, byte('0' + x), byte('0' + y)})
}

func coords(route []*geojson.Feature) []orb.LineString {
	out := make([]orb.LineString, len(route))
	for i, f := range route {
		out[i] = f.Geometry.(orb.LineString)
	}
	return out
}

func TestGridCornerToCorner(t *testing.T) {
	src, named := grid(3)
	m := &manual{}
	e := New(src, WithScheduler(m.schedule))
	rec := &recorder{}
	rec.attach(e)

	snapped, ok := e.Path(orb.Point{-0.1, -0.1}, orb.Point{2.2, 2.1})
	require.True(t, ok)
	assert.Equal(t, [2]orb.Point{{0, 0}, {2, 2}}, snapped)
	assert.Equal(t, Running, e.State())
	require.Len(t, m.queue, 1, "the first step is scheduled, not run")

	m.drain()
	assert.Equal(t, Finished, e.State())

	require.Len(t, rec.of(EventStart), 1)
	finish := rec.of(EventFinish)
	require.Len(t, finish, 1)
	assert.Equal(t, 4.0, finish[0].WDistance)
	assert.Equal(t, 4.0, finish[0].Distance)
	assert.Equal(t, 8, finish[0].Iteration)

	want := []*geojson.Feature{named["h00"], named["v10"], named["h11"], named["v21"]}
	if diff := cmp.Diff(coords(want), coords(finish[0].Route)); diff != "" {
		t.Errorf("route (-want +got):\n%s", diff)
	}
	assert.Equal(t, finish[0].Route, e.Route())
	assert.Equal(t, e.Route(), e.BestWay())
}

func TestTrivialPath(t *testing.T) {
	src, _ := grid(2)
	m := &manual{}
	e := New(src, WithScheduler(m.schedule))
	rec := &recorder{}
	rec.attach(e)

	_, ok := e.Path(orb.Point{0, 0}, orb.Point{0.01, 0})
	assert.False(t, ok)
	assert.Empty(t, m.queue)
	assert.Empty(t, rec.of(EventStart))

	finish := rec.of(EventFinish)
	require.Len(t, finish, 1)
	assert.Empty(t, finish[0].Route)
	assert.Equal(t, -1.0, finish[0].WDistance)
	assert.Equal(t, -1.0, finish[0].Distance)
	assert.Equal(t, Finished, e.State())
}

func TestNoEdges(t *testing.T) {
	e := New(source.New(), WithScheduler((&manual{}).schedule))
	_, ok := e.Path(orb.Point{0, 0}, orb.Point{1, 1})
	assert.False(t, ok)
	assert.Equal(t, Idle, e.State())

	_, err := e.Run(context.Background(), orb.Point{0, 0}, orb.Point{1, 1})
	assert.True(t, errors.Is(err, ErrNoEdges))
}

func TestSecondPathRejectedWhileRunning(t *testing.T) {
	src, _ := grid(3)
	m := &manual{}
	e := New(src, WithScheduler(m.schedule))

	_, ok := e.Path(orb.Point{0, 0}, orb.Point{2, 2})
	require.True(t, ok)
	_, ok = e.Path(orb.Point{0, 0}, orb.Point{1, 2})
	assert.False(t, ok)

	_, err := e.Run(context.Background(), orb.Point{0, 0}, orb.Point{1, 2})
	assert.True(t, errors.Is(err, ErrBusy))

	m.drain()
	_, ok = e.Path(orb.Point{0, 0}, orb.Point{1, 2})
	assert.True(t, ok, "a finished engine accepts a new search")
	m.drain()
	assert.Equal(t, 3.0, resultOf(e.result).WDistance)
}

func TestOneWayEdge(t *testing.T) {
	a, b, c := orb.Point{0, 0}, orb.Point{2, 0}, orb.Point{1, 1}
	direct := line(a, b)
	direct.Properties["oneway"] = "-1"
	src := source.New(direct, line(a, c), line(c, b))

	e := New(src,
		WithScheduler((&manual{}).schedule),
		WithPolicy(Policy{Direction: PropertyDirection("oneway")}))

	res, err := e.Run(context.Background(), a, b)
	require.NoError(t, err)
	require.Len(t, res.Route, 2, "the direct edge only runs from b to a")
	assert.NotContains(t, res.Route, direct)
	assert.InDelta(t, 2*math.Sqrt2, res.WDistance, 1e-12)

	res, err = e.Run(context.Background(), b, a)
	require.NoError(t, err)
	assert.Equal(t, []*geojson.Feature{direct}, res.Route)
	assert.Equal(t, 2.0, res.WDistance)
}

func TestBlockedEdge(t *testing.T) {
	a, b := orb.Point{0, 0}, orb.Point{1, 0}
	blocked := line(a, b)
	blocked.Properties["oneway"] = "blocked"
	e := New(source.New(blocked), WithPolicy(Policy{Direction: PropertyDirection("oneway")}))

	res, err := e.Run(context.Background(), a, b)
	require.NoError(t, err)
	assert.False(t, res.Found())
	assert.Equal(t, -1.0, res.WDistance)
}

func TestWeightPreference(t *testing.T) {
	a, b := orb.Point{0, 0}, orb.Point{2, 0}
	up, down := orb.Point{1, 1}, orb.Point{1, -1}

	slow := line(a, up)
	slow.Properties["speed"] = 1.0
	upper := []*geojson.Feature{slow, line(up, b)}
	lower := []*geojson.Feature{line(a, down), line(down, b)}

	// the upper route is listed first, so it wins every tie
	src := source.New(append(append([]*geojson.Feature{}, upper...), lower...)...)
	e := New(src, WithPolicy(Policy{
		Weight:    PropertyWeight("speed", 0.5),
		MinWeight: 0.5,
	}))

	res, err := e.Run(context.Background(), a, b)
	require.NoError(t, err)
	assert.Equal(t, lower, res.Route)
	assert.InDelta(t, math.Sqrt2, res.WDistance, 1e-12)
	assert.InDelta(t, 2*math.Sqrt2, res.Distance, 1e-12)

	delete(slow.Properties, "speed")
	res, err = e.Run(context.Background(), a, b)
	require.NoError(t, err)
	assert.Equal(t, upper, res.Route)
}

func TestOverflowPauseAndResume(t *testing.T) {
	src, _ := grid(4)
	want, err := New(src).Run(context.Background(), orb.Point{0, 0}, orb.Point{3, 3})
	require.NoError(t, err)
	require.True(t, want.Found())

	m := &manual{}
	e := New(src, WithScheduler(m.schedule), WithMaxIteration(1))
	rec := &recorder{}
	rec.attach(e)

	_, ok := e.Path(orb.Point{0, 0}, orb.Point{3, 3})
	require.True(t, ok)
	m.drain()

	pauses := rec.of(EventPause)
	require.Len(t, pauses, 1)
	assert.True(t, pauses[0].Overflow)
	assert.Equal(t, Paused, e.State())
	assert.NotEmpty(t, e.BestWay(), "the frontier shows progress")

	for i := 0; e.State() == Paused; i++ {
		require.Less(t, i, 100, "search never finished")
		require.True(t, e.Resume())
		m.drain()
	}

	finish := rec.of(EventFinish)
	require.Len(t, finish, 1)
	assert.Equal(t, want.WDistance, finish[0].WDistance)
	assert.Equal(t, want.Route, finish[0].Route)
	assert.False(t, e.Resume(), "nothing left to resume")
}

func TestRunReportsOverflow(t *testing.T) {
	src, _ := grid(3)
	e := New(src, WithMaxIteration(2))

	_, err := e.Run(context.Background(), orb.Point{0, 0}, orb.Point{2, 2})
	assert.True(t, errors.Is(err, ErrOverflow))
	assert.Equal(t, Paused, e.State())
}

func TestRunHonorsCancellation(t *testing.T) {
	src, _ := grid(3)
	e := New(src)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Run(ctx, orb.Point{0, 0}, orb.Point{2, 2})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, Paused, e.State())

	m := &manual{}
	e.schedule = m.schedule
	require.True(t, e.Resume())
	m.drain()
	assert.Equal(t, Finished, e.State())
	assert.Equal(t, 4.0, resultOf(e.result).WDistance)
}

func TestResumeRefusedDuringRun(t *testing.T) {
	src, _ := grid(3)
	m := &manual{}
	e := New(src, WithScheduler(m.schedule), WithStepIteration(1))
	rec := &recorder{}
	rec.attach(e)

	var resumed []bool
	e.On(EventCalculating, func(Event) { resumed = append(resumed, e.Resume()) })

	res, err := e.Run(context.Background(), orb.Point{0, 0}, orb.Point{2, 2})
	require.NoError(t, err)
	assert.Equal(t, 4.0, res.WDistance)
	require.NotEmpty(t, resumed)
	for _, ok := range resumed {
		assert.False(t, ok)
	}
	assert.Empty(t, m.queue, "nothing scheduled behind Run")
	assert.Len(t, rec.of(EventFinish), 1)
}

func TestPauseDuringRunThenResume(t *testing.T) {
	src, _ := grid(3)
	m := &manual{}
	e := New(src, WithScheduler(m.schedule), WithStepIteration(1))
	rec := &recorder{}
	rec.attach(e)

	paused := false
	e.On(EventCalculating, func(Event) {
		if !paused {
			paused = true
			e.Pause()
			assert.False(t, e.Resume(), "Run still owns the search")
		}
	})

	_, err := e.Run(context.Background(), orb.Point{0, 0}, orb.Point{2, 2})
	assert.True(t, errors.Is(err, ErrPaused))
	assert.Equal(t, Paused, e.State())
	assert.Empty(t, m.queue)

	require.True(t, e.Resume())
	m.drain()
	assert.Equal(t, Finished, e.State())
	require.Len(t, rec.of(EventFinish), 1)
	assert.Equal(t, 4.0, rec.of(EventFinish)[0].WDistance)
}

func TestPauseRequest(t *testing.T) {
	src, _ := grid(3)
	m := &manual{}
	e := New(src, WithScheduler(m.schedule))
	rec := &recorder{}
	rec.attach(e)

	_, ok := e.Path(orb.Point{0, 0}, orb.Point{2, 2})
	require.True(t, ok)
	e.Pause()
	m.drain()

	pauses := rec.of(EventPause)
	require.Len(t, pauses, 1)
	assert.False(t, pauses[0].Overflow)
	assert.Equal(t, Paused, e.State())

	require.True(t, e.Resume())
	m.drain()
	assert.Equal(t, Finished, e.State())
	assert.Len(t, rec.of(EventFinish), 1)
}

func TestStepBudgetYields(t *testing.T) {
	src, _ := grid(3)
	m := &manual{}
	e := New(src, WithScheduler(m.schedule), WithStepIteration(3))
	rec := &recorder{}
	rec.attach(e)

	_, ok := e.Path(orb.Point{0, 0}, orb.Point{2, 2})
	require.True(t, ok)

	// one explicit step, then let the scheduler run the rest
	assert.Equal(t, StatusContinue, e.Step(3))
	assert.NotEmpty(t, e.BestWay())
	steps := m.drain()

	assert.Greater(t, steps, 1)
	assert.NotEmpty(t, rec.of(EventCalculating))
	require.Len(t, rec.of(EventFinish), 1)
	assert.Equal(t, 4.0, rec.of(EventFinish)[0].WDistance)
	assert.Equal(t, StatusFinished, e.Step(3))
}

func TestUnreachableTarget(t *testing.T) {
	src := source.New(
		line(orb.Point{0, 0}, orb.Point{1, 0}),
		line(orb.Point{5, 5}, orb.Point{6, 5}),
	)
	e := New(src)
	res, err := e.Run(context.Background(), orb.Point{0, 0}, orb.Point{6, 5})
	require.NoError(t, err)
	assert.False(t, res.Found())
	assert.Empty(t, res.Route)
	assert.Equal(t, -1.0, res.Distance)
}

func TestGoScheduler(t *testing.T) {
	src, _ := grid(3)
	e := New(src, WithStepIteration(1))
	done := make(chan Event, 1)
	e.On(EventFinish, func(ev Event) { done <- ev })

	_, ok := e.Path(orb.Point{0, 0}, orb.Point{2, 2})
	require.True(t, ok)

	select {
	case ev := <-done:
		assert.Equal(t, 4.0, ev.WDistance)
	case <-time.After(5 * time.Second):
		t.Fatal("search did not finish")
	}
}

func TestPolicies(t *testing.T) {
	f := geojson.NewFeature(orb.LineString{{0, 0}, {1, 0}})
	dir := PropertyDirection("oneway")

	for _, tc := range []struct {
		value interface{}
		want  Direction
	}{
		{"yes", Forward},
		{"-1", Reverse},
		{"closed", Blocked},
		{"no", Both},
		{true, Forward},
		{false, Both},
		{float64(-1), Reverse},
	} {
		f.Properties["oneway"] = tc.value
		assert.Equal(t, tc.want, dir(f), "oneway=%v", tc.value)
	}
	delete(f.Properties, "oneway")
	assert.Equal(t, Both, dir(f))

	weight := PropertyWeight("speed", 0.75)
	assert.Equal(t, 0.75, weight(f))
	f.Properties["speed"] = 0.25
	assert.Equal(t, 0.25, weight(f))
	f.Properties["speed"] = 3.0
	assert.Equal(t, 0.75, weight(f))

	geo := GeodesicPolicy()
	assert.InEpsilon(t, 111195.0, geo.Length(f), 0.01)
	assert.InEpsilon(t, 111195.0, geo.Distance(orb.Point{0, 0}, orb.Point{1, 0}), 0.01)
	assert.Equal(t, 1.0, DefaultPolicy().Length(f))
}
