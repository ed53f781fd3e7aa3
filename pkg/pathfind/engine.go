// Package pathfind runs a resumable best-first shortest path search over a
// collection of line features.
//
// Edges are not indexed up front: the features touching the node being
// expanded are queried from the source each time. Searches are sliced into
// bounded steps; between steps the engine hands its continuation to a
// scheduler, so a long search never holds the caller.
package pathfind

import (
	"container/heap"
	"math"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"mesh-planner/pkg/geometry"
	"mesh-planner/pkg/source"
)

const (
	DefaultStepIteration = 2000
	DefaultMaxIteration  = 20000
)

// State is the lifecycle of the engine.
type State int

const (
	Idle State = iota
	Running
	Paused
	Finished
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Finished:
		return "finished"
	}
	return "unknown"
}

// Status is the outcome of one Step.
type Status int

const (
	// StatusContinue means the budget ran out and more work remains.
	StatusContinue Status = iota
	StatusPaused
	StatusFinished
)

// Scheduler runs a continuation later.
type Scheduler func(func())

// GoScheduler runs every continuation on its own goroutine.
func GoScheduler(fn func()) { go fn() }

// Option configures an Engine.
type Option func(*Engine)

// WithStepIteration sets how many nodes one step expands before yielding.
func WithStepIteration(n int) Option {
	return func(e *Engine) { e.stepIteration = n }
}

// WithMaxIteration sets how many nodes may be expanded before the search
// pauses with an overflow. The count restarts on Resume.
func WithMaxIteration(n int) Option {
	return func(e *Engine) { e.maxIteration = n }
}

// WithEpsilon sets the tolerance for matching coordinates to edge endpoints.
func WithEpsilon(eps float64) Option {
	return func(e *Engine) { e.eps = eps }
}

// WithScheduler replaces GoScheduler.
func WithScheduler(s Scheduler) Option {
	return func(e *Engine) { e.schedule = s }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithPolicy sets the edge policy. Nil callbacks keep their defaults.
func WithPolicy(p Policy) Option {
	return func(e *Engine) { e.policy = p.withDefaults() }
}

type nodeKey [2]float64

// Engine searches routes over the line features of a collection. Only one
// search runs at a time.
type Engine struct {
	edges *source.Collection

	policy        Policy
	eps           float64
	stepIteration int
	maxIteration  int
	schedule      Scheduler
	log           *zap.Logger

	mu        sync.Mutex
	listeners map[EventType][]Listener

	state     State
	pause     bool
	driven    bool // Run is stepping the search on its own goroutine
	overflow  bool
	start     orb.Point
	end       orb.Point
	nodes     map[nodeKey]*node
	frontier  frontier
	arrival   *node
	seq       uint64
	iteration int
	result    Event
}

// New creates an engine over edges. The engine only queries the collection;
// edits made between searches are picked up by the next one.
func New(edges *source.Collection, opts ...Option) *Engine {
	e := &Engine{
		edges:         edges,
		policy:        DefaultPolicy(),
		eps:           geometry.DefaultTolerance,
		stepIteration: DefaultStepIteration,
		maxIteration:  DefaultMaxIteration,
		schedule:      GoScheduler,
		log:           zap.NewNop(),
		listeners:     make(map[EventType][]Listener),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// On registers a listener for one event type.
func (e *Engine) On(t EventType, l Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners[t] = append(e.listeners[t], l)
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Path starts a search between the edge endpoints nearest to start and end.
// It returns the snapped coordinates and true once the search is scheduled.
// It returns false when a search is already running, when there are no
// edges, or when both coordinates snap to the same endpoint; the last case
// fires a finish event with an empty route.
func (e *Engine) Path(start, end orb.Point) ([2]orb.Point, bool) {
	snapped, events, err := e.begin(start, end, false)
	e.fire(events)
	if err != nil {
		return snapped, false
	}
	e.schedule(e.continuation)
	return snapped, true
}

// begin prepares a search without scheduling it. A nil error means the
// search is running; driven marks it as owned by the caller.
func (e *Engine) begin(start, end orb.Point, driven bool) ([2]orb.Point, []Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == Running {
		e.log.Debug("path rejected, search running")
		return [2]orb.Point{}, nil, ErrBusy
	}

	s, okS := e.snap(start)
	t, okT := e.snap(end)
	if !okS || !okT {
		e.log.Debug("path rejected, no edges")
		return [2]orb.Point{}, nil, ErrNoEdges
	}
	snapped := [2]orb.Point{s, t}

	e.reset()
	e.start, e.end = s, t

	if geometry.Equal(s, t, e.eps) {
		e.state = Finished
		e.result = Event{Type: EventFinish, Start: s, End: t, WDistance: -1, Distance: -1}
		return snapped, []Event{e.result}, errTrivial
	}

	first := e.newNode(s)
	first.dtotal = e.estimate(s)
	heap.Push(&e.frontier, first)

	e.arrival = e.newNode(t)
	e.arrival.wdist = math.Inf(1)
	e.arrival.dist = math.Inf(1)

	e.state = Running
	e.driven = driven
	e.log.Debug("search started",
		zap.Float64s("start", s[:]), zap.Float64s("end", t[:]))
	return snapped, []Event{{Type: EventStart, Start: s, End: t}}, nil
}

// snap returns the endpoint of the nearest edge that is closest to p.
func (e *Engine) snap(p orb.Point) (orb.Point, bool) {
	f := e.edges.Nearest(p)
	if f == nil {
		return orb.Point{}, false
	}
	a, b, ok := endpoints(f)
	if !ok {
		return orb.Point{}, false
	}
	if geometry.Dist2D(p, b) < geometry.Dist2D(p, a) {
		return b, true
	}
	return a, true
}

func (e *Engine) reset() {
	e.nodes = make(map[nodeKey]*node)
	e.frontier = e.frontier[:0]
	e.arrival = nil
	e.seq = 0
	e.iteration = 0
	e.pause = false
	e.overflow = false
	e.result = Event{}
}

func (e *Engine) key(p orb.Point) nodeKey {
	if e.eps <= 0 {
		return nodeKey(p)
	}
	return nodeKey{math.Round(p[0] / e.eps), math.Round(p[1] / e.eps)}
}

func (e *Engine) newNode(p orb.Point) *node {
	n := &node{coord: p, index: -1, seq: e.seq}
	e.seq++
	e.nodes[e.key(p)] = n
	return n
}

func (e *Engine) estimate(p orb.Point) float64 {
	return e.policy.Distance(p, e.end) * e.policy.MinWeight
}

// continuation is what the scheduler runs: one step, then another
// continuation if work is left.
func (e *Engine) continuation() {
	if e.Step(e.stepIteration) == StatusContinue {
		e.schedule(e.continuation)
	}
}

// Step expands up to budget nodes of the running search. StatusContinue
// means the caller, usually the scheduler, should call Step again.
func (e *Engine) Step(budget int) Status {
	status, events := e.step(budget)
	e.fire(events)
	return status
}

func (e *Engine) step(budget int) (Status, []Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case Paused:
		return StatusPaused, nil
	case Idle, Finished:
		return StatusFinished, nil
	}

	for done := 0; done < budget; done++ {
		if e.pause {
			e.pause = false
			e.state = Paused
			e.log.Debug("search paused", zap.Int("iteration", e.iteration))
			return StatusPaused, []Event{e.pauseEvent(false)}
		}
		if e.frontier.Len() == 0 {
			return StatusFinished, []Event{e.finish()}
		}
		if e.iteration >= e.maxIteration {
			e.state = Paused
			e.overflow = true
			e.log.Warn("search paused on iteration cap",
				zap.Int("maxIteration", e.maxIteration),
				zap.Int("frontier", e.frontier.Len()))
			return StatusPaused, []Event{e.pauseEvent(true)}
		}

		cur := heap.Pop(&e.frontier).(*node)
		e.iteration++
		e.expand(cur)
	}

	if e.frontier.Len() == 0 {
		return StatusFinished, []Event{e.finish()}
	}
	return StatusContinue, []Event{{
		Type:      EventCalculating,
		Start:     e.start,
		End:       e.end,
		Iteration: e.iteration,
	}}
}

// expand relaxes every edge leaving cur.
func (e *Engine) expand(cur *node) {
	best := e.arrival.wdist
	for _, f := range e.edges.Near(cur.coord, e.eps) {
		if f == cur.from {
			continue
		}
		a, b, ok := endpoints(f)
		if !ok {
			continue
		}

		dir := e.policy.Direction(f)
		var next orb.Point
		switch {
		case geometry.Equal(cur.coord, a, e.eps):
			if dir != Both && dir != Forward {
				continue
			}
			next = b
		case geometry.Equal(cur.coord, b, e.eps):
			if dir != Both && dir != Reverse {
				continue
			}
			next = a
		default:
			// the edge passes near the node without ending there
			continue
		}

		length := e.policy.Length(f)
		wdist := cur.wdist + length*e.policy.Weight(f)
		if wdist >= best {
			continue
		}
		h := e.estimate(next)
		if wdist+h > best {
			continue
		}

		n, seen := e.nodes[e.key(next)]
		if seen && n.wdist <= wdist {
			continue
		}
		if !seen {
			n = e.newNode(next)
		}
		n.wdist = wdist
		n.dist = cur.dist + length
		n.dtotal = wdist + h
		n.from = f
		n.prev = cur

		if n == e.arrival {
			best = wdist
			continue
		}
		if n.index >= 0 {
			heap.Fix(&e.frontier, n.index)
		} else {
			n.seq = e.seq
			e.seq++
			heap.Push(&e.frontier, n)
		}
	}
}

// finish ends the search, drops the node index and builds the result.
func (e *Engine) finish() Event {
	e.state = Finished
	ev := Event{Type: EventFinish, Start: e.start, End: e.end, WDistance: -1, Distance: -1, Iteration: e.iteration}
	if e.arrival != nil && !math.IsInf(e.arrival.wdist, 1) {
		ev.Route = e.arrival.route()
		ev.WDistance = e.arrival.wdist
		ev.Distance = e.arrival.dist
	}
	e.result = ev
	e.nodes = nil
	e.frontier = e.frontier[:0]
	e.arrival = nil
	e.log.Debug("search finished",
		zap.Int("edges", len(ev.Route)),
		zap.Float64("wdistance", ev.WDistance),
		zap.Int("iteration", ev.Iteration))
	return ev
}

func (e *Engine) pauseEvent(overflow bool) Event {
	return Event{Type: EventPause, Start: e.start, End: e.end, Iteration: e.iteration, Overflow: overflow}
}

// Pause asks the running search to stop at the next node boundary.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == Running {
		e.pause = true
	}
}

// Resume continues a paused search from its frontier with a fresh
// iteration count. It returns false when there is nothing to resume and
// while a synchronous Run owns the search.
func (e *Engine) Resume() bool {
	e.mu.Lock()
	switch {
	case e.driven:
		e.mu.Unlock()
		return false
	case e.state == Running:
		// paused only on request, the continuation has not run yet
		e.pause = false
		e.mu.Unlock()
		return true
	case e.state != Paused || e.nodes == nil:
		e.mu.Unlock()
		return false
	}
	e.state = Running
	e.iteration = 0
	e.overflow = false
	e.mu.Unlock()

	e.log.Debug("search resumed")
	e.schedule(e.continuation)
	return true
}

// BestWay returns the route to the frontier node that got furthest, by
// weighted distance. Once the search is over it returns the final route.
func (e *Engine) BestWay() []*geojson.Feature {
	e.mu.Lock()
	defer e.mu.Unlock()

	var far *node
	for _, n := range e.frontier {
		if far == nil || n.wdist > far.wdist {
			far = n
		}
	}
	if far == nil {
		return e.result.Route
	}
	return far.route()
}

// Route returns the route of the last finished search.
func (e *Engine) Route() []*geojson.Feature {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.result.Route
}

func (e *Engine) fire(events []Event) {
	if len(events) == 0 {
		return
	}
	e.mu.Lock()
	var calls []func()
	for _, ev := range events {
		for _, l := range e.listeners[ev.Type] {
			l, ev := l, ev
			calls = append(calls, func() { l(ev) })
		}
	}
	e.mu.Unlock()

	for _, call := range calls {
		call()
	}
}

// endpoints returns the first and last coordinate of a line feature.
func endpoints(f *geojson.Feature) (orb.Point, orb.Point, bool) {
	ls, ok := f.Geometry.(orb.LineString)
	if !ok || len(ls) < 2 {
		return orb.Point{}, orb.Point{}, false
	}
	return ls[0], ls[len(ls)-1], true
}
