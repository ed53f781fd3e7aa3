package pathfind

import (
	"context"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"
)

var (
	// ErrBusy is returned when a search is already running.
	ErrBusy = errors.New("pathfind: search already running")
	// ErrNoEdges is returned when there is no edge to snap to.
	ErrNoEdges = errors.New("pathfind: no edges")
	// ErrOverflow is returned when the iteration cap paused the search. The
	// engine stays paused and can be resumed.
	ErrOverflow = errors.New("pathfind: iteration cap reached")
	// ErrPaused is returned when Pause stopped a synchronous search.
	ErrPaused = errors.New("pathfind: search paused")

	errTrivial = errors.New("pathfind: start and end coincide")
)

// Result is the outcome of a search.
type Result struct {
	Start     orb.Point
	End       orb.Point
	Route     []*geojson.Feature
	WDistance float64
	Distance  float64
}

// Found reports whether a route connects the endpoints.
func (r Result) Found() bool {
	return r.WDistance >= 0 && len(r.Route) > 0
}

// Run searches synchronously on the calling goroutine, bypassing the
// scheduler. Listeners still receive every event. Resume is refused until
// Run returns. On cancellation the search is left paused and the context
// error is returned.
func (e *Engine) Run(ctx context.Context, start, end orb.Point) (Result, error) {
	snapped, events, err := e.begin(start, end, true)
	e.fire(events)
	switch {
	case err == errTrivial:
		return e.lastResult(), nil
	case err != nil:
		return Result{}, errors.WithStack(err)
	}
	defer e.release()

	for {
		if err := ctx.Err(); err != nil {
			e.Pause()
			e.Step(1)
			return Result{Start: snapped[0], End: snapped[1], WDistance: -1, Distance: -1}, errors.Wrap(err, "route search")
		}

		switch e.Step(e.stepIteration) {
		case StatusFinished:
			return e.lastResult(), nil
		case StatusPaused:
			res := Result{Start: snapped[0], End: snapped[1], WDistance: -1, Distance: -1}
			if e.pausedOnOverflow() {
				return res, errors.WithStack(ErrOverflow)
			}
			return res, errors.WithStack(ErrPaused)
		}
	}
}

// release hands a search left paused by Run back to Resume.
func (e *Engine) release() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.driven = false
}

func (e *Engine) pausedOnOverflow() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == Paused && e.overflow
}

func (e *Engine) lastResult() Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return resultOf(e.result)
}

func resultOf(ev Event) Result {
	return Result{
		Start:     ev.Start,
		End:       ev.End,
		Route:     ev.Route,
		WDistance: ev.WDistance,
		Distance:  ev.Distance,
	}
}
