package pathfind

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// EventType identifies a search lifecycle notification.
type EventType int

const (
	EventStart EventType = iota
	EventCalculating
	EventPause
	EventFinish
)

func (t EventType) String() string {
	switch t {
	case EventStart:
		return "start"
	case EventCalculating:
		return "calculating"
	case EventPause:
		return "pause"
	case EventFinish:
		return "finish"
	}
	return "unknown"
}

// Event is delivered to listeners. Route, WDistance and Distance are set on
// finish; a search that found nothing, or was trivial, reports an empty
// route and distances of -1. Overflow is set on a pause caused by the
// iteration cap.
type Event struct {
	Type      EventType
	Start     orb.Point
	End       orb.Point
	Route     []*geojson.Feature
	WDistance float64
	Distance  float64
	Iteration int
	Overflow  bool
}

// Listener receives events. It runs on the goroutine that produced the
// event, outside the engine lock, and may call back into the engine.
type Listener func(Event)
