// Package progress carries incremental export progress to whoever wants to
// watch a long-running run: the CLI log, or a browser attached to the
// streaming HTTP handler. The exporter only knows the Observer interface.
package progress

import "log"

// Stage identifies which phase of the run an event belongs to.
type Stage string

const (
	StageListing   Stage = "listing"
	StageExporting Stage = "exporting"
	StageArchiving Stage = "archiving"
	StageDone      Stage = "done"
)

// Event is one progress update.
type Event struct {
	RunID     string
	Stage     Stage
	Processed int
	Total     int
	Succeeded int
	Failed    int
	Message   string
}

// Percent returns the completion percentage, 0 when the total is unknown.
func (e Event) Percent() float64 {
	if e.Total == 0 {
		return 0
	}
	return float64(e.Processed) / float64(e.Total) * 100
}

// Observer receives progress events. Publishing is fire-and-forget; an
// observer must not block the exporter.
type Observer interface {
	Publish(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

func (f ObserverFunc) Publish(e Event) { f(e) }

// Nop is an Observer that discards everything.
var Nop Observer = ObserverFunc(func(Event) {})

// Multi fans one event out to several observers.
func Multi(obs ...Observer) Observer {
	return ObserverFunc(func(e Event) {
		for _, o := range obs {
			o.Publish(e)
		}
	})
}

// LogReporter writes progress lines with the stdlib logger.
type LogReporter struct{}

func (LogReporter) Publish(e Event) {
	switch e.Stage {
	case StageListing:
		log.Printf("listing templates: %d fetched", e.Processed)
	case StageExporting:
		log.Printf("exporting: %d/%d (%.1f%%), %d ok, %d failed",
			e.Processed, e.Total, e.Percent(), e.Succeeded, e.Failed)
	default:
		log.Printf("%s: %s", e.Stage, e.Message)
	}
}
