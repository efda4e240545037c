// Package metrics counts resolution outcomes with gmetric.
package metrics

import (
	"time"

	"github.com/viant/gmetric"
	"github.com/viant/gmetric/counter"
)

// Event is the outcome of resolving one call site.
type Event string

const (
	Resolved  Event = "Resolved"
	Failed    Event = "Failed"
	Ambiguous Event = "Ambiguous"
	Cycle     Event = "Cycle"
	Malformed Event = "Malformed"
)

var events = []Event{Resolved, Failed, Ambiguous, Cycle, Malformed}

// Operation names registered by a Recorder.
const (
	ResolutionOperation = "given.resolution"
	AnalysisOperation   = "given.analysis"
)

const location = "github.com/funvibe/given/internal/metrics"

// Counter is the subset of a gmetric operation counter used here.
type Counter interface {
	Begin(started time.Time) counter.OnDone
	IncrementValue(value interface{}) int64
}

// Recorder records resolution events. A nil Recorder records nothing.
type Recorder struct {
	service    *gmetric.Service
	resolution Counter
	analysis   Counter
}

// New registers the resolution counters on service, a fresh one when nil.
func New(service *gmetric.Service) *Recorder {
	if service == nil {
		service = gmetric.New()
	}
	return &Recorder{
		service:    service,
		resolution: lookup(service, ResolutionOperation, "call site resolution"),
		analysis:   lookup(service, AnalysisOperation, "program analysis"),
	}
}

func lookup(service *gmetric.Service, name, title string) Counter {
	if cnt := service.LookupOperation(name); cnt != nil {
		return cnt
	}
	return service.MultiOperationCounter(location, name, title, time.Millisecond, time.Minute, 2, eventProvider{})
}

// Service returns the underlying metric service.
func (r *Recorder) Service() *gmetric.Service {
	if r == nil {
		return nil
	}
	return r.service
}

// Record counts one resolution outcome.
func (r *Recorder) Record(e Event) int64 {
	if r == nil {
		return 0
	}
	return r.resolution.IncrementValue(e)
}

// BeginResolution starts timing one call site; the returned func records
// the outcome and stops the clock.
func (r *Recorder) BeginResolution() func(Event) {
	if r == nil {
		return func(Event) {}
	}
	done := r.resolution.Begin(time.Now())
	return func(e Event) {
		done(time.Now(), e)
	}
}

// BeginAnalysis starts timing a whole analysis pass.
func (r *Recorder) BeginAnalysis() func(failed bool) {
	if r == nil {
		return func(bool) {}
	}
	done := r.analysis.Begin(time.Now())
	return func(failed bool) {
		if failed {
			done(time.Now(), Failed)
			return
		}
		done(time.Now(), Resolved)
	}
}

// eventProvider maps events to counter slots.
type eventProvider struct{}

func (eventProvider) Keys() []string {
	keys := make([]string, len(events))
	for i, e := range events {
		keys[i] = string(e)
	}
	return keys
}

func (eventProvider) Map(value interface{}) int {
	e, ok := value.(Event)
	if !ok {
		return -1
	}
	for i, candidate := range events {
		if candidate == e {
			return i
		}
	}
	return -1
}
