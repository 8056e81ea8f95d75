package audit

import (
	"sync"

	"github.com/raysh454/sitelens/internal/logging"
)

// ProgressEvent marks the completion of a pipeline stage.
type ProgressEvent struct {
	Message  string `json:"message"`
	Progress int    `json:"progress"`
}

// ProgressSink receives progress events. A nil sink discards them.
type ProgressSink func(ProgressEvent)

// emitter delivers events to one request's sink. Deliveries are serialized,
// clamped to [0,100] and never allowed to decrease. A panicking sink is
// recovered and logged.
type emitter struct {
	sink   ProgressSink
	logger logging.Logger

	mu   sync.Mutex
	last int
}

func newEmitter(sink ProgressSink, logger logging.Logger) *emitter {
	return &emitter{sink: sink, logger: logger}
}

func (e *emitter) emit(msg string, progress int) {
	if e == nil || e.sink == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if progress > 100 {
		progress = 100
	}
	if progress < e.last {
		progress = e.last
	}
	e.last = progress
	e.deliver(ProgressEvent{Message: msg, Progress: progress})
}

func (e *emitter) deliver(ev ProgressEvent) {
	defer func() {
		if r := recover(); r != nil && e.logger != nil {
			e.logger.Warn("progress sink panicked",
				logging.Field{Key: "progress", Value: ev.Progress},
				logging.Field{Key: "panic", Value: r})
		}
	}()
	e.sink(ev)
}

// band returns a sink that maps a collaborator's own 0..100 progress into
// [lo, hi] of the request's progress.
func (e *emitter) band(lo, hi int) ProgressSink {
	return func(ev ProgressEvent) {
		p := ev.Progress
		if p < 0 {
			p = 0
		}
		if p > 100 {
			p = 100
		}
		e.emit(ev.Message, lo+(hi-lo)*p/100)
	}
}
