package metrics

import (
	"context"
	"time"

	"weekly-menu-planner/internal/logger"
)

// Recorder fans call outcomes out to the SQLite store and the Prometheus
// collectors. Either may be nil. It satisfies backend.Observer.
type Recorder struct {
	store      *Store
	collectors *Collectors
	log        logger.Logger
}

// NewRecorder creates a Recorder.
func NewRecorder(store *Store, collectors *Collectors, log logger.Logger) *Recorder {
	if log == nil {
		log = logger.NewNop()
	}
	return &Recorder{store: store, collectors: collectors, log: log}
}

// ObserveCall records one finished call. Storage errors are logged, never returned.
func (r *Recorder) ObserveCall(call, requestID string, latency time.Duration, err error) {
	m := MapCall(call, requestID, latency, err)

	if r.collectors != nil {
		r.collectors.observe(m)
	}
	if r.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.store.Record(ctx, m); err != nil {
		r.log.Warn("Failed to record call metric", logger.String("call", call), logger.Error(err))
	}
}
