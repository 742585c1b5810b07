package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"duelchain/core/events"
	"duelchain/native/duel"
	"duelchain/native/token"
)

type stateMetrics struct {
	duelEvents  *prometheus.CounterVec
	tokenMoves  *prometheus.CounterVec
	tokenGrants prometheus.Counter
}

var (
	stateMetricsOnce sync.Once
	stateRegistry    *stateMetrics
)

// Metrics returns the lazily-initialised registry tracking ledger and duel
// activity.
func Metrics() *stateMetrics {
	stateMetricsOnce.Do(func() {
		stateRegistry = &stateMetrics{
			duelEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "duelchain",
				Subsystem: "duel",
				Name:      "events_total",
				Help:      "Count of duel lifecycle events segmented by type.",
			}, []string{"type"}),
			tokenMoves: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "duelchain",
				Subsystem: "token",
				Name:      "transfers_total",
				Help:      "Count of token balance movements including mints and burns.",
			}, []string{"type"}),
			tokenGrants: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "duelchain",
				Subsystem: "token",
				Name:      "approvals_total",
				Help:      "Count of allowance grants.",
			}),
		}
		prometheus.MustRegister(
			stateRegistry.duelEvents,
			stateRegistry.tokenMoves,
			stateRegistry.tokenGrants,
		)
	})
	return stateRegistry
}

// Record increments the counter matching the supplied event type.
func (m *stateMetrics) Record(eventType string) {
	if m == nil || eventType == "" {
		return
	}
	switch eventType {
	case token.EventTypeTransfer:
		m.tokenMoves.WithLabelValues("transfer").Inc()
	case token.EventTypeApproval:
		m.tokenGrants.Inc()
	case duel.EventTypeDuelCreated, duel.EventTypeDuelAccepted,
		duel.EventTypeMoveRevealed, duel.EventTypeDuelResolved,
		duel.EventTypeDuelRefunded:
		m.duelEvents.WithLabelValues(eventType).Inc()
	}
}

// MeteredEmitter counts every event before forwarding it to the wrapped
// emitter. A nil inner emitter only counts.
type MeteredEmitter struct {
	inner events.Emitter
}

// NewMeteredEmitter wraps an emitter with metric recording.
func NewMeteredEmitter(inner events.Emitter) *MeteredEmitter {
	return &MeteredEmitter{inner: inner}
}

// Emit implements the events.Emitter interface.
func (m *MeteredEmitter) Emit(evt events.Event) {
	if m == nil || evt == nil {
		return
	}
	Metrics().Record(evt.EventType())
	if m.inner != nil {
		m.inner.Emit(evt)
	}
}
