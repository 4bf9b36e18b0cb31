package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	errs "goban/internal/errors"
)

const namespace = "goban"

type Metrics struct {
	moves       *prometheus.CounterVec
	passes      prometheus.Counter
	resets      prometheus.Counter
	broadcasts  prometheus.Counter
	connections prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		moves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moves_total",
			Help:      "Stone placements by outcome.",
		}, []string{"result"}),
		passes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "passes_total",
			Help:      "Accepted passes.",
		}),
		resets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resets_total",
			Help:      "Game resets.",
		}),
		broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "State snapshots pushed to all connections.",
		}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Currently registered connections.",
		}),
	}

	reg.MustRegister(m.moves, m.passes, m.resets, m.broadcasts, m.connections)
	return m
}

// MoveResult maps a placement outcome to its label value.
func MoveResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, errs.ErrWrongTurn):
		return "wrong_turn"
	case errors.Is(err, errs.ErrInvalidPosition):
		return "invalid_position"
	case errors.Is(err, errs.ErrOccupied):
		return "occupied"
	case errors.Is(err, errs.ErrSuicide):
		return "suicide"
	case errors.Is(err, errs.ErrKoViolation):
		return "ko"
	case errors.Is(err, errs.ErrNoColor):
		return "no_color"
	default:
		return "error"
	}
}

// A nil *Metrics records nothing.

func (m *Metrics) ObserveMove(err error) {
	if m == nil {
		return
	}
	m.moves.WithLabelValues(MoveResult(err)).Inc()
}

func (m *Metrics) ObservePass() {
	if m == nil {
		return
	}
	m.passes.Inc()
}

func (m *Metrics) ObserveReset() {
	if m == nil {
		return
	}
	m.resets.Inc()
}

func (m *Metrics) ObserveBroadcast() {
	if m == nil {
		return
	}
	m.broadcasts.Inc()
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connections.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.connections.Dec()
}
