// Package metrics counts command buffer activity on a private Prometheus registry.
package metrics

import (
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	Registry *prometheus.Registry

	executed *prometheus.CounterVec
	merged   prometheus.Counter
	undone   *prometheus.CounterVec
	redone   *prometheus.CounterVec
	revealed *prometheus.CounterVec
	illegal  prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		executed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "autopilot_commands_executed_total",
			Help: "Commands executed, by command kind",
		}, []string{"kind"}),
		merged: f.NewCounter(prometheus.CounterOpts{
			Name: "autopilot_commands_merged_total",
			Help: "Commands merged into the previous buffer entry",
		}),
		undone: f.NewCounterVec(prometheus.CounterOpts{
			Name: "autopilot_undo_total",
			Help: "Undo operations performed, by viewport",
		}, []string{"viewport"}),
		redone: f.NewCounterVec(prometheus.CounterOpts{
			Name: "autopilot_redo_total",
			Help: "Redo operations performed, by viewport",
		}, []string{"viewport"}),
		revealed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "autopilot_viewport_reveals_total",
			Help: "Undo/redo requests that only revealed an inactive viewport",
		}, []string{"viewport"}),
		illegal: f.NewCounter(prometheus.CounterOpts{
			Name: "autopilot_illegal_command_state_total",
			Help: "Commands that found the tree in an unexpected state",
		}),
	}
}

func (m *Metrics) Executed(kind string) {
	if m == nil {
		return
	}
	m.executed.WithLabelValues(kind).Inc()
}

func (m *Metrics) Merged() {
	if m == nil {
		return
	}
	m.merged.Inc()
}

func (m *Metrics) Undone(viewport string) {
	if m == nil {
		return
	}
	m.undone.WithLabelValues(viewport).Inc()
}

func (m *Metrics) Redone(viewport string) {
	if m == nil {
		return
	}
	m.redone.WithLabelValues(viewport).Inc()
}

func (m *Metrics) Revealed(viewport string) {
	if m == nil {
		return
	}
	m.revealed.WithLabelValues(viewport).Inc()
}

func (m *Metrics) IllegalState() {
	if m == nil {
		return
	}
	m.illegal.Inc()
}

// Sample is one counter value.
type Sample struct {
	Name   string            `json:"name"`
	Labels map[string]string `json:"labels,omitempty"`
	Value  float64           `json:"value"`
}

// Gather returns every counter sample, sorted by name.
func (m *Metrics) Gather() ([]Sample, error) {
	if m == nil {
		return nil, nil
	}
	families, err := m.Registry.Gather()
	if err != nil {
		return nil, err
	}
	var out []Sample
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			s := Sample{Name: mf.GetName(), Value: metric.GetCounter().GetValue()}
			for _, lp := range metric.GetLabel() {
				if s.Labels == nil {
					s.Labels = map[string]string{}
				}
				s.Labels[lp.GetName()] = lp.GetValue()
			}
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
