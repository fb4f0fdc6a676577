package planner

import (
	"time"

	"github.com/devskill-org/lec-planner/lec"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the Prometheus instruments of scenario runs.
type Metrics struct {
	Registry *prometheus.Registry

	runs          *prometheus.CounterVec
	solveDuration *prometheus.HistogramVec
	modelSize     *prometheus.GaugeVec
	objective     *prometheus.GaugeVec
}

// NewMetrics registers the run metrics on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lec_runs_total",
			Help: "Scenario runs by outcome.",
		}, []string{"scenario", "status"}),
		solveDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lec_solve_duration_seconds",
			Help:    "Wall time of the LP solve.",
			Buckets: prometheus.ExponentialBuckets(0.1, 4, 10),
		}, []string{"scenario", "solver"}),
		modelSize: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lec_model_size",
			Help: "Size of the last built model.",
		}, []string{"scenario", "dimension"}),
		objective: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lec_objective_eur",
			Help: "Annual community cost of the last successful run, by term.",
		}, []string{"scenario", "term"}),
	}
}

func (m *Metrics) observeModel(scenario string, st lec.Stats) {
	if m == nil {
		return
	}
	m.modelSize.WithLabelValues(scenario, "variables").Set(float64(st.Variables))
	m.modelSize.WithLabelValues(scenario, "constraints").Set(float64(st.Constraints))
	m.modelSize.WithLabelValues(scenario, "non_zeros").Set(float64(st.NonZeros))
}

func (m *Metrics) observeSolve(scenario, solver string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.solveDuration.WithLabelValues(scenario, solver).Observe(elapsed.Seconds())
}

func (m *Metrics) observeRun(run *RunSummary) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(run.Scenario, string(run.Status)).Inc()
	if run.Status != RunSucceeded {
		return
	}
	for _, tv := range run.Terms {
		m.objective.WithLabelValues(run.Scenario, tv.Name).Set(tv.Value)
	}
	m.objective.WithLabelValues(run.Scenario, "total").Set(run.Objective)
}
