package metrics

import "github.com/prometheus/client_golang/prometheus"

// AutomationMetrics exposes counters/histograms for portal automation runs.
type AutomationMetrics struct {
	jobsTotal      *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	locationsTotal *prometheus.CounterVec
	screenshots    prometheus.Counter
}

func NewAutomationMetrics(reg prometheus.Registerer) *AutomationMetrics {
	m := &AutomationMetrics{
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "studio",
			Subsystem: "automation",
			Name:      "jobs_total",
			Help:      "Total automation jobs by kind and terminal status",
		}, []string{"kind", "status"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "studio",
			Subsystem: "automation",
			Name:      "job_duration_seconds",
			Help:      "Wall time of automation jobs",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600},
		}, []string{"kind"}),
		locationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "studio",
			Subsystem: "automation",
			Name:      "fanout_locations_total",
			Help:      "Per-location fan-out outcomes",
		}, []string{"status"}),
		screenshots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "studio",
			Subsystem: "automation",
			Name:      "diagnostic_screenshots_total",
			Help:      "Screenshots uploaded from fatal portal states",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.jobsTotal, m.jobDuration, m.locationsTotal, m.screenshots)
	return m
}

func (m *AutomationMetrics) ObserveJob(kind, status string, seconds float64) {
	if m == nil {
		return
	}
	m.jobsTotal.WithLabelValues(kind, status).Inc()
	m.jobDuration.WithLabelValues(kind).Observe(seconds)
}

func (m *AutomationMetrics) ObserveLocation(succeeded bool) {
	if m == nil {
		return
	}
	status := "ok"
	if !succeeded {
		status = "failed"
	}
	m.locationsTotal.WithLabelValues(status).Inc()
}

func (m *AutomationMetrics) ObserveScreenshot() {
	if m == nil {
		return
	}
	m.screenshots.Inc()
}
