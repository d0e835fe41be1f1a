package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	taskDuration  *prom.HistogramVec
	taskResults   *prom.CounterVec
	watchEvents   *prom.CounterVec
	reloads       prom.Counter
	reloadClients prom.Gauge
}

// NewPrometheusRecorder constructs and registers the assetbuilder metrics on reg.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		taskDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "assetbuilder",
			Name:      "task_duration_seconds",
			Help:      "Duration of individual task runs",
			Buckets:   prom.DefBuckets,
		}, []string{"task"}),
		taskResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "assetbuilder",
			Name:      "task_results_total",
			Help:      "Task run counts by outcome",
		}, []string{"task", "result"}),
		watchEvents: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "assetbuilder",
			Name:      "watch_events_total",
			Help:      "Filesystem events matched by watch rule",
		}, []string{"rule"}),
		reloads: prom.NewCounter(prom.CounterOpts{
			Namespace: "assetbuilder",
			Name:      "livereload_broadcasts_total",
			Help:      "Live reload notifications sent to browsers",
		}),
		reloadClients: prom.NewGauge(prom.GaugeOpts{
			Namespace: "assetbuilder",
			Name:      "livereload_clients",
			Help:      "Currently connected live reload clients",
		}),
	}
	reg.MustRegister(pr.taskDuration, pr.taskResults, pr.watchEvents, pr.reloads, pr.reloadClients)
	return pr
}

func (p *PrometheusRecorder) ObserveTaskDuration(task string, d time.Duration) {
	if p == nil {
		return
	}
	p.taskDuration.WithLabelValues(task).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncTaskResult(task string, result ResultLabel) {
	if p == nil {
		return
	}
	p.taskResults.WithLabelValues(task, string(result)).Inc()
}

func (p *PrometheusRecorder) IncWatchEvent(rule string) {
	if p == nil {
		return
	}
	p.watchEvents.WithLabelValues(rule).Inc()
}

func (p *PrometheusRecorder) IncReloadBroadcast() {
	if p == nil {
		return
	}
	p.reloads.Inc()
}

func (p *PrometheusRecorder) SetReloadClients(n int) {
	if p == nil {
		return
	}
	p.reloadClients.Set(float64(n))
}
