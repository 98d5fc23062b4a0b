package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements repository.Metrics using Prometheus.
type Recorder struct {
	events       *prometheus.CounterVec
	tasks        *prometheus.CounterVec
	stageLatency *prometheus.HistogramVec
	stageSuccess *prometheus.GaugeVec
	swaps        *prometheus.CounterVec
	partialFills *prometheus.CounterVec
	lastPrice    *prometheus.GaugeVec
	targetWeight *prometheus.GaugeVec
	errorsTotal  *prometheus.CounterVec
}

// New registers collectors on the default registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		events: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wonderland_events_total",
			Help: "Events emitted on the agent bus",
		}, []string{"type"}),
		tasks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wonderland_tasks_total",
			Help: "Tasks reaching a terminal status",
		}, []string{"type", "status"}),
		stageLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wonderland_stage_duration_seconds",
			Help:    "Duration of pipeline stages",
			Buckets: []float64{.1, .5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"stage"}),
		stageSuccess: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wonderland_stage_last_success_timestamp_seconds",
			Help: "Unix time of the last successful stage run",
		}, []string{"stage"}),
		swaps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wonderland_swaps_total",
			Help: "Swap attempts by result",
		}, []string{"result"}),
		partialFills: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wonderland_partial_fills_total",
			Help: "Cup fills capped by available stable balance",
		}, []string{"coin_type"}),
		lastPrice: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wonderland_last_price_usd",
			Help: "Last observed USD price per asset",
		}, []string{"symbol"}),
		targetWeight: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wonderland_target_weight_percent",
			Help: "Latest normalized target weight per token",
		}, []string{"coin_type"}),
		errorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wonderland_errors_total",
			Help: "Errors by kind",
		}, []string{"kind"}),
	}
}

func (r *Recorder) RecordEvent(eventType string) {
	r.events.WithLabelValues(eventType).Inc()
}

func (r *Recorder) RecordTask(taskType, status string) {
	r.tasks.WithLabelValues(taskType, status).Inc()
}

func (r *Recorder) RecordStage(stage string, elapsed time.Duration, err error) {
	r.stageLatency.WithLabelValues(stage).Observe(elapsed.Seconds())
	if err == nil {
		r.stageSuccess.WithLabelValues(stage).SetToCurrentTime()
	}
}

func (r *Recorder) RecordSwap(result string) {
	r.swaps.WithLabelValues(result).Inc()
}

func (r *Recorder) RecordPartialFill(coinType string) {
	r.partialFills.WithLabelValues(coinType).Inc()
}

func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

func (r *Recorder) RecordTargetWeight(coinType string, pct float64) {
	r.targetWeight.WithLabelValues(coinType).Set(pct)
}

func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}
