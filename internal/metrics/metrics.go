package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PriceObservationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "price_observations_total", Help: "Oracle prices recorded into history"},
		[]string{"pair"},
	)
	OracleFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "oracle_failures_total", Help: "Per-pair oracle decode or fetch failures"},
		[]string{"pair"},
	)
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signals_total", Help: "Signals emitted by the strategy engine"},
		[]string{"pair", "side"},
	)
	BundlesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bundles_total", Help: "Bundles submitted to the relay by result"},
		[]string{"pair", "side", "result"},
	)
	RetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "retries_total", Help: "Retries performed per call site"},
		[]string{"op"},
	)
	ErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "errors_total", Help: "Terminal errors by classification"},
		[]string{"kind"},
	)
	ExecutionLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "execution_latency_seconds",
		Help:    "Time from signal hand-off to relay answer, retries included",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	})
)

func init() {
	prometheus.MustRegister(
		PriceObservationsTotal,
		OracleFailuresTotal,
		SignalsTotal,
		BundlesTotal,
		RetriesTotal,
		ErrorsTotal,
		ExecutionLatency,
	)
}

// Serve exposes /metrics and, when hub is non-nil, the /ws/reports stream.
func Serve(addr string, hub *Hub) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if hub != nil {
		mux.Handle("/ws/reports", hub)
	}
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
