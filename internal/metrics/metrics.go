// Package metrics exposes Prometheus counters for the encode loop.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Attempt outcomes, used as the "result" label.
const (
	ResultPublished    = "published"
	ResultFailed       = "failed"
	ResultPrecondition = "precondition"
	ResultInterrupted  = "interrupted"
)

type Metrics struct {
	reg *prometheus.Registry

	// Attempts counts finished attempts by result.
	Attempts *prometheus.CounterVec
	// InputBytes and OutputBytes sum source and target sizes of published files.
	InputBytes  prometheus.Counter
	OutputBytes prometheus.Counter
	// EncodeSeconds observes wall time of every attempt that ran the encoder.
	EncodeSeconds prometheus.Histogram
	// KnownBad is the size of the run's known-bad set.
	KnownBad prometheus.Gauge
	// Scans counts completed directory scans.
	Scans prometheus.Counter
}

// New registers the loop metrics on a fresh registry together with the Go
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		Attempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "encloop_attempts_total",
			Help: "Total number of encode attempts, by result.",
		}, []string{"result"}),
		InputBytes: f.NewCounter(prometheus.CounterOpts{
			Name: "encloop_input_bytes_total",
			Help: "Total size of sources whose output was published.",
		}),
		OutputBytes: f.NewCounter(prometheus.CounterOpts{
			Name: "encloop_output_bytes_total",
			Help: "Total size of published outputs.",
		}),
		EncodeSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "encloop_encode_duration_seconds",
			Help:    "Wall time of encode attempts.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 9), // 1s .. ~18h
		}),
		KnownBad: f.NewGauge(prometheus.GaugeOpts{
			Name: "encloop_known_bad_files",
			Help: "Files that failed to encode during this run and are skipped.",
		}),
		Scans: f.NewCounter(prometheus.CounterOpts{
			Name: "encloop_scans_total",
			Help: "Total number of completed directory scans.",
		}),
	}
}

// Observe records one finished attempt. A nil receiver is a no-op so the
// loop can run without metrics.
func (m *Metrics) Observe(result string, elapsed time.Duration, inBytes, outBytes int64) {
	if m == nil {
		return
	}
	m.Attempts.WithLabelValues(result).Inc()
	if elapsed > 0 {
		m.EncodeSeconds.Observe(elapsed.Seconds())
	}
	if result == ResultPublished {
		m.InputBytes.Add(float64(inBytes))
		m.OutputBytes.Add(float64(outBytes))
	}
}

func (m *Metrics) SetKnownBad(n int) {
	if m == nil {
		return
	}
	m.KnownBad.Set(float64(n))
}

func (m *Metrics) ScanDone() {
	if m == nil {
		return
	}
	m.Scans.Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, log zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
