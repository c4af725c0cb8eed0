package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var defaultMetricPath = "/metrics"

// RequestCounterURLLabelMappingFn controls the cardinality of the request
// counter's "url" label, typically mapping "/payments/123" to its route
// template "/payments/:transaction_id".
type RequestCounterURLLabelMappingFn func(c *gin.Context) string

// Prometheus wraps the HTTP request collectors and an optional standalone
// metrics listener.
type Prometheus struct {
	reqCnt *prometheus.CounterVec
	reqDur *prometheus.HistogramVec

	listenAddress string
	MetricsPath   string

	ReqCntURLLabelMappingFn RequestCounterURLLabelMappingFn

	logger *zap.SugaredLogger
}

type NewPrometheusOptions struct {
	Subsystem               string
	ReqCntURLLabelMappingFn RequestCounterURLLabelMappingFn
	Logger                  *zap.SugaredLogger
}

func NewPrometheus(opts NewPrometheusOptions) *Prometheus {
	subsystem := opts.Subsystem
	if subsystem == "" {
		subsystem = "gin"
	}

	p := &Prometheus{
		MetricsPath:             defaultMetricPath,
		ReqCntURLLabelMappingFn: opts.ReqCntURLLabelMappingFn,
		logger:                  opts.Logger,
	}
	if p.ReqCntURLLabelMappingFn == nil {
		p.ReqCntURLLabelMappingFn = func(c *gin.Context) string { return c.Request.URL.Path }
	}

	p.reqCnt = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "req_total",
			Help:      "How many HTTP requests processed, partitioned by status code, method and url.",
		},
		[]string{"code", "method", "url"},
	)
	p.reqDur = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Subsystem: subsystem,
			Name:      "req_dur_ms",
			Help:      "The HTTP request latencies in milliseconds.",
			Buckets:   HistogramBuckets,
		},
		[]string{"code", "method", "url"},
	)

	for _, c := range append([]prometheus.Collector{p.reqCnt, p.reqDur}, domainCollectors()...) {
		if err := prometheus.Register(c); err != nil {
			if p.logger != nil {
				p.logger.Errorf("metrics: collector registration failed: %v", err)
			}
		}
	}
	return p
}

// SetListenAddress makes metrics available on a dedicated address instead of
// the main router.
func (p *Prometheus) SetListenAddress(addr string) {
	p.listenAddress = addr
}

// Use attaches the request middleware and exposes the metrics endpoint.
func (p *Prometheus) Use(e *gin.Engine) {
	e.Use(p.HandlerFunc())
	if p.listenAddress != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle(p.MetricsPath, promhttp.Handler())
			if err := http.ListenAndServe(p.listenAddress, mux); err != nil && p.logger != nil {
				p.logger.Errorf("metrics listener error: %v", err)
			}
		}()
		return
	}
	e.GET(p.MetricsPath, gin.WrapH(promhttp.Handler()))
}

func (p *Prometheus) HandlerFunc() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == p.MetricsPath {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		url := p.ReqCntURLLabelMappingFn(c)
		elapsed := float64(time.Since(start).Milliseconds())

		p.reqDur.WithLabelValues(status, c.Request.Method, url).Observe(elapsed)
		p.reqCnt.WithLabelValues(status, c.Request.Method, url).Inc()
	}
}
