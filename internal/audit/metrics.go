// Package audit implements the Statistics & Audit component: per-command
// and per-link counters exported to Prometheus, STATS answers, and the
// structured security-event log (spec §4.12-4.13).
package audit

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is this daemon's own Prometheus registry, kept separate from
// the global default registry so metrics exposure is opt-in per process.
var Registry = prometheus.NewRegistry()

var (
	CommandsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "ircd_commands_total",
			Help: "Total commands processed, by verb and origin (local/remote)",
		},
		[]string{"verb", "origin"},
	)

	CommandBytesTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "ircd_command_bytes_total",
			Help: "Total bytes processed per command verb",
		},
		[]string{"verb"},
	)

	ClientsCurrent = promauto.With(Registry).NewGauge(prometheus.GaugeOpts{
		Name: "ircd_clients_current",
		Help: "Currently connected local clients",
	})

	ServersCurrent = promauto.With(Registry).NewGauge(prometheus.GaugeOpts{
		Name: "ircd_servers_current",
		Help: "Currently linked peer servers",
	})

	ChannelsCurrent = promauto.With(Registry).NewGauge(prometheus.GaugeOpts{
		Name: "ircd_channels_current",
		Help: "Currently existing channels",
	})

	ThrottledIPsTotal = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Name: "ircd_throttled_ips_total",
		Help: "Total connection attempts denied by the throttle governor",
	})

	CacheHits = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{Name: "ircd_cache_hits_total", Help: "Cache hits by cache name"},
		[]string{"cache"},
	)
	CacheMisses = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{Name: "ircd_cache_misses_total", Help: "Cache misses by cache name"},
		[]string{"cache"},
	)

	LinkBytesSent = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{Name: "ircd_link_bytes_sent_total", Help: "Bytes sent per peer link"},
		[]string{"server"},
	)
	LinkBytesRecv = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{Name: "ircd_link_bytes_recv_total", Help: "Bytes received per peer link"},
		[]string{"server"},
	)
)

// MetricsServerConfig configures the standalone scrape endpoint.
type MetricsServerConfig struct {
	Path string
	Port int
}

// DefaultMetricsServerConfig matches the teacher's echoprom defaults,
// moved off its HTTP port since that port is reserved for client traffic
// in an ircd deployment.
func DefaultMetricsServerConfig() MetricsServerConfig {
	return MetricsServerConfig{Path: "/metrics", Port: 9090}
}

var metricsServer *http.Server

// StartMetricsServer launches the scrape endpoint in the background.
func StartMetricsServer(cfg MetricsServerConfig) {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(Registry, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	metricsServer = &http.Server{Addr: ":" + strconv.Itoa(cfg.Port), Handler: mux}
	go func() {
		_ = metricsServer.ListenAndServe()
	}()
}

// ShutdownMetricsServer gracefully stops the scrape endpoint.
func ShutdownMetricsServer(ctx context.Context) error {
	if metricsServer == nil {
		return nil
	}
	return metricsServer.Shutdown(ctx)
}
