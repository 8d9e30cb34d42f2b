package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsNamespace prefixes every wikicat metric.
const MetricsNamespace = "wikicat"

// Metrics holds the Prometheus collectors for a crawl process. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	// API metrics
	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec
	APIRetriesTotal    *prometheus.CounterVec
	BytesDownloaded    prometheus.Counter

	// Crawl metrics
	PagesRegisteredTotal   *prometheus.CounterVec
	CategoriesCrawledTotal prometheus.Counter
	CategoriesBannedTotal  prometheus.Counter
	CategoriesSkippedTotal *prometheus.CounterVec
	EnrichFailuresTotal    *prometheus.CounterVec

	// Cache metrics
	CacheLookupsTotal *prometheus.CounterVec

	// Dump metrics
	DumpPagesScanned prometheus.Counter
	DumpPagesMatched prometheus.Counter

	// Storage metrics
	RecordsStoredTotal *prometheus.CounterVec

	registry *prometheus.Registry
	logger   *slog.Logger
}

// NewMetrics creates and registers all collectors on reg. A fresh registry is
// created when reg is nil.
func NewMetrics(reg *prometheus.Registry, logger *slog.Logger) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	m := &Metrics{
		registry: reg,
		logger:   logger.With("component", "metrics"),
	}

	m.APIRequestsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "api_requests_total",
		Help:      "Total API requests by logical endpoint and HTTP status",
	}, []string{"endpoint", "status"})
	m.APIRequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Name:      "api_request_duration_seconds",
		Help:      "API request latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"endpoint"})
	m.APIRetriesTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "api_retries_total",
		Help:      "Total retried API requests",
	}, []string{"endpoint"})
	m.BytesDownloaded = factory.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "bytes_downloaded_total",
		Help:      "Total decompressed response bytes",
	})

	m.PagesRegisteredTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "pages_registered_total",
		Help:      "Page registrations by outcome (created, appended, duplicate)",
	}, []string{"outcome"})
	m.CategoriesCrawledTotal = factory.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "categories_crawled_total",
		Help:      "Total categories whose pages were listed",
	})
	m.CategoriesBannedTotal = factory.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "categories_banned_total",
		Help:      "Total subcategories dropped by the keyword filter",
	})
	m.CategoriesSkippedTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "categories_skipped_total",
		Help:      "Subcategories not expanded, by reason",
	}, []string{"reason"})
	m.EnrichFailuresTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "enrich_failures_total",
		Help:      "Enrichment failures by stage (views, content, parse)",
	}, []string{"stage"})

	m.CacheLookupsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "cache_lookups_total",
		Help:      "Cache lookups by result (hit, miss, error)",
	}, []string{"result"})

	m.DumpPagesScanned = factory.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "dump_pages_scanned_total",
		Help:      "Total dump entries read",
	})
	m.DumpPagesMatched = factory.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "dump_pages_matched_total",
		Help:      "Total dump entries containing a wanted template",
	})

	m.RecordsStoredTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "records_stored_total",
		Help:      "Total records written by storage backend",
	}, []string{"backend"})

	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveRequest records one completed API round trip. status is 0 for
// transport failures.
func (m *Metrics) ObserveRequest(endpoint string, status int, d time.Duration, bytes int) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.APIRequestsTotal.WithLabelValues(endpoint, label).Inc()
	m.APIRequestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
	if bytes > 0 {
		m.BytesDownloaded.Add(float64(bytes))
	}
}

// IncRetry records a retried API request.
func (m *Metrics) IncRetry(endpoint string) {
	if m == nil {
		return
	}
	m.APIRetriesTotal.WithLabelValues(endpoint).Inc()
}

// IncRegistered records a page registration outcome.
func (m *Metrics) IncRegistered(outcome string) {
	if m == nil {
		return
	}
	m.PagesRegisteredTotal.WithLabelValues(outcome).Inc()
}

// IncCategoryCrawled records a category whose pages were listed.
func (m *Metrics) IncCategoryCrawled() {
	if m == nil {
		return
	}
	m.CategoriesCrawledTotal.Inc()
}

// IncCategoryBanned records a subcategory removed by the keyword filter.
func (m *Metrics) IncCategoryBanned() {
	if m == nil {
		return
	}
	m.CategoriesBannedTotal.Inc()
}

// IncCategorySkipped records a subcategory that was not expanded.
func (m *Metrics) IncCategorySkipped(reason string) {
	if m == nil {
		return
	}
	m.CategoriesSkippedTotal.WithLabelValues(reason).Inc()
}

// IncEnrichFailure records a failed enrichment stage.
func (m *Metrics) IncEnrichFailure(stage string) {
	if m == nil {
		return
	}
	m.EnrichFailuresTotal.WithLabelValues(stage).Inc()
}

// IncCacheLookup records a cache lookup result.
func (m *Metrics) IncCacheLookup(result string) {
	if m == nil {
		return
	}
	m.CacheLookupsTotal.WithLabelValues(result).Inc()
}

// IncDumpScanned records one dump entry read.
func (m *Metrics) IncDumpScanned() {
	if m == nil {
		return
	}
	m.DumpPagesScanned.Inc()
}

// IncDumpMatched records one dump entry that contained a wanted template.
func (m *Metrics) IncDumpMatched() {
	if m == nil {
		return
	}
	m.DumpPagesMatched.Inc()
}

// AddStored records n records written by backend.
func (m *Metrics) AddStored(backend string, n int) {
	if m == nil {
		return
	}
	m.RecordsStoredTotal.WithLabelValues(backend).Add(float64(n))
}

// StartServer starts the metrics HTTP server in the background. The returned
// server should be shut down with Shutdown.
func (m *Metrics) StartServer(port int, path string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	m.logger.Info("metrics server starting", "addr", srv.Addr, "path", path)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("metrics server error", "error", err)
		}
	}()
	return srv
}

// Shutdown stops a server started by StartServer.
func (m *Metrics) Shutdown(ctx context.Context, srv *http.Server) error {
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
