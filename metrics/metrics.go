// Package metrics declares the Prometheus collectors of the oracli service
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	dto "github.com/prometheus/client_model/go"
)

const (
	ModuleOracli = "oracli"
)

// metrics labels.
const (
	LabelQuery   = "query"
	LabelCatalog = "catalog"
	LabelPool    = "pool"

	LblKind   = "kind"
	LblResult = "result"
	LblType   = "type"

	KindByPK     = "pk"
	KindByParams = "params"

	ResultOK  = "ok"
	ResultErr = "error"
)

var (
	QueryTotalCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ModuleOracli,
			Subsystem: LabelQuery,
			Name:      "total",
			Help:      "Counter of dynamic queries.",
		}, []string{LblKind, LblResult})

	QueryDurationHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ModuleOracli,
			Subsystem: LabelQuery,
			Name:      "duration_seconds",
			Help:      "Bucketed histogram of dynamic query duration.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 20), // 0.5ms ~ 262s
		}, []string{LblKind})

	CatalogLookupCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ModuleOracli,
			Subsystem: LabelCatalog,
			Name:      "lookup_total",
			Help:      "Counter of table metadata lookups by hit or miss.",
		}, []string{LblType})

	PoolInUseGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: ModuleOracli,
			Subsystem: LabelPool,
			Name:      "in_use",
			Help:      "Number of sessions checked out.",
		})
)

var registerOnce sync.Once

// RegisterMetrics registers the collectors with the default registry, more
// calls do nothing
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.DefaultRegisterer.Unregister(collectors.NewGoCollector())
		prometheus.MustRegister(collectors.NewGoCollector(collectors.WithGoCollections(collectors.GoRuntimeMetricsCollection | collectors.GoRuntimeMemStatsCollection)))

		prometheus.MustRegister(QueryTotalCounter)
		prometheus.MustRegister(QueryDurationHistogram)
		prometheus.MustRegister(CatalogLookupCounter)
		prometheus.MustRegister(PoolInUseGauge)
	})
}

// ObserveQuery records one dynamic query
func ObserveQuery(kind string, start time.Time, err error) {
	result := ResultOK
	if err != nil {
		result = ResultErr
	}
	QueryTotalCounter.WithLabelValues(kind, result).Inc()
	QueryDurationHistogram.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

// ObserveCatalog records a catalog cache hit or miss
func ObserveCatalog(hit bool) {
	if hit {
		CatalogLookupCounter.WithLabelValues("hit").Inc()
	} else {
		CatalogLookupCounter.WithLabelValues("miss").Inc()
	}
}

// ReadCounter reads the value from the counter. It is only used for testing.
func ReadCounter(counter prometheus.Counter) (int, error) {
	var metric dto.Metric
	if err := counter.Write(&metric); err != nil {
		return 0, err
	}
	return int(metric.Counter.GetValue()), nil
}

// ReadGauge reads the value from the gauge. It is only used for testing.
func ReadGauge(gauge prometheus.Gauge) (int, error) {
	var metric dto.Metric
	if err := gauge.Write(&metric); err != nil {
		return 0, err
	}
	return int(metric.Gauge.GetValue()), nil
}
