package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// OrdersTotal counts quote and checkout outcomes.
	OrdersTotal *prometheus.CounterVec
	// CatalogFetchTotal counts catalog loads by source and outcome.
	CatalogFetchTotal *prometheus.CounterVec
	// DeliveryValidationsTotal counts delivery code lookups by outcome.
	DeliveryValidationsTotal *prometheus.CounterVec
	// SyncRunsTotal counts synchronization runs by outcome.
	SyncRunsTotal *prometheus.CounterVec
	// SyncRowsTotal counts rows touched by synchronization runs.
	SyncRowsTotal *prometheus.CounterVec
	// OrderHistoryWritesTotal counts order history writes by store and outcome.
	OrderHistoryWritesTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		OrdersTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_total",
			Help:      "Count of order quotes and checkouts by outcome.",
		}, []string{"kind", "result"})
		CatalogFetchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_fetch_total",
			Help:      "Count of catalog loads by source and outcome.",
		}, []string{"source", "result"})
		DeliveryValidationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_validations_total",
			Help:      "Count of delivery code validations by outcome.",
		}, []string{"result"})
		SyncRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_total",
			Help:      "Count of product synchronization runs by outcome.",
		}, []string{"source", "result"})
		SyncRowsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_rows_total",
			Help:      "Rows added, updated or deactivated by synchronization runs.",
		}, []string{"source", "change"})
		OrderHistoryWritesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_history_writes_total",
			Help:      "Count of order history writes by store and outcome.",
		}, []string{"store", "result"})

		for _, ref := range []**prometheus.CounterVec{
			&OrdersTotal, &CatalogFetchTotal, &DeliveryValidationsTotal,
			&SyncRunsTotal, &SyncRowsTotal, &OrderHistoryWritesTotal,
		} {
			ref := ref
			mustRegisterCollector(reg, *ref, func(existing prometheus.Collector) {
				if v, ok := existing.(*prometheus.CounterVec); ok {
					*ref = v
				}
			})
		}
	})
}

// Inc increments vec for labels. It is a no-op until the domain metrics are registered.
func Inc(vec *prometheus.CounterVec, labels ...string) {
	Add(vec, 1, labels...)
}

// Add adds n to vec for labels.
func Add(vec *prometheus.CounterVec, n float64, labels ...string) {
	if vec == nil || n <= 0 {
		return
	}
	vec.WithLabelValues(labels...).Add(n)
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
