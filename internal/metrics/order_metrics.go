package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics содержит метрики ядра заказов.
type OrderMetrics struct {
	// Счётчики операций
	ordersCreated     prometheus.Counter
	createRejected    *prometheus.CounterVec
	statusTransitions *prometheus.CounterVec
	stockConflicts    prometheus.Counter

	// Гистограммы времени выполнения
	createDuration prometheus.Histogram
	statusDuration prometheus.Histogram

	// Счётчики событий
	timelineEvents prometheus.Counter
	outboxEvents   prometheus.Counter
}

// NewOrderMetrics создаёт новый экземпляр метрик заказов.
func NewOrderMetrics() *OrderMetrics {
	return newOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "feira_orders_created_total",
			Help: "Total number of orders created",
		}),
		createRejected: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "feira_order_create_rejected_total",
			Help: "Total number of rejected order creations grouped by error class",
		}, []string{"reason"}),
		statusTransitions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "feira_order_status_transitions_total",
			Help: "Total number of order status transitions grouped by from/to",
		}, []string{"from", "to"}),
		stockConflicts: registerCounter(registerer, prometheus.CounterOpts{
			Name: "feira_order_stock_conflicts_total",
			Help: "Total number of deliveries rejected due to insufficient stock",
		}),
		createDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "feira_order_create_duration_seconds",
			Help:    "Duration of order creation in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		statusDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "feira_order_status_duration_seconds",
			Help:    "Duration of order status transitions in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		timelineEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "feira_order_timeline_events_total",
			Help: "Total number of timeline events recorded",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "feira_order_outbox_events_total",
			Help: "Total number of order events enqueued into the outbox",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

// RecordOrderCreated увеличивает счётчик созданных заказов.
func (m *OrderMetrics) RecordOrderCreated() {
	m.ordersCreated.Inc()
}

// RecordCreateRejected увеличивает счётчик отклонённых созданий по классу ошибки.
func (m *OrderMetrics) RecordCreateRejected(reason string) {
	m.createRejected.WithLabelValues(reason).Inc()
}

// RecordStatusTransition увеличивает счётчик переходов статуса.
func (m *OrderMetrics) RecordStatusTransition(from, to string) {
	m.statusTransitions.WithLabelValues(from, to).Inc()
}

// RecordStockConflict увеличивает счётчик отказов из-за нехватки стока.
func (m *OrderMetrics) RecordStockConflict() {
	m.stockConflicts.Inc()
}

// RecordCreateDuration записывает время создания заказа.
func (m *OrderMetrics) RecordCreateDuration(duration time.Duration) {
	m.createDuration.Observe(duration.Seconds())
}

// RecordStatusDuration записывает время перехода статуса.
func (m *OrderMetrics) RecordStatusDuration(duration time.Duration) {
	m.statusDuration.Observe(duration.Seconds())
}

// RecordTimelineEvent увеличивает счётчик событий timeline.
func (m *OrderMetrics) RecordTimelineEvent() {
	m.timelineEvents.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *OrderMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}
