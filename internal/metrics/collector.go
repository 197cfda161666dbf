// internal/metrics/collector.go
package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rovshanmuradov/tokensale/internal/events"
	"github.com/rovshanmuradov/tokensale/internal/types"
	"github.com/rovshanmuradov/tokensale/internal/units"
)

// MetricType тип метрики в коллекторе
type MetricType string

const (
	TradeCounterType  MetricType = "trade_counter"
	TradeDurationType MetricType = "trade_duration"
	SupplyType        MetricType = "supply"
	PriceType         MetricType = "price"
	ReserveType       MetricType = "reserve"
	TransferType      MetricType = "transfer_counter"
)

const namespace = "tokensale"

// Статусы сделок
const (
	StatusSuccess   = "success"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Market параметры продажи, нужные для перевода базовых единиц в gauge.
type Market struct {
	Address        types.Address
	Symbol         string
	Decimals       uint8
	PayDecimals    uint8
	PricePrecision uint64
}

// Collector набор метрик продажи в собственном реестре.
type Collector struct {
	registry *prometheus.Registry
	metrics  sync.Map

	mu      sync.RWMutex
	markets map[types.Address]Market
}

// NewCollector создает коллектор и регистрирует метрики.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		markets:  make(map[types.Address]Market),
	}
	c.initializeMetrics()
	return c
}

func (c *Collector) initializeMetrics() {
	metricsMap := map[MetricType]prometheus.Collector{
		TradeCounterType: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_total",
			Help:      "Total number of trades by direction, payment flow and outcome",
		}, []string{"kind", "flow", "status"}),
		TradeDurationType: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "trade_duration_seconds",
			Help:      "Trade execution time in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"kind"}),
		SupplyType: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "supply",
			Help:      "Outstanding sale token supply in whole units",
		}, []string{"sale"}),
		PriceType: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "price",
			Help:      "Marginal price in payment tokens per sale token",
		}, []string{"sale"}),
		ReserveType: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reserve",
			Help:      "Curve reserve in payment tokens",
		}, []string{"sale"}),
		TransferType: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_transfers_total",
			Help:      "Payment token transfers, forced ones included",
		}, []string{"forced"}),
	}

	for metricType, metric := range metricsMap {
		c.metrics.Store(metricType, metric)
		c.registry.MustRegister(metric)
	}
}

// Registry реестр для экспорта.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Track включает gauge для продажи.
func (c *Collector) Track(m Market) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markets[m.Address] = m
}

// Reset сбрасывает все метрики (для тестов)
func (c *Collector) Reset() {
	c.metrics.Range(func(_, value any) bool {
		switch m := value.(type) {
		case *prometheus.CounterVec:
			m.Reset()
		case *prometheus.GaugeVec:
			m.Reset()
		case *prometheus.HistogramVec:
			m.Reset()
		}
		return true
	})
}

func (c *Collector) counter(t MetricType) *prometheus.CounterVec {
	v, _ := c.metrics.Load(t)
	m, _ := v.(*prometheus.CounterVec)
	return m
}

func (c *Collector) gauge(t MetricType) *prometheus.GaugeVec {
	v, _ := c.metrics.Load(t)
	m, _ := v.(*prometheus.GaugeVec)
	return m
}

// RecordTrade записывает исход сделки. Отменённый контекст учитывается
// отдельным статусом.
func (c *Collector) RecordTrade(ctx context.Context, kind, flow string, duration time.Duration, success bool) {
	status := StatusSuccess
	switch {
	case ctx.Err() != nil:
		status = StatusCancelled
	case !success:
		status = StatusFailed
	}

	c.counter(TradeCounterType).WithLabelValues(kind, flow, status).Inc()
	if status == StatusSuccess {
		if v, ok := c.metrics.Load(TradeDurationType); ok {
			if h, ok := v.(*prometheus.HistogramVec); ok {
				h.WithLabelValues(kind).Observe(duration.Seconds())
			}
		}
	}
}

// UpdateMarket выставляет gauge по состоянию после сделки.
func (c *Collector) UpdateMarket(ev events.PriceUpdatedEvent) {
	c.mu.RLock()
	m, ok := c.markets[ev.Sale]
	c.mu.RUnlock()
	if !ok {
		return
	}

	price, _ := units.Ratio(ev.Price, uint256.NewInt(m.PricePrecision)).Float64()
	c.gauge(PriceType).WithLabelValues(m.Symbol).Set(price)
	c.gauge(SupplyType).WithLabelValues(m.Symbol).Set(units.Float(ev.Supply, m.Decimals))
	c.gauge(ReserveType).WithLabelValues(m.Symbol).Set(units.Float(ev.Reserve, m.PayDecimals))
}

// Attach подписывает коллектор на события шины. Успешные сделки считаются
// здесь, неудачные записывает вызывающий через RecordTrade.
func (c *Collector) Attach(bus *events.Bus) []events.Subscription {
	return []events.Subscription{
		bus.Subscribe(events.TradeExecuted, events.Typed(func(_ context.Context, ev events.TradeExecutedEvent) error {
			// сделка уже зафиксирована, отмена контекста шины на неё не влияет
			c.RecordTrade(context.Background(), ev.Kind, ev.Flow, ev.Duration, true)
			return nil
		})),
		bus.Subscribe(events.PriceUpdated, events.Typed(func(_ context.Context, ev events.PriceUpdatedEvent) error {
			c.UpdateMarket(ev)
			return nil
		})),
		bus.Subscribe(events.TransferExecuted, events.Typed(func(_ context.Context, ev events.TransferExecutedEvent) error {
			forced := "false"
			if ev.Forced {
				forced = "true"
			}
			c.counter(TransferType).WithLabelValues(forced).Inc()
			return nil
		})),
	}
}
