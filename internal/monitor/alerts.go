// Package monitor поднимает алерты по событиям продажи.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/rovshanmuradov/tokensale/internal/events"
	"github.com/rovshanmuradov/tokensale/internal/types"
	"github.com/rovshanmuradov/tokensale/internal/units"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AlertType вид алерта
type AlertType string

const (
	AlertTypePriceMove      AlertType = "price_move"
	AlertTypeLargeTrade     AlertType = "large_trade"
	AlertTypeForcedTransfer AlertType = "forced_transfer"
)

const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Alert сработавший алерт.
type Alert struct {
	ID        string
	Type      AlertType
	Timestamp time.Time
	Sale      types.Address
	Symbol    string
	Message   string
	Severity  string
	TxID      string
	// Value наблюдаемая величина, Threshold порог
	Value     decimal.Decimal
	Threshold decimal.Decimal
}

// AlertConfig пороги. Нулевое значение отключает проверку.
type AlertConfig struct {
	// PriceMovePercent изменение цены относительно последней точки отсчёта
	PriceMovePercent float64
	// LargeTrade сумма сделки в единицах платёжного токена
	LargeTrade decimal.Decimal
	// Cooldown между алертами одного вида по одной продаже
	Cooldown time.Duration
}

func DefaultAlertConfig() AlertConfig {
	return AlertConfig{PriceMovePercent: 25}
}

// Market параметры продажи для перевода базовых единиц.
type Market struct {
	Address        types.Address
	Symbol         string
	PayDecimals    uint8
	PricePrecision *uint256.Int
}

// AlertHandler вызывается синхронно для каждого алерта
type AlertHandler func(alert Alert)

type cooldownKey struct {
	sale types.Address
	kind AlertType
}

// AlertManager проверяет события продажи и хранит последние алерты.
type AlertManager struct {
	mu     sync.RWMutex
	config AlertConfig
	logger *zap.Logger

	markets   map[types.Address]Market
	baseline  map[types.Address]decimal.Decimal
	lastAlert map[cooldownKey]time.Time

	alerts    []Alert
	maxAlerts int
	handlers  []AlertHandler
}

func NewAlertManager(config AlertConfig, logger *zap.Logger) *AlertManager {
	return &AlertManager{
		config:    config,
		logger:    logger.Named("monitor"),
		markets:   make(map[types.Address]Market),
		baseline:  make(map[types.Address]decimal.Decimal),
		lastAlert: make(map[cooldownKey]time.Time),
		maxAlerts: 1000,
	}
}

// Track регистрирует продажу. События неизвестных продаж игнорируются.
func (am *AlertManager) Track(m Market) {
	am.mu.Lock()
	defer am.mu.Unlock()
	am.markets[m.Address] = m
}

func (am *AlertManager) AddHandler(handler AlertHandler) {
	am.mu.Lock()
	defer am.mu.Unlock()
	am.handlers = append(am.handlers, handler)
}

// CheckPrice алерт, если цена ушла от точки отсчёта на PriceMovePercent
// или больше. Точка отсчёта сдвигается на цену сработавшего алерта.
func (am *AlertManager) CheckPrice(ev events.PriceUpdatedEvent) []Alert {
	am.mu.Lock()
	defer am.mu.Unlock()

	m, ok := am.markets[ev.Sale]
	if !ok || am.config.PriceMovePercent <= 0 {
		return nil
	}

	price := units.Ratio(ev.Price, m.PricePrecision)
	base, seen := am.baseline[ev.Sale]
	if !seen || base.IsZero() {
		am.baseline[ev.Sale] = price
		return nil
	}

	move := price.Sub(base).Div(base).Mul(decimal.NewFromInt(100))
	threshold := decimal.NewFromFloat(am.config.PriceMovePercent)
	if move.Abs().LessThan(threshold) {
		return nil
	}
	if !am.cooledDown(ev.Sale, AlertTypePriceMove, ev.Timestamp()) {
		return nil
	}
	am.baseline[ev.Sale] = price

	severity := SeverityWarning
	if move.Abs().GreaterThanOrEqual(threshold.Mul(decimal.NewFromInt(2))) {
		severity = SeverityCritical
	}
	alert := am.newAlert(AlertTypePriceMove, m, ev.Timestamp(), severity,
		fmt.Sprintf("%s price moved %s%% to %s", m.Symbol, move.StringFixed(1), price.String()))
	alert.Value = move
	alert.Threshold = threshold
	am.trigger(alert)
	return []Alert{alert}
}

// CheckTrade алерт на сделку не меньше LargeTrade.
func (am *AlertManager) CheckTrade(ev events.TradeExecutedEvent) []Alert {
	am.mu.Lock()
	defer am.mu.Unlock()

	m, ok := am.markets[ev.Sale]
	if !ok || !am.config.LargeTrade.IsPositive() {
		return nil
	}
	paid := units.ToUnits(ev.PayAmount, m.PayDecimals)
	if paid.LessThan(am.config.LargeTrade) {
		return nil
	}
	if !am.cooledDown(ev.Sale, AlertTypeLargeTrade, ev.Timestamp()) {
		return nil
	}

	alert := am.newAlert(AlertTypeLargeTrade, m, ev.Timestamp(), SeverityInfo,
		fmt.Sprintf("Large %s of %s: %s paid", ev.Kind, m.Symbol, paid.String()))
	alert.TxID = ev.TxID
	alert.Value = paid
	alert.Threshold = am.config.LargeTrade
	am.trigger(alert)
	return []Alert{alert}
}

// CheckTransfer принудительный перевод владельцем (god mode) всегда
// поднимает критический алерт, без cooldown.
func (am *AlertManager) CheckTransfer(ev events.TransferExecutedEvent) []Alert {
	if !ev.Forced {
		return nil
	}
	am.mu.Lock()
	defer am.mu.Unlock()

	var m Market
	for _, market := range am.markets {
		m = market
		break
	}
	alert := am.newAlert(AlertTypeForcedTransfer, m, ev.Timestamp(), SeverityCritical,
		fmt.Sprintf("Forced transfer of %s from %s to %s",
			units.ToUnits(ev.Amount, m.PayDecimals).String(),
			types.ShortAddress(ev.From), types.ShortAddress(ev.To)))
	alert.TxID = ev.TxID
	alert.Value = units.ToUnits(ev.Amount, m.PayDecimals)
	am.trigger(alert)
	return []Alert{alert}
}

func (am *AlertManager) cooledDown(sale types.Address, kind AlertType, now time.Time) bool {
	key := cooldownKey{sale: sale, kind: kind}
	if last, ok := am.lastAlert[key]; ok && now.Sub(last) < am.config.Cooldown {
		return false
	}
	am.lastAlert[key] = now
	return true
}

func (am *AlertManager) newAlert(kind AlertType, m Market, at time.Time, severity, msg string) Alert {
	return Alert{
		ID:        uuid.New().String(),
		Type:      kind,
		Timestamp: at,
		Sale:      m.Address,
		Symbol:    m.Symbol,
		Message:   msg,
		Severity:  severity,
	}
}

// trigger вызывается под am.mu
func (am *AlertManager) trigger(alert Alert) {
	if len(am.alerts) >= am.maxAlerts {
		am.alerts = am.alerts[1:]
	}
	am.alerts = append(am.alerts, alert)

	fields := []zap.Field{
		zap.String("type", string(alert.Type)),
		zap.String("sale", alert.Symbol),
		zap.String("message", alert.Message),
	}
	switch alert.Severity {
	case SeverityCritical:
		am.logger.Error("Alert triggered", fields...)
	case SeverityWarning:
		am.logger.Warn("Alert triggered", fields...)
	default:
		am.logger.Info("Alert triggered", fields...)
	}

	for _, handler := range am.handlers {
		handler(alert)
	}
}

// RecentAlerts последние limit алертов, limit <= 0 = все.
func (am *AlertManager) RecentAlerts(limit int) []Alert {
	am.mu.RLock()
	defer am.mu.RUnlock()

	if limit <= 0 || limit > len(am.alerts) {
		limit = len(am.alerts)
	}
	result := make([]Alert, limit)
	copy(result, am.alerts[len(am.alerts)-limit:])
	return result
}

// Attach подписывает менеджер на шину.
func (am *AlertManager) Attach(bus *events.Bus) []events.Subscription {
	return []events.Subscription{
		bus.Subscribe(events.PriceUpdated, events.Typed(func(_ context.Context, ev events.PriceUpdatedEvent) error {
			am.CheckPrice(ev)
			return nil
		})),
		bus.Subscribe(events.TradeExecuted, events.Typed(func(_ context.Context, ev events.TradeExecutedEvent) error {
			am.CheckTrade(ev)
			return nil
		})),
		bus.Subscribe(events.TransferExecuted, events.Typed(func(_ context.Context, ev events.TransferExecutedEvent) error {
			am.CheckTransfer(ev)
			return nil
		})),
	}
}
