// Package metrics exposes the bot's Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors on a private registry so several bots, or
// tests, never collide on the default one.
type Metrics struct {
	Registry *prometheus.Registry

	CyclesTotal     *prometheus.CounterVec
	SignalsTotal    *prometheus.CounterVec
	OrdersTotal     *prometheus.CounterVec
	TrailingUpdates *prometheus.CounterVec
	DailyPnL        prometheus.Gauge
	TradingBlocked  prometheus.Gauge
	CycleDuration   prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		CyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "trendbot_cycles_total", Help: "Trading cycles by result"},
			[]string{"result"},
		),
		SignalsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "trendbot_signals_total", Help: "Signals evaluated"},
			[]string{"signal"},
		),
		OrdersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "trendbot_orders_total", Help: "Market orders submitted"},
			[]string{"side", "result"},
		),
		TrailingUpdates: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "trendbot_trailing_updates_total", Help: "Trailing stop modifications"},
			[]string{"result"},
		),
		DailyPnL: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "trendbot_daily_pnl", Help: "Realized P/L of the current session"},
		),
		TradingBlocked: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "trendbot_trading_blocked", Help: "1 while a daily breaker or account failure blocks entries"},
		),
		CycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "trendbot_cycle_duration_seconds",
				Help:    "Wall time of one trading cycle",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
			},
		),
	}
	m.Registry.MustRegister(
		m.CyclesTotal, m.SignalsTotal, m.OrdersTotal, m.TrailingUpdates,
		m.DailyPnL, m.TradingBlocked, m.CycleDuration,
	)
	return m
}

// SetBlocked records the gate state.
func (m *Metrics) SetBlocked(blocked bool) {
	if blocked {
		m.TradingBlocked.Set(1)
		return
	}
	m.TradingBlocked.Set(0)
}

// Serve exposes /metrics on addr in the background. Close the returned
// server to stop it.
func Serve(addr string, m *Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
