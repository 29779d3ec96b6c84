package metrics

import (
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"storefront/core/events"
	"storefront/native/storefront"
)

// StorefrontMetrics tracks issuance activity and the HTTP surface in front of
// the engine.
type StorefrontMetrics struct {
	minted      *prometheus.CounterVec
	revenue     *prometheus.CounterVec
	withdrawals *prometheus.CounterVec
	changes     *prometheus.CounterVec
	paused      prometheus.Gauge
	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	rejections  *prometheus.CounterVec
	throttles   *prometheus.CounterVec
	transfers   *prometheus.CounterVec
}

var (
	storefrontOnce     sync.Once
	storefrontRegistry *StorefrontMetrics
)

// Storefront returns the process-wide metrics registered on the default
// prometheus registerer.
func Storefront() *StorefrontMetrics {
	storefrontOnce.Do(func() {
		storefrontRegistry = NewStorefrontMetrics(prometheus.DefaultRegisterer)
	})
	return storefrontRegistry
}

// NewStorefrontMetrics builds the collectors and registers them on reg. A nil
// registerer leaves them unregistered.
func NewStorefrontMetrics(reg prometheus.Registerer) *StorefrontMetrics {
	m := &StorefrontMetrics{
		minted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "minted_units_total",
			Help:      "Units issued segmented by tier and mint source.",
		}, []string{"tier", "source"}),
		revenue: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "revenue_base_units_total",
			Help:      "Payment collected in base units, split into treasury and commission.",
		}, []string{"tier", "share"}),
		withdrawals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "withdrawals_total",
			Help:      "Vault payouts segmented by recipient kind.",
		}, []string{"kind"}),
		changes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "config_changes_total",
			Help:      "Administrative configuration changes segmented by event type.",
		}, []string{"event"}),
		paused: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "storefront",
			Name:      "paused",
			Help:      "Whether minting is paused (1) or open (0).",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "API requests segmented by route and outcome.",
		}, []string{"route", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "storefront",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Latency distribution for API handlers.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "api",
			Name:      "rejections_total",
			Help:      "Engine rejections segmented by reason.",
		}, []string{"reason"}),
		throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "api",
			Name:      "throttles_total",
			Help:      "Requests refused by the rate limiter.",
		}, []string{"route"}),
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "token_transfers_total",
			Help:      "Collectible transfers segmented by tier.",
		}, []string{"tier"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.minted,
			m.revenue,
			m.withdrawals,
			m.changes,
			m.paused,
			m.requests,
			m.latency,
			m.rejections,
			m.throttles,
			m.transfers,
		)
	}
	return m
}

// ObserveRequest records an API request with the HTTP status that was
// written.
func (m *StorefrontMetrics) ObserveRequest(route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(route, outcome).Inc()
	m.latency.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordRejection counts an engine failure by canonical reason.
func (m *StorefrontMetrics) RecordRejection(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "INTERNAL"
	}
	m.rejections.WithLabelValues(reason).Inc()
}

// RecordThrottle counts a rate limited request.
func (m *StorefrontMetrics) RecordThrottle(route string) {
	if m == nil {
		return
	}
	m.throttles.WithLabelValues(route).Inc()
}

// Emitter returns an events.Emitter that folds storefront events into the
// collectors.
func (m *StorefrontMetrics) Emitter() events.Emitter { return eventSink{m: m} }

type eventSink struct {
	m *StorefrontMetrics
}

func (s eventSink) Emit(evt events.Event) {
	if s.m == nil || evt == nil {
		return
	}
	payload, ok := evt.(events.Payload)
	if !ok {
		return
	}
	raw := payload.Event()
	if raw == nil {
		return
	}
	attrs := raw.Attributes
	switch raw.Type {
	case storefront.EventTypeMinted:
		qty, err := strconv.ParseUint(attrs["quantity"], 10, 64)
		if err != nil {
			return
		}
		tier := attrs["tier"]
		s.m.minted.WithLabelValues(tier, attrs["source"]).Add(float64(qty))
		paid := parseAmount(attrs["paid"])
		commission := parseAmount(attrs["commission"])
		s.m.revenue.WithLabelValues(tier, "treasury").Add(paid - commission)
		if commission > 0 {
			s.m.revenue.WithLabelValues(tier, "commission").Add(commission)
		}
	case events.TypeTokenTransfer:
		s.m.transfers.WithLabelValues(attrs["tier"]).Inc()
	case storefront.EventTypeTreasuryWithdrawn:
		s.m.withdrawals.WithLabelValues("treasury").Inc()
	case storefront.EventTypeInfluencerWithdrawn:
		s.m.withdrawals.WithLabelValues("influencer").Inc()
	case storefront.EventTypePauseToggled:
		if attrs["paused"] == "true" {
			s.m.paused.Set(1)
		} else {
			s.m.paused.Set(0)
		}
	default:
		if strings.HasPrefix(raw.Type, "storefront.") && raw.Type != storefront.EventTypeCommissionAccrued {
			s.m.changes.WithLabelValues(raw.Type).Inc()
		}
	}
}

func parseAmount(raw string) float64 {
	v, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok || v.Sign() <= 0 {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}
