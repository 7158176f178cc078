package monitoring

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"runtime"
	"strings"
	"time"

	"slot-settlement/internal/ledger"
	"slot-settlement/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

const (
	refundQueuePattern = "ledger:refunds:*"
	scanBatch          = 100
)

var (
	instructions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_instructions_total",
			Help: "Engine instructions by outcome",
		},
		[]string{"instruction", "outcome"},
	)

	instructionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "settlement_instruction_duration_seconds",
			Help:    "Time spent executing one instruction, ledger round trips included",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
		[]string{"instruction"},
	)

	settlements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_sales_total",
			Help: "Sales settled per mode and currency",
		},
		[]string{"mode", "currency"},
	)

	settledAmount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_sales_amount_total",
			Help: "Gross sale proceeds in base units",
		},
		[]string{"mode", "currency"},
	)

	refundQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "settlement_refund_queue_depth",
			Help: "Outbid refunds waiting to be paid per slot",
		},
		[]string{"slot_id"},
	)

	goroutineCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_goroutines_total",
			Help: "Current number of active goroutines",
		},
	)

	ledgerUp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "settlement_ledger_up",
			Help: "1 when the redis ledger answered the last scrape",
		},
	)
)

// Monitor records engine metrics. With a redis client it also rebuilds the
// refund queue gauges from the ledger so a restarted process reports the
// backlog left by the previous one.
type Monitor struct {
	redis    *redis.Client
	interval time.Duration
}

func NewMonitor(redisClient *redis.Client) *Monitor {
	return &Monitor{redis: redisClient, interval: 30 * time.Second}
}

// Run collects periodic metrics until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.collect(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.collect(ctx)
		}
	}
}

func (m *Monitor) collect(ctx context.Context) {
	goroutineCount.Set(float64(runtime.NumGoroutine()))

	if m.redis == nil {
		return
	}
	if err := m.collectRefundQueues(ctx); err != nil {
		ledgerUp.Set(0)
		slog.Warn("refund queue scrape failed", "error", err)
		return
	}
	ledgerUp.Set(1)
}

func (m *Monitor) collectRefundQueues(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := m.redis.Scan(ctx, cursor, refundQueuePattern, scanBatch).Result()
		if err != nil {
			return err
		}
		if err := m.recordRefundQueues(ctx, keys); err != nil {
			return err
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (m *Monitor) recordRefundQueues(ctx context.Context, keys []string) error {
	for _, key := range keys {
		data, err := m.redis.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return err
		}
		var q models.RefundQueue
		if err := ledger.Unmarshal(data, &q); err != nil {
			slog.Warn("undecodable refund queue", "key", key, "error", err)
			continue
		}
		slotID := q.SlotID
		if slotID == "" {
			slotID = strings.TrimPrefix(key, refundQueuePattern[:len(refundQueuePattern)-1])
		}
		refundQueueDepth.WithLabelValues(slotID).Set(float64(q.Count))
	}
	return nil
}

func (m *Monitor) ObserveInstruction(instruction, outcome string, elapsed time.Duration) {
	instructions.WithLabelValues(instruction, outcome).Inc()
	instructionDuration.WithLabelValues(instruction).Observe(elapsed.Seconds())
}

func (m *Monitor) ObserveSettlement(mode models.SaleMode, currency string, amount uint64) {
	settlements.WithLabelValues(string(mode), currency).Inc()
	settledAmount.WithLabelValues(string(mode), currency).Add(float64(amount))
}

func (m *Monitor) SetRefundQueueDepth(slotID string, depth uint32) {
	refundQueueDepth.WithLabelValues(slotID).Set(float64(depth))
}

// Handler serves the default registry.
func (m *Monitor) Handler() http.Handler {
	return promhttp.Handler()
}
