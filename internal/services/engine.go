package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"slot-settlement/internal/clock"
	"slot-settlement/internal/ledger"
	"slot-settlement/models"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
)

// Observer receives the events of an instruction after its writes commit.
// A failing observer never undoes the instruction.
type Observer interface {
	Notify(ctx context.Context, events []models.Event) error
}

type ObserverFunc func(ctx context.Context, events []models.Event) error

func (f ObserverFunc) Notify(ctx context.Context, events []models.Event) error { return f(ctx, events) }

// CreatorDirectory is the external profile store. The engine only reads
// display names from it at onboarding.
type CreatorDirectory interface {
	DisplayName(ctx context.Context, authority solana.PublicKey) (string, error)
}

// Metrics is implemented by monitoring.Monitor.
type Metrics interface {
	ObserveInstruction(instruction, outcome string, elapsed time.Duration)
	ObserveSettlement(mode models.SaleMode, currency string, amount uint64)
	SetRefundQueueDepth(slotID string, depth uint32)
}

type noopMetrics struct{}

func (noopMetrics) ObserveInstruction(string, string, time.Duration) {}
func (noopMetrics) ObserveSettlement(models.SaleMode, string, uint64) {}
func (noopMetrics) SetRefundQueueDepth(string, uint32) {}

// Engine is the settlement engine. Every exported mutating method is one
// atomic instruction executed through the ledger store.
type Engine struct {
	store     ledger.Store
	clock     clock.Clock
	logger    *slog.Logger
	metrics   Metrics
	directory CreatorDirectory
	observers []Observer
	newID     func() string
}

type Option func(*Engine)

func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithMetrics(m Metrics) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

func WithCreatorDirectory(d CreatorDirectory) Option {
	return func(e *Engine) { e.directory = d }
}

func WithObservers(obs ...Observer) Option {
	return func(e *Engine) { e.observers = append(e.observers, obs...) }
}

// WithIDGenerator replaces the uuid slot id generator.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newID = fn
		}
	}
}

func NewEngine(store ledger.Store, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		clock:   clock.NewSystem(),
		logger:  slog.Default(),
		metrics: noopMetrics{},
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AddObserver registers an observer after construction.
func (e *Engine) AddObserver(o Observer) {
	e.observers = append(e.observers, o)
}

// call is the state of one running instruction.
type call struct {
	tx     *ledger.Tx
	now    int64
	events []models.Event
}

func (c *call) emit(ev models.Event) {
	ev.At = c.now
	c.events = append(c.events, ev)
}

func (e *Engine) execute(ctx context.Context, instruction, slotID string, fn func(c *call) error) error {
	start := time.Now()

	nonce, signed := nonceFrom(ctx)

	var events []models.Event
	err := e.store.Execute(ctx, func(tx *ledger.Tx) error {
		c := &call{tx: tx, now: e.clock.Now().Unix()}
		if signed {
			if err := c.consumeNonce(nonce, instruction); err != nil {
				return err
			}
		}
		if err := fn(c); err != nil {
			return err
		}
		events = c.events
		return nil
	})

	if err != nil {
		e.metrics.ObserveInstruction(instruction, outcome(err), time.Since(start))
		e.logger.Warn("instruction rejected",
			"instruction", instruction,
			"slot_id", slotID,
			"error", err,
		)
		return err
	}

	e.metrics.ObserveInstruction(instruction, "ok", time.Since(start))
	e.logger.Debug("instruction committed", "instruction", instruction, "slot_id", slotID, "events", len(events))
	e.publish(ctx, events)
	return nil
}

func outcome(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "rejected"
	}
}

func (e *Engine) publish(ctx context.Context, events []models.Event) {
	if len(events) == 0 {
		return
	}
	for _, ev := range events {
		if ev.Kind == models.EventSettled || ev.Kind == models.EventAuctionEnded || ev.Kind == models.EventBuyNow {
			if ev.Slot != nil {
				e.metrics.ObserveSettlement(ev.Slot.Mode, ev.Currency, ev.Amount)
			}
		}
	}
	for _, o := range e.observers {
		if err := o.Notify(ctx, events); err != nil {
			e.logger.Error("observer failed", "error", err, "events", len(events))
		}
	}
}

// read runs fn against a consistent snapshot without writing.
func (e *Engine) read(ctx context.Context, fn func(c *call) error) error {
	return e.store.Execute(ctx, func(tx *ledger.Tx) error {
		return fn(&call{tx: tx, now: e.clock.Now().Unix()})
	})
}
