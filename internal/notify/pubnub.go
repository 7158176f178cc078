package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"slot-settlement/models"
	"slot-settlement/utils"

	pubnub "github.com/pubnub/go"
)

// Publisher delivers one message to a realtime channel.
type Publisher interface {
	Publish(channel string, message any) error
}

type pubnubPublisher struct {
	pn *pubnub.PubNub
}

func NewPubNubPublisher(publishKey, subscribeKey, secretKey string) Publisher {
	cfg := pubnub.NewConfig()
	cfg.PublishKey = publishKey
	cfg.SubscribeKey = subscribeKey
	cfg.SecretKey = secretKey
	return &pubnubPublisher{pn: pubnub.NewPubNub(cfg)}
}

func (p *pubnubPublisher) Publish(channel string, message any) error {
	_, _, err := p.pn.Publish().
		Channel(channel).
		Message(message).
		Execute()
	if err != nil {
		return fmt.Errorf("pubnub publish %s: %w", channel, err)
	}
	return nil
}

// SlotChannel is the realtime channel of one slot.
func SlotChannel(slotID string) string {
	return "slot-" + slotID
}

// SlotNotifier pushes terminal sale events to the slot's realtime channel.
// Bid-by-bid traffic is left to the AMQP relay.
type SlotNotifier struct {
	publisher Publisher
	breaker   *utils.CircuitBreaker
}

func NewSlotNotifier(publisher Publisher) *SlotNotifier {
	return &SlotNotifier{
		publisher: publisher,
		breaker:   utils.NewCircuitBreaker("pubnub", utils.WithMaxRequests(20)),
	}
}

func (n *SlotNotifier) Notify(ctx context.Context, events []models.Event) error {
	var errs []error
	for _, ev := range events {
		if !ev.Kind.Terminal() {
			continue
		}
		channel := SlotChannel(ev.SlotID)
		err := n.breaker.Execute(ctx, func(context.Context) error {
			return n.publisher.Publish(channel, slotMessage(ev))
		})
		if err != nil {
			slog.Warn("slot notification dropped", "channel", channel, "kind", ev.Kind, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func slotMessage(ev models.Event) map[string]any {
	msg := map[string]any{
		"type":    string(ev.Kind),
		"slot_id": ev.SlotID,
		"at":      ev.At,
	}
	if ev.EscrowID != "" {
		msg["escrow_id"] = ev.EscrowID
	}
	if ev.Amount > 0 {
		msg["amount"] = ev.Amount
		msg["currency"] = ev.Currency
	}
	if ev.Slot != nil {
		msg["state"] = string(ev.Slot.State)
		msg["capacity_sold"] = ev.Slot.CapacitySold
		msg["capacity_total"] = ev.Slot.CapacityTotal
		if !ev.Slot.Winner.IsZero() {
			msg["winner"] = ev.Slot.Winner.String()
		}
	}
	if ev.Ticket != nil {
		msg["ticket"] = ev.Ticket.Address.String()
		msg["owner"] = ev.Ticket.Owner.String()
	}
	return msg
}
