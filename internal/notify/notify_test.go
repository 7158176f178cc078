package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"slot-settlement/models"

	"github.com/gagliardetto/solana-go"
	"github.com/pocketbase/pocketbase/core"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	channel string
	message map[string]any
}

type fakePublisher struct {
	sent []published
	err  error
}

func (p *fakePublisher) Publish(channel string, message any) error {
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, published{channel: channel, message: message.(map[string]any)})
	return nil
}

func settledSlot() *models.TimeSlot {
	return &models.TimeSlot{
		ID:            "slot-1",
		Creator:       solana.NewWallet().PublicKey(),
		Mode:          models.ModeEnglishAuction,
		Currency:      models.NativeDenomination(),
		Price:         1_000_000_000,
		CapacityTotal: 1,
		CapacitySold:  1,
		State:         models.SlotLocked,
		Winner:        solana.NewWallet().PublicKey(),
		WinningBid:    2_500_000_000,
		Settled:       true,
	}
}

func TestSlotNotifier_PublishesTerminalEventsOnly(t *testing.T) {
	pub := &fakePublisher{}
	n := NewSlotNotifier(pub)
	slot := settledSlot()

	err := n.Notify(context.Background(), []models.Event{
		{Kind: models.EventBidPlaced, SlotID: slot.ID, Amount: 10},
		{Kind: models.EventRefundQueued, SlotID: slot.ID, Amount: 5},
		{Kind: models.EventAuctionEnded, SlotID: slot.ID, EscrowID: "slot-1-1", Amount: 2_500_000_000, Currency: "native", At: 42, Slot: slot},
	})
	require.NoError(t, err)

	require.Len(t, pub.sent, 1)
	assert.Equal(t, "slot-slot-1", pub.sent[0].channel)
	msg := pub.sent[0].message
	assert.Equal(t, "auction.ended", msg["type"])
	assert.Equal(t, "slot-1-1", msg["escrow_id"])
	assert.Equal(t, uint64(2_500_000_000), msg["amount"])
	assert.Equal(t, "locked", msg["state"])
	assert.Equal(t, slot.Winner.String(), msg["winner"])
	assert.Equal(t, int64(42), msg["at"])
}

func TestSlotNotifier_ReportsPublishFailure(t *testing.T) {
	pub := &fakePublisher{err: errors.New("pubnub unreachable")}
	n := NewSlotNotifier(pub)

	err := n.Notify(context.Background(), []models.Event{{Kind: models.EventSlotClosed, SlotID: "slot-2"}})
	assert.ErrorContains(t, err, "pubnub unreachable")
}

type fakeChannel struct {
	msgs   []amqp.Publishing
	keys   []string
	err    error
	closed bool
}

func (c *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if c.err != nil {
		return c.err
	}
	c.keys = append(c.keys, exchange+"/"+key)
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

func TestRelay_PublishesEveryEvent(t *testing.T) {
	ch := &fakeChannel{}
	r := newRelay(ch, DefaultEventQueue)

	events := []models.Event{
		{Kind: models.EventBidPlaced, SlotID: "slot-1", Actor: "bidder", Amount: 20, At: 100},
		{Kind: models.EventRefundQueued, SlotID: "slot-1", Actor: "other", Amount: 10, At: 100},
	}
	require.NoError(t, r.Notify(context.Background(), events))

	require.Len(t, ch.msgs, 2)
	assert.Equal(t, []string{"/slot.events", "/slot.events"}, ch.keys)
	assert.Equal(t, "bid.placed", ch.msgs[0].Type)
	assert.Equal(t, amqp.Persistent, ch.msgs[0].DeliveryMode)
	assert.Equal(t, "application/json", ch.msgs[0].ContentType)

	var decoded models.Event
	require.NoError(t, json.Unmarshal(ch.msgs[1].Body, &decoded))
	assert.Equal(t, events[1], decoded)

	require.NoError(t, r.Close())
	assert.True(t, ch.closed)
}

func TestRelay_PublishFailure(t *testing.T) {
	ch := &fakeChannel{err: errors.New("channel closed")}
	r := newRelay(ch, DefaultEventQueue)

	err := r.Notify(context.Background(), []models.Event{{Kind: models.EventSettled, SlotID: "slot-1"}})
	assert.ErrorContains(t, err, "channel closed")
}

type fakeRecords struct {
	collections map[string]*core.Collection
	saved       []*core.Record
}

func newFakeRecords() *fakeRecords {
	slots := core.NewBaseCollection(SlotProjections)
	slots.Fields.Add(
		&core.TextField{Name: "slot_id"},
		&core.TextField{Name: "creator"},
		&core.TextField{Name: "mode"},
		&core.TextField{Name: "state"},
		&core.TextField{Name: "currency"},
		&core.TextField{Name: "price"},
		&core.TextField{Name: "buy_now_price"},
		&core.NumberField{Name: "capacity_total"},
		&core.NumberField{Name: "capacity_sold"},
		&core.BoolField{Name: "frozen"},
		&core.NumberField{Name: "start_ts"},
		&core.NumberField{Name: "end_ts"},
		&core.NumberField{Name: "auction_end_ts"},
		&core.TextField{Name: "winner"},
		&core.TextField{Name: "winning_bid"},
		&core.BoolField{Name: "settled"},
		&core.TextField{Name: "last_event"},
		&core.NumberField{Name: "last_event_at"},
	)
	tickets := core.NewBaseCollection(TicketProjections)
	tickets.Fields.Add(
		&core.TextField{Name: "address"},
		&core.TextField{Name: "slot_id"},
		&core.TextField{Name: "escrow_id"},
		&core.TextField{Name: "owner"},
		&core.NumberField{Name: "issued_at"},
		&core.BoolField{Name: "checked_in"},
	)
	return &fakeRecords{collections: map[string]*core.Collection{
		SlotProjections:   slots,
		TicketProjections: tickets,
	}}
}

func (f *fakeRecords) FindCollectionByNameOrId(name string) (*core.Collection, error) {
	c, ok := f.collections[name]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return c, nil
}

func (f *fakeRecords) FindFirstRecordByData(collection any, key string, value any) (*core.Record, error) {
	for _, r := range f.saved {
		if r.Collection().Name == collection && r.GetString(key) == fmt.Sprint(value) {
			return r, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeRecords) Save(model core.Model) error {
	r := model.(*core.Record)
	for _, existing := range f.saved {
		if existing == r {
			return nil
		}
	}
	f.saved = append(f.saved, r)
	return nil
}

func TestProjectionWriter_UpsertsSlot(t *testing.T) {
	store := newFakeRecords()
	w := NewProjectionWriter(store)
	slot := settledSlot()
	slot.State = models.SlotOpen
	slot.Winner = solana.PublicKey{}
	slot.Settled = false
	slot.CapacitySold = 0

	require.NoError(t, w.Notify(context.Background(), []models.Event{
		{Kind: models.EventSlotCreated, SlotID: slot.ID, At: 10, Slot: slot},
	}))
	require.Len(t, store.saved, 1)
	r := store.saved[0]
	assert.Equal(t, "open", r.GetString("state"))
	assert.Equal(t, "1", r.GetString("price"))
	assert.Empty(t, r.GetString("winner"))

	won := settledSlot()
	won.ID = slot.ID
	require.NoError(t, w.Notify(context.Background(), []models.Event{
		{Kind: models.EventAuctionEnded, SlotID: slot.ID, At: 20, Slot: won},
	}))
	require.Len(t, store.saved, 1)
	assert.Equal(t, "locked", r.GetString("state"))
	assert.Equal(t, won.Winner.String(), r.GetString("winner"))
	assert.Equal(t, "2.5", r.GetString("winning_bid"))
	assert.Equal(t, 1, r.GetInt("capacity_sold"))
	assert.True(t, r.GetBool("settled"))
	assert.Equal(t, "auction.ended", r.GetString("last_event"))
	assert.Equal(t, 20, r.GetInt("last_event_at"))
}

func TestProjectionWriter_Ticket(t *testing.T) {
	store := newFakeRecords()
	w := NewProjectionWriter(store)
	ticket := &models.Ticket{
		Address:  solana.NewWallet().PublicKey(),
		SlotID:   "slot-1",
		EscrowID: "slot-1-1",
		Owner:    solana.NewWallet().PublicKey(),
		IssuedAt: 50,
	}

	require.NoError(t, w.Notify(context.Background(), []models.Event{{Kind: models.EventTicketIssued, SlotID: "slot-1", Ticket: ticket}}))
	checkedIn := *ticket
	checkedIn.CheckedIn = true
	require.NoError(t, w.Notify(context.Background(), []models.Event{{Kind: models.EventCheckedIn, SlotID: "slot-1", Ticket: &checkedIn}}))

	require.Len(t, store.saved, 1)
	r := store.saved[0]
	assert.Equal(t, ticket.Owner.String(), r.GetString("owner"))
	assert.Equal(t, "slot-1-1", r.GetString("escrow_id"))
	assert.True(t, r.GetBool("checked_in"))
}

func TestProjectionWriter_MissingCollection(t *testing.T) {
	store := newFakeRecords()
	delete(store.collections, TicketProjections)
	w := NewProjectionWriter(store)

	err := w.Notify(context.Background(), []models.Event{{
		Kind:   models.EventTicketIssued,
		SlotID: "slot-1",
		Ticket: &models.Ticket{Address: solana.NewWallet().PublicKey()},
	}})
	assert.ErrorContains(t, err, "collection ticket_projections")
}
