package notify

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"slot-settlement/models"

	"github.com/pocketbase/pocketbase/core"
)

const (
	SlotProjections   = "slot_projections"
	TicketProjections = "ticket_projections"
)

// RecordStore is the part of core.App the projection writer needs.
type RecordStore interface {
	FindCollectionByNameOrId(nameOrId string) (*core.Collection, error)
	FindFirstRecordByData(collectionModelOrIdentifier any, key string, value any) (*core.Record, error)
	Save(model core.Model) error
}

// ProjectionWriter mirrors slot and ticket snapshots into pocketbase
// collections for the read API. The ledger stays the source of truth; a
// lost projection is rebuilt by the next event carrying the same slot.
type ProjectionWriter struct {
	store RecordStore
}

func NewProjectionWriter(store RecordStore) *ProjectionWriter {
	return &ProjectionWriter{store: store}
}

func (w *ProjectionWriter) Notify(ctx context.Context, events []models.Event) error {
	var errs []error
	for _, ev := range events {
		if ev.Slot != nil {
			if err := w.saveSlot(ev); err != nil {
				errs = append(errs, err)
			}
		}
		if ev.Ticket != nil {
			if err := w.saveTicket(ev.Ticket); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (w *ProjectionWriter) upsert(collection, key string, value any) (*core.Record, error) {
	record, err := w.store.FindFirstRecordByData(collection, key, value)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find %s %v: %w", collection, value, err)
	}
	c, err := w.store.FindCollectionByNameOrId(collection)
	if err != nil {
		return nil, fmt.Errorf("collection %s: %w", collection, err)
	}
	return core.NewRecord(c), nil
}

func (w *ProjectionWriter) saveSlot(ev models.Event) error {
	s := ev.Slot
	record, err := w.upsert(SlotProjections, "slot_id", s.ID)
	if err != nil {
		return err
	}

	record.Set("slot_id", s.ID)
	record.Set("creator", s.Creator.String())
	record.Set("mode", string(s.Mode))
	record.Set("state", string(s.State))
	record.Set("currency", s.Currency.Key())
	record.Set("price", s.Currency.Display(s.Price).String())
	record.Set("buy_now_price", s.Currency.Display(s.BuyNowPrice).String())
	record.Set("capacity_total", s.CapacityTotal)
	record.Set("capacity_sold", s.CapacitySold)
	record.Set("frozen", s.Frozen)
	record.Set("start_ts", s.StartTs)
	record.Set("end_ts", s.EndTs)
	record.Set("auction_end_ts", s.AuctionEndTs)
	record.Set("settled", s.Settled)
	record.Set("last_event", string(ev.Kind))
	record.Set("last_event_at", ev.At)
	if !s.Winner.IsZero() {
		record.Set("winner", s.Winner.String())
		record.Set("winning_bid", s.Currency.Display(s.WinningBid).String())
	}

	if err := w.store.Save(record); err != nil {
		return fmt.Errorf("save slot projection %s: %w", s.ID, err)
	}
	return nil
}

func (w *ProjectionWriter) saveTicket(t *models.Ticket) error {
	address := t.Address.String()
	record, err := w.upsert(TicketProjections, "address", address)
	if err != nil {
		return err
	}

	record.Set("address", address)
	record.Set("slot_id", t.SlotID)
	record.Set("escrow_id", t.EscrowID)
	record.Set("owner", t.Owner.String())
	record.Set("issued_at", t.IssuedAt)
	record.Set("checked_in", t.CheckedIn)

	if err := w.store.Save(record); err != nil {
		return fmt.Errorf("save ticket projection %s: %w", address, err)
	}
	return nil
}
