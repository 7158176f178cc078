package models

// EventKind names a committed state change. Events are produced inside an
// instruction and delivered only after its writes commit.
type EventKind string

const (
	EventSlotCreated     EventKind = "slot.created"
	EventSlotFrozen      EventKind = "slot.frozen"
	EventSlotUnfrozen    EventKind = "slot.unfrozen"
	EventSlotClosed      EventKind = "slot.closed"
	EventAuctionExtended EventKind = "auction.end_updated"
	EventReserved        EventKind = "escrow.reserved"
	EventCancelled       EventKind = "escrow.cancelled"
	EventSettled         EventKind = "escrow.settled"
	EventHoldReleased    EventKind = "escrow.hold_released"
	EventBidPlaced       EventKind = "bid.placed"
	EventRefundQueued    EventKind = "refund.queued"
	EventRefundPaid      EventKind = "refund.paid"
	EventAuctionEnded    EventKind = "auction.ended"
	EventBuyNow          EventKind = "auction.buy_now"
	EventSealedCommitted EventKind = "sealed.committed"
	EventSealedRevealed  EventKind = "sealed.revealed"
	EventSealedEnded     EventKind = "sealed.ended"
	EventDepositRefunded EventKind = "sealed.deposit_refunded"
	EventTicketIssued    EventKind = "ticket.issued"
	EventCheckedIn       EventKind = "ticket.checked_in"
)

// Terminal reports whether the event marks the end of a sale.
func (k EventKind) Terminal() bool {
	switch k {
	case EventSettled, EventAuctionEnded, EventBuyNow, EventSlotClosed, EventTicketIssued:
		return true
	}
	return false
}

type Event struct {
	Kind     EventKind `json:"kind"`
	SlotID   string    `json:"slot_id"`
	EscrowID string    `json:"escrow_id,omitempty"`
	Actor    string    `json:"actor,omitempty"`
	Amount   uint64    `json:"amount,omitempty"`
	Currency string    `json:"currency,omitempty"`
	At       int64     `json:"at"`

	// Snapshots taken after the mutation, for projection writers.
	Slot   *TimeSlot `json:"slot,omitempty"`
	Ticket *Ticket   `json:"ticket,omitempty"`
}
