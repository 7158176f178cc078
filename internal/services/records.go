package services

import (
	"errors"

	"slot-settlement/internal/ledger"
	"slot-settlement/internal/services/vault"
	"slot-settlement/internal/status"
	"slot-settlement/models"

	"github.com/gagliardetto/solana-go"
)

// load reads a record and maps a missing key to notFound.
func load[T any](c *call, key string, notFound error) (*T, error) {
	v, err := ledger.Load[T](c.tx, key)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, notFound
	}
	return v, err
}

func (c *call) platform() (*models.Platform, error) {
	return load[models.Platform](c, ledger.PlatformKey, status.ErrPlatformNotInitialized)
}

func (c *call) creator(authority solana.PublicKey) (*models.CreatorProfile, error) {
	return load[models.CreatorProfile](c, ledger.CreatorKey(authority), status.ErrCreatorNotFound)
}

func (c *call) slot(id string) (*models.TimeSlot, error) {
	return load[models.TimeSlot](c, ledger.SlotKey(id), status.ErrSlotNotFound)
}

func (c *call) putSlot(s *models.TimeSlot) error {
	return c.tx.Put(ledger.SlotKey(s.ID), s)
}

func (c *call) escrow(id string) (*models.Escrow, error) {
	return load[models.Escrow](c, ledger.EscrowKey(id), status.ErrEscrowNotFound)
}

func (c *call) putEscrow(e *models.Escrow) error {
	return c.tx.Put(ledger.EscrowKey(e.ID), e)
}

func (c *call) bidBook(slotID string) (*models.BidBook, error) {
	return load[models.BidBook](c, ledger.BidBookKey(slotID), status.ErrStoreNotInitialized)
}

func (c *call) putBidBook(b *models.BidBook) error {
	return c.tx.Put(ledger.BidBookKey(b.SlotID), b)
}

func (c *call) refundQueue(slotID string) (*models.RefundQueue, error) {
	return load[models.RefundQueue](c, ledger.RefundQueueKey(slotID), status.ErrStoreNotInitialized)
}

func (c *call) putRefundQueue(q *models.RefundQueue) error {
	return c.tx.Put(ledger.RefundQueueKey(q.SlotID), q)
}

func (c *call) autoBids(slotID string) (*models.AutoBidStore, error) {
	return load[models.AutoBidStore](c, ledger.AutoBidStoreKey(slotID), status.ErrStoreNotInitialized)
}

func (c *call) putAutoBids(s *models.AutoBidStore) error {
	return c.tx.Put(ledger.AutoBidStoreKey(s.SlotID), s)
}

func (c *call) commits(slotID string) (*models.CommitStore, error) {
	return load[models.CommitStore](c, ledger.CommitStoreKey(slotID), status.ErrStoreNotInitialized)
}

func (c *call) putCommits(s *models.CommitStore) error {
	return c.tx.Put(ledger.CommitStoreKey(s.SlotID), s)
}

func (c *call) ticket(address solana.PublicKey) (*models.Ticket, error) {
	return load[models.Ticket](c, ledger.TicketKey(address), status.ErrTicketNotFound)
}

func (c *call) putTicket(t *models.Ticket) error {
	return c.tx.Put(ledger.TicketKey(t.Address), t)
}

// requireCurrency checks that an instruction variant matches the slot's
// denomination and returns the vault for it.
func requireCurrency(s *models.TimeSlot, kind models.CurrencyKind) (vault.Vault, error) {
	if s.Currency.Kind != kind {
		return nil, status.ErrDenominationMismatch
	}
	return vault.New(s.Currency)
}

// openForSale rejects instructions against a slot that is frozen or no
// longer open. Frozen is always checked first.
func openForSale(s *models.TimeSlot) error {
	if s.Frozen {
		return status.ErrFrozen
	}
	switch s.State {
	case models.SlotOpen:
		return nil
	case models.SlotClosed:
		return status.ErrSlotClosed
	default:
		return status.ErrSlotNotOpen
	}
}

func snapshot(s *models.TimeSlot) *models.TimeSlot {
	cp := *s
	cp.ActiveEscrows = append([]string(nil), s.ActiveEscrows...)
	return &cp
}
