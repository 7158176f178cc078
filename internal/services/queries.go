package services

import (
	"context"

	"slot-settlement/internal/services/vault"
	"slot-settlement/models"

	"github.com/gagliardetto/solana-go"
)

// Read projections. None of them writes.

func (e *Engine) GetPlatform(ctx context.Context) (*models.Platform, error) {
	var p *models.Platform
	err := e.read(ctx, func(c *call) (err error) {
		p, err = c.platform()
		return err
	})
	return p, err
}

func (e *Engine) GetCreator(ctx context.Context, authority solana.PublicKey) (*models.CreatorProfile, error) {
	var cp *models.CreatorProfile
	err := e.read(ctx, func(c *call) (err error) {
		cp, err = c.creator(authority)
		return err
	})
	return cp, err
}

func (e *Engine) GetSlot(ctx context.Context, slotID string) (*models.TimeSlot, error) {
	var s *models.TimeSlot
	err := e.read(ctx, func(c *call) (err error) {
		s, err = c.slot(slotID)
		return err
	})
	return s, err
}

func (e *Engine) GetEscrow(ctx context.Context, escrowID string) (*models.Escrow, error) {
	var es *models.Escrow
	err := e.read(ctx, func(c *call) (err error) {
		es, err = c.escrow(escrowID)
		return err
	})
	return es, err
}

// ListEscrows returns every escrow ever created for the slot, oldest first.
// The walk is bounded by the slot's escrow sequence.
func (e *Engine) ListEscrows(ctx context.Context, slotID string) ([]*models.Escrow, error) {
	var out []*models.Escrow
	err := e.read(ctx, func(c *call) error {
		slot, err := c.slot(slotID)
		if err != nil {
			return err
		}
		for seq := uint64(1); seq <= slot.EscrowSeq; seq++ {
			es, err := c.escrow(models.EscrowID(slot.ID, seq))
			if err != nil {
				return err
			}
			out = append(out, es)
		}
		return nil
	})
	return out, err
}

func (e *Engine) GetBidBook(ctx context.Context, slotID string) (*models.BidBook, error) {
	var b *models.BidBook
	err := e.read(ctx, func(c *call) (err error) {
		b, err = c.bidBook(slotID)
		return err
	})
	return b, err
}

func (e *Engine) GetRefundQueue(ctx context.Context, slotID string) (*models.RefundQueue, error) {
	var q *models.RefundQueue
	err := e.read(ctx, func(c *call) (err error) {
		q, err = c.refundQueue(slotID)
		return err
	})
	return q, err
}

func (e *Engine) GetAutoBids(ctx context.Context, slotID string) (*models.AutoBidStore, error) {
	var s *models.AutoBidStore
	err := e.read(ctx, func(c *call) (err error) {
		s, err = c.autoBids(slotID)
		return err
	})
	return s, err
}

func (e *Engine) GetCommits(ctx context.Context, slotID string) (*models.CommitStore, error) {
	var s *models.CommitStore
	err := e.read(ctx, func(c *call) (err error) {
		s, err = c.commits(slotID)
		return err
	})
	return s, err
}

func (e *Engine) GetTicket(ctx context.Context, address solana.PublicKey) (*models.Ticket, error) {
	var t *models.Ticket
	err := e.read(ctx, func(c *call) (err error) {
		t, err = c.ticket(address)
		return err
	})
	return t, err
}

// GetBalance reads an account balance. Escrow and auction vaults are
// accounts too, addressed by their derived keys.
func (e *Engine) GetBalance(ctx context.Context, den models.Denomination, owner solana.PublicKey) (uint64, error) {
	v, err := vault.New(den)
	if err != nil {
		return 0, err
	}
	var bal uint64
	err = e.read(ctx, func(c *call) (err error) {
		bal, err = v.Balance(c.tx, owner)
		return err
	})
	return bal, err
}
