package services

import (
	"context"

	"slot-settlement/internal/services/vault"
	"slot-settlement/internal/status"
	"slot-settlement/models"
	"slot-settlement/utils"

	"github.com/gagliardetto/solana-go"
)

type SetFrozenInput struct {
	Signer solana.PublicKey `json:"-"`
	SlotID string           `json:"slot_id"`
	Frozen bool             `json:"frozen"`
}

// SetFrozen toggles the freeze gate on a slot. Admin only.
func (e *Engine) SetFrozen(ctx context.Context, in SetFrozenInput) (*models.TimeSlot, error) {
	var slot *models.TimeSlot
	err := e.execute(ctx, "set_frozen", in.SlotID, func(c *call) error {
		p, err := c.platform()
		if err != nil {
			return err
		}
		if !p.IsAdmin(in.Signer) {
			return status.ErrUnauthorizedCaller
		}
		if slot, err = c.slot(in.SlotID); err != nil {
			return err
		}
		if slot.Frozen == in.Frozen {
			return nil
		}
		slot.Frozen = in.Frozen
		if err := c.putSlot(slot); err != nil {
			return err
		}
		kind := models.EventSlotUnfrozen
		if in.Frozen {
			kind = models.EventSlotFrozen
		}
		c.emit(models.Event{Kind: kind, SlotID: slot.ID, Actor: in.Signer.String(), Slot: snapshot(slot)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return slot, nil
}

func (e *Engine) CloseSlot(ctx context.Context, in SlotInput) (*models.TimeSlot, error) {
	return e.closeSlot(ctx, "close_slot", in, models.CurrencyToken)
}

func (e *Engine) CloseSlotNative(ctx context.Context, in SlotInput) (*models.TimeSlot, error) {
	return e.closeSlot(ctx, "close_slot_sol", in, models.CurrencyNative)
}

// closeSlot refunds every escrow still in T0 and an unsettled English
// leader in full, then closes the slot whatever its mode or progress.
// Closing a closed slot succeeds without effect. Queued refunds and sealed
// deposits stay claimable.
func (e *Engine) closeSlot(ctx context.Context, instruction string, in SlotInput, kind models.CurrencyKind) (*models.TimeSlot, error) {
	var slot *models.TimeSlot
	err := e.execute(ctx, instruction, in.SlotID, func(c *call) error {
		p, err := c.platform()
		if err != nil {
			return err
		}
		if slot, err = c.slot(in.SlotID); err != nil {
			return err
		}
		if !slot.CanManage(in.Signer, p) {
			return status.ErrUnauthorizedCaller
		}
		v, err := requireCurrency(slot, kind)
		if err != nil {
			return err
		}
		if slot.State == models.SlotClosed {
			return nil
		}

		var refunded uint64
		for _, id := range slot.ActiveEscrows {
			escrow, err := c.escrow(id)
			if err != nil {
				return err
			}
			if escrow.Phase != models.PhaseFunded {
				continue
			}
			if err := v.Transfer(c.tx, escrow.Vault, escrow.Buyer, escrow.Amount); err != nil {
				return err
			}
			escrow.Phase = models.PhaseRefunded
			slot.Release()
			refunded = utils.SatAddU64(refunded, escrow.Amount)
			if err := c.putEscrow(escrow); err != nil {
				return err
			}
			c.emit(models.Event{
				Kind:     models.EventCancelled,
				SlotID:   slot.ID,
				EscrowID: escrow.ID,
				Actor:    in.Signer.String(),
				Amount:   escrow.Amount,
				Currency: slot.Currency.Key(),
			})
		}
		slot.ActiveEscrows = []string{}

		switch slot.Mode {
		case models.ModeStable, models.ModeSealedBid:
		case models.ModeEnglishAuction:
			book, err := c.bidBook(slot.ID)
			if err != nil {
				return err
			}
			if book.HasLeader() && !slot.Settled {
				if err := v.Transfer(c.tx, vault.AuctionAddress(slot.ID), book.HighestBidder, book.HighestBid); err != nil {
					return err
				}
				refunded = utils.SatAddU64(refunded, book.HighestBid)
				book.ClearLeader()
				if err := c.putBidBook(book); err != nil {
					return err
				}
			}
		default:
			return status.ErrUnknownMode
		}

		slot.State = models.SlotClosed
		if err := c.putSlot(slot); err != nil {
			return err
		}
		c.emit(models.Event{
			Kind:     models.EventSlotClosed,
			SlotID:   slot.ID,
			Actor:    in.Signer.String(),
			Amount:   refunded,
			Currency: slot.Currency.Key(),
			Slot:     snapshot(slot),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return slot, nil
}
