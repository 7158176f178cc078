package services

import (
	"context"

	"slot-settlement/internal/fees"
	"slot-settlement/internal/services/vault"
	"slot-settlement/internal/status"
	"slot-settlement/models"

	"github.com/gagliardetto/solana-go"
)

type ReserveInput struct {
	Signer solana.PublicKey `json:"-"`
	SlotID string           `json:"slot_id"`
}

type EscrowInput struct {
	Signer   solana.PublicKey `json:"-"`
	EscrowID string           `json:"escrow_id"`
}

func (e *Engine) StableReserve(ctx context.Context, in ReserveInput) (*models.Escrow, error) {
	return e.stableReserve(ctx, "stable_reserve", in, models.CurrencyToken)
}

func (e *Engine) StableReserveNative(ctx context.Context, in ReserveInput) (*models.Escrow, error) {
	return e.stableReserve(ctx, "stable_reserve_native", in, models.CurrencyNative)
}

func (e *Engine) StableCancel(ctx context.Context, in EscrowInput) (*models.Escrow, error) {
	return e.stableCancel(ctx, "stable_cancel", in, models.CurrencyToken)
}

func (e *Engine) StableCancelNative(ctx context.Context, in EscrowInput) (*models.Escrow, error) {
	return e.stableCancel(ctx, "stable_cancel_native", in, models.CurrencyNative)
}

func (e *Engine) StableSettle(ctx context.Context, in EscrowInput) (*models.Escrow, error) {
	return e.stableSettle(ctx, "stable_settle", in, models.CurrencyToken)
}

func (e *Engine) StableSettleNative(ctx context.Context, in EscrowInput) (*models.Escrow, error) {
	return e.stableSettle(ctx, "stable_settle_native", in, models.CurrencyNative)
}

func requireStable(s *models.TimeSlot) error {
	switch s.Mode {
	case models.ModeStable:
		return nil
	case models.ModeEnglishAuction, models.ModeSealedBid:
		return status.ErrModeMismatch
	default:
		return status.ErrUnknownMode
	}
}

// stableReserve moves the price from the buyer into a fresh escrow vault
// and takes one unit of capacity.
func (e *Engine) stableReserve(ctx context.Context, instruction string, in ReserveInput, kind models.CurrencyKind) (*models.Escrow, error) {
	var escrow *models.Escrow
	err := e.execute(ctx, instruction, in.SlotID, func(c *call) error {
		slot, err := c.slot(in.SlotID)
		if err != nil {
			return err
		}
		if err := openForSale(slot); err != nil {
			return err
		}
		if err := requireStable(slot); err != nil {
			return err
		}
		if c.now >= slot.StartTs {
			return status.ErrSlotNotOpen
		}
		v, err := requireCurrency(slot, kind)
		if err != nil {
			return err
		}
		if err := slot.Reserve(); err != nil {
			return err
		}

		id := slot.NextEscrowID()
		escrow = &models.Escrow{
			ID:        id,
			SlotID:    slot.ID,
			Vault:     vault.EscrowAddress(slot.ID, id),
			Amount:    slot.Price,
			Phase:     models.PhaseFunded,
			CreatedAt: c.now,
		}
		if err := escrow.BindBuyer(in.Signer); err != nil {
			return err
		}
		if err := v.Transfer(c.tx, in.Signer, escrow.Vault, slot.Price); err != nil {
			return err
		}
		if err := slot.AddActiveEscrow(id); err != nil {
			return err
		}
		if err := c.putEscrow(escrow); err != nil {
			return err
		}
		if err := c.putSlot(slot); err != nil {
			return err
		}
		c.emit(models.Event{
			Kind:     models.EventReserved,
			SlotID:   slot.ID,
			EscrowID: id,
			Actor:    in.Signer.String(),
			Amount:   slot.Price,
			Currency: slot.Currency.Key(),
			Slot:     snapshot(slot),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return escrow, nil
}

// stableCancel refunds a T0 escrow in full. Cancelling an escrow that was
// already refunded succeeds without moving funds.
func (e *Engine) stableCancel(ctx context.Context, instruction string, in EscrowInput, kind models.CurrencyKind) (*models.Escrow, error) {
	var escrow *models.Escrow
	err := e.execute(ctx, instruction, "", func(c *call) error {
		p, err := c.platform()
		if err != nil {
			return err
		}
		if escrow, err = c.escrow(in.EscrowID); err != nil {
			return err
		}
		slot, err := c.slot(escrow.SlotID)
		if err != nil {
			return err
		}
		if slot.Frozen {
			return status.ErrFrozen
		}
		if !escrow.Buyer.Equals(in.Signer) && !p.IsAdmin(in.Signer) {
			return status.ErrUnauthorizedCaller
		}
		if err := requireStable(slot); err != nil {
			return err
		}
		v, err := requireCurrency(slot, kind)
		if err != nil {
			return err
		}

		switch escrow.Phase {
		case models.PhaseRefunded:
			return nil
		case models.PhaseFunded:
		default:
			return status.ErrAlreadySettled
		}

		if err := v.Transfer(c.tx, escrow.Vault, escrow.Buyer, escrow.Amount); err != nil {
			return err
		}
		escrow.Phase = models.PhaseRefunded
		slot.Release()
		slot.RemoveActiveEscrow(escrow.ID)

		if err := c.putEscrow(escrow); err != nil {
			return err
		}
		if err := c.putSlot(slot); err != nil {
			return err
		}
		c.emit(models.Event{
			Kind:     models.EventCancelled,
			SlotID:   slot.ID,
			EscrowID: escrow.ID,
			Actor:    in.Signer.String(),
			Amount:   escrow.Amount,
			Currency: slot.Currency.Key(),
			Slot:     snapshot(slot),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return escrow, nil
}

// stableSettle splits a T0 escrow between the fee vault, the dispute-hold
// vault and the creator, moves it to T1 and issues the ticket.
func (e *Engine) stableSettle(ctx context.Context, instruction string, in EscrowInput, kind models.CurrencyKind) (*models.Escrow, error) {
	var escrow *models.Escrow
	err := e.execute(ctx, instruction, "", func(c *call) error {
		p, err := c.platform()
		if err != nil {
			return err
		}
		if escrow, err = c.escrow(in.EscrowID); err != nil {
			return err
		}
		slot, err := c.slot(escrow.SlotID)
		if err != nil {
			return err
		}
		if slot.Frozen {
			return status.ErrFrozen
		}
		if !slot.CanManage(in.Signer, p) {
			return status.ErrUnauthorizedCaller
		}
		if err := requireStable(slot); err != nil {
			return err
		}
		v, err := requireCurrency(slot, kind)
		if err != nil {
			return err
		}
		switch escrow.Phase {
		case models.PhaseFunded:
		case models.PhaseRefunded:
			return status.ErrEscrowNotFunded
		default:
			return status.ErrAlreadySettled
		}

		creator, err := c.creator(slot.Creator)
		if err != nil {
			return err
		}
		split := fees.SplitProceeds(escrow.Amount, fees.EffectiveFeeBps(p, creator), p.DisputeHoldBps)
		if err := payOut(c, v, p, slot, escrow.Vault, split); err != nil {
			return err
		}

		escrow.Fee, escrow.Held, escrow.SellerPayout = split.Fee, split.Held, split.SellerPayout
		escrow.Phase = models.PhaseHeld
		escrow.SettledAt = c.now
		escrow.HoldReleaseAt = c.now + p.DisputeWindowSecs
		slot.RemoveActiveEscrow(escrow.ID)
		if slot.Remaining() == 0 && len(slot.ActiveEscrows) == 0 {
			slot.State = models.SlotLocked
		}

		ticket, err := issueTicket(c, slot, escrow)
		if err != nil {
			return err
		}
		if err := c.putEscrow(escrow); err != nil {
			return err
		}
		if err := c.putSlot(slot); err != nil {
			return err
		}
		c.emit(models.Event{
			Kind:     models.EventSettled,
			SlotID:   slot.ID,
			EscrowID: escrow.ID,
			Actor:    in.Signer.String(),
			Amount:   escrow.Amount,
			Currency: slot.Currency.Key(),
			Slot:     snapshot(slot),
			Ticket:   ticket,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return escrow, nil
}

// payOut routes a split out of a custody account: fee to the fee vault,
// withheld amount to the dispute-hold vault, the rest to the creator.
func payOut(c *call, v vault.Vault, p *models.Platform, slot *models.TimeSlot, from solana.PublicKey, split fees.Split) error {
	if err := v.Transfer(c.tx, from, p.FeeVault, split.Fee); err != nil {
		return err
	}
	if err := v.Transfer(c.tx, from, p.DisputeVault, split.Held); err != nil {
		return err
	}
	return v.Transfer(c.tx, from, slot.Creator, split.SellerPayout)
}
