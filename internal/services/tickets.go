package services

import (
	"context"
	"errors"

	"slot-settlement/internal/services/vault"
	"slot-settlement/internal/status"
	"slot-settlement/models"

	"github.com/gagliardetto/solana-go"
)

// issueTicket mints the slot's credential for a settled escrow, signed by
// the authority derived from the slot.
func issueTicket(c *call, slot *models.TimeSlot, escrow *models.Escrow) (*models.Ticket, error) {
	return mintTicket(c, slot, escrow, vault.TicketAuthority(slot.ID))
}

func mintTicket(c *call, slot *models.TimeSlot, escrow *models.Escrow, authority solana.PublicKey) (*models.Ticket, error) {
	if !authority.Equals(vault.TicketAuthority(slot.ID)) {
		return nil, status.ErrInvalidMintAuthority
	}
	if escrow.Buyer.IsZero() {
		return nil, status.ErrNoWinner
	}

	address := vault.TicketAddress(slot.ID, escrow.ID)
	_, err := c.ticket(address)
	if err == nil {
		return nil, status.ErrTicketAlreadyIssued
	}
	if !errors.Is(err, status.ErrTicketNotFound) {
		return nil, err
	}

	t := &models.Ticket{
		Address:       address,
		SlotID:        slot.ID,
		EscrowID:      escrow.ID,
		Owner:         escrow.Buyer,
		MintAuthority: authority,
		IssuedAt:      c.now,
	}
	if err := c.putTicket(t); err != nil {
		return nil, err
	}
	c.emit(models.Event{
		Kind:     models.EventTicketIssued,
		SlotID:   slot.ID,
		EscrowID: escrow.ID,
		Actor:    escrow.Buyer.String(),
		Ticket:   t,
	})
	return t, nil
}

type CheckInInput struct {
	Signer solana.PublicKey `json:"-"`
	Ticket solana.PublicKey `json:"ticket"`
}

// CheckIn marks a ticket used and releases the escrow's withheld amount to
// the creator. It is shared by every sale mode. Creator or admin.
func (e *Engine) CheckIn(ctx context.Context, in CheckInInput) (*models.Ticket, error) {
	var ticket *models.Ticket
	err := e.execute(ctx, "check_in", "", func(c *call) error {
		p, err := c.platform()
		if err != nil {
			return err
		}
		if ticket, err = c.ticket(in.Ticket); err != nil {
			return err
		}
		slot, err := c.slot(ticket.SlotID)
		if err != nil {
			return err
		}
		if slot.Frozen {
			return status.ErrFrozen
		}
		if !slot.CanManage(in.Signer, p) {
			return status.ErrUnauthorizedCaller
		}
		switch slot.Mode {
		case models.ModeStable, models.ModeEnglishAuction, models.ModeSealedBid:
		default:
			return status.ErrUnknownMode
		}
		if ticket.CheckedIn {
			return status.ErrAlreadyCheckedIn
		}

		escrow, err := c.escrow(ticket.EscrowID)
		if err != nil {
			return err
		}
		if escrow.Phase == models.PhaseHeld {
			if err := releaseHold(c, p, slot, escrow); err != nil {
				return err
			}
		}

		ticket.CheckedIn = true
		ticket.CheckedInAt = c.now
		if err := c.putTicket(ticket); err != nil {
			return err
		}
		c.emit(models.Event{
			Kind:     models.EventCheckedIn,
			SlotID:   slot.ID,
			EscrowID: escrow.ID,
			Actor:    in.Signer.String(),
			Ticket:   ticket,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

// ReleaseHold pays a T1 escrow's withheld amount to the creator once the
// dispute window has passed. Anyone may call it.
func (e *Engine) ReleaseHold(ctx context.Context, in EscrowInput) (*models.Escrow, error) {
	var escrow *models.Escrow
	err := e.execute(ctx, "release_hold", "", func(c *call) error {
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
		if escrow.Phase != models.PhaseHeld || c.now < escrow.HoldReleaseAt {
			return status.ErrHoldNotReleasable
		}
		return releaseHold(c, p, slot, escrow)
	})
	if err != nil {
		return nil, err
	}
	return escrow, nil
}

func releaseHold(c *call, p *models.Platform, slot *models.TimeSlot, escrow *models.Escrow) error {
	v, err := vault.New(slot.Currency)
	if err != nil {
		return err
	}
	if err := v.Transfer(c.tx, p.DisputeVault, slot.Creator, escrow.Held); err != nil {
		return err
	}
	escrow.Phase = models.PhaseReleased
	if err := c.putEscrow(escrow); err != nil {
		return err
	}
	c.emit(models.Event{
		Kind:     models.EventHoldReleased,
		SlotID:   slot.ID,
		EscrowID: escrow.ID,
		Amount:   escrow.Held,
		Currency: slot.Currency.Key(),
	})
	return nil
}
