package services

import (
	"context"
	"errors"

	"slot-settlement/internal/status"
	"slot-settlement/models"
	"slot-settlement/utils"
)

// DrainRefunds pays queued outbid refunds for a slot, oldest first, until
// the queue is empty or limit payments were made. A limit of zero drains
// everything. Each payment is its own instruction.
func (e *Engine) DrainRefunds(ctx context.Context, slotID string, limit int) (int, uint64, error) {
	var paid int
	var total uint64
	for limit <= 0 || paid < limit {
		entry, err := e.RefundOutbid(ctx, SlotInput{SlotID: slotID})
		if errors.Is(err, status.ErrRefundQueueEmpty) {
			break
		}
		if err != nil {
			return paid, total, err
		}
		paid++
		total = utils.SatAddU64(total, entry.Amount)
	}
	if paid > 0 {
		e.logger.Info("refunds drained", "slot_id", slotID, "paid", paid, "amount", total)
	}
	return paid, total, nil
}

// ReleaseDueHolds releases every held escrow of the slot whose dispute
// window has passed. Escrows that are not due are skipped.
func (e *Engine) ReleaseDueHolds(ctx context.Context, slotID string) (int, error) {
	escrows, err := e.ListEscrows(ctx, slotID)
	if err != nil {
		return 0, err
	}

	now := e.clock.Now().Unix()
	released := 0
	for _, es := range escrows {
		if es.Phase != models.PhaseHeld || now < es.HoldReleaseAt {
			continue
		}
		if _, err := e.ReleaseHold(ctx, EscrowInput{EscrowID: es.ID}); err != nil {
			if errors.Is(err, status.ErrHoldNotReleasable) {
				continue
			}
			return released, err
		}
		released++
	}
	if released > 0 {
		e.logger.Info("dispute holds released", "slot_id", slotID, "count", released)
	}
	return released, nil
}
