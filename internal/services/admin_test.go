package services

import (
	"testing"

	"slot-settlement/internal/services/vault"
	"slot-settlement/internal/status"
	"slot-settlement/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetFrozen_IsIdempotent(t *testing.T) {
	h := newHarness(t)
	slot := h.stableSlot(1, 20)

	_, err := h.engine.SetFrozen(h.ctx, SetFrozenInput{Signer: h.admin, SlotID: slot.ID, Frozen: true})
	require.NoError(t, err)
	h.events.reset()

	got, err := h.engine.SetFrozen(h.ctx, SetFrozenInput{Signer: h.admin, SlotID: slot.ID, Frozen: true})
	require.NoError(t, err)
	assert.True(t, got.Frozen)
	assert.Empty(t, h.events.kinds())

	buyer := h.buyer(20)
	_, err = h.engine.StableReserveNative(h.ctx, ReserveInput{Signer: buyer, SlotID: slot.ID})
	assert.ErrorIs(t, err, status.ErrFrozen)

	_, err = h.engine.SetFrozen(h.ctx, SetFrozenInput{Signer: h.admin, SlotID: slot.ID, Frozen: false})
	require.NoError(t, err)
	assert.Equal(t, []models.EventKind{models.EventSlotUnfrozen}, h.events.kinds())

	_, err = h.engine.StableReserveNative(h.ctx, ReserveInput{Signer: buyer, SlotID: slot.ID})
	require.NoError(t, err)
}

func TestFreeze_BlocksStableFlow(t *testing.T) {
	h := newHarness(t)
	slot := h.stableSlot(2, 20)
	buyer := h.buyer(20)
	escrow, err := h.engine.StableReserveNative(h.ctx, ReserveInput{Signer: buyer, SlotID: slot.ID})
	require.NoError(t, err)

	_, err = h.engine.SetFrozen(h.ctx, SetFrozenInput{Signer: h.admin, SlotID: slot.ID, Frozen: true})
	require.NoError(t, err)

	_, err = h.engine.StableCancelNative(h.ctx, EscrowInput{Signer: buyer, EscrowID: escrow.ID})
	assert.ErrorIs(t, err, status.ErrFrozen)
	_, err = h.engine.StableSettleNative(h.ctx, EscrowInput{Signer: h.creator, EscrowID: escrow.ID})
	assert.ErrorIs(t, err, status.ErrFrozen)
}

func TestCloseSlot_RefundsActiveBuyer(t *testing.T) {
	h := newHarness(t)
	slot := h.stableSlot(3, 20)
	b1, b2 := h.buyer(20), h.buyer(20)

	e1, err := h.engine.StableReserveNative(h.ctx, ReserveInput{Signer: b1, SlotID: slot.ID})
	require.NoError(t, err)
	_, err = h.engine.StableReserveNative(h.ctx, ReserveInput{Signer: b2, SlotID: slot.ID})
	require.NoError(t, err)

	_, err = h.engine.CloseSlotNative(h.ctx, SlotInput{Signer: b1, SlotID: slot.ID})
	assert.ErrorIs(t, err, status.ErrUnauthorizedCaller)
	_, err = h.engine.CloseSlot(h.ctx, SlotInput{Signer: h.creator, SlotID: slot.ID})
	assert.ErrorIs(t, err, status.ErrDenominationMismatch)

	closed, err := h.engine.CloseSlotNative(h.ctx, SlotInput{Signer: h.creator, SlotID: slot.ID})
	require.NoError(t, err)
	assert.Equal(t, models.SlotClosed, closed.State)
	assert.Zero(t, closed.CapacitySold)
	assert.Empty(t, closed.ActiveEscrows)

	assert.Equal(t, uint64(20), h.balance(b1))
	assert.Equal(t, uint64(20), h.balance(b2))
	assert.Zero(t, h.balance(e1.Vault))

	stored, err := h.engine.GetEscrow(h.ctx, e1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseRefunded, stored.Phase)

	_, err = h.engine.StableReserveNative(h.ctx, ReserveInput{Signer: b1, SlotID: slot.ID})
	assert.ErrorIs(t, err, status.ErrSlotClosed)
	_, err = h.engine.StableSettleNative(h.ctx, EscrowInput{Signer: h.creator, EscrowID: e1.ID})
	assert.ErrorIs(t, err, status.ErrEscrowNotFunded)

	h.events.reset()
	again, err := h.engine.CloseSlotNative(h.ctx, SlotInput{Signer: h.admin, SlotID: slot.ID})
	require.NoError(t, err)
	assert.Equal(t, models.SlotClosed, again.State)
	assert.Empty(t, h.events.kinds())
	assert.Equal(t, uint64(20), h.balance(b1))
}

func TestCloseSlot_KeepsSettledEscrows(t *testing.T) {
	h := newHarness(t)
	slot := h.stableSlot(2, 20)
	b1, b2 := h.buyer(20), h.buyer(20)

	settled, err := h.engine.StableReserveNative(h.ctx, ReserveInput{Signer: b1, SlotID: slot.ID})
	require.NoError(t, err)
	_, err = h.engine.StableSettleNative(h.ctx, EscrowInput{Signer: h.creator, EscrowID: settled.ID})
	require.NoError(t, err)
	_, err = h.engine.StableReserveNative(h.ctx, ReserveInput{Signer: b2, SlotID: slot.ID})
	require.NoError(t, err)

	closed, err := h.engine.CloseSlotNative(h.ctx, SlotInput{Signer: h.admin, SlotID: slot.ID})
	require.NoError(t, err)
	assert.Equal(t, uint32(1), closed.CapacitySold)
	assert.Equal(t, uint64(20), h.balance(b2))
	assert.Zero(t, h.balance(b1))

	h.advance(disputeHold)
	_, err = h.engine.ReleaseHold(h.ctx, EscrowInput{EscrowID: settled.ID})
	require.NoError(t, err)
	assert.Equal(t, uint64(19), h.balance(h.creator))
}

func TestCloseSlot_EnglishRefundsLeaderAndKeepsQueue(t *testing.T) {
	h := newHarness(t)
	slot := h.englishSlot(10, 1, 0)
	b1, b2 := h.buyer(100), h.buyer(100)

	_, err := h.bid(b1, slot.ID, 11)
	require.NoError(t, err)
	_, err = h.bid(b2, slot.ID, 12)
	require.NoError(t, err)

	_, err = h.engine.SetFrozen(h.ctx, SetFrozenInput{Signer: h.admin, SlotID: slot.ID, Frozen: true})
	require.NoError(t, err)

	closed, err := h.engine.CloseSlotNative(h.ctx, SlotInput{Signer: h.admin, SlotID: slot.ID})
	require.NoError(t, err)
	assert.Equal(t, models.SlotClosed, closed.State)
	assert.Equal(t, uint64(100), h.balance(b2))

	_, err = h.engine.SetFrozen(h.ctx, SetFrozenInput{Signer: h.admin, SlotID: slot.ID, Frozen: false})
	require.NoError(t, err)

	entry, err := h.engine.RefundOutbid(h.ctx, SlotInput{SlotID: slot.ID})
	require.NoError(t, err)
	assert.Equal(t, b1, entry.Bidder)
	assert.Equal(t, uint64(100), h.balance(b1))
	assert.Zero(t, h.balance(vault.AuctionAddress(slot.ID)))

	_, err = h.bid(b1, slot.ID, 20)
	assert.ErrorIs(t, err, status.ErrSlotClosed)
	_, err = h.engine.EndAuction(h.ctx, SlotInput{Signer: h.creator, SlotID: slot.ID})
	assert.ErrorIs(t, err, status.ErrSlotClosed)
	_, err = h.engine.BuyNow(h.ctx, SlotInput{Signer: b1, SlotID: slot.ID})
	assert.ErrorIs(t, err, status.ErrSlotClosed)
}

func TestCloseSlot_AfterAuctionEndKeepsSale(t *testing.T) {
	h := newHarness(t)
	slot := h.englishSlot(10, 1, 0)
	b1 := h.buyer(100)

	_, err := h.bid(b1, slot.ID, 20)
	require.NoError(t, err)
	h.advance(auctionEndIn)
	_, err = h.engine.EndAuction(h.ctx, SlotInput{SlotID: slot.ID})
	require.NoError(t, err)

	_, err = h.engine.CloseSlotNative(h.ctx, SlotInput{Signer: h.creator, SlotID: slot.ID})
	require.NoError(t, err)
	assert.Equal(t, uint64(80), h.balance(b1))
	assert.Equal(t, uint64(17), h.balance(h.creator))
}

func TestCloseSlot_SealedWinnerDepositBecomesClaimable(t *testing.T) {
	h := newHarness(t)
	slot := h.sealedSlot(10, 0, 2)
	b1 := h.buyer(100)

	require.NoError(t, h.commit(slot.ID, b1, 30, 30, "a"))
	h.advance(auctionEndIn)
	require.NoError(t, h.reveal(slot.ID, b1, 30, "a"))
	h.advance(revealWindow)
	_, err := h.engine.EndSealedAuction(h.ctx, SlotInput{SlotID: slot.ID})
	require.NoError(t, err)

	_, err = h.engine.CloseSlotNative(h.ctx, SlotInput{Signer: h.creator, SlotID: slot.ID})
	require.NoError(t, err)

	_, err = h.engine.SettleSealedAuction(h.ctx, SlotInput{SlotID: slot.ID})
	assert.ErrorIs(t, err, status.ErrSlotClosed)

	_, err = h.engine.RefundSealedDeposit(h.ctx, RefundDepositInput{SlotID: slot.ID, Bidder: b1})
	require.NoError(t, err)
	assert.Equal(t, uint64(100), h.balance(b1))
}
