package services

import (
	"testing"

	"slot-settlement/internal/status"
	"slot-settlement/models"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrainRefunds(t *testing.T) {
	h := newHarness(t)
	slot := h.englishSlot(10, 1, 0)

	bidders := []solana.PublicKey{h.buyer(100), h.buyer(100), h.buyer(100), h.buyer(100)}
	for i, b := range bidders {
		_, err := h.bid(b, slot.ID, uint64(11+i))
		require.NoError(t, err)
	}
	require.Equal(t, uint32(3), h.refundQueue(slot.ID).Count)

	paid, total, err := h.engine.DrainRefunds(h.ctx, slot.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, paid)
	assert.Equal(t, uint64(11+12), total)
	assert.Equal(t, uint64(100), h.balance(bidders[0]))
	assert.Equal(t, uint64(100), h.balance(bidders[1]))
	assert.Equal(t, uint64(87), h.balance(bidders[2]))

	paid, total, err = h.engine.DrainRefunds(h.ctx, slot.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, paid)
	assert.Equal(t, uint64(13), total)
	assert.Equal(t, uint64(100), h.balance(bidders[2]))

	paid, _, err = h.engine.DrainRefunds(h.ctx, slot.ID, 0)
	require.NoError(t, err)
	assert.Zero(t, paid)
}

func TestDrainRefunds_FrozenSlot(t *testing.T) {
	h := newHarness(t)
	slot := h.englishSlot(10, 1, 0)
	_, err := h.bid(h.buyer(100), slot.ID, 11)
	require.NoError(t, err)
	_, err = h.bid(h.buyer(100), slot.ID, 12)
	require.NoError(t, err)

	_, err = h.engine.SetFrozen(h.ctx, SetFrozenInput{Signer: h.admin, SlotID: slot.ID, Frozen: true})
	require.NoError(t, err)

	paid, _, err := h.engine.DrainRefunds(h.ctx, slot.ID, 0)
	assert.ErrorIs(t, err, status.ErrFrozen)
	assert.Zero(t, paid)
}

func TestReleaseDueHolds(t *testing.T) {
	h := newHarness(t)
	slot := h.stableSlot(3, 20)

	var ids []string
	for i := 0; i < 3; i++ {
		escrow, err := h.engine.StableReserveNative(h.ctx, ReserveInput{Signer: h.buyer(20), SlotID: slot.ID})
		require.NoError(t, err)
		ids = append(ids, escrow.ID)
	}
	for _, id := range ids[:2] {
		_, err := h.engine.StableSettleNative(h.ctx, EscrowInput{Signer: h.creator, EscrowID: id})
		require.NoError(t, err)
	}

	released, err := h.engine.ReleaseDueHolds(h.ctx, slot.ID)
	require.NoError(t, err)
	assert.Zero(t, released)

	h.advance(disputeHold)
	released, err = h.engine.ReleaseDueHolds(h.ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, released)
	assert.Equal(t, uint64(2*19), h.balance(h.creator))

	escrows, err := h.engine.ListEscrows(h.ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseReleased, escrows[0].Phase)
	assert.Equal(t, models.PhaseReleased, escrows[1].Phase)
	assert.Equal(t, models.PhaseFunded, escrows[2].Phase)

	released, err = h.engine.ReleaseDueHolds(h.ctx, slot.ID)
	require.NoError(t, err)
	assert.Zero(t, released)
}
