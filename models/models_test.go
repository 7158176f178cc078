package models

import (
	"encoding/json"
	"math"
	"testing"

	"slot-settlement/internal/status"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKey() solana.PublicKey {
	return solana.NewWallet().PublicKey()
}

func TestParseSaleMode(t *testing.T) {
	for _, m := range []SaleMode{ModeStable, ModeEnglishAuction, ModeSealedBid} {
		got, err := ParseSaleMode(string(m))
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}

	_, err := ParseSaleMode("dutch")
	assert.ErrorIs(t, err, status.ErrUnknownMode)
}

func TestTimeSlot_CheckModeCapacity(t *testing.T) {
	tests := []struct {
		name     string
		mode     SaleMode
		capacity uint32
		wantErr  error
	}{
		{"stable multi", ModeStable, 3, nil},
		{"english single", ModeEnglishAuction, 1, nil},
		{"english multi", ModeEnglishAuction, 2, status.ErrModeCapacityMismatch},
		{"sealed multi", ModeSealedBid, 2, status.ErrModeCapacityMismatch},
		{"unknown", SaleMode("raffle"), 1, status.ErrUnknownMode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := TimeSlot{Mode: tt.mode, CapacityTotal: tt.capacity}
			err := s.CheckModeCapacity()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestTimeSlot_ReserveNeverOversells(t *testing.T) {
	s := TimeSlot{ID: "slot", Mode: ModeStable, CapacityTotal: 2}

	require.NoError(t, s.Reserve())
	require.NoError(t, s.Reserve())
	assert.ErrorIs(t, s.Reserve(), status.ErrCapacityExhausted)
	assert.Equal(t, uint32(2), s.CapacitySold)
	assert.Zero(t, s.Remaining())

	s.Release()
	s.Release()
	s.Release()
	assert.Zero(t, s.CapacitySold)
}

func TestTimeSlot_ActiveEscrowIndex(t *testing.T) {
	s := TimeSlot{ID: "slot", CapacityTotal: 2}

	a := s.NextEscrowID()
	b := s.NextEscrowID()
	assert.Equal(t, "slot-1", a)
	assert.Equal(t, "slot-2", b)

	require.NoError(t, s.AddActiveEscrow(a))
	require.NoError(t, s.AddActiveEscrow(b))
	assert.ErrorIs(t, s.AddActiveEscrow("slot-3"), status.ErrCapacityExhausted)

	assert.True(t, s.RemoveActiveEscrow(a))
	assert.False(t, s.RemoveActiveEscrow(a))
	assert.Equal(t, []string{b}, s.ActiveEscrows)
}

func TestPlatform_Validate(t *testing.T) {
	valid := func() Platform {
		return Platform{
			Admin:                   newKey(),
			DefaultFeeBps:           250,
			FeeVault:                newKey(),
			DisputeVault:            newKey(),
			DisputeHoldBps:          1000,
			DisputeWindowSecs:       3600,
			MaxStoreEntries:         16,
			MaxSlotCapacity:         10,
			DefaultRevealWindowSecs: 600,
		}
	}

	p := valid()
	assert.NoError(t, p.Validate())

	p = valid()
	p.DisputeVault = p.FeeVault
	assert.ErrorIs(t, p.Validate(), status.ErrVaultsCommingled)

	p = valid()
	p.DefaultFeeBps = 9500
	assert.ErrorIs(t, p.Validate(), status.ErrInvalidFeeConfig)

	p = valid()
	p.MaxStoreEntries = 0
	assert.ErrorIs(t, p.Validate(), status.ErrInvalidStoreCapacity)
}

func TestDenomination(t *testing.T) {
	mint := newKey()
	tok := TokenDenomination(mint, 6)

	assert.Equal(t, "token:"+mint.String(), tok.Key())
	assert.Equal(t, "1.5", tok.Display(1_500_000).String())

	native := NativeDenomination()
	assert.True(t, native.IsNative())
	assert.Equal(t, "native", native.Key())
	assert.Equal(t, "2", native.Display(2_000_000_000).String())
}

func TestAccount_CreditDebit(t *testing.T) {
	a := Account{Owner: newKey(), Currency: "native", Balance: 10}

	require.NoError(t, a.Debit(4))
	assert.Equal(t, uint64(6), a.Balance)
	assert.ErrorIs(t, a.Debit(7), status.ErrInsufficientFunds)
	assert.Equal(t, uint64(6), a.Balance)

	a.Balance = math.MaxUint64
	assert.ErrorIs(t, a.Credit(1), status.ErrArithmeticOverflow)
}

func TestEscrow_BindBuyerOnce(t *testing.T) {
	first, second := newKey(), newKey()
	e := Escrow{ID: "e"}

	require.NoError(t, e.BindBuyer(first))
	require.NoError(t, e.BindBuyer(first))
	assert.ErrorIs(t, e.BindBuyer(second), status.ErrBuyerAlreadyBound)
	assert.Equal(t, first, e.Buyer)
}

func TestBidBook_Raise(t *testing.T) {
	b := BidBook{SlotID: "s", HighestBid: 10}

	next, err := b.NextMin(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(11), next)

	require.NoError(t, b.Raise(newKey(), 11))
	assert.ErrorIs(t, b.Raise(newKey(), 10), status.ErrInvalidBidIncrement)
	assert.Equal(t, uint64(11), b.HighestBid)

	b.HighestBid = math.MaxUint64
	_, err = b.NextMin(1)
	assert.ErrorIs(t, err, status.ErrArithmeticOverflow)
}

func TestRefundQueue_FIFOExactlyOnce(t *testing.T) {
	q, err := NewRefundQueue("slot", 3)
	require.NoError(t, err)
	assert.Len(t, q.Entries, 3)

	bidders := []solana.PublicKey{newKey(), newKey(), newKey()}
	for i, b := range bidders {
		require.NoError(t, q.Push(RefundEntry{Bidder: b, Amount: uint64(10 + i)}))
	}
	assert.True(t, q.Full())
	assert.ErrorIs(t, q.Push(RefundEntry{Bidder: newKey(), Amount: 1}), status.ErrStoreCapacityExceeded)

	for i, b := range bidders {
		e, err := q.Pop()
		require.NoError(t, err)
		assert.Equal(t, b, e.Bidder)
		assert.Equal(t, uint64(10+i), e.Amount)
		assert.Equal(t, uint64(i+1), q.Cursor)
	}

	_, err = q.Pop()
	assert.ErrorIs(t, err, status.ErrRefundQueueEmpty)
	assert.Equal(t, uint64(3), q.Cursor)
	assert.Zero(t, q.Count)
}

func TestRefundQueue_WrapsAround(t *testing.T) {
	q, err := NewRefundQueue("slot", 2)
	require.NoError(t, err)

	a, b, c := newKey(), newKey(), newKey()
	require.NoError(t, q.Push(RefundEntry{Bidder: a, Amount: 1}))
	require.NoError(t, q.Push(RefundEntry{Bidder: b, Amount: 2}))

	e, err := q.Pop()
	require.NoError(t, err)
	assert.Equal(t, a, e.Bidder)

	require.NoError(t, q.Push(RefundEntry{Bidder: c, Amount: 3}))
	assert.Equal(t, []RefundEntry{{Bidder: b, Amount: 2}, {Bidder: c, Amount: 3}}, q.Pending())

	e, _ = q.Pop()
	assert.Equal(t, b, e.Bidder)
	e, _ = q.Pop()
	assert.Equal(t, c, e.Bidder)
	assert.Equal(t, uint64(3), q.Cursor)
}

func TestRefundQueue_RejectsZeroCapacity(t *testing.T) {
	_, err := NewRefundQueue("slot", 0)
	assert.ErrorIs(t, err, status.ErrInvalidStoreCapacity)
}

func TestAutoBidStore_BoundedByMaxEntries(t *testing.T) {
	s, err := NewAutoBidStore("slot", 3)
	require.NoError(t, err)

	first := newKey()
	require.NoError(t, s.Upsert(first, 50))
	require.NoError(t, s.Upsert(newKey(), 60))
	require.NoError(t, s.Upsert(newKey(), 70))
	assert.ErrorIs(t, s.Upsert(newKey(), 80), status.ErrStoreCapacityExceeded)

	// Updating an existing bidder does not need a free entry.
	require.NoError(t, s.Upsert(first, 90))
	got, ok := s.Find(first)
	require.True(t, ok)
	assert.Equal(t, uint64(90), got.Ceiling)
	assert.Equal(t, uint64(0), got.Seq)
	assert.Equal(t, uint32(3), s.Count)
}

func TestCommitStore_CapacityUsesPersistedMax(t *testing.T) {
	s, err := NewCommitStore("slot", 2)
	require.NoError(t, err)

	// A buffer larger than the persisted max must not raise capacity.
	s.Entries = append(s.Entries, make([]SealedCommit, 8)...)

	require.NoError(t, s.Add(SealedCommit{Bidder: newKey(), Deposit: 10}))
	require.NoError(t, s.Add(SealedCommit{Bidder: newKey(), Deposit: 10}))
	assert.ErrorIs(t, s.Add(SealedCommit{Bidder: newKey(), Deposit: 10}), status.ErrStoreCapacityExceeded)
	assert.Equal(t, uint32(2), s.Count)
}

func TestCommitStore_DuplicateAndLeader(t *testing.T) {
	s, err := NewCommitStore("slot", 4)
	require.NoError(t, err)

	a, b, c := newKey(), newKey(), newKey()
	require.NoError(t, s.Add(SealedCommit{Bidder: a, Deposit: 100}))
	assert.ErrorIs(t, s.Add(SealedCommit{Bidder: a, Deposit: 100}), status.ErrDuplicateCommit)
	require.NoError(t, s.Add(SealedCommit{Bidder: b, Deposit: 100}))
	require.NoError(t, s.Add(SealedCommit{Bidder: c, Deposit: 100}))

	_, ok := s.Leader(10)
	assert.False(t, ok)

	for _, who := range []solana.PublicKey{a, b} {
		i, found := s.Lookup(who)
		require.True(t, found)
		s.Entries[i].Revealed = true
		s.Entries[i].RevealedAmount = 40
	}

	i, ok := s.Leader(10)
	require.True(t, ok)
	assert.Equal(t, a, s.Entries[i].Bidder)

	_, ok = s.Leader(50)
	assert.False(t, ok)
}

func TestEvent_JSONSerialization(t *testing.T) {
	ev := Event{Kind: EventBidPlaced, SlotID: "slot", Amount: 12, At: 1700000000}

	data, err := json.Marshal(ev)
	require.NoError(t, err)

	var back Event
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, ev, back)
	assert.False(t, back.Kind.Terminal())
	assert.True(t, EventBuyNow.Terminal())
}
