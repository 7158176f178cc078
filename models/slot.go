package models

import (
	"fmt"

	"slot-settlement/internal/status"
	"slot-settlement/utils"

	"github.com/gagliardetto/solana-go"
)

// SaleMode is a closed set. Every mode-sensitive instruction switches over
// it and treats anything else as status.ErrUnknownMode.
type SaleMode string

const (
	ModeStable         SaleMode = "stable"
	ModeEnglishAuction SaleMode = "english_auction"
	ModeSealedBid      SaleMode = "sealed_bid"
)

func ParseSaleMode(s string) (SaleMode, error) {
	switch m := SaleMode(s); m {
	case ModeStable, ModeEnglishAuction, ModeSealedBid:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", status.ErrUnknownMode, s)
	}
}

type SlotState string

const (
	SlotOpen   SlotState = "open"
	SlotLocked SlotState = "locked"
	SlotClosed SlotState = "closed"
)

type TimeSlot struct {
	ID       string           `json:"id"`
	Creator  solana.PublicKey `json:"creator"`
	StartTs  int64            `json:"start_ts"`
	EndTs    int64            `json:"end_ts"`
	Mode     SaleMode         `json:"mode"`
	Currency Denomination     `json:"currency"`

	// Price is the fixed price for Stable slots, the starting price for
	// English auctions and the reserve for sealed-bid slots.
	Price        uint64 `json:"price"`
	MinIncrement uint64 `json:"min_increment"`
	BuyNowPrice  uint64 `json:"buy_now_price"`

	CapacityTotal uint32    `json:"capacity_total"`
	CapacitySold  uint32    `json:"capacity_sold"`
	State         SlotState `json:"state"`
	Frozen        bool      `json:"frozen"`

	AuctionEndTs     int64 `json:"auction_end_ts,omitempty"`
	RevealWindowSecs int64 `json:"reveal_window_secs,omitempty"`

	// EscrowSeq numbers escrows; ActiveEscrows holds the ids still in T0 and
	// never grows past CapacityTotal.
	EscrowSeq     uint64   `json:"escrow_seq"`
	ActiveEscrows []string `json:"active_escrows"`

	Winner     solana.PublicKey `json:"winner"`
	WinningBid uint64           `json:"winning_bid"`
	Settled    bool             `json:"settled"`

	CreatedAt int64 `json:"created_at"`
}

// CheckModeCapacity enforces that only Stable slots sell more than one unit.
func (s *TimeSlot) CheckModeCapacity() error {
	switch s.Mode {
	case ModeStable:
		return nil
	case ModeEnglishAuction, ModeSealedBid:
		if s.CapacityTotal != 1 {
			return status.ErrModeCapacityMismatch
		}
		return nil
	default:
		return status.ErrUnknownMode
	}
}

func (s *TimeSlot) Remaining() uint32 {
	return utils.SatSubU32(s.CapacityTotal, s.CapacitySold)
}

// Reserve takes one unit of capacity. It refuses rather than saturates.
func (s *TimeSlot) Reserve() error {
	if s.CapacitySold >= s.CapacityTotal {
		return status.ErrCapacityExhausted
	}
	s.CapacitySold = utils.SatAddU32(s.CapacitySold, 1)
	return nil
}

func (s *TimeSlot) Release() {
	s.CapacitySold = utils.SatSubU32(s.CapacitySold, 1)
}

func (s *TimeSlot) NextEscrowID() string {
	s.EscrowSeq = utils.SatAddU64(s.EscrowSeq, 1)
	return EscrowID(s.ID, s.EscrowSeq)
}

// EscrowID is the id of the seq-th escrow created for a slot, counting from 1.
func EscrowID(slotID string, seq uint64) string {
	return fmt.Sprintf("%s-%d", slotID, seq)
}

func (s *TimeSlot) AddActiveEscrow(id string) error {
	if uint32(len(s.ActiveEscrows)) >= s.CapacityTotal {
		return status.ErrCapacityExhausted
	}
	s.ActiveEscrows = append(s.ActiveEscrows, id)
	return nil
}

func (s *TimeSlot) RemoveActiveEscrow(id string) bool {
	for i, e := range s.ActiveEscrows {
		if e == id {
			s.ActiveEscrows = append(s.ActiveEscrows[:i], s.ActiveEscrows[i+1:]...)
			return true
		}
	}
	return false
}

func (s *TimeSlot) IsAuction() bool {
	return s.Mode == ModeEnglishAuction || s.Mode == ModeSealedBid
}

// RevealEndsAt is the first instant at which reveals are no longer accepted.
func (s *TimeSlot) RevealEndsAt() int64 {
	return s.AuctionEndTs + s.RevealWindowSecs
}

func (s *TimeSlot) CanManage(who solana.PublicKey, p *Platform) bool {
	return s.Creator.Equals(who) || p.IsAdmin(who)
}
