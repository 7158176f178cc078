package models

import (
	"slot-settlement/internal/status"
	"slot-settlement/utils"

	"github.com/gagliardetto/solana-go"
)

// BidBook tracks the English-auction leader. HighestBid starts at the
// slot's starting price and never decreases.
type BidBook struct {
	SlotID        string           `json:"slot_id"`
	HighestBid    uint64           `json:"highest_bid"`
	HighestBidder solana.PublicKey `json:"highest_bidder"`
	BidCount      uint64           `json:"bid_count"`
}

func (b *BidBook) HasLeader() bool { return !b.HighestBidder.IsZero() }

// NextMin is the smallest acceptable next bid.
func (b *BidBook) NextMin(increment uint64) (uint64, error) {
	next, ok := utils.CheckedAddU64(b.HighestBid, increment)
	if !ok {
		return 0, status.ErrArithmeticOverflow
	}
	return next, nil
}

func (b *BidBook) Raise(bidder solana.PublicKey, amount uint64) error {
	if amount < b.HighestBid {
		return status.ErrInvalidBidIncrement
	}
	b.HighestBid = amount
	b.HighestBidder = bidder
	b.BidCount = utils.SatAddU64(b.BidCount, 1)
	return nil
}

// ClearLeader drops the leader but keeps HighestBid as the floor.
func (b *BidBook) ClearLeader() {
	b.HighestBidder = solana.PublicKey{}
}

type AutoBid struct {
	Bidder  solana.PublicKey `json:"bidder"`
	Ceiling uint64           `json:"ceiling"`
	Seq     uint64           `json:"seq"`
}

// AutoBidStore holds proxy-bid ceilings. Only Entries[:Count] are live.
type AutoBidStore struct {
	SlotID     string    `json:"slot_id"`
	MaxEntries uint32    `json:"max_entries"`
	Count      uint32    `json:"count"`
	NextSeq    uint64    `json:"next_seq"`
	Entries    []AutoBid `json:"entries"`
}

func NewAutoBidStore(slotID string, maxEntries uint32) (*AutoBidStore, error) {
	if maxEntries == 0 {
		return nil, status.ErrInvalidStoreCapacity
	}
	return &AutoBidStore{
		SlotID:     slotID,
		MaxEntries: maxEntries,
		Entries:    make([]AutoBid, maxEntries),
	}, nil
}

func (s *AutoBidStore) Active() []AutoBid {
	n := min(int(s.Count), len(s.Entries))
	return s.Entries[:n]
}

func (s *AutoBidStore) Find(bidder solana.PublicKey) (AutoBid, bool) {
	for _, a := range s.Active() {
		if a.Bidder.Equals(bidder) {
			return a, true
		}
	}
	return AutoBid{}, false
}

// Upsert registers or updates a ceiling. An update keeps the original
// sequence number so tie-breaking stays with the earliest registration.
func (s *AutoBidStore) Upsert(bidder solana.PublicKey, ceiling uint64) error {
	if s.MaxEntries == 0 {
		return status.ErrStoreNotInitialized
	}
	live := s.Active()
	for i := range live {
		if live[i].Bidder.Equals(bidder) {
			live[i].Ceiling = ceiling
			return nil
		}
	}
	if s.Count >= s.MaxEntries {
		return status.ErrStoreCapacityExceeded
	}
	if int(s.Count) >= len(s.Entries) {
		return status.ErrStoreNotInitialized
	}
	s.Entries[s.Count] = AutoBid{Bidder: bidder, Ceiling: ceiling, Seq: s.NextSeq}
	s.NextSeq = utils.SatAddU64(s.NextSeq, 1)
	s.Count = utils.SatAddU32(s.Count, 1)
	return nil
}

type SealedCommit struct {
	Bidder         solana.PublicKey `json:"bidder"`
	Commitment     [32]byte         `json:"commitment"`
	Deposit        uint64           `json:"deposit"`
	Seq            uint64           `json:"seq"`
	Revealed       bool             `json:"revealed"`
	RevealedAmount uint64           `json:"revealed_amount"`
	Refunded       bool             `json:"refunded"`
}

// CommitStore holds sealed-bid commitments. Capacity is MaxEntries, never
// len(Entries).
type CommitStore struct {
	SlotID     string         `json:"slot_id"`
	MaxEntries uint32         `json:"max_entries"`
	Count      uint32         `json:"count"`
	Entries    []SealedCommit `json:"entries"`
}

func NewCommitStore(slotID string, maxEntries uint32) (*CommitStore, error) {
	if maxEntries == 0 {
		return nil, status.ErrInvalidStoreCapacity
	}
	return &CommitStore{
		SlotID:     slotID,
		MaxEntries: maxEntries,
		Entries:    make([]SealedCommit, maxEntries),
	}, nil
}

func (s *CommitStore) Active() []SealedCommit {
	n := min(int(s.Count), len(s.Entries))
	return s.Entries[:n]
}

// Lookup returns the index of the bidder's commitment in Entries.
func (s *CommitStore) Lookup(bidder solana.PublicKey) (int, bool) {
	for i, c := range s.Active() {
		if c.Bidder.Equals(bidder) {
			return i, true
		}
	}
	return -1, false
}

func (s *CommitStore) Add(c SealedCommit) error {
	if s.MaxEntries == 0 {
		return status.ErrStoreNotInitialized
	}
	if _, ok := s.Lookup(c.Bidder); ok {
		return status.ErrDuplicateCommit
	}
	if s.Count >= s.MaxEntries {
		return status.ErrStoreCapacityExceeded
	}
	if int(s.Count) >= len(s.Entries) {
		return status.ErrStoreNotInitialized
	}
	c.Seq = uint64(s.Count)
	s.Entries[s.Count] = c
	s.Count = utils.SatAddU32(s.Count, 1)
	return nil
}

// Unrevealed counts commitments still waiting for their reveal.
func (s *CommitStore) Unrevealed() int {
	n := 0
	for _, c := range s.Active() {
		if !c.Revealed {
			n++
		}
	}
	return n
}

// Leader returns the index of the highest revealed bid at or above reserve.
// Ties go to the earlier commitment.
func (s *CommitStore) Leader(reserve uint64) (int, bool) {
	best := -1
	for i, c := range s.Active() {
		if !c.Revealed || c.RevealedAmount < reserve {
			continue
		}
		if best < 0 || c.RevealedAmount > s.Entries[best].RevealedAmount {
			best = i
		}
	}
	return best, best >= 0
}
