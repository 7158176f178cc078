package models

import (
	"slot-settlement/internal/status"
	"slot-settlement/utils"

	"github.com/gagliardetto/solana-go"
)

type RefundEntry struct {
	Bidder solana.PublicKey `json:"bidder"`
	Amount uint64           `json:"amount"`
}

// RefundQueue is a fixed-size ring of pending outbid refunds. MaxEntries is
// persisted at init and is the only capacity that counts; Entries is
// allocated to that size up front. Cursor is the absolute sequence number
// of the next entry to pay and never decreases.
type RefundQueue struct {
	SlotID     string        `json:"slot_id"`
	MaxEntries uint32        `json:"max_entries"`
	Count      uint32        `json:"count"`
	Cursor     uint64        `json:"cursor"`
	Entries    []RefundEntry `json:"entries"`
}

func NewRefundQueue(slotID string, maxEntries uint32) (*RefundQueue, error) {
	if maxEntries == 0 {
		return nil, status.ErrInvalidStoreCapacity
	}
	return &RefundQueue{
		SlotID:     slotID,
		MaxEntries: maxEntries,
		Entries:    make([]RefundEntry, maxEntries),
	}, nil
}

func (q *RefundQueue) index(seq uint64) (int, error) {
	i := seq % uint64(q.MaxEntries)
	if i >= uint64(len(q.Entries)) {
		return 0, status.ErrStoreNotInitialized
	}
	return int(i), nil
}

func (q *RefundQueue) Push(e RefundEntry) error {
	if q.MaxEntries == 0 {
		return status.ErrStoreNotInitialized
	}
	if q.Count >= q.MaxEntries {
		return status.ErrStoreCapacityExceeded
	}
	i, err := q.index(q.Cursor + uint64(q.Count))
	if err != nil {
		return err
	}
	q.Entries[i] = e
	q.Count = utils.SatAddU32(q.Count, 1)
	return nil
}

// Pop removes the oldest entry. The slot it occupied is zeroed so an entry
// can never be paid twice.
func (q *RefundQueue) Pop() (RefundEntry, error) {
	if q.Count == 0 {
		return RefundEntry{}, status.ErrRefundQueueEmpty
	}
	i, err := q.index(q.Cursor)
	if err != nil {
		return RefundEntry{}, err
	}
	e := q.Entries[i]
	q.Entries[i] = RefundEntry{}
	q.Cursor = utils.SatAddU64(q.Cursor, 1)
	q.Count = utils.SatSubU32(q.Count, 1)
	return e, nil
}

func (q *RefundQueue) Full() bool { return q.Count >= q.MaxEntries }

// Pending lists queued entries oldest first.
func (q *RefundQueue) Pending() []RefundEntry {
	out := make([]RefundEntry, 0, q.Count)
	for n := uint64(0); n < uint64(q.Count); n++ {
		i, err := q.index(q.Cursor + n)
		if err != nil {
			break
		}
		out = append(out, q.Entries[i])
	}
	return out
}
