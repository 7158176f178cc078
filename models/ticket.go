package models

import (
	"github.com/gagliardetto/solana-go"
)

// Ticket is the proof-of-purchase credential. Its address and mint
// authority are both derived from the slot, so one escrow yields at most
// one ticket.
type Ticket struct {
	Address       solana.PublicKey `json:"address"`
	SlotID        string           `json:"slot_id"`
	EscrowID      string           `json:"escrow_id"`
	Owner         solana.PublicKey `json:"owner"`
	MintAuthority solana.PublicKey `json:"mint_authority"`
	IssuedAt      int64            `json:"issued_at"`
	CheckedIn     bool             `json:"checked_in"`
	CheckedInAt   int64            `json:"checked_in_at,omitempty"`
}
