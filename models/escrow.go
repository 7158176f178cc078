package models

import (
	"slot-settlement/internal/status"
	"slot-settlement/utils"

	"github.com/gagliardetto/solana-go"
)

type EscrowPhase string

const (
	PhaseFunded   EscrowPhase = "t0" // funds received into custody
	PhaseHeld     EscrowPhase = "t1" // settled, withheld amount pending dispute window
	PhaseReleased EscrowPhase = "released"
	PhaseRefunded EscrowPhase = "refunded"
)

type Escrow struct {
	ID     string           `json:"id"`
	SlotID string           `json:"slot_id"`
	Vault  solana.PublicKey `json:"vault"`
	Buyer  solana.PublicKey `json:"buyer"`
	Amount uint64           `json:"amount"`
	Phase  EscrowPhase      `json:"phase"`

	Fee          uint64 `json:"fee"`
	Held         uint64 `json:"held"`
	SellerPayout uint64 `json:"seller_payout"`

	HoldReleaseAt int64 `json:"hold_release_at,omitempty"`
	CreatedAt     int64 `json:"created_at"`
	SettledAt     int64 `json:"settled_at,omitempty"`
}

// BindBuyer sets the buyer exactly once.
func (e *Escrow) BindBuyer(buyer solana.PublicKey) error {
	if !e.Buyer.IsZero() && !e.Buyer.Equals(buyer) {
		return status.ErrBuyerAlreadyBound
	}
	e.Buyer = buyer
	return nil
}

// Account is one owner's balance in one denomination. Wallets, escrow
// vaults and the platform vaults are all accounts.
type Account struct {
	Owner    solana.PublicKey `json:"owner"`
	Currency string           `json:"currency"`
	Balance  uint64           `json:"balance"`
}

func (a *Account) Credit(amount uint64) error {
	next, ok := utils.CheckedAddU64(a.Balance, amount)
	if !ok {
		return status.ErrArithmeticOverflow
	}
	a.Balance = next
	return nil
}

func (a *Account) Debit(amount uint64) error {
	next, ok := utils.CheckedSubU64(a.Balance, amount)
	if !ok {
		return status.ErrInsufficientFunds
	}
	a.Balance = next
	return nil
}
