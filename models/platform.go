package models

import (
	"slot-settlement/internal/status"

	"github.com/gagliardetto/solana-go"
)

const MaxBasisPoints = 10_000

// Platform is the single global configuration record. It is written by
// InitPlatform and afterwards only by the admin.
type Platform struct {
	Admin          solana.PublicKey `json:"admin"`
	DefaultFeeBps  uint16           `json:"default_fee_bps"`
	FeeVault       solana.PublicKey `json:"fee_vault"`
	DisputeVault   solana.PublicKey `json:"dispute_vault"`
	DisputeHoldBps uint16           `json:"dispute_hold_bps"`

	// Seconds a T1 hold stays in the dispute vault before anyone may release it.
	DisputeWindowSecs int64 `json:"dispute_window_secs"`

	MaxStoreEntries         uint32 `json:"max_store_entries"`
	MaxSlotCapacity         uint32 `json:"max_slot_capacity"`
	DefaultRevealWindowSecs int64  `json:"default_reveal_window_secs"`
}

func (p *Platform) Validate() error {
	if p.Admin.IsZero() {
		return status.ErrUnauthorizedCaller
	}
	if p.FeeVault.IsZero() || p.DisputeVault.IsZero() || p.FeeVault.Equals(p.DisputeVault) {
		return status.ErrVaultsCommingled
	}
	if int(p.DefaultFeeBps)+int(p.DisputeHoldBps) > MaxBasisPoints {
		return status.ErrInvalidFeeConfig
	}
	if p.DisputeWindowSecs < 0 || p.DefaultRevealWindowSecs <= 0 {
		return status.ErrInvalidWindow
	}
	if p.MaxStoreEntries == 0 {
		return status.ErrInvalidStoreCapacity
	}
	if p.MaxSlotCapacity == 0 {
		return status.ErrInvalidCapacity
	}
	return nil
}

func (p *Platform) IsAdmin(who solana.PublicKey) bool {
	return !who.IsZero() && p.Admin.Equals(who)
}

// CreatorProfile is the onboarding record of a seller. Display metadata
// lives in the external profile store; only fee data is kept here.
type CreatorProfile struct {
	Authority      solana.PublicKey `json:"authority"`
	FeeOverrideBps *uint16          `json:"fee_override_bps,omitempty"`
	DisplayName    string           `json:"display_name,omitempty"`
	RegisteredAt   int64            `json:"registered_at"`
}

// Mint is a fungible token registered for use as a slot currency.
type Mint struct {
	Address  solana.PublicKey `json:"address"`
	Decimals uint8            `json:"decimals"`
	Symbol   string           `json:"symbol"`
}
