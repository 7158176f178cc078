package vault

import (
	"fmt"

	"slot-settlement/internal/status"
	"slot-settlement/models"
)

// New picks the vault implementation for a denomination.
func New(den models.Denomination) (Vault, error) {
	switch den.Kind {
	case models.CurrencyToken:
		if den.Mint.IsZero() {
			return nil, status.ErrMintNotRegistered
		}
		return NewTokenVault(den.Mint, den.Decimals), nil
	case models.CurrencyNative:
		return NewNativeVault(), nil
	default:
		return nil, fmt.Errorf("unsupported currency kind: %q", den.Kind)
	}
}

// SupportedKinds lists the vault kinds New can build.
func SupportedKinds() []Kind {
	return []Kind{KindToken, KindNative}
}
