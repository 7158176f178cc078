package models

import (
	"math/big"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

type CurrencyKind string

const (
	CurrencyNative CurrencyKind = "native"
	CurrencyToken  CurrencyKind = "token"
)

// NativeDecimals is the scale of the native currency's base unit.
const NativeDecimals uint8 = 9

// Denomination names the currency a slot is priced in. Amounts everywhere
// are base units; Decimals only matters for display and checked transfers.
type Denomination struct {
	Kind     CurrencyKind     `json:"kind"`
	Mint     solana.PublicKey `json:"mint"`
	Decimals uint8            `json:"decimals"`
}

func NativeDenomination() Denomination {
	return Denomination{Kind: CurrencyNative, Decimals: NativeDecimals}
}

func TokenDenomination(mint solana.PublicKey, decimals uint8) Denomination {
	return Denomination{Kind: CurrencyToken, Mint: mint, Decimals: decimals}
}

func (d Denomination) IsNative() bool { return d.Kind == CurrencyNative }

// Key identifies the balance namespace of the denomination.
func (d Denomination) Key() string {
	if d.Kind == CurrencyToken {
		return "token:" + d.Mint.String()
	}
	return string(CurrencyNative)
}

// Display converts base units to a decimal amount, e.g. 1500000 with six
// decimals becomes 1.5.
func (d Denomination) Display(amount uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -int32(d.Decimals))
}
