// Package fees resolves the fee rate for a sale and splits settlement
// proceeds between the platform, the dispute-hold vault and the seller.
package fees

import (
	"math/big"

	"slot-settlement/models"

	"github.com/shopspring/decimal"
)

var bpsDenominator = decimal.NewFromInt(models.MaxBasisPoints)

// EffectiveFeeBps is the creator's override when present, else the platform
// default. It reads only its arguments.
func EffectiveFeeBps(platform *models.Platform, creator *models.CreatorProfile) uint16 {
	if creator != nil && creator.FeeOverrideBps != nil {
		return *creator.FeeOverrideBps
	}
	return platform.DefaultFeeBps
}

type Split struct {
	Fee          uint64 `json:"fee"`
	Held         uint64 `json:"held"`
	SellerPayout uint64 `json:"seller_payout"`
}

func portion(amount decimal.Decimal, bps uint16) uint64 {
	return amount.Mul(decimal.NewFromInt(int64(bps))).Div(bpsDenominator).Floor().BigInt().Uint64()
}

// SplitProceeds divides amount so that Fee + Held + SellerPayout == amount.
// Fee and Held round down; the remainder goes to the seller. feeBps and
// holdBps are clamped so their sum never exceeds 100%.
func SplitProceeds(amount uint64, feeBps, holdBps uint16) Split {
	if feeBps > models.MaxBasisPoints {
		feeBps = models.MaxBasisPoints
	}
	if int(feeBps)+int(holdBps) > models.MaxBasisPoints {
		holdBps = models.MaxBasisPoints - feeBps
	}

	d := decimal.NewFromBigInt(new(big.Int).SetUint64(amount), 0)
	fee := portion(d, feeBps)
	held := portion(d, holdBps)
	return Split{
		Fee:          fee,
		Held:         held,
		SellerPayout: amount - fee - held,
	}
}
