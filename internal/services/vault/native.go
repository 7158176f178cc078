package vault

import (
	"slot-settlement/internal/ledger"
	"slot-settlement/models"

	"github.com/gagliardetto/solana-go"
)

type NativeVault struct {
	accounts
}

func NewNativeVault() *NativeVault {
	return &NativeVault{accounts{den: models.NativeDenomination()}}
}

func (v *NativeVault) Kind() Kind { return KindNative }
func (v *NativeVault) Denomination() models.Denomination { return v.den }

func (v *NativeVault) Transfer(tx *ledger.Tx, from, to solana.PublicKey, amount uint64) error {
	return v.transfer(tx, from, to, amount)
}

func (v *NativeVault) Deposit(tx *ledger.Tx, owner solana.PublicKey, amount uint64) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	return v.credit(tx, owner, amount)
}

func (v *NativeVault) Withdraw(tx *ledger.Tx, owner solana.PublicKey, amount uint64) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	return v.debit(tx, owner, amount)
}

func (v *NativeVault) Balance(tx *ledger.Tx, owner solana.PublicKey) (uint64, error) {
	return v.balance(tx, owner)
}
