package vault

import (
	"errors"
	"fmt"

	"slot-settlement/internal/ledger"
	"slot-settlement/internal/status"
	"slot-settlement/models"

	"github.com/gagliardetto/solana-go"
)

// TokenVault carries the mint and its decimal scale. Every movement is a
// checked transfer: the vault's decimals must match the registered mint.
type TokenVault struct {
	accounts
}

func NewTokenVault(mint solana.PublicKey, decimals uint8) *TokenVault {
	return &TokenVault{accounts{den: models.TokenDenomination(mint, decimals)}}
}

func (v *TokenVault) Kind() Kind { return KindToken }
func (v *TokenVault) Denomination() models.Denomination { return v.den }

func (v *TokenVault) checkMint(tx *ledger.Tx) error {
	mint, err := ledger.Load[models.Mint](tx, ledger.MintKey(v.den.Mint))
	if errors.Is(err, ledger.ErrNotFound) {
		return status.ErrMintNotRegistered
	}
	if err != nil {
		return err
	}
	if mint.Decimals != v.den.Decimals {
		return fmt.Errorf("%w: mint has %d, vault expects %d", status.ErrDecimalsMismatch, mint.Decimals, v.den.Decimals)
	}
	return nil
}

func (v *TokenVault) Transfer(tx *ledger.Tx, from, to solana.PublicKey, amount uint64) error {
	if amount == 0 {
		return nil
	}
	if err := v.checkMint(tx); err != nil {
		return err
	}
	return v.transfer(tx, from, to, amount)
}

func (v *TokenVault) Deposit(tx *ledger.Tx, owner solana.PublicKey, amount uint64) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if err := v.checkMint(tx); err != nil {
		return err
	}
	return v.credit(tx, owner, amount)
}

func (v *TokenVault) Withdraw(tx *ledger.Tx, owner solana.PublicKey, amount uint64) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if err := v.checkMint(tx); err != nil {
		return err
	}
	return v.debit(tx, owner, amount)
}

func (v *TokenVault) Balance(tx *ledger.Tx, owner solana.PublicKey) (uint64, error) {
	return v.balance(tx, owner)
}
