package vault

import (
	"errors"
	"fmt"

	"slot-settlement/internal/ledger"
	"slot-settlement/internal/status"
	"slot-settlement/models"

	"github.com/gagliardetto/solana-go"
)

// Kind identifies the transfer primitive behind a vault.
type Kind string

const (
	KindToken  Kind = "token"
	KindNative Kind = "native"
)

// Vault moves custodied funds between accounts inside one ledger
// transaction. Both implementations share the same semantics; the token
// vault additionally checks the mint's decimals on every transfer.
type Vault interface {
	Kind() Kind
	Denomination() models.Denomination

	// Transfer moves amount from one account to another. A zero amount is a
	// no-op.
	Transfer(tx *ledger.Tx, from, to solana.PublicKey, amount uint64) error

	// Deposit credits funds entering custody from outside the ledger.
	Deposit(tx *ledger.Tx, owner solana.PublicKey, amount uint64) error

	// Withdraw debits funds leaving custody.
	Withdraw(tx *ledger.Tx, owner solana.PublicKey, amount uint64) error

	Balance(tx *ledger.Tx, owner solana.PublicKey) (uint64, error)
}

type accounts struct {
	den models.Denomination
}

func (a accounts) load(tx *ledger.Tx, owner solana.PublicKey) (*models.Account, error) {
	acct, err := ledger.Load[models.Account](tx, ledger.AccountKey(a.den.Key(), owner))
	if errors.Is(err, ledger.ErrNotFound) {
		return &models.Account{Owner: owner, Currency: a.den.Key()}, nil
	}
	return acct, err
}

func (a accounts) save(tx *ledger.Tx, acct *models.Account) error {
	return tx.Put(ledger.AccountKey(a.den.Key(), acct.Owner), acct)
}

func (a accounts) balance(tx *ledger.Tx, owner solana.PublicKey) (uint64, error) {
	acct, err := a.load(tx, owner)
	if err != nil {
		return 0, err
	}
	return acct.Balance, nil
}

func (a accounts) credit(tx *ledger.Tx, owner solana.PublicKey, amount uint64) error {
	acct, err := a.load(tx, owner)
	if err != nil {
		return err
	}
	if err := acct.Credit(amount); err != nil {
		return err
	}
	return a.save(tx, acct)
}

func (a accounts) debit(tx *ledger.Tx, owner solana.PublicKey, amount uint64) error {
	acct, err := a.load(tx, owner)
	if err != nil {
		return err
	}
	if err := acct.Debit(amount); err != nil {
		return fmt.Errorf("%w: %s holds %d, needs %d", err, owner.String(), acct.Balance, amount)
	}
	return a.save(tx, acct)
}

func (a accounts) transfer(tx *ledger.Tx, from, to solana.PublicKey, amount uint64) error {
	if amount == 0 {
		return nil
	}
	if from.Equals(to) {
		return nil
	}
	if err := a.debit(tx, from, amount); err != nil {
		return err
	}
	return a.credit(tx, to, amount)
}

func checkAmount(amount uint64) error {
	if amount == 0 {
		return status.ErrInvalidAmount
	}
	return nil
}
