package services

import (
	"context"
	"errors"
	"fmt"

	"slot-settlement/internal/ledger"
	"slot-settlement/internal/services/vault"
	"slot-settlement/internal/status"
	"slot-settlement/models"

	"github.com/gagliardetto/solana-go"
)

// InitPlatform creates the global configuration. The signer becomes admin.
func (e *Engine) InitPlatform(ctx context.Context, signer solana.PublicKey, p models.Platform) (*models.Platform, error) {
	err := e.execute(ctx, "init_platform", "", func(c *call) error {
		if ok, err := c.tx.Exists(ledger.PlatformKey); err != nil {
			return err
		} else if ok {
			return status.ErrPlatformInitialized
		}
		if !p.Admin.Equals(signer) {
			return status.ErrUnauthorizedCaller
		}
		if err := p.Validate(); err != nil {
			return err
		}
		return c.tx.Put(ledger.PlatformKey, &p)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdatePlatform replaces the global configuration. Admin only.
func (e *Engine) UpdatePlatform(ctx context.Context, signer solana.PublicKey, p models.Platform) (*models.Platform, error) {
	err := e.execute(ctx, "update_platform", "", func(c *call) error {
		current, err := c.platform()
		if err != nil {
			return err
		}
		if !current.IsAdmin(signer) {
			return status.ErrUnauthorizedCaller
		}
		if err := p.Validate(); err != nil {
			return err
		}
		return c.tx.Put(ledger.PlatformKey, &p)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// RegisterCreator onboards the signer as a seller. An empty display name is
// filled from the creator directory when one is configured.
func (e *Engine) RegisterCreator(ctx context.Context, signer solana.PublicKey, displayName string) (*models.CreatorProfile, error) {
	if displayName == "" && e.directory != nil {
		name, err := e.directory.DisplayName(ctx, signer)
		if err != nil {
			e.logger.Warn("creator directory lookup failed", "creator", signer.String(), "error", err)
		} else {
			displayName = name
		}
	}

	var profile *models.CreatorProfile
	err := e.execute(ctx, "register_creator", "", func(c *call) error {
		if _, err := c.platform(); err != nil {
			return err
		}
		_, err := c.creator(signer)
		if err == nil {
			return status.ErrCreatorRegistered
		}
		if !errors.Is(err, status.ErrCreatorNotFound) {
			return err
		}
		profile = &models.CreatorProfile{
			Authority:    signer,
			DisplayName:  displayName,
			RegisteredAt: c.now,
		}
		return c.tx.Put(ledger.CreatorKey(signer), profile)
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// SetCreatorFeeOverride sets or clears (nil) a creator's fee rate. Admin only.
func (e *Engine) SetCreatorFeeOverride(ctx context.Context, signer, creator solana.PublicKey, feeBps *uint16) (*models.CreatorProfile, error) {
	var profile *models.CreatorProfile
	err := e.execute(ctx, "set_fee_override", "", func(c *call) error {
		p, err := c.platform()
		if err != nil {
			return err
		}
		if !p.IsAdmin(signer) {
			return status.ErrUnauthorizedCaller
		}
		if feeBps != nil && int(*feeBps)+int(p.DisputeHoldBps) > models.MaxBasisPoints {
			return status.ErrInvalidFeeConfig
		}
		profile, err = c.creator(creator)
		if err != nil {
			return err
		}
		profile.FeeOverrideBps = feeBps
		return c.tx.Put(ledger.CreatorKey(creator), profile)
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// RegisterMint allows a token to be used as a slot currency. Admin only.
func (e *Engine) RegisterMint(ctx context.Context, signer solana.PublicKey, mint models.Mint) (*models.Mint, error) {
	err := e.execute(ctx, "register_mint", "", func(c *call) error {
		p, err := c.platform()
		if err != nil {
			return err
		}
		if !p.IsAdmin(signer) {
			return status.ErrUnauthorizedCaller
		}
		if mint.Address.IsZero() {
			return status.ErrMintNotRegistered
		}
		if ok, err := c.tx.Exists(ledger.MintKey(mint.Address)); err != nil {
			return err
		} else if ok {
			return status.ErrMintRegistered
		}
		return c.tx.Put(ledger.MintKey(mint.Address), &mint)
	})
	if err != nil {
		return nil, err
	}
	return &mint, nil
}

// DepositFunds credits funds that entered custody off-ledger, e.g. a
// confirmed on-chain transfer seen by the bridge. Admin only.
func (e *Engine) DepositFunds(ctx context.Context, signer, owner solana.PublicKey, den models.Denomination, amount uint64) (uint64, error) {
	var balance uint64
	err := e.execute(ctx, "deposit_funds", "", func(c *call) error {
		p, err := c.platform()
		if err != nil {
			return err
		}
		if !p.IsAdmin(signer) {
			return status.ErrUnauthorizedCaller
		}
		v, err := vault.New(den)
		if err != nil {
			return err
		}
		if err := v.Deposit(c.tx, owner, amount); err != nil {
			return err
		}
		balance, err = v.Balance(c.tx, owner)
		return err
	})
	return balance, err
}

// WithdrawFunds debits the signer's own balance for payout off-ledger.
func (e *Engine) WithdrawFunds(ctx context.Context, signer solana.PublicKey, den models.Denomination, amount uint64) (uint64, error) {
	var balance uint64
	err := e.execute(ctx, "withdraw_funds", "", func(c *call) error {
		if _, err := c.platform(); err != nil {
			return err
		}
		v, err := vault.New(den)
		if err != nil {
			return err
		}
		if err := v.Withdraw(c.tx, signer, amount); err != nil {
			return fmt.Errorf("withdraw %s: %w", den.Key(), err)
		}
		balance, err = v.Balance(c.tx, signer)
		return err
	})
	return balance, err
}
