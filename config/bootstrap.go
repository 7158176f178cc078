package config

import (
	"fmt"
	"os"

	"slot-settlement/models"

	"github.com/gagliardetto/solana-go"
	"gopkg.in/yaml.v3"
)

// Bootstrap is the platform configuration applied to an empty ledger.
//
//	admin: <base58>
//	fee_vault: <base58>
//	dispute_vault: <base58>
//	default_fee_bps: 500
//	dispute_hold_bps: 1000
//	dispute_window: 72h
//	max_store_entries: 64
//	max_slot_capacity: 500
//	default_reveal_window: 10m
//	mints:
//	  - address: <base58>
//	    decimals: 6
//	    symbol: USDC
type Bootstrap struct {
	Admin               string          `yaml:"admin"`
	FeeVault            string          `yaml:"fee_vault"`
	DisputeVault        string          `yaml:"dispute_vault"`
	DefaultFeeBps       uint16          `yaml:"default_fee_bps"`
	DisputeHoldBps      uint16          `yaml:"dispute_hold_bps"`
	DisputeWindow       Duration        `yaml:"dispute_window"`
	MaxStoreEntries     uint32          `yaml:"max_store_entries"`
	MaxSlotCapacity     uint32          `yaml:"max_slot_capacity"`
	DefaultRevealWindow Duration        `yaml:"default_reveal_window"`
	Mints               []BootstrapMint `yaml:"mints"`
}

type BootstrapMint struct {
	Address  string `yaml:"address"`
	Decimals uint8  `yaml:"decimals"`
	Symbol   string `yaml:"symbol"`
}

func LoadBootstrap(path string) (*Bootstrap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bootstrap %s: %w", path, err)
	}
	var b Bootstrap
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse bootstrap %s: %w", path, err)
	}
	return &b, nil
}

func parseKey(field, value string) (solana.PublicKey, error) {
	key, err := solana.PublicKeyFromBase58(value)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("bootstrap %s: %w", field, err)
	}
	return key, nil
}

// Platform converts the file into the ledger record. Validation of the
// values themselves is left to InitPlatform.
func (b *Bootstrap) Platform() (models.Platform, error) {
	admin, err := parseKey("admin", b.Admin)
	if err != nil {
		return models.Platform{}, err
	}
	feeVault, err := parseKey("fee_vault", b.FeeVault)
	if err != nil {
		return models.Platform{}, err
	}
	disputeVault, err := parseKey("dispute_vault", b.DisputeVault)
	if err != nil {
		return models.Platform{}, err
	}
	return models.Platform{
		Admin:                   admin,
		DefaultFeeBps:           b.DefaultFeeBps,
		FeeVault:                feeVault,
		DisputeVault:            disputeVault,
		DisputeHoldBps:          b.DisputeHoldBps,
		DisputeWindowSecs:       int64(b.DisputeWindow.Seconds()),
		MaxStoreEntries:         b.MaxStoreEntries,
		MaxSlotCapacity:         b.MaxSlotCapacity,
		DefaultRevealWindowSecs: int64(b.DefaultRevealWindow.Seconds()),
	}, nil
}

func (b *Bootstrap) RegisteredMints() ([]models.Mint, error) {
	mints := make([]models.Mint, 0, len(b.Mints))
	for i, m := range b.Mints {
		address, err := parseKey(fmt.Sprintf("mints[%d].address", i), m.Address)
		if err != nil {
			return nil, err
		}
		mints = append(mints, models.Mint{Address: address, Decimals: m.Decimals, Symbol: m.Symbol})
	}
	return mints, nil
}
