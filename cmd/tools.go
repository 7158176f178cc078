package cmd

import (
	"encoding/hex"
	"fmt"

	"slot-settlement/internal/services"
	"slot-settlement/utils"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
)

// newCommitmentCmd computes the sealed-bid commitment a bidder submits,
// generating a fresh salt unless one is given.
func newCommitmentCmd() *cobra.Command {
	var slotID, bidder, saltHex string
	var amount uint64

	cmd := &cobra.Command{
		Use:   "sealed-commitment",
		Short: "Compute a sealed-bid commitment and the salt to reveal it with",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := solana.PublicKeyFromBase58(bidder)
			if err != nil {
				return fmt.Errorf("bidder: %w", err)
			}

			var salt []byte
			if saltHex != "" {
				if salt, err = hex.DecodeString(saltHex); err != nil {
					return fmt.Errorf("salt: %w", err)
				}
			} else if salt, err = utils.GenerateSalt(32); err != nil {
				return err
			}

			commitment := services.SealedCommitment(slotID, key, amount, salt)
			cmd.Printf("commitment: %s\nsalt: %s\n", hex.EncodeToString(commitment[:]), hex.EncodeToString(salt))
			return nil
		},
	}
	cmd.Flags().StringVar(&slotID, "slot", "", "slot id")
	cmd.Flags().StringVar(&bidder, "bidder", "", "bidder public key")
	cmd.Flags().Uint64Var(&amount, "amount", 0, "bid amount in base units")
	cmd.Flags().StringVar(&saltHex, "salt", "", "hex salt, generated when omitted")
	_ = cmd.MarkFlagRequired("slot")
	_ = cmd.MarkFlagRequired("bidder")
	return cmd
}
