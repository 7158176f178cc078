package ledger

import (
	"github.com/gagliardetto/solana-go"
)

// Record keys. Every record an instruction touches is addressed by one of
// these.
const PlatformKey = "platform"

func CreatorKey(authority solana.PublicKey) string { return "creator:" + authority.String() }
func MintKey(mint solana.PublicKey) string { return "mint:" + mint.String() }
func SlotKey(slotID string) string { return "slot:" + slotID }
func EscrowKey(escrowID string) string { return "escrow:" + escrowID }
func BidBookKey(slotID string) string { return "bidbook:" + slotID }
func RefundQueueKey(slotID string) string { return "refunds:" + slotID }
func AutoBidStoreKey(slotID string) string { return "autobids:" + slotID }
func CommitStoreKey(slotID string) string { return "commits:" + slotID }
func TicketKey(address solana.PublicKey) string { return "ticket:" + address.String() }

// NonceKey marks one signed envelope of signer as executed.
func NonceKey(signer solana.PublicKey, nonce string) string {
	return "nonce:" + signer.String() + ":" + nonce
}

func AccountKey(currency string, owner solana.PublicKey) string {
	return "acct:" + currency + ":" + owner.String()
}
