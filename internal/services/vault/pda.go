package vault

import (
	"crypto/sha256"

	"github.com/gagliardetto/solana-go"
)

// ProgramID anchors every derived address of the settlement engine.
var ProgramID = solana.PublicKeyFromBytes(programSeed())

func programSeed() []byte {
	sum := sha256.Sum256([]byte("timeslot-settlement"))
	return sum[:]
}

// seed hashes an identifier so that ids of any length fit the 32-byte seed
// limit.
func seed(id string) []byte {
	sum := sha256.Sum256([]byte(id))
	return sum[:]
}

func derive(parts ...[]byte) solana.PublicKey {
	addr, _, err := solana.FindProgramAddress(parts, ProgramID)
	if err != nil {
		// Only reachable with more than 16 seeds or seeds over 32 bytes.
		panic(err)
	}
	return addr
}

// EscrowAddress holds the funds of one reservation.
func EscrowAddress(slotID, escrowID string) solana.PublicKey {
	return derive([]byte("escrow"), seed(slotID), seed(escrowID))
}

// AuctionAddress holds English-auction leader funds and sealed-bid deposits.
func AuctionAddress(slotID string) solana.PublicKey {
	return derive([]byte("auction"), seed(slotID))
}

// TicketAuthority is the only key allowed to mint tickets for the slot.
func TicketAuthority(slotID string) solana.PublicKey {
	return derive([]byte("ticket_authority"), seed(slotID))
}

func TicketAddress(slotID, escrowID string) solana.PublicKey {
	return derive([]byte("ticket"), seed(slotID), seed(escrowID))
}
