package status

import "errors"

// Reason is the type of every sentinel below, so callers can tell an
// instruction rejection apart from a storage or transport failure.
type Reason struct {
	msg string
}

func (r *Reason) Error() string { return r.msg }

func reason(msg string) error { return &Reason{msg: msg} }

// IsRejection reports whether err carries one of the reason codes.
func IsRejection(err error) bool {
	var r *Reason
	return errors.As(err, &r)
}

// Reason codes returned by engine instructions. Every one of them is raised
// before the instruction's staged writes are committed.
var (
	ErrCapacityExhausted     = reason("slot: capacity exhausted")
	ErrModeCapacityMismatch  = reason("slot: capacity/mode mismatch")
	ErrStoreCapacityExceeded = reason("store: capacity exceeded")
	ErrFrozen                = reason("slot: frozen")
	ErrUnauthorizedCaller    = reason("auth: unauthorized caller")
	ErrInvalidBidIncrement   = reason("bid: below required minimum increment")
)

var (
	ErrPlatformNotInitialized = reason("platform: not initialized")
	ErrPlatformInitialized    = reason("platform: already initialized")
	ErrVaultsCommingled       = reason("platform: fee vault and dispute-hold vault must differ")
	ErrInvalidFeeConfig       = reason("platform: invalid fee configuration")

	ErrCreatorNotFound    = reason("creator: profile not found")
	ErrCreatorRegistered  = reason("creator: already registered")
	ErrMintNotRegistered  = reason("mint: not registered")
	ErrMintRegistered     = reason("mint: already registered")
	ErrDecimalsMismatch   = reason("mint: decimals mismatch")
	ErrInsufficientFunds  = reason("account: insufficient funds")
	ErrInvalidAmount      = reason("account: invalid amount")
	ErrArithmeticOverflow = reason("math: arithmetic overflow")

	ErrSlotNotFound           = reason("slot: not found")
	ErrSlotNotOpen            = reason("slot: not open")
	ErrSlotClosed             = reason("slot: closed")
	ErrSlotNotLocked          = reason("slot: not locked")
	ErrInvalidCapacity        = reason("slot: invalid capacity")
	ErrInvalidWindow          = reason("slot: invalid time window")
	ErrInvalidPrice           = reason("slot: invalid price")
	ErrModeMismatch           = reason("slot: instruction not valid for sale mode")
	ErrUnknownMode            = reason("slot: unknown sale mode")
	ErrDenominationMismatch   = reason("slot: denomination mismatch")
	ErrStoreNotInitialized    = reason("store: not initialized")
	ErrStoreInitialized       = reason("store: already initialized")
	ErrInvalidStoreCapacity   = reason("store: invalid max entries")
	ErrEscrowNotFound         = reason("escrow: not found")
	ErrEscrowNotFunded        = reason("escrow: not in funded phase")
	ErrAlreadySettled         = reason("escrow: already settled")
	ErrBuyerAlreadyBound      = reason("escrow: buyer already bound")
	ErrHoldNotReleasable      = reason("escrow: dispute hold not releasable")
	ErrInvalidAutoBid         = reason("bid: auto-bid ceiling below bid")
	ErrAuctionEnded           = reason("auction: ended")
	ErrAuctionNotEnded        = reason("auction: not ended")
	ErrInvalidAuctionEnd      = reason("auction: invalid end timestamp")
	ErrBuyNowDisabled         = reason("auction: buy-now disabled")
	ErrRefundQueueEmpty       = reason("refund: queue empty")
	ErrDuplicateCommit        = reason("sealed: bidder already committed")
	ErrCommitNotFound         = reason("sealed: commitment not found")
	ErrCommitmentMismatch     = reason("sealed: commitment mismatch")
	ErrAlreadyRevealed        = reason("sealed: already revealed")
	ErrRevealWindowClosed     = reason("sealed: reveal window closed")
	ErrRevealWindowOpen       = reason("sealed: bids still unrevealed")
	ErrDepositTooLow          = reason("sealed: deposit too low")
	ErrNoWinner               = reason("sealed: no winner bound")
	ErrAlreadyRefunded        = reason("sealed: deposit already refunded")
	ErrTicketNotFound         = reason("ticket: not found")
	ErrTicketAlreadyIssued    = reason("ticket: already issued")
	ErrInvalidMintAuthority   = reason("ticket: invalid mint authority")
	ErrAlreadyCheckedIn       = reason("ticket: already checked in")
	ErrConcurrentModification = reason("ledger: concurrent modification")
	ErrInvalidSignature       = reason("auth: invalid signature")
	ErrReplayedInstruction    = reason("auth: instruction nonce already used")
)
