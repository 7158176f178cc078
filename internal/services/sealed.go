package services

import (
	"context"
	"encoding/binary"

	"slot-settlement/internal/services/vault"
	"slot-settlement/internal/status"
	"slot-settlement/models"
	"slot-settlement/utils"

	"github.com/gagliardetto/solana-go"
	"golang.org/x/crypto/sha3"
)

// SealedCommitment is the hash a bidder commits to:
// keccak256(slotID || bidder || amount as 8 bytes big-endian || salt).
func SealedCommitment(slotID string, bidder solana.PublicKey, amount uint64, salt []byte) [32]byte {
	var amt [8]byte
	binary.BigEndian.PutUint64(amt[:], amount)

	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(slotID))
	h.Write(bidder[:])
	h.Write(amt[:])
	h.Write(salt)

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

type CommitSealedBidInput struct {
	Signer     solana.PublicKey `json:"-"`
	SlotID     string           `json:"slot_id"`
	Commitment [32]byte         `json:"commitment"`
	Deposit    uint64           `json:"deposit"`
}

type RevealSealedBidInput struct {
	Signer solana.PublicKey `json:"-"`
	SlotID string           `json:"slot_id"`
	Amount uint64           `json:"amount"`
	Salt   []byte           `json:"salt"`
}

type RefundDepositInput struct {
	Signer solana.PublicKey `json:"-"`
	SlotID string           `json:"slot_id"`
	Bidder solana.PublicKey `json:"bidder"`
}

// CommitSealedBid records a hidden bid and moves its deposit into the
// auction vault. The deposit caps the amount that can later be revealed.
func (e *Engine) CommitSealedBid(ctx context.Context, in CommitSealedBidInput) (*models.SealedCommit, error) {
	var commit models.SealedCommit
	err := e.execute(ctx, "sealed_commit", in.SlotID, func(c *call) error {
		slot, err := c.slot(in.SlotID)
		if err != nil {
			return err
		}
		if err := slotGuard(slot, models.ModeSealedBid); err != nil {
			return err
		}
		if err := biddingOpen(slot, c.now); err != nil {
			return err
		}
		if in.Deposit == 0 || in.Deposit < slot.Price {
			return status.ErrDepositTooLow
		}
		commits, err := c.commits(slot.ID)
		if err != nil {
			return err
		}
		commit = models.SealedCommit{
			Bidder:     in.Signer,
			Commitment: in.Commitment,
			Deposit:    in.Deposit,
		}
		if err := commits.Add(commit); err != nil {
			return err
		}
		v, err := vault.New(slot.Currency)
		if err != nil {
			return err
		}
		if err := v.Transfer(c.tx, in.Signer, vault.AuctionAddress(slot.ID), in.Deposit); err != nil {
			return err
		}
		if err := c.putCommits(commits); err != nil {
			return err
		}
		idx, _ := commits.Lookup(in.Signer)
		commit = commits.Entries[idx]
		c.emit(models.Event{
			Kind:     models.EventSealedCommitted,
			SlotID:   slot.ID,
			Actor:    in.Signer.String(),
			Amount:   in.Deposit,
			Currency: slot.Currency.Key(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &commit, nil
}

// RevealSealedBid opens a commitment during the reveal window.
func (e *Engine) RevealSealedBid(ctx context.Context, in RevealSealedBidInput) (*models.SealedCommit, error) {
	var commit models.SealedCommit
	err := e.execute(ctx, "sealed_reveal", in.SlotID, func(c *call) error {
		slot, err := c.slot(in.SlotID)
		if err != nil {
			return err
		}
		if err := slotGuard(slot, models.ModeSealedBid); err != nil {
			return err
		}
		if err := openForSale(slot); err != nil {
			return err
		}
		if c.now < slot.AuctionEndTs {
			return status.ErrAuctionNotEnded
		}
		if c.now >= slot.RevealEndsAt() {
			return status.ErrRevealWindowClosed
		}
		commits, err := c.commits(slot.ID)
		if err != nil {
			return err
		}
		idx, ok := commits.Lookup(in.Signer)
		if !ok {
			return status.ErrCommitNotFound
		}
		entry := &commits.Entries[idx]
		if entry.Revealed {
			return status.ErrAlreadyRevealed
		}
		if SealedCommitment(slot.ID, in.Signer, in.Amount, in.Salt) != entry.Commitment {
			return status.ErrCommitmentMismatch
		}
		if in.Amount > entry.Deposit {
			return status.ErrDepositTooLow
		}
		entry.Revealed = true
		entry.RevealedAmount = in.Amount
		commit = *entry
		if err := c.putCommits(commits); err != nil {
			return err
		}
		c.emit(models.Event{
			Kind:     models.EventSealedRevealed,
			SlotID:   slot.ID,
			Actor:    in.Signer.String(),
			Amount:   in.Amount,
			Currency: slot.Currency.Key(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &commit, nil
}

// EndSealedAuction binds the highest revealed bid at or above the reserve
// and locks the slot. Once the reveal window has passed anyone may call it.
// Between the auction end and the reveal deadline only the creator or admin
// may, and only after every commitment has been revealed. Without a
// qualifying reveal the slot closes unsold.
func (e *Engine) EndSealedAuction(ctx context.Context, in SlotInput) (*models.TimeSlot, error) {
	var slot *models.TimeSlot
	err := e.execute(ctx, "sealed_auction_end", in.SlotID, func(c *call) error {
		p, err := c.platform()
		if err != nil {
			return err
		}
		if slot, err = c.slot(in.SlotID); err != nil {
			return err
		}
		if err := slotGuard(slot, models.ModeSealedBid); err != nil {
			return err
		}
		if err := endable(slot); err != nil {
			return err
		}
		if c.now < slot.AuctionEndTs {
			return status.ErrAuctionNotEnded
		}
		commits, err := c.commits(slot.ID)
		if err != nil && !errIsNotFound(err) {
			return err
		}
		if c.now < slot.RevealEndsAt() {
			if !slot.CanManage(in.Signer, p) {
				return status.ErrAuctionNotEnded
			}
			if commits != nil && commits.Unrevealed() > 0 {
				return status.ErrRevealWindowOpen
			}
		}
		if commits == nil {
			return closeUnsold(c, slot, in.Signer)
		}
		idx, ok := commits.Leader(slot.Price)
		if !ok {
			return closeUnsold(c, slot, in.Signer)
		}

		winner := commits.Entries[idx]
		slot.State = models.SlotLocked
		slot.Winner = winner.Bidder
		slot.WinningBid = winner.RevealedAmount
		if err := c.putSlot(slot); err != nil {
			return err
		}
		c.emit(models.Event{
			Kind:     models.EventSealedEnded,
			SlotID:   slot.ID,
			Actor:    winner.Bidder.String(),
			Amount:   winner.RevealedAmount,
			Currency: slot.Currency.Key(),
			Slot:     snapshot(slot),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return slot, nil
}

// SettleSealedAuction pays out the bound winner's bid, returns the rest of
// its deposit and issues the ticket. Anyone may call it.
func (e *Engine) SettleSealedAuction(ctx context.Context, in SlotInput) (*models.Escrow, error) {
	var escrow *models.Escrow
	err := e.execute(ctx, "sealed_auction_settle", in.SlotID, func(c *call) error {
		p, err := c.platform()
		if err != nil {
			return err
		}
		slot, err := c.slot(in.SlotID)
		if err != nil {
			return err
		}
		if err := slotGuard(slot, models.ModeSealedBid); err != nil {
			return err
		}
		switch {
		case slot.State == models.SlotClosed:
			return status.ErrSlotClosed
		case slot.State != models.SlotLocked:
			return status.ErrSlotNotLocked
		case slot.Settled:
			return status.ErrAlreadySettled
		case slot.Winner.IsZero():
			return status.ErrNoWinner
		}

		commits, err := c.commits(slot.ID)
		if err != nil {
			return err
		}
		idx, ok := commits.Lookup(slot.Winner)
		if !ok {
			return status.ErrNoWinner
		}
		winner := &commits.Entries[idx]
		if winner.Refunded {
			return status.ErrAlreadyRefunded
		}
		excess, ok := utils.CheckedSubU64(winner.Deposit, slot.WinningBid)
		if !ok {
			return status.ErrDepositTooLow
		}

		v, err := vault.New(slot.Currency)
		if err != nil {
			return err
		}
		price := slot.WinningBid
		escrow, err = settleSale(c, v, p, slot, slot.Winner, price, vault.AuctionAddress(slot.ID))
		if err != nil {
			return err
		}
		if err := v.Transfer(c.tx, vault.AuctionAddress(slot.ID), winner.Bidder, excess); err != nil {
			return err
		}
		winner.Refunded = true
		if err := c.putCommits(commits); err != nil {
			return err
		}
		c.emit(models.Event{
			Kind:     models.EventSettled,
			SlotID:   slot.ID,
			EscrowID: escrow.ID,
			Actor:    winner.Bidder.String(),
			Amount:   price,
			Currency: slot.Currency.Key(),
			Slot:     snapshot(slot),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return escrow, nil
}

// RefundSealedDeposit returns a losing or unrevealed bidder's deposit once
// bidding is over. Anyone may call it for any bidder. A bound winner's
// deposit is released only by settlement or by closing the slot.
func (e *Engine) RefundSealedDeposit(ctx context.Context, in RefundDepositInput) (*models.SealedCommit, error) {
	var commit models.SealedCommit
	err := e.execute(ctx, "sealed_refund_deposit", in.SlotID, func(c *call) error {
		slot, err := c.slot(in.SlotID)
		if err != nil {
			return err
		}
		if slot.Frozen {
			return status.ErrFrozen
		}
		switch slot.Mode {
		case models.ModeSealedBid:
		case models.ModeStable, models.ModeEnglishAuction:
			return status.ErrModeMismatch
		default:
			return status.ErrUnknownMode
		}
		if slot.State == models.SlotOpen {
			return status.ErrAuctionNotEnded
		}

		commits, err := c.commits(slot.ID)
		if err != nil {
			return err
		}
		idx, ok := commits.Lookup(in.Bidder)
		if !ok {
			return status.ErrCommitNotFound
		}
		entry := &commits.Entries[idx]
		if entry.Refunded {
			return status.ErrAlreadyRefunded
		}
		if slot.State == models.SlotLocked && !slot.Settled && slot.Winner.Equals(entry.Bidder) {
			return status.ErrBuyerAlreadyBound
		}

		v, err := vault.New(slot.Currency)
		if err != nil {
			return err
		}
		if err := v.Transfer(c.tx, vault.AuctionAddress(slot.ID), entry.Bidder, entry.Deposit); err != nil {
			return err
		}
		entry.Refunded = true
		commit = *entry
		if err := c.putCommits(commits); err != nil {
			return err
		}
		c.emit(models.Event{
			Kind:     models.EventDepositRefunded,
			SlotID:   slot.ID,
			Actor:    entry.Bidder.String(),
			Amount:   entry.Deposit,
			Currency: slot.Currency.Key(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &commit, nil
}
