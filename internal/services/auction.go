package services

import (
	"context"

	"slot-settlement/internal/fees"
	"slot-settlement/internal/services/vault"
	"slot-settlement/internal/status"
	"slot-settlement/models"
	"slot-settlement/utils"

	"github.com/gagliardetto/solana-go"
)

type PlaceBidInput struct {
	Signer     solana.PublicKey `json:"-"`
	SlotID     string           `json:"slot_id"`
	Amount     uint64           `json:"amount"`
	MaxAutoBid *uint64          `json:"max_auto_bid,omitempty"`
}

type RegisterAutoBidInput struct {
	Signer     solana.PublicKey `json:"-"`
	SlotID     string           `json:"slot_id"`
	MaxAutoBid uint64           `json:"max_auto_bid"`
}

type SlotInput struct {
	Signer solana.PublicKey `json:"-"`
	SlotID string           `json:"slot_id"`
}

type UpdateAuctionEndInput struct {
	Signer   solana.PublicKey `json:"-"`
	SlotID   string           `json:"slot_id"`
	NewEndTs int64            `json:"new_end_ts"`
}

// slotGuard re-checks the auction invariants every auction and buy-now
// instruction depends on. Frozen is checked first.
func slotGuard(s *models.TimeSlot, modes ...models.SaleMode) error {
	if s.Frozen {
		return status.ErrFrozen
	}
	switch s.Mode {
	case models.ModeStable, models.ModeEnglishAuction, models.ModeSealedBid:
	default:
		return status.ErrUnknownMode
	}
	allowed := false
	for _, m := range modes {
		if s.Mode == m {
			allowed = true
		}
	}
	if !allowed {
		return status.ErrModeMismatch
	}
	return s.CheckModeCapacity()
}

// biddingOpen rejects bids against a slot that is not open or whose auction
// has ended.
func biddingOpen(s *models.TimeSlot, now int64) error {
	if err := openForSale(s); err != nil {
		return err
	}
	if now >= s.AuctionEndTs {
		return status.ErrAuctionEnded
	}
	return nil
}

// contender is one party in a proxy resolution. cap is the most it can pay
// right now: its ceiling limited by its wallet plus any deposit it already
// has in the auction vault.
type contender struct {
	bidder solana.PublicKey
	cap    uint64
	seq    uint64
}

func (a contender) beats(b contender) bool {
	if a.cap != b.cap {
		return a.cap > b.cap
	}
	return a.seq < b.seq
}

// available is what bidder can commit: its wallet balance plus its current
// deposit when it already leads.
func available(c *call, v vault.Vault, book *models.BidBook, bidder solana.PublicKey) (uint64, error) {
	bal, err := v.Balance(c.tx, bidder)
	if err != nil {
		return 0, err
	}
	if book.HasLeader() && book.HighestBidder.Equals(bidder) {
		bal = utils.SatAddU64(bal, book.HighestBid)
	}
	return bal, nil
}

// resolve determines the leader after a manual bid. Among the manual bidder
// and every auto-bidder whose funded ceiling clears the next minimum, the
// highest cap wins (earliest registration on ties). The price follows the
// second-highest plus increment rule: the runner-up's cap plus one
// increment, capped at the winner's own cap. A step-by-step exchange of
// proxy bids can stop one increment lower; this rule settles in one pass.
func resolve(c *call, v vault.Vault, slot *models.TimeSlot, book *models.BidBook, autos *models.AutoBidStore, bidder solana.PublicKey, amount uint64) (contender, uint64, error) {
	avail, err := available(c, v, book, bidder)
	if err != nil {
		return contender{}, 0, err
	}
	if avail < amount {
		return contender{}, 0, status.ErrInsufficientFunds
	}

	manual := contender{bidder: bidder, cap: amount, seq: ^uint64(0)}
	var challengers []contender
	if autos != nil {
		if own, ok := autos.Find(bidder); ok {
			manual.seq = own.Seq
			manual.cap = max(amount, min(own.Ceiling, avail))
		}

		floor, ok := utils.CheckedAddU64(amount, slot.MinIncrement)
		if ok {
			for _, a := range autos.Active() {
				if a.Bidder.Equals(bidder) {
					continue
				}
				funds, err := available(c, v, book, a.Bidder)
				if err != nil {
					return contender{}, 0, err
				}
				if funded := min(a.Ceiling, funds); funded >= floor {
					challengers = append(challengers, contender{bidder: a.Bidder, cap: funded, seq: a.Seq})
				}
			}
		}
	}

	top, second := manual, contender{}
	hasSecond := false
	for _, ch := range challengers {
		switch {
		case ch.beats(top):
			top, second, hasSecond = ch, top, true
		case !hasSecond || ch.beats(second):
			second, hasSecond = ch, true
		}
	}

	if !hasSecond {
		return top, amount, nil
	}
	price := min(top.cap, utils.SatAddU64(second.cap, slot.MinIncrement))
	if top.bidder.Equals(bidder) {
		price = max(price, amount)
	}
	return top, price, nil
}

// PlaceBid places a manual bid, optionally registering a proxy ceiling, and
// resolves proxy bidding. A displaced leader's deposit is queued for refund
// rather than paid here.
func (e *Engine) PlaceBid(ctx context.Context, in PlaceBidInput) (*models.BidBook, error) {
	var book *models.BidBook
	var depth uint32
	err := e.execute(ctx, "bid_place", in.SlotID, func(c *call) error {
		slot, err := c.slot(in.SlotID)
		if err != nil {
			return err
		}
		if err := slotGuard(slot, models.ModeEnglishAuction); err != nil {
			return err
		}
		if err := biddingOpen(slot, c.now); err != nil {
			return err
		}
		if book, err = c.bidBook(slot.ID); err != nil {
			return err
		}
		nextMin, err := book.NextMin(slot.MinIncrement)
		if err != nil {
			return err
		}
		if in.Amount < nextMin {
			return status.ErrInvalidBidIncrement
		}

		queue, err := c.refundQueue(slot.ID)
		if err != nil {
			return err
		}
		autos, err := c.autoBids(slot.ID)
		if err != nil && !errIsNotFound(err) {
			return err
		}
		if in.MaxAutoBid != nil {
			if autos == nil {
				return status.ErrStoreNotInitialized
			}
			if *in.MaxAutoBid < in.Amount {
				return status.ErrInvalidAutoBid
			}
			if err := autos.Upsert(in.Signer, *in.MaxAutoBid); err != nil {
				return err
			}
			if err := c.putAutoBids(autos); err != nil {
				return err
			}
		}

		v, err := vault.New(slot.Currency)
		if err != nil {
			return err
		}
		winner, price, err := resolve(c, v, slot, book, autos, in.Signer, in.Amount)
		if err != nil {
			return err
		}
		if err := takeLead(c, v, slot, book, queue, winner.bidder, price); err != nil {
			return err
		}
		if err := c.putBidBook(book); err != nil {
			return err
		}
		if err := c.putRefundQueue(queue); err != nil {
			return err
		}
		depth = queue.Count
		c.emit(models.Event{
			Kind:     models.EventBidPlaced,
			SlotID:   slot.ID,
			Actor:    winner.bidder.String(),
			Amount:   price,
			Currency: slot.Currency.Key(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.metrics.SetRefundQueueDepth(in.SlotID, depth)
	return book, nil
}

// takeLead makes bidder the leader at price. A leader raising its own bid
// pays only the difference; otherwise the old leader's deposit is queued.
func takeLead(c *call, v vault.Vault, slot *models.TimeSlot, book *models.BidBook, queue *models.RefundQueue, bidder solana.PublicKey, price uint64) error {
	escrow := vault.AuctionAddress(slot.ID)
	if book.HasLeader() && book.HighestBidder.Equals(bidder) {
		if err := v.Transfer(c.tx, bidder, escrow, price-book.HighestBid); err != nil {
			return err
		}
		return book.Raise(bidder, price)
	}

	if book.HasLeader() {
		entry := models.RefundEntry{Bidder: book.HighestBidder, Amount: book.HighestBid}
		if err := queue.Push(entry); err != nil {
			return err
		}
		c.emit(models.Event{
			Kind:     models.EventRefundQueued,
			SlotID:   slot.ID,
			Actor:    entry.Bidder.String(),
			Amount:   entry.Amount,
			Currency: slot.Currency.Key(),
		})
	}
	if err := v.Transfer(c.tx, bidder, escrow, price); err != nil {
		return err
	}
	return book.Raise(bidder, price)
}

// RegisterAutoBid records a proxy ceiling without placing a bid.
func (e *Engine) RegisterAutoBid(ctx context.Context, in RegisterAutoBidInput) (*models.AutoBidStore, error) {
	var autos *models.AutoBidStore
	err := e.execute(ctx, "register_auto_bid", in.SlotID, func(c *call) error {
		slot, err := c.slot(in.SlotID)
		if err != nil {
			return err
		}
		if err := slotGuard(slot, models.ModeEnglishAuction); err != nil {
			return err
		}
		if err := biddingOpen(slot, c.now); err != nil {
			return err
		}
		book, err := c.bidBook(slot.ID)
		if err != nil {
			return err
		}
		nextMin, err := book.NextMin(slot.MinIncrement)
		if err != nil {
			return err
		}
		if in.MaxAutoBid < nextMin {
			return status.ErrInvalidAutoBid
		}
		if autos, err = c.autoBids(slot.ID); err != nil {
			return err
		}
		if err := autos.Upsert(in.Signer, in.MaxAutoBid); err != nil {
			return err
		}
		return c.putAutoBids(autos)
	})
	if err != nil {
		return nil, err
	}
	return autos, nil
}

// RefundOutbid pays exactly one queued refund, oldest first. Anyone may call
// it; each call retires one entry.
func (e *Engine) RefundOutbid(ctx context.Context, in SlotInput) (*models.RefundEntry, error) {
	var entry models.RefundEntry
	var depth uint32
	err := e.execute(ctx, "bid_outbid_refund", in.SlotID, func(c *call) error {
		slot, err := c.slot(in.SlotID)
		if err != nil {
			return err
		}
		if slot.Frozen {
			return status.ErrFrozen
		}
		queue, err := c.refundQueue(slot.ID)
		if err != nil {
			return err
		}
		if entry, err = queue.Pop(); err != nil {
			return err
		}
		v, err := vault.New(slot.Currency)
		if err != nil {
			return err
		}
		if err := v.Transfer(c.tx, vault.AuctionAddress(slot.ID), entry.Bidder, entry.Amount); err != nil {
			return err
		}
		if err := c.putRefundQueue(queue); err != nil {
			return err
		}
		depth = queue.Count
		c.emit(models.Event{
			Kind:     models.EventRefundPaid,
			SlotID:   slot.ID,
			Actor:    entry.Bidder.String(),
			Amount:   entry.Amount,
			Currency: slot.Currency.Key(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.metrics.SetRefundQueueDepth(in.SlotID, depth)
	return &entry, nil
}

// EndAuction locks the slot and settles the leader's bid. After the end
// timestamp anyone may call it. Before it, the creator or admin may end an
// auction that has no bids yet; once a bid stands the advertised end holds.
// An auction without bids closes with no sale and returns a nil escrow.
func (e *Engine) EndAuction(ctx context.Context, in SlotInput) (*models.Escrow, error) {
	var escrow *models.Escrow
	err := e.execute(ctx, "auction_end", in.SlotID, func(c *call) error {
		p, err := c.platform()
		if err != nil {
			return err
		}
		slot, err := c.slot(in.SlotID)
		if err != nil {
			return err
		}
		if err := slotGuard(slot, models.ModeEnglishAuction); err != nil {
			return err
		}
		if err := endable(slot); err != nil {
			return err
		}
		book, err := c.bidBook(slot.ID)
		if err != nil {
			return err
		}
		if c.now < slot.AuctionEndTs && (book.HasLeader() || !slot.CanManage(in.Signer, p)) {
			return status.ErrAuctionNotEnded
		}

		if !book.HasLeader() {
			return closeUnsold(c, slot, in.Signer)
		}

		v, err := vault.New(slot.Currency)
		if err != nil {
			return err
		}
		escrow, err = settleSale(c, v, p, slot, book.HighestBidder, book.HighestBid, vault.AuctionAddress(slot.ID))
		if err != nil {
			return err
		}
		c.emit(models.Event{
			Kind:     models.EventAuctionEnded,
			SlotID:   slot.ID,
			EscrowID: escrow.ID,
			Actor:    book.HighestBidder.String(),
			Amount:   book.HighestBid,
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

func endable(s *models.TimeSlot) error {
	switch s.State {
	case models.SlotOpen:
		return nil
	case models.SlotClosed:
		return status.ErrSlotClosed
	default:
		return status.ErrAlreadySettled
	}
}

func closeUnsold(c *call, slot *models.TimeSlot, actor solana.PublicKey) error {
	slot.State = models.SlotClosed
	if err := c.putSlot(slot); err != nil {
		return err
	}
	c.emit(models.Event{
		Kind:   models.EventSlotClosed,
		SlotID: slot.ID,
		Actor:  actor.String(),
		Slot:   snapshot(slot),
	})
	return nil
}

// settleSale is the terminal step shared by auction end, buy-now and sealed
// settle: price moves from source into a new escrow, is split, and the
// winner's ticket is issued. The slot ends up locked with its unit sold.
func settleSale(c *call, v vault.Vault, p *models.Platform, slot *models.TimeSlot, buyer solana.PublicKey, price uint64, source solana.PublicKey) (*models.Escrow, error) {
	if err := slot.Reserve(); err != nil {
		return nil, err
	}
	creator, err := c.creator(slot.Creator)
	if err != nil {
		return nil, err
	}

	id := slot.NextEscrowID()
	escrow := &models.Escrow{
		ID:        id,
		SlotID:    slot.ID,
		Vault:     vault.EscrowAddress(slot.ID, id),
		Amount:    price,
		Phase:     models.PhaseFunded,
		CreatedAt: c.now,
	}
	if err := escrow.BindBuyer(buyer); err != nil {
		return nil, err
	}
	if err := v.Transfer(c.tx, source, escrow.Vault, price); err != nil {
		return nil, err
	}

	split := fees.SplitProceeds(price, fees.EffectiveFeeBps(p, creator), p.DisputeHoldBps)
	if err := payOut(c, v, p, slot, escrow.Vault, split); err != nil {
		return nil, err
	}
	escrow.Fee, escrow.Held, escrow.SellerPayout = split.Fee, split.Held, split.SellerPayout
	escrow.Phase = models.PhaseHeld
	escrow.SettledAt = c.now
	escrow.HoldReleaseAt = c.now + p.DisputeWindowSecs

	slot.State = models.SlotLocked
	slot.Winner = buyer
	slot.WinningBid = price
	slot.Settled = true

	if _, err := issueTicket(c, slot, escrow); err != nil {
		return nil, err
	}
	if err := c.putEscrow(escrow); err != nil {
		return nil, err
	}
	if err := c.putSlot(slot); err != nil {
		return nil, err
	}
	return escrow, nil
}

// UpdateAuctionEnd moves the auction end. Once bids or commitments exist
// it may only be extended. Creator or admin.
func (e *Engine) UpdateAuctionEnd(ctx context.Context, in UpdateAuctionEndInput) (*models.TimeSlot, error) {
	var slot *models.TimeSlot
	err := e.execute(ctx, "auction_update_end", in.SlotID, func(c *call) error {
		p, err := c.platform()
		if err != nil {
			return err
		}
		if slot, err = c.slot(in.SlotID); err != nil {
			return err
		}
		if err := slotGuard(slot, models.ModeEnglishAuction, models.ModeSealedBid); err != nil {
			return err
		}
		if !slot.CanManage(in.Signer, p) {
			return status.ErrUnauthorizedCaller
		}
		if err := biddingOpen(slot, c.now); err != nil {
			return err
		}
		if in.NewEndTs <= c.now || in.NewEndTs > slot.StartTs {
			return status.ErrInvalidAuctionEnd
		}

		var committed bool
		switch slot.Mode {
		case models.ModeEnglishAuction:
			book, err := c.bidBook(slot.ID)
			if err != nil {
				return err
			}
			committed = book.BidCount > 0
		case models.ModeSealedBid:
			commits, err := c.commits(slot.ID)
			if err != nil && !errIsNotFound(err) {
				return err
			}
			committed = commits != nil && commits.Count > 0
			if slot.RevealWindowSecs > 0 && in.NewEndTs+slot.RevealWindowSecs > slot.StartTs {
				return status.ErrInvalidAuctionEnd
			}
		}
		if committed && in.NewEndTs < slot.AuctionEndTs {
			return status.ErrInvalidAuctionEnd
		}

		slot.AuctionEndTs = in.NewEndTs
		if err := c.putSlot(slot); err != nil {
			return err
		}
		c.emit(models.Event{
			Kind:   models.EventAuctionExtended,
			SlotID: slot.ID,
			Actor:  in.Signer.String(),
			Slot:   snapshot(slot),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return slot, nil
}

// BuyNow sells the slot immediately at its buy-now price, bypassing the bid
// book. A current English leader is queued for refund.
func (e *Engine) BuyNow(ctx context.Context, in SlotInput) (*models.Escrow, error) {
	var escrow *models.Escrow
	var depth uint32
	err := e.execute(ctx, "buy_now", in.SlotID, func(c *call) error {
		p, err := c.platform()
		if err != nil {
			return err
		}
		slot, err := c.slot(in.SlotID)
		if err != nil {
			return err
		}
		if err := slotGuard(slot, models.ModeEnglishAuction, models.ModeSealedBid); err != nil {
			return err
		}
		if err := biddingOpen(slot, c.now); err != nil {
			return err
		}
		if slot.BuyNowPrice == 0 {
			return status.ErrBuyNowDisabled
		}

		if slot.Mode == models.ModeEnglishAuction {
			book, err := c.bidBook(slot.ID)
			if err != nil {
				return err
			}
			if book.HasLeader() {
				queue, err := c.refundQueue(slot.ID)
				if err != nil {
					return err
				}
				entry := models.RefundEntry{Bidder: book.HighestBidder, Amount: book.HighestBid}
				if err := queue.Push(entry); err != nil {
					return err
				}
				book.ClearLeader()
				if err := c.putRefundQueue(queue); err != nil {
					return err
				}
				if err := c.putBidBook(book); err != nil {
					return err
				}
				depth = queue.Count
				c.emit(models.Event{
					Kind:     models.EventRefundQueued,
					SlotID:   slot.ID,
					Actor:    entry.Bidder.String(),
					Amount:   entry.Amount,
					Currency: slot.Currency.Key(),
				})
			}
		}

		v, err := vault.New(slot.Currency)
		if err != nil {
			return err
		}
		escrow, err = settleSale(c, v, p, slot, in.Signer, slot.BuyNowPrice, in.Signer)
		if err != nil {
			return err
		}
		c.emit(models.Event{
			Kind:     models.EventBuyNow,
			SlotID:   slot.ID,
			EscrowID: escrow.ID,
			Actor:    in.Signer.String(),
			Amount:   slot.BuyNowPrice,
			Currency: slot.Currency.Key(),
			Slot:     snapshot(slot),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if depth > 0 {
		e.metrics.SetRefundQueueDepth(in.SlotID, depth)
	}
	return escrow, nil
}
