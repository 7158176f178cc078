package services

import (
	"context"
	"errors"

	"slot-settlement/internal/ledger"
	"slot-settlement/internal/status"
	"slot-settlement/models"

	"github.com/gagliardetto/solana-go"
)

type CreateSlotInput struct {
	Signer   solana.PublicKey    `json:"-"`
	Mode     models.SaleMode     `json:"mode"`
	Currency models.Denomination `json:"currency"`
	Capacity uint32              `json:"capacity"`

	// Price is the fixed price, the starting price or the sealed-bid reserve.
	Price        uint64 `json:"price"`
	MinIncrement uint64 `json:"min_increment"`
	BuyNowPrice  uint64 `json:"buy_now_price"`

	StartTs          int64 `json:"start_ts"`
	EndTs            int64 `json:"end_ts"`
	AuctionEndTs     int64 `json:"auction_end_ts"`
	RevealWindowSecs int64 `json:"reveal_window_secs"`
}

// CreateTimeSlot registers a new slot in the open state. English auctions
// also get their bid book, seeded with the starting price.
func (e *Engine) CreateTimeSlot(ctx context.Context, in CreateSlotInput) (*models.TimeSlot, error) {
	slot := &models.TimeSlot{
		ID:            e.newID(),
		Creator:       in.Signer,
		StartTs:       in.StartTs,
		EndTs:         in.EndTs,
		Mode:          in.Mode,
		Currency:      in.Currency,
		Price:         in.Price,
		MinIncrement:  in.MinIncrement,
		BuyNowPrice:   in.BuyNowPrice,
		CapacityTotal: in.Capacity,
		State:         models.SlotOpen,
		ActiveEscrows: []string{},
	}

	err := e.execute(ctx, "create_time_slot", slot.ID, func(c *call) error {
		p, err := c.platform()
		if err != nil {
			return err
		}
		if _, err := c.creator(in.Signer); err != nil {
			return err
		}

		if err := slot.CheckModeCapacity(); err != nil {
			return err
		}
		if slot.CapacityTotal == 0 || slot.CapacityTotal > p.MaxSlotCapacity {
			return status.ErrInvalidCapacity
		}
		if slot.StartTs >= slot.EndTs || slot.EndTs <= c.now {
			return status.ErrInvalidWindow
		}
		if err := checkDenomination(c, slot.Currency); err != nil {
			return err
		}

		switch slot.Mode {
		case models.ModeStable:
			if slot.Price == 0 {
				return status.ErrInvalidPrice
			}
			if slot.BuyNowPrice != 0 {
				return status.ErrModeMismatch
			}
		case models.ModeEnglishAuction:
			if slot.MinIncrement == 0 {
				return status.ErrInvalidBidIncrement
			}
			if err := checkAuctionEnd(slot, in.AuctionEndTs, c.now); err != nil {
				return err
			}
			if slot.BuyNowPrice != 0 && slot.BuyNowPrice <= slot.Price {
				return status.ErrInvalidPrice
			}
		case models.ModeSealedBid:
			if err := checkAuctionEnd(slot, in.AuctionEndTs, c.now); err != nil {
				return err
			}
			slot.RevealWindowSecs = in.RevealWindowSecs
			if slot.RevealWindowSecs == 0 {
				slot.RevealWindowSecs = p.DefaultRevealWindowSecs
			}
			if slot.RevealWindowSecs < 0 || slot.RevealEndsAt() > slot.StartTs {
				return status.ErrInvalidWindow
			}
			if slot.BuyNowPrice != 0 && slot.BuyNowPrice <= slot.Price {
				return status.ErrInvalidPrice
			}
		default:
			return status.ErrUnknownMode
		}

		slot.CreatedAt = c.now
		if err := c.putSlot(slot); err != nil {
			return err
		}
		if slot.Mode == models.ModeEnglishAuction {
			if err := c.putBidBook(&models.BidBook{SlotID: slot.ID, HighestBid: slot.Price}); err != nil {
				return err
			}
		}
		c.emit(models.Event{
			Kind:     models.EventSlotCreated,
			SlotID:   slot.ID,
			Actor:    in.Signer.String(),
			Amount:   slot.Price,
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

func checkAuctionEnd(slot *models.TimeSlot, end, now int64) error {
	if end <= now || end > slot.StartTs {
		return status.ErrInvalidAuctionEnd
	}
	slot.AuctionEndTs = end
	return nil
}

func checkDenomination(c *call, den models.Denomination) error {
	switch den.Kind {
	case models.CurrencyNative:
		if den.Decimals != models.NativeDecimals {
			return status.ErrDecimalsMismatch
		}
		return nil
	case models.CurrencyToken:
		mint, err := load[models.Mint](c, ledger.MintKey(den.Mint), status.ErrMintNotRegistered)
		if err != nil {
			return err
		}
		if mint.Decimals != den.Decimals {
			return status.ErrDecimalsMismatch
		}
		return nil
	default:
		return status.ErrDenominationMismatch
	}
}

type InitStoreInput struct {
	Signer     solana.PublicKey `json:"-"`
	SlotID     string           `json:"slot_id"`
	MaxEntries uint32           `json:"max_entries"`
}

// storeInit holds what the three bounded-store initializers share.
func (e *Engine) storeInit(ctx context.Context, instruction string, in InitStoreInput, mode models.SaleMode, key string, create func(c *call) error) error {
	return e.execute(ctx, instruction, in.SlotID, func(c *call) error {
		p, err := c.platform()
		if err != nil {
			return err
		}
		slot, err := c.slot(in.SlotID)
		if err != nil {
			return err
		}
		if !slot.CanManage(in.Signer, p) {
			return status.ErrUnauthorizedCaller
		}
		if err := openForSale(slot); err != nil {
			return err
		}
		if slot.Mode != mode {
			return status.ErrModeMismatch
		}
		if in.MaxEntries == 0 || in.MaxEntries > p.MaxStoreEntries {
			return status.ErrInvalidStoreCapacity
		}
		if ok, err := c.tx.Exists(key); err != nil {
			return err
		} else if ok {
			return status.ErrStoreInitialized
		}
		return create(c)
	})
}

// InitRefundQueue allocates the slot's outbid refund queue.
func (e *Engine) InitRefundQueue(ctx context.Context, in InitStoreInput) (*models.RefundQueue, error) {
	var q *models.RefundQueue
	err := e.storeInit(ctx, "init_refund_queue", in, models.ModeEnglishAuction, ledger.RefundQueueKey(in.SlotID), func(c *call) error {
		var err error
		if q, err = models.NewRefundQueue(in.SlotID, in.MaxEntries); err != nil {
			return err
		}
		return c.putRefundQueue(q)
	})
	if err != nil {
		return nil, err
	}
	e.metrics.SetRefundQueueDepth(in.SlotID, 0)
	return q, nil
}

// InitAutoBidStore allocates the slot's proxy-bid ceilings.
func (e *Engine) InitAutoBidStore(ctx context.Context, in InitStoreInput) (*models.AutoBidStore, error) {
	var s *models.AutoBidStore
	err := e.storeInit(ctx, "init_auto_bid_store", in, models.ModeEnglishAuction, ledger.AutoBidStoreKey(in.SlotID), func(c *call) error {
		var err error
		if s, err = models.NewAutoBidStore(in.SlotID, in.MaxEntries); err != nil {
			return err
		}
		return c.putAutoBids(s)
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// InitCommitStore allocates the slot's sealed-bid commitments.
func (e *Engine) InitCommitStore(ctx context.Context, in InitStoreInput) (*models.CommitStore, error) {
	var s *models.CommitStore
	err := e.storeInit(ctx, "init_commit_store", in, models.ModeSealedBid, ledger.CommitStoreKey(in.SlotID), func(c *call) error {
		var err error
		if s, err = models.NewCommitStore(in.SlotID, in.MaxEntries); err != nil {
			return err
		}
		return c.putCommits(s)
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// errIsNotFound reports whether err means a record is absent.
func errIsNotFound(err error) bool {
	return errors.Is(err, status.ErrStoreNotInitialized) || errors.Is(err, ledger.ErrNotFound)
}
