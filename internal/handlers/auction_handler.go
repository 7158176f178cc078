package handlers

import (
	"context"
	"encoding/hex"
	"fmt"

	"slot-settlement/internal/services"
	"slot-settlement/internal/status"
	"slot-settlement/models"

	"github.com/gagliardetto/solana-go"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/router"
)

type AuctionHandler struct {
	engine *services.Engine
}

func NewAuctionHandler(engine *services.Engine) *AuctionHandler {
	return &AuctionHandler{engine: engine}
}

// Commitments and salts travel hex encoded.
type commitRequest struct {
	Signer     solana.PublicKey `json:"-"`
	SlotID     string           `json:"slot_id"`
	Commitment string           `json:"commitment"`
	Deposit    uint64           `json:"deposit"`
}

type revealRequest struct {
	Signer solana.PublicKey `json:"-"`
	SlotID string           `json:"slot_id"`
	Amount uint64           `json:"amount"`
	Salt   string           `json:"salt"`
}

func (h *AuctionHandler) Register(g *router.RouterGroup[*core.RequestEvent]) {
	g.POST("/bids/place", instruction(h.engine.PlaceBid, func(in *services.PlaceBidInput, s solana.PublicKey) { in.Signer = s }))
	g.POST("/bids/auto", instruction(h.engine.RegisterAutoBid, func(in *services.RegisterAutoBidInput, s solana.PublicKey) { in.Signer = s }))
	g.POST("/bids/refund", instruction(h.engine.RefundOutbid, signSlot))
	g.POST("/auctions/end", instruction(h.engine.EndAuction, signSlot))
	g.POST("/auctions/update-end", instruction(h.engine.UpdateAuctionEnd, func(in *services.UpdateAuctionEndInput, s solana.PublicKey) { in.Signer = s }))
	g.POST("/auctions/buy-now", instruction(h.engine.BuyNow, signSlot))

	g.POST("/sealed/commit", instruction(h.commit, func(in *commitRequest, s solana.PublicKey) { in.Signer = s }))
	g.POST("/sealed/reveal", instruction(h.reveal, func(in *revealRequest, s solana.PublicKey) { in.Signer = s }))
	g.POST("/sealed/end", instruction(h.engine.EndSealedAuction, signSlot))
	g.POST("/sealed/settle", instruction(h.engine.SettleSealedAuction, signSlot))
	g.POST("/sealed/refund-deposit", instruction(h.engine.RefundSealedDeposit, func(in *services.RefundDepositInput, s solana.PublicKey) { in.Signer = s }))
}

func (h *AuctionHandler) commit(ctx context.Context, in commitRequest) (*models.SealedCommit, error) {
	raw, err := hex.DecodeString(in.Commitment)
	if err != nil || len(raw) != 32 {
		return nil, fmt.Errorf("%w: commitment must be 32 hex-encoded bytes", status.ErrCommitmentMismatch)
	}
	var commitment [32]byte
	copy(commitment[:], raw)

	return h.engine.CommitSealedBid(ctx, services.CommitSealedBidInput{
		Signer:     in.Signer,
		SlotID:     in.SlotID,
		Commitment: commitment,
		Deposit:    in.Deposit,
	})
}

func (h *AuctionHandler) reveal(ctx context.Context, in revealRequest) (*models.SealedCommit, error) {
	salt, err := hex.DecodeString(in.Salt)
	if err != nil {
		return nil, fmt.Errorf("%w: salt must be hex encoded", status.ErrCommitmentMismatch)
	}
	return h.engine.RevealSealedBid(ctx, services.RevealSealedBidInput{
		Signer: in.Signer,
		SlotID: in.SlotID,
		Amount: in.Amount,
		Salt:   salt,
	})
}
