package handlers

import (
	"context"

	"slot-settlement/internal/services"
	"slot-settlement/models"

	"github.com/gagliardetto/solana-go"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/router"
)

type AdminHandler struct {
	engine *services.Engine
}

func NewAdminHandler(engine *services.Engine) *AdminHandler {
	return &AdminHandler{engine: engine}
}

type platformRequest struct {
	Signer solana.PublicKey `json:"-"`
	models.Platform
}

type feeOverrideRequest struct {
	Signer  solana.PublicKey `json:"-"`
	Creator solana.PublicKey `json:"creator"`
	FeeBps  *uint16          `json:"fee_bps"`
}

type mintRequest struct {
	Signer solana.PublicKey `json:"-"`
	models.Mint
}

type depositRequest struct {
	Signer   solana.PublicKey    `json:"-"`
	Owner    solana.PublicKey    `json:"owner"`
	Currency models.Denomination `json:"currency"`
	Amount   uint64              `json:"amount"`
}

type balanceResponse struct {
	Owner   solana.PublicKey `json:"owner"`
	Balance uint64           `json:"balance"`
	Display string           `json:"display"`
}

func (h *AdminHandler) Register(g *router.RouterGroup[*core.RequestEvent]) {
	g.POST("/platform/init", instruction(h.initPlatform, func(in *platformRequest, s solana.PublicKey) { in.Signer = s }))
	g.POST("/platform/update", instruction(h.updatePlatform, func(in *platformRequest, s solana.PublicKey) { in.Signer = s }))
	g.POST("/creators/fee-override", instruction(h.setFeeOverride, func(in *feeOverrideRequest, s solana.PublicKey) { in.Signer = s }))
	g.POST("/mints/register", instruction(h.registerMint, func(in *mintRequest, s solana.PublicKey) { in.Signer = s }))
	g.POST("/funds/deposit", instruction(h.deposit, func(in *depositRequest, s solana.PublicKey) { in.Signer = s }))

	g.POST("/slots/freeze", instruction(h.engine.SetFrozen, func(in *services.SetFrozenInput, s solana.PublicKey) { in.Signer = s }))
	g.POST("/slots/close", instruction(h.engine.CloseSlot, signSlot))
	g.POST("/slots/close-native", instruction(h.engine.CloseSlotNative, signSlot))
}

func signSlot(in *services.SlotInput, s solana.PublicKey) { in.Signer = s }

func (h *AdminHandler) initPlatform(ctx context.Context, in platformRequest) (*models.Platform, error) {
	return h.engine.InitPlatform(ctx, in.Signer, in.Platform)
}

func (h *AdminHandler) updatePlatform(ctx context.Context, in platformRequest) (*models.Platform, error) {
	return h.engine.UpdatePlatform(ctx, in.Signer, in.Platform)
}

func (h *AdminHandler) setFeeOverride(ctx context.Context, in feeOverrideRequest) (*models.CreatorProfile, error) {
	return h.engine.SetCreatorFeeOverride(ctx, in.Signer, in.Creator, in.FeeBps)
}

func (h *AdminHandler) registerMint(ctx context.Context, in mintRequest) (*models.Mint, error) {
	return h.engine.RegisterMint(ctx, in.Signer, in.Mint)
}

// deposit credits an owner's balance from the off-ledger bridge. Admin only.
func (h *AdminHandler) deposit(ctx context.Context, in depositRequest) (*balanceResponse, error) {
	balance, err := h.engine.DepositFunds(ctx, in.Signer, in.Owner, in.Currency, in.Amount)
	if err != nil {
		return nil, err
	}
	return &balanceResponse{Owner: in.Owner, Balance: balance, Display: in.Currency.Display(balance).String()}, nil
}
