package handlers

import (
	"context"

	"slot-settlement/internal/services"
	"slot-settlement/models"

	"github.com/gagliardetto/solana-go"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/router"
)

// PaymentHandler serves the buyer and creator side of fixed-price sales,
// ticket check-in and wallet withdrawals.
type PaymentHandler struct {
	engine *services.Engine
}

func NewPaymentHandler(engine *services.Engine) *PaymentHandler {
	return &PaymentHandler{engine: engine}
}

type registerCreatorRequest struct {
	Signer      solana.PublicKey `json:"-"`
	DisplayName string           `json:"display_name"`
}

type withdrawRequest struct {
	Signer   solana.PublicKey    `json:"-"`
	Currency models.Denomination `json:"currency"`
	Amount   uint64              `json:"amount"`
}

func signReserve(in *services.ReserveInput, s solana.PublicKey) { in.Signer = s }
func signEscrow(in *services.EscrowInput, s solana.PublicKey) { in.Signer = s }

func (h *PaymentHandler) Register(g *router.RouterGroup[*core.RequestEvent]) {
	g.POST("/creators/register", instruction(h.registerCreator, func(in *registerCreatorRequest, s solana.PublicKey) { in.Signer = s }))
	g.POST("/funds/withdraw", instruction(h.withdraw, func(in *withdrawRequest, s solana.PublicKey) { in.Signer = s }))

	g.POST("/stable/reserve", instruction(h.engine.StableReserve, signReserve))
	g.POST("/stable/reserve-native", instruction(h.engine.StableReserveNative, signReserve))
	g.POST("/stable/cancel", instruction(h.engine.StableCancel, signEscrow))
	g.POST("/stable/cancel-native", instruction(h.engine.StableCancelNative, signEscrow))
	g.POST("/stable/settle", instruction(h.engine.StableSettle, signEscrow))
	g.POST("/stable/settle-native", instruction(h.engine.StableSettleNative, signEscrow))

	g.POST("/escrows/release-hold", instruction(h.engine.ReleaseHold, signEscrow))
	g.POST("/tickets/check-in", instruction(h.engine.CheckIn, func(in *services.CheckInInput, s solana.PublicKey) { in.Signer = s }))
}

func (h *PaymentHandler) registerCreator(ctx context.Context, in registerCreatorRequest) (*models.CreatorProfile, error) {
	return h.engine.RegisterCreator(ctx, in.Signer, in.DisplayName)
}

func (h *PaymentHandler) withdraw(ctx context.Context, in withdrawRequest) (*balanceResponse, error) {
	balance, err := h.engine.WithdrawFunds(ctx, in.Signer, in.Currency, in.Amount)
	if err != nil {
		return nil, err
	}
	return &balanceResponse{Owner: in.Signer, Balance: balance, Display: in.Currency.Display(balance).String()}, nil
}
