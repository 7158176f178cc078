package handlers

import (
	"slot-settlement/internal/services"

	"github.com/gagliardetto/solana-go"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/router"
)

type SlotHandler struct {
	engine *services.Engine
}

func NewSlotHandler(engine *services.Engine) *SlotHandler {
	return &SlotHandler{engine: engine}
}

func signStore(in *services.InitStoreInput, s solana.PublicKey) { in.Signer = s }

func (h *SlotHandler) Register(g *router.RouterGroup[*core.RequestEvent]) {
	g.POST("/slots/create", instruction(h.engine.CreateTimeSlot, func(in *services.CreateSlotInput, s solana.PublicKey) { in.Signer = s }))
	g.POST("/stores/refund-queue", instruction(h.engine.InitRefundQueue, signStore))
	g.POST("/stores/auto-bids", instruction(h.engine.InitAutoBidStore, signStore))
	g.POST("/stores/commits", instruction(h.engine.InitCommitStore, signStore))
}
