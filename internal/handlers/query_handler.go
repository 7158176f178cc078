package handlers

import (
	"net/http"
	"strconv"

	"slot-settlement/internal/notify"
	"slot-settlement/internal/services"
	"slot-settlement/models"

	"github.com/gagliardetto/solana-go"
	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/router"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// QueryHandler serves reads. Single records come from the ledger; listings
// come from the pocketbase projections.
type QueryHandler struct {
	app    core.App
	engine *services.Engine
}

func NewQueryHandler(app core.App, engine *services.Engine) *QueryHandler {
	return &QueryHandler{app: app, engine: engine}
}

type slotRow struct {
	SlotID        string `db:"slot_id" json:"slot_id"`
	Creator       string `db:"creator" json:"creator"`
	Mode          string `db:"mode" json:"mode"`
	State         string `db:"state" json:"state"`
	Currency      string `db:"currency" json:"currency"`
	Price         string `db:"price" json:"price"`
	BuyNowPrice   string `db:"buy_now_price" json:"buy_now_price"`
	CapacityTotal int64  `db:"capacity_total" json:"capacity_total"`
	CapacitySold  int64  `db:"capacity_sold" json:"capacity_sold"`
	Frozen        bool   `db:"frozen" json:"frozen"`
	StartTs       int64  `db:"start_ts" json:"start_ts"`
	EndTs         int64  `db:"end_ts" json:"end_ts"`
	AuctionEndTs  int64  `db:"auction_end_ts" json:"auction_end_ts"`
	Winner        string `db:"winner" json:"winner,omitempty"`
	WinningBid    string `db:"winning_bid" json:"winning_bid,omitempty"`
	Settled       bool   `db:"settled" json:"settled"`
	LastEvent     string `db:"last_event" json:"last_event"`
}

type ticketRow struct {
	Address   string `db:"address" json:"address"`
	SlotID    string `db:"slot_id" json:"slot_id"`
	EscrowID  string `db:"escrow_id" json:"escrow_id"`
	Owner     string `db:"owner" json:"owner"`
	IssuedAt  int64  `db:"issued_at" json:"issued_at"`
	CheckedIn bool   `db:"checked_in" json:"checked_in"`
}

func (h *QueryHandler) Register(g *router.RouterGroup[*core.RequestEvent]) {
	g.GET("/platform", h.GetPlatform)
	g.GET("/slots", h.ListSlots)
	g.GET("/slots/{slotId}", h.GetSlot)
	g.GET("/slots/{slotId}/bids", h.GetBidBook)
	g.GET("/slots/{slotId}/refunds", h.GetRefundQueue)
	g.GET("/slots/{slotId}/escrows", h.ListEscrows)
	g.GET("/slots/{slotId}/commits", h.GetCommits)
	g.GET("/escrows/{escrowId}", h.GetEscrow)
	g.GET("/tickets", h.ListTickets)
	g.GET("/tickets/{address}", h.GetTicket)
	g.GET("/balances/{owner}", h.GetBalance)
}

func listLimit(e *core.RequestEvent) int64 {
	limit, err := strconv.ParseInt(e.Request.URL.Query().Get("limit"), 10, 64)
	if err != nil || limit <= 0 {
		return defaultListLimit
	}
	return min(limit, maxListLimit)
}

func pathKey(e *core.RequestEvent, name string) (solana.PublicKey, error) {
	key, err := solana.PublicKeyFromBase58(e.Request.PathValue(name))
	if err != nil {
		return solana.PublicKey{}, apis.NewBadRequestError("Invalid "+name, err)
	}
	return key, nil
}

func (h *QueryHandler) GetPlatform(e *core.RequestEvent) error {
	p, err := h.engine.GetPlatform(e.Request.Context())
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, p)
}

// ListSlots filters the slot projection by creator, state and mode.
func (h *QueryHandler) ListSlots(e *core.RequestEvent) error {
	filters := dbx.HashExp{}
	query := e.Request.URL.Query()
	for _, field := range []string{"creator", "state", "mode"} {
		if v := query.Get(field); v != "" {
			filters[field] = v
		}
	}

	q := h.app.DB().
		Select("slot_id", "creator", "mode", "state", "currency", "price", "buy_now_price",
			"capacity_total", "capacity_sold", "frozen", "start_ts", "end_ts", "auction_end_ts",
			"winner", "winning_bid", "settled", "last_event").
		From(notify.SlotProjections).
		OrderBy("start_ts ASC").
		Limit(listLimit(e))
	if len(filters) > 0 {
		q.Where(filters)
	}

	rows := []slotRow{}
	if err := q.All(&rows); err != nil {
		return apis.NewBadRequestError("Failed to list slots", err)
	}
	return e.JSON(http.StatusOK, map[string]any{"slots": rows, "count": len(rows)})
}

func (h *QueryHandler) GetSlot(e *core.RequestEvent) error {
	slot, err := h.engine.GetSlot(e.Request.Context(), e.Request.PathValue("slotId"))
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, slot)
}

func (h *QueryHandler) GetBidBook(e *core.RequestEvent) error {
	book, err := h.engine.GetBidBook(e.Request.Context(), e.Request.PathValue("slotId"))
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, book)
}

func (h *QueryHandler) GetRefundQueue(e *core.RequestEvent) error {
	q, err := h.engine.GetRefundQueue(e.Request.Context(), e.Request.PathValue("slotId"))
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, map[string]any{
		"slot_id":     q.SlotID,
		"max_entries": q.MaxEntries,
		"pending":     q.Pending(),
	})
}

func (h *QueryHandler) ListEscrows(e *core.RequestEvent) error {
	escrows, err := h.engine.ListEscrows(e.Request.Context(), e.Request.PathValue("slotId"))
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, map[string]any{"escrows": escrows, "count": len(escrows)})
}

func (h *QueryHandler) GetCommits(e *core.RequestEvent) error {
	commits, err := h.engine.GetCommits(e.Request.Context(), e.Request.PathValue("slotId"))
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, commits)
}

func (h *QueryHandler) GetEscrow(e *core.RequestEvent) error {
	escrow, err := h.engine.GetEscrow(e.Request.Context(), e.Request.PathValue("escrowId"))
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, escrow)
}

func (h *QueryHandler) ListTickets(e *core.RequestEvent) error {
	owner := e.Request.URL.Query().Get("owner")
	if owner == "" {
		return apis.NewBadRequestError("owner is required", nil)
	}

	rows := []ticketRow{}
	err := h.app.DB().
		Select("address", "slot_id", "escrow_id", "owner", "issued_at", "checked_in").
		From(notify.TicketProjections).
		Where(dbx.HashExp{"owner": owner}).
		OrderBy("issued_at DESC").
		Limit(listLimit(e)).
		All(&rows)
	if err != nil {
		return apis.NewBadRequestError("Failed to list tickets", err)
	}
	return e.JSON(http.StatusOK, map[string]any{"tickets": rows, "count": len(rows)})
}

func (h *QueryHandler) GetTicket(e *core.RequestEvent) error {
	address, err := pathKey(e, "address")
	if err != nil {
		return err
	}
	ticket, err := h.engine.GetTicket(e.Request.Context(), address)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, ticket)
}

// GetBalance reads the native balance, or a token balance when ?mint= is
// given; ?decimals= only affects the display value.
func (h *QueryHandler) GetBalance(e *core.RequestEvent) error {
	owner, err := pathKey(e, "owner")
	if err != nil {
		return err
	}

	den := models.NativeDenomination()
	query := e.Request.URL.Query()
	if m := query.Get("mint"); m != "" {
		mint, err := solana.PublicKeyFromBase58(m)
		if err != nil {
			return apis.NewBadRequestError("Invalid mint", err)
		}
		decimals, _ := strconv.ParseUint(query.Get("decimals"), 10, 8)
		den = models.TokenDenomination(mint, uint8(decimals))
	}

	balance, err := h.engine.GetBalance(e.Request.Context(), den, owner)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, balanceResponse{Owner: owner, Balance: balance, Display: den.Display(balance).String()})
}
