package handler

import (
	"github.com/gin-gonic/gin"

	"groupcart/internal/model"
	"groupcart/internal/monitor"
	"groupcart/internal/service/conversation"
	"groupcart/internal/service/suggestion"
	"groupcart/internal/service/wishlist"
	"groupcart/pkg/utils"
)

// WishlistHandler wishlist endpoints; every mutation is pushed to the room
type WishlistHandler struct {
	wishlist    wishlist.WishlistService
	window      conversation.Window
	suggester   suggestion.Orchestrator
	fanout      Broadcaster
	metrics     *monitor.MetricsCollector
	contextSize int
}

// NewWishlistHandler creates a wishlist handler. contextSize is the number of
// recent room messages the AI suggestions are computed from.
func NewWishlistHandler(
	ws wishlist.WishlistService,
	window conversation.Window,
	suggester suggestion.Orchestrator,
	fanout Broadcaster,
	metrics *monitor.MetricsCollector,
	contextSize int,
) *WishlistHandler {
	if contextSize <= 0 {
		contextSize = 3
	}
	return &WishlistHandler{
		wishlist:    ws,
		window:      window,
		suggester:   suggester,
		fanout:      fanout,
		metrics:     metrics,
		contextSize: contextSize,
	}
}

type addWishlistRequest struct {
	Product model.Product `json:"product"`
	AddedBy string        `json:"addedBy"`
}

type voteRequest struct {
	ProductID model.ProductID `json:"productId"`
	Username  string          `json:"username"`
	Vote      int             `json:"vote"`
}

// List returns the room's wishlist
func (h *WishlistHandler) List(c *gin.Context) {
	utils.SuccessResponse(c, h.wishlist.List(c.Request.Context(), c.Param("roomId")))
}

// Add proposes a product
func (h *WishlistHandler) Add(c *gin.Context) {
	var req addWishlistRequest
	if !bindJSON(c, &req) {
		return
	}

	roomID := c.Param("roomId")
	items, err := h.wishlist.Add(c.Request.Context(), roomID, req.Product, req.AddedBy)
	if err != nil {
		utils.ErrorFrom(c, err)
		return
	}

	h.publish(roomID, items)
	utils.SuccessResponse(c, items)
}

// Vote applies an up or down vote and returns the voted item
func (h *WishlistHandler) Vote(c *gin.Context) {
	var req voteRequest
	if !bindJSON(c, &req) {
		return
	}

	roomID := c.Param("roomId")
	items, applied, err := h.wishlist.Vote(c.Request.Context(), roomID, req.ProductID, req.Username, req.Vote)
	if err != nil {
		utils.ErrorFrom(c, err)
		return
	}
	h.metrics.RecordWishlistVote(req.Vote, applied)

	if applied {
		h.publish(roomID, items)
	}
	for i := range items {
		if items[i].ID == req.ProductID {
			utils.SuccessResponse(c, items[i])
			return
		}
	}
	utils.ErrorFrom(c, utils.NotFound("Product not in wishlist"))
}

// Remove drops a product from the wishlist
func (h *WishlistHandler) Remove(c *gin.Context) {
	roomID := c.Param("roomId")
	items, err := h.wishlist.Remove(c.Request.Context(), roomID, model.ProductID(c.Param("productId")))
	if err != nil {
		utils.ErrorFrom(c, err)
		return
	}

	h.publish(roomID, items)
	utils.SuccessResponse(c, items)
}

// AISuggestions suggests products from the room's recent chat, skipping
// ones already wishlisted
func (h *WishlistHandler) AISuggestions(c *gin.Context) {
	ctx := c.Request.Context()
	roomID := c.Param("roomId")

	history := conversation.JoinTexts(h.window.Recent(roomID, h.contextSize))
	result := h.suggester.SuggestNoCombo(ctx, roomID, history)

	utils.SuccessResponse(c, h.wishlist.ExcludeWishlisted(ctx, roomID, result.Suggestions))
}

func (h *WishlistHandler) publish(roomID string, items []model.WishlistItem) {
	if h.fanout != nil {
		h.fanout.Broadcast(roomID, model.EventWishlistUpdate, items)
	}
}
