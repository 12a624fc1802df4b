package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"pd-shop-api/internal/docstore"
	"pd-shop-api/internal/service"
	"pd-shop-api/pkg/apierror"
	"pd-shop-api/pkg/response"

	"github.com/go-chi/chi/v5"
)

// ShopHandler handles catalog and purchase HTTP requests.
type ShopHandler struct {
	shopService *service.ShopService
}

// NewShopHandler creates a new shop handler.
func NewShopHandler(shopService *service.ShopService) *ShopHandler {
	return &ShopHandler{
		shopService: shopService,
	}
}

// ListItems handles GET /api/v1/shop/items
func (h *ShopHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.shopService.ListActiveItems(r.Context())
	if err != nil {
		response.Error(w, apierror.InternalError("failed to load shop items"))
		return
	}

	response.OK(w, map[string]interface{}{
		"items": items,
		"count": len(items),
	})
}

// BuyRequest represents the purchase request body.
type BuyRequest struct {
	UserID string `json:"user_id"`
}

// BuyItem handles POST /api/v1/shop/items/{item_id}/buy
func (h *ShopHandler) BuyItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "item_id")
	if itemID == "" {
		response.Error(w, apierror.BadRequest("item_id is required"))
		return
	}

	var req BuyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid JSON"))
		return
	}
	defer r.Body.Close()

	if req.UserID == "" {
		response.Error(w, apierror.BadRequest("user_id is required"))
		return
	}

	if err := h.shopService.Buy(r.Context(), req.UserID, itemID); err != nil {
		response.Error(w, mapPurchaseError(err))
		return
	}

	response.OK(w, map[string]interface{}{
		"status":  "purchased",
		"user_id": req.UserID,
		"item_id": itemID,
	})
}

// mapPurchaseError translates purchase engine errors to stable API codes.
func mapPurchaseError(err error) *apierror.Error {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		return apierror.New(http.StatusNotFound, "USER_NOT_FOUND", "user does not exist")
	case errors.Is(err, service.ErrItemNotFound):
		return apierror.New(http.StatusNotFound, "ITEM_NOT_FOUND", "item does not exist")
	case errors.Is(err, service.ErrItemUnavailable):
		return apierror.New(http.StatusConflict, "ITEM_UNAVAILABLE", "item is disabled")
	case errors.Is(err, service.ErrSoldOut):
		return apierror.New(http.StatusConflict, "SOLD_OUT", "item is sold out or buy limit reached")
	case errors.Is(err, service.ErrInsufficientGiftPoints):
		return apierror.New(http.StatusBadRequest, "INSUFFICIENT_GIFT_POINTS", "not enough gift points")
	case errors.Is(err, service.ErrInsufficientUsd):
		return apierror.New(http.StatusBadRequest, "INSUFFICIENT_USD", "not enough usd balance")
	case errors.Is(err, service.ErrUnknownItemType):
		return apierror.New(http.StatusBadRequest, "UNKNOWN_ITEM_TYPE", "item has an unrecognized type")
	case errors.Is(err, docstore.ErrConflict):
		return apierror.New(http.StatusConflict, "TRANSACTION_CONFLICT", "too much contention, try again")
	default:
		return apierror.InternalError("purchase failed")
	}
}
