package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/bananaclick/internal/api/middleware"
	"github.com/mcoot/bananaclick/internal/api/response"
	"github.com/mcoot/bananaclick/internal/model"
	"github.com/mcoot/bananaclick/internal/services/shop"
)

// ShopHandler handles upgrade purchases
type ShopHandler struct {
	shop *shop.Service
}

// NewShopHandler creates a new shop handler
func NewShopHandler(shopService *shop.Service) *ShopHandler {
	return &ShopHandler{
		shop: shopService,
	}
}

// Catalog handles GET /api/shop
func (h *ShopHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	account := middleware.MustGetAccount(r.Context())

	catalog, err := h.shop.Catalog(r.Context(), account.ID)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.CatalogFromService(catalog))
}

// Buy handles POST /api/shop/{upgrade}
func (h *ShopHandler) Buy(w http.ResponseWriter, r *http.Request) {
	account := middleware.MustGetAccount(r.Context())

	kind, err := model.ParseUpgradeKind(mux.Vars(r)["upgrade"])
	if err != nil {
		WriteError(w, err)
		return
	}

	purchase, err := h.shop.Buy(r.Context(), account.ID, kind)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.PurchaseFromService(purchase))
}
