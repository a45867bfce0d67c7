package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-marketplace-orders/internal/inventory"
)

type RestockReq struct {
	Quantity          int  `json:"quantity"`
	LowStockThreshold *int `json:"low_stock_threshold,omitempty"`
}

func (a *API) listProducts(w http.ResponseWriter, r *http.Request) {
	ps, err := a.Inventory.ListProducts(r.Context())
	if err != nil {
		fail(w, r, a.log(), err)
		return
	}
	if ps == nil {
		ps = []inventory.Product{}
	}
	ok(w, http.StatusOK, ps)
}

func (a *API) restock(w http.ResponseWriter, r *http.Request) {
	var req RestockReq
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, a.log(), err)
		return
	}
	p, err := a.Inventory.Restock(r.Context(), principal(r).ID, chi.URLParam(r, "id"), inventory.StockUpdate{
		Quantity:          req.Quantity,
		LowStockThreshold: req.LowStockThreshold,
	})
	if err != nil {
		fail(w, r, a.log(), err)
		return
	}
	ok(w, http.StatusOK, p)
}
