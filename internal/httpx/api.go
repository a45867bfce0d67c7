package httpx

import (
	"context"
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-marketplace-orders/internal/analytics"
	"github.com/ariefcatur/go-marketplace-orders/internal/auth"
	"github.com/ariefcatur/go-marketplace-orders/internal/inventory"
	"github.com/ariefcatur/go-marketplace-orders/internal/notify"
	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
)

// Idempotency is satisfied by *redisx.Idempotency.
type Idempotency interface {
	Begin(ctx context.Context, buyerID, key string) ([]byte, error)
	Complete(ctx context.Context, buyerID, key string, result []byte) error
	Abort(ctx context.Context, buyerID, key string) error
}

// FeedReader is satisfied by *notify.Reader.
type FeedReader interface {
	List(ctx context.Context, sellerID string, limit int) ([]notify.Item, error)
}

// API wires the services to routes. Idem and Feed are optional.
type API struct {
	Orders    *orders.Service
	Inventory *inventory.Service
	Analytics *analytics.Service
	Idem      Idempotency
	Feed      FeedReader
	Verifier  *auth.Verifier
	Log       *slog.Logger
}

func (a *API) log() *slog.Logger {
	if a.Log != nil {
		return a.Log
	}
	return slog.Default()
}

func (a *API) Register(r chi.Router) {
	r.Get("/products", a.listProducts)

	r.Group(func(r chi.Router) {
		r.Use(Authenticate(a.Verifier))

		r.Get("/orders/{id}", a.getOrder)

		r.Group(func(r chi.Router) {
			r.Use(RequireRole(auth.RoleBuyer))
			r.Post("/orders", a.createOrder)
			r.Get("/orders/mine", a.listMine)
			r.Post("/orders/{id}/cancel", a.cancelOrder)
			r.Post("/orders/{id}/hide", a.hideOrder)
			r.Post("/orders/hide", a.bulkHide)
		})

		r.Group(func(r chi.Router) {
			r.Use(RequireRole(auth.RoleSeller))
			r.Get("/orders/seller", a.listSeller)
			r.Patch("/orders/{id}/status", a.updateStatus)
			r.Post("/orders/{id}/verify-payment", a.verifyPayment)
			r.Patch("/orders/{id}/archive", a.archiveOrder)
			r.Post("/orders/archive", a.bulkArchive)
			r.Get("/analytics/seller", a.sellerAnalytics)
			r.Patch("/products/{id}/stock", a.restock)
			r.Get("/notifications", a.notifications)
		})

		r.Group(func(r chi.Router) {
			r.Use(RequireRole(auth.RoleAdmin))
			r.Post("/admin/accounts/{id}/cancel-orders", a.cascadeCancel)
		})
	})
}
