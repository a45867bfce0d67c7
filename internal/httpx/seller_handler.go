package httpx

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-marketplace-orders/internal/analytics"
	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	"github.com/ariefcatur/go-marketplace-orders/internal/auth"
	"github.com/ariefcatur/go-marketplace-orders/internal/notify"
)

func (a *API) sellerAnalytics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	report, err := a.Analytics.SellerReport(r.Context(), principal(r).ID, analytics.Query{
		Period:    analytics.Period(q.Get("period")),
		StartDate: q.Get("start_date"),
		EndDate:   q.Get("end_date"),
	})
	if err != nil {
		fail(w, r, a.log(), err)
		return
	}
	ok(w, http.StatusOK, report)
}

func (a *API) notifications(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			fail(w, r, a.log(), apperr.Validation("limit must be a positive integer"))
			return
		}
		limit = n
	}
	items := []notify.Item{}
	if a.Feed != nil {
		list, err := a.Feed.List(r.Context(), principal(r).ID, limit)
		if err != nil {
			fail(w, r, a.log(), err)
			return
		}
		items = append(items, list...)
	}
	ok(w, http.StatusOK, items)
}

func (a *API) cascadeCancel(w http.ResponseWriter, r *http.Request) {
	party := auth.Role(r.URL.Query().Get("role"))
	n, err := a.Orders.CancelForRemovedAccount(r.Context(), chi.URLParam(r, "id"), party)
	if err != nil {
		fail(w, r, a.log(), err)
		return
	}
	ok(w, http.StatusOK, map[string]int64{"cancelled": n})
}
