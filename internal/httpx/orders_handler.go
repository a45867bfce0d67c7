package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	"github.com/ariefcatur/go-marketplace-orders/internal/filestore"
	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
	"github.com/ariefcatur/go-marketplace-orders/internal/redisx"
)

const (
	maxCheckoutBody  = 4 * filestore.MaxSize
	proofFieldPrefix = "proof_"
	headerIdemKey    = "Idempotency-Key"
)

type CreateOrderReq struct {
	Items          []orders.CartLine               `json:"items"`
	Note           string                          `json:"note"`
	PaymentMethods map[string]orders.PaymentMethod `json:"payment_methods"`
	Delivery       orders.Delivery                 `json:"delivery"`
}

type UpdateStatusReq struct {
	Status orders.Status `json:"status"`
	Note   string        `json:"note"`
}

type CancelReq struct {
	Reason string `json:"reason"`
}

type ArchiveReq struct {
	Archived *bool `json:"archived"`
}

type BulkReq struct {
	OrderIDs []string `json:"order_ids"`
	Archived *bool    `json:"archived,omitempty"`
}

// readCheckout accepts either a JSON body or a multipart form whose "payload" field holds the
// JSON and whose proof_<seller_id> files hold payment proofs.
func readCheckout(w http.ResponseWriter, r *http.Request) (CreateOrderReq, map[string]orders.ProofUpload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCheckoutBody)
	var req CreateOrderReq

	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return req, nil, decodeJSON(r, &req)
	}

	if err := r.ParseMultipartForm(maxCheckoutBody); err != nil {
		return req, nil, apperr.Validation("invalid multipart form: %v", err)
	}
	if err := json.Unmarshal([]byte(r.FormValue("payload")), &req); err != nil {
		return req, nil, apperr.Validation("invalid payload: %v", err)
	}
	proofs := map[string]orders.ProofUpload{}
	for field, headers := range r.MultipartForm.File {
		if !strings.HasPrefix(field, proofFieldPrefix) || len(headers) == 0 {
			continue
		}
		sellerID := strings.TrimPrefix(field, proofFieldPrefix)
		f, err := headers[0].Open()
		if err != nil {
			return req, nil, apperr.Validation("read %s: %v", field, err)
		}
		data, err := io.ReadAll(io.LimitReader(f, filestore.MaxSize+1))
		f.Close()
		if err != nil {
			return req, nil, apperr.Validation("read %s: %v", field, err)
		}
		proofs[sellerID] = orders.ProofUpload{Filename: headers[0].Filename, Data: data}
	}
	return req, proofs, nil
}

func (a *API) createOrder(w http.ResponseWriter, r *http.Request) {
	buyer := principal(r)
	req, proofs, err := readCheckout(w, r)
	if err != nil {
		fail(w, r, a.log(), err)
		return
	}

	key := strings.TrimSpace(r.Header.Get(headerIdemKey))
	useIdem := a.Idem != nil && key != ""
	if useIdem {
		replay, err := a.Idem.Begin(r.Context(), buyer.ID, key)
		switch {
		case errors.Is(err, redisx.ErrInFlight):
			fail(w, r, a.log(), apperr.InvalidState("a request with this %s is still in progress", headerIdemKey))
			return
		case err != nil:
			a.log().Warn("idempotency unavailable, continuing without it", "err", err)
			useIdem = false
		case replay != nil:
			w.Header().Set("Idempotent-Replayed", "true")
			ok(w, http.StatusOK, json.RawMessage(replay))
			return
		}
	}

	created, err := a.Orders.CreateOrder(r.Context(), orders.CheckoutRequest{
		Buyer:          buyer,
		Lines:          req.Items,
		Note:           req.Note,
		PaymentMethods: req.PaymentMethods,
		Delivery:       req.Delivery,
		Proofs:         proofs,
	})
	if err != nil {
		if useIdem {
			if aerr := a.Idem.Abort(r.Context(), buyer.ID, key); aerr != nil {
				a.log().Warn("release idempotency key", "err", aerr)
			}
		}
		fail(w, r, a.log(), err)
		return
	}
	if useIdem {
		if b, err := json.Marshal(created); err == nil {
			if err := a.Idem.Complete(r.Context(), buyer.ID, key, b); err != nil {
				a.log().Warn("store idempotent result", "err", err)
			}
		}
	}
	ok(w, http.StatusCreated, created)
}

func (a *API) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := a.Orders.GetOrder(r.Context(), chi.URLParam(r, "id"), principal(r).ID)
	if err != nil {
		fail(w, r, a.log(), err)
		return
	}
	ok(w, http.StatusOK, o)
}

func (a *API) listMine(w http.ResponseWriter, r *http.Request) {
	list, err := a.Orders.ListMyOrders(r.Context(), principal(r).ID)
	if err != nil {
		fail(w, r, a.log(), err)
		return
	}
	if list == nil {
		list = []orders.Order{}
	}
	ok(w, http.StatusOK, list)
}

func (a *API) listSeller(w http.ResponseWriter, r *http.Request) {
	var f orders.SellerFilter
	q := r.URL.Query()
	if s := q.Get("status"); s != "" {
		st := orders.Status(s)
		f.Status = &st
	}
	if s := q.Get("archived"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			fail(w, r, a.log(), apperr.Validation("archived must be true or false"))
			return
		}
		f.Archived = &b
	}
	res, err := a.Orders.ListSellerOrders(r.Context(), principal(r).ID, f)
	if err != nil {
		fail(w, r, a.log(), err)
		return
	}
	ok(w, http.StatusOK, res)
}

func (a *API) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusReq
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, a.log(), err)
		return
	}
	o, err := a.Orders.UpdateStatus(r.Context(), chi.URLParam(r, "id"), principal(r).ID, req.Status, req.Note)
	if err != nil {
		fail(w, r, a.log(), err)
		return
	}
	ok(w, http.StatusOK, o)
}

func (a *API) verifyPayment(w http.ResponseWriter, r *http.Request) {
	o, err := a.Orders.VerifyPayment(r.Context(), chi.URLParam(r, "id"), principal(r).ID)
	if err != nil {
		fail(w, r, a.log(), err)
		return
	}
	ok(w, http.StatusOK, o)
}

func (a *API) cancelOrder(w http.ResponseWriter, r *http.Request) {
	var req CancelReq
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			fail(w, r, a.log(), err)
			return
		}
	}
	o, err := a.Orders.CancelByCustomer(r.Context(), chi.URLParam(r, "id"), principal(r).ID, req.Reason)
	if err != nil {
		fail(w, r, a.log(), err)
		return
	}
	ok(w, http.StatusOK, o)
}

func (a *API) archiveOrder(w http.ResponseWriter, r *http.Request) {
	var req ArchiveReq
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			fail(w, r, a.log(), err)
			return
		}
	}
	archive := req.Archived == nil || *req.Archived
	o, err := a.Orders.ArchiveOrder(r.Context(), chi.URLParam(r, "id"), principal(r).ID, archive)
	if err != nil {
		fail(w, r, a.log(), err)
		return
	}
	ok(w, http.StatusOK, o)
}

func (a *API) bulkArchive(w http.ResponseWriter, r *http.Request) {
	var req BulkReq
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, a.log(), err)
		return
	}
	archive := req.Archived == nil || *req.Archived
	n, err := a.Orders.BulkArchive(r.Context(), req.OrderIDs, principal(r).ID, archive)
	if err != nil {
		fail(w, r, a.log(), err)
		return
	}
	ok(w, http.StatusOK, map[string]int64{"updated": n})
}

func (a *API) hideOrder(w http.ResponseWriter, r *http.Request) {
	if err := a.Orders.HideForBuyer(r.Context(), chi.URLParam(r, "id"), principal(r).ID); err != nil {
		fail(w, r, a.log(), err)
		return
	}
	ok(w, http.StatusOK, map[string]bool{"hidden": true})
}

func (a *API) bulkHide(w http.ResponseWriter, r *http.Request) {
	var req BulkReq
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, a.log(), err)
		return
	}
	n, err := a.Orders.BulkHideForBuyer(r.Context(), req.OrderIDs, principal(r).ID)
	if err != nil {
		fail(w, r, a.log(), err)
		return
	}
	ok(w, http.StatusOK, map[string]int64{"hidden": n})
}
