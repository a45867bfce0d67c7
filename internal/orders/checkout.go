package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	"github.com/ariefcatur/go-marketplace-orders/internal/auth"
)

type CartLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type Delivery struct {
	Type    DeliveryType     `json:"type"`
	Address *DeliveryAddress `json:"address,omitempty"`
}

type ProofUpload struct {
	Filename string
	Data     []byte
}

type CheckoutRequest struct {
	Buyer          auth.Principal
	Lines          []CartLine
	Note           string
	PaymentMethods map[string]PaymentMethod // by seller id
	Delivery       Delivery
	Proofs         map[string]ProofUpload // by seller id
}

type sellerBucket struct {
	sellerID string
	market   string
	items    []LineSnapshot
	total    int64
}

type reservation struct {
	productID string
	qty       int
}

// CreateOrder splits the cart into one pending order per seller. Lines are processed in cart
// order and each line's stock is reserved before the next line is looked at.
func (s *Service) CreateOrder(ctx context.Context, req CheckoutRequest) (created []Order, err error) {
	ctx, span := tracer.Start(ctx, "orders.CreateOrder")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	span.SetAttributes(attribute.String("buyer.id", req.Buyer.ID), attribute.Int("cart.lines", len(req.Lines)))

	if err := validateCheckout(&req); err != nil {
		return nil, err
	}

	// Once stock has moved, the rest of the checkout and any compensation must finish even if the
	// caller goes away.
	detached := context.WithoutCancel(ctx)

	proofRefs := map[string]string{}
	defer func() {
		if err != nil {
			s.discardProofs(detached, proofRefs)
		}
	}()
	if len(req.Proofs) > 0 && s.Files == nil {
		return nil, apperr.Internal("payment proof storage is not configured")
	}
	for sellerID, up := range req.Proofs {
		ref, err := s.Files.Save(ctx, up.Filename, up.Data)
		if err != nil {
			return nil, fmt.Errorf("store payment proof: %w", err)
		}
		proofRefs[sellerID] = ref
	}

	var (
		applied  []reservation
		lowStock []LowStockEvent
		buckets  = map[string]*sellerBucket{}
		sellers  []string
	)
	defer func() {
		if err != nil && s.Opts.RollbackOnFailure {
			s.release(detached, applied)
			return
		}
		// Only decrements that outlive the request are worth a low-stock alert.
		for _, ev := range lowStock {
			s.notifyLowStock(detached, ev)
		}
	}()

	rctx := ctx
	for _, line := range req.Lines {
		p, err := s.Ledger.Reserve(rctx, line.ProductID, line.Quantity)
		if err != nil {
			if errors.Is(err, apperr.ErrInsufficientStock) {
				s.metrics().StockRejected()
			}
			return nil, err
		}
		applied = append(applied, reservation{productID: p.ID, qty: line.Quantity})
		rctx = detached

		b, ok := buckets[p.SellerID]
		if !ok {
			b = &sellerBucket{sellerID: p.SellerID}
			buckets[p.SellerID] = b
			sellers = append(sellers, p.SellerID)
		}
		snap := LineSnapshot{
			ProductID:  p.ID,
			Name:       p.Name,
			PriceCents: p.PriceCents,
			Quantity:   line.Quantity,
			Unit:       p.Unit,
			ImageRef:   p.ImageRef,
		}
		b.items = append(b.items, snap)
		b.total += snap.Subtotal()
		b.market = p.MarketLocation

		if p.LowStock() {
			lowStock = append(lowStock, LowStockEvent{
				ProductID: p.ID,
				SellerID:  p.SellerID,
				Name:      p.Name,
				Quantity:  p.Quantity,
				Threshold: p.LowStockThreshold,
			})
		}
	}

	now := s.now()
	created = make([]Order, 0, len(sellers))
	for _, sellerID := range sellers {
		b := buckets[sellerID]
		method, ok := req.PaymentMethods[sellerID]
		if !ok || method == "" {
			method = DefaultPaymentMethod
		}
		o := Order{
			ID:              s.newID(),
			BuyerID:         req.Buyer.ID,
			BuyerName:       req.Buyer.Name,
			SellerID:        sellerID,
			Items:           b.items,
			TotalCents:      b.total,
			Status:          StatusPending,
			PaymentMethod:   method,
			PaymentProofRef: proofRefs[sellerID],
			MarketLocation:  b.market,
			Note:            req.Note,
			History:         []HistoryEntry{{Status: StatusPending, At: now, Note: "Order placed"}},
			DeliveryType:    req.Delivery.Type,
			DeliveryAddress: req.Delivery.Address,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if o.DeliveryType == DeliveryDelivery {
			o.DeliveryFeeCents = s.Opts.DeliveryFeeCents
		}
		created = append(created, o)
	}

	if err := s.Store.CreateOrders(detached, created); err != nil {
		return nil, fmt.Errorf("create orders: %w", err)
	}

	// Proofs addressed to sellers with nothing in the cart have no owner.
	orphaned := map[string]string{}
	for sellerID, ref := range proofRefs {
		if _, ok := buckets[sellerID]; !ok {
			orphaned[sellerID] = ref
		}
	}
	s.discardProofs(detached, orphaned)

	for _, o := range created {
		s.metrics().OrderCreated(o.MarketLocation)
		s.notifyNewOrder(detached, o)
	}
	s.log().Info("checkout completed", "buyer_id", req.Buyer.ID, "orders", len(created), "lines", len(req.Lines))
	return created, nil
}

func validateCheckout(req *CheckoutRequest) error {
	if req.Buyer.ID == "" {
		return apperr.Unauthorized("missing buyer identity")
	}
	if len(req.Lines) == 0 {
		return apperr.Validation("cart is empty")
	}
	for i, l := range req.Lines {
		if strings.TrimSpace(l.ProductID) == "" {
			return apperr.Validation("line %d: product_id is required", i+1)
		}
		if l.Quantity <= 0 {
			return apperr.Validation("line %d: quantity must be > 0", i+1)
		}
	}
	if utf8.RuneCountInString(req.Note) > MaxNoteLength {
		return apperr.Validation("note must be at most %d characters", MaxNoteLength)
	}
	for sellerID, m := range req.PaymentMethods {
		if m != "" && !m.Valid() {
			return apperr.Validation("invalid payment method %q for seller %s", m, sellerID)
		}
	}

	switch req.Delivery.Type {
	case "", DeliveryPickup:
		req.Delivery.Type = DeliveryPickup
		req.Delivery.Address = nil
	case DeliveryDelivery:
		a := req.Delivery.Address
		if a == nil || strings.TrimSpace(a.Recipient) == "" || strings.TrimSpace(a.Phone) == "" || strings.TrimSpace(a.Street) == "" {
			return apperr.Validation("delivery address requires recipient, phone and street")
		}
	default:
		return apperr.Validation("invalid delivery type %q", req.Delivery.Type)
	}
	return nil
}

func (s *Service) release(ctx context.Context, applied []reservation) {
	for _, r := range applied {
		if err := s.Ledger.Restore(ctx, r.productID, r.qty); err != nil {
			s.log().Error("restore stock after aborted checkout", "product_id", r.productID, "qty", r.qty, "err", err)
		}
	}
}

func (s *Service) discardProofs(ctx context.Context, refs map[string]string) {
	for sellerID, ref := range refs {
		if err := s.Files.Delete(ctx, ref); err != nil {
			s.log().Warn("delete staged payment proof", "seller_id", sellerID, "ref", ref, "err", err)
		}
	}
}
