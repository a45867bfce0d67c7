package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	"github.com/ariefcatur/go-marketplace-orders/internal/auth"
)

type Repo struct{ DB *pgxpool.Pool }

const orderColumns = `id, buyer_id, buyer_name, seller_id, items, total_cents, status, payment_method,
	payment_proof_ref, payment_verified, market_location, note, history, archived, hidden_by_buyer,
	delivery_type, delivery_address, delivery_fee_cents, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.BuyerID, &o.BuyerName, &o.SellerID, &o.Items, &o.TotalCents, &o.Status,
		&o.PaymentMethod, &o.PaymentProofRef, &o.PaymentVerified, &o.MarketLocation, &o.Note, &o.History,
		&o.Archived, &o.HiddenByBuyer, &o.DeliveryType, &o.DeliveryAddress, &o.DeliveryFeeCents,
		&o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func collectOrders(rows pgx.Rows) ([]Order, error) {
	defer rows.Close()
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func statusStrings(ss []Status) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = string(s)
	}
	return out
}

func (r *Repo) CreateOrders(ctx context.Context, orders []Order) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, o := range orders {
		_, err = tx.Exec(ctx, `
			INSERT INTO orders(`+orderColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`,
			o.ID, o.BuyerID, o.BuyerName, o.SellerID, o.Items, o.TotalCents, string(o.Status),
			string(o.PaymentMethod), o.PaymentProofRef, o.PaymentVerified, o.MarketLocation, o.Note, o.History,
			o.Archived, o.HiddenByBuyer, string(o.DeliveryType), o.DeliveryAddress, o.DeliveryFeeCents,
			o.CreatedAt, o.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert order %s: %w", o.ID, err)
		}
	}
	return tx.Commit(ctx)
}

func (r *Repo) Get(ctx context.Context, orderID string) (Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, apperr.NotFound("order %s not found", orderID)
	}
	if err != nil {
		return Order{}, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

// Update: lock the row (FOR UPDATE) -> apply fn -> write back the mutable columns. Items and
// total are never rewritten.
func (r *Repo) Update(ctx context.Context, orderID string, fn func(*Order) error) (Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := scanOrder(tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1 FOR UPDATE`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, apperr.NotFound("order %s not found", orderID)
	}
	if err != nil {
		return Order{}, fmt.Errorf("lock order: %w", err)
	}

	if err := fn(&o); err != nil {
		return Order{}, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE orders
		SET status=$2, payment_verified=$3, history=$4, archived=$5, hidden_by_buyer=$6, updated_at=$7
		WHERE id=$1`,
		o.ID, string(o.Status), o.PaymentVerified, o.History, o.Archived, o.HiddenByBuyer, o.UpdatedAt,
	)
	if err != nil {
		return Order{}, fmt.Errorf("update order: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Order{}, err
	}
	return o, nil
}

func (r *Repo) ListByBuyer(ctx context.Context, buyerID string) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE buyer_id=$1 AND NOT hidden_by_buyer ORDER BY created_at DESC`, buyerID)
	if err != nil {
		return nil, fmt.Errorf("list buyer orders: %w", err)
	}
	return collectOrders(rows)
}

func (r *Repo) ListBySeller(ctx context.Context, sellerID string, archived *bool) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE seller_id=$1 AND ($2::boolean IS NULL OR archived = $2) ORDER BY created_at DESC`, sellerID, archived)
	if err != nil {
		return nil, fmt.Errorf("list seller orders: %w", err)
	}
	return collectOrders(rows)
}

func (r *Repo) ListByIDs(ctx context.Context, ids []string) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("list orders by id: %w", err)
	}
	return collectOrders(rows)
}

func (r *Repo) SetArchived(ctx context.Context, sellerID string, ids []string, archived bool) (int64, error) {
	ct, err := r.DB.Exec(ctx, `UPDATE orders SET archived=$3, updated_at=now()
		WHERE seller_id=$1 AND id = ANY($2)`, sellerID, ids, archived)
	if err != nil {
		return 0, fmt.Errorf("set archived: %w", err)
	}
	return ct.RowsAffected(), nil
}

func (r *Repo) HideForBuyer(ctx context.Context, buyerID string, ids []string, allowed []Status) (int64, error) {
	ct, err := r.DB.Exec(ctx, `UPDATE orders SET hidden_by_buyer=true, updated_at=now()
		WHERE buyer_id=$1 AND id = ANY($2) AND status = ANY($3) AND NOT hidden_by_buyer`,
		buyerID, ids, statusStrings(allowed))
	if err != nil {
		return 0, fmt.Errorf("hide orders: %w", err)
	}
	return ct.RowsAffected(), nil
}

func (r *Repo) CancelOpen(ctx context.Context, party auth.Role, accountID string, open []Status, entry HistoryEntry) (int64, error) {
	var column string
	switch party {
	case auth.RoleSeller:
		column = "seller_id"
	case auth.RoleBuyer:
		column = "buyer_id"
	default:
		return 0, apperr.Validation("party must be buyer or seller, got %q", party)
	}
	b, err := json.Marshal(entry)
	if err != nil {
		return 0, err
	}
	ct, err := r.DB.Exec(ctx, `UPDATE orders
		SET status=$3, history = history || jsonb_build_array($4::jsonb), updated_at=$5
		WHERE `+column+`=$1 AND status = ANY($2)`,
		accountID, statusStrings(open), string(entry.Status), string(b), entry.At)
	if err != nil {
		return 0, fmt.Errorf("cancel open orders: %w", err)
	}
	return ct.RowsAffected(), nil
}

// SellerOrdersBetween returns the seller's orders created in [from, to]. A zero from is unbounded.
func (r *Repo) SellerOrdersBetween(ctx context.Context, sellerID string, from, to time.Time) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE seller_id=$1 AND ($2::timestamptz IS NULL OR created_at >= $2) AND created_at <= $3
		ORDER BY created_at`, sellerID, nullableTime(from), to)
	if err != nil {
		return nil, fmt.Errorf("seller orders between: %w", err)
	}
	return collectOrders(rows)
}

// MarketRevenue aggregates completed orders of every seller in [from, to] by market.
func (r *Repo) MarketRevenue(ctx context.Context, from, to time.Time) ([]MarketTotal, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT market_location, COALESCE(SUM(total_cents), 0), COUNT(*)
		FROM orders
		WHERE status=$1 AND ($2::timestamptz IS NULL OR created_at >= $2) AND created_at <= $3
		GROUP BY market_location
		ORDER BY market_location`, string(StatusCompleted), nullableTime(from), to)
	if err != nil {
		return nil, fmt.Errorf("market revenue: %w", err)
	}
	defer rows.Close()

	var out []MarketTotal
	for rows.Next() {
		var m MarketTotal
		if err := rows.Scan(&m.Market, &m.RevenueCents, &m.OrderCount); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
