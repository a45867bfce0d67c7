package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
)

type Repo struct{ DB *pgxpool.Pool }

const productColumns = `id, seller_id, name, price_cents, quantity, unit, image_ref, market_location,
	is_available, low_stock_threshold, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.SellerID, &p.Name, &p.PriceCents, &p.Quantity, &p.Unit, &p.ImageRef,
		&p.MarketLocation, &p.IsAvailable, &p.LowStockThreshold, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *Repo) Get(ctx context.Context, productID string) (Product, error) {
	p, err := scanProduct(r.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, productID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, apperr.NotFound("product %s not found", productID)
	}
	if err != nil {
		return Product{}, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func (r *Repo) List(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Reserve: one conditional UPDATE, so two checkouts racing on the same product can never both
// pass the availability check. On a miss the row is re-read only to pick the error.
func (r *Repo) Reserve(ctx context.Context, productID string, qty int) (Product, error) {
	p, err := scanProduct(r.DB.QueryRow(ctx, `
		UPDATE products SET quantity = quantity - $2, updated_at = now()
		WHERE id=$1 AND is_available AND quantity >= $2
		RETURNING `+productColumns, productID, qty))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Product{}, fmt.Errorf("reserve stock: %w", err)
	}

	cur, err := r.Get(ctx, productID)
	if err != nil {
		return Product{}, err
	}
	return Product{}, Insufficient(cur, qty)
}

func (r *Repo) Restore(ctx context.Context, productID string, qty int) error {
	ct, err := r.DB.Exec(ctx, `UPDATE products SET quantity = quantity + $2, updated_at = now() WHERE id=$1`, productID, qty)
	if err != nil {
		return fmt.Errorf("restore stock: %w", err)
	}
	if ct.RowsAffected() != 1 {
		return apperr.NotFound("product %s not found", productID)
	}
	return nil
}

func (r *Repo) SetStock(ctx context.Context, productID string, qty, lowStockThreshold int) (Product, error) {
	p, err := scanProduct(r.DB.QueryRow(ctx, `
		UPDATE products SET quantity = $2, low_stock_threshold = $3, updated_at = now()
		WHERE id=$1
		RETURNING `+productColumns, productID, qty, lowStockThreshold))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, apperr.NotFound("product %s not found", productID)
	}
	if err != nil {
		return Product{}, fmt.Errorf("set stock: %w", err)
	}
	return p, nil
}

// Insufficient builds the INSUFFICIENT_STOCK error naming p. Every Ledger shares it.
func Insufficient(p Product, requested int) error {
	if !p.IsAvailable {
		return apperr.InsufficientStock("%s is not available", p.Name)
	}
	return apperr.InsufficientStock("insufficient stock for %s (available: %d, requested: %d)", p.Name, p.Quantity, requested)
}
