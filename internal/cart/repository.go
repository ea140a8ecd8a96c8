package cart

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
)

type Repository interface {
	// GetCart returns (nil, nil) when the session has no cart yet.
	GetCart(ctx context.Context, sessionID string) (*Cart, error)
	UpsertCart(ctx context.Context, c *Cart) error
	ClearCart(ctx context.Context, sessionID string) error
}

type repo struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repo{db: db}
}

func (r *repo) GetCart(ctx context.Context, sessionID string) (*Cart, error) {
	const cartQuery = `SELECT id, session_id, coupon_code, updated_at FROM carts WHERE session_id = $1`

	var c Cart
	err := r.db.QueryRowContext(ctx, cartQuery, sessionID).Scan(&c.ID, &c.SessionID, &c.CouponCode, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT product_id, quantity, shipping_method_id, delivery_address, delivery_city
FROM cart_items WHERE cart_id = $1 ORDER BY position`, c.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ProductID, &it.Quantity, &it.ShippingMethodID, &it.DeliveryAddress, &it.DeliveryCity); err != nil {
			return nil, err
		}
		c.Items = append(c.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &c, nil
}

func (r *repo) UpsertCart(ctx context.Context, c *Cart) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	const upsertCartSQL = `
INSERT INTO carts (id, session_id, coupon_code, updated_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (session_id) DO UPDATE
SET coupon_code = EXCLUDED.coupon_code, updated_at = NOW()
RETURNING id, updated_at
`
	if err = tx.QueryRowContext(ctx, upsertCartSQL, c.ID, c.SessionID, c.CouponCode).Scan(&c.ID, &c.UpdatedAt); err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, c.ID); err != nil {
		return err
	}

	if len(c.Items) > 0 {
		stmt, perr := tx.PrepareContext(ctx, `
INSERT INTO cart_items (id, cart_id, position, product_id, quantity, shipping_method_id, delivery_address, delivery_city)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`)
		if perr != nil {
			err = perr
			return err
		}
		defer stmt.Close()

		for i, it := range c.Items {
			if _, err = stmt.ExecContext(ctx, uuid.NewString(), c.ID, i, it.ProductID, it.Quantity, it.ShippingMethodID, it.DeliveryAddress, it.DeliveryCity); err != nil {
				return err
			}
		}
	}

	err = tx.Commit()
	return err
}

func (r *repo) ClearCart(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM carts WHERE session_id = $1`, sessionID)
	return err
}
