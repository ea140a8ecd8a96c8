package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

var (
	ErrNotFound        = errors.New("order not found")
	ErrCouponExhausted = errors.New("coupon usage limit reached")
)

type Repository interface {
	// Create writes the order, its delivery groups, its items and the coupon
	// usage in one transaction.
	Create(ctx context.Context, o *Order) error
	// GetByID returns (nil, nil) when the order does not exist.
	GetByID(ctx context.Context, orderID string) (*Order, error)
	ListBySession(ctx context.Context, sessionID string) ([]Order, error)
}

type repo struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repo{db: db}
}

func (r *repo) Create(ctx context.Context, o *Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Status == "" {
		o.Status = StatusCreated
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO orders (id, session_id, customer_name, customer_email, customer_phone,
             delivery_address, delivery_city, delivery_notes,
             subtotal, discount, shipping, total, coupon_code, status, created_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		o.ID, o.SessionID, o.Customer.Name, o.Customer.Email, o.Customer.Phone,
		o.Delivery.Address, o.Delivery.City, o.Delivery.Notes,
		o.Subtotal, o.Discount, o.Shipping, o.Total, o.CouponCode, string(o.Status), o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i := range o.DeliveryGroups {
		g := &o.DeliveryGroups[i]
		if g.ID == "" {
			g.ID = uuid.NewString()
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO delivery_groups (id, order_id, store_id, address, city, subtotal, shipping)
             VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			g.ID, o.ID, g.StoreID, g.Address, g.City, g.Subtotal, g.Shipping,
		)
		if err != nil {
			return fmt.Errorf("insert delivery_group: %w", err)
		}
	}

	for _, it := range o.Items {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO order_items (id, order_id, delivery_group_id, product_id, store_id, name,
                 quantity, unit_price, shipping_method_id, shipping_cost)
             VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			uuid.NewString(), o.ID, it.DeliveryGroupID, it.ProductID, it.StoreID, it.Name,
			it.Quantity, it.UnitPrice, it.ShippingMethodID, it.ShippingCost,
		)
		if err != nil {
			return fmt.Errorf("insert order_item: %w", err)
		}
	}

	if o.CouponCode != "" {
		res, err := tx.ExecContext(ctx,
			`UPDATE coupons SET used_count = used_count + 1
             WHERE upper(code) = upper($1) AND active AND (usage_limit IS NULL OR used_count < usage_limit)`,
			o.CouponCode,
		)
		if err != nil {
			return fmt.Errorf("consume coupon: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("consume coupon: %w", err)
		}
		if n == 0 {
			return ErrCouponExhausted
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

const orderColumns = `o.id, o.session_id, o.customer_name, o.customer_email, o.customer_phone,
         o.delivery_address, o.delivery_city, o.delivery_notes,
         o.subtotal, o.discount, o.shipping, o.total, o.coupon_code, o.status,
         COALESCE(o.current_payment_id::text, ''), COALESCE(p.status, ''), o.created_at
         FROM orders o LEFT JOIN payments p ON p.id = o.current_payment_id`

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (Order, error) {
	var (
		o      Order
		status string
	)
	err := row.Scan(
		&o.ID, &o.SessionID, &o.Customer.Name, &o.Customer.Email, &o.Customer.Phone,
		&o.Delivery.Address, &o.Delivery.City, &o.Delivery.Notes,
		&o.Subtotal, &o.Discount, &o.Shipping, &o.Total, &o.CouponCode, &status,
		&o.CurrentPaymentID, &o.PaymentStatus, &o.CreatedAt,
	)
	o.Status = Status(status)
	return o, err
}

func (r *repo) GetByID(ctx context.Context, orderID string) (*Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+`
         WHERE o.id = $1`,
		orderID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select order: %w", err)
	}

	orders := []Order{o}
	if err := r.loadDetails(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func (r *repo) ListBySession(ctx context.Context, sessionID string) ([]Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+orderColumns+`
         WHERE o.session_id = $1 ORDER BY o.created_at DESC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	if err := r.loadDetails(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// loadDetails fills delivery groups and items for all given orders with one
// query per table.
func (r *repo) loadDetails(ctx context.Context, orders []Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]string, len(orders))
	index := make(map[string]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
	}

	groupRows, err := r.db.QueryContext(ctx,
		`SELECT order_id, id, store_id, address, city, subtotal, shipping
         FROM delivery_groups WHERE order_id = ANY($1) ORDER BY store_id, id`,
		pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("select delivery_groups: %w", err)
	}
	defer groupRows.Close()

	for groupRows.Next() {
		var (
			orderID string
			g       DeliveryGroup
		)
		if err := groupRows.Scan(&orderID, &g.ID, &g.StoreID, &g.Address, &g.City, &g.Subtotal, &g.Shipping); err != nil {
			return fmt.Errorf("scan delivery_group: %w", err)
		}
		if i, ok := index[orderID]; ok {
			orders[i].DeliveryGroups = append(orders[i].DeliveryGroups, g)
		}
	}
	if err := groupRows.Err(); err != nil {
		return fmt.Errorf("rows: %w", err)
	}

	itemRows, err := r.db.QueryContext(ctx,
		`SELECT order_id, delivery_group_id, product_id, store_id, name, quantity,
                unit_price, shipping_method_id, shipping_cost
         FROM order_items WHERE order_id = ANY($1) ORDER BY store_id, product_id`,
		pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("select order_items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var (
			orderID string
			it      Item
		)
		if err := itemRows.Scan(&orderID, &it.DeliveryGroupID, &it.ProductID, &it.StoreID, &it.Name, &it.Quantity,
			&it.UnitPrice, &it.ShippingMethodID, &it.ShippingCost); err != nil {
			return fmt.Errorf("scan order_item: %w", err)
		}
		if i, ok := index[orderID]; ok {
			orders[i].Items = append(orders[i].Items, it)
		}
	}
	if err := itemRows.Err(); err != nil {
		return fmt.Errorf("rows: %w", err)
	}
	return nil
}
