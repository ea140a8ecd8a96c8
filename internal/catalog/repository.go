package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("not found")

// DBPool matches the methods from *pgxpool.Pool that we use.
type DBPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

type Repository interface {
	GetProduct(ctx context.Context, productID int64) (Product, error)
	GetStore(ctx context.Context, storeID int64) (Store, error)
	GetStoreBySlug(ctx context.Context, slug string) (Store, error)
	ListStoreProducts(ctx context.Context, storeID int64) ([]Product, error)
	ListShippingMethods(ctx context.Context, productID int64) ([]ShippingMethod, error)
	SetStock(ctx context.Context, productID int64, quantity int) error
	ListLowStock(ctx context.Context) ([]Product, error)
}

type PostgresRepository struct {
	pool DBPool
}

func NewPostgresRepository(pool DBPool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const productColumns = `id, store_id, name, price, stock_quantity, stock_min_threshold, active, service_type`

const storeColumns = `id, slug, name, address, primary_color, delivery_time_min, delivery_time_max`

func (r *PostgresRepository) GetProduct(ctx context.Context, productID int64) (Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, productID)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, fmt.Errorf("select product %d: %w", productID, err)
	}
	return p, nil
}

func (r *PostgresRepository) GetStore(ctx context.Context, storeID int64) (Store, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+storeColumns+` FROM stores WHERE id=$1`, storeID)
	s, err := scanStore(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Store{}, ErrNotFound
		}
		return Store{}, fmt.Errorf("select store %d: %w", storeID, err)
	}
	return s, nil
}

func (r *PostgresRepository) GetStoreBySlug(ctx context.Context, slug string) (Store, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+storeColumns+` FROM stores WHERE slug=$1`, slug)
	s, err := scanStore(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Store{}, ErrNotFound
		}
		return Store{}, fmt.Errorf("select store %q: %w", slug, err)
	}
	return s, nil
}

func (r *PostgresRepository) ListStoreProducts(ctx context.Context, storeID int64) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE store_id=$1 AND active
		ORDER BY name, id
	`, storeID)
	if err != nil {
		return nil, fmt.Errorf("select store products: %w", err)
	}
	return collectProducts(rows)
}

func (r *PostgresRepository) ListShippingMethods(ctx context.Context, productID int64) ([]ShippingMethod, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, product_id, name, cost
		FROM shipping_methods
		WHERE product_id=$1
		ORDER BY cost, id
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("select shipping methods: %w", err)
	}
	defer rows.Close()

	var methods []ShippingMethod
	for rows.Next() {
		var (
			m    ShippingMethod
			cost float64
		)
		if err := rows.Scan(&m.ID, &m.ProductID, &m.Name, &cost); err != nil {
			return nil, fmt.Errorf("scan shipping method: %w", err)
		}
		m.Cost = decimal.NewFromFloat(cost)
		methods = append(methods, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return methods, nil
}

func (r *PostgresRepository) SetStock(ctx context.Context, productID int64, quantity int) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE products
		SET stock_quantity=$2, updated_at=now()
		WHERE id=$1
	`, productID, quantity)
	if err != nil {
		return fmt.Errorf("update stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) ListLowStock(ctx context.Context) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE active AND service_type <> 'service' AND stock_quantity <= stock_min_threshold
		ORDER BY store_id, stock_quantity, id
	`)
	if err != nil {
		return nil, fmt.Errorf("select low stock: %w", err)
	}
	return collectProducts(rows)
}

func collectProducts(rows pgx.Rows) ([]Product, error) {
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return products, nil
}

func scanProduct(row pgx.Row) (Product, error) {
	var (
		p     Product
		price float64
	)
	if err := row.Scan(&p.ID, &p.StoreID, &p.Name, &price, &p.StockQuantity, &p.StockMinThreshold, &p.Active, &p.ServiceType); err != nil {
		return Product{}, err
	}
	p.Price = decimal.NewFromFloat(price)
	return p, nil
}

func scanStore(row pgx.Row) (Store, error) {
	var s Store
	if err := row.Scan(&s.ID, &s.Slug, &s.Name, &s.Address, &s.PrimaryColor, &s.DeliveryTimeMin, &s.DeliveryTimeMax); err != nil {
		return Store{}, err
	}
	return s, nil
}
