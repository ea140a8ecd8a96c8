package coupon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// DBPool matches the methods from *pgxpool.Pool that we use.
type DBPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repository interface {
	GetByCode(ctx context.Context, code string) (Coupon, error)
}

type PostgresRepository struct {
	pool DBPool
}

func NewPostgresRepository(pool DBPool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// GetByCode matches codes case-insensitively; rows written by hand with a
// lower case code still resolve.
func (r *PostgresRepository) GetByCode(ctx context.Context, code string) (Coupon, error) {
	var (
		c           Coupon
		kind        string
		discountVal float64
		minOrder    float64
		usageLimit  int
		hasLimit    bool
		expiresAt   time.Time
		hasExpiry   bool
	)

	err := r.pool.QueryRow(ctx, `
		SELECT code, discount_type, discount_value, min_order_amount,
		       COALESCE(usage_limit, 0), usage_limit IS NOT NULL, used_count,
		       COALESCE(expires_at, now()), expires_at IS NOT NULL, active
		FROM coupons
		WHERE upper(code) = $1
	`, Normalize(code)).Scan(
		&c.Code, &kind, &discountVal, &minOrder,
		&usageLimit, &hasLimit, &c.UsedCount,
		&expiresAt, &hasExpiry, &c.Active,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Coupon{}, ErrNotFound
		}
		return Coupon{}, fmt.Errorf("select coupon: %w", err)
	}

	c.DiscountType = DiscountType(kind)
	c.DiscountValue = decimal.NewFromFloat(discountVal)
	c.MinOrderAmount = decimal.NewFromFloat(minOrder)
	if hasLimit {
		c.UsageLimit = &usageLimit
	}
	if hasExpiry {
		c.ExpiresAt = &expiresAt
	}
	return c, nil
}
