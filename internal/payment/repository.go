package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	// CreateAttempt inserts a pending payment and points the order at it.
	CreateAttempt(ctx context.Context, p *Payment) error
	// GetByID returns (nil, nil) when the payment does not exist.
	GetByID(ctx context.Context, paymentID string) (*Payment, error)
	GetByReference(ctx context.Context, method Method, reference string) (*Payment, error)
	ListByOrder(ctx context.Context, orderID string) ([]Payment, error)
	// Transition moves a pending payment to a terminal status.
	Transition(ctx context.Context, paymentID string, to Status, reason string) (*Payment, error)
}

type repo struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repo{db: db}
}

const paymentColumns = `id, order_id, method, amount, status, external_reference, pickup_location,
                redirect_url, failure_reason, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanPayment(row scanner) (Payment, error) {
	var (
		p              Payment
		method, status string
	)
	err := row.Scan(&p.ID, &p.OrderID, &method, &p.Amount, &status, &p.ExternalReference, &p.PickupLocation,
		&p.RedirectURL, &p.FailureReason, &p.CreatedAt, &p.UpdatedAt)
	p.Method = Method(method)
	p.Status = Status(status)
	return p, err
}

func (r *repo) CreateAttempt(ctx context.Context, p *Payment) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = StatusPending
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO payments (id, order_id, method, amount, status, external_reference, pickup_location,
                 redirect_url, failure_reason, created_at, updated_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.ID, p.OrderID, string(p.Method), p.Amount, string(p.Status), p.ExternalReference, p.PickupLocation,
		p.RedirectURL, p.FailureReason, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE orders SET current_payment_id = $1 WHERE id = $2`,
		p.ID, p.OrderID,
	)
	if err != nil {
		return fmt.Errorf("update current payment: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("update current payment: %w", err)
	} else if n == 0 {
		return ErrOrderNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *repo) GetByID(ctx context.Context, paymentID string) (*Payment, error) {
	p, err := scanPayment(r.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1`,
		paymentID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select payment: %w", err)
	}
	return &p, nil
}

func (r *repo) GetByReference(ctx context.Context, method Method, reference string) (*Payment, error) {
	p, err := scanPayment(r.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE method = $1 AND external_reference = $2
         ORDER BY created_at DESC LIMIT 1`,
		string(method), reference,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select payment by reference: %w", err)
	}
	return &p, nil
}

func (r *repo) ListByOrder(ctx context.Context, orderID string) ([]Payment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE order_id = $1 ORDER BY created_at DESC`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("select payments: %w", err)
	}
	defer rows.Close()

	payments := []Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return payments, nil
}

func (r *repo) Transition(ctx context.Context, paymentID string, to Status, reason string) (*Payment, error) {
	p, err := scanPayment(r.db.QueryRowContext(ctx,
		`UPDATE payments SET status = $2, failure_reason = $3, updated_at = NOW()
         WHERE id = $1 AND status = 'pending'
         RETURNING `+paymentColumns,
		paymentID, string(to), reason,
	))
	if err == nil {
		return &p, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("update payment status: %w", err)
	}

	current, err := r.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrNotFound
	}
	return nil, fmt.Errorf("%w: payment %s is %s", ErrTerminal, paymentID, current.Status)
}
