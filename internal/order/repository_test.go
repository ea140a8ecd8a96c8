package order

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sampleOrder() *Order {
	return &Order{
		ID:        "order-123",
		SessionID: "s1",
		Customer:  Customer{Name: "Ana Pérez", Email: "ana@example.com", Phone: "+56911112222"},
		Delivery:  Delivery{Address: "Los Aromos 123", City: "Talca"},
		Subtotal:  dec("2000"),
		Discount:  dec("200"),
		Shipping:  dec("300"),
		Total:     dec("2100"),
		CreatedAt: time.Now(),
		DeliveryGroups: []DeliveryGroup{
			{ID: "group-1", StoreID: 1, Address: "Los Aromos 123", City: "Talca", Subtotal: dec("2000"), Shipping: dec("300")},
		},
		Items: []Item{
			{ProductID: 10, StoreID: 1, Name: "Torta", Quantity: 2, UnitPrice: dec("1000"), ShippingMethodID: 100, ShippingCost: dec("300"), DeliveryGroupID: "group-1"},
		},
	}
}

func expectOrderWrites(mock sqlmock.Sqlmock, o *Order) {
	mock.ExpectExec(`INSERT INTO orders`).
		WithArgs(o.ID, o.SessionID, o.Customer.Name, o.Customer.Email, o.Customer.Phone,
			o.Delivery.Address, o.Delivery.City, o.Delivery.Notes,
			o.Subtotal, o.Discount, o.Shipping, o.Total, o.CouponCode, "created", o.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO delivery_groups`).
		WithArgs("group-1", o.ID, int64(1), "Los Aromos 123", "Talca", dec("2000"), dec("300")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO order_items`).
		WithArgs(sqlmock.AnyArg(), o.ID, "group-1", int64(10), int64(1), "Torta", 2, dec("1000"), int64(100), dec("300")).
		WillReturnResult(sqlmock.NewResult(1, 1))
}

func TestRepositoryCreate_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	o := sampleOrder()
	o.CouponCode = "SAVE10"

	mock.ExpectBegin()
	expectOrderWrites(mock, o)
	mock.ExpectExec(`UPDATE coupons SET used_count = used_count \+ 1\s+WHERE upper\(code\) = upper\(\$1\)`).
		WithArgs("SAVE10").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), o))
	require.Equal(t, StatusCreated, o.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryCreate_CouponExhaustedRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	o := sampleOrder()
	o.CouponCode = "SAVE10"

	mock.ExpectBegin()
	expectOrderWrites(mock, o)
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE coupons SET used_count = used_count + 1`)).
		WithArgs("SAVE10").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err = repo.Create(context.Background(), o)
	require.ErrorIs(t, err, ErrCouponExhausted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryCreate_ItemInsertErrorRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	o := sampleOrder()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO orders`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO delivery_groups`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO order_items`).WillReturnError(errors.New("item insert failed"))
	mock.ExpectRollback()

	err = repo.Create(context.Background(), o)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryCreate_OrderInsertError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO orders`).WillReturnError(errors.New("insert failed"))
	mock.ExpectRollback()

	require.Error(t, repo.Create(context.Background(), sampleOrder()))
	require.NoError(t, mock.ExpectationsWereMet())
}

var orderCols = []string{
	"id", "session_id", "customer_name", "customer_email", "customer_phone",
	"delivery_address", "delivery_city", "delivery_notes",
	"subtotal", "discount", "shipping", "total", "coupon_code", "status",
	"current_payment_id", "payment_status", "created_at",
}

func TestRepositoryGetByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)

	mock.ExpectQuery(`FROM orders o LEFT JOIN payments p`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	o, err := repo.GetByID(context.Background(), "missing")
	require.NoError(t, err)
	require.Nil(t, o)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryGetByID_WithDetails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	now := time.Now()

	mock.ExpectQuery(`FROM orders o LEFT JOIN payments p`).
		WithArgs("order-123").
		WillReturnRows(sqlmock.NewRows(orderCols).AddRow(
			"order-123", "s1", "Ana Pérez", "ana@example.com", "+56911112222",
			"Los Aromos 123", "Talca", "",
			"2000.00", "0.00", "300.00", "2300.00", "", "created",
			"pay-1", "failed", now))
	mock.ExpectQuery(`FROM delivery_groups WHERE order_id = ANY\(\$1\)`).
		WithArgs(pq.Array([]string{"order-123"})).
		WillReturnRows(sqlmock.NewRows([]string{"order_id", "id", "store_id", "address", "city", "subtotal", "shipping"}).
			AddRow("order-123", "group-1", int64(1), "Los Aromos 123", "Talca", "2000.00", "300.00"))
	mock.ExpectQuery(`FROM order_items WHERE order_id = ANY\(\$1\)`).
		WithArgs(pq.Array([]string{"order-123"})).
		WillReturnRows(sqlmock.NewRows([]string{"order_id", "delivery_group_id", "product_id", "store_id", "name", "quantity", "unit_price", "shipping_method_id", "shipping_cost"}).
			AddRow("order-123", "group-1", int64(10), int64(1), "Torta", 2, "1000.00", int64(100), "300.00"))

	o, err := repo.GetByID(context.Background(), "order-123")
	require.NoError(t, err)
	require.NotNil(t, o)
	require.Equal(t, StatusCreated, o.Status)
	require.Equal(t, "pay-1", o.CurrentPaymentID)
	require.Equal(t, "failed", o.PaymentStatus)
	require.False(t, o.IsPaid())
	require.True(t, o.Total.Equal(dec("2300")))
	require.Len(t, o.DeliveryGroups, 1)
	require.Len(t, o.Items, 1)
	require.Equal(t, "group-1", o.Items[0].DeliveryGroupID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryListBySession_EmptyResult(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)

	mock.ExpectQuery(`WHERE o.session_id = \$1 ORDER BY o.created_at DESC`).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows(orderCols))

	orders, err := repo.ListBySession(context.Background(), "s1")
	require.NoError(t, err)
	require.Empty(t, orders)
	require.NoError(t, mock.ExpectationsWereMet())
}
