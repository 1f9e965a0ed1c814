package sales

import (
	"context"
	"database/sql"
	"errors"

	"github.com/joao-fontenele/pharmacy-pos/internal/domain"
)

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) CreateDraft(ctx context.Context, order *domain.SalesOrder, idempotencyKey string) (*domain.SalesOrder, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = tx.Rollback() }()

	var key sql.NullString
	if idempotencyKey != "" {
		key = sql.NullString{String: idempotencyKey, Valid: true}
	}
	var customerID sql.NullString
	if order.CustomerID != "" {
		customerID = sql.NullString{String: order.CustomerID, Valid: true}
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO sales_orders (id, order_number, idempotency_key, customer_id, subtotal, tax_amount, total_amount,
			payment_status, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		ON CONFLICT (idempotency_key) DO NOTHING
	`, order.ID, order.OrderNumber, key, customerID, order.Subtotal, order.TaxAmount, order.TotalAmount,
		order.PaymentStatus, order.Status, order.CreatedAt)
	if err != nil {
		return nil, false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, false, err
	}

	if rowsAffected == 0 {
		_ = tx.Rollback()
		existing, err := r.getByIdempotencyKey(ctx, idempotencyKey)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	for i, item := range order.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sales_order_items (id, sales_order_id, product_id, quantity, unit_price, discount_amount,
				line_total, vat_amount, price_before_vat, price_including_vat, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, item.ID, order.ID, item.ProductID, item.Quantity, item.UnitPrice, item.DiscountAmount,
			item.LineTotal, item.VATAmount, item.PriceBeforeVAT, item.PriceIncludingVAT, i)
		if err != nil {
			return nil, false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	return order, true, nil
}

func (r *OrderRepository) getByIdempotencyKey(ctx context.Context, key string) (*domain.SalesOrder, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM sales_orders WHERE idempotency_key = $1`, key).Scan(&id)
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.SalesOrder, error) {
	order := &domain.SalesOrder{}
	var (
		customerID sql.NullString
		method     sql.NullString
		completed  sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT id, order_number, customer_id, subtotal, tax_amount, total_amount, payment_method,
			payment_status, paid_amount, change_amount, status, created_at, completed_at
		FROM sales_orders
		WHERE id = $1
	`, id).Scan(&order.ID, &order.OrderNumber, &customerID, &order.Subtotal, &order.TaxAmount, &order.TotalAmount,
		&method, &order.PaymentStatus, &order.PaidAmount, &order.ChangeAmount, &order.Status, &order.CreatedAt, &completed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	order.CustomerID = customerID.String
	if method.Valid {
		m := domain.PaymentMethod(method.String)
		order.PaymentMethod = &m
	}
	if completed.Valid {
		t := completed.Time.UTC()
		order.CompletedAt = &t
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, product_id, quantity, unit_price, discount_amount, line_total, vat_amount,
			price_before_vat, price_including_vat
		FROM sales_order_items
		WHERE sales_order_id = $1
		ORDER BY position
	`, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	order.Items = []domain.SalesOrderItem{}
	for rows.Next() {
		var item domain.SalesOrderItem
		if err := rows.Scan(&item.ID, &item.ProductID, &item.Quantity, &item.UnitPrice, &item.DiscountAmount,
			&item.LineTotal, &item.VATAmount, &item.PriceBeforeVAT, &item.PriceIncludingVAT); err != nil {
			return nil, err
		}
		order.Items = append(order.Items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return order, nil
}

func (r *OrderRepository) Complete(ctx context.Context, order *domain.SalesOrder) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE sales_orders
		SET payment_method = $2, paid_amount = $3, change_amount = $4, payment_status = $5,
			status = $6, completed_at = $7, updated_at = NOW()
		WHERE id = $1 AND status = $8
	`, order.ID, order.PaymentMethod, order.PaidAmount, order.ChangeAmount, order.PaymentStatus,
		order.Status, order.CompletedAt, domain.OrderStatusDraft)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrOrderCompleted
	}

	return nil
}
