package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/joao-fontenele/storefront/internal/domain"
)

var ErrOrderNotFound = errors.New("order not found")

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = order.CreatedAt

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO orders (reference, cart, status, first_name, last_name, email, phone, destination, price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
	`, order.Reference, order.Cart, order.Status,
		order.Customer.FirstName, order.Customer.LastName, order.Customer.Email, order.Customer.Phone,
		order.Destination, order.Price, order.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order %s: %w", order.Reference, err)
	}

	return nil
}

// GetByReference returns ErrOrderNotFound when the reference is unknown.
func (r *OrderRepository) GetByReference(ctx context.Context, reference string) (*domain.Order, error) {
	order := &domain.Order{}

	err := r.db.QueryRowContext(ctx, `
		SELECT reference, cart, status, first_name, last_name, email, phone, destination, price, created_at, updated_at
		FROM orders
		WHERE reference = $1
	`, reference).Scan(&order.Reference, &order.Cart, &order.Status,
		&order.Customer.FirstName, &order.Customer.LastName, &order.Customer.Email, &order.Customer.Phone,
		&order.Destination, &order.Price, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order %s: %w", reference, err)
	}

	return order, nil
}

// UpdateStatus overwrites the order status; the last write wins. It returns
// ErrOrderNotFound when no row matched.
func (r *OrderRepository) UpdateStatus(ctx context.Context, reference string, status domain.OrderStatus) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE reference = $2
	`, status, reference)
	if err != nil {
		return fmt.Errorf("update order %s: %w", reference, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrOrderNotFound
	}

	return nil
}

// ListStalePending returns pending orders created before the cutoff, oldest
// first. These are checkouts whose gateway call failed or was abandoned.
func (r *OrderRepository) ListStalePending(ctx context.Context, before time.Time, limit int) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT reference, cart, status, first_name, last_name, email, phone, destination, price, created_at, updated_at
		FROM orders
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at
		LIMIT $3
	`, domain.OrderStatusPending, before, limit)
	if err != nil {
		return nil, fmt.Errorf("query stale orders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	orders := []domain.Order{}
	for rows.Next() {
		var order domain.Order
		if err := rows.Scan(&order.Reference, &order.Cart, &order.Status,
			&order.Customer.FirstName, &order.Customer.LastName, &order.Customer.Email, &order.Customer.Phone,
			&order.Destination, &order.Price, &order.CreatedAt, &order.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}

// ExpirePending moves an order from PENDING to EXPIRED. It reports false when
// the order has left PENDING in the meantime.
func (r *OrderRepository) ExpirePending(ctx context.Context, reference string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE reference = $2 AND status = $3
	`, domain.OrderStatusExpired, reference, domain.OrderStatusPending)
	if err != nil {
		return false, fmt.Errorf("expire order %s: %w", reference, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected == 1, nil
}
