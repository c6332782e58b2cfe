package postgres

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "github.com/adomherbals/api/internal/domain"
	"github.com/adomherbals/api/internal/repositories"
)

// OrderRepository persists orders and their line items in Postgres.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository constructs an order repository over the pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

const insertOrderSQL = `
INSERT INTO orders (
    id, user_id, status, currency, subtotal, tax, shipping_cost, total,
    shipping_method, payment_method, card_holder, momo_provider, momo_number,
    payment_reference, idempotency_token,
    contact_name, contact_email, contact_phone,
    addr_id, addr_recipient, addr_street, addr_city, addr_region,
    addr_postal_code, addr_country, addr_phone,
    created_at, updated_at
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8,
    $9, $10, $11, $12, $13,
    $14, $15,
    $16, $17, $18,
    $19, $20, $21, $22, $23,
    $24, $25, $26,
    $27, $28
)
ON CONFLICT (idempotency_token) DO NOTHING`

const insertOrderItemSQL = `
INSERT INTO order_items (order_id, line_no, product_id, name, quantity, unit_price, total)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

// Insert stores the order inside one transaction. When the idempotency token
// has been used before, the previously stored order is returned instead of
// creating a duplicate.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) (domain.Order, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Order{}, translate("postgres orders: begin", err)
	}
	defer tx.Rollback(ctx)

	var cardHolder, momoProvider, momoNumber *string
	if order.Payment.Card != nil {
		cardHolder = &order.Payment.Card.HolderName
	}
	if order.Payment.MobileMoney != nil {
		provider := string(order.Payment.MobileMoney.Provider)
		momoProvider = &provider
		momoNumber = &order.Payment.MobileMoney.Number
	}

	var token *string
	if trimmed := strings.TrimSpace(order.IdempotencyToken); trimmed != "" {
		token = &trimmed
	}

	tag, err := tx.Exec(ctx, insertOrderSQL,
		order.ID, order.UserID, string(order.Status), order.Currency,
		order.Subtotal, order.Tax, order.ShippingCost, order.Total,
		string(order.ShippingMethod), string(order.Payment.Method), cardHolder, momoProvider, momoNumber,
		order.PaymentReference, token,
		order.Contact.Name, order.Contact.Email, order.Contact.Phone,
		order.ShippingAddress.ID, order.ShippingAddress.Recipient, order.ShippingAddress.Street,
		order.ShippingAddress.City, string(order.ShippingAddress.Region),
		order.ShippingAddress.PostalCode, order.ShippingAddress.Country, order.ShippingAddress.Phone,
		order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return domain.Order{}, translate("postgres orders: insert", err)
	}
	if tag.RowsAffected() == 0 && token != nil {
		// Token already used; hand back the order created by the earlier attempt.
		return r.FindByIdempotencyToken(ctx, *token)
	}

	for i, item := range order.Items {
		if _, err := tx.Exec(ctx, insertOrderItemSQL,
			order.ID, i+1, item.ProductID, item.Name, item.Quantity, item.UnitPrice, item.Total,
		); err != nil {
			return domain.Order{}, translate("postgres orders: insert item", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Order{}, translate("postgres orders: commit", err)
	}
	return order, nil
}

const selectOrderSQL = `
SELECT id, user_id, status, currency, subtotal, tax, shipping_cost, total,
       shipping_method, payment_method, card_holder, momo_provider, momo_number,
       payment_reference, COALESCE(idempotency_token, ''),
       contact_name, contact_email, contact_phone,
       addr_id, addr_recipient, addr_street, addr_city, addr_region,
       addr_postal_code, addr_country, addr_phone,
       created_at, updated_at, paid_at
FROM orders`

// FindByID returns the stored order with its line items.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	row := r.pool.QueryRow(ctx, selectOrderSQL+" WHERE id = $1", orderID)
	order, err := scanOrder(row)
	if err != nil {
		return domain.Order{}, translate("postgres orders: find", err)
	}
	if err := r.loadItems(ctx, &order); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

// FindByIdempotencyToken returns the order previously inserted with the token.
func (r *OrderRepository) FindByIdempotencyToken(ctx context.Context, token string) (domain.Order, error) {
	row := r.pool.QueryRow(ctx, selectOrderSQL+" WHERE idempotency_token = $1", token)
	order, err := scanOrder(row)
	if err != nil {
		return domain.Order{}, translate("postgres orders: find by token", err)
	}
	if err := r.loadItems(ctx, &order); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

const updateOrderStatusSQL = `
UPDATE orders
SET status = $2,
    payment_reference = CASE WHEN $3 <> '' THEN $3 ELSE payment_reference END,
    paid_at = CASE WHEN $2 = 'paid' AND paid_at IS NULL THEN now() ELSE paid_at END,
    updated_at = now()
WHERE id = $1`

// UpdateStatus mutates only the status and payment reference of an order.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, paymentReference string) (domain.Order, error) {
	tag, err := r.pool.Exec(ctx, updateOrderStatusSQL, orderID, string(status), strings.TrimSpace(paymentReference))
	if err != nil {
		return domain.Order{}, translate("postgres orders: update status", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.Order{}, repositories.NewNotFound("postgres orders: update status", nil)
	}
	return r.FindByID(ctx, orderID)
}

// ListByUser returns the user's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Order, error) {
	query := selectOrderSQL + " WHERE user_id = $1 ORDER BY created_at DESC"
	args := []any{userID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, translate("postgres orders: list", err)
	}
	defer rows.Close()

	var result []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, translate("postgres orders: scan", err)
		}
		result = append(result, order)
	}
	if err := rows.Err(); err != nil {
		return nil, translate("postgres orders: rows", err)
	}

	for i := range result {
		if err := r.loadItems(ctx, &result[i]); err != nil {
			return nil, err
		}
	}
	return result, nil
}

const selectOrderItemsSQL = `
SELECT product_id, name, quantity, unit_price, total
FROM order_items WHERE order_id = $1 ORDER BY line_no`

func (r *OrderRepository) loadItems(ctx context.Context, order *domain.Order) error {
	rows, err := r.pool.Query(ctx, selectOrderItemsSQL, order.ID)
	if err != nil {
		return translate("postgres orders: load items", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.OrderLineItem
		if err := rows.Scan(&item.ProductID, &item.Name, &item.Quantity, &item.UnitPrice, &item.Total); err != nil {
			return translate("postgres orders: scan item", err)
		}
		order.Items = append(order.Items, item)
	}
	return translate("postgres orders: item rows", rows.Err())
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var order domain.Order
	var status, shippingMethod, paymentMethod, region string
	var cardHolder, momoProvider, momoNumber *string

	err := row.Scan(
		&order.ID, &order.UserID, &status, &order.Currency,
		&order.Subtotal, &order.Tax, &order.ShippingCost, &order.Total,
		&shippingMethod, &paymentMethod, &cardHolder, &momoProvider, &momoNumber,
		&order.PaymentReference, &order.IdempotencyToken,
		&order.Contact.Name, &order.Contact.Email, &order.Contact.Phone,
		&order.ShippingAddress.ID, &order.ShippingAddress.Recipient, &order.ShippingAddress.Street,
		&order.ShippingAddress.City, &region,
		&order.ShippingAddress.PostalCode, &order.ShippingAddress.Country, &order.ShippingAddress.Phone,
		&order.CreatedAt, &order.UpdatedAt, &order.PaidAt,
	)
	if err != nil {
		return domain.Order{}, err
	}

	order.Status = domain.OrderStatus(status)
	order.ShippingMethod = domain.DeliveryMethod(shippingMethod)
	order.ShippingAddress.Region = domain.RegionCode(region)
	order.ShippingAddress.UserID = order.UserID
	order.Payment = domain.PaymentDetails{Method: domain.PaymentMethod(paymentMethod)}
	if cardHolder != nil {
		order.Payment.Card = &domain.CardDetails{HolderName: *cardHolder}
	}
	if momoProvider != nil {
		order.Payment.MobileMoney = &domain.MobileMoneyDetails{
			Provider: domain.MobileMoneyProvider(*momoProvider),
		}
		if momoNumber != nil {
			order.Payment.MobileMoney.Number = *momoNumber
		}
	}
	return order, nil
}
