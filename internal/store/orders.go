package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Order is a purchase order row. OriginalMessage holds the raw free-text
// message when the order came from the AI parse path.
type Order struct {
	ID              int64
	OrderDate       time.Time
	Recipient       string
	Owner           pgtype.UUID
	InvoiceNumber   string
	Status          string
	OriginalMessage pgtype.Text
	CreatedAt       pgtype.Timestamptz
	UpdatedAt       pgtype.Timestamptz
}

// OrderItem is one line of an order, optionally backed by a catalog product.
type OrderItem struct {
	ID          int64
	OrderID     int64
	ProductID   *int64
	ProductName string
	Quantity    float64
	Description pgtype.Text
	UnitPrice   *float64
	Unit        pgtype.Text
}

const orderColumns = `id, order_date, recipient, owner, invoice_number, status, original_message, created_at, updated_at`

func scanOrder(row interface{ Scan(dest ...any) error }) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID,
		&o.OrderDate,
		&o.Recipient,
		&o.Owner,
		&o.InvoiceNumber,
		&o.Status,
		&o.OriginalMessage,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	return o, err
}

// ListOrdersForOwnerParams narrows the owner-scoped listing. Nil filters are
// ignored by the statement itself.
type ListOrdersForOwnerParams struct {
	Owner     pgtype.UUID
	Date      *time.Time
	Recipient *string
}

const listOrdersForOwner = `
SELECT ` + orderColumns + `
FROM orders
WHERE owner = $1
  AND ($2::date IS NULL OR order_date = $2)
  AND ($3::text IS NULL OR recipient LIKE '%' || $3 || '%')
ORDER BY created_at DESC`

// ListOrdersForOwner returns the owner's orders newest first, optionally
// filtered by exact date and recipient substring.
func (q *Queries) ListOrdersForOwner(ctx context.Context, arg ListOrdersForOwnerParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrdersForOwner, arg.Owner, arg.Date, arg.Recipient)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// GetOrderForOwnerParams scopes a single-order lookup to its owner.
type GetOrderForOwnerParams struct {
	ID    int64
	Owner pgtype.UUID
}

const getOrderForOwner = `
SELECT ` + orderColumns + ` FROM orders WHERE id = $1 AND owner = $2`

// GetOrderForOwner fetches one order if the caller owns it. Absent and
// foreign orders are both pgx.ErrNoRows.
func (q *Queries) GetOrderForOwner(ctx context.Context, arg GetOrderForOwnerParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderForOwner, arg.ID, arg.Owner))
}

// InsertOrderParams carries a validated order row.
type InsertOrderParams struct {
	OrderDate       time.Time
	Recipient       string
	Owner           pgtype.UUID
	InvoiceNumber   string
	OriginalMessage pgtype.Text
}

const insertOrder = `
INSERT INTO orders (order_date, recipient, owner, invoice_number, original_message)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + orderColumns

// InsertOrder creates the order row; items are inserted separately inside the
// same transaction.
func (q *Queries) InsertOrder(ctx context.Context, arg InsertOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, insertOrder,
		arg.OrderDate,
		arg.Recipient,
		arg.Owner,
		arg.InvoiceNumber,
		arg.OriginalMessage,
	)
	return scanOrder(row)
}

// UpdateOrderFieldsParams applies a partial update; nil fields keep the
// current value. UpdatedAt is always bumped.
type UpdateOrderFieldsParams struct {
	ID        int64
	Owner     pgtype.UUID
	Date      *time.Time
	Recipient *string
	Status    *string
}

const updateOrderFields = `
UPDATE orders
SET order_date = COALESCE($3, order_date),
    recipient  = COALESCE($4, recipient),
    status     = COALESCE($5, status),
    updated_at = now()
WHERE id = $1 AND owner = $2`

// UpdateOrderFields returns the number of rows touched; zero means the order
// is absent or owned by someone else.
func (q *Queries) UpdateOrderFields(ctx context.Context, arg UpdateOrderFieldsParams) (int64, error) {
	tag, err := q.db.Exec(ctx, updateOrderFields, arg.ID, arg.Owner, arg.Date, arg.Recipient, arg.Status)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteOrderParams scopes the delete to the owner.
type DeleteOrderParams struct {
	ID    int64
	Owner pgtype.UUID
}

const deleteOrder = `DELETE FROM orders WHERE id = $1 AND owner = $2`

// DeleteOrder removes the order; items cascade at the schema level.
func (q *Queries) DeleteOrder(ctx context.Context, arg DeleteOrderParams) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteOrder, arg.ID, arg.Owner)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const nextInvoiceSeq = `
INSERT INTO invoice_counters (day, seq)
VALUES ($1, 1)
ON CONFLICT (day) DO UPDATE SET seq = invoice_counters.seq + 1
RETURNING seq`

// NextInvoiceSeq atomically allocates the next per-day invoice sequence.
// Running it inside the creation transaction means concurrent same-day
// creates can never share a number.
func (q *Queries) NextInvoiceSeq(ctx context.Context, day time.Time) (int32, error) {
	var seq int32
	err := q.db.QueryRow(ctx, nextInvoiceSeq, day).Scan(&seq)
	return seq, err
}

const itemColumns = `id, order_id, product_id, product_name, quantity, description, unit_price, unit`

func scanOrderItem(row interface{ Scan(dest ...any) error }) (OrderItem, error) {
	var it OrderItem
	err := row.Scan(
		&it.ID,
		&it.OrderID,
		&it.ProductID,
		&it.ProductName,
		&it.Quantity,
		&it.Description,
		&it.UnitPrice,
		&it.Unit,
	)
	return it, err
}

const listOrderItems = `
SELECT ` + itemColumns + ` FROM order_items WHERE order_id = $1 ORDER BY id`

// ListOrderItems returns the items of an order in insertion order.
func (q *Queries) ListOrderItems(ctx context.Context, orderID int64) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItems, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectItems(rows)
}

func collectItems(rows pgx.Rows) ([]OrderItem, error) {
	var out []OrderItem
	for rows.Next() {
		it, err := scanOrderItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// InsertOrderItemParams carries one validated item row.
type InsertOrderItemParams struct {
	OrderID     int64
	ProductID   *int64
	ProductName string
	Quantity    float64
	Description pgtype.Text
	UnitPrice   *float64
	Unit        pgtype.Text
}

const insertOrderItem = `
INSERT INTO order_items (order_id, product_id, product_name, quantity, description, unit_price, unit)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + itemColumns

// InsertOrderItem adds one line to an order.
func (q *Queries) InsertOrderItem(ctx context.Context, arg InsertOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, insertOrderItem,
		arg.OrderID,
		arg.ProductID,
		arg.ProductName,
		arg.Quantity,
		arg.Description,
		arg.UnitPrice,
		arg.Unit,
	)
	return scanOrderItem(row)
}

const listOrderItemIDs = `
SELECT id FROM order_items WHERE order_id = $1 AND id = ANY($2)`

// ListOrderItemIDs reports which of the requested ids actually belong to the
// order, so callers can reject lists containing foreign ids.
func (q *Queries) ListOrderItemIDs(ctx context.Context, orderID int64, ids []int64) ([]int64, error) {
	rows, err := q.db.Query(ctx, listOrderItemIDs, orderID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

const deleteOrderItems = `
DELETE FROM order_items WHERE order_id = $1 AND id = ANY($2)`

// DeleteOrderItems removes exactly the given ids scoped to the order.
func (q *Queries) DeleteOrderItems(ctx context.Context, orderID int64, ids []int64) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteOrderItems, orderID, ids)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const deleteAllOrderItems = `DELETE FROM order_items WHERE order_id = $1`

// DeleteAllOrderItems clears an order's items ahead of a full replacement.
func (q *Queries) DeleteAllOrderItems(ctx context.Context, orderID int64) error {
	_, err := q.db.Exec(ctx, deleteAllOrderItems, orderID)
	return err
}
