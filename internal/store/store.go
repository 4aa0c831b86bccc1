// Package store is the storage session for the order backend. It keeps the
// same surface a generated query layer would expose (DBTX, Queries, Querier,
// WithTx) so services depend on an interface they can fake in tests, and adds
// ExecTx so multi-statement writes stay transactional without handing the
// pool around.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX abstracts a pgx pool, connection, or transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries executes the hand-written SQL statements against a DBTX.
type Queries struct {
	db DBTX
}

// New constructs Queries bound to the given DBTX.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx rebinds the queries to a transaction.
func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

// Querier enumerates every statement the services use, so tests can fake the
// whole storage surface.
type Querier interface {
	CreateAccount(ctx context.Context, arg CreateAccountParams) (Account, error)
	GetAccountByEmail(ctx context.Context, email string) (Account, error)
	GetAccountByID(ctx context.Context, id pgtype.UUID) (Account, error)

	ListOrdersForOwner(ctx context.Context, arg ListOrdersForOwnerParams) ([]Order, error)
	GetOrderForOwner(ctx context.Context, arg GetOrderForOwnerParams) (Order, error)
	InsertOrder(ctx context.Context, arg InsertOrderParams) (Order, error)
	UpdateOrderFields(ctx context.Context, arg UpdateOrderFieldsParams) (int64, error)
	DeleteOrder(ctx context.Context, arg DeleteOrderParams) (int64, error)
	NextInvoiceSeq(ctx context.Context, day time.Time) (int32, error)

	ListOrderItems(ctx context.Context, orderID int64) ([]OrderItem, error)
	InsertOrderItem(ctx context.Context, arg InsertOrderItemParams) (OrderItem, error)
	ListOrderItemIDs(ctx context.Context, orderID int64, ids []int64) ([]int64, error)
	DeleteOrderItems(ctx context.Context, orderID int64, ids []int64) (int64, error)
	DeleteAllOrderItems(ctx context.Context, orderID int64) error

	ListCategories(ctx context.Context) ([]Category, error)
	ListProducts(ctx context.Context) ([]Product, error)
	ListProductsByCategory(ctx context.Context, categoryID int64) ([]Product, error)
	GetProductByID(ctx context.Context, id int64) (Product, error)
}

var _ Querier = (*Queries)(nil)

// Store couples the query layer with the pool it runs on.
type Store struct {
	*Queries
	pool *pgxpool.Pool
}

// NewStore constructs a Store over a pgx pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{Queries: New(pool), pool: pool}
}

// ExecTx runs fn inside a transaction; any error rolls the whole thing back.
func (s *Store) ExecTx(ctx context.Context, fn func(q Querier) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(s.Queries.WithTx(tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ParseUUID converts a textual uuid into its pgtype form.
func ParseUUID(value string) (pgtype.UUID, error) {
	var id pgtype.UUID
	if err := id.Scan(value); err != nil {
		return pgtype.UUID{}, err
	}
	return id, nil
}

// UUIDString renders a pgtype.UUID as canonical text, empty when NULL.
func UUIDString(id pgtype.UUID) string {
	if !id.Valid {
		return ""
	}
	u, err := uuid.FromBytes(id.Bytes[:])
	if err != nil {
		return ""
	}
	return u.String()
}

// Text wraps a string into a pgtype.Text, treating blanks as NULL.
func Text(value string) pgtype.Text {
	if value == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: value, Valid: true}
}

// TextValue unwraps a pgtype.Text into a plain string.
func TextValue(value pgtype.Text) string {
	if !value.Valid {
		return ""
	}
	return value.String
}

// TimeValue unwraps a pgtype.Timestamptz into a time.Time.
func TimeValue(ts pgtype.Timestamptz) time.Time {
	if !ts.Valid {
		return time.Time{}
	}
	return ts.Time
}
