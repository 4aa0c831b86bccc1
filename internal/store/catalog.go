package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Category groups catalog products.
type Category struct {
	ID          int64
	Name        string
	Description pgtype.Text
	CreatedAt   pgtype.Timestamptz
	UpdatedAt   pgtype.Timestamptz
}

// Product is read-only reference data; order items may link to one.
type Product struct {
	ID          int64
	CategoryID  int64
	Name        string
	Description pgtype.Text
	ImageURL    pgtype.Text
	Price       *float64
	Unit        pgtype.Text
	CreatedAt   pgtype.Timestamptz
	UpdatedAt   pgtype.Timestamptz
}

const listCategories = `
SELECT id, name, description, created_at, updated_at FROM categories ORDER BY id`

// ListCategories returns every category.
func (q *Queries) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := q.db.Query(ctx, listCategories)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const productColumns = `id, category_id, name, description, image_url, price, unit, created_at, updated_at`

func scanProduct(row interface{ Scan(dest ...any) error }) (Product, error) {
	var p Product
	err := row.Scan(
		&p.ID,
		&p.CategoryID,
		&p.Name,
		&p.Description,
		&p.ImageURL,
		&p.Price,
		&p.Unit,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}

const listProducts = `
SELECT ` + productColumns + ` FROM products ORDER BY id`

// ListProducts returns the full product catalog.
func (q *Queries) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := q.db.Query(ctx, listProducts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProducts(rows)
}

const listProductsByCategory = `
SELECT ` + productColumns + ` FROM products WHERE category_id = $1 ORDER BY id`

// ListProductsByCategory narrows the catalog to one category.
func (q *Queries) ListProductsByCategory(ctx context.Context, categoryID int64) ([]Product, error) {
	rows, err := q.db.Query(ctx, listProductsByCategory, categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProducts(rows)
}

func collectProducts(rows pgx.Rows) ([]Product, error) {
	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

const getProductByID = `
SELECT ` + productColumns + ` FROM products WHERE id = $1`

// GetProductByID fetches one product; pgx.ErrNoRows when absent.
func (q *Queries) GetProductByID(ctx context.Context, id int64) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, getProductByID, id))
}
