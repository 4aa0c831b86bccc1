// Package catalog serves the read-only category and product reference data.
// List endpoints are cached in redis; order creation reuses the store-level
// product lookup directly so it always sees committed data.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/arkan-dz/backend-order/internal/common"
	"github.com/arkan-dz/backend-order/internal/store"
)

const (
	categoriesCacheKey  = "catalog:categories"
	productsCacheKey    = "catalog:products:all"
	productsCategoryKey = "catalog:products:category:%d"
)

// Service answers catalog reads, consulting the cache first.
type Service struct {
	queries store.Querier
	cache   *Cache
}

// NewService constructs the catalog service. The cache may be nil.
func NewService(queries store.Querier, cache *Cache) *Service {
	return &Service{queries: queries, cache: cache}
}

// CategoryView is a category as returned to clients.
type CategoryView struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ProductView is a product as returned to clients.
type ProductView struct {
	ID          int64    `json:"id"`
	CategoryID  int64    `json:"category_id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	ImageURL    string   `json:"image_url,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Unit        string   `json:"unit,omitempty"`
}

// ListCategories returns every category, cache-first.
func (s *Service) ListCategories(ctx context.Context) ([]CategoryView, error) {
	var cached []CategoryView
	if hit, err := s.cache.GetJSON(ctx, categoriesCacheKey, &cached); err == nil && hit {
		return cached, nil
	}

	rows, err := s.queries.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	views := make([]CategoryView, 0, len(rows))
	for _, row := range rows {
		views = append(views, CategoryView{
			ID:          row.ID,
			Name:        row.Name,
			Description: store.TextValue(row.Description),
			CreatedAt:   store.TimeValue(row.CreatedAt),
		})
	}
	_ = s.cache.SetJSON(ctx, categoriesCacheKey, views)
	return views, nil
}

// ListProducts returns the catalog, optionally narrowed to one category,
// cache-first.
func (s *Service) ListProducts(ctx context.Context, categoryID *int64) ([]ProductView, error) {
	key := productsCacheKey
	if categoryID != nil {
		key = fmt.Sprintf(productsCategoryKey, *categoryID)
	}
	var cached []ProductView
	if hit, err := s.cache.GetJSON(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}

	var rows []store.Product
	var err error
	if categoryID != nil {
		rows, err = s.queries.ListProductsByCategory(ctx, *categoryID)
	} else {
		rows, err = s.queries.ListProducts(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	views := make([]ProductView, 0, len(rows))
	for _, row := range rows {
		views = append(views, convertProduct(row))
	}
	_ = s.cache.SetJSON(ctx, key, views)
	return views, nil
}

// GetProduct fetches one product by id.
func (s *Service) GetProduct(ctx context.Context, id int64) (ProductView, error) {
	row, err := s.queries.GetProductByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductView{}, common.NotFound("Product not found")
		}
		return ProductView{}, fmt.Errorf("get product: %w", err)
	}
	return convertProduct(row), nil
}

func convertProduct(row store.Product) ProductView {
	return ProductView{
		ID:          row.ID,
		CategoryID:  row.CategoryID,
		Name:        row.Name,
		Description: store.TextValue(row.Description),
		ImageURL:    store.TextValue(row.ImageURL),
		Price:       row.Price,
		Unit:        store.TextValue(row.Unit),
	}
}
