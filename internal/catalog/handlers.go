package catalog

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/arkan-dz/backend-order/internal/common"
)

// Handlers exposes the public catalog endpoints.
type Handlers struct {
	Service *Service
}

// Categories handles GET /api/categories.
func (h Handlers) Categories(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "catalog service unavailable", nil)
		return
	}
	rows, err := h.Service.ListCategories(r.Context())
	if err != nil {
		common.WriteAppError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows})
}

// Products handles GET /api/products with an optional category_id filter.
func (h Handlers) Products(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "catalog service unavailable", nil)
		return
	}
	var categoryID *int64
	if raw := r.URL.Query().Get("category_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			common.JSONError(w, http.StatusBadRequest, common.CodeInvalidID, "category_id must be a positive number", nil)
			return
		}
		categoryID = &id
	}
	rows, err := h.Service.ListProducts(r.Context(), categoryID)
	if err != nil {
		common.WriteAppError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows})
}

// ProductDetail handles GET /api/products/{id}.
func (h Handlers) ProductDetail(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "catalog service unavailable", nil)
		return
	}
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		common.JSONError(w, http.StatusBadRequest, common.CodeInvalidID, "product id must be a positive number", nil)
		return
	}
	view, err := h.Service.GetProduct(r.Context(), id)
	if err != nil {
		common.WriteAppError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}
