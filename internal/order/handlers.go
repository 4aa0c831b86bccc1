package order

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/arkan-dz/backend-order/internal/common"
	"github.com/arkan-dz/backend-order/internal/store"
)

// Handlers exposes the order lifecycle over HTTP.
type Handlers struct {
	Service *Service
}

// List handles GET /api/orders.
func (h Handlers) List(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	filters := Filters{
		Date:      r.URL.Query().Get("date"),
		Recipient: r.URL.Query().Get("recipient"),
	}
	orders, err := h.Service.List(r.Context(), owner, filters)
	if err != nil {
		common.WriteAppError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"orders": orders}})
}

// Get handles GET /api/order/{id}.
func (h Handlers) Get(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	view, err := h.Service.Get(r.Context(), owner, id)
	if err != nil {
		common.WriteAppError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// Create handles POST /api/order.
func (h Handlers) Create(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	var input CreateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeInvalidRequest, "invalid JSON body", nil)
		return
	}
	view, err := h.Service.Create(r.Context(), owner, input)
	if err != nil {
		common.WriteAppError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": view})
}

// Update handles PUT /api/order/{id}.
func (h Handlers) Update(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	var input UpdateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeInvalidRequest, "invalid JSON body", nil)
		return
	}
	view, err := h.Service.Update(r.Context(), owner, id, input)
	if err != nil {
		common.WriteAppError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// Delete handles DELETE /api/order/{id}.
func (h Handlers) Delete(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	if err := h.Service.Delete(r.Context(), owner, id); err != nil {
		common.WriteAppError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"deleted": true}})
}

type deleteItemsRequest struct {
	ItemIDs []int64 `json:"item_ids"`
}

// DeleteItems handles DELETE /api/order/{id}/items.
func (h Handlers) DeleteItems(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	var req deleteItemsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeInvalidRequest, "invalid JSON body", nil)
		return
	}
	deleted, err := h.Service.DeleteItems(r.Context(), owner, id, req.ItemIDs)
	if err != nil {
		common.WriteAppError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"deleted_items": deleted}})
}

type parseRequest struct {
	Text      string `json:"text"`
	Recipient string `json:"recipient"`
}

// Parse handles POST /api/order/parse.
func (h Handlers) Parse(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	var req parseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeInvalidRequest, "invalid JSON body", nil)
		return
	}
	if req.Text == "" {
		common.JSONError(w, http.StatusBadRequest, common.CodeInvalidRequest, "text is required", nil)
		return
	}
	view, err := h.Service.CreateFromText(r.Context(), owner, req.Text, req.Recipient)
	if err != nil {
		common.WriteAppError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": view})
}

func (h Handlers) owner(w http.ResponseWriter, r *http.Request) (pgtype.UUID, bool) {
	if h.Service == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "order service unavailable", nil)
		return pgtype.UUID{}, false
	}
	accountID, ok := common.AccountID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, common.CodeUnauthorized, "missing or invalid token", nil)
		return pgtype.UUID{}, false
	}
	owner, err := store.ParseUUID(accountID)
	if err != nil {
		common.JSONError(w, http.StatusUnauthorized, common.CodeUnauthorized, "missing or invalid token", nil)
		return pgtype.UUID{}, false
	}
	return owner, true
}

func orderIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		common.JSONError(w, http.StatusBadRequest, common.CodeInvalidID, "order id must be a positive number", nil)
		return 0, false
	}
	return id, true
}
