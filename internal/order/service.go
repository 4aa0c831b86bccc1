// Package order implements the purchase-order lifecycle: owner-scoped CRUD
// over orders and their line items, per-day invoice numbering, and the
// free-text creation path fed by the AI draft parser.
package order

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/arkan-dz/backend-order/internal/aiparse"
	"github.com/arkan-dz/backend-order/internal/common"
	"github.com/arkan-dz/backend-order/internal/store"
)

// Store is the storage surface the service needs: every query plus the
// transaction runner.
type Store interface {
	store.Querier
	ExecTx(ctx context.Context, fn func(q store.Querier) error) error
}

// Service owns the order lifecycle. All operations are scoped to the acting
// account's uuid, resolved by the auth middleware.
type Service struct {
	store  Store
	parser aiparse.Parser
	now    func() time.Time
}

// NewService constructs the lifecycle service. The parser may be nil when no
// AI provider is configured; CreateFromText then fails cleanly.
func NewService(st Store, parser aiparse.Parser) *Service {
	return &Service{store: st, parser: parser, now: time.Now}
}

// WithNow allows tests to override the time provider.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// ItemView is one order line as returned to clients.
type ItemView struct {
	ID          int64    `json:"id"`
	ProductID   *int64   `json:"product_id,omitempty"`
	ProductName string   `json:"product_name"`
	Quantity    float64  `json:"quantity"`
	Description string   `json:"description,omitempty"`
	UnitPrice   *float64 `json:"unit_price,omitempty"`
	Unit        string   `json:"unit,omitempty"`
}

// View is an order as returned to clients. Items is nil in list summaries.
type View struct {
	ID              int64      `json:"id"`
	OrderDate       string     `json:"order_date"`
	Recipient       string     `json:"recipient"`
	InvoiceNumber   string     `json:"invoice_number"`
	Status          string     `json:"status"`
	OriginalMessage string     `json:"original_message,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Items           []ItemView `json:"items,omitempty"`
}

// Filters narrows the owner's order listing.
type Filters struct {
	Date      string
	Recipient string
}

var errOrderNotFound = common.NotFound("Order not found")

// List returns the owner's orders newest first, without items.
func (s *Service) List(ctx context.Context, owner pgtype.UUID, filters Filters) ([]View, error) {
	params := store.ListOrdersForOwnerParams{Owner: owner}
	if strings.TrimSpace(filters.Date) != "" {
		day, err := time.Parse(dateLayout, filters.Date)
		if err != nil {
			return nil, invalidRequest([]string{"date must be formatted YYYY-MM-DD"})
		}
		params.Date = &day
	}
	if strings.TrimSpace(filters.Recipient) != "" {
		recipient := filters.Recipient
		params.Recipient = &recipient
	}

	rows, err := s.store.ListOrdersForOwner(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	views := make([]View, 0, len(rows))
	for _, row := range rows {
		views = append(views, convertOrder(row, nil))
	}
	return views, nil
}

// Get fetches one order with its items. Absent and foreign orders collapse to
// the same NotFound.
func (s *Service) Get(ctx context.Context, owner pgtype.UUID, id int64) (View, error) {
	row, err := s.store.GetOrderForOwner(ctx, store.GetOrderForOwnerParams{ID: id, Owner: owner})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return View{}, errOrderNotFound
		}
		return View{}, fmt.Errorf("get order: %w", err)
	}
	items, err := s.store.ListOrderItems(ctx, row.ID)
	if err != nil {
		return View{}, fmt.Errorf("list order items: %w", err)
	}
	return convertOrder(row, items), nil
}

// Create validates the payload, then inserts the order and its items in one
// transaction. The invoice sequence is allocated inside the same transaction
// so concurrent same-day creates never collide.
func (s *Service) Create(ctx context.Context, owner pgtype.UUID, in CreateInput) (View, error) {
	if appErr := ValidateCreate(in); appErr != nil {
		return View{}, appErr
	}
	day, err := time.Parse(dateLayout, in.Date)
	if err != nil {
		return View{}, invalidRequest([]string{"date must be formatted YYYY-MM-DD"})
	}

	var orderID int64
	err = s.store.ExecTx(ctx, func(q store.Querier) error {
		seq, err := q.NextInvoiceSeq(ctx, day)
		if err != nil {
			return fmt.Errorf("allocate invoice sequence: %w", err)
		}
		created, err := q.InsertOrder(ctx, store.InsertOrderParams{
			OrderDate:       day,
			Recipient:       strings.TrimSpace(in.Recipient),
			Owner:           owner,
			InvoiceNumber:   FormatInvoiceNumber(day, seq),
			OriginalMessage: store.Text(in.OriginalMessage),
		})
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		orderID = created.ID
		return insertItems(ctx, q, created.ID, in.Items)
	})
	if err != nil {
		return View{}, err
	}
	return s.Get(ctx, owner, orderID)
}

// Update applies a partial field update and, when an items list is supplied,
// replaces every existing item in the same transaction.
func (s *Service) Update(ctx context.Context, owner pgtype.UUID, id int64, in UpdateInput) (View, error) {
	if appErr := ValidateUpdate(in); appErr != nil {
		return View{}, appErr
	}

	var day *time.Time
	if in.Date != nil {
		parsed, err := time.Parse(dateLayout, *in.Date)
		if err != nil {
			return View{}, invalidRequest([]string{"date must be formatted YYYY-MM-DD"})
		}
		day = &parsed
	}

	err := s.store.ExecTx(ctx, func(q store.Querier) error {
		rows, err := q.UpdateOrderFields(ctx, store.UpdateOrderFieldsParams{
			ID:        id,
			Owner:     owner,
			Date:      day,
			Recipient: in.Recipient,
			Status:    in.Status,
		})
		if err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		if rows == 0 {
			return errOrderNotFound
		}
		if in.Items == nil {
			return nil
		}
		if err := q.DeleteAllOrderItems(ctx, id); err != nil {
			return fmt.Errorf("clear order items: %w", err)
		}
		return insertItems(ctx, q, id, *in.Items)
	})
	if err != nil {
		return View{}, err
	}
	return s.Get(ctx, owner, id)
}

// Delete removes the order; items cascade. Zero affected rows is NotFound.
func (s *Service) Delete(ctx context.Context, owner pgtype.UUID, id int64) error {
	rows, err := s.store.DeleteOrder(ctx, store.DeleteOrderParams{ID: id, Owner: owner})
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if rows == 0 {
		return errOrderNotFound
	}
	return nil
}

// DeleteItems removes exactly the given item ids from the order. Any id that
// does not belong to the order rejects the whole call; nothing is deleted.
func (s *Service) DeleteItems(ctx context.Context, owner pgtype.UUID, id int64, itemIDs []int64) ([]int64, error) {
	if appErr := ValidateItemIDs(itemIDs); appErr != nil {
		return nil, appErr
	}
	if _, err := s.store.GetOrderForOwner(ctx, store.GetOrderForOwnerParams{ID: id, Owner: owner}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	err := s.store.ExecTx(ctx, func(q store.Querier) error {
		owned, err := q.ListOrderItemIDs(ctx, id, itemIDs)
		if err != nil {
			return fmt.Errorf("resolve order items: %w", err)
		}
		if invalid := missingIDs(itemIDs, owned); len(invalid) > 0 {
			return &common.AppError{
				Code:       common.CodeInvalidItems,
				Message:    fmt.Sprintf("Items do not belong to this order: %s", joinIDs(invalid)),
				HTTPStatus: http.StatusBadRequest,
				Details:    invalid,
			}
		}
		if _, err := q.DeleteOrderItems(ctx, id, itemIDs); err != nil {
			return fmt.Errorf("delete order items: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return itemIDs, nil
}

// CreateFromText asks the AI parser for a draft and pushes it through the
// regular creation path with today's date and the raw message preserved.
func (s *Service) CreateFromText(ctx context.Context, owner pgtype.UUID, text, recipientFallback string) (View, error) {
	if s.parser == nil {
		return View{}, common.NewAppError(common.CodeAIParser, "AI parser is not configured", http.StatusInternalServerError, nil)
	}
	draft, err := s.parser.Parse(ctx, text)
	if err != nil {
		return View{}, common.NewAppError(common.CodeAIParser, "Failed to parse order text", http.StatusInternalServerError, err)
	}

	recipient := strings.TrimSpace(draft.Recipient)
	if strings.EqualFold(recipient, "unknown") && strings.TrimSpace(recipientFallback) != "" {
		recipient = strings.TrimSpace(recipientFallback)
	}

	items := make([]ItemInput, 0, len(draft.Items))
	for _, item := range draft.Items {
		items = append(items, ItemInput{
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Unit:        item.Unit,
		})
	}

	return s.Create(ctx, owner, CreateInput{
		Date:            s.now().Format(dateLayout),
		Recipient:       recipient,
		Items:           items,
		OriginalMessage: text,
	})
}

// FormatInvoiceNumber renders the per-day invoice identifier, e.g.
// INV20240321-001.
func FormatInvoiceNumber(day time.Time, seq int32) string {
	return fmt.Sprintf("INV%s-%03d", day.Format("20060102"), seq)
}

// insertItems persists the input lines, resolving catalog references first.
// Product fields win over item-supplied values; the item values are fallback
// only where the catalog field is absent.
func insertItems(ctx context.Context, q store.Querier, orderID int64, items []ItemInput) error {
	for _, item := range items {
		params := store.InsertOrderItemParams{
			OrderID:     orderID,
			ProductID:   item.ProductID,
			ProductName: strings.TrimSpace(item.ProductName),
			Quantity:    item.Quantity,
			Description: store.Text(strings.TrimSpace(item.Description)),
			UnitPrice:   item.UnitPrice,
			Unit:        store.Text(strings.TrimSpace(item.Unit)),
		}
		if item.ProductID != nil {
			product, err := q.GetProductByID(ctx, *item.ProductID)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return common.NotFound(fmt.Sprintf("Product %d not found", *item.ProductID))
				}
				return fmt.Errorf("get product: %w", err)
			}
			if product.Name != "" {
				params.ProductName = product.Name
			}
			if product.Description.Valid {
				params.Description = product.Description
			}
			if product.Price != nil {
				params.UnitPrice = product.Price
			}
			if product.Unit.Valid {
				params.Unit = product.Unit
			}
		}
		if _, err := q.InsertOrderItem(ctx, params); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

func convertOrder(row store.Order, items []store.OrderItem) View {
	view := View{
		ID:              row.ID,
		OrderDate:       row.OrderDate.Format(dateLayout),
		Recipient:       row.Recipient,
		InvoiceNumber:   row.InvoiceNumber,
		Status:          row.Status,
		OriginalMessage: store.TextValue(row.OriginalMessage),
		CreatedAt:       store.TimeValue(row.CreatedAt),
		UpdatedAt:       store.TimeValue(row.UpdatedAt),
	}
	if items != nil {
		view.Items = make([]ItemView, 0, len(items))
		for _, item := range items {
			view.Items = append(view.Items, ItemView{
				ID:          item.ID,
				ProductID:   item.ProductID,
				ProductName: item.ProductName,
				Quantity:    item.Quantity,
				Description: store.TextValue(item.Description),
				UnitPrice:   item.UnitPrice,
				Unit:        store.TextValue(item.Unit),
			})
		}
	}
	return view
}

func missingIDs(requested, owned []int64) []int64 {
	ownedSet := make(map[int64]struct{}, len(owned))
	for _, id := range owned {
		ownedSet[id] = struct{}{}
	}
	var missing []int64
	for _, id := range requested {
		if _, ok := ownedSet[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

func joinIDs(ids []int64) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("%d", id))
	}
	return strings.Join(parts, ", ")
}
