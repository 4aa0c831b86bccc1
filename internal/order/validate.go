package order

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/arkan-dz/backend-order/internal/common"
)

const dateLayout = "2006-01-02"

// ItemInput is one requested order line. ProductID optionally links a catalog
// product whose fields are copied onto the item at write time.
type ItemInput struct {
	ProductID   *int64   `json:"product_id,omitempty"`
	ProductName string   `json:"product_name"`
	Quantity    float64  `json:"quantity"`
	Description string   `json:"description,omitempty"`
	UnitPrice   *float64 `json:"unit_price,omitempty"`
	Unit        string   `json:"unit,omitempty"`
}

// CreateInput is the full creation payload.
type CreateInput struct {
	Date      string      `json:"date"`
	Recipient string      `json:"recipient"`
	Items     []ItemInput `json:"items"`

	// OriginalMessage is set internally by the free-text path, never by
	// clients.
	OriginalMessage string `json:"-"`
}

// UpdateInput is a partial update. Nil fields keep their current value; a
// non-nil Items slice replaces every existing item.
type UpdateInput struct {
	Date      *string      `json:"date"`
	Recipient *string      `json:"recipient"`
	Status    *string      `json:"status"`
	Items     *[]ItemInput `json:"items"`
}

// ValidateCreate checks the whole creation payload and reports every missing
// or invalid field in a single error.
func ValidateCreate(in CreateInput) *common.AppError {
	var problems []string
	if strings.TrimSpace(in.Date) == "" {
		problems = append(problems, "date is required")
	} else if _, err := time.Parse(dateLayout, in.Date); err != nil {
		problems = append(problems, "date must be formatted YYYY-MM-DD")
	}
	if strings.TrimSpace(in.Recipient) == "" {
		problems = append(problems, "recipient is required")
	}
	if len(in.Items) == 0 {
		problems = append(problems, "items is required and must be a non-empty array")
	} else {
		problems = append(problems, validateItems(in.Items)...)
	}
	return invalidRequest(problems)
}

// ValidateUpdate requires at least one updatable field and applies the same
// item rules as creation when a replacement list is supplied.
func ValidateUpdate(in UpdateInput) *common.AppError {
	if in.Date == nil && in.Recipient == nil && in.Status == nil && in.Items == nil {
		return invalidRequest([]string{"at least one of date, recipient, status or items is required"})
	}
	var problems []string
	if in.Date != nil {
		if strings.TrimSpace(*in.Date) == "" {
			problems = append(problems, "date must not be empty")
		} else if _, err := time.Parse(dateLayout, *in.Date); err != nil {
			problems = append(problems, "date must be formatted YYYY-MM-DD")
		}
	}
	if in.Recipient != nil && strings.TrimSpace(*in.Recipient) == "" {
		problems = append(problems, "recipient must not be empty")
	}
	if in.Items != nil {
		if len(*in.Items) == 0 {
			problems = append(problems, "items must be a non-empty array")
		} else {
			problems = append(problems, validateItems(*in.Items)...)
		}
	}
	return invalidRequest(problems)
}

// ValidateItemIDs rejects empty deletion lists and non-positive ids.
func ValidateItemIDs(ids []int64) *common.AppError {
	if len(ids) == 0 {
		return invalidRequest([]string{"item_ids is required and must be a non-empty array"})
	}
	var problems []string
	for i, id := range ids {
		if id <= 0 {
			problems = append(problems, fmt.Sprintf("item_ids[%d] must be a positive number", i))
		}
	}
	return invalidRequest(problems)
}

func validateItems(items []ItemInput) []string {
	var problems []string
	for i, item := range items {
		if strings.TrimSpace(item.ProductName) == "" && item.ProductID == nil {
			problems = append(problems, fmt.Sprintf("items[%d].product_name is required", i))
		}
		if item.Quantity <= 0 {
			problems = append(problems, fmt.Sprintf("items[%d].quantity must be a positive number", i))
		}
		if item.ProductID != nil && *item.ProductID <= 0 {
			problems = append(problems, fmt.Sprintf("items[%d].product_id must be a positive number", i))
		}
		if item.UnitPrice != nil && *item.UnitPrice < 0 {
			problems = append(problems, fmt.Sprintf("items[%d].unit_price must not be negative", i))
		}
	}
	return problems
}

func invalidRequest(problems []string) *common.AppError {
	if len(problems) == 0 {
		return nil
	}
	return &common.AppError{
		Code:       common.CodeInvalidRequest,
		Message:    strings.Join(problems, "; "),
		HTTPStatus: http.StatusBadRequest,
		Details:    problems,
	}
}
