// Package aiparse turns free-text order messages into structured drafts by
// delegating to an LLM provider. The order service consumes drafts through the
// Parser interface and treats them as untrusted input.
package aiparse

import "context"

// DraftItem is one proposed order line extracted from the message.
type DraftItem struct {
	ProductName string  `json:"product_name"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit,omitempty"`
}

// Draft is a structured order proposal. Recipient is "unknown" when the
// message does not name one.
type Draft struct {
	Recipient string      `json:"recipient"`
	Items     []DraftItem `json:"items"`
}

// Parser extracts a Draft from a raw order message.
type Parser interface {
	Parse(ctx context.Context, text string) (Draft, error)
}
