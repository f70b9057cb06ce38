package models

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineItem is one cart line. UnitPrice is taken from the catalog when the line is added
// and does not follow later price edits. Id is set when the line enters a cart.
type LineItem struct {
	Id           string          `json:"id"`
	ProductName  string          `json:"productName"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	LineSubtotal decimal.Decimal `json:"lineSubtotal"`
	ImageUrl     string          `json:"imageUrl,omitempty"`
}

func NewLineItem(product *Product, quantity decimal.Decimal) (LineItem, error) {
	if product == nil || strings.TrimSpace(product.Name) == "" {
		return LineItem{}, NewValidationError("productName", "product is required")
	}
	if !quantity.IsPositive() {
		return LineItem{}, NewValidationError("quantity", "quantity must be greater than zero")
	}
	return LineItem{
		ProductName:  product.Name,
		Quantity:     quantity,
		UnitPrice:    product.Price,
		LineSubtotal: quantity.Mul(product.Price),
		ImageUrl:     product.ImageUrl,
	}, nil
}

// Cart is the ordered list of line items of one session. It is not safe for concurrent use;
// Session guards it.
type Cart struct {
	Items []LineItem `json:"items"`
}

func (c *Cart) Add(item LineItem) {
	if item.Id == "" {
		item.Id = uuid.NewString()
	}
	c.Items = append(c.Items, item)
}

// Remove deletes the item at a zero-based position.
func (c *Cart) Remove(index int) error {
	if index < 0 || index >= len(c.Items) {
		return NewValidationError("index", fmt.Sprintf("no cart item at position %d", index))
	}
	c.Items = append(c.Items[:index], c.Items[index+1:]...)
	return nil
}

// Discard removes the given lines by id, leaving lines added or kept since they were read.
func (c *Cart) Discard(items []LineItem) {
	gone := make(map[string]bool, len(items))
	for _, it := range items {
		gone[it.Id] = true
	}
	kept := c.Items[:0]
	for _, it := range c.Items {
		if !gone[it.Id] {
			kept = append(kept, it)
		}
	}
	c.Items = kept
}

func (c *Cart) Clear() {
	c.Items = nil
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.Items {
		total = total.Add(it.LineSubtotal)
	}
	return total
}

// Snapshot copies the items so they can be used after the lock is released.
func (c *Cart) Snapshot() []LineItem {
	return append([]LineItem(nil), c.Items...)
}
