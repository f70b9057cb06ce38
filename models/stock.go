package models

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/mmdatafocus/shop_inventory/config"
	"github.com/mmdatafocus/shop_inventory/tabular"
	"github.com/mmdatafocus/shop_inventory/utils"
)

// StockLocker serializes stock read-modify-write cycles per product.
type StockLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// StockChange is the outcome of one reconciliation.
type StockChange struct {
	ProductName  string          `json:"productName"`
	Kind         MovementKind    `json:"kind,omitempty"`
	Quantity     decimal.Decimal `json:"quantity"`
	Previous     decimal.Decimal `json:"previous"`
	Current      decimal.Decimal `json:"current"`
	Minimum      decimal.Decimal `json:"minimum"`
	WentCritical bool            `json:"wentCritical"`
	// Clamped reports an exit larger than the stock on hand.
	Clamped bool `json:"clamped"`
}

// Critical describes the product after the change.
func (c StockChange) Critical() CriticalProduct {
	return CriticalProduct{
		Name:         c.ProductName,
		StockCurrent: c.Current,
		StockMinimum: c.Minimum,
		Deficit:      utils.MaxZero(c.Minimum.Sub(c.Current)),
	}
}

// StockReconciler is the only writer of Stock_Current.
// Row positions are resolved from a fresh read on every call and never cached.
type StockReconciler struct {
	products table
	locker   StockLocker
	logger   *logrus.Logger
}

// NewStockReconciler builds a reconciler; a nil locker leaves updates unserialized.
func NewStockReconciler(reader *tabular.CachedReader, locker StockLocker, logger *logrus.Logger) *StockReconciler {
	return &StockReconciler{
		products: newTable(SheetProducts, reader),
		locker:   locker,
		logger:   logger,
	}
}

// Apply moves a product's stock by quantity. Exits clamp at zero and are never rejected.
func (r *StockReconciler) Apply(ctx context.Context, productName string, quantity decimal.Decimal, kind MovementKind) (*StockChange, error) {
	if !kind.IsValid() {
		return nil, NewValidationError("kind", "movement kind must be Entry or Exit")
	}
	if !quantity.IsPositive() {
		return nil, NewValidationError("quantity", "quantity must be greater than zero")
	}
	return r.update(ctx, productName, func(current decimal.Decimal) (decimal.Decimal, bool) {
		if kind == MovementKindEntry {
			return current.Add(quantity), false
		}
		next := current.Sub(quantity)
		return utils.MaxZero(next), next.IsNegative()
	}, kind, quantity)
}

// SetAbsolute overwrites the stock with a counted quantity.
func (r *StockReconciler) SetAbsolute(ctx context.Context, productName string, quantity decimal.Decimal) (*StockChange, error) {
	if quantity.IsNegative() {
		return nil, NewValidationError("quantity", "quantity must not be negative")
	}
	return r.update(ctx, productName, func(decimal.Decimal) (decimal.Decimal, bool) {
		return quantity, false
	}, "", quantity)
}

func (r *StockReconciler) update(ctx context.Context, productName string, next func(decimal.Decimal) (decimal.Decimal, bool), kind MovementKind, quantity decimal.Decimal) (*StockChange, error) {
	if r.locker != nil {
		unlock, err := r.locker.Lock(ctx, productName)
		if err != nil {
			config.LogError(r.logger, "models", "StockReconciler.update", "lock stock", productName, err)
			return nil, err
		}
		defer unlock()
	}

	_, headers, records, err := r.products.fresh(ctx)
	if err != nil {
		config.LogError(r.logger, "models", "StockReconciler.update", "read products", productName, err)
		return nil, err
	}
	product := findProduct(records, productName)
	if product == nil {
		return nil, &NotFoundError{Kind: "product", Key: productName}
	}
	col := tabular.ColumnIndex(headers, ColStockCurrent)
	if col == 0 {
		return nil, &NotFoundError{Kind: "column", Key: ColStockCurrent}
	}

	current, clamped := next(product.StockCurrent)
	if err := r.products.updateCell(ctx, product.Row, col, cellNumber(current)); err != nil {
		config.LogError(r.logger, "models", "StockReconciler.update", "write stock", productName, err)
		return nil, err
	}
	if clamped {
		config.LogWarn(r.logger, "models", "StockReconciler.update", "exit exceeds stock, clamped at zero", productName,
			fmt.Errorf("exit of %s with %s on hand", quantity, product.StockCurrent))
	}

	return &StockChange{
		ProductName:  productName,
		Kind:         kind,
		Quantity:     quantity,
		Previous:     product.StockCurrent,
		Current:      current,
		Minimum:      product.StockMinimum,
		WentCritical: current.LessThanOrEqual(product.StockMinimum),
		Clamped:      clamped,
	}, nil
}
