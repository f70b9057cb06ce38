package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/mmdatafocus/shop_inventory/config"
	"github.com/mmdatafocus/shop_inventory/models"
)

var tracer = otel.Tracer("shop-inventory")

// LineResult is what happened to one cart line. Steps after a failed purchase row are skipped.
type LineResult struct {
	ProductName   string              `json:"productName"`
	Purchase      *models.Purchase    `json:"purchase,omitempty"`
	Stock         *models.StockChange `json:"stock,omitempty"`
	MovementId    string              `json:"movementId,omitempty"`
	PurchaseError string              `json:"purchaseError,omitempty"`
	StockError    string              `json:"stockError,omitempty"`
	MovementError string              `json:"movementError,omitempty"`
}

func (l LineResult) OK() bool {
	return l.PurchaseError == "" && l.StockError == "" && l.MovementError == ""
}

type CheckoutResult struct {
	PurchaseId    string                   `json:"purchaseId"`
	Timestamp     time.Time                `json:"timestamp"`
	PaymentMethod models.PaymentMethod     `json:"paymentMethod"`
	Total         decimal.Decimal          `json:"total"`
	Lines         []LineResult             `json:"lines"`
	Critical      []models.CriticalProduct `json:"critical"`
}

// Recorded counts lines whose purchase row was written.
func (r *CheckoutResult) Recorded() int {
	n := 0
	for _, l := range r.Lines {
		if l.Purchase != nil {
			n++
		}
	}
	return n
}

func (r *CheckoutResult) OK() bool {
	for _, l := range r.Lines {
		if !l.OK() {
			return false
		}
	}
	return true
}

// AlertTrigger starts a low-stock notification run without waiting for it.
type AlertTrigger interface {
	DispatchAsync(ctx context.Context)
}

// SaleProcessor turns a cart into purchase rows, stock exits and a critical stock report.
// There is no rollback: each line is written purchase first, then stock, then movement,
// and a failed step is reported on the line without undoing earlier ones.
type SaleProcessor struct {
	catalog        *models.Catalog
	purchases      *models.PurchaseLedger
	movements      *models.MovementLedger
	stock          *models.StockReconciler
	alerts         AlertTrigger
	rejectOversell bool
	logger         *logrus.Logger
	metrics        *Metrics
}

type SaleProcessorOption func(*SaleProcessor)

func WithAlertTrigger(a AlertTrigger) SaleProcessorOption {
	return func(p *SaleProcessor) { p.alerts = a }
}

// WithOversellCheck rejects carts asking for more than the stock on hand.
func WithOversellCheck(enabled bool) SaleProcessorOption {
	return func(p *SaleProcessor) { p.rejectOversell = enabled }
}

func WithMetrics(m *Metrics) SaleProcessorOption {
	return func(p *SaleProcessor) { p.metrics = m }
}

func NewSaleProcessor(catalog *models.Catalog, purchases *models.PurchaseLedger, movements *models.MovementLedger,
	stock *models.StockReconciler, logger *logrus.Logger, opts ...SaleProcessorOption) *SaleProcessor {
	p := &SaleProcessor{
		catalog:   catalog,
		purchases: purchases,
		movements: movements,
		stock:     stock,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *SaleProcessor) Checkout(ctx context.Context, items []models.LineItem, paymentMethod string, note string) (*CheckoutResult, error) {
	ctx, span := tracer.Start(ctx, "SaleProcessor.Checkout")
	defer span.End()
	span.SetAttributes(attribute.Int("checkout.lines", len(items)))

	if err := validateItems(items); err != nil {
		p.metrics.checkout("invalid")
		return nil, err
	}
	if p.rejectOversell {
		if err := p.checkOversell(ctx, items); err != nil {
			p.metrics.checkout("invalid")
			return nil, err
		}
	}

	batch, err := p.purchases.Begin(ctx, paymentMethod, note)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read purchases")
		p.metrics.checkout("failed")
		return nil, err
	}
	span.SetAttributes(attribute.String("checkout.purchase_id", batch.Id))

	result := &CheckoutResult{
		PurchaseId:    batch.Id,
		Timestamp:     batch.Timestamp,
		PaymentMethod: batch.PaymentMethod,
		Lines:         make([]LineResult, 0, len(items)),
	}
	critical := map[string]int{}

	for _, item := range items {
		line := LineResult{ProductName: item.ProductName}

		purchase, err := batch.AppendLine(ctx, item)
		if err != nil {
			line.PurchaseError = messageOf(err)
			p.metrics.lineFailure("purchase")
			result.Lines = append(result.Lines, line)
			continue
		}
		line.Purchase = purchase
		result.Total = result.Total.Add(purchase.LineTotal)

		change, err := p.stock.Apply(ctx, item.ProductName, item.Quantity, models.MovementKindExit)
		if err != nil {
			line.StockError = messageOf(err)
			p.metrics.lineFailure("stock")
			config.LogWarn(p.logger, "workflow", "SaleProcessor.Checkout", "stock exit", item.ProductName, err)
		} else {
			line.Stock = change
			if change.WentCritical {
				cp := change.Critical()
				if i, ok := critical[cp.Name]; ok {
					result.Critical[i] = cp
				} else {
					critical[cp.Name] = len(result.Critical)
					result.Critical = append(result.Critical, cp)
				}
			}
		}

		movementId, err := p.movements.Record(ctx, models.NewMovement{
			Kind:        models.MovementKindExit,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Reason:      models.MovementReasonSale,
			Note:        batch.Id,
		})
		if err != nil {
			line.MovementError = messageOf(err)
			p.metrics.lineFailure("movement")
			config.LogWarn(p.logger, "workflow", "SaleProcessor.Checkout", "movement log", item.ProductName, err)
		} else {
			line.MovementId = movementId
			p.metrics.movement(string(models.MovementKindExit), string(models.MovementReasonSale))
		}

		result.Lines = append(result.Lines, line)
	}

	if result.Critical == nil {
		result.Critical = []models.CriticalProduct{}
	}
	switch {
	case result.OK():
		p.metrics.checkout("ok")
	case result.Recorded() == 0:
		p.metrics.checkout("failed")
		span.SetStatus(codes.Error, "no purchase line recorded")
	default:
		p.metrics.checkout("partial")
	}
	p.metrics.sale(result.Total.InexactFloat64())
	return result, nil
}

// CheckoutSession checks out the session cart. Once any purchase line is recorded the cart is
// cleared, the session's product, purchase and movement reads are invalidated and, when something
// went critical, alerts are dispatched in the background.
func (p *SaleProcessor) CheckoutSession(ctx context.Context, session *models.Session, paymentMethod string, note string) (*CheckoutResult, error) {
	items := session.CartItems()
	result, err := p.Checkout(ctx, items, paymentMethod, note)
	if err != nil {
		return nil, err
	}
	if result.Recorded() == 0 {
		return result, nil
	}
	_ = session.WithCart(func(c *models.Cart) error {
		// lines added while the checkout ran stay in the cart
		c.Discard(items)
		return nil
	})
	session.Bump(ctx, models.SheetProducts, models.SheetPurchases, models.SheetMovements)
	if len(result.Critical) > 0 && p.alerts != nil {
		p.alerts.DispatchAsync(ctx)
	}
	return result, nil
}

func (p *SaleProcessor) checkOversell(ctx context.Context, items []models.LineItem) error {
	products, err := p.catalog.LoadFresh(ctx)
	if err != nil {
		return err
	}
	stock := make(map[string]decimal.Decimal, len(products))
	for _, pr := range products {
		stock[pr.Name] = pr.StockCurrent
	}
	wanted := map[string]decimal.Decimal{}
	for _, it := range items {
		wanted[it.ProductName] = wanted[it.ProductName].Add(it.Quantity)
	}

	var short []string
	for name, qty := range wanted {
		have, ok := stock[name]
		if !ok {
			short = append(short, fmt.Sprintf("%s (not in catalog)", name))
			continue
		}
		if qty.GreaterThan(have) {
			short = append(short, fmt.Sprintf("%s (requested %s, available %s)", name, qty.String(), have.String()))
		}
	}
	if len(short) > 0 {
		sort.Strings(short)
		return models.NewValidationError("items", "insufficient stock: "+strings.Join(short, ", "))
	}
	return nil
}

func validateItems(items []models.LineItem) error {
	if len(items) == 0 {
		return models.NewValidationError("items", "cart is empty")
	}
	for i, it := range items {
		if strings.TrimSpace(it.ProductName) == "" {
			return models.NewValidationError("items", fmt.Sprintf("line %d has no product", i+1))
		}
		if !it.Quantity.IsPositive() {
			return models.NewValidationError("items", fmt.Sprintf("line %d quantity must be greater than zero", i+1))
		}
		if it.UnitPrice.IsNegative() {
			return models.NewValidationError("items", fmt.Sprintf("line %d price must not be negative", i+1))
		}
	}
	return nil
}

// messageOf prefers the operator-facing text of store failures.
func messageOf(err error) string {
	var ue *models.StoreUnavailableError
	if errors.As(err, &ue) {
		return ue.Message()
	}
	return err.Error()
}
