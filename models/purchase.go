package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/mmdatafocus/shop_inventory/config"
	"github.com/mmdatafocus/shop_inventory/tabular"
	"github.com/mmdatafocus/shop_inventory/utils"
)

// Purchase is one line of a completed checkout. LineTotal is frozen when written.
type Purchase struct {
	PurchaseId    string          `json:"purchaseId"`
	Timestamp     time.Time       `json:"timestamp"`
	ProductName   string          `json:"productName"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unitPrice"`
	LineTotal     decimal.Decimal `json:"lineTotal"`
	PaymentMethod PaymentMethod   `json:"paymentMethod"`
	Note          string          `json:"note,omitempty"`
}

type PurchaseLedger struct {
	purchases table
	logger    *logrus.Logger
	now       func() time.Time
}

func NewPurchaseLedger(reader *tabular.CachedReader, logger *logrus.Logger) *PurchaseLedger {
	return &PurchaseLedger{
		purchases: newTable(SheetPurchases, reader),
		logger:    logger,
		now:       time.Now,
	}
}

// PurchaseBatch writes the lines of one checkout under a shared id and timestamp.
type PurchaseBatch struct {
	Id            string
	Timestamp     time.Time
	PaymentMethod PaymentMethod
	Note          string

	ledger  *PurchaseLedger
	headers []string
}

// Begin reads the purchase table once and allocates the next purchase id from its row count.
func (l *PurchaseLedger) Begin(ctx context.Context, paymentMethod string, note string) (*PurchaseBatch, error) {
	values, headers, _, err := l.purchases.fresh(ctx)
	if err != nil {
		config.LogError(l.logger, "models", "PurchaseLedger.Begin", "read purchases", nil, err)
		return nil, err
	}
	return &PurchaseBatch{
		Id:            fmt.Sprintf("CMP%04d", len(values)),
		Timestamp:     l.now(),
		PaymentMethod: NormalizePaymentMethod(paymentMethod),
		Note:          strings.TrimSpace(note),
		ledger:        l,
		headers:       headers,
	}, nil
}

// AppendLine writes one purchase row with line_total = quantity × unit_price.
func (b *PurchaseBatch) AppendLine(ctx context.Context, item LineItem) (*Purchase, error) {
	p := &Purchase{
		PurchaseId:    b.Id,
		Timestamp:     b.Timestamp,
		ProductName:   strings.TrimSpace(item.ProductName),
		Quantity:      item.Quantity,
		UnitPrice:     item.UnitPrice,
		LineTotal:     item.Quantity.Mul(item.UnitPrice),
		PaymentMethod: b.PaymentMethod,
		Note:          b.Note,
	}
	fields := map[string]interface{}{
		ColPurchaseId: p.PurchaseId,
		ColDate:       cellTime(p.Timestamp),
		ColProduct:    p.ProductName,
		ColQuantity:   cellNumber(p.Quantity),
		ColUnitPrice:  cellNumber(p.UnitPrice),
		ColTotal:      cellNumber(p.LineTotal),
		ColPayment:    string(p.PaymentMethod),
		ColNote:       p.Note,
	}
	if err := b.ledger.purchases.append(ctx, b.headers, fields); err != nil {
		config.LogError(b.ledger.logger, "models", "PurchaseBatch.AppendLine", "append purchase", p.ProductName, err)
		return nil, err
	}
	return p, nil
}

func (l *PurchaseLedger) Load(ctx context.Context, token int64) ([]*Purchase, error) {
	records, err := l.purchases.cached(ctx, token)
	if err != nil {
		return []*Purchase{}, err
	}
	purchases := make([]*Purchase, 0, len(records))
	for _, rec := range records {
		purchases = append(purchases, purchaseFromRecord(rec))
	}
	return purchases, nil
}

func (l *PurchaseLedger) List(ctx context.Context, token int64) []*Purchase {
	purchases, err := l.Load(ctx, token)
	if err != nil {
		config.LogError(l.logger, "models", "PurchaseLedger.List", "load purchases", token, err)
		return []*Purchase{}
	}
	return purchases
}

func purchaseFromRecord(rec tabular.Record) *Purchase {
	p := &Purchase{
		PurchaseId:    utils.CellString(rec.Get(ColPurchaseId)),
		ProductName:   utils.CellString(rec.Get(ColProduct)),
		Quantity:      utils.CellDecimal(rec.Get(ColQuantity), decimal.Zero),
		UnitPrice:     utils.CellDecimal(rec.Get(ColUnitPrice), decimal.Zero),
		LineTotal:     utils.CellDecimal(rec.Get(ColTotal), decimal.Zero),
		PaymentMethod: NormalizePaymentMethod(utils.CellString(rec.Get(ColPayment))),
		Note:          utils.CellString(rec.Get(ColNote)),
	}
	if t, ok := utils.ParseTimestamp(rec.Get(ColDate)); ok {
		p.Timestamp = t
	}
	return p
}
