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

type Movement struct {
	Id          string          `json:"id"`
	Timestamp   time.Time       `json:"timestamp"`
	Kind        MovementKind    `json:"kind"`
	ProductName string          `json:"productName"`
	Quantity    decimal.Decimal `json:"quantity"`
	Reason      MovementReason  `json:"reason"`
	Note        string          `json:"note,omitempty"`
}

type NewMovement struct {
	Kind        MovementKind    `json:"kind" validate:"required"`
	ProductName string          `json:"productName" validate:"required"`
	Quantity    decimal.Decimal `json:"quantity"`
	Reason      MovementReason  `json:"reason"`
	Note        string          `json:"note" validate:"max=500"`
}

// Validate normalizes the input and checks it. Callers that change stock run it before the change.
func (input *NewMovement) Validate() error {
	input.ProductName = strings.TrimSpace(input.ProductName)
	input.Note = strings.TrimSpace(input.Note)
	if input.Reason == "" {
		input.Reason = MovementReasonOther
	}
	if !input.Kind.IsValid() {
		return NewValidationError("kind", "movement kind must be Entry or Exit")
	}
	if err := utils.ValidateStruct(input); err != nil {
		return validationFromTags(err)
	}
	if !input.Quantity.IsPositive() {
		return NewValidationError("quantity", "quantity must be greater than zero")
	}
	return nil
}

// MovementLedger is the append-only log of stock events.
type MovementLedger struct {
	movements table
	catalog   *Catalog
	logger    *logrus.Logger
	now       func() time.Time
}

func NewMovementLedger(reader *tabular.CachedReader, catalog *Catalog, logger *logrus.Logger) *MovementLedger {
	return &MovementLedger{
		movements: newTable(SheetMovements, reader),
		catalog:   catalog,
		logger:    logger,
		now:       time.Now,
	}
}

// Record appends a movement for an existing product and returns its id.
// It does not touch stock; see StockReconciler.
func (l *MovementLedger) Record(ctx context.Context, input NewMovement) (string, error) {
	if err := input.Validate(); err != nil {
		return "", err
	}
	if _, err := l.catalog.FindByName(ctx, input.ProductName); err != nil {
		return "", err
	}

	values, headers, _, err := l.movements.fresh(ctx)
	if err != nil {
		config.LogError(l.logger, "models", "MovementLedger.Record", "read movements", input.ProductName, err)
		return "", err
	}
	id := fmt.Sprintf("MOV%04d", len(values))
	fields := map[string]interface{}{
		ColMoveId:   id,
		ColDate:     cellTime(l.now()),
		ColKind:     string(input.Kind),
		ColProduct:  input.ProductName,
		ColQuantity: cellNumber(input.Quantity),
		ColReason:   string(input.Reason),
		ColNote:     input.Note,
	}
	if err := l.movements.append(ctx, headers, fields); err != nil {
		config.LogError(l.logger, "models", "MovementLedger.Record", "append movement", id, err)
		return "", err
	}
	return id, nil
}

func (l *MovementLedger) Load(ctx context.Context, token int64) ([]*Movement, error) {
	records, err := l.movements.cached(ctx, token)
	if err != nil {
		return []*Movement{}, err
	}
	movements := make([]*Movement, 0, len(records))
	for _, rec := range records {
		movements = append(movements, movementFromRecord(rec))
	}
	return movements, nil
}

func (l *MovementLedger) List(ctx context.Context, token int64) []*Movement {
	movements, err := l.Load(ctx, token)
	if err != nil {
		config.LogError(l.logger, "models", "MovementLedger.List", "load movements", token, err)
		return []*Movement{}
	}
	return movements
}

// ForProduct keeps the movements of one product, in ledger order.
func ForProduct(movements []*Movement, productName string) []*Movement {
	out := make([]*Movement, 0)
	for _, m := range movements {
		if m.ProductName == productName {
			out = append(out, m)
		}
	}
	return out
}

func movementFromRecord(rec tabular.Record) *Movement {
	m := &Movement{
		Id:          utils.CellString(rec.Get(ColMoveId)),
		ProductName: utils.CellString(rec.Get(ColProduct)),
		Quantity:    utils.CellDecimal(rec.Get(ColQuantity), decimal.Zero),
		Reason:      MovementReason(utils.CellString(rec.Get(ColReason))),
		Note:        utils.CellString(rec.Get(ColNote)),
	}
	if kind, err := ParseMovementKind(utils.CellString(rec.Get(ColKind))); err == nil {
		m.Kind = kind
	}
	if t, ok := utils.ParseTimestamp(rec.Get(ColDate)); ok {
		m.Timestamp = t
	}
	return m
}
