package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/mmdatafocus/shop_inventory/config"
	"github.com/mmdatafocus/shop_inventory/models"
)

// MovementResult is a stock change and the ledger entry describing it.
// MovementError is set when the change was applied but logging it failed.
type MovementResult struct {
	Stock         *models.StockChange `json:"stock"`
	MovementId    string              `json:"movementId,omitempty"`
	MovementError string              `json:"movementError,omitempty"`
}

// StockMovementService applies manual entries, exits and stock counts.
type StockMovementService struct {
	stock     *models.StockReconciler
	movements *models.MovementLedger
	alerts    AlertTrigger
	logger    *logrus.Logger
	metrics   *Metrics
}

func NewStockMovementService(stock *models.StockReconciler, movements *models.MovementLedger, alerts AlertTrigger,
	logger *logrus.Logger, metrics *Metrics) *StockMovementService {
	return &StockMovementService{stock: stock, movements: movements, alerts: alerts, logger: logger, metrics: metrics}
}

// Record validates the input, reconciles stock and then logs the movement best-effort.
func (s *StockMovementService) Record(ctx context.Context, input models.NewMovement) (*MovementResult, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	change, err := s.stock.Apply(ctx, input.ProductName, input.Quantity, input.Kind)
	if err != nil {
		return nil, err
	}
	result := &MovementResult{Stock: change}

	id, err := s.movements.Record(ctx, input)
	if err != nil {
		config.LogWarn(s.logger, "workflow", "StockMovementService.Record", "movement log", input.ProductName, err)
		result.MovementError = messageOf(err)
	} else {
		result.MovementId = id
		s.metrics.movement(string(input.Kind), string(input.Reason))
	}

	if change.WentCritical && s.alerts != nil {
		s.alerts.DispatchAsync(ctx)
	}
	return result, nil
}

// Count overwrites stock with a counted quantity and logs the difference as an Adjustment.
// No movement is written when the count matches.
func (s *StockMovementService) Count(ctx context.Context, productName string, counted decimal.Decimal, note string) (*MovementResult, error) {
	productName = strings.TrimSpace(productName)
	note = strings.TrimSpace(note)
	// kind and quantity depend on the count; the rest must be valid before stock changes
	check := models.NewMovement{
		Kind:        models.MovementKindEntry,
		ProductName: productName,
		Quantity:    decimal.NewFromInt(1),
		Reason:      models.MovementReasonAdjustment,
		Note:        note,
	}
	if err := check.Validate(); err != nil {
		return nil, err
	}

	change, err := s.stock.SetAbsolute(ctx, productName, counted)
	if err != nil {
		return nil, err
	}
	result := &MovementResult{Stock: change}

	diff := change.Current.Sub(change.Previous)
	if diff.IsZero() {
		return result, nil
	}
	kind := models.MovementKindEntry
	if diff.IsNegative() {
		kind = models.MovementKindExit
	}
	if note == "" {
		note = fmt.Sprintf("count %s -> %s", change.Previous.String(), change.Current.String())
	}
	id, err := s.movements.Record(ctx, models.NewMovement{
		Kind:        kind,
		ProductName: productName,
		Quantity:    diff.Abs(),
		Reason:      models.MovementReasonAdjustment,
		Note:        note,
	})
	if err != nil {
		config.LogWarn(s.logger, "workflow", "StockMovementService.Count", "movement log", productName, err)
		result.MovementError = messageOf(err)
	} else {
		result.MovementId = id
		s.metrics.movement(string(kind), string(models.MovementReasonAdjustment))
	}

	if change.WentCritical && s.alerts != nil {
		s.alerts.DispatchAsync(ctx)
	}
	return result, nil
}
