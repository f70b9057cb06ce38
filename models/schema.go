package models

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/mmdatafocus/shop_inventory/config"
	"github.com/mmdatafocus/shop_inventory/tabular"
)

const (
	SheetProducts      = "Products"
	SheetPurchases     = "Purchases"
	SheetMovements     = "Movements"
	SheetSubscriptions = "Alert_Subscriptions"

	defaultSheet = "Sheet1"
)

const (
	ColProductId      = "ID"
	ColProductName    = "Name"
	ColCategory       = "Category"
	ColPrice          = "Price"
	ColUnit           = "Unit"
	ColStockCurrent   = "Stock_Current"
	ColStockMinimum   = "Stock_Minimum"
	ColImage          = "Image"
	ColCreatedAt      = "Created_At"
	ColPurchaseId     = "Purchase_ID"
	ColDate           = "Date"
	ColProduct        = "Product"
	ColQuantity       = "Quantity"
	ColUnitPrice      = "Unit_Price"
	ColTotal          = "Total"
	ColPayment        = "Payment"
	ColNote           = "Note"
	ColMoveId         = "Move_ID"
	ColKind           = "Kind"
	ColReason         = "Reason"
	ColSubscriptionId = "ID"
	ColEmail          = "Email"
	ColActive         = "Active"
	ColLastChecked    = "Last_Checked"
)

// TableSchema is the expected header of one sheet.
type TableSchema struct {
	Name    string
	Columns []string
}

var Schemas = []TableSchema{
	{SheetProducts, []string{ColProductId, ColProductName, ColCategory, ColPrice, ColUnit, ColStockCurrent, ColStockMinimum, ColImage, ColCreatedAt}},
	{SheetPurchases, []string{ColPurchaseId, ColDate, ColProduct, ColQuantity, ColUnitPrice, ColTotal, ColPayment, ColNote}},
	{SheetMovements, []string{ColMoveId, ColDate, ColKind, ColProduct, ColQuantity, ColReason, ColNote}},
	{SheetSubscriptions, []string{ColSubscriptionId, ColEmail, ColActive, ColLastChecked}},
}

// MigrationReport lists what EnsureSchema changed.
type MigrationReport struct {
	CreatedSheets  []string            `json:"createdSheets"`
	AddedColumns   map[string][]string `json:"addedColumns"`
	RemovedDefault bool                `json:"removedDefault"`
}

// EnsureSchema creates missing sheets with their header and appends missing columns
// after the existing ones. Existing column order is never changed.
// The default "Sheet1" is removed once other sheets exist.
//
// Each sheet is migrated independently; failures are joined into the returned error.
func EnsureSchema(ctx context.Context, store tabular.Store, logger *logrus.Logger) (*MigrationReport, error) {
	report := &MigrationReport{AddedColumns: map[string][]string{}}

	existing, err := store.Sheets(ctx)
	if err != nil {
		config.LogError(logger, "models", "EnsureSchema", "list sheets", nil, err)
		return report, err
	}
	present := make(map[string]bool, len(existing))
	for _, s := range existing {
		present[s] = true
	}

	var errs []error
	for _, schema := range Schemas {
		if !present[schema.Name] {
			if err := createSheet(ctx, store, schema); err != nil {
				config.LogError(logger, "models", "EnsureSchema", "create sheet", schema.Name, err)
				errs = append(errs, err)
				continue
			}
			report.CreatedSheets = append(report.CreatedSheets, schema.Name)
			present[schema.Name] = true
			continue
		}
		added, err := addMissingColumns(ctx, store, schema)
		if err != nil {
			config.LogError(logger, "models", "EnsureSchema", "add columns", schema.Name, err)
			errs = append(errs, err)
			continue
		}
		if len(added) > 0 {
			report.AddedColumns[schema.Name] = added
		}
	}

	if present[defaultSheet] && len(present) > 1 {
		if err := store.DeleteSheet(ctx, defaultSheet); err != nil {
			config.LogWarn(logger, "models", "EnsureSchema", "remove default sheet", defaultSheet, err)
		} else {
			report.RemovedDefault = true
		}
	}
	return report, errors.Join(errs...)
}

func createSheet(ctx context.Context, store tabular.Store, schema TableSchema) error {
	if err := store.AddSheet(ctx, schema.Name); err != nil {
		return err
	}
	return store.AppendRow(ctx, schema.Name, headerRow(schema.Columns))
}

func addMissingColumns(ctx context.Context, store tabular.Store, schema TableSchema) ([]string, error) {
	values, err := store.Values(ctx, schema.Name)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		if err := store.AppendRow(ctx, schema.Name, headerRow(schema.Columns)); err != nil {
			return nil, err
		}
		return schema.Columns, nil
	}
	headers := tabular.HeaderOf(values)
	if isBlankHeader(headers) {
		// row 1 exists but is empty; write the header in place
		headers = nil
	}

	var added []string
	for _, col := range schema.Columns {
		if tabular.ColumnIndex(headers, col) > 0 {
			continue
		}
		if err := store.UpdateCell(ctx, schema.Name, 1, len(headers)+1, col); err != nil {
			return added, err
		}
		headers = append(headers, col)
		added = append(added, col)
	}
	return added, nil
}

func headerRow(columns []string) []interface{} {
	row := make([]interface{}, len(columns))
	for i, c := range columns {
		row[i] = c
	}
	return row
}

func isBlankHeader(headers []string) bool {
	for _, h := range headers {
		if h != "" {
			return false
		}
	}
	return true
}
