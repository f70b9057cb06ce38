package reports

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/mmdatafocus/shop_inventory/models"
	"github.com/mmdatafocus/shop_inventory/utils"
)

const (
	ExcelContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	purchaseSheet = "History"
	stockSheet    = "Stock"
)

// ExcelExporter is one exported row.
type ExcelExporter interface {
	GetCellValues() []interface{}
}

type purchaseExportRow struct {
	*models.Purchase
}

func (r purchaseExportRow) GetCellValues() []interface{} {
	return []interface{}{
		r.PurchaseId,
		utils.FormatTimestamp(r.Timestamp),
		r.ProductName,
		r.Quantity.InexactFloat64(),
		r.UnitPrice.InexactFloat64(),
		r.LineTotal.InexactFloat64(),
		string(r.PaymentMethod),
		r.Note,
	}
}

func (r StockRow) GetCellValues() []interface{} {
	return []interface{}{
		r.Id,
		r.Name,
		r.Category,
		r.Unit,
		r.Price.InexactFloat64(),
		r.StockCurrent.InexactFloat64(),
		r.StockMinimum.InexactFloat64(),
		r.Deficit.InexactFloat64(),
		r.StockValue.InexactFloat64(),
		r.Status,
	}
}

var (
	purchaseHeadings = []string{"Purchase ID", "Date", "Product", "Quantity", "Unit Price", "Total", "Payment", "Note"}
	stockHeadings    = []string{"ID", "Product", "Category", "Unit", "Price", "Stock", "Minimum", "Deficit", "Stock Value", "Status"}
)

// PurchaseExportFilename is purchase_history_<timestamp>.xlsx.
func PurchaseExportFilename(now time.Time) string {
	return fmt.Sprintf("purchase_history_%s.xlsx", now.Format("20060102_150405"))
}

func StockExportFilename(now time.Time) string {
	return fmt.Sprintf("stock_snapshot_%s.xlsx", now.Format("20060102_150405"))
}

// WritePurchasesExcel writes the given purchase view, plus a totals row, as an xlsx workbook.
func WritePurchasesExcel(w io.Writer, purchases []*models.Purchase) error {
	rows := make([]ExcelExporter, len(purchases))
	for i, p := range purchases {
		rows[i] = purchaseExportRow{p}
	}
	summary := Summarize(purchases)
	footer := []interface{}{"Total", "", "", summary.TotalQuantity.InexactFloat64(), "", summary.TotalValue.InexactFloat64()}
	return writeExcel(w, purchaseSheet, purchaseHeadings, rows, footer)
}

func WriteStockExcel(w io.Writer, snapshot StockSnapshotResponse) error {
	rows := make([]ExcelExporter, len(snapshot.Rows))
	for i, r := range snapshot.Rows {
		rows[i] = r
	}
	footer := []interface{}{"Total", "", "", "", "", "", "", "", snapshot.TotalValue.InexactFloat64()}
	return writeExcel(w, stockSheet, stockHeadings, rows, footer)
}

func writeExcel(w io.Writer, sheetName string, headings []string, data []ExcelExporter, footer []interface{}) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	headerRow := make([]interface{}, len(headings))
	for i, h := range headings {
		headerRow[i] = h
	}
	if err := setRow(f, sheetName, 1, headerRow); err != nil {
		return err
	}

	rowNo := 2
	for _, d := range data {
		if err := setRow(f, sheetName, rowNo, d.GetCellValues()); err != nil {
			return err
		}
		rowNo++
	}
	if footer != nil {
		if err := setRow(f, sheetName, rowNo, footer); err != nil {
			return err
		}
	}

	last, err := excelize.CoordinatesToCellName(len(headings), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetName, "A1", last, bold); err != nil {
		return err
	}
	if err := f.SetPanes(sheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return err
	}

	return f.Write(w)
}

func setRow(f *excelize.File, sheet string, rowNo int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNo)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}
