package reports

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmdatafocus/shop_inventory/models"
)

const (
	StockStatusOk       = "OK"
	StockStatusCritical = "Critical"
	StockStatusEmpty    = "Out of stock"
)

type StockRow struct {
	Id           int             `json:"id"`
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	Unit         string          `json:"unit"`
	Price        decimal.Decimal `json:"price"`
	StockCurrent decimal.Decimal `json:"stockCurrent"`
	StockMinimum decimal.Decimal `json:"stockMinimum"`
	Deficit      decimal.Decimal `json:"deficit"`
	StockValue   decimal.Decimal `json:"stockValue"`
	Status       string          `json:"status"`
}

type StockSnapshotResponse struct {
	Rows          []StockRow      `json:"rows"`
	TotalValue    decimal.Decimal `json:"totalValue"`
	CriticalCount int             `json:"criticalCount"`
	EmptyCount    int             `json:"emptyCount"`
}

func StockSnapshot(products []*models.Product) StockSnapshotResponse {
	resp := StockSnapshotResponse{Rows: make([]StockRow, 0, len(products))}
	for _, p := range products {
		row := StockRow{
			Id:           p.Id,
			Name:         p.Name,
			Category:     p.Category,
			Unit:         p.Unit,
			Price:        p.Price,
			StockCurrent: p.StockCurrent,
			StockMinimum: p.StockMinimum,
			Deficit:      p.Deficit(),
			StockValue:   p.StockCurrent.Mul(p.Price),
			Status:       StockStatusOk,
		}
		switch {
		case p.StockCurrent.IsZero():
			row.Status = StockStatusEmpty
			resp.EmptyCount++
			resp.CriticalCount++
		case p.IsCritical():
			row.Status = StockStatusCritical
			resp.CriticalCount++
		}
		resp.TotalValue = resp.TotalValue.Add(row.StockValue)
		resp.Rows = append(resp.Rows, row)
	}
	return resp
}

type DashboardResponse struct {
	ProductCount  int                        `json:"productCount"`
	CriticalCount int                        `json:"criticalCount"`
	StockValue    decimal.Decimal            `json:"stockValue"`
	AllTime       PurchaseSummary            `json:"allTime"`
	ThisMonth     PurchaseSummary            `json:"thisMonth"`
	TopProducts   []ProductTotal             `json:"topProducts"`
	ByPayment     map[string]decimal.Decimal `json:"byPayment"`
	Critical      []models.CriticalProduct   `json:"critical"`
}

const dashboardTopProducts = 5

func Dashboard(products []*models.Product, purchases []*models.Purchase, now time.Time) DashboardResponse {
	stock := StockSnapshot(products)
	month := FilterPurchases(purchases, PurchaseFilter{Year: now.Year(), Month: int(now.Month())})
	top := AggregateByProduct(purchases)
	if len(top) > dashboardTopProducts {
		top = top[:dashboardTopProducts]
	}
	return DashboardResponse{
		ProductCount:  len(products),
		CriticalCount: stock.CriticalCount,
		StockValue:    stock.TotalValue,
		AllTime:       Summarize(purchases),
		ThisMonth:     Summarize(month),
		TopProducts:   top,
		ByPayment:     AggregateByPayment(purchases),
		Critical:      models.Critical(products),
	}
}
