package reports

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/mmdatafocus/shop_inventory/models"
)

func dec(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 15, 30, 0, 0, time.Local)
}

func sample() []*models.Purchase {
	return []*models.Purchase{
		{PurchaseId: "CMP0001", Timestamp: day(2024, 1, 15), ProductName: "A", Quantity: dec(2), UnitPrice: dec(10), LineTotal: dec(20), PaymentMethod: models.PaymentMethodPix},
		{PurchaseId: "CMP0001", Timestamp: day(2024, 1, 15), ProductName: "B", Quantity: dec(1), UnitPrice: dec(5), LineTotal: dec(5), PaymentMethod: models.PaymentMethodPix},
		{PurchaseId: "CMP0003", Timestamp: day(2024, 2, 1), ProductName: "A", Quantity: dec(1), UnitPrice: dec(10), LineTotal: dec(10), PaymentMethod: models.PaymentMethodCash},
	}
}

func TestFilterPurchases_DateRangeIsInclusiveOnCalendarDate(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local)
	to := time.Date(2024, 1, 31, 0, 0, 0, 0, time.Local)

	got := FilterPurchases(sample(), PurchaseFilter{From: &from, To: &to})
	require.Len(t, got, 2)
	for _, p := range got {
		assert.Equal(t, time.January, p.Timestamp.Month())
	}

	edge := time.Date(2024, 1, 15, 0, 0, 0, 0, time.Local)
	assert.Len(t, FilterPurchases(sample(), PurchaseFilter{From: &edge, To: &edge}), 2)
}

func TestFilterPurchases_Conjunctive(t *testing.T) {
	assert.Len(t, FilterPurchases(sample(), PurchaseFilter{Year: 2024, ProductName: "A"}), 2)
	assert.Len(t, FilterPurchases(sample(), PurchaseFilter{Year: 2024, Month: 2, ProductName: "A"}), 1)
	assert.Len(t, FilterPurchases(sample(), PurchaseFilter{PaymentMethod: "pix", ProductName: "B"}), 1)
	assert.Len(t, FilterPurchases(sample(), PurchaseFilter{PurchaseId: "cmp0003"}), 1)
	assert.Empty(t, FilterPurchases(sample(), PurchaseFilter{Year: 2023}))
	assert.Len(t, FilterPurchases(sample(), PurchaseFilter{}), 3)
}

func TestAggregateByProduct_SortedByValue(t *testing.T) {
	totals := AggregateByProduct([]*models.Purchase{
		{ProductName: "A", Quantity: dec(2), LineTotal: dec(20)},
		{ProductName: "A", Quantity: dec(1), LineTotal: dec(10)},
		{ProductName: "B", Quantity: dec(1), LineTotal: dec(5)},
	})
	require.Len(t, totals, 2)
	assert.Equal(t, "A", totals[0].ProductName)
	assert.True(t, totals[0].Quantity.Equal(dec(3)))
	assert.True(t, totals[0].Value.Equal(dec(30)))
	assert.Equal(t, "B", totals[1].ProductName)
	assert.True(t, totals[1].Quantity.Equal(dec(1)))
	assert.True(t, totals[1].Value.Equal(dec(5)))
}

func TestAggregateByPaymentAndSummarize(t *testing.T) {
	byPayment := AggregateByPayment(sample())
	assert.True(t, byPayment["Pix"].Equal(dec(25)))
	assert.True(t, byPayment["Cash"].Equal(dec(10)))

	s := Summarize(sample())
	assert.Equal(t, 2, s.PurchaseCount)
	assert.Equal(t, 3, s.ItemCount)
	assert.True(t, s.TotalValue.Equal(dec(35)))
	assert.True(t, s.AverageTicket.Equal(dec(17.5)))

	assert.Len(t, GroupByPurchase(sample()), 2)
}

func TestReceiptsAreNewestFirstWithTotals(t *testing.T) {
	receipts := Receipts(sample())
	require.Len(t, receipts, 2)
	assert.Equal(t, "CMP0003", receipts[0].PurchaseId)
	assert.Equal(t, "CMP0001", receipts[1].PurchaseId)
	assert.Len(t, receipts[1].Lines, 2)
	assert.True(t, receipts[1].Total.Equal(dec(25)))
	assert.Equal(t, models.PaymentMethodPix, receipts[1].PaymentMethod)
}

func TestStockSnapshotAndDashboard(t *testing.T) {
	products := []*models.Product{
		{Name: "Rice", Price: dec(10), StockCurrent: dec(4), StockMinimum: dec(5)},
		{Name: "Beans", Price: dec(2), StockCurrent: dec(0), StockMinimum: dec(1)},
		{Name: "Oil", Price: dec(8), StockCurrent: dec(10), StockMinimum: dec(2)},
	}
	snap := StockSnapshot(products)
	assert.Equal(t, StockStatusCritical, snap.Rows[0].Status)
	assert.Equal(t, StockStatusEmpty, snap.Rows[1].Status)
	assert.Equal(t, StockStatusOk, snap.Rows[2].Status)
	assert.Equal(t, 2, snap.CriticalCount)
	assert.True(t, snap.TotalValue.Equal(dec(120)))

	d := Dashboard(products, sample(), day(2024, 2, 20))
	assert.Equal(t, 3, d.ProductCount)
	assert.Equal(t, 1, d.ThisMonth.ItemCount)
	assert.Len(t, d.Critical, 2)
	assert.Equal(t, "A", d.TopProducts[0].ProductName)
}

func TestWritePurchasesExcel_ReadsBack(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePurchasesExcel(&buf, sample()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(purchaseSheet)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, "Purchase ID", rows[0][0])
	assert.Equal(t, "CMP0001", rows[1][0])
	assert.Equal(t, "20", rows[1][5])
	assert.Equal(t, "Total", rows[4][0])
	assert.Equal(t, "35", rows[4][5])

	assert.Equal(t, "purchase_history_20240201_093000.xlsx", PurchaseExportFilename(time.Date(2024, 2, 1, 9, 30, 0, 0, time.UTC)))
}
