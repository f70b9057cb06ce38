package reports

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmdatafocus/shop_inventory/models"
	"github.com/mmdatafocus/shop_inventory/utils"
)

// PurchaseFilter narrows purchase history. Zero-valued fields do not filter;
// the rest are combined with AND. From and To compare calendar dates, inclusive.
type PurchaseFilter struct {
	Year          int        `form:"year" json:"year,omitempty"`
	Month         int        `form:"month" json:"month,omitempty"`
	From          *time.Time `form:"-" json:"from,omitempty"`
	To            *time.Time `form:"-" json:"to,omitempty"`
	PurchaseId    string     `form:"purchaseId" json:"purchaseId,omitempty"`
	ProductName   string     `form:"product" json:"product,omitempty"`
	PaymentMethod string     `form:"payment" json:"payment,omitempty"`
}

func (f PurchaseFilter) match(p *models.Purchase) bool {
	dated := !p.Timestamp.IsZero()
	if f.Year != 0 && (!dated || p.Timestamp.Year() != f.Year) {
		return false
	}
	if f.Month != 0 && (!dated || int(p.Timestamp.Month()) != f.Month) {
		return false
	}
	if f.From != nil || f.To != nil {
		if !dated {
			return false
		}
		day := utils.DateOnly(p.Timestamp)
		if f.From != nil && day.Before(utils.DateOnly(f.From.In(p.Timestamp.Location()))) {
			return false
		}
		if f.To != nil && day.After(utils.DateOnly(f.To.In(p.Timestamp.Location()))) {
			return false
		}
	}
	if f.PurchaseId != "" && !strings.EqualFold(p.PurchaseId, strings.TrimSpace(f.PurchaseId)) {
		return false
	}
	if f.ProductName != "" && p.ProductName != strings.TrimSpace(f.ProductName) {
		return false
	}
	if f.PaymentMethod != "" && !strings.EqualFold(string(p.PaymentMethod), strings.TrimSpace(f.PaymentMethod)) {
		return false
	}
	return true
}

func FilterPurchases(purchases []*models.Purchase, filter PurchaseFilter) []*models.Purchase {
	out := make([]*models.Purchase, 0, len(purchases))
	for _, p := range purchases {
		if filter.match(p) {
			out = append(out, p)
		}
	}
	return out
}

type ProductTotal struct {
	ProductName string          `json:"productName"`
	Quantity    decimal.Decimal `json:"quantity"`
	Value       decimal.Decimal `json:"value"`
}

// AggregateByProduct sums quantity and stored line totals per product,
// sorted by value descending and then by name.
func AggregateByProduct(purchases []*models.Purchase) []ProductTotal {
	index := map[string]int{}
	totals := make([]ProductTotal, 0)
	for _, p := range purchases {
		i, ok := index[p.ProductName]
		if !ok {
			i = len(totals)
			index[p.ProductName] = i
			totals = append(totals, ProductTotal{ProductName: p.ProductName})
		}
		totals[i].Quantity = totals[i].Quantity.Add(p.Quantity)
		totals[i].Value = totals[i].Value.Add(p.LineTotal)
	}
	sort.SliceStable(totals, func(a, b int) bool {
		if c := totals[a].Value.Cmp(totals[b].Value); c != 0 {
			return c > 0
		}
		return totals[a].ProductName < totals[b].ProductName
	})
	return totals
}

func AggregateByPayment(purchases []*models.Purchase) map[string]decimal.Decimal {
	out := map[string]decimal.Decimal{}
	for _, p := range purchases {
		key := string(p.PaymentMethod)
		out[key] = out[key].Add(p.LineTotal)
	}
	return out
}

type PurchaseSummary struct {
	TotalValue    decimal.Decimal `json:"totalValue"`
	PurchaseCount int             `json:"purchaseCount"`
	ItemCount     int             `json:"itemCount"`
	TotalQuantity decimal.Decimal `json:"totalQuantity"`
	// AverageTicket is TotalValue over PurchaseCount, zero when there are none.
	AverageTicket decimal.Decimal `json:"averageTicket"`
}

func Summarize(purchases []*models.Purchase) PurchaseSummary {
	var s PurchaseSummary
	ids := map[string]bool{}
	for _, p := range purchases {
		s.TotalValue = s.TotalValue.Add(p.LineTotal)
		s.TotalQuantity = s.TotalQuantity.Add(p.Quantity)
		s.ItemCount++
		ids[p.PurchaseId] = true
	}
	s.PurchaseCount = len(ids)
	if s.PurchaseCount > 0 {
		s.AverageTicket = s.TotalValue.Div(decimal.NewFromInt(int64(s.PurchaseCount))).Round(2)
	}
	return s
}

// GroupByPurchase returns the lines of each purchase id, in first-seen order.
func GroupByPurchase(purchases []*models.Purchase) [][]*models.Purchase {
	index := map[string]int{}
	var groups [][]*models.Purchase
	for _, p := range purchases {
		i, ok := index[p.PurchaseId]
		if !ok {
			i = len(groups)
			index[p.PurchaseId] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], p)
	}
	return groups
}

// Receipt is one purchase id with its lines, as the client printed it at checkout.
type Receipt struct {
	PurchaseId    string               `json:"purchaseId"`
	Timestamp     time.Time            `json:"timestamp"`
	PaymentMethod models.PaymentMethod `json:"paymentMethod"`
	Note          string               `json:"note,omitempty"`
	Lines         []*models.Purchase   `json:"lines"`
	Total         decimal.Decimal      `json:"total"`
}

// Receipts groups purchase lines into receipts, newest first.
func Receipts(purchases []*models.Purchase) []Receipt {
	groups := GroupByPurchase(purchases)
	receipts := make([]Receipt, 0, len(groups))
	for _, lines := range groups {
		first := lines[0]
		r := Receipt{
			PurchaseId:    first.PurchaseId,
			Timestamp:     first.Timestamp,
			PaymentMethod: first.PaymentMethod,
			Note:          first.Note,
			Lines:         lines,
		}
		for _, l := range lines {
			r.Total = r.Total.Add(l.LineTotal)
		}
		receipts = append(receipts, r)
	}
	sort.SliceStable(receipts, func(a, b int) bool {
		return receipts[a].Timestamp.After(receipts[b].Timestamp)
	})
	return receipts
}
