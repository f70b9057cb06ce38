package models

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/mmdatafocus/shop_inventory/config"
	"github.com/mmdatafocus/shop_inventory/tabular"
	"github.com/mmdatafocus/shop_inventory/utils"
)

const defaultUnit = "un"

var defaultStockMinimum = decimal.NewFromInt(5)

type Product struct {
	Id           int             `json:"id"`
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	Price        decimal.Decimal `json:"price"`
	Unit         string          `json:"unit"`
	StockCurrent decimal.Decimal `json:"stockCurrent"`
	StockMinimum decimal.Decimal `json:"stockMinimum"`
	ImageUrl     string          `json:"imageUrl,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	// Row is the sheet row the product was read from. It is only meaningful for the read that produced it.
	Row int `json:"-"`
}

func (p Product) IsCritical() bool {
	return p.StockCurrent.LessThanOrEqual(p.StockMinimum)
}

// Deficit is how far stock is below its minimum, never negative.
func (p Product) Deficit() decimal.Decimal {
	return utils.MaxZero(p.StockMinimum.Sub(p.StockCurrent))
}

type NewProduct struct {
	Name         string           `json:"name" validate:"required,max=200"`
	Category     string           `json:"category" validate:"max=100"`
	Price        decimal.Decimal  `json:"price"`
	Unit         string           `json:"unit" validate:"max=20"`
	StockCurrent *decimal.Decimal `json:"stockCurrent"`
	StockMinimum *decimal.Decimal `json:"stockMinimum"`
	ImageUrl     string           `json:"imageUrl"`
}

func (input *NewProduct) normalize() {
	input.Name = strings.TrimSpace(input.Name)
	input.Category = strings.TrimSpace(input.Category)
	input.Unit = utils.StringOr(input.Unit, defaultUnit)
	input.ImageUrl = strings.TrimSpace(input.ImageUrl)
}

func (input *NewProduct) validate() error {
	if input.Name == "" {
		return NewValidationError("name", "product name is required")
	}
	if err := utils.ValidateStruct(input); err != nil {
		return validationFromTags(err)
	}
	if input.Price.IsNegative() {
		return NewValidationError("price", "price must not be negative")
	}
	if input.StockCurrent != nil && input.StockCurrent.IsNegative() {
		return NewValidationError("stockCurrent", "stock must not be negative")
	}
	if input.StockMinimum != nil && input.StockMinimum.IsNegative() {
		return NewValidationError("stockMinimum", "minimum stock must not be negative")
	}
	return nil
}

// CriticalProduct is a product at or below its minimum stock.
type CriticalProduct struct {
	Name         string          `json:"name"`
	Category     string          `json:"category,omitempty"`
	Unit         string          `json:"unit"`
	StockCurrent decimal.Decimal `json:"stockCurrent"`
	StockMinimum decimal.Decimal `json:"stockMinimum"`
	Deficit      decimal.Decimal `json:"deficit"`
}

func NewCriticalProduct(p *Product) CriticalProduct {
	return CriticalProduct{
		Name:         p.Name,
		Category:     p.Category,
		Unit:         p.Unit,
		StockCurrent: p.StockCurrent,
		StockMinimum: p.StockMinimum,
		Deficit:      p.Deficit(),
	}
}

// Catalog owns product records. Names are the natural key; matching is exact and case-sensitive.
type Catalog struct {
	products table
	logger   *logrus.Logger
	now      func() time.Time
}

func NewCatalog(reader *tabular.CachedReader, logger *logrus.Logger) *Catalog {
	return &Catalog{
		products: newTable(SheetProducts, reader),
		logger:   logger,
		now:      time.Now,
	}
}

// Add appends a product. Its id is the sheet's current row count, header included,
// so ids repeat if rows are ever removed or two adds race.
func (c *Catalog) Add(ctx context.Context, input NewProduct) (*Product, error) {
	input.normalize()
	if err := input.validate(); err != nil {
		return nil, err
	}

	values, headers, _, err := c.products.fresh(ctx)
	if err != nil {
		config.LogError(c.logger, "models", "Catalog.Add", "read products", input.Name, err)
		return nil, err
	}

	product := &Product{
		Id:           len(values),
		Name:         input.Name,
		Category:     input.Category,
		Price:        input.Price,
		Unit:         input.Unit,
		StockCurrent: utils.DereferencePtr(input.StockCurrent, decimal.Zero),
		StockMinimum: utils.DereferencePtr(input.StockMinimum, defaultStockMinimum),
		ImageUrl:     input.ImageUrl,
		CreatedAt:    c.now(),
		Row:          len(values) + 1,
	}
	if err := c.products.append(ctx, headers, productFields(product)); err != nil {
		config.LogError(c.logger, "models", "Catalog.Add", "append product", input.Name, err)
		return nil, err
	}
	return product, nil
}

// FindByName scans a fresh read of the sheet.
func (c *Catalog) FindByName(ctx context.Context, name string) (*Product, error) {
	_, _, records, err := c.products.fresh(ctx)
	if err != nil {
		return nil, err
	}
	if p := findProduct(records, name); p != nil {
		return p, nil
	}
	return nil, &NotFoundError{Kind: "product", Key: name}
}

// Load reads through the cache and reports read failures.
func (c *Catalog) Load(ctx context.Context, token int64) ([]*Product, error) {
	records, err := c.products.cached(ctx, token)
	if err != nil {
		return []*Product{}, err
	}
	products := make([]*Product, 0, len(records))
	for _, rec := range records {
		products = append(products, productFromRecord(rec))
	}
	return products, nil
}

// LoadFresh bypasses the cache.
func (c *Catalog) LoadFresh(ctx context.Context) ([]*Product, error) {
	_, _, records, err := c.products.fresh(ctx)
	if err != nil {
		return []*Product{}, err
	}
	products := make([]*Product, 0, len(records))
	for _, rec := range records {
		products = append(products, productFromRecord(rec))
	}
	return products, nil
}

// List is Load that logs and returns an empty list on failure.
func (c *Catalog) List(ctx context.Context, token int64) []*Product {
	products, err := c.Load(ctx, token)
	if err != nil {
		config.LogError(c.logger, "models", "Catalog.List", "load products", token, err)
		return []*Product{}
	}
	return products
}

// Critical returns the products at or below their minimum, in catalog order.
func Critical(products []*Product) []CriticalProduct {
	critical := make([]CriticalProduct, 0)
	for _, p := range products {
		if p.IsCritical() {
			critical = append(critical, NewCriticalProduct(p))
		}
	}
	return critical
}

// Search filters by a case-insensitive substring of the name; a blank query returns everything.
func Search(products []*Product, query string) []*Product {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return products
	}
	found := make([]*Product, 0)
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Name), query) {
			found = append(found, p)
		}
	}
	return found
}

// Categories lists the distinct non-empty categories, sorted.
func Categories(products []*Product) []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range products {
		if p.Category != "" && !seen[p.Category] {
			seen[p.Category] = true
			out = append(out, p.Category)
		}
	}
	sort.Strings(out)
	return out
}

func findProduct(records []tabular.Record, name string) *Product {
	for _, rec := range records {
		if utils.CellString(rec.Get(ColProductName)) == name {
			return productFromRecord(rec)
		}
	}
	return nil
}

func productFromRecord(rec tabular.Record) *Product {
	p := &Product{
		Id:           utils.CellInt(rec.Get(ColProductId), 0),
		Name:         utils.CellString(rec.Get(ColProductName)),
		Category:     utils.CellString(rec.Get(ColCategory)),
		Price:        utils.CellDecimal(rec.Get(ColPrice), decimal.Zero),
		Unit:         utils.StringOr(utils.CellString(rec.Get(ColUnit)), defaultUnit),
		StockCurrent: utils.MaxZero(utils.CellDecimal(rec.Get(ColStockCurrent), decimal.Zero)),
		StockMinimum: utils.MaxZero(utils.CellDecimal(rec.Get(ColStockMinimum), defaultStockMinimum)),
		ImageUrl:     utils.CellString(rec.Get(ColImage)),
		Row:          rec.Row,
	}
	if t, ok := utils.ParseTimestamp(rec.Get(ColCreatedAt)); ok {
		p.CreatedAt = t
	}
	return p
}

func productFields(p *Product) map[string]interface{} {
	return map[string]interface{}{
		ColProductId:    p.Id,
		ColProductName:  p.Name,
		ColCategory:     p.Category,
		ColPrice:        cellNumber(p.Price),
		ColUnit:         p.Unit,
		ColStockCurrent: cellNumber(p.StockCurrent),
		ColStockMinimum: cellNumber(p.StockMinimum),
		ColImage:        p.ImageUrl,
		ColCreatedAt:    cellPreciseTime(p.CreatedAt),
	}
}
