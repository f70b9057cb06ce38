package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/mmdatafocus/shop_inventory/middlewares"
	"github.com/mmdatafocus/shop_inventory/models"
	"github.com/mmdatafocus/shop_inventory/models/reports"
	"github.com/mmdatafocus/shop_inventory/tabular"
	"github.com/mmdatafocus/shop_inventory/utils"
	"github.com/mmdatafocus/shop_inventory/workflow"
)

const dateLayout = "2006-01-02"

// api holds everything the handlers need.
type api struct {
	logger        *logrus.Logger
	registry      *prometheus.Registry
	httpMetrics   *middlewares.HTTPMetrics
	sessions      *models.SessionStore
	migrate       middlewares.SchemaMigrator
	catalog       *models.Catalog
	purchases     *models.PurchaseLedger
	movements     *models.MovementLedger
	subscriptions *models.SubscriptionRegistry
	sales         *workflow.SaleProcessor
	stock         *workflow.StockMovementService
	alerts        *workflow.AlertDispatcher
}

func (a *api) routes(r *gin.Engine) {
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))
	if utils.GetStorageProvider() == utils.StorageProviderLocal {
		r.Static("/files", utils.LocalStorageDir())
	}

	g := r.Group("/", middlewares.SessionMiddleware(a.sessions, a.migrate, a.logger))
	g.GET("/dashboard", a.dashboardHandler())
	g.POST("/reload", a.reloadHandler())

	g.GET("/products", a.listProductsHandler())
	g.POST("/products", a.addProductHandler())
	g.GET("/products/critical", a.criticalProductsHandler())
	g.POST("/products/images", productImageHandler(a.logger))

	g.GET("/cart", a.cartHandler())
	g.POST("/cart/items", a.addCartItemHandler())
	g.DELETE("/cart/items/:index", a.removeCartItemHandler())
	g.DELETE("/cart", a.clearCartHandler())
	g.POST("/checkout", a.checkoutHandler())

	g.GET("/movements", a.listMovementsHandler())
	g.POST("/movements", a.recordMovementHandler())
	g.POST("/stock-counts", a.stockCountHandler())

	g.GET("/purchases", a.listPurchasesHandler())
	g.GET("/purchases/by-product", a.purchasesByProductHandler())
	g.GET("/purchases/receipts", a.purchaseReceiptsHandler())
	g.GET("/purchases/export", a.exportPurchasesHandler())

	g.GET("/stock/snapshot", a.stockSnapshotHandler())
	g.GET("/stock/export", a.exportStockHandler())

	g.GET("/subscriptions", a.listSubscriptionsHandler())
	g.POST("/subscriptions", a.addSubscriptionHandler())
	g.PUT("/subscriptions/:id/active", a.setSubscriptionActiveHandler())
	g.POST("/alerts/dispatch", a.dispatchAlertsHandler())

	r.NoRoute(customNotFoundHandler)
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

// respondError maps domain errors to status codes with the operator-facing message.
func respondError(c *gin.Context, err error) {
	var ve *models.ValidationError
	var nf *models.NotFoundError
	var ue *models.StoreUnavailableError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Message, "field": ve.Field})
	case errors.As(err, &nf):
		c.JSON(http.StatusNotFound, gin.H{"error": nf.Error()})
	case errors.Is(err, workflow.ErrStockLockBusy):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &ue):
		status := http.StatusServiceUnavailable
		if tabular.IsRateLimited(err) {
			status = http.StatusTooManyRequests
		}
		_ = c.Error(err)
		c.JSON(status, gin.H{"error": ue.Message(), "reason": ue.Reason})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func session(c *gin.Context) *models.Session {
	return middlewares.GetSession(c)
}

func (a *api) dashboardHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		s := session(c)
		products := a.catalog.List(ctx, s.Token(models.SheetProducts))
		purchases := a.purchases.List(ctx, s.Token(models.SheetPurchases))
		c.JSON(http.StatusOK, reports.Dashboard(products, purchases, time.Now()))
	}
}

func (a *api) reloadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		session(c).BumpAll(c.Request.Context())
		c.Status(http.StatusNoContent)
	}
}

func (a *api) listProductsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		products := a.catalog.List(c.Request.Context(), session(c).Token(models.SheetProducts))
		found := models.Search(products, c.Query("q"))
		if category := strings.TrimSpace(c.Query("category")); category != "" {
			filtered := make([]*models.Product, 0, len(found))
			for _, p := range found {
				if p.Category == category {
					filtered = append(filtered, p)
				}
			}
			found = filtered
		}
		c.JSON(http.StatusOK, gin.H{
			"products":   found,
			"categories": models.Categories(products),
		})
	}
}

func (a *api) addProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewProduct
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		product, err := a.catalog.Add(c.Request.Context(), input)
		if err != nil {
			respondError(c, err)
			return
		}
		session(c).Bump(c.Request.Context(), models.SheetProducts)
		c.JSON(http.StatusCreated, product)
	}
}

func (a *api) criticalProductsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		products, err := a.catalog.Load(c.Request.Context(), session(c).Token(models.SheetProducts))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.Critical(products))
	}
}

func cartResponse(items []models.LineItem) gin.H {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.LineSubtotal)
	}
	return gin.H{"items": items, "total": total}
}

func (a *api) cartHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, cartResponse(session(c).CartItems()))
	}
}

type addCartItemRequest struct {
	ProductName string          `json:"productName"`
	Quantity    decimal.Decimal `json:"quantity"`
}

func (a *api) addCartItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req addCartItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		s := session(c)
		products, err := a.catalog.Load(c.Request.Context(), s.Token(models.SheetProducts))
		if err != nil {
			respondError(c, err)
			return
		}
		var product *models.Product
		for _, p := range products {
			if p.Name == strings.TrimSpace(req.ProductName) {
				product = p
				break
			}
		}
		if product == nil {
			respondError(c, &models.NotFoundError{Kind: "product", Key: req.ProductName})
			return
		}
		item, err := models.NewLineItem(product, req.Quantity)
		if err != nil {
			respondError(c, err)
			return
		}
		_ = s.WithCart(func(cart *models.Cart) error {
			cart.Add(item)
			return nil
		})
		c.JSON(http.StatusCreated, cartResponse(s.CartItems()))
	}
}

func (a *api) removeCartItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		index, err := strconv.Atoi(c.Param("index"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "index must be a number"})
			return
		}
		s := session(c)
		if err := s.WithCart(func(cart *models.Cart) error { return cart.Remove(index) }); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, cartResponse(s.CartItems()))
	}
}

func (a *api) clearCartHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		_ = session(c).WithCart(func(cart *models.Cart) error {
			cart.Clear()
			return nil
		})
		c.Status(http.StatusNoContent)
	}
}

type checkoutRequest struct {
	PaymentMethod string `json:"paymentMethod"`
	Note          string `json:"note"`
}

func (a *api) checkoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req checkoutRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
				return
			}
		}
		result, err := a.sales.CheckoutSession(c.Request.Context(), session(c), req.PaymentMethod, req.Note)
		if err != nil {
			respondError(c, err)
			return
		}
		if result.Recorded() == 0 {
			c.JSON(http.StatusServiceUnavailable, result)
			return
		}
		c.JSON(http.StatusCreated, result)
	}
}

func (a *api) listMovementsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		movements := a.movements.List(c.Request.Context(), session(c).Token(models.SheetMovements))
		if product := strings.TrimSpace(c.Query("product")); product != "" {
			movements = models.ForProduct(movements, product)
		}
		c.JSON(http.StatusOK, movements)
	}
}

func (a *api) recordMovementHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewMovement
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		result, err := a.stock.Record(c.Request.Context(), input)
		if err != nil {
			respondError(c, err)
			return
		}
		session(c).Bump(c.Request.Context(), models.SheetProducts, models.SheetMovements)
		c.JSON(http.StatusCreated, result)
	}
}

type stockCountRequest struct {
	ProductName string          `json:"productName"`
	Quantity    decimal.Decimal `json:"quantity"`
	Note        string          `json:"note"`
}

func (a *api) stockCountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req stockCountRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		result, err := a.stock.Count(c.Request.Context(), req.ProductName, req.Quantity, req.Note)
		if err != nil {
			respondError(c, err)
			return
		}
		session(c).Bump(c.Request.Context(), models.SheetProducts, models.SheetMovements)
		c.JSON(http.StatusOK, result)
	}
}

// respondBindError reports enum parse failures as validation errors.
func respondBindError(c *gin.Context, err error) {
	var ve *models.ValidationError
	if errors.As(err, &ve) {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
}

func purchaseFilter(c *gin.Context) (reports.PurchaseFilter, error) {
	var filter reports.PurchaseFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		return filter, models.NewValidationError("query", "invalid purchase filter")
	}
	for key, target := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		raw := strings.TrimSpace(c.Query(key))
		if raw == "" {
			continue
		}
		t, err := time.ParseInLocation(dateLayout, raw, time.Local)
		if err != nil {
			return filter, models.NewValidationError(key, fmt.Sprintf("%s must be a date like %s", key, dateLayout))
		}
		*target = &t
	}
	return filter, nil
}

func (a *api) filteredPurchases(c *gin.Context) ([]*models.Purchase, bool) {
	filter, err := purchaseFilter(c)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	purchases, err := a.purchases.Load(c.Request.Context(), session(c).Token(models.SheetPurchases))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return reports.FilterPurchases(purchases, filter), true
}

func (a *api) listPurchasesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		purchases, ok := a.filteredPurchases(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"purchases": purchases,
			"summary":   reports.Summarize(purchases),
			"byPayment": reports.AggregateByPayment(purchases),
		})
	}
}

func (a *api) purchasesByProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		purchases, ok := a.filteredPurchases(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, reports.AggregateByProduct(purchases))
	}
}

func (a *api) purchaseReceiptsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		purchases, ok := a.filteredPurchases(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, reports.Receipts(purchases))
	}
}

func attachment(c *gin.Context, filename string) {
	c.Header("Content-Type", reports.ExcelContentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
}

func (a *api) exportPurchasesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		purchases, ok := a.filteredPurchases(c)
		if !ok {
			return
		}
		attachment(c, reports.PurchaseExportFilename(time.Now()))
		if err := reports.WritePurchasesExcel(c.Writer, purchases); err != nil {
			_ = c.Error(err)
			c.Status(http.StatusInternalServerError)
		}
	}
}

func (a *api) stockSnapshotHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		products, err := a.catalog.Load(c.Request.Context(), session(c).Token(models.SheetProducts))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, reports.StockSnapshot(products))
	}
}

func (a *api) exportStockHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		products, err := a.catalog.Load(c.Request.Context(), session(c).Token(models.SheetProducts))
		if err != nil {
			respondError(c, err)
			return
		}
		attachment(c, reports.StockExportFilename(time.Now()))
		if err := reports.WriteStockExcel(c.Writer, reports.StockSnapshot(products)); err != nil {
			_ = c.Error(err)
			c.Status(http.StatusInternalServerError)
		}
	}
}

func (a *api) listSubscriptionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, a.subscriptions.List(c.Request.Context(), session(c).Token(models.SheetSubscriptions)))
	}
}

func (a *api) addSubscriptionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewAlertSubscription
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		sub, err := a.subscriptions.Add(c.Request.Context(), input)
		if err != nil {
			respondError(c, err)
			return
		}
		session(c).Bump(c.Request.Context(), models.SheetSubscriptions)
		c.JSON(http.StatusCreated, sub)
	}
}

type setActiveRequest struct {
	Active *bool `json:"active"`
}

func (a *api) setSubscriptionActiveHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "id must be a number"})
			return
		}
		var req setActiveRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Active == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "active is required"})
			return
		}
		sub, err := a.subscriptions.SetActive(c.Request.Context(), id, *req.Active)
		if err != nil {
			respondError(c, err)
			return
		}
		session(c).Bump(c.Request.Context(), models.SheetSubscriptions)
		c.JSON(http.StatusOK, sub)
	}
}

func (a *api) dispatchAlertsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := a.alerts.NotifyCurrent(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		session(c).Bump(c.Request.Context(), models.SheetSubscriptions)
		c.JSON(http.StatusOK, report)
	}
}
