package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmdatafocus/shop_inventory/config"
	"github.com/mmdatafocus/shop_inventory/models"
	"github.com/mmdatafocus/shop_inventory/notification"
	"github.com/mmdatafocus/shop_inventory/tabular"
	"github.com/mmdatafocus/shop_inventory/workflow"
)

// stock-count sets a product's stock to a physically counted quantity and logs the
// difference as an Adjustment movement.
func main() {
	product := flag.String("product", "", "Required: product name")
	quantity := flag.String("quantity", "", "Required: counted quantity (>= 0)")
	note := flag.String("note", "", "Optional movement note")
	flag.Parse()

	if strings.TrimSpace(*product) == "" {
		fmt.Fprintln(os.Stderr, "--product is required")
		os.Exit(1)
	}
	counted, err := decimal.NewFromString(strings.TrimSpace(*quantity))
	if err != nil || counted.IsNegative() {
		fmt.Fprintln(os.Stderr, "--quantity must be a number >= 0")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	logger := config.GetLogger()
	config.ConnectRedisWithRetry(ctx)
	defer config.CloseRedis()

	store, err := tabular.Open(ctx, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open store: %v\n", err)
		os.Exit(1)
	}
	defer config.CloseDB()

	sink, err := notification.FromConfig(ctx, logger)
	if err != nil {
		sink = notification.NewLogSink(logger)
	}
	defer config.ClosePubSub()

	reader := tabular.NewCachedReader(store, tabular.NewMemoryCache(16, time.Minute), logger)
	catalog := models.NewCatalog(reader, logger)
	movements := models.NewMovementLedger(reader, catalog, logger)
	stock := models.NewStockReconciler(reader, workflow.NewStockLocker(config.GetDB(), logger, nil), logger)
	alerts := workflow.NewAlertDispatcher(catalog, models.NewSubscriptionRegistry(reader, logger), sink, logger, nil)
	svc := workflow.NewStockMovementService(stock, movements, alerts, logger, nil)

	res, err := svc.Count(ctx, *product, counted, *note)
	alerts.Wait()
	if err != nil {
		fmt.Fprintf(os.Stderr, "stock count failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%s: %s -> %s\n", res.Stock.ProductName, res.Stock.Previous.String(), res.Stock.Current.String())
	switch {
	case res.MovementError != "":
		fmt.Fprintf(os.Stderr, "stock updated but movement was not logged: %s\n", res.MovementError)
		os.Exit(1)
	case res.MovementId != "":
		fmt.Printf("logged %s\n", res.MovementId)
	default:
		fmt.Println("no difference; nothing logged")
	}
}
