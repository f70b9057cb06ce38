package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mmdatafocus/shop_inventory/config"
	"github.com/mmdatafocus/shop_inventory/models"
	"github.com/mmdatafocus/shop_inventory/notification"
	"github.com/mmdatafocus/shop_inventory/tabular"
	"github.com/mmdatafocus/shop_inventory/workflow"
)

// low-stock-alert runs one low-stock check and notifies every active subscription.
// Intended for an external scheduler (cron job, Cloud Scheduler).
func main() {
	timeout := flag.Duration("timeout", 5*time.Minute, "Give up after this long")
	dryRun := flag.Bool("dry-run", false, "List critical products without sending")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	logger := config.GetLogger()
	store, err := tabular.Open(ctx, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open store: %v\n", err)
		os.Exit(1)
	}
	defer config.CloseDB()

	reader := tabular.NewCachedReader(store, tabular.NewMemoryCache(16, time.Minute), logger)
	catalog := models.NewCatalog(reader, logger)

	if *dryRun {
		products, err := catalog.LoadFresh(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load products: %v\n", err)
			os.Exit(1)
		}
		for _, p := range models.Critical(products) {
			fmt.Printf("%s\tcurrent=%s\tminimum=%s\tdeficit=%s\n", p.Name, p.StockCurrent, p.StockMinimum, p.Deficit)
		}
		return
	}

	sink, err := notification.FromConfig(ctx, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "notification sink: %v\n", err)
		os.Exit(1)
	}
	defer config.ClosePubSub()

	alerts := workflow.NewAlertDispatcher(catalog, models.NewSubscriptionRegistry(reader, logger), sink, logger, nil)
	report, err := alerts.NotifyCurrent(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "low stock check failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%d critical products, %d deliveries via %s\n", len(report.Critical), len(report.Deliveries), sink.Name())
	failed := 0
	for _, d := range report.Deliveries {
		status := "ok"
		if !d.OK {
			status = "FAILED"
			failed++
		}
		fmt.Printf("%s\t%s\t%s\n", status, d.Email, d.Message)
	}
	if failed > 0 {
		os.Exit(1)
	}
}
