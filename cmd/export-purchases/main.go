package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/mmdatafocus/shop_inventory/config"
	"github.com/mmdatafocus/shop_inventory/models"
	"github.com/mmdatafocus/shop_inventory/models/reports"
	"github.com/mmdatafocus/shop_inventory/tabular"
	"github.com/mmdatafocus/shop_inventory/utils"
)

func main() {
	year := flag.Int("year", 0, "Only purchases of this year")
	month := flag.Int("month", 0, "Only purchases of this month (1-12)")
	product := flag.String("product", "", "Only purchases of this product")
	out := flag.String("out", "", "Output file (default purchase_history_<timestamp>.xlsx)")
	upload := flag.Bool("upload", false, "Also store the workbook with the configured storage provider")
	flag.Parse()

	if *month < 0 || *month > 12 {
		fmt.Fprintln(os.Stderr, "--month must be between 1 and 12")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	logger := config.GetLogger()
	store, err := tabular.Open(ctx, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open store: %v\n", err)
		os.Exit(1)
	}
	defer config.CloseDB()

	reader := tabular.NewCachedReader(store, tabular.NewMemoryCache(16, time.Minute), logger)
	purchases, err := models.NewPurchaseLedger(reader, logger).Load(ctx, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load purchases: %v\n", err)
		os.Exit(1)
	}
	purchases = reports.FilterPurchases(purchases, reports.PurchaseFilter{
		Year:        *year,
		Month:       *month,
		ProductName: strings.TrimSpace(*product),
	})

	var buf bytes.Buffer
	if err := reports.WritePurchasesExcel(&buf, purchases); err != nil {
		fmt.Fprintf(os.Stderr, "write workbook: %v\n", err)
		os.Exit(1)
	}

	now := time.Now()
	filename := *out
	if filename == "" {
		filename = reports.PurchaseExportFilename(now)
	}
	if err := os.WriteFile(filename, buf.Bytes(), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write %s: %v\n", filename, err)
		os.Exit(1)
	}
	summary := reports.Summarize(purchases)
	fmt.Printf("%d rows, total %s -> %s\n", len(purchases), summary.TotalValue.StringFixed(2), filename)

	if *upload {
		key := path.Join("exports", now.Format("200601"), path.Base(filename))
		url, err := utils.SaveObject(ctx, key, buf.Bytes(), reports.ExcelContentType)
		if err != nil {
			fmt.Fprintf(os.Stderr, "upload: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(url)
	}
}
