package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mmdatafocus/shop_inventory/config"
	"github.com/mmdatafocus/shop_inventory/models"
	"github.com/mmdatafocus/shop_inventory/tabular"
)

func main() {
	timeout := flag.Duration("timeout", 2*time.Minute, "Give up after this long")
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

	report, err := models.EnsureSchema(ctx, store, logger)
	if report != nil {
		out, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(out))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "schema migration incomplete: %v\n", err)
		os.Exit(1)
	}
}
