package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"pricecheck/internal/catalog"
	"pricecheck/internal/compare"
	"pricecheck/internal/config"
	"pricecheck/internal/httpx"
	"pricecheck/internal/rates"
	"pricecheck/internal/vend"
	"pricecheck/internal/vend/storefront"
)

// check runs a single comparison and prints the result as JSON.
// Useful for cron jobs and quick spot checks without the server.
func main() {
	_ = godotenv.Load()

	var (
		code    = flag.String("code", "", "product code to compare")
		cfgPath = flag.String("config", os.Getenv("CONFIG_FILE"), "path to config file")
		timeout = flag.Duration("timeout", 90*time.Second, "overall deadline")
		noRates = flag.Bool("no-rates", false, "skip the exchange rate fetch")
	)
	flag.Parse()
	if *code == "" {
		fmt.Fprintln(os.Stderr, "usage: check -code <product-code> [-config file] [-timeout 90s]")
		os.Exit(2)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	httpClient := httpx.New(time.Duration(cfg.Server.RequestTimeoutSec) * time.Second)

	vendors := make([]vendor.Vendor, 0, len(cfg.Vendors))
	for _, vc := range cfg.Vendors {
		vendors = append(vendors, storefront.New(storefront.Config{
			Name:            vc.Name,
			SearchURL:       vc.SearchURL,
			PriceSelector:   vc.PriceSelector,
			ListingSelector: vc.ListingSelector,
			TitleSelector:   vc.TitleSelector,
			Timeout:         time.Duration(vc.TimeoutSec) * time.Second,
			Headers:         vc.Headers,
		}, httpClient))
	}

	store := &catalog.Store{
		Path: cfg.Catalog.Path,
		Columns: catalog.Columns{
			Code:     cfg.Catalog.CodeColumn,
			Price:    cfg.Catalog.PriceColumn,
			Currency: cfg.Catalog.CurrencyColumn,
		},
	}
	var cat catalog.Catalog
	if c, err := store.Get(ctx); err != nil {
		logger.Warn("catalog unavailable", zap.Error(err))
	} else {
		cat = c
	}

	var snap *rates.Snapshot
	if !*noRates {
		rc := rates.New(cfg.Rates.Currency,
			rates.WithEndpoint(cfg.Rates.Endpoint),
			rates.WithHTTPClient(httpClient.HTTP),
			rates.WithDomestic(cfg.Rates.Domestic),
		)
		if s, err := rc.Fetch(ctx); err != nil {
			logger.Warn("exchange rate unavailable", zap.Error(err))
		} else {
			snap = s
		}
	}

	engine := compare.New(vendors, compare.Config{
		SelfVendor: cfg.Compare.SelfVendor,
		Domestic:   cfg.Rates.Domestic,
		Logger:     logger,
	})
	res := engine.Compare(ctx, *code, cat, snap)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(res); err != nil {
		logger.Fatal("encode result", zap.Error(err))
	}
}
