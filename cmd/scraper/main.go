package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/spf13/pflag"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"listing_scraper/internal/config"
	"listing_scraper/internal/observability"
	"listing_scraper/internal/parser"
	"listing_scraper/internal/repository"
	"listing_scraper/internal/runner"
	"listing_scraper/internal/service"
	"listing_scraper/pkg/headless"
)

func main() {
	// 1. Load configuration
	flags := config.Flags(os.Args[0])
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		log.Fatalf("Invalid arguments: %v", err)
	}
	appConfig := config.Init(flags)
	if err := appConfig.ValidateScrape(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if appConfig.MetricsPort != "" {
		observability.Start(appConfig.MetricsPort)
		log.Printf("Serving metrics on :%s/metrics", appConfig.MetricsPort)
	}

	// 2. Page fetcher
	var siteRepo repository.SiteRepository
	if appConfig.FetchMode == config.FetchModeHeadless {
		siteRepo = repository.NewHeadlessSiteRepository(headless.Options{
			Timeout:    appConfig.HTTPTimeout,
			WaitBuffer: appConfig.HeadlessWait,
			UserAgent:  appConfig.HeadlessUserAgent,
		})
	} else {
		siteRepo = repository.NewHTTPSiteRepository(appConfig.HTTPTimeout)
	}

	productService := service.NewProductService(siteRepo, parser.NewListingParser(), service.Options{
		BaseImageURL: appConfig.BaseImageURL,
		Policy:       service.ExtractionPolicy(appConfig.ExtractionPolicy),
		DedupScope:   service.DedupScope(appConfig.DedupScope),

		SinglePageFallback: appConfig.SinglePageFallback,
	})

	// 3. Sinks: PostgreSQL when configured, then the output file
	output := repository.NewJSONFileRepository(appConfig.OutputPath)
	var stores []runner.ProductSink
	if appConfig.DBConn != "" {
		db, err := gorm.Open(postgres.Open(appConfig.DBConn), &gorm.Config{
			PrepareStmt: true,
		})
		if err != nil {
			log.Fatalf("Error connecting to database: %v", err)
		}
		productRepo := repository.NewPostgresProductRepository(db)
		if err := productRepo.Init(ctx); err != nil {
			log.Fatalf("Failed to run database auto-migration: %v", err)
		}
		log.Println("PostgreSQL sink enabled.")
		stores = append(stores, productRepo)
	}

	// 4. Scrape and save
	run, products, err := runner.New(productService, output, stores...).Run(ctx, appConfig.ScrapeURL)
	if err != nil {
		log.Fatalf("Scrape failed: %v", err)
	}

	fmt.Printf("\n--- SCRAPE COMPLETE ---\n")
	fmt.Printf("Run %s: saved %d products to %s.\n", run.ID, len(products), appConfig.OutputPath)
}
