package runner

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"listing_scraper/internal/models"
	"listing_scraper/internal/service"
)

// ProductSink receives the full result of a successful run.
type ProductSink interface {
	Save(ctx context.Context, run models.Run, products []models.Product) error
}

type Runner struct {
	Service service.ProductService
	// Output is written last, once every store has succeeded.
	Output ProductSink
	Stores []ProductSink
}

func New(svc service.ProductService, output ProductSink, stores ...ProductSink) *Runner {
	return &Runner{Service: svc, Output: output, Stores: stores}
}

// Run scrapes startURL and hands the products to the stores in parallel, then
// to the output. Nothing is saved unless the whole scrape succeeded, and the
// output is left untouched when any store fails.
func (r *Runner) Run(ctx context.Context, startURL string) (models.Run, []models.Product, error) {
	run := models.Run{
		ID:        uuid.NewString(),
		SourceURL: startURL,
		StartedAt: time.Now(),
	}
	log.Printf("Run %s: scraping %s", run.ID, startURL)

	products, err := r.Service.ScrapeAll(ctx, startURL)
	if err != nil {
		return run, nil, fmt.Errorf("run %s: %w", run.ID, err)
	}
	log.Printf("Run %s: scraped %d products in %s", run.ID, len(products), time.Since(run.StartedAt).Round(time.Millisecond))

	g, gCtx := errgroup.WithContext(ctx)
	for _, store := range r.Stores {
		store := store
		g.Go(func() error {
			return store.Save(gCtx, run, products)
		})
	}
	if err := g.Wait(); err != nil {
		return run, products, fmt.Errorf("run %s: storing products: %w", run.ID, err)
	}

	if r.Output != nil {
		if err := r.Output.Save(ctx, run, products); err != nil {
			return run, products, fmt.Errorf("run %s: writing output: %w", run.ID, err)
		}
	}

	return run, products, nil
}
