package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"strings"

	"listing_scraper/internal/models"
	"listing_scraper/internal/observability"
	"listing_scraper/internal/parser"
	"listing_scraper/internal/repository"
)

// ExtractionPolicy decides what happens to a product node the extractor rejects.
type ExtractionPolicy string

const (
	// PolicyStrict aborts the run on the first rejected node.
	PolicyStrict ExtractionPolicy = "strict"
	// PolicyLenient logs the rejected node and continues with the next one.
	PolicyLenient ExtractionPolicy = "lenient"
)

// DedupScope decides which records a colour variant is compared against.
type DedupScope string

const (
	DedupPage DedupScope = "page"
	DedupRun  DedupScope = "run"
)

type Options struct {
	BaseImageURL string
	Policy       ExtractionPolicy
	DedupScope   DedupScope
	// SinglePageFallback scrapes page 1 when the start page has no pagination
	// links. Without it such a listing yields no products.
	SinglePageFallback bool
}

// ProductService defines the scrape contract.
type ProductService interface {
	ScrapeAll(ctx context.Context, startURL string) ([]models.Product, error)
}

type productService struct {
	Repo      repository.SiteRepository
	Parser    parser.ListingParser
	extractor *Extractor
	opts      Options
}

func NewProductService(repo repository.SiteRepository, listingParser parser.ListingParser, opts Options) ProductService {
	if opts.Policy == "" {
		opts.Policy = PolicyStrict
	}
	if opts.DedupScope == "" {
		opts.DedupScope = DedupPage
	}
	return &productService{
		Repo:      repo,
		Parser:    listingParser,
		extractor: NewExtractor(opts.BaseImageURL),
		opts:      opts,
	}
}

// ScrapeAll reads the page count from the start page, then fetches every
// listing page in order and returns the deduplicated colour variants.
func (s *productService) ScrapeAll(ctx context.Context, startURL string) ([]models.Product, error) {
	// 1. Discover the pagination from the start page
	start, effectiveURL, err := s.fetchListing(ctx, startURL)
	if err != nil {
		return nil, err
	}

	pageCount := start.PageCount
	if pageCount == 0 {
		if !s.opts.SinglePageFallback {
			log.Printf("No pagination links on %s, nothing to scrape.", startURL)
			return []models.Product{}, nil
		}
		log.Printf("No pagination links on %s, treating it as a single page.", startURL)
		pageCount = 1
	}
	baseHref, err := resolveBaseHref(effectiveURL, start.BaseHref)
	if err != nil {
		return nil, err
	}

	// 2. Walk every page; the run accumulator is only used for run-wide dedup
	var products []models.Product
	runAcc := &Accumulator{}
	for page := 1; page <= pageCount; page++ {
		pageURL := fmt.Sprintf("%s/?page=%d", baseHref, page)
		listing, _, err := s.fetchListing(ctx, pageURL)
		if err != nil {
			return nil, err
		}

		acc := runAcc
		if s.opts.DedupScope == DedupPage {
			acc = &Accumulator{}
		}
		added, err := s.collect(listing.Products, acc)
		if err != nil {
			return nil, fmt.Errorf("page %d (%s): %w", page, pageURL, err)
		}
		if s.opts.DedupScope == DedupPage {
			products = append(products, acc.Products()...)
		}
		log.Printf("Page %d/%d: %d product nodes, %d records kept.", page, pageCount, len(listing.Products), added)
	}
	if s.opts.DedupScope == DedupRun {
		products = runAcc.Products()
	}

	return products, nil
}

// collect runs extraction, variant expansion and deduplication for every node of a page.
func (s *productService) collect(nodes []parser.RawProduct, acc *Accumulator) (int, error) {
	added := 0
	for i, raw := range nodes {
		base, err := s.extractor.Extract(raw)
		if err != nil {
			var extractionErr *ExtractionError
			if errors.As(err, &extractionErr) {
				observability.ExtractionErrors.WithLabelValues(string(extractionErr.Kind)).Inc()
			}
			if s.opts.Policy == PolicyLenient {
				log.Printf("Skipping product node %d (%q): %v", i, raw.Name, err)
				continue
			}
			return added, fmt.Errorf("product node %d (%q): %w", i, raw.Name, err)
		}

		if len(raw.Colours) == 0 {
			log.Printf("Product %q has no colour markers, no records produced.", base.Title)
			continue
		}
		for _, variant := range ExpandVariants(base, raw.Colours) {
			if acc.Add(variant) {
				added++
				observability.ProductsExtracted.Inc()
			}
		}
	}
	return added, nil
}

func (s *productService) fetchListing(ctx context.Context, pageURL string) (*parser.Listing, string, error) {
	page, err := s.Repo.Fetch(ctx, pageURL)
	if err != nil {
		return nil, "", err
	}
	if closer, ok := page.Body.(io.Closer); ok {
		defer closer.Close()
	}

	listing, err := s.Parser.ParseListing(ctx, page.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to parse listing %s: %w", pageURL, err)
	}
	observability.PagesFetched.Inc()
	return listing, page.URL, nil
}

// resolveBaseHref returns the URL page numbers are appended to: the document's
// <base href> when present, otherwise the fetched URL without query, fragment
// and trailing slash.
func resolveBaseHref(effectiveURL, baseTag string) (string, error) {
	u, err := url.Parse(effectiveURL)
	if err != nil {
		return "", fmt.Errorf("invalid page URL %q: %w", effectiveURL, err)
	}
	if baseTag != "" {
		ref, err := url.Parse(baseTag)
		if err != nil {
			return "", fmt.Errorf("invalid base href %q: %w", baseTag, err)
		}
		u = u.ResolveReference(ref)
	}
	u.RawQuery = ""
	u.Fragment = ""
	return strings.TrimRight(u.String(), "/"), nil
}
