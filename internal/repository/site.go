package repository

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/chromedp/chromedp"

	"listing_scraper/pkg/headless"
)

const (
	DefaultFetchTimeout = 30 * time.Second

	// listingReadySelector must be present before a rendered listing page is read.
	listingReadySelector = "body"
	// documentSelector is the node extracted from a rendered page.
	documentSelector = "html"
)

// Page is a fetched listing page. URL is the effective URL after redirects.
type Page struct {
	URL  string
	Body io.Reader
}

// SiteRepository defines the contract for fetching listing pages.
type SiteRepository interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

// FetchError reports a transport failure or a non-success HTTP status for URL.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// httpSiteRepository performs one plain GET per page.
type httpSiteRepository struct {
	Client *http.Client
}

// NewHTTPSiteRepository creates a fetcher whose requests time out after timeout.
func NewHTTPSiteRepository(timeout time.Duration) SiteRepository {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &httpSiteRepository{
		Client: &http.Client{Timeout: timeout},
	}
}

func (r *httpSiteRepository) Fetch(ctx context.Context, url string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("read body: %w", err)}
	}

	return &Page{URL: resp.Request.URL.String(), Body: bytes.NewReader(body)}, nil
}

// headlessSiteRepository renders pages in headless Chrome before reading them.
type headlessSiteRepository struct {
	opts headless.Options
}

// NewHeadlessSiteRepository creates a rendering fetcher. Zero option values
// fall back to the headless package defaults.
func NewHeadlessSiteRepository(opts headless.Options) SiteRepository {
	return &headlessSiteRepository{opts: opts}
}

// Fetch reports the URL the browser settled on, so relative pagination links
// resolve against the redirected page like they do for plain HTTP.
func (r *headlessSiteRepository) Fetch(ctx context.Context, url string) (*Page, error) {
	content, err := headless.FetchRenderedContent(ctx, url, ListingWaitStrategy, documentSelector, r.opts)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	return &Page{URL: content.URL, Body: content.HTML}, nil
}

// ListingWaitStrategy navigates to a listing page and waits until its document is ready.
func ListingWaitStrategy(ctx context.Context, url string) error {
	err := chromedp.Run(ctx,
		chromedp.Navigate(url),
		chromedp.Evaluate(`Object.defineProperty(navigator, 'webdriver', {get: () => false, configurable: true});`, nil),
		chromedp.WaitReady(listingReadySelector, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("could not navigate to '%s': %w", url, err)
	}

	log.Printf("Headless: %s rendered.", url)
	return nil
}
