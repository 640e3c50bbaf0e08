package headless

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/DataHenHQ/useragent"
	"github.com/chromedp/chromedp"
)

// Default settings for headless browser operation.
const (
	DefaultTimeout    = 45 * time.Second
	DefaultWaitBuffer = 2 * time.Second
)

// WaitStrategy is a function that performs the necessary tasks to determine
// when a dynamic page has finished loading all content.
type WaitStrategy func(ctx context.Context, url string) error

// Options tunes a single rendered fetch. Zero values fall back to the defaults.
type Options struct {
	Timeout    time.Duration
	WaitBuffer time.Duration
	// UserAgent overrides the random desktop user agent.
	UserAgent string
}

func (o Options) withDefaults() (Options, error) {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.WaitBuffer <= 0 {
		o.WaitBuffer = DefaultWaitBuffer
	}
	if o.UserAgent == "" {
		ua, err := useragent.Desktop()
		if err != nil {
			return o, fmt.Errorf("could not generate random UA: %w", err)
		}
		o.UserAgent = ua
	}
	return o, nil
}

// allocatorOptions returns the Chrome flags used for every rendered fetch.
func allocatorOptions(userAgent string) []chromedp.ExecAllocatorOption {
	return append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(userAgent),
		chromedp.Headless,
		chromedp.WindowSize(1920, 1080),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("no-default-browser-check", true),
		chromedp.Flag("no-first-run", true),
		// Required inside containers
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("no-zygote", true),
	)
}

// Content is a rendered page.
type Content struct {
	// URL is where the browser ended up after redirects.
	URL  string
	HTML io.Reader
}

// FetchRenderedContent navigates to url in a fresh headless Chrome, runs strategy
// until the page is ready and returns the outer HTML of extractionSelector.
func FetchRenderedContent(parentCtx context.Context, url string, strategy WaitStrategy, extractionSelector string, opts Options) (*Content, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(parentCtx, opts.Timeout)
	defer cancel()

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocatorOptions(opts.UserAgent)...)
	defer cancelAlloc()
	chromeCtx, chromeCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(log.Printf))
	defer chromeCancel()

	if err := strategy(chromeCtx, url); err != nil {
		return nil, fmt.Errorf("wait strategy failed for %s: %w", url, err)
	}

	var fullHTML, location string
	tasks := chromedp.Tasks{
		chromedp.Sleep(opts.WaitBuffer),
		chromedp.Location(&location),
		chromedp.OuterHTML(extractionSelector, &fullHTML, chromedp.ByQuery),
	}
	if err := chromedp.Run(chromeCtx, tasks); err != nil {
		log.Printf("Extraction failed (Length: %d). Error: %v", len(fullHTML), err)
		return nil, fmt.Errorf("failed to extract HTML from selector '%s': %w", extractionSelector, err)
	}

	if location == "" {
		location = url
	}
	return &Content{URL: location, HTML: bytes.NewReader([]byte(fullHTML))}, nil
}
