package parser

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Selectors for the listing layout.
const (
	ProductSelector         = ".product"
	productNameSelector     = ".bg-white h3 .product-name"
	productCapacitySelector = ".bg-white h3 .product-capacity"
	imageSelector           = "img"
	priceSelector           = ".text-lg"
	colourSelector          = "[data-colour]"
	colourAttr              = "data-colour"
	statusSelector          = ".text-sm"
	paginationSelector      = "#pages a"
)

// RawProduct is a Data Transfer Object (DTO) carrying the unparsed strings
// of one product node. The service layer turns it into models.Product.
type RawProduct struct {
	Name      string
	Capacity  string
	ImageSrc  string
	HasImage  bool
	PriceText string
	Colours   []string
	// Availability is the first status line, Shipping the second. Either may be nil.
	Availability *string
	Shipping     *string
}

// Listing is the parsed content of one listing page.
type Listing struct {
	// BaseHref is the document's <base href>, empty when the page has none.
	BaseHref  string
	PageCount int
	Products  []RawProduct
}

// ListingParser defines the contract for reading a listing page.
type ListingParser interface {
	ParseListing(ctx context.Context, reader io.Reader) (*Listing, error)
}

type listingParser struct {
}

func NewListingParser() ListingParser {
	return &listingParser{}
}

// ParseListing parses the HTML document and extracts the pagination size and
// the raw strings of every product node.
func (p *listingParser) ParseListing(ctx context.Context, reader io.Reader) (*Listing, error) {
	doc, err := html.Parse(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	root := goquery.NewDocumentFromNode(doc)

	listing := &Listing{
		PageCount: root.Find(paginationSelector).Length(),
	}
	if href, ok := root.Find("base[href]").First().Attr("href"); ok {
		listing.BaseHref = strings.TrimSpace(href)
	}

	root.Find(ProductSelector).Each(func(i int, sel *goquery.Selection) {
		listing.Products = append(listing.Products, parseProduct(sel))
	})

	return listing, nil
}

func parseProduct(sel *goquery.Selection) RawProduct {
	raw := RawProduct{
		Name:      text(sel.Find(productNameSelector)),
		Capacity:  text(sel.Find(productCapacitySelector)),
		PriceText: text(sel.Find(priceSelector)),
	}

	if src, ok := sel.Find(imageSelector).First().Attr("src"); ok {
		raw.ImageSrc = strings.TrimSpace(src)
		raw.HasImage = true
	}

	sel.Find(colourSelector).Each(func(i int, c *goquery.Selection) {
		colour, _ := c.Attr(colourAttr)
		raw.Colours = append(raw.Colours, colour)
	})

	status := sel.Find(statusSelector)
	if status.Length() > 0 {
		availability := text(status.Eq(0))
		raw.Availability = &availability
	}
	if status.Length() > 1 {
		shipping := text(status.Eq(1))
		raw.Shipping = &shipping
	}

	return raw
}

// text returns the whitespace-normalised text of the first matched node.
func text(sel *goquery.Selection) string {
	return strings.Join(strings.Fields(sel.First().Text()), " ")
}
