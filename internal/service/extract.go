package service

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"listing_scraper/internal/models"
	"listing_scraper/internal/parser"
)

var (
	// First run of digits in a capacity label such as "128 GB".
	capacityDigitsRegex = regexp.MustCompile(`\d+`)

	// First float-like number once thousands separators are gone.
	priceRegex = regexp.MustCompile(`\d+(?:\.\d+)?`)

	// ISO date, or day-month-year with an optional ordinal ("25th October 2024").
	shippingDateRegex = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})|(\d{1,2}(?:st|nd|rd|th)?\s+\w+\s+\d{4})`)

	isoDateRegex       = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	ordinalSuffixRegex = regexp.MustCompile(`(\d{1,2})(?:st|nd|rd|th)`)

	// Go's "Jan" layout only accepts three-letter month names.
	septemberRegex = regexp.MustCompile(`(?i)\bsept\b`)
)

const isoDateLayout = "2006-01-02"

var dayMonthYearLayouts = []string{"2 January 2006", "2 Jan 2006"}

// Extractor turns the raw strings of one product node into a base record.
// The colour of the returned record is left empty; see ExpandVariants.
type Extractor struct {
	BaseImageURL string
}

func NewExtractor(baseImageURL string) *Extractor {
	return &Extractor{BaseImageURL: baseImageURL}
}

func (e *Extractor) Extract(raw parser.RawProduct) (models.Product, error) {
	if raw.Name == "" {
		return models.Product{}, &ExtractionError{Kind: KindMissingField, Field: "name"}
	}
	capacityMB, err := parseCapacityMB(raw.Capacity)
	if err != nil {
		return models.Product{}, err
	}
	imageURL, err := resolveImageURL(e.BaseImageURL, raw)
	if err != nil {
		return models.Product{}, err
	}
	price, err := parsePrice(raw.PriceText)
	if err != nil {
		return models.Product{}, err
	}

	isAvailable, availabilityText := classifyAvailability(raw.Availability)

	product := models.Product{
		Title:            composeTitle(raw.Name, raw.Capacity),
		Price:            price,
		ImageURL:         imageURL,
		CapacityMB:       capacityMB,
		AvailabilityText: availabilityText,
		IsAvailable:      isAvailable,
	}

	if raw.Shipping != nil {
		shippingText := *raw.Shipping
		product.ShippingText = &shippingText
		product.ShippingDate, err = parseShippingDate(shippingText)
		if err != nil {
			return models.Product{}, err
		}
	}

	return product, nil
}

// composeTitle appends the capacity, with its inner spaces removed, to the product name.
func composeTitle(name, capacity string) string {
	return name + " " + strings.ReplaceAll(capacity, " ", "")
}

// parseCapacityMB converts "64GB" to 64000. Values without a GB marker are already in MB.
func parseCapacityMB(capacity string) (int, error) {
	digits := capacityDigitsRegex.FindString(capacity)
	if digits == "" {
		return 0, &ExtractionError{Kind: KindMalformedField, Field: "capacity", Value: capacity}
	}
	value, err := strconv.Atoi(digits)
	if err != nil {
		return 0, &ExtractionError{Kind: KindMalformedField, Field: "capacity", Value: capacity, Err: err}
	}
	if strings.Contains(strings.ToUpper(capacity), "GB") {
		if value > math.MaxInt/1000 {
			return 0, &ExtractionError{Kind: KindMalformedField, Field: "capacity", Value: capacity}
		}
		return value * 1000, nil
	}
	return value, nil
}

func resolveImageURL(baseImageURL string, raw parser.RawProduct) (string, error) {
	if !raw.HasImage || raw.ImageSrc == "" {
		return "", &ExtractionError{Kind: KindMissingField, Field: "image"}
	}
	return baseImageURL + strings.TrimLeft(raw.ImageSrc, "/."), nil
}

// parsePrice drops currency symbols and thousands separators: "£1,299.99" -> 1299.99.
func parsePrice(priceText string) (float64, error) {
	match := priceRegex.FindString(strings.ReplaceAll(priceText, ",", ""))
	if match == "" {
		return 0, &ExtractionError{Kind: KindMalformedField, Field: "price", Value: priceText}
	}
	price, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, &ExtractionError{Kind: KindMalformedField, Field: "price", Value: priceText, Err: err}
	}
	return price, nil
}

// classifyAvailability is a literal, case-sensitive substring test for "In Stock".
// A node without a status line is out of stock.
func classifyAvailability(text *string) (bool, string) {
	if text != nil && strings.Contains(*text, models.AvailabilityInStock) {
		return true, models.AvailabilityInStock
	}
	return false, models.AvailabilityOutOfStock
}

// parseShippingDate returns the first date found in the shipping line as YYYY-MM-DD,
// or nil when the line has no date.
func parseShippingDate(shippingText string) (*string, error) {
	match := shippingDateRegex.FindString(shippingText)
	if match == "" {
		return nil, nil
	}

	var (
		date time.Time
		err  error
	)
	if isoDateRegex.MatchString(match) {
		date, err = time.Parse(isoDateLayout, match)
	} else {
		date, err = parseDayMonthYear(ordinalSuffixRegex.ReplaceAllString(match, "$1"))
	}
	if err != nil {
		return nil, &ExtractionError{Kind: KindMalformedDate, Field: "shippingDate", Value: match, Err: err}
	}

	formatted := date.Format(isoDateLayout)
	return &formatted, nil
}

func parseDayMonthYear(s string) (time.Time, error) {
	s = septemberRegex.ReplaceAllString(strings.Join(strings.Fields(s), " "), "Sep")
	var err error
	for _, layout := range dayMonthYearLayouts {
		var date time.Time
		if date, err = time.Parse(layout, s); err == nil {
			return date, nil
		}
	}
	return time.Time{}, err
}
