package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	AvailabilityInStock    = "In Stock"
	AvailabilityOutOfStock = "Out of Stock"
)

// Product is one (listing entry × colour) record as written to the output file.
type Product struct {
	Title            string  `json:"title"`
	Price            float64 `json:"price"`
	ImageURL         string  `json:"imageUrl"`
	CapacityMB       int     `json:"capacityMB"`
	Colour           string  `json:"colour"`
	AvailabilityText string  `json:"availabilityText"`
	IsAvailable      bool    `json:"isAvailable"`
	ShippingText     *string `json:"shippingText"`
	ShippingDate     *string `json:"shippingDate"`
}

// ProductKey is the identity used when deduplicating colour variants.
type ProductKey struct {
	Title  string
	Colour string
	Price  float64
}

func (p Product) Key() ProductKey {
	return ProductKey{Title: p.Title, Colour: p.Colour, Price: p.Price}
}

// WithColour returns a copy of p carrying the given colour.
func (p Product) WithColour(colour string) Product {
	p.Colour = colour
	return p
}

// Run identifies one scrape of a listing.
type Run struct {
	ID        string
	SourceURL string
	StartedAt time.Time
}

// ProductRow is the persisted form of a Product.
type ProductRow struct {
	// GORM will automatically add ID, CreatedAt, UpdatedAt, DeletedAt
	gorm.Model

	RunID     string `gorm:"type:varchar(36);uniqueIndex:idx_run_title_colour_price"`
	SourceURL string `gorm:"type:varchar(2048)"`

	Title            string  `gorm:"type:varchar(255);uniqueIndex:idx_run_title_colour_price"`
	Colour           string  `gorm:"type:varchar(100);uniqueIndex:idx_run_title_colour_price"`
	Price            float64 `gorm:"type:numeric(10, 2);uniqueIndex:idx_run_title_colour_price"`
	ImageURL         string  `gorm:"type:varchar(2048)"`
	CapacityMB       int
	AvailabilityText string `gorm:"type:varchar(20)"`
	IsAvailable      bool
	// Use pointers for nullable columns
	ShippingText *string `gorm:"type:varchar(255)"`
	ShippingDate *string `gorm:"type:varchar(10)"`
}

func NewProductRow(runID, sourceURL string, p Product) ProductRow {
	return ProductRow{
		RunID:            runID,
		SourceURL:        sourceURL,
		Title:            p.Title,
		Colour:           p.Colour,
		Price:            p.Price,
		ImageURL:         p.ImageURL,
		CapacityMB:       p.CapacityMB,
		AvailabilityText: p.AvailabilityText,
		IsAvailable:      p.IsAvailable,
		ShippingText:     p.ShippingText,
		ShippingDate:     p.ShippingDate,
	}
}

func (r ProductRow) ToProduct() Product {
	return Product{
		Title:            r.Title,
		Price:            r.Price,
		ImageURL:         r.ImageURL,
		CapacityMB:       r.CapacityMB,
		Colour:           r.Colour,
		AvailabilityText: r.AvailabilityText,
		IsAvailable:      r.IsAvailable,
		ShippingText:     r.ShippingText,
		ShippingDate:     r.ShippingDate,
	}
}
