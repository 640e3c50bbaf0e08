package service

import "listing_scraper/internal/models"

// ExpandVariants produces one record per colour, each a copy of base with that colour.
// Repeated colours yield repeated records; the Accumulator drops them.
func ExpandVariants(base models.Product, colours []string) []models.Product {
	variants := make([]models.Product, 0, len(colours))
	for _, colour := range colours {
		variants = append(variants, base.WithColour(colour))
	}
	return variants
}

// Accumulator collects records in first-seen order, rejecting any record whose
// (title, colour, price) is already present.
type Accumulator struct {
	products []models.Product
}

// Add appends p unless an equal key exists. It reports whether p was appended.
func (a *Accumulator) Add(p models.Product) bool {
	key := p.Key()
	for _, existing := range a.products {
		if existing.Key() == key {
			return false
		}
	}
	a.products = append(a.products, p)
	return true
}

func (a *Accumulator) Len() int {
	return len(a.products)
}

func (a *Accumulator) Products() []models.Product {
	out := make([]models.Product, len(a.products))
	copy(out, a.products)
	return out
}
