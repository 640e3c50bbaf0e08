package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"listing_scraper/internal/models"
)

// JSONFileRepository writes a run's products as one JSON array.
type JSONFileRepository struct {
	Path string
}

func NewJSONFileRepository(path string) *JSONFileRepository {
	return &JSONFileRepository{Path: path}
}

// Save replaces the output file in a single write. An empty run is written as [].
func (r *JSONFileRepository) Save(ctx context.Context, run models.Run, products []models.Product) error {
	if products == nil {
		products = []models.Product{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(products); err != nil {
		return fmt.Errorf("encode products: %w", err)
	}

	if dir := filepath.Dir(r.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	// Write to temp file first so readers never see a partial array
	tmpFile := r.Path + ".tmp"
	if err := os.WriteFile(tmpFile, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmpFile, err)
	}
	if err := os.Rename(tmpFile, r.Path); err != nil {
		return fmt.Errorf("rename %s: %w", tmpFile, err)
	}

	log.Printf("Run %s: wrote %d products to %s", run.ID, len(products), r.Path)
	return nil
}

// Load reads a previously written output file.
func (r *JSONFileRepository) Load() ([]models.Product, error) {
	data, err := os.ReadFile(r.Path)
	if err != nil {
		return nil, err
	}
	var products []models.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("decode %s: %w", r.Path, err)
	}
	return products, nil
}
