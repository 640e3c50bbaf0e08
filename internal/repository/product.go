package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"listing_scraper/internal/models"
)

// ErrNoRuns is returned when the products table has no rows yet.
var ErrNoRuns = errors.New("no scrape runs stored")

// ProductRepository defines the interface for persisting scraped products.
type ProductRepository interface {
	Init(ctx context.Context) error
	InsertProducts(ctx context.Context, run models.Run, products []models.Product) (int, error)
	CountProducts(ctx context.Context) (int, error)
	GetLatestProducts(ctx context.Context) (string, []models.Product, error)
	GetRunProducts(ctx context.Context, runID string) ([]models.Product, error)
}

// PostgresProductRepository implements ProductRepository for PostgreSQL using GORM.
type PostgresProductRepository struct {
	db *gorm.DB
}

func NewPostgresProductRepository(db *gorm.DB) *PostgresProductRepository {
	return &PostgresProductRepository{
		db: db,
	}
}

// Init handles GORM's automatic table creation/migration.
func (r *PostgresProductRepository) Init(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&models.ProductRow{})
}

// InsertProducts stores the products of one run. Rows are keyed by
// (run_id, title, colour, price), so earlier runs are never rewritten.
func (r *PostgresProductRepository) InsertProducts(ctx context.Context, run models.Run, products []models.Product) (int, error) {
	if len(products) == 0 {
		return 0, nil
	}
	rows := uniqueRows(run, products)

	result := r.db.WithContext(ctx).Clauses(upsertClause()).CreateInBatches(&rows, 100)

	if result.Error != nil {
		return 0, fmt.Errorf("gorm bulk upsert failed: %w", result.Error)
	}

	return int(result.RowsAffected), nil
}

// upsertClause targets the unique index of models.ProductRow.
func upsertClause() clause.OnConflict {
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: "run_id"}, {Name: "title"}, {Name: "colour"}, {Name: "price"}},
		UpdateAll: true,
	}
}

type rowKey struct {
	title, colour string
	cents         int64
}

// uniqueRows converts products to rows with at most one row per conflict key.
// Prices are compared at the column's two-decimal precision. The last product
// for a key wins and keeps the position of the first.
func uniqueRows(run models.Run, products []models.Product) []models.ProductRow {
	rows := make([]models.ProductRow, 0, len(products))
	index := make(map[rowKey]int, len(products))
	for _, p := range products {
		row := models.NewProductRow(run.ID, run.SourceURL, p)
		key := rowKey{title: p.Title, colour: p.Colour, cents: int64(math.Round(p.Price * 100))}
		if i, ok := index[key]; ok {
			rows[i] = row
			continue
		}
		index[key] = len(rows)
		rows = append(rows, row)
	}
	return rows
}

// Save lets the repository act as a runner sink.
func (r *PostgresProductRepository) Save(ctx context.Context, run models.Run, products []models.Product) error {
	n, err := r.InsertProducts(ctx, run, products)
	if err != nil {
		return err
	}
	log.Printf("Run %s: inserted/updated %d products in PostgreSQL", run.ID, n)
	return nil
}

func (r *PostgresProductRepository) CountProducts(ctx context.Context) (int, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&models.ProductRow{}).Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("gorm count failed: %w", result.Error)
	}
	return int(count), nil
}

// GetLatestProducts returns the most recently written run ID and its products.
func (r *PostgresProductRepository) GetLatestProducts(ctx context.Context) (string, []models.Product, error) {
	var runIDs []string
	result := r.db.WithContext(ctx).Model(&models.ProductRow{}).
		Order("updated_at DESC").Limit(1).Pluck("run_id", &runIDs)
	if result.Error != nil {
		return "", nil, fmt.Errorf("failed to find latest run: %w", result.Error)
	}
	if len(runIDs) == 0 {
		return "", nil, ErrNoRuns
	}

	products, err := r.GetRunProducts(ctx, runIDs[0])
	if err != nil {
		return "", nil, err
	}
	return runIDs[0], products, nil
}

func (r *PostgresProductRepository) GetRunProducts(ctx context.Context, runID string) ([]models.Product, error) {
	var rows []models.ProductRow
	result := r.db.WithContext(ctx).Where("run_id = ?", runID).Order("id").Find(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to retrieve products for run %s: %w", runID, result.Error)
	}

	products := make([]models.Product, 0, len(rows))
	for _, row := range rows {
		products = append(products, row.ToProduct())
	}
	return products, nil
}
