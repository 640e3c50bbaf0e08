package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"listing_scraper/internal/config"
	"listing_scraper/internal/models"
	"listing_scraper/internal/repository"
)

const port = "8080"

// initDatabase establishes a connection and initializes the repository.
func initDatabase(dsn string) repository.ProductRepository {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("Fatal Error: Could not connect to the database: %v", err)
	}
	log.Println("Successfully connected to PostgreSQL for API server.")

	productRepo := repository.NewPostgresProductRepository(db)
	if err := productRepo.Init(context.Background()); err != nil {
		log.Fatalf("Fatal Error: Database migration failed: %v", err)
	}
	return productRepo
}

type ProductAPI struct {
	productRepository repository.ProductRepository
}

func (a ProductAPI) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Get("/api/products", a.latestHandler)
	r.Get("/api/products/{runID}", a.runHandler)
	return r
}

// latestHandler serves the products of the most recent run.
func (a ProductAPI) latestHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	runID, products, err := a.productRepository.GetLatestProducts(ctx)
	if errors.Is(err, repository.ErrNoRuns) {
		writeProducts(w, nil)
		return
	}
	if err != nil {
		http.Error(w, "Could not retrieve data from the database", http.StatusInternalServerError)
		log.Printf("Error fetching latest products: %v", err)
		return
	}
	w.Header().Set("X-Run-ID", runID)
	writeProducts(w, products)
}

func (a ProductAPI) runHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	runID := chi.URLParam(r, "runID")
	products, err := a.productRepository.GetRunProducts(ctx, runID)
	if err != nil {
		http.Error(w, "Could not retrieve data from the database", http.StatusInternalServerError)
		log.Printf("Error fetching products for run %s: %v", runID, err)
		return
	}
	if len(products) == 0 {
		http.Error(w, "Unknown run", http.StatusNotFound)
		return
	}
	writeProducts(w, products)
}

func writeProducts(w http.ResponseWriter, products []models.Product) {
	if products == nil {
		products = []models.Product{}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(products); err != nil {
		log.Printf("Error encoding JSON: %v", err)
	}
}

func main() {
	conf := config.Init(nil)
	if conf.DBConn == "" {
		log.Fatal("Fatal Error: Missing database configuration (APP_DB_HOST, APP_DB_USER, APP_DB_NAME).")
	}

	database := initDatabase(conf.DBConn)
	count, err := database.CountProducts(context.Background())
	if err != nil {
		log.Fatalf("Error counting products: %v", err)
	}
	log.Printf("Serving %d stored products", count)
	log.Printf("Server starting on http://localhost:%s", port)
	log.Fatal(http.ListenAndServe(":"+port, ProductAPI{database}.Routes()))
}
