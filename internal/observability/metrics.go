package observability

import (
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PagesFetched = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "listing_pages_fetched_total",
			Help: "Listing pages fetched and parsed",
		},
	)
	ProductsExtracted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "listing_products_extracted_total",
			Help: "Product records kept after variant deduplication",
		},
	)
	ExtractionErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listing_extraction_errors_total",
			Help: "Product nodes rejected by the extractor, by error kind",
		},
		[]string{"kind"},
	)
)

// Start registers the scrape counters and serves them on /metrics.
func Start(port string) {
	prometheus.MustRegister(PagesFetched, ProductsExtracted, ExtractionErrors)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(":"+port, mux); err != nil {
			log.Printf("Metrics server stopped: %v", err)
		}
	}()
}
