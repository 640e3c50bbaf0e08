package runner

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listing_scraper/internal/models"
)

type stubService struct {
	products []models.Product
	err      error
}

func (s stubService) ScrapeAll(ctx context.Context, startURL string) ([]models.Product, error) {
	return s.products, s.err
}

type recordingSink struct {
	mu    sync.Mutex
	runs  []models.Run
	saved [][]models.Product
	err   error
}

func (s *recordingSink) Save(ctx context.Context, run models.Run, products []models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	s.saved = append(s.saved, products)
	return s.err
}

func TestRunSavesToEverySink(t *testing.T) {
	products := []models.Product{{Title: "Phone X 64GB", Colour: "Black", Price: 699.99}}
	fileSink, dbSink := &recordingSink{}, &recordingSink{}

	run, got, err := New(stubService{products: products}, fileSink, dbSink).Run(context.Background(), "https://shop.example/")
	require.NoError(t, err)

	_, err = uuid.Parse(run.ID)
	assert.NoError(t, err)
	assert.Equal(t, "https://shop.example/", run.SourceURL)
	assert.Equal(t, products, got)
	for _, sink := range []*recordingSink{fileSink, dbSink} {
		require.Len(t, sink.saved, 1)
		assert.Equal(t, products, sink.saved[0])
		assert.Equal(t, run.ID, sink.runs[0].ID)
	}
}

func TestRunScrapeFailureSkipsSinks(t *testing.T) {
	fileSink, dbSink := &recordingSink{}, &recordingSink{}
	scrapeErr := errors.New("page 2 unavailable")

	_, _, err := New(stubService{err: scrapeErr}, fileSink, dbSink).Run(context.Background(), "https://shop.example/")

	assert.ErrorIs(t, err, scrapeErr)
	assert.Empty(t, fileSink.saved)
	assert.Empty(t, dbSink.saved)
}

func TestRunSinkFailure(t *testing.T) {
	products := []models.Product{{Title: "Phone X 64GB", Colour: "Black", Price: 699.99}}
	storeErr := errors.New("duplicate key value violates unique constraint")
	diskErr := errors.New("disk full")

	tests := []struct {
		name       string
		output     *recordingSink
		stores     []*recordingSink
		wantErr    error
		wantOutput int
	}{
		{
			name:       "failing store leaves the output unwritten",
			output:     &recordingSink{},
			stores:     []*recordingSink{{}, {err: storeErr}},
			wantErr:    storeErr,
			wantOutput: 0,
		},
		{
			name:       "failing output after stores succeeded",
			output:     &recordingSink{err: diskErr},
			stores:     []*recordingSink{{}},
			wantErr:    diskErr,
			wantOutput: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stores := make([]ProductSink, 0, len(tt.stores))
			for _, s := range tt.stores {
				stores = append(stores, s)
			}

			_, _, err := New(stubService{products: products}, tt.output, stores...).Run(context.Background(), "https://shop.example/")

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Len(t, tt.output.saved, tt.wantOutput)
		})
	}
}

func TestRunWithoutStoresWritesOutput(t *testing.T) {
	products := []models.Product{{Title: "Phone X 64GB", Colour: "Black", Price: 699.99}}
	output := &recordingSink{}

	_, _, err := New(stubService{products: products}, output).Run(context.Background(), "https://shop.example/")

	require.NoError(t, err)
	require.Len(t, output.saved, 1)
	assert.Equal(t, products, output.saved[0])
}
