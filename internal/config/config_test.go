package config

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_SCRAPE_URL", "https://shop.example/phones")
	t.Setenv("APP_BASE_IMAGE_URL", "https://shop.example/")

	cfg, err := Load(viper.New(), nil)
	require.NoError(t, err)

	assert.Equal(t, "https://shop.example/phones", cfg.ScrapeURL)
	assert.Equal(t, "https://shop.example/", cfg.BaseImageURL)
	assert.Equal(t, "output.json", cfg.OutputPath)
	assert.Equal(t, FetchModeHTTP, cfg.FetchMode)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "strict", cfg.ExtractionPolicy)
	assert.Equal(t, "page", cfg.DedupScope)
	assert.False(t, cfg.SinglePageFallback)
	assert.Zero(t, cfg.HeadlessWait)
	assert.Empty(t, cfg.HeadlessUserAgent)
	assert.Empty(t, cfg.MetricsPort)
	assert.Empty(t, cfg.DBConn)
	assert.NoError(t, cfg.ValidateScrape())
}

func TestLoadPrecedence(t *testing.T) {
	file := filepath.Join(t.TempDir(), "scraper.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
scrape_url: https://file.example/
base_image_url: https://file.example/img/
output_path: file.json
http_timeout: 10s
dedup_scope: run
`), 0o644))
	t.Setenv("APP_OUTPUT_PATH", "env.json")

	flags := Flags("test")
	require.NoError(t, flags.Parse([]string{"--config", file, "--url", "https://flag.example/", "--policy", "lenient"}))

	cfg, err := Load(viper.New(), flags)
	require.NoError(t, err)

	assert.Equal(t, "https://flag.example/", cfg.ScrapeURL, "flag beats file")
	assert.Equal(t, "https://file.example/img/", cfg.BaseImageURL)
	assert.Equal(t, "env.json", cfg.OutputPath, "env beats file")
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "lenient", cfg.ExtractionPolicy)
	assert.Equal(t, "run", cfg.DedupScope)
}

func TestLoadHeadlessAndPaginationFlags(t *testing.T) {
	t.Setenv("APP_HEADLESS_USER_AGENT", "env-agent/1.0")

	flags := Flags("test")
	require.NoError(t, flags.Parse([]string{"--single-page-fallback", "--headless-wait", "500ms"}))

	cfg, err := Load(viper.New(), flags)
	require.NoError(t, err)

	assert.True(t, cfg.SinglePageFallback)
	assert.Equal(t, 500*time.Millisecond, cfg.HeadlessWait)
	assert.Equal(t, "env-agent/1.0", cfg.HeadlessUserAgent)
}

func TestFlagsParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr error
	}{
		{name: "unknown flag", args: []string{"--pages", "3"}},
		{name: "bad duration", args: []string{"--timeout", "soon"}},
		{name: "help", args: []string{"--help"}, wantErr: pflag.ErrHelp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags := Flags("test")
			flags.SetOutput(io.Discard)

			err := flags.Parse(tt.args)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingExplicitConfigFile(t *testing.T) {
	flags := Flags("test")
	require.NoError(t, flags.Parse([]string{"--config", filepath.Join(t.TempDir(), "nope.yaml")}))

	_, err := Load(viper.New(), flags)
	assert.Error(t, err)
}

func TestBuildDSN(t *testing.T) {
	t.Setenv("APP_DB_HOST", "db")
	t.Setenv("APP_DB_USER", "scraper")
	t.Setenv("APP_DB_PASSWORD", "secret")
	t.Setenv("APP_DB_NAME", "listings")

	cfg, err := Load(viper.New(), nil)
	require.NoError(t, err)
	assert.Equal(t, "host=db user=scraper password=secret dbname=listings port=5432 sslmode=disable", cfg.DBConn)
}

func TestValidateScrape(t *testing.T) {
	valid := Config{
		ScrapeURL:        "https://shop.example/",
		BaseImageURL:     "https://shop.example/",
		OutputPath:       "output.json",
		FetchMode:        FetchModeHTTP,
		HTTPTimeout:      time.Second,
		ExtractionPolicy: "strict",
		DedupScope:       "page",
	}
	require.NoError(t, valid.ValidateScrape())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"Missing scrape URL", func(c *Config) { c.ScrapeURL = "" }},
		{"Relative scrape URL", func(c *Config) { c.ScrapeURL = "/phones" }},
		{"Missing image base", func(c *Config) { c.BaseImageURL = "" }},
		{"Unknown fetch mode", func(c *Config) { c.FetchMode = "curl" }},
		{"Zero timeout", func(c *Config) { c.HTTPTimeout = 0 }},
		{"Unknown policy", func(c *Config) { c.ExtractionPolicy = "maybe" }},
		{"Unknown dedup scope", func(c *Config) { c.DedupScope = "site" }},
		{"Negative headless wait", func(c *Config) { c.HeadlessWait = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			assert.Error(t, c.ValidateScrape())
		})
	}
}
