package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds the application configuration parameters.
type Config struct {
	ScrapeURL        string
	BaseImageURL     string
	OutputPath       string
	FetchMode        string
	HTTPTimeout      time.Duration
	ExtractionPolicy string
	DedupScope       string
	// SinglePageFallback scrapes page 1 when the start page has no pagination links.
	SinglePageFallback bool
	HeadlessWait       time.Duration
	HeadlessUserAgent  string
	MetricsPort        string
	// DBConn is empty when no database is configured.
	DBConn string
}

// Global constants for configuration keys
const (
	ScrapeURLKey          = "scrape_url"
	BaseImageURLKey       = "base_image_url"
	OutputPathKey         = "output_path"
	FetchModeKey          = "fetch_mode"
	HTTPTimeoutKey        = "http_timeout"
	ExtractionPolicyKey   = "extraction_policy"
	DedupScopeKey         = "dedup_scope"
	SinglePageFallbackKey = "single_page_fallback"
	HeadlessWaitKey       = "headless_wait"
	HeadlessUserAgentKey  = "headless_user_agent"
	MetricsPortKey        = "metrics_port"
	DBHostKey             = "DB_HOST"
	DBPortKey             = "DB_PORT"
	DBUserKey             = "DB_USER"
	DBPasswordKey         = "DB_PASSWORD"
	DBNameKey             = "DB_NAME"
)

const (
	FetchModeHTTP     = "http"
	FetchModeHeadless = "headless"
)

// flagKeys maps command-line flags onto configuration keys.
var flagKeys = map[string]string{
	"url":                  ScrapeURLKey,
	"image-base":           BaseImageURLKey,
	"out":                  OutputPathKey,
	"fetch-mode":           FetchModeKey,
	"timeout":              HTTPTimeoutKey,
	"policy":               ExtractionPolicyKey,
	"dedup-scope":          DedupScopeKey,
	"single-page-fallback": SinglePageFallbackKey,
	"headless-wait":        HeadlessWaitKey,
	"user-agent":           HeadlessUserAgentKey,
}

// Flags returns the command-line flags understood by Init. Parse errors are
// returned to the caller; --help yields pflag.ErrHelp.
func Flags(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config", "", "path to a config file (default ./config.yaml)")
	fs.String("url", "", "listing page to start from")
	fs.String("image-base", "", "base URL prepended to product image paths")
	fs.String("out", "", "output JSON file")
	fs.String("fetch-mode", "", "page fetcher: http or headless")
	fs.Duration("timeout", 0, "per-page fetch timeout")
	fs.String("policy", "", "on malformed products: strict (abort) or lenient (skip)")
	fs.String("dedup-scope", "", "deduplicate colour variants per page or per run")
	fs.Bool("single-page-fallback", false, "scrape the start page itself when it has no pagination links")
	fs.Duration("headless-wait", 0, "extra settle time after a headless page is ready")
	fs.String("user-agent", "", "headless browser user agent (default: random desktop)")
	return fs
}

// Init reads configuration from config.yaml, APP_* environment variables and
// flags, and watches the config file for changes.
func Init(flags *pflag.FlagSet) *Config {
	v := viper.GetViper()
	cfg, err := Load(v, flags)
	if err != nil {
		log.Fatalf("Fatal Error: %v", err)
	}

	if file := v.ConfigFileUsed(); file != "" {
		v.OnConfigChange(func(e fsnotify.Event) {
			log.Printf("Config file %s changed (%s); changes apply to the next run.", e.Name, e.Op)
		})
		v.WatchConfig()
	}

	return cfg
}

// Load fills a Config from v. Flags may be nil.
func Load(v *viper.Viper, flags *pflag.FlagSet) (*Config, error) {
	// --- File-based configuration ---
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if flags != nil {
		if path, _ := flags.GetString("config"); path != "" {
			v.SetConfigFile(path)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("could not read config file: %w", err)
		}
		log.Println("config.yaml not found, using defaults, environment variables and flags.")
	}

	v.SetEnvPrefix("APP")
	v.AutomaticEnv()

	v.SetDefault(OutputPathKey, "output.json")
	v.SetDefault(FetchModeKey, FetchModeHTTP)
	v.SetDefault(HTTPTimeoutKey, 30*time.Second)
	v.SetDefault(ExtractionPolicyKey, "strict")
	v.SetDefault(DedupScopeKey, "page")
	v.SetDefault(SinglePageFallbackKey, false)

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("could not bind flag --%s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{
		ScrapeURL:          v.GetString(ScrapeURLKey),
		BaseImageURL:       v.GetString(BaseImageURLKey),
		OutputPath:         v.GetString(OutputPathKey),
		FetchMode:          v.GetString(FetchModeKey),
		HTTPTimeout:        v.GetDuration(HTTPTimeoutKey),
		ExtractionPolicy:   v.GetString(ExtractionPolicyKey),
		DedupScope:         v.GetString(DedupScopeKey),
		SinglePageFallback: v.GetBool(SinglePageFallbackKey),
		HeadlessWait:       v.GetDuration(HeadlessWaitKey),
		HeadlessUserAgent:  v.GetString(HeadlessUserAgentKey),
		MetricsPort:        v.GetString(MetricsPortKey),
		DBConn:             buildDSN(v),
	}
	return cfg, nil
}

// ValidateScrape checks the settings a scrape run cannot do without.
func (c *Config) ValidateScrape() error {
	if c.ScrapeURL == "" {
		return fmt.Errorf("missing %s", ScrapeURLKey)
	}
	if u, err := url.Parse(c.ScrapeURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got %q", ScrapeURLKey, c.ScrapeURL)
	}
	if c.BaseImageURL == "" {
		return fmt.Errorf("missing %s", BaseImageURLKey)
	}
	if c.OutputPath == "" {
		return fmt.Errorf("missing %s", OutputPathKey)
	}
	if c.FetchMode != FetchModeHTTP && c.FetchMode != FetchModeHeadless {
		return fmt.Errorf("%s must be %q or %q, got %q", FetchModeKey, FetchModeHTTP, FetchModeHeadless, c.FetchMode)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("%s must be positive, got %s", HTTPTimeoutKey, c.HTTPTimeout)
	}
	if c.ExtractionPolicy != "strict" && c.ExtractionPolicy != "lenient" {
		return fmt.Errorf("%s must be strict or lenient, got %q", ExtractionPolicyKey, c.ExtractionPolicy)
	}
	if c.DedupScope != "page" && c.DedupScope != "run" {
		return fmt.Errorf("%s must be page or run, got %q", DedupScopeKey, c.DedupScope)
	}
	if c.HeadlessWait < 0 {
		return fmt.Errorf("%s must not be negative, got %s", HeadlessWaitKey, c.HeadlessWait)
	}
	return nil
}

// buildDSN constructs the PostgreSQL DSN, or returns "" when the database is not configured.
func buildDSN(v *viper.Viper) string {
	host := v.GetString(DBHostKey)
	port := v.GetString(DBPortKey)
	user := v.GetString(DBUserKey)
	password := v.GetString(DBPasswordKey)
	dbname := v.GetString(DBNameKey)

	if host == "" || user == "" || dbname == "" {
		return ""
	}
	if port == "" {
		port = "5432"
	}

	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		host, user, password, dbname, port,
	)
}
