package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Revisit policies for categories reached more than once in a session.
const (
	RevisitSkip = "skip" // crawl each category at most once per session
	RevisitPath = "path" // only refuse categories already on the current path
)

// Config is the root configuration for wikicat.
type Config struct {
	Crawl    CrawlConfig    `mapstructure:"crawl"    yaml:"crawl"`
	Extract  ExtractConfig  `mapstructure:"extract"  yaml:"extract"`
	API      APIConfig      `mapstructure:"api"      yaml:"api"`
	Fetcher  FetcherConfig  `mapstructure:"fetcher"  yaml:"fetcher"`
	Cache    CacheConfig    `mapstructure:"cache"    yaml:"cache"`
	Dump     DumpConfig     `mapstructure:"dump"     yaml:"dump"`
	Storage  StorageConfig  `mapstructure:"storage"  yaml:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"  yaml:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"  yaml:"metrics"`
}

// CrawlConfig controls category traversal and page enrichment.
type CrawlConfig struct {
	Category            string        `mapstructure:"category"              yaml:"category"`
	ForbiddenKeywords   []string      `mapstructure:"forbidden_keywords"    yaml:"forbidden_keywords"`
	NoViews             bool          `mapstructure:"no_views"              yaml:"no_views"`
	NoContent           bool          `mapstructure:"no_content"            yaml:"no_content"`
	MaxDepth            int           `mapstructure:"max_depth"             yaml:"max_depth"` // 0 = unlimited
	RevisitPolicy       string        `mapstructure:"revisit_policy"        yaml:"revisit_policy"`
	Concurrency         int           `mapstructure:"concurrency"           yaml:"concurrency"`
	ManualCategory      string        `mapstructure:"manual_category"       yaml:"manual_category"`
	CheckpointPath      string        `mapstructure:"checkpoint_path"       yaml:"checkpoint_path"`
	CheckpointInterval  time.Duration `mapstructure:"checkpoint_interval"   yaml:"checkpoint_interval"`
}

// ExtractConfig controls content mining.
type ExtractConfig struct {
	WantedTemplates []string          `mapstructure:"wanted_templates" yaml:"wanted_templates"`
	ExtraFields     []string          `mapstructure:"extra_fields"     yaml:"extra_fields"`
	Rules           []ParseRule       `mapstructure:"rules"            yaml:"rules"`
	Rename          map[string]string `mapstructure:"rename"           yaml:"rename"`
	KeepFields      []string          `mapstructure:"keep_fields"      yaml:"keep_fields"`
	DropEmpty       bool              `mapstructure:"drop_empty"       yaml:"drop_empty"`
	StripLinks      bool              `mapstructure:"strip_links"      yaml:"strip_links"`
	DecodeEntities  bool              `mapstructure:"decode_entities"  yaml:"decode_entities"`
}

// ParseRule defines a single regex mining rule. The first capture group (or
// the whole match) becomes the value of field Name.
type ParseRule struct {
	Name    string `mapstructure:"name"    yaml:"name"`
	Pattern string `mapstructure:"pattern" yaml:"pattern"`
}

// APIConfig locates the remote services.
type APIConfig struct {
	Endpoint          string `mapstructure:"endpoint"           yaml:"endpoint"`
	PageviewsEndpoint string `mapstructure:"pageviews_endpoint" yaml:"pageviews_endpoint"`
	Project           string `mapstructure:"project"            yaml:"project"`
	Access            string `mapstructure:"access"             yaml:"access"`
	Agent             string `mapstructure:"agent"              yaml:"agent"`
	MemberLimit       string `mapstructure:"member_limit"       yaml:"member_limit"`
	ViewsDays         int    `mapstructure:"views_days"         yaml:"views_days"`
}

// FetcherConfig controls the HTTP transport.
type FetcherConfig struct {
	UserAgent       string        `mapstructure:"user_agent"        yaml:"user_agent"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"   yaml:"request_timeout"`
	RateLimit       float64       `mapstructure:"rate_limit"        yaml:"rate_limit"` // requests per second, 0 = unlimited
	MaxRetries      int           `mapstructure:"max_retries"       yaml:"max_retries"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"       yaml:"retry_delay"`
	MaxBodySize     int64         `mapstructure:"max_body_size"     yaml:"max_body_size"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    yaml:"max_idle_conns"`
}

// CacheConfig controls the optional Redis markup cache.
type CacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"  yaml:"enabled"`
	Address  string        `mapstructure:"address"  yaml:"address"`
	Password string        `mapstructure:"password" yaml:"password"`
	DB       int           `mapstructure:"db"       yaml:"db"`
	TTL      time.Duration `mapstructure:"ttl"      yaml:"ttl"`
	Prefix   string        `mapstructure:"prefix"   yaml:"prefix"`
}

// DumpConfig controls offline dump scanning.
type DumpConfig struct {
	Path        string `mapstructure:"path"          yaml:"path"`
	UseDumpText bool   `mapstructure:"use_dump_text" yaml:"use_dump_text"`
}

// StorageConfig controls output/storage.
type StorageConfig struct {
	Types      []string       `mapstructure:"types"       yaml:"types"`
	OutputPath string         `mapstructure:"output_path" yaml:"output_path"`
	Mongo      MongoConfig    `mapstructure:"mongo"       yaml:"mongo"`
	Postgres   PostgresConfig `mapstructure:"postgres"    yaml:"postgres"`
}

// MongoConfig locates the MongoDB export target.
type MongoConfig struct {
	URI        string `mapstructure:"uri"        yaml:"uri"`
	Database   string `mapstructure:"database"   yaml:"database"`
	Collection string `mapstructure:"collection" yaml:"collection"`
}

// PostgresConfig locates the PostgreSQL export target.
type PostgresConfig struct {
	DSN   string `mapstructure:"dsn"   yaml:"dsn"`
	Table string `mapstructure:"table" yaml:"table"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Crawl: CrawlConfig{
			RevisitPolicy:      RevisitPath,
			Concurrency:        1,
			ManualCategory:     "Manual",
			CheckpointInterval: 60 * time.Second,
		},
		API: APIConfig{
			Endpoint:          "https://en.wikipedia.org/w/api.php",
			PageviewsEndpoint: "https://wikimedia.org/api/rest_v1/metrics/pageviews",
			Project:           "en.wikipedia",
			Access:            "all-access",
			Agent:             "all-agents",
			MemberLimit:       "max",
			ViewsDays:         365,
		},
		Fetcher: FetcherConfig{
			UserAgent:       "wikicat/" + Version + " (https://github.com/IshaanNene/wikicat)",
			RequestTimeout:  30 * time.Second,
			RateLimit:       10,
			MaxRetries:      3,
			RetryDelay:      2 * time.Second,
			MaxBodySize:     32 * 1024 * 1024, // 32MB
			IdleConnTimeout: 90 * time.Second,
			MaxIdleConns:    16,
		},
		Cache: CacheConfig{
			Address: "localhost:6379",
			TTL:     24 * time.Hour,
			Prefix:  "wikicat:",
		},
		Storage: StorageConfig{
			Types:      []string{"csv"},
			OutputPath: "./output",
			Mongo: MongoConfig{
				Database:   "wikicat",
				Collection: "pages",
			},
			Postgres: PostgresConfig{
				Table: "wiki_pages",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}

// MiningEnabled reports whether any content parser is configured.
func (c *ExtractConfig) MiningEnabled() bool {
	return len(c.WantedTemplates) > 0 || len(c.Rules) > 0
}
