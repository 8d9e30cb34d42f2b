package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configuration from file, environment, and CLI flags.
// Priority (highest to lowest): CLI flags > env vars > config file > defaults.
// A .env file in the working directory is loaded into the environment first.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("WIKICAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("wikicat")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".wikicat"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers default values in viper so env overrides apply to
// keys absent from the config file.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("crawl.category", cfg.Crawl.Category)
	v.SetDefault("crawl.forbidden_keywords", cfg.Crawl.ForbiddenKeywords)
	v.SetDefault("crawl.no_views", cfg.Crawl.NoViews)
	v.SetDefault("crawl.no_content", cfg.Crawl.NoContent)
	v.SetDefault("crawl.max_depth", cfg.Crawl.MaxDepth)
	v.SetDefault("crawl.revisit_policy", cfg.Crawl.RevisitPolicy)
	v.SetDefault("crawl.concurrency", cfg.Crawl.Concurrency)
	v.SetDefault("crawl.manual_category", cfg.Crawl.ManualCategory)
	v.SetDefault("crawl.checkpoint_path", cfg.Crawl.CheckpointPath)
	v.SetDefault("crawl.checkpoint_interval", cfg.Crawl.CheckpointInterval)

	v.SetDefault("extract.wanted_templates", cfg.Extract.WantedTemplates)
	v.SetDefault("extract.extra_fields", cfg.Extract.ExtraFields)
	v.SetDefault("extract.drop_empty", cfg.Extract.DropEmpty)
	v.SetDefault("extract.strip_links", cfg.Extract.StripLinks)
	v.SetDefault("extract.decode_entities", cfg.Extract.DecodeEntities)

	v.SetDefault("api.endpoint", cfg.API.Endpoint)
	v.SetDefault("api.pageviews_endpoint", cfg.API.PageviewsEndpoint)
	v.SetDefault("api.project", cfg.API.Project)
	v.SetDefault("api.access", cfg.API.Access)
	v.SetDefault("api.agent", cfg.API.Agent)
	v.SetDefault("api.member_limit", cfg.API.MemberLimit)
	v.SetDefault("api.views_days", cfg.API.ViewsDays)

	v.SetDefault("fetcher.user_agent", cfg.Fetcher.UserAgent)
	v.SetDefault("fetcher.request_timeout", cfg.Fetcher.RequestTimeout)
	v.SetDefault("fetcher.rate_limit", cfg.Fetcher.RateLimit)
	v.SetDefault("fetcher.max_retries", cfg.Fetcher.MaxRetries)
	v.SetDefault("fetcher.retry_delay", cfg.Fetcher.RetryDelay)
	v.SetDefault("fetcher.max_body_size", cfg.Fetcher.MaxBodySize)
	v.SetDefault("fetcher.idle_conn_timeout", cfg.Fetcher.IdleConnTimeout)
	v.SetDefault("fetcher.max_idle_conns", cfg.Fetcher.MaxIdleConns)

	v.SetDefault("cache.enabled", cfg.Cache.Enabled)
	v.SetDefault("cache.address", cfg.Cache.Address)
	v.SetDefault("cache.password", cfg.Cache.Password)
	v.SetDefault("cache.db", cfg.Cache.DB)
	v.SetDefault("cache.ttl", cfg.Cache.TTL)
	v.SetDefault("cache.prefix", cfg.Cache.Prefix)

	v.SetDefault("dump.path", cfg.Dump.Path)
	v.SetDefault("dump.use_dump_text", cfg.Dump.UseDumpText)

	v.SetDefault("storage.types", cfg.Storage.Types)
	v.SetDefault("storage.output_path", cfg.Storage.OutputPath)
	v.SetDefault("storage.mongo.uri", cfg.Storage.Mongo.URI)
	v.SetDefault("storage.mongo.database", cfg.Storage.Mongo.Database)
	v.SetDefault("storage.mongo.collection", cfg.Storage.Mongo.Collection)
	v.SetDefault("storage.postgres.dsn", cfg.Storage.Postgres.DSN)
	v.SetDefault("storage.postgres.table", cfg.Storage.Postgres.Table)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.output", cfg.Logging.Output)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.port", cfg.Metrics.Port)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
}
