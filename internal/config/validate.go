package config

import (
	"fmt"
	"net/url"
	"regexp"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Crawl.MaxDepth < 0 {
		return fmt.Errorf("crawl.max_depth must be >= 0, got %d", cfg.Crawl.MaxDepth)
	}
	if cfg.Crawl.Concurrency < 1 {
		return fmt.Errorf("crawl.concurrency must be >= 1, got %d", cfg.Crawl.Concurrency)
	}
	if cfg.Crawl.Concurrency > 64 {
		return fmt.Errorf("crawl.concurrency must be <= 64, got %d", cfg.Crawl.Concurrency)
	}
	if cfg.Crawl.RevisitPolicy != RevisitSkip && cfg.Crawl.RevisitPolicy != RevisitPath {
		return fmt.Errorf("crawl.revisit_policy must be %q or %q, got %q", RevisitSkip, RevisitPath, cfg.Crawl.RevisitPolicy)
	}
	if cfg.Crawl.CheckpointInterval < 0 {
		return fmt.Errorf("crawl.checkpoint_interval must be >= 0")
	}

	for _, rule := range cfg.Extract.Rules {
		if rule.Name == "" {
			return fmt.Errorf("extract.rules: rule with pattern %q has no name", rule.Pattern)
		}
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			return fmt.Errorf("extract.rules: rule %q: %w", rule.Name, err)
		}
	}

	if err := ValidateURL(cfg.API.Endpoint); err != nil {
		return fmt.Errorf("api.endpoint: %w", err)
	}
	if !cfg.Crawl.NoViews {
		if err := ValidateURL(cfg.API.PageviewsEndpoint); err != nil {
			return fmt.Errorf("api.pageviews_endpoint: %w", err)
		}
	}
	if cfg.API.ViewsDays < 1 {
		return fmt.Errorf("api.views_days must be >= 1, got %d", cfg.API.ViewsDays)
	}

	if cfg.Fetcher.RequestTimeout <= 0 {
		return fmt.Errorf("fetcher.request_timeout must be > 0")
	}
	if cfg.Fetcher.RateLimit < 0 {
		return fmt.Errorf("fetcher.rate_limit must be >= 0")
	}
	if cfg.Fetcher.MaxRetries < 0 {
		return fmt.Errorf("fetcher.max_retries must be >= 0, got %d", cfg.Fetcher.MaxRetries)
	}
	if cfg.Fetcher.MaxBodySize <= 0 {
		return fmt.Errorf("fetcher.max_body_size must be > 0")
	}
	if cfg.Fetcher.UserAgent == "" {
		return fmt.Errorf("fetcher.user_agent must not be empty")
	}

	if cfg.Cache.Enabled && cfg.Cache.Address == "" {
		return fmt.Errorf("cache.address is required when the cache is enabled")
	}

	validStorageTypes := map[string]bool{
		"csv": true, "json": true, "jsonl": true, "xlsx": true, "mongo": true, "postgres": true,
	}
	for _, t := range cfg.Storage.Types {
		if !validStorageTypes[t] {
			return fmt.Errorf("storage.types: %q is not supported (valid: csv, json, jsonl, xlsx, mongo, postgres)", t)
		}
		if t == "mongo" && cfg.Storage.Mongo.URI == "" {
			return fmt.Errorf("storage.mongo.uri is required for the mongo backend")
		}
		if t == "postgres" {
			if cfg.Storage.Postgres.DSN == "" {
				return fmt.Errorf("storage.postgres.dsn is required for the postgres backend")
			}
			if !sqlIdent.MatchString(cfg.Storage.Postgres.Table) {
				return fmt.Errorf("storage.postgres.table %q is not a valid identifier", cfg.Storage.Postgres.Table)
			}
		}
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be 1-65535, got %d", cfg.Metrics.Port)
		}
	}

	return nil
}

var sqlIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateURL checks if a URL string is usable as an API endpoint.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
