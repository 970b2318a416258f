// Package config provides configuration management for ottmwiki.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all configuration settings for the wiki.
type Config struct {
	// Core settings
	Debug     bool
	Testing   bool
	LogLevel  string
	LogFormat string
	SecretKey string

	// Site settings
	SiteName    string
	ServerURL   string
	ServerName  string
	SiteLang    string
	MainPage    string
	WikiPath    string
	WikiAPIPath string
	OTTMAPIPath string
	StaticPath  string

	// Database
	DatabaseURI string

	// Content settings
	MaxParseLength           int
	MaxTranscludeDepth       int
	ParseCacheTTLMinutes     int
	RevisionCommentMaxLength int

	// Git mirror settings
	MirrorRepository string
	MirrorEnabled    bool

	// Pagination
	DefaultResultsPerPage int
	MinResultsPerPage     int
	MaxResultsPerPage     int
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Debug:     false,
		Testing:   false,
		LogLevel:  "INFO",
		LogFormat: "text",
		SecretKey: "CHANGE ME",

		SiteName:    "OTTM Wiki",
		ServerURL:   "http://localhost:8080",
		ServerName:  "localhost",
		SiteLang:    "en",
		MainPage:    "Main Page",
		WikiPath:    "/wiki",
		WikiAPIPath: "/wiki-api",
		OTTMAPIPath: "/api",
		StaticPath:  "/static",

		DatabaseURI: "sqlite:///:memory:",

		MaxParseLength:           10_000_000,
		MaxTranscludeDepth:       20,
		ParseCacheTTLMinutes:     60,
		RevisionCommentMaxLength: 500,

		MirrorRepository: "",
		MirrorEnabled:    false,

		DefaultResultsPerPage: 50,
		MinResultsPerPage:     20,
		MaxResultsPerPage:     500,
	}
}

// LoadFromEnv loads configuration from environment variables.
func (c *Config) LoadFromEnv() {
	getEnv := func(key, fallback string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return fallback
	}

	getEnvBool := func(key string, fallback bool) bool {
		v := os.Getenv(key)
		if v == "" {
			return fallback
		}
		v = strings.ToLower(v)
		return v == "true" || v == "yes" || v == "on" || v == "1"
	}

	getEnvInt := func(key string, fallback int) int {
		v := os.Getenv(key)
		if v == "" {
			return fallback
		}
		i, err := strconv.Atoi(v)
		if err != nil {
			return fallback
		}
		return i
	}

	// Core settings
	c.Debug = getEnvBool("DEBUG", c.Debug)
	c.Testing = getEnvBool("TESTING", c.Testing)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	c.SecretKey = getEnv("SECRET_KEY", c.SecretKey)

	// Site settings
	c.SiteName = getEnv("SITE_NAME", c.SiteName)
	c.ServerURL = getEnv("SERVER_URL", c.ServerURL)
	c.ServerName = getEnv("SERVER_NAME", c.ServerName)
	c.SiteLang = getEnv("SITE_LANG", c.SiteLang)
	c.MainPage = getEnv("MAIN_PAGE", c.MainPage)
	c.WikiPath = getEnv("WIKI_PATH", c.WikiPath)
	c.WikiAPIPath = getEnv("WIKI_API_PATH", c.WikiAPIPath)
	c.OTTMAPIPath = getEnv("OTTM_API_PATH", c.OTTMAPIPath)
	c.StaticPath = getEnv("STATIC_PATH", c.StaticPath)

	// Database
	c.DatabaseURI = getEnv("DATABASE_URI", c.DatabaseURI)

	// Content settings
	c.MaxParseLength = getEnvInt("MAX_PARSE_LENGTH", c.MaxParseLength)
	c.MaxTranscludeDepth = getEnvInt("MAX_TRANSCLUDE_DEPTH", c.MaxTranscludeDepth)
	c.ParseCacheTTLMinutes = getEnvInt("PARSE_CACHE_TTL_MINUTES", c.ParseCacheTTLMinutes)
	c.RevisionCommentMaxLength = getEnvInt("REVISION_COMMENT_MAX_LENGTH", c.RevisionCommentMaxLength)

	// Git mirror
	c.MirrorRepository = getEnv("MIRROR_REPOSITORY", c.MirrorRepository)
	c.MirrorEnabled = getEnvBool("MIRROR_ENABLED", c.MirrorEnabled)

	// Pagination
	c.DefaultResultsPerPage = getEnvInt("DEFAULT_RESULTS_PER_PAGE", c.DefaultResultsPerPage)
	c.MinResultsPerPage = getEnvInt("MIN_RESULTS_PER_PAGE", c.MinResultsPerPage)
	c.MaxResultsPerPage = getEnvInt("MAX_RESULTS_PER_PAGE", c.MaxResultsPerPage)
}

// Validate checks that required configuration is set.
func (c *Config) Validate() error {
	if len(c.SecretKey) < 16 || c.SecretKey == "CHANGE ME" {
		return fmt.Errorf("please configure a random SECRET_KEY with a length of at least 16 characters")
	}
	if c.MainPage == "" {
		return fmt.Errorf("please configure a MAIN_PAGE title")
	}
	if c.MaxParseLength <= 0 {
		return fmt.Errorf("MAX_PARSE_LENGTH must be positive")
	}
	if c.MirrorEnabled && c.MirrorRepository == "" {
		return fmt.Errorf("MIRROR_ENABLED requires a MIRROR_REPOSITORY path")
	}
	return nil
}

// Load creates a new Config with defaults and loads from environment.
func Load() *Config {
	cfg := Default()
	cfg.LoadFromEnv()
	return cfg
}
