// Package config provides configuration management for the studio agent.
// Configuration is loaded from an optional .env file and environment variables
// with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// Default values
	DefaultPort     = 8790
	DefaultLogLevel = "info"
	DefaultDataDir  = ".veostudio"

	// Environment variable names
	EnvPort      = "STUDIO_PORT"
	EnvLogLevel  = "STUDIO_LOG_LEVEL"
	EnvDataDir   = "STUDIO_DATA_DIR"
	EnvHeadless  = "STUDIO_HEADLESS"
	EnvPublicURL = "STUDIO_PUBLIC_URL"

	// Export environment variable names
	EnvFetchTimeout      = "STUDIO_FETCH_TIMEOUT"
	EnvExportConcurrency = "STUDIO_EXPORT_CONCURRENCY"
	EnvGenAIKey          = "STUDIO_GENAI_API_KEY"

	// Storage environment variable names
	EnvStorage        = "STUDIO_STORAGE"
	EnvS3Bucket       = "STUDIO_S3_BUCKET"
	EnvS3Prefix       = "STUDIO_S3_PREFIX"
	EnvPresignMinutes = "STUDIO_PRESIGN_MINUTES"
	EnvAWSRegion      = "AWS_REGION"
	EnvAWSAccessKeyID = "AWS_ACCESS_KEY_ID"
	EnvAWSSecretKey   = "AWS_SECRET_ACCESS_KEY"

	// Database filename
	DBFilename = "studio.db"

	// Export defaults
	DefaultFetchTimeout      = 120 // seconds
	DefaultExportConcurrency = 4
	DefaultPresignMinutes    = 15
	DefaultAWSRegion         = "us-east-1"

	StorageLocal = "local"
	StorageS3    = "s3"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	ExportsDir() string
	Headless() bool
	PublicURL() string
	FetchTimeout() time.Duration
	ExportConcurrency() int
	GenAIKey() string
	Storage() string
	S3Bucket() string
	S3Prefix() string
	AWSRegion() string
	AWSAccessKeyID() string
	AWSSecretAccessKey() string
	PresignExpiry() time.Duration
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port      int
	logLevel  string
	dataDir   string
	headless  bool
	publicURL string

	fetchTimeout      int
	exportConcurrency int
	genAIKey          string

	storage        string
	s3Bucket       string
	s3Prefix       string
	presignMinutes int
	awsRegion      string
	awsAccessKey   string
	awsSecretKey   string
}

// New creates a new EnvConfig with defaults and environment variable overrides.
// A .env file in the working directory is loaded first when present; variables
// already set in the process environment win.
func New() (*EnvConfig, error) {
	_ = godotenv.Load()

	cfg := &EnvConfig{
		port:              DefaultPort,
		logLevel:          DefaultLogLevel,
		dataDir:           defaultDataDir(),
		fetchTimeout:      DefaultFetchTimeout,
		exportConcurrency: DefaultExportConcurrency,
		storage:           StorageLocal,
		presignMinutes:    DefaultPresignMinutes,
		awsRegion:         DefaultAWSRegion,
	}

	// Override port from environment
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	if h := os.Getenv(EnvHeadless); h != "" {
		headless, err := strconv.ParseBool(h)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvHeadless, err)
		}
		cfg.headless = headless
	}

	cfg.publicURL = strings.TrimRight(os.Getenv(EnvPublicURL), "/")

	var err error
	if cfg.fetchTimeout, err = positiveInt(EnvFetchTimeout, cfg.fetchTimeout); err != nil {
		return nil, err
	}
	if cfg.exportConcurrency, err = positiveInt(EnvExportConcurrency, cfg.exportConcurrency); err != nil {
		return nil, err
	}
	if cfg.presignMinutes, err = positiveInt(EnvPresignMinutes, cfg.presignMinutes); err != nil {
		return nil, err
	}

	cfg.genAIKey = os.Getenv(EnvGenAIKey)

	if s := os.Getenv(EnvStorage); s != "" {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != StorageLocal && s != StorageS3 {
			return nil, fmt.Errorf("invalid %s: must be %q or %q", EnvStorage, StorageLocal, StorageS3)
		}
		cfg.storage = s
	}
	cfg.s3Bucket = os.Getenv(EnvS3Bucket)
	cfg.s3Prefix = strings.Trim(os.Getenv(EnvS3Prefix), "/")
	if cfg.storage == StorageS3 && cfg.s3Bucket == "" {
		return nil, fmt.Errorf("%s is required when %s=%s", EnvS3Bucket, EnvStorage, StorageS3)
	}

	if r := os.Getenv(EnvAWSRegion); r != "" {
		cfg.awsRegion = r
	}
	cfg.awsAccessKey = os.Getenv(EnvAWSAccessKeyID)
	cfg.awsSecretKey = os.Getenv(EnvAWSSecretKey)

	return cfg, nil
}

func positiveInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return n, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// ExportsDir returns the directory local archives are written to
func (c *EnvConfig) ExportsDir() string {
	return filepath.Join(c.dataDir, "exports")
}

func (c *EnvConfig) Headless() bool {
	return c.headless
}

// PublicURL returns the base URL playback URLs are minted under.
func (c *EnvConfig) PublicURL() string {
	if c.publicURL != "" {
		return c.publicURL
	}
	return fmt.Sprintf("http://127.0.0.1:%d", c.port)
}

func (c *EnvConfig) FetchTimeout() time.Duration {
	return time.Duration(c.fetchTimeout) * time.Second
}

func (c *EnvConfig) ExportConcurrency() int {
	return c.exportConcurrency
}

func (c *EnvConfig) GenAIKey() string {
	return c.genAIKey
}

// Storage returns the archive storage backend (local or s3)
func (c *EnvConfig) Storage() string {
	return c.storage
}

func (c *EnvConfig) S3Bucket() string {
	return c.s3Bucket
}

func (c *EnvConfig) S3Prefix() string {
	return c.s3Prefix
}

func (c *EnvConfig) AWSRegion() string {
	return c.awsRegion
}

func (c *EnvConfig) AWSAccessKeyID() string {
	return c.awsAccessKey
}

func (c *EnvConfig) AWSSecretAccessKey() string {
	return c.awsSecretKey
}

func (c *EnvConfig) PresignExpiry() time.Duration {
	return time.Duration(c.presignMinutes) * time.Minute
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
