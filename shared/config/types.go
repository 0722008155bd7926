package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var sqlTableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Config holds all application configuration
type Config struct {
	// Core settings
	Environment string
	ServiceName string
	LogLevel    string
	Version     string

	// Component configurations
	AWS        AWSConfig
	HTTP       HTTPConfig
	Salesforce SalesforceConfig
	Storage    StorageConfig
	Ledger     LedgerConfig
	Backup     BackupConfig
	Events     EventsConfig
	Lambda     LambdaConfig
	Handler    HandlerConfig
}

// AWSConfig holds AWS-specific configuration
type AWSConfig struct {
	Region             string
	LocalStackEndpoint string // Only for local development
}

// HTTPConfig holds HTTP client and server configuration
type HTTPConfig struct {
	Timeout   time.Duration
	UserAgent string
	Addr      string // Server address for HTTP mode
}

// SalesforceConfig holds the remote org connection settings.
type SalesforceConfig struct {
	InstanceURL  string
	APIVersion   string
	AuthMethod   string // token | oauth
	AccessToken  string
	ClientID     string
	ClientSecret string
	RefreshToken string
	TokenURL     string

	// SecretID names a Secrets Manager secret holding the credentials.
	// When set its values override the ones above.
	SecretID string

	TrustedHostSuffixes []string
	RefreshRetryDelay   time.Duration
}

// StorageConfig holds object store configuration
type StorageConfig struct {
	Provider string // s3 | fs
	BasePath string // root directory for the fs provider
	Timeout  time.Duration

	MaxRetries int
	S3         S3Config
}

// S3Config holds S3-specific configuration
type S3Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	UsePathStyle    bool
	PartSize        int64
	Concurrency     int
}

// LedgerConfig selects and configures the status ledger backend.
type LedgerConfig struct {
	Provider string // dynamodb | postgres | memory
	Table    string
	Postgres PostgresConfig
}

// PostgresConfig holds the SQL ledger connection settings.
type PostgresConfig struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string
	// Table is the ledger table, DB_TABLE_NAME. It may be schema qualified.
	Table string

	MaxOpenConns int
	MaxIdleConns int
}

// DSN renders the lib/pq connection string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		p.Host, p.Port, p.Database, p.Username, p.Password, p.SSLMode)
}

// BackupConfig holds the pipeline behaviour knobs.
type BackupConfig struct {
	// Stage pins the stage a Lambda function serves. Empty means derive it
	// from the function name.
	Stage string

	ObjectList  []string
	CatalogFile string

	Prefix  string
	KeyDate bool

	SkipEmpty      bool
	DescribeFields bool

	DownloadConcurrency int
	DownloadTimeout     time.Duration
	MaxPages            int
	MaxRecordsPerPage   int
}

// EventsConfig selects where terminal job events are published.
type EventsConfig struct {
	Provider string // none | sqs | memory
	Queue    string // queue name or URL
}

// LambdaConfig holds Lambda-specific configuration
type LambdaConfig struct {
	Timeout                   time.Duration
	EnablePartialBatchFailure bool
}

// HandlerConfig holds handler configuration
type HandlerConfig struct {
	Timeout        time.Duration
	MaxRequestSize int64
	EnableHealth   bool
	EnableMetrics  bool
	EnableTracing  bool
	Platform       string // auto-detected if empty
}

// Validate validates the entire configuration
func (c *Config) Validate() error {
	var errors []string

	// Core validations
	if c.ServiceName == "" {
		errors = append(errors, "SERVICE_NAME is required")
	}

	switch c.Salesforce.AuthMethod {
	case "token":
		if c.Salesforce.AccessToken == "" && c.Salesforce.SecretID == "" && !c.IsLocal() {
			errors = append(errors, "SF_ACCESS_TOKEN is required when SF_AUTH_METHOD=token")
		}
	case "oauth":
		if c.Salesforce.TokenURL == "" {
			errors = append(errors, "SF_OAUTH_TOKEN_URL is required when SF_AUTH_METHOD=oauth")
		}
	default:
		errors = append(errors, fmt.Sprintf("SF_AUTH_METHOD %q is not one of token, oauth", c.Salesforce.AuthMethod))
	}

	switch c.Storage.Provider {
	case "s3":
		if c.Storage.S3.Bucket == "" && c.IsProduction() {
			errors = append(errors, "S3_BUCKET is required in production")
		}
	case "fs":
		if c.Storage.BasePath == "" {
			errors = append(errors, "STORAGE_BASE_PATH is required when STORAGE_PROVIDER=fs")
		}
	default:
		errors = append(errors, fmt.Sprintf("STORAGE_PROVIDER %q is not one of s3, fs", c.Storage.Provider))
	}

	switch c.Ledger.Provider {
	case "dynamodb", "memory":
	case "postgres":
		if c.Ledger.Postgres.Host == "" {
			errors = append(errors, "DB_HOST is required when LEDGER_PROVIDER=postgres")
		}
		if !sqlTableName.MatchString(c.Ledger.Postgres.Table) {
			errors = append(errors, fmt.Sprintf("DB_TABLE_NAME %q is not a plain or schema qualified table name", c.Ledger.Postgres.Table))
		}
	default:
		errors = append(errors, fmt.Sprintf("LEDGER_PROVIDER %q is not one of dynamodb, postgres, memory", c.Ledger.Provider))
	}

	switch c.Events.Provider {
	case "none", "memory":
	case "sqs":
		if c.Events.Queue == "" {
			errors = append(errors, "EVENTS_QUEUE is required when EVENTS_PROVIDER=sqs")
		}
	default:
		errors = append(errors, fmt.Sprintf("EVENTS_PROVIDER %q is not one of none, sqs, memory", c.Events.Provider))
	}

	// Range validations
	if c.HTTP.Timeout <= 0 {
		errors = append(errors, "HTTP_TIMEOUT must be positive")
	}
	if c.Handler.Timeout <= 0 {
		errors = append(errors, "HANDLER_TIMEOUT must be positive")
	}
	if c.Handler.MaxRequestSize <= 0 {
		errors = append(errors, "HANDLER_MAX_REQUEST_SIZE must be positive")
	}
	if c.Backup.DownloadConcurrency < 1 {
		errors = append(errors, "BACKUP_DOWNLOAD_CONCURRENCY must be at least 1")
	}
	if c.Backup.DownloadTimeout <= 0 {
		errors = append(errors, "TIMEOUT_DOWNLOAD_SECS must be positive")
	}
	if c.Backup.MaxPages < 0 {
		errors = append(errors, "BACKUP_MAX_PAGES cannot be negative")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

// applyDefaults applies environment-specific defaults
func (c *Config) applyDefaults() {
	c.Salesforce.AuthMethod = strings.ToLower(c.Salesforce.AuthMethod)
	c.Storage.Provider = strings.ToLower(c.Storage.Provider)
	c.Ledger.Provider = strings.ToLower(c.Ledger.Provider)
	c.Events.Provider = strings.ToLower(c.Events.Provider)
	if c.Events.Provider == "" {
		c.Events.Provider = "none"
	}

	if c.Storage.S3.Region == "" {
		c.Storage.S3.Region = c.AWS.Region
	}
	if c.Storage.S3.Endpoint == "" && c.IsLocal() {
		c.Storage.S3.Endpoint = c.AWS.LocalStackEndpoint
	}
	if c.Backup.Prefix == "" {
		c.Backup.Prefix = "salesforce-backups"
	}
	c.Backup.Prefix = strings.Trim(c.Backup.Prefix, "/")

	if c.IsProduction() {
		// Enable all observability features in production
		c.Handler.EnableMetrics = true
		c.Handler.EnableTracing = true
	}

	if c.IsLocal() {
		c.Handler.EnableTracing = false
	}

	// The handler deadline must outlive the download budget, otherwise the
	// stage can never report its own timeout.
	if c.Handler.Timeout <= c.Backup.DownloadTimeout {
		c.Handler.Timeout = c.Backup.DownloadTimeout + 30*time.Second
	}
}

// Environment detection methods

// IsLocal returns true if running in local/development environment
func (c *Config) IsLocal() bool {
	env := strings.ToLower(c.Environment)
	return env == "local" || env == "development" || env == "dev"
}

// IsStaging returns true if running in staging environment
func (c *Config) IsStaging() bool {
	env := strings.ToLower(c.Environment)
	return env == "staging" || env == "stage"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Environment)
	return env == "production" || env == "prod"
}

// IsTest returns true if running in test environment
func (c *Config) IsTest() bool {
	env := strings.ToLower(c.Environment)
	return env == "test" || env == "testing"
}
