package config

import "time"

// DefaultObjects is the catalog used when nothing else is configured.
var DefaultObjects = []string{"Account", "Contact", "Opportunity"}

// DefaultTrustedHostSuffixes are the hosts that receive the bearer token
// when an artifact URL is absolute.
var DefaultTrustedHostSuffixes = []string{".salesforce.com", ".force.com"}

// DefaultHandlerConfig returns sensible defaults for handler configuration
func DefaultHandlerConfig() HandlerConfig {
	return HandlerConfig{
		Timeout:        945 * time.Second,
		MaxRequestSize: 6 * 1024 * 1024, // Lambda synchronous payload limit
		EnableHealth:   true,
		EnableMetrics:  true,
		EnableTracing:  true,
		Platform:       "", // Auto-detect
	}
}

// DefaultHTTPConfig returns sensible defaults for HTTP client configuration
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Timeout:   120 * time.Second,
		UserAgent: "sfbackup/1.0",
		Addr:      ":8080",
	}
}

// DefaultSalesforceConfig returns the connection defaults.
func DefaultSalesforceConfig() SalesforceConfig {
	return SalesforceConfig{
		APIVersion:          "v60.0",
		AuthMethod:          "token",
		TrustedHostSuffixes: DefaultTrustedHostSuffixes,
		RefreshRetryDelay:   time.Second,
	}
}

// DefaultLambdaConfig returns sensible defaults for Lambda configuration
func DefaultLambdaConfig() LambdaConfig {
	return LambdaConfig{
		Timeout:                   900 * time.Second,
		EnablePartialBatchFailure: true,
	}
}

// DefaultStorageConfig returns sensible defaults for storage configuration
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		Provider:   "s3",
		MaxRetries: 3,
		Timeout:    5 * time.Minute,
		S3:         DefaultS3Config(),
	}
}

// DefaultS3Config returns sensible defaults for S3 configuration
func DefaultS3Config() S3Config {
	return S3Config{
		Region:      "us-east-1",
		PartSize:    8 * 1024 * 1024,
		Concurrency: 4,
	}
}

// DefaultLedgerConfig returns the ledger defaults.
func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{
		Provider: "dynamodb",
		Table:    "SalesforceBackupJobs",
		Postgres: PostgresConfig{
			Port:         5432,
			SSLMode:      "disable",
			Table:        "backup_jobs",
			MaxOpenConns: 5,
			MaxIdleConns: 2,
		},
	}
}

// DefaultBackupConfig returns the pipeline defaults.
func DefaultBackupConfig() BackupConfig {
	return BackupConfig{
		Prefix:              "salesforce-backups",
		KeyDate:             true,
		SkipEmpty:           true,
		DescribeFields:      true,
		DownloadConcurrency: 4,
		DownloadTimeout:     900 * time.Second,
		MaxRecordsPerPage:   50000,
	}
}

// DefaultConfig returns a complete configuration with sensible defaults
// This is useful for testing or when you want to start with defaults and override specific parts
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		ServiceName: "sfbackup",
		LogLevel:    "info",
		Version:     "1.0.0",

		AWS:        AWSConfig{Region: "us-east-1"},
		HTTP:       DefaultHTTPConfig(),
		Salesforce: DefaultSalesforceConfig(),
		Storage:    DefaultStorageConfig(),
		Ledger:     DefaultLedgerConfig(),
		Backup:     DefaultBackupConfig(),
		Events:     EventsConfig{Provider: "none"},
		Lambda:     DefaultLambdaConfig(),
		Handler:    DefaultHandlerConfig(),
	}
}
