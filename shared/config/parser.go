package config

import (
	"time"

	"github.com/balu-bunny/lambdaTest/shared/utils"
)

// parse reads configuration from environment variables
func parse() (*Config, error) {
	d := DefaultConfig()

	cfg := &Config{
		// Core
		Environment: utils.GetEnv("ENVIRONMENT", "local"),
		ServiceName: utils.GetEnv("SERVICE_NAME", d.ServiceName),
		LogLevel:    utils.GetEnv("LOG_LEVEL", d.LogLevel),
		Version:     utils.GetEnv("SERVICE_VERSION", d.Version),

		AWS: AWSConfig{
			Region:             utils.GetEnv("AWS_REGION", d.AWS.Region),
			LocalStackEndpoint: utils.GetEnv("LOCALSTACK_ENDPOINT", ""),
		},

		// HTTP Configuration
		HTTP: HTTPConfig{
			Timeout:   utils.GetEnvDuration("HTTP_TIMEOUT", 120*time.Second),
			UserAgent: utils.GetEnv("HTTP_USER_AGENT", d.HTTP.UserAgent),
			Addr:      utils.GetEnv("HTTP_ADDR", d.HTTP.Addr),
		},

		// Salesforce Configuration
		Salesforce: SalesforceConfig{
			InstanceURL:         utils.GetEnv("SF_INSTANCE_URL", ""),
			APIVersion:          utils.GetEnv("SF_API_VERSION", d.Salesforce.APIVersion),
			AuthMethod:          utils.GetEnv("SF_AUTH_METHOD", d.Salesforce.AuthMethod),
			AccessToken:         utils.GetEnv("SF_ACCESS_TOKEN", ""),
			ClientID:            utils.GetEnv("SF_OAUTH_CLIENT_ID", ""),
			ClientSecret:        utils.GetEnv("SF_OAUTH_CLIENT_SECRET", ""),
			RefreshToken:        utils.GetEnv("SF_OAUTH_REFRESH_TOKEN", ""),
			TokenURL:            utils.GetEnv("SF_OAUTH_TOKEN_URL", ""),
			SecretID:            utils.GetEnv("SF_SECRET_ID", ""),
			TrustedHostSuffixes: utils.GetEnvList("SF_TRUSTED_HOST_SUFFIXES", d.Salesforce.TrustedHostSuffixes),
			RefreshRetryDelay:   utils.GetEnvDuration("SF_REFRESH_RETRY_DELAY", 1*time.Second),
		},

		// Storage Configuration
		Storage: StorageConfig{
			Provider:   utils.GetEnv("STORAGE_PROVIDER", d.Storage.Provider),
			BasePath:   utils.GetEnv("STORAGE_BASE_PATH", ""),
			Timeout:    utils.GetEnvDuration("STORAGE_TIMEOUT", 5*time.Minute),
			MaxRetries: utils.GetEnvInt("STORAGE_MAX_RETRIES", d.Storage.MaxRetries),
			S3: S3Config{
				Region:          utils.GetEnv("S3_REGION", ""),
				Bucket:          utils.GetEnv("S3_BUCKET", ""),
				AccessKeyID:     utils.GetEnv("AWS_ACCESS_KEY_ID", ""),
				SecretAccessKey: utils.GetEnv("AWS_SECRET_ACCESS_KEY", ""),
				Endpoint:        utils.GetEnv("S3_ENDPOINT", ""),
				UsePathStyle:    utils.GetEnvBool("S3_USE_PATH_STYLE", false),
				PartSize:        int64(utils.GetEnvInt("S3_PART_SIZE", int(d.Storage.S3.PartSize))),
				Concurrency:     utils.GetEnvInt("S3_UPLOAD_CONCURRENCY", d.Storage.S3.Concurrency),
			},
		},

		// Ledger Configuration
		Ledger: LedgerConfig{
			Provider: utils.GetEnv("LEDGER_PROVIDER", d.Ledger.Provider),
			Table:    utils.GetEnv("DDB_TABLE_NAME", d.Ledger.Table),
			Postgres: PostgresConfig{
				Host:         utils.GetEnv("DB_HOST", ""),
				Port:         utils.GetEnvInt("DB_PORT", d.Ledger.Postgres.Port),
				Database:     utils.GetEnv("DB_NAME", "sfbackup"),
				Username:     utils.GetEnv("DB_USER", "postgres"),
				Password:     utils.GetEnv("DB_PASSWORD", ""),
				SSLMode:      utils.GetEnv("DB_SSL_MODE", d.Ledger.Postgres.SSLMode),
				Table:        utils.GetEnv("DB_TABLE_NAME", d.Ledger.Postgres.Table),
				MaxOpenConns: utils.GetEnvInt("DB_MAX_OPEN_CONNS", d.Ledger.Postgres.MaxOpenConns),
				MaxIdleConns: utils.GetEnvInt("DB_MAX_IDLE_CONNS", d.Ledger.Postgres.MaxIdleConns),
			},
		},

		// Backup Configuration
		Backup: BackupConfig{
			Stage:               utils.GetEnv("BACKUP_STAGE", ""),
			ObjectList:          utils.GetEnvList("SF_OBJECT_LIST", nil),
			CatalogFile:         utils.GetEnv("BACKUP_CATALOG_FILE", ""),
			Prefix:              utils.GetEnv("S3_PREFIX", d.Backup.Prefix),
			KeyDate:             utils.GetEnvBool("BACKUP_KEY_DATE", d.Backup.KeyDate),
			SkipEmpty:           utils.GetEnvBool("BACKUP_SKIP_EMPTY", d.Backup.SkipEmpty),
			DescribeFields:      utils.GetEnvBool("BACKUP_DESCRIBE_FIELDS", d.Backup.DescribeFields),
			DownloadConcurrency: utils.GetEnvInt("BACKUP_DOWNLOAD_CONCURRENCY", d.Backup.DownloadConcurrency),
			DownloadTimeout:     utils.GetEnvSeconds("TIMEOUT_DOWNLOAD_SECS", d.Backup.DownloadTimeout),
			MaxPages:            utils.GetEnvInt("BACKUP_MAX_PAGES", 0),
			MaxRecordsPerPage:   utils.GetEnvInt("BACKUP_MAX_RECORDS_PER_PAGE", d.Backup.MaxRecordsPerPage),
		},

		// Job events
		Events: EventsConfig{
			Provider: utils.GetEnv("EVENTS_PROVIDER", d.Events.Provider),
			Queue:    utils.GetEnv("EVENTS_QUEUE", ""),
		},

		// Lambda Configuration
		Lambda: LambdaConfig{
			Timeout:                   utils.GetEnvDuration("LAMBDA_TIMEOUT", 900*time.Second),
			EnablePartialBatchFailure: utils.GetEnvBool("LAMBDA_PARTIAL_BATCH_FAILURE", true),
		},

		// Handler Configuration
		Handler: HandlerConfig{
			Timeout:        utils.GetEnvDuration("HANDLER_TIMEOUT", 945*time.Second),
			MaxRequestSize: int64(utils.GetEnvInt("HANDLER_MAX_REQUEST_SIZE", int(d.Handler.MaxRequestSize))),
			EnableHealth:   utils.GetEnvBool("HANDLER_ENABLE_HEALTH", true),
			EnableMetrics:  utils.GetEnvBool("HANDLER_ENABLE_METRICS", true),
			EnableTracing:  utils.GetEnvBool("HANDLER_ENABLE_TRACING", true),
			Platform:       utils.GetEnv("HANDLER_PLATFORM", ""),
		},
	}

	return cfg, nil
}
