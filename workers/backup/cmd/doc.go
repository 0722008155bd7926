/*
Command sfbackup runs the Salesforce backup pipeline stages.

An external orchestrator (a Step Functions state machine in production)
drives one backup per object through a fixed sequence of stages:

	ListObjects -> InitJob -> CheckStatus (loop) -> Download -> MarkCompleted
	                                                         \-> MarkFailed

A ContentVersion export can be followed by ListFiles, which reads the
export back, and one DownloadFile per listed file.

Every stage is invoked on its own, keeps no state between invocations and
records progress in the status ledger, keyed objectName#jobId.

Layout

	├── cmd/                   # this binary (cobra)
	├── internal/
	│   ├── domain/            # BackupJob, State, stage records, error taxonomy
	│   ├── salesforce/        # token sources, REST client, Bulk API 2.0 queries
	│   ├── ledger/            # DynamoDB, PostgreSQL and in-memory status ledgers
	│   ├── catalog/           # which objects each org backs up
	│   ├── events/            # backup.completed / backup.failed publishers
	│   ├── stage/             # the stage functions
	│   └── worker/            # handler.Worker dispatching on the stage name
	└── mocks/                 # testify mocks of the stage dependencies

Usage

On AWS Lambda one function serves one stage. The stage comes from
BACKUP_STAGE or the function name suffix ("sfbackup-prod-download" serves
download):

	sfbackup lambda

Locally every stage is served over HTTP, together with /health and
/metrics:

	sfbackup serve --addr :8080
	curl -XPOST localhost:8080/initjob -d '{"objectName":"Account"}'

A single stage can also be run from the shell:

	sfbackup invoke checkstatus -i '{"objectName":"Account","jobId":"750xx"}'

Errors

Failures come back typed: AuthError, RemoteError, TransientError,
StorageError and ValidationError. On Lambda the name is the errorType so the
state machine can Retry or Catch on it; over HTTP it is returned as
{"status":"Error","error":"..."}. MarkFailed never fails.

Configuration

Settings are read from the environment and optional .env files; see
shared/config for the full list. The usual ones are SF_INSTANCE_URL,
SF_AUTH_METHOD, SF_ACCESS_TOKEN, S3_BUCKET, S3_PREFIX, DDB_TABLE_NAME, DB_TABLE_NAME,
SF_OBJECT_LIST and TIMEOUT_DOWNLOAD_SECS. Set EVENTS_PROVIDER=sqs and
EVENTS_QUEUE to announce finished backups on a queue.
*/
package main
