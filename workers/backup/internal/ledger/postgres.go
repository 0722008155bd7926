package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/balu-bunny/lambdaTest/shared/config"
	"github.com/balu-bunny/lambdaTest/shared/observability/types"
	"github.com/balu-bunny/lambdaTest/workers/backup/internal/domain"
)

// DefaultPostgresTable is the table the postgres ledger writes to.
const DefaultPostgresTable = "backup_jobs"

// Execer runs a statement. *sqlx.DB satisfies it.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// OpenPostgres connects and pings the database.
func OpenPostgres(ctx context.Context, cfg config.PostgresConfig) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// PostgresLedger keeps the core attributes in columns and the rest of the
// item in a JSONB column.
type PostgresLedger struct {
	db      Execer
	table   string
	qb      squirrel.StatementBuilderType
	logger  types.Logger
	metrics types.Metrics
	now     func() time.Time
}

// NewPostgresLedger creates a ledger on table (DefaultPostgresTable when
// empty).
func NewPostgresLedger(db Execer, table string, logger types.Logger, metrics types.Metrics) *PostgresLedger {
	if table == "" {
		table = DefaultPostgresTable
	}
	return &PostgresLedger{
		db:      db,
		table:   table,
		qb:      squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// EnsureSchema creates the table when missing.
func (l *PostgresLedger) EnsureSchema(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	pk          TEXT PRIMARY KEY,
	object_name TEXT NOT NULL,
	job_id      TEXT NOT NULL,
	state       TEXT NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL,
	attributes  JSONB NOT NULL DEFAULT '{}'::jsonb
)`, l.table))
	if err != nil {
		return fmt.Errorf("create %s: %w", l.table, err)
	}
	return nil
}

func (l *PostgresLedger) PutStatus(ctx context.Context, objectName, jobID string, state domain.State, extra map[string]interface{}) error {
	start := time.Now()

	query, args, err := l.upsert(BuildItem(objectName, jobID, state, extra, l.now()))
	if err != nil {
		l.metrics.RecordError("ledger_put", "build_query")
		return storageError(objectName, jobID, err)
	}

	_, err = l.db.ExecContext(ctx, query, args...)
	l.metrics.RecordDuration("ledger_put", time.Since(start).Seconds())
	if err != nil {
		l.metrics.RecordError("ledger_put", "exec")
		l.logger.Error(ctx, "Failed to write job status", err, types.Fields{
			"table": l.table,
			"state": string(state),
		})
		return storageError(objectName, jobID, err)
	}

	l.metrics.RecordSuccess("ledger_put")
	return nil
}

func (l *PostgresLedger) upsert(item Item) (string, []interface{}, error) {
	attributes := make(map[string]interface{}, len(item))
	for k, v := range item {
		switch k {
		case AttrPK, AttrObjectName, AttrJobID, AttrState, AttrUpdatedAt:
			continue
		}
		attributes[k] = v
	}
	attrJSON, err := json.Marshal(attributes)
	if err != nil {
		return "", nil, fmt.Errorf("encode attributes: %w", err)
	}

	return l.qb.
		Insert(l.table).
		Columns("pk", "object_name", "job_id", "state", "updated_at", "attributes").
		Values(item[AttrPK], item[AttrObjectName], item[AttrJobID], item[AttrState], item[AttrUpdatedAt], string(attrJSON)).
		Suffix("ON CONFLICT (pk) DO UPDATE SET " +
			"object_name = EXCLUDED.object_name, " +
			"job_id = EXCLUDED.job_id, " +
			"state = EXCLUDED.state, " +
			"updated_at = EXCLUDED.updated_at, " +
			"attributes = EXCLUDED.attributes").
		ToSql()
}

// Close closes the underlying database when it is closable.
func (l *PostgresLedger) Close() error {
	if c, ok := l.db.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
