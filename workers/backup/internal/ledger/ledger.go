// Package ledger records backup job status. Every write is an upsert keyed
// by objectName#jobId, so replaying a stage overwrites instead of
// duplicating.
package ledger

import (
	"context"
	"time"

	"github.com/balu-bunny/lambdaTest/workers/backup/internal/domain"
)

// Ledger is the status table.
type Ledger interface {
	// PutStatus upserts the job row. Failures are *domain.StorageError.
	PutStatus(ctx context.Context, objectName, jobID string, state domain.State, extra map[string]interface{}) error
}

// Item is one ledger row.
type Item map[string]interface{}

// Core attribute names. They always win over same-named extras.
const (
	AttrPK         = "pk"
	AttrObjectName = "objectName"
	AttrJobID      = "jobId"
	AttrState      = "state"
	AttrUpdatedAt  = "updatedAt"
)

// BuildItem merges extra under the core attributes.
func BuildItem(objectName, jobID string, state domain.State, extra map[string]interface{}, now time.Time) Item {
	item := make(Item, len(extra)+5)
	for k, v := range extra {
		item[k] = v
	}
	item[AttrPK] = domain.Key(objectName, jobID)
	item[AttrObjectName] = objectName
	item[AttrJobID] = jobID
	item[AttrState] = string(state)
	item[AttrUpdatedAt] = domain.Timestamp(now)
	return item
}

func storageError(objectName, jobID string, err error) error {
	return &domain.StorageError{Op: "put status " + domain.Key(objectName, jobID), Err: err}
}
