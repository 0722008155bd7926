// Package stage implements the backup pipeline stages. Each stage runs to
// completion on its own; the only state shared between stages is the ledger
// row and what the orchestrator passes along.
package stage

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/balu-bunny/lambdaTest/shared/config"
	"github.com/balu-bunny/lambdaTest/shared/observability"
	storage "github.com/balu-bunny/lambdaTest/shared/storage/types"
	"github.com/balu-bunny/lambdaTest/workers/backup/internal/domain"
	"github.com/balu-bunny/lambdaTest/workers/backup/internal/events"
	"github.com/balu-bunny/lambdaTest/workers/backup/internal/ledger"
	"github.com/balu-bunny/lambdaTest/workers/backup/internal/salesforce"
)

// Remote is the part of the Salesforce client the stages call.
type Remote interface {
	CountRecords(ctx context.Context, object string) (int64, error)
	DescribeObject(ctx context.Context, object string) (*salesforce.ObjectDescription, error)
	CreateExportJob(ctx context.Context, object, soql string) (*salesforce.ExportJob, error)
	PollJobStatus(ctx context.Context, jobID string) (*salesforce.JobStatus, error)
	FetchResults(ctx context.Context, jobID, locator string, maxRecords int) (*salesforce.ResultPage, error)
	FetchArtifact(ctx context.Context, rawURL string) (io.ReadCloser, error)
}

// Connector opens a Remote for the tenant named in requestDetails.
type Connector interface {
	Connect(ctx context.Context, details domain.RequestDetails) (Remote, error)
}

// ConnectFunc adapts a function to Connector.
type ConnectFunc func(ctx context.Context, details domain.RequestDetails) (Remote, error)

func (f ConnectFunc) Connect(ctx context.Context, details domain.RequestDetails) (Remote, error) {
	return f(ctx, details)
}

// SalesforceConnector serves Remotes from a salesforce.Connector.
func SalesforceConnector(c *salesforce.Connector) Connector {
	return ConnectFunc(func(ctx context.Context, details domain.RequestDetails) (Remote, error) {
		client, err := c.Connect(ctx, details)
		if err != nil {
			return nil, err
		}
		return client, nil
	})
}

// ObjectLister returns the objects to back up for an org.
type ObjectLister interface {
	Objects(orgID string) []string
}

// Deps wires the stages.
type Deps struct {
	Remote  Connector
	Storage storage.ObjectStorage
	Ledger  ledger.Ledger
	Objects ObjectLister
	Events  events.Publisher
	Config  config.BackupConfig
	Logger  observability.Logger
	Metrics observability.Metrics

	// Now and NewID default to time.Now and uuid.NewString.
	Now   func() time.Time
	NewID func() string
}

// Stages runs the pipeline stages.
type Stages struct {
	remote  Connector
	store   storage.ObjectStorage
	ledger  ledger.Ledger
	objects ObjectLister
	events  events.Publisher
	cfg     config.BackupConfig
	keys    KeyBuilder
	logger  observability.Logger
	metrics observability.Metrics
	now     func() time.Time
	newID   func() string
}

// New creates the stages.
func New(d Deps) *Stages {
	s := &Stages{
		remote:  d.Remote,
		store:   d.Storage,
		ledger:  d.Ledger,
		objects: d.Objects,
		events:  d.Events,
		cfg:     d.Config,
		keys:    KeyBuilder{Prefix: d.Config.Prefix, Date: d.Config.KeyDate},
		logger:  d.Logger,
		metrics: d.Metrics,
		now:     d.Now,
		newID:   d.NewID,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.events == nil {
		s.events = events.Nop{}
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.cfg.DownloadConcurrency < 1 {
		s.cfg.DownloadConcurrency = 1
	}
	return s
}

func (s *Stages) timestamp() string {
	return domain.Timestamp(s.now())
}

func requireJob(in domain.StageInput) error {
	if in.ObjectName == "" {
		return &domain.ValidationError{Field: "objectName", Message: "is required"}
	}
	if in.JobID == "" {
		return &domain.ValidationError{Field: "jobId", Message: "is required"}
	}
	return nil
}

// tenantFields tags ledger rows with the org they belong to.
func tenantFields(details domain.RequestDetails, extra map[string]interface{}) map[string]interface{} {
	if org := details.OrgID(); org != "" {
		extra["orgId"] = org
	}
	return extra
}
