package stage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/balu-bunny/lambdaTest/shared/observability"
	storage "github.com/balu-bunny/lambdaTest/shared/storage/types"
	"github.com/balu-bunny/lambdaTest/workers/backup/internal/domain"
)

const noArtifactsNote = "No artifacts to download"

// Download copies a finished job's results into the object store. With
// downloadUrls every part is fetched in parallel; with streamResults the
// results endpoint is paged from the input locator. A Partial result is
// resumed by feeding its output back in: the locator selects stream mode and
// the keys already written are carried into the result. The stage runs under
// the configured wall-clock budget and never reports Downloaded once it
// has been exceeded.
func (s *Stages) Download(ctx context.Context, in domain.StageInput) (*domain.DownloadOutput, error) {
	if err := requireJob(in); err != nil {
		return nil, err
	}
	ctx = observability.WithJob(ctx, in.ObjectName, in.JobID)

	resuming := in.Locator != ""
	if len(in.DownloadURLs) == 0 && !in.StreamResults && !resuming {
		return s.nothingToDownload(ctx, in)
	}

	start := s.now()
	budget := s.cfg.DownloadTimeout
	if budget <= 0 {
		budget = 15 * time.Minute
	}
	runCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	remote, err := s.remote.Connect(runCtx, in.RequestDetails)
	if err != nil {
		return nil, err
	}

	dir := s.keys.Dir(in.RequestDetails.OrgID(), in.ObjectName, s.now())

	var (
		keys    []string
		status  = domain.DownloadCompleted
		locator string
	)
	if len(in.DownloadURLs) > 0 {
		keys, err = s.downloadParts(runCtx, remote, in, dir)
	} else {
		keys, locator, err = s.downloadPages(runCtx, remote, in, dir)
		if locator != "" {
			status = domain.DownloadPartial
		}
		if resuming && err == nil {
			keys = appendNew(in.S3Keys, keys)
		}
	}

	if ctxErr := runCtx.Err(); ctxErr != nil && ctx.Err() == nil {
		err = &domain.TransientError{Op: "download " + in.ObjectName + " exceeded " + budget.String(), Err: ctxErr}
	}
	if err != nil {
		s.metrics.RecordError("download", "download_failed")
		s.logger.Error(ctx, "download failed", err, observability.Fields{"written": len(keys)})
		return nil, err
	}

	state := domain.StateDownloaded
	extra := tenantFields(in.RequestDetails, map[string]interface{}{
		"s3Keys":       keys,
		"downloadedAt": s.timestamp(),
	})
	if status == domain.DownloadPartial {
		state = domain.StateInProgress
		extra["locator"] = locator
	}
	if err := s.ledger.PutStatus(ctx, in.ObjectName, in.JobID, state, extra); err != nil {
		s.logger.Error(ctx, "ledger write failed", err, nil)
		return nil, err
	}

	s.metrics.RecordDuration("download", s.now().Sub(start).Seconds())
	s.logger.Info(ctx, "download finished", observability.Fields{"keys": len(keys), "status": status})

	return &domain.DownloadOutput{
		ObjectName:     in.ObjectName,
		JobID:          in.JobID,
		S3Keys:         keys,
		Status:         status,
		Locator:        locator,
		StreamResults:  status == domain.DownloadPartial,
		RequestDetails: in.RequestDetails,
	}, nil
}

// appendNew returns prior followed by the keys of next it does not already
// hold. A replayed page overwrites the same key, so it is listed once.
func appendNew(prior, next []string) []string {
	out := make([]string, 0, len(prior)+len(next))
	seen := make(map[string]bool, len(prior)+len(next))
	for _, list := range [][]string{prior, next} {
		for _, key := range list {
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, key)
		}
	}
	return out
}

func (s *Stages) nothingToDownload(ctx context.Context, in domain.StageInput) (*domain.DownloadOutput, error) {
	extra := tenantFields(in.RequestDetails, map[string]interface{}{
		"s3Keys":      []string{},
		"note":        noArtifactsNote,
		"completedAt": s.timestamp(),
	})
	if err := s.ledger.PutStatus(ctx, in.ObjectName, in.JobID, domain.StateCompleted, extra); err != nil {
		s.logger.Error(ctx, "ledger write failed", err, nil)
		return nil, err
	}

	s.logger.Info(ctx, noArtifactsNote, nil)
	return &domain.DownloadOutput{
		ObjectName:     in.ObjectName,
		JobID:          in.JobID,
		S3Keys:         []string{},
		Status:         domain.DownloadCompleted,
		RequestDetails: in.RequestDetails,
	}, nil
}

// downloadParts fetches every URL with at most DownloadConcurrency in
// flight. keys[i] always belongs to DownloadURLs[i].
func (s *Stages) downloadParts(ctx context.Context, remote Remote, in domain.StageInput, dir string) ([]string, error) {
	total := len(in.DownloadURLs)
	keys := make([]string, total)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.DownloadConcurrency)

	for i, u := range in.DownloadURLs {
		g.Go(func() error {
			key := PartKey(dir, in.JobID, i, total)
			if err := s.copyPart(gctx, remote, in, u, key, i+1); err != nil {
				return transient(fmt.Sprintf("download part %d of %s", i+1, in.JobID), err)
			}
			keys[i] = key
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return keys, nil
}

func (s *Stages) copyPart(ctx context.Context, remote Remote, in domain.StageInput, rawURL, key string, part int) error {
	body, err := remote.FetchArtifact(ctx, rawURL)
	if err != nil {
		return err
	}
	defer body.Close()

	res, err := s.store.Put(ctx, key, body, s.metadata(in, strconv.Itoa(part)))
	if err != nil {
		return err
	}
	if res != nil {
		s.logger.Debug(ctx, "part stored", observability.Fields{"key": key, "bytes": res.Bytes})
	}
	return nil
}

// downloadPages pages the results endpoint. It returns the locator to
// resume from when MaxPages stopped it early.
func (s *Stages) downloadPages(ctx context.Context, remote Remote, in domain.StageInput, dir string) ([]string, string, error) {
	keys := []string{}
	locator := in.Locator

	for pages := 0; ; pages++ {
		if s.cfg.MaxPages > 0 && pages >= s.cfg.MaxPages {
			return keys, locator, nil
		}

		page, err := remote.FetchResults(ctx, in.JobID, locator, s.cfg.MaxRecordsPerPage)
		if err != nil {
			return keys, "", transient("fetch results page of "+in.JobID, err)
		}

		key := PageKey(dir, in.JobID, locator, page.Records)
		_, err = s.store.Put(ctx, key, page.Body, s.metadata(in, strconv.Itoa(pages+1)))
		page.Body.Close()
		if err != nil {
			return keys, "", transient("store results page "+key, err)
		}
		keys = append(keys, key)

		if page.Locator == "" {
			return keys, "", nil
		}
		locator = page.Locator
	}
}

func (s *Stages) metadata(in domain.StageInput, part string) storage.ObjectMetadata {
	return storage.ObjectMetadata{
		ContentType: "text/csv",
		UserMetadata: map[string]string{
			"object-name": in.ObjectName,
			"job-id":      in.JobID,
			"part":        part,
		},
	}
}

// transient marks a download failure retryable. Auth failures stay fatal.
func transient(op string, err error) error {
	var authErr *domain.AuthError
	if errors.As(err, &authErr) {
		return err
	}
	var t *domain.TransientError
	if errors.As(err, &t) {
		return err
	}
	return &domain.TransientError{Op: op, Err: err}
}
