package stage

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"net/url"
	"strings"

	"github.com/balu-bunny/lambdaTest/shared/observability"
	storage "github.com/balu-bunny/lambdaTest/shared/storage/types"
	"github.com/balu-bunny/lambdaTest/workers/backup/internal/domain"
)

// Columns of a ContentVersion export that name a stored file.
const (
	fileIDColumn   = "Id"
	fileNameColumn = "PathOnClient"
)

const (
	contentVersionObject = "ContentVersion"
	fileDownloadPath     = "/sfc/servlet.shepherd/version/download/"
)

// ListFiles reads a ContentVersion export already in the object store and
// returns one "id/fileName" entry per row, ready to fan out to DownloadFile.
func (s *Stages) ListFiles(ctx context.Context, in domain.StageInput) (*domain.ListFilesOutput, error) {
	if in.S3Key == "" {
		return nil, &domain.ValidationError{Field: "s3Key", Message: "is required"}
	}

	body, err := s.store.Get(ctx, in.S3Key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, &domain.ValidationError{Field: "s3Key", Message: "no object at " + in.S3Key}
		}
		return nil, &domain.StorageError{Op: "read " + in.S3Key, Err: err}
	}
	defer body.Close()

	files, err := readFileList(body)
	if err != nil {
		s.logger.Error(ctx, "file list unreadable", err, observability.Fields{"key": in.S3Key})
		return nil, err
	}

	s.logger.Info(ctx, "files listed", observability.Fields{"key": in.S3Key, "files": len(files)})
	return &domain.ListFilesOutput{
		S3Key:          in.S3Key,
		Files:          files,
		RequestDetails: in.RequestDetails,
	}, nil
}

func readFileList(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return []string{}, nil
	}
	if err != nil {
		return nil, &domain.ValidationError{Field: "s3Key", Message: "not a csv file: " + err.Error()}
	}

	idCol, nameCol := -1, -1
	for i, col := range header {
		col = strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))
		switch {
		case strings.EqualFold(col, fileIDColumn):
			idCol = i
		case strings.EqualFold(col, fileNameColumn):
			nameCol = i
		}
	}
	if idCol < 0 {
		return nil, &domain.ValidationError{Field: "s3Key", Message: "csv has no " + fileIDColumn + " column"}
	}

	files := []string{}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return files, nil
		}
		if err != nil {
			return nil, &domain.ValidationError{Field: "s3Key", Message: "malformed csv: " + err.Error()}
		}
		if idCol >= len(record) {
			continue
		}
		id := strings.TrimSpace(record[idCol])
		if id == "" {
			continue
		}
		if nameCol >= 0 && nameCol < len(record) && strings.TrimSpace(record[nameCol]) != "" {
			id += "/" + strings.TrimSpace(record[nameCol])
		}
		files = append(files, id)
	}
}

// DownloadFile streams one ContentVersion body into the object store next to
// the export it was listed from: "{s3Key without .csv}/{id}_{fileName}".
func (s *Stages) DownloadFile(ctx context.Context, in domain.StageInput) (*domain.DownloadFileOutput, error) {
	if in.ContentVersionID == "" {
		return nil, &domain.ValidationError{Field: "contentVersionId", Message: "is required"}
	}
	ctx = observability.WithJob(ctx, contentVersionObject, in.ContentVersionID)

	remote, err := s.remote.Connect(ctx, in.RequestDetails)
	if err != nil {
		return nil, err
	}

	key := s.fileKey(in)
	body, err := remote.FetchArtifact(ctx, fileDownloadPath+url.PathEscape(in.ContentVersionID))
	if err != nil {
		s.metrics.RecordError("download_file", "fetch_failed")
		return nil, transient("fetch file "+in.ContentVersionID, err)
	}
	defer body.Close()

	res, err := s.store.Put(ctx, key, body, storage.ObjectMetadata{
		ContentType: "application/octet-stream",
		UserMetadata: map[string]string{
			"object-name":        contentVersionObject,
			"content-version-id": in.ContentVersionID,
		},
	})
	if err != nil {
		s.metrics.RecordError("download_file", "store_failed")
		return nil, transient("store file "+key, err)
	}

	var written int64
	if res != nil {
		written = res.Bytes
	}
	s.metrics.RecordFileSize("download_file", written)
	s.logger.Info(ctx, "file stored", observability.Fields{"key": key, "bytes": written})

	return &domain.DownloadFileOutput{
		ContentVersionID: in.ContentVersionID,
		S3Key:            key,
		Bytes:            written,
		RequestDetails:   in.RequestDetails,
	}, nil
}

func (s *Stages) fileKey(in domain.StageInput) string {
	dir := strings.TrimSuffix(strings.TrimSpace(in.S3Key), ".csv")
	if dir == "" {
		dir = s.keys.Dir(in.RequestDetails.OrgID(), contentVersionObject, s.now())
	}

	name := sanitize(in.ContentVersionID)
	if file := sanitize(in.FileName); file != "" {
		name += "_" + file
	}
	return dir + "/" + name
}
