package domain

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
)

// RequestDetails is the tenant block the orchestrator threads through every
// stage. It is kept as raw JSON so it comes back out exactly as it went in.
type RequestDetails json.RawMessage

// MarshalJSON writes the stored JSON as is.
func (d RequestDetails) MarshalJSON() ([]byte, error) {
	if len(d) == 0 {
		return []byte("null"), nil
	}
	return []byte(d), nil
}

// UnmarshalJSON keeps a copy of the raw value.
func (d *RequestDetails) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*d = nil
		return nil
	}
	*d = append((*d)[:0], data...)
	return nil
}

// OrgID returns requestDetails.orgId, or "" when absent.
func (d RequestDetails) OrgID() string {
	if len(d) == 0 {
		return ""
	}
	var head struct {
		OrgID string `json:"orgId"`
	}
	if err := json.Unmarshal(d, &head); err != nil {
		return ""
	}
	return strings.TrimSpace(head.OrgID)
}

// JobRef is the nested backupJob shape.
type JobRef struct {
	ObjectName string `json:"objectName,omitempty"`
	JobID      string `json:"jobId,omitempty"`
}

// StatusRef is the nested status shape CheckStatus results are stored in.
type StatusRef struct {
	State         string          `json:"state,omitempty"`
	DownloadURLs  []string        `json:"downloadUrls,omitempty"`
	StreamResults bool            `json:"streamResults,omitempty"`
	Error         json.RawMessage `json:"error,omitempty"`
}

// UnmarshalJSON also accepts a bare string, the shape Download emits
// ("Completed" or "Partial") and callers use for a plain state.
func (r *StatusRef) UnmarshalJSON(data []byte) error {
	var state string
	if err := json.Unmarshal(data, &state); err == nil {
		*r = StatusRef{State: state}
		return nil
	}
	type plain StatusRef
	return json.Unmarshal(data, (*plain)(r))
}

// DownloadRef is the nested downloadResult shape.
type DownloadRef struct {
	S3Keys []string `json:"s3Keys,omitempty"`
}

// StageInput is the union of every stage input.
type StageInput struct {
	ObjectName     string          `json:"objectName,omitempty"`
	JobID          string          `json:"jobId,omitempty"`
	DownloadURLs   []string        `json:"downloadUrls,omitempty"`
	StreamResults  bool            `json:"streamResults,omitempty"`
	Locator        string          `json:"locator,omitempty"`
	S3Keys         []string        `json:"s3Keys,omitempty"`
	Error          json.RawMessage `json:"error,omitempty"`
	RequestDetails RequestDetails  `json:"requestDetails,omitempty"`

	// File stages.
	S3Key            string `json:"s3Key,omitempty"`
	ContentVersionID string `json:"contentVersionId,omitempty"`
	FileName         string `json:"fileName,omitempty"`

	BackupJob      *JobRef      `json:"backupJob,omitempty"`
	Status         *StatusRef   `json:"status,omitempty"`
	DownloadResult *DownloadRef `json:"downloadResult,omitempty"`
}

// Normalize fills empty flat fields from the nested shapes.
func (in *StageInput) Normalize() {
	in.ObjectName = strings.TrimSpace(in.ObjectName)
	in.JobID = strings.TrimSpace(in.JobID)
	in.S3Key = strings.TrimSpace(in.S3Key)
	in.ContentVersionID = strings.TrimSpace(in.ContentVersionID)

	if in.BackupJob != nil {
		if in.ObjectName == "" {
			in.ObjectName = strings.TrimSpace(in.BackupJob.ObjectName)
		}
		if in.JobID == "" {
			in.JobID = strings.TrimSpace(in.BackupJob.JobID)
		}
	}

	if in.Status != nil {
		if len(in.DownloadURLs) == 0 {
			in.DownloadURLs = in.Status.DownloadURLs
		}
		if !in.StreamResults {
			in.StreamResults = in.Status.StreamResults
		}
		if isEmptyJSON(in.Error) {
			in.Error = in.Status.Error
		}
	}

	if in.DownloadResult != nil && len(in.S3Keys) == 0 {
		in.S3Keys = in.DownloadResult.S3Keys
	}

	if in.S3Key == "" && len(in.S3Keys) > 0 {
		in.S3Key = strings.TrimSpace(in.S3Keys[0])
	}
	if in.FileName == "" {
		if id, name, ok := strings.Cut(in.ContentVersionID, "/"); ok {
			in.ContentVersionID, in.FileName = id, name
		}
	}
}

// ErrorText renders the error diagnostic as a string. A JSON string is
// unquoted, a Step Functions Catch payload yields "Error: Cause", anything
// else is kept as compact JSON.
func (in *StageInput) ErrorText() string {
	if isEmptyJSON(in.Error) {
		return ""
	}

	var s string
	if err := json.Unmarshal(in.Error, &s); err == nil {
		return s
	}

	var caught struct {
		Error string `json:"Error"`
		Cause string `json:"Cause"`
	}
	if err := json.Unmarshal(in.Error, &caught); err == nil && (caught.Error != "" || caught.Cause != "") {
		switch {
		case caught.Error == "":
			return caught.Cause
		case caught.Cause == "":
			return caught.Error
		default:
			return caught.Error + ": " + caught.Cause
		}
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, in.Error); err != nil {
		return string(in.Error)
	}
	return buf.String()
}

// DecodeStageInputLenient decodes what it can of data. Each top-level field
// is decoded on its own and a field of the wrong shape is skipped, so a
// failure handler still learns the job identity from a malformed payload.
// It reports the fields it skipped.
func DecodeStageInputLenient(data []byte) (StageInput, []string) {
	var in StageInput
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return in, []string{"payload"}
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var skipped []string
	for _, name := range names {
		single, err := json.Marshal(map[string]json.RawMessage{name: fields[name]})
		if err != nil {
			skipped = append(skipped, name)
			continue
		}
		var one StageInput
		if err := json.Unmarshal(single, &one); err != nil {
			skipped = append(skipped, name)
			continue
		}
		if err := json.Unmarshal(single, &in); err != nil {
			skipped = append(skipped, name)
		}
	}
	return in, skipped
}

func isEmptyJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// ListObjectsOutput is the ListObjects result.
type ListObjectsOutput struct {
	Objects        []string       `json:"objects"`
	RequestDetails RequestDetails `json:"requestDetails,omitempty"`
}

// InitJobOutput is the InitJob result.
type InitJobOutput struct {
	ObjectName     string         `json:"objectName"`
	JobID          string         `json:"jobId"`
	State          State          `json:"state"`
	CreatedAt      string         `json:"createdAt"`
	RecordCount    int64          `json:"recordCount"`
	Note           string         `json:"note,omitempty"`
	RequestDetails RequestDetails `json:"requestDetails,omitempty"`
}

// CheckStatusOutput is the CheckStatus result.
type CheckStatusOutput struct {
	ObjectName     string         `json:"objectName"`
	JobID          string         `json:"jobId"`
	State          State          `json:"state"`
	DownloadURLs   []string       `json:"downloadUrls"`
	StreamResults  bool           `json:"streamResults"`
	Error          string         `json:"error,omitempty"`
	RequestDetails RequestDetails `json:"requestDetails,omitempty"`
}

// Download statuses.
const (
	DownloadCompleted = "Completed"
	DownloadPartial   = "Partial"
)

// DownloadOutput is the Download result.
type DownloadOutput struct {
	ObjectName     string         `json:"objectName"`
	JobID          string         `json:"jobId"`
	S3Keys         []string       `json:"s3Keys"`
	Status         string         `json:"status"`
	Locator        string         `json:"locator,omitempty"`
	// StreamResults is set on a Partial result so it can be fed back to
	// Download as is.
	StreamResults  bool           `json:"streamResults,omitempty"`
	RequestDetails RequestDetails `json:"requestDetails,omitempty"`
}

// MarkOutput is the MarkCompleted and MarkFailed result.
type MarkOutput struct {
	OK             bool           `json:"ok"`
	ObjectName     string         `json:"objectName"`
	JobID          string         `json:"jobId"`
	State          State          `json:"state"`
	RequestDetails RequestDetails `json:"requestDetails,omitempty"`
}

// ListFilesOutput is the ListFiles result. Each file is
// "contentVersionId/fileName", the shape DownloadFile accepts.
type ListFilesOutput struct {
	S3Key          string         `json:"s3Key"`
	Files          []string       `json:"files"`
	RequestDetails RequestDetails `json:"requestDetails,omitempty"`
}

// DownloadFileOutput is the DownloadFile result.
type DownloadFileOutput struct {
	ContentVersionID string         `json:"contentVersionId"`
	S3Key            string         `json:"s3Key"`
	Bytes            int64          `json:"bytes"`
	RequestDetails   RequestDetails `json:"requestDetails,omitempty"`
}
