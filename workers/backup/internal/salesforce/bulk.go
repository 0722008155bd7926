package salesforce

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/balu-bunny/lambdaTest/workers/backup/internal/domain"
)

// ObjectDescription is the part of a describe answer the backup needs.
type ObjectDescription struct {
	Name      string
	Queryable bool
	Fields    []string
}

// ExportJob is a created Bulk API 2.0 query job. Record holds the full
// answer for the ledger.
type ExportJob struct {
	ID     string
	State  string
	Object string
	Record map[string]interface{}
}

// JobStatus is a polled export job.
type JobStatus struct {
	RemoteState      string
	State            domain.State
	ErrorMessage     string
	RecordsProcessed int64
	DownloadURLs     []string
	StreamResults    bool
}

// ResultPage is one page of a job's CSV results. Locator is empty once the
// last page was read. The caller closes Body.
type ResultPage struct {
	Body    io.ReadCloser
	Locator string
	Records int64
}

// CountRecords runs SELECT COUNT() FROM object.
func (c *Client) CountRecords(ctx context.Context, object string) (int64, error) {
	path := "query?q=" + url.QueryEscape("SELECT COUNT() FROM "+object)

	var out struct {
		TotalSize int64 `json:"totalSize"`
	}
	if err := c.getJSON(ctx, path, "count "+object, &out); err != nil {
		return 0, err
	}
	return out.TotalSize, nil
}

// DescribeObject returns whether object is queryable and its exportable
// fields. Compound address and location fields are left out since the
// Bulk API cannot export them.
func (c *Client) DescribeObject(ctx context.Context, object string) (*ObjectDescription, error) {
	var out struct {
		Name      string `json:"name"`
		Queryable bool   `json:"queryable"`
		Fields    []struct {
			Name string `json:"name"`
			Type string `json:"type"`
		} `json:"fields"`
	}
	if err := c.getJSON(ctx, "sobjects/"+url.PathEscape(object)+"/describe", "describe "+object, &out); err != nil {
		return nil, err
	}

	desc := &ObjectDescription{Name: out.Name, Queryable: out.Queryable}
	if desc.Name == "" {
		desc.Name = object
	}
	for _, f := range out.Fields {
		switch strings.ToLower(f.Type) {
		case "address", "location":
			continue
		}
		desc.Fields = append(desc.Fields, f.Name)
	}
	return desc, nil
}

// CreateExportJob submits a CSV query job for soql.
func (c *Client) CreateExportJob(ctx context.Context, object, soql string) (*ExportJob, error) {
	body, err := json.Marshal(map[string]string{
		"operation":   "query",
		"query":       soql,
		"contentType": "CSV",
		"lineEnding":  "LF",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode job request: %w", err)
	}

	resp, err := c.Do(ctx, http.MethodPost, "jobs/query", body, map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, err
	}
	if !isSuccess(resp.StatusCode) {
		return nil, remoteError(resp, "create export job for "+object)
	}
	defer resp.Body.Close()

	var record map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return nil, &domain.RemoteError{Op: "create export job for " + object, StatusCode: resp.StatusCode, Body: "unreadable job record: " + err.Error()}
	}

	job := &ExportJob{Record: record, Object: object}
	job.ID, _ = record["id"].(string)
	job.State, _ = record["state"].(string)
	if job.ID == "" {
		return nil, &domain.RemoteError{Op: "create export job for " + object, StatusCode: resp.StatusCode, Body: "job record has no id"}
	}
	return job, nil
}

// PollJobStatus reads the job state and, once complete, its result parts.
func (c *Client) PollJobStatus(ctx context.Context, jobID string) (*JobStatus, error) {
	var out struct {
		State                  string `json:"state"`
		ErrorMessage           string `json:"errorMessage"`
		NumberRecordsProcessed int64  `json:"numberRecordsProcessed"`
	}
	if err := c.getJSON(ctx, "jobs/query/"+url.PathEscape(jobID), "poll job "+jobID, &out); err != nil {
		return nil, err
	}

	status := &JobStatus{
		RemoteState:      out.State,
		State:            domain.CanonicalState(out.State),
		ErrorMessage:     out.ErrorMessage,
		RecordsProcessed: out.NumberRecordsProcessed,
		DownloadURLs:     []string{},
	}
	if status.State != domain.StateCompleted {
		return status, nil
	}

	urls, err := c.ListResultParts(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if len(urls) == 0 {
		status.StreamResults = true
	} else {
		status.DownloadURLs = urls
	}
	return status, nil
}

// ListResultParts asks for the result part URLs of a job. An answer that is
// not a JSON list of parts means results must be paged with FetchResults,
// and yields no URLs.
func (c *Client) ListResultParts(ctx context.Context, jobID string) ([]string, error) {
	resp, err := c.Do(ctx, http.MethodGet, "jobs/query/"+url.PathEscape(jobID)+"/results", nil, map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) || !strings.Contains(resp.Header.Get("Content-Type"), "json") {
		return nil, nil
	}

	var parts []struct {
		DownloadURL string `json:"downloadUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parts); err != nil {
		return nil, nil
	}

	urls := make([]string, 0, len(parts))
	for _, p := range parts {
		if p.DownloadURL != "" {
			urls = append(urls, p.DownloadURL)
		}
	}
	return urls, nil
}

// FetchResults reads one page of results starting at locator.
func (c *Client) FetchResults(ctx context.Context, jobID, locator string, maxRecords int) (*ResultPage, error) {
	query := url.Values{}
	if locator != "" {
		query.Set("locator", locator)
	}
	if maxRecords > 0 {
		query.Set("maxRecords", strconv.Itoa(maxRecords))
	}
	path := "jobs/query/" + url.PathEscape(jobID) + "/results"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	resp, err := c.Do(ctx, http.MethodGet, path, nil, map[string]string{"Accept": "text/csv"})
	if err != nil {
		return nil, err
	}
	if !isSuccess(resp.StatusCode) {
		return nil, remoteError(resp, "fetch results of "+jobID)
	}

	page := &ResultPage{Body: resp.Body}
	if next := resp.Header.Get("Sforce-Locator"); next != "" && next != "null" {
		page.Locator = next
	}
	if n, err := strconv.ParseInt(resp.Header.Get("Sforce-NumberOfRecords"), 10, 64); err == nil {
		page.Records = n
	}
	return page, nil
}

// FetchArtifact downloads rawURL. Relative URLs resolve against the
// instance; the bearer is attached only for the instance host and trusted
// suffixes. The caller closes the body.
func (c *Client) FetchArtifact(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	rawURL = strings.TrimSpace(rawURL)
	ref, err := url.Parse(rawURL)
	if err != nil || rawURL == "" {
		return nil, &domain.ValidationError{Field: "downloadUrls", Message: fmt.Sprintf("invalid url %q", rawURL)}
	}
	target := c.base.ResolveReference(ref)

	resp, err := c.do(ctx, http.MethodGet, target, nil, nil, c.trustedHost(target.Host))
	if err != nil {
		return nil, err
	}
	if !isSuccess(resp.StatusCode) {
		return nil, remoteError(resp, "fetch "+target.Redacted())
	}
	return resp.Body, nil
}

func (c *Client) getJSON(ctx context.Context, path, op string, v interface{}) error {
	resp, err := c.Do(ctx, http.MethodGet, path, nil, map[string]string{"Accept": "application/json"})
	if err != nil {
		return err
	}
	if !isSuccess(resp.StatusCode) {
		return remoteError(resp, op)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return &domain.RemoteError{Op: op, StatusCode: resp.StatusCode, Body: "unreadable answer: " + err.Error()}
	}
	return nil
}
