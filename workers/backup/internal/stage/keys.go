package stage

import (
	"path"
	"strconv"
	"strings"
	"time"
)

// KeyBuilder lays out object keys as
// {prefix}/{orgId?}/{date?}/{objectName}/{jobId}[suffix].csv.
type KeyBuilder struct {
	Prefix string
	Date   bool
}

// Dir returns the directory every artifact of one job is written under.
func (b KeyBuilder) Dir(orgID, objectName string, now time.Time) string {
	parts := make([]string, 0, 4)
	for _, p := range strings.Split(b.Prefix, "/") {
		if seg := sanitize(p); seg != "" {
			parts = append(parts, seg)
		}
	}
	if org := sanitize(orgID); org != "" {
		parts = append(parts, org)
	}
	if b.Date {
		parts = append(parts, now.UTC().Format("2006-01-02"))
	}
	obj := sanitize(objectName)
	if obj == "" {
		obj = "unknown"
	}
	parts = append(parts, obj)
	return strings.Join(parts, "/")
}

// PartKey names partition index (0-based) of total URL-mode parts.
func PartKey(dir, jobID string, index, total int) string {
	name := sanitize(jobID)
	if total > 1 {
		name += "_part" + strconv.Itoa(index+1)
	}
	return path.Join(dir, name+".csv")
}

// PageKey names a stream-mode page read from locator.
func PageKey(dir, jobID, locator string, records int64) string {
	from := sanitize(locator)
	if from == "" {
		from = "first"
	}
	return path.Join(dir, sanitize(jobID)+"_"+from+"_"+strconv.FormatInt(records, 10)+".csv")
}

// sanitize makes s safe as a single key segment.
func sanitize(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "..", "")
	s = strings.Trim(s, "/")
	return strings.ReplaceAll(s, "/", "_")
}
