// Package catalog decides which objects are backed up for an org.
package catalog

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Org is one org entry of the catalog file.
type Org struct {
	InstanceURL string   `yaml:"instanceUrl"`
	Objects     []string `yaml:"objects"`
}

// File is the YAML catalog:
//
//	default:
//	  objects: [Account, Contact]
//	orgs:
//	  acme.my.salesforce.com:
//	    instanceUrl: https://acme.my.salesforce.com
//	    objects: [Account, Case]
type File struct {
	Default Org            `yaml:"default"`
	Orgs    map[string]Org `yaml:"orgs"`
}

// Load reads and parses a catalog file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes catalog YAML. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return &f, nil
}

// Objects returns the list for orgID, falling back to the default entry.
func (f *File) Objects(orgID string) []string {
	if f == nil {
		return nil
	}
	if org, ok := f.Orgs[orgID]; ok && len(org.Objects) > 0 {
		return org.Objects
	}
	return f.Default.Objects
}

// InstanceURL returns the configured instance of orgID, or "".
func (f *File) InstanceURL(orgID string) string {
	if f == nil {
		return ""
	}
	return strings.TrimSpace(f.Orgs[orgID].InstanceURL)
}

// Resolver picks the object list: the explicit list when set, else the
// catalog file, else Defaults.
type Resolver struct {
	Explicit []string
	File     *File
	Defaults []string
}

// Objects returns the ordered, de-duplicated object names for orgID.
func (r Resolver) Objects(orgID string) []string {
	for _, candidate := range [][]string{r.Explicit, r.File.Objects(orgID), r.Defaults} {
		if names := Dedupe(candidate); len(names) > 0 {
			return names
		}
	}
	return []string{}
}

// Dedupe trims names, drops blanks and keeps the first occurrence.
func Dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
