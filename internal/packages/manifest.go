package packages

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/GonzoDMX/artifact-index/internal/ingest"
)

// Manifest is the subset of package.json the index uses.
type Manifest struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Title        string   `json:"title"`
	Date         string   `json:"date"`
	Canonical    string   `json:"canonical"`
	URL          string   `json:"url"`
	FHIRVersions []string `json:"fhirVersions"`
	// older packages
	FHIRVersionList []string `json:"fhir-version-list"`
}

// ParseManifest reads package.json.
func ParseManifest(raw []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("invalid package.json: %w", err)
	}
	if m.Name == "" || m.Version == "" {
		return nil, fmt.Errorf("package.json has no name or version")
	}
	return &m, nil
}

// PID is the package identifier, name#version.
func (m *Manifest) PID() string {
	return m.Name + "#" + m.Version
}

// Versions returns the declared schema versions.
func (m *Manifest) Versions() []string {
	if len(m.FHIRVersions) > 0 {
		return m.FHIRVersions
	}
	return m.FHIRVersionList
}

// SchemaVersion is the version tag artifacts of the package are decoded at.
func (m *Manifest) SchemaVersion() string {
	if v := m.Versions(); len(v) > 0 {
		return v[0]
	}
	return ""
}

// Info converts the manifest into the ingestion package description.
func (m *Manifest) Info(raw []byte) ingest.PackageInfo {
	return ingest.PackageInfo{
		PID:          m.PID(),
		Name:         m.Name,
		Version:      m.Version,
		Title:        m.Title,
		Date:         m.Date,
		Canonical:    m.Canonical,
		Web:          m.URL,
		FHIRVersions: strings.Join(m.Versions(), ","),
		Manifest:     raw,
	}
}
