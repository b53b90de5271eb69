package config

import (
	"fmt"
)

type CompatibilityStatus string

const (
	StatusCompatible      CompatibilityStatus = "compatible"
	StatusUpdateAvailable CompatibilityStatus = "update_available" // built by another app version, same layout
	StatusIncompatible    CompatibilityStatus = "incompatible"     // layout differs or the run never finished
)

// StoreState represents the stamped metadata read back from a store
type StoreState struct {
	AppVersion    string
	SchemaVersion string
	Compression   string
	SearchModule  string
	RunID         string
	Date          string

	// Finished is true once the run summary has been written.
	Finished bool
}

// CheckCompatibility compares a store's state against the App's defaults
func CheckCompatibility(s StoreState) (CompatibilityStatus, []string) {
	var issues []string
	status := StatusCompatible
	want := CurrentDefaults.Store

	// 1. CRITICAL CHECK: store layout
	// Readers rely on the table layout and on the blob codec.
	if s.SchemaVersion != want.SchemaVersion ||
		s.Compression != want.Compression ||
		s.SearchModule != want.SearchModule {

		status = StatusIncompatible
		issues = append(issues, fmt.Sprintf(
			"Store Format Mismatch: store has schema %s (%s, %s), App requires schema %s (%s, %s)",
			s.SchemaVersion, s.Compression, s.SearchModule,
			want.SchemaVersion, want.Compression, want.SearchModule,
		))
	}

	// 2. CRITICAL CHECK: unfinished run
	// The summary rows are missing; counts and governance tables are empty.
	if !s.Finished {
		status = StatusIncompatible
		issues = append(issues, fmt.Sprintf("Unfinished Run: run %s never wrote its summary", s.RunID))
	}

	// 3. NON-CRITICAL CHECK: app version
	if s.AppVersion != CurrentDefaults.AppVersion {
		if status == StatusCompatible {
			status = StatusUpdateAvailable
		}
		issues = append(issues, fmt.Sprintf(
			"App Version: store built by %s, App is %s",
			s.AppVersion, CurrentDefaults.AppVersion,
		))
	}

	return status, issues
}
