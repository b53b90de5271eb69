package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GonzoDMX/artifact-index/internal/classify"
	"github.com/GonzoDMX/artifact-index/internal/config"
)

var runDate = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *Manager {
	t.Helper()
	m, err := Create(filepath.Join(t.TempDir(), "artifacts.db"), "run-1", runDate)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func samplePackage() PackageRow {
	return PackageRow{
		PID:          "acme.core#1.0.0",
		ID:           "acme.core",
		Title:        "Acme Core",
		Canonical:    "http://acme.org/fhir",
		Web:          "http://acme.org/fhir/1.0.0",
		Version:      "1.0.0",
		FHIRVersions: "4.0.1,5.0.0",
		Manifest:     []byte(`{"name":"acme.core"}`),
	}
}

func sampleResource(pkg int64) ResourceRow {
	details := "2"
	return ResourceRow{
		PackageKey:     pkg,
		ResourceType:   "CodeSystem",
		NormalizedType: "CodeSystem",
		ID:             "colors",
		SchemaVersion:  "4.0.1",
		Web:            "http://acme.org/fhir/1.0.0/CodeSystem-colors.html",
		URL:            "http://acme.org/fhir/CodeSystem/colors",
		Status:         "active",
		Name:           "Colors",
		Title:          "Paint Colors",
		Description:    "Colors used by the paint catalogue",
		Content:        "complete",
		Details:        &details,
		Source:         []byte(`{"resourceType":"CodeSystem","id":"colors"}`),
		Normalized:     []byte(`{"id":"colors","resourceType":"CodeSystem"}`),
		Narrative:      "A palette of vermilion shades",
		Categories:     []CategoryRow{{Mode: 1, Code: "loinc"}, {Mode: 1, Code: "loinc"}},
		Codes: []CodeRow{
			{Code: "red", Display: "Vermilion red"},
			{Code: "blue", Display: "Ultramarine"},
		},
	}
}

func TestCreateStampsAndSeeds(t *testing.T) {
	m := newStore(t)

	state, err := m.ReadState()
	require.NoError(t, err)
	assert.Equal(t, config.CurrentDefaults.AppVersion, state.AppVersion)
	assert.Equal(t, config.CurrentDefaults.Store.SchemaVersion, state.SchemaVersion)
	assert.Equal(t, "run-1", state.RunID)
	assert.Equal(t, "2026-03-01T12:00:00Z", state.Date)
	assert.False(t, state.Finished)

	n, err := m.Count("TxSource")
	require.NoError(t, err)
	assert.Equal(t, len(classify.Sources), n)
}

func TestCreateReplacesExistingStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "artifacts.db")

	m, err := Create(path, "run-1", runDate)
	require.NoError(t, err)
	_, err = m.InsertPackage(samplePackage())
	require.NoError(t, err)
	require.NoError(t, m.Close())

	m, err = Create(path, "run-2", runDate)
	require.NoError(t, err)
	defer m.Close()

	n, err := m.Count("Packages")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestInsertPackage(t *testing.T) {
	m := newStore(t)

	key, err := m.InsertPackage(samplePackage())
	require.NoError(t, err)
	assert.Equal(t, int64(1), key)

	var r4, r5, r3 int
	var realm, date *string
	require.NoError(t, m.db.QueryRow(
		"SELECT R3, R4, R5, Realm, Date FROM Packages WHERE PackageKey = ?", key,
	).Scan(&r3, &r4, &r5, &realm, &date))
	assert.Equal(t, 0, r3)
	assert.Equal(t, 1, r4)
	assert.Equal(t, 1, r5)
	assert.Nil(t, realm, "unresolved realm is NULL")
	assert.Nil(t, date, "empty strings are NULL")

	_, err = m.InsertPackage(samplePackage())
	assert.Error(t, err, "PID is unique")
}

func TestPatchPackageGovernance(t *testing.T) {
	m := newStore(t)
	key, err := m.InsertPackage(samplePackage())
	require.NoError(t, err)

	require.NoError(t, m.SetPackageRealm(key, "us"))
	require.NoError(t, m.SetPackageAuthority(key, "hl7"))

	var realm, auth string
	require.NoError(t, m.db.QueryRow("SELECT Realm, Auth FROM Packages WHERE PackageKey = ?", key).Scan(&realm, &auth))
	assert.Equal(t, "us", realm)
	assert.Equal(t, "hl7", auth)
}

func TestMarkPublished(t *testing.T) {
	m := newStore(t)
	_, err := m.InsertPackage(samplePackage())
	require.NoError(t, err)

	ok, err := m.MarkPublished("acme.core#1.0.0")
	require.NoError(t, err)
	assert.True(t, ok)

	// idempotent
	ok, err = m.MarkPublished("acme.core#1.0.0")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.MarkPublished("acme.other#1.0.0")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := m.CountPublished()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestInsertResourceWritesAllRows(t *testing.T) {
	m := newStore(t)
	pkg, err := m.InsertPackage(samplePackage())
	require.NoError(t, err)

	r := sampleResource(pkg)
	key, err := m.InsertResource(r)
	require.NoError(t, err)

	for table, want := range map[string]int{
		"Resources":     1,
		"Contents":      1,
		"Categories":    1, // duplicates collapse on the composite key
		"CodeSystemFTS": 2,
	} {
		n, err := m.Count(table)
		require.NoError(t, err)
		assert.Equal(t, want, n, table)
	}

	src, norm, err := m.LoadContent(key)
	require.NoError(t, err)
	assert.Equal(t, r.Source, src)
	assert.Equal(t, r.Normalized, norm)

	var details string
	var r4, experimental int
	require.NoError(t, m.db.QueryRow(
		"SELECT Details, R4, Experimental FROM Resources WHERE ResourceKey = ?", key,
	).Scan(&details, &r4, &experimental))
	assert.Equal(t, "2", details)
	assert.Equal(t, 1, r4)
	assert.Equal(t, 0, experimental)
}

func TestInsertResourceNilDetailsIsNull(t *testing.T) {
	m := newStore(t)
	pkg, err := m.InsertPackage(samplePackage())
	require.NoError(t, err)

	r := sampleResource(pkg)
	r.Details = nil
	key, err := m.InsertResource(r)
	require.NoError(t, err)

	var details *string
	require.NoError(t, m.db.QueryRow("SELECT Details FROM Resources WHERE ResourceKey = ?", key).Scan(&details))
	assert.Nil(t, details)
}

func TestInsertResourceIsAtomic(t *testing.T) {
	m := newStore(t)
	pkg, err := m.InsertPackage(samplePackage())
	require.NoError(t, err)

	_, err = m.InsertResource(sampleResource(pkg))
	require.NoError(t, err)

	// same URL violates the unique index
	dup := sampleResource(pkg)
	dup.Codes = []CodeRow{{Code: "green"}}
	_, err = m.InsertResource(dup)
	require.Error(t, err)

	for _, table := range []string{"Resources", "Contents"} {
		n, err := m.Count(table)
		require.NoError(t, err)
		assert.Equal(t, 1, n, table)
	}
	n, err := m.Count("CodeSystemFTS")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSearch(t *testing.T) {
	m := newStore(t)
	pkg, err := m.InsertPackage(samplePackage())
	require.NoError(t, err)
	key, err := m.InsertResource(sampleResource(pkg))
	require.NoError(t, err)

	hits, err := m.SearchResources("vermilion", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, ResourceHit{
		Key:     key,
		Package: "acme.core#1.0.0",
		Type:    "CodeSystem",
		URL:     "http://acme.org/fhir/CodeSystem/colors",
		Title:   "Paint Colors",
	}, hits[0])

	hits, err = m.SearchResources("catalogue", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	hits, err = m.SearchResources("nonexistent", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	codes, err := m.SearchCodes("ultramarine", 10)
	require.NoError(t, err)
	require.Len(t, codes, 1)
	assert.Equal(t, "blue", codes[0].Code)
	assert.Equal(t, key, codes[0].ResourceKey)
}

func TestLoadContentUnknownKey(t *testing.T) {
	m := newStore(t)

	_, _, err := m.LoadContent(42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSummaryTablesAndMetadata(t *testing.T) {
	m := newStore(t)

	require.NoError(t, m.WriteRealms([]string{"uv", "us"}))
	require.NoError(t, m.WriteAuthorities([]string{"hl7"}))
	require.NoError(t, m.PutMetadataInt(config.MetaTotalPackages, 3))
	require.NoError(t, m.PutMetadataInt(config.MetaTotalPackages, 4))

	n, err := m.Count("Realms")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = m.Count("Authorities")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	kv, err := m.Metadata()
	require.NoError(t, err)
	assert.Equal(t, "4", kv[config.MetaTotalPackages])

	state, err := m.ReadState()
	require.NoError(t, err)
	assert.True(t, state.Finished)
}

func TestCountRejectsUnknownTable(t *testing.T) {
	m := newStore(t)

	_, err := m.Count("sqlite_master; DROP TABLE Packages")
	assert.Error(t, err)
}

func TestOpenReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "artifacts.db")
	m, err := Create(path, "run-1", runDate)
	require.NoError(t, err)
	require.NoError(t, m.Close())

	ro, err := Open(path)
	require.NoError(t, err)
	defer ro.Close()

	state, err := ro.ReadState()
	require.NoError(t, err)
	assert.Equal(t, "run-1", state.RunID)

	_, err = Open(filepath.Join(t.TempDir(), "missing.db"))
	assert.Error(t, err)
}
