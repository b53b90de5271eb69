package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/GonzoDMX/artifact-index/internal/codec"
)

// ResourceHit is one full text match over resources.
type ResourceHit struct {
	Key     int64
	Package string
	Type    string
	URL     string
	Title   string
}

// CodeHit is one full text match over code system concepts.
type CodeHit struct {
	ResourceKey int64
	URL         string
	Code        string
	Display     string
}

// SearchResources runs an FTS MATCH query over name, title, description and
// narrative.
func (m *Manager) SearchResources(query string, limit int) ([]ResourceHit, error) {
	rows, err := m.db.Query(`
		SELECT r.ResourceKey, p.PID, r.NormalizedResourceType, r.Url, COALESCE(r.Title, r.Name, r.Id, '')
		FROM ResourceFTS f
		JOIN Resources r ON r.ResourceKey = f.docid
		JOIN Packages p ON p.PackageKey = r.PackageKey
		WHERE ResourceFTS MATCH ?
		ORDER BY r.ResourceKey
		LIMIT ?`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("resource search failed: %w", err)
	}
	defer rows.Close()

	var hits []ResourceHit
	for rows.Next() {
		var h ResourceHit
		if err := rows.Scan(&h.Key, &h.Package, &h.Type, &h.URL, &h.Title); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// SearchCodes runs an FTS MATCH query over code system concepts.
func (m *Manager) SearchCodes(query string, limit int) ([]CodeHit, error) {
	rows, err := m.db.Query(`
		SELECT r.ResourceKey, r.Url, f.Code, COALESCE(f.Display, '')
		FROM CodeSystemFTS f
		JOIN Resources r ON r.ResourceKey = f.ResourceKey
		WHERE CodeSystemFTS MATCH ?
		ORDER BY r.ResourceKey
		LIMIT ?`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("code search failed: %w", err)
	}
	defer rows.Close()

	var hits []CodeHit
	for rows.Next() {
		var h CodeHit
		if err := rows.Scan(&h.ResourceKey, &h.URL, &h.Code, &h.Display); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// LoadContent returns the decompressed source and normalized JSON of a resource.
func (m *Manager) LoadContent(key int64) (source, normalized []byte, err error) {
	var src, norm []byte
	err = m.db.QueryRow("SELECT Json, NormalizedJson FROM Contents WHERE ResourceKey = ?", key).Scan(&src, &norm)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("resource %d: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, nil, err
	}

	if source, err = codec.Decompress(src); err != nil {
		return nil, nil, err
	}
	if normalized, err = codec.Decompress(norm); err != nil {
		return nil, nil, err
	}
	return source, normalized, nil
}

// countedTables may be passed to Count.
var countedTables = map[string]bool{
	"Packages": true, "Resources": true, "Contents": true, "Categories": true,
	"Realms": true, "Authorities": true, "TxSource": true, "CodeSystemFTS": true,
}

// Count returns the number of rows in one of the store tables.
func (m *Manager) Count(table string) (int, error) {
	if !countedTables[table] {
		return 0, fmt.Errorf("unknown table %q", table)
	}
	var n int
	err := m.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n)
	return n, err
}

// CountPublished returns the number of packages flagged as published.
func (m *Manager) CountPublished() (int, error) {
	var n int
	err := m.db.QueryRow("SELECT COUNT(*) FROM Packages WHERE Published = 1").Scan(&n)
	return n, err
}
