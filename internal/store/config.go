package store

import (
	"fmt"

	"github.com/GonzoDMX/artifact-index/internal/config"
)

// Metadata reads the whole ledger into a map.
func (m *Manager) Metadata() (map[string]string, error) {
	rows, err := m.db.Query("SELECT Name, Value FROM Metadata ORDER BY Key")
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}
	defer rows.Close()

	kv := make(map[string]string)
	for rows.Next() {
		var k string
		var v *string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		if v != nil {
			kv[k] = *v
		}
	}
	return kv, rows.Err()
}

// ReadState reads the stamped configuration back from the store.
func (m *Manager) ReadState() (config.StoreState, error) {
	var state config.StoreState

	kv, err := m.Metadata()
	if err != nil {
		return state, err
	}

	// Map to StoreState struct
	state.AppVersion = kv[config.MetaAppVersion]
	state.SchemaVersion = kv[config.MetaSchemaVersion]
	state.Compression = kv[config.MetaCompression]
	state.SearchModule = kv[config.MetaSearchModule]
	state.RunID = kv[config.MetaRunID]
	state.Date = kv[config.MetaDate]
	_, state.Finished = kv[config.MetaTotalPackages]

	return state, nil
}
