package config

// StoreFormat describes the on-disk layout this binary produces
type StoreFormat struct {
	SchemaVersion string // bumped on any table/column change
	Compression   string // content blob codec
	SearchModule  string // sqlite virtual table module for the full text indexes
}

// SystemConfig represents the "Gold Standard" for this version of the App
type SystemConfig struct {
	AppVersion string
	Store      StoreFormat
}

// CurrentDefaults defines the configuration for THIS version of the binary.
// It is stamped into every store at creation.
var CurrentDefaults = SystemConfig{
	AppVersion: "0.3.0",

	Store: StoreFormat{
		SchemaVersion: "3", // Increment this when the schema changes
		Compression:   "gzip-9",
		SearchModule:  "fts4",
	},
}

// Metadata names used in the store ledger.
const (
	MetaDate          = "date"
	MetaRunID         = "runid"
	MetaAppVersion    = "appversion"
	MetaSchemaVersion = "schemaversion"
	MetaCompression   = "compression"
	MetaSearchModule  = "search"

	// written by a finished run
	MetaRealms        = "realms"
	MetaAuthorities   = "authorities"
	MetaPackages      = "packages"
	MetaPubPackages   = "pubpackages"
	MetaResources     = "resources"
	MetaTotalPackages = "totalpackages"
)
