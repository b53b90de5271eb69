package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/multierr"

	"github.com/GonzoDMX/artifact-index/internal/classify"
	"github.com/GonzoDMX/artifact-index/internal/codec"
	"github.com/GonzoDMX/artifact-index/internal/config"
	"github.com/GonzoDMX/artifact-index/internal/models"
)

// ErrNotFound is returned by read helpers for unknown keys.
var ErrNotFound = errors.New("not found")

// Manager owns one store file and its single write session.
type Manager struct {
	path string
	db   *sql.DB

	// prepared once, bound to a transaction where needed
	stmts map[stmtID]*sql.Stmt
}

type stmtID int

const (
	stmtInsertPackage stmtID = iota
	stmtSetRealm
	stmtSetAuthority
	stmtMarkPublished
	stmtInsertResource
	stmtInsertContent
	stmtInsertCategory
	stmtInsertResourceFTS
	stmtInsertCodeFTS
	stmtPutMetadata
)

var statements = map[stmtID]string{
	stmtInsertPackage: `INSERT INTO Packages
		(PID, Id, Date, Title, Canonical, Web, Version, R2, R2B, R3, R4, R4B, R5, R6, Realm, Auth, Package)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	stmtSetRealm:      `UPDATE Packages SET Realm = ? WHERE PackageKey = ?`,
	stmtSetAuthority:  `UPDATE Packages SET Auth = ? WHERE PackageKey = ?`,
	stmtMarkPublished: `UPDATE Packages SET Published = 1 WHERE PID = ?`,
	stmtInsertResource: `INSERT INTO Resources
		(PackageKey, ResourceType, NormalizedResourceType, Id, R2, R2B, R3, R4, R4B, R5, R6,
		 Web, Url, Version, Status, Date, Name, Title, Experimental, Realm,
		 Description, Purpose, Copyright, CopyrightLabel,
		 Kind, Type, Supplements, ValueSet, Content, Authority, Details)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	stmtInsertContent:     `INSERT INTO Contents (ResourceKey, Json, NormalizedJson) VALUES (?, ?, ?)`,
	stmtInsertCategory:    `INSERT OR IGNORE INTO Categories (ResourceKey, Mode, Code) VALUES (?, ?, ?)`,
	stmtInsertResourceFTS: `INSERT INTO ResourceFTS (docid, ResourceKey, Name, Title, Description, Narrative) VALUES (?, ?, ?, ?, ?, ?)`,
	stmtInsertCodeFTS:     `INSERT INTO CodeSystemFTS (ResourceKey, Code, Display, Definition) VALUES (?, ?, ?, ?)`,
	stmtPutMetadata: `INSERT INTO Metadata (Name, Value) VALUES (?, ?)
		ON CONFLICT(Name) DO UPDATE SET Value = excluded.Value`,
}

// Create deletes any store at path, applies the schema, seeds the terminology
// source table and stamps the current application configuration.
func Create(path string, runID string, runDate time.Time) (*Manager, error) {
	// 1. Start from scratch
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to remove existing store: %w", err)
	}

	// 2. Init SQLite
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	// single write session
	db.SetMaxOpenConns(1)

	// 3. Run Schema
	if _, err := db.Exec(SchemaSQL); err != nil {
		db.Close()
		os.Remove(path)
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	m := &Manager{path: path, db: db, stmts: make(map[stmtID]*sql.Stmt, len(statements))}
	for id, q := range statements {
		stmt, err := db.Prepare(q)
		if err != nil {
			m.Close()
			return nil, fmt.Errorf("failed to prepare statement %d: %w", id, err)
		}
		m.stmts[id] = stmt
	}

	// 4. Seed reference data
	if err := m.seedSources(); err != nil {
		m.Close()
		return nil, err
	}

	// 5. STAMP CONFIGURATION
	// Readers check these before trusting the layout.
	defaults := config.CurrentDefaults
	stamp := [][2]string{
		{config.MetaDate, runDate.Format(time.RFC3339)},
		{config.MetaRunID, runID},
		{config.MetaAppVersion, defaults.AppVersion},
		{config.MetaSchemaVersion, defaults.Store.SchemaVersion},
		{config.MetaCompression, defaults.Store.Compression},
		{config.MetaSearchModule, defaults.Store.SearchModule},
	}
	for _, kv := range stamp {
		if err := m.PutMetadata(kv[0], kv[1]); err != nil {
			m.Close()
			return nil, err
		}
	}

	return m, nil
}

// Open opens an existing store for reading.
func Open(path string) (*Manager, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("store file not found: %s", path)
	}
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return &Manager{path: path, db: db}, nil
}

// Path returns the store file location.
func (m *Manager) Path() string {
	return m.path
}

// DB exposes the handle for ad hoc read queries.
func (m *Manager) DB() *sql.DB {
	return m.db
}

// Close releases prepared statements and the database handle.
func (m *Manager) Close() error {
	var err error
	for _, stmt := range m.stmts {
		err = multierr.Append(err, stmt.Close())
	}
	m.stmts = nil
	return multierr.Append(err, m.db.Close())
}

func (m *Manager) seedSources() error {
	tx, err := m.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT INTO TxSource (Code, Display) VALUES (?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range classify.Sources {
		if _, err := stmt.Exec(s.Code, s.Display); err != nil {
			return fmt.Errorf("failed to seed source %q: %w", s.Code, err)
		}
	}
	return tx.Commit()
}

// ---------------------------------------------------------
// Packages
// ---------------------------------------------------------

// PackageRow is one package as written at first sight.
type PackageRow struct {
	PID       string // name#version
	ID        string
	Date      string
	Title     string
	Canonical string
	Web       string
	Version   string
	// FHIRVersions is the comma separated version list the package declares.
	FHIRVersions string
	Realm        string
	Authority    string
	Manifest     []byte
}

// InsertPackage writes a package row and returns its key.
func (m *Manager) InsertPackage(p PackageRow) (int64, error) {
	args := []any{
		p.PID, nullable(p.ID), nullable(p.Date), nullable(p.Title),
		nullable(p.Canonical), nullable(p.Web), nullable(p.Version),
	}
	args = append(args, generationArgs(p.FHIRVersions)...)
	args = append(args, nullable(p.Realm), nullable(p.Authority), p.Manifest)

	res, err := m.stmts[stmtInsertPackage].Exec(args...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert package %s: %w", p.PID, err)
	}
	return res.LastInsertId()
}

// SetPackageRealm patches the realm of an already written package.
func (m *Manager) SetPackageRealm(key int64, realm string) error {
	if _, err := m.stmts[stmtSetRealm].Exec(realm, key); err != nil {
		return fmt.Errorf("failed to set realm of package %d: %w", key, err)
	}
	return nil
}

// SetPackageAuthority patches the authority of an already written package.
func (m *Manager) SetPackageAuthority(key int64, authority string) error {
	if _, err := m.stmts[stmtSetAuthority].Exec(authority, key); err != nil {
		return fmt.Errorf("failed to set authority of package %d: %w", key, err)
	}
	return nil
}

// MarkPublished flags a package as published. It reports whether a row matched.
func (m *Manager) MarkPublished(pid string) (bool, error) {
	res, err := m.stmts[stmtMarkPublished].Exec(pid)
	if err != nil {
		return false, fmt.Errorf("failed to mark %s published: %w", pid, err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ---------------------------------------------------------
// Resources
// ---------------------------------------------------------

// CategoryRow is one reference marker.
type CategoryRow struct {
	Mode int
	Code string
}

// CodeRow is one code system concept for the code index.
type CodeRow struct {
	Code       string
	Display    string
	Definition string
}

// ResourceRow is everything written for one artifact.
type ResourceRow struct {
	PackageKey     int64
	ResourceType   string // as declared at the source version
	NormalizedType string
	ID             string
	// SchemaVersion is the version tag the artifact was read at.
	SchemaVersion string

	Web            string
	URL            string
	Version        string
	Status         string
	Date           string
	Name           string
	Title          string
	Experimental   bool
	Realm          string
	Description    string
	Purpose        string
	Copyright      string
	CopyrightLabel string
	Kind           string
	Type           string
	Supplements    string
	ValueSet       string
	Content        string
	Authority      string
	Details        *string

	// Source and Normalized are stored compressed.
	Source     []byte
	Normalized []byte
	Narrative  string

	Categories []CategoryRow
	Codes      []CodeRow
}

// InsertResource writes the resource, its content, categories and search rows
// in one transaction and returns the resource key.
func (m *Manager) InsertResource(r ResourceRow) (int64, error) {
	// 1. Compress outside the transaction
	src, err := codec.Compress(r.Source)
	if err != nil {
		return 0, err
	}
	norm, err := codec.Compress(r.Normalized)
	if err != nil {
		return 0, err
	}

	tx, err := m.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// 2. Resource row
	args := []any{
		r.PackageKey, nullable(r.ResourceType), nullable(r.NormalizedType), nullable(r.ID),
	}
	args = append(args, generationArgs(r.SchemaVersion)...)
	args = append(args,
		nullable(r.Web), nullable(r.URL), nullable(r.Version), nullable(r.Status),
		nullable(r.Date), nullable(r.Name), nullable(r.Title), r.Experimental, nullable(r.Realm),
		nullable(r.Description), nullable(r.Purpose), nullable(r.Copyright), nullable(r.CopyrightLabel),
		nullable(r.Kind), nullable(r.Type), nullable(r.Supplements), nullable(r.ValueSet), nullable(r.Content),
		nullable(r.Authority), r.Details,
	)
	res, err := tx.Stmt(m.stmts[stmtInsertResource]).Exec(args...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert resource %s: %w", r.URL, err)
	}
	key, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	// 3. Content
	if _, err := tx.Stmt(m.stmts[stmtInsertContent]).Exec(key, src, norm); err != nil {
		return 0, fmt.Errorf("failed to insert content of %s: %w", r.URL, err)
	}

	// 4. Categories
	catStmt := tx.Stmt(m.stmts[stmtInsertCategory])
	for _, c := range r.Categories {
		if _, err := catStmt.Exec(key, c.Mode, c.Code); err != nil {
			return 0, fmt.Errorf("failed to insert category %d/%s: %w", c.Mode, c.Code, err)
		}
	}

	// 5. Search rows
	if _, err := tx.Stmt(m.stmts[stmtInsertResourceFTS]).Exec(
		key, key, r.Name, r.Title, r.Description, r.Narrative,
	); err != nil {
		return 0, fmt.Errorf("failed to index resource %s: %w", r.URL, err)
	}
	codeStmt := tx.Stmt(m.stmts[stmtInsertCodeFTS])
	for _, c := range r.Codes {
		if _, err := codeStmt.Exec(key, c.Code, c.Display, c.Definition); err != nil {
			return 0, fmt.Errorf("failed to index code %s: %w", c.Code, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit resource %s: %w", r.URL, err)
	}
	return key, nil
}

// ---------------------------------------------------------
// Run summary
// ---------------------------------------------------------

// WriteRealms fills the Realms lookup table.
func (m *Manager) WriteRealms(codes []string) error {
	return m.writeCodes("Realms", codes)
}

// WriteAuthorities fills the Authorities lookup table.
func (m *Manager) WriteAuthorities(codes []string) error {
	return m.writeCodes("Authorities", codes)
}

// table is one of the fixed lookup tables, never user input
func (m *Manager) writeCodes(table string, codes []string) error {
	tx, err := m.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT OR IGNORE INTO " + table + " (Code) VALUES (?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range codes {
		if _, err := stmt.Exec(c); err != nil {
			return fmt.Errorf("failed to write %s %q: %w", table, c, err)
		}
	}
	return tx.Commit()
}

// PutMetadata sets one ledger entry.
func (m *Manager) PutMetadata(name, value string) error {
	if _, err := m.stmts[stmtPutMetadata].Exec(name, value); err != nil {
		return fmt.Errorf("failed to write metadata %s: %w", name, err)
	}
	return nil
}

// PutMetadataInt sets one numeric ledger entry.
func (m *Manager) PutMetadataInt(name string, value int) error {
	return m.PutMetadata(name, strconv.Itoa(value))
}

// ---------------------------------------------------------
// helpers
// ---------------------------------------------------------

// nullable stores empty strings as NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func generationArgs(versions string) []any {
	flags := models.GenerationFlags(versions)
	args := make([]any, len(flags))
	for i, f := range flags {
		args[i] = f
	}
	return args
}
