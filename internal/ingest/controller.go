// Package ingest turns a stream of decoded artifacts into store rows.
//
// A Controller drives one run: StartPackage once per package, ProcessArtifact
// once per artifact of it, AlreadyVisited for packages seen in an earlier
// pass, and Finish exactly once at the end. It is not safe for concurrent use.
package ingest

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/GonzoDMX/artifact-index/internal/config"
	"github.com/GonzoDMX/artifact-index/internal/extract"
	"github.com/GonzoDMX/artifact-index/internal/governance"
	"github.com/GonzoDMX/artifact-index/internal/models"
	"github.com/GonzoDMX/artifact-index/internal/narrative"
	"github.com/GonzoDMX/artifact-index/internal/store"
)

// PackageInfo is what the traversal knows about a package before reading
// its artifacts.
type PackageInfo struct {
	PID       string // name#version
	Name      string
	Version   string
	Title     string
	Date      string
	Canonical string
	Web       string
	// FHIRVersions is the comma separated list of schema versions declared.
	FHIRVersions string
	Manifest     []byte
}

// PackageContext is the per package state handed back to ProcessArtifact.
// Realm and Authority are empty until resolved.
type PackageContext struct {
	Key       int64
	PID       string
	Canonical string
	Web       string
	Realm     string
	Authority string
}

// RunSummary is returned by Finish.
type RunSummary struct {
	RunID                 string         `yaml:"run_id"`
	Date                  time.Time      `yaml:"date"`
	Packages              int            `yaml:"packages"`
	PublishedPackages     int            `yaml:"published_packages"`
	Resources             int            `yaml:"resources"`
	TotalPackages         int            `yaml:"total_packages"`
	Realms                []string       `yaml:"realms"`
	Authorities           []string       `yaml:"authorities"`
	UnresolvedRealms      []string       `yaml:"unresolved_realms"`
	UnresolvedAuthorities []string       `yaml:"unresolved_authorities"`
	Skipped               map[string]int `yaml:"skipped,omitempty"`
}

// ErrFinished is returned when a Controller is used after Finish or Close.
var ErrFinished = errors.New("run already finished")

// Controller owns all run scoped state.
type Controller struct {
	store   *store.Manager
	gov     *governance.Resolver
	logger  *slog.Logger
	metrics *metrics

	runID   string
	runDate time.Time
	exclude []string

	urls     mapset.Set[string]
	packages map[string]*PackageContext

	packageCount  int
	resourceCount int
	totalPackages int
	skipped       map[string]int

	closed bool
}

// Option configures a Controller.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	registry prometheus.Registerer
	exclude  []string
	runID    string
}

// WithLogger sets the logger; slog.Default() otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRegisterer registers the run counters on reg. Without it the counters
// live on a private registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registry = reg }
}

// WithExcludedPackages replaces the default core package prefixes.
func WithExcludedPackages(prefixes []string) Option {
	return func(o *options) { o.exclude = prefixes }
}

// WithRunID fixes the run id instead of generating one.
func WithRunID(id string) Option {
	return func(o *options) { o.runID = id }
}

// Open replaces any store at path and starts a run.
func Open(path string, runDate time.Time, opts ...Option) (*Controller, error) {
	o := options{exclude: config.DefaultExcludedPackages}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.registry == nil {
		o.registry = prometheus.NewRegistry()
	}
	if o.runID == "" {
		o.runID = uuid.NewString()
	}

	m, err := newMetrics(o.registry)
	if err != nil {
		return nil, fatal("register metrics", err)
	}

	st, err := store.Create(path, o.runID, runDate)
	if err != nil {
		return nil, fatal("create store", err)
	}

	o.logger.Info("Run started",
		slog.String("run_id", o.runID),
		slog.String("store", path))

	return &Controller{
		store:    st,
		gov:      governance.New(),
		logger:   o.logger,
		metrics:  m,
		runID:    o.runID,
		runDate:  runDate,
		exclude:  o.exclude,
		urls:     mapset.NewThreadUnsafeSet[string](),
		packages: make(map[string]*PackageContext),
		skipped:  make(map[string]int),
	}, nil
}

// RunID returns the id stamped into the store.
func (c *Controller) RunID() string {
	return c.runID
}

// IsExcluded reports whether a package id names a core schema package.
func (c *Controller) IsExcluded(pid string) bool {
	for _, p := range c.exclude {
		if strings.HasPrefix(pid, p) {
			return true
		}
	}
	return false
}

// StartPackage registers a package. It returns nil for excluded packages;
// artifacts passed with a nil context are ignored. A package seen before
// returns its existing context without writing a row.
func (c *Controller) StartPackage(info PackageInfo) (*PackageContext, error) {
	if c.closed {
		return nil, ErrFinished
	}
	if c.IsExcluded(info.PID) {
		c.logger.Debug("Core package excluded", slog.String("package", info.PID))
		return nil, nil
	}

	c.totalPackages++
	if pc, ok := c.packages[info.PID]; ok {
		return pc, nil
	}

	// 1. Artifact independent governance
	realm, _ := c.gov.Realm(info.PID, nil)
	authority, _ := c.gov.Authority(info.PID, nil)

	// 2. Package row
	key, err := c.store.InsertPackage(store.PackageRow{
		PID:          info.PID,
		ID:           info.Name,
		Date:         info.Date,
		Title:        info.Title,
		Canonical:    info.Canonical,
		Web:          info.Web,
		Version:      info.Version,
		FHIRVersions: info.FHIRVersions,
		Realm:        realm,
		Authority:    authority,
		Manifest:     info.Manifest,
	})
	if err != nil {
		return nil, fatal("insert package", err)
	}

	pc := &PackageContext{
		Key:       key,
		PID:       info.PID,
		Canonical: info.Canonical,
		Web:       info.Web,
		Realm:     realm,
		Authority: authority,
	}
	c.packages[info.PID] = pc
	c.packageCount++
	c.metrics.packages.Inc()

	c.logger.Debug("Package started",
		slog.String("package", info.PID),
		slog.String("realm", realm),
		slog.String("authority", authority))
	return pc, nil
}

// DecodeFailed records an artifact the decoder could not read. It is logged
// and skipped.
func (c *Controller) DecodeFailed(pc *PackageContext, version, localID string, err error) {
	if pc == nil {
		return
	}
	c.skip(SkipDecode)
	c.logger.Warn("Artifact skipped",
		slog.String("package", pc.PID),
		slog.String("id", localID),
		slog.String("version", version),
		slog.String("error", err.Error()))
}

// ProcessArtifact writes one decoded artifact. Only storage failures are
// returned; everything artifact specific is logged and skipped.
func (c *Controller) ProcessArtifact(pc *PackageContext, version, resourceType, localID string, raw []byte, a *models.Artifact) error {
	if c.closed {
		return ErrFinished
	}
	if pc == nil {
		return nil
	}

	// 1. Nothing to index
	if a == nil {
		c.skip(SkipUndecoded)
		return nil
	}
	if a.URL == "" {
		c.skip(SkipUnnamed)
		return nil
	}

	// 2. First package wins
	if c.urls.Contains(a.URL) {
		c.skip(SkipDuplicate)
		return nil
	}
	c.urls.Add(a.URL)

	// 3. Governance that needs artifact level data
	if err := c.resolveLate(pc, a); err != nil {
		return err
	}

	log := c.logger.With(
		slog.String("package", pc.PID),
		slog.String("type", resourceType),
		slog.String("id", localID),
		slog.String("version", version))

	// 4. Narrative is indexed, not stored
	text := narrative.Text(a.Div)
	normalized, err := narrative.Strip(a.Normalized)
	if err != nil {
		c.skip(SkipExtract)
		log.Warn("Artifact skipped", slog.String("error", err.Error()))
		return nil
	}

	// 5. Kind specific details
	res, err := safeExtract(a, pc.Canonical)
	if err != nil {
		c.skip(SkipExtract)
		log.Warn("Artifact skipped", slog.String("error", err.Error()))
		return nil
	}

	// 6. One atomic write
	row := c.resourceRow(pc, version, resourceType, localID, raw, a)
	row.Normalized = normalized
	row.Narrative = text
	row.Details = res.Details
	for _, cat := range res.Categories {
		row.Categories = append(row.Categories, store.CategoryRow{Mode: int(cat.Mode), Code: cat.Code})
	}
	for _, cn := range res.Concepts {
		row.Codes = append(row.Codes, store.CodeRow{Code: cn.Code, Display: cn.Display, Definition: cn.Definition})
	}
	if _, err := c.store.InsertResource(row); err != nil {
		return fatal("insert resource", err)
	}

	// 7. Counters
	c.resourceCount++
	c.metrics.resources.Inc()
	return nil
}

func (c *Controller) resolveLate(pc *PackageContext, a *models.Artifact) error {
	if pc.Realm == "" {
		if realm, ok := c.gov.Realm(pc.PID, a); ok {
			pc.Realm = realm
			if err := c.store.SetPackageRealm(pc.Key, realm); err != nil {
				return fatal("set package realm", err)
			}
		}
	}
	if pc.Authority == "" {
		if auth, ok := c.gov.Authority(pc.PID, a); ok {
			pc.Authority = auth
			if err := c.store.SetPackageAuthority(pc.Key, auth); err != nil {
				return fatal("set package authority", err)
			}
		}
	}
	return nil
}

func (c *Controller) resourceRow(pc *PackageContext, version, resourceType, localID string, raw []byte, a *models.Artifact) store.ResourceRow {
	id := a.ID
	if id == "" {
		id = strings.TrimSuffix(localID, ".json")
	}
	var web string
	if pc.Web != "" {
		web = strings.TrimSuffix(pc.Web, "/") + "/" + a.ResourceType + "-" + id + ".html"
	}

	return store.ResourceRow{
		PackageKey:     pc.Key,
		ResourceType:   resourceType,
		NormalizedType: a.ResourceType,
		ID:             id,
		SchemaVersion:  version,
		Web:            web,
		URL:            a.URL,
		Version:        a.Version,
		Status:         a.Status,
		Date:           a.Date,
		Name:           a.Name,
		Title:          a.Title,
		Experimental:   a.Experimental,
		Realm:          pc.Realm,
		Description:    a.Description,
		Purpose:        a.Purpose,
		Copyright:      a.Copyright,
		CopyrightLabel: a.CopyrightLabel,
		Kind:           a.Property("kind"),
		Type:           a.Property("type"),
		Supplements:    a.Property("supplements"),
		ValueSet:       a.Property("valueSet"),
		Content:        a.Property("content"),
		Authority:      pc.Authority,
		Source:         raw,
	}
}

// safeExtract turns a panic on unexpected structure into an error.
func safeExtract(a *models.Artifact, canonical string) (res extract.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("extraction panicked: %v", r)
		}
	}()
	return extract.Extract(a, canonical), nil
}

// AlreadyVisited flags a package processed in an earlier pass as published.
func (c *Controller) AlreadyVisited(pid string) error {
	if c.closed {
		return ErrFinished
	}
	c.totalPackages++
	if _, err := c.store.MarkPublished(pid); err != nil {
		return fatal("mark published", err)
	}
	return nil
}

// Finish writes the governance tables and the run ledger, then closes the
// store. It must be called exactly once.
func (c *Controller) Finish() (RunSummary, error) {
	if c.closed {
		return RunSummary{}, ErrFinished
	}

	published, err := c.store.CountPublished()
	if err != nil {
		return RunSummary{}, fatal("count published", err)
	}

	sum := RunSummary{
		RunID:                 c.runID,
		Date:                  c.runDate,
		Packages:              c.packageCount,
		PublishedPackages:     published,
		Resources:             c.resourceCount,
		TotalPackages:         c.totalPackages,
		Realms:                c.gov.Realms(),
		Authorities:           c.gov.Authorities(),
		UnresolvedRealms:      c.gov.UnresolvedRealms(),
		UnresolvedAuthorities: c.gov.UnresolvedAuthorities(),
		Skipped:               c.skipped,
	}

	if err := c.store.WriteRealms(sum.Realms); err != nil {
		return sum, fatal("write realms", err)
	}
	if err := c.store.WriteAuthorities(sum.Authorities); err != nil {
		return sum, fatal("write authorities", err)
	}

	ledger := []struct {
		name  string
		value int
	}{
		{config.MetaRealms, len(sum.Realms)},
		{config.MetaAuthorities, len(sum.Authorities)},
		{config.MetaPackages, sum.Packages},
		{config.MetaPubPackages, sum.PublishedPackages},
		{config.MetaResources, sum.Resources},
		{config.MetaTotalPackages, sum.TotalPackages},
	}
	for _, e := range ledger {
		if err := c.store.PutMetadataInt(e.name, e.value); err != nil {
			return sum, fatal("write metadata", err)
		}
	}

	if err := c.Close(); err != nil {
		return sum, fatal("close store", err)
	}

	c.logger.Info("Run finished",
		slog.String("run_id", c.runID),
		slog.Int("packages", sum.Packages),
		slog.Int("resources", sum.Resources),
		slog.Int("unresolved_realms", len(sum.UnresolvedRealms)),
		slog.Int("unresolved_authorities", len(sum.UnresolvedAuthorities)))
	return sum, nil
}

// Close abandons the run without writing the summary. It is a no-op after
// Finish.
func (c *Controller) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.store.Close()
}

func (c *Controller) skip(reason string) {
	c.skipped[reason]++
	c.metrics.skipped.WithLabelValues(reason).Inc()
}
