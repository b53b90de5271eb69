// Package packages enumerates artifact packages on disk and feeds their
// artifacts to an ingestion sink one at a time.
package packages

import (
	"archive/tar"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/klauspost/compress/gzip"

	"github.com/GonzoDMX/artifact-index/internal/ingest"
	"github.com/GonzoDMX/artifact-index/internal/models"
	"github.com/GonzoDMX/artifact-index/internal/pipeline"
)

// MaxEntrySize - 64MB hard limit per archive entry
const MaxEntrySize = 64 * 1024 * 1024

const packageDir = "package"

// Sink receives traversal events. *ingest.Controller implements it.
type Sink interface {
	StartPackage(info ingest.PackageInfo) (*ingest.PackageContext, error)
	ProcessArtifact(pc *ingest.PackageContext, version, resourceType, localID string, raw []byte, a *models.Artifact) error
	DecodeFailed(pc *ingest.PackageContext, version, localID string, err error)
	AlreadyVisited(pid string) error
}

// Stats summarizes one walk.
type Stats struct {
	Packages   int
	Revisited  int
	Unreadable int
	Artifacts  int
}

// Walker reads packages from a directory.
type Walker struct {
	sink   Sink
	logger *slog.Logger
	seen   mapset.Set[string]
}

// NewWalker returns a Walker feeding sink.
func NewWalker(sink Sink, logger *slog.Logger) *Walker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Walker{
		sink:   sink,
		logger: logger,
		seen:   mapset.NewThreadUnsafeSet[string](),
	}
}

// file is one artifact file of a package.
type file struct {
	name string
	data []byte
}

type loaded struct {
	manifest []byte
	files    []file
}

// Walk processes every .tgz archive and every unpacked package folder in dir,
// in name order. Unreadable packages are logged and skipped; sink errors stop
// the walk.
func (w *Walker) Walk(ctx context.Context, dir string) (Stats, error) {
	var stats Stats

	entries, err := os.ReadDir(dir)
	if err != nil {
		return stats, fmt.Errorf("failed to read packages directory: %w", err)
	}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		full := filepath.Join(dir, e.Name())
		var pkg *loaded
		switch {
		case e.IsDir():
			if _, err := os.Stat(filepath.Join(full, packageDir, "package.json")); err != nil {
				continue
			}
			pkg, err = loadDir(full)
		case strings.HasSuffix(e.Name(), ".tgz"):
			pkg, err = loadArchive(full)
		default:
			continue
		}
		if err != nil {
			stats.Unreadable++
			w.logger.Warn("Package unreadable", slog.String("path", full), slog.String("error", err.Error()))
			continue
		}

		n, err := w.process(full, pkg, &stats)
		stats.Artifacts += n
		if err != nil {
			return stats, err
		}
	}
	return stats, nil
}

func (w *Walker) process(source string, pkg *loaded, stats *Stats) (int, error) {
	m, err := ParseManifest(pkg.manifest)
	if err != nil {
		stats.Unreadable++
		w.logger.Warn("Package unreadable", slog.String("path", source), slog.String("error", err.Error()))
		return 0, nil
	}

	pid := m.PID()
	if w.seen.Contains(pid) {
		stats.Revisited++
		return 0, w.sink.AlreadyVisited(pid)
	}
	w.seen.Add(pid)
	stats.Packages++

	pc, err := w.sink.StartPackage(m.Info(pkg.manifest))
	if err != nil || pc == nil {
		return 0, err
	}

	version := m.SchemaVersion()
	count := 0
	for _, f := range pkg.files {
		rt := peekType(f.data)
		if !ingest.IsSupported(rt) {
			continue
		}
		count++

		a, err := pipeline.Decode(version, f.data)
		if err != nil {
			w.sink.DecodeFailed(pc, version, f.name, err)
			continue
		}
		if err := w.sink.ProcessArtifact(pc, version, rt, f.name, f.data, a); err != nil {
			return count, err
		}
	}

	w.logger.Debug("Package read", slog.String("package", pid), slog.Int("artifacts", count))
	return count, nil
}

// peekType returns the resourceType of a JSON document, or "".
func peekType(data []byte) string {
	var head struct {
		ResourceType string `json:"resourceType"`
	}
	if json.Unmarshal(data, &head) != nil {
		return ""
	}
	return head.ResourceType
}

// artifactName reports whether name (relative to the package folder) is an
// artifact file: a top level .json other than the manifest and index files.
func artifactName(name string) bool {
	return strings.HasSuffix(name, ".json") &&
		!strings.HasPrefix(name, ".") &&
		name != "package.json" &&
		!strings.Contains(name, "/")
}

// ---------------------------------------------------------
// 1. UNPACKED FOLDERS
// ---------------------------------------------------------
func loadDir(root string) (*loaded, error) {
	dir := filepath.Join(root, packageDir)
	manifest, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	pkg := &loaded{manifest: manifest}
	for _, e := range entries {
		if e.IsDir() || !artifactName(e.Name()) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		pkg.files = append(pkg.files, file{name: e.Name(), data: data})
	}
	return pkg, nil
}

// ---------------------------------------------------------
// 2. NPM ARCHIVES (.tgz)
// Uses "github.com/klauspost/compress/gzip"
// ---------------------------------------------------------
func loadArchive(p string) (*loaded, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("not a gzip archive: %w", err)
	}
	defer zr.Close()

	pkg := &loaded{}
	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("corrupt archive: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		dir, name := path.Split(path.Clean(hdr.Name))
		if dir != packageDir+"/" {
			continue
		}
		if name != "package.json" && !artifactName(name) {
			continue
		}
		if hdr.Size > MaxEntrySize {
			return nil, fmt.Errorf("entry %s exceeds size limit", hdr.Name)
		}

		data, err := io.ReadAll(io.LimitReader(tr, MaxEntrySize))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", hdr.Name, err)
		}
		if name == "package.json" {
			pkg.manifest = data
			continue
		}
		pkg.files = append(pkg.files, file{name: name, data: data})
	}

	if pkg.manifest == nil {
		return nil, fmt.Errorf("archive has no package/package.json")
	}
	sort.Slice(pkg.files, func(i, j int) bool { return pkg.files[i].name < pkg.files[j].name })
	return pkg, nil
}
