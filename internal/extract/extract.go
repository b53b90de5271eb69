// Package extract derives the detail summary and outbound reference markers
// of an artifact from its kind specific payload.
package extract

import (
	"slices"
	"strconv"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/GonzoDMX/artifact-index/internal/classify"
	"github.com/GonzoDMX/artifact-index/internal/models"
)

// Mode is the kind of relationship a Category records.
type Mode int

const (
	ModeTerminology        Mode = 1 // terminology usage
	ModeExtensionContext   Mode = 2 // element root an extension applies to
	ModeExtensionValueType Mode = 3 // extension value type
	ModeProfile            Mode = 4 // profile usage
	ModeDefinition         Mode = 5 // operation / search parameter / guide usage
)

// Category is one reference marker.
type Category struct {
	Mode Mode
	Code string
}

// ConceptEntry is one code system concept for the code search index.
type ConceptEntry struct {
	Code       string
	Display    string
	Definition string
}

// Result is everything extracted from one artifact.
type Result struct {
	// Details is nil for kinds that carry no summary.
	Details    *string
	Categories []Category
	Concepts   []ConceptEntry
}

// Extract walks the artifact payload. canonical is the canonical base of the
// owning package, used to recognize internal terminology references.
func Extract(a *models.Artifact, canonical string) Result {
	e := &extractor{canonical: canonical}
	if a.Payload != nil {
		a.Payload.Accept(e)
	}
	return e.res
}

type extractor struct {
	canonical string
	res       Result
}

var _ models.Visitor = (*extractor)(nil)

// ---------------------------------------------------------
// Code systems: recursive concept count
// ---------------------------------------------------------

func (e *extractor) VisitCodeSystem(cs *models.CodeSystem) {
	e.setDetails(strconv.Itoa(e.concepts(cs.Concepts)))
}

func (e *extractor) concepts(list []models.Concept) int {
	count := len(list)
	for _, c := range list {
		e.res.Concepts = append(e.res.Concepts, ConceptEntry{
			Code:       c.Code,
			Display:    c.Display,
			Definition: c.Definition,
		})
		count += e.concepts(c.Concepts)
	}
	return count
}

// ---------------------------------------------------------
// Value sets and concept maps: terminology usage
// ---------------------------------------------------------

func (e *extractor) VisitValueSet(vs *models.ValueSet) {
	tags := mapset.NewThreadUnsafeSet[string]()
	for _, inc := range vs.Includes {
		for _, ref := range inc.ValueSets {
			e.seeSystem(tags, ref)
		}
		e.seeSystem(tags, inc.System)
	}
	e.terminology(tags)
}

func (e *extractor) VisitConceptMap(cm *models.ConceptMap) {
	tags := mapset.NewThreadUnsafeSet[string]()
	e.seeSystem(tags, cm.SourceScope)
	e.seeSystem(tags, cm.TargetScope)
	for _, g := range cm.Groups {
		e.seeSystem(tags, g.Source)
		e.seeSystem(tags, g.Target)
	}
	e.terminology(tags)
}

func (e *extractor) seeSystem(tags mapset.Set[string], system string) {
	if tag := classify.System(system, e.canonical); tag != classify.Unclassified {
		tags.Add(tag)
	}
}

func (e *extractor) terminology(tags mapset.Set[string]) {
	list := sorted(tags)
	e.emit(ModeTerminology, list)
	e.setDetails(strings.Join(list, ","))
}

// ---------------------------------------------------------
// Structure definitions: extensions only
// ---------------------------------------------------------

func (e *extractor) VisitStructureDefinition(sd *models.StructureDefinition) {
	if !sd.IsExtension() {
		return
	}

	contexts := mapset.NewThreadUnsafeSet[string]()
	roots := mapset.NewThreadUnsafeSet[string]()
	for _, ec := range sd.Contexts {
		if ec.Type != models.ContextElement || ec.Expression == "" {
			continue
		}
		contexts.Add(ec.Expression)
		roots.Add(root(ec.Expression))
	}
	e.emit(ModeExtensionContext, sorted(roots))

	mod := "0"
	if ed, ok := sd.Element("Extension"); ok && ed.IsModifier {
		mod = "1"
	}

	e.setDetails("Context: " + strings.Join(sorted(contexts), ",") +
		"|Type:" + e.valueTypes(sd) +
		"|Mod:" + mod)
}

func (e *extractor) valueTypes(sd *models.StructureDefinition) string {
	ed, ok := sd.Element("Extension.value[x]")
	if !ok || ed.Max == "0" {
		return "complex"
	}
	types := mapset.NewThreadUnsafeSet[string]()
	for _, tr := range ed.Types {
		if tr.Code != "" {
			types.Add(tr.Code)
		}
	}
	list := sorted(types)
	e.emit(ModeExtensionValueType, list)
	return strings.Join(list, ",")
}

func root(path string) string {
	if i := strings.Index(path, "."); i >= 0 {
		return path[:i]
	}
	return path
}

// ---------------------------------------------------------
// Capability statements: profile and definition usage
// ---------------------------------------------------------

func (e *extractor) VisitCapabilityStatement(cs *models.CapabilityStatement) {
	profiles := mapset.NewThreadUnsafeSet[string]()
	defs := mapset.NewThreadUnsafeSet[string]()

	addAll(defs, cs.Instantiates...)
	addAll(defs, cs.Imports...)
	addAll(defs, cs.ImplementationGuides...)
	for _, rest := range cs.Rest {
		addAll(defs, rest.SearchParams...)
		addAll(defs, rest.Operations...)
		for _, res := range rest.Resources {
			addAll(profiles, res.Profile)
			addAll(profiles, res.SupportedProfiles...)
			addAll(defs, res.SearchParams...)
			addAll(defs, res.Operations...)
		}
	}

	e.emit(ModeProfile, sorted(profiles))
	e.emit(ModeDefinition, sorted(defs))
	e.setDetails(cs.StatementKind + "|" + cs.FHIRVersion)
}

func (e *extractor) VisitOther(*models.Other) {}

// ---------------------------------------------------------
// helpers
// ---------------------------------------------------------

func (e *extractor) emit(mode Mode, codes []string) {
	for _, c := range codes {
		e.res.Categories = append(e.res.Categories, Category{Mode: mode, Code: c})
	}
}

func (e *extractor) setDetails(s string) {
	e.res.Details = &s
}

func addAll(s mapset.Set[string], values ...string) {
	for _, v := range values {
		if v != "" {
			s.Add(v)
		}
	}
}

func sorted(s mapset.Set[string]) []string {
	out := s.ToSlice()
	slices.Sort(out)
	return out
}
