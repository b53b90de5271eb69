// Package pipeline decodes package artifacts of any supported schema
// generation into the canonical in-memory form.
package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/GonzoDMX/artifact-index/internal/ingest"
	"github.com/GonzoDMX/artifact-index/internal/models"
)

// MaxArtifactSize - 64MB hard limit for a single artifact
const MaxArtifactSize = 64 * 1024 * 1024

// ErrUnsupportedVersion is returned for schema version tags no dialect handles.
var ErrUnsupportedVersion = errors.New("unsupported schema version")

// dialect captures the structural differences between generations.
type dialect struct {
	// extension contexts are a contextType plus a list of strings
	stringContexts bool
	// derivation is absent; any definition with a base is a constraint
	implicitDerivation bool
}

var dialects = map[string]dialect{
	ingest.ProcessorR2: {stringContexts: true, implicitDerivation: true},
	ingest.ProcessorR3: {stringContexts: true},
	ingest.ProcessorR4: {},
	ingest.ProcessorR5: {},
}

// Decode is the main entry point.
// It determines the dialect from the version tag and decodes raw into an
// Artifact. Interim versions return (nil, nil).
func Decode(version string, raw []byte) (*models.Artifact, error) {
	// 1. Size Safety Check
	if len(raw) > MaxArtifactSize {
		return nil, fmt.Errorf("artifact exceeds size limit of 64MB")
	}

	// 2. Identify dialect
	proc := ingest.GetProcessorType(version)
	switch proc {
	case ingest.ProcessorSkip:
		return nil, nil
	case ingest.ProcessorUnknown:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedVersion, version)
	}

	return dialects[proc].decode(raw)
}

func (d dialect) decode(raw []byte) (*models.Artifact, error) {
	// Top level members, kept for the normalized form and string properties
	var members map[string]json.RawMessage
	if err := json.Unmarshal(raw, &members); err != nil {
		return nil, fmt.Errorf("invalid artifact json: %w", err)
	}

	var c jsonCommon
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("invalid artifact: %w", err)
	}
	if c.ResourceType == "" {
		return nil, fmt.Errorf("artifact has no resourceType")
	}

	kind := ingest.NormalizeType(c.ResourceType)
	a := &models.Artifact{
		ResourceType:   kind,
		ID:             c.ID,
		URL:            c.URL,
		Version:        c.Version,
		Status:         c.Status,
		Date:           c.Date,
		Name:           c.Name,
		Title:          c.Title,
		Publisher:      c.Publisher,
		Experimental:   c.Experimental,
		Description:    c.Description,
		Purpose:        c.Purpose,
		Copyright:      c.Copyright,
		CopyrightLabel: c.CopyrightLabel,
		Properties:     stringProperties(members),
	}
	if len(c.Jurisdiction) > 0 && len(c.Jurisdiction[0].Coding) > 0 {
		a.Jurisdiction = c.Jurisdiction[0].Coding[0].Code
	}
	if c.Text != nil {
		a.Div = c.Text.Div
	}

	payload, err := d.payload(models.Kind(kind), raw)
	if err != nil {
		return nil, fmt.Errorf("%s/%s: %w", kind, c.ID, err)
	}
	a.Payload = payload

	// Normalized form: the same members under the current type name
	if kind != c.ResourceType {
		members["resourceType"], _ = json.Marshal(kind)
	}
	if a.Normalized, err = json.Marshal(members); err != nil {
		return nil, err
	}

	return a, nil
}

// properties read verbatim when they are strings
var propertyNames = []string{"kind", "type", "supplements", "valueSet", "content"}

func stringProperties(members map[string]json.RawMessage) map[string]string {
	props := make(map[string]string)
	for _, name := range propertyNames {
		var s string
		if v, ok := members[name]; ok && json.Unmarshal(v, &s) == nil && s != "" {
			props[name] = s
		}
	}
	return props
}

func (d dialect) payload(kind models.Kind, raw []byte) (models.Payload, error) {
	switch kind {
	case models.KindCodeSystem:
		return decodeCodeSystem(raw)
	case models.KindValueSet:
		return decodeValueSet(raw)
	case models.KindConceptMap:
		return decodeConceptMap(raw)
	case models.KindStructureDefinition:
		return d.decodeStructureDefinition(raw)
	case models.KindCapabilityStatement:
		return decodeCapabilityStatement(raw)
	default:
		return &models.Other{Type: kind}, nil
	}
}

// ---------------------------------------------------------
// 1. CODE SYSTEMS
// ---------------------------------------------------------
func decodeCodeSystem(raw []byte) (*models.CodeSystem, error) {
	var j struct {
		Concept []jsonConcept `json:"concept"`
	}
	if err := json.Unmarshal(raw, &j); err != nil {
		return nil, err
	}
	return &models.CodeSystem{Concepts: convertConcepts(j.Concept)}, nil
}

func convertConcepts(in []jsonConcept) []models.Concept {
	if len(in) == 0 {
		return nil
	}
	out := make([]models.Concept, len(in))
	for i, c := range in {
		out[i] = models.Concept{
			Code:       c.Code,
			Display:    c.Display,
			Definition: c.Definition,
			Concepts:   convertConcepts(c.Concept),
		}
	}
	return out
}

// ---------------------------------------------------------
// 2. VALUE SETS
// ---------------------------------------------------------
func decodeValueSet(raw []byte) (*models.ValueSet, error) {
	var j struct {
		Compose *struct {
			Import  []string `json:"import"` // 1.0
			Include []struct {
				System   string `json:"system"`
				ValueSet []ref  `json:"valueSet"`
			} `json:"include"`
		} `json:"compose"`
	}
	if err := json.Unmarshal(raw, &j); err != nil {
		return nil, err
	}

	vs := &models.ValueSet{}
	if j.Compose == nil {
		return vs, nil
	}
	if len(j.Compose.Import) > 0 {
		vs.Includes = append(vs.Includes, models.ValueSetInclude{ValueSets: j.Compose.Import})
	}
	for _, inc := range j.Compose.Include {
		vs.Includes = append(vs.Includes, models.ValueSetInclude{
			System:    inc.System,
			ValueSets: refs(inc.ValueSet),
		})
	}
	return vs, nil
}

// ---------------------------------------------------------
// 3. CONCEPT MAPS
// ---------------------------------------------------------
func decodeConceptMap(raw []byte) (*models.ConceptMap, error) {
	var j struct {
		SourceURI       string `json:"sourceUri"`
		SourceCanonical string `json:"sourceCanonical"`
		SourceReference ref    `json:"sourceReference"`
		TargetURI       string `json:"targetUri"`
		TargetCanonical string `json:"targetCanonical"`
		TargetReference ref    `json:"targetReference"`

		SourceScopeURI       string `json:"sourceScopeUri"`
		SourceScopeCanonical string `json:"sourceScopeCanonical"`
		TargetScopeURI       string `json:"targetScopeUri"`
		TargetScopeCanonical string `json:"targetScopeCanonical"`

		Group []struct {
			Source string `json:"source"`
			Target string `json:"target"`
		} `json:"group"`

		// 1.0 has no groups; systems sit on each element
		Element []struct {
			CodeSystem string `json:"codeSystem"`
			Target     []struct {
				CodeSystem string `json:"codeSystem"`
			} `json:"target"`
		} `json:"element"`
	}
	if err := json.Unmarshal(raw, &j); err != nil {
		return nil, err
	}

	cm := &models.ConceptMap{
		SourceScope: first(j.SourceScopeURI, j.SourceScopeCanonical, j.SourceURI, j.SourceCanonical, string(j.SourceReference)),
		TargetScope: first(j.TargetScopeURI, j.TargetScopeCanonical, j.TargetURI, j.TargetCanonical, string(j.TargetReference)),
	}
	for _, g := range j.Group {
		cm.Groups = append(cm.Groups, models.MapGroup{Source: g.Source, Target: g.Target})
	}
	for _, e := range j.Element {
		for _, t := range e.Target {
			cm.Groups = append(cm.Groups, models.MapGroup{Source: e.CodeSystem, Target: t.CodeSystem})
		}
		if len(e.Target) == 0 {
			cm.Groups = append(cm.Groups, models.MapGroup{Source: e.CodeSystem})
		}
	}
	return cm, nil
}

// ---------------------------------------------------------
// 4. STRUCTURE DEFINITIONS
// ---------------------------------------------------------
func (d dialect) decodeStructureDefinition(raw []byte) (*models.StructureDefinition, error) {
	var j struct {
		Type            string          `json:"type"`
		ConstrainedType string          `json:"constrainedType"` // 1.0
		Base            string          `json:"base"`            // 1.0
		BaseDefinition  string          `json:"baseDefinition"`
		Derivation      string          `json:"derivation"`
		ContextType     string          `json:"contextType"`
		Context         json.RawMessage `json:"context"`
		Snapshot        *struct {
			Element []struct {
				ID         string `json:"id"`
				Path       string `json:"path"`
				Max        string `json:"max"`
				IsModifier bool   `json:"isModifier"`
				Type       []struct {
					Code string `json:"code"`
				} `json:"type"`
			} `json:"element"`
		} `json:"snapshot"`
	}
	if err := json.Unmarshal(raw, &j); err != nil {
		return nil, err
	}

	sd := &models.StructureDefinition{
		Type:       first(j.Type, j.ConstrainedType),
		Derivation: j.Derivation,
	}
	if sd.Derivation == "" && d.implicitDerivation && (j.Base != "" || j.BaseDefinition != "") {
		sd.Derivation = "constraint"
	}

	contexts, err := d.contexts(j.ContextType, j.Context)
	if err != nil {
		return nil, fmt.Errorf("context: %w", err)
	}
	sd.Contexts = contexts

	if j.Snapshot != nil {
		for _, e := range j.Snapshot.Element {
			ed := models.ElementDefinition{ID: e.ID, Path: e.Path, Max: e.Max, IsModifier: e.IsModifier}
			for _, t := range e.Type {
				ed.Types = append(ed.Types, models.TypeRef{Code: t.Code})
			}
			sd.Snapshot = append(sd.Snapshot, ed)
		}
	}
	return sd, nil
}

// elementContextTypes are the older contextType values that name element paths
var elementContextTypes = map[string]bool{"resource": true, "datatype": true, "element": true}

func (d dialect) contexts(contextType string, raw json.RawMessage) ([]models.ExtensionContext, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	if d.stringContexts {
		var paths []string
		if err := json.Unmarshal(raw, &paths); err != nil {
			return nil, err
		}
		typ := contextType
		if elementContextTypes[contextType] {
			typ = models.ContextElement
		}
		out := make([]models.ExtensionContext, len(paths))
		for i, p := range paths {
			out[i] = models.ExtensionContext{Type: typ, Expression: p}
		}
		return out, nil
	}

	var list []struct {
		Type       string `json:"type"`
		Expression string `json:"expression"`
	}
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, err
	}
	out := make([]models.ExtensionContext, len(list))
	for i, c := range list {
		out[i] = models.ExtensionContext{Type: c.Type, Expression: c.Expression}
	}
	return out, nil
}

// ---------------------------------------------------------
// 5. CAPABILITY STATEMENTS
// ---------------------------------------------------------
func decodeCapabilityStatement(raw []byte) (*models.CapabilityStatement, error) {
	var j struct {
		Kind                string   `json:"kind"`
		FHIRVersion         string   `json:"fhirVersion"`
		Instantiates        []string `json:"instantiates"`
		Imports             []string `json:"imports"`
		ImplementationGuide []string `json:"implementationGuide"`
		Rest                []struct {
			Mode        string           `json:"mode"`
			SearchParam []jsonDefinition `json:"searchParam"`
			Operation   []jsonDefinition `json:"operation"`
			Resource    []struct {
				Type             string           `json:"type"`
				Profile          ref              `json:"profile"`
				SupportedProfile []ref            `json:"supportedProfile"`
				SearchParam      []jsonDefinition `json:"searchParam"`
				Operation        []jsonDefinition `json:"operation"`
			} `json:"resource"`
		} `json:"rest"`
	}
	if err := json.Unmarshal(raw, &j); err != nil {
		return nil, err
	}

	cs := &models.CapabilityStatement{
		StatementKind:        j.Kind,
		FHIRVersion:          j.FHIRVersion,
		Instantiates:         j.Instantiates,
		Imports:              j.Imports,
		ImplementationGuides: j.ImplementationGuide,
	}
	for _, r := range j.Rest {
		rest := models.CapabilityRest{
			Mode:         r.Mode,
			SearchParams: definitions(r.SearchParam),
			Operations:   definitions(r.Operation),
		}
		for _, res := range r.Resource {
			rest.Resources = append(rest.Resources, models.CapabilityResource{
				Type:              res.Type,
				Profile:           string(res.Profile),
				SupportedProfiles: refs(res.SupportedProfile),
				SearchParams:      definitions(res.SearchParam),
				Operations:        definitions(res.Operation),
			})
		}
		cs.Rest = append(cs.Rest, rest)
	}
	return cs, nil
}
