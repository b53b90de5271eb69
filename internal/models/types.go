package models

// Kind is the normalized artifact kind (resourceType of the canonical form).
type Kind string

const (
	KindCodeSystem          Kind = "CodeSystem"
	KindValueSet            Kind = "ValueSet"
	KindConceptMap          Kind = "ConceptMap"
	KindStructureDefinition Kind = "StructureDefinition"
	KindCapabilityStatement Kind = "CapabilityStatement"
)

// Artifact is one decoded canonical artifact.
// Common identity fields live here; kind specific content lives in Payload.
type Artifact struct {
	ResourceType string // normalized kind, e.g. "ValueSet"
	ID           string
	URL          string // canonical URL, the dedup key
	Version      string
	Status       string
	Date         string
	Name         string
	Title        string
	Publisher    string
	Experimental bool

	Description    string
	Purpose        string
	Copyright      string
	CopyrightLabel string

	// Jurisdiction is the code of the first coding of the first jurisdiction.
	Jurisdiction string

	// Div is the XHTML narrative (text.div) as found in the source.
	Div string

	// Properties holds the raw top level string properties
	// kind, type, supplements, valueSet and content.
	Properties map[string]string

	// Normalized is the canonical JSON serialization, narrative included.
	Normalized []byte

	Payload Payload
}

// Property returns a raw string property, or "" when absent.
func (a *Artifact) Property(name string) string {
	if a.Properties == nil {
		return ""
	}
	return a.Properties[name]
}

// ---------------------------------------------------------
// CodeSystem
// ---------------------------------------------------------

type Concept struct {
	Code       string
	Display    string
	Definition string
	Concepts   []Concept // nested children
}

type CodeSystem struct {
	Concepts []Concept
}

// ---------------------------------------------------------
// ValueSet
// ---------------------------------------------------------

type ValueSetInclude struct {
	System    string
	ValueSets []string
}

type ValueSet struct {
	Includes []ValueSetInclude
}

// ---------------------------------------------------------
// ConceptMap
// ---------------------------------------------------------

type MapGroup struct {
	Source string
	Target string
}

type ConceptMap struct {
	SourceScope string
	TargetScope string
	Groups      []MapGroup
}

// ---------------------------------------------------------
// StructureDefinition
// ---------------------------------------------------------

// ContextType values for extension contexts.
const (
	ContextElement   = "element"
	ContextExtension = "extension"
	ContextFHIRPath  = "fhirpath"
)

type ExtensionContext struct {
	Type       string
	Expression string
}

type TypeRef struct {
	Code string
}

type ElementDefinition struct {
	ID         string
	Path       string
	Max        string
	IsModifier bool
	Types      []TypeRef
}

type StructureDefinition struct {
	Type       string // constrained type, "Extension" for extension definitions
	Derivation string // "constraint" or "specialization"
	Contexts   []ExtensionContext
	Snapshot   []ElementDefinition
}

// Element returns the snapshot element with the given path.
func (sd *StructureDefinition) Element(path string) (ElementDefinition, bool) {
	for _, ed := range sd.Snapshot {
		if ed.Path == path {
			return ed, true
		}
	}
	return ElementDefinition{}, false
}

// IsExtension reports whether this is an extension definition.
func (sd *StructureDefinition) IsExtension() bool {
	return sd.Type == "Extension" && sd.Derivation == "constraint"
}

// ---------------------------------------------------------
// CapabilityStatement
// ---------------------------------------------------------

type CapabilityResource struct {
	Type              string
	Profile           string
	SupportedProfiles []string
	SearchParams      []string // definitions
	Operations        []string // definitions
}

type CapabilityRest struct {
	Mode         string
	SearchParams []string
	Operations   []string
	Resources    []CapabilityResource
}

type CapabilityStatement struct {
	StatementKind        string
	FHIRVersion          string
	Instantiates         []string
	Imports              []string
	ImplementationGuides []string
	Rest                 []CapabilityRest
}

// ---------------------------------------------------------
// Everything else
// ---------------------------------------------------------

// Other is any other canonical kind; it carries no kind specific content.
type Other struct {
	Type Kind
}
