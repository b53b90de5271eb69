package extract

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GonzoDMX/artifact-index/internal/models"
)

const canonical = "http://acme.org/fhir"

func artifact(p models.Payload) *models.Artifact {
	return &models.Artifact{ResourceType: string(p.Kind()), Payload: p}
}

func concepts(n int, children func() []models.Concept) []models.Concept {
	out := make([]models.Concept, n)
	for i := range out {
		out[i] = models.Concept{Code: "c" + strconv.Itoa(i), Display: "Concept", Concepts: children()}
	}
	return out
}

func TestCodeSystemCountsNestedConcepts(t *testing.T) {
	tests := []struct {
		name string
		n, m int
	}{
		{"empty", 0, 0},
		{"flat", 5, 0},
		{"one level", 3, 4},
		{"wide", 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs := &models.CodeSystem{Concepts: concepts(tt.n, func() []models.Concept {
				return concepts(tt.m, func() []models.Concept { return nil })
			})}

			res := Extract(artifact(cs), canonical)

			require.NotNil(t, res.Details)
			assert.Equal(t, strconv.Itoa(tt.n+tt.n*tt.m), *res.Details)
			assert.Len(t, res.Concepts, tt.n+tt.n*tt.m)
			assert.Empty(t, res.Categories)
		})
	}
}

func TestCodeSystemCountsArbitraryDepth(t *testing.T) {
	cs := &models.CodeSystem{Concepts: []models.Concept{{
		Code: "a",
		Concepts: []models.Concept{{
			Code: "a.1",
			Concepts: []models.Concept{{
				Code:     "a.1.1",
				Concepts: []models.Concept{{Code: "a.1.1.1"}},
			}},
		}},
	}, {Code: "b", Definition: "second"}}}

	res := Extract(artifact(cs), canonical)

	require.NotNil(t, res.Details)
	assert.Equal(t, "5", *res.Details)
	assert.Equal(t, ConceptEntry{Code: "b", Definition: "second"}, res.Concepts[4])
	assert.Equal(t, "a.1.1.1", res.Concepts[3].Code)
}

func TestValueSetClassifiesSystems(t *testing.T) {
	vs := &models.ValueSet{Includes: []models.ValueSetInclude{
		{System: "http://loinc.org"},
		{System: "http://snomed.info/sct"},
		{System: "http://loinc.org"},
		{ValueSets: []string{canonical + "/ValueSet/local"}},
		{System: "http://nowhere.invalid/codes"},
	}}

	res := Extract(artifact(vs), canonical)

	require.NotNil(t, res.Details)
	assert.Equal(t, "internal,loinc,sct", *res.Details)
	assert.Equal(t, []Category{
		{ModeTerminology, "internal"},
		{ModeTerminology, "loinc"},
		{ModeTerminology, "sct"},
	}, res.Categories)
}

func TestValueSetWithoutKnownSystems(t *testing.T) {
	vs := &models.ValueSet{Includes: []models.ValueSetInclude{{System: "http://nowhere.invalid/codes"}}}

	res := Extract(artifact(vs), canonical)

	require.NotNil(t, res.Details)
	assert.Equal(t, "", *res.Details)
	assert.Empty(t, res.Categories)
}

func TestConceptMapClassifiesScopesAndGroups(t *testing.T) {
	cm := &models.ConceptMap{
		SourceScope: "http://loinc.org/vs",
		TargetScope: "http://snomed.info/sct?fhir_vs",
		Groups: []models.MapGroup{
			{Source: "http://unitsofmeasure.org", Target: "http://loinc.org"},
		},
	}

	res := Extract(artifact(cm), canonical)

	require.NotNil(t, res.Details)
	assert.Equal(t, "loinc,sct,ucum", *res.Details)
	assert.Len(t, res.Categories, 3)
}

func extension(contexts []string, valueTypes []string, modifier bool) *models.StructureDefinition {
	sd := &models.StructureDefinition{
		Type:       "Extension",
		Derivation: "constraint",
		Snapshot: []models.ElementDefinition{
			{Path: "Extension", Max: "*", IsModifier: modifier},
			{Path: "Extension.url", Max: "1"},
		},
	}
	for _, c := range contexts {
		sd.Contexts = append(sd.Contexts, models.ExtensionContext{Type: models.ContextElement, Expression: c})
	}
	if valueTypes != nil {
		ed := models.ElementDefinition{Path: "Extension.value[x]", Max: "1"}
		for _, vt := range valueTypes {
			ed.Types = append(ed.Types, models.TypeRef{Code: vt})
		}
		sd.Snapshot = append(sd.Snapshot, ed)
	}
	return sd
}

func TestExtensionContextsAndValueType(t *testing.T) {
	sd := extension([]string{"Patient.name", "Patient.address"}, []string{"string"}, false)

	res := Extract(artifact(sd), canonical)

	require.NotNil(t, res.Details)
	assert.Equal(t, "Context: Patient.address,Patient.name|Type:string|Mod:0", *res.Details)
	assert.Contains(t, *res.Details, "Patient.name")
	assert.Contains(t, *res.Details, "Patient.address")
	assert.Equal(t, []Category{
		{ModeExtensionContext, "Patient"},
		{ModeExtensionValueType, "string"},
	}, res.Categories)
}

func TestExtensionComplexModifier(t *testing.T) {
	sd := extension([]string{"Observation", "Condition.code"}, nil, true)
	sd.Contexts = append(sd.Contexts, models.ExtensionContext{Type: models.ContextFHIRPath, Expression: "Resource.meta"})

	res := Extract(artifact(sd), canonical)

	require.NotNil(t, res.Details)
	assert.Equal(t, "Context: Condition.code,Observation|Type:complex|Mod:1", *res.Details)
	assert.Equal(t, []Category{
		{ModeExtensionContext, "Condition"},
		{ModeExtensionContext, "Observation"},
	}, res.Categories)
}

func TestExtensionProhibitedValueIsComplex(t *testing.T) {
	sd := extension([]string{"Patient"}, []string{"string"}, false)
	sd.Snapshot[2].Max = "0"

	res := Extract(artifact(sd), canonical)

	require.NotNil(t, res.Details)
	assert.Equal(t, "Context: Patient|Type:complex|Mod:0", *res.Details)
	assert.Equal(t, []Category{{ModeExtensionContext, "Patient"}}, res.Categories)
}

func TestExtensionMultipleValueTypes(t *testing.T) {
	sd := extension([]string{"Patient"}, []string{"string", "CodeableConcept", "string"}, false)

	res := Extract(artifact(sd), canonical)

	require.NotNil(t, res.Details)
	assert.Equal(t, "Context: Patient|Type:CodeableConcept,string|Mod:0", *res.Details)
	assert.Len(t, res.Categories, 3)
}

func TestProfileHasNoDetail(t *testing.T) {
	sd := &models.StructureDefinition{Type: "Patient", Derivation: "constraint"}

	res := Extract(artifact(sd), canonical)

	assert.Nil(t, res.Details)
	assert.Empty(t, res.Categories)
}

func TestCapabilityStatement(t *testing.T) {
	cs := &models.CapabilityStatement{
		StatementKind:        "requirements",
		FHIRVersion:          "4.0.1",
		Instantiates:         []string{"http://hl7.org/fhir/CapabilityStatement/base"},
		ImplementationGuides: []string{"http://acme.org/fhir/ImplementationGuide/acme"},
		Rest: []models.CapabilityRest{{
			Mode:       "server",
			Operations: []string{"http://hl7.org/fhir/OperationDefinition/Resource-validate"},
			Resources: []models.CapabilityResource{{
				Type:              "Patient",
				Profile:           "http://acme.org/fhir/StructureDefinition/patient",
				SupportedProfiles: []string{"http://acme.org/fhir/StructureDefinition/patient", ""},
				SearchParams:      []string{"http://hl7.org/fhir/SearchParameter/Patient-name"},
			}},
		}},
	}

	res := Extract(artifact(cs), canonical)

	require.NotNil(t, res.Details)
	assert.Equal(t, "requirements|4.0.1", *res.Details)
	assert.Equal(t, []Category{
		{ModeProfile, "http://acme.org/fhir/StructureDefinition/patient"},
		{ModeDefinition, "http://acme.org/fhir/ImplementationGuide/acme"},
		{ModeDefinition, "http://hl7.org/fhir/CapabilityStatement/base"},
		{ModeDefinition, "http://hl7.org/fhir/OperationDefinition/Resource-validate"},
		{ModeDefinition, "http://hl7.org/fhir/SearchParameter/Patient-name"},
	}, res.Categories)
}

func TestOtherKindsHaveNoDetail(t *testing.T) {
	res := Extract(artifact(&models.Other{Type: "Questionnaire"}), canonical)
	assert.Nil(t, res.Details)
	assert.Empty(t, res.Categories)

	res = Extract(&models.Artifact{ResourceType: "Questionnaire"}, canonical)
	assert.Nil(t, res.Details)
}
