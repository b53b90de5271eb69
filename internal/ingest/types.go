package ingest

import (
	"strings"
)

// SupportedTypes defines the allow-list of artifact kinds that are indexed.
// We use a map for O(1) lookups.
var SupportedTypes = map[string]bool{
	// Terminology
	"CodeSystem":              true,
	"ValueSet":                true,
	"ConceptMap":              true,
	"NamingSystem":            true,
	"TerminologyCapabilities": true,

	// Conformance
	"CapabilityStatement": true,
	"StructureDefinition": true,
	"StructureMap":        true,
	"ImplementationGuide": true,
	"SearchParameter":     true,
	"OperationDefinition": true,
	"MessageDefinition":   true,
	"GraphDefinition":     true,
	"ExampleScenario":     true,
	"ActorDefinition":     true,
	"Requirements":        true,

	// Knowledge artifacts
	"ActivityDefinition":    true,
	"ConditionDefinition":   true,
	"DeviceDefinition":      true,
	"EventDefinition":       true,
	"ObservationDefinition": true,
	"PlanDefinition":        true,
	"SpecimenDefinition":    true,
	"Questionnaire":         true,
	"Measure":               true,
	"MeasureReport":         true,
	"Medication":            true,
	"Group":                 true,

	// Testing
	"TestPlan":   true,
	"TestReport": true,
	"TestScript": true,
}

// typeAliases maps kinds renamed between schema generations to their
// current name.
var typeAliases = map[string]string{
	"Conformance": "CapabilityStatement",
}

// NormalizeType returns the current name of a resource type.
func NormalizeType(resourceType string) string {
	if n, ok := typeAliases[resourceType]; ok {
		return n
	}
	return resourceType
}

// IsSupported determines if an artifact of the given type should be indexed.
// Types renamed between generations are accepted under either name.
func IsSupported(resourceType string) bool {
	return SupportedTypes[NormalizeType(resourceType)]
}

// Processor names returned by GetProcessorType.
const (
	ProcessorR2      = "r2"
	ProcessorR3      = "r3"
	ProcessorR4      = "r4"
	ProcessorR5      = "r5"
	ProcessorSkip    = "skip"
	ProcessorUnknown = "unknown"
)

// skippedVersions are interim ballot releases; their content is neither
// stable nor convertible.
var skippedVersions = []string{"current", "4.6", "3.5", "1.8"}

// GetProcessorType returns a standardized string for which decoder dialect
// handles a schema version tag.
func GetProcessorType(version string) string {
	v := strings.TrimSpace(version)

	// 1. Interim releases
	for _, p := range skippedVersions {
		if strings.HasPrefix(v, p) {
			return ProcessorSkip
		}
	}

	// 2. Known generations
	switch {
	case strings.HasPrefix(v, "1.0"), strings.HasPrefix(v, "1.4"):
		return ProcessorR2
	case strings.HasPrefix(v, "3.0"):
		return ProcessorR3
	case strings.HasPrefix(v, "4.0"), strings.HasPrefix(v, "4.3"):
		return ProcessorR4
	case strings.HasPrefix(v, "5."), strings.HasPrefix(v, "6."):
		return ProcessorR5
	default:
		return ProcessorUnknown
	}
}
