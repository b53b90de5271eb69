// Package classify maps terminology system identifiers to short source tags.
package classify

import "strings"

// Unclassified is returned for systems that match no rule.
const Unclassified = ""

// Rule is one entry of the ordered classification table.
type Rule struct {
	Tag   string
	Match func(system, canonical string) bool
}

// Source is a known terminology source tag and its display name.
type Source struct {
	Code    string
	Display string
}

// Rules is evaluated top to bottom; the first match wins.
var Rules = []Rule{
	// NOTE: the bare "sct" substring also catches unrelated systems
	{Tag: "sct", Match: anyContains("http://snomed.info/sct", "snomed", "sct")},
	{Tag: "loinc", Match: hasPrefix("http://loinc.org")},
	{Tag: "ucum", Match: anyContains("http://unitsofmeasure.org")},
	{Tag: "ndc", Match: equals("http://hl7.org/fhir/sid/ndc")},
	{Tag: "cvx", Match: equals("http://hl7.org/fhir/sid/cvx")},
	{Tag: "iso", Match: anyContains("iso.org", ":iso:")},
	{Tag: "cms", Match: anyContains("cms.gov")},
	{Tag: "cdc", Match: anyContains("cdc.gov")},
	{Tag: "ietf", Match: anyContains(":ietf:", ":iana:")},
	{Tag: "ihe", Match: anyContains("ihe.net", ":ihe:")},
	{Tag: "icpc", Match: anyContains("icpc")},
	{Tag: "ncpdp", Match: anyContains("ncpdp")},
	{Tag: "x12", Match: anyContains("x12.org")},
	{Tag: "nucc", Match: anyContains("nucc")},
	{Tag: "icd", Match: equals(
		"http://hl7.org/fhir/sid/icd-9-cm",
		"http://hl7.org/fhir/sid/icd-10",
		"http://fhir.de/CodeSystem/dimdi/icd-10-gm",
		"http://hl7.org/fhir/sid/icd-10-nl 2.16.840.1.113883.6.3.2",
		"http://hl7.org/fhir/sid/icd-10-cm",
		"http://id.who.int/icd11/mms",
	)},
	{Tag: "oid", Match: anyContains("urn:oid:")},
	{Tag: "dcm", Match: func(s, _ string) bool {
		return s == "http://dicom.nema.org/resources/ontology/DCM" || strings.Contains(s, "http://dicom.nema.org/medical")
	}},
	{Tag: "cpt", Match: equals("http://www.ama-assn.org/go/cpt")},
	{Tag: "rx", Match: equals("http://www.nlm.nih.gov/research/umls/rxnorm")},
	{Tag: "vsac", Match: hasPrefix("http://cts.nlm.nih.gov")},
	{Tag: "tho", Match: hasPrefix("http://terminology.hl7.org")},
	{Tag: "atc", Match: hasPrefix("http://www.whocc.no/atc")},
	{Tag: "ncit", Match: hasPrefix("http://ncicb.nci.nih.gov/xml/owl")},
	{Tag: "fhir", Match: hasPrefix("http://hl7.org/fhir")},
	{Tag: "gene", Match: hasPrefix(
		"http://sequenceontology.org",
		"http://www.ebi.ac.uk/ols/ontologies/gen",
		"http://human-phenotype-ontology.org",
		"http://purl.obolibrary.org/obo/sepio-clingen",
		"http://www.genenames.org",
		"http://varnomen.hgvs.org",
	)},
	{Tag: "internal", Match: func(s, canonical string) bool {
		return canonical != "" && strings.HasPrefix(s, canonical)
	}},
	{Tag: "example", Match: anyContains("example.org")},
}

// Sources is the static tag to display table seeded into every store.
var Sources = []Source{
	{"sct", "SNOMED-CT"},
	{"loinc", "LOINC"},
	{"ucum", "UCUM"},
	{"ndc", "NDC"},
	{"cvx", "CVX"},
	{"iso", "ISO Standard"},
	{"ietf", "IETF"},
	{"ihe", "IHE"},
	{"icpc", "ICPC Variant"},
	{"ncpdp", "NCPDP"},
	{"nucc", "NUCC"},
	{"icd", "ICD-X"},
	{"oid", "OID-Based"},
	{"dcm", "DICOM"},
	{"cpt", "CPT"},
	{"rx", "RxNorm"},
	{"tho", "terminology.hl7.org"},
	{"fhir", "hl7.org/fhir"},
	{"internal", "Internal"},
	{"example", "Example"},
	{"vsac", "VSAC"},
	{"atc", "ATC"},
	{"ncit", "NCI-Thesaurus"},
	{"x12", "X12"},
	{"cms", "CMS (USA)"},
	{"cdc", "CDC (USA)"},
	{"gene", "Sequence Codes"},
}

// System classifies a terminology system URI. canonical is the canonical base
// of the package the referencing artifact belongs to.
// Returns Unclassified when no rule matches.
func System(system, canonical string) string {
	if system == "" {
		return Unclassified
	}
	for _, r := range Rules {
		if r.Match(system, canonical) {
			return r.Tag
		}
	}
	return Unclassified
}

func anyContains(subs ...string) func(string, string) bool {
	return func(s, _ string) bool {
		for _, sub := range subs {
			if strings.Contains(s, sub) {
				return true
			}
		}
		return false
	}
}

func hasPrefix(prefixes ...string) func(string, string) bool {
	return func(s, _ string) bool {
		for _, p := range prefixes {
			if strings.HasPrefix(s, p) {
				return true
			}
		}
		return false
	}
}

func equals(values ...string) func(string, string) bool {
	return func(s, _ string) bool {
		for _, v := range values {
			if s == v {
				return true
			}
		}
		return false
	}
}
