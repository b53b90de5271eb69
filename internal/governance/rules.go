package governance

import (
	"fmt"
	"strings"

	"github.com/GonzoDMX/artifact-index/internal/models"
)

// multiNational is the realm segment that deliberately maps to no realm.
const multiNational = "mi"

// input is what every rule sees.
type input struct {
	pid      string // package id without the #version suffix
	rawPID   string // package id as given
	artifact *models.Artifact
}

// outcome of a single rule.
//   - matched=false: rule did not apply, continue down the chain
//   - matched=true, code!="": resolved
//   - matched=true, code=="": chain stops unresolved; unresolved is recorded
//     when set
type outcome struct {
	matched    bool
	code       string
	unresolved string
}

// rule is one (predicate, result) entry of a chain.
type rule struct {
	name  string
	apply func(in input) outcome
}

func resolved(code string) outcome { return outcome{matched: true, code: code} }

var skip = outcome{}

func prefix(p, code string) rule {
	return rule{name: "prefix " + p, apply: func(in input) outcome {
		if strings.HasPrefix(in.pid, p) {
			return resolved(code)
		}
		return skip
	}}
}

func contains(sub, code string) rule {
	return rule{name: "contains " + sub, apply: func(in input) outcome {
		if strings.Contains(in.pid, sub) {
			return resolved(code)
		}
		return skip
	}}
}

// rawContains matches against the id before the version suffix is dropped.
func rawContains(sub, code string) rule {
	return rule{name: "raw contains " + sub, apply: func(in input) outcome {
		if strings.Contains(in.rawPID, sub) {
			return resolved(code)
		}
		return skip
	}}
}

// segment resolves to the dotted segment at index idx of ids starting with p.
// aliases rewrite specific segment values.
func segment(p string, idx int, aliases map[string]string) rule {
	return rule{name: "segment " + p, apply: func(in input) outcome {
		if !strings.HasPrefix(in.pid, p) {
			return skip
		}
		parts := strings.Split(in.pid, ".")
		if len(parts) <= idx || parts[idx] == "" {
			return skip
		}
		s := parts[idx]
		if a, ok := aliases[s]; ok {
			s = a
		}
		return resolved(s)
	}}
}

// ---------------------------------------------------------
// REALM CHAIN
// ---------------------------------------------------------

// Jurisdictions maps artifact jurisdiction codes to realm codes.
var Jurisdictions = map[string]string{
	"001": "uv",
	"150": "eu",
	"840": "us",
	"AU":  "au",
	"NZ":  "nz",
	"BE":  "be",
	"EE":  "ee",
	"CH":  "ch",
	"DK":  "dk",
	"IL":  "il",
	"CK":  "ck",
	"CA":  "ca",
	"GB":  "uk",
	"CHE": "ch",
	"US":  "us",
	"SE":  "se",
	"BR":  "br",
	"NL":  "nl",
	"DE":  "de",
	"NO":  "no",
	"IN":  "in",
}

func jurisdiction() rule {
	return rule{name: "artifact jurisdiction", apply: func(in input) outcome {
		if in.artifact == nil || in.artifact.Jurisdiction == "" {
			return skip
		}
		j := in.artifact.Jurisdiction
		if realm, ok := Jurisdictions[j]; ok {
			return resolved(realm)
		}
		return outcome{matched: true, unresolved: fmt.Sprintf("%s : %s", j, in.pid)}
	}}
}

var realmRules = []rule{
	segment("hl7.fhir.", 2, map[string]string{"core": "uv", "pubpack": "uv"}),
	segment("hl7.cda.", 2, nil),
	prefix("hl7.fhirpath", "uv"),
	prefix("hl7.terminology", "uv"),
	jurisdiction(),
	prefix("fhir.", "us"),
	prefix("us.", "us"),
	prefix("ch.fhir.", "ch"),
	prefix("swiss.", "ch"),
	prefix("who.", "uv"),
	prefix("au.", "au"),
	rawContains(".de#", "de"),
	prefix("ehi.", "us"),
	prefix("hl7.eu", "eu"),
	prefix("hl7se.", "se"),
	prefix("ihe.", "uv"),
	prefix("tw.", "tw"),
	contains(".dk.", "dk"),
	contains(".sl.", "sl"),
	contains(".nl.", "nl"),
	contains(".fr.", "fr"),
	prefix("cinc.", "nz"),
	contains(".nz.", "nz"),
	prefix("jp-", "jp"),
}

// ---------------------------------------------------------
// AUTHORITY CHAIN
// ---------------------------------------------------------

// PublisherSubstrings are checked in order against the artifact publisher.
var PublisherSubstrings = []struct {
	Substring string
	Authority string
}{
	{"Te Whatu Ora", "national"},
	{"HL7", "hl7"},
	{"WHO", "who"},
}

// Publishers maps exact publisher names to authorities.
var Publishers = map[string]string{
	"Argonaut":                   "national",
	"Te Whatu Ora":               "national",
	"ANS":                        "national",
	"Canada Health Infoway":      "national",
	"Carequality":                "carequality",
	"Israeli Ministry of Health": "national",
}

func publisher() rule {
	return rule{name: "artifact publisher", apply: func(in input) outcome {
		if in.artifact == nil || in.artifact.Publisher == "" {
			return skip
		}
		p := in.artifact.Publisher
		for _, ps := range PublisherSubstrings {
			if strings.Contains(p, ps.Substring) {
				return resolved(ps.Authority)
			}
		}
		if auth, ok := Publishers[p]; ok {
			return resolved(auth)
		}
		return outcome{matched: true, unresolved: fmt.Sprintf("%s : %s", in.pid, p)}
	}}
}

var authorityRules = []rule{
	prefix("hl7.", "hl7"),
	prefix("hl7se.", "hl7"),
	prefix("fhir.", "hl7"),
	prefix("ch.fhir.", "hl7"),
	prefix("ihe.", "ihe"),
	prefix("ihe-", "ihe"),
	prefix("au.digital", "national"),
	prefix("ndhm.in", "national"),
	prefix("tw.gov", "national"),
	publisher(),
}

// evaluate runs a chain. When nothing matches, the package id is the
// unresolved record.
func evaluate(rules []rule, in input) outcome {
	for _, r := range rules {
		if out := r.apply(in); out.matched {
			return out
		}
	}
	return outcome{matched: false, unresolved: in.pid}
}

func stripVersion(pid string) string {
	if i := strings.Index(pid, "#"); i >= 0 {
		return pid[:i]
	}
	return pid
}
