package pipeline

import (
	"encoding/json"
)

type jsonCommon struct {
	ResourceType   string `json:"resourceType"`
	ID             string `json:"id"`
	URL            string `json:"url"`
	Version        string `json:"version"`
	Status         string `json:"status"`
	Date           string `json:"date"`
	Name           string `json:"name"`
	Title          string `json:"title"`
	Publisher      string `json:"publisher"`
	Experimental   bool   `json:"experimental"`
	Description    string `json:"description"`
	Purpose        string `json:"purpose"`
	Copyright      string `json:"copyright"`
	CopyrightLabel string `json:"copyrightLabel"`

	Jurisdiction []struct {
		Coding []struct {
			Code string `json:"code"`
		} `json:"coding"`
	} `json:"jurisdiction"`

	Text *struct {
		Div string `json:"div"`
	} `json:"text"`
}

type jsonConcept struct {
	Code       string        `json:"code"`
	Display    string        `json:"display"`
	Definition string        `json:"definition"`
	Concept    []jsonConcept `json:"concept"`
}

type jsonDefinition struct {
	Definition ref `json:"definition"`
}

// ref is a canonical reference. Later generations write it as a string,
// earlier ones as a Reference object.
type ref string

func (r *ref) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*r = ref(s)
		return nil
	}

	var obj struct {
		Reference string `json:"reference"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*r = ref(obj.Reference)
	return nil
}

func refs(in []ref) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	for i, r := range in {
		out[i] = string(r)
	}
	return out
}

func definitions(in []jsonDefinition) []string {
	var out []string
	for _, d := range in {
		if d.Definition != "" {
			out = append(out, string(d.Definition))
		}
	}
	return out
}

// first returns the first non empty value.
func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
