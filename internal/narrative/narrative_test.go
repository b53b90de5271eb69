package narrative

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestText(t *testing.T) {
	tests := []struct {
		name string
		div  string
		want string
	}{
		{"empty", "", ""},
		{"blank", "   \n", ""},
		{"plain", `<div xmlns="http://www.w3.org/1999/xhtml">Hello world</div>`, "Hello world"},
		{
			"nested",
			`<div><h1>Blood  pressure</h1><p>Systolic and<br/>diastolic <b>values</b></p></div>`,
			"Blood pressure Systolic and diastolic values",
		},
		{"table", `<div><table><tr><td>a</td><td>b</td></tr></table></div>`, "a b"},
		{"entities", `<div>x &lt; y &amp;&amp; z</div>`, "x < y && z"},
		{"script dropped", `<div>keep<script>var x = 1;</script></div>`, "keep"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Text(tt.div))
		})
	}
}

func TestStripRemovesNarrative(t *testing.T) {
	in := []byte(`{"resourceType":"ValueSet","id":"x","text":{"status":"generated","div":"<div>hi</div>"},"url":"http://a/b"}`)

	out, err := Strip(in)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(out, &got))
	assert.NotContains(t, got, "text")
	assert.Equal(t, "ValueSet", got["resourceType"])
	assert.Equal(t, "x", got["id"])
	assert.Equal(t, "http://a/b", got["url"])
}

func TestStripWithoutNarrativeIsUnchanged(t *testing.T) {
	in := []byte(`{"resourceType":"CodeSystem","id":"y"}`)

	out, err := Strip(in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestStripRejectsNonObject(t *testing.T) {
	_, err := Strip([]byte(`[1,2,3]`))
	assert.Error(t, err)

	_, err = Strip([]byte(`not json`))
	assert.Error(t, err)
}
