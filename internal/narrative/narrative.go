// Package narrative handles the human readable XHTML block carried by
// artifacts: it is indexed as plain text and kept out of the stored
// normalized form.
package narrative

import (
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// skipped elements never contribute text.
var skipped = map[string]bool{"script": true, "style": true}

// Text returns the visible text of an XHTML fragment with whitespace
// collapsed. Unparseable input yields "".
func Text(div string) string {
	if strings.TrimSpace(div) == "" {
		return ""
	}
	doc, err := html.Parse(strings.NewReader(div))
	if err != nil {
		return ""
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skipped[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			for _, f := range strings.Fields(n.Data) {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(f)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return sb.String()
}

// Strip removes the top level "text" member from a serialized artifact.
// Input without a narrative is returned unchanged.
func Strip(normalized []byte) ([]byte, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(normalized, &fields); err != nil {
		return nil, fmt.Errorf("narrative strip: %w", err)
	}
	if _, ok := fields["text"]; !ok {
		return normalized, nil
	}
	delete(fields, "text")
	return json.Marshal(fields)
}
