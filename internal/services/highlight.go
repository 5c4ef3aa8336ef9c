package services

import (
	"html"
	"regexp"
	"sort"
	"strings"
)

const (
	HighlightOpen  = "<mark>"
	HighlightClose = "</mark>"
)

type highlighter struct {
	re *regexp.Regexp
}

// newHighlighter matches every whitespace separated term of query, case-insensitively.
// Longer terms win when terms overlap.
func newHighlighter(query string) highlighter {
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return highlighter{}
	}
	sort.SliceStable(terms, func(i, j int) bool { return len(terms[i]) > len(terms[j]) })

	quoted := make([]string, 0, len(terms))
	seen := map[string]struct{}{}
	for _, t := range terms {
		key := strings.ToLower(t)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		quoted = append(quoted, regexp.QuoteMeta(t))
	}
	return highlighter{re: regexp.MustCompile("(?i)(?:" + strings.Join(quoted, "|") + ")")}
}

// apply HTML-escapes content, wraps matches in highlight markers and reports whether
// anything matched. Terms are matched against the raw content.
func (h highlighter) apply(content string) (string, bool) {
	if h.re == nil {
		return html.EscapeString(content), false
	}
	spans := h.re.FindAllStringIndex(content, -1)
	if len(spans) == 0 {
		return html.EscapeString(content), false
	}

	var b strings.Builder
	last := 0
	for _, span := range spans {
		b.WriteString(html.EscapeString(content[last:span[0]]))
		b.WriteString(HighlightOpen)
		b.WriteString(html.EscapeString(content[span[0]:span[1]]))
		b.WriteString(HighlightClose)
		last = span[1]
	}
	b.WriteString(html.EscapeString(content[last:]))
	return b.String(), true
}
