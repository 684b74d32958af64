package metrics

import "regexp"

// literalGetPattern finds http.get calls whose first argument is a literal URL.
var literalGetPattern = regexp.MustCompile("http\\.get\\(\\s*['\"`](https?://[^'\"`]+)['\"`]")

// ScanScriptEndpoints lists the literal URLs passed to http.get in a script,
// without duplicates and in source order. Every entry has zero counts. The
// result is never nil.
func ScanScriptEndpoints(script string) []EndpointMetric {
	out := []EndpointMetric{}
	seen := make(map[string]bool)

	for _, m := range literalGetPattern.FindAllStringSubmatch(script, -1) {
		url := m[1]
		if seen[url] {
			continue
		}
		seen[url] = true
		out = append(out, EndpointMetric{Label: url})
	}

	return out
}
