// Package feedback maps review feedback onto the feature tags the builder
// understands.
package feedback

import "strings"

// MaxFeatures caps the number of tags requested per iteration.
const MaxFeatures = 5

// Feature is a tag together with the keywords that request it.
type Feature struct {
	Tag      string
	Keywords []string
}

// Features is matched in order; the first matching entries win the cap.
var Features = []Feature{
	{Tag: "navigation", Keywords: []string{"navigation", "navbar", "menu"}},
	{Tag: "hero", Keywords: []string{"hero", "banner", "landing"}},
	{Tag: "authentication", Keywords: []string{"auth", "login", "signup", "authentication"}},
	{Tag: "api", Keywords: []string{"api", "backend", "service"}},
	{Tag: "database", Keywords: []string{"database", "db", "data"}},
	{Tag: "responsive", Keywords: []string{"responsive", "mobile", "responsive design"}},
	{Tag: "styling", Keywords: []string{"styling", "css", "design", "ui"}},
	{Tag: "components", Keywords: []string{"component", "module"}},
}

// Fallback is returned when nothing in the input matches a feature.
var Fallback = []string{"improve_code_quality", "add_missing_components"}

// Extract scans issues then suggestions and returns the feature tags they
// mention, deduplicated in discovery order and capped at MaxFeatures.
func Extract(issues, suggestions []string) []string {
	var tags []string
	seen := make(map[string]bool)

	items := make([]string, 0, len(issues)+len(suggestions))
	items = append(items, issues...)
	items = append(items, suggestions...)

	for _, item := range items {
		lower := strings.ToLower(item)
		for _, f := range Features {
			if seen[f.Tag] || !mentions(lower, f.Keywords) {
				continue
			}
			seen[f.Tag] = true
			tags = append(tags, f.Tag)
		}
	}

	if len(tags) == 0 {
		return append([]string(nil), Fallback...)
	}
	if len(tags) > MaxFeatures {
		tags = tags[:MaxFeatures]
	}
	return tags
}

func mentions(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
