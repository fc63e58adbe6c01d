package nexum

import "strings"

// Filters maps operation-name glob patterns to lists of nested field paths
// removed from responses after a successful call. A pattern matches an
// operation when their segment counts are equal and every non-wildcard
// pattern segment equals the corresponding name segment.
type Filters map[string][]string

// DefaultFilters strips the heavyweight denormalized sub-objects the API
// attaches to content-like resources. Strictly opt-in per client.
func DefaultFilters() Filters {
	return Filters{
		// content/get, content/list, ...
		"content/*": {
			"lastRevision",
			"authorDetails",
			"updatedByDetails",
			"writerDetails",
			"headerDetails",
			"customContentTypeDetails",
			"properties/duplicateContent",
			"excerpt",
		},
		// community/get, community/list, ...
		"community/*": {
			"lastRevision",
			"authorDetails",
			"updatedByDetails",
			"writerDetails",
			"headerDetails",
			"customContentTypeDetails",
			"adminsDetails",
			"usersDetails",
		},
		"communitytemplate/*": {
			"lastRevision",
			"authorDetails",
			"updatedByDetails",
			"writerDetails",
			"headerDetails",
			"customContentTypeDetails",
			"adminsDetails",
			"usersDetails",
		},
		// template/get, template/list, ...
		"template/*": {"properties/duplicateContent"},
		"community/post/*": {
			"authorDetails",
			"updatedByDetails",
			"mentionsDetails",
			"parentContentDetails",
			"headerDetails",
			"tagsDetails",
			"excerpt",
		},
		"comment/get":  {"authorProperties", "mentionsDetails"},
		"comment/list": {"authorProperties", "mentionsDetails"},
	}
}

// Apply removes the configured field paths from content for every pattern
// matching nameParts. Content may be a single object or a list of objects;
// anything else is returned untouched.
func (f Filters) Apply(nameParts []string, content interface{}) interface{} {
	if len(f) == 0 {
		return content
	}

	for pattern, paths := range f {
		if !matchPattern(pattern, nameParts) {
			continue
		}

		for _, path := range paths {
			switch v := content.(type) {
			case []interface{}:
				for _, item := range v {
					popMatches(path, item)
				}
			default:
				popMatches(path, content)
			}
		}
	}

	return content
}

func matchPattern(pattern string, nameParts []string) bool {
	patternParts := strings.Split(pattern, "/")
	if len(patternParts) != len(nameParts) {
		return false
	}

	for i, part := range patternParts {
		if part != "*" && part != nameParts[i] {
			return false
		}
	}

	return true
}

// popMatches removes the field addressed by the slash-separated path from
// the object. A no-op when any intermediate segment is absent or not a
// mapping.
func popMatches(path string, obj interface{}) {
	if path == "" {
		return
	}

	parts := strings.Split(path, "/")

	for _, part := range parts[:len(parts)-1] {
		m, ok := obj.(map[string]interface{})
		if !ok {
			return
		}

		obj = m[part]
	}

	m, ok := obj.(map[string]interface{})
	if !ok {
		return
	}

	delete(m, parts[len(parts)-1])
}
