package cache

import (
	"fmt"
	"sort"
	"strings"
)

// Fingerprint identifies a logical search: the query plus every provider
// option that changes which results the backend returns.
type Fingerprint struct {
	// Query is the already composed query text
	Query string

	// Locale is the backend locale (e.g., "us-en")
	Locale string

	// Region is the backend region (e.g., "wt-wt")
	Region string

	// SafeSearch is the safe search level (strict, moderate, off)
	SafeSearch string

	// TimePeriod restricts result age (d, w, m, y or empty)
	TimePeriod string

	// Extra carries provider specific options
	Extra map[string]string
}

// String generates a deterministic, normalized key.
// Format: search:q=query:l=locale:r=region:s=safe:t=time:extra1=val1
//
// Example:
//
//	search:q=golang generics:l=us-en:r=wt-wt:s=moderate
func (f Fingerprint) String() string {
	parts := []string{"search", "q=" + normalizeQuery(f.Query)}

	for _, opt := range []struct{ name, value string }{
		{"l", f.Locale},
		{"r", f.Region},
		{"s", f.SafeSearch},
		{"t", f.TimePeriod},
	} {
		if v := normalizeOption(opt.value); v != "" {
			parts = append(parts, fmt.Sprintf("%s=%s", opt.name, v))
		}
	}

	// Add extras (sorted for determinism)
	if len(f.Extra) > 0 {
		keys := make([]string, 0, len(f.Extra))
		for key := range f.Extra {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			if v := normalizeOption(f.Extra[key]); v != "" {
				parts = append(parts, fmt.Sprintf("%s=%s", strings.ToLower(key), v))
			}
		}
	}

	return strings.Join(parts, ":")
}

// normalizeQuery lower-cases the query and collapses whitespace runs.
func normalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

func normalizeOption(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
