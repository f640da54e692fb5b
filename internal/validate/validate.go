// Package validate holds small, dependency-free checks shared by
// Pipeline.Build: non-empty names and duplicate-name detection. It exists
// so that configuration-error messages are built consistently in one place
// rather than inlined at every call site.
package validate

import "fmt"

// Name reports an error if name is empty. kind labels the error message
// ("worker", "pipe") for callers that validate several kinds of names.
func Name(kind, name string) error {
	if name == "" {
		return fmt.Errorf("%s name must not be empty", kind)
	}
	return nil
}

// Unique reports an error naming the first duplicate found in names, or
// nil if every name is distinct. kind labels the error message.
func Unique(kind string, names []string) error {
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if seen[n] {
			return fmt.Errorf("duplicate %s name: %q", kind, n)
		}
		seen[n] = true
	}
	return nil
}
