// Package fsname sanitizes instance names for use as filesystem path segments.
package fsname

import "strings"

// Clean replaces the characters that are invalid in file names on common
// filesystems with underscores. All other characters, including non-ASCII,
// pass through untouched. Clean is idempotent.
func Clean(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*':
			return '_'
		}
		return r
	}, name)
}
