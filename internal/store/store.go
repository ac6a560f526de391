// Package store provides the entity stores the import engine writes to.
//
// Both stores hand out one session per run. Reads inside a session see the
// entities saved earlier in the same session; nothing is visible to other
// sessions until Flush.
package store

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/catalogimport/internal/core"
)

var (
	_ core.SessionOpener = (*Postgres)(nil)
	_ core.SessionOpener = (*Memory)(nil)
)

// slotMatches reports whether a stored value at (locale, scope) is visible
// from a query in (wantLocale, wantScope): either the exact slot or the
// non-localized/non-scoped one.
func slotMatches(locale, scope, wantLocale, wantScope string) bool {
	return (locale == "" || locale == wantLocale) && (scope == "" || scope == wantScope)
}

// matchValue applies a filter operator to a stored value. contains and
// starts compare case-insensitively, like ILIKE.
func matchValue(op core.FilterOperator, stored, want string) (bool, error) {
	switch op {
	case core.OpEquals:
		return stored == want, nil
	case core.OpContains:
		return strings.Contains(strings.ToLower(stored), strings.ToLower(want)), nil
	case core.OpStartsWith:
		return strings.HasPrefix(strings.ToLower(stored), strings.ToLower(want)), nil
	case core.OpIn:
		for _, v := range strings.Split(want, ",") {
			if stored == strings.TrimSpace(v) {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("unsupported filter operator %q", op)
	}
}
