// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package tracking

import "strings"

// PathMatcher decides whether a page path is tracked. Entries are exact
// paths, or prefixes when they end in "*": "/blog/*" matches "/blog/a" but
// not "/blog", which has to be listed on its own.
type PathMatcher struct {
	entries  []string
	exact    map[string]struct{}
	prefixes []string
}

// NewPathMatcher builds a matcher from allow-list entries.
func NewPathMatcher(entries []string) *PathMatcher {
	m := &PathMatcher{exact: make(map[string]struct{}, len(entries))}
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		m.entries = append(m.entries, e)
		if prefix, ok := strings.CutSuffix(e, "*"); ok {
			m.prefixes = append(m.prefixes, prefix)
			continue
		}
		m.exact[e] = struct{}{}
	}
	return m
}

// Match reports whether path is tracked.
func (m *PathMatcher) Match(path string) bool {
	if _, ok := m.exact[path]; ok {
		return true
	}
	for _, prefix := range m.prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Entries returns the configured allow-list.
func (m *PathMatcher) Entries() []string {
	return append([]string(nil), m.entries...)
}
