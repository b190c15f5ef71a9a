// Package codetable provides the registry of governed HL7 v2 value sets
// used to answer code validity and replacement queries during correction.
package codetable

import (
	"sort"
	"sync"
)

// Table is one governed code table. Tables are immutable once loaded.
type Table struct {
	ID          string
	Name        string
	Description string

	codes  map[string]struct{}
	sorted []string

	// preferred lists replacement candidates in preference order. For
	// identifier-type tables this is the designated local-identifier
	// code; for categorical tables a designated other/unspecified code.
	preferred []string
}

// Codes returns the table's valid codes in lexicographic order.
func (t *Table) Codes() []string {
	out := make([]string, len(t.sorted))
	copy(out, t.sorted)
	return out
}

// Contains reports whether code is a member of the table.
func (t *Table) Contains(code string) bool {
	_, ok := t.codes[code]
	return ok
}

// Len returns the number of codes in the table.
func (t *Table) Len() int {
	return len(t.codes)
}

// Registry holds the loaded code tables. It is safe for concurrent use;
// after loading it is read-only and shared across correction sessions
// without further coordination.
type Registry struct {
	mu     sync.RWMutex
	tables map[string]*Table
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tables: make(map[string]*Table),
	}
}

// Table returns the named table, or nil when it is not loaded.
func (r *Registry) Table(id string) *Table {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tables[id]
}

// Count returns the number of loaded tables.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tables)
}

// TableIDs returns the loaded table identifiers in lexicographic order.
func (r *Registry) TableIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.tables))
	for id := range r.tables {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// IsValid reports whether code is a member of the named table. An unknown
// table is never treated as valid.
func (r *Registry) IsValid(tableID, code string) bool {
	r.mu.RLock()
	t, ok := r.tables[tableID]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	return t.Contains(code)
}

// SuggestReplacement picks the best valid replacement for an invalid code.
// Table-specific preference codes are tried first; when none applies the
// lexicographically first code is returned so that suggestions are
// deterministic. ok is false when the table is absent or empty.
func (r *Registry) SuggestReplacement(tableID, invalidCode string) (string, bool) {
	r.mu.RLock()
	t, ok := r.tables[tableID]
	r.mu.RUnlock()
	if !ok || t.Len() == 0 {
		return "", false
	}

	for _, code := range t.preferred {
		if t.Contains(code) {
			return code, true
		}
	}
	return t.sorted[0], true
}

// add registers a table, replacing any previous definition with the same id.
func (r *Registry) add(t *Table) {
	r.mu.Lock()
	r.tables[t.ID] = t
	r.mu.Unlock()
}

func newTable(id, name, description string, codes, preferred []string) *Table {
	t := &Table{
		ID:          id,
		Name:        name,
		Description: description,
		codes:       make(map[string]struct{}, len(codes)),
		preferred:   preferred,
	}
	for _, c := range codes {
		if _, dup := t.codes[c]; dup {
			continue
		}
		t.codes[c] = struct{}{}
		t.sorted = append(t.sorted, c)
	}
	sort.Strings(t.sorted)
	return t
}
