package substitute

import (
	"fmt"
	"strings"
)

// ErrAliasConflict is returned when one local name is bound to two
// different qualified paths within a file.
type ErrAliasConflict struct {
	Local    string
	Existing string
	Incoming string
}

func (e *ErrAliasConflict) Error() string {
	return fmt.Sprintf("alias %q already bound to %q, cannot rebind to %q", e.Local, e.Existing, e.Incoming)
}

// Entry is one local name and the fully qualified path it stands for.
type Entry struct {
	Local     string
	Qualified string
}

// Identity reports whether substituting the entry would be a no-op.
func (e Entry) Identity() bool { return e.Local == e.Qualified }

func (e Entry) segments() int { return strings.Count(e.Qualified, ".") + 1 }

// AliasMapping is an insertion-ordered local name to qualified path table
// built for one file and discarded afterwards.
type AliasMapping struct {
	entries []Entry
	index   map[string]int
}

func NewAliasMapping() *AliasMapping {
	return &AliasMapping{index: make(map[string]int)}
}

// Bind records local -> qualified. Rebinding to the same path is a no-op and
// reports false; rebinding to another path is an *ErrAliasConflict.
func (m *AliasMapping) Bind(local, qualified string) (bool, error) {
	if i, ok := m.index[local]; ok {
		if m.entries[i].Qualified == qualified {
			return false, nil
		}
		return false, &ErrAliasConflict{Local: local, Existing: m.entries[i].Qualified, Incoming: qualified}
	}
	m.index[local] = len(m.entries)
	m.entries = append(m.entries, Entry{Local: local, Qualified: qualified})
	return true, nil
}

func (m *AliasMapping) Lookup(local string) (string, bool) {
	i, ok := m.index[local]
	if !ok {
		return "", false
	}
	return m.entries[i].Qualified, true
}

// Entries returns a copy of the entries in insertion order.
func (m *AliasMapping) Entries() []Entry {
	return append([]Entry(nil), m.entries...)
}

func (m *AliasMapping) Len() int { return len(m.entries) }

// Substitutable reports whether any entry would change text.
func (m *AliasMapping) Substitutable() bool {
	for _, e := range m.entries {
		if !e.Identity() {
			return true
		}
	}
	return false
}

// reverseOrder lists non-identity entries most qualified first. Ties go to
// the latest binding.
func (m *AliasMapping) reverseOrder() []Entry {
	out := make([]Entry, 0, len(m.entries))
	for i := len(m.entries) - 1; i >= 0; i-- {
		if !m.entries[i].Identity() {
			out = append(out, m.entries[i])
		}
	}
	// stable insertion sort on segment count keeps the tie order above
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].segments() > out[j-1].segments(); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
