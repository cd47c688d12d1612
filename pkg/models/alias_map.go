package models

import "sort"

// AliasMap maps lower-cased keys the LLM may emit to actual column names of
// one table. Every value is a column of TableName.
type AliasMap struct {
	TableName string
	entries   map[string]string
	slots     map[string]string
}

// NewAliasMap creates an empty map bound to a table.
func NewAliasMap(table string) *AliasMap {
	return &AliasMap{
		TableName: table,
		entries:   make(map[string]string),
		slots:     make(map[string]string),
	}
}

// Set records key -> actual. Keys are stored as given; callers lower-case them.
func (m *AliasMap) Set(key, actual string) {
	m.entries[key] = actual
}

// SetSlot binds a semantic slot to an actual column.
func (m *AliasMap) SetSlot(slot, actual string) {
	m.slots[slot] = actual
}

// Lookup resolves a lower-cased key.
func (m *AliasMap) Lookup(key string) (string, bool) {
	if m == nil {
		return "", false
	}
	v, ok := m.entries[key]
	return v, ok
}

// Slot returns the column bound to a semantic slot.
func (m *AliasMap) Slot(slot string) (string, bool) {
	if m == nil {
		return "", false
	}
	v, ok := m.slots[slot]
	return v, ok
}

// Slots returns slot bindings sorted by slot name.
func (m *AliasMap) Slots() [][2]string {
	out := make([][2]string, 0, len(m.slots))
	for k, v := range m.slots {
		out = append(out, [2]string{k, v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

// Keys returns all entry keys sorted.
func (m *AliasMap) Keys() []string {
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Values returns every distinct actual column referenced by entries or slots.
func (m *AliasMap) Values() []string {
	seen := make(map[string]bool)
	var out []string
	for _, v := range m.entries {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	for _, v := range m.slots {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

// Len returns the number of entries.
func (m *AliasMap) Len() int {
	return len(m.entries)
}

// BelongsTo reports whether the map was built for table. A map built for a
// different table is stale and must not be applied.
func (m *AliasMap) BelongsTo(table string) bool {
	return m != nil && m.TableName == table
}
