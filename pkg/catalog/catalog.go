// Package catalog holds the pattern catalogues that drive column
// classification and alias resolution. A Catalog is immutable after
// construction and safe for concurrent use.
package catalog

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ekaya-inc/ekaya-nlsql/pkg/models"
	"github.com/ekaya-inc/ekaya-nlsql/pkg/sql"
)

// RoleGroup is an ordered set of name patterns for one semantic role.
type RoleGroup struct {
	Role     models.SemanticRole
	Patterns []*regexp.Regexp
}

// Slot is a semantic name an LLM may use, with ordered substring patterns.
// Earlier patterns win over later ones.
type Slot struct {
	Name     string
	Patterns []string
	// NumericOnly restricts candidates to numeric-capable columns.
	NumericOnly bool
}

// Catalog is the immutable pair of role groups and alias slots.
type Catalog struct {
	roleGroups []RoleGroup
	slots      []Slot
}

// New builds a catalog. Groups and slots are copied and kept in the given order.
func New(groups []RoleGroup, slots []Slot) (*Catalog, error) {
	c := &Catalog{
		roleGroups: make([]RoleGroup, 0, len(groups)),
		slots:      make([]Slot, 0, len(slots)),
	}
	for _, g := range groups {
		if !models.IsValidSemanticRole(g.Role) {
			return nil, fmt.Errorf("unknown semantic role %q", g.Role)
		}
		c.roleGroups = append(c.roleGroups, RoleGroup{Role: g.Role, Patterns: append([]*regexp.Regexp(nil), g.Patterns...)})
	}
	seen := make(map[string]bool)
	for _, s := range slots {
		name := strings.ToLower(strings.TrimSpace(s.Name))
		if name == "" {
			return nil, fmt.Errorf("slot with empty name")
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate slot %q", name)
		}
		seen[name] = true
		patterns := make([]string, 0, len(s.Patterns))
		for _, p := range s.Patterns {
			if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
				patterns = append(patterns, p)
			}
		}
		c.slots = append(c.slots, Slot{Name: name, Patterns: patterns, NumericOnly: s.NumericOnly})
	}
	return c, nil
}

// RoleGroups returns the role groups in match order.
func (c *Catalog) RoleGroups() []RoleGroup {
	return append([]RoleGroup(nil), c.roleGroups...)
}

// Slots returns the alias slots in declaration order.
func (c *Catalog) Slots() []Slot {
	return append([]Slot(nil), c.slots...)
}

// Slot returns the named slot.
func (c *Catalog) Slot(name string) (Slot, bool) {
	for _, s := range c.slots {
		if s.Name == name {
			return s, true
		}
	}
	return Slot{}, false
}

// MatchRole returns the role of the first group with a pattern matching the
// column name. Names are matched in normalized form, so "Order Date" is
// tested as "order_date".
func (c *Catalog) MatchRole(column string) (models.SemanticRole, bool) {
	key := sql.NormalizeKey(column)
	for _, g := range c.roleGroups {
		for _, p := range g.Patterns {
			if p.MatchString(key) {
				return g.Role, true
			}
		}
	}
	return models.RoleUnknown, false
}

// IsIdentifierName reports whether the column name marks it as an identifier or key.
func (c *Catalog) IsIdentifierName(column string) bool {
	role, ok := c.MatchRole(column)
	return ok && role == models.RoleIdentifier
}
