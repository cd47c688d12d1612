package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-nlsql/pkg/models"
)

// File is the YAML layout of a catalogue override file. Either section may be
// omitted, in which case the built-in section is kept.
//
//	roles:
//	  - role: identifier
//	    patterns: ['(^|_)id$']
//	slots:
//	  - name: sales
//	    patterns: [sales, revenue]
//	    numeric_only: true
type File struct {
	Roles []RoleEntry `yaml:"roles"`
	Slots []SlotEntry `yaml:"slots"`
}

// RoleEntry is one role group in a catalogue file.
type RoleEntry struct {
	Role     string   `yaml:"role"`
	Patterns []string `yaml:"patterns"`
}

// SlotEntry is one alias slot in a catalogue file.
type SlotEntry struct {
	Name        string   `yaml:"name"`
	Patterns    []string `yaml:"patterns"`
	NumericOnly bool     `yaml:"numeric_only"`
}

// LoadFile reads a catalogue override file. An empty path returns Default().
func LoadFile(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes a catalogue document. Unknown fields are rejected.
func Parse(data []byte) (*Catalog, error) {
	var f File
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return Default(), nil
		}
		return nil, err
	}

	base := Default()
	groups := base.roleGroups
	if len(f.Roles) > 0 {
		groups = make([]RoleGroup, 0, len(f.Roles))
		for _, r := range f.Roles {
			group := RoleGroup{Role: models.SemanticRole(r.Role)}
			for _, p := range r.Patterns {
				re, err := regexp.Compile(p)
				if err != nil {
					return nil, fmt.Errorf("role %s: invalid pattern %q: %w", r.Role, p, err)
				}
				group.Patterns = append(group.Patterns, re)
			}
			groups = append(groups, group)
		}
	}

	slots := base.slots
	if len(f.Slots) > 0 {
		slots = make([]Slot, 0, len(f.Slots))
		for _, s := range f.Slots {
			slots = append(slots, Slot{Name: s.Name, Patterns: s.Patterns, NumericOnly: s.NumericOnly})
		}
	}

	return New(groups, slots)
}
