package services

import (
	"sort"
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-nlsql/pkg/catalog"
	"github.com/ekaya-inc/ekaya-nlsql/pkg/models"
	"github.com/ekaya-inc/ekaya-nlsql/pkg/sql"
)

// ColumnAliasResolver maps the names an LLM or a user may use onto actual columns.
type ColumnAliasResolver interface {
	// BuildAliasMap is pure: the same schema always yields the same map.
	BuildAliasMap(schema *models.TableSchema) *models.AliasMap

	// FindByPattern returns the first column containing one of patterns.
	FindByPattern(columns []string, patterns []string) (string, bool)

	// ResolveMentions returns the columns a question refers to, in the order
	// they first appear in the question.
	ResolveMentions(question string, aliases *models.AliasMap) []string
}

type columnAliasResolver struct {
	catalog *catalog.Catalog
	logger  *zap.Logger
}

// NewColumnAliasResolver creates a resolver over the catalogue's slots.
// A nil catalogue uses catalog.Default().
func NewColumnAliasResolver(cat *catalog.Catalog, logger *zap.Logger) ColumnAliasResolver {
	if cat == nil {
		cat = catalog.Default()
	}
	return &columnAliasResolver{
		catalog: cat,
		logger:  logger.Named("column-alias-resolver"),
	}
}

func (r *columnAliasResolver) BuildAliasMap(schema *models.TableSchema) *models.AliasMap {
	if schema == nil {
		return models.NewAliasMap("")
	}
	m := models.NewAliasMap(schema.TableName)

	// Lower-cased names first so a literal name is never shadowed by
	// another column's normalized form.
	for _, c := range schema.Columns {
		key := strings.ToLower(c.Name)
		if _, taken := m.Lookup(key); !taken {
			m.Set(key, c.Name)
		}
	}
	for _, c := range schema.Columns {
		key := sql.NormalizeKey(c.Name)
		if _, taken := m.Lookup(key); !taken {
			m.Set(key, c.Name)
		}
	}

	all := schema.ColumnNames()
	var numeric []string
	for _, c := range schema.Columns {
		if c.NumericCapable {
			numeric = append(numeric, c.Name)
		}
	}

	for _, slot := range r.catalog.Slots() {
		candidates := all
		if slot.NumericOnly {
			candidates = numeric
		}
		actual, ok := FindByPattern(candidates, slot.Patterns)
		if !ok {
			continue
		}
		m.SetSlot(slot.Name, actual)
		if _, taken := m.Lookup(slot.Name); !taken {
			m.Set(slot.Name, actual)
		}
	}

	r.logger.Debug("Built alias map",
		zap.String("table", schema.TableName),
		zap.Int("entries", m.Len()),
		zap.Int("slots", len(m.Slots())))
	return m
}

func (r *columnAliasResolver) FindByPattern(columns []string, patterns []string) (string, bool) {
	return FindByPattern(columns, patterns)
}

// FindByPattern scans pattern-major: every column is tried against the first
// pattern before any column is tried against the second. Matching is a
// case-insensitive substring test.
func FindByPattern(columns []string, patterns []string) (string, bool) {
	lowered := make([]string, len(columns))
	for i, c := range columns {
		lowered[i] = strings.ToLower(c)
	}
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		for i, c := range lowered {
			if strings.Contains(c, p) {
				return columns[i], true
			}
		}
	}
	return "", false
}

func (r *columnAliasResolver) ResolveMentions(question string, aliases *models.AliasMap) []string {
	if aliases == nil {
		return nil
	}
	text := questionKey(question)
	if text == "__" {
		return nil
	}

	first := make(map[string]int)
	note := func(column, key string) {
		if key == "" {
			return
		}
		pos := strings.Index(text, "_"+key+"_")
		if pos < 0 {
			return
		}
		if cur, ok := first[column]; !ok || pos < cur {
			first[column] = pos
		}
	}

	// a word that names a column refers to that column, never to a slot
	// mapped elsewhere ("segment" is a category pattern but also a column)
	named := make(map[string]string)
	for _, column := range aliases.Values() {
		for _, key := range []string{sql.NormalizeKey(column), singularKey(column)} {
			named[key] = column
			note(column, key)
		}
	}
	noteSlot := func(column, key string) {
		if other, ok := named[key]; ok && other != column {
			return
		}
		note(column, key)
	}
	for _, slot := range r.catalog.Slots() {
		column, ok := aliases.Slot(slot.Name)
		if !ok {
			continue
		}
		noteSlot(column, sql.NormalizeKey(slot.Name))
		for _, p := range slot.Patterns {
			noteSlot(column, sql.NormalizeKey(p))
			noteSlot(column, singularKey(p))
		}
	}

	out := make([]string, 0, len(first))
	for column := range first {
		out = append(out, column)
	}
	sort.Slice(out, func(i, j int) bool {
		if first[out[i]] != first[out[j]] {
			return first[out[i]] < first[out[j]]
		}
		return out[i] < out[j]
	})
	return out
}

// questionWords splits text into lower-cased words of letters and digits.
func questionWords(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// questionKey joins the singular form of every word with underscores and
// wraps the result in underscores so word sequences can be found by
// substring search.
func questionKey(question string) string {
	words := questionWords(question)
	for i, w := range words {
		words[i] = inflection.Singular(w)
	}
	return "_" + strings.Join(words, "_") + "_"
}

// singularKey is the normalized key of a name with every word singular, so
// "Sales" and "Order Items" match the question forms.
func singularKey(name string) string {
	words := questionWords(name)
	if len(words) == 0 {
		return ""
	}
	for i, w := range words {
		words[i] = inflection.Singular(w)
	}
	return strings.Join(words, "_")
}
