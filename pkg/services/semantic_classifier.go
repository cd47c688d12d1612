package services

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-nlsql/pkg/catalog"
	"github.com/ekaya-inc/ekaya-nlsql/pkg/models"
)

// Relationship hint thresholds on distinct / non-null.
const (
	PrimaryKeyRatio          = 0.9
	SecondaryIdentifierRatio = 0.7
	GroupingRatio            = 0.1
	// GroupingMinValues is the non-null count below which a low ratio says nothing.
	GroupingMinValues = 10
	// DateContentShare is the share of non-null samples that must match one
	// date pattern for a text column to be treated as temporal.
	DateContentShare = 0.7
)

// dateLiteralPatterns are matched against trimmed sample values.
var dateLiteralPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(0?[1-9]|[12]\d|3[01])-(0?[1-9]|1[0-2])-\d{4}$`),                               // DD-MM-YYYY
	regexp.MustCompile(`^\d{4}-(0?[1-9]|1[0-2])-(0?[1-9]|[12]\d|3[01])$`),                               // YYYY-MM-DD
	regexp.MustCompile(`^(0?[1-9]|1[0-2])/(0?[1-9]|[12]\d|3[01])/\d{4}$`),                               // MM/DD/YYYY
	regexp.MustCompile(`^(0?[1-9]|[12]\d|3[01])/(0?[1-9]|1[0-2])/\d{4}$`),                               // DD/MM/YYYY
	regexp.MustCompile(`^(0?[1-9]|[12]\d|3[01])-(0?[1-9]|1[0-2])-\d{2}$`),                               // DD-MM-YY
	regexp.MustCompile(`^(0?[1-9]|1[0-2])/(0?[1-9]|[12]\d|3[01])/\d{2}$`),                               // MM/DD/YY
	regexp.MustCompile(`^\d{4}/(0?[1-9]|1[0-2])/(0?[1-9]|[12]\d|3[01])$`),                               // YYYY/MM/DD
	regexp.MustCompile(`^\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}(:\d{2}(\.\d+)?)?(Z|[+-]\d{2}:?\d{2})?$`), // ISO timestamp
}

// SemanticClassifier assigns a semantic role and relationship hint to every column.
type SemanticClassifier interface {
	// Classify returns a classified copy. The input is not modified, and
	// classifying an already classified schema returns an equal schema.
	Classify(schema *models.TableSchema) *models.TableSchema
}

type semanticClassifier struct {
	catalog *catalog.Catalog
	logger  *zap.Logger
}

// NewSemanticClassifier creates a classifier over the given catalogue.
// A nil catalogue uses catalog.Default().
func NewSemanticClassifier(cat *catalog.Catalog, logger *zap.Logger) SemanticClassifier {
	if cat == nil {
		cat = catalog.Default()
	}
	return &semanticClassifier{
		catalog: cat,
		logger:  logger.Named("semantic-classifier"),
	}
}

func (c *semanticClassifier) Classify(schema *models.TableSchema) *models.TableSchema {
	if schema == nil {
		return nil
	}
	out := schema.Clone()
	for i := range out.Columns {
		col := &out.Columns[i]
		col.NumericCapable = isNumericType(col.DeclaredType)
		col.Role = c.classifyRole(col)
		col.Hint = relationshipHint(col)
	}
	c.logger.Debug("Classified table",
		zap.String("table", out.TableName),
		zap.Int("columns", len(out.Columns)))
	return out
}

// classifyRole is a pure function of name, declared type and samples.
func (c *semanticClassifier) classifyRole(col *models.ColumnDescriptor) models.SemanticRole {
	switch {
	case isTemporalType(col.DeclaredType):
		return models.RoleTemporal
	case isBooleanType(col.DeclaredType):
		return models.RoleBoolean
	}

	role, matched := c.catalog.MatchRole(col.Name)
	if !matched {
		role = models.RoleText
		if col.NumericCapable {
			role = models.RoleNumeric
		}
	}

	if role != models.RoleTemporal && !col.NumericCapable && looksLikeDates(col.SampleValues) {
		return models.RoleTemporal
	}
	return role
}

// looksLikeDates reports whether at least DateContentShare of the non-empty
// samples match one date pattern.
func looksLikeDates(samples []string) bool {
	values := make([]string, 0, len(samples))
	for _, s := range samples {
		if s = strings.TrimSpace(s); s != "" {
			values = append(values, s)
		}
	}
	if len(values) == 0 {
		return false
	}
	for _, p := range dateLiteralPatterns {
		hits := 0
		for _, v := range values {
			if p.MatchString(v) {
				hits++
			}
		}
		if float64(hits)/float64(len(values)) >= DateContentShare {
			return true
		}
	}
	return false
}

func relationshipHint(col *models.ColumnDescriptor) models.RelationshipHint {
	if col.NonNullCount <= 0 {
		return models.HintNone
	}
	r := col.CardinalityRatio
	switch {
	case r > PrimaryKeyRatio:
		return models.HintPrimaryKeyCandidate
	case r >= SecondaryIdentifierRatio:
		return models.HintSecondaryIdentifierCandidate
	case r < GroupingRatio && col.NonNullCount >= GroupingMinValues:
		return models.HintGroupingCandidate
	default:
		return models.HintNone
	}
}

// baseType upper-cases a declared type and drops any size or precision suffix.
func baseType(declared string) string {
	t := strings.ToUpper(strings.TrimSpace(declared))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	return t
}

var numericTypes = map[string]bool{
	"TINYINT": true, "SMALLINT": true, "INTEGER": true, "INT": true, "BIGINT": true, "HUGEINT": true,
	"UTINYINT": true, "USMALLINT": true, "UINTEGER": true, "UBIGINT": true, "UHUGEINT": true,
	"INT2": true, "INT4": true, "INT8": true, "SERIAL": true, "BIGSERIAL": true,
	"DECIMAL": true, "NUMERIC": true, "NUMBER": true, "MONEY": true, "SMALLMONEY": true,
	"DOUBLE": true, "DOUBLE PRECISION": true, "FLOAT": true, "FLOAT4": true, "FLOAT8": true, "REAL": true,
}

func isNumericType(declared string) bool {
	return numericTypes[baseType(declared)]
}

func isTemporalType(declared string) bool {
	t := baseType(declared)
	return strings.Contains(t, "DATE") || strings.Contains(t, "TIME") || t == "INTERVAL"
}

func isBooleanType(declared string) bool {
	switch baseType(declared) {
	case "BOOLEAN", "BOOL", "BIT":
		return true
	}
	return false
}

func isTextType(declared string) bool {
	t := baseType(declared)
	return strings.Contains(t, "CHAR") || strings.Contains(t, "TEXT") || t == "STRING"
}
