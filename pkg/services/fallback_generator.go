package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-nlsql/pkg/models"
	"github.com/ekaya-inc/ekaya-nlsql/pkg/sql"
)

// FallbackIntent is the question shape the templated generator recognized.
type FallbackIntent string

const (
	IntentCount   FallbackIntent = "count"
	IntentSum     FallbackIntent = "sum"
	IntentAverage FallbackIntent = "average"
	IntentRank    FallbackIntent = "rank"
	IntentPreview FallbackIntent = "preview"
)

const (
	defaultRankLimit    = 10
	defaultPreviewLimit = 20
)

var (
	rankWords    = []string{"top", "highest", "lowest", "bottom", "best", "worst", "largest", "smallest", "most", "least"}
	ascRankWords = map[string]bool{"lowest": true, "bottom": true, "worst": true, "smallest": true, "least": true}
	avgWords     = []string{"average", "avg", "mean"}
	countPhrases = []string{"how many", "count", "number of"}
	sumWords     = []string{"sum", "total"}

	rankLimit = regexp.MustCompile(`\b(?:top|bottom)\s+(\d{1,4})\b`)
	// "in south region", "in the west region"
	filterPhrase = regexp.MustCompile(`\bin\s+(?:the\s+)?([\p{L}\p{N}][\p{L}\p{N}'-]*)\s+([\p{L}\p{N}]+)\b`)

	// quantifiers read as "group by" in "in each region", never as a value
	quantifierWords = map[string]bool{
		"each": true, "every": true, "all": true, "per": true, "by": true,
		"the": true, "a": true, "an": true, "any": true, "various": true, "different": true,
	}
)

// FallbackQuery is a templated query built without an LLM.
type FallbackQuery struct {
	SQL      string
	Intent   FallbackIntent
	Warnings []string
	// Injection is set when a filter value was dropped by the literal check.
	Injection *sql.InjectionCheckResult
}

// FallbackGenerator builds a reasonable query from keywords when the LLM
// produced nothing usable.
type FallbackGenerator interface {
	Generate(question string, schema *models.TableSchema, aliases *models.AliasMap) (*FallbackQuery, error)
}

type fallbackGenerator struct {
	resolver ColumnAliasResolver
	logger   *zap.Logger
}

// NewFallbackGenerator creates a generator that finds mentioned columns through resolver.
func NewFallbackGenerator(resolver ColumnAliasResolver, logger *zap.Logger) FallbackGenerator {
	return &fallbackGenerator{
		resolver: resolver,
		logger:   logger.Named("fallback-generator"),
	}
}

func (g *fallbackGenerator) Generate(question string, schema *models.TableSchema, aliases *models.AliasMap) (*FallbackQuery, error) {
	if schema == nil || len(schema.Columns) == 0 {
		return nil, fmt.Errorf("fallback: table has no columns")
	}
	q := strings.ToLower(strings.Join(questionWords(question), " "))
	out := &FallbackQuery{Intent: detectIntent(q)}

	filterCol, where := g.filter(q, schema, aliases, out)

	var mentioned []models.ColumnDescriptor
	for _, name := range g.resolver.ResolveMentions(question, aliases) {
		if c, ok := schema.Column(name); ok && name != filterCol {
			mentioned = append(mentioned, c)
		}
	}

	table := sql.QuoteIdentifier(schema.TableName)
	tsql := schema.Backend == "sqlserver"

	switch out.Intent {
	case IntentCount:
		group, ok := firstGroupable(mentioned, true)
		if !ok {
			group, ok = bestCategorical(schema, filterCol)
		}
		if !ok {
			out.SQL = fmt.Sprintf(`SELECT COUNT(*) AS "count" FROM %s%s`, table, where)
			break
		}
		gq := sql.QuoteIdentifier(group)
		out.SQL = fmt.Sprintf(`SELECT %s, COUNT(*) AS "count" FROM %s%s GROUP BY %s`, gq, table, where, gq)
		if !tsql {
			out.SQL += ` ORDER BY "count" DESC`
		}

	case IntentSum, IntentAverage:
		measure, ok := pickMeasure(mentioned, schema)
		if !ok {
			return nil, fmt.Errorf("fallback: no numeric column to aggregate")
		}
		fn, alias := "SUM", "total"
		if out.Intent == IntentAverage {
			fn, alias = "AVG", "average"
		}
		mq := sql.QuoteIdentifier(measure)
		group, ok := firstGroupable(mentioned, false)
		if !ok {
			out.SQL = fmt.Sprintf(`SELECT %s(%s) AS "%s" FROM %s%s`, fn, mq, alias, table, where)
			break
		}
		gq := sql.QuoteIdentifier(group)
		out.SQL = fmt.Sprintf(`SELECT %s, %s(%s) AS "%s" FROM %s%s GROUP BY %s`, gq, fn, mq, alias, table, where, gq)
		if !tsql {
			out.SQL += fmt.Sprintf(` ORDER BY "%s" DESC`, alias)
		}

	case IntentRank:
		measure, ok := pickMeasure(mentioned, schema)
		if !ok {
			return nil, fmt.Errorf("fallback: no numeric column to rank by")
		}
		limit := defaultRankLimit
		if m := rankLimit.FindStringSubmatch(q); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
				limit = n
			}
		}
		dir := "DESC"
		for _, w := range strings.Fields(q) {
			if ascRankWords[w] {
				dir = "ASC"
				break
			}
		}
		mq := sql.QuoteIdentifier(measure)
		top, tail := "", fmt.Sprintf(" LIMIT %d", limit)
		if tsql {
			top, tail = fmt.Sprintf("TOP (%d) ", limit), ""
		}
		if group, ok := firstGroupable(mentioned, false); ok {
			gq := sql.QuoteIdentifier(group)
			out.SQL = fmt.Sprintf(`SELECT %s%s, SUM(%s) AS "total" FROM %s%s GROUP BY %s ORDER BY "total" %s%s`,
				top, gq, mq, table, where, gq, dir, tail)
		} else {
			out.SQL = fmt.Sprintf(`SELECT %s* FROM %s%s ORDER BY %s %s%s`, top, table, where, mq, dir, tail)
		}

	default:
		if tsql {
			out.SQL = fmt.Sprintf(`SELECT TOP (%d) * FROM %s%s`, defaultPreviewLimit, table, where)
		} else {
			out.SQL = fmt.Sprintf(`SELECT * FROM %s%s LIMIT %d`, table, where, defaultPreviewLimit)
		}
	}

	g.logger.Debug("Generated fallback query",
		zap.String("intent", string(out.Intent)),
		zap.String("table", schema.TableName))
	return out, nil
}

func containsPhrase(q string, phrases []string) bool {
	padded := " " + q + " "
	for _, p := range phrases {
		if strings.Contains(padded, " "+p+" ") {
			return true
		}
	}
	return false
}

func detectIntent(q string) FallbackIntent {
	switch {
	case containsPhrase(q, rankWords):
		return IntentRank
	case containsPhrase(q, avgWords):
		return IntentAverage
	case containsPhrase(q, countPhrases):
		return IntentCount
	case containsPhrase(q, sumWords):
		return IntentSum
	default:
		return IntentPreview
	}
}

// filter builds an equality filter from an "in <value> <column>" phrase.
// A quantifier such as "each" is not a value; the column is then left to
// the mentions, where it becomes the grouping column. A value that looks
// like injection is dropped with a warning.
func (g *fallbackGenerator) filter(q string, schema *models.TableSchema, aliases *models.AliasMap, out *FallbackQuery) (string, string) {
	m := filterPhrase.FindStringSubmatch(q)
	if m == nil {
		return "", ""
	}
	value, word := m[1], m[2]
	if quantifierWords[value] {
		return "", ""
	}

	cols := g.resolver.ResolveMentions(word, aliases)
	if len(cols) == 0 {
		return "", ""
	}
	col, ok := schema.Column(cols[0])
	if !ok || col.NumericCapable {
		return "", ""
	}

	if hit := sql.CheckLiteralForInjection(value); hit != nil {
		out.Injection = hit
		out.Warnings = append(out.Warnings, fmt.Sprintf("filter value dropped: injection pattern %s", hit.Fingerprint))
		g.logger.Warn("Fallback filter value rejected",
			zap.String("column", col.Name),
			zap.String("fingerprint", hit.Fingerprint))
		return "", ""
	}

	where := fmt.Sprintf(" WHERE LOWER(CAST(%s AS VARCHAR)) = %s", sql.QuoteIdentifier(col.Name), sql.QuoteLiteral(strings.ToLower(value)))
	return col.Name, where
}

func isGroupingColumn(c models.ColumnDescriptor) bool {
	return c.Role == models.RoleCategorical || c.Role == models.RoleGeographic || c.Hint == models.HintGroupingCandidate
}

// firstGroupable returns the first mentioned non-numeric column. With
// strict, only categorical, geographic or grouping-candidate columns qualify.
func firstGroupable(mentioned []models.ColumnDescriptor, strict bool) (string, bool) {
	for _, c := range mentioned {
		if c.NumericCapable || c.Role == models.RoleIdentifier {
			continue
		}
		if strict && !isGroupingColumn(c) {
			continue
		}
		return c.Name, true
	}
	return "", false
}

// bestCategorical prefers categorical columns, then geographic ones, then any
// grouping candidate; grouping candidates win within a role and table order
// breaks ties.
func bestCategorical(schema *models.TableSchema, exclude string) (string, bool) {
	rank := func(c models.ColumnDescriptor) int {
		if c.Name == exclude || c.NumericCapable || c.Role == models.RoleIdentifier {
			return -1
		}
		score := 0
		switch c.Role {
		case models.RoleCategorical:
			score = 4
		case models.RoleGeographic:
			score = 2
		}
		if c.Hint == models.HintGroupingCandidate {
			score++
		}
		if score == 0 {
			return -1
		}
		return score
	}
	best, bestScore := "", 0
	for _, c := range schema.Columns {
		if s := rank(c); s > bestScore {
			best, bestScore = c.Name, s
		}
	}
	return best, bestScore > 0
}

// pickMeasure returns the first mentioned numeric measure, else the first
// mentioned numeric column, else the first monetary then quantity column.
func pickMeasure(mentioned []models.ColumnDescriptor, schema *models.TableSchema) (string, bool) {
	for _, c := range mentioned {
		if c.NumericCapable && c.Role.IsMeasure() {
			return c.Name, true
		}
	}
	for _, c := range mentioned {
		if c.NumericCapable && c.Role != models.RoleIdentifier {
			return c.Name, true
		}
	}
	for _, role := range []models.SemanticRole{models.RoleMonetary, models.RoleQuantity, models.RoleNumeric} {
		for _, c := range schema.ColumnsWithRole(role) {
			if c.NumericCapable {
				return c.Name, true
			}
		}
	}
	return "", false
}
