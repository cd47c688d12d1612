package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-nlsql/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-nlsql/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-nlsql/pkg/audit"
	"github.com/ekaya-inc/ekaya-nlsql/pkg/config"
	"github.com/ekaya-inc/ekaya-nlsql/pkg/llm"
	"github.com/ekaya-inc/ekaya-nlsql/pkg/logging"
	"github.com/ekaya-inc/ekaya-nlsql/pkg/models"
	"github.com/ekaya-inc/ekaya-nlsql/pkg/sql"
)

// BackendSet resolves the backend a schema was probed from by adapter type.
type BackendSet map[string]datasource.Backend

// Get returns the backend registered for an adapter type.
func (s BackendSet) Get(backendType string) (datasource.Backend, bool) {
	b, ok := s[backendType]
	return b, ok
}

// CompilerSettings are the limits and pluggable passes of the compiler.
type CompilerSettings struct {
	LLMTimeout     time.Duration
	QueryTimeout   time.Duration
	MaxRows        int
	EnableFallback bool
	// Rewrite and Repair default to sql.RewriteIdentifiers and sql.Repair.
	Rewrite sql.Rewriter
	Repair  sql.Repairer
}

// CompilerSettingsFromConfig derives settings from loaded configuration.
func CompilerSettingsFromConfig(cfg *config.Config) CompilerSettings {
	return CompilerSettings{
		LLMTimeout:     cfg.LLM.Timeout(),
		QueryTimeout:   cfg.Compiler.QueryTimeout(),
		MaxRows:        cfg.Compiler.MaxRows,
		EnableFallback: cfg.Compiler.EnableFallback,
	}
}

// SQLCompiler turns a question into executed SQL against one table.
type SQLCompiler interface {
	// CompileAndRun always returns the CompiledQuery record; on failure its
	// Err is the same *apperrors.QueryError that is returned.
	CompileAndRun(ctx context.Context, question string, schema *models.TableSchema, aliases *models.AliasMap) (*models.CompiledQuery, error)
}

type sqlCompiler struct {
	completer llm.Completer
	builder   SchemaPromptBuilder
	resolver  ColumnAliasResolver
	fallback  FallbackGenerator
	validator EtlTypeValidator
	auditor   *audit.SecurityAuditor
	backends  BackendSet
	settings  CompilerSettings
	logger    *zap.Logger
}

// NewSQLCompiler creates a compiler. completer may be nil, in which case
// every question goes to the templated fallback.
func NewSQLCompiler(
	completer llm.Completer,
	builder SchemaPromptBuilder,
	resolver ColumnAliasResolver,
	fallback FallbackGenerator,
	validator EtlTypeValidator,
	auditor *audit.SecurityAuditor,
	backends BackendSet,
	settings CompilerSettings,
	logger *zap.Logger,
) SQLCompiler {
	if settings.Rewrite == nil {
		settings.Rewrite = sql.RewriteIdentifiers
	}
	if settings.Repair == nil {
		settings.Repair = sql.Repair
	}
	if auditor == nil {
		auditor = audit.NewSecurityAuditor(logger)
	}
	return &sqlCompiler{
		completer: completer,
		builder:   builder,
		resolver:  resolver,
		fallback:  fallback,
		validator: validator,
		auditor:   auditor,
		backends:  backends,
		settings:  settings,
		logger:    logger.Named("sql-compiler"),
	}
}

// compileRun carries one request through the pipeline.
type compileRun struct {
	ctx     context.Context
	q       *models.CompiledQuery
	schema  *models.TableSchema
	aliases *models.AliasMap
	backend datasource.Backend
	dsID    uuid.UUID
}

func (c *sqlCompiler) CompileAndRun(ctx context.Context, question string, schema *models.TableSchema, aliases *models.AliasMap) (*models.CompiledQuery, error) {
	start := time.Now()
	q := &models.CompiledQuery{
		ID:       uuid.New(),
		Question: question,
	}
	defer func() { q.Duration = time.Since(start) }()

	if schema == nil {
		return c.fail(q, apperrors.NewQueryError(apperrors.ErrNotFound, "", "", "no schema", nil))
	}
	q.TableName = schema.TableName

	backend, ok := c.backends.Get(schema.Backend)
	if !ok {
		return c.fail(q, apperrors.NewQueryError(apperrors.ErrBackendUnreachable, schema.TableName, "",
			fmt.Sprintf("no %q backend configured", schema.Backend), nil))
	}

	if !aliases.BelongsTo(schema.TableName) {
		q.Warnings = append(q.Warnings, "alias map was built for another table and was rebuilt")
		aliases = c.resolver.BuildAliasMap(schema)
	}

	run := &compileRun{
		ctx:     ctx,
		q:       q,
		schema:  schema,
		aliases: aliases,
		backend: backend,
		dsID:    DataSourceIDFromContext(ctx),
	}

	c.preflight(run)

	q.RenderedPrompt = c.builder.Render(schema, aliases, question)
	llmSQL, llmErr := c.complete(ctx, q.RenderedPrompt)
	if llmErr != nil {
		if !c.settings.EnableFallback {
			return c.fail(q, apperrors.NewQueryError(apperrors.ErrLLMFailure, schema.TableName, "", "no usable SQL from the model", llmErr))
		}
		q.Warnings = append(q.Warnings, "model unavailable or unusable, used templated query: "+llmErr.Error())
		return c.runFallback(run)
	}

	q.RawLLMSQL = llmSQL
	q.Source = models.SQLSourceLLM
	prepared, err := c.prepare(run, llmSQL, sql.RepairOptions{Dialect: schema.Backend})
	if err != nil {
		if errors.Is(err, apperrors.ErrSQLRejected) {
			return c.fail(q, err)
		}
		// unbalanced parentheses: the model's SQL is unusable
		if !c.settings.EnableFallback {
			return c.fail(q, apperrors.NewQueryError(apperrors.ErrLLMFailure, schema.TableName, llmSQL, "malformed SQL from the model", err))
		}
		q.Warnings = append(q.Warnings, "model SQL was malformed, used templated query")
		return c.runFallback(run)
	}

	execErr := c.execute(run, prepared)
	if execErr == nil {
		return q, nil
	}
	return c.recover(run, execErr)
}

// preflight reports probed null rates through the validator. It never blocks.
func (c *sqlCompiler) preflight(run *compileRun) {
	if c.validator == nil || !run.schema.HasData {
		return
	}
	results := make([]models.TransformationResult, 0, len(run.schema.Columns))
	for _, col := range run.schema.Columns {
		results = append(results, models.TransformationResult{
			Column:         col.Name,
			SourceType:     col.DeclaredType,
			TargetType:     col.DeclaredType,
			NullPercentage: col.NullPercentage,
		})
	}
	report := c.validator.Validate(results)
	run.q.Warnings = append(run.q.Warnings, report.Warnings...)
}

// complete asks the model for SQL under the LLM timeout and extracts it.
func (c *sqlCompiler) complete(ctx context.Context, prompt string) (string, error) {
	if c.completer == nil {
		return "", llm.ErrNoProvider
	}
	callCtx := ctx
	if c.settings.LLMTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.settings.LLMTimeout)
		defer cancel()
	}

	response, err := c.completer.Complete(callCtx, prompt)
	if err != nil {
		c.logger.Warn("LLM completion failed",
			zap.String("error_type", string(llm.GetErrorType(err))),
			zap.Error(err))
		return "", err
	}
	extracted, err := sql.ExtractSQL(response)
	if err != nil {
		c.logger.Warn("LLM response contained no SQL",
			zap.String("response", logging.TruncateString(response, 200)))
		return "", err
	}
	return extracted, nil
}

// prepare runs rewrite, repair and guard. A guard rejection is audited and
// returned as an ErrSQLRejected QueryError.
func (c *sqlCompiler) prepare(run *compileRun, raw string, opts sql.RepairOptions) (string, error) {
	rewritten := c.settings.Rewrite(raw, run.schema.TableName, run.aliases)
	run.q.RewrittenSQL = rewritten.SQL
	for _, s := range rewritten.Substitutions {
		c.logger.Debug("Rewrote identifier", zap.String("from", s.From), zap.String("to", s.To))
	}

	repaired, err := c.settings.Repair(rewritten.SQL, opts)
	if err != nil {
		// text that cannot be repaired is still refused when it is not read-only
		if gErr := guardFailure(rewritten.SQL); gErr != nil && gErr.Reason != sql.ReasonUnbalancedParens {
			_, rejected := c.guard(run, rewritten.SQL)
			return "", rejected
		}
		return "", err
	}
	return c.guard(run, repaired)
}

func guardFailure(query string) *sql.GuardError {
	var gErr *sql.GuardError
	if _, err := sql.Guard(query); errors.As(err, &gErr) {
		return gErr
	}
	return nil
}

func (c *sqlCompiler) guard(run *compileRun, query string) (string, error) {
	safe, err := sql.Guard(query)
	if err == nil {
		run.q.FinalSQL = safe
		return safe, nil
	}

	var gErr *sql.GuardError
	reason, keyword := err.Error(), ""
	if errors.As(err, &gErr) {
		reason, keyword = gErr.Reason, gErr.Keyword
	}
	c.auditor.LogSQLRejected(run.dsID, run.schema.TableName, audit.RejectionDetails{
		SQL:     query,
		Reason:  reason,
		Keyword: keyword,
		Source:  string(run.q.Source),
	})
	for _, hit := range sql.CheckLiterals(query) {
		c.auditor.LogInjectionAttempt(run.dsID, run.schema.TableName, audit.InjectionDetails{
			Literal:     hit.Literal,
			Fingerprint: hit.Fingerprint,
			Origin:      string(run.q.Source),
		})
	}
	run.q.FinalSQL = query
	return "", apperrors.NewQueryError(apperrors.ErrSQLRejected, run.schema.TableName, query, reason, err)
}

// execute runs the statement under the query timeout and records the result.
func (c *sqlCompiler) execute(run *compileRun, query string) error {
	execCtx := run.ctx
	if c.settings.QueryTimeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(run.ctx, c.settings.QueryTimeout)
		defer cancel()
	}

	run.q.Attempts++
	run.q.FinalSQL = query
	start := time.Now()
	result, err := run.backend.Execute(execCtx, query, c.settings.MaxRows)
	if err != nil {
		c.logger.Info("Query execution failed",
			zap.String("table", run.schema.TableName),
			zap.String("sql", logging.SanitizeQuery(query)),
			zap.Int("attempt", run.q.Attempts),
			zap.Error(err))
		return err
	}

	run.q.Result = result
	c.auditor.LogQueryExecution(run.dsID, run.schema.TableName, audit.ExecutionDetails{
		SQL:        query,
		Source:     string(run.q.Source),
		RowCount:   result.RowCount,
		DurationMs: time.Since(start).Milliseconds(),
	})
	return nil
}

// recover makes the single recovery attempt for a failed LLM statement.
func (c *sqlCompiler) recover(run *compileRun, execErr error) (*models.CompiledQuery, error) {
	q := run.q
	failed := q.FinalSQL
	kind, offending := classifyExecError(execErr)

	c.logger.Debug("Recovering from execution error",
		zap.String("failure", kind.String()),
		zap.String("offending", offending))

	var next string
	var err error
	switch kind {
	case failureUnreachable:
		return c.fail(q, apperrors.NewQueryError(apperrors.ErrBackendUnreachable, run.schema.TableName, failed, "", execErr))

	case failureUnknownColumn:
		// A double-quoted value the model meant as a string is fixed
		// without another model call.
		if c.completer == nil || c.isQuotedValue(run, failed, offending) {
			next, err = c.aggressivePass(run, failed)
			break
		}
		hint := c.hintFor(offending, run)
		prompt := c.builder.RenderNarrowed(run.schema, run.aliases, q.Question, offending, hint)
		retrySQL, cErr := c.complete(run.ctx, prompt)
		if cErr != nil {
			return c.fail(q, apperrors.NewQueryError(apperrors.ErrSQLExecution, run.schema.TableName, failed,
				fmt.Sprintf("unknown column %q and the retry produced no SQL", offending), execErr))
		}
		q.Source = models.SQLSourceLLMRetry
		q.RawLLMSQL = retrySQL
		next, err = c.prepare(run, retrySQL, sql.RepairOptions{Dialect: run.schema.Backend})

	case failureSyntax:
		next, err = c.aggressivePass(run, failed)

	default:
		return c.fail(q, apperrors.NewQueryError(apperrors.ErrSQLExecution, run.schema.TableName, failed, "", execErr))
	}

	if err != nil {
		if errors.Is(err, apperrors.ErrSQLRejected) {
			return c.fail(q, err)
		}
		return c.fail(q, apperrors.NewQueryError(apperrors.ErrSQLExecution, run.schema.TableName, failed, "repair failed", execErr))
	}

	if retryErr := c.execute(run, next); retryErr != nil {
		kind, _ := classifyExecError(retryErr)
		if kind == failureUnreachable {
			return c.fail(q, apperrors.NewQueryError(apperrors.ErrBackendUnreachable, run.schema.TableName, next, "", retryErr))
		}
		return c.fail(q, apperrors.NewQueryError(apperrors.ErrSQLExecution, run.schema.TableName, next, "", retryErr))
	}
	return q, nil
}

func (c *sqlCompiler) aggressiveRepair(run *compileRun, query string) (string, error) {
	return c.settings.Repair(query, sql.RepairOptions{
		Aggressive: true,
		Columns:    run.schema.ColumnNames(),
		Dialect:    run.schema.Backend,
	})
}

// aggressivePass repairs and guards a failed statement.
func (c *sqlCompiler) aggressivePass(run *compileRun, failed string) (string, error) {
	repaired, err := c.aggressiveRepair(run, failed)
	if err != nil {
		return "", err
	}
	return c.guard(run, repaired)
}

// isQuotedValue reports whether the unknown identifier is a double-quoted
// word that resolves to no column, such as "South" in WHERE "Region" = "South".
func (c *sqlCompiler) isQuotedValue(run *compileRun, failed, offending string) bool {
	if offending == "" {
		return false
	}
	if _, ok := run.schema.Column(offending); ok {
		return false
	}
	return c.hintFor(offending, run) == "" && strings.Contains(failed, sql.QuoteIdentifier(offending))
}

// hintFor names the column an unknown identifier most likely meant.
func (c *sqlCompiler) hintFor(offending string, run *compileRun) string {
	if offending == "" {
		return ""
	}
	if actual, ok := run.aliases.Lookup(strings.ToLower(offending)); ok {
		return actual
	}
	if actual, ok := run.aliases.Lookup(sql.NormalizeKey(offending)); ok {
		return actual
	}
	words := strings.Join(questionWords(offending), " ")
	if mentions := c.resolver.ResolveMentions(words, run.aliases); len(mentions) > 0 {
		return mentions[0]
	}
	return ""
}

func (c *sqlCompiler) runFallback(run *compileRun) (*models.CompiledQuery, error) {
	q := run.q
	q.Source = models.SQLSourceFallback

	fb, err := c.fallback.Generate(q.Question, run.schema, run.aliases)
	if err != nil {
		return c.fail(q, apperrors.NewQueryError(apperrors.ErrLLMFailure, run.schema.TableName, "", "no templated query fits the question", err))
	}
	q.Warnings = append(q.Warnings, fb.Warnings...)
	if fb.Injection != nil {
		c.auditor.LogInjectionAttempt(run.dsID, run.schema.TableName, audit.InjectionDetails{
			Literal:     fb.Injection.Literal,
			Fingerprint: fb.Injection.Fingerprint,
			Origin:      "fallback_filter",
		})
	}

	safe, err := c.guard(run, fb.SQL)
	if err != nil {
		return c.fail(q, err)
	}
	if err := c.execute(run, safe); err != nil {
		kind := apperrors.ErrSQLExecution
		if datasource.IsConnError(err) {
			kind = apperrors.ErrBackendUnreachable
		}
		return c.fail(q, apperrors.NewQueryError(kind, run.schema.TableName, safe, "templated query failed", err))
	}
	return q, nil
}

func (c *sqlCompiler) fail(q *models.CompiledQuery, err error) (*models.CompiledQuery, error) {
	var qErr *apperrors.QueryError
	if !errors.As(err, &qErr) {
		qErr = apperrors.NewQueryError(apperrors.ErrSQLExecution, q.TableName, q.FinalSQL, "", err)
	}
	q.Err = qErr
	q.Result = nil
	c.logger.Warn("Question failed",
		zap.String("query_id", q.ID.String()),
		zap.String("table", q.TableName),
		zap.String("source", string(q.Source)),
		zap.Error(qErr))
	return q, qErr
}
