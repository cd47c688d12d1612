package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-nlsql/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-nlsql/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-nlsql/pkg/models"
	"github.com/ekaya-inc/ekaya-nlsql/pkg/repositories"
)

// DataSourceDescription is the resolved view of a data source.
type DataSourceDescription struct {
	DataSource *models.DataSourceRef `json:"data_source"`
	Table      string                `json:"table"`
	Schema     *models.TableSchema   `json:"schema"`
	// Aliases are the semantic slot bindings, slot name to column.
	Aliases map[string]string `json:"aliases"`
}

// QuestionPipeline answers questions about registered data sources.
type QuestionPipeline interface {
	// Ask resolves the data source, compiles the question and runs it.
	Ask(ctx context.Context, dataSourceID uuid.UUID, question string) (*models.CompiledQuery, error)

	// Describe resolves the data source to its table and classified schema.
	Describe(ctx context.Context, dataSourceID uuid.UUID) (*DataSourceDescription, error)

	// ValidateTransformation judges an ETL run against the data source's
	// table and drops the cached schema, which the run has changed.
	ValidateTransformation(ctx context.Context, dataSourceID uuid.UUID, results []models.TransformationResult) (*models.ValidationReport, error)

	// InvalidateSchema drops cached schema and alias map for a table.
	InvalidateSchema(backendType, table string)
}

type schemaKey struct {
	backend string
	table   string
}

type questionPipeline struct {
	registry   repositories.DataSourceRepository
	backends   BackendSet
	locator    TableLocator
	prober     SchemaProber
	classifier SemanticClassifier
	resolver   ColumnAliasResolver
	compiler   SQLCompiler
	validator  EtlTypeValidator
	schemas    *ttlCache[schemaKey, *models.TableSchema]
	aliases    *ttlCache[schemaKey, *models.AliasMap]
	logger     *zap.Logger
}

// NewQuestionPipeline wires the pipeline stages. schemaTTL bounds how long a
// probed schema and its alias map are reused.
func NewQuestionPipeline(
	registry repositories.DataSourceRepository,
	backends BackendSet,
	locator TableLocator,
	prober SchemaProber,
	classifier SemanticClassifier,
	resolver ColumnAliasResolver,
	compiler SQLCompiler,
	validator EtlTypeValidator,
	schemaTTL time.Duration,
	logger *zap.Logger,
) QuestionPipeline {
	return &questionPipeline{
		registry:   registry,
		backends:   backends,
		locator:    locator,
		prober:     prober,
		classifier: classifier,
		resolver:   resolver,
		compiler:   compiler,
		validator:  validator,
		schemas:    newTTLCache[schemaKey, *models.TableSchema](schemaTTL),
		aliases:    newTTLCache[schemaKey, *models.AliasMap](schemaTTL),
		logger:     logger.Named("question-pipeline"),
	}
}

// resolved is the per-request state after locating and probing.
type resolved struct {
	ref     *models.DataSourceRef
	backend datasource.Backend
	schema  *models.TableSchema
	aliases *models.AliasMap
}

func (p *questionPipeline) Ask(ctx context.Context, dataSourceID uuid.UUID, question string) (*models.CompiledQuery, error) {
	ctx = WithDataSourceID(ctx, dataSourceID)
	r, err := p.resolve(ctx, dataSourceID)
	if err != nil {
		return nil, err
	}

	q, err := p.compiler.CompileAndRun(ctx, question, r.schema, r.aliases)
	if err != nil {
		return q, err
	}
	p.logger.Info("Question answered",
		zap.String("data_source_id", dataSourceID.String()),
		zap.String("table", q.TableName),
		zap.String("source", string(q.Source)),
		zap.Int("rows", q.Result.RowCount),
		zap.Duration("duration", q.Duration))
	return q, nil
}

func (p *questionPipeline) Describe(ctx context.Context, dataSourceID uuid.UUID) (*DataSourceDescription, error) {
	r, err := p.resolve(WithDataSourceID(ctx, dataSourceID), dataSourceID)
	if err != nil {
		return nil, err
	}
	slots := make(map[string]string)
	for _, s := range r.aliases.Slots() {
		slots[s[0]] = s[1]
	}
	return &DataSourceDescription{
		DataSource: r.ref,
		Table:      r.schema.TableName,
		Schema:     r.schema.Clone(),
		Aliases:    slots,
	}, nil
}

func (p *questionPipeline) ValidateTransformation(ctx context.Context, dataSourceID uuid.UUID, results []models.TransformationResult) (*models.ValidationReport, error) {
	ref, backend, err := p.dataSource(ctx, dataSourceID)
	if err != nil {
		return nil, err
	}
	table, err := p.locator.Locate(ctx, ref, backend)
	if err != nil {
		table = ref.CanonicalTableName()
	}
	p.InvalidateSchema(backend.Type(), table)
	return p.validator.ValidateAndRecord(ctx, dataSourceID, table, results)
}

func (p *questionPipeline) InvalidateSchema(backendType, table string) {
	key := schemaKey{backend: backendType, table: table}
	p.schemas.Delete(key)
	p.aliases.Delete(key)
	p.logger.Debug("Schema invalidated",
		zap.String("backend", backendType),
		zap.String("table", table))
}

func (p *questionPipeline) dataSource(ctx context.Context, id uuid.UUID) (*models.DataSourceRef, datasource.Backend, error) {
	ref, err := p.registry.GetByID(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("data source %s: %w", id, err)
	}
	backend, ok := p.backendFor(ref)
	if !ok {
		return nil, nil, fmt.Errorf("data source %s: no %s backend configured: %w",
			id, ref.Backend, apperrors.ErrBackendUnreachable)
	}
	return ref, backend, nil
}

// backendFor prefers the exact adapter type and otherwise takes any backend
// of the data source's kind.
func (p *questionPipeline) backendFor(ref *models.DataSourceRef) (datasource.Backend, bool) {
	if ref.BackendType != "" {
		return p.backends.Get(ref.BackendType)
	}
	for _, t := range []string{"duckdb", "postgres", "sqlserver"} {
		if b, ok := p.backends.Get(t); ok && string(b.Kind()) == string(ref.Backend) {
			return b, true
		}
	}
	return nil, false
}

func (p *questionPipeline) resolve(ctx context.Context, id uuid.UUID) (*resolved, error) {
	ref, backend, err := p.dataSource(ctx, id)
	if err != nil {
		return nil, err
	}

	schema, err := p.locateAndProbe(ctx, ref, backend)
	if errors.Is(err, apperrors.ErrNotFound) {
		// The cached location may point at a table that was since replaced.
		p.locator.Invalidate(ctx, ref, backend.Type())
		schema, err = p.locateAndProbe(ctx, ref, backend)
	}
	if err != nil {
		return nil, err
	}

	key := schemaKey{backend: backend.Type(), table: schema.TableName}
	aliases, _ := p.aliases.GetOrLoad(key, func() (*models.AliasMap, error) {
		return p.resolver.BuildAliasMap(schema), nil
	})
	if !aliases.BelongsTo(schema.TableName) {
		aliases = p.resolver.BuildAliasMap(schema)
		p.aliases.Set(key, aliases)
	}

	return &resolved{ref: ref, backend: backend, schema: schema, aliases: aliases}, nil
}

func (p *questionPipeline) locateAndProbe(ctx context.Context, ref *models.DataSourceRef, backend datasource.Backend) (*models.TableSchema, error) {
	table, err := p.locator.Locate(ctx, ref, backend)
	if err != nil {
		return nil, err
	}

	key := schemaKey{backend: backend.Type(), table: table}
	return p.schemas.GetOrLoad(key, func() (*models.TableSchema, error) {
		probed, err := p.prober.Probe(ctx, backend, table)
		if err != nil {
			p.InvalidateSchema(key.backend, key.table)
			return nil, err
		}
		return p.classifier.Classify(probed), nil
	})
}

var _ LocatorStore = (*repositories.RedisLocatorCache)(nil)
