package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-nlsql/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-nlsql/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-nlsql/pkg/models"
)

// TableLocator finds the physical table behind a data source.
type TableLocator interface {
	// Locate returns the table name, trying strategies in order. A data source
	// with no matching table yields a wrapped apperrors.ErrNotFound.
	Locate(ctx context.Context, ref *models.DataSourceRef, backend datasource.Backend) (string, error)

	// Invalidate drops the cached resolution of ref for one backend type.
	Invalidate(ctx context.Context, ref *models.DataSourceRef, backendType string)
}

// locateStrategy is one way of guessing the table. It returns ok=false when
// it found nothing; err is reserved for probe failures.
type locateStrategy struct {
	name string
	fn   func(ctx context.Context, p *locateProbe) (table string, ok bool, err error)
}

// locateProbe carries per-call state through the strategies.
type locateProbe struct {
	ref     *models.DataSourceRef
	backend datasource.Backend
	probes  int
	logger  *zap.Logger
}

// exists probes one candidate. The first probe of a call reports an
// unreachable backend to the caller; later failures only skip the candidate.
func (p *locateProbe) exists(ctx context.Context, table string) (bool, error) {
	p.probes++
	ok, err := p.backend.TableExists(ctx, table)
	if err != nil {
		if p.probes == 1 && errors.Is(err, apperrors.ErrBackendUnreachable) {
			return false, err
		}
		p.logger.Warn("Table existence probe failed",
			zap.String("table", table),
			zap.Error(err))
		return false, nil
	}
	return ok, nil
}

type tableLocator struct {
	strategies []locateStrategy
	cache      LocatorStore
	logger     *zap.Logger
}

// NewTableLocator creates a locator. A nil cache uses a process-local store
// with the given ttl.
func NewTableLocator(cache LocatorStore, ttl time.Duration, logger *zap.Logger) TableLocator {
	if cache == nil {
		cache = NewMemoryLocatorStore(ttl)
	}
	return &tableLocator{
		strategies: []locateStrategy{
			{name: "canonical", fn: locateCanonical},
			{name: "legacy", fn: locateLegacy},
			{name: "name_similarity", fn: locateBySimilarity},
			{name: "largest_table", fn: locateLargest},
		},
		cache:  cache,
		logger: logger.Named("table-locator"),
	}
}

func locatorKey(ref *models.DataSourceRef, backendType string) string {
	return ref.ID.String() + ":" + backendType
}

func (l *tableLocator) Locate(ctx context.Context, ref *models.DataSourceRef, backend datasource.Backend) (string, error) {
	if ref == nil {
		return "", fmt.Errorf("locate table: nil data source: %w", apperrors.ErrNotFound)
	}
	key := locatorKey(ref, backend.Type())
	if table, ok := l.cache.Get(ctx, key); ok {
		return table, nil
	}

	probe := &locateProbe{ref: ref, backend: backend, logger: l.logger}
	tried := make([]string, 0, len(l.strategies))
	for _, s := range l.strategies {
		tried = append(tried, s.name)
		table, ok, err := s.fn(ctx, probe)
		if err != nil {
			return "", fmt.Errorf("locate table for data source %s: %w", ref.ID, err)
		}
		if ok {
			l.logger.Debug("Located table",
				zap.String("data_source_id", ref.ID.String()),
				zap.String("strategy", s.name),
				zap.String("table", table))
			l.cache.Set(ctx, key, table)
			return table, nil
		}
	}

	return "", fmt.Errorf("no table for data source %s (tried %s): %w",
		ref.ID, strings.Join(tried, ", "), apperrors.ErrNotFound)
}

func (l *tableLocator) Invalidate(ctx context.Context, ref *models.DataSourceRef, backendType string) {
	l.cache.Delete(ctx, locatorKey(ref, backendType))
}

func locateCanonical(ctx context.Context, p *locateProbe) (string, bool, error) {
	table := p.ref.CanonicalTableName()
	ok, err := p.exists(ctx, table)
	if err != nil || !ok {
		return "", false, err
	}
	return table, true, nil
}

// legacyCandidates lists the names earlier naming generations produced, hints first.
func legacyCandidates(ref *models.DataSourceRef) []string {
	hex := ref.HexID()
	underscored := strings.ReplaceAll(ref.ID.String(), "-", "_")

	var out []string
	seen := make(map[string]bool)
	add := func(name string) {
		if name = strings.TrimSpace(name); name != "" && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	add(ref.ResolvedTableName)
	for _, h := range ref.LegacyTableNames {
		add(h)
	}
	add("data_" + hex)
	add("table_" + hex)
	add("ds_" + hex)
	add("dataset_" + underscored)
	add("upload_" + hex)
	return out
}

func locateLegacy(ctx context.Context, p *locateProbe) (string, bool, error) {
	for _, table := range legacyCandidates(p.ref) {
		ok, err := p.exists(ctx, table)
		if err != nil {
			return "", false, err
		}
		if ok {
			return table, true, nil
		}
	}
	return "", false, nil
}

// similarityKey lower-cases s and drops everything but letters and digits.
func similarityKey(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func locateBySimilarity(ctx context.Context, p *locateProbe) (string, bool, error) {
	name := similarityKey(p.ref.Name)
	if name == "" {
		return "", false, nil
	}
	tables, err := p.backend.ListTables(ctx)
	if err != nil {
		p.logger.Warn("List tables failed", zap.Error(err))
		return "", false, nil
	}
	for _, t := range tables {
		key := similarityKey(t)
		if key == "" {
			continue
		}
		if strings.Contains(key, name) || strings.Contains(name, key) {
			return t, true, nil
		}
	}
	return "", false, nil
}

func locateLargest(ctx context.Context, p *locateProbe) (string, bool, error) {
	counter, ok := p.backend.(datasource.RowCounter)
	if !ok {
		return "", false, nil
	}
	tables, err := counter.TableRowCounts(ctx)
	if err != nil {
		p.logger.Warn("Table row counts failed", zap.Error(err))
		return "", false, nil
	}
	var best datasource.TableMetadata
	for _, t := range tables {
		if t.RowCount > best.RowCount {
			best = t
		}
	}
	if best.RowCount <= 0 {
		return "", false, nil
	}
	return best.TableName, true, nil
}
