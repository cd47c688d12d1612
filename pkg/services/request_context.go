package services

import (
	"context"

	"github.com/google/uuid"
)

type dataSourceKey struct{}

// WithDataSourceID tags ctx with the data source a request is about, so
// audit events raised deep in the pipeline can name it.
func WithDataSourceID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, dataSourceKey{}, id)
}

// DataSourceIDFromContext returns the tagged data source, or uuid.Nil.
func DataSourceIDFromContext(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(dataSourceKey{}).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}
