package postgres

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-nlsql/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.AdapterRegistration{
		Info: datasource.AdapterInfo{
			Type:        "postgres",
			DisplayName: "PostgreSQL",
			Description: "Relational store: PostgreSQL 12+, Aurora PostgreSQL, Supabase",
			Kind:        datasource.KindRelational,
		},
		Factory: func(ctx context.Context, config map[string]any, logger *zap.Logger) (datasource.Backend, error) {
			cfg, err := FromMap(config)
			if err != nil {
				return nil, err
			}
			return NewAdapter(ctx, cfg, logger)
		},
	})
}
