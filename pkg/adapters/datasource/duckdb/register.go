package duckdb

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-nlsql/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.AdapterRegistration{
		Info: datasource.AdapterInfo{
			Type:        "duckdb",
			DisplayName: "DuckDB",
			Description: "Embedded columnar warehouse (file or in-memory)",
			Kind:        datasource.KindWarehouse,
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
