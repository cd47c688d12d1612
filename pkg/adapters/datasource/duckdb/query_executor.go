package duckdb

import (
	"context"
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-nlsql/pkg/adapters/datasource"
)

// Execute runs a SELECT wrapped with a bounded LIMIT. The wrapper makes a bare
// mutating statement a parse error; read-only access is otherwise up to
// sql.Guard and the access_mode=READ_ONLY DSN, since the driver refuses
// read-only transactions.
func (a *Adapter) Execute(ctx context.Context, query string, limit int) (*datasource.QueryExecutionResult, error) {
	inner := strings.TrimRight(strings.TrimSpace(query), ";")
	wrapped := fmt.Sprintf("SELECT * FROM (%s) AS _q LIMIT %d", inner, datasource.EffectiveLimit(limit))

	rows, err := a.db.QueryContext(ctx, wrapped)
	if err != nil {
		return nil, datasource.WrapConnError("execute query", err)
	}
	defer rows.Close()

	return datasource.CollectRows(rows, strings.ToUpper)
}
