package mssql

import (
	"context"
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-nlsql/pkg/adapters/datasource"
)

// Execute runs a SELECT bounded with TOP. A LIMIT clause written for the
// warehouse dialect is not translated; the statement fails and the compiler's
// recovery path takes over.
func (a *Adapter) Execute(ctx context.Context, query string, limit int) (*datasource.QueryExecutionResult, error) {
	inner := strings.TrimRight(strings.TrimSpace(query), ";")
	wrapped := fmt.Sprintf("SELECT TOP (%d) * FROM (%s) AS _q", datasource.EffectiveLimit(limit), inner)

	rows, err := a.db.QueryContext(ctx, wrapped)
	if err != nil {
		return nil, datasource.WrapConnError("execute query", err)
	}
	defer rows.Close()

	return datasource.CollectRows(rows, mapSQLServerType)
}
