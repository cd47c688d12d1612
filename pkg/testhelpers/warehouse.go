package testhelpers

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-nlsql/pkg/adapters/datasource/duckdb"
)

// NewWarehouse opens a private in-memory DuckDB warehouse, runs the given
// statements and closes it when the test ends.
func NewWarehouse(t *testing.T, statements ...string) *duckdb.Adapter {
	t.Helper()

	ctx := context.Background()
	adapter, err := duckdb.NewAdapter(ctx, &duckdb.Config{}, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open in-memory warehouse: %v", err)
	}
	t.Cleanup(func() { adapter.Close() })

	for _, stmt := range statements {
		if _, err := adapter.DB().ExecContext(ctx, stmt); err != nil {
			t.Fatalf("failed to seed warehouse: %v\n%s", err, stmt)
		}
	}
	return adapter
}

// SuperstoreDDL creates a small retail orders table under name.
func SuperstoreDDL(name string) []string {
	quoted := `"` + name + `"`
	return []string{
		`CREATE TABLE ` + quoted + ` (
			"Row ID" INTEGER,
			"Order ID" VARCHAR,
			"Order Date" VARCHAR,
			"Customer Name" VARCHAR,
			"Segment" VARCHAR,
			"Region" VARCHAR,
			"Category" VARCHAR,
			"Sales" DOUBLE,
			"Quantity" INTEGER,
			"Profit" DOUBLE
		)`,
		`INSERT INTO ` + quoted + ` VALUES
			(1,  'CA-2016-152156', '08-11-2016', 'Claire Gute',     'Consumer',    'South',   'Furniture',       261.96, 2,  41.91),
			(2,  'CA-2016-152156', '08-11-2016', 'Claire Gute',     'Consumer',    'South',   'Furniture',       731.94, 3, 219.58),
			(3,  'CA-2016-138688', '12-06-2016', 'Darrin Van Huff', 'Corporate',   'West',    'Office Supplies',  14.62, 2,   6.87),
			(4,  'US-2015-108966', '11-10-2015', 'Sean O''Donnell', 'Consumer',    'South',   'Furniture',       957.58, 5, -383.03),
			(5,  'US-2015-108966', '11-10-2015', 'Sean O''Donnell', 'Consumer',    'South',   'Office Supplies',  22.37, 2,   2.52),
			(6,  'CA-2014-115812', '09-06-2014', 'Brosina Hoffman', 'Consumer',    'West',    'Furniture',        48.86, 7,  14.17),
			(7,  'CA-2014-115812', '09-06-2014', 'Brosina Hoffman', 'Consumer',    'West',    'Office Supplies',   7.28, 4,   1.97),
			(8,  'CA-2014-115812', '09-06-2014', 'Brosina Hoffman', 'Consumer',    'West',    'Technology',      907.15, 6,  90.72),
			(9,  'CA-2017-114412', '15-04-2017', 'Andrew Allen',    'Consumer',    'Central', 'Office Supplies',  15.55, 3,   5.44),
			(10, 'CA-2016-161389', '05-12-2016', 'Irene Maddox',    'Consumer',    'East',    'Office Supplies', 407.98, 3, 132.59),
			(11, 'US-2015-118983', '22-11-2015', 'Harold Pawlan',   'Home Office', 'Central', 'Office Supplies',  68.81, 5,  -5.49),
			(12, 'CA-2014-105893', '11-11-2014', 'Pete Kriz',       'Consumer',    'East',    'Technology',      665.88, 6,  13.32)`,
	}
}
