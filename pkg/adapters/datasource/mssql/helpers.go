package mssql

import (
	"strings"
)

// quoteName brackets an identifier the way QUOTENAME() does, doubling ].
func quoteName(identifier string) string {
	return "[" + strings.ReplaceAll(identifier, "]", "]]") + "]"
}

// mapSQLServerType maps SQL Server type names to the portable names the
// classifier understands.
func mapSQLServerType(sqlServerType string) string {
	t := strings.ToUpper(sqlServerType)
	switch t {
	case "INT":
		return "INTEGER"
	case "DECIMAL", "NUMERIC", "MONEY", "SMALLMONEY":
		return "NUMERIC"
	case "FLOAT":
		return "DOUBLE"
	case "NCHAR":
		return "CHAR"
	case "NVARCHAR":
		return "VARCHAR"
	case "NTEXT":
		return "TEXT"
	case "BINARY", "VARBINARY", "IMAGE":
		return "BLOB"
	case "DATETIME", "DATETIME2", "SMALLDATETIME":
		return "TIMESTAMP"
	case "DATETIMEOFFSET":
		return "TIMESTAMP WITH TIME ZONE"
	case "BIT":
		return "BOOLEAN"
	case "UNIQUEIDENTIFIER":
		return "UUID"
	default:
		return t
	}
}
