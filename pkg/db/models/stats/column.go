package stats

import (
	"fmt"
	"strings"
)

// ColumnDef defines a single column for a table.
// It is the single source of truth for the stats tables: the same list drives
// CREATE TABLE statements (pkg/db/stats/*.go) and the column list of batch inserts.
type ColumnDef struct {
	// Name is the column name
	Name string

	// Type is the ClickHouse data type (e.g., "UInt64", "String", "DateTime64(6)")
	Type string

	// Codec is the optional compression codec (e.g., "ZSTD(1)", "Delta, ZSTD(3)")
	// Leave empty for no codec
	Codec string
}

// SQL returns the full column definition for CREATE TABLE statements.
// Example: "voter String CODEC(ZSTD(1))"
func (c ColumnDef) SQL() string {
	if c.Codec != "" {
		return fmt.Sprintf("%s %s CODEC(%s)", c.Name, c.Type, c.Codec)
	}
	return fmt.Sprintf("%s %s", c.Name, c.Type)
}

// Validate checks if the column definition is valid.
func (c ColumnDef) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("column name cannot be empty")
	}
	if c.Type == "" {
		return fmt.Errorf("column %s: type cannot be empty", c.Name)
	}
	return nil
}

// ColumnsToSchemaSQL converts a list of ColumnDef to a CREATE TABLE schema string.
func ColumnsToSchemaSQL(columns []ColumnDef) string {
	parts := make([]string, 0, len(columns))
	for _, col := range columns {
		parts = append(parts, col.SQL())
	}
	return strings.Join(parts, ",\n\t\t\t")
}

// ColumnsToNameList extracts just the column names from a list of ColumnDef.
// Useful for INSERT statements.
func ColumnsToNameList(columns []ColumnDef) []string {
	names := make([]string, 0, len(columns))
	for _, col := range columns {
		names = append(names, col.Name)
	}
	return names
}

// ColumnsToInsertList returns the comma separated column names for an INSERT statement.
func ColumnsToInsertList(columns []ColumnDef) string {
	return strings.Join(ColumnsToNameList(columns), ", ")
}

// ValidateColumns validates all columns in a list.
// Returns the first validation error encountered.
func ValidateColumns(columns []ColumnDef) error {
	seen := make(map[string]struct{}, len(columns))
	for _, col := range columns {
		if err := col.Validate(); err != nil {
			return err
		}
		if _, dup := seen[col.Name]; dup {
			return fmt.Errorf("column %s: defined twice", col.Name)
		}
		seen[col.Name] = struct{}{}
	}
	return nil
}
