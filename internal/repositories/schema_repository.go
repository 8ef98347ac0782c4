package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"schemakit/internal/schemas"
	"schemakit/internal/schemas/postgres"
)

var ErrTableNotFound = errors.New("table not found")

// FetchModeResolver decides how the relation behind a foreign-key column
// should be preloaded.
type FetchModeResolver interface {
	FetchModeFor(table, column string) schemas.FetchMode
}

// FetchModeResolverFunc adapts a function to FetchModeResolver.
type FetchModeResolverFunc func(table, column string) schemas.FetchMode

func (f FetchModeResolverFunc) FetchModeFor(table, column string) schemas.FetchMode {
	return f(table, column)
}

type SchemaRepository struct {
	pool       *pgxpool.Pool
	fetchModes FetchModeResolver
}

func NewSchemaRepository(pool *pgxpool.Pool, fetchModes FetchModeResolver) *SchemaRepository {
	return &SchemaRepository{pool: pool, fetchModes: fetchModes}
}

// GetTables returns all table names in the specified schema
func (r *SchemaRepository) GetTables(ctx context.Context, schema string) ([]string, error) {
	query := `
		SELECT table_name::text
		FROM information_schema.tables
		WHERE table_schema = $1
		AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`

	rows, err := r.pool.Query(ctx, query, schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return tables, nil
}

// Tables satisfies the service catalog contract.
func (r *SchemaRepository) Tables(ctx context.Context, schema string) ([]string, error) {
	return r.GetTables(ctx, schema)
}

// Columns is GetColumns widened to the Definition contract.
func (r *SchemaRepository) Columns(ctx context.Context, schema, table string) ([]schemas.Definition, error) {
	cols, err := r.GetColumns(ctx, schema, table)
	if err != nil {
		return nil, err
	}
	defs := make([]schemas.Definition, len(cols))
	for i, c := range cols {
		defs[i] = c
	}
	return defs, nil
}

// Key constraints are folded per column: a column is composite when any
// PRIMARY KEY, UNIQUE or FOREIGN KEY constraint covering it spans more than
// one column, and unique only when a single-column UNIQUE constraint covers
// it. Foreign columns are matched positionally through the referenced
// unique constraint so multi-column foreign keys pair up correctly.
const columnsQuery = `
	WITH key_columns AS (
		SELECT
			kcu.column_name::text AS column_name,
			tc.constraint_type::text AS constraint_type,
			count(*) OVER (PARTITION BY tc.constraint_schema, tc.constraint_name) AS width
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
			AND tc.table_name = kcu.table_name
		WHERE tc.table_schema = $1
			AND tc.table_name = $2
			AND tc.constraint_type IN ('PRIMARY KEY', 'UNIQUE', 'FOREIGN KEY')
	),
	keys AS (
		SELECT
			column_name,
			bool_or(constraint_type = 'PRIMARY KEY') AS is_primary,
			bool_or(constraint_type = 'UNIQUE' AND width = 1) AS is_unique,
			bool_or(width > 1) AS is_composite
		FROM key_columns
		GROUP BY column_name
	),
	foreign_keys AS (
		SELECT DISTINCT ON (kcu.column_name)
			kcu.column_name::text AS column_name,
			rkcu.table_name::text AS foreign_table,
			rkcu.column_name::text AS foreign_column
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
			AND tc.table_name = kcu.table_name
		JOIN information_schema.referential_constraints rc
			ON rc.constraint_name = tc.constraint_name
			AND rc.constraint_schema = tc.table_schema
		JOIN information_schema.key_column_usage rkcu
			ON rkcu.constraint_name = rc.unique_constraint_name
			AND rkcu.constraint_schema = rc.unique_constraint_schema
			AND rkcu.ordinal_position = kcu.position_in_unique_constraint
		WHERE tc.constraint_type = 'FOREIGN KEY'
			AND tc.table_schema = $1
			AND tc.table_name = $2
		ORDER BY kcu.column_name, tc.constraint_name
	)
	SELECT
		c.column_name::text,
		c.data_type::text,
		c.udt_name::text,
		c.character_set_name::text,
		c.character_maximum_length::int,
		c.numeric_precision::int,
		c.numeric_scale::int,
		c.is_nullable = 'YES',
		c.column_default::text,
		CASE WHEN c.is_identity = 'YES' THEN c.identity_generation::text END,
		COALESCE(k.is_primary, false),
		COALESCE(k.is_unique, false),
		COALESCE(k.is_composite, false),
		fk.foreign_table,
		fk.foreign_column
	FROM information_schema.columns c
	LEFT JOIN keys k ON k.column_name = c.column_name::text
	LEFT JOIN foreign_keys fk ON fk.column_name = c.column_name::text
	WHERE c.table_schema = $1 AND c.table_name = $2
	ORDER BY c.ordinal_position
`

const tableExistsQuery = `
	SELECT EXISTS (
		SELECT 1
		FROM information_schema.tables
		WHERE table_schema = $1
			AND table_name = $2
			AND table_type = 'BASE TABLE'
	)
`

// GetColumns returns the column descriptors of a table in catalog order.
// A table without columns yields an empty slice; a table that does not exist
// yields ErrTableNotFound.
func (r *SchemaRepository) GetColumns(ctx context.Context, schema, table string) ([]postgres.Column, error) {
	rows, err := r.pool.Query(ctx, columnsQuery, schema, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns of %s.%s: %w", schema, table, err)
	}
	defer rows.Close()

	var columns []postgres.Column
	for rows.Next() {
		c := postgres.Catalog{Table: table}
		if err := rows.Scan(
			&c.Name,
			&c.DataType,
			&c.UDTName,
			&c.Charset,
			&c.MaxLength,
			&c.NumericPrecision,
			&c.NumericScale,
			&c.Nullable,
			&c.Default,
			&c.IdentityGeneration,
			&c.Primary,
			&c.Unique,
			&c.Composite,
			&c.ForeignTable,
			&c.ForeignColumn,
		); err != nil {
			return nil, fmt.Errorf("failed to scan column of %s.%s: %w", schema, table, err)
		}

		var mode *schemas.FetchMode
		if c.ForeignTable != nil && r.fetchModes != nil {
			m := r.fetchModes.FetchModeFor(table, c.Name)
			mode = &m
		}
		columns = append(columns, postgres.NewColumn(c, mode))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns of %s.%s: %w", schema, table, err)
	}

	if len(columns) == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, tableExistsQuery, schema, table).Scan(&exists); err != nil {
			return nil, fmt.Errorf("failed to look up table %s.%s: %w", schema, table, err)
		}
		if !exists {
			return nil, fmt.Errorf("%s.%s: %w", schema, table, ErrTableNotFound)
		}
		return []postgres.Column{}, nil
	}

	return columns, nil
}
