package services

import (
	"context"
	"fmt"
	"log"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"schemakit/internal/metrics"
	"schemakit/internal/models"
	"schemakit/internal/schemas"
)

const (
	maxJunctionTableColumns = 6
	minJunctionTableFKs     = 2

	visualizeTimeout = 30 * time.Second
	// Concurrent column lookups while rendering a diagram.
	visualizeConcurrency = 4
)

// ColumnCatalog is a source of table and column metadata for one database.
type ColumnCatalog interface {
	Tables(ctx context.Context, schema string) ([]string, error)
	Columns(ctx context.Context, schema, table string) ([]schemas.Definition, error)
}

type ColumnCache interface {
	Get(ctx context.Context, schema, table string) ([]schemas.Definition, bool, error)
	Set(ctx context.Context, schema, table string, defs []schemas.Definition) error
	Invalidate(ctx context.Context, schema, table string) error
}

type SchemaService struct {
	catalog ColumnCatalog
	cache   ColumnCache
}

// NewSchemaService creates a new SchemaService. cache may be nil, in which
// case every lookup goes to the catalog.
func NewSchemaService(catalog ColumnCatalog, cache ColumnCache) *SchemaService {
	return &SchemaService{
		catalog: catalog,
		cache:   cache,
	}
}

func (s *SchemaService) Tables(ctx context.Context, schema string) ([]string, error) {
	tables, err := s.catalog.Tables(ctx, schema)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables of %s: %w", schema, err)
	}
	return tables, nil
}

// Columns returns the descriptors of schema.table, serving them from the
// cache when possible. Cached entries hold only the generic projection.
// Cache failures are logged and never fail the lookup.
func (s *SchemaService) Columns(ctx context.Context, schema, table string) ([]schemas.Definition, error) {
	if s.cache != nil {
		defs, found, err := s.cache.Get(ctx, schema, table)
		switch {
		case err != nil:
			metrics.ColumnCacheLookups.WithLabelValues(metrics.CacheError).Inc()
			log.Printf("column cache read failed for %s.%s: %v", schema, table, err)
		case found:
			metrics.ColumnCacheLookups.WithLabelValues(metrics.CacheHit).Inc()
			return defs, nil
		default:
			metrics.ColumnCacheLookups.WithLabelValues(metrics.CacheMiss).Inc()
		}
	}

	start := time.Now()
	defs, err := s.catalog.Columns(ctx, schema, table)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.CatalogQueryDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, schema, table, defs); err != nil {
			log.Printf("column cache write failed for %s.%s: %v", schema, table, err)
		}
	}
	return defs, nil
}

// InvalidateColumns drops the cached descriptors of schema.table.
func (s *SchemaService) InvalidateColumns(ctx context.Context, schema, table string) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Invalidate(ctx, schema, table); err != nil {
		return fmt.Errorf("failed to invalidate cached columns of %s.%s: %w", schema, table, err)
	}
	return nil
}

// Relations splits the foreign keys of schema.table into the relations a
// loader should fetch with the row and the ones it should defer.
func (s *SchemaService) Relations(ctx context.Context, schema, table string) (models.PreloadPlan, error) {
	defs, err := s.Columns(ctx, schema, table)
	if err != nil {
		return models.PreloadPlan{}, err
	}
	return preloadPlan(table, defs), nil
}

func preloadPlan(table string, defs []schemas.Definition) models.PreloadPlan {
	plan := models.PreloadPlan{
		Table: table,
		Eager: []models.Relation{},
		Lazy:  []models.Relation{},
	}
	for _, d := range defs {
		if !schemas.HasForeignKey(d) {
			continue
		}
		target, _ := d.ForeignTarget()
		key, _ := d.ForeignKey()
		rel := models.Relation{
			Column:    d.Name(),
			Target:    target,
			TargetKey: key,
			FetchMode: d.ForeignFetchMode(),
		}
		if rel.FetchMode == schemas.FetchModeEager {
			plan.Eager = append(plan.Eager, rel)
		} else {
			plan.Lazy = append(plan.Lazy, rel)
		}
	}
	return plan
}

// VisualizeSchema generates a Mermaid ER diagram for a database schema
func (s *SchemaService) VisualizeSchema(ctx context.Context, schema string) (string, error) {
	if schema == "" {
		schema = "public"
	}

	ctx, cancel := context.WithTimeout(ctx, visualizeTimeout)
	defer cancel()

	mermaidDiagram, err := GenerateSchemaVisualization(ctx, s, schema)
	if err != nil {
		return "", fmt.Errorf("failed to generate schema visualization: %w", err)
	}
	return mermaidDiagram, nil
}

func parseTables(ctx context.Context, catalog ColumnCatalog, schema string) ([]models.Table, error) {
	tableNames, err := catalog.Tables(ctx, schema)
	if err != nil {
		return nil, err
	}

	tables := make([]models.Table, len(tableNames))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(visualizeConcurrency)
	for i, tableName := range tableNames {
		g.Go(func() error {
			columns, err := catalog.Columns(gctx, schema, tableName)
			if err != nil {
				return fmt.Errorf("failed to get columns for %s: %w", tableName, err)
			}
			tables[i] = newTable(tableName, columns)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return tables, nil
}

func newTable(name string, columns []schemas.Definition) models.Table {
	table := models.Table{Name: name, Columns: columns}
	for _, col := range columns {
		if col.IsPrimaryKey() {
			table.PrimaryKeys = append(table.PrimaryKeys, col.Name())
		}
		if schemas.HasForeignKey(col) {
			target, _ := col.ForeignTarget()
			key, _ := col.ForeignKey()
			table.ForeignKeys = append(table.ForeignKeys, models.ForeignKey{
				FromColumn: col.Name(),
				ToTable:    target,
				ToColumn:   key,
			})
		}
	}
	return table
}

func buildRelationships(tables []models.Table) []models.Relationship {
	var relationships []models.Relationship
	junctionTables := detectJunctionTables(tables)

	for _, table := range tables {
		// Junction tables collapse into many-to-many edges between their targets.
		if junctionTables[table.Name] {
			for i := 0; i < len(table.ForeignKeys); i++ {
				for j := i + 1; j < len(table.ForeignKeys); j++ {
					relationships = append(relationships, models.Relationship{
						FromTable: table.ForeignKeys[i].ToTable,
						ToTable:   table.ForeignKeys[j].ToTable,
						Type:      "}o--o{",
					})
				}
			}
			continue
		}

		for _, fk := range table.ForeignKeys {
			relType := "||--o{" // one-to-many
			if isUniqueColumn(table, fk.FromColumn) {
				relType = "||--o|" // one-to-one
			}

			relationships = append(relationships, models.Relationship{
				FromTable: fk.ToTable,
				ToTable:   table.Name,
				Type:      relType,
			})
		}
	}

	return relationships
}

func detectJunctionTables(tables []models.Table) map[string]bool {
	junctionTables := make(map[string]bool)
	for _, table := range tables {
		// At least 2 FKs, and all FKs are part of the PK
		if len(table.ForeignKeys) < minJunctionTableFKs ||
			len(table.PrimaryKeys) < minJunctionTableFKs ||
			len(table.Columns) > maxJunctionTableColumns {
			continue
		}

		allFKsInPK := true
		for _, fk := range table.ForeignKeys {
			if !slices.Contains(table.PrimaryKeys, fk.FromColumn) {
				allFKsInPK = false
				break
			}
		}
		fkCountInPK := 0
		for _, pk := range table.PrimaryKeys {
			if isForeignKey(table.ForeignKeys, pk) {
				fkCountInPK++
			}
		}
		if allFKsInPK && fkCountInPK >= minJunctionTableFKs {
			junctionTables[table.Name] = true
		}
	}
	return junctionTables
}

func generateMermaid(tables []models.Table, relationships []models.Relationship) string {
	var sb strings.Builder

	sb.WriteString("erDiagram\n")

	if len(relationships) > 0 {
		seen := make(map[string]bool)
		for _, rel := range relationships {
			key := fmt.Sprintf("%s:%s:%s", rel.FromTable, rel.Type, rel.ToTable)
			if seen[key] {
				continue
			}
			seen[key] = true

			// Mermaid requires a label, even an empty one.
			sb.WriteString(fmt.Sprintf("    %s %s %s : \"\"\n",
				strings.ToUpper(rel.FromTable),
				rel.Type,
				strings.ToUpper(rel.ToTable)))
		}
		sb.WriteString("\n")
	}

	for _, table := range tables {
		sb.WriteString(fmt.Sprintf("    %s {\n", strings.ToUpper(table.Name)))

		for _, col := range table.Columns {
			var keys []string
			if col.IsPrimaryKey() {
				keys = append(keys, "PK")
			}
			if isForeignKey(table.ForeignKeys, col.Name()) {
				keys = append(keys, "FK")
			}
			if col.IsUniqueKey() && !col.IsPrimaryKey() {
				keys = append(keys, "UK")
			}

			annotations := ""
			if len(keys) > 0 {
				annotations = " " + strings.Join(keys, ", ")
			}

			sb.WriteString(fmt.Sprintf("        %s %s%s\n",
				simplifyDataType(col.Type()),
				col.Name(),
				annotations))
		}

		sb.WriteString("    }\n\n")
	}

	return sb.String()
}

func simplifyDataType(dataType string) string {
	dt := strings.ToLower(dataType)

	switch {
	case dt == "integer":
		return "int"
	case dt == "bigint":
		return "bigint"
	case dt == "smallint":
		return "smallint"
	case strings.HasPrefix(dt, "character varying"):
		return "varchar"
	case strings.HasPrefix(dt, "character"):
		return "char"
	case dt == "text":
		return "text"
	case strings.HasPrefix(dt, "timestamp without time zone"):
		return "timestamp"
	case strings.HasPrefix(dt, "timestamp with time zone"):
		return "timestamptz"
	case strings.HasPrefix(dt, "time without time zone"):
		return "time"
	case dt == "date":
		return "date"
	case dt == "boolean":
		return "boolean"
	case strings.HasPrefix(dt, "numeric"):
		return "numeric"
	case strings.HasPrefix(dt, "decimal"):
		return "decimal"
	case dt == "real":
		return "real"
	case dt == "double precision":
		return "double"
	case dt == "json":
		return "json"
	case dt == "jsonb":
		return "jsonb"
	case dt == "uuid":
		return "uuid"
	case dt == "bytea":
		return "bytea"
	case strings.HasPrefix(dt, "array"):
		return "array"
	case dt == "user-defined":
		return "enum"
	default:
		// Mermaid attribute types cannot contain spaces.
		return strings.ReplaceAll(dt, " ", "_")
	}
}

func isForeignKey(fks []models.ForeignKey, colName string) bool {
	for _, fk := range fks {
		if fk.FromColumn == colName {
			return true
		}
	}
	return false
}

func isUniqueColumn(table models.Table, colName string) bool {
	for _, col := range table.Columns {
		if col.Name() == colName {
			return col.IsUniqueKey()
		}
	}
	return false
}

// GenerateSchemaVisualization renders every table of schema and the
// relationships between them as a Mermaid erDiagram.
func GenerateSchemaVisualization(ctx context.Context, catalog ColumnCatalog, schema string) (string, error) {
	tables, err := parseTables(ctx, catalog, schema)
	if err != nil {
		return "", fmt.Errorf("failed to parse tables: %w", err)
	}

	relationships := buildRelationships(tables)

	return generateMermaid(tables, relationships), nil
}
