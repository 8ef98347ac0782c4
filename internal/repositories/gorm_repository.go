package repositories

import (
	"context"
	"fmt"
	"sort"

	"gorm.io/gorm"

	"schemakit/internal/schemas"
	"schemakit/internal/schemas/mysql"
)

// GormColumnRepository introspects columns through gorm's migrator, which
// works the same way for every dialector gorm supports. The migrator does not
// expose foreign keys, so the descriptors it produces carry none.
type GormColumnRepository struct {
	db *gorm.DB
}

func NewGormColumnRepository(db *gorm.DB) *GormColumnRepository {
	return &GormColumnRepository{db: db}
}

// Tables lists the tables of the connection's current database. The migrator
// has no notion of another schema, so schema is not consulted.
func (r *GormColumnRepository) Tables(ctx context.Context, schema string) ([]string, error) {
	tables, err := r.db.WithContext(ctx).Migrator().GetTables()
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	sort.Strings(tables)
	return tables, nil
}

// Columns returns mysql.Column values for the mysql dialector and generic
// descriptors for every other one. Like Tables it reads the current database.
func (r *GormColumnRepository) Columns(ctx context.Context, schema, table string) ([]schemas.Definition, error) {
	migrator := r.db.WithContext(ctx).Migrator()

	if !migrator.HasTable(table) {
		return nil, fmt.Errorf("%s: %w", table, ErrTableNotFound)
	}

	columnTypes, err := migrator.ColumnTypes(table)
	if err != nil {
		return nil, fmt.Errorf("failed to read column types of %s: %w", table, err)
	}

	indexes, err := migrator.GetIndexes(table)
	if err != nil {
		return nil, fmt.Errorf("failed to read indexes of %s: %w", table, err)
	}

	keys := indexKeys(indexes)
	dialect := r.db.Dialector.Name()

	defs := make([]schemas.Definition, 0, len(columnTypes))
	for _, ct := range columnTypes {
		defs = append(defs, definitionFromColumnType(table, dialect, ct, keys[ct.Name()]))
	}
	return defs, nil
}

type indexKey struct {
	primary   bool
	unique    bool
	composite bool
}

func indexKeys(indexes []gorm.Index) map[string]indexKey {
	keys := make(map[string]indexKey)
	for _, idx := range indexes {
		cols := idx.Columns()
		primary, _ := idx.PrimaryKey()
		unique, _ := idx.Unique()

		for _, col := range cols {
			k := keys[col]
			k.primary = k.primary || primary
			// A unique index over several columns does not make any one of
			// them unique on its own.
			k.unique = k.unique || (unique && !primary && len(cols) == 1)
			k.composite = k.composite || len(cols) > 1
			keys[col] = k
		}
	}
	return keys
}

func definitionFromColumnType(table, dialect string, ct gorm.ColumnType, key indexKey) schemas.Definition {
	attrs := schemas.Attributes{
		Composite: key.composite,
	}

	if nullable, ok := ct.Nullable(); ok {
		attrs.Nullable = nullable
	}
	if autoInc, ok := ct.AutoIncrement(); ok {
		attrs.AutoIncremented = autoInc
	}
	if primary, ok := ct.PrimaryKey(); ok {
		attrs.Primary = primary
	}
	attrs.Primary = attrs.Primary || key.primary
	if unique, ok := ct.Unique(); ok {
		attrs.Unique = unique
	}
	attrs.Unique = attrs.Unique || key.unique

	var length, decimals *int
	if n, ok := ct.Length(); ok && n > 0 {
		l := int(n)
		length = &l
	}
	if precision, scale, ok := ct.DecimalSize(); ok {
		if length == nil && precision > 0 {
			p := int(precision)
			length = &p
		}
		s := int(scale)
		decimals = &s
	}

	columnType, _ := ct.ColumnType()
	if dialect == "mysql" {
		info := mysql.ParseColumnType(columnType)
		attrs.Unsigned = info.Unsigned
		attrs.Zerofilled = info.Zerofill
		if length == nil {
			length = info.Length
		}
	}

	base := schemas.NewBaseColumn(table, ct.Name(), ct.DatabaseTypeName(), nil, length, schemas.FlagsFor(attrs), decimals)

	// MySQL descriptors are read back from the flag word, the same way a
	// result-set column packet is decoded.
	if dialect == "mysql" {
		col := mysql.FromFlags(base, nil, nil, nil)
		return mysql.NewColumn(col.ColumnDefinition, columnType, col.Extra())
	}
	return schemas.NewColumnDefinition(base, attrs)
}
