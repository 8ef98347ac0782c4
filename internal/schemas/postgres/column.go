// Package postgres carries the column metadata Postgres reports beyond the
// generic descriptor.
package postgres

import (
	"strings"

	"schemakit/internal/schemas"
)

// Column is a schemas.Definition with the catalog details only Postgres has.
type Column struct {
	schemas.ColumnDefinition

	udtName       string
	identity      string
	defaultExpr   string
	hasDefaultVal bool
}

var _ schemas.Definition = Column{}

// Catalog is one row of information_schema.columns joined with the key
// constraints that cover it.
type Catalog struct {
	Table              string
	Name               string
	DataType           string
	UDTName            string
	Charset            *string
	MaxLength          *int
	NumericPrecision   *int
	NumericScale       *int
	Nullable           bool
	Default            *string
	IdentityGeneration *string

	Primary   bool
	Unique    bool
	Composite bool

	ForeignTable  *string
	ForeignColumn *string
}

// NewColumn builds the descriptor for one catalog row. Postgres has no
// unsigned or zerofill columns; flags are derived for callers that expect the
// MySQL-style bitmask.
func NewColumn(c Catalog, mode *schemas.FetchMode) Column {
	autoInc := c.IdentityGeneration != nil || isSequenceDefault(c.Default)

	length := c.MaxLength
	if length == nil {
		length = c.NumericPrecision
	}

	attrs := schemas.Attributes{
		Nullable:         c.Nullable,
		AutoIncremented:  autoInc,
		Primary:          c.Primary,
		Unique:           c.Unique,
		Composite:        c.Composite,
		ForeignTarget:    c.ForeignTable,
		ForeignKey:       c.ForeignColumn,
		ForeignFetchMode: mode,
	}

	flags := schemas.FlagsFor(attrs)
	if c.DataType == "bytea" {
		flags |= schemas.FlagBinary | schemas.FlagBlob
	}
	if strings.HasPrefix(c.DataType, "timestamp") {
		flags |= schemas.FlagTimestamp
	}
	if c.DataType == "USER-DEFINED" {
		flags |= schemas.FlagEnum
	}

	base := schemas.NewBaseColumn(c.Table, c.Name, c.DataType, c.Charset, length, flags, c.NumericScale)
	col := Column{
		ColumnDefinition: schemas.NewColumnDefinition(base, attrs),
		udtName:          c.UDTName,
	}
	if c.IdentityGeneration != nil {
		col.identity = *c.IdentityGeneration
	}
	if c.Default != nil {
		col.defaultExpr, col.hasDefaultVal = *c.Default, true
	}
	return col
}

// UDTName is the underlying type name, e.g. int4 or varchar.
func (c Column) UDTName() string {
	return c.udtName
}

// IdentityGeneration is ALWAYS or BY DEFAULT for identity columns.
func (c Column) IdentityGeneration() (string, bool) {
	return c.identity, c.identity != ""
}

func (c Column) DefaultExpression() (string, bool) {
	return c.defaultExpr, c.hasDefaultVal
}

func isSequenceDefault(def *string) bool {
	return def != nil && strings.HasPrefix(strings.ToLower(*def), "nextval(")
}
