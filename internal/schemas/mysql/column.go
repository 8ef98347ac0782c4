// Package mysql carries the column metadata MySQL and MariaDB report beyond
// the generic descriptor.
package mysql

import (
	"strconv"
	"strings"

	"schemakit/internal/schemas"
)

// Column is a schemas.Definition that keeps the raw MySQL column type and
// EXTRA text.
type Column struct {
	schemas.ColumnDefinition

	columnType string
	extra      string
}

var _ schemas.Definition = Column{}

// ColumnType is the full declared type, e.g. "int(10) unsigned zerofill".
func (c Column) ColumnType() string {
	return c.columnType
}

// Extra is information_schema.COLUMNS.EXTRA, e.g. "auto_increment".
func (c Column) Extra() string {
	return c.extra
}

// NewColumn wraps an already built descriptor with the raw type details.
func NewColumn(def schemas.ColumnDefinition, columnType, extra string) Column {
	return Column{
		ColumnDefinition: def,
		columnType:       columnType,
		extra:            extra,
	}
}

// FromFlags derives the constraint booleans from the wire protocol flags, the
// way a result-set column definition packet reports them. MySQL does not put
// foreign keys on the wire; callers pass them when they know them.
func FromFlags(base schemas.BaseColumn, foreignTable, foreignColumn *string, mode *schemas.FetchMode) Column {
	fl := base.Flags()
	def := schemas.NewColumnDefinition(base, schemas.Attributes{
		Nullable:         !fl.Has(schemas.FlagNotNull),
		AutoIncremented:  fl.Has(schemas.FlagAutoIncrement),
		Primary:          fl.Has(schemas.FlagPrimaryKey),
		Unique:           fl.Has(schemas.FlagUniqueKey),
		Composite:        fl.Has(schemas.FlagMultipleKey),
		Unsigned:         fl.Has(schemas.FlagUnsigned),
		Zerofilled:       fl.Has(schemas.FlagZerofill),
		ForeignTarget:    foreignTable,
		ForeignKey:       foreignColumn,
		ForeignFetchMode: mode,
	})

	var extra string
	if fl.Has(schemas.FlagAutoIncrement) {
		extra = "auto_increment"
	}
	return NewColumn(def, base.Type(), extra)
}

// TypeInfo is what ParseColumnType extracts from a declared column type.
type TypeInfo struct {
	Base     string
	Length   *int
	Decimals *int
	Unsigned bool
	Zerofill bool
}

// ParseColumnType splits e.g. "decimal(10,2) unsigned zerofill" into its
// parts. Types with non-numeric arguments such as enum('a','b') return only
// the base name.
func ParseColumnType(columnType string) TypeInfo {
	s := strings.ToLower(strings.TrimSpace(columnType))

	var info TypeInfo
	var attrs []string
	if open := strings.IndexByte(s, '('); open >= 0 {
		info.Base = strings.TrimSpace(s[:open])
		end := strings.LastIndexByte(s, ')')
		if end < open {
			return info
		}
		parseTypeArgs(s[open+1:end], &info)
		attrs = strings.Fields(s[end+1:])
	} else {
		words := strings.Fields(s)
		n := len(words)
		for n > 0 && isTypeAttribute(words[n-1]) {
			n--
		}
		info.Base = strings.Join(words[:n], " ")
		attrs = words[n:]
	}

	for _, attr := range attrs {
		switch attr {
		case "unsigned":
			info.Unsigned = true
		case "zerofill":
			info.Zerofill = true
		}
	}
	return info
}

func parseTypeArgs(args string, info *TypeInfo) {
	parts := strings.Split(args, ",")
	if len(parts) > 2 {
		return
	}
	nums := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return
		}
		nums = append(nums, n)
	}
	info.Length = &nums[0]
	if len(nums) == 2 {
		info.Decimals = &nums[1]
	}
}

func isTypeAttribute(word string) bool {
	return word == "unsigned" || word == "signed" || word == "zerofill"
}
