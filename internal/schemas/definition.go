// Package schemas describes table columns independently of the database
// engine that reported them. Drivers build descriptors once from their native
// catalog metadata; hydrators, schema tools and foreign-key preloaders read
// them through the Definition interface.
package schemas

import "fmt"

// Definition is what a consumer may rely on from any column descriptor.
// Driver-specific descriptors satisfy it by embedding ColumnDefinition.
type Definition interface {
	Column

	IsNullable() bool
	IsAutoIncrement() bool
	IsPrimaryKey() bool
	IsUniqueKey() bool
	IsMultipleKey() bool
	IsUnsigned() bool
	IsZerofilled() bool

	ForeignTarget() (string, bool)
	ForeignKey() (string, bool)
	ForeignFetchMode() FetchMode
}

// Attributes are the constraint and linkage facts recorded on top of the
// base record. A nil ForeignFetchMode means FetchModeLazy.
type Attributes struct {
	Nullable        bool
	AutoIncremented bool
	Primary         bool
	Unique          bool
	Composite       bool
	Unsigned        bool
	Zerofilled      bool

	ForeignTarget    *string
	ForeignKey       *string
	ForeignFetchMode *FetchMode
}

// ColumnDefinition is the generic Definition. It records what the driver
// reported without checking it; the zero value is not meaningful.
type ColumnDefinition struct {
	BaseColumn

	nullable        bool
	autoIncremented bool
	primary         bool
	unique          bool
	composite       bool
	unsigned        bool
	zerofilled      bool

	foreignTarget    string
	hasForeignTarget bool
	foreignKey       string
	hasForeignKey    bool
	foreignFetchMode FetchMode
}

var _ Definition = ColumnDefinition{}

// NewColumnDefinition never fails. Contradictory flags, an unpaired foreign
// target/key and out-of-range fetch modes are stored as given; use
// NewValidatedColumnDefinition to reject them.
func NewColumnDefinition(base BaseColumn, attrs Attributes) ColumnDefinition {
	def := ColumnDefinition{
		BaseColumn:       base,
		nullable:         attrs.Nullable,
		autoIncremented:  attrs.AutoIncremented,
		primary:          attrs.Primary,
		unique:           attrs.Unique,
		composite:        attrs.Composite,
		unsigned:         attrs.Unsigned,
		zerofilled:       attrs.Zerofilled,
		foreignFetchMode: FetchModeLazy,
	}
	if attrs.ForeignTarget != nil {
		def.foreignTarget, def.hasForeignTarget = *attrs.ForeignTarget, true
	}
	if attrs.ForeignKey != nil {
		def.foreignKey, def.hasForeignKey = *attrs.ForeignKey, true
	}
	if attrs.ForeignFetchMode != nil {
		def.foreignFetchMode = *attrs.ForeignFetchMode
	}
	return def
}

// NewValidatedColumnDefinition builds the descriptor and runs Validate on it.
func NewValidatedColumnDefinition(base BaseColumn, attrs Attributes) (ColumnDefinition, error) {
	def := NewColumnDefinition(base, attrs)
	if err := def.Validate(); err != nil {
		return ColumnDefinition{}, err
	}
	return def, nil
}

func (c ColumnDefinition) IsNullable() bool      { return c.nullable }
func (c ColumnDefinition) IsAutoIncrement() bool { return c.autoIncremented }
func (c ColumnDefinition) IsPrimaryKey() bool    { return c.primary }
func (c ColumnDefinition) IsUniqueKey() bool     { return c.unique }

// IsMultipleKey reports whether the column is part of a key spanning more
// than one column.
func (c ColumnDefinition) IsMultipleKey() bool { return c.composite }

// IsUnsigned only makes sense for numeric types.
func (c ColumnDefinition) IsUnsigned() bool { return c.unsigned }

// IsZerofilled reports whether values are left-padded with zeros to Length.
func (c ColumnDefinition) IsZerofilled() bool { return c.zerofilled }

// ForeignTarget returns the referenced table.
func (c ColumnDefinition) ForeignTarget() (string, bool) {
	return c.foreignTarget, c.hasForeignTarget
}

// ForeignKey returns the referenced column.
func (c ColumnDefinition) ForeignKey() (string, bool) {
	return c.foreignKey, c.hasForeignKey
}

func (c ColumnDefinition) ForeignFetchMode() FetchMode {
	return c.foreignFetchMode
}

// Validate reports metadata a strict consumer would refuse: an invalid base
// record, a foreign key with only one side set, or an unknown fetch mode.
func (c ColumnDefinition) Validate() error {
	if err := c.BaseColumn.Validate(); err != nil {
		return err
	}
	if c.hasForeignTarget != c.hasForeignKey {
		return fmt.Errorf("column %s.%s: %w", c.Table(), c.Name(), ErrPartialForeignKey)
	}
	if !c.foreignFetchMode.Valid() {
		return fmt.Errorf("column %s.%s: %w: %d", c.Table(), c.Name(), ErrInvalidFetchMode, int(c.foreignFetchMode))
	}
	return nil
}

// HasForeignKey reports whether d references another table. Both sides of
// the relation must be present.
func HasForeignKey(d Definition) bool {
	_, hasTarget := d.ForeignTarget()
	_, hasKey := d.ForeignKey()
	return hasTarget && hasKey
}

// Project copies any Definition into the generic variant, dropping whatever
// the driver added on top.
func Project(d Definition) ColumnDefinition {
	if c, ok := d.(ColumnDefinition); ok {
		return c
	}

	base := NewBaseColumn(d.Table(), d.Name(), d.Type(), optional(d.Charset()), optional(d.Length()), d.Flags(), optional(d.Decimals()))
	mode := d.ForeignFetchMode()
	return NewColumnDefinition(base, Attributes{
		Nullable:         d.IsNullable(),
		AutoIncremented:  d.IsAutoIncrement(),
		Primary:          d.IsPrimaryKey(),
		Unique:           d.IsUniqueKey(),
		Composite:        d.IsMultipleKey(),
		Unsigned:         d.IsUnsigned(),
		Zerofilled:       d.IsZerofilled(),
		ForeignTarget:    optional(d.ForeignTarget()),
		ForeignKey:       optional(d.ForeignKey()),
		ForeignFetchMode: &mode,
	})
}

func optional[T any](v T, ok bool) *T {
	if !ok {
		return nil
	}
	return &v
}
