package schemas

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Flags is the column flag bitmask as reported by MySQL-compatible wire
// protocols. Other drivers set the bits they can derive.
type Flags uint32

const (
	FlagNotNull       Flags = 1 << 0
	FlagPrimaryKey    Flags = 1 << 1
	FlagUniqueKey     Flags = 1 << 2
	FlagMultipleKey   Flags = 1 << 3
	FlagBlob          Flags = 1 << 4
	FlagUnsigned      Flags = 1 << 5
	FlagZerofill      Flags = 1 << 6
	FlagBinary        Flags = 1 << 7
	FlagEnum          Flags = 1 << 8
	FlagAutoIncrement Flags = 1 << 9
	FlagTimestamp     Flags = 1 << 10
	FlagSet           Flags = 1 << 11
)

// Has reports whether every bit of f is set.
func (fl Flags) Has(f Flags) bool {
	return fl&f == f
}

// maxIdentifierLength is the larger of the Postgres (63) and MySQL (64) limits.
const maxIdentifierLength = 64

// Column is the capability every column descriptor carries regardless of
// driver: where it lives and how it is stored.
type Column interface {
	Table() string
	Name() string
	Type() string
	Charset() (string, bool)
	Length() (int, bool)
	Flags() Flags
	Decimals() (int, bool)
}

// BaseColumn is the generic storage metadata of a column. Optional values are
// kept as value/presence pairs so the struct stays comparable.
type BaseColumn struct {
	table       string
	name        string
	typ         string
	charset     string
	hasCharset  bool
	length      int
	hasLength   bool
	flags       Flags
	decimals    int
	hasDecimals bool
}

func NewBaseColumn(table, name, typ string, charset *string, length *int, flags Flags, decimals *int) BaseColumn {
	b := BaseColumn{
		table: table,
		name:  name,
		typ:   typ,
		flags: flags,
	}
	if charset != nil {
		b.charset, b.hasCharset = *charset, true
	}
	if length != nil {
		b.length, b.hasLength = *length, true
	}
	if decimals != nil {
		b.decimals, b.hasDecimals = *decimals, true
	}
	return b
}

func (b BaseColumn) Table() string { return b.table }
func (b BaseColumn) Name() string  { return b.name }
func (b BaseColumn) Type() string  { return b.typ }
func (b BaseColumn) Flags() Flags  { return b.flags }

func (b BaseColumn) Charset() (string, bool) {
	return b.charset, b.hasCharset
}

func (b BaseColumn) Length() (int, bool) {
	return b.length, b.hasLength
}

func (b BaseColumn) Decimals() (int, bool) {
	return b.decimals, b.hasDecimals
}

// Validate checks the preconditions the base record owns: table, column and
// type are present and the identifiers fit in an engine identifier.
func (b BaseColumn) Validate() error {
	if err := ValidateIdentifier("table", b.table); err != nil {
		return err
	}
	if err := ValidateIdentifier("column", b.name); err != nil {
		return err
	}
	if strings.TrimSpace(b.typ) == "" {
		return fmt.Errorf("column %s.%s: type: %w", b.table, b.name, ErrEmptyIdentifier)
	}
	return nil
}

// ValidateIdentifier checks a table, column or schema name. kind labels the
// name in the returned error.
func ValidateIdentifier(kind, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%s name: %w", kind, ErrEmptyIdentifier)
	}
	if utf8.RuneCountInString(name) > maxIdentifierLength {
		return fmt.Errorf("%s name %q exceeds %d characters: %w", kind, name, maxIdentifierLength, ErrInvalidIdentifier)
	}
	if strings.ContainsRune(name, 0) {
		return fmt.Errorf("%s name %q contains a NUL byte: %w", kind, name, ErrInvalidIdentifier)
	}
	return nil
}

// FlagsFor returns the bits implied by the constraint attributes, for drivers
// that do not report a bitmask of their own.
func FlagsFor(a Attributes) Flags {
	var fl Flags
	if !a.Nullable {
		fl |= FlagNotNull
	}
	if a.Primary {
		fl |= FlagPrimaryKey
	}
	if a.Unique {
		fl |= FlagUniqueKey
	}
	if a.Composite {
		fl |= FlagMultipleKey
	}
	if a.Unsigned {
		fl |= FlagUnsigned
	}
	if a.Zerofilled {
		fl |= FlagZerofill
	}
	if a.AutoIncremented {
		fl |= FlagAutoIncrement
	}
	return fl
}
