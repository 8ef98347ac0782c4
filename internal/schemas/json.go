package schemas

import (
	"encoding/json"
	"fmt"
)

type columnDefinitionJSON struct {
	Table    string  `json:"table"`
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	Charset  *string `json:"charset,omitempty"`
	Length   *int    `json:"length,omitempty"`
	Flags    Flags   `json:"flags"`
	Decimals *int    `json:"decimals,omitempty"`

	Nullable      bool `json:"nullable"`
	AutoIncrement bool `json:"auto_increment"`
	PrimaryKey    bool `json:"primary_key"`
	UniqueKey     bool `json:"unique_key"`
	MultipleKey   bool `json:"multiple_key"`
	Unsigned      bool `json:"unsigned"`
	Zerofilled    bool `json:"zerofilled"`

	ForeignTarget    *string    `json:"foreign_target,omitempty"`
	ForeignKey       *string    `json:"foreign_key,omitempty"`
	ForeignFetchMode *FetchMode `json:"foreign_fetch_mode,omitempty"`
}

// MarshalJSON writes the descriptor with its fetch mode spelled out. A
// descriptor built with an out-of-range fetch mode fails to marshal with
// ErrInvalidFetchMode rather than writing a value DecodeColumnDefinition
// would reject.
func (c ColumnDefinition) MarshalJSON() ([]byte, error) {
	mode := c.foreignFetchMode
	return json.Marshal(columnDefinitionJSON{
		Table:            c.Table(),
		Name:             c.Name(),
		Type:             c.Type(),
		Charset:          optional(c.Charset()),
		Length:           optional(c.Length()),
		Flags:            c.Flags(),
		Decimals:         optional(c.Decimals()),
		Nullable:         c.nullable,
		AutoIncrement:    c.autoIncremented,
		PrimaryKey:       c.primary,
		UniqueKey:        c.unique,
		MultipleKey:      c.composite,
		Unsigned:         c.unsigned,
		Zerofilled:       c.zerofilled,
		ForeignTarget:    optional(c.ForeignTarget()),
		ForeignKey:       optional(c.ForeignKey()),
		ForeignFetchMode: &mode,
	})
}

// DecodeColumnDefinition rebuilds a descriptor from its JSON form. The result
// goes through NewValidatedColumnDefinition, so partial foreign keys and
// unknown fetch modes are rejected.
func DecodeColumnDefinition(data []byte) (ColumnDefinition, error) {
	var raw columnDefinitionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return ColumnDefinition{}, fmt.Errorf("failed to decode column definition: %w", err)
	}

	base := NewBaseColumn(raw.Table, raw.Name, raw.Type, raw.Charset, raw.Length, raw.Flags, raw.Decimals)
	return NewValidatedColumnDefinition(base, Attributes{
		Nullable:         raw.Nullable,
		AutoIncremented:  raw.AutoIncrement,
		Primary:          raw.PrimaryKey,
		Unique:           raw.UniqueKey,
		Composite:        raw.MultipleKey,
		Unsigned:         raw.Unsigned,
		Zerofilled:       raw.Zerofilled,
		ForeignTarget:    raw.ForeignTarget,
		ForeignKey:       raw.ForeignKey,
		ForeignFetchMode: raw.ForeignFetchMode,
	})
}

// DecodeColumnDefinitions decodes a JSON array of descriptors.
func DecodeColumnDefinitions(data []byte) ([]ColumnDefinition, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to decode column definitions: %w", err)
	}

	defs := make([]ColumnDefinition, 0, len(items))
	for i, item := range items {
		def, err := DecodeColumnDefinition(item)
		if err != nil {
			return nil, fmt.Errorf("column definition at index %d: %w", i, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}
