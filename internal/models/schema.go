package models

import "schemakit/internal/schemas"

type ForeignKey struct {
	FromColumn string
	ToTable    string
	ToColumn   string
}

type Table struct {
	Name        string
	Columns     []schemas.Definition
	PrimaryKeys []string
	ForeignKeys []ForeignKey
}

type Relationship struct {
	FromTable string
	ToTable   string
	Type      string // "||--o{", "||--||", etc.
}

// Relation is one foreign-key column and how a preloader should resolve it.
type Relation struct {
	Column    string            `json:"column"`
	Target    string            `json:"target"`
	TargetKey string            `json:"target_key"`
	FetchMode schemas.FetchMode `json:"fetch_mode"`
}

// PreloadPlan splits a table's relations by fetch mode.
type PreloadPlan struct {
	Table string     `json:"table"`
	Eager []Relation `json:"eager"`
	Lazy  []Relation `json:"lazy"`
}
