package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"schemakit/internal/metrics"
	"schemakit/internal/repositories"
	"schemakit/internal/schemas"
)

type fakeCatalog struct {
	tables  map[string][]schemas.Definition
	order   []string
	failure error

	mu    sync.Mutex
	calls int
}

func (f *fakeCatalog) Tables(ctx context.Context, schema string) ([]string, error) {
	if f.failure != nil {
		return nil, f.failure
	}
	return f.order, nil
}

func (f *fakeCatalog) Columns(ctx context.Context, schema, table string) ([]schemas.Definition, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.failure != nil {
		return nil, f.failure
	}
	defs, ok := f.tables[table]
	if !ok {
		return nil, repositories.ErrTableNotFound
	}
	return defs, nil
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string][]schemas.Definition
	getErr  error
	setErr  error
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]schemas.Definition)}
}

func (f *fakeCache) Get(ctx context.Context, schema, table string) ([]schemas.Definition, bool, error) {
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	defs, ok := f.entries[schema+"."+table]
	return defs, ok, nil
}

func (f *fakeCache) Set(ctx context.Context, schema, table string, defs []schemas.Definition) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[schema+"."+table] = defs
	return nil
}

func (f *fakeCache) Invalidate(ctx context.Context, schema, table string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, schema+"."+table)
	return nil
}

type colOpt func(*schemas.Attributes)

func primary(a *schemas.Attributes)   { a.Primary = true }
func unique(a *schemas.Attributes)    { a.Unique = true }
func composite(a *schemas.Attributes) { a.Composite = true }

func references(target, key string, mode schemas.FetchMode) colOpt {
	return func(a *schemas.Attributes) {
		a.ForeignTarget = &target
		a.ForeignKey = &key
		a.ForeignFetchMode = &mode
	}
}

func col(table, name, typ string, opts ...colOpt) schemas.Definition {
	var attrs schemas.Attributes
	for _, o := range opts {
		o(&attrs)
	}
	base := schemas.NewBaseColumn(table, name, typ, nil, nil, schemas.FlagsFor(attrs), nil)
	return schemas.NewColumnDefinition(base, attrs)
}

func fixtureCatalog() *fakeCatalog {
	return &fakeCatalog{
		order: []string{"profiles", "roles", "user_roles", "users"},
		tables: map[string][]schemas.Definition{
			"roles": {
				col("roles", "id", "integer", primary),
				col("roles", "name", "character varying", unique),
			},
			"users": {
				col("users", "id", "integer", primary),
				col("users", "email", "character varying", unique),
				col("users", "role_id", "integer", references("roles", "id", schemas.FetchModeEager)),
				col("users", "manager_id", "integer", references("users", "id", schemas.FetchModeLazy)),
			},
			"user_roles": {
				col("user_roles", "user_id", "integer", primary, composite, references("users", "id", schemas.FetchModeLazy)),
				col("user_roles", "role_id", "integer", primary, composite, references("roles", "id", schemas.FetchModeLazy)),
			},
			"profiles": {
				col("profiles", "id", "uuid", primary),
				col("profiles", "user_id", "integer", unique, references("users", "id", schemas.FetchModeLazy)),
				col("profiles", "created_at", "timestamp with time zone"),
			},
		},
	}
}

func TestSchemaService_ColumnsCacheThrough(t *testing.T) {
	catalog := fixtureCatalog()
	cache := newFakeCache()
	svc := NewSchemaService(catalog, cache)
	ctx := context.Background()

	first, err := svc.Columns(ctx, "public", "users")
	if err != nil {
		t.Fatalf("Columns() error: %v", err)
	}
	second, err := svc.Columns(ctx, "public", "users")
	if err != nil {
		t.Fatalf("Columns() error: %v", err)
	}

	if catalog.calls != 1 {
		t.Errorf("catalog called %d times, want 1", catalog.calls)
	}
	if len(first) != len(second) || first[0] != second[0] {
		t.Errorf("cached descriptors differ from catalog ones")
	}

	if err := svc.InvalidateColumns(ctx, "public", "users"); err != nil {
		t.Fatalf("InvalidateColumns() error: %v", err)
	}
	if _, err := svc.Columns(ctx, "public", "users"); err != nil {
		t.Fatalf("Columns() error: %v", err)
	}
	if catalog.calls != 2 {
		t.Errorf("catalog called %d times after invalidation, want 2", catalog.calls)
	}
}

func TestSchemaService_ColumnsCountsCacheLookups(t *testing.T) {
	svc := NewSchemaService(fixtureCatalog(), newFakeCache())
	ctx := context.Background()

	hits := metrics.ColumnCacheLookups.WithLabelValues(metrics.CacheHit)
	misses := metrics.ColumnCacheLookups.WithLabelValues(metrics.CacheMiss)
	hitsBefore, missesBefore := testutil.ToFloat64(hits), testutil.ToFloat64(misses)

	for i := 0; i < 3; i++ {
		if _, err := svc.Columns(ctx, "public", "roles"); err != nil {
			t.Fatalf("Columns() error: %v", err)
		}
	}

	if got := testutil.ToFloat64(misses) - missesBefore; got != 1 {
		t.Errorf("misses delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(hits) - hitsBefore; got != 2 {
		t.Errorf("hits delta = %v, want 2", got)
	}
}

func TestSchemaService_ColumnsCacheFailuresFallBack(t *testing.T) {
	catalog := fixtureCatalog()
	cache := newFakeCache()
	cache.getErr = errors.New("connection refused")
	cache.setErr = errors.New("connection refused")
	svc := NewSchemaService(catalog, cache)

	defs, err := svc.Columns(context.Background(), "public", "roles")
	if err != nil {
		t.Fatalf("Columns() error: %v", err)
	}
	if len(defs) != 2 {
		t.Errorf("len = %d, want 2", len(defs))
	}
}

func TestSchemaService_ColumnsWithoutCache(t *testing.T) {
	catalog := fixtureCatalog()
	svc := NewSchemaService(catalog, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := svc.Columns(ctx, "public", "roles"); err != nil {
			t.Fatalf("Columns() error: %v", err)
		}
	}
	if catalog.calls != 2 {
		t.Errorf("catalog called %d times, want 2", catalog.calls)
	}
	if err := svc.InvalidateColumns(ctx, "public", "roles"); err != nil {
		t.Errorf("InvalidateColumns() without cache: %v", err)
	}
}

func TestSchemaService_ColumnsMissingTable(t *testing.T) {
	svc := NewSchemaService(fixtureCatalog(), newFakeCache())

	_, err := svc.Columns(context.Background(), "public", "missing")
	if !errors.Is(err, repositories.ErrTableNotFound) {
		t.Fatalf("error = %v, want ErrTableNotFound", err)
	}
}

func TestSchemaService_Relations(t *testing.T) {
	svc := NewSchemaService(fixtureCatalog(), nil)

	plan, err := svc.Relations(context.Background(), "public", "users")
	if err != nil {
		t.Fatalf("Relations() error: %v", err)
	}

	if plan.Table != "users" {
		t.Errorf("Table = %q", plan.Table)
	}
	if len(plan.Eager) != 1 || plan.Eager[0].Column != "role_id" || plan.Eager[0].Target != "roles" || plan.Eager[0].TargetKey != "id" {
		t.Errorf("Eager = %+v", plan.Eager)
	}
	if len(plan.Lazy) != 1 || plan.Lazy[0].Column != "manager_id" || plan.Lazy[0].FetchMode != schemas.FetchModeLazy {
		t.Errorf("Lazy = %+v", plan.Lazy)
	}

	plan, err = svc.Relations(context.Background(), "public", "roles")
	if err != nil {
		t.Fatalf("Relations() error: %v", err)
	}
	if plan.Eager == nil || plan.Lazy == nil || len(plan.Eager)+len(plan.Lazy) != 0 {
		t.Errorf("roles plan = %+v, want empty non-nil slices", plan)
	}
}

func TestPreloadPlan_SkipsUnpairedForeignKey(t *testing.T) {
	target := "roles"
	base := schemas.NewBaseColumn("users", "role_id", "integer", nil, nil, 0, nil)
	half := schemas.NewColumnDefinition(base, schemas.Attributes{ForeignTarget: &target})

	plan := preloadPlan("users", []schemas.Definition{half})
	if len(plan.Eager)+len(plan.Lazy) != 0 {
		t.Errorf("plan = %+v, want no relations", plan)
	}
}

func TestSchemaService_VisualizeSchema(t *testing.T) {
	svc := NewSchemaService(fixtureCatalog(), newFakeCache())

	diagram, err := svc.VisualizeSchema(context.Background(), "")
	if err != nil {
		t.Fatalf("VisualizeSchema() error: %v", err)
	}

	if !strings.HasPrefix(diagram, "erDiagram\n") {
		t.Fatalf("diagram does not start with erDiagram:\n%s", diagram)
	}

	wantLines := []string{
		`    ROLES ||--o{ USERS : ""`,
		`    USERS ||--o{ USERS : ""`,
		`    USERS ||--o| PROFILES : ""`,
		`    USERS }o--o{ ROLES : ""`,
		"    USER_ROLES {",
		"        int id PK",
		"        varchar email UK",
		"        int role_id FK",
		"        int user_id FK, UK",
		"        int user_id PK, FK",
		"        uuid id PK",
		"        timestamptz created_at",
	}
	for _, line := range wantLines {
		if !strings.Contains(diagram, line+"\n") {
			t.Errorf("diagram missing line %q:\n%s", line, diagram)
		}
	}

	if strings.Contains(diagram, "USER_ROLES ||") || strings.Contains(diagram, "|| USER_ROLES") {
		t.Errorf("junction table should not get its own relationship lines:\n%s", diagram)
	}
}

func TestSchemaService_VisualizeSchemaKeysAndEmptyTables(t *testing.T) {
	catalog := &fakeCatalog{
		order: []string{"bookings", "markers", "users"},
		tables: map[string][]schemas.Definition{
			"users": {
				col("users", "id", "integer", primary),
			},
			// user_id is unique only together with slot.
			"bookings": {
				col("bookings", "id", "integer", primary),
				col("bookings", "user_id", "integer", composite, references("users", "id", schemas.FetchModeLazy)),
				col("bookings", "slot", "integer", composite),
			},
			"markers": {},
		},
	}
	svc := NewSchemaService(catalog, nil)

	diagram, err := svc.VisualizeSchema(context.Background(), "public")
	if err != nil {
		t.Fatalf("VisualizeSchema() error: %v", err)
	}

	for _, line := range []string{
		`    USERS ||--o{ BOOKINGS : ""`,
		"        int user_id FK",
		"        int slot",
		"    MARKERS {\n    }",
	} {
		if !strings.Contains(diagram, line+"\n") {
			t.Errorf("diagram missing %q:\n%s", line, diagram)
		}
	}
	if strings.Contains(diagram, "||--o| BOOKINGS") {
		t.Errorf("composite key rendered as one-to-one:\n%s", diagram)
	}
}

func TestSchemaService_VisualizeSchemaPropagatesErrors(t *testing.T) {
	catalog := fixtureCatalog()
	catalog.failure = errors.New("boom")
	svc := NewSchemaService(catalog, nil)

	if _, err := svc.VisualizeSchema(context.Background(), "public"); err == nil {
		t.Fatal("VisualizeSchema() error = nil, want error")
	}
}

func TestDetectJunctionTables(t *testing.T) {
	catalog := fixtureCatalog()
	tables, err := parseTables(context.Background(), catalog, "public")
	if err != nil {
		t.Fatalf("parseTables() error: %v", err)
	}

	junctions := detectJunctionTables(tables)
	if !junctions["user_roles"] || len(junctions) != 1 {
		t.Errorf("detectJunctionTables() = %v, want only user_roles", junctions)
	}
}

func TestSimplifyDataType(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"integer", "int"},
		{"character varying", "varchar"},
		{"timestamp with time zone", "timestamptz"},
		{"double precision", "double"},
		{"USER-DEFINED", "enum"},
		{"VARCHAR", "varchar"},
		{"interval day to second", "interval_day_to_second"},
	}
	for _, tt := range tests {
		if got := simplifyDataType(tt.in); got != tt.want {
			t.Errorf("simplifyDataType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
