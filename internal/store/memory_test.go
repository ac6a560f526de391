package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/JonMunkholm/catalogimport/internal/core"
	_ "github.com/JonMunkholm/catalogimport/internal/core/catalog"
)

func newProduct(sku string, values ...core.Value) *core.Entity {
	e := core.NewEntity()
	e.AddValue(core.Value{Attribute: "sku", Data: sku})
	for _, v := range values {
		e.AddValue(v)
	}
	return e
}

func mustOpen(t *testing.T, m *Memory) core.Session {
	t.Helper()
	s, err := m.Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func TestMemory_SessionIsolation(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("sku")
	a := mustOpen(t, m)
	b := mustOpen(t, m)

	if err := a.Save(ctx, newProduct("AB-1")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	eq := core.Filter{Attribute: "sku", Operator: core.OpEquals, Value: "AB-1"}
	got, err := a.Find(ctx, eq, "en_US", "ecommerce")
	if err != nil || len(got) != 1 {
		t.Fatalf("own session Find = %d, %v; want 1 match", len(got), err)
	}
	if got, _ := b.Find(ctx, eq, "en_US", "ecommerce"); len(got) != 0 {
		t.Fatalf("other session sees %d unflushed entities", len(got))
	}
	if m.Len() != 0 {
		t.Fatalf("Len before flush = %d", m.Len())
	}

	if err := a.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if got, _ := b.Find(ctx, eq, "en_US", "ecommerce"); len(got) != 1 {
		t.Fatalf("other session after flush = %d, want 1", len(got))
	}
	if m.Flushes() != 1 {
		t.Errorf("Flushes = %d, want 1", m.Flushes())
	}
	if err := a.Flush(ctx); err == nil {
		t.Error("second Flush should fail")
	}
}

func TestMemory_CloseDiscardsStaged(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("sku")
	s := mustOpen(t, m)
	if err := s.Save(ctx, newProduct("AB-1")); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if m.Len() != 0 {
		t.Errorf("Len = %d after Close, want 0", m.Len())
	}
	if err := s.Save(ctx, newProduct("AB-2")); !core.IsFatal(err) {
		t.Errorf("Save after Close = %v, want fatal", err)
	}
}

func TestMemory_SaveRequiresIdentifier(t *testing.T) {
	s := mustOpen(t, NewMemory("sku"))
	if err := s.Save(context.Background(), core.NewEntity()); err == nil {
		t.Error("Save without identifier should fail")
	}
}

func TestMemory_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("sku")
	s := mustOpen(t, m)
	e := newProduct("AB-1", core.Value{Attribute: "weight", Data: "1"})
	if err := s.Save(ctx, e); err != nil {
		t.Fatal(err)
	}
	e.AddValue(core.Value{Attribute: "weight", Data: "99"})

	got, _ := s.Find(ctx, core.Filter{Attribute: "sku", Operator: core.OpEquals, Value: "AB-1"}, "en_US", "ecommerce")
	if len(got) != 1 {
		t.Fatalf("Find = %d", len(got))
	}
	if w, _ := got[0].Value(core.ValueKey{Attribute: "weight"}); w != "1" {
		t.Errorf("weight = %q, caller mutation leaked into store", w)
	}
	if got[0].IsNew() {
		t.Error("found entity should not be new")
	}
	got[0].AddValue(core.Value{Attribute: "weight", Data: "42"})
	again, _ := s.Find(ctx, core.Filter{Attribute: "sku", Operator: core.OpEquals, Value: "AB-1"}, "en_US", "ecommerce")
	if w, _ := again[0].Value(core.ValueKey{Attribute: "weight"}); w != "1" {
		t.Errorf("weight = %q, result mutation leaked into store", w)
	}
}

func TestMemory_FindFilters(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("sku")
	s := mustOpen(t, m)
	for _, e := range []*core.Entity{
		newProduct("AB-1", core.Value{Attribute: "name", Locale: "en_US", Data: "Red Shirt"}),
		newProduct("AB-2", core.Value{Attribute: "name", Locale: "fr_FR", Data: "Chemise Rouge"}),
		newProduct("CD-3", core.Value{Attribute: "price", Scope: "print", Data: "10"}),
	} {
		if err := s.Save(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name   string
		filter core.Filter
		locale string
		scope  string
		want   int
	}{
		{"equals", core.Filter{Attribute: "sku", Operator: core.OpEquals, Value: "AB-2"}, "en_US", "ecommerce", 1},
		{"equals is case sensitive", core.Filter{Attribute: "sku", Operator: core.OpEquals, Value: "ab-2"}, "en_US", "ecommerce", 0},
		{"starts", core.Filter{Attribute: "sku", Operator: core.OpStartsWith, Value: "ab"}, "en_US", "ecommerce", 2},
		{"contains", core.Filter{Attribute: "name", Operator: core.OpContains, Value: "shirt"}, "en_US", "ecommerce", 1},
		{"other locale hidden", core.Filter{Attribute: "name", Operator: core.OpContains, Value: "rouge"}, "en_US", "ecommerce", 0},
		{"matching locale", core.Filter{Attribute: "name", Operator: core.OpContains, Value: "rouge"}, "fr_FR", "ecommerce", 1},
		{"scope hidden", core.Filter{Attribute: "price", Operator: core.OpEquals, Value: "10"}, "en_US", "ecommerce", 0},
		{"matching scope", core.Filter{Attribute: "price", Operator: core.OpEquals, Value: "10"}, "en_US", "print", 1},
		{"in", core.Filter{Attribute: "sku", Operator: core.OpIn, Value: "AB-1, CD-3, ZZ"}, "en_US", "ecommerce", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Find(ctx, tt.filter, tt.locale, tt.scope)
			if err != nil {
				t.Fatalf("Find: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("Find = %d entities, want %d", len(got), tt.want)
			}
		})
	}

	if _, err := s.Find(ctx, core.Filter{Attribute: "sku", Operator: "like", Value: "x"}, "en_US", "ecommerce"); err == nil {
		t.Error("unknown operator should fail")
	}
}

func TestMemory_PipelineRun(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("sku")

	seed := mustOpen(t, m)
	if err := seed.Save(ctx, newProduct("AB-1", core.Value{Attribute: "weight", Data: "1"})); err != nil {
		t.Fatal(err)
	}
	if err := seed.Flush(ctx); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "products.csv")
	content := "sku;name-en_US;price-ecommerce;weight\n" +
		"AB-1;Shirt;$1,299.50;2\n" +
		"AB-2;Hat;10;\n" +
		";Nameless;1;1\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	session := mustOpen(t, m)
	defer session.Close(ctx)

	cfg := core.DefaultConfig(path)
	p, err := core.New(cfg, core.SessionDependencies(session, core.NewAttributeUpdater(core.DefaultCatalog(), cfg.Strict)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := p.Import(ctx)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}

	if got := out.Count(core.CounterImported); got != 2 {
		t.Errorf("imported = %d, want 2", got)
	}
	if got := out.Count(core.CounterCreated); got != 1 {
		t.Errorf("created = %d, want 1", got)
	}
	if got := out.Count(core.CounterWarned); got != 1 {
		t.Errorf("warned = %d, want 1", got)
	}
	if m.Len() != 2 {
		t.Fatalf("Len = %d, want 2", m.Len())
	}

	e, ok := m.Lookup("AB-1")
	if !ok {
		t.Fatal("AB-1 missing")
	}
	if got, _ := e.Value(core.ValueKey{Attribute: "price", Scope: "ecommerce"}); got != "1299.50" {
		t.Errorf("price = %q, want 1299.50", got)
	}
	if got, _ := e.Value(core.ValueKey{Attribute: "weight"}); got != "2" {
		t.Errorf("weight = %q, want 2", got)
	}
	if got, _ := e.Value(core.ValueKey{Attribute: "name", Locale: "en_US"}); got != "Shirt" {
		t.Errorf("name = %q, want Shirt", got)
	}
}
