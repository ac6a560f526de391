package core

import (
	"context"
	"errors"
	"testing"
)

func TestAttributeUpdater_Strict(t *testing.T) {
	u := NewAttributeUpdater(testCatalog(), true)

	tests := []struct {
		name        string
		attribute   string
		raw         string
		locale      string
		scope       string
		want        string
		wantUnknown bool
		wantInvalid bool
	}{
		{name: "localized text", attribute: "name", raw: "Shirt", locale: "en_US", want: "Shirt"},
		{name: "scoped numeric normalized", attribute: "price", raw: "$1,000", scope: "ecommerce", want: "1000"},
		{name: "locale and scope", attribute: "description", raw: "Soft", locale: "fr_FR", scope: "print", want: "Soft"},
		{name: "plain numeric", attribute: "weight", raw: "1.5", want: "1.5"},
		{name: "enum canonical", attribute: "color", raw: "Blue", want: "blue"},
		{name: "unknown attribute", attribute: "nope", raw: "x", wantUnknown: true},
		{name: "localizable without locale", attribute: "name", raw: "x", wantInvalid: true},
		{name: "not localizable with locale", attribute: "weight", raw: "1", locale: "en_US", wantInvalid: true},
		{name: "scopable without scope", attribute: "price", raw: "1", wantInvalid: true},
		{name: "not scopable with scope", attribute: "weight", raw: "1", scope: "print", wantInvalid: true},
		{name: "inactive locale", attribute: "name", raw: "x", locale: "de_DE", wantInvalid: true},
		{name: "unknown scope", attribute: "price", raw: "1", scope: "mobile", wantInvalid: true},
		{name: "bad number", attribute: "weight", raw: "heavy", wantInvalid: true},
		{name: "bad enum", attribute: "color", raw: "green", wantInvalid: true},
		{name: "identifier rejected", attribute: "sku", raw: "X", wantInvalid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEntity()
			err := u.SetValue(context.Background(), []*Entity{e}, tt.attribute, tt.raw, tt.locale, tt.scope)

			var uae *UnknownAttributeError
			var ive *InvalidValueError
			switch {
			case tt.wantUnknown:
				if !errors.As(err, &uae) {
					t.Fatalf("error = %v, want *UnknownAttributeError", err)
				}
			case tt.wantInvalid:
				if !errors.As(err, &ive) {
					t.Fatalf("error = %v, want *InvalidValueError", err)
				}
				if len(e.Values()) != 0 {
					t.Errorf("rejected value was written: %v", e.Values())
				}
			default:
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				got, ok := e.Value(ValueKey{Attribute: tt.attribute, Locale: tt.locale, Scope: tt.scope})
				if !ok || got != tt.want {
					t.Errorf("value = %q, %v, want %q", got, ok, tt.want)
				}
			}
		})
	}
}

func TestAttributeUpdater_Flat(t *testing.T) {
	u := NewAttributeUpdater(testCatalog(), false)
	e := NewEntity()

	if err := u.SetValue(context.Background(), []*Entity{e}, "free_field", "anything", "", ""); err != nil {
		t.Fatalf("unknown attribute rejected in flat mode: %v", err)
	}
	if v, _ := e.Value(ValueKey{Attribute: "free_field"}); v != "anything" {
		t.Errorf("free_field = %q", v)
	}

	// applicability is not checked, formats still are
	if err := u.SetValue(context.Background(), []*Entity{e}, "price", "12", "", ""); err != nil {
		t.Errorf("unscoped price rejected in flat mode: %v", err)
	}
	var ive *InvalidValueError
	if err := u.SetValue(context.Background(), []*Entity{e}, "price", "cheap", "", ""); !errors.As(err, &ive) {
		t.Errorf("error = %v, want *InvalidValueError", err)
	}
}

func TestAttributeUpdater_CancelledContext(t *testing.T) {
	u := NewAttributeUpdater(testCatalog(), true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := u.SetValue(ctx, []*Entity{NewEntity()}, "weight", "1", "", "")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestAttributeUpdater_AllEntities(t *testing.T) {
	u := NewAttributeUpdater(testCatalog(), true)
	a, b := NewEntity(), NewEntity()
	if err := u.SetValue(context.Background(), []*Entity{a, b}, "weight", "2", "", ""); err != nil {
		t.Fatal(err)
	}
	for _, e := range []*Entity{a, b} {
		if v, _ := e.Value(ValueKey{Attribute: "weight"}); v != "2" {
			t.Errorf("weight = %q, want 2", v)
		}
	}
}
