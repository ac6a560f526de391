package core

import (
	"errors"
	"testing"
)

func TestDecodeColumn(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  ColumnSpec
	}{
		{"code only", "price", ColumnSpec{Code: "price"}},
		{"code and locale", "name-en_US", ColumnSpec{Code: "name", Locale: "en_US"}},
		{"code and scope", "price-ecommerce", ColumnSpec{Code: "price", Scope: "ecommerce"}},
		{"code locale scope", "description-en_US-ecommerce", ColumnSpec{Code: "description", Locale: "en_US", Scope: "ecommerce"}},
		{"surrounding whitespace", "  sku ", ColumnSpec{Code: "sku"}},
		{"underscore in code only", "release_date", ColumnSpec{Code: "release_date"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeColumn(tt.token)
			if err != nil {
				t.Fatalf("DecodeColumn(%q) error: %v", tt.token, err)
			}
			if got != tt.want {
				t.Errorf("DecodeColumn(%q) = %+v, want %+v", tt.token, got, tt.want)
			}
		})
	}
}

func TestDecodeColumn_Malformed(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		segments int
	}{
		{"four segments", "a-b-c-d", 4},
		{"five segments", "a-b-c-d-e", 5},
		{"empty token", "", 1},
		{"trailing dash", "name-", 2},
		{"leading dash", "-en_US", 2},
		{"empty middle segment", "description--ecommerce", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeColumn(tt.token)
			var mce *MalformedColumnError
			if !errors.As(err, &mce) {
				t.Fatalf("DecodeColumn(%q) error = %v, want *MalformedColumnError", tt.token, err)
			}
			if mce.Segments != tt.segments {
				t.Errorf("Segments = %d, want %d", mce.Segments, tt.segments)
			}
		})
	}
}

func TestDecodeHeader(t *testing.T) {
	specs, err := DecodeHeader([]string{"sku", "name-fr_FR", "price-print"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(specs) != 3 {
		t.Fatalf("got %d specs, want 3", len(specs))
	}
	if specs[1].Locale != "fr_FR" || specs[2].Scope != "print" {
		t.Errorf("specs = %+v", specs)
	}

	if _, err := DecodeHeader([]string{"sku", "a-b-c-d"}); err == nil {
		t.Error("expected error for malformed column")
	}
}
