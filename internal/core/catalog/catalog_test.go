package catalog

import (
	"testing"

	"github.com/JonMunkholm/catalogimport/internal/core"
)

func TestBuiltInCatalog(t *testing.T) {
	c := core.DefaultCatalog()

	code, ok := c.Identifier()
	if !ok || code != Identifier {
		t.Fatalf("Identifier() = %q, %v, want %q", code, ok, Identifier)
	}

	tests := []struct {
		code        string
		typ         core.FieldType
		localizable bool
		scopable    bool
	}{
		{"name", core.FieldText, true, false},
		{"description", core.FieldText, true, true},
		{"price", core.FieldNumeric, false, true},
		{"release_date", core.FieldDate, false, false},
		{"enabled", core.FieldBool, false, false},
		{"color", core.FieldEnum, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			def, ok := c.Get(tt.code)
			if !ok {
				t.Fatalf("attribute %q not registered", tt.code)
			}
			if def.Type != tt.typ || def.Localizable != tt.localizable || def.Scopable != tt.scopable {
				t.Errorf("Get(%q) = %+v", tt.code, def)
			}
		})
	}
}
