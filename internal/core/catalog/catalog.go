// Package catalog registers the built-in product attributes with the core
// default catalog. Import it for its side effect.
package catalog

import "github.com/JonMunkholm/catalogimport/internal/core"

// Identifier is the code of the product identifier attribute.
const Identifier = "sku"

func init() {
	core.DefaultCatalog().AllowLocales("en_US", "fr_FR", "de_DE")
	core.DefaultCatalog().AllowScopes("ecommerce", "mobile", "print")

	for _, def := range []core.AttributeDefinition{
		{Code: Identifier, Type: core.FieldIdentifier},
		{Code: "name", Type: core.FieldText, Localizable: true},
		{Code: "description", Type: core.FieldText, Localizable: true, Scopable: true},
		{Code: "price", Type: core.FieldNumeric, Scopable: true},
		{Code: "weight", Type: core.FieldNumeric},
		{Code: "release_date", Type: core.FieldDate},
		{Code: "enabled", Type: core.FieldBool},
		{Code: "color", Type: core.FieldEnum, EnumValues: []string{"black", "white", "red", "green", "blue"}},
	} {
		core.Register(def)
	}
}
