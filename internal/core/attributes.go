package core

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// FieldType is the expected data type of an attribute value.
type FieldType int

const (
	FieldText FieldType = iota
	FieldIdentifier
	FieldEnum
	FieldDate
	FieldNumeric
	FieldBool
)

var fieldTypeNames = map[FieldType]string{
	FieldText:       "text",
	FieldIdentifier: "identifier",
	FieldEnum:       "enum",
	FieldDate:       "date",
	FieldNumeric:    "numeric",
	FieldBool:       "bool",
}

func (t FieldType) String() string {
	if name, ok := fieldTypeNames[t]; ok {
		return name
	}
	return "value"
}

// ParseFieldType converts a catalog type name to a FieldType.
func ParseFieldType(name string) (FieldType, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return FieldText, nil
	}
	for t, n := range fieldTypeNames {
		if n == name {
			return t, nil
		}
	}
	return FieldText, fmt.Errorf("unknown attribute type %q", name)
}

// AttributeDefinition describes one catalog attribute.
type AttributeDefinition struct {
	Code        string
	Type        FieldType
	Localizable bool     // value varies per locale
	Scopable    bool     // value varies per scope (channel)
	EnumValues  []string // valid values for FieldEnum
}

// Catalog holds the attribute definitions values are validated against.
type Catalog struct {
	mu      sync.RWMutex
	attrs   map[string]AttributeDefinition
	locales map[string]bool
	scopes  map[string]bool
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		attrs:   make(map[string]AttributeDefinition),
		locales: make(map[string]bool),
		scopes:  make(map[string]bool),
	}
}

// Register adds a definition. Codes are unique.
func (c *Catalog) Register(def AttributeDefinition) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if def.Code == "" {
		return fmt.Errorf("attribute code is required")
	}
	if _, exists := c.attrs[def.Code]; exists {
		return fmt.Errorf("attribute already registered: %s", def.Code)
	}
	if def.Type == FieldEnum && len(def.EnumValues) == 0 {
		return fmt.Errorf("enum attribute %s has no values", def.Code)
	}
	c.attrs[def.Code] = def
	return nil
}

// AllowLocales restricts localized values to the given locales.
// An empty catalog locale list accepts any locale.
func (c *Catalog) AllowLocales(locales ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, l := range locales {
		c.locales[l] = true
	}
}

// AllowScopes restricts scoped values to the given scopes.
func (c *Catalog) AllowScopes(scopes ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range scopes {
		c.scopes[s] = true
	}
}

// Get returns a definition by code.
func (c *Catalog) Get(code string) (AttributeDefinition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	def, ok := c.attrs[code]
	return def, ok
}

// All returns every definition sorted by code.
func (c *Catalog) All() []AttributeDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]AttributeDefinition, 0, len(c.attrs))
	for _, def := range c.attrs {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Len returns the number of registered attributes.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.attrs)
}

// Identifier returns the code of the identifier attribute, if one is defined.
func (c *Catalog) Identifier() (string, bool) {
	for _, def := range c.All() {
		if def.Type == FieldIdentifier {
			return def.Code, true
		}
	}
	return "", false
}

func (c *Catalog) localeAllowed(locale string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.locales) == 0 || c.locales[locale]
}

func (c *Catalog) scopeAllowed(scope string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.scopes) == 0 || c.scopes[scope]
}

var defaultCatalog = NewCatalog()

// Register adds a definition to the default catalog.
// Panics if the definition is invalid or already registered.
func Register(def AttributeDefinition) {
	if err := defaultCatalog.Register(def); err != nil {
		panic(err)
	}
}

// DefaultCatalog returns the catalog populated by Register.
func DefaultCatalog() *Catalog {
	return defaultCatalog
}

// catalogFile is the on-disk YAML layout of a catalog.
type catalogFile struct {
	Locales    []string `yaml:"locales"`
	Scopes     []string `yaml:"scopes"`
	Attributes []struct {
		Code        string   `yaml:"code"`
		Type        string   `yaml:"type"`
		Localizable bool     `yaml:"localizable"`
		Scopable    bool     `yaml:"scopable"`
		Values      []string `yaml:"values"`
	} `yaml:"attributes"`
}

// LoadCatalog reads a YAML catalog file:
//
//	locales: [en_US, fr_FR]
//	scopes: [ecommerce, print]
//	attributes:
//	  - {code: sku, type: identifier}
//	  - {code: name, type: text, localizable: true}
//	  - {code: color, type: enum, values: [red, blue]}
func LoadCatalog(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(b)
}

// ParseCatalog decodes a YAML catalog document.
func ParseCatalog(b []byte) (*Catalog, error) {
	var raw catalogFile
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	c := NewCatalog()
	c.AllowLocales(raw.Locales...)
	c.AllowScopes(raw.Scopes...)
	for _, a := range raw.Attributes {
		t, err := ParseFieldType(a.Type)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", a.Code, err)
		}
		if err := c.Register(AttributeDefinition{
			Code:        strings.TrimSpace(a.Code),
			Type:        t,
			Localizable: a.Localizable,
			Scopable:    a.Scopable,
			EnumValues:  a.Values,
		}); err != nil {
			return nil, err
		}
	}
	return c, nil
}
