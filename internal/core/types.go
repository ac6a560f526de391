package core

import (
	"context"
	"sort"

	"github.com/google/uuid"
)

// ValueKey addresses one attribute value slot on an entity.
// Empty Locale or Scope means the value does not vary along that dimension.
type ValueKey struct {
	Attribute string
	Locale    string
	Scope     string
}

// Value is a single attribute value as carried between the factory, the
// updater and the store.
type Value struct {
	Attribute string
	Locale    string
	Scope     string
	Data      string
}

// Key returns the slot this value occupies.
func (v Value) Key() ValueKey {
	return ValueKey{Attribute: v.Attribute, Locale: v.Locale, Scope: v.Scope}
}

// Entity is the import target (a catalog product).
// Entities handed out by a store are copies; changes only reach the store
// through Saver.Save.
type Entity struct {
	ID     uuid.UUID
	values map[ValueKey]string
	new    bool
}

// NewEntity returns a transient entity with a fresh ID.
func NewEntity() *Entity {
	return &Entity{
		ID:     uuid.New(),
		values: make(map[ValueKey]string),
		new:    true,
	}
}

// LoadEntity rebuilds a persisted entity from stored values.
func LoadEntity(id uuid.UUID, values []Value) *Entity {
	e := &Entity{ID: id, values: make(map[ValueKey]string, len(values))}
	for _, v := range values {
		e.values[v.Key()] = v.Data
	}
	return e
}

// IsNew reports whether the entity was constructed during this run and has
// not been loaded from the store.
func (e *Entity) IsNew() bool { return e.new }

// AddValue sets the slot addressed by v.
func (e *Entity) AddValue(v Value) {
	if e.values == nil {
		e.values = make(map[ValueKey]string)
	}
	e.values[v.Key()] = v.Data
}

// Value returns the data stored at key.
func (e *Entity) Value(key ValueKey) (string, bool) {
	data, ok := e.values[key]
	return data, ok
}

// Values returns all values sorted by attribute, locale, scope.
func (e *Entity) Values() []Value {
	out := make([]Value, 0, len(e.values))
	for k, data := range e.values {
		out = append(out, Value{Attribute: k.Attribute, Locale: k.Locale, Scope: k.Scope, Data: data})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Attribute != out[j].Attribute {
			return out[i].Attribute < out[j].Attribute
		}
		if out[i].Locale != out[j].Locale {
			return out[i].Locale < out[j].Locale
		}
		return out[i].Scope < out[j].Scope
	})
	return out
}

// Clone returns a deep copy.
func (e *Entity) Clone() *Entity {
	c := &Entity{ID: e.ID, values: make(map[ValueKey]string, len(e.values)), new: e.new}
	for k, v := range e.values {
		c.values[k] = v
	}
	return c
}

// MarkPersisted clears the transient flag once a store has accepted the entity.
func (e *Entity) MarkPersisted() { e.new = false }

// FilterOperator represents a comparison operator for entity queries.
type FilterOperator string

const (
	OpEquals     FilterOperator = "="
	OpContains   FilterOperator = "contains"
	OpStartsWith FilterOperator = "starts"
	OpIn         FilterOperator = "in"
)

// Filter is a single condition on an attribute value.
type Filter struct {
	Attribute string
	Operator  FilterOperator
	Value     string // comma-separated for OpIn
}

// EntityQuery finds entities matching a filter in a locale/scope context.
type EntityQuery interface {
	Find(ctx context.Context, filter Filter, locale, scope string) ([]*Entity, error)
}

// EntityUpdater applies one raw attribute value onto entities.
// Empty locale or scope means "not localized" / "not scoped".
type EntityUpdater interface {
	SetValue(ctx context.Context, entities []*Entity, attribute, raw, locale, scope string) error
}

// EntityFactory constructs transient entities and identifier values.
type EntityFactory interface {
	NewEntity() *Entity
	NewIdentifierValue(data string) Value
	IdentifierAttribute() string
}

// Saver persists entities. Flush is called once at the end of a run.
type Saver interface {
	Save(ctx context.Context, e *Entity) error
	Flush(ctx context.Context) error
}

// ExecutionContext is the sink for run counters and warnings.
type ExecutionContext interface {
	IncrementCounter(name string)
	AddWarning(element, message string, params map[string]any, item map[string]string)
}

// Session is one unit of work against a store: everything a pipeline run
// reads and writes goes through the same session.
type Session interface {
	EntityQuery
	EntityFactory
	Saver
	Close(ctx context.Context) error
}

// SessionOpener opens store sessions, one per run.
type SessionOpener interface {
	Open(ctx context.Context) (Session, error)
}
