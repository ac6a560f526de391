package core

import (
	"context"
	"errors"
	"sync"
)

// fakeStore is an in-memory Session used by the engine tests. Saved entities
// become visible to Find immediately.
type fakeStore struct {
	mu       sync.Mutex
	byID     map[string]*Entity
	finds    int
	saves    int
	flushes  int
	closed   bool
	findErr  error
	saveErr  func(*Entity) error
	flushErr error
	onFind   func(ctx context.Context)
}

func newFakeStore() *fakeStore {
	return &fakeStore{byID: make(map[string]*Entity)}
}

func (s *fakeStore) seed(id string, values ...Value) *Entity {
	e := NewEntity()
	e.AddValue(Value{Attribute: "sku", Data: id})
	for _, v := range values {
		e.AddValue(v)
	}
	e.MarkPersisted()
	s.byID[id] = e
	return e.Clone()
}

func (s *fakeStore) get(id string) *Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.byID[id]; ok {
		return e.Clone()
	}
	return nil
}

func (s *fakeStore) Find(ctx context.Context, f Filter, locale, scope string) ([]*Entity, error) {
	if s.onFind != nil {
		s.onFind(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finds++
	if s.findErr != nil {
		return nil, s.findErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e, ok := s.byID[f.Value]; ok && f.Operator == OpEquals {
		return []*Entity{e.Clone()}, nil
	}
	return nil, nil
}

func (s *fakeStore) NewEntity() *Entity { return NewEntity() }

func (s *fakeStore) NewIdentifierValue(data string) Value {
	return Value{Attribute: "sku", Data: data}
}

func (s *fakeStore) IdentifierAttribute() string { return "sku" }

func (s *fakeStore) Save(ctx context.Context, e *Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		if err := s.saveErr(e); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	id, ok := e.Value(ValueKey{Attribute: "sku"})
	if !ok {
		return errors.New("entity has no identifier")
	}
	c := e.Clone()
	c.MarkPersisted()
	s.byID[id] = c
	s.saves++
	return nil
}

func (s *fakeStore) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushes++
	if s.flushErr != nil {
		return s.flushErr
	}
	return ctx.Err()
}

func (s *fakeStore) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeStore) counts() (finds, saves, flushes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finds, s.saves, s.flushes
}

type fakeOpener struct {
	store   *fakeStore
	openErr error
}

func (o *fakeOpener) Open(ctx context.Context) (Session, error) {
	if o.openErr != nil {
		return nil, o.openErr
	}
	return o.store, nil
}

// recordingUpdater records SetValue calls and writes the raw value.
type recordingUpdater struct {
	calls []Value
	errAt map[string]error
}

func (u *recordingUpdater) SetValue(ctx context.Context, entities []*Entity, attribute, raw, locale, scope string) error {
	if err, ok := u.errAt[attribute]; ok {
		return err
	}
	v := Value{Attribute: attribute, Locale: locale, Scope: scope, Data: raw}
	u.calls = append(u.calls, v)
	for _, e := range entities {
		e.AddValue(v)
	}
	return nil
}

func testCatalog() *Catalog {
	c := NewCatalog()
	for _, def := range []AttributeDefinition{
		{Code: "sku", Type: FieldIdentifier},
		{Code: "name", Type: FieldText, Localizable: true},
		{Code: "description", Type: FieldText, Localizable: true, Scopable: true},
		{Code: "price", Type: FieldNumeric, Scopable: true},
		{Code: "weight", Type: FieldNumeric},
		{Code: "color", Type: FieldEnum, EnumValues: []string{"red", "blue"}},
	} {
		if err := c.Register(def); err != nil {
			panic(err)
		}
	}
	c.AllowLocales("en_US", "fr_FR")
	c.AllowScopes("ecommerce", "print")
	return c
}
