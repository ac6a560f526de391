package store

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/JonMunkholm/catalogimport/internal/core"
)

// Memory is an in-process entity store. Entities are copied on every read
// and write.
type Memory struct {
	identifier string

	mu       sync.RWMutex
	entities map[uuid.UUID]*core.Entity
	order    []uuid.UUID
	flushes  int
}

// NewMemory returns an empty store whose identifier attribute is identifier.
func NewMemory(identifier string) *Memory {
	return &Memory{
		identifier: identifier,
		entities:   make(map[uuid.UUID]*core.Entity),
	}
}

// Open starts a session. Saves are staged until Flush.
func (m *Memory) Open(ctx context.Context) (core.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &memorySession{store: m, staged: make(map[uuid.UUID]*core.Entity)}, nil
}

// Flushes returns how many sessions have been flushed.
func (m *Memory) Flushes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.flushes
}

// Len returns the number of committed entities.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entities)
}

// Lookup returns a copy of the committed entity with the given identifier.
func (m *Memory) Lookup(identifier string) (*core.Entity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key := core.ValueKey{Attribute: m.identifier}
	for _, id := range m.order {
		e := m.entities[id]
		if v, ok := e.Value(key); ok && v == identifier {
			return e.Clone(), true
		}
	}
	return nil, false
}

type memorySession struct {
	store *Memory

	mu     sync.Mutex
	staged map[uuid.UUID]*core.Entity
	order  []uuid.UUID
	done   bool
}

func (s *memorySession) Find(ctx context.Context, f core.Filter, locale, scope string) ([]*core.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()

	var candidates []*core.Entity
	for _, id := range s.store.order {
		if e, ok := s.staged[id]; ok {
			candidates = append(candidates, e)
			continue
		}
		candidates = append(candidates, s.store.entities[id])
	}
	for _, id := range s.order {
		candidates = append(candidates, s.staged[id])
	}

	var out []*core.Entity
	for _, e := range candidates {
		ok, err := entityMatches(e, f, locale, scope)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, e.Clone())
		}
	}
	return out, nil
}

func entityMatches(e *core.Entity, f core.Filter, locale, scope string) (bool, error) {
	for _, v := range e.Values() {
		if v.Attribute != f.Attribute || !slotMatches(v.Locale, v.Scope, locale, scope) {
			continue
		}
		ok, err := matchValue(f.Operator, v.Data, f.Value)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

func (s *memorySession) NewEntity() *core.Entity { return core.NewEntity() }

func (s *memorySession) NewIdentifierValue(data string) core.Value {
	return core.Value{Attribute: s.store.identifier, Data: data}
}

func (s *memorySession) IdentifierAttribute() string { return s.store.identifier }

func (s *memorySession) Save(ctx context.Context, e *core.Entity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := e.Value(core.ValueKey{Attribute: s.store.identifier}); !ok {
		return errors.New("entity has no identifier value")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return core.Fatal("save", errors.New("session is closed"))
	}

	c := e.Clone()
	c.MarkPersisted()
	if _, staged := s.staged[c.ID]; !staged && !s.committed(c.ID) {
		s.order = append(s.order, c.ID)
	}
	s.staged[c.ID] = c
	e.MarkPersisted()
	return nil
}

func (s *memorySession) committed(id uuid.UUID) bool {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	_, ok := s.store.entities[id]
	return ok
}

func (s *memorySession) Flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return errors.New("session already flushed or closed")
	}
	s.done = true

	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	for id, e := range s.staged {
		if _, exists := s.store.entities[id]; !exists {
			s.store.order = append(s.store.order, id)
		}
		s.store.entities[id] = e
	}
	s.store.flushes++
	s.staged = nil
	return nil
}

func (s *memorySession) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done = true
	s.staged = nil
	return nil
}
