package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/catalogimport/internal/core"
)

// schema stores entities as a row per entity plus a row per value slot.
// An empty locale or scope is the slot that does not vary along it.
const schema = `
CREATE TABLE IF NOT EXISTS entities (
	id         uuid PRIMARY KEY,
	created_at timestamptz NOT NULL DEFAULT now(),
	updated_at timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS entity_values (
	entity_id uuid NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
	attribute text NOT NULL,
	locale    text NOT NULL DEFAULT '',
	scope     text NOT NULL DEFAULT '',
	value     text NOT NULL,
	PRIMARY KEY (entity_id, attribute, locale, scope)
);

CREATE INDEX IF NOT EXISTS entity_values_lookup ON entity_values (attribute, value);
`

// Postgres stores entities in PostgreSQL. Each session is one transaction.
// Every Find and Save runs inside its own savepoint so a failed entity
// leaves the rest of the run intact.
//
// Statements never run under a cancellable context: pgx closes the
// connection when a context ends mid-query, which would take the
// transaction with it. A context deadline becomes a server-side
// statement_timeout instead, so a timed-out statement only aborts its
// savepoint.
type Postgres struct {
	pool       *pgxpool.Pool
	identifier string
}

// NewPostgres wraps an open pool.
func NewPostgres(pool *pgxpool.Pool, identifier string) *Postgres {
	return &Postgres{pool: pool, identifier: identifier}
}

// EnsureSchema creates the tables if they do not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Open begins a transaction for one run.
func (p *Postgres) Open(ctx context.Context) (core.Session, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &pgSession{tx: tx, identifier: p.identifier}, nil
}

type pgSession struct {
	identifier string

	mu        sync.Mutex
	tx        pgx.Tx
	savepoint int
	done      bool
}

func toPgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

// escapeLike escapes LIKE wildcards so the filter value matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// buildFilter returns the SQL condition on column for f, with placeholders
// numbered from argIdx.
func buildFilter(column string, f core.Filter, argIdx int) (string, []any, error) {
	col := pgx.Identifier{column}.Sanitize()

	switch f.Operator {
	case core.OpEquals:
		return fmt.Sprintf("%s = $%d", col, argIdx), []any{f.Value}, nil
	case core.OpContains:
		return fmt.Sprintf("%s ILIKE $%d", col, argIdx), []any{"%" + escapeLike(f.Value) + "%"}, nil
	case core.OpStartsWith:
		return fmt.Sprintf("%s ILIKE $%d", col, argIdx), []any{escapeLike(f.Value) + "%"}, nil
	case core.OpIn:
		values := strings.Split(f.Value, ",")
		placeholders := make([]string, len(values))
		args := make([]any, len(values))
		for i, v := range values {
			placeholders[i] = fmt.Sprintf("$%d", argIdx+i)
			args[i] = strings.TrimSpace(v)
		}
		return fmt.Sprintf("%s IN (%s)", col, strings.Join(placeholders, ", ")), args, nil
	default:
		return "", nil, fmt.Errorf("unsupported filter operator %q", f.Operator)
	}
}

// findQuery selects every value of the entities that have a matching value
// for the filtered attribute in the requested locale/scope context.
func findQuery(f core.Filter, locale, scope string) (string, []any, error) {
	cond, condArgs, err := buildFilter("value", f, 4)
	if err != nil {
		return "", nil, err
	}
	query := `
SELECT e.id, v.attribute, v.locale, v.scope, v.value
FROM entities e
JOIN entity_values v ON v.entity_id = e.id
WHERE e.id IN (
	SELECT entity_id FROM entity_values
	WHERE attribute = $1
	  AND locale IN ('', $2)
	  AND scope IN ('', $3)
	  AND ` + cond + `
)
ORDER BY e.created_at, e.id`
	args := append([]any{f.Attribute, locale, scope}, condArgs...)
	return query, args, nil
}

func (s *pgSession) Find(ctx context.Context, f core.Filter, locale, scope string) ([]*core.Entity, error) {
	query, args, err := findQuery(f, locale, scope)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		return nil, core.Fatal("find", errors.New("session is closed"))
	}

	var out []*core.Entity
	err = s.within(ctx, func(qctx context.Context) error {
		found, err := s.find(qctx, query, args)
		out = found
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *pgSession) find(ctx context.Context, query string, args []any) ([]*core.Entity, error) {
	rows, err := s.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find entities: %w", err)
	}
	defer rows.Close()

	var (
		order  []uuid.UUID
		values = make(map[uuid.UUID][]core.Value)
	)
	for rows.Next() {
		var (
			id pgtype.UUID
			v  core.Value
		)
		if err := rows.Scan(&id, &v.Attribute, &v.Locale, &v.Scope, &v.Data); err != nil {
			return nil, fmt.Errorf("scan entity value: %w", err)
		}
		key := uuid.UUID(id.Bytes)
		if _, seen := values[key]; !seen {
			order = append(order, key)
		}
		values[key] = append(values[key], v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find entities: %w", err)
	}

	out := make([]*core.Entity, 0, len(order))
	for _, id := range order {
		out = append(out, core.LoadEntity(id, values[id]))
	}
	return out, nil
}

func (s *pgSession) NewEntity() *core.Entity { return core.NewEntity() }

func (s *pgSession) NewIdentifierValue(data string) core.Value {
	return core.Value{Attribute: s.identifier, Data: data}
}

func (s *pgSession) IdentifierAttribute() string { return s.identifier }

// Save writes one entity inside a savepoint.
func (s *pgSession) Save(ctx context.Context, e *core.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		return core.Fatal("save", errors.New("session is closed"))
	}

	if err := s.within(ctx, func(qctx context.Context) error {
		return s.write(qctx, e)
	}); err != nil {
		return err
	}
	e.MarkPersisted()
	return nil
}

// within runs fn inside a fresh savepoint, bounded by ctx's deadline through
// statement_timeout. An error from fn rolls back just the savepoint and is
// returned as is; a failed savepoint command leaves the transaction unusable
// and is fatal. fn is not started when ctx is already done.
func (s *pgSession) within(ctx context.Context, fn func(qctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	qctx := context.WithoutCancel(ctx)

	s.savepoint++
	sp := fmt.Sprintf("sp_%d", s.savepoint)
	if _, err := s.tx.Exec(qctx, "SAVEPOINT "+sp); err != nil {
		return core.Fatal("savepoint", err)
	}

	err := s.setStatementTimeout(qctx, ctx)
	if err == nil {
		err = fn(qctx)
	}
	if err != nil {
		if _, rbErr := s.tx.Exec(qctx, "ROLLBACK TO SAVEPOINT "+sp); rbErr != nil {
			return core.Fatal("rollback savepoint", errors.Join(err, rbErr))
		}
		return asDeadline(err)
	}

	if _, err := s.tx.Exec(qctx, "RELEASE SAVEPOINT "+sp); err != nil {
		return core.Fatal("release savepoint", err)
	}
	return nil
}

// setStatementTimeout limits the statements that follow in the current
// savepoint to the time left before ctx's deadline. No deadline means no
// limit.
func (s *pgSession) setStatementTimeout(qctx, ctx context.Context) error {
	var ms int64
	if deadline, ok := ctx.Deadline(); ok {
		ms = time.Until(deadline).Milliseconds()
		if ms <= 0 {
			return context.DeadlineExceeded
		}
	}
	_, err := s.tx.Exec(qctx, "SELECT set_config('statement_timeout', $1, true)", strconv.FormatInt(ms, 10))
	if err != nil {
		return fmt.Errorf("set statement timeout: %w", err)
	}
	return nil
}

// asDeadline marks a server-side statement timeout as a deadline error so
// callers see the same error they would get from a context deadline.
func asDeadline(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "57014" && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
	}
	return err
}

func (s *pgSession) write(ctx context.Context, e *core.Entity) error {
	id := toPgUUID(e.ID)
	if _, err := s.tx.Exec(ctx, `
INSERT INTO entities (id) VALUES ($1)
ON CONFLICT (id) DO UPDATE SET updated_at = now()`, id); err != nil {
		return fmt.Errorf("upsert entity: %w", err)
	}

	batch := &pgx.Batch{}
	for _, v := range e.Values() {
		batch.Queue(`
INSERT INTO entity_values (entity_id, attribute, locale, scope, value)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (entity_id, attribute, locale, scope) DO UPDATE SET value = EXCLUDED.value`,
			id, v.Attribute, v.Locale, v.Scope, v.Data)
	}
	if err := s.tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert values: %w", err)
	}
	return nil
}

func (s *pgSession) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		return errors.New("session already flushed or closed")
	}
	if _, err := s.tx.Exec(ctx, "SELECT set_config('statement_timeout', '0', true)"); err != nil {
		return fmt.Errorf("reset statement timeout: %w", err)
	}
	if err := s.tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.done = true
	return nil
}

func (s *pgSession) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		return nil
	}
	s.done = true
	if err := s.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}
