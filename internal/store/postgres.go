package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kamperhub/kamperhub-server/internal/domain"
)

// db is the minimal interface satisfied by *pgxpool.Pool. Accepting this
// interface rather than the pool directly keeps integration tests free to
// substitute their own connection handling.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Postgres stores documents in a single JSONB table with a version column.
// Transactions take row locks in sorted path order at commit, validate the
// versions recorded by reads, and apply all staged writes before releasing.
type Postgres struct {
	db db
}

// compile-time check: Postgres must satisfy Store.
var _ Store = (*Postgres)(nil)

// NewPostgres constructs a Postgres-backed Store. In production pass
// *pgxpool.Pool.
func NewPostgres(db db) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Get(ctx context.Context, path string, dest any) error {
	raw, _, err := p.fetch(ctx, p.db, path, false)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("store: decode %s: %w", path, err)
	}
	return nil
}

func (p *Postgres) GetAll(ctx context.Context, paths []string, decode func(path string, raw json.RawMessage) error) error {
	for _, path := range paths {
		raw, _, err := p.fetch(ctx, p.db, path, false)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if err := decode(path, raw); err != nil {
			return err
		}
	}
	return nil
}

func (p *Postgres) List(ctx context.Context, tenant, collection string, decode func(id string, raw json.RawMessage) error) error {
	const q = `
		SELECT id, body
		FROM documents
		WHERE tenant = @tenant AND collection = @collection
		ORDER BY id`

	rows, err := p.db.Query(ctx, q, pgx.NamedArgs{"tenant": tenant, "collection": collection})
	if err != nil {
		return fmt.Errorf("store: list %s/%s: %w", tenant, collection, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var raw json.RawMessage
		if err := rows.Scan(&id, &raw); err != nil {
			return fmt.Errorf("store: list %s/%s: scan: %w", tenant, collection, err)
		}
		if err := decode(id, raw); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (p *Postgres) Set(ctx context.Context, path string, doc any) error {
	raw, err := marshalDoc(doc)
	if err != nil {
		return fmt.Errorf("store: set %s: %w", path, err)
	}
	return p.upsert(ctx, p.db, path, raw)
}

func (p *Postgres) Update(ctx context.Context, path string, fields map[string]any) error {
	tenant, collection, id, err := splitPath(path)
	if err != nil {
		return err
	}
	merge, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("store: update %s: %w", path, err)
	}

	const q = `
		UPDATE documents
		SET body = body || @merge::jsonb, version = version + 1, updated_at = now()
		WHERE tenant = @tenant AND collection = @collection AND id = @id`

	tag, err := p.db.Exec(ctx, q, pgx.NamedArgs{
		"tenant": tenant, "collection": collection, "id": id, "merge": string(merge),
	})
	if err != nil {
		return fmt.Errorf("store: update %s: %w", path, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("store: update %s: %w", path, domain.ErrNotFound)
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, path string) error {
	tenant, collection, id, err := splitPath(path)
	if err != nil {
		return err
	}

	const q = `DELETE FROM documents WHERE tenant = @tenant AND collection = @collection AND id = @id`

	tag, err := p.db.Exec(ctx, q, pgx.NamedArgs{"tenant": tenant, "collection": collection, "id": id})
	if err != nil {
		return fmt.Errorf("store: delete %s: %w", path, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("store: delete %s: %w", path, domain.ErrNotFound)
	}
	return nil
}

func (p *Postgres) RunTransaction(ctx context.Context, fn func(tx Tx) error) error {
	pgtx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer pgtx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	tx := &postgresTx{store: p, ctx: ctx, pgtx: pgtx, reads: make(map[string]uint64)}
	if err := fn(tx); err != nil {
		return err
	}
	if err := p.commit(ctx, pgtx, tx); err != nil {
		return translateConflict(err)
	}
	if err := pgtx.Commit(ctx); err != nil {
		return translateConflict(fmt.Errorf("store: commit: %w", err))
	}
	return nil
}

// commit locks every touched row in sorted path order, validates the
// versions recorded by reads, applies the staged writes, and leaves the
// pgx transaction open for the caller to commit.
func (p *Postgres) commit(ctx context.Context, pgtx pgx.Tx, tx *postgresTx) error {
	touched := make(map[string]struct{}, len(tx.reads)+len(tx.writes))
	for path := range tx.reads {
		touched[path] = struct{}{}
	}
	for _, op := range tx.writes {
		touched[op.path] = struct{}{}
	}

	// Sorted lock order keeps concurrent transactions from deadlocking.
	paths := make([]string, 0, len(touched))
	for path := range touched {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	type state struct {
		body   json.RawMessage
		exists bool
	}
	current := make(map[string]state, len(paths))

	for _, path := range paths {
		raw, version, err := p.fetch(ctx, pgtx, path, true)
		exists := true
		if errors.Is(err, domain.ErrNotFound) {
			exists, err = false, nil
		}
		if err != nil {
			return err
		}
		if recorded, ok := tx.reads[path]; ok && recorded != version {
			return fmt.Errorf("store: commit: document %s changed: %w", path, domain.ErrConflict)
		}
		current[path] = state{body: raw, exists: exists}
	}

	dirty := make(map[string]bool)
	for _, op := range tx.writes {
		st := current[op.path]
		next, nextExists, err := applyWrite(st.body, st.exists, op)
		if err != nil {
			return err
		}
		current[op.path] = state{body: next, exists: nextExists}
		dirty[op.path] = true
	}

	for _, path := range paths {
		if !dirty[path] {
			continue
		}
		st := current[path]
		if st.exists {
			if err := p.upsert(ctx, pgtx, path, st.body); err != nil {
				return err
			}
			continue
		}
		tenant, collection, id, err := splitPath(path)
		if err != nil {
			return err
		}
		const q = `DELETE FROM documents WHERE tenant = @tenant AND collection = @collection AND id = @id`
		if _, err := pgtx.Exec(ctx, q, pgx.NamedArgs{"tenant": tenant, "collection": collection, "id": id}); err != nil {
			return fmt.Errorf("store: delete %s: %w", path, err)
		}
	}
	return nil
}

// execer is satisfied by both the pool-level db and pgx.Tx.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// fetch reads one document's body and version, optionally taking a row lock.
func (p *Postgres) fetch(ctx context.Context, on execer, path string, forUpdate bool) (json.RawMessage, uint64, error) {
	tenant, collection, id, err := splitPath(path)
	if err != nil {
		return nil, 0, err
	}

	q := `SELECT body, version FROM documents WHERE tenant = @tenant AND collection = @collection AND id = @id`
	if forUpdate {
		q += ` FOR UPDATE`
	}

	var raw json.RawMessage
	var version uint64
	err = on.QueryRow(ctx, q, pgx.NamedArgs{"tenant": tenant, "collection": collection, "id": id}).Scan(&raw, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, 0, fmt.Errorf("store: get %s: %w", path, domain.ErrNotFound)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("store: get %s: %w", path, err)
	}
	return raw, version, nil
}

// upsert writes a full document body, bumping the version on replace.
func (p *Postgres) upsert(ctx context.Context, on execer, path string, raw json.RawMessage) error {
	tenant, collection, id, err := splitPath(path)
	if err != nil {
		return err
	}

	const q = `
		INSERT INTO documents (tenant, collection, id, body)
		VALUES (@tenant, @collection, @id, @body::jsonb)
		ON CONFLICT (tenant, collection, id)
		DO UPDATE SET body = EXCLUDED.body, version = documents.version + 1, updated_at = now()`

	if _, err := on.Exec(ctx, q, pgx.NamedArgs{
		"tenant": tenant, "collection": collection, "id": id, "body": string(raw),
	}); err != nil {
		return fmt.Errorf("store: set %s: %w", path, err)
	}
	return nil
}

// translateConflict maps Postgres serialization and deadlock failures onto
// domain.ErrConflict so the retry layer treats them like version conflicts.
func translateConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01") {
		return fmt.Errorf("%v: %w", err, domain.ErrConflict)
	}
	return err
}

// postgresTx records reads and stages writes for one transaction.
type postgresTx struct {
	store  *Postgres
	ctx    context.Context
	pgtx   pgx.Tx
	reads  map[string]uint64
	writes []writeOp
}

func (t *postgresTx) Get(path string, dest any) error {
	raw, version, err := t.store.fetch(t.ctx, t.pgtx, path, false)

	// Version 0 records "document absent", so a document created between
	// read and commit is detected as a conflict too.
	t.reads[path] = version

	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("store: decode %s: %w", path, err)
	}
	return nil
}

func (t *postgresTx) Set(path string, doc any) {
	raw, err := marshalDoc(doc)
	t.writes = append(t.writes, writeOp{kind: writeSet, path: path, doc: raw, encErr: err})
}

func (t *postgresTx) Update(path string, fields map[string]any) {
	t.writes = append(t.writes, writeOp{kind: writeUpdate, path: path, fields: fields})
}

func (t *postgresTx) Delete(path string) {
	t.writes = append(t.writes, writeOp{kind: writeDelete, path: path})
}

func (t *postgresTx) ArrayUnion(path, field, value string) {
	t.writes = append(t.writes, writeOp{kind: writeArrayUnion, path: path, field: field, value: value})
}

func (t *postgresTx) ArrayRemove(path, field, value string) {
	t.writes = append(t.writes, writeOp{kind: writeArrayRemove, path: path, field: field, value: value})
}
