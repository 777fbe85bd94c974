package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/kamperhub/kamperhub-server/internal/domain"
)

// Memory is an in-memory Store used by unit tests and ephemeral
// environments. It implements the same optimistic transaction semantics as
// the Postgres store: reads record document versions, and commit fails with
// domain.ErrConflict if any read document changed in the meantime.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]memDoc
}

type memDoc struct {
	body    json.RawMessage
	version uint64
}

// compile-time check: Memory must satisfy Store.
var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string]memDoc)}
}

func (m *Memory) Get(ctx context.Context, path string, dest any) error {
	m.mu.RLock()
	doc, ok := m.docs[path]
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("store: get %s: %w", path, domain.ErrNotFound)
	}
	if err := json.Unmarshal(doc.body, dest); err != nil {
		return fmt.Errorf("store: decode %s: %w", path, err)
	}
	return nil
}

func (m *Memory) GetAll(ctx context.Context, paths []string, decode func(path string, raw json.RawMessage) error) error {
	for _, path := range paths {
		m.mu.RLock()
		doc, ok := m.docs[path]
		m.mu.RUnlock()
		if !ok {
			continue
		}
		if err := decode(path, doc.body); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) List(ctx context.Context, tenant, collection string, decode func(id string, raw json.RawMessage) error) error {
	prefix := Path(tenant, collection, "")

	m.mu.RLock()
	var paths []string
	for path := range m.docs {
		if strings.HasPrefix(path, prefix) {
			paths = append(paths, path)
		}
	}
	m.mu.RUnlock()

	sort.Strings(paths)
	for _, path := range paths {
		m.mu.RLock()
		doc, ok := m.docs[path]
		m.mu.RUnlock()
		if !ok {
			continue
		}
		if err := decode(strings.TrimPrefix(path, prefix), doc.body); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) Set(ctx context.Context, path string, doc any) error {
	raw, err := marshalDoc(doc)
	if err != nil {
		return fmt.Errorf("store: set %s: %w", path, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(path, raw)
	return nil
}

func (m *Memory) Update(ctx context.Context, path string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[path]
	if !ok {
		return fmt.Errorf("store: update %s: %w", path, domain.ErrNotFound)
	}
	next, _, err := applyWrite(doc.body, true, writeOp{kind: writeUpdate, path: path, fields: fields})
	if err != nil {
		return err
	}
	m.put(path, next)
	return nil
}

func (m *Memory) Delete(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.docs[path]; !ok {
		return fmt.Errorf("store: delete %s: %w", path, domain.ErrNotFound)
	}
	delete(m.docs, path)
	return nil
}

func (m *Memory) RunTransaction(ctx context.Context, fn func(tx Tx) error) error {
	tx := &memoryTx{store: m, reads: make(map[string]uint64)}
	if err := fn(tx); err != nil {
		return err
	}
	return m.commit(tx)
}

// put stores a body under path, bumping the version past any version a
// concurrent transaction may have recorded. Callers must hold mu.
func (m *Memory) put(path string, raw json.RawMessage) {
	m.docs[path] = memDoc{body: raw, version: m.docs[path].version + 1}
}

// commit validates recorded read versions and applies staged writes.
func (m *Memory) commit(tx *memoryTx) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for path, version := range tx.reads {
		if m.docs[path].version != version {
			return fmt.Errorf("store: commit: document %s changed: %w", path, domain.ErrConflict)
		}
	}

	for _, op := range tx.writes {
		doc, exists := m.docs[op.path]
		next, nextExists, err := applyWrite(doc.body, exists, op)
		if err != nil {
			return err
		}
		if nextExists {
			m.put(op.path, next)
		} else {
			delete(m.docs, op.path)
		}
	}
	return nil
}

// memoryTx stages writes and records read versions for one transaction.
type memoryTx struct {
	store  *Memory
	reads  map[string]uint64
	writes []writeOp
}

func (t *memoryTx) Get(path string, dest any) error {
	t.store.mu.RLock()
	doc, ok := t.store.docs[path]
	t.store.mu.RUnlock()

	// Version 0 records "document absent", so a document created between
	// read and commit is detected as a conflict too.
	t.reads[path] = doc.version

	if !ok {
		return fmt.Errorf("store: get %s: %w", path, domain.ErrNotFound)
	}
	if err := json.Unmarshal(doc.body, dest); err != nil {
		return fmt.Errorf("store: decode %s: %w", path, err)
	}
	return nil
}

func (t *memoryTx) Set(path string, doc any) {
	raw, err := marshalDoc(doc)
	t.writes = append(t.writes, writeOp{kind: writeSet, path: path, doc: raw, encErr: err})
}

func (t *memoryTx) Update(path string, fields map[string]any) {
	t.writes = append(t.writes, writeOp{kind: writeUpdate, path: path, fields: fields})
}

func (t *memoryTx) Delete(path string) {
	t.writes = append(t.writes, writeOp{kind: writeDelete, path: path})
}

func (t *memoryTx) ArrayUnion(path, field, value string) {
	t.writes = append(t.writes, writeOp{kind: writeArrayUnion, path: path, field: field, value: value})
}

func (t *memoryTx) ArrayRemove(path, field, value string) {
	t.writes = append(t.writes, writeOp{kind: writeArrayRemove, path: path, field: field, value: value})
}
