// Package store provides the transactional document store the itinerary
// engine runs against. Documents are addressed by hierarchical path
// tenant/{uid}/{collection}/{id} and carry a version used for optimistic
// conflict detection: a transaction records the version of every document it
// reads and aborts at commit if any of them changed underneath it.
//
// Two implementations exist: Memory (tests, ephemeral environments) and
// Postgres (one JSONB documents table).
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kamperhub/kamperhub-server/internal/domain"
)

// Store is the document store the services and the route aggregator depend
// on. All implementations return domain.ErrNotFound for missing documents
// and domain.ErrConflict for optimistic transaction failures.
type Store interface {
	// Get reads the document at path into dest.
	Get(ctx context.Context, path string, dest any) error

	// GetAll reads every document in paths, invoking decode once per
	// document that exists. Missing documents are skipped silently; the
	// reads are not transactional and tolerate slight staleness.
	GetAll(ctx context.Context, paths []string, decode func(path string, raw json.RawMessage) error) error

	// List invokes decode for every document in the tenant's collection,
	// ordered by document id.
	List(ctx context.Context, tenant, collection string, decode func(id string, raw json.RawMessage) error) error

	// Set creates or replaces the document at path.
	Set(ctx context.Context, path string, doc any) error

	// Update merges the given top-level fields into the document at path.
	// A nil field value stores JSON null. Returns domain.ErrNotFound when
	// the document does not exist.
	Update(ctx context.Context, path string, fields map[string]any) error

	// Delete removes the document at path. Returns domain.ErrNotFound when
	// the document does not exist.
	Delete(ctx context.Context, path string) error

	// RunTransaction executes fn against a transaction handle. Writes are
	// staged and applied atomically when fn returns nil. If any document
	// read by fn changed before commit, the transaction fails with
	// domain.ErrConflict and no writes are applied. fn returning an error
	// aborts with no writes.
	RunTransaction(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the handle passed to RunTransaction callbacks. Reads observe
// committed state; writes are staged until commit, so a Tx.Get never sees
// the transaction's own writes.
type Tx interface {
	Get(path string, dest any) error
	Set(path string, doc any)
	Update(path string, fields map[string]any)
	Delete(path string)

	// ArrayUnion appends value to the named []string field if absent.
	// ArrayRemove removes it if present. Both are idempotent and are
	// silently skipped when the document does not exist at commit time.
	ArrayUnion(path, field, value string)
	ArrayRemove(path, field, value string)
}

// Path builds the hierarchical document path for a tenant-scoped document.
func Path(tenant, collection, id string) string {
	return "tenant/" + tenant + "/" + collection + "/" + id
}

// splitPath breaks a document path into its tenant, collection, and id
// components.
func splitPath(path string) (tenant, collection, id string, err error) {
	parts := strings.Split(path, "/")
	if len(parts) != 4 || parts[0] != "tenant" || parts[1] == "" || parts[2] == "" || parts[3] == "" {
		return "", "", "", fmt.Errorf("store: malformed document path %q", path)
	}
	return parts[1], parts[2], parts[3], nil
}

// writeKind enumerates the staged write operations a transaction supports.
type writeKind int

const (
	writeSet writeKind = iota
	writeUpdate
	writeDelete
	writeArrayUnion
	writeArrayRemove
)

// writeOp is one staged transaction write.
type writeOp struct {
	kind   writeKind
	path   string
	doc    json.RawMessage // writeSet
	encErr error           // writeSet marshal failure, surfaced at commit
	fields map[string]any  // writeUpdate
	field  string          // array ops
	value  string          // array ops
}

// applyWrite computes the document body resulting from one staged write.
// current is the body before the write (nil when the document is absent).
// The returned exists flag is false when the write leaves no document.
func applyWrite(current json.RawMessage, exists bool, op writeOp) (json.RawMessage, bool, error) {
	switch op.kind {
	case writeSet:
		if op.encErr != nil {
			return nil, false, fmt.Errorf("store: set %s: %w", op.path, op.encErr)
		}
		return op.doc, true, nil

	case writeDelete:
		return nil, false, nil

	case writeUpdate:
		if !exists {
			return nil, false, fmt.Errorf("store: update %s: %w", op.path, domain.ErrNotFound)
		}
		body, err := decodeBody(current, op.path)
		if err != nil {
			return nil, false, err
		}
		for k, v := range op.fields {
			body[k] = v
		}
		return encodeBody(body, op.path)

	case writeArrayUnion, writeArrayRemove:
		if !exists {
			// Idempotent set semantics: nothing to add to or remove from.
			return current, exists, nil
		}
		body, err := decodeBody(current, op.path)
		if err != nil {
			return nil, false, err
		}
		arr := stringSlice(body[op.field])
		if op.kind == writeArrayUnion {
			arr = appendIfAbsent(arr, op.value)
		} else {
			arr = removeIfPresent(arr, op.value)
		}
		body[op.field] = arr
		return encodeBody(body, op.path)

	default:
		return nil, false, fmt.Errorf("store: unknown write kind %d", op.kind)
	}
}

func decodeBody(raw json.RawMessage, path string) (map[string]any, error) {
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("store: decode %s: %w", path, err)
	}
	if body == nil {
		body = map[string]any{}
	}
	return body, nil
}

func encodeBody(body map[string]any, path string) (json.RawMessage, bool, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, false, fmt.Errorf("store: encode %s: %w", path, err)
	}
	return raw, true, nil
}

// stringSlice coerces a decoded JSON array field into []string, dropping
// non-string elements. A missing or null field yields an empty slice.
func stringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func appendIfAbsent(arr []string, v string) []string {
	for _, s := range arr {
		if s == v {
			return arr
		}
	}
	return append(arr, v)
}

func removeIfPresent(arr []string, v string) []string {
	out := arr[:0]
	for _, s := range arr {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}

// marshalDoc encodes a document for staging, deferring any error to commit
// so the Tx write methods can keep their fire-and-forget signatures.
func marshalDoc(doc any) (json.RawMessage, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return raw, nil
}
