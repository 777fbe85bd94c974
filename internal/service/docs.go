package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kamperhub/kamperhub-server/internal/store"
)

// listDocs reads every document in a tenant's collection into a slice.
// It always returns a non-nil slice so callers can range over it safely.
func listDocs[T any](ctx context.Context, st store.Store, userID, collection string) ([]T, error) {
	out := []T{}
	err := st.List(ctx, userID, collection, func(id string, raw json.RawMessage) error {
		var doc T
		if err := json.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("decode %s/%s: %w", collection, id, err)
		}
		out = append(out, doc)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
