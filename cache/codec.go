package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Codec is a typed JSON view over a byte-level Store.
type Codec[V any] struct {
	store  Store
	prefix string
}

// NewCodec wraps store; prefix namespaces every key it touches.
func NewCodec[V any](store Store, prefix string) *Codec[V] {
	if prefix == "" {
		prefix = "livpred"
	}
	return &Codec[V]{store: store, prefix: prefix}
}

func (c *Codec[V]) key(k string) string {
	return fmt.Sprintf("%s:%s", c.prefix, k)
}

// Load decodes the value under key. A missing key is reported with found=false
// and a nil error.
func (c *Codec[V]) Load(ctx context.Context, key string) (V, bool, error) {
	var out V
	if err := ctxErr(ctx); err != nil {
		return out, false, err
	}
	payload, err := c.store.Get(ctx, c.key(key))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return out, false, nil
		}
		return out, false, err
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return out, false, fmt.Errorf("cache: decode %s: %w", key, err)
	}
	return out, true, nil
}

// Save encodes value and stores it for ttl.
func (c *Codec[V]) Save(ctx context.Context, key string, value V, ttl time.Duration) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}
	return c.store.Set(ctx, c.key(key), payload, ttl)
}

// Delete removes key; deleting a missing key is not an error.
func (c *Codec[V]) Delete(ctx context.Context, key string) error {
	if err := c.store.Delete(ctx, c.key(key)); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}
