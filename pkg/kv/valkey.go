package kv

import (
	"context"
	"errors"
	"fmt"

	valkey "github.com/valkey-io/valkey-go"
)

// Valkey stores values as plain strings under a key prefix.
type Valkey struct {
	client valkey.Client
	prefix string
}

// NewValkey wraps an established client. The client is owned by the caller.
func NewValkey(client valkey.Client, prefix string) *Valkey {
	return &Valkey{client: client, prefix: prefix + "kv:"}
}

// Get returns the value stored under key.
func (v *Valkey) Get(ctx context.Context, key string) (string, bool, error) {
	resp := v.client.Do(ctx, v.client.B().Get().Key(v.prefix+key).Build())
	value, err := resp.ToString()
	if err != nil {
		if errors.Is(err, valkey.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("kv: valkey get: %w", err)
	}
	return value, true, nil
}

// Set stores value under key without expiry.
func (v *Valkey) Set(ctx context.Context, key, value string) error {
	cmd := v.client.B().Set().Key(v.prefix + key).Value(value).Build()
	if err := v.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("kv: valkey set: %w", err)
	}
	return nil
}

// Close is a no-op; the shared client is closed by its owner.
func (v *Valkey) Close() error { return nil }
