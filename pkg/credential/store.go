// Package credential keeps the single API token used by generation calls.
package credential

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidCredential is returned by Set for an empty or whitespace-only token.
var ErrInvalidCredential = errors.New("invalid credential")

// KV is the persistence collaborator the token slot lives in.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Store reads and writes the token in one named KV slot.
type Store struct {
	kv   KV
	slot string
}

// New creates a Store over kv using slot as the key.
func New(kv KV, slot string) *Store {
	return &Store{kv: kv, slot: slot}
}

// Get returns the stored token. ok is false when no token has been set or the
// slot was cleared.
func (s *Store) Get(ctx context.Context) (token string, ok bool, err error) {
	v, found, err := s.kv.Get(ctx, s.slot)
	if err != nil {
		return "", false, fmt.Errorf("credential get: %w", err)
	}
	v = strings.TrimSpace(v)
	if !found || v == "" {
		return "", false, nil
	}
	return v, true, nil
}

// Set stores the trimmed token, replacing the previous one.
func (s *Store) Set(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidCredential
	}
	if err := s.kv.Set(ctx, s.slot, token); err != nil {
		return fmt.Errorf("credential set: %w", err)
	}
	return nil
}

// Clear empties the slot so Get reports no credential.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.kv.Set(ctx, s.slot, ""); err != nil {
		return fmt.Errorf("credential clear: %w", err)
	}
	return nil
}
