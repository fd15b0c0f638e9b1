package valkey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	valkey "github.com/valkey-io/valkey-go"

	"github.com/centelha-ai/centelha/pkg/models"
)

// Store keeps one hash per namespace, keyed by canonical request key, plus a
// set naming every namespace.
type Store struct {
	client valkey.Client
	prefix string
}

// New wraps client. Keys are written under prefix. The client is owned by the
// caller.
func New(client valkey.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

// putScript writes the entry only while the namespace is registered, so a late
// write cannot resurrect a deleted namespace.
var putScript = valkey.NewLuaScript(`
if redis.call('SISMEMBER', KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[2], ARGV[2], ARGV[3])
return 1
`)

func (s *Store) namespacesKey() string { return s.prefix + "offline:namespaces" }

func (s *Store) namespaceKey(name string) string { return s.prefix + "offline:ns:" + name }

func (s *Store) Open(ctx context.Context, namespace string) error {
	cmd := s.client.B().Sadd().Key(s.namespacesKey()).Member(namespace).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("valkey: sadd namespace: %w", err)
	}
	return nil
}

func (s *Store) Match(ctx context.Context, namespace, key string) (models.CacheEntry, bool, error) {
	resp := s.client.Do(ctx, s.client.B().Hget().Key(s.namespaceKey(namespace)).Field(key).Build())
	payload, err := resp.AsBytes()
	if err != nil {
		if errors.Is(err, valkey.Nil) {
			return models.CacheEntry{}, false, nil
		}
		return models.CacheEntry{}, false, fmt.Errorf("valkey: hget: %w", err)
	}
	var entry models.CacheEntry
	if err := json.Unmarshal(payload, &entry); err != nil {
		return models.CacheEntry{}, false, fmt.Errorf("valkey: unmarshal entry: %w", err)
	}
	return entry, true, nil
}

func (s *Store) Put(ctx context.Context, namespace string, entry models.CacheEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("valkey: marshal entry: %w", err)
	}
	stored, err := putScript.Exec(ctx, s.client,
		[]string{s.namespacesKey(), s.namespaceKey(namespace)},
		[]string{namespace, entry.Key, string(payload)},
	).AsInt64()
	if err != nil {
		return fmt.Errorf("valkey: put entry: %w", err)
	}
	if stored == 0 {
		return fmt.Errorf("valkey: put %s: %w", namespace, models.ErrNamespaceNotFound)
	}
	return nil
}

func (s *Store) Namespaces(ctx context.Context) ([]string, error) {
	names, err := s.client.Do(ctx, s.client.B().Smembers().Key(s.namespacesKey()).Build()).AsStrSlice()
	if err != nil {
		return nil, fmt.Errorf("valkey: smembers: %w", err)
	}
	slices.Sort(names)
	return names, nil
}

func (s *Store) DeleteNamespace(ctx context.Context, namespace string) (bool, error) {
	// Unregister first so a concurrent put is rejected before the hash goes.
	cmds := valkey.Commands{
		s.client.B().Srem().Key(s.namespacesKey()).Member(namespace).Build(),
		s.client.B().Del().Key(s.namespaceKey(namespace)).Build(),
	}
	resps := s.client.DoMulti(ctx, cmds...)
	removed, err := resps[0].AsInt64()
	if err != nil {
		return false, fmt.Errorf("valkey: srem namespace: %w", err)
	}
	if err := resps[1].Error(); err != nil {
		return false, fmt.Errorf("valkey: del namespace: %w", err)
	}
	return removed > 0, nil
}

func (s *Store) Len(ctx context.Context, namespace string) (int64, error) {
	n, err := s.client.Do(ctx, s.client.B().Hlen().Key(s.namespaceKey(namespace)).Build()).AsInt64()
	if err != nil {
		return 0, fmt.Errorf("valkey: hlen: %w", err)
	}
	return n, nil
}

// Close is a no-op; the shared client is closed by whoever dialed it.
func (s *Store) Close() error { return nil }
