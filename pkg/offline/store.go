package offline

import (
	"context"

	"github.com/centelha-ai/centelha/pkg/models"
)

// Store persists cache entries grouped into named namespaces. A namespace
// exists from Open until DeleteNamespace, even while it holds no entries.
// Implementations must be safe for concurrent use.
type Store interface {
	// Open creates the namespace if needed.
	Open(ctx context.Context, namespace string) error
	// Match returns the entry stored under key. ok is false on a miss.
	Match(ctx context.Context, namespace, key string) (entry models.CacheEntry, ok bool, err error)
	// Put stores entry under entry.Key, replacing any previous value. It fails
	// with models.ErrNamespaceNotFound when the namespace does not exist, so a
	// late write never recreates a deleted namespace.
	Put(ctx context.Context, namespace string, entry models.CacheEntry) error
	// Namespaces lists every existing namespace, sorted.
	Namespaces(ctx context.Context) ([]string, error)
	// DeleteNamespace removes the namespace and all of its entries. It reports
	// whether the namespace existed.
	DeleteNamespace(ctx context.Context, namespace string) (bool, error)
	// Len counts the entries in the namespace.
	Len(ctx context.Context, namespace string) (int64, error)
	Close() error
}
