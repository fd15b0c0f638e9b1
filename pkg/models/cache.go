package models

import (
	"errors"
	"net/http"
	"time"
)

// ErrNamespaceNotFound is returned by offline cache stores when an entry is
// written to a namespace that was never opened or has since been deleted.
var ErrNamespaceNotFound = errors.New("cache namespace not found")

// CacheEntry stores a captured response for one canonical request identity.
type CacheEntry struct {
	Key      string      `json:"key"`
	Method   string      `json:"method"`
	URL      string      `json:"url"`
	Status   int         `json:"status"`
	Header   http.Header `json:"header,omitempty"`
	Body     []byte      `json:"body"`
	StoredAt time.Time   `json:"stored_at"`
}

// Clone returns a deep copy of the entry.
func (e CacheEntry) Clone() CacheEntry {
	out := e
	out.Header = e.Header.Clone()
	if e.Body != nil {
		out.Body = append([]byte(nil), e.Body...)
	}
	return out
}

// CacheStats reports offline cache contents and performance.
type CacheStats struct {
	Namespace  string   `json:"namespace"`
	Entries    int64    `json:"entries"`
	Hits       int64    `json:"hits"`
	Misses     int64    `json:"misses"`
	Namespaces []string `json:"namespaces"`
}
