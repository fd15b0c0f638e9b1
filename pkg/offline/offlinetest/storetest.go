// Package offlinetest holds the behavior every offline.Store backend must share.
package offlinetest

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/centelha-ai/centelha/pkg/models"
	"github.com/centelha-ai/centelha/pkg/offline"
)

// Entry builds a 200 entry for url with the given body.
func Entry(url, body string) models.CacheEntry {
	return models.CacheEntry{
		Key:      "GET " + url,
		Method:   http.MethodGet,
		URL:      url,
		Status:   http.StatusOK,
		Header:   http.Header{"Content-Type": {"text/html; charset=utf-8"}},
		Body:     []byte(body),
		StoredAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

// RunStoreTests exercises a Store produced by newStore. Each subtest gets a
// fresh store.
func RunStoreTests(t *testing.T, newStore func(t *testing.T) offline.Store) {
	t.Run("OpenIsIdempotent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Open(ctx, "centelha-v3"))
		require.NoError(t, s.Open(ctx, "centelha-v3"))

		names, err := s.Namespaces(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"centelha-v3"}, names)

		n, err := s.Len(ctx, "centelha-v3")
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("PutMatch", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		want := Entry("http://localhost:3000/index.html", "<html>centelha</html>")
		require.NoError(t, s.Open(ctx, "centelha-v3"))
		require.NoError(t, s.Put(ctx, "centelha-v3", want))

		got, ok, err := s.Match(ctx, "centelha-v3", want.Key)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want.Key, got.Key)
		assert.Equal(t, want.URL, got.URL)
		assert.Equal(t, want.Status, got.Status)
		assert.Equal(t, want.Body, got.Body)
		assert.Equal(t, want.Header.Get("Content-Type"), got.Header.Get("Content-Type"))
		assert.True(t, want.StoredAt.Equal(got.StoredAt), "stored_at %v != %v", got.StoredAt, want.StoredAt)

		_, ok, err = s.Match(ctx, "centelha-v3", "GET http://localhost:3000/missing")
		require.NoError(t, err)
		assert.False(t, ok)

		_, ok, err = s.Match(ctx, "centelha-v2", want.Key)
		require.NoError(t, err)
		assert.False(t, ok, "entries are scoped to their namespace")
	})

	t.Run("PutOverwrites", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		first := Entry("http://localhost:3000/app.js", "v1")
		second := Entry("http://localhost:3000/app.js", "v2")
		require.NoError(t, s.Open(ctx, "centelha-v3"))
		require.NoError(t, s.Put(ctx, "centelha-v3", first))
		require.NoError(t, s.Put(ctx, "centelha-v3", second))

		got, ok, err := s.Match(ctx, "centelha-v3", first.Key)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "v2", string(got.Body))

		n, err := s.Len(ctx, "centelha-v3")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("DeleteNamespace", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Open(ctx, "centelha-v2"))
		require.NoError(t, s.Open(ctx, "centelha-v3"))
		require.NoError(t, s.Put(ctx, "centelha-v2", Entry("http://localhost:3000/", "old")))
		require.NoError(t, s.Put(ctx, "centelha-v3", Entry("http://localhost:3000/", "new")))

		existed, err := s.DeleteNamespace(ctx, "centelha-v2")
		require.NoError(t, err)
		assert.True(t, existed)

		existed, err = s.DeleteNamespace(ctx, "centelha-v2")
		require.NoError(t, err)
		assert.False(t, existed)

		names, err := s.Namespaces(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"centelha-v3"}, names)

		n, err := s.Len(ctx, "centelha-v2")
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("PutRequiresOpenNamespace", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		err := s.Put(ctx, "centelha-v3", Entry("http://localhost:3000/", "orphan"))
		require.ErrorIs(t, err, models.ErrNamespaceNotFound)

		names, err := s.Namespaces(ctx)
		require.NoError(t, err)
		assert.Empty(t, names, "a rejected put must not create the namespace")

		require.NoError(t, s.Open(ctx, "centelha-v3"))
		require.NoError(t, s.Put(ctx, "centelha-v3", Entry("http://localhost:3000/", "kept")))
		_, err = s.DeleteNamespace(ctx, "centelha-v3")
		require.NoError(t, err)

		err = s.Put(ctx, "centelha-v3", Entry("http://localhost:3000/app.js", "late"))
		require.ErrorIs(t, err, models.ErrNamespaceNotFound)
		n, err := s.Len(ctx, "centelha-v3")
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("ConcurrentPut", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Open(ctx, "centelha-v3"))
		var wg sync.WaitGroup
		for i := range 16 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				url := fmt.Sprintf("http://localhost:3000/asset-%d.png", i%4)
				assert.NoError(t, s.Put(ctx, "centelha-v3", Entry(url, fmt.Sprint(i))))
			}()
		}
		wg.Wait()

		n, err := s.Len(ctx, "centelha-v3")
		require.NoError(t, err)
		assert.Equal(t, int64(4), n)
	})
}
