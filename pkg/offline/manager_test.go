package offline

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/centelha-ai/centelha/pkg/cache/memory"
	"github.com/centelha-ai/centelha/pkg/config"
	"github.com/centelha-ai/centelha/pkg/metrics"
	"github.com/centelha-ai/centelha/pkg/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var errConnRefused = errors.New("dial tcp 127.0.0.1:3000: connect: connection refused")

// fakeOrigin serves fixed bodies by path and counts fetches.
type fakeOrigin struct {
	mu      sync.Mutex
	bodies  map[string]string
	status  map[string]int
	fetches map[string]int
	down    bool
}

func newFakeOrigin() *fakeOrigin {
	return &fakeOrigin{
		bodies: map[string]string{
			"/":                 "<html>index</html>",
			"/index.html":       "<html>index</html>",
			"/app.js":           "console.log('centelha')",
			"/manifest.json":    `{"name":"Centelha"}`,
			"/icon-192x192.png": "png-192",
			"/icon-512x512.png": "png-512",
			"/styles/extra.css": "body{}",
			"/api/generate":     `{"ok":true}`,
		},
		status:  map[string]int{},
		fetches: map[string]int{},
	}
}

func (o *fakeOrigin) RoundTrip(req *http.Request) (*http.Response, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.down {
		return nil, errConnRefused
	}
	o.fetches[req.URL.Path]++
	code := http.StatusOK
	if c, ok := o.status[req.URL.Path]; ok {
		code = c
	}
	body, ok := o.bodies[req.URL.Path]
	if !ok {
		code, body = http.StatusNotFound, "not found"
	}
	return &http.Response{
		StatusCode: code,
		Status:     http.StatusText(code),
		Header:     http.Header{"Content-Type": {"text/plain"}},
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    req,
	}, nil
}

func (o *fakeOrigin) count(path string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.fetches[path]
}

func (o *fakeOrigin) total() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, c := range o.fetches {
		n += c
	}
	return n
}

func (o *fakeOrigin) setDown(down bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.down = down
}

func offlineConfig(version string) config.OfflineConfig {
	cfg := config.Default().Offline
	cfg.Version = version
	return cfg
}

func newManager(t *testing.T, version string, store Store, origin *fakeOrigin) *Manager {
	t.Helper()
	m, err := New(offlineConfig(version), store, WithTransport(origin), WithMetrics(metrics.NewRecorder(nil)))
	require.NoError(t, err)
	return m
}

func get(t *testing.T, client *http.Client, url string) (int, string, error) {
	t.Helper()
	resp, err := client.Get(url)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body), nil
}

func TestStartInstallsManifest(t *testing.T) {
	ctx := context.Background()
	origin := newFakeOrigin()
	store := memory.New()
	m := newManager(t, "centelha-v3", store, origin)

	require.NoError(t, m.Start(ctx))
	assert.Equal(t, StateActive, m.State())

	stats, err := m.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(6), stats.Entries)
	assert.Equal(t, []string{"centelha-v3"}, stats.Namespaces)
	assert.Equal(t, 6, origin.total())
}

func TestCacheFirstRoundTrip(t *testing.T) {
	ctx := context.Background()
	origin := newFakeOrigin()
	m := newManager(t, "centelha-v3", memory.New(), origin)
	require.NoError(t, m.Start(ctx))
	client := &http.Client{Transport: m}

	for range 3 {
		code, body, err := get(t, client, "http://localhost:3000/app.js")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "console.log('centelha')", body)
	}
	assert.Equal(t, 1, origin.count("/app.js"), "only the install fetch reaches the network")

	stats, err := m.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Hits)
	assert.Zero(t, stats.Misses)
}

func TestMissPopulatesCache(t *testing.T) {
	ctx := context.Background()
	origin := newFakeOrigin()
	store := memory.New()
	m := newManager(t, "centelha-v3", store, origin)
	require.NoError(t, m.Start(ctx))
	client := &http.Client{Transport: m}

	_, body, err := get(t, client, "http://localhost:3000/styles/extra.css")
	require.NoError(t, err)
	assert.Equal(t, "body{}", body)
	m.Wait()

	_, body, err = get(t, client, "http://localhost:3000/styles/extra.css")
	require.NoError(t, err)
	assert.Equal(t, "body{}", body)
	assert.Equal(t, 1, origin.count("/styles/extra.css"))

	n, err := store.Len(ctx, "centelha-v3")
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
}

func TestNonOKIsNotCached(t *testing.T) {
	ctx := context.Background()
	origin := newFakeOrigin()
	store := memory.New()
	m := newManager(t, "centelha-v3", store, origin)
	require.NoError(t, m.Start(ctx))
	client := &http.Client{Transport: m}

	for range 2 {
		code, _, err := get(t, client, "http://localhost:3000/missing.png")
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, code)
	}
	m.Wait()
	assert.Equal(t, 2, origin.count("/missing.png"))

	n, err := store.Len(ctx, "centelha-v3")
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)
}

func TestNonGetBypassesCache(t *testing.T) {
	ctx := context.Background()
	origin := newFakeOrigin()
	store := memory.New()
	m := newManager(t, "centelha-v3", store, origin)
	require.NoError(t, m.Start(ctx))
	client := &http.Client{Transport: m}

	for range 2 {
		resp, err := client.Post("http://localhost:3000/api/generate", "application/json", strings.NewReader(`{}`))
		require.NoError(t, err)
		resp.Body.Close()
	}
	m.Wait()
	assert.Equal(t, 2, origin.count("/api/generate"))

	n, err := store.Len(ctx, "centelha-v3")
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)
}

func TestPassThroughBeforeActivation(t *testing.T) {
	ctx := context.Background()
	origin := newFakeOrigin()
	store := memory.New()
	m := newManager(t, "centelha-v3", store, origin)
	client := &http.Client{Transport: m}

	_, body, err := get(t, client, "http://localhost:3000/index.html")
	require.NoError(t, err)
	assert.Equal(t, "<html>index</html>", body)
	m.Wait()

	names, err := store.Namespaces(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestInstallFailureStoresNothing(t *testing.T) {
	ctx := context.Background()
	origin := newFakeOrigin()
	origin.status["/icon-512x512.png"] = http.StatusInternalServerError
	store := memory.New()
	m := newManager(t, "centelha-v3", store, origin)

	err := m.Start(ctx)
	require.ErrorIs(t, err, ErrInstallFailed)
	assert.Equal(t, StateRedundant, m.State())

	names, err := store.Namespaces(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)

	// A redundant manager never serves from the cache.
	client := &http.Client{Transport: m}
	_, _, err = get(t, client, "http://localhost:3000/app.js")
	require.NoError(t, err)
	m.Wait()
	names, err = store.Namespaces(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestInstallFailsWhenOffline(t *testing.T) {
	origin := newFakeOrigin()
	origin.setDown(true)
	m := newManager(t, "centelha-v3", memory.New(), origin)

	err := m.Install(context.Background())
	require.ErrorIs(t, err, ErrInstallFailed)
	assert.ErrorIs(t, err, errConnRefused)
}

func TestVersionRollover(t *testing.T) {
	ctx := context.Background()
	origin := newFakeOrigin()
	store := memory.New()

	old := newManager(t, "centelha-v2", store, origin)
	require.NoError(t, old.Start(ctx))
	_, _, err := get(t, &http.Client{Transport: old}, "http://localhost:3000/styles/extra.css")
	require.NoError(t, err)
	old.Wait()

	next := newManager(t, "centelha-v3", store, origin)
	require.NoError(t, next.Install(ctx))

	// Until activation both namespaces coexist.
	names, err := store.Namespaces(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"centelha-v2", "centelha-v3"}, names)

	require.NoError(t, next.Activate(ctx))
	names, err = store.Namespaces(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"centelha-v3"}, names)

	n, err := store.Len(ctx, "centelha-v2")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStartSkipsInstallWhenPresent(t *testing.T) {
	ctx := context.Background()
	origin := newFakeOrigin()
	store := memory.New()

	require.NoError(t, newManager(t, "centelha-v3", store, origin).Start(ctx))
	before := origin.total()

	again := newManager(t, "centelha-v3", store, origin)
	require.NoError(t, again.Start(ctx))
	assert.Equal(t, StateActive, again.State())
	assert.Equal(t, before, origin.total())
}

func TestStartReinstallsIncompleteNamespace(t *testing.T) {
	ctx := context.Background()
	origin := newFakeOrigin()
	store := memory.New()
	require.NoError(t, store.Open(ctx, "centelha-v3"))

	m := newManager(t, "centelha-v3", store, origin)
	installed, err := m.Installed(ctx)
	require.NoError(t, err)
	assert.False(t, installed, "an empty namespace is not an installed manifest")

	require.NoError(t, m.Start(ctx))
	assert.Equal(t, 6, origin.total())
	n, err := store.Len(ctx, "centelha-v3")
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)
}

func TestMissAfterClearDoesNotRecreateNamespace(t *testing.T) {
	ctx := context.Background()
	origin := newFakeOrigin()
	store := memory.New()

	serving := newManager(t, "centelha-v3", store, origin)
	require.NoError(t, serving.Start(ctx))

	// Another process clears the cache while the server keeps running.
	_, err := newManager(t, "centelha-v3", store, origin).Clear(ctx)
	require.NoError(t, err)

	code, body, err := get(t, &http.Client{Transport: serving}, "http://localhost:3000/styles/extra.css")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "body{}", body)
	serving.Wait()

	names, err := store.Namespaces(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)

	restarted := newManager(t, "centelha-v3", store, origin)
	require.NoError(t, restarted.Start(ctx))
	stats, err := restarted.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(6), stats.Entries)

	origin.setDown(true)
	_, body, err = get(t, &http.Client{Transport: restarted}, "http://localhost:3000/app.js")
	require.NoError(t, err)
	assert.Equal(t, "console.log('centelha')", body)
}

func TestSupersededManagerCannotRepopulate(t *testing.T) {
	ctx := context.Background()
	origin := newFakeOrigin()
	store := memory.New()

	old := newManager(t, "centelha-v2", store, origin)
	require.NoError(t, old.Start(ctx))
	require.NoError(t, newManager(t, "centelha-v3", store, origin).Start(ctx))

	_, _, err := get(t, &http.Client{Transport: old}, "http://localhost:3000/styles/extra.css")
	require.NoError(t, err)
	old.Wait()

	names, err := store.Namespaces(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"centelha-v3"}, names)
	n, err := store.Len(ctx, "centelha-v2")
	require.NoError(t, err)
	assert.Zero(t, n)
}

// failingStore rejects every Put after the first allowed ones.
type failingStore struct {
	Store
	mu      sync.Mutex
	allowed int
}

var errDiskFull = errors.New("disk full")

func (s *failingStore) Put(ctx context.Context, namespace string, entry models.CacheEntry) error {
	s.mu.Lock()
	if s.allowed == 0 {
		s.mu.Unlock()
		return errDiskFull
	}
	s.allowed--
	s.mu.Unlock()
	return s.Store.Put(ctx, namespace, entry)
}

func TestInstallStoreFailureDiscardsNewNamespace(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{Store: memory.New(), allowed: 2}
	m := newManager(t, "centelha-v3", store, newFakeOrigin())

	err := m.Install(ctx)
	require.ErrorIs(t, err, ErrInstallFailed)
	assert.ErrorIs(t, err, errDiskFull)

	names, err := store.Namespaces(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestInstallStoreFailureKeepsExistingNamespace(t *testing.T) {
	ctx := context.Background()
	origin := newFakeOrigin()
	inner := memory.New()
	require.NoError(t, newManager(t, "centelha-v3", inner, origin).Start(ctx))

	m := newManager(t, "centelha-v3", &failingStore{Store: inner, allowed: 2}, origin)
	err := m.Install(ctx)
	require.ErrorIs(t, err, ErrInstallFailed)

	names, err := inner.Namespaces(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"centelha-v3"}, names)
	n, err := inner.Len(ctx, "centelha-v3")
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)
}

func TestActivateRequiresInstall(t *testing.T) {
	m := newManager(t, "centelha-v3", memory.New(), newFakeOrigin())
	err := m.Activate(context.Background())
	assert.ErrorIs(t, err, ErrNotInstalled)
	assert.Equal(t, StateNew, m.State())
}

func TestNetworkFailure(t *testing.T) {
	ctx := context.Background()
	origin := newFakeOrigin()
	m := newManager(t, "centelha-v3", memory.New(), origin)
	require.NoError(t, m.Start(ctx))
	client := &http.Client{Transport: m}
	origin.setDown(true)

	// Cached resources keep working offline.
	_, body, err := get(t, client, "http://localhost:3000/manifest.json")
	require.NoError(t, err)
	assert.Equal(t, `{"name":"Centelha"}`, body)

	_, _, err = get(t, client, "http://localhost:3000/styles/extra.css")
	require.ErrorIs(t, err, ErrOffline)
	assert.ErrorIs(t, err, errConnRefused)
	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "http://localhost:3000/styles/extra.css", fe.URL)
}

func TestBackgroundWriteOutlivesRequest(t *testing.T) {
	ctx := context.Background()
	origin := newFakeOrigin()
	store := memory.New()
	m := newManager(t, "centelha-v3", store, origin)
	require.NoError(t, m.Start(ctx))

	reqCtx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, "http://localhost:3000/styles/extra.css", nil)
	require.NoError(t, err)
	resp, err := m.RoundTrip(req)
	require.NoError(t, err)
	resp.Body.Close()
	cancel()
	m.Wait()

	_, ok, err := store.Match(ctx, "centelha-v3", CanonicalKey(req, nil))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	origin := newFakeOrigin()
	store := memory.New()
	m := newManager(t, "centelha-v3", store, origin)
	require.NoError(t, m.Start(ctx))

	n, err := m.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, StateNew, m.State())

	names, err := store.Namespaces(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestCanonicalKey(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "http://localhost:3000/index.html?v=1#top", nil)
	require.NoError(t, err)
	req.Header.Set("Accept-Language", "pt-BR")

	assert.Equal(t, "GET http://localhost:3000/index.html?v=1", CanonicalKey(req, nil))
	assert.Equal(t,
		"GET http://localhost:3000/index.html?v=1\nAccept-Language: pt-BR\nX-Missing: ",
		CanonicalKey(req, []string{"x-missing", "accept-language", "Accept-Language"}),
	)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "active", StateActive.String())
	assert.Equal(t, "redundant", StateRedundant.String())
}
