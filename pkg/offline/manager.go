// Package offline keeps a versioned copy of the application's static
// resources and answers GET requests from it before touching the network.
package offline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/centelha-ai/centelha/pkg/config"
	"github.com/centelha-ai/centelha/pkg/metrics"
	"github.com/centelha-ai/centelha/pkg/models"
)

// State is the lifecycle position of a Manager.
type State int32

const (
	StateNew State = iota
	StateInstalling
	StateInstalled
	StateActive
	StateRedundant
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateInstalling:
		return "installing"
	case StateInstalled:
		return "installed"
	case StateActive:
		return "active"
	case StateRedundant:
		return "redundant"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Manager is an http.RoundTripper that serves GET requests cache-first from
// the namespace named by the configured version.
type Manager struct {
	version  string
	origin   *url.URL
	manifest []string
	vary     []string

	store   Store
	next    http.RoundTripper
	logger  *zap.Logger
	metrics *metrics.Recorder
	now     func() time.Time

	mu    sync.Mutex
	state atomic.Int32

	hits   atomic.Int64
	misses atomic.Int64
	writes sync.WaitGroup
}

// Option customizes a Manager.
type Option func(*Manager)

// WithTransport sets the network transport used on misses and during install.
func WithTransport(rt http.RoundTripper) Option {
	return func(m *Manager) {
		if rt != nil {
			m.next = rt
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(r *metrics.Recorder) Option {
	return func(m *Manager) { m.metrics = r }
}

// New creates a Manager in StateNew.
func New(cfg config.OfflineConfig, store Store, opts ...Option) (*Manager, error) {
	if strings.TrimSpace(cfg.Version) == "" {
		return nil, fmt.Errorf("offline: version is required")
	}
	if store == nil {
		return nil, fmt.Errorf("offline: store is required")
	}
	origin, err := url.Parse(cfg.Origin)
	if err != nil {
		return nil, fmt.Errorf("offline: parse origin: %w", err)
	}
	m := &Manager{
		version:  cfg.Version,
		origin:   origin,
		manifest: slices.Clone(cfg.Manifest),
		vary:     slices.Clone(cfg.VaryHeaders),
		store:    store,
		next:     http.DefaultTransport,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Version returns the namespace tag the manager serves from.
func (m *Manager) Version() string { return m.version }

// State returns the current lifecycle state.
func (m *Manager) State() State { return State(m.state.Load()) }

// Installed reports whether the current namespace exists and holds every
// manifest entry. A namespace left half-written by an interrupted install
// does not count.
func (m *Manager) Installed(ctx context.Context) (bool, error) {
	names, err := m.store.Namespaces(ctx)
	if err != nil {
		return false, fmt.Errorf("offline: list namespaces: %w", err)
	}
	if !slices.Contains(names, m.version) {
		return false, nil
	}
	for _, ref := range m.manifest {
		req, err := m.manifestRequest(ctx, ref)
		if err != nil {
			return false, err
		}
		_, ok, err := m.store.Match(ctx, m.version, CanonicalKey(req, m.vary))
		if err != nil {
			return false, fmt.Errorf("offline: check %s: %w", ref, err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// Install fetches every manifest entry and stores them in the current
// namespace. Nothing is stored unless every entry answers 200.
func (m *Manager) Install(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch st := m.State(); st {
	case StateNew, StateRedundant:
	default:
		return fmt.Errorf("offline: cannot install from state %s", st)
	}
	m.state.Store(int32(StateInstalling))

	if err := m.install(ctx); err != nil {
		m.state.Store(int32(StateRedundant))
		m.metrics.ObserveInstall(false)
		m.logger.Error("offline install failed", zap.String("version", m.version), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrInstallFailed, err)
	}

	m.state.Store(int32(StateInstalled))
	m.metrics.ObserveInstall(true)
	m.logger.Info("offline cache installed",
		zap.String("version", m.version),
		zap.Int("entries", len(m.manifest)),
	)
	return nil
}

func (m *Manager) install(ctx context.Context) error {
	entries := make([]models.CacheEntry, len(m.manifest))

	g, gctx := errgroup.WithContext(ctx)
	for i, ref := range m.manifest {
		g.Go(func() error {
			entry, err := m.fetchManifestEntry(gctx, ref)
			if err != nil {
				return err
			}
			entries[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	names, err := m.store.Namespaces(ctx)
	if err != nil {
		return fmt.Errorf("list namespaces: %w", err)
	}
	existed := slices.Contains(names, m.version)
	if err := m.store.Open(ctx, m.version); err != nil {
		return fmt.Errorf("open namespace: %w", err)
	}
	for _, entry := range entries {
		if err := m.store.Put(ctx, m.version, entry); err != nil {
			// Only a namespace this install created is discarded; one that was
			// already serving keeps its entries.
			if !existed {
				if _, derr := m.store.DeleteNamespace(context.WithoutCancel(ctx), m.version); derr != nil {
					m.logger.Warn("offline: discard partial install", zap.Error(derr))
				}
			}
			return fmt.Errorf("store %s: %w", entry.URL, err)
		}
	}
	return nil
}

func (m *Manager) manifestRequest(ctx context.Context, ref string) (*http.Request, error) {
	target, err := m.resolve(ref)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", ref, err)
	}
	return req, nil
}

func (m *Manager) fetchManifestEntry(ctx context.Context, ref string) (models.CacheEntry, error) {
	req, err := m.manifestRequest(ctx, ref)
	if err != nil {
		return models.CacheEntry{}, err
	}
	resp, err := m.next.RoundTrip(req)
	if err != nil {
		return models.CacheEntry{}, fmt.Errorf("fetch %s: %w", ref, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.CacheEntry{}, fmt.Errorf("fetch %s: status %d", ref, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.CacheEntry{}, fmt.Errorf("read %s: %w", ref, err)
	}
	return m.entryFor(req, resp, body), nil
}

func (m *Manager) resolve(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse manifest entry %q: %w", ref, err)
	}
	return m.origin.ResolveReference(u).String(), nil
}

func (m *Manager) entryFor(req *http.Request, resp *http.Response, body []byte) models.CacheEntry {
	return models.CacheEntry{
		Key:      CanonicalKey(req, m.vary),
		Method:   req.Method,
		URL:      req.URL.String(),
		Status:   resp.StatusCode,
		Header:   resp.Header.Clone(),
		Body:     body,
		StoredAt: m.now().UTC(),
	}
}

// Activate makes the current namespace the serving one. Every other namespace
// is deleted before the manager starts answering from the cache; a failed
// deletion is logged and does not block activation.
func (m *Manager) Activate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.State() {
	case StateActive:
		return nil
	case StateInstalled:
	default:
		ok, err := m.Installed(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotInstalled
		}
	}

	names, err := m.store.Namespaces(ctx)
	if err != nil {
		return fmt.Errorf("offline: list namespaces: %w", err)
	}
	deleted := 0
	for _, name := range names {
		if name == m.version {
			continue
		}
		existed, err := m.store.DeleteNamespace(ctx, name)
		if err != nil {
			m.logger.Warn("offline: delete superseded namespace", zap.String("namespace", name), zap.Error(err))
			continue
		}
		if existed {
			deleted++
			m.logger.Info("offline: deleted superseded namespace", zap.String("namespace", name))
		}
	}
	m.metrics.ObserveNamespacesDeleted(deleted)

	m.state.Store(int32(StateActive))
	m.logger.Info("offline cache active", zap.String("version", m.version))
	return nil
}

// Start installs the current namespace unless an earlier run already did,
// then activates it.
func (m *Manager) Start(ctx context.Context) error {
	ok, err := m.Installed(ctx)
	if err != nil {
		return err
	}
	if !ok {
		if err := m.Install(ctx); err != nil {
			return err
		}
	}
	return m.Activate(ctx)
}

// RoundTrip implements http.RoundTripper. Only GET requests issued after
// activation are answered from, or recorded into, the cache.
func (m *Manager) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet || m.State() != StateActive {
		m.metrics.ObserveLookup(metrics.LookupBypass)
		return m.next.RoundTrip(req)
	}

	ctx := req.Context()
	key := CanonicalKey(req, m.vary)

	entry, ok, err := m.store.Match(ctx, m.version, key)
	switch {
	case err != nil:
		m.metrics.ObserveLookup(metrics.LookupError)
		m.logger.Warn("offline: cache lookup failed", zap.String("url", req.URL.String()), zap.Error(err))
	case ok:
		m.hits.Add(1)
		m.metrics.ObserveLookup(metrics.LookupHit)
		return cachedResponse(req, entry), nil
	default:
		m.metrics.ObserveLookup(metrics.LookupMiss)
	}
	m.misses.Add(1)

	resp, err := m.next.RoundTrip(req)
	if err != nil {
		return nil, &FetchError{URL: req.URL.String(), Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		m.metrics.ObserveStore(metrics.StoreSkipped)
		return resp, nil
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, &FetchError{URL: req.URL.String(), Err: err}
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))

	m.storeAsync(context.WithoutCancel(ctx), m.entryFor(req, resp, body))
	return resp, nil
}

func (m *Manager) storeAsync(ctx context.Context, entry models.CacheEntry) {
	m.writes.Add(1)
	go func() {
		defer m.writes.Done()
		err := m.store.Put(ctx, m.version, entry)
		if errors.Is(err, models.ErrNamespaceNotFound) {
			// The namespace was cleared or superseded by another process.
			m.metrics.ObserveStore(metrics.StoreSkipped)
			m.logger.Info("offline: namespace gone, entry not cached",
				zap.String("version", m.version), zap.String("url", entry.URL))
			return
		}
		if err != nil {
			m.metrics.ObserveStore(metrics.StoreError)
			m.logger.Warn("offline: cache write failed", zap.String("url", entry.URL), zap.Error(err))
			return
		}
		m.metrics.ObserveStore(metrics.StoreStored)
	}()
}

// Wait blocks until all background cache writes have finished.
func (m *Manager) Wait() {
	m.writes.Wait()
}

// Stats reports the current namespace contents and lookup counters.
func (m *Manager) Stats(ctx context.Context) (models.CacheStats, error) {
	n, err := m.store.Len(ctx, m.version)
	if err != nil {
		return models.CacheStats{}, fmt.Errorf("offline: stats: %w", err)
	}
	names, err := m.store.Namespaces(ctx)
	if err != nil {
		return models.CacheStats{}, fmt.Errorf("offline: stats: %w", err)
	}
	return models.CacheStats{
		Namespace:  m.version,
		Entries:    n,
		Hits:       m.hits.Load(),
		Misses:     m.misses.Load(),
		Namespaces: names,
	}, nil
}

// Clear deletes every namespace, the current one included, and returns the
// manager to StateNew.
func (m *Manager) Clear(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes.Wait()

	names, err := m.store.Namespaces(ctx)
	if err != nil {
		return 0, fmt.Errorf("offline: clear: %w", err)
	}
	deleted := 0
	for _, name := range names {
		existed, err := m.store.DeleteNamespace(ctx, name)
		if err != nil {
			return deleted, fmt.Errorf("offline: clear %s: %w", name, err)
		}
		if existed {
			deleted++
		}
	}
	m.state.Store(int32(StateNew))
	return deleted, nil
}

func cachedResponse(req *http.Request, entry models.CacheEntry) *http.Response {
	header := entry.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", entry.Status, http.StatusText(entry.Status)),
		StatusCode:    entry.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(entry.Body)),
		ContentLength: int64(len(entry.Body)),
		Request:       req,
	}
}
