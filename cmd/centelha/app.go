package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	valkeygo "github.com/valkey-io/valkey-go"
	"go.uber.org/zap"

	"github.com/centelha-ai/centelha/pkg/audit"
	cachememory "github.com/centelha-ai/centelha/pkg/cache/memory"
	cachesqlite "github.com/centelha-ai/centelha/pkg/cache/sqlite"
	cachevalkey "github.com/centelha-ai/centelha/pkg/cache/valkey"
	"github.com/centelha-ai/centelha/pkg/config"
	"github.com/centelha-ai/centelha/pkg/credential"
	"github.com/centelha-ai/centelha/pkg/generation"
	"github.com/centelha-ai/centelha/pkg/kv"
	"github.com/centelha-ai/centelha/pkg/logging"
	"github.com/centelha-ai/centelha/pkg/metrics"
	"github.com/centelha-ai/centelha/pkg/offline"
)

var (
	errOfflineDisabled = errors.New("offline cache is disabled in config")
	errHistoryDisabled = errors.New("generation history is disabled in config")
)

// app holds the collaborators shared by every command. offline and history
// are nil when their config sections are disabled.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	recorder *metrics.Recorder
	creds    *credential.Store
	offline  *offline.Manager
	history  *audit.Logger
	gen      *generation.Client

	closers []func() error
}

type kvStore interface {
	credential.KV
	Close() error
}

func openApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		recorder: metrics.NewRecorder(nil),
	}
	a.closers = append(a.closers, func() error {
		_ = logger.Sync()
		return nil
	})

	if err := a.wire(ctx); err != nil {
		return nil, errors.Join(err, a.Close())
	}
	return a, nil
}

func (a *app) wire(ctx context.Context) error {
	cfg := a.cfg

	var vk valkeygo.Client
	if cfg.Credential.Backend == config.BackendValkey || (cfg.Offline.Enabled && cfg.Offline.Backend == config.BackendValkey) {
		client, err := cachevalkey.Dial(ctx, cfg.Valkey)
		if err != nil {
			return err
		}
		vk = client
		a.closers = append(a.closers, func() error {
			client.Close()
			return nil
		})
	}

	var store kvStore
	switch cfg.Credential.Backend {
	case config.BackendValkey:
		store = kv.NewValkey(vk, cfg.Valkey.Prefix)
	case config.BackendMemory:
		store = kv.NewMemory()
	default:
		s, err := kv.NewSQLite(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open credential store: %w", err)
		}
		store = s
	}
	a.closers = append(a.closers, store.Close)
	a.creds = credential.New(store, cfg.Credential.Slot)

	genOpts := []generation.Option{
		generation.WithLogger(a.logger),
		generation.WithMetrics(a.recorder),
	}

	if cfg.Offline.Enabled {
		var entries offline.Store
		switch cfg.Offline.Backend {
		case config.BackendValkey:
			entries = cachevalkey.New(vk, cfg.Valkey.Prefix)
		case config.BackendMemory:
			entries = cachememory.New()
		default:
			c, err := cachesqlite.New(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open offline cache: %w", err)
			}
			entries = c
		}
		a.closers = append(a.closers, entries.Close)

		m, err := offline.New(cfg.Offline, entries,
			offline.WithLogger(a.logger),
			offline.WithMetrics(a.recorder),
		)
		if err != nil {
			return err
		}
		a.offline = m
		// Pending background writes must land before the store closes.
		a.closers = append(a.closers, func() error {
			m.Wait()
			return nil
		})
		genOpts = append(genOpts, generation.WithHTTPClient(&http.Client{Transport: m}))
	}

	if cfg.Audit.Enabled {
		h, err := audit.New(cfg.Audit, a.logger)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		a.history = h
		a.closers = append(a.closers, h.Close)
		genOpts = append(genOpts, generation.WithAuditor(h))
	}

	gen, err := generation.New(cfg.Generation, a.creds, genOpts...)
	if err != nil {
		return err
	}
	a.gen = gen
	return nil
}

// Close releases everything in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *app) requireOffline() (*offline.Manager, error) {
	if a.offline == nil {
		return nil, errOfflineDisabled
	}
	return a.offline, nil
}

func (a *app) requireHistory() (*audit.Logger, error) {
	if a.history == nil {
		return nil, errHistoryDisabled
	}
	return a.history, nil
}
