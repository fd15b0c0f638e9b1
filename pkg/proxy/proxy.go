// Package proxy serves the Centelha HTTP API and relays static assets from the
// origin through the offline cache.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/centelha-ai/centelha/pkg/config"
	"github.com/centelha-ai/centelha/pkg/credential"
	"github.com/centelha-ai/centelha/pkg/generation"
	"github.com/centelha-ai/centelha/pkg/metrics"
	"github.com/centelha-ai/centelha/pkg/models"
	"github.com/centelha-ai/centelha/pkg/offline"
)

const maxRequestBody = 64 << 10

// Generator produces lesson sparks.
type Generator interface {
	Generate(ctx context.Context, req models.GenerationRequest) (models.GenerationResult, error)
}

// Credentials manages the stored API token.
type Credentials interface {
	Get(ctx context.Context) (string, bool, error)
	Set(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// Server is the Centelha app server.
type Server struct {
	cfg     *config.Config
	gen     Generator
	creds   Credentials
	offline *offline.Manager
	assets  *http.Client
	origin  *url.URL
	metrics *metrics.Recorder
	logger  *zap.Logger
	mux     *http.ServeMux
}

// Option customizes a Server.
type Option func(*Server)

// WithOffline relays assets through m and exposes its statistics.
func WithOffline(m *offline.Manager) Option {
	return func(s *Server) { s.offline = m }
}

// WithMetrics exposes r on the configured metrics path when metrics are enabled.
func WithMetrics(r *metrics.Recorder) Option {
	return func(s *Server) { s.metrics = r }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Server wired with all dependencies.
func New(cfg *config.Config, gen Generator, creds Credentials, opts ...Option) (*Server, error) {
	origin, err := url.Parse(cfg.Offline.Origin)
	if err != nil {
		return nil, fmt.Errorf("proxy: parse origin: %w", err)
	}
	s := &Server{
		cfg:    cfg,
		gen:    gen,
		creds:  creds,
		origin: origin,
		logger: zap.NewNop(),
		mux:    http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}

	var transport http.RoundTripper = http.DefaultTransport
	if s.offline != nil {
		transport = s.offline
	}
	s.assets = &http.Client{
		Transport: transport,
		// Redirects are the browser's business.
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}

	s.mux.HandleFunc("/api/generate", s.handleGenerate)
	s.mux.HandleFunc("/api/credential", s.handleCredential)
	s.mux.HandleFunc("/api/options", s.handleOptions)
	s.mux.HandleFunc("/api/cache", s.handleCacheStats)
	s.mux.HandleFunc("/healthz", s.handleHealth)
	if cfg.Metrics.Enabled && s.metrics != nil {
		s.mux.Handle(cfg.Metrics.Path, s.metrics.Handler())
	}
	s.mux.HandleFunc("/", s.handleAsset)
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe starts the server with graceful shutdown support.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("centelha listening", zap.String("addr", s.cfg.Listen))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(shutCtx)
		if s.offline != nil {
			s.offline.Wait()
		}
		return err
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	var req models.GenerationRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_input", "invalid request body")
		return
	}
	if req.Stage == "" {
		req = req.WithStage(models.DefaultStage)
	}

	res, err := s.gen.Generate(r.Context(), req)
	if err != nil {
		kind := generation.Kind(err)
		code := statusFor(kind)
		if code >= http.StatusInternalServerError {
			s.logger.Warn("generate failed", zap.String("outcome", kind), zap.Error(err))
		}
		writeJSONError(w, code, kind, publicMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// statusFor maps a generation failure kind to an HTTP status.
func statusFor(kind string) int {
	switch kind {
	case "credential_required":
		return http.StatusUnauthorized
	case "invalid_input":
		return http.StatusBadRequest
	case "internal":
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

func publicMessage(err error) string {
	var re *generation.RemoteError
	if errors.As(err, &re) {
		return re.Message
	}
	if generation.Kind(err) == "internal" {
		return "internal error"
	}
	return err.Error()
}

type credentialRequest struct {
	Token string `json:"token"`
}

type credentialStatus struct {
	Configured bool `json:"configured"`
}

func (s *Server) handleCredential(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	switch r.Method {
	case http.MethodGet:
		_, ok, err := s.creds.Get(ctx)
		if err != nil {
			s.logger.Error("credential read failed", zap.Error(err))
			writeJSONError(w, http.StatusInternalServerError, "internal", "credential read failed")
			return
		}
		writeJSON(w, http.StatusOK, credentialStatus{Configured: ok})
	case http.MethodPut:
		var body credentialRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&body); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_input", "invalid request body")
			return
		}
		if err := s.creds.Set(ctx, body.Token); err != nil {
			if errors.Is(err, credential.ErrInvalidCredential) {
				writeJSONError(w, http.StatusBadRequest, "invalid_credential", "token must not be empty")
				return
			}
			s.logger.Error("credential write failed", zap.Error(err))
			writeJSONError(w, http.StatusInternalServerError, "internal", "credential write failed")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		if err := s.creds.Clear(ctx); err != nil {
			s.logger.Error("credential clear failed", zap.Error(err))
			writeJSONError(w, http.StatusInternalServerError, "internal", "credential clear failed")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, models.AllOptions())
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	if s.offline == nil {
		writeJSONError(w, http.StatusNotFound, "offline_disabled", "offline cache disabled")
		return
	}
	stats, err := s.offline.Stats(r.Context())
	if err != nil {
		s.logger.Error("cache stats failed", zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, "internal", "cache stats failed")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := map[string]string{"status": "ok"}
	if s.offline != nil {
		status["offline"] = s.offline.State().String()
	}
	writeJSON(w, http.StatusOK, status)
}

// handleAsset relays a static resource from the origin. Requests reach the
// network only when the offline cache cannot answer them.
func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	ref, err := url.Parse("./" + strings.TrimPrefix(r.URL.Path, "/"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_input", "invalid path")
		return
	}
	target := s.origin.ResolveReference(ref)
	target.RawQuery = r.URL.RawQuery

	// HEAD is answered from a GET so it shares the cached copy.
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target.String(), nil)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "internal", "build asset request")
		return
	}
	for _, h := range append([]string{"Accept", "Accept-Language"}, s.cfg.Offline.VaryHeaders...) {
		if v := r.Header.Values(h); len(v) > 0 {
			req.Header[http.CanonicalHeaderKey(h)] = v
		}
	}

	resp, err := s.assets.Do(req)
	if err != nil {
		if errors.Is(err, offline.ErrOffline) {
			writeJSONError(w, http.StatusServiceUnavailable, "offline", "resource unavailable offline")
			return
		}
		s.logger.Warn("asset fetch failed", zap.String("url", target.String()), zap.Error(err))
		writeJSONError(w, http.StatusBadGateway, "network_failure", "asset fetch failed")
		return
	}
	defer resp.Body.Close()

	for k, vals := range resp.Header {
		for _, v := range vals {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	if r.Method == http.MethodGet {
		_, _ = io.Copy(w, resp.Body)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

// writeJSONError encodes the body so messages relayed from the remote
// endpoint stay valid JSON whatever bytes they carry.
func writeJSONError(w http.ResponseWriter, code int, kind, message string) {
	writeJSON(w, code, errorBody{Error: errorDetail{Message: message, Type: kind, Code: code}})
}
