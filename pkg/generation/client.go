// Package generation sends one lesson-idea request to the chat-completions
// endpoint and classifies every way it can fail.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/centelha-ai/centelha/pkg/config"
	"github.com/centelha-ai/centelha/pkg/logging"
	"github.com/centelha-ai/centelha/pkg/metrics"
	"github.com/centelha-ai/centelha/pkg/models"
	"github.com/centelha-ai/centelha/pkg/prompt"
)

// Credentials supplies the bearer token for each call.
type Credentials interface {
	Get(ctx context.Context) (token string, ok bool, err error)
}

// Auditor records the outcome of a call.
type Auditor interface {
	Log(ctx context.Context, entry models.AuditEntry) error
}

// Client performs generation calls. It is safe for concurrent use.
type Client struct {
	cfg       config.GenerationConfig
	creds     Credentials
	assembler *prompt.Assembler
	http      *http.Client
	logger    *zap.Logger
	metrics   *metrics.Recorder
	auditor   Auditor
	now       func() time.Time
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. Its Timeout is ignored; calls are
// bounded by the configured generation timeout instead.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(r *metrics.Recorder) Option {
	return func(c *Client) { c.metrics = r }
}

// WithAuditor records each call through a.
func WithAuditor(a Auditor) Option {
	return func(c *Client) { c.auditor = a }
}

// New creates a Client. cfg is copied and never changes afterwards.
func New(cfg config.GenerationConfig, creds Credentials, opts ...Option) (*Client, error) {
	asm, err := prompt.New(cfg.UserTemplate)
	if err != nil {
		return nil, err
	}
	c := &Client{
		cfg:       cfg,
		creds:     creds,
		assembler: asm,
		http:      &http.Client{},
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// call collects what one Generate invocation learned, for logging and audit.
type call struct {
	id       string
	req      models.GenerationRequest
	prompt   prompt.Prompt
	status   int
	body     []byte
	usage    *models.Usage
	result   models.GenerationResult
	started  time.Time
	duration time.Duration
}

// Generate makes exactly one attempt. Without a credential, or with invalid
// input, it returns before any network traffic.
func (c *Client) Generate(ctx context.Context, req models.GenerationRequest) (models.GenerationResult, error) {
	cl := &call{id: uuid.NewString(), req: req, started: c.now()}
	err := c.generate(ctx, cl)
	cl.duration = c.now().Sub(cl.started)
	c.finish(ctx, cl, err)
	if err != nil {
		return models.GenerationResult{}, err
	}
	return cl.result, nil
}

func (c *Client) generate(ctx context.Context, cl *call) error {
	token, ok, err := c.creds.Get(ctx)
	if err != nil {
		return fmt.Errorf("read credential: %w", err)
	}
	if !ok {
		return ErrCredentialRequired
	}
	if err := checkRequest(cl.req); err != nil {
		return err
	}

	p, err := c.assembler.Build(cl.req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	cl.prompt = p

	temperature := c.cfg.Temperature
	maxTokens := c.cfg.MaxTokens
	payload, err := json.Marshal(models.ChatCompletionRequest{
		Model:          c.cfg.Model,
		Messages:       p.Messages(),
		ResponseFormat: &models.ResponseFormat{Type: "json_object"},
		Temperature:    &temperature,
		MaxTokens:      &maxTokens,
	})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	c.logger.Debug("sending generation request",
		zap.String("request_id", cl.id),
		zap.String("model", c.cfg.Model),
		logging.Redact("credential", token),
	)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Err: fmt.Errorf("read response: %w", err)}
	}
	cl.status = resp.StatusCode
	cl.body = body

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RemoteError{StatusCode: resp.StatusCode, Message: remoteMessage(resp.StatusCode, body)}
	}

	result, usage, err := ValidateEnvelope(body)
	cl.usage = usage
	if err != nil {
		return err
	}
	cl.result = result
	return nil
}

func checkRequest(req models.GenerationRequest) error {
	if strings.TrimSpace(req.Topic) == "" {
		return fmt.Errorf("%w: topic is required", ErrInvalidInput)
	}
	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalidInput)
	}
	if !models.IsSubject(subject) {
		return fmt.Errorf("%w: unknown subject %q", ErrInvalidInput, req.Subject)
	}
	if !req.Stage.Valid() {
		return fmt.Errorf("%w: unknown stage %q", ErrInvalidInput, req.Stage)
	}
	if !req.Stage.HasGrade(req.Grade) {
		return fmt.Errorf("%w: grade %q is not part of stage %q", ErrInvalidInput, req.Grade, req.Stage)
	}
	return nil
}

// remoteMessage extracts error.message from a failed response body.
func remoteMessage(status int, body []byte) string {
	var errResp models.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != nil {
		if msg := strings.TrimSpace(errResp.Error.Message); msg != "" {
			return msg
		}
	}
	return fmt.Sprintf("request failed with status %d", status)
}

func (c *Client) finish(ctx context.Context, cl *call, err error) {
	kind := Kind(err)
	c.metrics.ObserveGeneration(kind, cl.duration)

	fields := []zap.Field{
		zap.String("request_id", cl.id),
		zap.String("outcome", kind),
		zap.String("subject", cl.req.Subject),
		zap.String("stage", string(cl.req.Stage)),
		zap.Int("status", cl.status),
		zap.Duration("latency", cl.duration),
	}
	if err != nil {
		c.logger.Warn("generation failed", append(fields, zap.Error(err))...)
	} else {
		c.logger.Info("generation completed", fields...)
	}

	if c.auditor == nil {
		return
	}
	entry := models.AuditEntry{
		RequestID:    cl.id,
		Topic:        cl.req.Topic,
		Subject:      cl.req.Subject,
		Stage:        string(cl.req.Stage),
		Grade:        cl.req.Grade,
		Model:        c.cfg.Model,
		Outcome:      kind,
		StatusCode:   cl.status,
		Title:        cl.result.Title,
		Format:       cl.result.Format,
		Hook:         cl.result.Hook,
		Prompt:       cl.prompt.User,
		ResponseBody: string(cl.body),
		LatencyMs:    cl.duration.Milliseconds(),
		CreatedAt:    cl.started.UTC(),
	}
	if err != nil {
		entry.ErrorMessage = err.Error()
	}
	if cl.usage != nil {
		entry.PromptTokens = cl.usage.PromptTokens
		entry.CompletionTokens = cl.usage.CompletionTokens
		entry.TotalTokens = cl.usage.TotalTokens
	}
	if aerr := c.auditor.Log(context.WithoutCancel(ctx), entry); aerr != nil {
		c.logger.Warn("audit log error", zap.String("request_id", cl.id), zap.Error(aerr))
	}
}
