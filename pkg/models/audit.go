package models

import "time"

// AuditEntry records the outcome of a single generation call.
type AuditEntry struct {
	RequestID        string    `json:"request_id"`
	Topic            string    `json:"topic"`
	Subject          string    `json:"subject"`
	Stage            string    `json:"stage"`
	Grade            string    `json:"grade"`
	Model            string    `json:"model"`
	Outcome          string    `json:"outcome"`
	ErrorMessage     string    `json:"error_message,omitempty"`
	StatusCode       int       `json:"status_code"`
	Title            string    `json:"title,omitempty"`
	Format           string    `json:"format,omitempty"`
	Hook             string    `json:"hook,omitempty"`
	Prompt           string    `json:"prompt,omitempty"`
	ResponseBody     string    `json:"response_body,omitempty"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	LatencyMs        int64     `json:"latency_ms"`
	CreatedAt        time.Time `json:"created_at"`
}

// AuditConfig controls the generation history subsystem.
type AuditConfig struct {
	Enabled       bool     `yaml:"enabled"`
	DBPath        string   `yaml:"db_path"`
	RetentionDays int      `yaml:"retention_days"`
	Include       []string `yaml:"include"`       // "prompts", "responses"
	MaxBodySize   int      `yaml:"max_body_size"` // bytes
}

// AuditQueryOpts specifies filters for querying audit entries.
type AuditQueryOpts struct {
	Subject   string
	Outcome   string
	Since     time.Time
	RequestID string
	Limit     int
}

// AuditStat holds aggregate audit counts for a subject/outcome/day combination.
type AuditStat struct {
	Subject string
	Outcome string
	Day     string
	Count   int
}
