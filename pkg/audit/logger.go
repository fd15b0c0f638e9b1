// Package audit keeps a queryable history of generation calls in SQLite.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/centelha-ai/centelha/pkg/models"
)

// Logger writes and queries history entries in a dedicated SQLite database.
type Logger struct {
	db      *sql.DB
	cfg     models.AuditConfig
	log     *zap.Logger
	done    chan struct{}
	wg      sync.WaitGroup
	include map[string]bool
}

// New opens the history database, creates the schema and starts the hourly
// retention sweep. A nil logger discards sweep errors.
func New(cfg models.AuditConfig, log *zap.Logger) (*Logger, error) {
	db, err := sql.Open("sqlite", cfg.DBPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate audit db: %w", err)
	}

	inc := make(map[string]bool)
	for _, v := range cfg.Include {
		inc[v] = true
	}
	if log == nil {
		log = zap.NewNop()
	}

	l := &Logger{
		db:      db,
		cfg:     cfg,
		log:     log,
		done:    make(chan struct{}),
		include: inc,
	}

	l.wg.Add(1)
	go l.retentionLoop()

	return l, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS generation_log (
		request_id        TEXT PRIMARY KEY,
		topic             TEXT NOT NULL,
		subject           TEXT NOT NULL,
		stage             TEXT NOT NULL,
		grade             TEXT NOT NULL,
		model             TEXT NOT NULL,
		outcome           TEXT NOT NULL,
		error_message     TEXT,
		status_code       INTEGER,
		title             TEXT,
		format            TEXT,
		hook              TEXT,
		prompt            TEXT,
		response_body     TEXT,
		prompt_tokens     INTEGER,
		completion_tokens INTEGER,
		total_tokens      INTEGER,
		latency_ms        INTEGER,
		created_at        DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_generation_subject ON generation_log(subject)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_generation_created ON generation_log(created_at)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_generation_outcome ON generation_log(outcome)`)
	return err
}

// Log inserts an entry, dropping the prompt and raw response unless the
// configuration includes them.
func (l *Logger) Log(ctx context.Context, entry models.AuditEntry) error {
	if l == nil || l.db == nil {
		return nil
	}

	prompt := entry.Prompt
	respBody := entry.ResponseBody
	if !l.include["prompts"] {
		prompt = ""
	}
	if !l.include["responses"] {
		respBody = ""
	}
	if l.cfg.MaxBodySize > 0 {
		prompt = truncateUTF8(prompt, l.cfg.MaxBodySize)
		respBody = truncateUTF8(respBody, l.cfg.MaxBodySize)
	}
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO generation_log
		(request_id, topic, subject, stage, grade, model, outcome, error_message,
		 status_code, title, format, hook, prompt, response_body,
		 prompt_tokens, completion_tokens, total_tokens, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RequestID, entry.Topic, entry.Subject, entry.Stage, entry.Grade,
		entry.Model, entry.Outcome, entry.ErrorMessage, entry.StatusCode,
		entry.Title, entry.Format, entry.Hook, prompt, respBody,
		entry.PromptTokens, entry.CompletionTokens, entry.TotalTokens,
		entry.LatencyMs, createdAt.UTC(),
	)
	return err
}

// Query returns entries matching opts, newest first.
func (l *Logger) Query(ctx context.Context, opts models.AuditQueryOpts) ([]models.AuditEntry, error) {
	q := `SELECT request_id, topic, subject, stage, grade, model, outcome, error_message,
		status_code, title, format, hook, prompt, response_body,
		prompt_tokens, completion_tokens, total_tokens, latency_ms, created_at
		FROM generation_log WHERE 1=1`
	var args []any

	if opts.RequestID != "" {
		q += " AND request_id = ?"
		args = append(args, opts.RequestID)
	}
	if opts.Subject != "" {
		q += " AND subject = ?"
		args = append(args, opts.Subject)
	}
	if opts.Outcome != "" {
		q += " AND outcome = ?"
		args = append(args, opts.Outcome)
	}
	if !opts.Since.IsZero() {
		q += " AND created_at >= ?"
		args = append(args, opts.Since.UTC())
	}

	q += " ORDER BY created_at DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	q += " LIMIT ?"
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		var errMsg, title, format, hook, prompt, respBody sql.NullString
		if err := rows.Scan(
			&e.RequestID, &e.Topic, &e.Subject, &e.Stage, &e.Grade,
			&e.Model, &e.Outcome, &errMsg, &e.StatusCode,
			&title, &format, &hook, &prompt, &respBody,
			&e.PromptTokens, &e.CompletionTokens, &e.TotalTokens,
			&e.LatencyMs, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		e.ErrorMessage = errMsg.String
		e.Title = title.String
		e.Format = format.String
		e.Hook = hook.String
		e.Prompt = prompt.String
		e.ResponseBody = respBody.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Stats returns counts grouped by subject, outcome and day.
func (l *Logger) Stats(ctx context.Context) ([]models.AuditStat, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT subject, outcome, date(created_at) as day, count(*) as cnt
		 FROM generation_log GROUP BY subject, outcome, day
		 ORDER BY day DESC, subject, outcome`)
	if err != nil {
		return nil, fmt.Errorf("audit stats: %w", err)
	}
	defer rows.Close()

	var stats []models.AuditStat
	for rows.Next() {
		var s models.AuditStat
		var day sql.NullString
		if err := rows.Scan(&s.Subject, &s.Outcome, &day, &s.Count); err != nil {
			return nil, fmt.Errorf("scan audit stat: %w", err)
		}
		s.Day = day.String
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// Cleanup deletes entries older than the configured retention period.
func (l *Logger) Cleanup(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -l.cfg.RetentionDays)
	res, err := l.db.ExecContext(ctx,
		`DELETE FROM generation_log WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("audit cleanup: %w", err)
	}
	return res.RowsAffected()
}

// Close stops the retention goroutine and closes the database.
func (l *Logger) Close() error {
	close(l.done)
	l.wg.Wait()
	return l.db.Close()
}

func (l *Logger) retentionLoop() {
	defer l.wg.Done()
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			n, err := l.Cleanup(context.Background())
			if err != nil {
				l.log.Warn("audit retention sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				l.log.Info("audit retention sweep", zap.Int64("deleted", n))
			}
		}
	}
}

// truncateUTF8 cuts s to at most limit bytes without splitting a character.
func truncateUTF8(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
