package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/centelha-ai/centelha/pkg/models"
)

func formatOptions(opts models.Options) string {
	var b strings.Builder
	b.WriteString("SUBJECTS\n")
	for _, s := range opts.Subjects {
		fmt.Fprintf(&b, "  %s\n", s)
	}
	fmt.Fprintf(&b, "\n%-16s %-22s %s\n", "STAGE", "LABEL", "GRADES")
	b.WriteString(strings.Repeat("-", 90) + "\n")
	for _, st := range opts.Stages {
		fmt.Fprintf(&b, "%-16s %-22s %s\n", st.Stage, st.Label, strings.Join(st.Grades, ", "))
	}
	return b.String()
}

func formatCacheStats(stats models.CacheStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Version:    %s\n", stats.Namespace)
	fmt.Fprintf(&b, "Entries:    %d\n", stats.Entries)
	if len(stats.Namespaces) == 0 {
		b.WriteString("Namespaces: (none)\n")
	} else {
		fmt.Fprintf(&b, "Namespaces: %s\n", strings.Join(stats.Namespaces, ", "))
	}
	return b.String()
}

func formatHistoryEntries(entries []models.AuditEntry) string {
	if len(entries) == 0 {
		return "No history entries found.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-38s %-20s %-18s %6s %8s %-20s\n",
		"REQUEST ID", "SUBJECT", "OUTCOME", "STATUS", "LATENCY", "TIME")
	b.WriteString(strings.Repeat("-", 116) + "\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "%-38s %-20s %-18s %6d %6dms %-20s\n",
			e.RequestID, truncate(e.Subject, 20), e.Outcome, e.StatusCode,
			e.LatencyMs, e.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return b.String()
}

func formatHistoryEntry(e models.AuditEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Request ID:    %s\n", e.RequestID)
	fmt.Fprintf(&b, "Topic:         %s\n", e.Topic)
	fmt.Fprintf(&b, "Subject:       %s\n", e.Subject)
	fmt.Fprintf(&b, "Stage:         %s (%s)\n", e.Stage, e.Grade)
	fmt.Fprintf(&b, "Model:         %s\n", e.Model)
	fmt.Fprintf(&b, "Outcome:       %s\n", e.Outcome)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, "Status:        %d\n", e.StatusCode)
	}
	if e.ErrorMessage != "" {
		fmt.Fprintf(&b, "Error:         %s\n", e.ErrorMessage)
	}
	fmt.Fprintf(&b, "Latency:       %dms\n", e.LatencyMs)
	fmt.Fprintf(&b, "Tokens:        %d prompt / %d completion / %d total\n",
		e.PromptTokens, e.CompletionTokens, e.TotalTokens)
	fmt.Fprintf(&b, "Time:          %s\n", e.CreatedAt.Format(time.RFC3339))
	if e.Title != "" {
		fmt.Fprintf(&b, "\n%s\n[%s]\n\nQue tal... %s\n", e.Title, e.Format, e.Hook)
	}
	if e.Prompt != "" {
		fmt.Fprintf(&b, "\n--- Prompt ---\n%s\n", e.Prompt)
	}
	if e.ResponseBody != "" {
		fmt.Fprintf(&b, "\n--- Response Body ---\n%s\n", e.ResponseBody)
	}
	return b.String()
}

func formatHistoryStats(stats []models.AuditStat) string {
	if len(stats) == 0 {
		return "No history stats found.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-30s %-18s %-12s %8s\n", "SUBJECT", "OUTCOME", "DAY", "COUNT")
	b.WriteString(strings.Repeat("-", 71) + "\n")
	for _, s := range stats {
		fmt.Fprintf(&b, "%-30s %-18s %-12s %8d\n", truncate(s.Subject, 30), s.Outcome, s.Day, s.Count)
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
