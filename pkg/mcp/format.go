package mcp

import (
	"fmt"
	"strings"

	"github.com/centelha-ai/centelha/pkg/models"
)

// formatResult renders a lesson spark.
func formatResult(res models.GenerationResult) string {
	return fmt.Sprintf("%s\n[%s]\n\nQue tal... %s\n", res.Title, res.Format, res.Hook)
}

// formatOptions lists subjects and the grades of each stage.
func formatOptions(opts models.Options) string {
	var b strings.Builder
	b.WriteString("Subjects:\n")
	for _, s := range opts.Subjects {
		fmt.Fprintf(&b, "  - %s\n", s)
	}
	b.WriteString("\nStages:\n")
	for _, st := range opts.Stages {
		fmt.Fprintf(&b, "  %-16s %-22s %s\n", st.Stage, st.Label, strings.Join(st.Grades, ", "))
	}
	return b.String()
}

// formatCacheStats formats cache stats as text.
func formatCacheStats(stats models.CacheStats) string {
	total := stats.Hits + stats.Misses
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(stats.Hits) / float64(total) * 100
	}
	return fmt.Sprintf("Offline Cache\n"+
		"  Version:    %s\n"+
		"  Entries:    %d\n"+
		"  Hits:       %d\n"+
		"  Misses:     %d\n"+
		"  Hit Rate:   %.1f%%\n"+
		"  Namespaces: %s\n",
		stats.Namespace, stats.Entries, stats.Hits, stats.Misses, hitRate,
		strings.Join(stats.Namespaces, ", "))
}

// formatHistory formats generation history as a text table.
func formatHistory(entries []models.AuditEntry) string {
	if len(entries) == 0 {
		return "No generations found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-20s %-18s %-22s %-18s %8s  %s\n",
		"Time", "Subject", "Topic", "Outcome", "Latency", "Title")
	b.WriteString(strings.Repeat("-", 110) + "\n")
	for _, e := range entries {
		topic := e.Topic
		if len([]rune(topic)) > 22 {
			topic = string([]rune(topic)[:19]) + "..."
		}
		fmt.Fprintf(&b, "%-20s %-18s %-22s %-18s %6dms  %s\n",
			e.CreatedAt.Format("2006-01-02 15:04:05"),
			e.Subject, topic, e.Outcome, e.LatencyMs, e.Title)
	}
	return b.String()
}
