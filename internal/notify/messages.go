package notify

import (
	"strings"

	"taskping/internal/upstream"
)

// reminderMessage renders the outbound text for a reminder kind.
func reminderMessage(task upstream.Task, kind Kind) string {
	name := strings.TrimSpace(task.Name)
	if name == "" {
		name = "(untitled task)"
	}

	var b strings.Builder
	switch kind {
	case KindDueSoon:
		b.WriteString("⏰ Reminder: task '")
		b.WriteString(name)
		b.WriteString("' is due soon.")
	case KindOverdue:
		b.WriteString("🚨 Urgent: task '")
		b.WriteString(name)
		b.WriteString("' is overdue.")
	case KindDaily:
		b.WriteString("📋 Daily summary: pending task '")
		b.WriteString(name)
		b.WriteString("' needs review.")
	default:
		b.WriteString("📱 Task update: ")
		b.WriteString(name)
	}

	if u := strings.TrimSpace(task.URL); u != "" {
		b.WriteString("\n")
		b.WriteString(u)
	}
	return b.String()
}
