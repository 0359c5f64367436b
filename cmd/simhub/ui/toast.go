package ui

import (
	"fmt"
	"strings"
	"time"

	"simhub/internal/hub"
	"simhub/internal/registry"
)

// toast is one transient notification with an absolute expiry.
type toast struct {
	message  string
	severity registry.Severity
	expires  time.Time
}

// toastStack holds live toasts, newest last. Pruning happens on the shell's
// tick; there is no per-toast timer.
type toastStack struct {
	items []toast
	max   int
}

func newToastStack() *toastStack {
	return &toastStack{max: 4}
}

func (t *toastStack) push(message string, severity registry.Severity, ttl time.Duration) {
	t.items = append(t.items, toast{
		message:  message,
		severity: severity,
		expires:  time.Now().Add(ttl),
	})
	if len(t.items) > t.max {
		t.items = t.items[len(t.items)-t.max:]
	}
}

func (t *toastStack) prune(now time.Time) {
	live := t.items[:0]
	for _, item := range t.items {
		if item.expires.After(now) {
			live = append(live, item)
		}
	}
	t.items = live
}

func (t *toastStack) render(theme Theme) string {
	if len(t.items) == 0 {
		return ""
	}
	var b strings.Builder
	for _, item := range t.items {
		style := theme.ToastInfo
		switch item.severity {
		case registry.SeverityOK:
			style = theme.ToastOK
		case registry.SeverityWarn:
			style = theme.ToastWarn
		case registry.SeverityBad:
			style = theme.ToastBad
		case registry.SeverityLegendary:
			style = theme.ToastLegendary
		}
		b.WriteString(style.Render(item.message))
		b.WriteString("\n")
	}
	return b.String()
}

// achievementToast phrases an unlock and maps its tier to a toast severity.
func achievementToast(rec hub.AchievementRecord) (string, registry.Severity) {
	msg := fmt.Sprintf("Achievement Unlocked: [%s] %s", rec.Tier, rec.Title)
	switch rec.Tier {
	case hub.TierLegendary:
		return msg, registry.SeverityLegendary
	case hub.TierGold:
		return msg, registry.SeverityWarn
	case hub.TierSilver:
		return msg, registry.SeverityInfo
	default:
		return msg, registry.SeverityOK
	}
}
