// Package chrono is the time-telemetry surface: where the hours went, which
// transitions dominate, and a focus timer that pays XP for unbroken stretches.
package chrono

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"simhub/internal/insight"
	"simhub/internal/registry"
)

// App is the chrono module descriptor, registered under the "time" id.
type App struct {
	log *zap.Logger
}

func New(log *zap.Logger) *App {
	if log == nil {
		log = zap.NewNop()
	}
	return &App{log: log.Named("chrono")}
}

func (a *App) ID() string            { return "time" }
func (a *App) Name() string          { return "Time" }
func (a *App) Icon() string          { return "◷" }
func (a *App) Heavy() bool           { return false }
func (a *App) PreloadHint() []string { return []string{"analytics"} }

func (a *App) Mount(ctx context.Context, caps registry.Capabilities) (registry.Instance, error) {
	return &instance{caps: caps}, nil
}

type tickMsg time.Time

type instance struct {
	caps       registry.Capabilities
	focusSince time.Time
	closed     bool
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (i *instance) Init() tea.Cmd { return nil }

func (i *instance) Update(msg tea.Msg) tea.Cmd {
	if i.closed {
		return nil
	}
	switch msg := msg.(type) {
	case tickMsg:
		if i.focusSince.IsZero() {
			return nil
		}
		return tick()
	case tea.KeyMsg:
		if msg.String() == "f" {
			return i.toggleFocus()
		}
	}
	return nil
}

// toggleFocus starts the timer, or stops it and pays one XP per full minute,
// capped so an abandoned timer cannot mint a progression spike.
func (i *instance) toggleFocus() tea.Cmd {
	if i.focusSince.IsZero() {
		i.focusSince = time.Now()
		return tick()
	}
	minutes := int(time.Since(i.focusSince).Minutes())
	i.focusSince = time.Time{}
	if minutes < 1 {
		i.caps.Toast("Focus session under a minute; no reward.", registry.SeverityInfo, 2*time.Second)
		return nil
	}
	if minutes > 30 {
		minutes = 30
	}
	i.caps.Store.AddXP(minutes, "Focus session", "time")
	i.caps.Store.TrackStrategicSignal(map[string]float64{"analyst": 0.5})
	i.caps.Toast(fmt.Sprintf("Focus session: +%d XP.", minutes), registry.SeverityOK, 3*time.Second)
	return nil
}

func (i *instance) Unmount() error {
	i.closed = true
	return nil
}

var (
	headStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("75"))
	barStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func (i *instance) View(width, height int) string {
	s := i.caps.Store.GetState()

	var b strings.Builder
	b.WriteString(headStyle.Render("Time"))
	b.WriteString("\n\n")
	b.WriteString(renderTimeSpent(s.Telemetry.TimeSpent))
	b.WriteString("\n")
	b.WriteString(headStyle.Render("Habits"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  Night launches: %d\n", s.Profile.NightLaunches))
	b.WriteString(renderTopTransitions(s.Telemetry.TransitionMatrix))
	b.WriteString("\n")

	if !i.focusSince.IsZero() {
		b.WriteString(fmt.Sprintf("Focus running: %s\n", time.Since(i.focusSince).Round(time.Second)))
	}
	b.WriteString(dimStyle.Render("f start/stop focus timer"))
	return b.String()
}

func renderTimeSpent(spent map[string]int64) string {
	if len(spent) == 0 {
		return dimStyle.Render("  No sessions recorded yet.") + "\n"
	}
	type row struct {
		app     string
		seconds int64
	}
	rows := make([]row, 0, len(spent))
	var max int64
	for app, sec := range spent {
		rows = append(rows, row{app, sec})
		if sec > max {
			max = sec
		}
	}
	sort.Slice(rows, func(a, b int) bool {
		if rows[a].seconds != rows[b].seconds {
			return rows[a].seconds > rows[b].seconds
		}
		return rows[a].app < rows[b].app
	})
	if max == 0 {
		max = 1
	}

	var b strings.Builder
	for _, r := range rows {
		width := int(r.seconds * 20 / max)
		b.WriteString(fmt.Sprintf("  %-10s %s %s\n",
			r.app, barStyle.Render(strings.Repeat("█", width)), insight.FormatTime(r.seconds)))
	}
	return b.String()
}

func renderTopTransitions(matrix map[string]map[string]int) string {
	type edge struct {
		from, to string
		count    int
	}
	var edges []edge
	for from, row := range matrix {
		for to, n := range row {
			edges = append(edges, edge{from, to, n})
		}
	}
	if len(edges) == 0 {
		return ""
	}
	sort.Slice(edges, func(a, b int) bool {
		if edges[a].count != edges[b].count {
			return edges[a].count > edges[b].count
		}
		if edges[a].from != edges[b].from {
			return edges[a].from < edges[b].from
		}
		return edges[a].to < edges[b].to
	})
	if len(edges) > 3 {
		edges = edges[:3]
	}

	var b strings.Builder
	for _, e := range edges {
		b.WriteString(fmt.Sprintf("  %s → %s (%dx)\n", e.from, e.to, e.count))
	}
	return b.String()
}
