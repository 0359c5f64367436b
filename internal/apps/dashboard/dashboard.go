// Package dashboard is the hub's home screen: a read-only overview of
// progression, unlock gates and behavioral insight. It is the default
// navigation target and the fallback when another module fails to mount.
package dashboard

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"simhub/internal/hub"
	"simhub/internal/insight"
	"simhub/internal/registry"
)

// App is the dashboard module descriptor.
type App struct {
	log *zap.Logger
}

func New(log *zap.Logger) *App {
	if log == nil {
		log = zap.NewNop()
	}
	return &App{log: log.Named("dashboard")}
}

func (a *App) ID() string            { return "dashboard" }
func (a *App) Name() string          { return "Dashboard" }
func (a *App) Icon() string          { return "◈" }
func (a *App) Heavy() bool           { return false }
func (a *App) PreloadHint() []string { return []string{"clicker", "stock"} }

func (a *App) Mount(ctx context.Context, caps registry.Capabilities) (registry.Instance, error) {
	return &instance{caps: caps}, nil
}

type instance struct {
	caps registry.Capabilities
}

func (i *instance) Init() tea.Cmd              { return nil }
func (i *instance) Update(msg tea.Msg) tea.Cmd { return nil }
func (i *instance) Unmount() error             { return nil }

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	lockStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	cardStyle  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)

	xpBar = func() progress.Model {
		p := progress.New(progress.WithSolidFill("212"), progress.WithoutPercentage())
		p.Width = 28
		return p
	}()
)

func (i *instance) View(width, height int) string {
	s := i.caps.Store.GetState()
	report := insight.AnalyzeUserPatterns(s)

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Welcome back, %s", s.Auth.Handle)))
	b.WriteString("\n\n")

	profile := fmt.Sprintf("Level %d  ·  %d XP  ·  %d tokens\n%s next at %d",
		s.Profile.Level, s.Profile.XP, s.Profile.Tokens,
		xpBar.ViewAs(levelProgress(s.Profile.XP, s.Profile.Level)), nextLevelXP(s.Profile.Level))
	b.WriteString(cardStyle.Render(profile))
	b.WriteString("\n\n")

	b.WriteString(titleStyle.Render("Unlocks"))
	b.WriteString("\n")
	b.WriteString(renderUnlocks(s.Profile.Tokens, s.Progression.UnlockedModes))
	b.WriteString("\n")

	b.WriteString(titleStyle.Render("Insight"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  Risk %3.0f   Strategy %3.0f   Most played: %s   Time: %s\n",
		report.RiskTolerance, report.StrategicIndex, report.MostPlayed, insight.FormatTime(report.TotalTime)))
	b.WriteString(dimStyle.Render("  " + report.Hints[0]))
	b.WriteString("\n\n")

	b.WriteString(titleStyle.Render("Recent achievements"))
	b.WriteString("\n")
	b.WriteString(renderAchievements(s.Profile.Achievements))

	return b.String()
}

func nextLevelXP(level int) int {
	// Inverse of the level curve: first xp value that reaches level+1.
	return level * level * 120
}

// levelProgress is the 0..1 position between the current level's xp floor and
// the next one.
func levelProgress(xp, level int) float64 {
	floor := (level - 1) * (level - 1) * 120
	next := nextLevelXP(level)
	if next <= floor {
		return 0
	}
	ratio := float64(xp-floor) / float64(next-floor)
	if ratio < 0 {
		return 0
	}
	if ratio > 1 {
		return 1
	}
	return ratio
}

func renderUnlocks(tokens int, m hub.UnlockedModes) string {
	rows := []struct {
		label string
		need  int
		open  bool
	}{
		{"Clicker: advanced generators", 35, m.ClickerAdvanced},
		{"Geo: ranked mode", 45, m.GeoRanked},
		{"WordForge: competitive mode", 55, m.WordCompetitive},
		{"Stock: pro trading", 65, m.StockPro},
		{"Trolley: dilemma generator", 95, m.TrolleyGenerator},
	}
	var b strings.Builder
	for _, r := range rows {
		if r.open {
			b.WriteString(okStyle.Render(fmt.Sprintf("  ✓ %s", r.label)))
		} else {
			b.WriteString(lockStyle.Render(fmt.Sprintf("  ✗ %s (%d tokens)", r.label, r.need)))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func renderAchievements(list []hub.AchievementRecord) string {
	if len(list) == 0 {
		return dimStyle.Render("  Nothing yet. Launch a simulation.") + "\n"
	}
	var b strings.Builder
	shown := 0
	for _, a := range list {
		if shown == 5 {
			break
		}
		b.WriteString(fmt.Sprintf("  [%s] %s\n", a.Tier, a.Title))
		shown++
	}
	return b.String()
}
