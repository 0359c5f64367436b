// Package analytics is the insight console: the full behavioral report
// rendered on demand, with explicit "run insight" rounds that feed the
// insight-run counters the achievement rules watch.
package analytics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"simhub/internal/insight"
	"simhub/internal/registry"
)

// App is the analytics module descriptor.
type App struct {
	log *zap.Logger
}

func New(log *zap.Logger) *App {
	if log == nil {
		log = zap.NewNop()
	}
	return &App{log: log.Named("analytics")}
}

func (a *App) ID() string            { return "analytics" }
func (a *App) Name() string          { return "Analytics" }
func (a *App) Icon() string          { return "◫" }
func (a *App) Heavy() bool           { return true }
func (a *App) PreloadHint() []string { return nil }

func (a *App) Mount(ctx context.Context, caps registry.Capabilities) (registry.Instance, error) {
	return &instance{caps: caps}, nil
}

type instance struct {
	caps    registry.Capabilities
	lastRun string
}

func (i *instance) Init() tea.Cmd  { return nil }
func (i *instance) Unmount() error { return nil }

func (i *instance) Update(msg tea.Msg) tea.Cmd {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil
	}
	if key.String() == "r" {
		i.runInsight()
	}
	return nil
}

// runInsight is the explicit analysis round: it bumps the counter first so
// the feedback line reflects the run it announces.
func (i *instance) runInsight() {
	i.caps.Store.IncrementInsightRuns()
	s := i.caps.Store.GetState()
	i.lastRun = insight.PostGameFeedback(s, "analytics", insight.LocalSummary{
		Summary: fmt.Sprintf("Run #%d complete.", s.Profile.InsightRuns),
	})
	i.caps.Toast("Insight run complete.", registry.SeverityOK, 2*time.Second)
}

var (
	headStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213"))
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	meterBar = func() progress.Model {
		p := progress.New(progress.WithSolidFill("213"), progress.WithoutPercentage())
		p.Width = 20
		return p
	}()
)

func (i *instance) View(width, height int) string {
	s := i.caps.Store.GetState()
	report := insight.AnalyzeUserPatterns(s)

	var b strings.Builder
	b.WriteString(headStyle.Render("Analytics"))
	b.WriteString("\n\n")
	b.WriteString(meter("Risk tolerance ", report.RiskTolerance))
	b.WriteString(meter("Strategic index", report.StrategicIndex))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("Ethical skew: utilitarian %+.0f · kantian %+.0f · virtue %+.0f\n",
		report.EthicalSkew.Utilitarian, report.EthicalSkew.Kantian, report.EthicalSkew.Virtue))
	b.WriteString(fmt.Sprintf("Most played: %s · total time %s · insight runs %d\n\n",
		report.MostPlayed, insight.FormatTime(report.TotalTime), s.Profile.InsightRuns))

	b.WriteString(headStyle.Render("Hints"))
	b.WriteString("\n")
	for _, h := range report.Hints {
		b.WriteString("  · " + h + "\n")
	}
	b.WriteString("\n")

	if i.lastRun != "" {
		b.WriteString(i.lastRun)
		b.WriteString("\n\n")
	}
	b.WriteString(dimStyle.Render("r run insight"))
	return b.String()
}

func meter(label string, value float64) string {
	return fmt.Sprintf("%s %s %3.0f\n", label, meterBar.ViewAs(value/100), value)
}
