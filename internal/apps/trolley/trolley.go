// Package trolley is the ethics simulation: a deck of dilemmas with a
// utilitarian and a deontological horn. Choices feed the decision analytics
// the insight engine scores, and the token-gated generator adds prompts
// seeded from the player's own ethical skew.
package trolley

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"simhub/internal/insight"
	"simhub/internal/registry"
)

type dilemma struct {
	Prompt      string
	Utilitarian string
	Kantian     string
}

var deck = []dilemma{
	{
		Prompt:      "A runaway tram will hit five workers. You can divert it onto a track with one.",
		Utilitarian: "Divert: one death is better than five.",
		Kantian:     "Do not divert: killing is not yours to choose.",
	},
	{
		Prompt:      "A hospital can save five patients by harvesting organs from one healthy visitor.",
		Utilitarian: "Harvest: five lives outweigh one.",
		Kantian:     "Refuse: people are never mere means.",
	},
	{
		Prompt:      "Leaking a private document would expose fraud affecting thousands.",
		Utilitarian: "Leak it: the aggregate harm prevented is enormous.",
		Kantian:     "Keep the promise of confidentiality regardless.",
	},
	{
		Prompt:      "An autonomous car must choose between its passenger and three pedestrians.",
		Utilitarian: "Protect the three pedestrians.",
		Kantian:     "Never program a machine to sacrifice its charge.",
	},
	{
		Prompt:      "Torturing one captured attacker might reveal a bomb's location.",
		Utilitarian: "Interrogate by any means: thousands are at stake.",
		Kantian:     "Some acts stay forbidden whatever the stakes.",
	},
	{
		Prompt:      "You can rig a lottery so the prize funds a cure, defrauding the entrants.",
		Utilitarian: "Rig it: the cure dwarfs the ticket losses.",
		Kantian:     "Fraud is fraud; consent cannot be bypassed.",
	},
}

// App is the trolley module descriptor.
type App struct {
	log *zap.Logger
}

func New(log *zap.Logger) *App {
	if log == nil {
		log = zap.NewNop()
	}
	return &App{log: log.Named("trolley")}
}

func (a *App) ID() string            { return "trolley" }
func (a *App) Name() string          { return "Trolley" }
func (a *App) Icon() string          { return "⚖" }
func (a *App) Heavy() bool           { return false }
func (a *App) PreloadHint() []string { return nil }

func (a *App) Mount(ctx context.Context, caps registry.Capabilities) (registry.Instance, error) {
	return &instance{caps: caps, current: a.first(caps)}, nil
}

func (a *App) first(caps registry.Capabilities) dilemma {
	return nextDilemma(caps, 0)
}

// nextDilemma walks the static deck; with the generator unlocked it splices in
// a prompt seeded from the player's dominant ethical axis.
func nextDilemma(caps registry.Capabilities, answered int) dilemma {
	s := caps.Store.GetState()
	if s.Progression.UnlockedModes.TrolleyGenerator && answered%3 == 2 {
		seed := insight.GenerateDilemmaSeed(s)
		return dilemma{
			Prompt:      seed.Prompt,
			Utilitarian: "Accept the trade: outcomes govern.",
			Kantian:     "Refuse the trade: principles govern.",
		}
	}
	return deck[answered%len(deck)]
}

type instance struct {
	caps     registry.Capabilities
	current  dilemma
	answered int
	lastNote string
}

func (i *instance) Init() tea.Cmd  { return nil }
func (i *instance) Unmount() error { return nil }

func (i *instance) Update(msg tea.Msg) tea.Cmd {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil
	}
	switch key.String() {
	case "u":
		i.choose(map[string]float64{"utilitarian": 3, "riskTaking": 0.5}, "You weighed the outcomes.")
	case "k":
		i.choose(map[string]float64{"kantian": 3, "caution": 0.5}, "You held the line on principle.")
	case "v":
		i.choose(map[string]float64{"virtue": 3}, "You asked what a good person would do.")
	}
	return nil
}

func (i *instance) choose(delta map[string]float64, note string) {
	i.caps.Store.TrackDecision(delta)
	i.caps.Store.AddXP(6, "Dilemma resolved", "trolley")
	i.answered++
	i.lastNote = note
	i.current = nextDilemma(i.caps, i.answered)

	if s := i.caps.Store.GetState(); s.Session.InsightMode && i.answered%4 == 0 {
		i.caps.Toast(insight.PostGameFeedback(s, "trolley", insight.LocalSummary{Summary: note}),
			registry.SeverityInfo, 5*time.Second)
	}
}

var (
	headStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("105"))
	promptStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("105")).
			Padding(0, 1)
	dimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func (i *instance) View(width, height int) string {
	skew := insight.AnalyzeUserPatterns(i.caps.Store.GetState()).EthicalSkew

	var b strings.Builder
	b.WriteString(headStyle.Render("Trolley"))
	b.WriteString("\n\n")
	b.WriteString(promptStyle.Render(i.current.Prompt))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("  [u] %s\n", i.current.Utilitarian))
	b.WriteString(fmt.Sprintf("  [k] %s\n", i.current.Kantian))
	b.WriteString("  [v] Step back and refuse the framing.\n\n")
	if i.lastNote != "" {
		b.WriteString(dimStyle.Render(i.lastNote))
		b.WriteString("\n")
	}
	b.WriteString(dimStyle.Render(fmt.Sprintf(
		"Resolved: %d · skew U %.0f / K %.0f / V %.0f",
		i.answered, skew.Utilitarian, skew.Kantian, skew.Virtue)))
	return b.String()
}
