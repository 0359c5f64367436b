// Package persona is the psychometric mini-app: a short forced-choice quiz
// that derives an archetype and the bias scalars other simulations consume.
package persona

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"simhub/internal/hub"
	"simhub/internal/registry"
)

type option struct {
	Label  string
	Axes   map[string]float64 // strategic-signal deltas
	Impact hub.PersonaImpact  // bias contribution
}

type question struct {
	Prompt string
	A, B   option
}

var quiz = []question{
	{
		Prompt: "A new simulation appears in the dock. You...",
		A:      option{Label: "Open it immediately and poke everything.", Axes: map[string]float64{"explorer": 1}, Impact: hub.PersonaImpact{RiskBias: 0.15}},
		B:      option{Label: "Finish optimizing the one you're in first.", Axes: map[string]float64{"optimizer": 1}, Impact: hub.PersonaImpact{FocusBias: 0.15}},
	},
	{
		Prompt: "Facing a 50/50 gamble for double-or-nothing, you...",
		A:      option{Label: "Take it. Variance is the fun part.", Axes: map[string]float64{"explorer": 0.5}, Impact: hub.PersonaImpact{RiskBias: 0.25}},
		B:      option{Label: "Decline. Compounding beats coin flips.", Axes: map[string]float64{"analyst": 1}, Impact: hub.PersonaImpact{RiskBias: -0.25}},
	},
	{
		Prompt: "Your ideal session ends when...",
		A:      option{Label: "The timer says so. Fast in, fast out.", Axes: map[string]float64{"speedRunner": 1}, Impact: hub.PersonaImpact{SpeedBias: 0.25}},
		B:      option{Label: "The spreadsheet in your head balances.", Axes: map[string]float64{"analyst": 1}, Impact: hub.PersonaImpact{FocusBias: 0.2}},
	},
	{
		Prompt: "A teammate makes a costly mistake. You...",
		A:      option{Label: "Walk through what happened together.", Axes: map[string]float64{"analyst": 0.5}, Impact: hub.PersonaImpact{EmpathyBias: 0.3}},
		B:      option{Label: "Patch the damage now, debrief later.", Axes: map[string]float64{"optimizer": 1}, Impact: hub.PersonaImpact{SpeedBias: 0.15}},
	},
	{
		Prompt: "Rules that slow you down are...",
		A:      option{Label: "Constraints to route around creatively.", Axes: map[string]float64{"explorer": 1}, Impact: hub.PersonaImpact{RiskBias: 0.2}},
		B:      option{Label: "Guardrails that exist for a reason.", Axes: map[string]float64{"optimizer": 0.5}, Impact: hub.PersonaImpact{RiskBias: -0.2}},
	},
	{
		Prompt: "Before a big decision you mostly...",
		A:      option{Label: "Gather one more dataset.", Axes: map[string]float64{"analyst": 1}, Impact: hub.PersonaImpact{FocusBias: 0.2}},
		B:      option{Label: "Trust the gut and commit.", Axes: map[string]float64{"speedRunner": 1}, Impact: hub.PersonaImpact{SpeedBias: 0.25, RiskBias: 0.1}},
	},
}

var archetypes = map[string]hub.Persona{
	"analyst":     {Archetype: "Architect", Summary: "You build models before you build moves."},
	"optimizer":   {Archetype: "Optimizer", Summary: "You squeeze systems until they sing."},
	"explorer":    {Archetype: "Pathfinder", Summary: "You map the edges before the center."},
	"speedRunner": {Archetype: "Blitzer", Summary: "You trade polish for tempo and win on pace."},
}

// App is the persona module descriptor.
type App struct {
	log *zap.Logger
}

func New(log *zap.Logger) *App {
	if log == nil {
		log = zap.NewNop()
	}
	return &App{log: log.Named("persona")}
}

func (a *App) ID() string            { return "persona" }
func (a *App) Name() string          { return "Persona" }
func (a *App) Icon() string          { return "◉" }
func (a *App) Heavy() bool           { return false }
func (a *App) PreloadHint() []string { return nil }

func (a *App) Mount(ctx context.Context, caps registry.Capabilities) (registry.Instance, error) {
	return &instance{caps: caps, axes: map[string]float64{}}, nil
}

type instance struct {
	caps   registry.Capabilities
	index  int
	axes   map[string]float64
	impact hub.PersonaImpact
	done   bool
}

func (i *instance) Init() tea.Cmd  { return nil }
func (i *instance) Unmount() error { return nil }

func (i *instance) Update(msg tea.Msg) tea.Cmd {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil
	}
	switch key.String() {
	case "a":
		i.answer(quiz[i.index].A)
	case "b":
		i.answer(quiz[i.index].B)
	case "r":
		if i.done {
			*i = instance{caps: i.caps, axes: map[string]float64{}}
		}
	}
	return nil
}

func (i *instance) answer(opt option) {
	if i.done {
		return
	}
	for k, v := range opt.Axes {
		i.axes[k] += v
	}
	i.impact = addImpact(i.impact, opt.Impact)
	i.index++
	if i.index < len(quiz) {
		return
	}
	i.finish()
}

// finish derives the archetype from the dominant axis, publishes the persona
// and bias scalars to the hub, and feeds the axes into the strategic signals.
func (i *instance) finish() {
	i.done = true
	p := archetypes[dominantAxis(i.axes)]
	impact := clampImpact(i.impact)

	i.caps.Store.SetPersonaProfile(&p, &impact)
	i.caps.Store.TrackStrategicSignal(i.axes)
	i.caps.Store.AddXP(30, "Persona assessment", "persona")
	i.caps.Toast(fmt.Sprintf("You are the %s.", p.Archetype), registry.SeverityOK, 4*time.Second)
}

// dominantAxis breaks ties lexicographically so repeated runs with equal
// scores stay stable.
func dominantAxis(axes map[string]float64) string {
	best, bestScore := "analyst", -1.0
	for _, k := range []string{"analyst", "explorer", "optimizer", "speedRunner"} {
		if axes[k] > bestScore {
			best, bestScore = k, axes[k]
		}
	}
	return best
}

func addImpact(a, b hub.PersonaImpact) hub.PersonaImpact {
	return hub.PersonaImpact{
		RiskBias:    a.RiskBias + b.RiskBias,
		FocusBias:   a.FocusBias + b.FocusBias,
		EmpathyBias: a.EmpathyBias + b.EmpathyBias,
		SpeedBias:   a.SpeedBias + b.SpeedBias,
	}
}

func clampImpact(im hub.PersonaImpact) hub.PersonaImpact {
	c := func(v float64) float64 {
		if v > 1 {
			return 1
		}
		if v < -1 {
			return -1
		}
		return v
	}
	return hub.PersonaImpact{
		RiskBias:    c(im.RiskBias),
		FocusBias:   c(im.FocusBias),
		EmpathyBias: c(im.EmpathyBias),
		SpeedBias:   c(im.SpeedBias),
	}
}

var (
	headStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("177"))
	promptStyle = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func (i *instance) View(width, height int) string {
	var b strings.Builder
	b.WriteString(headStyle.Render("Persona"))
	b.WriteString("\n\n")

	if i.done {
		s := i.caps.Store.GetState()
		if p := s.Profile.Persona; p != nil {
			b.WriteString(promptStyle.Render(fmt.Sprintf("Archetype: %s", p.Archetype)))
			b.WriteString("\n")
			b.WriteString(p.Summary)
			b.WriteString("\n\n")
			im := s.Profile.PersonaImpact
			b.WriteString(fmt.Sprintf("Risk %+0.2f · Focus %+0.2f · Empathy %+0.2f · Speed %+0.2f\n\n",
				im.RiskBias, im.FocusBias, im.EmpathyBias, im.SpeedBias))
		}
		b.WriteString(dimStyle.Render("r retake"))
		return b.String()
	}

	q := quiz[i.index]
	b.WriteString(dimStyle.Render(fmt.Sprintf("Question %d of %d", i.index+1, len(quiz))))
	b.WriteString("\n\n")
	b.WriteString(promptStyle.Render(q.Prompt))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("  [a] %s\n", q.A.Label))
	b.WriteString(fmt.Sprintf("  [b] %s\n", q.B.Label))
	return b.String()
}
