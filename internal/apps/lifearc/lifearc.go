// Package lifearc is the life-trajectory simulation: allocate a fixed budget
// of effort across four tracks and project the arc it produces. Projections
// lean on the persona bias scalars, so the persona quiz visibly changes the
// outcome text.
package lifearc

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"simhub/internal/apps/appkit"
	"simhub/internal/registry"
)

const (
	// StorageKey is the private blob lifearc owns in hub storage.
	StorageKey = "simhub_lifearc_v2"

	effortBudget = 10
)

var tracks = []string{"career", "health", "bonds", "mind"}

type localState struct {
	Alloc map[string]int `json:"alloc"`
	Runs  int            `json:"runs"`
}

// App is the lifearc module descriptor.
type App struct {
	blob appkit.Blob
	log  *zap.Logger
}

func New(blob appkit.Blob, log *zap.Logger) *App {
	if log == nil {
		log = zap.NewNop()
	}
	return &App{blob: blob, log: log.Named("lifearc")}
}

func (a *App) ID() string            { return "lifearc" }
func (a *App) Name() string          { return "LifeArc" }
func (a *App) Icon() string          { return "☗" }
func (a *App) Heavy() bool           { return false }
func (a *App) PreloadHint() []string { return nil }

func (a *App) Mount(ctx context.Context, caps registry.Capabilities) (registry.Instance, error) {
	local := appkit.LoadLocal(a.blob, localState{Alloc: map[string]int{}}, a.log)
	if local.Alloc == nil {
		local.Alloc = map[string]int{}
	}
	return &instance{app: a, caps: caps, local: local}, nil
}

type instance struct {
	app      *App
	caps     registry.Capabilities
	local    localState
	cursor   int
	forecast []string
}

func (i *instance) Init() tea.Cmd { return nil }

func (i *instance) Unmount() error {
	appkit.SaveLocal(i.app.blob, i.local, i.app.log)
	return nil
}

func (i *instance) Update(msg tea.Msg) tea.Cmd {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil
	}
	switch key.String() {
	case "up", "k":
		if i.cursor > 0 {
			i.cursor--
		}
	case "down", "j":
		if i.cursor < len(tracks)-1 {
			i.cursor++
		}
	case "+", "right", "l":
		if i.allocated() < effortBudget {
			i.local.Alloc[tracks[i.cursor]]++
		}
	case "-", "left", "h":
		if i.local.Alloc[tracks[i.cursor]] > 0 {
			i.local.Alloc[tracks[i.cursor]]--
		}
	case "enter":
		i.project()
	}
	return nil
}

func (i *instance) allocated() int {
	total := 0
	for _, v := range i.local.Alloc {
		total += v
	}
	return total
}

// project runs the trajectory: each track's outcome sentence depends on its
// share of the budget, nudged by the persona bias scalars.
func (i *instance) project() {
	if i.allocated() != effortBudget {
		i.caps.Toast(fmt.Sprintf("Allocate all %d effort points first.", effortBudget), registry.SeverityWarn, 2*time.Second)
		return
	}
	im := i.caps.Store.GetState().Profile.PersonaImpact

	i.forecast = []string{
		trackLine("Career", i.local.Alloc["career"], im.FocusBias),
		trackLine("Health", i.local.Alloc["health"], -im.SpeedBias),
		trackLine("Bonds", i.local.Alloc["bonds"], im.EmpathyBias),
		trackLine("Mind", i.local.Alloc["mind"], im.FocusBias),
	}
	i.local.Runs++

	i.caps.Store.AddXP(15, "Trajectory projected", "lifearc")
	i.caps.Store.TrackDecision(map[string]float64{"virtue": 1})
	if i.local.Alloc["career"] >= 6 {
		i.caps.Store.TrackDecision(map[string]float64{"riskTaking": 1})
	}
	if i.local.Alloc["health"]+i.local.Alloc["bonds"] >= 6 {
		i.caps.Store.TrackDecision(map[string]float64{"caution": 1})
	}
}

// trackLine grades effort plus bias into one of three outcome sentences.
func trackLine(track string, effort int, bias float64) string {
	score := float64(effort) + bias*2
	switch {
	case score >= 4:
		return fmt.Sprintf("%s: compounding gains; this becomes a pillar.", track)
	case score >= 2:
		return fmt.Sprintf("%s: steady but unspectacular progress.", track)
	default:
		return fmt.Sprintf("%s: quiet erosion; expect a reckoning.", track)
	}
}

var (
	headStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("156"))
	cursorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func (i *instance) View(width, height int) string {
	var b strings.Builder
	b.WriteString(headStyle.Render("LifeArc"))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("Effort allocated: %d/%d\n\n", i.allocated(), effortBudget))

	for idx, track := range tracks {
		marker := "  "
		style := lipgloss.NewStyle()
		if idx == i.cursor {
			marker = "> "
			style = cursorStyle
		}
		n := i.local.Alloc[track]
		b.WriteString(style.Render(fmt.Sprintf("%s%-7s %s %d", marker, track, strings.Repeat("●", n), n)))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if len(i.forecast) > 0 {
		b.WriteString(headStyle.Render("Projection"))
		b.WriteString("\n")
		for _, line := range i.forecast {
			b.WriteString("  " + line + "\n")
		}
		b.WriteString("\n")
	}
	b.WriteString(dimStyle.Render("↑↓ select · +/- adjust · enter project"))
	return b.String()
}
