// Package clicker is the incremental-economy simulation: generators produce
// gold every second, gold converts to hub tokens, and prestige resets trade
// accumulated production for a permanent multiplier.
package clicker

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"simhub/internal/apps/appkit"
	"simhub/internal/registry"
)

const (
	// StorageKey is the private blob the clicker owns in hub storage.
	StorageKey = "simhub_clicker_v2"

	// Gold-to-token conversion rate for cashing out.
	goldPerToken = 100
	// Production needed before prestige becomes available.
	prestigeFloor = 5000
)

// localState is the clicker's private persisted state.
type localState struct {
	Gold        float64 `json:"gold"`
	Miners      int     `json:"miners"`
	Factories   int     `json:"factories"`
	Labs        int     `json:"labs"`
	TotalEarned float64 `json:"totalEarned"`
	Prestige    int     `json:"prestige"`
}

// App is the clicker module descriptor.
type App struct {
	blob appkit.Blob
	log  *zap.Logger
}

func New(blob appkit.Blob, log *zap.Logger) *App {
	if log == nil {
		log = zap.NewNop()
	}
	return &App{blob: blob, log: log.Named("clicker")}
}

func (a *App) ID() string            { return "clicker" }
func (a *App) Name() string          { return "Clicker" }
func (a *App) Icon() string          { return "⛏" }
func (a *App) Heavy() bool           { return false }
func (a *App) PreloadHint() []string { return []string{"stock"} }

func (a *App) Mount(ctx context.Context, caps registry.Capabilities) (registry.Instance, error) {
	local := appkit.LoadLocal(a.blob, localState{}, a.log)
	return &instance{app: a, caps: caps, local: local}, nil
}

type tickMsg time.Time

type instance struct {
	app    *App
	caps   registry.Capabilities
	local  localState
	closed bool
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (i *instance) Init() tea.Cmd { return tick() }

func (i *instance) Update(msg tea.Msg) tea.Cmd {
	if i.closed {
		return nil
	}
	switch msg := msg.(type) {
	case tickMsg:
		income := i.incomePerSecond()
		i.local.Gold += income
		i.local.TotalEarned += income
		return tick()
	case tea.KeyMsg:
		i.handleKey(msg.String())
	}
	return nil
}

func (i *instance) handleKey(key string) {
	switch key {
	case " ", "enter":
		gain := 1.0 + 0.5*float64(i.local.Prestige)
		i.local.Gold += gain
		i.local.TotalEarned += gain
	case "m":
		i.buy(&i.local.Miners, minerCost(i.local.Miners), "miner")
	case "f":
		i.buy(&i.local.Factories, factoryCost(i.local.Factories), "factory")
	case "l":
		i.buy(&i.local.Labs, labCost(i.local.Labs), "lab")
	case "c":
		i.cashOut()
	case "p":
		i.prestige()
	}
}

func (i *instance) buy(count *int, cost float64, label string) {
	if i.local.Gold < cost {
		i.caps.Toast(fmt.Sprintf("Not enough gold for a %s.", label), registry.SeverityWarn, 2*time.Second)
		return
	}
	i.local.Gold -= cost
	*count++
}

// cashOut converts banked gold into hub tokens and records an optimizer
// signal; conversions below one token are rejected rather than rounded away.
func (i *instance) cashOut() {
	tokens := int(i.local.Gold / goldPerToken)
	if tokens < 1 {
		i.caps.Toast(fmt.Sprintf("Need at least %d gold to cash out.", goldPerToken), registry.SeverityWarn, 2*time.Second)
		return
	}
	i.local.Gold -= float64(tokens * goldPerToken)
	i.caps.Store.GrantTokens(tokens, "Clicker cash out", "clicker")
	i.caps.Store.AddXP(tokens*2, "Clicker cash out", "clicker")
	i.caps.Store.TrackStrategicSignal(map[string]float64{"optimizer": 1})
	i.caps.Toast(fmt.Sprintf("Cashed out %d tokens.", tokens), registry.SeverityOK, 3*time.Second)
}

func (i *instance) prestige() {
	if i.local.TotalEarned < prestigeFloor {
		i.caps.Toast(fmt.Sprintf("Prestige unlocks at %d total gold.", prestigeFloor), registry.SeverityInfo, 2*time.Second)
		return
	}
	i.local = localState{Prestige: i.local.Prestige + 1}
	i.caps.Store.AddXP(40, "Clicker prestige", "clicker")
	i.caps.Store.TrackStrategicSignal(map[string]float64{"optimizer": 2})
	i.caps.Toast("Prestige! Production multiplier increased.", registry.SeverityLegendary, 3*time.Second)
}

// incomePerSecond applies the prestige multiplier and, once the token gate is
// open, the advanced-generator bonus.
func (i *instance) incomePerSecond() float64 {
	base := float64(i.local.Miners)*1 + float64(i.local.Factories)*8 + float64(i.local.Labs)*40
	mult := 1 + 0.1*float64(i.local.Prestige)
	if i.caps.Store.GetState().Progression.UnlockedModes.ClickerAdvanced {
		mult *= 1.5
	}
	return base * mult
}

func (i *instance) Unmount() error {
	i.closed = true
	appkit.SaveLocal(i.app.blob, i.local, i.app.log)
	return nil
}

func minerCost(owned int) float64   { return 15 * math.Pow(1.15, float64(owned)) }
func factoryCost(owned int) float64 { return 120 * math.Pow(1.18, float64(owned)) }
func labCost(owned int) float64     { return 900 * math.Pow(1.22, float64(owned)) }

var (
	headStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func (i *instance) View(width, height int) string {
	advanced := i.caps.Store.GetState().Progression.UnlockedModes.ClickerAdvanced

	var b strings.Builder
	b.WriteString(headStyle.Render("Clicker"))
	if advanced {
		b.WriteString(headStyle.Render("  [advanced generators]"))
	}
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("Gold: %.0f   Income: %.1f/s   Prestige: %d\n\n",
		i.local.Gold, i.incomePerSecond(), i.local.Prestige))
	b.WriteString(fmt.Sprintf("  [m] Miner    x%-3d  %.0f gold\n", i.local.Miners, minerCost(i.local.Miners)))
	b.WriteString(fmt.Sprintf("  [f] Factory  x%-3d  %.0f gold\n", i.local.Factories, factoryCost(i.local.Factories)))
	b.WriteString(fmt.Sprintf("  [l] Lab      x%-3d  %.0f gold\n", i.local.Labs, labCost(i.local.Labs)))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf(
		"space mine · c cash out (%d gold = 1 token) · p prestige (at %d earned)",
		goldPerToken, prestigeFloor)))
	return b.String()
}
