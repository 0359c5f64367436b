// Package stock is the market simulation: a random-walk price fed by
// insight-scaled market events, a cash/shares ledger, and a pro mode gated by
// the hub's token unlocks.
package stock

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"simhub/internal/apps/appkit"
	"simhub/internal/insight"
	"simhub/internal/registry"
)

const (
	// StorageKey is the private blob the stock sim owns in hub storage.
	StorageKey = "simhub_stock_v2"

	startingCash = 1000.0
	historyLen   = 40
	// One market event roughly every ten ticks.
	eventChance = 0.1
)

type localState struct {
	Cash     float64         `json:"cash"`
	Shares   int             `json:"shares"`
	Short    int             `json:"short"`
	Price    float64         `json:"price"`
	History  []float64       `json:"history"`
	Rounds   []insight.Round `json:"rounds"`
	Realized float64         `json:"realized"`
}

// App is the stock module descriptor.
type App struct {
	blob appkit.Blob
	log  *zap.Logger
}

func New(blob appkit.Blob, log *zap.Logger) *App {
	if log == nil {
		log = zap.NewNop()
	}
	return &App{blob: blob, log: log.Named("stock")}
}

func (a *App) ID() string            { return "stock" }
func (a *App) Name() string          { return "Stock" }
func (a *App) Icon() string          { return "▲" }
func (a *App) Heavy() bool           { return true }
func (a *App) PreloadHint() []string { return []string{"analytics"} }

func (a *App) Mount(ctx context.Context, caps registry.Capabilities) (registry.Instance, error) {
	local := appkit.LoadLocal(a.blob, localState{Cash: startingCash, Price: 100}, a.log)
	if local.Price <= 0 {
		local.Price = 100
	}
	return &instance{
		app:   a,
		caps:  caps,
		local: local,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

type tickMsg time.Time

type instance struct {
	app    *App
	caps   registry.Capabilities
	local  localState
	rng    *rand.Rand
	closed bool
}

func tick() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (i *instance) Init() tea.Cmd { return tick() }

func (i *instance) Update(msg tea.Msg) tea.Cmd {
	if i.closed {
		return nil
	}
	switch msg := msg.(type) {
	case tickMsg:
		i.step()
		return tick()
	case tea.KeyMsg:
		i.handleKey(msg.String())
	}
	return nil
}

// step advances the price one tick: a small drift plus, occasionally, a
// risk-scaled market event from the insight engine.
func (i *instance) step() {
	drift := (i.rng.Float64() - 0.5) * 2 // ±1%
	i.local.Price *= 1 + drift/100

	if i.rng.Float64() < eventChance {
		ev := insight.GenerateMarketEvent(i.caps.Store.GetState(), i.rng)
		i.local.Price *= 1 + ev.ImpactPct/100
		sev := registry.SeverityInfo
		if ev.ImpactPct < 0 {
			sev = registry.SeverityWarn
		}
		i.caps.Toast(fmt.Sprintf("%s: %+.2f%%", ev.Tag, ev.ImpactPct), sev, 3*time.Second)
	}
	if i.local.Price < 1 {
		i.local.Price = 1
	}

	i.local.History = append(i.local.History, i.local.Price)
	if len(i.local.History) > historyLen {
		i.local.History = i.local.History[len(i.local.History)-historyLen:]
	}
}

func (i *instance) handleKey(key string) {
	switch key {
	case "b":
		i.buy()
	case "s":
		i.sell()
	case "o":
		i.openShort()
	case "x":
		i.coverShort()
	}
}

func (i *instance) buy() {
	if i.local.Cash < i.local.Price {
		i.caps.Toast("Not enough cash.", registry.SeverityWarn, 2*time.Second)
		return
	}
	i.local.Cash -= i.local.Price
	i.local.Shares++
	i.caps.Store.TrackDecision(map[string]float64{"riskTaking": 0.5})
}

func (i *instance) sell() {
	if i.local.Shares == 0 {
		i.caps.Toast("No shares to sell.", registry.SeverityWarn, 2*time.Second)
		return
	}
	avg := i.avgEntry()
	i.local.Cash += i.local.Price
	i.local.Shares--
	i.settle(i.local.Price - avg)
	i.caps.Store.TrackDecision(map[string]float64{"caution": 0.5})
}

// openShort and coverShort are the pro-mode surface, gated on StockPro.
func (i *instance) openShort() {
	if !i.caps.Store.GetState().Progression.UnlockedModes.StockPro {
		i.caps.Toast("Pro trading unlocks at 65 tokens.", registry.SeverityWarn, 2*time.Second)
		return
	}
	i.local.Cash += i.local.Price
	i.local.Short++
	i.caps.Store.TrackDecision(map[string]float64{"riskTaking": 1})
}

func (i *instance) coverShort() {
	if i.local.Short == 0 {
		i.caps.Toast("No short position.", registry.SeverityWarn, 2*time.Second)
		return
	}
	if i.local.Cash < i.local.Price {
		i.caps.Toast("Not enough cash to cover.", registry.SeverityBad, 2*time.Second)
		return
	}
	avg := i.avgEntry()
	i.local.Cash -= i.local.Price
	i.local.Short--
	i.settle(avg - i.local.Price)
}

// avgEntry approximates the entry price with the oldest price still in the
// window; exact lot accounting is not worth its weight here.
func (i *instance) avgEntry() float64 {
	if len(i.local.History) == 0 {
		return i.local.Price
	}
	return i.local.History[0]
}

// settle records a realized round, pays out XP on profit, and converts every
// 200 units of cumulative profit into a token.
func (i *instance) settle(profit float64) {
	i.local.Rounds = append(i.local.Rounds, insight.Round{Win: profit > 0})
	if len(i.local.Rounds) > 20 {
		i.local.Rounds = i.local.Rounds[len(i.local.Rounds)-20:]
	}

	before := int(i.local.Realized / 200)
	i.local.Realized += profit
	after := int(i.local.Realized / 200)

	if profit > 0 {
		i.caps.Store.AddXP(5, "Profitable trade", "stock")
	}
	if after > before {
		i.caps.Store.GrantTokens(after-before, "Trading profits", "stock")
		i.caps.Toast("Profit milestone: token earned.", registry.SeverityOK, 3*time.Second)
	}

	if i.caps.Store.GetState().Session.InsightMode && len(i.local.Rounds)%5 == 0 {
		line := insight.PostGameFeedback(i.caps.Store.GetState(), "stock", insight.LocalSummary{
			Summary: fmt.Sprintf("Realized P/L is %+.0f.", i.local.Realized),
		})
		i.caps.Toast(line, registry.SeverityInfo, 5*time.Second)
	}
}

func (i *instance) Unmount() error {
	i.closed = true
	appkit.SaveLocal(i.app.blob, i.local, i.app.log)
	return nil
}

var (
	headStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
	upStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	downStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func (i *instance) View(width, height int) string {
	pro := i.caps.Store.GetState().Progression.UnlockedModes.StockPro
	diff := insight.DifficultyAdapter(i.local.Rounds)

	var b strings.Builder
	b.WriteString(headStyle.Render("Stock"))
	if pro {
		b.WriteString(headStyle.Render("  [pro]"))
	}
	b.WriteString("\n\n")

	priceStyle := upStyle
	if n := len(i.local.History); n >= 2 && i.local.History[n-1] < i.local.History[n-2] {
		priceStyle = downStyle
	}
	b.WriteString(fmt.Sprintf("Price: %s   Cash: %.0f   Shares: %d   Short: %d\n",
		priceStyle.Render(fmt.Sprintf("%.2f", i.local.Price)), i.local.Cash, i.local.Shares, i.local.Short))
	b.WriteString(fmt.Sprintf("Realized P/L: %+.0f   Market regime: %s\n\n", i.local.Realized, diff.Level))
	b.WriteString(sparkline(i.local.History))
	b.WriteString("\n\n")
	b.WriteString(dimStyle.Render("b buy · s sell · o short · x cover"))
	return b.String()
}

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

func sparkline(history []float64) string {
	if len(history) < 2 {
		return dimStyle.Render("waiting for ticks...")
	}
	lo, hi := history[0], history[0]
	for _, v := range history {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}
	var b strings.Builder
	for _, v := range history {
		idx := int((v - lo) / span * float64(len(sparkRunes)-1))
		b.WriteRune(sparkRunes[idx])
	}
	return b.String()
}
