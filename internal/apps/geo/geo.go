// Package geo is the geography quiz: capital-city rounds with adaptive
// difficulty, streak rewards, and a ranked mode gated on the hub's token
// unlocks.
package geo

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

// StorageKey is the private blob the geo quiz owns in hub storage.
const StorageKey = "simhub_geo_v2"

type country struct {
	Name    string
	Capital string
}

var atlas = []country{
	{"Japan", "Tokyo"},
	{"Australia", "Canberra"},
	{"Canada", "Ottawa"},
	{"Brazil", "Brasília"},
	{"Kenya", "Nairobi"},
	{"Norway", "Oslo"},
	{"Turkey", "Ankara"},
	{"Vietnam", "Hanoi"},
	{"Switzerland", "Bern"},
	{"Morocco", "Rabat"},
	{"New Zealand", "Wellington"},
	{"Argentina", "Buenos Aires"},
	{"Kazakhstan", "Astana"},
	{"Nigeria", "Abuja"},
	{"Myanmar", "Naypyidaw"},
}

type localState struct {
	BestStreak int             `json:"bestStreak"`
	Answered   int             `json:"answered"`
	Rounds     []insight.Round `json:"rounds"`
}

// App is the geo module descriptor.
type App struct {
	blob appkit.Blob
	log  *zap.Logger
}

func New(blob appkit.Blob, log *zap.Logger) *App {
	if log == nil {
		log = zap.NewNop()
	}
	return &App{blob: blob, log: log.Named("geo")}
}

func (a *App) ID() string            { return "geo" }
func (a *App) Name() string          { return "Geo" }
func (a *App) Icon() string          { return "🌍" }
func (a *App) Heavy() bool           { return false }
func (a *App) PreloadHint() []string { return nil }

func (a *App) Mount(ctx context.Context, caps registry.Capabilities) (registry.Instance, error) {
	inst := &instance{
		app:   a,
		caps:  caps,
		local: appkit.LoadLocal(a.blob, localState{}, a.log),
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	inst.nextRound()
	return inst, nil
}

type round struct {
	Country country
	Options []string // capital candidates
	Answer  int      // index into Options
}

type instance struct {
	app     *App
	caps    registry.Capabilities
	local   localState
	rng     *rand.Rand
	current round
	streak  int
	note    string
}

func (i *instance) Init() tea.Cmd { return nil }

func (i *instance) Unmount() error {
	appkit.SaveLocal(i.app.blob, i.local, i.app.log)
	return nil
}

// nextRound draws a country and three decoy capitals. Hard difficulty keeps
// the decoys; easy swaps one decoy for an obviously wrong answer by drawing
// fewer candidates.
func (i *instance) nextRound() {
	diff := insight.DifficultyAdapter(i.local.Rounds)
	optionCount := 4
	if diff.Level == "easy" {
		optionCount = 3
	}

	c := atlas[i.rng.Intn(len(atlas))]
	options := []string{c.Capital}
	for len(options) < optionCount {
		decoy := atlas[i.rng.Intn(len(atlas))].Capital
		if contains(options, decoy) {
			continue
		}
		options = append(options, decoy)
	}
	i.rng.Shuffle(len(options), func(a, b int) { options[a], options[b] = options[b], options[a] })

	answer := 0
	for idx, o := range options {
		if o == c.Capital {
			answer = idx
		}
	}
	i.current = round{Country: c, Options: options, Answer: answer}
}

func (i *instance) Update(msg tea.Msg) tea.Cmd {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil
	}
	idx := optionIndex(key.String())
	if idx >= 0 && idx < len(i.current.Options) {
		i.answer(idx)
	}
	return nil
}

func (i *instance) answer(idx int) {
	correct := idx == i.current.Answer
	i.local.Answered++
	i.local.Rounds = append(i.local.Rounds, insight.Round{Win: correct})
	if len(i.local.Rounds) > 10 {
		i.local.Rounds = i.local.Rounds[len(i.local.Rounds)-10:]
	}
	i.caps.Store.TrackStrategicSignal(map[string]float64{"explorer": 0.5})

	if !correct {
		i.streak = 0
		i.note = fmt.Sprintf("No: the capital of %s is %s.", i.current.Country.Name, i.current.Country.Capital)
		i.nextRound()
		return
	}

	i.streak++
	if i.streak > i.local.BestStreak {
		i.local.BestStreak = i.streak
	}
	i.caps.Store.AddXP(8, "Correct capital", "geo")
	i.note = fmt.Sprintf("Correct, %s.", i.current.Country.Capital)

	// Streak payouts; ranked mode doubles them.
	if i.streak%5 == 0 {
		tokens := 5
		if i.caps.Store.GetState().Progression.UnlockedModes.GeoRanked {
			tokens = 10
		}
		i.caps.Store.GrantTokens(tokens, fmt.Sprintf("Geo streak %d", i.streak), "geo")
		i.caps.Toast(fmt.Sprintf("Streak %d: +%d tokens.", i.streak, tokens), registry.SeverityOK, 3*time.Second)
	}
	i.nextRound()
}

var (
	headStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("36"))
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func (i *instance) View(width, height int) string {
	ranked := i.caps.Store.GetState().Progression.UnlockedModes.GeoRanked
	diff := insight.DifficultyAdapter(i.local.Rounds)

	var b strings.Builder
	b.WriteString(headStyle.Render("Geo"))
	if ranked {
		b.WriteString(headStyle.Render("  [ranked]"))
	}
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("What is the capital of %s?\n\n", i.current.Country.Name))
	for idx, o := range i.current.Options {
		b.WriteString(fmt.Sprintf("  [%c] %s\n", optionKeys[idx], o))
	}
	b.WriteString("\n")
	if i.note != "" {
		b.WriteString(i.note)
		b.WriteString("\n")
	}
	b.WriteString(dimStyle.Render(fmt.Sprintf(
		"streak %d · best %d · answered %d · difficulty %s",
		i.streak, i.local.BestStreak, i.local.Answered, diff.Level)))
	return b.String()
}

// optionKeys are home-row letters; digits belong to the shell's dock
// navigation.
var optionKeys = []byte{'a', 's', 'd', 'f'}

func optionIndex(key string) int {
	if len(key) != 1 {
		return -1
	}
	for i, k := range optionKeys {
		if key[0] == k {
			return i
		}
	}
	return -1
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
