// Package wordforge is the word-deduction simulation: six guesses at a hidden
// five-letter word with per-letter feedback, solve bonuses scaled by remaining
// guesses, and a competitive streak mode gated on the hub's token unlocks.
package wordforge

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
	// StorageKey is the private blob wordforge owns in hub storage.
	StorageKey = "simhub_wordforge_v2"

	wordLen    = 5
	maxGuesses = 6
)

var words = []string{
	"crane", "slate", "pride", "ghost", "flame",
	"quirk", "mirth", "vault", "spine", "grove",
	"chasm", "blitz", "fjord", "nymph", "waltz",
	"ember", "torch", "rivet", "plume", "stark",
}

type localState struct {
	Solved int `json:"solved"`
	Played int `json:"played"`
	Streak int `json:"streak"`
}

// App is the wordforge module descriptor.
type App struct {
	blob appkit.Blob
	log  *zap.Logger
}

func New(blob appkit.Blob, log *zap.Logger) *App {
	if log == nil {
		log = zap.NewNop()
	}
	return &App{blob: blob, log: log.Named("wordforge")}
}

func (a *App) ID() string            { return "wordforge" }
func (a *App) Name() string          { return "WordForge" }
func (a *App) Icon() string          { return "✎" }
func (a *App) Heavy() bool           { return false }
func (a *App) PreloadHint() []string { return nil }

func (a *App) Mount(ctx context.Context, caps registry.Capabilities) (registry.Instance, error) {
	inst := &instance{
		app:   a,
		caps:  caps,
		local: appkit.LoadLocal(a.blob, localState{}, a.log),
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	inst.newGame()
	return inst, nil
}

type instance struct {
	app     *App
	caps    registry.Capabilities
	local   localState
	rng     *rand.Rand
	target  string
	guesses []string
	input   string
	over    bool
	won     bool
}

func (i *instance) newGame() {
	i.target = words[i.rng.Intn(len(words))]
	i.guesses = nil
	i.input = ""
	i.over = false
	i.won = false
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
	switch key.Type {
	case tea.KeyBackspace:
		if len(i.input) > 0 {
			i.input = i.input[:len(i.input)-1]
		}
	case tea.KeyEnter:
		if i.over {
			i.newGame()
		} else if len(i.input) == wordLen {
			i.submit()
		}
	case tea.KeyRunes:
		if i.over || len(key.Runes) != 1 {
			return nil
		}
		r := key.Runes[0]
		if r >= 'a' && r <= 'z' && len(i.input) < wordLen {
			i.input += string(r)
		}
	}
	return nil
}

func (i *instance) submit() {
	guess := i.input
	i.input = ""
	i.guesses = append(i.guesses, guess)

	if guess == i.target {
		i.finish(true)
		return
	}
	if len(i.guesses) >= maxGuesses {
		i.finish(false)
	}
}

func (i *instance) finish(won bool) {
	i.over = true
	i.won = won
	i.local.Played++
	competitive := i.caps.Store.GetState().Progression.UnlockedModes.WordCompetitive

	if !won {
		i.local.Streak = 0
		i.caps.Toast(fmt.Sprintf("The word was %q.", i.target), registry.SeverityBad, 3*time.Second)
		return
	}

	i.local.Solved++
	i.local.Streak++
	remaining := maxGuesses - len(i.guesses)
	xp := 12 + 4*remaining
	i.caps.Store.AddXP(xp, "Word solved", "wordforge")
	i.caps.Store.TrackStrategicSignal(map[string]float64{"analyst": 1})

	// Competitive mode pays tokens on every third consecutive solve.
	if competitive && i.local.Streak%3 == 0 {
		i.caps.Store.GrantTokens(4, fmt.Sprintf("WordForge streak %d", i.local.Streak), "wordforge")
		i.caps.Toast("Competitive streak: +4 tokens.", registry.SeverityOK, 3*time.Second)
	}

	if s := i.caps.Store.GetState(); s.Session.InsightMode && i.local.Solved%4 == 0 {
		i.caps.Toast(insight.PostGameFeedback(s, "wordforge", insight.LocalSummary{
			Summary: fmt.Sprintf("Solve rate %d/%d.", i.local.Solved, i.local.Played),
		}), registry.SeverityInfo, 5*time.Second)
	}
}

type mark int

const (
	markAbsent mark = iota
	markPresent
	markExact
)

// score marks each guess letter exact/present/absent with correct handling of
// duplicate letters: exact matches consume the target letter first.
func score(target, guess string) []mark {
	marks := make([]mark, len(guess))
	remaining := map[byte]int{}
	for i := 0; i < len(target); i++ {
		if i < len(guess) && guess[i] == target[i] {
			marks[i] = markExact
			continue
		}
		remaining[target[i]]++
	}
	for i := 0; i < len(guess); i++ {
		if marks[i] == markExact {
			continue
		}
		if remaining[guess[i]] > 0 {
			marks[i] = markPresent
			remaining[guess[i]]--
		}
	}
	return marks
}

var (
	headStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220"))
	exactStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("42")).Bold(true)
	presentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("220"))
	absentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("250")).Background(lipgloss.Color("238"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func (i *instance) View(width, height int) string {
	competitive := i.caps.Store.GetState().Progression.UnlockedModes.WordCompetitive

	var b strings.Builder
	b.WriteString(headStyle.Render("WordForge"))
	if competitive {
		b.WriteString(headStyle.Render("  [competitive]"))
	}
	b.WriteString("\n\n")

	for _, g := range i.guesses {
		marks := score(i.target, g)
		for idx := 0; idx < len(g); idx++ {
			cell := fmt.Sprintf(" %c ", g[idx]-'a'+'A')
			switch marks[idx] {
			case markExact:
				b.WriteString(exactStyle.Render(cell))
			case markPresent:
				b.WriteString(presentStyle.Render(cell))
			default:
				b.WriteString(absentStyle.Render(cell))
			}
		}
		b.WriteString("\n")
	}
	if !i.over {
		b.WriteString(fmt.Sprintf("> %s%s\n", i.input, strings.Repeat("_", wordLen-len(i.input))))
	} else if i.won {
		b.WriteString("Solved.\n")
	} else {
		b.WriteString(fmt.Sprintf("Out of guesses. The word was %q.\n", i.target))
	}
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf(
		"solved %d/%d · streak %d · type letters, enter to %s",
		i.local.Solved, i.local.Played, i.local.Streak, submitLabel(i.over))))
	return b.String()
}

func submitLabel(over bool) string {
	if over {
		return "start a new word"
	}
	return "submit"
}
