// Package ui is the bubbletea shell around the hub: one root model that owns
// the dock, the toast stack, the status bar, and the viewport the active
// mini-app renders into. Everything asynchronous (controller events,
// achievement unlocks, toasts from background work) funnels through a single
// channel so the model only mutates on its own goroutine.
package ui

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"simhub/internal/apps"
	"simhub/internal/config"
	"simhub/internal/hub"
	"simhub/internal/insight"
	"simhub/internal/registry"
	"simhub/internal/storage"
)

type (
	toastMsg struct {
		message  string
		severity registry.Severity
		ttl      time.Duration
	}
	achievementMsg hub.AchievementRecord
	ctrlEventMsg   registry.Event
	navDoneMsg     struct{ id string }
	pulseMsg       time.Time
	pruneMsg       time.Time
)

// Model is the root bubbletea model.
type Model struct {
	ctrl   *registry.Controller
	store  *hub.Store
	cfg    config.Config
	log    *zap.Logger
	toasts *toastStack
	spin   spinner.Model
	rng    *rand.Rand

	async chan tea.Msg

	width, height int
	loadingApp    string
	loadErr       error
	errApp        string
	quitting      bool
}

// New wires the controller, the manifest and the notification plumbing into a
// runnable shell model.
func New(store *hub.Store, db *storage.DB, cfg config.Config, log *zap.Logger) *Model {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Model{
		store:  store,
		cfg:    cfg,
		log:    log.Named("ui"),
		toasts: newToastStack(),
		spin:   spinner.New(spinner.WithSpinner(spinner.Dot)),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		async:  make(chan tea.Msg, 64),
	}

	m.ctrl = registry.New(registry.Config{
		Store:           store,
		Manifest:        apps.Manifest(db, log),
		DefaultApp:      "dashboard",
		TransitionDelay: time.Duration(cfg.UI.TransitionMs) * time.Millisecond,
		Logger:          log,
		Toast:           m.pushAsyncToast,
		OnEvent:         func(ev registry.Event) { m.send(ctrlEventMsg(ev)) },
	})

	store.SetAchievementListener(func(rec hub.AchievementRecord) {
		m.send(achievementMsg(rec))
	})
	return m
}

// send delivers a message to the model's goroutine; a saturated channel drops
// the message rather than blocking a store pipeline or the UI loop.
func (m *Model) send(msg tea.Msg) {
	select {
	case m.async <- msg:
	default:
		m.log.Debug("async channel full, dropping message")
	}
}

func (m *Model) pushAsyncToast(message string, severity registry.Severity, ttl time.Duration) {
	m.send(toastMsg{message: message, severity: severity, ttl: ttl})
}

func (m *Model) waitAsync() tea.Cmd {
	return func() tea.Msg { return <-m.async }
}

func (m *Model) navCmd(id string) tea.Cmd {
	return func() tea.Msg {
		m.ctrl.Navigate(context.Background(), id)
		return navDoneMsg{id: id}
	}
}

func (m *Model) pulseTick() tea.Cmd {
	every := time.Duration(m.cfg.UI.InsightPulseSec) * time.Second
	if every <= 0 {
		every = 8 * time.Second
	}
	return tea.Tick(every, func(t time.Time) tea.Msg { return pulseMsg(t) })
}

func pruneTick() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg { return pruneMsg(t) })
}

func (m *Model) Init() tea.Cmd {
	// The last session's app is the initial navigation target.
	initial := m.store.GetState().Session.CurrentApp
	if initial == "" {
		initial = "dashboard"
	}
	return tea.Batch(
		m.waitAsync(),
		m.navCmd(initial),
		m.pulseTick(),
		pruneTick(),
		m.spin.Tick,
	)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, m.forward(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case toastMsg:
		m.toasts.push(msg.message, msg.severity, msg.ttl)
		return m, m.waitAsync()

	case achievementMsg:
		text, sev := achievementToast(hub.AchievementRecord(msg))
		m.toasts.push(text, sev, 5*time.Second)
		return m, m.waitAsync()

	case ctrlEventMsg:
		return m.handleEvent(registry.Event(msg))

	case navDoneMsg:
		if m.loadingApp == msg.id {
			m.loadingApp = ""
		}
		return m, nil

	case pulseMsg:
		m.maybePulse()
		return m, m.pulseTick()

	case pruneMsg:
		m.toasts.prune(time.Time(msg))
		return m, pruneTick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	// Everything else (mini-app tick messages included) belongs to the
	// active instance.
	return m, m.forward(msg)
}

func (m *Model) handleEvent(ev registry.Event) (tea.Model, tea.Cmd) {
	switch ev.Kind {
	case registry.EventInterstitial:
		m.loadingApp = ev.AppID
	case registry.EventMounted:
		m.loadingApp = ""
		m.errApp = ""
		m.loadErr = nil
		if inst := m.ctrl.ActiveInstance(); inst != nil {
			return m, tea.Batch(m.waitAsync(), inst.Init())
		}
	case registry.EventError:
		m.loadingApp = ""
		m.errApp = ev.AppID
		m.loadErr = ev.Err
	}
	return m, m.waitAsync()
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Globals avoid bare letters: mini-apps consume free-text input (the
	// word game types through the whole alphabet).
	switch msg.String() {
	case "ctrl+c", "ctrl+q":
		m.quitting = true
		m.ctrl.Shutdown()
		return m, tea.Quit

	case "1", "2", "3", "4", "5", "6", "7", "8", "9", "0":
		idx := int(msg.Runes[0] - '1')
		if msg.Runes[0] == '0' {
			idx = 9
		}
		manifest := m.ctrl.Manifest()
		if idx < len(manifest) {
			return m, m.navCmd(manifest[idx].ID)
		}
		return m, nil

	case "[":
		return m, m.navCmd(m.neighbor(-1))
	case "]":
		return m, m.navCmd(m.neighbor(1))

	case "ctrl+e":
		m.store.Patch(func(s *hub.State) { s.Session.InsightMode = !s.Session.InsightMode })
		state := "off"
		if m.store.GetState().Session.InsightMode {
			state = "on"
		}
		m.toasts.push("Insight mode "+state+".", registry.SeverityInfo, 2*time.Second)
		return m, nil

	case "ctrl+t":
		m.store.Patch(func(s *hub.State) {
			if s.Theme == "light" {
				s.Theme = "dark"
			} else {
				s.Theme = "light"
			}
		})
		return m, nil
	}

	return m, m.forward(msg)
}

// neighbor steps through the manifest in dock order, wrapping at the ends.
func (m *Model) neighbor(step int) string {
	manifest := m.ctrl.Manifest()
	active := m.ctrl.Active()
	idx := 0
	for i, e := range manifest {
		if e.ID == active {
			idx = i
			break
		}
	}
	idx = (idx + step + len(manifest)) % len(manifest)
	return manifest[idx].ID
}

func (m *Model) forward(msg tea.Msg) tea.Cmd {
	inst := m.ctrl.ActiveInstance()
	if inst == nil {
		return nil
	}
	return inst.Update(msg)
}

// maybePulse occasionally surfaces a one-line insight reading. It stays quiet
// when insight mode is off.
func (m *Model) maybePulse() {
	s := m.store.GetState()
	if !s.Session.InsightMode {
		return
	}
	if m.rng.Float64() >= m.cfg.UI.InsightPulseChance {
		return
	}
	report := insight.AnalyzeUserPatterns(s)
	m.toasts.push(fmt.Sprintf("Insight pulse: risk %.0f · strategy %.0f.",
		report.RiskTolerance, report.StrategicIndex), registry.SeverityInfo, 4*time.Second)
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	s := m.store.GetState()
	theme := themeFor(s.Theme)

	header := m.renderHeader(s, theme)
	dock := m.renderDock(theme)
	body := m.renderBody(theme)
	toasts := m.toasts.render(theme)
	status := theme.Status.Render(
		"1-9/0 apps · [ ] step · ^E insight · ^T theme · ^Q quit")

	return lipgloss.JoinVertical(lipgloss.Left, header, dock, body, toasts, status)
}

func (m *Model) renderHeader(s hub.State, theme Theme) string {
	left := theme.Title.Render(" SimHub ")
	right := theme.Header.Render(fmt.Sprintf(" %s · Lvl %d · %d XP · %d tokens ",
		s.Auth.Handle, s.Profile.Level, s.Profile.XP, s.Profile.Tokens))
	return lipgloss.JoinHorizontal(lipgloss.Top, left, right)
}

func (m *Model) renderDock(theme Theme) string {
	active := m.ctrl.Active()
	var cells []string
	for i, e := range m.ctrl.Manifest() {
		digit := byte('1') + byte(i)
		if i == 9 {
			digit = '0'
		}
		label := fmt.Sprintf("%c %s %s", digit, e.Icon, e.Name)
		if e.ID == active {
			cells = append(cells, theme.DockHot.Render(label))
		} else {
			cells = append(cells, theme.DockItem.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cells...)
}

func (m *Model) renderBody(theme Theme) string {
	bodyHeight := m.height - 7
	if bodyHeight < 4 {
		bodyHeight = 4
	}

	switch {
	case m.errApp != "":
		return theme.Viewport.Render(
			theme.ErrText.Render(fmt.Sprintf("Failed to start %s.", m.errApp)) +
				"\n\n" + fmt.Sprintf("%v", m.loadErr) +
				"\n\nPick another simulation from the dock.")
	case m.loadingApp != "":
		return theme.Viewport.Render(fmt.Sprintf("%s Loading %s...", m.spin.View(), m.loadingApp))
	}

	inst := m.ctrl.ActiveInstance()
	if inst == nil {
		return theme.Viewport.Render(m.spin.View() + " Starting...")
	}
	return theme.Viewport.Render(inst.View(m.width-4, bodyHeight))
}

// Run starts the shell and blocks until the user quits. The controller and
// every mounted module are shut down before it returns.
func Run(store *hub.Store, db *storage.DB, cfg config.Config, log *zap.Logger) error {
	m := New(store, db, cfg, log)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	m.ctrl.Shutdown()
	return err
}
