// Package registry implements the module registry and lifecycle controller:
// lazy loading of mini-app modules with shared in-flight loads, the
// mount/unmount navigation sequence, and predictive preloading driven by the
// hub's transition matrix.
package registry

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"simhub/internal/hub"
)

// ErrUnknownApp marks navigation targets absent from the manifest. Navigation
// treats it as a silent no-op; it only surfaces through Load.
var ErrUnknownApp = errors.New("registry: unknown app id")

// Severity grades a toast notification.
type Severity string

const (
	SeverityInfo      Severity = "info"
	SeverityOK        Severity = "ok"
	SeverityWarn      Severity = "warn"
	SeverityBad       Severity = "bad"
	SeverityLegendary Severity = "legendary"
)

// ToastFunc surfaces a transient user-facing message.
type ToastFunc func(message string, severity Severity, ttl time.Duration)

// Capabilities is the entire contract a mounted mini-app gets from the host.
// Mini-apps must not reach past it into state owned by other apps.
type Capabilities struct {
	Store    *hub.Store
	Navigate func(appID string)
	Toast    ToastFunc
}

// Instance is a mounted mini-app screen driven by the shell's event loop.
type Instance interface {
	Init() tea.Cmd
	Update(msg tea.Msg) tea.Cmd
	View(width, height int) string
	Unmount() error
}

// Module is the closed interface every registered mini-app satisfies. The
// controller depends only on this, never on concrete module identity.
type Module interface {
	ID() string
	Name() string
	Icon() string
	Heavy() bool
	PreloadHint() []string
	Mount(ctx context.Context, caps Capabilities) (Instance, error)
}

// Entry is one manifest row. The loader runs at most once per id on success;
// concurrent callers share the in-flight load.
type Entry struct {
	ID          string
	Name        string
	Icon        string
	Loader      func(ctx context.Context) (Module, error)
	PreloadHint []string
}

// ModuleState is the per-id lifecycle state.
type ModuleState int

const (
	StateUnregistered ModuleState = iota
	StateRegistered
	StateLoading
	StateLoaded
	StateMounted
)

func (s ModuleState) String() string {
	switch s {
	case StateRegistered:
		return "registered"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateMounted:
		return "mounted"
	default:
		return "unregistered"
	}
}

// EventKind tags controller events sent to the shell.
type EventKind int

const (
	// EventInterstitial asks the shell to show the loading placeholder
	// while a heavy module mounts.
	EventInterstitial EventKind = iota
	// EventMounted reports that a new instance is active.
	EventMounted
	// EventError reports that navigation failed and no instance is
	// mounted; the shell renders the error screen instead of a blank
	// viewport.
	EventError
)

// Event is a lifecycle notification for the shell.
type Event struct {
	Kind  EventKind
	AppID string
	Err   error
}
