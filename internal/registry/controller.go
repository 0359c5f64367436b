package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"simhub/internal/hub"
)

// launchXP is the fixed reward for opening any app other than the default
// screen.
const launchXP = 2

// Config wires a Controller.
type Config struct {
	Store      *hub.Store
	Manifest   []Entry
	DefaultApp string // fallback and XP-exempt home screen, usually "dashboard"

	// TransitionDelay bounds the exit animation between unmount and mount.
	TransitionDelay time.Duration

	Logger  *zap.Logger
	Toast   ToastFunc
	OnEvent func(Event)
}

// Controller owns the per-app lifecycle state machine and the navigation
// sequence. Only one instance is ever mounted.
type Controller struct {
	store      *hub.Store
	defaultApp string
	transition time.Duration
	log        *zap.Logger
	toast      ToastFunc
	onEvent    func(Event)

	navMu sync.Mutex // serializes the navigation sequence

	mu         sync.Mutex
	entries    map[string]Entry
	order      []string
	loaded     map[string]Module
	loading    map[string]bool
	active     string
	activeInst Instance

	flight singleflight.Group
}

// New registers the manifest and returns an idle controller; nothing is
// loaded until the first navigation or preload touches it.
func New(cfg Config) *Controller {
	c := &Controller{
		store:      cfg.Store,
		defaultApp: cfg.DefaultApp,
		transition: cfg.TransitionDelay,
		log:        cfg.Logger,
		toast:      cfg.Toast,
		onEvent:    cfg.OnEvent,
		entries:    make(map[string]Entry, len(cfg.Manifest)),
		loaded:     map[string]Module{},
		loading:    map[string]bool{},
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	if c.toast == nil {
		c.toast = func(string, Severity, time.Duration) {}
	}
	if c.onEvent == nil {
		c.onEvent = func(Event) {}
	}
	if c.defaultApp == "" {
		c.defaultApp = "dashboard"
	}
	for _, e := range cfg.Manifest {
		c.entries[e.ID] = e
		c.order = append(c.order, e.ID)
	}
	return c
}

// Manifest returns the registered entries in declaration order.
func (c *Controller) Manifest() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.entries[id])
	}
	return out
}

// Active returns the currently mounted app id, or "".
func (c *Controller) Active() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// ActiveInstance returns the mounted instance the shell should drive.
func (c *Controller) ActiveInstance() Instance {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeInst
}

// StateOf reports the lifecycle state of an app id.
func (c *Controller) StateOf(id string) ModuleState {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.active == id:
		return StateMounted
	case c.loaded[id] != nil:
		return StateLoaded
	case c.loading[id]:
		return StateLoading
	default:
		if _, ok := c.entries[id]; ok {
			return StateRegistered
		}
		return StateUnregistered
	}
}

// Load resolves the module for id, invoking the manifest loader at most once
// on success. Concurrent callers share the same in-flight load.
func (c *Controller) Load(ctx context.Context, id string) (Module, error) {
	c.mu.Lock()
	if m, ok := c.loaded[id]; ok {
		c.mu.Unlock()
		return m, nil
	}
	entry, ok := c.entries[id]
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownApp, id)
	}

	v, err, _ := c.flight.Do(id, func() (interface{}, error) {
		c.mu.Lock()
		c.loading[id] = true
		c.mu.Unlock()
		defer func() {
			c.mu.Lock()
			delete(c.loading, id)
			c.mu.Unlock()
		}()

		m, err := entry.Loader(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", id, err)
		}
		c.mu.Lock()
		c.loaded[id] = m
		c.mu.Unlock()
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Module), nil
}

// Navigate runs the full navigation sequence for id. A same-id call and an
// unknown id are both no-ops. A load failure on this primary path keeps the
// current module mounted and surfaces a toast; a mount failure reverts to the
// default app rather than leaving the viewport empty.
func (c *Controller) Navigate(ctx context.Context, id string) {
	c.navMu.Lock()
	defer c.navMu.Unlock()
	c.navigateLocked(ctx, id, true)
}

func (c *Controller) navigateLocked(ctx context.Context, id string, allowRevert bool) {
	if c.Active() == id {
		return
	}
	if _, ok := c.lookup(id); !ok {
		c.log.Debug("ignoring navigation to unregistered app", zap.String("app", id))
		return
	}

	mod, err := c.Load(ctx, id)
	if err != nil {
		// Previous module is still mounted; stay put.
		c.log.Warn("module load failed", zap.String("app", id), zap.Error(err))
		c.toast(fmt.Sprintf("Could not load %s.", id), SeverityBad, 3200*time.Millisecond)
		return
	}

	c.store.TrackLaunch(id)
	c.unmountActive()
	// Nothing is mounted from here until setActive; the revert path relies
	// on that so its same-id guard cannot short-circuit.
	c.setActive("", nil)

	if c.transition > 0 {
		time.Sleep(c.transition)
	}
	if mod.Heavy() {
		c.emit(Event{Kind: EventInterstitial, AppID: id})
	}

	inst, err := mod.Mount(ctx, c.capabilities())
	if err != nil {
		c.log.Error("module mount failed", zap.String("app", id), zap.Error(err))
		c.toast(fmt.Sprintf("%s failed to start.", id), SeverityBad, 3200*time.Millisecond)
		if allowRevert && id != c.defaultApp {
			c.navigateLocked(ctx, c.defaultApp, false)
			return
		}
		c.setActive("", nil)
		c.emit(Event{Kind: EventError, AppID: id, Err: err})
		return
	}

	c.setActive(id, inst)
	c.emit(Event{Kind: EventMounted, AppID: id})

	if id != c.defaultApp {
		c.store.AddXP(launchXP, "Simulation launch", id)
	}
	c.preload(id)
}

// Shutdown unmounts the active instance on process exit.
func (c *Controller) Shutdown() {
	c.navMu.Lock()
	defer c.navMu.Unlock()
	c.unmountActive()
	c.setActive("", nil)
}

// LikelyNextApp predicts the statistically likely next destination from the
// transition matrix, ties broken lexicographically by id. Without history it
// falls back to the current module's preload hint, then the manifest entry's.
func (c *Controller) LikelyNextApp(current string) string {
	row := c.store.GetState().Telemetry.TransitionMatrix[current]
	if len(row) > 0 {
		ids := make([]string, 0, len(row))
		for id := range row {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		best, bestN := "", 0
		for _, id := range ids {
			if row[id] > bestN {
				best, bestN = id, row[id]
			}
		}
		if best != "" {
			return best
		}
	}

	c.mu.Lock()
	mod := c.loaded[current]
	entry, ok := c.entries[current]
	c.mu.Unlock()
	if mod != nil && len(mod.PreloadHint()) > 0 {
		return mod.PreloadHint()[0]
	}
	if ok && len(entry.PreloadHint) > 0 {
		return entry.PreloadHint[0]
	}
	return ""
}

// preload fires a detached best-effort load of the likely next app. Failures
// are logged and never propagate to navigation.
func (c *Controller) preload(current string) {
	candidate := c.LikelyNextApp(current)
	if candidate == "" {
		return
	}
	c.mu.Lock()
	_, already := c.loaded[candidate]
	_, registered := c.entries[candidate]
	c.mu.Unlock()
	if already || !registered {
		return
	}

	go func() {
		if _, err := c.Load(context.Background(), candidate); err != nil {
			c.log.Debug("prefetch failed", zap.String("app", candidate), zap.Error(err))
		}
	}()
}

func (c *Controller) capabilities() Capabilities {
	return Capabilities{
		Store: c.store,
		Navigate: func(appID string) {
			// Mini-apps navigate from inside their own update loop;
			// run the sequence off that goroutine.
			go c.Navigate(context.Background(), appID)
		},
		Toast: c.toast,
	}
}

// unmountActive invokes the outgoing instance's unmount hook. Failures and
// panics are suppressed; they must never block navigation.
func (c *Controller) unmountActive() {
	c.mu.Lock()
	inst := c.activeInst
	id := c.active
	c.mu.Unlock()
	if inst == nil {
		return
	}
	func() {
		defer func() {
			if r := recover(); r != nil {
				c.log.Warn("unmount panicked", zap.String("app", id), zap.Any("panic", r))
			}
		}()
		if err := inst.Unmount(); err != nil {
			c.log.Warn("unmount failed", zap.String("app", id), zap.Error(err))
		}
	}()
}

func (c *Controller) setActive(id string, inst Instance) {
	c.mu.Lock()
	c.active = id
	c.activeInst = inst
	c.mu.Unlock()
}

func (c *Controller) lookup(id string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	return e, ok
}

func (c *Controller) emit(ev Event) {
	c.onEvent(ev)
}
