package registry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"simhub/internal/hub"
)

type fakeModule struct {
	id         string
	heavy      bool
	hint       []string
	mountErr   error
	unmountErr error

	mu        sync.Mutex
	mounts    int
	unmounts  int
}

func (m *fakeModule) ID() string            { return m.id }
func (m *fakeModule) Name() string          { return m.id }
func (m *fakeModule) Icon() string          { return "*" }
func (m *fakeModule) Heavy() bool           { return m.heavy }
func (m *fakeModule) PreloadHint() []string { return m.hint }

func (m *fakeModule) Mount(ctx context.Context, caps Capabilities) (Instance, error) {
	if m.mountErr != nil {
		return nil, m.mountErr
	}
	m.mu.Lock()
	m.mounts++
	m.mu.Unlock()
	return &fakeInstance{mod: m}, nil
}

func (m *fakeModule) counts() (mounts, unmounts int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mounts, m.unmounts
}

type fakeInstance struct {
	mod *fakeModule
}

func (i *fakeInstance) Init() tea.Cmd                { return nil }
func (i *fakeInstance) Update(msg tea.Msg) tea.Cmd   { return nil }
func (i *fakeInstance) View(width, height int) string { return i.mod.id }

func (i *fakeInstance) Unmount() error {
	i.mod.mu.Lock()
	i.mod.unmounts++
	i.mod.mu.Unlock()
	return i.mod.unmountErr
}

type toastRecorder struct {
	mu   sync.Mutex
	msgs []string
}

func (r *toastRecorder) record(msg string, severity Severity, ttl time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *toastRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

func staticLoader(m Module) func(context.Context) (Module, error) {
	return func(context.Context) (Module, error) { return m, nil }
}

func newTestController(t *testing.T, manifest []Entry, toast ToastFunc) (*Controller, *hub.Store) {
	t.Helper()
	store := hub.NewStore(&hub.MemoryPersister{})
	c := New(Config{
		Store:      store,
		Manifest:   manifest,
		DefaultApp: "dashboard",
		Toast:      toast,
	})
	return c, store
}

func basicManifest(mods ...*fakeModule) []Entry {
	out := make([]Entry, 0, len(mods))
	for _, m := range mods {
		out = append(out, Entry{ID: m.id, Name: m.id, Icon: "*", Loader: staticLoader(m)})
	}
	return out
}

func TestLoadSharesInFlight(t *testing.T) {
	var loads int64
	manifest := []Entry{{
		ID: "geo",
		Loader: func(context.Context) (Module, error) {
			atomic.AddInt64(&loads, 1)
			time.Sleep(20 * time.Millisecond)
			return &fakeModule{id: "geo"}, nil
		},
	}}
	c, _ := newTestController(t, manifest, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Load(context.Background(), "geo"); err != nil {
				t.Errorf("Load: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := atomic.LoadInt64(&loads); n != 1 {
		t.Errorf("loader ran %d times, want 1", n)
	}
	if got := c.StateOf("geo"); got != StateLoaded {
		t.Errorf("state = %v, want loaded", got)
	}
}

func TestNavigateMountsAndRewards(t *testing.T) {
	dash := &fakeModule{id: "dashboard"}
	geo := &fakeModule{id: "geo"}
	c, store := newTestController(t, basicManifest(dash, geo), nil)

	c.Navigate(context.Background(), "geo")

	if got := c.Active(); got != "geo" {
		t.Fatalf("active = %q, want geo", got)
	}
	if got := c.StateOf("geo"); got != StateMounted {
		t.Errorf("state = %v, want mounted", got)
	}
	s := store.GetState()
	if s.Telemetry.AppLaunches["geo"] != 1 {
		t.Errorf("appLaunches[geo] = %d, want 1", s.Telemetry.AppLaunches["geo"])
	}
	if s.Profile.XP != launchXP {
		t.Errorf("xp = %d, want %d (launch reward)", s.Profile.XP, launchXP)
	}
	if s.Session.CurrentApp != "geo" {
		t.Errorf("session.currentApp = %q, want geo", s.Session.CurrentApp)
	}
}

func TestNavigateToDefaultAppNoReward(t *testing.T) {
	dash := &fakeModule{id: "dashboard"}
	c, store := newTestController(t, basicManifest(dash), nil)

	c.Navigate(context.Background(), "dashboard")

	if got := store.GetState().Profile.XP; got != 0 {
		t.Errorf("xp = %d, want 0 for the home screen", got)
	}
}

func TestNavigateSameIDIsNoOp(t *testing.T) {
	dash := &fakeModule{id: "dashboard"}
	geo := &fakeModule{id: "geo"}
	c, store := newTestController(t, basicManifest(dash, geo), nil)

	c.Navigate(context.Background(), "geo")
	c.Navigate(context.Background(), "geo")

	mounts, unmounts := geo.counts()
	if mounts != 1 || unmounts != 0 {
		t.Errorf("mounts=%d unmounts=%d, want 1/0", mounts, unmounts)
	}
	if got := store.GetState().Telemetry.AppLaunches["geo"]; got != 1 {
		t.Errorf("appLaunches[geo] = %d, want 1 (no second trackLaunch)", got)
	}
	if got := store.GetState().Telemetry.TransitionMatrix["dashboard"]["geo"]; got != 1 {
		t.Errorf("transitionMatrix[dashboard][geo] = %d, want 1", got)
	}
}

func TestNavigateUnknownIDIsSilentNoOp(t *testing.T) {
	dash := &fakeModule{id: "dashboard"}
	c, store := newTestController(t, basicManifest(dash), nil)
	c.Navigate(context.Background(), "dashboard")

	c.Navigate(context.Background(), "nope")

	if got := c.Active(); got != "dashboard" {
		t.Errorf("active = %q, want dashboard", got)
	}
	if got := store.GetState().Telemetry.AppLaunches["nope"]; got != 0 {
		t.Errorf("unknown id leaked into telemetry: %d", got)
	}
}

func TestNavigateUnmountsPreviousAndSuppressesErrors(t *testing.T) {
	dash := &fakeModule{id: "dashboard"}
	geo := &fakeModule{id: "geo", unmountErr: errors.New("cleanup exploded")}
	stock := &fakeModule{id: "stock"}
	c, _ := newTestController(t, basicManifest(dash, geo, stock), nil)

	c.Navigate(context.Background(), "geo")
	c.Navigate(context.Background(), "stock")

	_, unmounts := geo.counts()
	if unmounts != 1 {
		t.Errorf("geo unmounts = %d, want 1", unmounts)
	}
	if got := c.Active(); got != "stock" {
		t.Errorf("active = %q, want stock despite unmount error", got)
	}
}

func TestLoadFailureKeepsCurrentModule(t *testing.T) {
	dash := &fakeModule{id: "dashboard"}
	geo := &fakeModule{id: "geo"}
	manifest := basicManifest(dash, geo)
	manifest = append(manifest, Entry{
		ID:     "stock",
		Loader: func(context.Context) (Module, error) { return nil, errors.New("asset fetch failed") },
	})
	toasts := &toastRecorder{}
	c, _ := newTestController(t, manifest, toasts.record)

	c.Navigate(context.Background(), "geo")
	c.Navigate(context.Background(), "stock")

	if got := c.Active(); got != "geo" {
		t.Errorf("active = %q, want geo (previous module stays mounted)", got)
	}
	if _, unmounts := geo.counts(); unmounts != 0 {
		t.Errorf("geo unmounted %d times on a failed load, want 0", unmounts)
	}
	if toasts.count() == 0 {
		t.Error("load failure surfaced no toast")
	}
}

func TestMountFailureRevertsToDefault(t *testing.T) {
	dash := &fakeModule{id: "dashboard"}
	stock := &fakeModule{id: "stock", mountErr: errors.New("corrupt local state")}
	toasts := &toastRecorder{}
	c, _ := newTestController(t, basicManifest(dash, stock), toasts.record)

	c.Navigate(context.Background(), "dashboard")
	c.Navigate(context.Background(), "stock")

	if got := c.Active(); got != "dashboard" {
		t.Errorf("active = %q, want dashboard after mount failure", got)
	}
	if c.ActiveInstance() == nil {
		t.Error("viewport left with nothing mounted")
	}
	if toasts.count() == 0 {
		t.Error("mount failure surfaced no toast")
	}
}

func TestLikelyNextAppMatrixAndTieBreak(t *testing.T) {
	dash := &fakeModule{id: "dashboard"}
	c, store := newTestController(t, basicManifest(dash), nil)

	store.SetState(func(s hub.State) hub.State {
		next := s.Clone()
		next.Telemetry.TransitionMatrix["geo"] = map[string]int{
			"stock":   2,
			"clicker": 2,
			"trolley": 1,
		}
		return next
	})

	if got := c.LikelyNextApp("geo"); got != "clicker" {
		t.Errorf("LikelyNextApp = %q, want clicker (lexicographic tie-break)", got)
	}
}

func TestLikelyNextAppFallsBackToHint(t *testing.T) {
	dash := &fakeModule{id: "dashboard"}
	geo := &fakeModule{id: "geo", hint: []string{"stock", "clicker"}}
	c, _ := newTestController(t, basicManifest(dash, geo), nil)

	if _, err := c.Load(context.Background(), "geo"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := c.LikelyNextApp("geo"); got != "stock" {
		t.Errorf("LikelyNextApp = %q, want stock (module hint head)", got)
	}
}

func TestPredictivePreloadLoadsInBackground(t *testing.T) {
	dash := &fakeModule{id: "dashboard"}
	geo := &fakeModule{id: "geo", hint: []string{"stock"}}
	loaded := make(chan struct{})
	manifest := basicManifest(dash, geo)
	manifest = append(manifest, Entry{
		ID: "stock",
		Loader: func(context.Context) (Module, error) {
			defer close(loaded)
			return &fakeModule{id: "stock"}, nil
		},
	})
	c, _ := newTestController(t, manifest, nil)

	c.Navigate(context.Background(), "geo")

	select {
	case <-loaded:
	case <-time.After(2 * time.Second):
		t.Fatal("predicted next app was never prefetched")
	}
	// Prefetch must not steal the viewport.
	if got := c.Active(); got != "geo" {
		t.Errorf("active = %q, want geo", got)
	}
}

func TestPredictivePreloadFailureIsSwallowed(t *testing.T) {
	dash := &fakeModule{id: "dashboard"}
	geo := &fakeModule{id: "geo", hint: []string{"stock"}}
	attempted := make(chan struct{})
	manifest := basicManifest(dash, geo)
	manifest = append(manifest, Entry{
		ID: "stock",
		Loader: func(context.Context) (Module, error) {
			defer close(attempted)
			return nil, errors.New("cdn timeout")
		},
	})
	c, _ := newTestController(t, manifest, nil)

	c.Navigate(context.Background(), "geo")

	select {
	case <-attempted:
	case <-time.After(2 * time.Second):
		t.Fatal("prefetch never attempted")
	}
	if got := c.Active(); got != "geo" {
		t.Errorf("active = %q, want geo after failed prefetch", got)
	}
	// The failed load settles back to registered once the in-flight
	// bookkeeping clears.
	deadline := time.Now().Add(time.Second)
	for c.StateOf("stock") != StateRegistered {
		if time.Now().After(deadline) {
			t.Fatalf("stock state = %v, want registered after failed prefetch", c.StateOf("stock"))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestShutdownUnmountsActive(t *testing.T) {
	dash := &fakeModule{id: "dashboard"}
	c, _ := newTestController(t, basicManifest(dash), nil)

	c.Navigate(context.Background(), "dashboard")
	c.Shutdown()

	if _, unmounts := dash.counts(); unmounts != 1 {
		t.Errorf("unmounts = %d, want 1", unmounts)
	}
	if c.Active() != "" {
		t.Errorf("active = %q after shutdown", c.Active())
	}
}
