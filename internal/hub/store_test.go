package hub

import (
	"errors"
	"testing"
	"time"
)

type failingPersister struct{}

func (failingPersister) Load() ([]byte, error)  { return nil, errors.New("disk gone") }
func (failingPersister) Save(blob []byte) error { return errors.New("disk gone") }

// testClock is a controllable wall clock for launch-telemetry tests.
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time            { return c.now }
func (c *testClock) Advance(d time.Duration)   { c.now = c.now.Add(d) }
func (c *testClock) Set(t time.Time)           { c.now = t }

func newTestStore(t *testing.T) (*Store, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := NewStore(&MemoryPersister{}, WithClock(clock.Now))
	return store, clock
}

func TestAddXPZeroIsNoOp(t *testing.T) {
	store, _ := newTestStore(t)
	calls := 0
	store.Subscribe(func(State) { calls++ })

	store.AddXP(0, "nothing", "geo")

	s := store.GetState()
	if s.Profile.XP != 0 || len(s.Profile.PlayHistory) != 0 {
		t.Errorf("zero AddXP mutated state: xp=%d history=%d", s.Profile.XP, len(s.Profile.PlayHistory))
	}
	if calls != 0 {
		t.Errorf("zero AddXP notified subscribers %d times", calls)
	}
}

func TestAddXPUpdatesLevelAndHistory(t *testing.T) {
	store, _ := newTestStore(t)
	store.AddXP(150, "quiz streak", "geo")

	s := store.GetState()
	if s.Profile.XP != 150 {
		t.Errorf("xp = %d, want 150", s.Profile.XP)
	}
	if s.Profile.Level != Level(150) {
		t.Errorf("level = %d, want %d", s.Profile.Level, Level(150))
	}
	if len(s.Profile.PlayHistory) != 1 {
		t.Fatalf("history length = %d, want 1", len(s.Profile.PlayHistory))
	}
	if s.Profile.PlayHistory[0].AppID != "geo" || s.Profile.PlayHistory[0].XP != 150 {
		t.Errorf("unexpected history head: %+v", s.Profile.PlayHistory[0])
	}
}

func TestPlayHistoryBounded(t *testing.T) {
	store, _ := newTestStore(t)
	for i := 0; i < playHistoryLimit+20; i++ {
		store.AddXP(1, "tick", "clicker")
	}
	if got := len(store.GetState().Profile.PlayHistory); got != playHistoryLimit {
		t.Errorf("history length = %d, want %d", got, playHistoryLimit)
	}
}

func TestAchievementUnlocksOnce(t *testing.T) {
	store, _ := newTestStore(t)
	var unlocked []string
	store.SetAchievementListener(func(a AchievementRecord) {
		unlocked = append(unlocked, a.ID)
	})

	store.AddXP(150, "grind", "clicker")
	store.AddXP(10, "grind", "clicker")

	count := 0
	for _, a := range store.GetState().Profile.Achievements {
		if a.ID == "xp-bronze" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("xp-bronze appears %d times, want 1", count)
	}
	if len(unlocked) != 1 || unlocked[0] != "xp-bronze" {
		t.Errorf("listener calls = %v, want [xp-bronze]", unlocked)
	}
}

func TestAchievementEvaluationOrder(t *testing.T) {
	store, _ := newTestStore(t)
	var unlocked []string
	store.SetAchievementListener(func(a AchievementRecord) {
		unlocked = append(unlocked, a.ID)
	})

	// One mutation satisfying four rules at once: all fire in definition
	// order, each with its own listener call.
	store.AddXP(20000, "jackpot", "clicker")

	want := []string{"xp-bronze", "xp-silver", "xp-gold", "xp-legend"}
	if len(unlocked) != len(want) {
		t.Fatalf("listener calls = %v, want %v", unlocked, want)
	}
	for i := range want {
		if unlocked[i] != want[i] {
			t.Fatalf("listener calls = %v, want %v", unlocked, want)
		}
	}

	// Records are prepended, so the list reads newest-first.
	achs := store.GetState().Profile.Achievements
	if achs[0].ID != "xp-legend" || achs[len(achs)-1].ID != "xp-bronze" {
		t.Errorf("unexpected unlock ordering: first=%s last=%s", achs[0].ID, achs[len(achs)-1].ID)
	}
}

func TestAddAchievementManualPath(t *testing.T) {
	store, _ := newTestStore(t)
	calls := 0
	store.SetAchievementListener(func(AchievementRecord) { calls++ })

	store.AddAchievement("geo-sprint", "Geo Sprint", "geo", TierSilver, false)
	store.AddAchievement("geo-sprint", "Geo Sprint", "geo", TierSilver, false)

	count := 0
	for _, a := range store.GetState().Profile.Achievements {
		if a.ID == "geo-sprint" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("geo-sprint appears %d times, want 1", count)
	}
	if calls != 1 {
		t.Errorf("listener called %d times, want 1", calls)
	}
}

func TestGrantTokensUnlockProgression(t *testing.T) {
	store, _ := newTestStore(t)

	store.GrantTokens(40, "clicker payout", "clicker")
	s := store.GetState()
	if !s.Progression.UnlockedModes.ClickerAdvanced {
		t.Error("clickerAdvanced should unlock at 40 tokens")
	}
	if s.Progression.UnlockedModes.StockPro {
		t.Error("stockPro should stay locked at 40 tokens")
	}

	store.GrantTokens(30, "stock payout", "stock")
	s = store.GetState()
	if s.Profile.Tokens != 70 {
		t.Errorf("tokens = %d, want 70", s.Profile.Tokens)
	}
	if !s.Progression.UnlockedModes.StockPro {
		t.Error("stockPro should unlock at 70 tokens")
	}
}

func TestTrackDecisionCreatesKeys(t *testing.T) {
	store, _ := newTestStore(t)
	store.TrackDecision(map[string]float64{"utilitarian": 2, "novelAxis": 1.5})
	store.TrackDecision(map[string]float64{"utilitarian": -0.5})

	d := store.GetState().Profile.DecisionAnalytics
	if d["utilitarian"] != 1.5 {
		t.Errorf("utilitarian = %v, want 1.5", d["utilitarian"])
	}
	if d["novelAxis"] != 1.5 {
		t.Errorf("novelAxis = %v, want 1.5", d["novelAxis"])
	}
}

func TestTrackStrategicSignal(t *testing.T) {
	store, _ := newTestStore(t)
	store.TrackStrategicSignal(map[string]float64{"analyst": 3})
	store.TrackStrategicSignal(map[string]float64{"analyst": 2, "optimizer": 1})

	sig := store.GetState().Telemetry.StrategicSignals
	if sig["analyst"] != 5 || sig["optimizer"] != 1 {
		t.Errorf("signals = %v", sig)
	}
}

func TestTrackLaunchTelemetry(t *testing.T) {
	store, clock := newTestStore(t)
	clock.Advance(120 * time.Second)

	store.TrackLaunch("geo")

	s := store.GetState()
	if got := s.Telemetry.TransitionMatrix["dashboard"]["geo"]; got != 1 {
		t.Errorf("transitionMatrix[dashboard][geo] = %d, want 1", got)
	}
	if got := s.Telemetry.AppLaunches["geo"]; got != 1 {
		t.Errorf("appLaunches[geo] = %d, want 1", got)
	}
	if got := s.Telemetry.TimeSpent["dashboard"]; got < 120 {
		t.Errorf("timeSpent[dashboard] = %d, want >= 120", got)
	}
	if s.Telemetry.LastApp != "geo" || s.Session.CurrentApp != "geo" {
		t.Errorf("lastApp=%q currentApp=%q, want geo", s.Telemetry.LastApp, s.Session.CurrentApp)
	}
	if !s.Session.StartedAt.Equal(clock.Now()) {
		t.Error("session start not re-anchored to launch time")
	}
}

func TestTrackLaunchNightWindow(t *testing.T) {
	tests := []struct {
		hour int
		want int
	}{
		{hour: 23, want: 1},
		{hour: 0, want: 1},
		{hour: 3, want: 1},
		{hour: 4, want: 1},
		{hour: 5, want: 0},
		{hour: 12, want: 0},
		{hour: 22, want: 0},
	}
	for _, tt := range tests {
		store, clock := newTestStore(t)
		clock.Set(time.Date(2026, 3, 1, tt.hour, 30, 0, 0, time.UTC))
		store.TrackLaunch("stock")
		if got := store.GetState().Profile.NightLaunches; got != tt.want {
			t.Errorf("hour %d: nightLaunches = %d, want %d", tt.hour, got, tt.want)
		}
	}
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	store, _ := newTestStore(t)
	calls := 0
	unsub := store.Subscribe(func(s State) {
		calls++
		if s.Profile.XP == 0 {
			t.Error("subscriber saw stale snapshot")
		}
	})

	store.AddXP(10, "a", "geo")
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}

	unsub()
	store.AddXP(10, "b", "geo")
	if calls != 1 {
		t.Errorf("calls after unsubscribe = %d, want 1", calls)
	}
}

func TestPersistenceFailureIsBestEffort(t *testing.T) {
	store := NewStore(failingPersister{})
	store.AddXP(25, "still works", "geo")
	if got := store.GetState().Profile.XP; got != 25 {
		t.Errorf("xp = %d, want 25 despite persistence failure", got)
	}
}

func TestIncrementInsightRuns(t *testing.T) {
	store, _ := newTestStore(t)
	store.IncrementInsightRuns()

	s := store.GetState()
	if s.Profile.InsightRuns != 1 {
		t.Errorf("insightRuns = %d, want 1", s.Profile.InsightRuns)
	}
	if !hasAchievement(s.Profile.Achievements, "insight-first") {
		t.Error("insight-first should unlock on the first run")
	}
}

func TestSetPersonaProfile(t *testing.T) {
	store, _ := newTestStore(t)
	store.SetPersonaProfile(
		&Persona{Archetype: "Strategist", Summary: "plans ahead"},
		&PersonaImpact{RiskBias: 0.4, FocusBias: 0.2},
	)

	s := store.GetState()
	if s.Profile.Persona == nil || s.Profile.Persona.Archetype != "Strategist" {
		t.Errorf("persona = %+v", s.Profile.Persona)
	}
	if s.Profile.PersonaImpact.RiskBias != 0.4 {
		t.Errorf("riskBias = %v, want 0.4", s.Profile.PersonaImpact.RiskBias)
	}
}

func TestHiddenEthicsAchievement(t *testing.T) {
	store, _ := newTestStore(t)
	store.TrackDecision(map[string]float64{"utilitarian": 19})

	s := store.GetState()
	if !hasAchievement(s.Profile.Achievements, "ethics-bias") {
		t.Error("ethics-bias should unlock when |utilitarian-kantian| > 18")
	}
}

func TestStatePersistsAcrossStores(t *testing.T) {
	mem := &MemoryPersister{}
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}

	first := NewStore(mem, WithClock(clock.Now))
	first.GrantTokens(50, "payout", "clicker")
	first.AddXP(200, "grind", "clicker")

	second := NewStore(mem, WithClock(clock.Now))
	s := second.GetState()
	if s.Profile.Tokens != 50 || s.Profile.XP != 200 {
		t.Errorf("restored tokens=%d xp=%d, want 50/200", s.Profile.Tokens, s.Profile.XP)
	}
	if !s.Progression.UnlockedModes.GeoRanked {
		t.Error("unlocks not recomputed on restore")
	}
	if !hasAchievement(s.Profile.Achievements, "xp-bronze") {
		t.Error("achievements lost on restore")
	}
}
