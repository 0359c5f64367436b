package geo

import (
	"context"
	"testing"
	"time"

	"simhub/internal/hub"
	"simhub/internal/insight"
	"simhub/internal/registry"
)

type memBlob struct{ blob []byte }

func (m *memBlob) Load() ([]byte, error) { return m.blob, nil }
func (m *memBlob) Save(b []byte) error   { m.blob = append([]byte(nil), b...); return nil }

func newMounted(t *testing.T) (*instance, *hub.Store) {
	t.Helper()
	store := hub.NewStore(&hub.MemoryPersister{})
	inst, err := New(&memBlob{}, nil).Mount(context.Background(), registry.Capabilities{
		Store: store,
		Toast: func(string, registry.Severity, time.Duration) {},
	})
	if err != nil {
		t.Fatalf("mount failed: %v", err)
	}
	return inst.(*instance), store
}

func TestCorrectAnswerRewardsAndAdvances(t *testing.T) {
	inst, store := newMounted(t)
	prev := inst.current.Country

	inst.answer(inst.current.Answer)
	if store.GetState().Profile.XP != 8 {
		t.Fatalf("xp = %d, want 8", store.GetState().Profile.XP)
	}
	if inst.streak != 1 {
		t.Fatalf("streak = %d, want 1", inst.streak)
	}
	if inst.local.Answered != 1 {
		t.Fatalf("answered = %d, want 1", inst.local.Answered)
	}
	_ = prev // the next round may legitimately redraw the same country
}

func TestWrongAnswerResetsStreak(t *testing.T) {
	inst, store := newMounted(t)
	inst.answer(inst.current.Answer)
	inst.answer((inst.current.Answer + 1) % len(inst.current.Options))

	if inst.streak != 0 {
		t.Fatalf("streak = %d, want 0", inst.streak)
	}
	if inst.local.BestStreak != 1 {
		t.Fatalf("best streak = %d, want 1", inst.local.BestStreak)
	}
	if store.GetState().Telemetry.StrategicSignals["explorer"] != 1 {
		t.Fatalf("explorer signal = %v, want 1", store.GetState().Telemetry.StrategicSignals["explorer"])
	}
}

func TestStreakOfFivePaysTokens(t *testing.T) {
	inst, store := newMounted(t)
	for range 5 {
		inst.answer(inst.current.Answer)
	}
	if got := store.GetState().Profile.Tokens; got != 5 {
		t.Fatalf("tokens = %d, want 5", got)
	}
}

func TestRankedModeDoublesPayout(t *testing.T) {
	inst, store := newMounted(t)
	store.GrantTokens(45, "test", "geo")
	for range 5 {
		inst.answer(inst.current.Answer)
	}
	if got := store.GetState().Profile.Tokens; got != 55 {
		t.Fatalf("tokens = %d, want 55", got)
	}
}

func TestEasyDifficultyShrinksOptions(t *testing.T) {
	inst, _ := newMounted(t)
	inst.local.Rounds = []insight.Round{{Win: false}, {Win: false}, {Win: false}, {Win: true}}
	inst.nextRound()
	if len(inst.current.Options) != 3 {
		t.Fatalf("options = %d, want 3 on easy", len(inst.current.Options))
	}
	if inst.current.Options[inst.current.Answer] != inst.current.Country.Capital {
		t.Fatal("answer index does not point at the capital")
	}
}
