package insight

import (
	"math/rand"
	"strings"
	"testing"
	"time"

	"simhub/internal/hub"
)

func baseState() hub.State {
	return hub.SeedState(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
}

func TestRiskToleranceFormula(t *testing.T) {
	tests := []struct {
		name       string
		riskTaking float64
		caution    float64
		riskBias   float64
		want       float64
	}{
		{name: "baseline", want: 50},
		{name: "risk taking only", riskTaking: 10, want: 70},
		{name: "caution pulls down", riskTaking: 10, caution: 10, want: 56},
		{name: "persona bias", riskBias: 1, want: 68},
		{name: "clamped high", riskTaking: 100, want: 100},
		{name: "clamped low", caution: 100, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := baseState()
			s.Profile.DecisionAnalytics["riskTaking"] = tt.riskTaking
			s.Profile.DecisionAnalytics["caution"] = tt.caution
			s.Profile.PersonaImpact.RiskBias = tt.riskBias
			got := AnalyzeUserPatterns(s).RiskTolerance
			if got != tt.want {
				t.Errorf("riskTolerance = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStrategicIndexFormula(t *testing.T) {
	s := baseState()
	s.Telemetry.StrategicSignals["analyst"] = 10
	s.Telemetry.StrategicSignals["optimizer"] = 10
	s.Telemetry.StrategicSignals["speedRunner"] = 10
	// 45 + 20 + 15 - 11 = 69
	if got := AnalyzeUserPatterns(s).StrategicIndex; got != 69 {
		t.Errorf("strategicIndex = %v, want 69", got)
	}
}

func TestHintPriority(t *testing.T) {
	tests := []struct {
		name       string
		riskTaking float64
		caution    float64
		analyst    float64
		wantFirst  string
		wantCount  int
	}{
		{name: "high risk", riskTaking: 20, wantFirst: "You favor upside-heavy", wantCount: 1},
		{name: "risk averse", caution: 20, wantFirst: "You are risk-averse", wantCount: 1},
		{name: "strategist", analyst: 15, wantFirst: "Strong systems thinking", wantCount: 1},
		{name: "high risk and strategist", riskTaking: 20, analyst: 15, wantFirst: "You favor upside-heavy", wantCount: 2},
		{name: "fallback", wantFirst: "Balanced decision profile", wantCount: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := baseState()
			s.Profile.DecisionAnalytics["riskTaking"] = tt.riskTaking
			s.Profile.DecisionAnalytics["caution"] = tt.caution
			s.Telemetry.StrategicSignals["analyst"] = tt.analyst
			hints := AnalyzeUserPatterns(s).Hints
			if len(hints) != tt.wantCount {
				t.Fatalf("hints = %v, want %d entries", hints, tt.wantCount)
			}
			if !strings.HasPrefix(hints[0], tt.wantFirst) {
				t.Errorf("headline hint = %q, want prefix %q", hints[0], tt.wantFirst)
			}
		})
	}
}

func TestMostPlayedDeterministicTieBreak(t *testing.T) {
	s := baseState()
	s.Telemetry.AppLaunches["wordforge"] = 3
	s.Telemetry.AppLaunches["geo"] = 3
	s.Telemetry.AppLaunches["stock"] = 1
	for i := 0; i < 50; i++ {
		if got := AnalyzeUserPatterns(s).MostPlayed; got != "geo" {
			t.Fatalf("mostPlayed = %q, want geo (lexicographic tie-break)", got)
		}
	}
}

func TestMostPlayedEmpty(t *testing.T) {
	if got := AnalyzeUserPatterns(baseState()).MostPlayed; got != "n/a" {
		t.Errorf("mostPlayed = %q, want n/a", got)
	}
}

func TestTotalTime(t *testing.T) {
	s := baseState()
	s.Telemetry.TimeSpent["geo"] = 300
	s.Telemetry.TimeSpent["stock"] = 450
	if got := AnalyzeUserPatterns(s).TotalTime; got != 750 {
		t.Errorf("totalTime = %d, want 750", got)
	}
}

func TestDifficultyAdapter(t *testing.T) {
	wins := func(n, total int) []Round {
		out := make([]Round, total)
		for i := 0; i < n; i++ {
			out[i].Win = true
		}
		return out
	}
	tests := []struct {
		name    string
		history []Round
		want    Difficulty
	}{
		{name: "empty defaults to normal", history: nil, want: Difficulty{Level: "normal", Target: 0.6}},
		{name: "nine of ten is hard", history: wins(9, 10), want: Difficulty{Level: "hard", Target: 0.8}},
		{name: "three of ten is easy", history: wins(3, 10), want: Difficulty{Level: "easy", Target: 0.45}},
		{name: "six of ten is normal", history: wins(6, 10), want: Difficulty{Level: "normal", Target: 0.6}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DifficultyAdapter(tt.history); got != tt.want {
				t.Errorf("DifficultyAdapter = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestGenerateMarketEventBounds(t *testing.T) {
	s := baseState()
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		ev := GenerateMarketEvent(s, rng)
		if ev.Tag == "" {
			t.Fatal("empty tag")
		}
		mag := ev.ImpactPct
		if mag < 0 {
			mag = -mag
		}
		// baseVol in [1.4, 4.8], risk factor at baseline = 0.7 + 0.5*0.8 = 1.1
		if mag > 4.8*1.5 {
			t.Fatalf("impact %v out of range", ev.ImpactPct)
		}
	}
}

func TestGenerateDilemmaSeedTone(t *testing.T) {
	s := baseState()
	s.Profile.DecisionAnalytics["utilitarian"] = 5
	s.Profile.DecisionAnalytics["kantian"] = 2
	if got := GenerateDilemmaSeed(s).Tone; got != "outcome" {
		t.Errorf("tone = %q, want outcome", got)
	}

	s.Profile.DecisionAnalytics["kantian"] = 9
	if got := GenerateDilemmaSeed(s).Tone; got != "principle" {
		t.Errorf("tone = %q, want principle", got)
	}
}

func TestPostGameFeedback(t *testing.T) {
	s := baseState()
	s.Profile.DecisionAnalytics["riskTaking"] = 10

	got := PostGameFeedback(s, "stock", LocalSummary{Summary: "Closed 3 positions."})
	want := "Insight Mode: stock shows risk 70 and strategy 45. Closed 3 positions. Next move: Balanced decision profile. Rotate across simulations for richer behavioral signal."
	if got != want {
		t.Errorf("feedback = %q\nwant       %q", got, want)
	}

	noLocal := PostGameFeedback(s, "stock", LocalSummary{})
	if strings.Contains(noLocal, "  ") {
		t.Errorf("feedback without local summary has double space: %q", noLocal)
	}
}

func TestFormatTime(t *testing.T) {
	tests := []struct {
		seconds int64
		want    string
	}{
		{seconds: 0, want: "0m"},
		{seconds: 59, want: "0m"},
		{seconds: 60, want: "1m"},
		{seconds: 3600, want: "1h 0m"},
		{seconds: 8130, want: "2h 15m"},
	}
	for _, tt := range tests {
		if got := FormatTime(tt.seconds); got != tt.want {
			t.Errorf("FormatTime(%d) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}
