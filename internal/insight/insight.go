// Package insight derives behavioral analytics from accumulated hub state.
// Every function is pure state-in/value-out and safe to call from any number
// of mounted mini-apps; randomness is always injected so the deterministic
// parts stay testable.
package insight

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"simhub/internal/hub"
)

// EthicalSkew passes the raw signed accumulators through unbounded.
type EthicalSkew struct {
	Utilitarian float64
	Kantian     float64
	Virtue      float64
}

// Report is the behavioral profile shown across the hub.
type Report struct {
	RiskTolerance  float64 // 0..100
	StrategicIndex float64 // 0..100
	EthicalSkew    EthicalSkew
	MostPlayed     string // app id, or "n/a" with no launch history
	TotalTime      int64  // seconds across all apps
	Hints          []string
}

// AnalyzeUserPatterns scores the accumulated decision and strategy signals.
// Hints are ordered; callers use index 0 as the headline.
func AnalyzeUserPatterns(s hub.State) Report {
	d := s.Profile.DecisionAnalytics
	sig := s.Telemetry.StrategicSignals

	risk := clamp(50+d["riskTaking"]*2-d["caution"]*1.4+s.Profile.PersonaImpact.RiskBias*18, 0, 100)
	strategy := clamp(45+sig["analyst"]*2+sig["optimizer"]*1.5-sig["speedRunner"]*1.1, 0, 100)

	var total int64
	for _, v := range s.Telemetry.TimeSpent {
		total += v
	}

	hints := []string{}
	if risk > 70 {
		hints = append(hints, "You favor upside-heavy decisions. Consider downside hedges in Stock Pro.")
	}
	if risk < 35 {
		hints = append(hints, "You are risk-averse; explore selective high-upside bets to reduce regret drift.")
	}
	if strategy > 70 {
		hints = append(hints, "Strong systems thinking detected. Advanced optimization modes are a good fit.")
	}
	if len(hints) == 0 {
		hints = append(hints, "Balanced decision profile. Rotate across simulations for richer behavioral signal.")
	}

	return Report{
		RiskTolerance:  risk,
		StrategicIndex: strategy,
		EthicalSkew: EthicalSkew{
			Utilitarian: d["utilitarian"],
			Kantian:     d["kantian"],
			Virtue:      d["virtue"],
		},
		MostPlayed: mostPlayed(s.Telemetry.AppLaunches),
		TotalTime:  total,
		Hints:      hints,
	}
}

// mostPlayed picks the highest launch count; ties break lexicographically by
// app id so the result never depends on map iteration order.
func mostPlayed(launches map[string]int) string {
	if len(launches) == 0 {
		return "n/a"
	}
	ids := make([]string, 0, len(launches))
	for id := range launches {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	best := ids[0]
	for _, id := range ids[1:] {
		if launches[id] > launches[best] {
			best = id
		}
	}
	return best
}

// Round records one win/loss outcome in a bounded recent window.
type Round struct {
	Win bool
}

// Difficulty is the three-level adaptive classification.
type Difficulty struct {
	Level  string
	Target float64
}

// DifficultyAdapter classifies recent performance. An empty window defaults
// to normal without dividing by zero.
func DifficultyAdapter(history []Round) Difficulty {
	if len(history) == 0 {
		return Difficulty{Level: "normal", Target: 0.6}
	}
	wins := 0
	for _, h := range history {
		if h.Win {
			wins++
		}
	}
	rate := float64(wins) / float64(len(history))
	switch {
	case rate > 0.78:
		return Difficulty{Level: "hard", Target: 0.8}
	case rate < 0.38:
		return Difficulty{Level: "easy", Target: 0.45}
	default:
		return Difficulty{Level: "normal", Target: 0.6}
	}
}

// MarketEvent is a risk-scaled shock consumed by the trading mini-app.
type MarketEvent struct {
	Tag       string
	ImpactPct float64
}

var marketTags = []string{
	"Macro liquidity shift",
	"Policy signal surprise",
	"Earnings regime break",
	"Supply-chain compression",
	"Consumer sentiment shock",
}

// GenerateMarketEvent derives a tagged shock whose magnitude scales with the
// user's risk tolerance.
func GenerateMarketEvent(s hub.State, rng *rand.Rand) MarketEvent {
	p := AnalyzeUserPatterns(s)
	risk := p.RiskTolerance / 100

	polarity := 1.0
	if rng.Float64() <= 0.5 {
		polarity = -1.0
	}
	baseVol := 1.4 + rng.Float64()*3.4
	mag := baseVol * (0.7 + risk*0.8)

	return MarketEvent{
		Tag:       marketTags[rng.Intn(len(marketTags))],
		ImpactPct: math.Round(mag*polarity*100) / 100,
	}
}

// DilemmaSeed is a tone-biased prompt seed for the ethics mini-app.
type DilemmaSeed struct {
	Tone   string // "outcome" or "principle"
	Prompt string
}

// GenerateDilemmaSeed biases the dilemma tone toward whichever ethical axis
// dominates the accumulated decisions.
func GenerateDilemmaSeed(s hub.State) DilemmaSeed {
	p := AnalyzeUserPatterns(s)
	if p.EthicalSkew.Utilitarian >= p.EthicalSkew.Kantian {
		return DilemmaSeed{
			Tone:   "outcome",
			Prompt: "Would you allow a controlled rights violation if it prevents systemic collapse?",
		}
	}
	return DilemmaSeed{
		Tone:   "principle",
		Prompt: "Would you preserve rights even if aggregate harm rises materially?",
	}
}

// LocalSummary carries an optional app-local sentence into the feedback line.
type LocalSummary struct {
	Summary string
}

// PostGameFeedback composes the single insight sentence shown after a round.
func PostGameFeedback(s hub.State, appID string, local LocalSummary) string {
	p := AnalyzeUserPatterns(s)
	base := fmt.Sprintf("Insight Mode: %s shows risk %d and strategy %d.",
		appID, int(math.Round(p.RiskTolerance)), int(math.Round(p.StrategicIndex)))
	addon := ""
	if local.Summary != "" {
		addon = " " + local.Summary
	}
	return fmt.Sprintf("%s%s Next move: %s", base, addon, p.Hints[0])
}

// FormatTime renders accumulated seconds as "2h 15m" or "15m".
func FormatTime(seconds int64) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
