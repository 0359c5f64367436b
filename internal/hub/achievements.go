package hub

import "math"

// AchievementRule pairs the tagged achievement data with its pure predicate.
// Predicates must be side-effect-free and must not call back into the Store;
// evaluation order is the slice order and is part of the observable contract
// (it decides the tie-break when several rules fire in the same pass).
type AchievementRule struct {
	ID     string
	Tier   Tier
	Title  string
	Hidden bool
	Test   func(State) bool
}

// DefaultRules returns the built-in achievement registry, evaluated in order
// after every mutation.
func DefaultRules() []AchievementRule {
	return []AchievementRule{
		{ID: "xp-bronze", Tier: TierBronze, Title: "First 100 XP",
			Test: func(s State) bool { return s.Profile.XP >= 100 }},
		{ID: "xp-silver", Tier: TierSilver, Title: "XP 1,000",
			Test: func(s State) bool { return s.Profile.XP >= 1000 }},
		{ID: "xp-gold", Tier: TierGold, Title: "XP 5,000",
			Test: func(s State) bool { return s.Profile.XP >= 5000 }},
		{ID: "xp-legend", Tier: TierLegendary, Title: "XP 15,000",
			Test: func(s State) bool { return s.Profile.XP >= 15000 }},
		{ID: "apps-explorer", Tier: TierSilver, Title: "Simulation Explorer",
			Test: func(s State) bool { return len(s.Telemetry.AppLaunches) >= 6 }},
		{ID: "token-gold", Tier: TierGold, Title: "Token Architect",
			Test: func(s State) bool { return s.Profile.Tokens >= 120 }},
		{ID: "insight-first", Tier: TierBronze, Title: "Insight Seeker",
			Test: func(s State) bool { return s.Profile.InsightRuns >= 1 }},
		{ID: "ethics-bias", Tier: TierHidden, Title: "Moral Gravity", Hidden: true,
			Test: func(s State) bool {
				d := s.Profile.DecisionAnalytics
				return math.Abs(d["utilitarian"]-d["kantian"]) > 18
			}},
		{ID: "night-owl", Tier: TierHidden, Title: "Midnight Operator", Hidden: true,
			Test: func(s State) bool { return s.Profile.NightLaunches >= 5 }},
		{ID: "consistency", Tier: TierGold, Title: "Consistency Loop",
			Test: func(s State) bool {
				if len(s.Telemetry.TimeSpent) < 4 {
					return false
				}
				deep := 0
				for _, v := range s.Telemetry.TimeSpent {
					if v >= 600 {
						deep++
					}
				}
				return deep >= 3
			}},
	}
}
