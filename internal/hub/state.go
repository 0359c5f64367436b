// Package hub implements the persistent reactive store shared by every
// mini-app: one canonical state snapshot, mutation operations that replace the
// snapshot wholesale, achievement and unlock evaluation after every mutation,
// and synchronous subscriber notification.
package hub

import (
	"encoding/json"
	"math"
	"time"
)

// StorageKey is the fixed key the canonical snapshot is persisted under.
const StorageKey = "simhub_state_v2"

// Tier classifies an achievement.
type Tier string

const (
	TierBronze    Tier = "Bronze"
	TierSilver    Tier = "Silver"
	TierGold      Tier = "Gold"
	TierLegendary Tier = "Legendary"
	TierHidden    Tier = "Hidden"
)

// AchievementRecord is the immutable snapshot stored once an achievement
// unlocks. An id appears at most once per profile for its lifetime.
type AchievementRecord struct {
	ID     string    `json:"id"`
	Title  string    `json:"title"`
	Tier   Tier      `json:"tier"`
	Hidden bool      `json:"hidden"`
	At     time.Time `json:"at"`
	AppID  string    `json:"appId"`
}

// PlayEvent is one entry in the bounded play history.
type PlayEvent struct {
	At     time.Time `json:"at"`
	AppID  string    `json:"appId"`
	Reason string    `json:"reason"`
	XP     int       `json:"xp,omitempty"`
	Tokens int       `json:"tokens,omitempty"`
}

// Persona is the derived snapshot produced by the psychometric mini-app.
type Persona struct {
	Archetype string `json:"archetype"`
	Summary   string `json:"summary"`
}

// PersonaImpact holds the bias scalars that modulate formulas in other
// mini-apps. Values hover in roughly [-1, 1].
type PersonaImpact struct {
	RiskBias    float64 `json:"riskBias"`
	FocusBias   float64 `json:"focusBias"`
	EmpathyBias float64 `json:"empathyBias"`
	SpeedBias   float64 `json:"speedBias"`
}

// Profile is the cross-app progression record.
type Profile struct {
	XP                int                `json:"xp"`
	Level             int                `json:"level"`
	Tokens            int                `json:"tokens"`
	Achievements      []AchievementRecord `json:"achievements"`
	PlayHistory       []PlayEvent        `json:"playHistory"`
	InsightRuns       int                `json:"insightRuns"`
	NightLaunches     int                `json:"nightLaunches"`
	Persona           *Persona           `json:"persona"`
	PersonaImpact     PersonaImpact      `json:"personaImpact"`
	DecisionAnalytics map[string]float64 `json:"decisionAnalytics"`
}

// UnlockedModes are the token-gated feature flags. They are always derivable
// from the token count and recomputed on every token change; the persisted
// copy exists for read convenience only.
type UnlockedModes struct {
	ClickerAdvanced  bool `json:"clickerAdvanced"`
	StockPro         bool `json:"stockPro"`
	TrolleyGenerator bool `json:"trolleyGenerator"`
	GeoRanked        bool `json:"geoRanked"`
	WordCompetitive  bool `json:"wordCompetitive"`
}

// Progression groups derived progression flags.
type Progression struct {
	UnlockedModes UnlockedModes `json:"unlockedModes"`
}

// Telemetry accumulates behavioral signals. TransitionMatrix and AppLaunches
// are monotonically non-decreasing counters; TimeSpent accrues the elapsed
// seconds between launches, attributed to the app being left.
type Telemetry struct {
	TransitionMatrix map[string]map[string]int `json:"transitionMatrix"`
	AppLaunches      map[string]int            `json:"appLaunches"`
	LastApp          string                    `json:"lastApp"`
	TimeSpent        map[string]int64          `json:"timeSpent"`
	StrategicSignals map[string]float64        `json:"strategicSignals"`
}

// Session is ephemeral navigation state. Only CurrentApp survives a restart
// meaningfully, as the initial navigation target.
type Session struct {
	CurrentApp  string    `json:"currentApp"`
	StartedAt   time.Time `json:"startedAt"`
	InsightMode bool      `json:"insightMode"`
}

// Auth holds the identity attached by the cloud-sync collaborator.
type Auth struct {
	Provider        string `json:"provider"`
	Handle          string `json:"handle"`
	CloudConfigured bool   `json:"cloudConfigured"`
	PublicID        string `json:"publicId"`
}

// Cloud holds the sync endpoint configuration.
type Cloud struct {
	Endpoint string `json:"endpoint"`
	APIKey   string `json:"apiKey"`
}

// ShareCard is a social artifact generated from progression milestones.
type ShareCard struct {
	ID      string    `json:"id"`
	Title   string    `json:"title"`
	Body    string    `json:"body"`
	Created time.Time `json:"created"`
}

// Social holds opt-in social surface state.
type Social struct {
	PublicProfile     bool        `json:"publicProfile"`
	ShareCards        []ShareCard `json:"shareCards"`
	FriendComparisons []string    `json:"friendComparisons"`
}

// State is the single canonical snapshot owned by the Store. Mini-apps never
// mutate it directly; every Store operation replaces it wholesale.
type State struct {
	Theme       string                     `json:"theme"`
	Session     Session                    `json:"session"`
	Auth        Auth                       `json:"auth"`
	Cloud       Cloud                      `json:"cloud"`
	Social      Social                     `json:"social"`
	Profile     Profile                    `json:"profile"`
	Progression Progression                `json:"progression"`
	Telemetry   Telemetry                  `json:"telemetry"`
	Modules     map[string]json.RawMessage `json:"modules"`
}

// Level is the pure xp -> level function. Level is never stored as
// independently mutable state; it is recomputed on every xp change.
func Level(xp int) int {
	if xp < 0 {
		xp = 0
	}
	return int(math.Floor(math.Sqrt(float64(xp)/120))) + 1
}

// UnlocksForTokens recomputes the token-gated flags from scratch. No
// hysteresis: the result depends on the current token count alone.
func UnlocksForTokens(tokens int) UnlockedModes {
	return UnlockedModes{
		ClickerAdvanced:  tokens >= 35,
		StockPro:         tokens >= 65,
		TrolleyGenerator: tokens >= 95,
		GeoRanked:        tokens >= 45,
		WordCompetitive:  tokens >= 55,
	}
}

// SeedState returns the structural default every load merges into.
func SeedState(now time.Time) State {
	return State{
		Theme: "dark",
		Session: Session{
			CurrentApp:  "dashboard",
			StartedAt:   now,
			InsightMode: true,
		},
		Auth: Auth{Handle: "Guest"},
		Social: Social{
			ShareCards:        []ShareCard{},
			FriendComparisons: []string{},
		},
		Profile: Profile{
			Level:        1,
			Achievements: []AchievementRecord{},
			PlayHistory:  []PlayEvent{},
			DecisionAnalytics: map[string]float64{
				"utilitarian": 0,
				"kantian":     0,
				"virtue":      0,
				"riskTaking":  0,
				"caution":     0,
			},
		},
		Telemetry: Telemetry{
			TransitionMatrix: map[string]map[string]int{},
			AppLaunches:      map[string]int{},
			LastApp:          "dashboard",
			TimeSpent:        map[string]int64{},
			StrategicSignals: map[string]float64{
				"optimizer":   0,
				"explorer":    0,
				"speedRunner": 0,
				"analyst":     0,
			},
		},
		Modules: map[string]json.RawMessage{},
	}
}

// LoadState merges a persisted blob over the structural default. Unknown or
// missing fields keep their seeded values; a malformed blob falls back to the
// seed entirely. Level is recomputed and never trusted from disk.
func LoadState(blob []byte, now time.Time) State {
	s := SeedState(now)
	if len(blob) > 0 {
		if err := json.Unmarshal(blob, &s); err != nil {
			s = SeedState(now)
		}
	}
	s.Profile.Level = Level(s.Profile.XP)
	s.Progression.UnlockedModes = UnlocksForTokens(s.Profile.Tokens)
	if s.Telemetry.TransitionMatrix == nil {
		s.Telemetry.TransitionMatrix = map[string]map[string]int{}
	}
	if s.Telemetry.AppLaunches == nil {
		s.Telemetry.AppLaunches = map[string]int{}
	}
	if s.Telemetry.TimeSpent == nil {
		s.Telemetry.TimeSpent = map[string]int64{}
	}
	if s.Telemetry.StrategicSignals == nil {
		s.Telemetry.StrategicSignals = map[string]float64{}
	}
	if s.Profile.DecisionAnalytics == nil {
		s.Profile.DecisionAnalytics = map[string]float64{}
	}
	if s.Modules == nil {
		s.Modules = map[string]json.RawMessage{}
	}
	return s
}

// Clone deep-copies the snapshot so mutations never alias a snapshot already
// handed to a subscriber.
func (s State) Clone() State {
	out := s

	out.Profile.Achievements = append([]AchievementRecord(nil), s.Profile.Achievements...)
	out.Profile.PlayHistory = append([]PlayEvent(nil), s.Profile.PlayHistory...)
	if s.Profile.Persona != nil {
		p := *s.Profile.Persona
		out.Profile.Persona = &p
	}
	out.Profile.DecisionAnalytics = copyMap(s.Profile.DecisionAnalytics)

	out.Telemetry.AppLaunches = copyMap(s.Telemetry.AppLaunches)
	out.Telemetry.TimeSpent = copyMap(s.Telemetry.TimeSpent)
	out.Telemetry.StrategicSignals = copyMap(s.Telemetry.StrategicSignals)
	out.Telemetry.TransitionMatrix = make(map[string]map[string]int, len(s.Telemetry.TransitionMatrix))
	for from, row := range s.Telemetry.TransitionMatrix {
		out.Telemetry.TransitionMatrix[from] = copyMap(row)
	}

	out.Social.ShareCards = append([]ShareCard(nil), s.Social.ShareCards...)
	out.Social.FriendComparisons = append([]string(nil), s.Social.FriendComparisons...)

	out.Modules = make(map[string]json.RawMessage, len(s.Modules))
	for k, v := range s.Modules {
		out.Modules[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
