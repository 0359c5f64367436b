package hub

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Persister is the durable-storage boundary for the canonical snapshot.
// Writes are best-effort: the Store logs failures and keeps going.
type Persister interface {
	Load() ([]byte, error)
	Save(blob []byte) error
}

// MemoryPersister keeps the blob in memory. Used by tests and by the
// read-only CLI paths.
type MemoryPersister struct {
	mu   sync.Mutex
	Blob []byte
}

func (m *MemoryPersister) Load() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Blob, nil
}

func (m *MemoryPersister) Save(blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Blob = append([]byte(nil), blob...)
	return nil
}

// Store is the single source of truth for profile, progression, telemetry and
// session state. Every mutation replaces the snapshot wholesale, re-evaluates
// the achievement rules, persists, and synchronously notifies subscribers.
//
// Mutations are serialized; a subscriber callback must not synchronously call
// a mutation operation (the run-to-completion pipeline is still in flight).
type Store struct {
	pipeMu sync.Mutex // serializes the mutate -> evaluate -> persist -> notify pipeline
	mu     sync.RWMutex
	state  State

	persist Persister
	rules   []AchievementRule
	clock   func() time.Time
	log     *zap.Logger

	subMu       sync.Mutex
	subs        map[int]func(State)
	nextSub     int
	achListener func(AchievementRecord)

	// pendingUnlocks collects records granted inside the current pipeline
	// run so the listener fires exactly once per new unlock, after the
	// state swap. Guarded by pipeMu.
	pendingUnlocks []AchievementRecord
}

// Option configures a Store at construction time.
type Option func(*Store)

// WithClock overrides the wall clock, letting tests control elapsed time and
// launch hours.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) { s.clock = clock }
}

// WithRules replaces the built-in achievement registry.
func WithRules(rules []AchievementRule) Option {
	return func(s *Store) { s.rules = rules }
}

// WithLogger attaches a logger. A nil logger is replaced with a no-op one.
func WithLogger(log *zap.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// NewStore constructs the process-wide store: it loads the persisted snapshot
// through the persister, merges it over the structural default, recomputes the
// derived fields, and runs one initial evaluate/persist/notify pass.
func NewStore(persist Persister, opts ...Option) *Store {
	s := &Store{
		persist: persist,
		rules:   DefaultRules(),
		clock:   time.Now,
		log:     zap.NewNop(),
		subs:    map[int]func(State){},
	}
	for _, opt := range opts {
		opt(s)
	}

	blob, err := persist.Load()
	if err != nil {
		s.log.Warn("loading persisted state failed, using defaults", zap.Error(err))
		blob = nil
	}
	now := s.clock()
	s.state = LoadState(blob, now)
	s.state.Session.StartedAt = now

	// Initial pass mirrors every later mutation: evaluate, persist, notify.
	s.run("", func(st *State) {
		st.Progression.UnlockedModes = UnlocksForTokens(st.Profile.Tokens)
	})
	return s
}

// GetState returns the current snapshot. Callers must treat it as read-only.
func (s *Store) GetState() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Subscribe registers fn to be called synchronously with the new snapshot
// after every mutation. The returned function unsubscribes.
func (s *Store) Subscribe(fn func(State)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

// SetAchievementListener installs the single listener invoked once per newly
// unlocked achievement. It is never invoked for already-unlocked ids and must
// not throw the pipeline off course, so it should not call back into the store.
func (s *Store) SetAchievementListener(fn func(AchievementRecord)) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.achListener = fn
}

// SetState applies a pure updater to the current snapshot and runs the full
// post-mutation pipeline.
func (s *Store) SetState(updater func(State) State) {
	s.run("", func(st *State) {
		*st = updater(*st)
	})
}

// Patch shallow-merges the non-zero sections of partial into the state via
// the given mutator. It exists as the coarse-grained escape hatch mini-apps
// use for fields without a dedicated operation.
func (s *Store) Patch(mutate func(*State)) {
	s.run("", mutate)
}

// AddXP increases xp, recomputes the level, prepends a play-history entry and
// re-evaluates achievements attributing new unlocks to appID. Zero amounts
// are a no-op.
func (s *Store) AddXP(amount int, reason, appID string) {
	if amount == 0 {
		return
	}
	s.run(appID, func(st *State) {
		st.Profile.XP += amount
		st.Profile.Level = Level(st.Profile.XP)
		st.Profile.PlayHistory = prependHistory(st.Profile.PlayHistory, PlayEvent{
			At:     s.clock(),
			AppID:  orCurrent(appID, *st),
			Reason: reason,
			XP:     amount,
		})
	})
}

// GrantTokens increases the token balance, records history and recomputes the
// token-gated unlocks before achievements are evaluated.
func (s *Store) GrantTokens(amount int, reason, appID string) {
	if amount == 0 {
		return
	}
	s.run(appID, func(st *State) {
		st.Profile.Tokens += amount
		st.Profile.PlayHistory = prependHistory(st.Profile.PlayHistory, PlayEvent{
			At:     s.clock(),
			AppID:  orCurrent(appID, *st),
			Reason: reason,
			Tokens: amount,
		})
		st.Progression.UnlockedModes = UnlocksForTokens(st.Profile.Tokens)
	})
}

// AddAchievement is the manual unlock path. It bypasses predicate evaluation
// for the named id but still enforces the at-most-once invariant and still
// re-runs the evaluator afterwards for chained effects.
func (s *Store) AddAchievement(id, title, appID string, tier Tier, hidden bool) {
	s.run(appID, func(st *State) {
		if hasAchievement(st.Profile.Achievements, id) {
			return
		}
		rec := AchievementRecord{
			ID:     id,
			Title:  title,
			Tier:   tier,
			Hidden: hidden,
			At:     s.clock(),
			AppID:  orCurrent(appID, *st),
		}
		st.Profile.Achievements = append([]AchievementRecord{rec}, st.Profile.Achievements...)
		s.pendingUnlocks = append(s.pendingUnlocks, rec)
	})
}

// TrackDecision accumulates signed deltas into the decision analytics
// counters, creating keys on first use.
func (s *Store) TrackDecision(delta map[string]float64) {
	s.run("", func(st *State) {
		for k, v := range delta {
			st.Profile.DecisionAnalytics[k] += v
		}
	})
}

// TrackStrategicSignal accumulates signed deltas into the strategic signal
// counters, creating keys on first use.
func (s *Store) TrackStrategicSignal(delta map[string]float64) {
	s.run("", func(st *State) {
		for k, v := range delta {
			st.Telemetry.StrategicSignals[k] += v
		}
	})
}

// SetPersonaProfile overwrites the persona snapshot and, when impact is
// non-nil, replaces the bias scalars.
func (s *Store) SetPersonaProfile(persona *Persona, impact *PersonaImpact) {
	s.run("persona", func(st *State) {
		st.Profile.Persona = persona
		if impact != nil {
			st.Profile.PersonaImpact = *impact
		}
	})
}

// IncrementInsightRuns bumps the insight-run counter.
func (s *Store) IncrementInsightRuns() {
	s.run("", func(st *State) {
		st.Profile.InsightRuns++
	})
}

// EvaluateUnlocks recomputes the five token-gated booleans from the current
// token count. Idempotent; callable any time state changes.
func (s *Store) EvaluateUnlocks() {
	s.run("", func(st *State) {
		st.Progression.UnlockedModes = UnlocksForTokens(st.Profile.Tokens)
	})
}

// TrackLaunch is the navigation-telemetry operation: it attributes the
// elapsed session time to the app being left, bumps the transition matrix and
// launch counters, counts night launches, and re-points the session at
// nextApp. This is the single place the Markov transition graph is built.
func (s *Store) TrackLaunch(nextApp string) {
	s.run(nextApp, func(st *State) {
		now := s.clock()
		from := st.Telemetry.LastApp
		if from == "" {
			from = "dashboard"
		}

		elapsed := int64(now.Sub(st.Session.StartedAt).Seconds())
		if elapsed < 0 {
			elapsed = 0
		}

		row := st.Telemetry.TransitionMatrix[from]
		if row == nil {
			row = map[string]int{}
			st.Telemetry.TransitionMatrix[from] = row
		}
		row[nextApp]++
		st.Telemetry.AppLaunches[nextApp]++
		st.Telemetry.TimeSpent[from] += elapsed

		hour := now.Hour()
		if hour >= 23 || hour <= 4 {
			st.Profile.NightLaunches++
		}

		st.Session.CurrentApp = nextApp
		st.Session.StartedAt = now
		st.Telemetry.LastApp = nextApp
	})
}

func (s *Store) run(appID string, mutate func(*State)) {
	s.pipeMu.Lock()
	defer s.pipeMu.Unlock()
	s.pendingUnlocks = s.pendingUnlocks[:0]

	next := s.GetState().Clone()
	mutate(&next)
	s.evaluateAchievements(&next, appID)

	s.mu.Lock()
	s.state = next
	s.mu.Unlock()

	s.persistSnapshot(next)
	s.notify(next)
}

func (s *Store) evaluateAchievements(st *State, appID string) {
	for _, rule := range s.rules {
		if hasAchievement(st.Profile.Achievements, rule.ID) {
			continue
		}
		if !rule.Test(*st) {
			continue
		}
		rec := AchievementRecord{
			ID:     rule.ID,
			Title:  rule.Title,
			Tier:   rule.Tier,
			Hidden: rule.Hidden,
			At:     s.clock(),
			AppID:  orCurrent(appID, *st),
		}
		st.Profile.Achievements = append([]AchievementRecord{rec}, st.Profile.Achievements...)
		s.pendingUnlocks = append(s.pendingUnlocks, rec)
	}
}

func (s *Store) persistSnapshot(st State) {
	blob, err := json.Marshal(st)
	if err != nil {
		s.log.Warn("serializing state failed", zap.Error(err))
		return
	}
	if err := s.persist.Save(blob); err != nil {
		s.log.Warn("persisting state failed", zap.Error(err))
	}
}

func (s *Store) notify(st State) {
	s.subMu.Lock()
	listener := s.achListener
	fns := make([]func(State), 0, len(s.subs))
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		fns = append(fns, s.subs[id])
	}
	s.subMu.Unlock()

	if listener != nil {
		for _, rec := range s.pendingUnlocks {
			listener(rec)
		}
	}
	for _, fn := range fns {
		fn(st)
	}
}

func hasAchievement(list []AchievementRecord, id string) bool {
	for _, a := range list {
		if a.ID == id {
			return true
		}
	}
	return false
}

func orCurrent(appID string, st State) string {
	if appID != "" {
		return appID
	}
	return st.Session.CurrentApp
}

const playHistoryLimit = 300

func prependHistory(history []PlayEvent, ev PlayEvent) []PlayEvent {
	out := append([]PlayEvent{ev}, history...)
	if len(out) > playHistoryLimit {
		out = out[:playHistoryLimit]
	}
	return out
}
