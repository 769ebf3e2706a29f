// Package session provides the authenticated-session manager that owns the
// engine state for the lifetime of one login.
package session

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/pacebox/pacebox/internal/app/catalog"
	"github.com/pacebox/pacebox/internal/app/ranking"
	"github.com/pacebox/pacebox/internal/app/session/state"
	"github.com/pacebox/pacebox/internal/domain/track"
	"github.com/pacebox/pacebox/internal/infra/metrics"
	"github.com/pacebox/pacebox/internal/infra/spotify"
)

// ErrNotLoggedIn indicates an engine operation was invoked without an
// authenticated session.
var ErrNotLoggedIn = errors.New("not logged in")

// AggregatorFactory builds a catalogue aggregator for a bearer token.
type AggregatorFactory func(ctx context.Context, accessToken string) (*catalog.Aggregator, error)

// defaultAggregatorFactory wires the Spotify-backed catalogue client.
func defaultAggregatorFactory(ctx context.Context, accessToken string) (*catalog.Aggregator, error) {
	client, err := spotify.New(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	return catalog.New(client), nil
}

// Config configures a session manager.
type Config struct {
	SavedTracksWindow int               // defaults to catalog.DefaultSavedTracksWindow
	NewAggregator     AggregatorFactory // defaults to the Spotify-backed factory
}

// Manager owns one user's session state: the bearer token, the aggregated
// profile, the current ranked sequence and its cursor. Everything is reset
// on logout.
//
// Callers are expected to serialize ranking/paging actions for a session;
// the mutex keeps snapshots consistent, it does not order overlapping
// fetches.
type Manager struct {
	mu sync.RWMutex

	sessionID string
	phase     state.Phase

	token      string
	aggregator *catalog.Aggregator

	profile     *catalog.Profile
	savedWindow int

	targetBPM float64
	ranked    []track.RankedEntry
	cursor    ranking.Cursor

	newAggregator AggregatorFactory
}

// New creates a logged-out session manager.
func New(cfg Config) *Manager {
	if cfg.SavedTracksWindow <= 0 {
		cfg.SavedTracksWindow = catalog.DefaultSavedTracksWindow
	}
	if cfg.NewAggregator == nil {
		cfg.NewAggregator = defaultAggregatorFactory
	}
	return &Manager{
		sessionID:     uuid.New().String(),
		phase:         state.PhaseLoggedOut,
		savedWindow:   cfg.SavedTracksWindow,
		newAggregator: cfg.NewAggregator,
	}
}

// SessionID returns the session identifier.
func (m *Manager) SessionID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessionID
}

// Phase returns the current lifecycle phase.
func (m *Manager) Phase() state.Phase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.phase
}

// BeginLogin marks a login flow as in progress. Re-invoking login while
// already logged in is a no-op.
func (m *Manager) BeginLogin() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase == state.PhaseLoggedIn {
		return
	}
	m.phase = state.PhaseAuthenticating
}

// FailLogin returns the session to logged-out after a failed or cancelled
// login flow. The failure itself is surfaced by the auth provider; nothing
// is retried here.
func (m *Manager) FailLogin() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != state.PhaseAuthenticating {
		return
	}
	m.phase = state.PhaseLoggedOut
}

// CompleteLogin installs the bearer token yielded by the auth provider and
// loads the listening profile. A profile fetch failure is returned to the
// caller but leaves the session logged in: the token is valid and a later
// action may succeed. Completing while already logged in is a no-op.
func (m *Manager) CompleteLogin(ctx context.Context, accessToken string) error {
	m.mu.Lock()
	if m.phase == state.PhaseLoggedIn {
		m.mu.Unlock()
		return nil
	}

	aggregator, err := m.newAggregator(ctx, accessToken)
	if err != nil {
		m.phase = state.PhaseLoggedOut
		m.mu.Unlock()
		return errors.Wrap(err, "failed to create catalogue client")
	}

	m.token = accessToken
	m.aggregator = aggregator
	m.phase = state.PhaseLoggedIn
	sessionID := m.sessionID
	m.mu.Unlock()

	zlog.Info().Str("session_id", sessionID).Msg("logged in")
	return m.RefreshProfile(ctx)
}

// RefreshProfile re-fetches the aggregated listening profile.
func (m *Manager) RefreshProfile(ctx context.Context) error {
	m.mu.RLock()
	aggregator := m.aggregator
	m.mu.RUnlock()
	if aggregator == nil {
		return ErrNotLoggedIn
	}

	profile, err := aggregator.LoadProfile(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.profile = profile
	m.mu.Unlock()
	return nil
}

// Profile returns the aggregated profile, or nil before the first
// successful load.
func (m *Manager) Profile() *catalog.Profile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.profile
}

// SubmitTarget parses and validates the raw BPM text, rebuilds the ranked
// sequence from a fresh saved-tracks window and rewinds the cursor.
// Validation happens before any network call; invalid input never reaches
// the catalogue.
func (m *Manager) SubmitTarget(ctx context.Context, rawBPM string) ([]track.RankedEntry, error) {
	bpm, err := ranking.ParseTargetBPM(rawBPM)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	aggregator := m.aggregator
	window := m.savedWindow
	loggedIn := m.phase == state.PhaseLoggedIn
	m.mu.RUnlock()
	if !loggedIn || aggregator == nil {
		return nil, ErrNotLoggedIn
	}

	saved, err := aggregator.LoadSavedTracks(ctx, window)
	if err != nil {
		return nil, err
	}

	ranked, err := ranking.Rank(saved, bpm)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.targetBPM = bpm
	m.ranked = ranked
	m.cursor.Reset()
	m.mu.Unlock()

	metrics.RankingsBuilt.Inc()
	zlog.Info().Float64("target_bpm", bpm).Int("ranked", len(ranked)).Msg("ranked sequence rebuilt")
	return ranked, nil
}

// NextPage returns the next page of the current ranked sequence.
// ranking.ErrExhausted reports a completed pass: the cursor has been
// rewound and the immediate next call restarts from the top.
func (m *Manager) NextPage() ([]track.RankedEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != state.PhaseLoggedIn {
		return nil, ErrNotLoggedIn
	}

	page, err := m.cursor.NextPage(m.ranked)
	if err != nil {
		return nil, err
	}

	metrics.PagesServed.Inc()
	return page, nil
}

// TargetBPM returns the current ranking target, 0 when none is set.
func (m *Manager) TargetBPM() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.targetBPM
}

// Ranked returns the current ranked sequence.
func (m *Manager) Ranked() []track.RankedEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ranked
}

// Logout clears the token and every derived field unconditionally.
// There is no partial logout state.
func (m *Manager) Logout() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.phase = state.PhaseLoggedOut
	m.token = ""
	m.aggregator = nil
	m.profile = nil
	m.targetBPM = 0
	m.ranked = nil
	m.cursor.Reset()
	zlog.Info().Str("session_id", m.sessionID).Msg("logged out")
}
