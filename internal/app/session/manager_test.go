package session

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pacebox/pacebox/internal/app/catalog"
	"github.com/pacebox/pacebox/internal/app/ranking"
	"github.com/pacebox/pacebox/internal/app/session/state"
	"github.com/pacebox/pacebox/internal/domain/track"
	"github.com/pacebox/pacebox/internal/infra/spotify"
)

// stubClient backs the aggregator in tests and counts network-shaped calls.
type stubClient struct {
	topTracks  []track.Track
	topArtists []track.Artist
	saved      []track.Track
	features   map[string]track.AudioFeature

	profileErr error

	calls atomic.Int32
}

func (s *stubClient) TopTracks(ctx context.Context, limit int) ([]track.Track, error) {
	s.calls.Add(1)
	if s.profileErr != nil {
		return nil, s.profileErr
	}
	return s.topTracks, nil
}

func (s *stubClient) TopArtists(ctx context.Context, limit int) ([]track.Artist, error) {
	s.calls.Add(1)
	return s.topArtists, nil
}

func (s *stubClient) SavedTracks(ctx context.Context, limit int) ([]track.Track, error) {
	s.calls.Add(1)
	return append([]track.Track(nil), s.saved...), nil
}

func (s *stubClient) AudioFeatures(ctx context.Context, ids []string) (map[string]track.AudioFeature, error) {
	s.calls.Add(1)
	if len(s.features) == 0 {
		return nil, spotify.ErrNoAudioFeatures
	}
	return s.features, nil
}

func newTestManager(client *stubClient) *Manager {
	return New(Config{
		NewAggregator: func(ctx context.Context, accessToken string) (*catalog.Aggregator, error) {
			if accessToken == "" {
				return nil, errors.New("access token is required")
			}
			return catalog.New(client), nil
		},
	})
}

func savedWithTempos(tempos map[string]float64, ids ...string) *stubClient {
	saved := make([]track.Track, len(ids))
	for i, id := range ids {
		saved[i] = track.Track{ID: id, Name: "Track " + id}
	}
	features := make(map[string]track.AudioFeature, len(tempos))
	for id, tempo := range tempos {
		features[id] = track.AudioFeature{TrackID: id, Tempo: tempo}
	}
	return &stubClient{saved: saved, features: features}
}

func TestManager_LoginLifecycle(t *testing.T) {
	client := &stubClient{
		topTracks:  []track.Track{{ID: "t1"}},
		topArtists: []track.Artist{{ID: "a1", Name: "Artist 1"}},
		features:   map[string]track.AudioFeature{"t1": {TrackID: "t1", Tempo: 120}},
	}
	m := newTestManager(client)

	assert.Equal(t, state.PhaseLoggedOut, m.Phase())

	m.BeginLogin()
	assert.Equal(t, state.PhaseAuthenticating, m.Phase())

	require.NoError(t, m.CompleteLogin(context.Background(), "token-abc"))
	assert.Equal(t, state.PhaseLoggedIn, m.Phase())

	profile := m.Profile()
	require.NotNil(t, profile, "login triggers the profile load")
	assert.Equal(t, 120, profile.AverageTempo)
	assert.Len(t, profile.TopArtists, 1)
}

func TestManager_FailLogin(t *testing.T) {
	m := newTestManager(&stubClient{})

	m.BeginLogin()
	m.FailLogin()
	assert.Equal(t, state.PhaseLoggedOut, m.Phase())

	// FailLogin outside an authenticating flow does nothing.
	m.FailLogin()
	assert.Equal(t, state.PhaseLoggedOut, m.Phase())
}

func TestManager_BeginLoginWhileLoggedIn(t *testing.T) {
	client := &stubClient{features: map[string]track.AudioFeature{"x": {TrackID: "x", Tempo: 1}}}
	m := newTestManager(client)

	require.NoError(t, m.CompleteLogin(context.Background(), "token-abc"))

	m.BeginLogin()
	assert.Equal(t, state.PhaseLoggedIn, m.Phase(), "re-login while logged in is a no-op")
}

func TestManager_CompleteLogin_BadToken(t *testing.T) {
	m := newTestManager(&stubClient{})

	err := m.CompleteLogin(context.Background(), "")
	assert.Error(t, err)
	assert.Equal(t, state.PhaseLoggedOut, m.Phase())
}

func TestManager_ProfileFailureStaysLoggedIn(t *testing.T) {
	client := &stubClient{profileErr: spotify.ErrPermissionDenied}
	m := newTestManager(client)

	err := m.CompleteLogin(context.Background(), "token-abc")
	assert.ErrorIs(t, err, spotify.ErrPermissionDenied)
	// The token exchange itself succeeded; the session keeps it so the user
	// can retry with another action.
	assert.Equal(t, state.PhaseLoggedIn, m.Phase())
	assert.Nil(t, m.Profile())
}

func TestManager_SubmitTarget_InvalidBeforeNetwork(t *testing.T) {
	client := savedWithTempos(map[string]float64{"t1": 100}, "t1")
	m := newTestManager(client)
	require.NoError(t, m.CompleteLogin(context.Background(), "token-abc"))
	callsAfterLogin := client.calls.Load()

	for _, raw := range []string{"-5", "0", "NaN", "fast"} {
		_, err := m.SubmitTarget(context.Background(), raw)
		assert.ErrorIs(t, err, ranking.ErrInvalidTarget)
	}

	assert.Equal(t, callsAfterLogin, client.calls.Load(), "invalid input never reaches the catalogue")
}

func TestManager_SubmitTarget_NotLoggedIn(t *testing.T) {
	m := newTestManager(&stubClient{})

	_, err := m.SubmitTarget(context.Background(), "120")
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestManager_SubmitTargetAndPaging(t *testing.T) {
	client := savedWithTempos(
		map[string]float64{"t1": 90, "t2": 120, "t3": 100, "t4": 80, "t5": 140, "t6": 160, "t7": 60},
		"t1", "t2", "t3", "t4", "t5", "t6", "t7",
	)
	m := newTestManager(client)
	require.NoError(t, m.CompleteLogin(context.Background(), "token-abc"))

	ranked, err := m.SubmitTarget(context.Background(), "100")
	require.NoError(t, err)
	require.Len(t, ranked, 7)
	assert.Equal(t, 100.0, m.TargetBPM())

	// Pages of 5 and 2, then exhaustion, then a fresh pass.
	page, err := m.NextPage()
	require.NoError(t, err)
	assert.Len(t, page, ranking.PageSize)
	assert.Equal(t, "t3", page[0].Track.ID, "closest tempo comes first")

	page, err = m.NextPage()
	require.NoError(t, err)
	assert.Len(t, page, 2)

	_, err = m.NextPage()
	assert.ErrorIs(t, err, ranking.ErrExhausted)

	page, err = m.NextPage()
	require.NoError(t, err)
	assert.Equal(t, "t3", page[0].Track.ID, "exhaustion rewinds to the first page")
}

func TestManager_NewTargetResetsCursor(t *testing.T) {
	client := savedWithTempos(
		map[string]float64{"t1": 90, "t2": 120, "t3": 100, "t4": 80, "t5": 140, "t6": 160},
		"t1", "t2", "t3", "t4", "t5", "t6",
	)
	m := newTestManager(client)
	require.NoError(t, m.CompleteLogin(context.Background(), "token-abc"))

	_, err := m.SubmitTarget(context.Background(), "100")
	require.NoError(t, err)
	_, err = m.NextPage()
	require.NoError(t, err)

	// A new target rebuilds the sequence and rewinds to page 0.
	_, err = m.SubmitTarget(context.Background(), "150")
	require.NoError(t, err)

	page, err := m.NextPage()
	require.NoError(t, err)
	assert.Equal(t, "t5", page[0].Track.ID, "ranking reflects the new target from the first page")
}

func TestManager_Logout_ClearsEverything(t *testing.T) {
	client := savedWithTempos(map[string]float64{"t1": 100}, "t1")
	m := newTestManager(client)
	require.NoError(t, m.CompleteLogin(context.Background(), "token-abc"))
	_, err := m.SubmitTarget(context.Background(), "100")
	require.NoError(t, err)

	m.Logout()

	assert.Equal(t, state.PhaseLoggedOut, m.Phase())
	assert.Nil(t, m.Profile())
	assert.Empty(t, m.Ranked())
	assert.Zero(t, m.TargetBPM())

	_, err = m.NextPage()
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestManager_NextPage_EmptyRanking(t *testing.T) {
	// No saved tracks: ranking is empty and paging signals exhaustion at once.
	client := &stubClient{features: map[string]track.AudioFeature{"x": {TrackID: "x", Tempo: 1}}}
	m := newTestManager(client)
	require.NoError(t, m.CompleteLogin(context.Background(), "token-abc"))

	_, err := m.SubmitTarget(context.Background(), "120")
	require.NoError(t, err)

	_, err = m.NextPage()
	assert.ErrorIs(t, err, ranking.ErrExhausted)
}
