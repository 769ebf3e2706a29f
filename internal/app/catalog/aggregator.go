// Package catalog aggregates the user's listening profile from the
// catalogue API.
package catalog

import (
	"context"
	"math"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/pacebox/pacebox/internal/domain/track"
	"github.com/pacebox/pacebox/internal/infra/spotify"
)

const (
	// TopListLimit caps the top-tracks and top-artists lists.
	TopListLimit = 10

	// DefaultSavedTracksWindow is the saved-tracks fetch window.
	// One window per call; paging the full library is a deliberate scope
	// limitation, not a defect.
	DefaultSavedTracksWindow = 50
)

// Client is the catalogue surface the aggregator consumes.
type Client interface {
	TopTracks(ctx context.Context, limit int) ([]track.Track, error)
	TopArtists(ctx context.Context, limit int) ([]track.Artist, error)
	SavedTracks(ctx context.Context, limit int) ([]track.Track, error)
	AudioFeatures(ctx context.Context, ids []string) (map[string]track.AudioFeature, error)
}

var _ Client = (*spotify.Client)(nil)

// Profile is the aggregated listening profile.
type Profile struct {
	TopTracks    []track.Track
	TopArtists   []track.Artist
	AverageTempo int // mean tempo of the top tracks, rounded to the nearest BPM
}

// Aggregator fetches and joins catalogue data for one authenticated user.
type Aggregator struct {
	client Client
}

// New creates an aggregator over the given catalogue client.
func New(client Client) *Aggregator {
	return &Aggregator{client: client}
}

// LoadProfile fetches the user's top tracks and top artists, then resolves
// audio features for the top tracks. The two top calls have no ordering
// dependency and run concurrently; the feature call depends on the
// top-tracks result. Either call failing fails the profile load, but the
// other call's outcome is unaffected.
func (a *Aggregator) LoadProfile(ctx context.Context) (*Profile, error) {
	var (
		topTracks  []track.Track
		topArtists []track.Artist
	)

	var g errgroup.Group
	g.Go(func() error {
		tracks, err := a.client.TopTracks(ctx, TopListLimit)
		if err != nil {
			return errors.Wrap(err, "failed to load top tracks")
		}
		topTracks = tracks
		return nil
	})
	g.Go(func() error {
		artists, err := a.client.TopArtists(ctx, TopListLimit)
		if err != nil {
			return errors.Wrap(err, "failed to load top artists")
		}
		topArtists = artists
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	features, err := a.featuresFor(ctx, topTracks)
	if err != nil {
		return nil, err
	}
	joinFeatures(topTracks, features)

	profile := &Profile{
		TopTracks:    topTracks,
		TopArtists:   topArtists,
		AverageTempo: averageTempo(topTracks),
	}

	zlog.Debug().
		Int("top_tracks", len(profile.TopTracks)).
		Int("top_artists", len(profile.TopArtists)).
		Int("average_tempo", profile.AverageTempo).
		Msg("profile loaded")

	return profile, nil
}

// LoadSavedTracks fetches one window of the user's saved tracks and joins
// each with its audio features before returning. Ranking reads the joined
// feature and never re-fetches.
func (a *Aggregator) LoadSavedTracks(ctx context.Context, windowSize int) ([]track.Track, error) {
	if windowSize <= 0 {
		windowSize = DefaultSavedTracksWindow
	}

	saved, err := a.client.SavedTracks(ctx, windowSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load saved tracks")
	}

	features, err := a.featuresFor(ctx, saved)
	if err != nil {
		return nil, err
	}
	joinFeatures(saved, features)

	return saved, nil
}

// featuresFor resolves audio features for the given tracks. An empty
// feature batch is not fatal: ranking over zero features is a valid
// outcome, so ErrNoAudioFeatures degrades to an empty map.
func (a *Aggregator) featuresFor(ctx context.Context, tracks []track.Track) (map[string]track.AudioFeature, error) {
	if len(tracks) == 0 {
		return map[string]track.AudioFeature{}, nil
	}

	ids := make([]string, len(tracks))
	for i, t := range tracks {
		ids[i] = t.ID
	}

	features, err := a.client.AudioFeatures(ctx, ids)
	if err != nil {
		if errors.Is(err, spotify.ErrNoAudioFeatures) {
			zlog.Warn().Int("tracks", len(tracks)).Msg("no audio features returned, continuing without tempo data")
			return map[string]track.AudioFeature{}, nil
		}
		return nil, errors.Wrap(err, "failed to load audio features")
	}
	return features, nil
}

// joinFeatures attaches features to their tracks in place.
func joinFeatures(tracks []track.Track, features map[string]track.AudioFeature) {
	for i := range tracks {
		if f, ok := features[tracks[i].ID]; ok {
			tracks[i].AttachFeature(f)
		}
	}
}

// averageTempo returns the mean tempo across feature-bearing tracks,
// rounded to the nearest integer BPM. No features means 0, not an error.
func averageTempo(tracks []track.Track) int {
	var sum float64
	var n int
	for i := range tracks {
		if tracks[i].HasFeature() {
			sum += tracks[i].Feature.Tempo
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return int(math.Round(sum / float64(n)))
}
