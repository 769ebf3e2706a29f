// Package spotify provides the catalogue client for the Spotify Web API.
package spotify

import (
	"context"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"

	"github.com/pacebox/pacebox/internal/domain/track"
	"github.com/pacebox/pacebox/internal/infra/metrics"
)

// audioFeatureBatchLimit is the Spotify cap on ids per audio-features call.
// Current call sites submit at most a saved-tracks window (50), but the
// client chunks anyway.
const audioFeatureBatchLimit = 100

var (
	// ErrPermissionDenied indicates a 403 from the catalogue: the token is
	// missing a required scope. Surfaced verbatim to the user, never retried.
	ErrPermissionDenied = errors.New("permission denied: check API scopes and permissions")

	// ErrCatalogUnavailable indicates a non-403 failure talking to the
	// catalogue (network, server error, unparseable response).
	ErrCatalogUnavailable = errors.New("catalogue unavailable")

	// ErrNoAudioFeatures indicates the audio-features response carried no
	// usable entries. Callers degrade to an empty ranking instead of failing.
	ErrNoAudioFeatures = errors.New("no audio features found for the provided tracks")
)

// Client is a bearer-token-scoped Spotify catalogue client.
// Every call is a single attempt; failures surface to the caller and are
// never retried here.
type Client struct {
	api *spotify.Client
}

// New creates a catalogue client from the opaque bearer token yielded by
// the auth provider.
func New(ctx context.Context, accessToken string) (*Client, error) {
	if accessToken == "" {
		return nil, errors.New("access token is required")
	}

	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))

	return &Client{api: spotify.New(httpClient)}, nil
}

// TopTracks returns the user's long-term top tracks.
func (c *Client) TopTracks(ctx context.Context, limit int) ([]track.Track, error) {
	page, err := c.api.CurrentUsersTopTracks(ctx,
		spotify.Limit(limit),
		spotify.Timerange(spotify.LongTermRange),
	)
	if err != nil {
		return nil, c.fail("top_tracks", err, "failed to get top tracks")
	}
	metrics.CatalogRequests.WithLabelValues("top_tracks", "ok").Inc()

	tracks := make([]track.Track, 0, len(page.Tracks))
	for i := range page.Tracks {
		tracks = append(tracks, convertTrack(&page.Tracks[i]))
	}
	return tracks, nil
}

// TopArtists returns the user's long-term top artists.
func (c *Client) TopArtists(ctx context.Context, limit int) ([]track.Artist, error) {
	page, err := c.api.CurrentUsersTopArtists(ctx,
		spotify.Limit(limit),
		spotify.Timerange(spotify.LongTermRange),
	)
	if err != nil {
		return nil, c.fail("top_artists", err, "failed to get top artists")
	}
	metrics.CatalogRequests.WithLabelValues("top_artists", "ok").Inc()

	artists := make([]track.Artist, 0, len(page.Artists))
	for i := range page.Artists {
		artists = append(artists, convertArtist(&page.Artists[i]))
	}
	return artists, nil
}

// SavedTracks returns one window of the user's saved (liked) tracks.
// Only the first page is fetched; paging the full library is the caller's
// concern and out of scope here.
func (c *Client) SavedTracks(ctx context.Context, limit int) ([]track.Track, error) {
	page, err := c.api.CurrentUsersTracks(ctx, spotify.Limit(limit))
	if err != nil {
		return nil, c.fail("saved_tracks", err, "failed to get saved tracks")
	}
	metrics.CatalogRequests.WithLabelValues("saved_tracks", "ok").Inc()

	tracks := make([]track.Track, 0, len(page.Tracks))
	for i := range page.Tracks {
		tracks = append(tracks, convertTrack(&page.Tracks[i].FullTrack))
	}
	return tracks, nil
}

// AudioFeatures returns audio features keyed by track id. Requests are
// chunked at the API's batch cap. The API returns null for tracks it
// cannot analyze; those entries are skipped, so absent keys mean "no
// feature". A batch that yields no usable entries at all reports
// ErrNoAudioFeatures.
func (c *Client) AudioFeatures(ctx context.Context, ids []string) (map[string]track.AudioFeature, error) {
	features := make(map[string]track.AudioFeature, len(ids))
	if len(ids) == 0 {
		return features, nil
	}

	for _, batch := range chunkIDs(ids, audioFeatureBatchLimit) {
		sdkIDs := make([]spotify.ID, len(batch))
		for i, id := range batch {
			sdkIDs[i] = spotify.ID(id)
		}

		result, err := c.api.GetAudioFeatures(ctx, sdkIDs...)
		if err != nil {
			return nil, c.fail("audio_features", err, "failed to get audio features")
		}
		metrics.CatalogRequests.WithLabelValues("audio_features", "ok").Inc()

		for _, f := range result {
			if f == nil {
				continue
			}
			features[string(f.ID)] = track.AudioFeature{
				TrackID:      string(f.ID),
				Tempo:        float64(f.Tempo),
				Energy:       float64(f.Energy),
				Danceability: float64(f.Danceability),
				Valence:      float64(f.Valence),
			}
		}
	}

	if len(features) == 0 {
		return nil, errors.Mark(errors.Newf("no usable entries for %d ids", len(ids)), ErrNoAudioFeatures)
	}
	return features, nil
}

// fail records the failed call and maps the error onto the engine taxonomy.
func (c *Client) fail(endpoint string, err error, msg string) error {
	metrics.CatalogRequests.WithLabelValues(endpoint, "error").Inc()
	return errors.Wrap(classify(err), msg)
}

// classify maps an SDK error onto the engine's error taxonomy: 403 is
// always a scope problem, everything else is a generic catalogue outage.
func classify(err error) error {
	var apiErr spotify.Error
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusForbidden {
		return errors.Mark(err, ErrPermissionDenied)
	}
	// The SDK surfaces bare status text when the error body is not the
	// documented API error shape.
	if strings.Contains(err.Error(), "403") {
		return errors.Mark(err, ErrPermissionDenied)
	}
	return errors.Mark(err, ErrCatalogUnavailable)
}

// chunkIDs splits ids into batches of at most size.
func chunkIDs(ids []string, size int) [][]string {
	var chunks [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

// convertTrack converts a Spotify FullTrack to the domain Track.
// Audio features are joined later by the aggregator.
func convertTrack(t *spotify.FullTrack) track.Track {
	artists := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		artists[i] = a.Name
	}

	var albumArt string
	if len(t.Album.Images) > 0 {
		albumArt = t.Album.Images[0].URL
	}

	return track.Track{
		ID:          string(t.ID),
		Name:        t.Name,
		Artists:     artists,
		Album:       t.Album.Name,
		AlbumArtURL: albumArt,
	}
}

// convertArtist converts a Spotify FullArtist to the domain Artist.
func convertArtist(a *spotify.FullArtist) track.Artist {
	return track.Artist{
		ID:     string(a.ID),
		Name:   a.Name,
		Genres: a.Genres,
	}
}
