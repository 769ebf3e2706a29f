// Package track provides the Track domain entities.
package track

import (
	"math"
	"strings"
)

// Track represents a Spotify track entity.
// Contains only information retrieved from the catalogue API; immutable
// once fetched, apart from the audio-feature join.
type Track struct {
	ID          string        // Spotify track ID
	Name        string        // Track name
	Artists     []string      // Artist names
	Album       string        // Album name
	AlbumArtURL string        // Album art URL
	Feature     *AudioFeature // Audio features, nil when the API has none for this track
}

// AudioFeature represents per-track audio attributes from the catalogue
// API. Tempo drives ranking; the remaining attributes are pass-through.
type AudioFeature struct {
	TrackID      string  // Track the features belong to (1:1)
	Tempo        float64 // Beats per minute
	Energy       float64
	Danceability float64
	Valence      float64
}

// Artist represents a Spotify artist entity. Display only.
type Artist struct {
	ID     string
	Name   string
	Genres []string
}

// RankedEntry pairs a track with its computed distance to a target BPM.
type RankedEntry struct {
	Track    Track
	Distance float64
}

// AttachFeature joins an audio feature onto the track.
// A feature belonging to a different track is ignored, so an attached
// feature always has a matching identifier.
func (t *Track) AttachFeature(f AudioFeature) {
	if f.TrackID != t.ID {
		return
	}
	t.Feature = &f
}

// HasFeature reports whether the track carries audio features.
func (t *Track) HasFeature() bool {
	return t.Feature != nil
}

// DistanceTo returns the absolute tempo distance to the target BPM.
// Tracks without features have no distance; callers must check HasFeature.
func (t *Track) DistanceTo(targetBPM float64) float64 {
	if t.Feature == nil {
		return math.Inf(1)
	}
	return math.Abs(t.Feature.Tempo - targetBPM)
}

// ArtistLine returns the artist names joined for display.
func (t *Track) ArtistLine() string {
	return strings.Join(t.Artists, ", ")
}
