// Package ranking provides tempo-distance ranking and pagination over the
// ranked sequence.
package ranking

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/pacebox/pacebox/internal/domain/track"
)

// ErrInvalidTarget indicates the target BPM is not a finite number greater
// than zero. Rejected before any network call is made.
var ErrInvalidTarget = errors.New("invalid target BPM: must be a finite number greater than zero")

// ParseTargetBPM parses the raw BPM text submitted by the presentation
// layer into a validated ranking target.
func ParseTargetBPM(raw string) (float64, error) {
	bpm, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidTarget, "parse %q", raw)
	}
	if err := validateTarget(bpm); err != nil {
		return 0, err
	}
	return bpm, nil
}

// validateTarget enforces the ranking precondition.
func validateTarget(targetBPM float64) error {
	if math.IsNaN(targetBPM) || math.IsInf(targetBPM, 0) || targetBPM <= 0 {
		return errors.Wrapf(ErrInvalidTarget, "got %v", targetBPM)
	}
	return nil
}

// Rank orders tracks by absolute tempo distance to the target BPM.
// Tracks without audio features are excluded, not ranked at infinite
// distance. The sort is stable: exact distance ties keep input order, with
// no secondary key. Rank is a pure function; identical inputs always yield
// identical output.
//
// The target is re-validated here as a hard contract even though the
// presentation layer validates first.
func Rank(tracks []track.Track, targetBPM float64) ([]track.RankedEntry, error) {
	if err := validateTarget(targetBPM); err != nil {
		return nil, err
	}

	entries := make([]track.RankedEntry, 0, len(tracks))
	for _, t := range tracks {
		if !t.HasFeature() {
			continue
		}
		entries = append(entries, track.RankedEntry{
			Track:    t,
			Distance: math.Abs(t.Feature.Tempo - targetBPM),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Distance < entries[j].Distance
	})

	return entries, nil
}
