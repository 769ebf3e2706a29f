package ranking

import (
	"github.com/cockroachdb/errors"

	"github.com/pacebox/pacebox/internal/domain/track"
)

// PageSize is the fixed number of entries per recommendation page.
const PageSize = 5

// ErrExhausted signals that a full pass over the ranked sequence is
// complete. It is a pagination signal, not a failure: the cursor has
// already been rewound and the next call restarts from the top.
var ErrExhausted = errors.New("no more results")

// Cursor tracks pagination progress over one ranked sequence.
// The zero value starts at the first page. A new ranked sequence requires
// a Reset; the cursor itself holds no reference to the sequence.
type Cursor struct {
	index int
}

// NextPage returns the slice [index*PageSize, (index+1)*PageSize) of the
// ranked sequence and advances the cursor. When the index has moved past
// the end it returns ErrExhausted and resets to the start instead of
// returning an empty page. Within one full pass no entry is skipped or
// repeated.
func (c *Cursor) NextPage(ranked []track.RankedEntry) ([]track.RankedEntry, error) {
	start := c.index * PageSize
	if start >= len(ranked) {
		c.index = 0
		return nil, ErrExhausted
	}

	end := start + PageSize
	if end > len(ranked) {
		end = len(ranked)
	}

	c.index++
	return ranked[start:end], nil
}

// Reset rewinds the cursor to the first page.
func (c *Cursor) Reset() {
	c.index = 0
}

// Position returns the current page index.
func (c *Cursor) Position() int {
	return c.index
}
