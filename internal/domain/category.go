package domain

import (
	"github.com/lib/pq"

	"github.com/google/uuid"
)

// Category is a market category: a named, ordered list of outcome labels
// shared by every market created under it. The outcome list's length is the
// dimensionality n of the LMSR quantity vector for those markets.
type Category struct {
	ID          uuid.UUID      `json:"id"          db:"id"`
	SportID     uuid.UUID      `json:"sport_id"    db:"sport_id"`
	Outcomes    pq.StringArray `json:"outcomes"    db:"outcomes"`
	Description string         `json:"description" db:"description"`
}

// OutcomeCount returns n, the number of outcomes this category defines.
func (c *Category) OutcomeCount() int {
	return len(c.Outcomes)
}

// IsBinary returns true for exactly-two-outcome categories — the only shape
// the Order Book Manager supports (§4.4).
func (c *Category) IsBinary() bool {
	return len(c.Outcomes) == 2
}

// OutcomeIndex returns the index of the named outcome, or -1 if unknown.
func (c *Category) OutcomeIndex(name string) int {
	for i, o := range c.Outcomes {
		if o == name {
			return i
		}
	}
	return -1
}
