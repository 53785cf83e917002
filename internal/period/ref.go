package period

import (
	"time"

	"github.com/julianstephens/tally/internal/models"
)

// Ref names the period a log write targets: either a calendar date, which
// is keyed with the habit's cadence, or a precomputed period key.
type Ref struct {
	date time.Time
	key  string
}

// On refers to the period containing date.
func On(date time.Time) Ref {
	return Ref{date: date}
}

// Key refers to an already computed period key.
func Key(key string) Ref {
	return Ref{key: key}
}

// IsKey reports whether the ref carries a precomputed key.
func (r Ref) IsKey() bool {
	return r.key != ""
}

// Resolve returns the period key the ref addresses for the cadence.
func (k Keyer) Resolve(r Ref, cadence models.Cadence) string {
	if r.key != "" {
		return r.key
	}
	return k.Key(r.date, cadence)
}

func (r Ref) String() string {
	if r.key != "" {
		return r.key
	}
	return r.date.Format(time.RFC3339)
}
