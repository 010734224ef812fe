package ops

import "fmt"

// SweepOutput contains the result of the Sweep operation.
type SweepOutput struct {
	Removed int64  `json:"removed"`
	Message string `json:"message"`
}

// Sweep deletes profiles whose last fetch is past the staleness horizon.
// Interaction history is never swept; it is the account's own record.
func Sweep(d Deps) (*SweepOutput, error) {
	removed := d.Store.SweepStale()

	message := "No stale profiles to sweep"
	if removed > 0 {
		word := "profile"
		if removed > 1 {
			word = "profiles"
		}
		message = fmt.Sprintf("Swept %d stale %s (older than %d days)",
			removed, word, d.Cfg.StaleAfterDays)
	}

	return &SweepOutput{Removed: removed, Message: message}, nil
}
