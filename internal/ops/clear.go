package ops

import (
	"fmt"

	"github.com/dmoskov/shadowsky-sub002/internal/errors"
)

// ClearInput contains parameters for the Clear operation.
type ClearInput struct {
	Confirm bool // must be true; Clear is irreversible
}

// ClearOutput contains the result of the Clear operation.
type ClearOutput struct {
	Profiles     int64  `json:"profiles"`
	Interactions int64  `json:"interactions"`
	Message      string `json:"message"`
}

// Clear wipes every cached profile, all interaction history, and the
// sync run log. The next sync starts from scratch and refolds whatever
// the service still serves.
func Clear(d Deps, input ClearInput) (*ClearOutput, error) {
	if !input.Confirm {
		return nil, errors.NewInvalidRequest("clear requires confirm: it deletes all cached data")
	}

	profiles, interactions := d.Store.Clear()
	return &ClearOutput{
		Profiles:     profiles,
		Interactions: interactions,
		Message: fmt.Sprintf("Cleared %d profiles and %d interaction records",
			profiles, interactions),
	}, nil
}
