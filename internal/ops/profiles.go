package ops

import (
	"context"

	"github.com/dmoskov/shadowsky-sub002/internal/enrich"
	"github.com/dmoskov/shadowsky-sub002/internal/errors"
)

// ProfilesInput contains parameters for the Profiles operation.
type ProfilesInput struct {
	Actors []string // actor ids or handles, mixed
}

// ProfilesOutput contains the result of the Profiles operation, keyed by
// the identifier the caller asked with (handles normalized).
type ProfilesOutput struct {
	Profiles map[string]enrich.EnrichedProfile `json:"profiles"`
}

// Profiles resolves a mixed list of actor ids and handles to profiles.
// Identifiers the service does not know are simply absent from the result.
func Profiles(ctx context.Context, d Deps, input ProfilesInput) (*ProfilesOutput, error) {
	if len(input.Actors) == 0 {
		return nil, errors.NewInvalidRequest("actors must not be empty")
	}
	if len(input.Actors) > MaxProfileRequest {
		return nil, errors.NewInvalidRequest("too many actors requested")
	}

	var ids, handles []string
	for _, a := range input.Actors {
		if a == "" {
			continue
		}
		if isDID(a) {
			ids = append(ids, a)
		} else {
			handles = append(handles, a)
		}
	}

	out := &ProfilesOutput{Profiles: make(map[string]enrich.EnrichedProfile)}

	if len(ids) > 0 {
		byID, err := d.Enricher.GetProfiles(ctx, ids)
		if err != nil {
			return nil, err
		}
		for id, p := range byID {
			out.Profiles[id] = p
		}
	}
	if len(handles) > 0 {
		byHandle, err := d.Enricher.GetProfilesByHandles(ctx, handles)
		if err != nil {
			return nil, err
		}
		for h, p := range byHandle {
			out.Profiles[h] = p
		}
	}

	return out, nil
}
