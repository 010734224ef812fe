package ops

import (
	"github.com/dmoskov/shadowsky-sub002/internal/cache"
	"github.com/dmoskov/shadowsky-sub002/internal/enrich"
	"github.com/dmoskov/shadowsky-sub002/internal/errors"
)

// InteractionsInput contains parameters for the Interactions operation.
type InteractionsInput struct {
	Actor string // actor id or handle
}

// InteractionsOutput contains the result of the Interactions operation.
type InteractionsOutput struct {
	Profile *cache.Profile         `json:"profile,omitempty"`
	Stats   cache.InteractionStats `json:"stats"`
}

// Interactions reports the interaction history one account has with this
// one: counters per reason, first and last contact, and the posts the
// interactions touched. It reads only the cache.
func Interactions(d Deps, input InteractionsInput) (*InteractionsOutput, error) {
	actor := input.Actor
	if actor == "" {
		return nil, errors.NewInvalidRequest("actor must not be empty")
	}

	var (
		actorID string
		profile *cache.Profile
	)
	if isDID(actor) {
		actorID = actor
		if p, ok := d.Store.GetProfile(actorID); ok {
			profile = p
		}
	} else {
		p, ok := d.Store.GetProfileByHandle(enrich.NormalizeHandle(actor))
		if !ok {
			return nil, errors.NewNotFound(actor)
		}
		actorID = p.ActorID
		profile = p
	}

	out := &InteractionsOutput{Profile: profile}
	if st, ok := d.Store.GetInteractions(actorID); ok {
		out.Stats = *st
	} else {
		if profile == nil {
			return nil, errors.NewNotFound(actor)
		}
		out.Stats = cache.InteractionStats{ActorID: actorID}
	}
	return out, nil
}
