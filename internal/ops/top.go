package ops

import (
	"github.com/dmoskov/shadowsky-sub002/internal/cache"
	"github.com/dmoskov/shadowsky-sub002/internal/errors"
)

// Ranking modes for TopAccounts.
const (
	ByFollowers    = "followers"
	ByInteractions = "interactions"
)

// TopAccountsInput contains parameters for the TopAccounts operation.
type TopAccountsInput struct {
	By           string // "followers" (default) or "interactions"
	Limit        int    // 0 means DefaultTopLimit
	MinFollowers int64  // followers mode only
}

// TopAccount is one ranked entry. Profile or Stats may be nil when the
// cache knows one side of an account but not the other.
type TopAccount struct {
	Rank    int                     `json:"rank"`
	Profile *cache.Profile          `json:"profile,omitempty"`
	Stats   *cache.InteractionStats `json:"stats,omitempty"`
}

// TopAccountsOutput contains the result of the TopAccounts operation.
type TopAccountsOutput struct {
	By    string       `json:"by"`
	Items []TopAccount `json:"items"`
}

// TopAccounts ranks cached accounts by follower count or by how often
// they have interacted with this account. It reads only the cache and
// never goes upstream.
func TopAccounts(d Deps, input TopAccountsInput) (*TopAccountsOutput, error) {
	by := input.By
	if by == "" {
		by = ByFollowers
	}
	if by != ByFollowers && by != ByInteractions {
		return nil, errors.NewInvalidRequest("by must be \"followers\" or \"interactions\"")
	}

	limit := input.Limit
	if limit <= 0 {
		limit = DefaultTopLimit
	}
	if limit > MaxTopLimit {
		limit = MaxTopLimit
	}

	out := &TopAccountsOutput{By: by}

	switch by {
	case ByFollowers:
		for i, p := range d.Store.TopByFollowers(input.MinFollowers, limit) {
			item := TopAccount{Rank: i + 1}
			cp := p
			item.Profile = &cp
			if st, ok := d.Store.GetInteractions(p.ActorID); ok {
				item.Stats = st
			}
			out.Items = append(out.Items, item)
		}
	case ByInteractions:
		for i, st := range d.Store.TopInteractions(limit) {
			item := TopAccount{Rank: i + 1}
			cst := st
			item.Stats = &cst
			if p, ok := d.Store.GetProfile(st.ActorID); ok {
				item.Profile = p
			}
			out.Items = append(out.Items, item)
		}
	}

	return out, nil
}
