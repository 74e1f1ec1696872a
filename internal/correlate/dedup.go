package correlate

import (
	"github.com/dmaltsev/media-courier/generic"
	"github.com/dmaltsev/media-courier/internal/sync_"
)

// A ClaimSet establishes first-ownership of canonical links across concurrent validator
// results. Claim is a single atomic test-and-insert; a separate read-then-write would admit
// duplicate deliveries under concurrency. Scope is one correlation run.
type ClaimSet struct {
	links *sync_.Mutexed[generic.Set[string]]
}

func NewClaimSet() *ClaimSet {
	return &ClaimSet{
		links: sync_.NewMutexed(generic.NewSet[string]()),
	}
}

// Claim returns true the first time a given link is claimed and false on every subsequent
// call with the same link.
func (s *ClaimSet) Claim(canonicalLink string) bool {
	var claimed bool
	_ = s.links.Locked(func(links generic.Set[string]) error {
		claimed = links.Add(canonicalLink)
		return nil
	})
	return claimed
}

// Count returns how many links have been claimed so far.
func (s *ClaimSet) Count() int {
	var count int
	_ = s.links.Locked(func(links generic.Set[string]) error {
		count = links.Count()
		return nil
	})
	return count
}
