package media_courier

import "fmt"

// A Candidate is an item discovered on the source listing, pending
// cross-site verification. The key is the normalized short identifier the
// second site is searched with.
type Candidate struct {
	Key          string
	DisplayName  string
	ThumbnailRef string
}

func (c Candidate) String() string {
	return fmt.Sprintf("Candidate{Key:%q}", c.Key)
}

// A ResultReference is a raw candidate match surfaced by the second site's
// search results: the URL of a detail page that may or may not verify
// against the originating Candidate.
type ResultReference struct {
	SourceURL string
}

// A ValidatedMatch is a (title, canonical link) pair that passed the
// title normalization rule. NormalizeTitle(Title) == Key holds for every
// ValidatedMatch produced by the validator.
type ValidatedMatch struct {
	Title         string
	Key           string
	ThumbnailRef  string
	CanonicalLink string
}

func (m ValidatedMatch) String() string {
	return fmt.Sprintf("ValidatedMatch{Key:%q, CanonicalLink:%q}", m.Key, m.CanonicalLink)
}
