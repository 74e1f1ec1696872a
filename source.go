package media_courier

import "context"

type SourceInfo interface {
	ID() string
	Title() string
}

// A Source is a canonical asset link matched by a Provider, before any remote
// information has been fetched.
type Source interface {
	// URL should return the canonical URL for this source. It is assumed that the Provider.Match
	// that created the Source would successfully match this canonical URL.
	URL() string
	// Recon should fetch whatever information is needed to perform the download, giving a
	// ResolvedSource.
	Recon(context.Context) (ResolvedSource, error)
}

// A ResolvedSource is a Source that is ready to download.
type ResolvedSource interface {
	Source
	// Download should fetch the actual asset into the Download's work directory.
	Download(Download) error
}
