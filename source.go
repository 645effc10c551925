package fetchtube

import (
	"context"
	"time"
)

// SourceInfo is the metadata record for a matched link, populated by a
// successful Source.Recon. No file is written to obtain it.
type SourceInfo struct {
	ID       string
	Title    string
	Uploader string
	Duration time.Duration
	Views    int64
}

type Source interface {
	// URL should return the canonical URL for this source. It is assumed that
	// the Provider.Match that created the Source would match this canonical
	// URL too.
	URL() string
	// Recon fetches metadata about the source without downloading anything.
	// A nil error guarantees a non-nil SourceInfo.
	Recon(ctx context.Context) (*SourceInfo, error)
}
