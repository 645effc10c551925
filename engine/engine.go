// Package engine is the boundary to the external extraction engine: the
// library that resolves a link into media streams, fetches them, and performs
// any container/codec conversion. Everything above this package deals in
// format specifications and file paths only.
package engine

import (
	"context"

	"github.com/fetchtube/fetchtube"
)

// Progress is one periodic progress event surfaced by the engine's download
// loop. The callback delivering it runs synchronously inside that loop, so
// consumers must never block in it.
type Progress struct {
	Percent         float64
	DownloadedBytes int64
	TotalBytes      int64
}

type ProgressFunc func(Progress)

// Request parameterizes a single download attempt.
type Request struct {
	URL string
	// Spec selects streams and postprocessing for this attempt.
	Spec fetchtube.FormatSpec
	// OutputDir is the session-scoped directory the engine writes into.
	OutputDir string
	// OnProgress, if non-nil, receives periodic progress events.
	OnProgress ProgressFunc
}

// Result reports what the engine believes it produced. Filename is the
// engine's prepared output path; postprocessing may have substituted the
// container extension, so callers must verify what is actually on disk.
type Result struct {
	Filename string
	Title    string
	Uploader string
}

type Engine interface {
	// Download runs one download attempt to completion. An error means this
	// attempt failed; it says nothing about the URL being undownloadable.
	Download(ctx context.Context, req Request) (*Result, error)
}
