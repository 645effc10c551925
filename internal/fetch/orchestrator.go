// Package fetch implements the download orchestration core: for a chosen
// quality tier it tries an ordered list of format specifications against the
// extraction engine until one yields a playable file on disk, falls back to a
// single generic last resort on video tiers, gates the result on the
// transport size limit, and owns best-effort cleanup of local artifacts.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/fetchtube/fetchtube"
	"github.com/fetchtube/fetchtube/engine"
	"github.com/fetchtube/fetchtube/internal/progress"
)

// DefaultSizeLimit matches the transport's attachment ceiling for bot uploads.
const DefaultSizeLimit int64 = 50 << 20

// ErrExhausted is the definitive failure: every tier specification and the
// last resort failed to produce a located file.
var ErrExhausted = errors.New("all download attempts failed")

// stalePatterns are the partial-output artifacts the engine is known to leave
// behind on an aborted attempt.
var stalePatterns = []string{"*.part", "*.ytdl"}

// Request describes one orchestrated download on behalf of one chat session.
type Request struct {
	ID     string
	ChatID int64
	URL    string
	Tier   fetchtube.Tier
	// OnProgress receives enriched progress updates; it must not block, and
	// may be nil. The orchestrator calls it from inside the engine's own
	// download loop.
	OnProgress func(progress.Update)
}

// Result is a located, completed download. The caller takes custody of the
// file at Path and is responsible for deleting it on every exit path.
type Result struct {
	Path     string
	Size     int64
	Title    string
	Uploader string
}

type Orchestrator struct {
	engine    engine.Engine
	policy    fetchtube.Policy
	tempRoot  string
	sizeLimit int64
	log       *zap.SugaredLogger
}

func NewOrchestrator(e engine.Engine, policy fetchtube.Policy, tempRoot string, sizeLimit int64) *Orchestrator {
	if tempRoot == "" {
		tempRoot = os.TempDir()
	}
	if sizeLimit <= 0 {
		sizeLimit = DefaultSizeLimit
	}
	return &Orchestrator{
		engine:    e,
		policy:    policy,
		tempRoot:  tempRoot,
		sizeLimit: sizeLimit,
		log:       zap.S().Named("fetch"),
	}
}

// SizeLimit returns the delivery gate's threshold in bytes.
func (o *Orchestrator) SizeLimit() int64 {
	return o.sizeLimit
}

// SessionDir is the per-chat temporary directory. Keying by chat ID is the
// only isolation between concurrent sessions; nothing outside this directory
// is ever deleted.
func (o *Orchestrator) SessionDir(chatID int64) string {
	return filepath.Join(o.tempRoot, fmt.Sprintf("fetchtube-%d", chatID))
}

// Download tries the tier's format specifications strictly in order, stopping
// at the first one that produces a located file, then makes exactly one
// last-resort attempt if the whole list failed and the tier has one. Any
// returned error is definitive: the caller must not retry.
func (o *Orchestrator) Download(ctx context.Context, req Request) (*Result, error) {
	log := o.log.With("request_id", req.ID, "chat_id", req.ChatID, "tier", req.Tier)

	dir := o.SessionDir(req.ChatID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create session dir: %w", err)
	}

	specs := o.policy.SpecsFor(req.Tier)
	var attemptErrs error
	for i, spec := range specs {
		res, err := o.attempt(ctx, req, spec, dir)
		if err == nil {
			log.Infow("download attempt succeeded", "attempt", i+1, "path", res.Path)
			return res, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warnw("download attempt failed", "attempt", i+1, "format", spec.Format, "error", err)
		attemptErrs = multierror.Append(attemptErrs, multierror.Prefix(err, fmt.Sprintf("[attempt %d]", i+1)))
	}

	// One last resort, outside the tier's ordered list. Audio tiers have
	// none: falling back to a generic video download would deliver the wrong
	// kind of asset.
	spec, ok := o.policy.LastResortFor(req.Tier)
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrExhausted, attemptErrs)
	}
	log.Infow("tier attempts exhausted, trying last resort")
	res, err := o.attempt(ctx, req, spec, dir)
	if err == nil {
		log.Infow("last resort succeeded", "path", res.Path)
		return res, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	attemptErrs = multierror.Append(attemptErrs, multierror.Prefix(err, "[last resort]"))
	return nil, fmt.Errorf("%w: %v", ErrExhausted, attemptErrs)
}

// attempt runs one engine download and verifies its output is really on
// disk. A failed attempt scrubs its partial output so the next attempt
// starts clean.
func (o *Orchestrator) attempt(ctx context.Context, req Request, spec fetchtube.FormatSpec, dir string) (*Result, error) {
	onProgress := o.progressAdapter(req.OnProgress)
	eres, err := o.engine.Download(ctx, engine.Request{
		URL:        req.URL,
		Spec:       spec,
		OutputDir:  dir,
		OnProgress: onProgress,
	})
	if err != nil {
		o.scrubPartials(dir)
		return nil, err
	}

	path, ok := locateOutput(eres.Filename, spec)
	if !ok {
		o.scrubPartials(dir)
		return nil, fmt.Errorf("no output file found for %q", eres.Filename)
	}
	st, err := os.Stat(path)
	if err != nil {
		o.scrubPartials(dir)
		return nil, fmt.Errorf("failed to stat output file: %w", err)
	}
	return &Result{
		Path:     path,
		Size:     st.Size(),
		Title:    eres.Title,
		Uploader: eres.Uploader,
	}, nil
}

// progressAdapter enriches raw engine progress with speed and ETA estimates
// derived from the attempt's own clock. Panics in the user callback are
// swallowed: progress propagation must never abort a download.
func (o *Orchestrator) progressAdapter(f func(progress.Update)) engine.ProgressFunc {
	if f == nil {
		return nil
	}
	start := time.Now()
	return func(p engine.Progress) {
		defer func() {
			if r := recover(); r != nil {
				o.log.Errorw("progress callback panicked", "panic", r)
			}
		}()
		u := progress.Update{
			Percent:         p.Percent,
			DownloadedBytes: p.DownloadedBytes,
			TotalBytes:      p.TotalBytes,
		}
		if elapsed := time.Since(start).Seconds(); elapsed > 0 && p.DownloadedBytes > 0 {
			u.Speed = float64(p.DownloadedBytes) / elapsed
			if remaining := p.TotalBytes - p.DownloadedBytes; remaining > 0 && u.Speed > 0 {
				u.ETA = time.Duration(float64(remaining)/u.Speed) * time.Second
			}
		}
		f(u)
	}
}

// locateOutput resolves the file an attempt actually produced. The engine's
// reported filename may carry the pre-postprocessing extension, so a fixed
// list of alternates sharing the same base name is probed too.
func locateOutput(reported string, spec fetchtube.FormatSpec) (string, bool) {
	if reported == "" {
		return "", false
	}
	base := strings.TrimSuffix(reported, filepath.Ext(reported))
	candidates := make([]string, 0, len(spec.AltExtensions)+2)
	if spec.ExtractAudio && spec.AudioCodec != "" {
		candidates = append(candidates, base+"."+spec.AudioCodec)
	}
	candidates = append(candidates, reported)
	for _, ext := range spec.AltExtensions {
		candidates = append(candidates, base+"."+ext)
	}
	for _, c := range candidates {
		if st, err := os.Stat(c); err == nil && st.Mode().IsRegular() {
			return c, true
		}
	}
	return "", false
}

// scrubPartials removes stale partial output from the session directory so a
// failed attempt leaves nothing behind for the next one. Best-effort.
func (o *Orchestrator) scrubPartials(dir string) {
	for _, pattern := range stalePatterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			continue
		}
		for _, m := range matches {
			if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
				o.log.Warnw("failed to remove stale partial output", "path", m, "error", err)
			}
		}
	}
}
