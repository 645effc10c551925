package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/lrstanley/go-ytdlp"
	"go.uber.org/zap"
)

// ProgressInterval is how often the engine is asked to surface progress
// events; throttling for the transport happens downstream.
const ProgressInterval = 500 * time.Millisecond

// YTDLP drives downloads through the yt-dlp executable via go-ytdlp.
type YTDLP struct {
	log *zap.SugaredLogger
}

var _ Engine = (*YTDLP)(nil)

func NewYTDLP() *YTDLP {
	return &YTDLP{log: zap.S().Named("engine")}
}

// Install ensures a usable yt-dlp executable is available, downloading one
// if the host has none.
func Install(ctx context.Context) error {
	if _, err := ytdlp.Install(ctx, nil); err != nil {
		return fmt.Errorf("yt-dlp not available: %w", err)
	}
	return nil
}

func (e *YTDLP) Download(ctx context.Context, req Request) (*Result, error) {
	dl := ytdlp.New().
		Quiet().
		NoWarnings().
		NoPlaylist().
		ForceOverwrites().
		Format(req.Spec.Format).
		Output(filepath.Join(req.OutputDir, "%(title)s.%(ext)s"))
	if req.Spec.MergeFormat != "" {
		dl = dl.MergeOutputFormat(req.Spec.MergeFormat)
	}
	if req.Spec.RecodeVideo != "" {
		dl = dl.RecodeVideo(req.Spec.RecodeVideo)
	}
	if req.Spec.ExtractAudio {
		dl = dl.ExtractAudio().AudioFormat(req.Spec.AudioCodec).AudioQuality(req.Spec.AudioQuality)
	}
	if req.OnProgress != nil {
		dl = dl.ProgressFunc(ProgressInterval, func(update ytdlp.ProgressUpdate) {
			req.OnProgress(Progress{
				Percent:         update.Percent(),
				DownloadedBytes: int64(update.DownloadedBytes),
				TotalBytes:      int64(update.TotalBytes),
			})
		})
	}

	res, err := dl.Run(ctx, req.URL)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp run failed: %w", err)
	}
	info, err := res.GetExtractedInfo()
	if err != nil {
		return nil, fmt.Errorf("failed to read extracted info: %w", err)
	}
	if len(info) == 0 {
		return nil, fmt.Errorf("engine reported no extracted info")
	}
	result := &Result{}
	if info[0].Filename != nil {
		result.Filename = *info[0].Filename
	}
	if info[0].Title != nil {
		result.Title = *info[0].Title
	}
	if info[0].Uploader != nil {
		result.Uploader = *info[0].Uploader
	}
	if result.Filename == "" {
		return nil, fmt.Errorf("engine reported no output filename")
	}
	e.log.Debugw("engine attempt finished", "format", req.Spec.Format, "filename", result.Filename)
	return result, nil
}
