package fetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	assert_ "github.com/stretchr/testify/assert"

	"github.com/fetchtube/fetchtube"
	"github.com/fetchtube/fetchtube/engine"
	"github.com/fetchtube/fetchtube/internal/progress"
)

// stubEngine scripts one behavior per expected download call, in order.
type stubEngine struct {
	t        *testing.T
	calls    []string
	handlers []func(req engine.Request) (*engine.Result, error)
}

func (s *stubEngine) Download(_ context.Context, req engine.Request) (*engine.Result, error) {
	idx := len(s.calls)
	s.calls = append(s.calls, req.Spec.Format)
	if idx >= len(s.handlers) {
		s.t.Fatalf("unexpected download call %d with format %q", idx+1, req.Spec.Format)
	}
	return s.handlers[idx](req)
}

func testPolicy() fetchtube.Policy {
	alts := []string{"mp4", "mkv", "webm"}
	return fetchtube.Policy{
		Tiers: map[fetchtube.Tier][]fetchtube.FormatSpec{
			fetchtube.TierVideoHigh: {
				{Format: "first", AltExtensions: alts},
				{Format: "second", AltExtensions: alts},
			},
			fetchtube.TierAudio: {
				{Format: "audio", ExtractAudio: true, AudioCodec: "mp3", AudioQuality: "192K", AltExtensions: []string{"mp3", "m4a", "ogg", "opus"}},
			},
		},
		LastResort: fetchtube.FormatSpec{Format: "resort", AltExtensions: alts},
	}
}

func writeFile(t *testing.T, path string, size int) string {
	t.Helper()
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// produce returns a handler that writes the named file into the session dir
// and reports `reported` (defaulting to the written name) as the engine's
// prepared filename.
func produce(t *testing.T, written, reported string, size int) func(req engine.Request) (*engine.Result, error) {
	return func(req engine.Request) (*engine.Result, error) {
		path := writeFile(t, filepath.Join(req.OutputDir, written), size)
		if reported == "" {
			return &engine.Result{Filename: path, Title: "A Title"}, nil
		}
		return &engine.Result{Filename: filepath.Join(req.OutputDir, reported), Title: "A Title"}, nil
	}
}

func fail(msg string) func(req engine.Request) (*engine.Result, error) {
	return func(engine.Request) (*engine.Result, error) {
		return nil, errors.New(msg)
	}
}

func newTestOrchestrator(t *testing.T, e engine.Engine, sizeLimit int64) *Orchestrator {
	return NewOrchestrator(e, testPolicy(), t.TempDir(), sizeLimit)
}

func request(tier fetchtube.Tier) Request {
	return Request{ID: "req-1", ChatID: 42, URL: "https://example.invalid/v", Tier: tier}
}

func TestDownloadFirstSpecWins(t *testing.T) {
	assert := assert_.New(t)
	e := &stubEngine{t: t, handlers: []func(engine.Request) (*engine.Result, error){
		produce(t, "video.mp4", "", 100),
	}}
	o := newTestOrchestrator(t, e, DefaultSizeLimit)

	res, err := o.Download(context.Background(), request(fetchtube.TierVideoHigh))
	assert.Nil(err)
	assert.Equal([]string{"first"}, e.calls, "must stop at the first located file")
	assert.Equal(int64(100), res.Size)
	assert.Equal("A Title", res.Title)
	assert.FileExists(res.Path)
}

func TestDownloadTriesSpecsInOrder(t *testing.T) {
	assert := assert_.New(t)
	e := &stubEngine{t: t, handlers: []func(engine.Request) (*engine.Result, error){
		fail("first failed"),
		produce(t, "video.mp4", "", 100),
	}}
	o := newTestOrchestrator(t, e, DefaultSizeLimit)

	res, err := o.Download(context.Background(), request(fetchtube.TierVideoHigh))
	assert.Nil(err)
	assert.Equal([]string{"first", "second"}, e.calls)
	assert.FileExists(res.Path)
}

func TestDownloadLastResortAfterExhaustedTier(t *testing.T) {
	assert := assert_.New(t)
	e := &stubEngine{t: t, handlers: []func(engine.Request) (*engine.Result, error){
		fail("first failed"),
		fail("second failed"),
		produce(t, "video.mp4", "", 100),
	}}
	o := newTestOrchestrator(t, e, DefaultSizeLimit)

	res, err := o.Download(context.Background(), request(fetchtube.TierVideoHigh))
	assert.Nil(err)
	assert.Equal([]string{"first", "second", "resort"}, e.calls)
	assert.FileExists(res.Path)
}

func TestDownloadDefinitiveFailure(t *testing.T) {
	assert := assert_.New(t)
	e := &stubEngine{t: t, handlers: []func(engine.Request) (*engine.Result, error){
		fail("first failed"),
		fail("second failed"),
		fail("resort failed"),
	}}
	o := newTestOrchestrator(t, e, DefaultSizeLimit)

	res, err := o.Download(context.Background(), request(fetchtube.TierVideoHigh))
	assert.Nil(res)
	assert.ErrorIs(err, ErrExhausted)
	// Exactly one last resort, never more.
	assert.Equal([]string{"first", "second", "resort"}, e.calls)
	assert.ErrorContains(err, "first failed")
	assert.ErrorContains(err, "resort failed")
}

func TestDownloadExtensionSubstitution(t *testing.T) {
	assert := assert_.New(t)
	// The engine reports .mp4 but postprocessing produced .mkv.
	e := &stubEngine{t: t, handlers: []func(engine.Request) (*engine.Result, error){
		produce(t, "video.mkv", "video.mp4", 100),
	}}
	o := newTestOrchestrator(t, e, DefaultSizeLimit)

	res, err := o.Download(context.Background(), request(fetchtube.TierVideoHigh))
	assert.Nil(err)
	assert.Equal("video.mkv", filepath.Base(res.Path))
}

func TestDownloadAudioCodecSubstitution(t *testing.T) {
	assert := assert_.New(t)
	// Audio extraction rewrites the container: reported .webm, written .mp3.
	e := &stubEngine{t: t, handlers: []func(engine.Request) (*engine.Result, error){
		produce(t, "song.mp3", "song.webm", 100),
	}}
	o := newTestOrchestrator(t, e, DefaultSizeLimit)

	res, err := o.Download(context.Background(), request(fetchtube.TierAudio))
	assert.Nil(err)
	assert.Equal([]string{"audio"}, e.calls)
	assert.Equal("song.mp3", filepath.Base(res.Path))
}

func TestDownloadAudioTierHasNoLastResort(t *testing.T) {
	assert := assert_.New(t)
	// A failed audio extraction must not fall through to a generic video
	// download that would then be sent as an audio attachment.
	e := &stubEngine{t: t, handlers: []func(engine.Request) (*engine.Result, error){
		fail("extraction failed"),
	}}
	o := newTestOrchestrator(t, e, DefaultSizeLimit)

	res, err := o.Download(context.Background(), request(fetchtube.TierAudio))
	assert.Nil(res)
	assert.ErrorIs(err, ErrExhausted)
	assert.Equal([]string{"audio"}, e.calls, "audio failure is definitive")
}

func TestDownloadMissingOutputIsAttemptFailure(t *testing.T) {
	assert := assert_.New(t)
	e := &stubEngine{t: t, handlers: []func(engine.Request) (*engine.Result, error){
		func(req engine.Request) (*engine.Result, error) {
			// Engine claims success but nothing is on disk.
			return &engine.Result{Filename: filepath.Join(req.OutputDir, "ghost.mp4")}, nil
		},
		produce(t, "video.mp4", "", 100),
	}}
	o := newTestOrchestrator(t, e, DefaultSizeLimit)

	res, err := o.Download(context.Background(), request(fetchtube.TierVideoHigh))
	assert.Nil(err)
	assert.Equal([]string{"first", "second"}, e.calls)
	assert.FileExists(res.Path)
}

func TestDownloadScrubsPartialsBetweenAttempts(t *testing.T) {
	assert := assert_.New(t)
	e := &stubEngine{t: t}
	e.handlers = []func(engine.Request) (*engine.Result, error){
		func(req engine.Request) (*engine.Result, error) {
			writeFile(t, filepath.Join(req.OutputDir, "video.mp4.part"), 10)
			writeFile(t, filepath.Join(req.OutputDir, "video.mp4.ytdl"), 10)
			return nil, errors.New("interrupted")
		},
		func(req engine.Request) (*engine.Result, error) {
			leftovers, err := filepath.Glob(filepath.Join(req.OutputDir, "*.part"))
			assert.Nil(err)
			assert.Empty(leftovers, "previous attempt must leave no partial output")
			leftovers, err = filepath.Glob(filepath.Join(req.OutputDir, "*.ytdl"))
			assert.Nil(err)
			assert.Empty(leftovers)
			return produce(t, "video.mp4", "", 100)(req)
		},
	}
	o := newTestOrchestrator(t, e, DefaultSizeLimit)

	_, err := o.Download(context.Background(), request(fetchtube.TierVideoHigh))
	assert.Nil(err)
}

func TestDownloadForwardsProgress(t *testing.T) {
	assert := assert_.New(t)
	e := &stubEngine{t: t, handlers: []func(engine.Request) (*engine.Result, error){
		func(req engine.Request) (*engine.Result, error) {
			req.OnProgress(engine.Progress{Percent: 50, DownloadedBytes: 500, TotalBytes: 1000})
			return produce(t, "video.mp4", "", 100)(req)
		},
	}}
	o := newTestOrchestrator(t, e, DefaultSizeLimit)

	var updates []progress.Update
	req := request(fetchtube.TierVideoHigh)
	req.OnProgress = func(u progress.Update) { updates = append(updates, u) }
	_, err := o.Download(context.Background(), req)
	assert.Nil(err)
	if assert.Len(updates, 1) {
		assert.Equal(50.0, updates[0].Percent)
		assert.Equal(int64(500), updates[0].DownloadedBytes)
		assert.Greater(updates[0].Speed, 0.0)
	}
}

func TestDownloadSurvivesProgressPanic(t *testing.T) {
	assert := assert_.New(t)
	e := &stubEngine{t: t, handlers: []func(engine.Request) (*engine.Result, error){
		func(req engine.Request) (*engine.Result, error) {
			req.OnProgress(engine.Progress{Percent: 10})
			return produce(t, "video.mp4", "", 100)(req)
		},
	}}
	o := newTestOrchestrator(t, e, DefaultSizeLimit)

	req := request(fetchtube.TierVideoHigh)
	req.OnProgress = func(progress.Update) { panic("ui broke") }
	_, err := o.Download(context.Background(), req)
	assert.Nil(err, "progress propagation failures must never abort the download")
}

func TestSessionDirIsScopedByChat(t *testing.T) {
	assert := assert_.New(t)
	o := newTestOrchestrator(t, &stubEngine{t: t}, DefaultSizeLimit)
	a := o.SessionDir(1)
	b := o.SessionDir(2)
	assert.NotEqual(a, b)
	assert.Contains(a, fmt.Sprintf("%d", 1))
}

func TestGateRejectsOversize(t *testing.T) {
	assert := assert_.New(t)
	o := newTestOrchestrator(t, &stubEngine{t: t}, 10)

	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "big.mp4"), 11)
	res := &Result{Path: path, Size: 11}

	err := o.Gate(res)
	assert.True(IsOversize(err))
	var oe *OversizeError
	assert.ErrorAs(err, &oe)
	assert.Equal(int64(11), oe.Size)
	assert.Equal(int64(10), oe.Limit)
	assert.NoFileExists(path, "gate must delete oversized files")
}

func TestGatePassesWithinLimit(t *testing.T) {
	assert := assert_.New(t)
	o := newTestOrchestrator(t, &stubEngine{t: t}, 10)

	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "small.mp4"), 10)
	res := &Result{Path: path, Size: 10}

	assert.Nil(o.Gate(res))
	assert.FileExists(path)
}

func TestCleanupIsBestEffort(t *testing.T) {
	assert := assert_.New(t)
	o := newTestOrchestrator(t, &stubEngine{t: t}, 10)

	assert.NotPanics(func() {
		o.Cleanup("")
		o.Cleanup(filepath.Join(t.TempDir(), "never-existed.mp4"))
	})

	path := writeFile(t, filepath.Join(t.TempDir(), "gone.mp4"), 1)
	o.Cleanup(path)
	assert.NoFileExists(path)
}
