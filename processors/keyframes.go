package processors

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"videoDigest/config"
	"videoDigest/core"
)

// Seek offsets tried in order when a frame grab fails, e.g. on a damaged
// GOP right at the requested stamp.
var captureRetryOffsets = []float64{0, 0.5, -0.5}

// grabFrameRun grabs a single frame at ts into outPath. Swapped in tests.
var grabFrameRun = func(videoPath, outPath string, ts float64, hw ffmpeg.KwArgs) error {
	inKw := ffmpeg.KwArgs{"ss": ts}
	for k, v := range hw {
		inKw[k] = v
	}
	return ffmpeg.Input(videoPath, inKw).
		Output(outPath, ffmpeg.KwArgs{"vframes": 1, "q:v": 2}).
		OverWriteOutput().
		Run()
}

// CaptureKeyframes grabs one frame per resolved highlight on a bounded
// worker pool. A highlight whose grab fails after all retry offsets turns
// into a warning, not a failure; the returned error is non-nil only when the
// context ended. Frames and warnings keep highlight order.
func CaptureKeyframes(ctx context.Context, cfg *config.Config, asset *core.VideoAsset, highlights []core.Highlight, destDir string) ([]core.Keyframe, []string, error) {
	if len(highlights) == 0 {
		return nil, nil, ctx.Err()
	}
	if err := core.EnsureDir(destDir); err != nil {
		warnings := make([]string, 0, len(highlights))
		for _, h := range highlights {
			warnings = append(warnings, (&core.KeyframeWarning{TimestampSec: h.Timestamp, Err: err}).Error())
		}
		return nil, warnings, nil
	}

	workers := cfg.MaxWorkers
	if workers < 1 {
		workers = 1
	}
	hw := hwaccelInput(cfg)

	var (
		wg     sync.WaitGroup
		sem    = make(chan struct{}, workers)
		frames = make([]*core.Keyframe, len(highlights))
		warns  = make([]string, len(highlights))
	)
	for i, h := range highlights {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(i int, h core.Highlight) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}
			outPath := filepath.Join(destDir, fmt.Sprintf("frame_%04d.jpg", i))
			frame, err := captureOne(asset, h, outPath, hw)
			if err != nil {
				warns[i] = (&core.KeyframeWarning{TimestampSec: h.Timestamp, Err: err}).Error()
				return
			}
			frames[i] = frame
		}(i, h)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var kept []core.Keyframe
	var warnings []string
	for i := range highlights {
		switch {
		case frames[i] != nil:
			kept = append(kept, *frames[i])
		case warns[i] != "":
			warnings = append(warnings, warns[i])
		}
	}
	return kept, warnings, nil
}

func captureOne(asset *core.VideoAsset, h core.Highlight, outPath string, hw ffmpeg.KwArgs) (*core.Keyframe, error) {
	maxSeek := asset.Info.Duration - 0.01
	if maxSeek < 0 {
		maxSeek = 0
	}
	var lastErr error
	for _, off := range captureRetryOffsets {
		seek := h.Timestamp + off
		if seek < 0 {
			seek = 0
		}
		if seek > maxSeek {
			seek = maxSeek
		}
		if err := grabFrameRun(asset.Path, outPath, seek, hw); err != nil {
			lastErr = err
			continue
		}
		data, err := os.ReadFile(outPath)
		if err != nil || len(data) == 0 {
			lastErr = fmt.Errorf("empty frame output")
			os.Remove(outPath)
			continue
		}
		return &core.Keyframe{
			TimestampSec: h.Timestamp,
			Label:        h.Label,
			Path:         outPath,
			Data:         data,
		}, nil
	}
	os.Remove(outPath)
	return nil, lastErr
}
