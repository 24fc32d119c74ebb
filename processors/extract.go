package processors

import (
	"fmt"
	"os"
	"path/filepath"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"videoDigest/config"
	"videoDigest/core"
)

// extractAudioRun performs the actual ffmpeg invocation. Swapped in tests so
// extraction can be exercised without an ffmpeg binary.
var extractAudioRun = func(inPath, outPath string, hw ffmpeg.KwArgs) error {
	var in *ffmpeg.Stream
	if hw != nil {
		in = ffmpeg.Input(inPath, hw)
	} else {
		in = ffmpeg.Input(inPath)
	}
	return in.
		Output(outPath, ffmpeg.KwArgs{"vn": "", "ac": 1, "ar": 16000, "f": "wav"}).
		OverWriteOutput().
		Run()
}

// ExtractAudio demuxes the audio track into a mono 16 kHz WAV under destDir.
// The caller owns the file and removes it once transcription no longer needs
// it. On failure any partial output is removed before returning.
func ExtractAudio(cfg *config.Config, asset *core.VideoAsset, destDir string) (*core.AudioTrack, error) {
	if !asset.Info.HasAudio {
		return nil, &core.ExtractionError{Path: asset.Path, Err: fmt.Errorf("no audio stream")}
	}
	if err := core.EnsureDir(destDir); err != nil {
		return nil, &core.ExtractionError{Path: asset.Path, Err: err}
	}

	outPath := filepath.Join(destDir, "audio.wav")
	if err := extractAudioRun(asset.Path, outPath, hwaccelInput(cfg)); err != nil {
		os.Remove(outPath)
		return nil, &core.ExtractionError{Path: asset.Path, Err: err}
	}
	fi, err := os.Stat(outPath)
	if err != nil || fi.Size() == 0 {
		os.Remove(outPath)
		return nil, &core.ExtractionError{Path: asset.Path, Err: fmt.Errorf("ffmpeg produced no audio output")}
	}

	return &core.AudioTrack{Path: outPath, Duration: asset.Info.Duration}, nil
}
