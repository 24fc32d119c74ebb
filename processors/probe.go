package processors

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"videoDigest/core"
)

var supportedVideoFormats = map[string]bool{
	".mp4":  true,
	".avi":  true,
	".mov":  true,
	".mkv":  true,
	".webm": true,
	".flv":  true,
	".wmv":  true,
}

// IsSupportedVideo reports whether the file extension is one the pipeline
// accepts.
func IsSupportedVideo(path string) bool {
	return supportedVideoFormats[strings.ToLower(filepath.Ext(path))]
}

// ProbeVideo validates the input file and reads its stream layout. It is the
// admission gate for the pipeline: anything it rejects never reaches audio
// extraction.
func ProbeVideo(path string) (*core.VideoAsset, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &core.IngestError{Path: path, Err: fmt.Errorf("file not found: %w", err)}
	}
	if !IsSupportedVideo(path) {
		return nil, &core.IngestError{Path: path, Err: fmt.Errorf("unsupported format %q", filepath.Ext(path))}
	}

	raw, err := ffmpeg.Probe(path)
	if err != nil {
		return nil, &core.IngestError{Path: path, Err: fmt.Errorf("probe failed: %w", err)}
	}
	info, err := parseProbe(raw)
	if err != nil {
		return nil, &core.IngestError{Path: path, Err: err}
	}

	return &core.VideoAsset{
		ID:     core.VideoIDFromPath(path),
		Path:   path,
		Format: strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."),
		Info:   *info,
	}, nil
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []probeStream `json:"streams"`
}

type probeStream struct {
	CodecType  string `json:"codec_type"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	RFrameRate string `json:"r_frame_rate"`
}

// parseProbe turns raw ffprobe JSON into a VideoInfo. Split out from
// ProbeVideo so it can be exercised without ffmpeg installed.
func parseProbe(raw string) (*core.VideoInfo, error) {
	var out probeOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("unreadable probe output: %w", err)
	}

	duration, err := strconv.ParseFloat(out.Format.Duration, 64)
	if err != nil || duration <= 0 {
		return nil, fmt.Errorf("invalid duration %q", out.Format.Duration)
	}

	info := &core.VideoInfo{Duration: duration}
	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			if info.Width == 0 {
				info.Width = s.Width
				info.Height = s.Height
				info.FPS = parseFrameRate(s.RFrameRate)
			}
		case "audio":
			info.HasAudio = true
		}
	}
	if info.Width == 0 {
		return nil, fmt.Errorf("no video stream found")
	}
	return info, nil
}

// parseFrameRate parses ffprobe's fractional rate notation, e.g. "30000/1001".
func parseFrameRate(s string) float64 {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		f, _ := strconv.ParseFloat(s, 64)
		return f
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}
