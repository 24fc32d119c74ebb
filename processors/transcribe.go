package processors

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
	ffmpeg "github.com/u2takey/ffmpeg-go"

	"videoDigest/config"
	"videoDigest/core"
)

// ASRProvider transcribes a single audio file. Timestamps in the returned
// segments are relative to the start of that file.
type ASRProvider interface {
	Transcribe(ctx context.Context, audioPath string) ([]core.Segment, error)
}

func newOpenAIClient(cfg *config.Config) *openai.Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = cfg.BaseURL
	return openai.NewClientWithConfig(clientConfig)
}

// ========== Whisper ==========

type WhisperASR struct {
	client *openai.Client
	model  string
}

func NewWhisperASR(cfg *config.Config) (*WhisperASR, error) {
	if !cfg.HasValidAPI() {
		return nil, &core.ConfigurationError{Reason: `asr_provider "whisper" requires api_key and base_url`}
	}
	return &WhisperASR{client: newOpenAIClient(cfg), model: cfg.SpeechModel}, nil
}

func (w *WhisperASR) Transcribe(ctx context.Context, audioPath string) ([]core.Segment, error) {
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Segments) > 0 {
		segments := make([]core.Segment, 0, len(resp.Segments))
		for _, s := range resp.Segments {
			segments = append(segments, core.Segment{
				Start: s.Start,
				End:   s.End,
				Text:  strings.TrimSpace(s.Text),
			})
		}
		return segments, nil
	}

	// Some gateways return plain text without segment timing.
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return nil, nil
	}
	duration := probeMediaDuration(audioPath)
	if duration <= 0 {
		duration = 30
	}
	return []core.Segment{{Start: 0, End: duration, Text: text}}, nil
}

// ========== Mock ==========

// MockASR emits fixed lines on a 15 second grid, for development without a
// speech API.
type MockASR struct{}

var mockTranscriptLines = []string{
	"Welcome back to the channel, today we are covering the new release.",
	"The first thing to look at is the updated interface and what changed.",
	"Performance numbers improved quite a bit compared to last year.",
	"Let us move on to the most interesting part of this video.",
}

func (MockASR) Transcribe(ctx context.Context, audioPath string) ([]core.Segment, error) {
	duration := probeMediaDuration(audioPath)
	if duration <= 0 {
		duration = 30
	}
	var segments []core.Segment
	for i, start := 0, 0.0; start < duration; i, start = i+1, start+15 {
		end := start + 15
		if end > duration {
			end = duration
		}
		segments = append(segments, core.Segment{
			Start: start,
			End:   end,
			Text:  mockTranscriptLines[i%len(mockTranscriptLines)],
		})
	}
	return segments, nil
}

func pickASRProvider(cfg *config.Config) (ASRProvider, error) {
	switch cfg.ASRProvider {
	case "mock":
		return MockASR{}, nil
	default:
		return NewWhisperASR(cfg)
	}
}

func probeMediaDuration(path string) float64 {
	raw, err := ffmpeg.Probe(path)
	if err != nil {
		return 0
	}
	var out struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return 0
	}
	d, _ := strconv.ParseFloat(out.Format.Duration, 64)
	return d
}

// ========== Windowed transcription ==========

type window struct {
	index  int
	start  float64
	length float64
}

func planWindows(duration, windowSec float64) []window {
	if windowSec <= 0 || duration <= windowSec {
		return []window{{index: 0, start: 0, length: duration}}
	}
	var windows []window
	for start := 0.0; start < duration; start += windowSec {
		length := windowSec
		if start+length > duration {
			length = duration - start
		}
		windows = append(windows, window{index: len(windows), start: start, length: length})
	}
	return windows
}

// cutWindowRun re-encodes one slice of the audio file. Swapped in tests.
var cutWindowRun = func(audioPath, outPath string, start, length float64) error {
	return ffmpeg.Input(audioPath, ffmpeg.KwArgs{"ss": start}).
		Output(outPath, ffmpeg.KwArgs{"t": length, "ac": 1, "ar": 16000, "f": "wav"}).
		OverWriteOutput().
		Run()
}

// TranscribeWindowed splits long audio into fixed windows, transcribes them
// on a bounded worker pool, shifts each window's timestamps by the window
// offset and merges the results in order. Window slices are temporary files
// next to the source audio and are removed as each worker finishes.
func TranscribeWindowed(ctx context.Context, cfg *config.Config, asr ASRProvider, audio *core.AudioTrack) ([]core.Segment, error) {
	windows := planWindows(audio.Duration, cfg.WindowSeconds)

	if len(windows) == 1 {
		segments, err := transcribeOne(ctx, cfg, asr, audio.Path)
		if err != nil {
			return nil, &core.TranscriptionError{Err: err}
		}
		return normalizeSegments(segments, audio.Duration), nil
	}

	workers := cfg.MaxWorkers
	if workers < 1 {
		workers = 1
	}
	var (
		wg      sync.WaitGroup
		sem     = make(chan struct{}, workers)
		results = make([][]core.Segment, len(windows))
		errs    = make([]error, len(windows))
	)
	winDir := filepath.Dir(audio.Path)

	for _, w := range windows {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(w window) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				errs[w.index] = ctx.Err()
				return
			}

			winPath := filepath.Join(winDir, fmt.Sprintf("win_%03d.wav", w.index))
			if err := cutWindowRun(audio.Path, winPath, w.start, w.length); err != nil {
				errs[w.index] = fmt.Errorf("cut window %d: %w", w.index, err)
				return
			}
			defer os.Remove(winPath)

			segments, err := transcribeOne(ctx, cfg, asr, winPath)
			if err != nil {
				errs[w.index] = fmt.Errorf("window %d: %w", w.index, err)
				return
			}
			for i := range segments {
				segments[i].Start += w.start
				segments[i].End += w.start
			}
			results[w.index] = segments
		}(w)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, &core.TranscriptionError{Err: err}
	}
	for _, err := range errs {
		if err != nil {
			return nil, &core.TranscriptionError{Err: err}
		}
	}

	var all []core.Segment
	for _, segments := range results {
		all = append(all, segments...)
	}
	return normalizeSegments(all, audio.Duration), nil
}

func transcribeOne(ctx context.Context, cfg *config.Config, asr ASRProvider, path string) ([]core.Segment, error) {
	timeout := time.Duration(cfg.TranscribeTimeoutSeconds * float64(time.Second))
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return asr.Transcribe(tctx, path)
}

// normalizeSegments drops empty segments, clamps timing to [0, duration],
// sorts by start and resolves overlaps so consumers can rely on an ordered,
// non-overlapping transcript.
func normalizeSegments(segments []core.Segment, duration float64) []core.Segment {
	kept := make([]core.Segment, 0, len(segments))
	for _, s := range segments {
		s.Text = strings.TrimSpace(s.Text)
		if s.Text == "" {
			continue
		}
		if s.Start < 0 {
			s.Start = 0
		}
		if duration > 0 && s.End > duration {
			s.End = duration
		}
		if s.End <= s.Start {
			continue
		}
		kept = append(kept, s)
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Start < kept[j].Start })

	merged := make([]core.Segment, 0, len(kept))
	for _, s := range kept {
		if n := len(merged); n > 0 && s.Start < merged[n-1].End {
			s.Start = merged[n-1].End
			if s.End <= s.Start {
				continue
			}
		}
		merged = append(merged, s)
	}
	return merged
}
