package processors

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"videoDigest/config"
	"videoDigest/core"
)

func newTestConfig() *config.Config {
	return &config.Config{
		ASRProvider:              "mock",
		SummaryProvider:          "mock",
		Store:                    "memory",
		MaxHighlights:            6,
		RequestTimeoutSeconds:    5,
		TranscribeTimeoutSeconds: 5,
		WindowSeconds:            300,
		MaxWorkers:               2,
		MaxRetries:               2,
	}
}

// stubbedPipeline wires deterministic stand-ins for every media and network
// edge so a full run touches neither ffmpeg nor any API.
func stubbedPipeline(t *testing.T, cfg *config.Config) *Pipeline {
	t.Helper()
	t.Setenv("DATA_ROOT", t.TempDir())

	return &Pipeline{
		cfg:        cfg,
		asr:        MockASR{},
		summarizer: MockSummarizer{MaxHighlights: cfg.MaxHighlights},
		refiner:    MockRefiner{},
		probe: func(path string) (*core.VideoAsset, error) {
			return &core.VideoAsset{
				ID:     core.VideoIDFromPath(path),
				Path:   path,
				Format: "mp4",
				Info:   core.VideoInfo{Duration: 600, Width: 1280, Height: 720, FPS: 30, HasAudio: true},
			}, nil
		},
		extract: func(cfg *config.Config, asset *core.VideoAsset, destDir string) (*core.AudioTrack, error) {
			p := filepath.Join(destDir, "audio.wav")
			if err := os.WriteFile(p, []byte("wav"), 0644); err != nil {
				return nil, err
			}
			return &core.AudioTrack{Path: p, Duration: asset.Info.Duration}, nil
		},
		transcribe: func(ctx context.Context, cfg *config.Config, asr ASRProvider, audio *core.AudioTrack) ([]core.Segment, error) {
			return []core.Segment{
				{Start: 0, End: 200, Text: "Opening remarks about the product launch."},
				{Start: 200, End: 400, Text: "A detailed demo of the new features."},
				{Start: 400, End: 600, Text: "Questions from the audience and closing notes."},
			}, nil
		},
		capture: func(ctx context.Context, cfg *config.Config, asset *core.VideoAsset, highlights []core.Highlight, destDir string) ([]core.Keyframe, []string, error) {
			if err := core.EnsureDir(destDir); err != nil {
				return nil, nil, err
			}
			frames := make([]core.Keyframe, 0, len(highlights))
			for i, h := range highlights {
				p := filepath.Join(destDir, fmt.Sprintf("frame_%04d.jpg", i))
				if err := os.WriteFile(p, []byte("jpeg"), 0644); err != nil {
					return nil, nil, err
				}
				frames = append(frames, core.Keyframe{TimestampSec: h.Timestamp, Label: h.Label, Path: p, Data: []byte("jpeg")})
			}
			return frames, nil, nil
		},
	}
}

func TestPipelineRunSucceeds(t *testing.T) {
	p := stubbedPipeline(t, newTestConfig())

	outcome := p.Run(context.Background(), "/videos/launch.mp4")
	if !outcome.Succeeded() {
		t.Fatalf("run failed: stage=%s kind=%s msg=%s", outcome.FailedStage, outcome.ErrorKind, outcome.Message)
	}
	artifact := outcome.Artifact
	if artifact == nil {
		t.Fatal("succeeded outcome has no artifact")
	}
	if len(artifact.Segments) != 3 {
		t.Errorf("got %d segments, want 3", len(artifact.Segments))
	}
	if len(artifact.Keyframes) != len(artifact.Highlights) {
		t.Errorf("%d keyframes for %d highlights", len(artifact.Keyframes), len(artifact.Highlights))
	}
	if n := len(artifact.Summary.KeyPoints); n < 5 || n > 8 {
		t.Errorf("key points = %d, want 5..8", n)
	}
	if n := len(artifact.Summary.Keywords); n < 5 || n > 10 {
		t.Errorf("keywords = %d, want 5..10", n)
	}

	runDir := filepath.Join(core.DataRoot(), artifact.VideoID)
	if !core.FileExists(filepath.Join(runDir, "artifact.json")) {
		t.Error("artifact.json not written")
	}
	if core.FileExists(filepath.Join(runDir, "audio.wav")) {
		t.Error("transient audio file outlived the run")
	}

	wantSteps := []string{
		core.StageProbe, core.StageExtract, core.StageTranscribe, core.StageRefine,
		core.StageSummarize, core.StageResolve, core.StageCapture, core.StageAssemble,
	}
	if len(outcome.Steps) != len(wantSteps) {
		t.Fatalf("got %d steps, want %d: %+v", len(outcome.Steps), len(wantSteps), outcome.Steps)
	}
	for i, name := range wantSteps {
		if outcome.Steps[i].Name != name {
			t.Errorf("step %d = %s, want %s", i, outcome.Steps[i].Name, name)
		}
	}
	if outcome.Steps[3].Status != "skipped" {
		t.Errorf("refine step status = %s, want skipped", outcome.Steps[3].Status)
	}
}

func TestPipelineRunIsDeterministic(t *testing.T) {
	p := stubbedPipeline(t, newTestConfig())

	first := p.Run(context.Background(), "/videos/launch.mp4")
	second := p.Run(context.Background(), "/videos/launch.mp4")
	if !first.Succeeded() || !second.Succeeded() {
		t.Fatalf("runs failed: %s / %s", first.Message, second.Message)
	}
	a := core.MustJSON(first.Artifact)
	b := core.MustJSON(second.Artifact)
	if !bytes.Equal(a, b) {
		t.Errorf("artifacts differ between identical runs:\n%s\n----\n%s", a, b)
	}
}

func TestPipelineRunFailureCleansUp(t *testing.T) {
	p := stubbedPipeline(t, newTestConfig())
	boom := errors.New("speech model crashed")
	p.transcribe = func(ctx context.Context, cfg *config.Config, asr ASRProvider, audio *core.AudioTrack) ([]core.Segment, error) {
		return nil, &core.TranscriptionError{Err: boom}
	}

	outcome := p.Run(context.Background(), "/videos/launch.mp4")
	if outcome.Succeeded() {
		t.Fatal("run should have failed")
	}
	if outcome.FailedStage != core.StageTranscribe {
		t.Errorf("failed stage = %s, want %s", outcome.FailedStage, core.StageTranscribe)
	}
	if outcome.ErrorKind != "transcription" {
		t.Errorf("error kind = %s, want transcription", outcome.ErrorKind)
	}
	if outcome.Hint == "" {
		t.Error("failure carries no hint")
	}
	if outcome.Artifact != nil {
		t.Error("failed outcome exposes an artifact")
	}
	runDir := filepath.Join(core.DataRoot(), outcome.VideoID)
	if core.FileExists(runDir) {
		t.Errorf("failed run left %s behind", runDir)
	}
}

func TestPipelineRunKeyframeWarningsReachArtifact(t *testing.T) {
	p := stubbedPipeline(t, newTestConfig())
	p.capture = func(ctx context.Context, cfg *config.Config, asset *core.VideoAsset, highlights []core.Highlight, destDir string) ([]core.Keyframe, []string, error) {
		if err := core.EnsureDir(destDir); err != nil {
			return nil, nil, err
		}
		warn := (&core.KeyframeWarning{TimestampSec: highlights[0].Timestamp, Err: errors.New("undecodable")}).Error()
		return nil, []string{warn}, nil
	}

	outcome := p.Run(context.Background(), "/videos/launch.mp4")
	if !outcome.Succeeded() {
		t.Fatalf("run failed: %s", outcome.Message)
	}
	if len(outcome.Artifact.Warnings) != 1 {
		t.Fatalf("warnings = %v, want exactly one", outcome.Artifact.Warnings)
	}
	if len(outcome.Artifact.Keyframes) != 0 {
		t.Errorf("got %d keyframes, want 0", len(outcome.Artifact.Keyframes))
	}
}

func TestPipelineRunRefinerFailureIsNonFatal(t *testing.T) {
	cfg := newTestConfig()
	cfg.RefineTranscript = true
	p := stubbedPipeline(t, cfg)
	p.refiner = failingRefiner{}

	outcome := p.Run(context.Background(), "/videos/launch.mp4")
	if !outcome.Succeeded() {
		t.Fatalf("run failed: %s", outcome.Message)
	}
	if len(outcome.Artifact.Warnings) == 0 {
		t.Error("refiner failure produced no warning")
	}
	if outcome.Artifact.Segments[0].Text != "Opening remarks about the product launch." {
		t.Errorf("raw transcript was not preserved: %q", outcome.Artifact.Segments[0].Text)
	}
}

type failingRefiner struct{}

func (failingRefiner) Refine(_ context.Context, _ string) (string, error) {
	return "", errors.New("refinement service down")
}

func TestPipelineRunCancellation(t *testing.T) {
	p := stubbedPipeline(t, newTestConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := p.Run(ctx, "/videos/launch.mp4")
	if outcome.Succeeded() {
		t.Fatal("canceled run reported success")
	}
	if outcome.ErrorKind != "canceled" {
		t.Errorf("error kind = %s, want canceled", outcome.ErrorKind)
	}
}

func TestNewPipelineMissingCredentialFailsBeforeProcessing(t *testing.T) {
	dataRoot := t.TempDir()
	t.Setenv("DATA_ROOT", dataRoot)

	cfg := newTestConfig()
	cfg.SummaryProvider = "openai" // no api_key configured

	_, err := NewPipeline(cfg)
	if err == nil {
		t.Fatal("expected a configuration error")
	}
	var cfgErr *core.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("error %v is not a ConfigurationError", err)
	}

	entries, readErr := os.ReadDir(dataRoot)
	if readErr != nil {
		t.Fatalf("read data root: %v", readErr)
	}
	if len(entries) != 0 {
		t.Errorf("configuration failure left files behind: %v", entries)
	}
}

func TestNewPipelineRejectsInvalidOptions(t *testing.T) {
	cfg := newTestConfig()
	cfg.Store = "cassandra"
	cfg.MaxHighlights = 0

	_, err := NewPipeline(cfg)
	var cfgErr *core.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("error %v is not a ConfigurationError", err)
	}
}
