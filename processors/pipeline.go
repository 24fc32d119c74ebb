package processors

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"videoDigest/config"
	"videoDigest/core"
)

// Pipeline drives one video through probe, audio extraction, transcription,
// summarization, highlight resolution, keyframe capture and assembly. The
// stage functions are fields so tests can stub the media and network edges.
type Pipeline struct {
	cfg        *config.Config
	asr        ASRProvider
	summarizer Summarizer
	refiner    TextRefiner

	probe      func(path string) (*core.VideoAsset, error)
	extract    func(cfg *config.Config, asset *core.VideoAsset, destDir string) (*core.AudioTrack, error)
	transcribe func(ctx context.Context, cfg *config.Config, asr ASRProvider, audio *core.AudioTrack) ([]core.Segment, error)
	capture    func(ctx context.Context, cfg *config.Config, asset *core.VideoAsset, highlights []core.Highlight, destDir string) ([]core.Keyframe, []string, error)
}

// NewPipeline wires the configured providers. Configuration problems,
// including missing credentials for a configured provider, surface here so
// nothing is processed with a setup that cannot finish.
func NewPipeline(cfg *config.Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	summarizer, err := NewSummarizer(cfg)
	if err != nil {
		return nil, err
	}
	asr, err := pickASRProvider(cfg)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		cfg:        cfg,
		asr:        asr,
		summarizer: summarizer,
		refiner:    pickTextRefiner(cfg),
		probe:      ProbeVideo,
		extract:    ExtractAudio,
		transcribe: TranscribeWindowed,
		capture:    CaptureKeyframes,
	}, nil
}

// Run processes one video to its terminal outcome. It does not return an
// error: every failure mode is folded into the outcome so callers get one
// uniform report. A failed run removes its work directory; a succeeded run
// keeps the artifact and captured frames under DataRoot()/<video id>.
func (p *Pipeline) Run(ctx context.Context, videoPath string) *core.RunOutcome {
	outcome := &core.RunOutcome{Status: core.StatusFailed, Steps: []core.Step{}}
	log := config.Log.WithField("video_path", videoPath)
	log.Info("pipeline run started")

	asset, err := p.probe(videoPath)
	if err != nil {
		return p.fail(outcome, "", core.StageProbe, err)
	}
	outcome.VideoID = asset.ID
	p.complete(outcome, core.StageProbe)
	log = log.WithField("video_id", asset.ID)
	p.logState(log, core.StateIngested)

	runDir := filepath.Join(core.DataRoot(), asset.ID)
	if err := core.EnsureDir(runDir); err != nil {
		return p.fail(outcome, "", core.StageExtract, err)
	}

	if err := ctx.Err(); err != nil {
		return p.fail(outcome, runDir, core.StageExtract, err)
	}
	audio, err := p.extract(p.cfg, asset, runDir)
	if err != nil {
		return p.fail(outcome, runDir, core.StageExtract, err)
	}
	p.complete(outcome, core.StageExtract)
	p.logState(log, core.StateAudioExtracted)

	if err := ctx.Err(); err != nil {
		return p.fail(outcome, runDir, core.StageTranscribe, err)
	}
	segments, err := p.transcribe(ctx, p.cfg, p.asr, audio)
	os.Remove(audio.Path)
	if err != nil {
		return p.fail(outcome, runDir, core.StageTranscribe, err)
	}
	if len(segments) == 0 {
		return p.fail(outcome, runDir, core.StageTranscribe,
			&core.TranscriptionError{Err: errors.New("no speech recognized")})
	}
	p.complete(outcome, core.StageTranscribe)
	p.logState(log, core.StateTranscribed)

	var warnings []string
	if p.cfg.RefineTranscript {
		refined, err := RefineSegments(ctx, p.refiner, segments)
		if err != nil {
			if ctx.Err() != nil {
				return p.fail(outcome, runDir, core.StageRefine, ctx.Err())
			}
			warnings = append(warnings, fmt.Sprintf("transcript refinement failed, using raw transcript: %v", err))
			outcome.Steps = append(outcome.Steps, core.Step{Name: core.StageRefine, Status: "failed", Error: err.Error()})
		} else {
			segments = refined
			p.complete(outcome, core.StageRefine)
		}
	} else {
		outcome.Steps = append(outcome.Steps, core.Step{Name: core.StageRefine, Status: "skipped"})
	}

	if err := ctx.Err(); err != nil {
		return p.fail(outcome, runDir, core.StageSummarize, err)
	}
	summary, err := p.summarizer.Summarize(ctx, segments)
	if err != nil {
		return p.fail(outcome, runDir, core.StageSummarize, err)
	}
	p.complete(outcome, core.StageSummarize)
	p.logState(log, core.StateSummarized)

	highlights := ResolveHighlights(summary.Highlights, asset.Info.Duration, p.cfg.MaxHighlights)
	p.complete(outcome, core.StageResolve)
	p.logState(log, core.StateHighlightsResolved)

	if err := ctx.Err(); err != nil {
		return p.fail(outcome, runDir, core.StageCapture, err)
	}
	frames, frameWarnings, err := p.capture(ctx, p.cfg, asset, highlights, filepath.Join(runDir, "frames"))
	if err != nil {
		return p.fail(outcome, runDir, core.StageCapture, err)
	}
	warnings = append(warnings, frameWarnings...)
	p.complete(outcome, core.StageCapture)
	p.logState(log, core.StateKeyframesCaptured)

	artifact := AssembleArtifact(asset, segments, summary, highlights, frames, warnings)
	if err := core.SaveJSON(filepath.Join(runDir, "artifact.json"), artifact); err != nil {
		return p.fail(outcome, runDir, core.StageAssemble, err)
	}
	p.complete(outcome, core.StageAssemble)
	p.logState(log, core.StateAssembled)

	outcome.Status = core.StatusSucceeded
	outcome.Artifact = artifact
	outcome.Warnings = artifact.Warnings
	log.WithFields(logrus.Fields{
		"segments":  len(artifact.Segments),
		"keyframes": len(artifact.Keyframes),
		"warnings":  len(artifact.Warnings),
	}).Info("pipeline run succeeded")
	return outcome
}

func (p *Pipeline) complete(outcome *core.RunOutcome, stage string) {
	outcome.Steps = append(outcome.Steps, core.Step{Name: stage, Status: "completed"})
}

func (p *Pipeline) logState(log *logrus.Entry, state core.RunState) {
	log.WithField("state", string(state)).Debug("pipeline state")
}

// fail folds an error into the outcome and removes the partial run
// directory, so failed runs leave nothing behind.
func (p *Pipeline) fail(outcome *core.RunOutcome, runDir string, stage string, err error) *core.RunOutcome {
	outcome.Status = core.StatusFailed
	outcome.FailedStage = stage
	outcome.ErrorKind = core.ErrorKind(err)
	outcome.Message = err.Error()
	outcome.Hint = core.ErrorHint(err)
	outcome.Steps = append(outcome.Steps, core.Step{Name: stage, Status: "failed", Error: err.Error()})
	if runDir != "" {
		os.RemoveAll(runDir)
	}
	config.Log.WithFields(logrus.Fields{
		"video_id": outcome.VideoID,
		"stage":    stage,
		"kind":     outcome.ErrorKind,
		"error":    err.Error(),
	}).Error("pipeline run failed")
	return outcome
}
