package core

import (
	"context"
	"errors"
	"fmt"
)

// Stage names used in step reporting and failure tagging.
const (
	StageProbe      = "probe"
	StageExtract    = "extract_audio"
	StageTranscribe = "transcribe"
	StageRefine     = "refine_text"
	StageSummarize  = "summarize"
	StageResolve    = "resolve_highlights"
	StageCapture    = "capture_keyframes"
	StageAssemble   = "assemble"
	StageIndex      = "index"
)

// IngestError reports an unreadable or unsupported source video.
type IngestError struct {
	Path string
	Err  error
}

func (e *IngestError) Error() string { return fmt.Sprintf("ingest %s: %v", e.Path, e.Err) }
func (e *IngestError) Unwrap() error { return e.Err }

// ExtractionError reports a missing audio stream or a decode failure while
// isolating audio.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string { return fmt.Sprintf("extract audio from %s: %v", e.Path, e.Err) }
func (e *ExtractionError) Unwrap() error { return e.Err }

// TranscriptionError reports a speech model failure or a processing timeout.
type TranscriptionError struct {
	Err error
}

func (e *TranscriptionError) Error() string { return fmt.Sprintf("transcribe: %v", e.Err) }
func (e *TranscriptionError) Unwrap() error { return e.Err }

// SummarizationError reports malformed summarizer output that survived all
// corrective retries, or exhausted transport retries against the service.
type SummarizationError struct {
	Err error
}

func (e *SummarizationError) Error() string { return fmt.Sprintf("summarize: %v", e.Err) }
func (e *SummarizationError) Unwrap() error { return e.Err }

// ConfigurationError reports a missing credential or invalid option. It is
// raised before any processing begins.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string { return "configuration: " + e.Reason }

// KeyframeWarning records a recoverable single-timestamp capture failure.
// It is accumulated onto the artifact, never raised as a run failure.
type KeyframeWarning struct {
	TimestampSec float64
	Err          error
}

func (w *KeyframeWarning) Error() string {
	return fmt.Sprintf("keyframe at %.2fs: %v", w.TimestampSec, w.Err)
}
func (w *KeyframeWarning) Unwrap() error { return w.Err }

// ErrorKind maps an error to its taxonomy name for outcome reporting.
func ErrorKind(err error) string {
	var (
		cfgErr     *ConfigurationError
		ingestErr  *IngestError
		extractErr *ExtractionError
		transErr   *TranscriptionError
		sumErr     *SummarizationError
	)
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.As(err, &cfgErr):
		return "configuration"
	case errors.As(err, &ingestErr):
		return "ingest"
	case errors.As(err, &extractErr):
		return "extraction"
	case errors.As(err, &transErr):
		return "transcription"
	case errors.As(err, &sumErr):
		return "summarization"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "internal"
	}
}

// ErrorHint returns a short operator-facing hint for a failure.
func ErrorHint(err error) string {
	switch ErrorKind(err) {
	case "configuration":
		return "fill in config.json or set API_KEY / BASE_URL before starting a run"
	case "ingest":
		return "verify the file exists, is readable, and uses a supported container format"
	case "extraction":
		return "verify the video has an audio stream and ffmpeg is installed on PATH"
	case "transcription":
		return "check the speech model selection, the audio integrity, and the transcribe timeout"
	case "summarization":
		return "check the summarization credentials, quota, and network connectivity"
	case "canceled":
		return "the caller abandoned the request before the run finished"
	case "timeout":
		return "increase the request timeout or retry when the service is responsive"
	default:
		return "inspect the server log for details"
	}
}
