package core

// ========== Source media ==========

// VideoInfo holds the probed container metadata for a source video.
type VideoInfo struct {
	Duration float64 `json:"duration"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	FPS      float64 `json:"fps"`
	HasAudio bool    `json:"has_audio"`
}

// VideoAsset is the immutable ingest result. ID is stable per path, so
// repeated runs over the same file share a run directory and store rows.
type VideoAsset struct {
	ID     string    `json:"id"`
	Path   string    `json:"path"`
	Format string    `json:"format"`
	Info   VideoInfo `json:"info"`
}

func (v VideoAsset) Duration() float64 { return v.Info.Duration }

// AudioTrack is the extracted mono 16 kHz audio asset. The file behind
// Path is scoped to a single run and removed once transcription is done.
type AudioTrack struct {
	Path     string  `json:"path"`
	Duration float64 `json:"duration"`
}

// ========== Transcript ==========

// Segment is one timestamped transcript span.
// Invariant: 0 <= Start < End <= track duration.
type Segment struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence,omitempty"`
}

// ========== Structured summary ==========

// Highlight marks a noteworthy instant chosen by the summarization service.
type Highlight struct {
	Timestamp float64 `json:"timestamp"`
	Label     string  `json:"label" validate:"required"`
}

// SummaryResult is the validated shape of the generative service's output.
// Raw responses are untrusted and must pass normalization plus these bounds
// before a value of this type reaches the rest of the pipeline.
type SummaryResult struct {
	Summary    string      `json:"summary" validate:"required"`
	KeyPoints  []string    `json:"key_points" validate:"required,min=5,max=8,dive,required"`
	Keywords   []string    `json:"keywords" validate:"required,min=5,max=10,dive,required"`
	Topics     []string    `json:"topics"`
	Highlights []Highlight `json:"highlights" validate:"dive"`
}

// ========== Assembled artifact ==========

// Keyframe is a frame sampled at or near a resolved highlight.
// Data carries the image bytes for in-process consumers; Path points at the
// serialized image inside the run directory for HTTP consumers.
type Keyframe struct {
	TimestampSec float64 `json:"timestamp_sec"`
	Label        string  `json:"label,omitempty"`
	Path         string  `json:"path"`
	Data         []byte  `json:"-"`
}

// SummaryArtifact is the immutable aggregate produced by one successful run
// and the only object exposed to downstream consumers. Never mutated after
// assembly.
type SummaryArtifact struct {
	VideoID    string        `json:"video_id"`
	Info       VideoInfo     `json:"info"`
	Segments   []Segment     `json:"segments"`
	Summary    SummaryResult `json:"summary"`
	Highlights []Highlight   `json:"highlights"`
	Keyframes  []Keyframe    `json:"keyframes"`
	Warnings   []string      `json:"warnings,omitempty"`
}

// ========== Run reporting ==========

// RunState tracks pipeline progress through the stage machine.
type RunState string

const (
	StateIngested           RunState = "ingested"
	StateAudioExtracted     RunState = "audio_extracted"
	StateTranscribed        RunState = "transcribed"
	StateSummarized         RunState = "summarized"
	StateHighlightsResolved RunState = "highlights_resolved"
	StateKeyframesCaptured  RunState = "keyframes_captured"
	StateAssembled          RunState = "assembled"
	StateFailed             RunState = "failed"
)

const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

type Step struct {
	Name   string `json:"name"`
	Status string `json:"status"` // "completed", "failed", "skipped"
	Error  string `json:"error,omitempty"`
}

// RunOutcome is the single terminal status of a pipeline run: either a
// succeeded run carrying the artifact plus non-fatal warnings, or a failed
// run tagged with the stage that broke and why. Never both.
type RunOutcome struct {
	Status      string           `json:"status"`
	VideoID     string           `json:"video_id,omitempty"`
	Steps       []Step           `json:"steps"`
	Artifact    *SummaryArtifact `json:"artifact,omitempty"`
	Warnings    []string         `json:"warnings,omitempty"`
	FailedStage string           `json:"failed_stage,omitempty"`
	ErrorKind   string           `json:"error_kind,omitempty"`
	Message     string           `json:"message,omitempty"`
	Hint        string           `json:"hint,omitempty"`
}

func (o *RunOutcome) Succeeded() bool { return o.Status == StatusSucceeded }

// ========== Search ==========

// Item is one indexed row in the vector store.
type Item struct {
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	Text      string  `json:"text"`
	Summary   string  `json:"summary"`
	FramePath string  `json:"frame_path"`
}

type Hit struct {
	Score     float64 `json:"score"`
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	Text      string  `json:"text"`
	Summary   string  `json:"summary"`
	FramePath string  `json:"frame_path"`
}
