package processors

import (
	"testing"

	"videoDigest/core"
)

func TestAssembleArtifactCopiesInputs(t *testing.T) {
	asset := testAsset(600)
	segments := []core.Segment{{Start: 0, End: 10, Text: "hello"}}
	summary := &core.SummaryResult{
		Summary:   "s",
		KeyPoints: []string{"a", "b", "c", "d", "e"},
		Keywords:  []string{"k1", "k2", "k3", "k4", "k5"},
	}
	highlights := []core.Highlight{{Timestamp: 5, Label: "start"}}
	frames := []core.Keyframe{{TimestampSec: 5, Path: "f.jpg", Data: []byte{1, 2}}}

	artifact := AssembleArtifact(asset, segments, summary, highlights, frames, []string{"warn"})

	segments[0].Text = "mutated"
	summary.KeyPoints[0] = "mutated"
	highlights[0].Label = "mutated"
	frames[0].Data[0] = 9

	if artifact.Segments[0].Text != "hello" {
		t.Error("segments shared with caller")
	}
	if artifact.Summary.KeyPoints[0] != "a" {
		t.Error("summary lists shared with caller")
	}
	if artifact.Highlights[0].Label != "start" {
		t.Error("highlights shared with caller")
	}
	if artifact.Keyframes[0].Data[0] != 1 {
		t.Error("frame bytes shared with caller")
	}
	if artifact.VideoID != asset.ID {
		t.Errorf("video id = %s", artifact.VideoID)
	}
}

func TestAssembleArtifactOmitsEmptyWarnings(t *testing.T) {
	artifact := AssembleArtifact(testAsset(10), nil, nil, nil, nil, nil)
	if artifact.Warnings != nil {
		t.Errorf("warnings = %v, want nil", artifact.Warnings)
	}
}
