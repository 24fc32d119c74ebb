package processors

import (
	"videoDigest/core"
)

// AssembleArtifact builds the output document from the pipeline results.
// Every input is copied so later mutation of pipeline state cannot reach a
// returned artifact. Assembly itself cannot fail.
func AssembleArtifact(asset *core.VideoAsset, segments []core.Segment, summary *core.SummaryResult, highlights []core.Highlight, frames []core.Keyframe, warnings []string) *core.SummaryArtifact {
	artifact := &core.SummaryArtifact{
		VideoID:    asset.ID,
		Info:       asset.Info,
		Segments:   append([]core.Segment(nil), segments...),
		Summary:    copySummary(summary),
		Highlights: append([]core.Highlight(nil), highlights...),
		Keyframes:  copyKeyframes(frames),
	}
	if len(warnings) > 0 {
		artifact.Warnings = append([]string(nil), warnings...)
	}
	return artifact
}

func copySummary(s *core.SummaryResult) core.SummaryResult {
	if s == nil {
		return core.SummaryResult{}
	}
	out := *s
	out.KeyPoints = append([]string(nil), s.KeyPoints...)
	out.Keywords = append([]string(nil), s.Keywords...)
	out.Topics = append([]string(nil), s.Topics...)
	out.Highlights = append([]core.Highlight(nil), s.Highlights...)
	return out
}

func copyKeyframes(frames []core.Keyframe) []core.Keyframe {
	if frames == nil {
		return nil
	}
	out := make([]core.Keyframe, len(frames))
	copy(out, frames)
	for i := range out {
		out[i].Data = append([]byte(nil), frames[i].Data...)
	}
	return out
}
