package processors

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"videoDigest/config"
	"videoDigest/core"
)

// TextRefiner cleans up recognition mistakes in transcript text.
type TextRefiner interface {
	Refine(ctx context.Context, text string) (string, error)
}

type MockRefiner struct{}

func (MockRefiner) Refine(_ context.Context, text string) (string, error) {
	return strings.TrimSpace(text), nil
}

type LLMRefiner struct {
	client *openai.Client
	model  string
}

func NewLLMRefiner(cfg *config.Config) *LLMRefiner {
	return &LLMRefiner{client: newOpenAIClient(cfg), model: cfg.ChatModel}
}

const refinePrompt = `Fix speech recognition errors in the following transcript fragment. Correct misheard words, punctuation and casing. Keep the original language and meaning. Return only the corrected text.

%s`

func (r *LLMRefiner) Refine(ctx context.Context, text string) (string, error) {
	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: r.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(refinePrompt, text)},
		},
		MaxTokens:   1024,
		Temperature: 0.1,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion")
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", fmt.Errorf("empty correction")
	}
	return out, nil
}

func pickTextRefiner(cfg *config.Config) TextRefiner {
	if cfg.HasValidAPI() {
		return NewLLMRefiner(cfg)
	}
	return MockRefiner{}
}

// RefineSegments runs the refiner over each segment, keeping the original
// text wherever a call fails. The returned error is non-nil only when every
// call failed or the context ended; callers treat the former as a warning.
func RefineSegments(ctx context.Context, refiner TextRefiner, segments []core.Segment) ([]core.Segment, error) {
	if len(segments) == 0 {
		return segments, nil
	}
	refined := make([]core.Segment, len(segments))
	copy(refined, segments)

	var failed int
	var lastErr error
	for i := range refined {
		if err := ctx.Err(); err != nil {
			return segments, err
		}
		out, err := refiner.Refine(ctx, refined[i].Text)
		if err != nil {
			failed++
			lastErr = err
			continue
		}
		if out != "" {
			refined[i].Text = out
		}
	}
	if failed == len(refined) {
		return segments, fmt.Errorf("refinement failed for all %d segments: %w", failed, lastErr)
	}
	if failed > 0 {
		config.Log.WithField("failed_segments", failed).Debug("transcript refinement partially failed")
	}
	return refined, nil
}
