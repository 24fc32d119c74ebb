package processors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"videoDigest/config"
	"videoDigest/core"
)

// Summarizer turns an ordered transcript into a structured summary.
type Summarizer interface {
	Summarize(ctx context.Context, segments []core.Segment) (*core.SummaryResult, error)
}

var validate = validator.New()

// NewSummarizer picks the provider from the configuration. The "openai"
// provider needs credentials up front so a misconfigured service fails
// before any media work starts.
func NewSummarizer(cfg *config.Config) (Summarizer, error) {
	switch cfg.SummaryProvider {
	case "mock":
		return MockSummarizer{MaxHighlights: cfg.MaxHighlights}, nil
	default:
		if !cfg.HasValidAPI() {
			return nil, &core.ConfigurationError{Reason: `summary_provider "openai" requires api_key and base_url`}
		}
		return &llmSummarizer{
			llm: &openaiCompleter{
				client:  newOpenAIClient(cfg),
				model:   cfg.ChatModel,
				timeout: time.Duration(cfg.RequestTimeoutSeconds * float64(time.Second)),
			},
			maxHighlights: cfg.MaxHighlights,
			maxRetries:    cfg.MaxRetries,
		}, nil
	}
}

// completer is the transport seam under llmSummarizer: one prompt in, one
// raw model reply out.
type completer interface {
	complete(ctx context.Context, prompt string) (string, error)
}

type openaiCompleter struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

const summarySystemPrompt = "You analyze video transcripts and reply with strict JSON."

func (c *openaiCompleter) complete(ctx context.Context, prompt string) (string, error) {
	rctx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	resp, err := c.client.CreateChatCompletion(rctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: summarySystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   2048,
		Temperature: 0.3,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion")
	}
	return resp.Choices[0].Message.Content, nil
}

// ========== LLM engine ==========

type llmSummarizer struct {
	llm           completer
	maxHighlights int
	maxRetries    int
}

// Summarize asks the model for a structured summary and re-prompts with the
// rejection reason when the reply does not satisfy the schema. Transport
// failures are retried with backoff inside completeWithBackoff and never
// consume a corrective attempt.
func (s *llmSummarizer) Summarize(ctx context.Context, segments []core.Segment) (*core.SummaryResult, error) {
	if len(segments) == 0 {
		return nil, &core.SummarizationError{Err: fmt.Errorf("empty transcript")}
	}

	prompt := buildSummaryPrompt(segments, s.maxHighlights)
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		raw, err := s.completeWithBackoff(ctx, prompt)
		if err != nil {
			return nil, &core.SummarizationError{Err: err}
		}
		result, err := parseSummaryResponse(raw, segments, s.maxHighlights)
		if err == nil {
			return result, nil
		}
		lastErr = err
		config.Log.WithFields(logrus.Fields{
			"attempt": attempt + 1,
			"reason":  err.Error(),
		}).Warn("summary reply rejected")
		prompt = buildCorrectivePrompt(raw, err)
	}
	return nil, &core.SummarizationError{
		Err: fmt.Errorf("no usable summary after %d attempts: %w", s.maxRetries+1, lastErr),
	}
}

const transportAttempts = 3

func (s *llmSummarizer) completeWithBackoff(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < transportAttempts; attempt++ {
		if attempt > 0 {
			delay := time.Duration(1<<(attempt-1)) * time.Second
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		out, err := s.llm.complete(ctx, prompt)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !retryableTransportError(err) {
			return "", err
		}
	}
	return "", lastErr
}

// retryableTransportError separates flaky transport conditions from hard
// failures such as bad credentials, which retries cannot heal.
func retryableTransportError(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return true
		case apiErr.HTTPStatusCode >= 500:
			return true
		default:
			return false
		}
	}
	return true
}

// ========== Prompting ==========

func buildSummaryPrompt(segments []core.Segment, maxHighlights int) string {
	var b strings.Builder
	b.WriteString("Analyze the timestamped video transcript below and reply with one JSON object using exactly these keys:\n")
	b.WriteString("  \"summary\": a 2-4 sentence overview of the video\n")
	b.WriteString("  \"key_points\": 5 to 8 short bullet strings\n")
	b.WriteString("  \"keywords\": 5 to 10 words or short phrases\n")
	b.WriteString("  \"topics\": up to 5 broader topic names\n")
	fmt.Fprintf(&b, "  \"highlights\": up to %d objects like {\"timestamp\": 83.5, \"label\": \"what happens there\"}, timestamp in seconds within the transcript\n", maxHighlights)
	b.WriteString("\nReply with the JSON object only. No markdown fences, no extra text.\n\nTranscript:\n")
	for _, s := range segments {
		fmt.Fprintf(&b, "[%s] %s\n", core.FormatTime(s.Start), s.Text)
	}
	return b.String()
}

func buildCorrectivePrompt(previous string, cause error) string {
	if len(previous) > 4000 {
		previous = previous[:4000] + "..."
	}
	return fmt.Sprintf("Your previous reply was rejected: %s.\nSend the corrected JSON object with the same keys. JSON only, no markdown fences.\n\nPrevious reply:\n%s", cause, previous)
}

// ========== Response parsing ==========

type rawHighlight struct {
	Timestamp json.RawMessage `json:"timestamp"`
	Label     string          `json:"label"`
}

type rawSummary struct {
	Summary    string         `json:"summary"`
	KeyPoints  []string       `json:"key_points"`
	Keywords   []string       `json:"keywords"`
	Topics     []string       `json:"topics"`
	Highlights []rawHighlight `json:"highlights"`
}

// stripJSONFences removes a markdown code fence wrapper when the model adds
// one despite instructions.
func stripJSONFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "```") {
		return s
	}
	parts := strings.Split(s, "```")
	if len(parts) >= 3 {
		body := parts[1]
		body = strings.TrimPrefix(body, "json")
		body = strings.TrimPrefix(body, "JSON")
		return strings.TrimSpace(body)
	}
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

func jsonObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

// parseSummaryResponse decodes and normalizes a model reply. Over-long lists
// are truncated, thin keyword lists are padded from the transcript, and
// malformed highlight entries are dropped. What remains must satisfy the
// schema bounds or the reply is rejected with a reason suitable for a
// corrective re-prompt.
func parseSummaryResponse(raw string, segments []core.Segment, maxHighlights int) (*core.SummaryResult, error) {
	cleaned := stripJSONFences(raw)

	var parsed rawSummary
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		body := jsonObject(cleaned)
		if body == "" {
			return nil, fmt.Errorf("reply is not valid JSON: %v", err)
		}
		if err2 := json.Unmarshal([]byte(body), &parsed); err2 != nil {
			return nil, fmt.Errorf("reply is not valid JSON: %v", err2)
		}
	}

	result := &core.SummaryResult{
		Summary:   strings.TrimSpace(parsed.Summary),
		KeyPoints: cleanList(parsed.KeyPoints, 8),
		Keywords:  cleanList(parsed.Keywords, 10),
		Topics:    cleanList(parsed.Topics, 5),
	}
	for _, h := range parsed.Highlights {
		ts, ok := parseTimestamp(h.Timestamp)
		label := strings.TrimSpace(h.Label)
		if !ok || label == "" {
			continue
		}
		result.Highlights = append(result.Highlights, core.Highlight{Timestamp: ts, Label: label})
	}
	if maxHighlights > 0 && len(result.Highlights) > maxHighlights {
		result.Highlights = result.Highlights[:maxHighlights]
	}
	if len(result.Keywords) < 5 {
		result.Keywords = padKeywords(result.Keywords, segments)
	}

	if err := validate.Struct(result); err != nil {
		return nil, errors.New(describeValidationError(err))
	}
	return result, nil
}

func cleanList(items []string, max int) []string {
	seen := make(map[string]bool, len(items))
	var out []string
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" {
			continue
		}
		key := strings.ToLower(it)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, it)
		if len(out) == max {
			break
		}
	}
	return out
}

func parseTimestamp(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func padKeywords(keywords []string, segments []core.Segment) []string {
	seen := make(map[string]bool, len(keywords))
	for _, k := range keywords {
		seen[strings.ToLower(k)] = true
	}
	for _, term := range core.TopTerms(transcriptText(segments), 10) {
		if len(keywords) >= 5 {
			break
		}
		if seen[strings.ToLower(term)] {
			continue
		}
		seen[strings.ToLower(term)] = true
		keywords = append(keywords, term)
	}
	return keywords
}

func describeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	var parts []string
	for _, fe := range verrs {
		switch fe.Field() {
		case "Summary":
			parts = append(parts, `"summary" must be a non-empty string`)
		case "KeyPoints":
			parts = append(parts, `"key_points" must contain 5 to 8 non-empty entries`)
		case "Keywords":
			parts = append(parts, `"keywords" must contain 5 to 10 non-empty entries`)
		default:
			parts = append(parts, fmt.Sprintf("%s failed rule %q", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

func transcriptText(segments []core.Segment) string {
	var b strings.Builder
	for i, s := range segments {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s.Text)
	}
	return b.String()
}

// ========== Mock ==========

// MockSummarizer builds a deterministic summary straight from the transcript,
// for development and tests without a chat API.
type MockSummarizer struct {
	MaxHighlights int
}

func (m MockSummarizer) Summarize(_ context.Context, segments []core.Segment) (*core.SummaryResult, error) {
	if len(segments) == 0 {
		return nil, &core.SummarizationError{Err: fmt.Errorf("empty transcript")}
	}
	text := transcriptText(segments)

	keywords := core.TopTerms(text, 10)
	for i := 1; len(keywords) < 5; i++ {
		keywords = append(keywords, fmt.Sprintf("keyword%d", i))
	}

	points := make([]string, 0, 8)
	for _, s := range segments {
		points = append(points, firstSentence(s.Text))
		if len(points) == 8 {
			break
		}
	}
	points = cleanList(points, 8)
	for i := 1; len(points) < 5; i++ {
		points = append(points, fmt.Sprintf("Part %d of the recording.", i))
	}

	maxHighlights := m.MaxHighlights
	if maxHighlights <= 0 {
		maxHighlights = 6
	}
	step := len(segments) / maxHighlights
	if step < 1 {
		step = 1
	}
	var highlights []core.Highlight
	for i := 0; i < len(segments) && len(highlights) < maxHighlights; i += step {
		highlights = append(highlights, core.Highlight{
			Timestamp: segments[i].Start,
			Label:     firstSentence(segments[i].Text),
		})
	}

	summary := firstSentence(segments[0].Text)
	if len(segments) > 1 {
		summary += " " + firstSentence(segments[len(segments)-1].Text)
	}

	topics := keywords
	if len(topics) > 3 {
		topics = topics[:3]
	}

	return &core.SummaryResult{
		Summary:    summary,
		KeyPoints:  points,
		Keywords:   keywords,
		Topics:     topics,
		Highlights: highlights,
	}, nil
}

func firstSentence(s string) string {
	s = strings.TrimSpace(s)
	for _, sep := range []string{". ", "! ", "? "} {
		if i := strings.Index(s, sep); i > 0 {
			return s[:i+1]
		}
	}
	if len(s) > 120 {
		return s[:120]
	}
	return s
}
