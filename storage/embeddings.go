package storage

import (
	"context"
	"fmt"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"
	openai "github.com/sashabaranov/go-openai"

	"videoDigest/config"
)

// embedder turns text into vectors for the pgvector and milvus backends.
// The in-memory store uses local hashing instead and never touches this.
type embedder interface {
	embed(ctx context.Context, texts []string) ([][]float32, error)
}

const (
	openaiEmbedDim   = 1536
	cohereEmbedModel = "embed-english-v3.0"
	cohereEmbedDim   = 1024
)

// newEmbedder prefers Cohere when a key for it is present, otherwise falls
// back to the OpenAI-compatible endpoint. Returns nil when neither is
// configured.
func newEmbedder(cfg *config.Config) embedder {
	if cfg.CohereAPIKey != "" {
		return &cohereEmbedder{
			client: cohereclient.NewClient(cohereclient.WithToken(cfg.CohereAPIKey)),
			model:  cohereEmbedModel,
		}
	}
	if cfg.HasValidAPI() {
		clientConfig := openai.DefaultConfig(cfg.APIKey)
		clientConfig.BaseURL = cfg.BaseURL
		return &openaiEmbedder{
			client: openai.NewClientWithConfig(clientConfig),
			model:  cfg.EmbeddingModel,
		}
	}
	return nil
}

// embedDim reports the vector width the configured embedder produces, used
// for table and collection schemas.
func embedDim(cfg *config.Config) int {
	if cfg.CohereAPIKey != "" {
		return cohereEmbedDim
	}
	return openaiEmbedDim
}

type openaiEmbedder struct {
	client *openai.Client
	model  string
}

func (e *openaiEmbedder) embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}
	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		out[i] = d.Embedding
	}
	return out, nil
}

type cohereEmbedder struct {
	client *cohereclient.Client
	model  string
}

func (e *cohereEmbedder) embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.V2.Embed(ctx, &cohere.V2EmbedRequest{
		Texts:          texts,
		Model:          e.model,
		InputType:      cohere.EmbedInputTypeSearchDocument,
		EmbeddingTypes: []cohere.EmbeddingType{cohere.EmbeddingTypeFloat},
	})
	if err != nil {
		return nil, fmt.Errorf("cohere embed: %w", err)
	}
	if resp.Embeddings == nil {
		return nil, fmt.Errorf("cohere returned no embeddings")
	}
	if len(resp.Embeddings.Float) != len(texts) {
		return nil, fmt.Errorf("cohere returned %d embeddings for %d texts", len(resp.Embeddings.Float), len(texts))
	}
	out := make([][]float32, len(resp.Embeddings.Float))
	for i, vec := range resp.Embeddings.Float {
		row := make([]float32, len(vec))
		for j, v := range vec {
			row[j] = float32(v)
		}
		out[i] = row
	}
	return out, nil
}
