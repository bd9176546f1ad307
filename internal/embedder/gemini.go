package embedder

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"framepipe/internal/activity"
	"framepipe/internal/services"
)

type embedClient interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Gemini embeds frames through the Gemini embedding API.
type Gemini struct {
	models embedClient
	model  string
	dims   int
}

// NewGemini creates a Gemini embedder.
func NewGemini(ctx context.Context, apiKey, model string, dims int) (*Gemini, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "embedder", "configure gemini", "api key is required", nil)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "embedder", "create gemini client", "", err)
	}
	return newGeminiWithClient(client.Models, model, dims), nil
}

func newGeminiWithClient(models embedClient, model string, dims int) *Gemini {
	if dims <= 0 {
		dims = Dimensions
	}
	return &Gemini{models: models, model: model, dims: dims}
}

// Name implements Embedder.
func (g *Gemini) Name() string { return "gemini:" + g.model }

// Embed implements Embedder.
func (g *Gemini) Embed(ctx context.Context, hb activity.Heartbeater, frame []byte) ([]float32, error) {
	if len(frame) == 0 {
		return nil, services.Wrap(services.ErrInvalidInput, "embedder", "gemini embed", "empty frame", nil)
	}
	if hb != nil {
		hb.Heartbeat("requesting embedding")
	}
	contents := []*genai.Content{
		genai.NewContentFromBytes(frame, "image/jpeg", genai.RoleUser),
	}
	result, err := g.models.EmbedContent(ctx, g.model, contents, &genai.EmbedContentConfig{
		OutputDimensionality: genai.Ptr(int32(g.dims)),
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, classifyAPIError(err)
	}
	if result == nil || len(result.Embeddings) == 0 || result.Embeddings[0] == nil || len(result.Embeddings[0].Values) == 0 {
		return nil, services.Wrap(services.ErrTransient, "embedder", "gemini embed", "empty embedding result", nil)
	}

	vector := append([]float32(nil), result.Embeddings[0].Values...)
	if err := Validate(vector, g.dims); err != nil {
		return nil, err
	}
	return Normalize(vector), nil
}

func classifyAPIError(err error) error {
	code := 0
	var apiErr *genai.APIError
	if errors.As(err, &apiErr) && apiErr != nil {
		code = apiErr.Code
	}
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return services.Wrap(services.ErrConfiguration, "embedder", "gemini embed", "authentication failed", err)
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		return services.Wrap(services.ErrInvalidInput, "embedder", "gemini embed", fmt.Sprintf("rejected input (%d)", code), err)
	default:
		return services.Wrap(services.ErrTransient, "embedder", "gemini embed", "", err)
	}
}
