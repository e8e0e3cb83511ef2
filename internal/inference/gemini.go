package inference

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"plantanalyzer/internal/config"
	"plantanalyzer/internal/domain"
)

// Client sends an instruction and an inline image to a multimodal model and
// returns the generated text.
type Client interface {
	Generate(ctx context.Context, prompt, mimeType string, image []byte) (string, error)
}

type GeminiClient struct {
	client *genai.Client
	model  string
	log    *zap.Logger
}

func NewGeminiClient(ctx context.Context, cfg *config.GeminiConfig, log *zap.Logger) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	log.Info("Gemini client created", zap.String("model", cfg.Model))

	return &GeminiClient{
		client: client,
		model:  cfg.Model,
		log:    log,
	}, nil
}

func (g *GeminiClient) Generate(ctx context.Context, prompt, mimeType string, image []byte) (string, error) {
	model := g.client.GenerativeModel(g.model)

	resp, err := model.GenerateContent(ctx,
		genai.Text(prompt),
		genai.Blob{MIMEType: mimeType, Data: image},
	)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	return ResponseText(resp)
}

func (g *GeminiClient) Close() error {
	return g.client.Close()
}

// ResponseText joins the text parts of the first candidate.
func ResponseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
			return "", fmt.Errorf("%w: prompt blocked: %s", domain.ErrEmptyResponse, resp.PromptFeedback.BlockReason)
		}
		return "", domain.ErrEmptyResponse
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}

	if strings.TrimSpace(sb.String()) == "" {
		return "", domain.ErrEmptyResponse
	}
	return sb.String(), nil
}
