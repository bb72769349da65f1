package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/timmy/galleria/internal/apperr"
	"github.com/timmy/galleria/internal/prompts"
)

// CaptionService generates image captions through an OpenAI-compatible
// vision chat-completions endpoint (Ollama, OpenAI, or any gateway speaking
// the same protocol).
type CaptionService struct {
	client   *resty.Client
	model    string
	endpoint string
}

// CaptionConfig holds configuration for the caption service.
type CaptionConfig struct {
	Model   string
	APIKey  string
	BaseURL string
}

// NewCaptionService creates a new caption service.
func NewCaptionService(cfg *CaptionConfig) *CaptionService {
	client := resty.New()
	if cfg.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}
	client.SetHeader("Content-Type", "application/json")
	// Model inference can take a while; cap it so a stuck request cannot
	// hang the whole batch.
	client.SetTimeout(120 * time.Second)

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434/v1"
	}

	return &CaptionService{
		client:   client,
		model:    cfg.Model,
		endpoint: strings.TrimSuffix(baseURL, "/") + "/chat/completions",
	}
}

// Model returns the caption model name being used.
func (s *CaptionService) Model() string {
	return s.model
}

// OpenAI-compatible Chat Completion API request/response structures
type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"` // string for system, []interface{} for user with images
}

type chatTextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type chatImageContent struct {
	Type     string       `json:"type"`
	ImageURL chatImageURL `json:"image_url"`
}

type chatImageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Caption generates a caption for an image. A failure or an empty model
// response is a caption error; the pipeline never substitutes a fabricated
// caption for a real one.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - imageData: raw image bytes (JPEG).
//   - format: image format extension (jpg).
//
// Returns:
//   - string: generated caption, whitespace-trimmed.
//   - error: caption error if the API request fails or returns nothing.
func (s *CaptionService) Caption(ctx context.Context, imageData []byte, format string) (string, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType(format), base64.StdEncoding.EncodeToString(imageData))

	req := chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{
				Role:    "system",
				Content: prompts.CaptionSystemPrompt,
			},
			{
				Role: "user",
				Content: []interface{}{
					chatTextContent{
						Type: "text",
						Text: prompts.CaptionUserPrompt,
					},
					chatImageContent{
						Type:     "image_url",
						ImageURL: chatImageURL{URL: dataURL},
					},
				},
			},
		},
		MaxTokens: 60,
	}

	var resp chatResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		Post(s.endpoint)

	if err != nil {
		return "", apperr.E(apperr.KindCaption, "caption.Caption", err)
	}

	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		if resp.Error != nil {
			return "", apperr.Errorf(apperr.KindCaption, "caption.Caption", "HTTP %d: %s", httpResp.StatusCode(), resp.Error.Message)
		}
		return "", apperr.Errorf(apperr.KindCaption, "caption.Caption", "HTTP %d: %s", httpResp.StatusCode(), string(httpResp.Body()))
	}

	if resp.Error != nil {
		return "", apperr.Errorf(apperr.KindCaption, "caption.Caption", "API error: %s", resp.Error.Message)
	}

	if len(resp.Choices) == 0 {
		return "", apperr.Errorf(apperr.KindCaption, "caption.Caption", "no choices in response (status %d)", httpResp.StatusCode())
	}

	caption := strings.TrimSpace(resp.Choices[0].Message.Content)
	if caption == "" {
		return "", apperr.Errorf(apperr.KindCaption, "caption.Caption", "model returned an empty caption")
	}

	return caption, nil
}

func mimeType(format string) string {
	switch format {
	case "jpg", "jpeg":
		return "image/jpeg"
	default:
		return "image/jpeg"
	}
}
