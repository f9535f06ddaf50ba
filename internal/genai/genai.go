// Package genai provides GenAI-backed operations using the OpenAI API:
// chat completions for planning/classification/replies and image generation
// for design visualizations. Every call reports its token/image usage so
// callers can record spend.
package genai

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/IntakeDeskAI/Shrubb-sub001/internal/spend"
)

// Model names used by the handlers. The classifier runs on the cheap model;
// planning and replies do too, by default.
const (
	ChatModel  = "gpt-4o-mini"
	ImageModel = "dall-e-3"
)

// Generator is the interface handlers depend on; satisfied by Client and by
// test doubles.
type Generator interface {
	GenerateChat(ctx context.Context, systemPrompt, userPrompt string) (string, spend.Usage, error)
	GenerateImage(ctx context.Context, prompt string) (string, spend.Usage, error)
}

// chatService defines the minimal interface for chat completions.
type chatService interface {
	Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error)
}

// imageService defines the minimal interface for image generation.
type imageService interface {
	Generate(ctx context.Context, params openai.ImageGenerateParams) (openai.ImagesResponse, error)
}

// Client wraps the OpenAI API behind the Generator interface.
type Client struct {
	chat   chatService
	images imageService
}

// Compile-time check that Client implements Generator.
var _ Generator = (*Client)(nil)

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey string
}

// Option configures Opts.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// NewClient initializes a new GenAI client. The API key comes from options
// or, when absent, from OPENAI_API_KEY.
func NewClient(options ...Option) (*Client, error) {
	opts := Opts{APIKey: os.Getenv("OPENAI_API_KEY")}
	for _, opt := range options {
		opt(&opts)
	}
	if opts.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	cli := openai.NewClient(option.WithAPIKey(opts.APIKey))
	return &Client{
		chat:   openaiChatService{client: cli},
		images: openaiImageService{client: cli},
	}, nil
}

// openaiChatService adapts the OpenAI SDK to the chatService interface.
type openaiChatService struct {
	client openai.Client
}

func (s openaiChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	resp, err := s.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	return *resp, nil
}

// openaiImageService adapts the OpenAI SDK to the imageService interface.
type openaiImageService struct {
	client openai.Client
}

func (s openaiImageService) Generate(ctx context.Context, params openai.ImageGenerateParams) (openai.ImagesResponse, error) {
	resp, err := s.client.Images.Generate(ctx, params)
	if err != nil {
		return openai.ImagesResponse{}, err
	}
	return *resp, nil
}

// GenerateChat runs a chat completion with the given system and user prompts
// and returns the assistant's reply plus actual token usage.
func (c *Client) GenerateChat(ctx context.Context, systemPrompt, userPrompt string) (string, spend.Usage, error) {
	params := openai.ChatCompletionNewParams{
		Model: ChatModel,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
	}
	resp, err := c.chat.Create(ctx, params)
	if err != nil {
		return "", spend.Usage{}, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", spend.Usage{}, fmt.Errorf("no choices returned")
	}
	usage := spend.Usage{
		Model:            ChatModel,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}
	slog.Debug("Client.GenerateChat", "promptTokens", usage.PromptTokens, "completionTokens", usage.CompletionTokens)
	return resp.Choices[0].Message.Content, usage, nil
}

// GenerateImage renders one image for the prompt and returns its URL plus
// image usage.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (string, spend.Usage, error) {
	params := openai.ImageGenerateParams{
		Model:  ImageModel,
		Prompt: prompt,
		N:      openai.Int(1),
	}
	resp, err := c.images.Generate(ctx, params)
	if err != nil {
		return "", spend.Usage{}, fmt.Errorf("image generation failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return "", spend.Usage{}, fmt.Errorf("no image returned")
	}
	usage := spend.Usage{Model: ImageModel, Images: 1}
	slog.Debug("Client.GenerateImage", "urlSet", resp.Data[0].URL != "")
	return resp.Data[0].URL, usage, nil
}
