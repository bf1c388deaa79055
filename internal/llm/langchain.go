package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
)

// LangChainBackend adapts a langchaingo model to Backend. The model name is
// passed per call so one client serves every model variant.
type LangChainBackend struct {
	model llms.Model
	opts  []llms.CallOption
}

// NewLangChainBackend wraps an already constructed langchaingo model.
func NewLangChainBackend(model llms.Model, opts ...llms.CallOption) *LangChainBackend {
	return &LangChainBackend{model: model, opts: opts}
}

// NewGoogleAIBackend connects to the Gemini API.
func NewGoogleAIBackend(ctx context.Context, apiKey, defaultModel string, maxOutputTokens int) (*LangChainBackend, error) {
	opts := []googleai.Option{
		googleai.WithAPIKey(apiKey),
		googleai.WithDefaultModel(defaultModel),
	}
	if maxOutputTokens > 0 {
		opts = append(opts, googleai.WithDefaultMaxTokens(maxOutputTokens))
	}
	model, err := googleai.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("init googleai: %w", err)
	}
	return NewLangChainBackend(model), nil
}

// NewOllamaBackend connects to an Ollama server.
func NewOllamaBackend(serverURL, defaultModel string) (*LangChainBackend, error) {
	model, err := ollama.New(ollama.WithModel(defaultModel), ollama.WithServerURL(serverURL))
	if err != nil {
		return nil, fmt.Errorf("init ollama: %w", err)
	}
	return NewLangChainBackend(model), nil
}

func (b *LangChainBackend) Invoke(ctx context.Context, model string, messages []Message) (string, error) {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		content = append(content, llms.TextParts(chatMessageType(m.Role), m.Content))
	}

	opts := append([]llms.CallOption{
		llms.WithModel(model),
		llms.WithTemperature(0),
	}, b.opts...)

	resp, err := b.model.GenerateContent(ctx, content, opts...)
	if err != nil {
		return "", fmt.Errorf("generate %s: %w", model, err)
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return "", fmt.Errorf("generate %s: empty response", model)
	}
	return resp.Choices[0].Content, nil
}

func chatMessageType(r Role) llms.ChatMessageType {
	switch r {
	case RoleSystem:
		return llms.ChatMessageTypeSystem
	case RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}
