package providers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/c360studio/crucible/llm"
)

// OllamaProvider implements the OpenAI-compatible API served by Ollama, vLLM
// and similar local runtimes.
type OllamaProvider struct{}

func init() {
	llm.RegisterProvider(&OllamaProvider{})
}

// Name returns the provider identifier.
func (o *OllamaProvider) Name() string {
	return "ollama"
}

// BuildURL constructs the chat completions endpoint.
func (o *OllamaProvider) BuildURL(baseURL string) string {
	return chatCompletionsURL(baseURL, "http://localhost:11434/v1")
}

// SetHeaders sets bearer auth when a key is configured. Local runtimes
// usually need none.
func (o *OllamaProvider) SetHeaders(req *http.Request, apiKey string) {
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
}

func chatCompletionsURL(baseURL, fallback string) string {
	if baseURL == "" {
		baseURL = fallback
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	if strings.HasSuffix(baseURL, "/chat/completions") {
		return baseURL
	}
	return baseURL + "/chat/completions"
}

// chatRequest is the OpenAI-compatible request format.
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	MaxTokens      *int            `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// BuildRequestBody creates the OpenAI-compatible request body.
func (o *OllamaProvider) BuildRequestBody(model string, messages []llm.Message, opts llm.RequestOptions) ([]byte, error) {
	apiMessages := make([]chatMessage, len(messages))
	for i, msg := range messages {
		apiMessages[i] = chatMessage{Role: msg.Role, Content: msg.Content}
	}

	req := chatRequest{
		Model:       model,
		Messages:    apiMessages,
		Temperature: opts.Temperature, // nil = use default, 0 = deterministic
	}
	if opts.MaxTokens > 0 {
		maxTokens := opts.MaxTokens
		req.MaxTokens = &maxTokens
	}
	if opts.JSONMode {
		req.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	return json.Marshal(req)
}

// chatResponse is the OpenAI-compatible response format.
type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// ParseResponse extracts content from an OpenAI-compatible response.
func (o *OllamaProvider) ParseResponse(body []byte, requested string) (*llm.Response, error) {
	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	modelName := resp.Model
	if modelName == "" {
		modelName = requested
	}

	return &llm.Response{
		Content: resp.Choices[0].Message.Content,
		Model:   modelName,
		Usage: llm.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		FinishReason: resp.Choices[0].FinishReason,
	}, nil
}
