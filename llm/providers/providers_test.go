package providers

import (
	"net/http"
	"testing"

	"github.com/c360studio/crucible/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistered(t *testing.T) {
	for _, name := range []string{"anthropic", "ollama", "openai"} {
		assert.NotNil(t, llm.GetProvider(name), name)
	}
}

func TestBuildURL(t *testing.T) {
	tests := []struct {
		name     string
		provider llm.Provider
		baseURL  string
		want     string
	}{
		{"ollama default", &OllamaProvider{}, "", "http://localhost:11434/v1/chat/completions"},
		{"ollama trailing slash", &OllamaProvider{}, "http://gpu:8000/v1/", "http://gpu:8000/v1/chat/completions"},
		{"ollama full endpoint", &OllamaProvider{}, "http://gpu:8000/v1/chat/completions", "http://gpu:8000/v1/chat/completions"},
		{"openai default", &OpenAIProvider{}, "", "https://api.openai.com/v1/chat/completions"},
		{"openrouter", &OpenAIProvider{}, "https://openrouter.ai/api/v1", "https://openrouter.ai/api/v1/chat/completions"},
		{"anthropic default", &AnthropicProvider{}, "", "https://api.anthropic.com/v1/messages"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.provider.BuildURL(tt.baseURL))
		})
	}
}

func TestChatRequestBody(t *testing.T) {
	p := &OpenAIProvider{}
	messages := []llm.Message{
		{Role: "system", Content: "You are a strict evaluator."},
		{Role: "user", Content: "Evaluate."},
	}

	temp := 0.2
	body, err := p.BuildRequestBody("gpt-4o-mini", messages, llm.RequestOptions{
		Temperature: &temp,
		MaxTokens:   800,
		JSONMode:    true,
	})
	require.NoError(t, err)

	s := string(body)
	assert.Contains(t, s, `"model":"gpt-4o-mini"`)
	assert.Contains(t, s, `"role":"system"`)
	assert.Contains(t, s, `"temperature":0.2`)
	assert.Contains(t, s, `"max_tokens":800`)
	assert.Contains(t, s, `"response_format":{"type":"json_object"}`)

	body, err = p.BuildRequestBody("m", messages[1:], llm.RequestOptions{})
	require.NoError(t, err)
	assert.NotContains(t, string(body), "temperature")
	assert.NotContains(t, string(body), "max_tokens")
	assert.NotContains(t, string(body), "response_format")

	zero := 0.0
	body, err = p.BuildRequestBody("m", messages, llm.RequestOptions{Temperature: &zero})
	require.NoError(t, err)
	assert.Contains(t, string(body), `"temperature":0`)
}

func TestChatParseResponse(t *testing.T) {
	p := &OllamaProvider{}

	resp, err := p.ParseResponse([]byte(`{
		"model": "qwen2.5:14b",
		"choices": [{"message": {"role": "assistant", "content": "{\"decision\":\"go\"}"}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 10, "completion_tokens": 6, "total_tokens": 16}
	}`), "requested")
	require.NoError(t, err)
	assert.Equal(t, `{"decision":"go"}`, resp.Content)
	assert.Equal(t, "qwen2.5:14b", resp.Model)
	assert.Equal(t, 16, resp.Usage.TotalTokens)
	assert.Equal(t, "stop", resp.FinishReason)

	resp, err = p.ParseResponse([]byte(`{"choices": [{"message": {"content": "x"}}]}`), "requested")
	require.NoError(t, err)
	assert.Equal(t, "requested", resp.Model)

	_, err = p.ParseResponse([]byte(`{"choices": []}`), "m")
	assert.ErrorContains(t, err, "no choices")
}

func TestSetHeaders(t *testing.T) {
	t.Run("explicit key wins", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "env-key")
		req, _ := http.NewRequest(http.MethodPost, "https://api.openai.com/v1/chat/completions", nil)
		(&OpenAIProvider{}).SetHeaders(req, "cfg-key")
		assert.Equal(t, "Bearer cfg-key", req.Header.Get("Authorization"))
	})

	t.Run("env fallback and openrouter attribution", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "env-key")
		t.Setenv("OPENROUTER_SITE_URL", "https://crucible.example")
		t.Setenv("OPENROUTER_SITE_NAME", "crucible")
		req, _ := http.NewRequest(http.MethodPost, "https://openrouter.ai/api/v1/chat/completions", nil)
		(&OpenAIProvider{}).SetHeaders(req, "")
		assert.Equal(t, "Bearer env-key", req.Header.Get("Authorization"))
		assert.Equal(t, "https://crucible.example", req.Header.Get("HTTP-Referer"))
		assert.Equal(t, "crucible", req.Header.Get("X-Title"))
	})

	t.Run("local runtime without key", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPost, "http://localhost:11434/v1/chat/completions", nil)
		(&OllamaProvider{}).SetHeaders(req, "")
		assert.Empty(t, req.Header.Get("Authorization"))
	})

	t.Run("anthropic", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPost, "https://api.anthropic.com/v1/messages", nil)
		(&AnthropicProvider{}).SetHeaders(req, "sk-ant")
		assert.Equal(t, "sk-ant", req.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, req.Header.Get("anthropic-version"))
	})
}

func TestAnthropicRequestBody(t *testing.T) {
	p := &AnthropicProvider{}
	messages := []llm.Message{
		{Role: "system", Content: "You are a strict evaluator."},
		{Role: "user", Content: "Evaluate."},
	}

	body, err := p.BuildRequestBody("claude-3-5-haiku", messages, llm.RequestOptions{JSONMode: true})
	require.NoError(t, err)

	s := string(body)
	assert.Contains(t, s, `"max_tokens":4096`)
	assert.Contains(t, s, "single JSON object")
	assert.NotContains(t, s, `"role":"system"`)
	assert.NotContains(t, s, "temperature")
}

func TestAnthropicParseResponse(t *testing.T) {
	p := &AnthropicProvider{}
	resp, err := p.ParseResponse([]byte(`{
		"content": [{"type": "text", "text": "{\"decision\":"}, {"type": "text", "text": "\"deny\"}"}],
		"model": "claude-3-5-haiku",
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 12, "output_tokens": 5}
	}`), "m")
	require.NoError(t, err)
	assert.Equal(t, `{"decision":"deny"}`, resp.Content)
	assert.Equal(t, 17, resp.Usage.TotalTokens)
	assert.Equal(t, "end_turn", resp.FinishReason)
}
