package providers

import (
	"net/http"
	"os"

	"github.com/c360studio/crucible/llm"
)

// OpenAIProvider talks to OpenAI or any hosted OpenAI-compatible gateway
// such as OpenRouter. It shares the wire format with OllamaProvider.
type OpenAIProvider struct {
	OllamaProvider
}

func init() {
	llm.RegisterProvider(&OpenAIProvider{})
}

// Name returns the provider identifier.
func (o *OpenAIProvider) Name() string {
	return "openai"
}

// BuildURL constructs the OpenAI API endpoint.
func (o *OpenAIProvider) BuildURL(baseURL string) string {
	return chatCompletionsURL(baseURL, "https://api.openai.com/v1")
}

// SetHeaders adds bearer auth, falling back to OPENAI_API_KEY, plus the
// optional OpenRouter attribution headers.
func (o *OpenAIProvider) SetHeaders(req *http.Request, apiKey string) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	if siteURL := os.Getenv("OPENROUTER_SITE_URL"); siteURL != "" {
		req.Header.Set("HTTP-Referer", siteURL)
	}
	if siteName := os.Getenv("OPENROUTER_SITE_NAME"); siteName != "" {
		req.Header.Set("X-Title", siteName)
	}
}
