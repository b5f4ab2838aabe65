package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/agentoven/boardroom/internal/config"
	"github.com/agentoven/boardroom/pkg/models"
	"github.com/google/uuid"
)

// ── OpenAI / Azure OpenAI / Ollama ──────────────────────────

type openAIDriver struct {
	kind     string
	endpoint string
	apiKey   string
	client   *http.Client
}

func newOpenAIDriver(cfg config.CompletionConfig, httpClient *http.Client) Driver {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		switch cfg.Provider {
		case "ollama":
			endpoint = "http://localhost:11434/v1"
		default:
			endpoint = "https://api.openai.com/v1"
		}
	}
	return &openAIDriver{kind: cfg.Provider, endpoint: endpoint, apiKey: cfg.APIKey, client: httpClient}
}

func (d *openAIDriver) Kind() string { return d.kind }

type openAIRequest struct {
	Model            string               `json:"model"`
	Messages         []models.ChatMessage `json:"messages"`
	Temperature      float64              `json:"temperature"`
	MaxTokens        int                  `json:"max_tokens,omitempty"`
	PresencePenalty  float64              `json:"presence_penalty,omitempty"`
	FrequencyPenalty float64              `json:"frequency_penalty,omitempty"`
}

type openAIResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
		TotalTokens      int64 `json:"total_tokens"`
	} `json:"usage"`
}

func (d *openAIDriver) Complete(ctx context.Context, req *Request) (*Response, error) {
	if d.apiKey == "" && d.kind != "ollama" {
		return nil, &Error{Kind: KindUpstream, Provider: d.kind, Message: "api_key not configured"}
	}

	body, _ := json.Marshal(openAIRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", d.kind, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	// Azure OpenAI uses a different auth header
	if d.kind == "azure-openai" {
		httpReq.Header.Set("api-key", d.apiKey)
	} else if d.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+d.apiKey)
	}

	var oaiResp openAIResponse
	if err := doJSON(d.client, d.kind, httpReq, &oaiResp); err != nil {
		return nil, err
	}

	if len(oaiResp.Choices) == 0 || oaiResp.Choices[0].Message.Content == "" {
		return nil, &Error{Kind: KindMalformed, Provider: d.kind, Message: "no completion content"}
	}
	id := oaiResp.ID
	if id == "" {
		id = uuid.New().String()
	}

	return &Response{
		ID:       id,
		Provider: d.kind,
		Model:    req.Model,
		Text:     oaiResp.Choices[0].Message.Content,
		Usage: models.Usage{
			PromptTokens:     oaiResp.Usage.PromptTokens,
			CompletionTokens: oaiResp.Usage.CompletionTokens,
			TotalTokens:      oaiResp.Usage.TotalTokens,
		},
	}, nil
}

// ── Anthropic ───────────────────────────────────────────────

type anthropicDriver struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

func newAnthropicDriver(cfg config.CompletionConfig, httpClient *http.Client) Driver {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "https://api.anthropic.com"
	}
	return &anthropicDriver{endpoint: endpoint, apiKey: cfg.APIKey, client: httpClient}
}

func (d *anthropicDriver) Kind() string { return "anthropic" }

type anthropicRequest struct {
	Model       string               `json:"model"`
	System      string               `json:"system,omitempty"`
	Messages    []models.ChatMessage `json:"messages"`
	MaxTokens   int                  `json:"max_tokens"`
	Temperature float64              `json:"temperature"`
}

type anthropicResponse struct {
	ID      string `json:"id"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int64 `json:"input_tokens"`
		OutputTokens int64 `json:"output_tokens"`
	} `json:"usage"`
}

func (d *anthropicDriver) Complete(ctx context.Context, req *Request) (*Response, error) {
	if d.apiKey == "" {
		return nil, &Error{Kind: KindUpstream, Provider: "anthropic", Message: "api_key not configured"}
	}

	// Anthropic takes the system prompt as a top-level field.
	var system string
	msgs := make([]models.ChatMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == "system" {
			system = m.Content
			continue
		}
		msgs = append(msgs, m)
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	body, _ := json.Marshal(anthropicRequest{
		Model:       req.Model,
		System:      system,
		Messages:    msgs,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
	})

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("anthropic: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", d.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	var anthResp anthropicResponse
	if err := doJSON(d.client, "anthropic", httpReq, &anthResp); err != nil {
		return nil, err
	}

	content := ""
	for _, c := range anthResp.Content {
		if c.Type == "text" {
			content += c.Text
		}
	}
	if content == "" {
		return nil, &Error{Kind: KindMalformed, Provider: "anthropic", Message: "no completion content"}
	}

	return &Response{
		ID:       anthResp.ID,
		Provider: "anthropic",
		Model:    req.Model,
		Text:     content,
		Usage: models.Usage{
			PromptTokens:     anthResp.Usage.InputTokens,
			CompletionTokens: anthResp.Usage.OutputTokens,
			TotalTokens:      anthResp.Usage.InputTokens + anthResp.Usage.OutputTokens,
		},
	}, nil
}

// doJSON executes req and decodes a 200 body into out, classifying every
// failure into an *Error.
func doJSON(client *http.Client, provider string, req *http.Request, out any) error {
	httpResp, err := client.Do(req)
	if err != nil {
		return transportError(provider, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(httpResp.Body, 64<<10))
		return &Error{
			Kind:       classifyStatus(httpResp.StatusCode, respBody),
			Provider:   provider,
			StatusCode: httpResp.StatusCode,
			Message:    string(respBody),
		}
	}

	if err := json.NewDecoder(httpResp.Body).Decode(out); err != nil {
		return &Error{Kind: KindMalformed, Provider: provider, Message: "decode response", Err: err}
	}
	return nil
}
