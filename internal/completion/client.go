// Package completion talks to large-language-model completion services.
//
// A Client submits a prompt and returns the text plus token usage, or an
// *Error carrying a closed ErrorKind. Drivers exist for OpenAI-compatible
// endpoints (OpenAI, Azure OpenAI, Ollama), Anthropic, and a canned mock.
package completion

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/agentoven/boardroom/internal/config"
	"github.com/agentoven/boardroom/pkg/models"
)

// Request is one prompt submission.
type Request struct {
	Model       string               `json:"model"`
	Messages    []models.ChatMessage `json:"messages"`
	Temperature float64              `json:"temperature"`
	MaxTokens   int                  `json:"max_tokens"`
}

// Response is a successful completion.
type Response struct {
	ID       string       `json:"id"`
	Provider string       `json:"provider"`
	Model    string       `json:"model"`
	Text     string       `json:"text"`
	Usage    models.Usage `json:"usage"`
	Latency  time.Duration
}

// Client is the contract the orchestrator depends on.
type Client interface {
	Complete(ctx context.Context, req *Request) (*Response, error)
}

// Driver is one provider implementation.
type Driver interface {
	Kind() string
	Complete(ctx context.Context, req *Request) (*Response, error)
}

// DriverFactory builds a driver from configuration.
type DriverFactory func(cfg config.CompletionConfig, httpClient *http.Client) Driver

// Service selects a driver by provider kind and stamps cost estimates.
type Service struct {
	mu      sync.RWMutex
	drivers map[string]DriverFactory

	cfg        config.CompletionConfig
	httpClient *http.Client
	active     Driver
}

// NewService creates a service with the built-in drivers registered and
// the configured provider selected.
func NewService(cfg config.CompletionConfig) (*Service, error) {
	s := &Service{
		drivers: make(map[string]DriverFactory),
		cfg:     cfg,
		// Per-attempt deadlines come from the caller's context.
		httpClient: &http.Client{},
	}
	s.RegisterDriver("openai", newOpenAIDriver)
	s.RegisterDriver("azure-openai", newOpenAIDriver)
	s.RegisterDriver("ollama", newOpenAIDriver)
	s.RegisterDriver("anthropic", newAnthropicDriver)
	s.RegisterDriver("mock", func(config.CompletionConfig, *http.Client) Driver { return NewMockDriver() })

	if err := s.Use(cfg.Provider); err != nil {
		return nil, err
	}
	return s, nil
}

// RegisterDriver adds or replaces a driver factory.
func (s *Service) RegisterDriver(kind string, f DriverFactory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drivers[kind] = f
}

// Use switches the active driver.
func (s *Service) Use(kind string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.drivers[kind]
	if !ok {
		return fmt.Errorf("completion: unknown provider %q", kind)
	}
	cfg := s.cfg
	cfg.Provider = kind
	s.active = f(cfg, s.httpClient)
	return nil
}

// ListDrivers returns registered provider kinds, sorted.
func (s *Service) ListDrivers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	kinds := make([]string, 0, len(s.drivers))
	for k := range s.drivers {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Provider returns the active driver kind.
func (s *Service) Provider() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active.Kind()
}

// Complete fills request defaults, calls the active driver, and estimates cost.
func (s *Service) Complete(ctx context.Context, req *Request) (*Response, error) {
	s.mu.RLock()
	d := s.active
	s.mu.RUnlock()

	r := *req
	if r.Model == "" {
		r.Model = s.cfg.Model
	}
	if r.MaxTokens <= 0 {
		r.MaxTokens = s.cfg.MaxTokens
	}

	start := time.Now()
	resp, err := d.Complete(ctx, &r)
	if err != nil {
		return nil, err
	}
	resp.Latency = time.Since(start)
	if resp.Model == "" {
		resp.Model = r.Model
	}
	if resp.Usage.TotalTokens == 0 {
		resp.Usage.TotalTokens = resp.Usage.PromptTokens + resp.Usage.CompletionTokens
	}
	resp.Usage.EstimatedCost = EstimateCost(resp.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	return resp, nil
}

// errorCode pulls {"error":{"code":...}} or {"error":{"type":...}} out of a
// provider error body.
func errorCode(body []byte) string {
	var env struct {
		Error struct {
			Code string `json:"code"`
			Type string `json:"type"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &env) != nil {
		return ""
	}
	if env.Error.Code != "" {
		return env.Error.Code
	}
	return env.Error.Type
}
