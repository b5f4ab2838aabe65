// Package advisors is the role dispatch table: each registered role pairs a
// prompt builder with a response parser. Adding a role is a table entry,
// not a new branch in the orchestrator.
package advisors

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"github.com/agentoven/boardroom/pkg/models"
	"gopkg.in/yaml.v3"
)

// ErrNotImplemented is matched by errors.Is for roles with no registered advisor.
var ErrNotImplemented = errors.New("implementation not available")

// NotImplementedError names the unregistered role.
type NotImplementedError struct {
	Role models.Role
}

func (e *NotImplementedError) Error() string {
	return fmt.Sprintf("advisor %q: %s", e.Role, ErrNotImplemented)
}

func (e *NotImplementedError) Is(target error) bool { return target == ErrNotImplemented }

// PromptBuilder turns a query and optional company context into messages.
type PromptBuilder func(query string, cc *models.CompanyContext) []models.ChatMessage

// ResponseParser turns completion text into a structured response.
type ResponseParser func(text string) (*models.AdvisorResponse, error)

// Advisor is one dispatch-table entry.
type Advisor struct {
	Role        models.Role
	Model       string
	Temperature float64
	MaxTokens   int
	Prompt      PromptBuilder
	Parse       ResponseParser
}

// Registry maps roles to advisors. It is populated at startup and read
// concurrently afterwards.
type Registry struct {
	mu       sync.RWMutex
	advisors map[models.Role]*Advisor
	profiles []models.AdvisorProfile
}

//go:embed catalog.yaml
var catalogYAML []byte

// NewRegistry returns an empty registry carrying the embedded catalog.
func NewRegistry() *Registry {
	r := &Registry{advisors: make(map[models.Role]*Advisor)}
	profiles, err := LoadCatalog(catalogYAML)
	if err != nil {
		panic(fmt.Sprintf("advisors: embedded catalog: %v", err))
	}
	r.profiles = profiles
	return r
}

// NewDefaultRegistry registers every built-in advisor. The human resources
// role has a catalog entry but no implementation.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, spec := range builtinSpecs {
		r.Register(spec.advisor())
	}
	return r
}

// LoadCatalog decodes advisor profiles from YAML.
func LoadCatalog(data []byte) ([]models.AdvisorProfile, error) {
	var profiles []models.AdvisorProfile
	if err := yaml.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	for i, p := range profiles {
		if _, ok := models.ParseRole(string(p.Title)); !ok {
			return nil, fmt.Errorf("catalog entry %d: unknown role %q", i, p.Title)
		}
	}
	return profiles, nil
}

// Register adds or replaces the advisor for a.Role. A catalog model
// override is applied when the advisor does not set one.
func (r *Registry) Register(a Advisor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.Model == "" {
		for _, p := range r.profiles {
			if p.Title == a.Role {
				a.Model = p.Model
			}
		}
	}
	r.advisors[a.Role] = &a
}

// Lookup returns the advisor for role or a *NotImplementedError.
func (r *Registry) Lookup(role models.Role) (*Advisor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.advisors[role]
	if !ok {
		return nil, &NotImplementedError{Role: role}
	}
	return a, nil
}

// Profiles returns the catalog with availability filled in.
func (r *Registry) Profiles() []models.AdvisorProfile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.AdvisorProfile, len(r.profiles))
	for i, p := range r.profiles {
		_, p.Available = r.advisors[p.Title]
		out[i] = p
	}
	return out
}
