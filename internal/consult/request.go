package consult

import (
	"errors"
	"fmt"

	"github.com/agentoven/boardroom/internal/advisors"
	"github.com/agentoven/boardroom/internal/completion"
	"github.com/agentoven/boardroom/internal/validate"
	"github.com/agentoven/boardroom/pkg/models"
)

// parseRequest validates the inbound request. A named non-primary
// executive is returned so it can be consulted even when the primary
// advisor does not ask for it.
func parseRequest(query, executive string) (models.Role, error) {
	if query == "" {
		return "", &RequestError{Field: "query", Message: "must not be empty"}
	}
	if executive == "" {
		return "", nil
	}
	role, ok := models.ParseRole(executive)
	if !ok {
		return "", &RequestError{Field: "executive", Message: fmt.Sprintf("unknown executive %q", executive)}
	}
	if role == models.PrimaryRole {
		return "", nil
	}
	return role, nil
}

// requestedRoles resolves the primary's list in its order, dropping
// duplicates and the primary itself. Unknown names are kept as roles so
// they surface as not implemented. extra, if set and not already listed,
// goes last.
func requestedRoles(names []string, extra models.Role) []models.Role {
	seen := map[models.Role]bool{models.PrimaryRole: true}
	var out []models.Role
	for _, name := range names {
		role, _ := models.ParseRole(name)
		if role == "" || seen[role] {
			continue
		}
		seen[role] = true
		out = append(out, role)
	}
	if extra != "" && !seen[extra] {
		out = append(out, extra)
	}
	return out
}

// advisorErrorMessage is the status message for a failed secondary advisor.
func advisorErrorMessage(err error) string {
	if errors.Is(err, advisors.ErrNotImplemented) {
		return "Implementation not available"
	}
	return "Consultation failed: " + UserMessage(err)
}

// UserMessage renders err for the error event.
func UserMessage(err error) string {
	var (
		reqErr *RequestError
		ve     *validate.ValidationError
	)
	switch {
	case errors.As(err, &reqErr):
		return reqErr.Error()
	case errors.As(err, &ve):
		return ve.Error()
	case completion.IsQuotaExhausted(err):
		return "The completion service quota is exhausted. Please check your plan and billing details."
	case errors.Is(err, advisors.ErrNotImplemented):
		return "Implementation not available: " + err.Error()
	case errors.Is(err, advisors.ErrMalformed):
		return "The advisor returned a response that could not be understood: " + err.Error()
	}
	switch completion.KindOf(err) {
	case completion.KindRateLimited, completion.KindUnavailable:
		return "The completion service is busy. Please try again shortly."
	case completion.KindTimeout:
		return "The completion service timed out."
	}
	return err.Error()
}
