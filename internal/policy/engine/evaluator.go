package engine

import (
	"context"

	actordomain "apflow/internal/actor/domain"
)

// LoginResult holds the result of login-policy evaluation.
type LoginResult struct {
	MFARequired bool
}

// Evaluator decides per-login requirements from department policy.
type Evaluator interface {
	// EvaluateLogin evaluates the department's login policies for the
	// authenticating profile. Returns whether an MFA challenge is required.
	EvaluateLogin(ctx context.Context, profile *actordomain.Profile) (LoginResult, error)
}
