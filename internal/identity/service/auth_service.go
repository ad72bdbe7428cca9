// Package service implements login with lockout gating and policy-driven MFA.
package service

import (
	"context"
	"strings"
	"time"

	actordomain "apflow/internal/actor/domain"
	"apflow/internal/apperr"
	"apflow/internal/audit"
	auditdomain "apflow/internal/audit/domain"
	"apflow/internal/loginsecurity"
	policyengine "apflow/internal/policy/engine"
	"apflow/internal/security"
)

// ProfileRepo is the minimal profile repository needed by the auth service.
type ProfileRepo interface {
	GetByEmail(ctx context.Context, email string) (*actordomain.Profile, error)
	GetByID(ctx context.Context, id string) (*actordomain.Profile, error)
}

// LoginResult holds the outcome of Login, VerifyMFA, or Refresh. When
// MFARequired is set the tokens are empty and the caller must follow up with
// VerifyMFA for ActorID.
type LoginResult struct {
	MFARequired  bool
	ActorID      string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Profile      *actordomain.Profile
}

// AuthService authenticates profiles and hands out JWT token pairs.
type AuthService struct {
	profiles ProfileRepo
	hasher   *security.Hasher
	tokens   *security.TokenProvider
	loginSec *loginsecurity.Service
	policy   policyengine.Evaluator
	auditLog audit.Logger
}

// NewAuthService returns an AuthService with the given dependencies.
func NewAuthService(
	profiles ProfileRepo,
	hasher *security.Hasher,
	tokens *security.TokenProvider,
	loginSec *loginsecurity.Service,
	policy policyengine.Evaluator,
	auditLog audit.Logger,
) *AuthService {
	return &AuthService{
		profiles: profiles,
		hasher:   hasher,
		tokens:   tokens,
		loginSec: loginSec,
		policy:   policy,
		auditLog: auditLog,
	}
}

// Login verifies the credentials behind the lockout gate. A wrong password
// counts one failure against the identity; a locked identity is rejected
// before the password is even checked, so attempts while locked cannot bump
// the counter. With a clean password the department login policy decides
// whether to stop for an MFA challenge or issue tokens right away.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, apperr.ErrForbidden
	}

	if err := s.loginSec.CheckLock(ctx, email); err != nil {
		return nil, err
	}

	profile, err := s.profiles.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if profile == nil || !profile.Active {
		// Unknown identities still pay the failure so probing cannot tell
		// them apart from a wrong password.
		if rerr := s.loginSec.RecordFailure(ctx, email, ""); rerr != nil {
			return nil, rerr
		}
		return nil, apperr.ErrForbidden
	}

	if err := s.hasher.Compare(profile.PasswordHash, []byte(password)); err != nil {
		if rerr := s.loginSec.RecordFailure(ctx, email, profile.Phone); rerr != nil {
			return nil, rerr
		}
		return nil, apperr.ErrForbidden
	}

	decision, err := s.policy.EvaluateLogin(ctx, profile)
	if err != nil {
		return nil, err
	}
	if decision.MFARequired {
		if err := s.loginSec.IssueCode(ctx, profile.ID, profile.Phone); err != nil {
			return nil, err
		}
		return &LoginResult{MFARequired: true, ActorID: profile.ID}, nil
	}

	return s.completeLogin(ctx, profile)
}

// VerifyMFA consumes the actor's pending code and completes the login on a
// match. The code is one-shot; a failed guess burns it.
func (s *AuthService) VerifyMFA(ctx context.Context, actorID, code string) (*LoginResult, error) {
	ok, err := s.loginSec.VerifyCode(ctx, actorID, code)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.ErrForbidden
	}
	profile, err := s.profiles.GetByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if profile == nil || !profile.Active {
		return nil, apperr.ErrForbidden
	}
	return s.completeLogin(ctx, profile)
}

// ResendMFA re-issues the pending code, subject to the cooldown and dedup
// windows.
func (s *AuthService) ResendMFA(ctx context.Context, actorID string) error {
	profile, err := s.profiles.GetByID(ctx, actorID)
	if err != nil {
		return err
	}
	if profile == nil || !profile.Active {
		return apperr.ErrForbidden
	}
	return s.loginSec.IssueCode(ctx, profile.ID, profile.Phone)
}

// Refresh exchanges a valid refresh token for a fresh pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	actorID, err := s.tokens.ValidateRefresh(refreshToken)
	if err != nil {
		return nil, apperr.ErrForbidden
	}
	profile, err := s.profiles.GetByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if profile == nil || !profile.Active {
		return nil, apperr.ErrForbidden
	}
	return s.issueTokens(profile)
}

func (s *AuthService) completeLogin(ctx context.Context, profile *actordomain.Profile) (*LoginResult, error) {
	if err := s.loginSec.ClearFailures(ctx, profile.Email); err != nil {
		return nil, err
	}
	s.auditLog.Append(ctx, profile.ID, profile.ID, auditdomain.EventLoginSuccess, "", "", "")
	return s.issueTokens(profile)
}

func (s *AuthService) issueTokens(profile *actordomain.Profile) (*LoginResult, error) {
	access, expiresAt, err := s.tokens.IssueAccess(profile)
	if err != nil {
		return nil, err
	}
	refresh, _, err := s.tokens.IssueRefresh(profile.ID)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		ActorID:      profile.ID,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
		Profile:      profile,
	}, nil
}
