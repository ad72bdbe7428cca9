// Package loginsecurity implements failed-login lockout and MFA one-time
// codes. Counter updates run as single server-side statements; the cooldown
// and dedup windows live in the shared cache so they hold across replicas.
package loginsecurity

import (
	"context"
	"time"

	"apflow/internal/apperr"
	"apflow/internal/audit"
	auditdomain "apflow/internal/audit/domain"
	"apflow/internal/cache"
	"apflow/internal/loginsecurity/repository"
	"apflow/internal/notify"
)

// Config carries the lockout and MFA tunables.
type Config struct {
	MaxAttempts    int
	Lockout        time.Duration
	CodeTTL        time.Duration
	ResendCooldown time.Duration
	DedupWindow    time.Duration
}

// Service gates logins with lockout counters and issues/verifies MFA codes.
type Service struct {
	repo     repository.Repository
	cache    cache.Cache
	auditLog audit.Logger
	notifier notify.Notifier
	cfg      Config
}

// NewService returns a Service with the given dependencies. notifier may be nil.
func NewService(repo repository.Repository, c cache.Cache, auditLog audit.Logger, notifier notify.Notifier, cfg Config) *Service {
	return &Service{repo: repo, cache: c, auditLog: auditLog, notifier: notifier, cfg: cfg}
}

// CheckLock reports whether identity is locked, clearing an expired lock in
// the same datastore call. A locked identity gets a rate-limit error with the
// remaining wait as the retry-after hint.
func (s *Service) CheckLock(ctx context.Context, identity string) error {
	locked, lockedUntil, err := s.repo.CheckLock(ctx, identity)
	if err != nil {
		return err
	}
	if locked {
		return apperr.RateLimited(time.Until(lockedUntil))
	}
	return nil
}

// RecordFailure counts one failed attempt. On the attempt that crosses the
// threshold it audits the lockout and fires a one-time notification to phone
// (when given); repeated failures while locked do neither.
func (s *Service) RecordFailure(ctx context.Context, identity, phone string) error {
	justLocked, err := s.repo.RecordFailure(ctx, identity, s.cfg.MaxAttempts, s.cfg.Lockout)
	if err != nil {
		return err
	}
	s.auditLog.Append(ctx, identity, "", auditdomain.EventLoginFailure, "", "", "")
	if justLocked {
		s.auditLog.Append(ctx, identity, "", auditdomain.EventAccountLocked, "", "", "")
		notify.SendAsync(s.notifier, notify.KindAccountLocked, phone, map[string]string{
			"message": "account locked after repeated failed logins",
		})
	}
	return nil
}

// ClearFailures removes all failure state for identity, called on successful
// authentication.
func (s *Service) ClearFailures(ctx context.Context, identity string) error {
	return s.repo.ClearFailures(ctx, identity)
}

// IssueCode generates and stores a fresh OTP for the actor, displacing any
// prior one, and sends it to phone. Issuance inside the dedup window is
// absorbed silently; issuance inside the resend cooldown is rate limited.
func (s *Service) IssueCode(ctx context.Context, actorID, phone string) error {
	dedupKey := "mfa:dedup:" + actorID
	if s.cfg.DedupWindow > 0 {
		if _, hit, err := s.cache.Get(ctx, dedupKey); err != nil {
			return err
		} else if hit {
			return nil
		}
	}

	rateKey := "mfa:rate:" + actorID
	count, err := s.cache.Incr(ctx, rateKey, s.cfg.ResendCooldown)
	if err != nil {
		return err
	}
	if count > 1 {
		remaining, err := s.cache.TTL(ctx, rateKey)
		if err != nil {
			return err
		}
		return apperr.RateLimited(remaining)
	}

	code, err := GenerateOTP()
	if err != nil {
		return err
	}
	expiresAt := time.Now().UTC().Add(s.cfg.CodeTTL)
	if err := s.repo.ReplaceCode(ctx, actorID, HashOTP(code), expiresAt); err != nil {
		return err
	}
	if s.cfg.DedupWindow > 0 {
		if err := s.cache.Set(ctx, dedupKey, "1", s.cfg.DedupWindow); err != nil {
			return err
		}
	}

	s.auditLog.Append(ctx, actorID, actorID, auditdomain.EventMFAIssued, "", "", "")
	notify.SendAsync(s.notifier, notify.KindMFACode, phone, map[string]string{"code": code})
	return nil
}

// VerifyCode consumes the actor's stored code and reports whether the given
// code matched before expiry. The stored code is gone after this call either
// way, so a failed guess cannot be retried against the same code.
func (s *Service) VerifyCode(ctx context.Context, actorID, code string) (bool, error) {
	codeHash, expiresAt, ok, err := s.repo.ConsumeCode(ctx, actorID)
	if err != nil {
		return false, err
	}
	if !ok || time.Now().UTC().After(expiresAt) {
		return false, nil
	}
	if !OTPEqual(code, codeHash) {
		return false, nil
	}
	s.auditLog.Append(ctx, actorID, actorID, auditdomain.EventMFAVerified, "", "", "")
	return true, nil
}
