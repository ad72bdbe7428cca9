package loginsecurity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"apflow/internal/apperr"
	"apflow/internal/cache"
)

// fakeLockRepo mirrors the single-statement semantics of the SQL
// implementation under one mutex.
type fakeLockRepo struct {
	mu    sync.Mutex
	nowF  func() time.Time
	rows  map[string]*lockRow
	codes map[string]storedCode
}

type lockRow struct {
	attemptCount int
	lockedUntil  time.Time
}

type storedCode struct {
	codeHash  string
	expiresAt time.Time
}

func newFakeLockRepo() *fakeLockRepo {
	return &fakeLockRepo{
		nowF:  time.Now().UTC,
		rows:  map[string]*lockRow{},
		codes: map[string]storedCode{},
	}
}

func (f *fakeLockRepo) CheckLock(_ context.Context, identity string) (bool, time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[identity]
	if !ok || row.lockedUntil.IsZero() {
		return false, time.Time{}, nil
	}
	if !row.lockedUntil.After(f.nowF()) {
		row.lockedUntil = time.Time{}
		return false, time.Time{}, nil
	}
	return true, row.lockedUntil, nil
}

func (f *fakeLockRepo) RecordFailure(_ context.Context, identity string, maxAttempts int, lockout time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[identity]
	if !ok {
		row = &lockRow{}
		f.rows[identity] = row
	}
	row.attemptCount++
	if row.attemptCount >= maxAttempts {
		row.attemptCount = 0
		row.lockedUntil = f.nowF().Add(lockout)
		return true, nil
	}
	return false, nil
}

func (f *fakeLockRepo) ClearFailures(_ context.Context, identity string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, identity)
	return nil
}

func (f *fakeLockRepo) ReplaceCode(_ context.Context, actorID, codeHash string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes[actorID] = storedCode{codeHash: codeHash, expiresAt: expiresAt}
	return nil
}

func (f *fakeLockRepo) ConsumeCode(_ context.Context, actorID string) (string, time.Time, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.codes[actorID]
	if !ok {
		return "", time.Time{}, false, nil
	}
	delete(f.codes, actorID)
	return c.codeHash, c.expiresAt, true, nil
}

type nopAudit struct{}

func (nopAudit) Append(context.Context, string, string, string, string, string, string) {}

type captureNotifier struct {
	mu    sync.Mutex
	codes []string
	kinds []string
}

func (c *captureNotifier) Send(_ context.Context, kind, _ string, data map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kinds = append(c.kinds, kind)
	c.codes = append(c.codes, data["code"])
	return nil
}

// codeAt waits for the i-th code notification; sends run on their own goroutine.
func (c *captureNotifier) codeAt(t *testing.T, i int) string {
	t.Helper()
	for attempt := 0; attempt < 200; attempt++ {
		c.mu.Lock()
		n := len(c.codes)
		c.mu.Unlock()
		if n > i {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.codes) <= i {
		t.Fatalf("notification %d not captured", i)
	}
	return c.codes[i]
}

func testConfig() Config {
	return Config{
		MaxAttempts:    3,
		Lockout:        30 * time.Minute,
		CodeTTL:        10 * time.Minute,
		ResendCooldown: time.Minute,
		DedupWindow:    5 * time.Second,
	}
}

func TestRecordFailureLocksOnThreshold(t *testing.T) {
	ctx := context.Background()
	repo := newFakeLockRepo()
	s := NewService(repo, cache.NewMemoryStore(), nopAudit{}, nil, testConfig())

	for i := 0; i < 2; i++ {
		if err := s.RecordFailure(ctx, "user@example.com", ""); err != nil {
			t.Fatal(err)
		}
		if err := s.CheckLock(ctx, "user@example.com"); err != nil {
			t.Fatalf("attempt %d should not lock: %v", i+1, err)
		}
	}

	if err := s.RecordFailure(ctx, "user@example.com", ""); err != nil {
		t.Fatal(err)
	}
	err := s.CheckLock(ctx, "user@example.com")
	if !errors.Is(err, apperr.ErrRateLimited) {
		t.Fatalf("third failure should lock, got %v", err)
	}
	if hint := apperr.RetryAfter(err); hint <= 0 || hint > 30*time.Minute {
		t.Fatalf("retry-after hint = %v", hint)
	}
}

func TestLockNotificationFiresOnceOnTransition(t *testing.T) {
	ctx := context.Background()
	repo := newFakeLockRepo()
	notifier := &captureNotifier{}
	s := NewService(repo, cache.NewMemoryStore(), nopAudit{}, notifier, testConfig())

	for i := 0; i < 3; i++ {
		if err := s.RecordFailure(ctx, "user@example.com", "1234567890"); err != nil {
			t.Fatal(err)
		}
	}
	// A further failure while locked must not fire another lock notification.
	if err := s.RecordFailure(ctx, "user@example.com", "1234567890"); err != nil {
		t.Fatal(err)
	}

	time.Sleep(20 * time.Millisecond)
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	var lockKinds int
	for _, k := range notifier.kinds {
		if k == "account_locked" {
			lockKinds++
		}
	}
	if lockKinds != 1 {
		t.Fatalf("lock notifications = %d, want exactly 1", lockKinds)
	}
}

func TestClearFailuresResetsCounter(t *testing.T) {
	ctx := context.Background()
	repo := newFakeLockRepo()
	s := NewService(repo, cache.NewMemoryStore(), nopAudit{}, nil, testConfig())

	for i := 0; i < 2; i++ {
		if err := s.RecordFailure(ctx, "user@example.com", ""); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.ClearFailures(ctx, "user@example.com"); err != nil {
		t.Fatal(err)
	}
	// Two more failures after the reset still stay below the threshold.
	for i := 0; i < 2; i++ {
		if err := s.RecordFailure(ctx, "user@example.com", ""); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.CheckLock(ctx, "user@example.com"); err != nil {
		t.Fatalf("counter should have reset on clear: %v", err)
	}
}

func TestCheckLockClearsExpiredLockIdempotently(t *testing.T) {
	ctx := context.Background()
	repo := newFakeLockRepo()
	now := time.Now().UTC()
	repo.nowF = func() time.Time { return now }
	s := NewService(repo, cache.NewMemoryStore(), nopAudit{}, nil, testConfig())

	for i := 0; i < 3; i++ {
		if err := s.RecordFailure(ctx, "user@example.com", ""); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.CheckLock(ctx, "user@example.com"); !errors.Is(err, apperr.ErrRateLimited) {
		t.Fatalf("expected locked, got %v", err)
	}

	now = now.Add(31 * time.Minute)
	for i := 0; i < 3; i++ {
		if err := s.CheckLock(ctx, "user@example.com"); err != nil {
			t.Fatalf("check %d after expiry: %v", i+1, err)
		}
	}
}

func TestIssueCodeReplacesPrior(t *testing.T) {
	ctx := context.Background()
	repo := newFakeLockRepo()
	notifier := &captureNotifier{}
	cfg := testConfig()
	cfg.DedupWindow = 0 // no dedup so the second issue goes through
	c := cache.NewMemoryStore()
	s := NewService(repo, c, nopAudit{}, notifier, cfg)

	if err := s.IssueCode(ctx, "actor-1", "1234567890"); err != nil {
		t.Fatal(err)
	}
	first := notifier.codeAt(t, 0)

	// Past the cooldown, issue again.
	if err := c.Delete(ctx, "mfa:rate:actor-1"); err != nil {
		t.Fatal(err)
	}
	if err := s.IssueCode(ctx, "actor-1", "1234567890"); err != nil {
		t.Fatal(err)
	}

	second := notifier.codeAt(t, 1)
	ok, err := s.VerifyCode(ctx, "actor-1", first)
	if err != nil {
		t.Fatal(err)
	}
	if ok && first != second {
		t.Fatal("displaced code must no longer verify")
	}
	if first == second {
		t.Skip("generated codes collided")
	}
}

func TestIssueCodeRateLimited(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.DedupWindow = 0
	s := NewService(newFakeLockRepo(), cache.NewMemoryStore(), nopAudit{}, &captureNotifier{}, cfg)

	if err := s.IssueCode(ctx, "actor-1", "1234567890"); err != nil {
		t.Fatal(err)
	}
	err := s.IssueCode(ctx, "actor-1", "1234567890")
	if !errors.Is(err, apperr.ErrRateLimited) {
		t.Fatalf("second issue inside cooldown: err = %v, want rate limited", err)
	}
}

func TestIssueCodeDedupAbsorbed(t *testing.T) {
	ctx := context.Background()
	notifier := &captureNotifier{}
	s := NewService(newFakeLockRepo(), cache.NewMemoryStore(), nopAudit{}, notifier, testConfig())

	if err := s.IssueCode(ctx, "actor-1", "1234567890"); err != nil {
		t.Fatal(err)
	}
	// A duplicate request inside the dedup window succeeds without reissuing.
	if err := s.IssueCode(ctx, "actor-1", "1234567890"); err != nil {
		t.Fatalf("dedup window should absorb, got %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.codes) != 1 {
		t.Fatalf("codes sent = %d, want 1", len(notifier.codes))
	}
}

func TestVerifyCodeOneShot(t *testing.T) {
	ctx := context.Background()
	notifier := &captureNotifier{}
	s := NewService(newFakeLockRepo(), cache.NewMemoryStore(), nopAudit{}, notifier, testConfig())

	if err := s.IssueCode(ctx, "actor-1", "1234567890"); err != nil {
		t.Fatal(err)
	}
	code := notifier.codeAt(t, 0)

	ok, err := s.VerifyCode(ctx, "actor-1", "000000")
	if err != nil || ok {
		t.Fatalf("wrong code: ok=%v err=%v", ok, err)
	}
	// The wrong guess consumed the code; the right one no longer verifies.
	ok, err = s.VerifyCode(ctx, "actor-1", code)
	if err != nil || ok {
		t.Fatalf("code should be gone after the first verify call: ok=%v err=%v", ok, err)
	}
}

func TestVerifyCodeExpired(t *testing.T) {
	ctx := context.Background()
	notifier := &captureNotifier{}
	cfg := testConfig()
	cfg.CodeTTL = -time.Minute // issued already expired
	s := NewService(newFakeLockRepo(), cache.NewMemoryStore(), nopAudit{}, notifier, cfg)

	if err := s.IssueCode(ctx, "actor-1", "1234567890"); err != nil {
		t.Fatal(err)
	}
	code := notifier.codeAt(t, 0)
	ok, err := s.VerifyCode(ctx, "actor-1", code)
	if err != nil || ok {
		t.Fatalf("expired code: ok=%v err=%v", ok, err)
	}
}
