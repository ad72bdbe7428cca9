package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"apflow/internal/access"
	actordomain "apflow/internal/actor/domain"
	"apflow/internal/assignment"
	"apflow/internal/audit"
	auditdomain "apflow/internal/audit/domain"
	"apflow/internal/cache"
	identityservice "apflow/internal/identity/service"
	invoicedomain "apflow/internal/invoice/domain"
	"apflow/internal/loginsecurity"
	policyengine "apflow/internal/policy/engine"
	"apflow/internal/security"
	workflowdomain "apflow/internal/workflow/domain"
	workflowservice "apflow/internal/workflow/service"
)

// In-memory fixture wiring the whole stack behind the router.

type memProfiles struct {
	mu       sync.Mutex
	profiles map[string]*actordomain.Profile
}

func (m *memProfiles) GetByID(_ context.Context, id string) (*actordomain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profiles[id], nil
}

func (m *memProfiles) GetByEmail(_ context.Context, email string) (*actordomain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.profiles {
		if p.Email == email {
			return p, nil
		}
	}
	return nil, nil
}

func (m *memProfiles) ListActiveManagers(context.Context) ([]*actordomain.Profile, error) {
	return nil, nil
}

type memWorkflowRepo struct {
	mu        sync.Mutex
	invoices  map[string]*invoicedomain.Invoice
	workflows map[string]*workflowdomain.Workflow
}

func newMemWorkflowRepo() *memWorkflowRepo {
	return &memWorkflowRepo{
		invoices:  map[string]*invoicedomain.Invoice{},
		workflows: map[string]*workflowdomain.Workflow{},
	}
}

func (m *memWorkflowRepo) CreateInvoiceWithWorkflow(_ context.Context, inv *invoicedomain.Invoice, wf *workflowdomain.Workflow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ci, cw := *inv, *wf
	m.invoices[inv.ID] = &ci
	m.workflows[wf.InvoiceID] = &cw
	return nil
}

func (m *memWorkflowRepo) GetInvoice(_ context.Context, id string) (*invoicedomain.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inv, ok := m.invoices[id]; ok {
		c := *inv
		return &c, nil
	}
	return nil, nil
}

func (m *memWorkflowRepo) GetWorkflow(_ context.Context, invoiceID string) (*workflowdomain.Workflow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if wf, ok := m.workflows[invoiceID]; ok {
		c := *wf
		return &c, nil
	}
	return nil, nil
}

func (m *memWorkflowRepo) UpdateStatusWithVersion(_ context.Context, invoiceID string, expectedVersion int64, status workflowdomain.Status, reason string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wf, ok := m.workflows[invoiceID]
	if !ok || wf.Version != expectedVersion {
		return false, nil
	}
	wf.Status = status
	wf.RejectionReason = reason
	wf.Version++
	return true, nil
}

func (m *memWorkflowRepo) ConfirmBankDetailsWithVersion(_ context.Context, invoiceID string, expectedVersion int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wf, ok := m.workflows[invoiceID]
	if !ok || wf.Version != expectedVersion {
		return false, nil
	}
	wf.BankDetailsConfirmed = true
	wf.Version++
	return true, nil
}

func (m *memWorkflowRepo) UpdateManagerWithVersion(_ context.Context, invoiceID string, expectedVersion int64, managerUserID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wf, ok := m.workflows[invoiceID]
	if !ok || wf.Version != expectedVersion {
		return false, nil
	}
	wf.ManagerUserID = managerUserID
	wf.Version++
	return true, nil
}

type memAuditRepo struct {
	mu     sync.Mutex
	events []*auditdomain.Event
}

func (m *memAuditRepo) Create(_ context.Context, e *auditdomain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *e
	m.events = append(m.events, &c)
	return nil
}

func (m *memAuditRepo) List(_ context.Context, f auditdomain.Filter) ([]*auditdomain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*auditdomain.Event
	for _, e := range m.events {
		if f.SubjectID != "" && e.SubjectID != f.SubjectID {
			continue
		}
		c := *e
		out = append(out, &c)
	}
	return out, nil
}

type memLoginRepo struct {
	mu          sync.Mutex
	attempts    map[string]int
	lockedUntil map[string]time.Time
}

func newMemLoginRepo() *memLoginRepo {
	return &memLoginRepo{attempts: map[string]int{}, lockedUntil: map[string]time.Time{}}
}

func (m *memLoginRepo) CheckLock(_ context.Context, identity string) (bool, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	until, ok := m.lockedUntil[identity]
	if !ok || !until.After(time.Now().UTC()) {
		delete(m.lockedUntil, identity)
		return false, time.Time{}, nil
	}
	return true, until, nil
}

func (m *memLoginRepo) RecordFailure(_ context.Context, identity string, maxAttempts int, lockout time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts[identity]++
	if m.attempts[identity] >= maxAttempts {
		m.attempts[identity] = 0
		m.lockedUntil[identity] = time.Now().UTC().Add(lockout)
		return true, nil
	}
	return false, nil
}

func (m *memLoginRepo) ClearFailures(_ context.Context, identity string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.attempts, identity)
	delete(m.lockedUntil, identity)
	return nil
}

func (m *memLoginRepo) ReplaceCode(context.Context, string, string, time.Time) error { return nil }

func (m *memLoginRepo) ConsumeCode(context.Context, string) (string, time.Time, bool, error) {
	return "", time.Time{}, false, nil
}

type memAssignPolicy struct{}

func (memAssignPolicy) GetOverride(context.Context, string) (string, error) { return "", nil }
func (memAssignPolicy) GetDepartmentDefaults(_ context.Context, departmentID string) ([]string, error) {
	if departmentID == "dept-1" {
		return []string{"manager-1"}, nil
	}
	return nil, nil
}
func (memAssignPolicy) SetOverride(context.Context, string, string) error { return nil }
func (memAssignPolicy) SetDepartmentDefaults(context.Context, string, []string) error {
	return nil
}

type noMFAPolicy struct{}

func (noMFAPolicy) EvaluateLogin(context.Context, *actordomain.Profile) (policyengine.LoginResult, error) {
	return policyengine.LoginResult{}, nil
}

type fixture struct {
	router *gin.Engine
	tokens *security.TokenProvider
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hasher := security.NewHasher(4)
	hash, err := hasher.Hash([]byte("correct horse"))
	if err != nil {
		t.Fatal(err)
	}
	profiles := &memProfiles{profiles: map[string]*actordomain.Profile{}}
	for _, p := range []*actordomain.Profile{
		{ID: "submitter-1", Email: "sub@example.com", FullName: "Sam Submitter", Role: actordomain.RoleSubmitter, DepartmentID: "dept-1"},
		{ID: "manager-1", Email: "mgr@example.com", FullName: "Mia Manager", Role: actordomain.RoleManager, DepartmentID: "dept-1"},
		{ID: "admin-1", Email: "adm@example.com", FullName: "Ada Admin", Role: actordomain.RoleAdmin},
		{ID: "finance-1", Email: "fin@example.com", FullName: "Fin Person", Role: actordomain.RoleFinance},
	} {
		p.PasswordHash = hash
		p.Active = true
		profiles.profiles[p.ID] = p
	}

	auditRepo := &memAuditRepo{}
	auditLog := audit.NewWriter(auditRepo, nil)
	auditReader := audit.NewReader(auditRepo, profileNames{profiles})

	engine := workflowservice.NewEngine(
		newMemWorkflowRepo(),
		access.NewResolver(nil),
		assignment.NewResolver(memAssignPolicy{}, profiles),
		auditLog,
		profiles,
		nil,
	)

	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatal(err)
	}
	loginSec := loginsecurity.NewService(newMemLoginRepo(), cache.NewMemoryStore(), auditLog, nil, loginsecurity.Config{
		MaxAttempts:    3,
		Lockout:        30 * time.Minute,
		CodeTTL:        10 * time.Minute,
		ResendCooldown: time.Minute,
	})
	auth := identityservice.NewAuthService(profiles, hasher, tokens, loginSec, noMFAPolicy{}, auditLog)

	srv := New(auth, engine, auditReader, profiles, tokens)
	return &fixture{router: srv.Router(), tokens: tokens}
}

type profileNames struct{ p *memProfiles }

func (n profileNames) DisplayNames(ctx context.Context, ids []string) (map[string]string, error) {
	out := map[string]string{}
	for _, id := range ids {
		if p, _ := n.p.GetByID(ctx, id); p != nil {
			out[id] = p.FullName
		}
	}
	return out, nil
}

func (fx *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)
	return w
}

func TestLoginAndCreateInvoice(t *testing.T) {
	fx := newFixture(t)
	token := fx.loginAs(t, "sub@example.com")

	w := fx.do(t, http.MethodPost, "/v1/invoices", token, map[string]any{
		"program_name": "Spring Gala",
		"category":     "travel",
		"vendor_name":  "Acme",
		"amount_cents": 12000,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status %d body %s", w.Code, w.Body.String())
	}
	var res struct {
		Workflow struct {
			Status  string `json:"status"`
			Version int64  `json:"version"`
			Manager string `json:"manager_user_id"`
		} `json:"workflow"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Workflow.Status != "submitted" || res.Workflow.Version != 1 || res.Workflow.Manager != "manager-1" {
		t.Fatalf("workflow = %+v", res.Workflow)
	}
}

func (fx *fixture) loginAs(t *testing.T, email string) string {
	t.Helper()
	w := fx.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email": email, "password": "correct horse",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login %s: status %d body %s", email, w.Code, w.Body.String())
	}
	var res struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	return res.AccessToken
}

func (fx *fixture) createInvoice(t *testing.T, token string) string {
	t.Helper()
	w := fx.do(t, http.MethodPost, "/v1/invoices", token, map[string]any{
		"program_name": "Spring Gala",
		"category":     "travel",
		"vendor_name":  "Acme",
		"amount_cents": 12000,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status %d body %s", w.Code, w.Body.String())
	}
	var res struct {
		Invoice struct {
			ID string `json:"id"`
		} `json:"invoice"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	return res.Invoice.ID
}

func TestTransitionFlowOverHTTP(t *testing.T) {
	fx := newFixture(t)
	subToken := fx.loginAs(t, "sub@example.com")
	mgrToken := fx.loginAs(t, "mgr@example.com")
	id := fx.createInvoice(t, subToken)

	w := fx.do(t, http.MethodPatch, "/v1/invoices/"+id+"/status", subToken, map[string]any{
		"to": "pending_manager", "version": 1,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("submit: status %d body %s", w.Code, w.Body.String())
	}

	// A stale version is a conflict.
	w = fx.do(t, http.MethodPatch, "/v1/invoices/"+id+"/status", mgrToken, map[string]any{
		"to": "approved_by_manager", "version": 1,
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("stale version: status %d body %s", w.Code, w.Body.String())
	}

	w = fx.do(t, http.MethodPatch, "/v1/invoices/"+id+"/status", mgrToken, map[string]any{
		"to": "approved_by_manager", "version": 2,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("approve: status %d body %s", w.Code, w.Body.String())
	}
}

func TestUnauthorizedReadIsNotFound(t *testing.T) {
	fx := newFixture(t)
	subToken := fx.loginAs(t, "sub@example.com")
	finToken := fx.loginAs(t, "fin@example.com")
	id := fx.createInvoice(t, subToken)

	// Finance cannot see a submitted invoice; the response must not reveal
	// that it exists.
	w := fx.do(t, http.MethodGet, "/v1/invoices/"+id, finToken, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestAuditTrailOverHTTP(t *testing.T) {
	fx := newFixture(t)
	subToken := fx.loginAs(t, "sub@example.com")
	id := fx.createInvoice(t, subToken)

	w := fx.do(t, http.MethodGet, "/v1/invoices/"+id+"/audit", subToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("audit: status %d body %s", w.Code, w.Body.String())
	}
	var res struct {
		Events []struct {
			EventType string `json:"event_type"`
			ActorName string `json:"actor_name"`
		} `json:"events"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if len(res.Events) != 1 || res.Events[0].EventType != "invoice_created" {
		t.Fatalf("events = %+v", res.Events)
	}
	if res.Events[0].ActorName != "Sam Submitter" {
		t.Fatalf("actor name = %q", res.Events[0].ActorName)
	}
}

func TestLockedLoginGets429WithRetryAfter(t *testing.T) {
	fx := newFixture(t)
	for i := 0; i < 3; i++ {
		w := fx.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
			"email": "sub@example.com", "password": "wrong",
		})
		if w.Code != http.StatusForbidden {
			t.Fatalf("attempt %d: status %d", i+1, w.Code)
		}
	}
	w := fx.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email": "sub@example.com", "password": "correct horse",
	})
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("locked: status %d body %s", w.Code, w.Body.String())
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After header")
	}
}

func TestMissingTokenIs401(t *testing.T) {
	fx := newFixture(t)
	w := fx.do(t, http.MethodGet, "/v1/invoices/whatever", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}
