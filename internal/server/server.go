// Package server exposes the approval core over HTTP. Handlers stay thin:
// they bind the request, call one service method, and map the shared error
// taxonomy onto status codes.
package server

import (
	"context"

	"github.com/gin-gonic/gin"

	actordomain "apflow/internal/actor/domain"
	"apflow/internal/audit"
	auditdomain "apflow/internal/audit/domain"
	identityservice "apflow/internal/identity/service"
	workflowservice "apflow/internal/workflow/service"
)

// ProfileRepo is the slice of the profile repository the server needs.
type ProfileRepo interface {
	GetByID(ctx context.Context, id string) (*actordomain.Profile, error)
}

// TokenValidator validates access tokens presented on requests.
type TokenValidator interface {
	ValidateAccess(token string) (actorID, role, departmentID string, err error)
}

// AuditLister lists audit events with resolved actor names.
type AuditLister interface {
	List(ctx context.Context, f auditdomain.Filter) ([]*audit.EventView, error)
}

// HealthChecker reports whether a dependency is usable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server wires the services into a gin router.
type Server struct {
	auth     *identityservice.AuthService
	engine   *workflowservice.Engine
	auditRdr AuditLister
	profiles ProfileRepo
	tokens   TokenValidator
	health   []HealthChecker
}

// New returns a Server over the given services. health checkers are optional.
func New(
	auth *identityservice.AuthService,
	engine *workflowservice.Engine,
	auditRdr AuditLister,
	profiles ProfileRepo,
	tokens TokenValidator,
	health ...HealthChecker,
) *Server {
	return &Server{
		auth:     auth,
		engine:   engine,
		auditRdr: auditRdr,
		profiles: profiles,
		tokens:   tokens,
		health:   health,
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.handleHealth)

	auth := r.Group("/v1/auth")
	{
		auth.POST("/login", s.handleLogin)
		auth.POST("/mfa/verify", s.handleVerifyMFA)
		auth.POST("/mfa/resend", s.handleResendMFA)
		auth.POST("/refresh", s.handleRefresh)
	}

	api := r.Group("/v1", s.authRequired())
	{
		api.POST("/invoices", s.handleCreateInvoice)
		api.GET("/invoices/:id", s.handleGetInvoice)
		api.PATCH("/invoices/:id/status", s.handleTransition)
		api.POST("/invoices/:id/bank-details/confirm", s.handleConfirmBankDetails)
		api.PUT("/invoices/:id/manager", s.handleReassignManager)
		api.GET("/invoices/:id/audit", s.handleListAudit)
	}
	return r
}
