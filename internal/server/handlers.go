package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	auditdomain "apflow/internal/audit/domain"
	identityservice "apflow/internal/identity/service"
	invoicedomain "apflow/internal/invoice/domain"
	workflowdomain "apflow/internal/workflow/domain"
	workflowservice "apflow/internal/workflow/service"
)

func (s *Server) handleHealth(c *gin.Context) {
	for _, h := range s.health {
		if err := h.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}
	res, err := s.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	if res.MFARequired {
		c.JSON(http.StatusOK, gin.H{"mfa_required": true, "actor_id": res.ActorID})
		return
	}
	c.JSON(http.StatusOK, tokenResponse(res))
}

type verifyMFARequest struct {
	ActorID string `json:"actor_id" binding:"required"`
	Code    string `json:"code" binding:"required"`
}

func (s *Server) handleVerifyMFA(c *gin.Context) {
	var req verifyMFARequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "actor_id and code are required"})
		return
	}
	res, err := s.auth.VerifyMFA(c.Request.Context(), req.ActorID, req.Code)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokenResponse(res))
}

type resendMFARequest struct {
	ActorID string `json:"actor_id" binding:"required"`
}

func (s *Server) handleResendMFA(c *gin.Context) {
	var req resendMFARequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "actor_id is required"})
		return
	}
	if err := s.auth.ResendMFA(c.Request.Context(), req.ActorID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sent": true})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func (s *Server) handleRefresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "refresh_token is required"})
		return
	}
	res, err := s.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokenResponse(res))
}

func tokenResponse(res *identityservice.LoginResult) gin.H {
	return gin.H{
		"actor_id":      res.ActorID,
		"access_token":  res.AccessToken,
		"refresh_token": res.RefreshToken,
		"expires_at":    res.ExpiresAt.Format(time.RFC3339),
	}
}

type createInvoiceRequest struct {
	ProgramName string `json:"program_name"`
	Category    string `json:"category"`
	VendorName  string `json:"vendor_name"`
	AmountCents int64  `json:"amount_cents"`
	Description string `json:"description"`
	BankAccount string `json:"bank_account"`
	BankBranch  string `json:"bank_branch"`
}

func (s *Server) handleCreateInvoice(c *gin.Context) {
	var req createInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	view, err := s.engine.CreateInvoice(c.Request.Context(), currentActor(c), workflowservice.CreateInvoiceInput{
		ProgramName: req.ProgramName,
		Category:    req.Category,
		Extracted: invoicedomain.ExtractedFields{
			VendorName:  req.VendorName,
			AmountCents: req.AmountCents,
			Description: req.Description,
			BankAccount: req.BankAccount,
			BankBranch:  req.BankBranch,
		},
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, invoiceResponse(view))
}

func (s *Server) handleGetInvoice(c *gin.Context) {
	view, err := s.engine.Get(c.Request.Context(), currentActor(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoiceResponse(view))
}

type transitionRequest struct {
	To      string `json:"to" binding:"required"`
	Version int64  `json:"version" binding:"required"`
	Reason  string `json:"reason"`
}

func (s *Server) handleTransition(c *gin.Context) {
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "to and version are required"})
		return
	}
	to := workflowdomain.Status(req.To)
	if !to.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
		return
	}
	wf, err := s.engine.Transition(c.Request.Context(), currentActor(c), c.Param("id"), to, req.Version, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, workflowResponse(wf))
}

type versionRequest struct {
	Version int64 `json:"version" binding:"required"`
}

func (s *Server) handleConfirmBankDetails(c *gin.Context) {
	var req versionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "version is required"})
		return
	}
	wf, err := s.engine.ConfirmBankDetails(c.Request.Context(), currentActor(c), c.Param("id"), req.Version)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, workflowResponse(wf))
}

type reassignRequest struct {
	Version       int64  `json:"version" binding:"required"`
	ManagerUserID string `json:"manager_user_id" binding:"required"`
}

func (s *Server) handleReassignManager(c *gin.Context) {
	var req reassignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "version and manager_user_id are required"})
		return
	}
	wf, err := s.engine.ReassignManager(c.Request.Context(), currentActor(c), c.Param("id"), req.Version, req.ManagerUserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, workflowResponse(wf))
}

func (s *Server) handleListAudit(c *gin.Context) {
	// Only actors who can see the invoice may read its trail.
	if _, err := s.engine.Get(c.Request.Context(), currentActor(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	views, err := s.auditRdr.List(c.Request.Context(), auditdomain.Filter{SubjectID: c.Param("id")})
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]gin.H, len(views))
	for i, v := range views {
		out[i] = gin.H{
			"id":          v.ID,
			"actor_name":  v.ActorName,
			"event_type":  v.EventType,
			"from_status": v.FromStatus,
			"to_status":   v.ToStatus,
			"payload":     v.Payload,
			"created_at":  v.CreatedAt.Format(time.RFC3339),
		}
	}
	c.JSON(http.StatusOK, gin.H{"events": out})
}

func invoiceResponse(view *workflowservice.InvoiceView) gin.H {
	return gin.H{
		"invoice": gin.H{
			"id":           view.Invoice.ID,
			"submitter_id": view.Invoice.SubmitterID,
			"program_name": view.Invoice.ProgramName,
			"category":     view.Invoice.Category,
			"vendor_name":  view.Invoice.Extracted.VendorName,
			"amount_cents": view.Invoice.Extracted.AmountCents,
			"description":  view.Invoice.Extracted.Description,
		},
		"workflow": workflowResponse(view.Workflow),
	}
}

func workflowResponse(wf *workflowdomain.Workflow) gin.H {
	return gin.H{
		"invoice_id":             wf.InvoiceID,
		"status":                 string(wf.Status),
		"version":                wf.Version,
		"manager_user_id":        wf.ManagerUserID,
		"rejection_reason":       wf.RejectionReason,
		"bank_details_confirmed": wf.BankDetailsConfirmed,
	}
}
