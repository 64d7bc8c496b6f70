package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/docuflow/approval-engine/internal/application/port"
	"github.com/docuflow/approval-engine/internal/application/service"
	appworkflow "github.com/docuflow/approval-engine/internal/application/workflow"
	"github.com/docuflow/approval-engine/internal/domain/entity"
	"github.com/docuflow/approval-engine/internal/domain/workflow"
	"github.com/docuflow/approval-engine/internal/report"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	templateService   service.TemplateService
	submissionService service.SubmissionService
	processor         appworkflow.Processor
	suggester         port.TemplateSuggester
	exporter          *report.Exporter
	logger            Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	templateService service.TemplateService,
	submissionService service.SubmissionService,
	processor appworkflow.Processor,
	suggester port.TemplateSuggester,
	exporter *report.Exporter,
	logger Logger,
) *Handlers {
	return &Handlers{
		templateService:   templateService,
		submissionService: submissionService,
		processor:         processor,
		suggester:         suggester,
		exporter:          exporter,
		logger:            logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// ActorRequest identifies the acting user in action requests
type ActorRequest struct {
	ID   string `json:"actor_id" binding:"required"`
	Name string `json:"actor_name" binding:"required"`
	Role string `json:"actor_role" binding:"required"`
}

func (a ActorRequest) toActor() appworkflow.Actor {
	return appworkflow.Actor{
		ID:   a.ID,
		Name: a.Name,
		Role: entity.Role(a.Role),
	}
}

// StepRequest describes one workflow step in template requests
type StepRequest struct {
	Role           string `json:"role" binding:"required"`
	Name           string `json:"name" binding:"required"`
	Order          int    `json:"order"`
	RequiredAction string `json:"required_action"`
}

func (s StepRequest) toDefinition() entity.StepDefinition {
	action := s.RequiredAction
	if action == "" {
		action = entity.ActionApprove
	}
	return entity.StepDefinition{
		Role:           entity.Role(s.Role),
		Name:           s.Name,
		Order:          s.Order,
		RequiredAction: action,
	}
}

// CreateTemplateRequest is the body of POST /api/templates
type CreateTemplateRequest struct {
	DepartmentID string        `json:"department_id" binding:"required"`
	Name         string        `json:"name" binding:"required"`
	DefaultSteps []StepRequest `json:"default_steps"`
	CustomSteps  []StepRequest `json:"custom_steps"`
}

// CreateSubmissionRequest is the body of POST /api/submissions
type CreateSubmissionRequest struct {
	DocumentID string       `json:"document_id" binding:"required"`
	Actor      ActorRequest `json:"actor"`
}

// ApproveRequest is the body of POST /api/submissions/:id/approve
type ApproveRequest struct {
	Actor            ActorRequest `json:"actor"`
	Comments         string       `json:"comments"`
	SignatureMeaning string       `json:"signature_meaning"`
	SignatureReason  string       `json:"signature_reason"`
	PasswordToken    string       `json:"password_token"`
}

// RejectRequest is the body of POST /api/submissions/:id/reject
type RejectRequest struct {
	Actor    ActorRequest `json:"actor"`
	Comments string       `json:"comments"`
	Reasons  []string     `json:"reasons"`
}

// RevisionRequest is the body of POST /api/submissions/:id/request-revision
type RevisionRequest struct {
	Actor      ActorRequest `json:"actor"`
	Comments   string       `json:"comments"`
	ChangeList []string     `json:"change_list"`
}

// ResubmitRequest is the body of POST /api/submissions/:id/resubmit
type ResubmitRequest struct {
	Actor ActorRequest `json:"actor"`
}

// DelegateRequest is the body of POST /api/submissions/:id/delegate
type DelegateRequest struct {
	Actor      ActorRequest `json:"actor"`
	DelegateTo string       `json:"delegate_to"`
	Reason     string       `json:"reason"`
}

// EscalationLevelRequest describes one escalation ladder rung
type EscalationLevelRequest struct {
	Level          int     `json:"level"`
	ThresholdHours float64 `json:"time_threshold_hours"`
	AssigneeID     string  `json:"assignee_id"`
	AssigneeName   string  `json:"assignee_name"`
	Role           string  `json:"role"`
	NotifyEmail    bool    `json:"notify_email"`
	NotifyInApp    bool    `json:"notify_in_app"`
}

// SuggestTemplateRequest is the body of POST /api/templates/suggest
type SuggestTemplateRequest struct {
	Department  string `json:"department" binding:"required"`
	Description string `json:"description"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: response})
}

// CreateTemplate handles POST /api/templates
func (h *Handlers) CreateTemplate(c *gin.Context) {
	var req CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	defaults := make([]entity.StepDefinition, 0, len(req.DefaultSteps))
	for _, s := range req.DefaultSteps {
		defaults = append(defaults, s.toDefinition())
	}
	customs := make([]entity.StepDefinition, 0, len(req.CustomSteps))
	for _, s := range req.CustomSteps {
		customs = append(customs, s.toDefinition())
	}

	tmpl, err := h.templateService.CreateTemplate(c.Request.Context(), req.DepartmentID, req.Name, defaults, customs)
	if err != nil {
		h.serviceError(c, err, "failed to create template")
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: tmpl})
}

// ListTemplates handles GET /api/templates
func (h *Handlers) ListTemplates(c *gin.Context) {
	limit, offset := paging(c)

	templates, err := h.templateService.ListTemplates(c.Request.Context(), limit, offset)
	if err != nil {
		h.serviceError(c, err, "failed to list templates")
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: templates})
}

// GetTemplate handles GET /api/templates/:id
func (h *Handlers) GetTemplate(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	tmpl, err := h.templateService.GetTemplate(c.Request.Context(), id)
	if err != nil {
		h.notFound(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: tmpl})
}

// DeleteTemplate handles DELETE /api/templates/:id
func (h *Handlers) DeleteTemplate(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	if err := h.templateService.DeleteTemplate(c.Request.Context(), id); err != nil {
		h.serviceError(c, err, "failed to delete template")
		return
	}

	c.JSON(http.StatusOK, Response{Success: true})
}

// AddStep handles POST /api/templates/:id/steps
func (h *Handlers) AddStep(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	var req StepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	tmpl, err := h.templateService.AddStep(c.Request.Context(), id, req.toDefinition())
	if err != nil {
		h.serviceError(c, err, "failed to add step")
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: tmpl})
}

// RemoveStep handles DELETE /api/templates/:id/steps/:stepID
func (h *Handlers) RemoveStep(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	stepID, ok := h.pathID(c, "stepID")
	if !ok {
		return
	}

	tmpl, err := h.templateService.RemoveStep(c.Request.Context(), id, stepID)
	if err != nil {
		h.serviceError(c, err, "failed to remove step")
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: tmpl})
}

// ConfigureEscalation handles PUT /api/templates/:id/escalation
func (h *Handlers) ConfigureEscalation(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	var req []EscalationLevelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	levels := make([]entity.EscalationLevel, 0, len(req))
	for _, l := range req {
		levels = append(levels, entity.EscalationLevel{
			Level:              l.Level,
			TimeThresholdHours: l.ThresholdHours,
			AssigneeID:         l.AssigneeID,
			AssigneeName:       l.AssigneeName,
			Role:               entity.Role(l.Role),
			NotifyEmail:        l.NotifyEmail,
			NotifyInApp:        l.NotifyInApp,
		})
	}

	if err := h.templateService.ConfigureEscalation(c.Request.Context(), id, levels); err != nil {
		h.serviceError(c, err, "failed to configure escalation")
		return
	}

	c.JSON(http.StatusOK, Response{Success: true})
}

// GetEscalation handles GET /api/templates/:id/escalation
func (h *Handlers) GetEscalation(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	levels, err := h.templateService.GetEscalation(c.Request.Context(), id)
	if err != nil {
		h.serviceError(c, err, "failed to get escalation levels")
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: levels})
}

// SuggestTemplate handles POST /api/templates/suggest. Generation is
// cancellable: closing the connection aborts the request context.
func (h *Handlers) SuggestTemplate(c *gin.Context) {
	var req SuggestTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	steps, err := h.suggester.Suggest(c.Request.Context(), req.Department, req.Description)
	if err != nil {
		h.serviceError(c, err, "failed to suggest template steps")
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: steps})
}

// CreateSubmission handles POST /api/submissions
func (h *Handlers) CreateSubmission(c *gin.Context) {
	var req CreateSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	submitter := entity.User{
		Email: req.Actor.ID,
		Name:  req.Actor.Name,
		Role:  entity.Role(req.Actor.Role),
	}

	instance, err := h.submissionService.CreateSubmission(c.Request.Context(), req.DocumentID, submitter)
	if err != nil {
		h.serviceError(c, err, "failed to create submission")
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: instance})
}

// ListSubmissions handles GET /api/submissions
func (h *Handlers) ListSubmissions(c *gin.Context) {
	limit, offset := paging(c)

	instances, err := h.submissionService.ListSubmissions(c.Request.Context(), limit, offset)
	if err != nil {
		h.serviceError(c, err, "failed to list submissions")
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: instances})
}

// GetSubmission handles GET /api/submissions/:id
func (h *Handlers) GetSubmission(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	instance, err := h.submissionService.GetSubmission(c.Request.Context(), id)
	if err != nil {
		h.notFound(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: instance})
}

// ActivityLog handles GET /api/submissions/:id/activity?page=N
func (h *Handlers) ActivityLog(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "0"))

	result, err := h.submissionService.ActivityLog(c.Request.Context(), id, page, pageSize)
	if err != nil {
		h.serviceError(c, err, "failed to load activity log")
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// ActiveEscalation handles GET /api/submissions/:id/escalation
func (h *Handlers) ActiveEscalation(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	level, err := h.submissionService.ActiveEscalation(c.Request.Context(), id)
	if err != nil {
		h.serviceError(c, err, "failed to evaluate escalation")
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: level})
}

// ExportReport handles GET /api/submissions/:id/report, streaming the
// audit trail workbook as an attachment.
func (h *Handlers) ExportReport(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	instance, err := h.submissionService.GetSubmission(c.Request.Context(), id)
	if err != nil {
		h.notFound(c, err)
		return
	}

	page, err := h.submissionService.ActivityLog(c.Request.Context(), id, 1, instanceEntryCap(instance))
	if err != nil {
		h.serviceError(c, err, "failed to load activity log")
		return
	}

	data, err := h.exporter.Export(instance, page.Entries)
	if err != nil {
		h.serviceError(c, err, "failed to export report")
		return
	}

	filename := fmt.Sprintf("audit-trail-%s.xlsx", instance.DocumentID)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// Approve handles POST /api/submissions/:id/approve
func (h *Handlers) Approve(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	var req ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	sig := appworkflow.SignatureRequest{
		Meaning:       req.SignatureMeaning,
		Reason:        req.SignatureReason,
		PasswordToken: req.PasswordToken,
		IPAddress:     c.ClientIP(),
	}

	instance, err := h.processor.Approve(c.Request.Context(), id, req.Actor.toActor(), req.Comments, sig)
	if err != nil {
		h.serviceError(c, err, "failed to approve")
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: instance})
}

// Reject handles POST /api/submissions/:id/reject
func (h *Handlers) Reject(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	var req RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	instance, err := h.processor.Reject(c.Request.Context(), id, req.Actor.toActor(), req.Comments, req.Reasons)
	if err != nil {
		h.serviceError(c, err, "failed to reject")
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: instance})
}

// RequestRevision handles POST /api/submissions/:id/request-revision
func (h *Handlers) RequestRevision(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	var req RevisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	instance, err := h.processor.RequestRevision(c.Request.Context(), id, req.Actor.toActor(), req.Comments, req.ChangeList)
	if err != nil {
		h.serviceError(c, err, "failed to request revision")
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: instance})
}

// Resubmit handles POST /api/submissions/:id/resubmit
func (h *Handlers) Resubmit(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	var req ResubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	instance, err := h.processor.Resubmit(c.Request.Context(), id, req.Actor.toActor())
	if err != nil {
		h.serviceError(c, err, "failed to resubmit")
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: instance})
}

// Delegate handles POST /api/submissions/:id/delegate
func (h *Handlers) Delegate(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	var req DelegateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	instance, err := h.processor.Delegate(c.Request.Context(), id, req.Actor.toActor(), req.DelegateTo, req.Reason)
	if err != nil {
		h.serviceError(c, err, "failed to delegate")
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: instance})
}

func (h *Handlers) pathID(c *gin.Context, name string) (int64, bool) {
	idStr := c.Param(name)
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		h.logger.Error("Invalid path ID", "param", name, "value", idStr, "error", err)
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid ID"})
		return 0, false
	}
	return id, true
}

func (h *Handlers) badRequest(c *gin.Context, msg string, err error) {
	h.logger.Error(msg, "error", err)
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: msg})
}

func (h *Handlers) notFound(c *gin.Context, err error) {
	c.JSON(http.StatusNotFound, Response{Success: false, Error: err.Error()})
}

// serviceError maps domain errors to HTTP status codes
func (h *Handlers) serviceError(c *gin.Context, err error, msg string) {
	h.logger.Error(msg, "error", err)

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, workflow.ErrValidation),
		errors.Is(err, workflow.ErrIncompleteSignature):
		status = http.StatusBadRequest
	case errors.Is(err, workflow.ErrRoleNotPermitted):
		status = http.StatusForbidden
	case errors.Is(err, workflow.ErrFinalized),
		errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, workflow.ErrTemplateInUse):
		status = http.StatusConflict
	}

	c.JSON(status, Response{Success: false, Error: err.Error()})
}

func paging(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// instanceEntryCap sizes the activity page so the export contains the
// full trail on one page.
func instanceEntryCap(instance *entity.WorkflowInstance) int {
	// Records plus synthetic future entries never exceed a generous bound.
	return len(instance.Steps)*8 + 64
}
