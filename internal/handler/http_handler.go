package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/crou-platform/be-validations/internal/domain"
	"github.com/crou-platform/be-validations/internal/platform/errors"
	"github.com/crou-platform/be-validations/internal/platform/logger"
	"github.com/crou-platform/be-validations/internal/platform/middleware"
	"github.com/crou-platform/be-validations/internal/repository"
	"github.com/crou-platform/be-validations/internal/service"
)

// HTTPHandler exposes the validation platform's REST API.
type HTTPHandler struct {
	workflows    *service.WorkflowService
	validation   *service.ValidationService
	budgets      *service.BudgetService
	transactions *service.TransactionService
	log          *logger.Logger
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(
	workflows *service.WorkflowService,
	validation *service.ValidationService,
	budgets *service.BudgetService,
	transactions *service.TransactionService,
	log *logger.Logger,
) *HTTPHandler {
	return &HTTPHandler{
		workflows:    workflows,
		validation:   validation,
		budgets:      budgets,
		transactions: transactions,
		log:          log,
	}
}

// Register mounts all API routes on the mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	// Templates
	mux.HandleFunc("POST /api/v1/templates", h.CreateTemplate)
	mux.HandleFunc("POST /api/v1/templates/level-circuit", h.CreateLevelCircuit)
	mux.HandleFunc("GET /api/v1/templates", h.ListTemplates)
	mux.HandleFunc("GET /api/v1/templates/{id}", h.GetTemplate)
	mux.HandleFunc("POST /api/v1/templates/{id}/steps", h.AddStep)
	mux.HandleFunc("POST /api/v1/templates/{id}/activate", h.ActivateTemplate)
	mux.HandleFunc("POST /api/v1/templates/{id}/deactivate", h.DeactivateTemplate)
	mux.HandleFunc("POST /api/v1/templates/{id}/archive", h.ArchiveTemplate)
	mux.HandleFunc("POST /api/v1/templates/{id}/clone", h.CloneTemplate)
	mux.HandleFunc("DELETE /api/v1/templates/{id}", h.DeleteTemplate)

	// Instances
	mux.HandleFunc("GET /api/v1/instances/{id}", h.GetInstance)
	mux.HandleFunc("GET /api/v1/instances/pending", h.PendingInstances)
	mux.HandleFunc("GET /api/v1/instances/history", h.InstanceHistory)
	mux.HandleFunc("POST /api/v1/instances/{id}/approve", h.Approve)
	mux.HandleFunc("POST /api/v1/instances/{id}/reject", h.Reject)
	mux.HandleFunc("POST /api/v1/instances/{id}/delegate", h.Delegate)
	mux.HandleFunc("POST /api/v1/instances/{id}/assign", h.Assign)
	mux.HandleFunc("POST /api/v1/instances/{id}/skip", h.Skip)
	mux.HandleFunc("POST /api/v1/instances/{id}/escalate", h.Escalate)
	mux.HandleFunc("POST /api/v1/instances/{id}/cancel", h.CancelInstance)
	mux.HandleFunc("POST /api/v1/instances/{id}/comments", h.CommentInstance)

	// Budgets
	mux.HandleFunc("POST /api/v1/budgets", h.CreateBudget)
	mux.HandleFunc("GET /api/v1/budgets", h.ListBudgets)
	mux.HandleFunc("GET /api/v1/budgets/{id}", h.GetBudget)
	mux.HandleFunc("PATCH /api/v1/budgets/{id}", h.UpdateBudget)
	mux.HandleFunc("DELETE /api/v1/budgets/{id}", h.DeleteBudget)
	mux.HandleFunc("POST /api/v1/budgets/{id}/submit", h.SubmitBudget)
	mux.HandleFunc("POST /api/v1/budgets/{id}/close", h.CloseBudget)

	// Transactions
	mux.HandleFunc("POST /api/v1/transactions", h.CreateTransaction)
	mux.HandleFunc("GET /api/v1/transactions/{id}", h.GetTransaction)
	mux.HandleFunc("GET /api/v1/budgets/{id}/transactions", h.ListBudgetTransactions)
	mux.HandleFunc("DELETE /api/v1/transactions/{id}", h.DeleteTransaction)
	mux.HandleFunc("POST /api/v1/transactions/{id}/submit", h.SubmitTransaction)
}

// ── Templates ─────────────────────────────────────────────────────────────────

type stepPayload struct {
	Name         string   `json:"name"`
	Position     int      `json:"position"`
	Type         string   `json:"type"`
	Priority     string   `json:"priority"`
	Role         string   `json:"role"`
	Permissions  []string `json:"permissions"`
	TimeoutHours *int     `json:"timeout_hours"`
	Level        *int     `json:"level"`
	IsRequired   bool     `json:"is_required"`
	CanSkip      bool     `json:"can_skip"`
	CanReject    bool     `json:"can_reject"`
	CanDelegate  bool     `json:"can_delegate"`
}

func (p stepPayload) toRequest() service.StepRequest {
	return service.StepRequest{
		Name:         p.Name,
		Position:     p.Position,
		Type:         domain.StepType(p.Type),
		Priority:     domain.Priority(p.Priority),
		Role:         p.Role,
		Permissions:  p.Permissions,
		TimeoutHours: p.TimeoutHours,
		Level:        p.Level,
		IsRequired:   p.IsRequired,
		CanSkip:      p.CanSkip,
		CanReject:    p.CanReject,
		CanDelegate:  p.CanDelegate,
	}
}

func (h *HTTPHandler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var body struct {
		Name         string         `json:"name"`
		Module       string         `json:"module"`
		Type         string         `json:"type"`
		EntityType   string         `json:"entity_type"`
		TriggerEvent string         `json:"trigger_event"`
		Conditions   map[string]any `json:"conditions"`
		Steps        []stepPayload  `json:"steps"`
	}
	if !h.decode(w, r, &body) {
		return
	}

	req := &service.CreateTemplateRequest{
		Name:         body.Name,
		Module:       domain.Module(body.Module),
		Type:         domain.TemplateType(body.Type),
		EntityType:   domain.EntityType(body.EntityType),
		TriggerEvent: body.TriggerEvent,
		Conditions:   body.Conditions,
	}
	for _, sp := range body.Steps {
		req.Steps = append(req.Steps, sp.toRequest())
	}

	t, err := h.workflows.CreateTemplate(r.Context(), actor.TenantID, req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, t)
}

func (h *HTTPHandler) CreateLevelCircuit(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var body struct {
		Name         string `json:"name"`
		Module       string `json:"module"`
		EntityType   string `json:"entity_type"`
		TopLevel     int    `json:"top_level"`
		TimeoutHours int    `json:"timeout_hours"`
	}
	if !h.decode(w, r, &body) {
		return
	}

	t, err := h.workflows.CreateLevelCircuit(r.Context(), domain.LevelCircuitSpec{
		TenantID:     actor.TenantID,
		Name:         body.Name,
		Module:       domain.Module(body.Module),
		EntityType:   domain.EntityType(body.EntityType),
		TopLevel:     domain.ValidationLevel(body.TopLevel),
		TimeoutHours: body.TimeoutHours,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, t)
}

func (h *HTTPHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var module *domain.Module
	if m := r.URL.Query().Get("module"); m != "" {
		mod := domain.Module(m)
		module = &mod
	}

	templates, err := h.workflows.ListTemplates(r.Context(), actor.TenantID, module)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"templates": templates})
}

func (h *HTTPHandler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	t, err := h.workflows.GetTemplate(r.Context(), actor.TenantID, id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, t)
}

func (h *HTTPHandler) AddStep(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var body stepPayload
	if !h.decode(w, r, &body) {
		return
	}

	step, err := h.workflows.AddStep(r.Context(), actor.TenantID, id, body.toRequest())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, step)
}

func (h *HTTPHandler) ActivateTemplate(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	t, err := h.workflows.Activate(r.Context(), actor.TenantID, id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, t)
}

func (h *HTTPHandler) DeactivateTemplate(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.workflows.Deactivate(r.Context(), actor.TenantID, id); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "inactive"})
}

func (h *HTTPHandler) ArchiveTemplate(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.workflows.Archive(r.Context(), actor.TenantID, id); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "archived"})
}

func (h *HTTPHandler) CloneTemplate(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var body struct {
		Name string `json:"name"`
	}
	if !h.decode(w, r, &body) {
		return
	}

	clone, err := h.workflows.Clone(r.Context(), actor.TenantID, id, body.Name)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, clone)
}

func (h *HTTPHandler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.workflows.DeleteDraft(r.Context(), actor.TenantID, id); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Instances ─────────────────────────────────────────────────────────────────

func (h *HTTPHandler) GetInstance(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	in, template, actions, err := h.validation.GetInstance(r.Context(), actor, id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{
		"instance": in,
		"template": template,
		"actions":  actions,
	})
}

func (h *HTTPHandler) PendingInstances(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	instances, err := h.validation.PendingForUser(r.Context(), actor)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"instances": instances})
}

func (h *HTTPHandler) InstanceHistory(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	entityID, err := uuid.Parse(r.URL.Query().Get("entity_id"))
	if err != nil {
		h.respondError(w, r, errors.InvalidInput("entity_id", "must be a uuid"))
		return
	}
	entity, err := domain.NewEntityRef(domain.EntityType(r.URL.Query().Get("entity_type")), entityID)
	if err != nil {
		h.respondError(w, r, errors.InvalidInput("entity_type", err.Error()))
		return
	}

	instances, err := h.validation.History(r.Context(), actor, entity)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"instances": instances})
}

func (h *HTTPHandler) Approve(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var body struct {
		Comment string `json:"comment"`
	}
	if !h.decode(w, r, &body) {
		return
	}

	complete, err := h.validation.Approve(r.Context(), actor, id, body.Comment)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"approved": true, "complete": complete})
}

func (h *HTTPHandler) Reject(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	if !h.decode(w, r, &body) {
		return
	}

	if err := h.validation.Reject(r.Context(), actor, id, body.Reason); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}

func (h *HTTPHandler) Delegate(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var body struct {
		DelegateTo uuid.UUID `json:"delegate_to"`
		Reason     string    `json:"reason"`
	}
	if !h.decode(w, r, &body) {
		return
	}

	if err := h.validation.Delegate(r.Context(), actor, id, body.DelegateTo, body.Reason); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "delegated"})
}

func (h *HTTPHandler) Assign(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var body struct {
		AssignTo uuid.UUID `json:"assign_to"`
	}
	if !h.decode(w, r, &body) {
		return
	}

	if err := h.validation.Assign(r.Context(), actor, id, body.AssignTo); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "assigned"})
}

func (h *HTTPHandler) Skip(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var body struct {
		Comment string `json:"comment"`
	}
	if !h.decode(w, r, &body) {
		return
	}

	complete, err := h.validation.Skip(r.Context(), actor, id, body.Comment)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"skipped": true, "complete": complete})
}

func (h *HTTPHandler) Escalate(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.validation.Escalate(r.Context(), actor, id); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "escalated"})
}

func (h *HTTPHandler) CancelInstance(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	if !h.decode(w, r, &body) {
		return
	}

	if err := h.validation.Cancel(r.Context(), actor, id, body.Reason); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (h *HTTPHandler) CommentInstance(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var body struct {
		Comment string `json:"comment"`
	}
	if !h.decode(w, r, &body) {
		return
	}

	if err := h.validation.Comment(r.Context(), actor, id, body.Comment); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, map[string]string{"status": "commented"})
}

// ── Budgets ───────────────────────────────────────────────────────────────────

func (h *HTTPHandler) CreateBudget(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var body struct {
		Code            string  `json:"code"`
		Label           string  `json:"label"`
		Module          string  `json:"module"`
		FiscalYear      int     `json:"fiscal_year"`
		AllocatedAmount int64   `json:"allocated_amount"`
		Notes           *string `json:"notes"`
	}
	if !h.decode(w, r, &body) {
		return
	}

	b, err := h.budgets.Create(r.Context(), actor, &service.CreateBudgetRequest{
		Code:            body.Code,
		Label:           body.Label,
		Module:          domain.Module(body.Module),
		FiscalYear:      body.FiscalYear,
		AllocatedAmount: body.AllocatedAmount,
		Notes:           body.Notes,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, b)
}

func (h *HTTPHandler) ListBudgets(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var filter repository.BudgetFilter
	if m := r.URL.Query().Get("module"); m != "" {
		filter.Module = &m
	}
	if s := r.URL.Query().Get("status"); s != "" {
		filter.Status = &s
	}
	if fy := r.URL.Query().Get("fiscal_year"); fy != "" {
		year, err := strconv.Atoi(fy)
		if err != nil {
			h.respondError(w, r, errors.InvalidInput("fiscal_year", "must be an integer"))
			return
		}
		filter.FiscalYear = &year
	}
	page, pageSize := pagination(r)

	budgets, total, err := h.budgets.List(r.Context(), actor, filter, page, pageSize)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{
		"budgets":   budgets,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

func (h *HTTPHandler) GetBudget(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	b, err := h.budgets.Get(r.Context(), actor, id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, b)
}

func (h *HTTPHandler) UpdateBudget(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var body service.UpdateBudgetRequest
	if !h.decode(w, r, &body) {
		return
	}

	b, err := h.budgets.Update(r.Context(), actor, id, &body)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, b)
}

func (h *HTTPHandler) DeleteBudget(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.budgets.Delete(r.Context(), actor, id); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) SubmitBudget(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var body struct {
		Priority string `json:"priority"`
	}
	if !h.decode(w, r, &body) {
		return
	}

	in, err := h.budgets.SubmitForValidation(r.Context(), actor, id, domain.Priority(body.Priority))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusAccepted, in)
}

func (h *HTTPHandler) CloseBudget(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.budgets.Close(r.Context(), actor, id); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

// ── Transactions ──────────────────────────────────────────────────────────────

func (h *HTTPHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var body struct {
		BudgetID    uuid.UUID `json:"budget_id"`
		Reference   string    `json:"reference"`
		Description *string   `json:"description"`
		Amount      int64     `json:"amount"`
		Direction   string    `json:"direction"`
	}
	if !h.decode(w, r, &body) {
		return
	}

	t, err := h.transactions.Create(r.Context(), actor, &service.CreateTransactionRequest{
		BudgetID:    body.BudgetID,
		Reference:   body.Reference,
		Description: body.Description,
		Amount:      body.Amount,
		Direction:   body.Direction,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, t)
}

func (h *HTTPHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	t, err := h.transactions.Get(r.Context(), actor, id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, t)
}

func (h *HTTPHandler) ListBudgetTransactions(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	budgetID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var status *string
	if s := r.URL.Query().Get("status"); s != "" {
		status = &s
	}
	page, pageSize := pagination(r)

	txs, total, err := h.transactions.ListByBudget(r.Context(), actor, budgetID, status, page, pageSize)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{
		"transactions": txs,
		"total":        total,
		"page":         page,
		"page_size":    pageSize,
	})
}

func (h *HTTPHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.transactions.Delete(r.Context(), actor, id); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) SubmitTransaction(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var body struct {
		Priority string `json:"priority"`
	}
	if !h.decode(w, r, &body) {
		return
	}

	in, err := h.transactions.SubmitForValidation(r.Context(), actor, id, domain.Priority(body.Priority))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusAccepted, in)
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// actor resolves the authenticated caller placed in context by the auth
// middleware into the service-layer actor.
func (h *HTTPHandler) actor(w http.ResponseWriter, r *http.Request) (service.Actor, bool) {
	a := middleware.ActorFrom(r.Context())
	if a == nil {
		h.respondError(w, r, errors.New(errors.ErrCodeUnauthorized, "authentication required"))
		return service.Actor{}, false
	}
	tenantID, err := uuid.Parse(a.TenantID)
	if err != nil {
		h.respondError(w, r, errors.New(errors.ErrCodeUnauthorized, "token carries an invalid tenant id"))
		return service.Actor{}, false
	}
	userID, err := uuid.Parse(a.UserID)
	if err != nil {
		h.respondError(w, r, errors.New(errors.ErrCodeUnauthorized, "token carries an invalid user id"))
		return service.Actor{}, false
	}
	return service.Actor{
		TenantID:    tenantID,
		UserID:      userID,
		Name:        a.UserName,
		Role:        a.Role,
		Permissions: a.Permissions,
	}, true
}

func (h *HTTPHandler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.respondError(w, r, errors.InvalidInput("id", "must be a uuid"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *HTTPHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.respondError(w, r, errors.InvalidInput("body", "invalid JSON request body"))
		return false
	}
	return true
}

func (h *HTTPHandler) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.Warn().Err(err).Msg("Failed to encode response")
	}
}

func (h *HTTPHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    string(errors.CodeOf(err)),
			"message": err.Error(),
		},
	})
}

func pagination(r *http.Request) (page, pageSize int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ = strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}
	return page, pageSize
}
