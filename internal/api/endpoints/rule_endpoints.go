package endpoints

import (
	"chat-routing-backend/internal/api"
	"chat-routing-backend/internal/dto"
	internaljwt "chat-routing-backend/internal/jwt"
	"chat-routing-backend/internal/model"
	"chat-routing-backend/internal/service/assignment"
	"encoding/json"
	"fmt"
	"net/http"
)

type RuleEndpoints interface {
	RoutingRules(http.ResponseWriter, *http.Request) error
}

type ruleEndpoints struct {
	store *assignment.RuleStore
}

func NewRuleEndpoints(store *assignment.RuleStore) RuleEndpoints {
	return &ruleEndpoints{store: store}
}

func (h *ruleEndpoints) RoutingRules(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet:    h.handleListRules,
		http.MethodPut:    h.handleUpsertRule,
		http.MethodDelete: h.handleDeleteRule,
	})
}

func (h *ruleEndpoints) handleListRules(w http.ResponseWriter, r *http.Request) error {
	identity, err := identityFromRequest(r, internaljwt.RoleCommercial)
	if err != nil {
		return err
	}

	if siteID := r.URL.Query().Get("siteId"); siteID != "" {
		rule, err := h.store.Get(r.Context(), identity.TenantID, siteID)
		if err != nil {
			return assignmentServiceError(err)
		}
		return api.WriteJSON(w, http.StatusOK, toRuleResponse(rule))
	}

	rules, err := h.store.List(r.Context(), identity.TenantID)
	if err != nil {
		return assignmentServiceError(err)
	}

	resp := dto.ListRulesResponse{Rules: make([]dto.RuleResponse, len(rules))}
	for i, rule := range rules {
		resp.Rules[i] = toRuleResponse(rule)
	}
	return api.WriteJSON(w, http.StatusOK, resp)
}

func (h *ruleEndpoints) handleUpsertRule(w http.ResponseWriter, r *http.Request) error {
	identity, err := identityFromRequest(r, internaljwt.RoleCommercial)
	if err != nil {
		return err
	}

	var req dto.UpsertRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid request payload",
			ErrorLog:   fmt.Errorf("decode upsert rule request: %w", err),
		}
	}

	rule, err := h.store.Upsert(r.Context(), ruleFromRequest(identity.TenantID, req))
	if err != nil {
		return assignmentServiceError(err)
	}

	return api.WriteJSON(w, http.StatusOK, toRuleResponse(rule))
}

func (h *ruleEndpoints) handleDeleteRule(w http.ResponseWriter, r *http.Request) error {
	identity, err := identityFromRequest(r, internaljwt.RoleCommercial)
	if err != nil {
		return err
	}

	if err := h.store.Delete(r.Context(), identity.TenantID, r.URL.Query().Get("siteId")); err != nil {
		return assignmentServiceError(err)
	}
	return api.WriteJSON(w, http.StatusOK, ApiMessageResponse{Message: "Rule deleted"})
}

func assignmentServiceError(err error) error {
	svcErr, ok := err.(*assignment.Error)
	if !ok {
		return &HTTPError{
			StatusCode: http.StatusInternalServerError,
			Message:    "Internal server error",
			ErrorLog:   fmt.Errorf("assignment service: %w", err),
		}
	}
	return httpErrorFromCode(string(svcErr.Code), svcErr.Message, svcErr.Err)
}

func ruleFromRequest(tenantID string, req dto.UpsertRuleRequest) model.AssignmentRuleItem {
	rule := model.AssignmentRuleItem{
		TenantID:                tenantID,
		SiteID:                  req.SiteID,
		DefaultStrategy:         model.Strategy(req.DefaultStrategy),
		FallbackStrategy:        model.Strategy(req.FallbackStrategy),
		MaxChatsPerCommercial:   req.MaxChatsPerCommercial,
		MaxWaitTimeSeconds:      req.MaxWaitTimeSeconds,
		EnableSkillBasedRouting: req.EnableSkillBasedRouting,
		Priorities:              req.Priorities,
		IsActive:                req.IsActive,
	}
	if req.WorkingHours != nil {
		hours := &model.WorkingHoursItem{
			Timezone: req.WorkingHours.Timezone,
			Schedule: make([]model.WorkingWindowItem, len(req.WorkingHours.Schedule)),
		}
		for i, window := range req.WorkingHours.Schedule {
			hours.Schedule[i] = model.WorkingWindowItem{
				DayOfWeek: window.DayOfWeek,
				Start:     window.Start,
				End:       window.End,
			}
		}
		rule.WorkingHours = hours
	}
	return rule
}

func toRuleResponse(rule model.AssignmentRuleItem) dto.RuleResponse {
	resp := dto.RuleResponse{
		ScopeKey:                rule.ScopeKey,
		TenantID:                rule.TenantID,
		SiteID:                  rule.SiteID,
		DefaultStrategy:         string(rule.DefaultStrategy),
		FallbackStrategy:        string(rule.FallbackStrategy),
		MaxChatsPerCommercial:   rule.MaxChatsPerCommercial,
		MaxWaitTimeSeconds:      rule.MaxWaitTimeSeconds,
		EnableSkillBasedRouting: rule.EnableSkillBasedRouting,
		Priorities:              rule.Priorities,
		IsActive:                rule.IsActive,
		CreatedAt:               rule.CreatedAt,
		UpdatedAt:               rule.UpdatedAt,
	}
	if rule.WorkingHours != nil {
		hours := &dto.WorkingHoursPayload{
			Timezone: rule.WorkingHours.Timezone,
			Schedule: make([]dto.WorkingWindowPayload, len(rule.WorkingHours.Schedule)),
		}
		for i, window := range rule.WorkingHours.Schedule {
			hours.Schedule[i] = dto.WorkingWindowPayload{
				DayOfWeek: window.DayOfWeek,
				Start:     window.Start,
				End:       window.End,
			}
		}
		resp.WorkingHours = hours
	}
	return resp
}
