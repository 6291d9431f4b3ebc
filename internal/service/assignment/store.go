package assignment

import (
	"context"
	"errors"
	"time"

	"chat-routing-backend/internal/database"
	"chat-routing-backend/internal/model"
)

// RuleStore is the write side of rule management: tenants create and update
// their routing rules through it. The Resolver is the read side.
type RuleStore struct {
	repo Repository
	now  func() time.Time
}

func NewRuleStore(db *database.Database) *RuleStore {
	return NewRuleStoreWithRepository(NewDynamoRepository(db), time.Now)
}

func NewRuleStoreWithRepository(repo Repository, now func() time.Time) *RuleStore {
	if now == nil {
		now = time.Now
	}
	return &RuleStore{repo: repo, now: now}
}

// Upsert validates and persists a rule. The scope key is derived, never
// client-supplied; a rule for an empty site id is the tenant-wide rule.
func (s *RuleStore) Upsert(ctx context.Context, rule model.AssignmentRuleItem) (model.AssignmentRuleItem, error) {
	rule.ScopeKey = model.RuleScopeKey(rule.TenantID, rule.SiteID)
	if err := ValidateRule(rule); err != nil {
		return model.AssignmentRuleItem{}, err
	}

	nowStr := s.now().UTC().Format(time.RFC3339)
	existing, err := s.repo.GetRule(ctx, rule.ScopeKey)
	switch {
	case err == nil:
		rule.CreatedAt = existing.CreatedAt
	case errors.Is(err, ErrNotFound):
		rule.CreatedAt = nowStr
	default:
		return model.AssignmentRuleItem{}, newError(ErrorCodeInternal, "failed to load existing rule", err)
	}
	rule.UpdatedAt = nowStr

	if err := s.repo.PutRule(ctx, rule); err != nil {
		return model.AssignmentRuleItem{}, newError(ErrorCodeInternal, "failed to persist rule", err)
	}
	return rule, nil
}

// Get returns the stored rule for the exact scope, without precedence
// resolution. A missing rule is a hard error here, unlike in Resolve.
func (s *RuleStore) Get(ctx context.Context, tenantID, siteID string) (model.AssignmentRuleItem, error) {
	if tenantID == "" {
		return model.AssignmentRuleItem{}, newError(ErrorCodeValidation, "tenantId is required", nil)
	}
	rule, err := s.repo.GetRule(ctx, model.RuleScopeKey(tenantID, siteID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.AssignmentRuleItem{}, newError(ErrorCodeNotFound, "rule not found", err)
		}
		return model.AssignmentRuleItem{}, newError(ErrorCodeInternal, "failed to load rule", err)
	}
	return rule, nil
}

// Delete removes the rule for the exact scope. Routing for that scope falls
// back to the tenant-wide rule, or to the built-in default.
func (s *RuleStore) Delete(ctx context.Context, tenantID, siteID string) error {
	if tenantID == "" {
		return newError(ErrorCodeValidation, "tenantId is required", nil)
	}

	scopeKey := model.RuleScopeKey(tenantID, siteID)
	if _, err := s.repo.GetRule(ctx, scopeKey); err != nil {
		if errors.Is(err, ErrNotFound) {
			return newError(ErrorCodeNotFound, "rule not found", err)
		}
		return newError(ErrorCodeInternal, "failed to load rule", err)
	}

	if err := s.repo.DeleteRule(ctx, scopeKey); err != nil {
		return newError(ErrorCodeInternal, "failed to delete rule", err)
	}
	return nil
}

func (s *RuleStore) List(ctx context.Context, tenantID string) ([]model.AssignmentRuleItem, error) {
	if tenantID == "" {
		return nil, newError(ErrorCodeValidation, "tenantId is required", nil)
	}
	rules, err := s.repo.ListRules(ctx, tenantID)
	if err != nil {
		return nil, newError(ErrorCodeInternal, "failed to list rules", err)
	}
	return rules, nil
}
