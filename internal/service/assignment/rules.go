package assignment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chat-routing-backend/internal/model"
)

// Resolver looks up the effective routing policy for a (tenant, site) pair.
// Precedence: site-scoped rule, then tenant-wide rule, then the built-in
// default. Inactive rules are skipped the same way missing ones are.
type Resolver struct {
	repo Repository
}

func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// DefaultRule is the hard-coded system fallback: round robin, no caps, 24/7.
func DefaultRule(tenantID string) model.AssignmentRuleItem {
	return model.AssignmentRuleItem{
		ScopeKey:         tenantID,
		TenantID:         tenantID,
		DefaultStrategy:  model.StrategyRoundRobin,
		FallbackStrategy: model.StrategyRoundRobin,
		IsActive:         true,
	}
}

func (r *Resolver) Resolve(ctx context.Context, tenantID, siteID string) (model.AssignmentRuleItem, error) {
	if tenantID == "" {
		return model.AssignmentRuleItem{}, newError(ErrorCodeValidation, "tenantId is required", nil)
	}

	if siteID != "" {
		rule, err := r.repo.GetRule(ctx, model.RuleScopeKey(tenantID, siteID))
		if err == nil && rule.IsActive {
			return rule, nil
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			return model.AssignmentRuleItem{}, newError(ErrorCodeInternal, "failed to load site rule", err)
		}
	}

	rule, err := r.repo.GetRule(ctx, model.RuleScopeKey(tenantID, ""))
	if err == nil && rule.IsActive {
		return rule, nil
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return model.AssignmentRuleItem{}, newError(ErrorCodeInternal, "failed to load tenant rule", err)
	}

	return DefaultRule(tenantID), nil
}

// ValidateRule rejects malformed rules. A malformed stored rule fails only
// the decision (or store operation) that touches it, never the process.
func ValidateRule(rule model.AssignmentRuleItem) error {
	if rule.TenantID == "" {
		return newError(ErrorCodeValidation, "rule tenantId is required", nil)
	}
	if !rule.DefaultStrategy.Valid() {
		return newError(ErrorCodeValidation, fmt.Sprintf("unknown default strategy %q", rule.DefaultStrategy), nil)
	}
	if rule.FallbackStrategy != "" && !rule.FallbackStrategy.Valid() {
		return newError(ErrorCodeValidation, fmt.Sprintf("unknown fallback strategy %q", rule.FallbackStrategy), nil)
	}
	if rule.MaxChatsPerCommercial < 0 {
		return newError(ErrorCodeValidation, "maxChatsPerCommercial must not be negative", nil)
	}
	if rule.MaxWaitTimeSeconds < 0 {
		return newError(ErrorCodeValidation, "maxWaitTimeSeconds must not be negative", nil)
	}
	for tag, weight := range rule.Priorities {
		if weight < 0 {
			return newError(ErrorCodeValidation, fmt.Sprintf("priority weight for %q must not be negative", tag), nil)
		}
	}
	if rule.WorkingHours != nil {
		if _, err := time.LoadLocation(rule.WorkingHours.Timezone); err != nil {
			return newError(ErrorCodeValidation, fmt.Sprintf("invalid timezone %q", rule.WorkingHours.Timezone), err)
		}
		for _, window := range rule.WorkingHours.Schedule {
			if window.DayOfWeek < 0 || window.DayOfWeek > 6 {
				return newError(ErrorCodeValidation, fmt.Sprintf("invalid dayOfWeek %d", window.DayOfWeek), nil)
			}
			if _, err := time.Parse("15:04", window.Start); err != nil {
				return newError(ErrorCodeValidation, fmt.Sprintf("invalid window start %q", window.Start), err)
			}
			if _, err := time.Parse("15:04", window.End); err != nil {
				return newError(ErrorCodeValidation, fmt.Sprintf("invalid window end %q", window.End), err)
			}
			if window.Start >= window.End {
				return newError(ErrorCodeValidation, "window start must be before end", nil)
			}
		}
	}
	return nil
}

// withinWorkingHours evaluates the schedule in the rule's timezone at the
// given instant. A nil or empty schedule means always open.
func withinWorkingHours(hours *model.WorkingHoursItem, now time.Time) (bool, error) {
	if hours == nil || len(hours.Schedule) == 0 {
		return true, nil
	}

	loc, err := time.LoadLocation(hours.Timezone)
	if err != nil {
		return false, newError(ErrorCodeValidation, fmt.Sprintf("invalid timezone %q", hours.Timezone), err)
	}

	local := now.In(loc)
	day := int(local.Weekday())
	// Zero-padded "15:04" strings compare correctly as strings.
	clock := local.Format("15:04")

	for _, window := range hours.Schedule {
		if window.DayOfWeek != day {
			continue
		}
		if clock >= window.Start && clock < window.End {
			return true, nil
		}
	}
	return false, nil
}
