package dto

type WorkingWindowPayload struct {
	DayOfWeek int    `json:"dayOfWeek"`
	Start     string `json:"start"`
	End       string `json:"end"`
}

type WorkingHoursPayload struct {
	Timezone string                 `json:"timezone"`
	Schedule []WorkingWindowPayload `json:"schedule"`
}

type UpsertRuleRequest struct {
	SiteID                  string               `json:"siteId,omitempty"`
	DefaultStrategy         string               `json:"defaultStrategy"`
	FallbackStrategy        string               `json:"fallbackStrategy,omitempty"`
	MaxChatsPerCommercial   int                  `json:"maxChatsPerCommercial,omitempty"`
	MaxWaitTimeSeconds      int                  `json:"maxWaitTimeSeconds,omitempty"`
	EnableSkillBasedRouting bool                 `json:"enableSkillBasedRouting,omitempty"`
	WorkingHours            *WorkingHoursPayload `json:"workingHours,omitempty"`
	Priorities              map[string]int       `json:"priorities,omitempty"`
	IsActive                bool                 `json:"isActive"`
}

type RuleResponse struct {
	ScopeKey                string               `json:"scopeKey"`
	TenantID                string               `json:"tenantId"`
	SiteID                  string               `json:"siteId,omitempty"`
	DefaultStrategy         string               `json:"defaultStrategy"`
	FallbackStrategy        string               `json:"fallbackStrategy,omitempty"`
	MaxChatsPerCommercial   int                  `json:"maxChatsPerCommercial,omitempty"`
	MaxWaitTimeSeconds      int                  `json:"maxWaitTimeSeconds,omitempty"`
	EnableSkillBasedRouting bool                 `json:"enableSkillBasedRouting,omitempty"`
	WorkingHours            *WorkingHoursPayload `json:"workingHours,omitempty"`
	Priorities              map[string]int       `json:"priorities,omitempty"`
	IsActive                bool                 `json:"isActive"`
	CreatedAt               string               `json:"createdAt"`
	UpdatedAt               string               `json:"updatedAt"`
}

type ListRulesResponse struct {
	Rules []RuleResponse `json:"rules"`
}
