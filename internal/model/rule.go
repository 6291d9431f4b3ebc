package model

type Strategy string

const (
	StrategyRoundRobin       Strategy = "ROUND_ROBIN"
	StrategySkillBased       Strategy = "SKILL_BASED"
	StrategyWorkloadBalanced Strategy = "WORKLOAD_BALANCED"
	StrategyRandom           Strategy = "RANDOM"
)

func (s Strategy) Valid() bool {
	switch s {
	case StrategyRoundRobin, StrategySkillBased, StrategyWorkloadBalanced, StrategyRandom:
		return true
	}
	return false
}

// AssignmentRuleItem is the routing policy for one scope key. Rules are read
// at decision time and treated as immutable for that decision; stored
// updates only affect later decisions.
type AssignmentRuleItem struct {
	ScopeKey                string            `dynamodbav:"scopeKey"`
	TenantID                string            `dynamodbav:"tenantId"`
	SiteID                  string            `dynamodbav:"siteId,omitempty"`
	DefaultStrategy         Strategy          `dynamodbav:"defaultStrategy"`
	FallbackStrategy        Strategy          `dynamodbav:"fallbackStrategy"`
	MaxChatsPerCommercial   int               `dynamodbav:"maxChatsPerCommercial"`
	MaxWaitTimeSeconds      int               `dynamodbav:"maxWaitTimeSeconds"`
	EnableSkillBasedRouting bool              `dynamodbav:"enableSkillBasedRouting"`
	WorkingHours            *WorkingHoursItem `dynamodbav:"workingHours,omitempty"`
	Priorities              map[string]int    `dynamodbav:"priorities,omitempty"`
	IsActive                bool              `dynamodbav:"isActive"`
	CreatedAt               string            `dynamodbav:"createdAt"`
	UpdatedAt               string            `dynamodbav:"updatedAt"`
}

// WorkingHoursItem restricts routing to given windows. A nil WorkingHours on
// the rule means 24/7.
type WorkingHoursItem struct {
	Timezone string              `dynamodbav:"timezone"`
	Schedule []WorkingWindowItem `dynamodbav:"schedule"`
}

// WorkingWindowItem is a per-day range. DayOfWeek follows time.Weekday
// (0 = Sunday). Start and End are wall-clock times formatted "15:04";
// End is exclusive.
type WorkingWindowItem struct {
	DayOfWeek int    `dynamodbav:"dayOfWeek"`
	Start     string `dynamodbav:"start"`
	End       string `dynamodbav:"end"`
}
