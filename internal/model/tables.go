package model

import "fmt"

const (
	AssignmentRulesTable = "AssignmentRules"
	ChatsTable           = "Chats"
)

func ChatPK(tenantID, chatID string) string {
	return fmt.Sprintf("%s#%s", tenantID, chatID)
}

// RuleScopeKey builds the lookup key for an assignment rule. A site-scoped
// rule uses tenantId#siteId; a tenant-wide rule uses the bare tenant id.
func RuleScopeKey(tenantID, siteID string) string {
	if siteID == "" {
		return tenantID
	}
	return fmt.Sprintf("%s#%s", tenantID, siteID)
}
