package dto

type OpenChatRequest struct {
	SiteID   string   `json:"siteId,omitempty"`
	Priority string   `json:"priority,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

type ParticipantResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name,omitempty"`
	IsCommercial bool   `json:"isCommercial"`
	IsOnline     bool   `json:"isOnline"`
	AssignedAt   string `json:"assignedAt"`
	LastSeenAt   string `json:"lastSeenAt,omitempty"`
	IsViewing    bool   `json:"isViewing"`
	IsTyping     bool   `json:"isTyping"`
}

type ChatResponse struct {
	ChatID                string                `json:"chatId"`
	TenantID              string                `json:"tenantId"`
	SiteID                string                `json:"siteId,omitempty"`
	Priority              string                `json:"priority"`
	Status                string                `json:"status"`
	Tags                  []string              `json:"tags,omitempty"`
	Participants          []ParticipantResponse `json:"participants"`
	AssignedCommercialIDs []string              `json:"assignedCommercialIds,omitempty"`
	CreatedAt             string                `json:"createdAt"`
	UpdatedAt             string                `json:"updatedAt"`
	QueuedAt              string                `json:"queuedAt,omitempty"`
}

type RedispatchResponse struct {
	Assigned int `json:"assigned"`
}

type TypingStatusResponse struct {
	UserID    string `json:"userId"`
	ChatID    string `json:"chatId"`
	IsTyping  bool   `json:"isTyping"`
	Timestamp string `json:"timestamp"`
}
