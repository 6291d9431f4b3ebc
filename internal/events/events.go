package events

import "time"

type Type string

const (
	TypeChatCommercialsAssigned          Type = "ChatCommercialsAssigned"
	TypeChatQueued                       Type = "ChatQueued"
	TypeParticipantOnlineStatusChanged   Type = "ParticipantOnlineStatusChanged"
	TypeParticipantSeenChat              Type = "ParticipantSeenChat"
	TypeParticipantViewingStatusChanged  Type = "ParticipantViewingStatusChanged"
	TypeTypingStatusChanged              Type = "TypingStatusChanged"
)

// Event is the marker for anything the bus can carry.
type Event interface {
	EventType() Type
}

type ChatCommercialsAssigned struct {
	ChatID        string   `json:"chatId"`
	TenantID      string   `json:"tenantId"`
	CommercialIDs []string `json:"commercialIds"`
	Strategy      string   `json:"strategy"`
	// Broadcast marks a first-responder-wins assignment: every listed
	// commercial may act on the chat until one responds.
	Broadcast  bool      `json:"broadcast"`
	AssignedAt time.Time `json:"assignedAt"`
}

func (e ChatCommercialsAssigned) EventType() Type { return TypeChatCommercialsAssigned }

type ChatQueued struct {
	ChatID   string    `json:"chatId"`
	TenantID string    `json:"tenantId"`
	QueuedAt time.Time `json:"queuedAt"`
}

func (e ChatQueued) EventType() Type { return TypeChatQueued }

type ParticipantOnlineStatusChanged struct {
	ChatID        string `json:"chatId"`
	ParticipantID string `json:"participantId"`
	IsOnline      bool   `json:"isOnline"`
}

func (e ParticipantOnlineStatusChanged) EventType() Type { return TypeParticipantOnlineStatusChanged }

type ParticipantSeenChat struct {
	ChatID        string    `json:"chatId"`
	ParticipantID string    `json:"participantId"`
	SeenAt        time.Time `json:"seenAt"`
}

func (e ParticipantSeenChat) EventType() Type { return TypeParticipantSeenChat }

type ParticipantViewingStatusChanged struct {
	ChatID        string `json:"chatId"`
	ParticipantID string `json:"participantId"`
	IsViewing     bool   `json:"isViewing"`
}

func (e ParticipantViewingStatusChanged) EventType() Type {
	return TypeParticipantViewingStatusChanged
}

type TypingStatusChanged struct {
	ChatID    string    `json:"chatId"`
	UserID    string    `json:"userId"`
	IsTyping  bool      `json:"isTyping"`
	Timestamp time.Time `json:"timestamp"`
}

func (e TypingStatusChanged) EventType() Type { return TypeTypingStatusChanged }
