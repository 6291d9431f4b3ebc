package model

type ChatStatus string

const (
	ChatStatusOpen   ChatStatus = "open"
	ChatStatusQueued ChatStatus = "queued"
	ChatStatusClosed ChatStatus = "closed"
)

type ChatPriority string

const (
	ChatPriorityLow    ChatPriority = "LOW"
	ChatPriorityNormal ChatPriority = "NORMAL"
	ChatPriorityHigh   ChatPriority = "HIGH"
	ChatPriorityUrgent ChatPriority = "URGENT"
)

func (p ChatPriority) Valid() bool {
	switch p {
	case ChatPriorityLow, ChatPriorityNormal, ChatPriorityHigh, ChatPriorityUrgent:
		return true
	}
	return false
}

type ChatItem struct {
	PK                    string            `dynamodbav:"pk"`
	ChatID                string            `dynamodbav:"chatId"`
	TenantID              string            `dynamodbav:"tenantId"`
	SiteID                string            `dynamodbav:"siteId,omitempty"`
	Priority              ChatPriority      `dynamodbav:"priority"`
	Status                ChatStatus        `dynamodbav:"status"`
	Tags                  []string          `dynamodbav:"tags,omitempty"`
	Participants          []ParticipantItem `dynamodbav:"participants"`
	ParticipantIDs        []string          `dynamodbav:"participantIds"`
	AssignedCommercialIDs []string          `dynamodbav:"assignedCommercialIds,omitempty"`
	CreatedAt             string            `dynamodbav:"createdAt"`
	UpdatedAt             string            `dynamodbav:"updatedAt"`
	QueuedAt              string            `dynamodbav:"queuedAt,omitempty"`
}

// Participant looks up a participant by user id. The second return reports
// whether the user takes part in this chat.
func (c ChatItem) Participant(userID string) (ParticipantItem, bool) {
	for _, p := range c.Participants {
		if p.ID == userID {
			return p, true
		}
	}
	return ParticipantItem{}, false
}

// WithParticipant returns a copy of the chat with the given participant
// appended, or with the participant of the same id replaced.
func (c ChatItem) WithParticipant(participant ParticipantItem) ChatItem {
	out := c
	out.Participants = make([]ParticipantItem, 0, len(c.Participants)+1)
	out.ParticipantIDs = make([]string, 0, len(c.Participants)+1)
	replaced := false
	for _, p := range c.Participants {
		if p.ID == participant.ID {
			out.Participants = append(out.Participants, participant)
			replaced = true
		} else {
			out.Participants = append(out.Participants, p)
		}
		out.ParticipantIDs = append(out.ParticipantIDs, out.Participants[len(out.Participants)-1].ID)
	}
	if !replaced {
		out.Participants = append(out.Participants, participant)
		out.ParticipantIDs = append(out.ParticipantIDs, participant.ID)
	}
	return out
}

// OtherParticipantIDs lists every participant except the given actor. Used
// to build notification recipient sets that must never include the actor.
func (c ChatItem) OtherParticipantIDs(actorID string) []string {
	others := make([]string, 0, len(c.Participants))
	for _, p := range c.Participants {
		if p.ID != actorID {
			others = append(others, p.ID)
		}
	}
	return others
}

func (c ChatItem) HasAssignedCommercial(commercialID string) bool {
	for _, id := range c.AssignedCommercialIDs {
		if id == commercialID {
			return true
		}
	}
	return false
}
