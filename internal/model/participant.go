package model

// ParticipantItem is an immutable value: every state change goes through a
// With* method that returns a fresh copy, never an in-place mutation. The
// commercial/visitor split is fixed at construction.
type ParticipantItem struct {
	ID           string `dynamodbav:"id"`
	Name         string `dynamodbav:"name,omitempty"`
	IsCommercial bool   `dynamodbav:"isCommercial"`
	IsOnline     bool   `dynamodbav:"isOnline"`
	AssignedAt   string `dynamodbav:"assignedAt"`
	LastSeenAt   string `dynamodbav:"lastSeenAt,omitempty"`
	IsViewing    bool   `dynamodbav:"isViewing"`
	IsTyping     bool   `dynamodbav:"isTyping"`
}

func NewVisitorParticipant(id, name, assignedAt string, online bool) ParticipantItem {
	return ParticipantItem{
		ID:           id,
		Name:         name,
		IsCommercial: false,
		IsOnline:     online,
		AssignedAt:   assignedAt,
	}
}

func NewCommercialParticipant(id, name, assignedAt string, online bool) ParticipantItem {
	return ParticipantItem{
		ID:           id,
		Name:         name,
		IsCommercial: true,
		IsOnline:     online,
		AssignedAt:   assignedAt,
	}
}

func (p ParticipantItem) IsVisitor() bool {
	return !p.IsCommercial
}

func (p ParticipantItem) WithOnline(online bool) ParticipantItem {
	out := p
	out.IsOnline = online
	return out
}

// WithSeen marks the chat as seen at the given time and the participant as
// currently viewing it.
func (p ParticipantItem) WithSeen(seenAt string) ParticipantItem {
	out := p
	out.LastSeenAt = seenAt
	out.IsViewing = true
	return out
}

// WithUnseen clears the viewing flag. LastSeenAt keeps its previous value:
// leaving a chat does not erase the fact that it was seen.
func (p ParticipantItem) WithUnseen() ParticipantItem {
	out := p
	out.IsViewing = false
	return out
}

func (p ParticipantItem) WithTyping(typing bool) ParticipantItem {
	out := p
	out.IsTyping = typing
	return out
}
