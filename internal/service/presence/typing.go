package presence

import "time"

// DefaultTypingTimeoutSeconds is how long a typing flag is considered live.
const DefaultTypingTimeoutSeconds = 3

// TypingStatus is an ephemeral value, never persisted. Expiry is pull-based:
// consumers call IsExpired when rendering; nothing fires a "stopped typing"
// notification on timeout.
type TypingStatus struct {
	UserID    string    `json:"userId"`
	ChatID    string    `json:"chatId"`
	IsTyping  bool      `json:"isTyping"`
	Timestamp time.Time `json:"timestamp"`
}

func (t TypingStatus) IsExpired(timeoutSeconds int, now time.Time) bool {
	if timeoutSeconds <= 0 {
		timeoutSeconds = DefaultTypingTimeoutSeconds
	}
	return now.Sub(t.Timestamp) > time.Duration(timeoutSeconds)*time.Second
}
