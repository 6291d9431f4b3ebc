package websocket

// Actions a connected client may send upstream. Everything the client
// receives arrives as dispatcher notifications on the same socket.
const (
	ActionTyping    = "typing"
	ActionNotTyping = "not_typing"
	ActionSeen      = "seen"
	ActionUnseen    = "unseen"
)

type ClientCommand struct {
	Action string `json:"action"`
	ChatID string `json:"chatId"`
}
