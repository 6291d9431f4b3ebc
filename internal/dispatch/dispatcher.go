package dispatch

import (
	"encoding/json"
	"log"

	"chat-routing-backend/internal/registry"
)

// Notification is the wire envelope pushed to a recipient's sockets.
type Notification struct {
	Type        string      `json:"type"`
	RecipientID string      `json:"recipientId"`
	Payload     interface{} `json:"payload"`
}

// Sender delivers a marshalled notification to one local socket.
type Sender interface {
	Send(socketID string, data []byte) error
}

// RemotePublisher puts a notification on the recipient's channel; every
// socket's subscription relays it, whichever node holds the socket.
type RemotePublisher interface {
	PublishToUser(userID string, data []byte) error
}

// Dispatcher fans state-change notifications out to recipients' live
// sockets. The registry is the shared presence view, so an offline recipient
// means offline everywhere and the call is a no-op. Delivery is best-effort:
// a failure for one recipient or socket never blocks the others.
type Dispatcher struct {
	registry registry.Store
	sender   Sender
	remote   RemotePublisher
}

func New(reg registry.Store, sender Sender) *Dispatcher {
	return &Dispatcher{
		registry: reg,
		sender:   sender,
	}
}

// WithRemote routes all delivery through the per-socket channel
// subscriptions, so a recipient split across nodes reaches every socket.
func (d *Dispatcher) WithRemote(remote RemotePublisher) *Dispatcher {
	d.remote = remote
	return d
}

// Notify delivers the payload to every socket of the recipient, on whichever
// node each socket lives. If the recipient is offline the call returns
// without side effects.
func (d *Dispatcher) Notify(recipientID, notificationType string, payload interface{}) {
	conn, online := d.registry.Get(recipientID)
	if !online {
		return
	}

	data, err := marshal(recipientID, notificationType, payload)
	if err != nil {
		log.Printf("dispatch: marshal %s for %s: %v", notificationType, recipientID, err)
		return
	}

	// A configured remote is the only delivery path: each socket receives the
	// message through its own subscription, local sockets included, so a
	// direct local send would duplicate it.
	if d.remote != nil {
		if err := d.remote.PublishToUser(recipientID, data); err != nil {
			log.Printf("dispatch: publish %s for %s: %v", notificationType, recipientID, err)
		}
		return
	}

	for _, socketID := range conn.SocketIDs {
		if err := d.sender.Send(socketID, data); err != nil {
			log.Printf("dispatch: send %s to %s socket %s: %v", notificationType, recipientID, socketID, err)
		}
	}
}

// NotifyAll attempts delivery to each recipient independently; one failing
// recipient cannot prevent delivery to the rest.
func (d *Dispatcher) NotifyAll(recipientIDs []string, notificationType string, payload interface{}) {
	for _, recipientID := range recipientIDs {
		d.Notify(recipientID, notificationType, payload)
	}
}

func marshal(recipientID, notificationType string, payload interface{}) ([]byte, error) {
	return json.Marshal(Notification{
		Type:        notificationType,
		RecipientID: recipientID,
		Payload:     payload,
	})
}
