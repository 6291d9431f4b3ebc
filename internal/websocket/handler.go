package websocket

import (
	"context"
	"log"
	"net/http"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"chat-routing-backend/internal/env"
	"chat-routing-backend/internal/jwt"
	"chat-routing-backend/internal/registry"
	"chat-routing-backend/internal/service/presence"
)

var (
	upgrader    websocket.Upgrader
	redisClient *redis.Client
)

func init() {
	upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
	redisClient = redis.NewClient(&redis.Options{
		Addr:     env.Get(env.PresenceRedisURL),
		Password: env.Get(env.PresenceRedisPass),
		DB:       0,
	})
}

type Handler struct {
	hub         *Hub
	presence    *presence.Service
	redisClient *redis.Client
}

func NewHandler(h *Hub, presenceSvc *presence.Service) *Handler {
	return &Handler{
		hub:         h,
		presence:    presenceSvc,
		redisClient: redisClient,
	}
}

func userChannel(userID string) string {
	return "notify:user:" + userID
}

// ServeWS authenticates the socket, registers it with the hub and feeds the
// connect signal into presence. The socket id is fresh per connection; the
// same user may hold any number of sockets.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	jwtRole := jwt.RoleVisitor
	role := registry.RoleVisitor
	if r.URL.Query().Get("role") == "commercial" {
		jwtRole = jwt.RoleCommercial
		role = registry.RoleCommercial
	}

	identity, err := jwt.ParseToken(r.URL.Query().Get("token"), jwtRole)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	socketID := uuid.NewString()
	cl := &WSClient{
		Conn:     conn,
		Message:  make(chan []byte, 16),
		SocketID: socketID,
		UserID:   identity.UserID,
		done:     make(chan struct{}),
		isClosed: false,
	}

	h.hub.Register <- cl

	if err := h.presence.Connect(r.Context(), identity.UserID, role, identity.Tags, socketID); err != nil {
		log.Printf("Presence connect for user %s: %v", identity.UserID, err)
	}

	go h.subscribeToUserChannel(cl)
	go cl.keepAlive()
	go cl.writeMessage()
	go cl.readMessage(h.hub,
		func(cmd ClientCommand) { h.handleCommand(identity, cmd) },
		func() {
			if err := h.presence.Disconnect(context.Background(), identity.UserID, socketID); err != nil {
				log.Printf("Presence disconnect for user %s: %v", identity.UserID, err)
			}
		},
	)
}

func (h *Handler) handleCommand(identity jwt.Identity, cmd ClientCommand) {
	ctx := context.Background()

	var err error
	switch cmd.Action {
	case ActionTyping:
		_, err = h.presence.SetTyping(ctx, identity.TenantID, cmd.ChatID, identity.UserID, true)
	case ActionNotTyping:
		_, err = h.presence.SetTyping(ctx, identity.TenantID, cmd.ChatID, identity.UserID, false)
	case ActionSeen:
		_, err = h.presence.MarkSeen(ctx, identity.TenantID, cmd.ChatID, identity.UserID)
	case ActionUnseen:
		_, err = h.presence.MarkUnseen(ctx, identity.TenantID, cmd.ChatID, identity.UserID)
	default:
		log.Printf("Unknown action %q from user %s", cmd.Action, identity.UserID)
		return
	}
	if err != nil {
		log.Printf("Command %s from user %s: %v", cmd.Action, identity.UserID, err)
	}
}

// subscribeToUserChannel forwards notifications published by other nodes to
// this socket. The subscription lives exactly as long as the socket does.
func (h *Handler) subscribeToUserChannel(cl *WSClient) {
	subscriber := h.redisClient.Subscribe(context.Background(), userChannel(cl.UserID))
	defer subscriber.Close()

	ch := subscriber.Channel()
	for {
		select {
		case <-cl.done:
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := h.hub.Send(cl.SocketID, []byte(msg.Payload)); err != nil {
				log.Printf("Relay to socket %s: %v", cl.SocketID, err)
			}
		}
	}
}
