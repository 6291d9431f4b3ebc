package main

import (
	"context"
	"log"
	"time"

	"github.com/go-redis/redis/v8"

	"chat-routing-backend/internal/api"
	"chat-routing-backend/internal/api/router"
	"chat-routing-backend/internal/database"
	"chat-routing-backend/internal/dispatch"
	"chat-routing-backend/internal/env"
	"chat-routing-backend/internal/events"
	"chat-routing-backend/internal/queue"
	"chat-routing-backend/internal/registry"
	"chat-routing-backend/internal/service/assignment"
	chatservice "chat-routing-backend/internal/service/chat"
	"chat-routing-backend/internal/service/presence"
	"chat-routing-backend/internal/websocket"
)

func main() {
	env.Validate()

	queueManager := queue.NewRequestQueueManager(10, 10)
	db, err := database.NewDatabase()
	if err != nil {
		log.Fatalf("db init failed: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     env.Get(env.PresenceRedisURL),
		Password: env.Get(env.PresenceRedisPass),
	})

	reg := registry.NewRedisStore(redisClient)
	bus := events.NewBus()
	hub := websocket.NewHub()
	go hub.Run()

	notifier := dispatch.New(reg, hub).WithRemote(websocket.NewRedisPublisher())

	chatRepo := chatservice.NewDynamoRepository(db)
	resolver := assignment.NewResolver(assignment.NewDynamoRepository(db))
	queuePolicy := assignment.NewQueuePolicy(assignment.LoadQueueConfig())
	scheduler := assignment.NewScheduler(resolver, reg, chatRepo, assignment.NewRedisCursorStore(redisClient), queuePolicy)

	presenceSvc := presence.New(db, reg, notifier, bus)
	chatSvc := chatservice.NewWithRepository(chatRepo, scheduler, queuePolicy, reg, notifier, bus, time.Now)

	go runRedispatchTicker(chatSvc, queuePolicy.Config())

	handler := websocket.NewHandler(hub, presenceSvc)

	server := api.NewAPIServer(
		":83",
		queueManager,
		db,
		handler,
		router.UtilsRoutes("/api/ws/v1"),
		router.WebsocketRoutes("/api/ws/v1"),
	)

	server.Run()
}

// runRedispatchTicker sweeps queued chats at half the wait ceiling so a chat
// never sits more than roughly 1.5x the ceiling before escalation.
func runRedispatchTicker(chats *chatservice.Service, cfg assignment.QueueConfig) {
	interval := time.Duration(cfg.MaxQueueWaitTimeSeconds/2) * time.Second
	if interval < 10*time.Second {
		interval = 10 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		assigned, err := chats.RedispatchAllQueued(ctx)
		cancel()
		if err != nil {
			log.Printf("redispatch sweep: %v", err)
			continue
		}
		if assigned > 0 {
			log.Printf("redispatch sweep assigned %d chats", assigned)
		}
	}
}
