package main

import (
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

	// Presence lives in Redis: sockets attach on the ws nodes, and this
	// process reads the same connected set when routing a new chat.
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

	handler := websocket.NewHandler(hub, presenceSvc)

	server := api.NewAPIServer(
		":82",
		queueManager,
		db,
		handler,
		router.UtilsRoutes("/api/v1"),
		router.RuleRoutes("/api/v1"),
		router.ChatRoutes("/api/v1", chatSvc, presenceSvc),
	)

	server.Run()
}
