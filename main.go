package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"chat-server/internal/auth"
	"chat-server/internal/db"
	"chat-server/internal/handlers"
	"chat-server/internal/middleware"
	"chat-server/internal/observability"
	"chat-server/internal/rabbitmq"
	"chat-server/internal/repositories"
	"chat-server/internal/rooms"
	"chat-server/internal/telemetry"
	"chat-server/internal/ws"
)

const serviceName = "chat-server"

func main() {
	_ = godotenv.Load()

	ctx := context.Background()

	database, err := db.Connect()
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	publisher := rabbitmq.NewPublisher(os.Getenv("RABBITMQ_URL"), getEnv("RABBITMQ_EXCHANGE", "chat_events"))
	defer publisher.Close()
	observability.SetPublisher(publisher)
	log.Printf("event publisher mode=%s", rabbitmq.PublisherMode(publisher))

	audit := telemetry.NewAuditEmitter(publisher, getEnv("AUDIT_ROUTING_KEY", "audit.chat-server"), serviceName, getEnv("ENVIRONMENT", "development"))

	shutdownTracing, err := telemetry.SetupTracing(ctx, os.Getenv("OTLP_ENDPOINT"), serviceName)
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}
	defer shutdownTracing(ctx)

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET is required")
	}
	ttl, err := time.ParseDuration(getEnv("JWT_TTL", "24h"))
	if err != nil {
		log.Fatalf("invalid JWT_TTL: %v", err)
	}
	tokens := auth.NewManager(secret, ttl)

	userRepo := repositories.NewUserRepo(database)
	roomRepo := repositories.NewRoomRepo(database)
	messageRepo := repositories.NewMessageRepo(database)

	registry := rooms.NewRegistry(roomRepo)
	if err := registry.Load(ctx); err != nil {
		log.Fatalf("failed to load room memberships: %v", err)
	}

	sessions := ws.NewSessionRegistry()
	hub := ws.NewHub(sessions, registry)
	presence := ws.NewPresenceTracker(hub, sessions, userRepo, 0, 0)
	go presence.Run(ctx)

	wsServer := ws.NewServer(hub, sessions, presence, registry, messageRepo, userRepo, tokens)

	authHandler := handlers.NewAuthHandler(userRepo, tokens, audit)
	userHandler := handlers.NewUserHandler(userRepo, presence)
	roomHandler := handlers.NewRoomHandler(registry, roomRepo, hub, audit)
	messageHandler := handlers.NewMessageHandler(registry, messageRepo, hub, audit)

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/auth/register", authHandler.Register)
	router.POST("/auth/login", authHandler.Login)

	authMiddleware := middleware.AuthMiddleware(tokens)

	router.POST("/auth/refresh", authMiddleware, authHandler.Refresh)
	router.POST("/auth/logout", authMiddleware, authHandler.Logout)
	router.GET("/auth/me", authMiddleware, authHandler.Me)
	router.PATCH("/auth/profile", authMiddleware, authHandler.UpdateProfile)

	router.GET("/users", authMiddleware, userHandler.ListUsers)
	router.GET("/users/:user_id", authMiddleware, userHandler.GetUser)

	router.GET("/rooms", authMiddleware, roomHandler.ListRooms)
	router.POST("/rooms", authMiddleware, roomHandler.CreateRoom)
	router.GET("/rooms/:room_id", authMiddleware, roomHandler.GetRoom)
	router.DELETE("/rooms/:room_id", authMiddleware, roomHandler.DeleteRoom)
	router.POST("/rooms/:room_id/join", authMiddleware, roomHandler.JoinRoom)
	router.POST("/rooms/:room_id/leave", authMiddleware, roomHandler.LeaveRoom)
	router.GET("/rooms/:room_id/members", authMiddleware, roomHandler.ListMembers)
	router.DELETE("/rooms/:room_id/members/:user_id", authMiddleware, roomHandler.KickMember)
	router.PATCH("/rooms/:room_id/members/:user_id/role", authMiddleware, roomHandler.UpdateMemberRole)

	router.GET("/rooms/:room_id/messages", authMiddleware, messageHandler.ListMessages)
	router.PATCH("/messages/:message_id", authMiddleware, messageHandler.EditMessage)
	router.DELETE("/messages/:message_id", authMiddleware, messageHandler.DeleteMessage)
	router.PUT("/messages/:message_id/reactions", authMiddleware, messageHandler.SetReaction)
	router.DELETE("/messages/:message_id/reactions", authMiddleware, messageHandler.ClearReaction)

	router.GET("/ws", wsServer.Handle)

	handlers.RegisterDebugRoutes(router, audit, getEnv("DEBUG_ROUTES", "") == "true")

	port := getEnv("PORT", "8080")
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}
