package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"conversation-service/internal/config"
	"conversation-service/internal/db"
	"conversation-service/internal/events"
	opsgrpc "conversation-service/internal/grpc"
	"conversation-service/internal/handlers"
	"conversation-service/internal/logging"
	"conversation-service/internal/middleware"
	"conversation-service/internal/observability"
	"conversation-service/internal/rabbitmq"
	"conversation-service/internal/repositories"
	"conversation-service/internal/services"
	"conversation-service/internal/telemetry"
	"conversation-service/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", "err", err)
	}
	logger := logging.New(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.ServiceName, cfg.Environment)
	if err != nil {
		logger.Fatal("failed to init tracing", "err", err)
	}

	database, err := db.Connect(cfg.Database.DSN, db.PoolConfig{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("failed to connect to db", "err", err)
	}
	defer database.Close()

	messageRepo, mongoClient, err := buildMessageStore(ctx, cfg, database, logger)
	if err != nil {
		logger.Fatal("failed to init message store", "err", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, search rate limiting will fail open", "addr", cfg.Redis.Addr, "err", err)
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, logger)
	defer publisher.Close()
	logger.Info("event publisher ready", "mode", rabbitmq.PublisherMode(publisher), "noop_reason", rabbitmq.PublisherNoopReason(publisher))
	audit := telemetry.NewAuditEmitter(publisher, cfg.AMQP.AuditRoutingKey, cfg.Telemetry.ServiceName, cfg.Environment, logger)

	conversationRepo := repositories.NewConversationRepo(database)
	userRepo := repositories.NewUserRepo(database)
	rateLimitRepo := repositories.NewRateLimitRepo(redisClient)

	hub := ws.NewHub(logger)
	dispatcher := events.NewDispatcher(publisher, hub, logger)

	membership := services.NewMembershipService(conversationRepo, userRepo, dispatcher, logger, services.MembershipOptions{
		StoreTimeout: cfg.Database.QueryTimeout,
	})
	search := services.NewSearchService(messageRepo, membership, logger, services.SearchOptions{
		StoreTimeout: cfg.Search.StoreTimeout,
		ContextStep:  cfg.Search.ContextStep,
	})

	tokens := middleware.NewJWTValidator(cfg.Auth.JWTSecret)
	conversationHandler := handlers.NewConversationHandler(membership, audit, logger)
	searchHandler := handlers.NewSearchHandler(search)
	conversationWS := ws.NewConversationWebSocketHandler(hub, membership, tokens, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(logger))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		if err := database.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authMiddleware := middleware.AuthMiddleware(tokens)
	searchLimit := middleware.RateLimit(rateLimitRepo, "search", cfg.Search.RateLimitPerMinute, time.Minute, logger)

	api := router.Group("/", authMiddleware)
	api.POST("/conversations/direct", conversationHandler.StartDirect)
	api.POST("/conversations/groups", conversationHandler.CreateGroup)
	api.GET("/conversations", conversationHandler.ListConversations)
	api.GET("/conversations/public", conversationHandler.ListPublicGroups)
	api.GET("/conversations/:conversation_id", conversationHandler.GetConversation)
	api.GET("/conversations/:conversation_id/participants", conversationHandler.ListParticipants)
	api.POST("/conversations/:conversation_id/participants", conversationHandler.AddParticipant)
	api.DELETE("/conversations/:conversation_id/participants/:user_id", conversationHandler.RemoveParticipant)
	api.PUT("/conversations/:conversation_id/participants/:user_id/role", conversationHandler.ChangeRole)
	api.PATCH("/conversations/:conversation_id/settings", conversationHandler.UpdateSettings)
	api.GET("/conversations/:conversation_id/role", conversationHandler.GetRole)
	api.GET("/conversations/:conversation_id/messages/search", searchLimit, searchHandler.Search)
	api.GET("/messages/:message_id/context", searchLimit, searchHandler.Context)
	handlers.RegisterDebugRoutes(api, audit, cfg.Server.DebugRoutes)

	router.GET("/ws/conversations/:conversation_id", conversationWS.Handle)

	ops := opsgrpc.NewOpsServer(database, logger)
	ops.Refresh(ctx)
	go func() {
		if err := ops.Serve(":" + cfg.Server.GRPCPort); err != nil {
			logger.Error("grpc ops server stopped", "err", err)
		}
	}()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", "err", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "err", err)
	}
	ops.Stop()
	if mongoClient != nil {
		if err := mongoClient.Disconnect(shutdownCtx); err != nil {
			logger.Warn("mongo disconnect failed", "err", err)
		}
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown failed", "err", err)
	}
}

// buildMessageStore picks the configured message store. The mongo client is nil for postgres.
func buildMessageStore(ctx context.Context, cfg *config.Config, database *sqlx.DB, logger *log.Logger) (repositories.MessageRepository, *mongo.Client, error) {
	if cfg.MessageStore.Kind != config.MessageStoreMongo {
		return repositories.NewMessageRepo(database), nil, nil
	}

	client, mongoDB, err := db.ConnectMongo(ctx, cfg.MessageStore.MongoURI, cfg.MessageStore.MongoDatabase)
	if err != nil {
		return nil, nil, err
	}
	repo := repositories.NewMongoMessageRepo(mongoDB)
	if err := repo.EnsureIndexes(ctx); err != nil {
		logger.Warn("mongo index creation failed, searches will use the literal fallback", "err", err)
	}
	logger.Info("message store ready", "kind", cfg.MessageStore.Kind, "database", cfg.MessageStore.MongoDatabase)
	return repo, client, nil
}
