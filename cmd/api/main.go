package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	redisv9 "github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"groupcart/internal/client/ai"
	"groupcart/internal/config"
	"groupcart/internal/consumer"
	"groupcart/internal/database"
	"groupcart/internal/handler"
	"groupcart/internal/middleware"
	"groupcart/internal/model"
	"groupcart/internal/monitor"
	"groupcart/internal/realtime"
	"groupcart/internal/redis"
	"groupcart/internal/repository"
	"groupcart/internal/service/address"
	"groupcart/internal/service/auth"
	"groupcart/internal/service/cart"
	"groupcart/internal/service/catalog"
	"groupcart/internal/service/chat"
	"groupcart/internal/service/conversation"
	"groupcart/internal/service/notification"
	"groupcart/internal/service/nudge"
	"groupcart/internal/service/room"
	"groupcart/internal/service/suggestion"
	"groupcart/internal/service/wishlist"
	"groupcart/internal/utils"
	"groupcart/pkg/breaker"
	"groupcart/pkg/limiter"
	"groupcart/pkg/log"
	"groupcart/pkg/queue"
	"groupcart/pkg/snowflake"
	pkgutils "groupcart/pkg/utils"
)

// services everything the router needs
type services struct {
	auth          auth.AuthService
	rooms         room.RoomService
	wishlist      wishlist.WishlistService
	addresses     address.AddressService
	notifications notification.NotificationService
	window        conversation.Window
	suggester     suggestion.Orchestrator
	hub           *realtime.Hub
	metrics       *monitor.MetricsCollector
	health        map[string]handler.HealthCheck
	suggestLimit  middleware.Limiter
}

func main() {
	cfg, err := config.LoadConfig("")
	if err != nil {
		log.WithFields(log.Fields{
			"error": err.Error(),
		}).Fatal("Failed to load config")
	}

	if err := log.Init(log.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		Filename:   cfg.Log.Filename,
		MaxSize:    cfg.Log.MaxSize,
		MaxAge:     cfg.Log.MaxAge,
		MaxBackups: cfg.Log.MaxBackups,
		Compress:   cfg.Log.Compress,
		Static: log.Fields{
			"service": cfg.Tracing.ServiceName,
			"env":     config.Env(),
		},
	}); err != nil {
		log.WithError(err).Fatal("Failed to initialize logger")
	}

	// only the log level is applied live; everything else needs a restart
	config.WatchConfig(func(next *config.Config) {
		if err := log.SetLevel(next.Log.Level); err != nil {
			log.WithError(err).Warn("Ignoring invalid log level")
			return
		}
		log.WithField("level", next.Log.Level).Info("Log level updated")
	})

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	metrics := monitor.NewMetricsCollector(cfg.Metrics.Namespace)
	tracer, err := monitor.NewTracer(cfg.Tracing, config.Env())
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize tracer")
	}

	health := map[string]handler.HealthCheck{}

	// redis backs the redis snapshot driver and the distributed suggestion limiter
	var rdb *redisv9.Client
	if cfg.Storage.Driver == "redis" {
		rdb, err = redis.NewClient(cfg.Redis)
		if err != nil {
			log.WithError(err).Fatal("Failed to initialize redis")
		}
		defer rdb.Close()
		health["redis"] = func() error { return redis.Health(context.Background(), rdb) }
	}

	var db *gorm.DB
	if cfg.Storage.Driver == "mysql" {
		db, err = database.Open(cfg.Database)
		if err != nil {
			log.WithError(err).Fatal("Failed to initialize database")
		}
		defer database.Close(db)
		if err := database.AutoMigrate(db); err != nil {
			log.WithError(err).Fatal("Failed to migrate database")
		}
		health["database"] = func() error { return database.Health(context.Background(), db) }
	}

	var universal redisv9.UniversalClient
	if rdb != nil {
		universal = rdb
	}
	store, err := repository.NewSnapshotStore(cfg.Storage, universal, db)
	if err != nil {
		log.WithError(err).Fatal("Failed to create snapshot store")
	}
	snapshots := repository.NewSnapshotter(store,
		repository.WithWriteTimeout(cfg.Storage.WriteTimeout),
		repository.WithErrorHook(metrics.RecordSnapshotFailure),
	)

	ids, err := snowflake.NewIDGenerator(cfg.Server.NodeID)
	if err != nil {
		log.WithError(err).Fatal("Failed to create ID generator")
	}

	secret := cfg.Security.JWT.Secret
	if secret == "" {
		secret = uuid.NewString()
		log.Warn("No JWT secret configured, tokens will not survive a restart")
	}
	jwtManager := utils.NewJWTManager(secret, cfg.Security.JWT.Issuer, cfg.Security.JWT.Expire)

	authService := auth.NewAuthService(jwtManager, snapshots)
	roomService := room.NewRoomService(snapshots)
	addressService := address.NewAddressService(snapshots)
	notificationService := notification.NewNotificationService(ids, snapshots, metrics)
	restoreSnapshots(store, roomService, addressService, notificationService, authService)

	products, err := catalog.Load(cfg.Catalog.DataDir)
	if err != nil {
		log.WithError(err).Fatal("Failed to load catalog")
	}

	breakers := breaker.NewManager(breaker.Config{
		MaxRequests:      1,
		Interval:         cfg.AI.Breaker.Interval,
		Timeout:          cfg.AI.Breaker.Timeout,
		FailureThreshold: cfg.AI.Breaker.FailureThreshold,
		OnStateChange: func(name string, from, to breaker.State) {
			log.WithFields(log.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})
	aiOpts := ai.Options{
		Timeout:  cfg.AI.Timeout,
		Breakers: breakers,
		Tracer:   tracer,
		Metrics:  metrics,
	}

	var translator chat.Translator = ai.NewHTTPTranslator(cfg.AI.TranslatorURL, aiOpts)
	if cfg.AI.TranslationCache.Enabled {
		cached, err := ai.NewCachedTranslator(translator, cfg.AI.TranslationCache.TTL, cfg.AI.TranslationCache.MaxMB)
		if err != nil {
			log.WithError(err).Fatal("Failed to create translation cache")
		}
		defer cached.Close()
		translator = cached
	}

	window := conversation.NewWindow(cfg.Suggestion.WindowSize)
	suggester := suggestion.NewOrchestrator(suggestion.Config{
		TopK:          cfg.Suggestion.TopK,
		Interval:      cfg.Suggestion.Interval,
		ComboKeywords: cfg.Suggestion.ComboKeywords,
	}, products, ai.NewHTTPRanker(cfg.AI.RankerURL, aiOpts), roomService, metrics)

	hub := realtime.NewHub(cfg.Realtime, cfg.Security.CORS.AllowOrigins, metrics)

	messageQueue := queue.NewMemoryQueue(&queue.MemoryQueueConfig{
		BufferSize: cfg.Nudge.QueueBuffer,
		Timeout:    time.Second,
	})
	health["queue"] = messageQueue.Health

	nudgeTopic := ""
	var nudgeConsumer *consumer.NudgeConsumer
	if cfg.Nudge.Enabled {
		nudgeTopic = consumer.NudgeTopic
		engine := nudge.NewEngine(nudge.Config{
			HistorySize: cfg.Nudge.HistorySize,
			Threshold:   cfg.Nudge.Threshold,
			Cooldown:    cfg.Nudge.Cooldown,
		}, window, ai.NewHTTPThemeDetector(cfg.AI.ThemeURL, aiOpts), notificationService, hub, metrics)

		nudgeConsumer = consumer.NewNudgeConsumer(engine, messageQueue, nudgeTopic, metrics)
		if err := nudgeConsumer.Start(context.Background()); err != nil {
			log.WithError(err).Fatal("Failed to start nudge consumer")
		}
	}

	coordinator := chat.NewCoordinator(chat.Config{
		ContextSize: cfg.Suggestion.ContextSize,
		AIDelay:     cfg.Suggestion.AIDelay,
		NudgeTopic:  nudgeTopic,
	}, hub, window, suggester, cart.NewCartService(), chat.Options{
		Classifier: ai.NewFallbackClassifier(ai.NewHTTPClassifier(cfg.AI.ClassifierURL, aiOpts)),
		Translator: translator,
		Publisher:  messageQueue,
		Metrics:    metrics,
		Tracer:     tracer,
	})
	hub.SetDispatcher(coordinator)

	// redis makes the per-room suggestion budget shared across instances
	var suggestLimit middleware.Limiter
	if rdb != nil {
		suggestLimit = limiter.NewSlidingWindowLimiter(rdb, "groupcart:ratelimit:suggestions:",
			cfg.RateLimit.Suggestions.Limit, cfg.RateLimit.Suggestions.Window)
	} else {
		perSecond := rate.Limit(float64(cfg.RateLimit.Suggestions.Limit) / cfg.RateLimit.Suggestions.Window.Seconds())
		suggestLimit = limiter.NewKeyedTokenBucket(perSecond, cfg.RateLimit.Suggestions.Limit, cfg.RateLimit.PerIP.TTL)
	}

	router := setupRouter(cfg, &services{
		auth:          authService,
		rooms:         roomService,
		wishlist:      wishlist.NewWishlistService(),
		addresses:     addressService,
		notifications: notificationService,
		window:        window,
		suggester:     suggester,
		hub:           hub,
		metrics:       metrics,
		health:        health,
		suggestLimit:  suggestLimit,
	})

	server := &http.Server{
		Addr:           cfg.Server.GetAddr(),
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	go func() {
		log.WithFields(log.Fields{
			"addr":    server.Addr,
			"mode":    cfg.Server.Mode,
			"storage": cfg.Storage.Driver,
		}).Info("Starting HTTP server")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithFields(log.Fields{
				"error": err.Error(),
			}).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}
	hub.Close()
	if nudgeConsumer != nil {
		nudgeConsumer.Stop()
	}
	if err := messageQueue.Close(); err != nil {
		log.WithError(err).Warn("Failed to close message queue")
	}
	snapshots.Close()
	if err := tracer.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("Failed to flush traces")
	}

	log.Info("Server exited")
}

// restoreSnapshots loads every persisted collection. A broken snapshot is
// logged and the store starts empty.
func restoreSnapshots(
	store repository.SnapshotStore,
	rooms room.RoomService,
	addresses address.AddressService,
	notifications notification.NotificationService,
	users auth.AuthService,
) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	load := func(name string, dst interface{}, apply func()) {
		found, err := repository.LoadJSON(ctx, store, name, dst)
		if err != nil {
			log.WithFields(log.Fields{
				"snapshot": name,
				"error":    err.Error(),
			}).Error("Failed to load snapshot")
			return
		}
		if found {
			apply()
			log.WithField("snapshot", name).Info("Snapshot restored")
		}
	}

	var groups []model.Room
	load(repository.SnapshotGroups, &groups, func() { rooms.Restore(groups) })

	var book map[string]model.Address
	load(repository.SnapshotAddresses, &book, func() { addresses.Restore(book) })

	var ledger []model.Notification
	load(repository.SnapshotNotifications, &ledger, func() { notifications.Restore(ledger) })

	var accounts []model.User
	load(repository.SnapshotUsers, &accounts, func() { users.Restore(accounts) })
}

func setupRouter(cfg *config.Config, svc *services) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Recovery())
	router.Use(middleware.Logger(svc.metrics))
	router.Use(middleware.CORS(cfg.Security.CORS.AllowOrigins, cfg.Security.CORS.AllowCredentials, cfg.Security.CORS.MaxAge))
	if cfg.RateLimit.Enabled {
		router.Use(middleware.IPRateLimit(cfg.RateLimit.PerIP.RPS, cfg.RateLimit.PerIP.Burst, cfg.RateLimit.PerIP.TTL, svc.metrics))
	}
	router.Use(middleware.Timeout(cfg.Server.WriteTimeout, func(c *gin.Context) bool {
		return c.Request.URL.Path == "/ws"
	}))

	healthHandler := handler.NewHealthHandler(svc.health, svc.hub)
	router.GET("/health", healthHandler.Health)
	router.GET("/ping", healthHandler.Ping)
	if cfg.Metrics.Enabled {
		router.GET(cfg.Metrics.Path, gin.WrapH(svc.metrics.Handler()))
	}

	tokenValidator := func(ctx context.Context, token string) (*middleware.UserInfo, error) {
		claims, err := svc.auth.ValidateToken(ctx, token)
		if err != nil {
			return nil, err
		}
		return &middleware.UserInfo{
			Name:  claims.Name,
			Email: claims.Email,
		}, nil
	}
	guard := middleware.OptionalAuth(tokenValidator)
	if cfg.Security.RequireAuth {
		guard = middleware.AuthWithConfig(middleware.AuthConfig{
			Validator:       tokenValidator,
			AllowQueryToken: true,
		})
	}

	router.GET("/ws", guard, handler.NewWSHandler(svc.hub).Serve)

	authHandler := handler.NewAuthHandler(svc.auth)
	groupHandler := handler.NewGroupHandler(svc.rooms)
	wishlistHandler := handler.NewWishlistHandler(svc.wishlist, svc.window, svc.suggester, svc.hub, svc.metrics, cfg.Suggestion.ContextSize)
	addressHandler := handler.NewAddressHandler(svc.addresses)
	notificationHandler := handler.NewNotificationHandler(svc.notifications, svc.hub)

	suggestLimit := middleware.RateLimitWithConfig(middleware.RateLimitConfig{
		Limiter: svc.suggestLimit,
		KeyFunc: func(c *gin.Context) string { return c.Param("roomId") },
		Metrics: svc.metrics,
	})

	api := router.Group("/api")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/signup", authHandler.Signup)
			authGroup.POST("/login", authHandler.Login)
		}

		protected := api.Group("")
		protected.Use(guard)
		{
			protected.GET("/groups", groupHandler.List)
			protected.POST("/groups", groupHandler.Create)
			protected.PATCH("/groups/:id", groupHandler.Rename)
			protected.DELETE("/groups/:id", groupHandler.Delete)

			protected.GET("/wishlist/:roomId", wishlistHandler.List)
			protected.POST("/wishlist/:roomId", wishlistHandler.Add)
			protected.POST("/wishlist/:roomId/vote", wishlistHandler.Vote)
			protected.DELETE("/wishlist/:roomId/:productId", wishlistHandler.Remove)
			protected.GET("/wishlist/:roomId/ai-suggestions", suggestLimit, wishlistHandler.AISuggestions)

			protected.GET("/address/:roomId", addressHandler.Get)
			protected.POST("/address/:roomId", addressHandler.Set)

			protected.POST("/notifications", notificationHandler.Create)
			protected.GET("/notifications", notificationHandler.List)
			protected.POST("/notifications/:id/read", notificationHandler.MarkRead)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		pkgutils.Error(c, pkgutils.CodeNotFound, "Route not found")
	})

	return router
}
