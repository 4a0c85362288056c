package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quizblitz-service/internal/cache"
	"quizblitz-service/internal/config"
	"quizblitz-service/internal/db"
	"quizblitz-service/internal/event"
	"quizblitz-service/internal/handlers"
	"quizblitz-service/internal/repository"
	"quizblitz-service/internal/service"
	"quizblitz-service/internal/timer"
	"quizblitz-service/pkg/discovery"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the quiz engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *configPath)
		},
	}
}

func runServe(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	gin.SetMode(cfg.GinMode)

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	mongoClient, err := db.Connect(connectCtx, cfg.Mongo.URI)
	if err != nil {
		return err
	}
	defer mongoClient.Disconnect(context.Background())

	database := mongoClient.Database(cfg.Mongo.Database)
	if err := db.EnsureIndexes(connectCtx, database); err != nil {
		return err
	}

	roomRepo := repository.NewRoomRepository(database)
	sessionRepo := repository.NewSessionRepository(database)
	questionRepo := repository.NewQuestionRepository(database)
	accessCodeRepo := repository.NewAccessCodeRepository(database)
	eventRepo := repository.NewEventRepository(database)

	var publisher *event.Publisher
	if cfg.RabbitMQ.URI != "" && cfg.RabbitMQ.Exchange != "" {
		publisher, err = event.NewPublisher(cfg.RabbitMQ.URI, cfg.RabbitMQ.Exchange)
		if err != nil {
			return err
		}
		defer publisher.Close()
	} else {
		log.Println("RabbitMQ not configured, events stay local to the Mongo log")
	}
	recorder := event.NewRecorder(eventRepo, publisher)

	var questions service.QuestionSource = questionRepo
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		questions = cache.NewQuestionCache(redisClient, questionRepo, cfg.RedisTTL())
	} else {
		log.Println("Redis not configured, question snapshots load from Mongo every time")
	}

	roomService := service.NewRoomService(roomRepo, accessCodeRepo, recorder)
	sessionService := service.NewSessionService(sessionRepo, roomRepo, questions, recorder)

	timers := timer.NewService(sessionService, recorder, cfg.TimerTick(), cfg.QuestionGap())
	defer timers.StopAll()

	source := event.SelectSource(ctx, eventRepo, cfg.PollInterval())
	log.Printf("Event delivery mode: %s", source.Mode())

	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	defer stopJanitor()
	go event.NewJanitor(eventRepo, sessionRepo, 24*time.Hour, time.Hour).Run(janitorCtx)

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Content-Length", "Accept-Encoding", "Authorization", "Cache-Control", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	roomHandler := handlers.NewRoomHandler(roomService, cfg.JWTSecret)
	sessionHandler := handlers.NewSessionHandler(sessionService, timers, cfg.JWTSecret)
	streamHandler := handlers.NewStreamHandler(source, sessionService, roomService, cfg.JWTSecret, cfg.StreamMaxLifetime())
	handlers.RegisterRoutes(r, roomHandler, sessionHandler, streamHandler)

	if cfg.Consul.Address != "" {
		registry, err := discovery.NewServiceRegistry(cfg)
		if err != nil {
			return err
		}
		if err := registry.Register(); err != nil {
			return err
		}
		defer registry.Deregister()
	}

	// No WriteTimeout: SSE connections are bounded by the stream
	// lifetime cap instead.
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("quizblitz-service listening on :%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down...")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	return server.Shutdown(shutdownCtx)
}
