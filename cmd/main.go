/**
 * @description
 * This is the main entry point for the banking-service. It is responsible for
 * initializing all components of the service, including configuration, database connection,
 * external API clients, message brokers, repositories, the core application services,
 * the assistant orchestrator, and the HTTP server. It wires everything together and
 * starts the service.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/go-chi/chi/v5: For HTTP routing.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - github.com/redis/go-redis/v9: Redis client for rate limiting.
 * - github.com/robfig/cron/v3: Statement cut scheduling.
 * - internal/api, internal/app, internal/assistant, internal/config, internal/llm,
 *   internal/store: Internal packages for the service.
 * - pkg/passkeyclient: Client for the passkey challenge service.
 * - pkg/rabbitmq: Client for RabbitMQ.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/lumenbank/banking-service/internal/api"
	"github.com/lumenbank/banking-service/internal/app"
	"github.com/lumenbank/banking-service/internal/assistant"
	"github.com/lumenbank/banking-service/internal/config"
	"github.com/lumenbank/banking-service/internal/llm"
	"github.com/lumenbank/banking-service/internal/store"
	"github.com/lumenbank/banking-service/pkg/passkeyclient"
	rmrabbit "github.com/lumenbank/banking-service/pkg/rabbitmq"
)

func main() {
	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"jwt secret must be configured\" env=JWT_SECRET")
	}

	log.Printf("level=info component=bootstrap msg=\"starting banking-service\" port=%s", cfg.ServerPort)

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}
	poolConfig.MaxConns = 50
	poolConfig.MinConns = 10
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// Initialize the RabbitMQ producer to publish events. The service only
	// publishes, so a missing broker degrades to a logging fallback.
	var events rmrabbit.Publisher
	rabbitProducer, err := rmrabbit.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
		events = &rmrabbit.EventProducerFallback{}
	} else {
		defer rabbitProducer.Close()
		events = rabbitProducer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}

	// Connect to Redis for assistant turn rate limiting. A missing or
	// unreachable Redis disables throttling rather than blocking boot.
	var redisClient *redis.Client
	if cfg.AssistantTurnsPerMinute > 0 {
		if strings.TrimSpace(cfg.RedisURL) == "" {
			log.Println("level=warn component=bootstrap msg=\"redis url missing; assistant rate limiting disabled\" env=REDIS_URL")
		} else {
			redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
			if parseErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; assistant rate limiting disabled\" err=%v", parseErr)
			} else {
				redisClient = redis.NewClient(redisOptions)
				pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancelPing()
				if pingErr := redisClient.Ping(pingCtx).Err(); pingErr != nil {
					log.Printf("level=warn component=bootstrap msg=\"redis ping failed; assistant rate limiting disabled\" err=%v", pingErr)
					redisClient.Close()
					redisClient = nil
				} else {
					defer redisClient.Close()
					log.Println("level=info component=bootstrap msg=\"redis connected\"")
				}
			}
		}
	}

	// Initialize the data access layer (repository).
	repository := store.NewPostgresRepository(dbpool)

	// Initialize the chat completion client and the core application services.
	llmClient := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel)
	approval := app.RandomApprovalPolicy(cfg.CardRejectionRate, cfg.LoanRejectionRate, cfg.ExtensionRejectionRate)
	bankingService := app.NewService(repository, events, approval)
	insightsService := app.NewInsightsService(repository, app.NewLLMSpendingAnalyzer(llmClient), events)

	// Assemble the assistant: tool registry, dispatch, re-auth gate, and the
	// orchestrator with optional Redis-backed turn throttling.
	passkeyClient := passkeyclient.NewClient(cfg.PasskeyServiceURL, cfg.PasskeyServiceAPIKey)
	gate := assistant.NewGate(repository, passkeyClient, time.Duration(cfg.ChallengeTimeoutSecs)*time.Second)
	registry := assistant.NewRegistry()
	dispatcher := assistant.NewDispatcher(bankingService, insightsService)

	var limiter assistant.TurnRateLimiter
	if redisClient != nil {
		limiter = app.NewRedisTurnRateLimiter(redisClient, cfg.RedisRateLimitPrefix)
	}
	orchestrator := assistant.NewOrchestrator(llmClient, registry, dispatcher, gate, limiter, cfg.AssistantTurnsPerMinute, time.Minute)

	// Schedule the statement cut job.
	scheduler := cron.New()
	if _, err := scheduler.AddJob(cfg.StatementCutSchedule, app.NewStatementJob(repository)); err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"statement schedule invalid\" schedule=%q err=%v", cfg.StatementCutSchedule, err)
	}
	scheduler.Start()
	defer scheduler.Stop()
	log.Printf("level=info component=bootstrap msg=\"statement cut scheduled\" schedule=%q", cfg.StatementCutSchedule)

	// Initialize the API handlers.
	bankingHandlers := api.NewBankingHandlers(bankingService, insightsService)
	assistantHandlers := api.NewAssistantHandlers(orchestrator, repository, cfg.DefaultLanguage)

	// Set up the HTTP router and define the API routes.
	router := chi.NewRouter()
	router.Mount("/v1", api.BankingRoutes(bankingHandlers, assistantHandlers, cfg.JWTSecret))

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server failed\" err=%v", err)
		}
	}()

	// Wait for an interrupt signal, then drain in-flight requests.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("level=info component=http msg=\"shutting down\"")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("level=error component=http msg=\"graceful shutdown failed\" err=%v", err)
	}
	log.Println("level=info component=http msg=\"server stopped\"")
}
