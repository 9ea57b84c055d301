package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"evolution_relay/internal/config"
	"evolution_relay/internal/infrastructure"
	"evolution_relay/internal/interfaces"
	httpapi "evolution_relay/internal/interfaces/http"
	"evolution_relay/internal/repository"
	"evolution_relay/internal/usecases"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logger, err := infrastructure.NewLogger(cfg.DebugMode)
	if err != nil {
		panic("Failed to build logger: " + err.Error())
	}
	defer logger.Sync()

	if cfg.JWTSecret == "" {
		zap.L().Warn("JWT_SECRET is empty, dashboard tokens are forgeable")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to PostgreSQL (migrates on connect)
	pgClient, err := infrastructure.NewPostgresClient(ctx, cfg.DatabaseURL)
	if err != nil {
		zap.L().Fatal("Failed to connect to database", zap.Error(err))
	}
	defer pgClient.Close()

	// Repositories
	instanceRepo := repository.NewInstanceRepository(pgClient.Pool)
	tenantRepo := repository.NewTenantRepository(pgClient.Pool)
	contactRepo := repository.NewContactRepository(pgClient.Pool)
	conversationRepo := repository.NewConversationRepository(pgClient.Pool)
	messageRepo := repository.NewMessageRepository(pgClient.Pool)
	sessionRepo := repository.NewChatbotSessionRepository(pgClient.Pool)
	auditRepo := repository.NewAuditRepository(pgClient.Pool)
	usageRepo := repository.NewUsageRepository(pgClient.Pool)
	userRepo := repository.NewUserRepository(pgClient.Pool)

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := infrastructure.NewMetrics(registry)

	// Delivery journal
	var journal interfaces.DeliveryJournal
	if cfg.JournalPath != "" {
		j, err := infrastructure.OpenDeliveryJournal(cfg.JournalPath, cfg.JournalRetention)
		if err != nil {
			zap.L().Fatal("Failed to open delivery journal", zap.Error(err))
		}
		defer j.Close()
		go j.RunPruner(ctx, time.Hour)
		journal = j
	}

	// Downstream clients
	var chatbot interfaces.ChatbotEngine
	if cfg.ChatbotEngineURL != "" {
		chatbot = infrastructure.NewChatbotEngineClient(cfg.ChatbotEngineURL, cfg.ChatbotEngineToken, cfg.ChatbotTimeout)
	} else {
		zap.L().Warn("CHATBOT_ENGINE_URL not set, chatbot dispatch disabled")
	}

	var gateway interfaces.Gateway
	var provisioner interfaces.InstanceProvisioner
	if cfg.EvolutionURL != "" {
		evolution := infrastructure.NewEvolutionClient(cfg.EvolutionURL, cfg.EvolutionAPIKey)
		gateway = evolution
		provisioner = evolution
		if cfg.WebhookPublicURL == "" {
			zap.L().Warn("WEBHOOK_PUBLIC_URL not set, instance provisioning disabled")
		}
	}

	var notifier interfaces.Notifier
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != 0 {
		tg, err := infrastructure.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID)
		if err != nil {
			zap.L().Warn("Telegram notifier disabled", zap.Error(err))
		} else {
			zap.L().Info("Telegram notifier ready", zap.String("bot", tg.BotName()))
			notifier = tg
		}
	}

	dispatcher := infrastructure.NewDispatcher(cfg.DispatchWorkers, cfg.DispatchQueueSize, cfg.ChatbotTimeout, metrics)

	// Usecases
	relay := usecases.NewRelayService(usecases.RelayDeps{
		Instances:      instanceRepo,
		Tenants:        tenantRepo,
		Contacts:       contactRepo,
		Conversations:  conversationRepo,
		Messages:       messageRepo,
		Sessions:       sessionRepo,
		Audit:          auditRepo,
		Usage:          usageRepo,
		Chatbot:        chatbot,
		Notifier:       notifier,
		Dispatcher:     dispatcher,
		Locker:         infrastructure.NewKeyedLocker(),
		Journal:        journal,
		Observer:       metrics,
		TenantFallback: cfg.TenantFallback,
	})
	authUsecase := usecases.NewAuthUsecase(userRepo, cfg.JWTSecret)
	dashboardUsecase := usecases.NewDashboardUsecase(conversationRepo, messageRepo, contactRepo, instanceRepo, usageRepo, gateway)
	instanceUsecase := usecases.NewInstanceUsecase(instanceRepo, provisioner, cfg.WebhookPublicURL)

	if cfg.AdminUsername != "" && cfg.AdminPassword != "" && cfg.AdminTenantID != "" {
		if err := authUsecase.EnsureOperator(ctx, cfg.AdminUsername, cfg.AdminPassword, cfg.AdminTenantID); err != nil {
			zap.L().Warn("Failed to ensure admin operator", zap.Error(err))
		}
	}

	if !cfg.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	httpapi.SetupRoutes(r, httpapi.Server{
		Relay:         relay,
		Auth:          authUsecase,
		Dashboard:     dashboardUsecase,
		Instances:     instanceUsecase,
		Middleware:    httpapi.NewMiddleware(cfg.JWTSecret, cfg.RateLimitRPS, cfg.RateLimitBurst),
		WebhookAPIKey: cfg.WebhookAPIKey,
		Metrics:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Ping:          pgClient.Pool.Ping,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("Server shutdown error", zap.Error(err))
		}
	}()

	zap.L().Info("Relay listening",
		zap.String("port", cfg.Port),
		zap.String("tenant_fallback", cfg.TenantFallback),
		zap.Bool("journal", journal != nil),
		zap.Bool("chatbot", chatbot != nil))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		zap.L().Fatal("Server failed", zap.Error(err))
	}

	// Let queued chatbot calls finish before the pool closes.
	dispatcher.Close()
}
