package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"apflow/internal/access"
	actorrepo "apflow/internal/actor/repository"
	"apflow/internal/assignment"
	assignmentrepo "apflow/internal/assignment/repository"
	"apflow/internal/audit"
	auditrepo "apflow/internal/audit/repository"
	"apflow/internal/audit/stream"
	"apflow/internal/cache"
	"apflow/internal/config"
	"apflow/internal/db"
	identityservice "apflow/internal/identity/service"
	"apflow/internal/loginsecurity"
	loginsecurityrepo "apflow/internal/loginsecurity/repository"
	"apflow/internal/notify"
	policyengine "apflow/internal/policy/engine"
	policyrepo "apflow/internal/policy/repository"
	"apflow/internal/security"
	"apflow/internal/server"
	"apflow/internal/telemetry"
	workflowrepo "apflow/internal/workflow/repository"
	workflowservice "apflow/internal/workflow/service"
)

// dbHealth adapts *sql.DB to the server health check.
type dbHealth struct{ db *sql.DB }

func (h dbHealth) HealthCheck(ctx context.Context) error { return h.db.PingContext(ctx) }

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	providers, err := telemetry.NewProviders(ctx, cfg.OTLPEndpoint, "apflow", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = providers.Shutdown(shutdownCtx)
	}()

	sqlDB, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer sqlDB.Close()

	privateKey, err := security.ParsePrivateKey(cfg.JWTPrivateKey)
	if err != nil {
		log.Fatalf("jwt private key: %v", err)
	}
	publicKey, err := security.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		log.Fatalf("jwt public key: %v", err)
	}
	tokens := security.NewTokenProvider(privateKey, publicKey, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL(), cfg.RefreshTTL())
	hasher := security.NewHasher(cfg.BcryptCost)

	var ttlCache cache.Cache
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer client.Close()
		ttlCache = cache.NewRedisCache(client)
	} else {
		log.Println("REDIS_ADDR not set, using process-local cache")
		ttlCache = cache.NewMemoryStore()
	}

	var notifier notify.Notifier
	if cfg.SMSLocalAPIKey != "" {
		notifier = notify.NewSMSLocalClient(cfg.SMSLocalAPIKey, cfg.SMSLocalBaseURL, cfg.SMSLocalSender)
	} else {
		log.Println("SMS_LOCAL_API_KEY not set, notifications go to the log")
		notifier = notify.LogNotifier{}
	}

	var auditStream stream.Producer
	if producer, err := stream.NewKafkaProducer(cfg.AuditKafkaBrokersList(), cfg.AuditKafkaTopic); err != nil {
		log.Fatalf("audit stream: %v", err)
	} else if producer != nil {
		defer producer.Close()
		auditStream = producer
	}

	profiles := actorrepo.NewPostgresRepository(sqlDB)
	auditLog := audit.NewWriter(auditrepo.NewPostgresRepository(sqlDB), auditStream)
	auditReader := audit.NewReader(auditrepo.NewPostgresRepository(sqlDB), profiles)

	loginSec := loginsecurity.NewService(
		loginsecurityrepo.NewPostgresRepository(sqlDB),
		ttlCache,
		auditLog,
		notifier,
		loginsecurity.Config{
			MaxAttempts:    cfg.MaxLoginAttempts,
			Lockout:        time.Duration(cfg.LockoutMinutes) * time.Minute,
			CodeTTL:        cfg.CodeTTL(),
			ResendCooldown: cfg.ResendCooldown(),
			DedupWindow:    cfg.DedupWindow(),
		},
	)

	evaluator := policyengine.NewOPAEvaluator(policyrepo.NewPostgresRepository(sqlDB))
	auth := identityservice.NewAuthService(profiles, hasher, tokens, loginSec, evaluator, auditLog)

	engine := workflowservice.NewEngine(
		workflowrepo.NewPostgresRepository(sqlDB),
		access.NewResolver(cfg.OperationsRoomList()),
		assignment.NewResolver(assignmentrepo.NewPostgresRepository(sqlDB), profiles),
		auditLog,
		profiles,
		notifier,
	)

	srv := server.New(auth, engine, auditReader, profiles, tokens, dbHealth{sqlDB}, evaluator)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	log.Println("HTTP server stopped")
}
