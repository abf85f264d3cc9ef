package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	accessgatesvc "compliance-portal/backend/internal/accessgate/service"
	"compliance-portal/backend/internal/audit"
	auditrepo "compliance-portal/backend/internal/audit/repository"
	"compliance-portal/backend/internal/config"
	"compliance-portal/backend/internal/db"
	"compliance-portal/backend/internal/events/producer"
	identityrepo "compliance-portal/backend/internal/identity/repository"
	identitysvc "compliance-portal/backend/internal/identity/service"
	"compliance-portal/backend/internal/notification"
	"compliance-portal/backend/internal/notification/mailer"
	orgrepo "compliance-portal/backend/internal/organization/repository"
	otprepo "compliance-portal/backend/internal/otp/repository"
	otpsvc "compliance-portal/backend/internal/otp/service"
	"compliance-portal/backend/internal/otpecho"
	requestrepo "compliance-portal/backend/internal/request/repository"
	requestsvc "compliance-portal/backend/internal/request/service"
	"compliance-portal/backend/internal/security"
	"compliance-portal/backend/internal/server"
	sessionrepo "compliance-portal/backend/internal/session/repository"
	"compliance-portal/backend/internal/telemetry/otel"
	"compliance-portal/backend/internal/tokenvault"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx := context.Background()
	providers, err := otel.NewProviders(ctx, cfg.OTLPEndpoint, "portal-api", false)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = providers.Shutdown(shutdownCtx)
	}()

	privateKey, err := security.ParsePrivateKey(cfg.JWTPrivateKey)
	if err != nil {
		log.Fatalf("jwt private key: %v", err)
	}
	publicKey, err := security.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		log.Fatalf("jwt public key: %v", err)
	}
	tokens := security.NewTokenProvider(privateKey, publicKey, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL())
	hasher := security.NewHasher(cfg.BcryptCost)

	orgs := orgrepo.NewPostgresRepository(conn)
	users := identityrepo.NewPostgresRepository(conn)
	challenges := otprepo.NewPostgresRepository(conn)
	sessions := sessionrepo.NewPostgresRepository(conn)
	requests := requestrepo.NewPostgresRepository(conn)
	auditor := audit.NewLogger(auditrepo.NewPostgresRepository(conn), nil)

	var sender notification.Sender
	if cfg.MailTestMode || cfg.MailAPIKey == "" {
		log.Println("mail: test mode, printing to stdout")
		sender = notification.NewConsoleSender()
	} else {
		sender = mailer.NewClient(cfg.MailAPIKey, cfg.MailBaseURL, cfg.MailFrom)
	}

	var echo otpecho.Store
	if cfg.OTPEchoEnabled {
		log.Println("otp: echo endpoint enabled (test mode)")
		echo = otpecho.NewMemoryStore()
	}

	otps := otpsvc.New(challenges, echo, cfg.OTPLifetime(), cfg.OTPMaxAttempts)
	workflow := requestsvc.NewService(requests, orgs, sender, auditor, cfg.SLADays)
	gate := accessgatesvc.NewService(orgs, otps, sessions, workflow, sender, auditor,
		cfg.OTPRequestCooldown(), cfg.SessionTTL())
	auth := identitysvc.NewService(users, hasher, tokens)
	vault := tokenvault.New(orgs)

	if brokers := cfg.EventsKafkaBrokersList(); len(brokers) > 0 {
		emitter, err := producer.NewKafkaProducer(brokers, cfg.EventsKafkaTopic)
		if err != nil {
			log.Fatalf("kafka: %v", err)
		}
		if emitter != nil {
			defer emitter.Close()
			workflow.SetEmitter(emitter)
			gate.SetEmitter(emitter)
			vault.SetEmitter(emitter)
			log.Printf("events: emitting to kafka topic %s", cfg.EventsKafkaTopic)
		}
	}

	srv := server.NewHTTPServer(cfg.HTTPAddr, server.Deps{
		Tokens:        tokens,
		Gate:          gate,
		Requests:      workflow,
		Auth:          auth,
		Vault:         vault,
		Orgs:          orgs,
		Echo:          echo,
		DB:            conn,
		Tracer:        providers.TracerProvider.Tracer("portal-api"),
		PortalBaseURL: cfg.PortalBaseURL,
	})

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	log.Println("HTTP server stopped")
}
