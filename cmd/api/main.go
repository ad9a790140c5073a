package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carematch/carematch-api/internal/application/verification"
	"github.com/carematch/carematch-api/internal/config"
	"github.com/carematch/carematch-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/carematch/carematch-api/internal/infrastructure/jwt"
	"github.com/carematch/carematch-api/internal/infrastructure/sns"
	"github.com/carematch/carematch-api/internal/infrastructure/wechat"
	transporthttp "github.com/carematch/carematch-api/internal/transport/http"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()

	// JWT is the single token format every login channel converges on;
	// a missing secret is fatal at startup, not at first login.
	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		log.Fatalf("jwt provider: %v", err)
	}

	// Bootstrap the users table (creates it if it doesn't exist).
	dynamoClient := dynamo.NewClient(cfg)
	dynamo.Bootstrap(context.Background(), dynamoClient, cfg.DynamoTables)

	// In-memory verification code store with a periodic sweep to bound memory.
	codeStore := verification.NewStore()
	stopSweeper := make(chan struct{})
	codeStore.StartSweeper(time.Minute, stopSweeper)

	// SNS SMS sender is optional; without it codes are logged in development.
	var smsSender sns.SMSSender
	if sender, err := sns.NewSender(cfg); err == nil {
		smsSender = sender
	} else {
		log.Printf("WARN: SNS sender not available: %v", err)
	}

	deps := &transporthttp.Deps{
		UserRepo:    dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users),
		CodeStore:   codeStore,
		JWTProvider: jwtProvider,
		WeChat:      wechat.NewClient(cfg),
		SMSSender:   smsSender,
	}

	router := transporthttp.NewRouter(cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s)", cfg.AppPort, cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	close(stopSweeper)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}
