package main

import (
	"log"
	"os"
	"time"

	"codeshare/internal/api"
	"codeshare/internal/auth"
	"codeshare/internal/config"
	"codeshare/internal/redis"
	"codeshare/internal/service/account"
	"codeshare/internal/service/executor"
	"codeshare/internal/service/store"
	"codeshare/internal/storage"

	"github.com/gin-gonic/gin"
)

func main() {
	cfgPath := os.Getenv("CODESHARE_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	dbType := os.Getenv("CODESHARE_DB")
	if dbType == "" {
		dbType = "sqlite3"
	}
	log.Printf("dbType: %s\n", dbType)
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	// Redis is optional: without it the session cache and the token
	// denylist degrade gracefully.
	var rdb *redis.Client
	if cfg.Redis.Host != "" {
		rdb, err = redis.NewClient(cfg)
		if err != nil {
			log.Fatalf("create redis client: %v", err)
		}
		defer rdb.Close()
	}

	// Create necessary tables: users, sessions, participants.
	if err := storage.Migrate(db, dbType); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	secret := cfg.Auth.Secret
	if secret == "" {
		log.Fatalf("auth secret must be configured")
	}
	tokenTTL := time.Duration(cfg.Auth.TokenTTLMinutes) * time.Minute
	authService := auth.NewService(secret, tokenTTL, rdb)
	accounts := account.NewService(db)
	sessions := store.NewService(db, dbType, rdb)

	var backend executor.Backend
	switch cfg.Executor.Mode {
	case "", "local":
		backend = executor.NewLocalBackend()
	case "remote":
		if cfg.Executor.RemoteURL == "" {
			log.Fatalf("executor remote_url must be configured in remote mode")
		}
		backend = executor.NewHTTPBackend(cfg.Executor.RemoteURL)
	default:
		log.Fatalf("unsupported executor mode: %s", cfg.Executor.Mode)
	}
	execTimeout := time.Duration(cfg.Executor.TimeoutSeconds) * time.Second
	exec := executor.NewService(backend, execTimeout)

	handlers := api.NewHandler(sessions, accounts, authService, exec)

	router := gin.Default()
	handlers.RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":8090"
	}

	if err := router.Run(addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
