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

	"github.com/redis/go-redis/v9"
	flag "github.com/spf13/pflag"

	"servicetrack/config"
	"servicetrack/engine"
	"servicetrack/floorstate"
	"servicetrack/messaging"
	"servicetrack/store"
	"servicetrack/www"
)

var Version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.StringP("config", "c", "servicetrack.yaml", "path to config file")
	flag.Parse()

	if *showVersion {
		fmt.Println("servicetrack", Version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Database
	db, err := store.Open(&cfg.Database)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	log.Printf("servicetrack: database open (%s)", cfg.Database.Driver)

	// Redis (optional floor projection)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	var redisStore *floorstate.RedisStore
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("servicetrack: redis not available (%v), floor board served from SQL", err)
	} else {
		log.Printf("servicetrack: redis connected (%s)", cfg.Redis.Address)
		redisStore = floorstate.NewRedisStore(redisClient)
	}
	cancel()

	// Messaging client
	var msgClient *messaging.Client
	if cfg.Messaging.Backend != "" && cfg.Messaging.Backend != "none" {
		msgClient = messaging.NewClient(&cfg.Messaging)
		if err := msgClient.Connect(); err != nil {
			log.Printf("servicetrack: messaging connect failed (%v)", err)
		} else {
			log.Printf("servicetrack: messaging connected (%s)", cfg.Messaging.Backend)
		}
		defer msgClient.Close()
	}

	// Engine
	eng, err := engine.New(engine.Config{
		AppConfig: cfg,
		DB:        db,
		Redis:     redisStore,
		MsgClient: msgClient,
	})
	if err != nil {
		log.Fatalf("engine: %v", err)
	}
	eng.Start()
	defer eng.Stop()

	// Web server
	handler, stopWeb := www.NewRouter(eng)

	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("servicetrack: web server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("web server: %v", err)
		}
	}()

	log.Printf("servicetrack: ready")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Printf("servicetrack: shutting down...")
	stopWeb()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)

	log.Printf("servicetrack: stopped")
}
