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
	"github.com/spf13/pflag"

	"gridpatrol/config"
	"gridpatrol/engine"
	"gridpatrol/messaging"
	"gridpatrol/statecache"
	"gridpatrol/store"
	"gridpatrol/www"
)

var Version = "dev"

func main() {
	showVersion := pflag.Bool("version", false, "print version and exit")
	configPath := pflag.StringP("config", "c", "gridpatrol.yaml", "path to config file")
	patrolRounds := pflag.Int("patrol", 0, "run this many patrol rounds, then exit")
	noWeb := pflag.Bool("no-web", false, "do not start the control API")
	pflag.Parse()

	if *showVersion {
		fmt.Println("gridpatrol", Version)
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
	log.Printf("gridpatrol: database open (%s)", cfg.Database.Driver)

	// Redis mirror
	var mirror *statecache.Mirror
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		mirror = statecache.NewMirror(redisClient)
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := mirror.Ping(ctx); err != nil {
			log.Printf("gridpatrol: redis not available (%v), mirror writes will be skipped", err)
		} else {
			log.Printf("gridpatrol: redis connected (%s)", cfg.Redis.Address)
		}
		cancel()
	}

	// Messaging client
	msgClient := messaging.NewClient(&cfg.Messaging)
	if err := msgClient.Connect(); err != nil {
		log.Printf("gridpatrol: messaging connect failed (%v)", err)
	} else if msgClient.Enabled() {
		log.Printf("gridpatrol: messaging connected (%s)", msgClient.Backend())
	}
	defer msgClient.Close()

	// Engine
	eng := engine.New(engine.Config{
		AppConfig:  cfg,
		ConfigPath: *configPath,
		DB:         db,
		Mirror:     mirror,
		MsgClient:  msgClient,
	})
	eng.Start()
	defer eng.Stop()

	syncCtx, syncCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if _, err := eng.Sync(syncCtx); err != nil {
		log.Printf("gridpatrol: device not available (%v)", err)
	}
	syncCancel()

	// Headless patrol
	if *patrolRounds > 0 {
		runPatrol(eng, *patrolRounds)
		return
	}

	// Inbound requests
	if msgClient.Enabled() && cfg.Messaging.CommandsTopic != "" {
		ingress := messaging.NewIngress(eng)
		if err := msgClient.Subscribe(cfg.Messaging.CommandsTopic, ingress.HandleRaw); err != nil {
			log.Printf("gridpatrol: command ingress subscribe failed: %v", err)
		} else {
			log.Printf("gridpatrol: command ingress listening on %s", cfg.Messaging.CommandsTopic)
		}
	}

	// Outbox drainer
	if msgClient.Enabled() {
		drainer := messaging.NewOutboxDrainer(db, msgClient, cfg.Messaging.OutboxDrainInterval)
		drainer.Start()
		defer drainer.Stop()
	}

	// Web server
	var srv *http.Server
	stopWeb := func() {}
	if !*noWeb {
		var handler http.Handler
		handler, stopWeb = www.NewRouter(eng)
		addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
		srv = &http.Server{
			Addr:    addr,
			Handler: handler,
		}
		go func() {
			log.Printf("gridpatrol: web server listening on %s", addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("web server: %v", err)
			}
		}()
	}

	log.Printf("gridpatrol: ready")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Printf("gridpatrol: shutting down...")
	stopWeb()
	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}

	log.Printf("gridpatrol: stopped")
}

// runPatrol runs rounds in the foreground. SIGINT stops issuing steps; the
// in-flight command is left to the device.
func runPatrol(eng *engine.Engine, rounds int) {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// A command found running at startup is watched to completion first.
	for eng.Machine().Busy() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(eng.AppConfig().Device.PollInterval):
		}
	}

	report, err := eng.RunPatrol(ctx, rounds)
	if err != nil {
		log.Printf("gridpatrol: patrol: %v", err)
		return
	}
	log.Printf("gridpatrol: patrol %s %s: %d/%d succeeded, %d failed",
		report.ID, report.Status(), report.Succeeded, report.Planned, report.Failed)
}
