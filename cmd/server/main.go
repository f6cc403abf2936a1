package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/grandcat/zeroconf"

	"collabtext/internal/config"
	"collabtext/internal/relay"
	"collabtext/internal/session"
	"collabtext/internal/store"
	"collabtext/internal/ws"
)

func main() {
	cfg := config.ParseFlags()
	ctx := context.Background()

	st := openStore(ctx, cfg)
	if st != nil {
		defer st.Close()
	}

	var sink session.Sink
	if cfg.RedisAddr != "" {
		r, err := relay.NewRedis(ctx, cfg.RedisAddr)
		if err != nil {
			log.Fatalf("Could not connect to Redis: %v", err)
		}
		defer r.Close()
		sink = r
		log.Println("Connected to Redis successfully.")
	}

	registry := session.NewRegistry(st, sink)

	router := mux.NewRouter()
	ws.NewHandler(registry, cfg.SendBuffer).Register(router)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	if cfg.MDNS {
		mdns, err := announce(cfg.Addr)
		if err != nil {
			log.Printf("mDNS registration failed: %v", err)
		} else {
			defer mdns.Shutdown()
		}
	}

	srv := &http.Server{Addr: cfg.Addr, Handler: router}

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("CollabText sync server starting on %s...", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-sigCtx.Done()
	log.Println("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown: %v", err)
	}
	registry.SaveAll(shutdownCtx)
}

// openStore picks the snapshot backend: Postgres when DATABASE_URL is
// set, a local bbolt file when -store is, otherwise documents live only
// in process memory.
func openStore(ctx context.Context, cfg *config.Config) store.Store {
	switch {
	case cfg.DatabaseURL != "":
		st, err := store.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Unable to connect to database: %v", err)
		}
		log.Println("Connected to PostgreSQL successfully.")
		return st
	case cfg.StorePath != "":
		st, err := store.NewBolt(cfg.StorePath)
		if err != nil {
			log.Fatalf("Unable to open store %s: %v", cfg.StorePath, err)
		}
		log.Printf("Using local snapshot store at %s", cfg.StorePath)
		return st
	default:
		return nil
	}
}

// announce registers the server as _collabtext._tcp on the local
// network so LAN clients can discover it.
func announce(addr string) (*zeroconf.Server, error) {
	port := 8081
	if _, p, err := net.SplitHostPort(addr); err == nil {
		if n, err := strconv.Atoi(p); err == nil {
			port = n
		}
	}
	host, _ := os.Hostname()
	return zeroconf.Register("CollabText-"+host, "_collabtext._tcp", "local.", port, nil, nil)
}
