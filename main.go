package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"jumpi/server"
	"jumpi/store"
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// main loads configuration, opens the user store and serves the world over HTTP and websocket.
func main() {
	// a missing .env is fine; real environment variables win
	_ = godotenv.Load()

	var (
		addr        string
		logFile     string
		static      string
		adminToken  string
		sessionHdr  string
		devSessions bool
	)
	flag.StringVar(&addr, "addr", envOr("ADDR", ":8080"), "server listen address, e.g. :8080")
	flag.StringVar(&logFile, "log", envOr("LOG_FILE", "logs/jumpi.log"), "rotating log file path")
	flag.StringVar(&static, "static", os.Getenv("STATIC_DIR"), "directory served at /, empty to disable")
	flag.StringVar(&adminToken, "admin-token", os.Getenv("ADMIN_TOKEN"), "X-Admin-Token required by /admin/config")
	flag.StringVar(&sessionHdr, "session-header", envOr("SESSION_HEADER", "X-Session-User"), "header carrying the signed-in username")
	flag.BoolVar(&devSessions, "dev-sessions", os.Getenv("DEV_SESSIONS") == "1", "also accept ?user= on /ws (development only)")
	flag.Parse()

	log := server.NewLogger(logFile, true)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts, err := store.OptionsFromEnv()
	if err != nil {
		log.Fatalw("store config", "err", err)
	}
	users, err := store.Connect(ctx, opts)
	if err != nil {
		log.Fatalw("open store", "dialect", opts.Dialect, "err", err)
	}
	defer users.Close()

	world := server.NewWorld(server.DefaultConfig(), users, log)
	world.Start(ctx)

	mux := http.NewServeMux()
	mux.Handle("/ws", server.NewHandler(world, server.HeaderResolver{Header: sessionHdr, AllowQuery: devSessions}, log))
	mux.Handle("/metrics", world.Metrics().Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	server.NewAdminAPI(world, adminToken, log).Register(mux)
	if static != "" {
		// client bundle served from a separate directory
		mux.Handle("/", http.FileServer(http.Dir(static)))
	}

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Infow("jumpi listening", "addr", addr, "store", opts.Dialect)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("listen", "err", err)
			stop()
		}
	}()

	// stop accepting connections first, then stop the loop and flush online players
	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	if err := world.Stop(shutdownCtx); err != nil {
		log.Errorw("world stop", "err", err)
	}
}
