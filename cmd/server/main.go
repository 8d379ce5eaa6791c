package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/saint2706/portfolio/internal/app"
	"github.com/saint2706/portfolio/internal/config"
	"github.com/saint2706/portfolio/internal/store"
	"github.com/saint2706/portfolio/internal/web"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatalf("[server] config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	st, err := store.Open(ctx, cfg.DBDriver, cfg.DBDSN)
	cancel()
	if err != nil {
		log.Fatalf("[server] open %s store: %v", cfg.DBDriver, err)
	}
	defer st.Close()

	svc := app.NewService(app.WithMoveDelay(cfg.AIMoveDelay), app.WithRecorder(st))
	defer svc.Close()

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           web.NewServer(svc, web.WithHistory(st), web.WithFeedPath(cfg.FeedPath)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
		close(serverErrCh)
	}()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	log.Printf("[server] listening on %s (store %s, move delay %s)", cfg.Addr(), cfg.DBDriver, cfg.AIMoveDelay)
	var runErr error
	select {
	case <-sigCtx.Done():
		log.Printf("[server] shutdown signal received: %v", sigCtx.Err())
	case err, ok := <-serverErrCh:
		if ok {
			runErr = err
			log.Printf("[server] server error: %v", err)
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("[server] graceful shutdown failed: %v", err)
		if closeErr := server.Close(); closeErr != nil && !errors.Is(closeErr, http.ErrServerClosed) {
			log.Printf("[server] forced close failed: %v", closeErr)
		}
	}
	if runErr != nil {
		log.Printf("[server] exiting after server error: %v", runErr)
	}
}
