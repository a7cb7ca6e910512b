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

	atthandler "github.com/handedalcali/qr-attendance/internal/attendance/handler"
	attrepo "github.com/handedalcali/qr-attendance/internal/attendance/repository"
	attservice "github.com/handedalcali/qr-attendance/internal/attendance/service"
	"github.com/handedalcali/qr-attendance/internal/config"
	"github.com/handedalcali/qr-attendance/internal/db"
	"github.com/handedalcali/qr-attendance/internal/security"
	"github.com/handedalcali/qr-attendance/internal/server"
	sesshandler "github.com/handedalcali/qr-attendance/internal/session/handler"
	sessrepo "github.com/handedalcali/qr-attendance/internal/session/repository"
	sessservice "github.com/handedalcali/qr-attendance/internal/session/service"
	"github.com/handedalcali/qr-attendance/internal/token"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	signer, err := security.NewSigner(cfg.HMACSecret)
	if err != nil {
		log.Fatalf("signer: %v", err)
	}
	codec := token.NewCodec(signer)

	var (
		sessions sessrepo.Repository
		ledger   attrepo.Repository
	)
	if cfg.DatabaseURL != "" {
		sqlDB, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		defer sqlDB.Close()
		sessions = sessrepo.NewPostgresRepository(sqlDB)
		ledger = attrepo.NewPostgresRepository(sqlDB)
		log.Println("using Postgres storage")
	} else {
		sessions = sessrepo.NewMemoryRepository()
		ledger = attrepo.NewMemoryRepository()
		log.Println("DATABASE_URL not set; using in-memory storage")
	}

	attSvc := attservice.New(sessions, ledger, codec, cfg.DeviceBinding)
	sessSvc := sessservice.New(sessions, ledger, codec, cfg.SessionTTLDuration())

	router := server.NewRouter(server.Deps{
		Config:     cfg,
		Attendance: atthandler.New(attSvc),
		Sessions:   sesshandler.New(sessSvc, cfg.AllowedOriginsList()),
	})
	srv := server.NewHTTPServer(cfg.HTTPAddr, router)

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down HTTP server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	log.Println("HTTP server stopped")
}
