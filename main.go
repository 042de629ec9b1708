package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"homestock/pkg/ocr"
)

var (
	cfg  appConfig
	pipe *ocr.Pipeline
)

func main() {
	// Load ./.env if present before reading vars; existing env wins.
	_ = godotenv.Load()
	cfg = loadConfig()

	// Support a lightweight migrate command: `./homestock migrate`
	// It runs AutoMigrate then exits. Useful for CI or manual DB setup.
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		initDB()
		fmt.Println("migration completed")
		return
	}

	initDB()

	pool, err := ocr.NewPool(cfg.PoolSize, func() (ocr.Engine, error) {
		return ocr.NewTesseractEngine(cfg.Lang)
	})
	if err != nil {
		log.Fatal("failed to initialize OCR engine pool: ", err)
	}
	defer pool.Close()

	preprocess := ocr.PreprocessConfig{}
	if cfg.PreprocessDefault {
		preprocess = ocr.QuickPreprocess()
	}
	pipe = &ocr.Pipeline{
		Pool:              pool,
		Preprocess:        preprocess,
		AutoPreprocess:    cfg.AutoPreprocess,
		MinItemConfidence: cfg.MinItemConfidence,
		Timeout:           cfg.Timeout,
	}

	r := gin.Default()
	setupRoutes(r)

	srv := &http.Server{Addr: cfg.Addr, Handler: r}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error: ", err)
		}
	}()
	log.Printf("listening on %s (pool=%d lang=%s)", cfg.Addr, cfg.PoolSize, cfg.Lang)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
