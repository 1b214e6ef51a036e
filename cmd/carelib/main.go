package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/carelib/carelib/internal/analytics"
	"github.com/carelib/carelib/internal/catalog"
	"github.com/carelib/carelib/internal/database"
	"github.com/carelib/carelib/internal/geoip"
	"github.com/carelib/carelib/internal/progress"
	"github.com/carelib/carelib/internal/server"
	"github.com/carelib/carelib/internal/storage"
)

func main() {
	port := getEnv("PORT", "8080")

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := database.Connect(ctx, databaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(databaseURL); err != nil {
		log.Fatalf("database migration failed: %v", err)
	}
	log.Println("database migrations applied")

	loader := catalog.NewLoader(catalogSource(ctx))
	if err := loader.Load(ctx); err != nil {
		// The service still starts: the API answers with the load status
		// until an admin reload succeeds.
		log.Printf("catalog load failed: %v", err)
	}

	geo, err := geoip.New(os.Getenv("GEOIP_DB_PATH"))
	if err != nil {
		log.Printf("geoip disabled: %v", err)
	}
	if geo != nil {
		defer geo.Close()
	}

	baseURL := getEnv("BASE_URL", "http://localhost:8080")

	var webFS fs.FS
	webDir := getEnv("WEB_DIR", "web/dist")
	if info, err := os.Stat(webDir); err == nil && info.IsDir() {
		webFS = os.DirFS(webDir)
		log.Printf("serving frontend from %s", webDir)
	} else {
		log.Println("no frontend directory found, SPA serving disabled")
	}

	srv := server.New(server.Config{
		Pinger:            db,
		Loader:            loader,
		Store:             progress.NewStore(db.Pool),
		Recorder:          analytics.NewRecorder(db.Pool, geo),
		WebFS:             webFS,
		JWTSecret:         jwtSecret,
		BaseURL:           baseURL,
		LiffID:            os.Getenv("LIFF_ID"),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
		AllowedOrigins:    splitCSV(os.Getenv("ALLOWED_ORIGINS")),
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("carelib listening on :%s", port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-shutdownCh
	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown failed: %v", err)
	}
	log.Println("shutdown complete")
}

// catalogSource picks where the dataset document lives: an S3-compatible
// bucket when one is configured, a local file otherwise.
func catalogSource(ctx context.Context) catalog.Source {
	bucket := os.Getenv("S3_BUCKET")
	if bucket == "" {
		return catalog.FileSource{Path: getEnv("CATALOG_PATH", "data/catalog.json")}
	}

	store, err := storage.New(ctx, storage.Config{
		Endpoint:  getEnv("S3_ENDPOINT", "http://localhost:3900"),
		Bucket:    bucket,
		AccessKey: os.Getenv("S3_ACCESS_KEY"),
		SecretKey: os.Getenv("S3_SECRET_KEY"),
		Region:    getEnv("S3_REGION", "ap-southeast-1"),
	})
	if err != nil {
		log.Fatalf("storage initialization failed: %v", err)
	}
	if err := store.EnsureBucket(ctx); err != nil {
		log.Fatalf("storage bucket check failed: %v", err)
	}
	log.Println("storage bucket ready")
	return storage.ObjectSource{Storage: store, Key: getEnv("CATALOG_KEY", "catalog.json")}
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
