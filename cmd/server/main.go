package main

import (
	"context"
	"log"
	"net/http"
	"os"

	webAdapter "makerdesk/internal/adapters/web"
	"makerdesk/internal/app"
	"makerdesk/internal/core"
	"makerdesk/internal/db"
	"makerdesk/internal/notify"
	"makerdesk/internal/storage"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	pool, err := db.NewPool(ctx)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()

	audit := core.NewAuditSink(pool)
	settings := core.NewSettingsService(pool, audit)
	orders := core.NewOrderService(pool, audit)
	invoices := core.NewInvoiceService(pool, settings, audit)

	media, err := storage.NewS3MediaStore(ctx)
	if err != nil {
		log.Printf("Warning: media store not configured: %v", err)
		media = storage.NoopMediaStore{}
	}
	deletion := core.NewDeletionService(pool, media, audit)

	mailer, err := notify.NewSESMailerFromEnv(ctx)
	if err != nil {
		log.Printf("Warning: email not configured: %v", err)
		mailer = nil
	}
	sms, err := notify.NewSMSSenderFromEnv()
	if err != nil {
		log.Printf("Warning: SMS not configured: %v", err)
		sms = nil
	}
	renderer, err := notify.NewPDFRendererFromEnv()
	if err != nil {
		log.Printf("Warning: PDF rendering not configured: %v", err)
		renderer = nil
	}

	svc := app.NewAppService(orders, invoices, deletion, settings, mailer, sms, renderer)

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	handler := webAdapter.NewHandler(svc, allowedOrigins)

	log.Printf("server starting on :%s", port)
	if err := http.ListenAndServe(":"+port, handler); err != nil {
		log.Fatalf("server: %v", err)
	}
}
