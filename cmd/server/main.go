package main

import (
	"context"
	"log"
	"net/http"
	"os"

	webAdapter "credired/internal/adapters/web"
	"credired/internal/app"
	"credired/internal/core"
	"credired/internal/db"
	"credired/internal/obs"

	"github.com/joho/godotenv"
)

const defaultRatesURL = "https://open.er-api.com/v6/latest/USD"

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	pool, err := db.NewPool(ctx)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET is not set")
	}

	ratesURL := os.Getenv("RATES_URL")
	if ratesURL == "" {
		ratesURL = defaultRatesURL
	}
	rates := core.NewRateSource(core.NewHTTPRateFetcher(ratesURL))

	notificationService := core.NewNotificationService(pool, core.LogMailer{})
	inventoryService := core.NewInventoryService(pool, notificationService)
	saleService := core.NewSaleService(pool, inventoryService, rates, notificationService)
	paymentService := core.NewPaymentService(pool, rates, notificationService, saleService)
	networkService := core.NewNetworkService(pool)
	accountService := core.NewAccountService(pool, networkService, notificationService)
	clientService := core.NewClientService(pool)
	reportingService := core.NewReportingService(pool, saleService, networkService)

	svc := app.NewAppService(
		pool,
		accountService,
		clientService,
		inventoryService,
		saleService,
		paymentService,
		networkService,
		notificationService,
		reportingService,
		rates,
	)

	obs.Init()

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	handler := webAdapter.NewHandler(svc, allowedOrigins, jwtSecret)

	log.Printf("server starting on :%s", port)
	if err := http.ListenAndServe(":"+port, handler); err != nil {
		log.Fatalf("server: %v", err)
	}
}
