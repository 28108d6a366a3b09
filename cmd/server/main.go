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

	"marketbill/internal/config"
	"marketbill/internal/handler"
	"marketbill/internal/infrastructure/cache"
	"marketbill/internal/infrastructure/database"
	"marketbill/internal/infrastructure/gateway"
	"marketbill/internal/infrastructure/mq"
	"marketbill/internal/job"
	"marketbill/internal/service"
	"marketbill/pkg/idgen"
)

func main() {
	cfg := config.LoadConfig("config/config.yaml")

	idgen.Init(1)

	db := database.InitMySQL(&cfg.MySQL)
	redisClient := cache.InitRedis(&cfg.Redis)

	mq.InitKafka(&cfg.Kafka)
	defer mq.CloseKafka()

	bank := gateway.New(&cfg.Gateway)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Background workers: outbox relay, paid-invoice settlement, overdue sweep.
	outboxSender := job.NewOutboxSender(db, cfg)
	go outboxSender.Start(ctx)

	revenueService := service.NewRevenueService(db, cfg)
	settlementWorker := job.NewSettlementWorker(db, cfg, revenueService)
	go settlementWorker.Start(ctx)

	overdueSweep := job.NewOverdueSweepJob(db, cfg)
	go overdueSweep.Start(ctx)

	router := handler.SetupRouter(db, redisClient, cfg, bank)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("server listening on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	log.Println("server stopped")
}
